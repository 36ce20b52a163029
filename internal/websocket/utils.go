package websocket

import (
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait = 10 * time.Second
	readWait  = 5 * time.Minute
)

// WriteTyped sends a strongly-typed response payload over the WebSocket.
func WriteTyped(conn *websocket.Conn, v interface{}) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(v)
}

// WriteJSON wraps data in a Message envelope and sends it.
func WriteJSON(conn *websocket.Conn, event Event, data any) error {
	return WriteTyped(conn, Message{Event: event, Data: data})
}

// WriteError sends an error event with a machine code and a display message.
func WriteError(conn *websocket.Conn, code, message string) error {
	return WriteJSON(conn, EventError, ErrorData{Code: code, Message: message})
}

// ReadJSON reads and decodes a message into the provided structure.
// It sets a read deadline.
func ReadJSON(conn *websocket.Conn, v interface{}) error {
	conn.SetReadDeadline(time.Now().Add(readWait))
	return conn.ReadJSON(v)
}
