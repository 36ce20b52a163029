package websocket

import "github.com/lpkmns/nihongo-exam/internal/integrity"

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionSelect     Action = "select"
	ActionGoTo       Action = "goto"
	ActionFullscreen Action = "fullscreen"
	ActionEvent      Action = "event"
	ActionSubmit     Action = "submit"
	ActionPing       Action = "ping"
)

// RequestPayload carries every client action. Only the fields relevant to
// Action are read.
type RequestPayload struct {
	Action     Action           `json:"action"`
	QuestionID string           `json:"question_id,omitempty"`
	Option     *int             `json:"option,omitempty"`
	Index      *int             `json:"index,omitempty"`
	Fullscreen *bool            `json:"fullscreen,omitempty"`
	Event      *integrity.Event `json:"event,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventState          Event = "state"
	EventTick           Event = "tick"
	EventSaved          Event = "saved"
	EventWarning        Event = "warning"
	EventViolation      Event = "violation"
	EventAutosaveFailed Event = "autosave_failed"
	EventCompleted      Event = "completed"
	EventError          Event = "error"
	EventPong           Event = "pong"
)

// Message is the envelope of every server event.
type Message struct {
	Event Event `json:"event"`
	Data  any   `json:"data,omitempty"`
}

type TickData struct {
	TimeRemaining int64 `json:"time_remaining"`
}

type SavedData struct {
	QuestionID string `json:"question_id"`
	Option     int    `json:"option"`
}

type WarningData struct {
	Reason     string `json:"reason"`
	DurationMS int64  `json:"duration_ms"`
}

type ViolationData struct {
	Reason         string `json:"reason"`
	PreventDefault bool   `json:"prevent_default"`
}

type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
