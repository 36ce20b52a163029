package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/lpkmns/nihongo-exam/internal/middleware"
	"github.com/lpkmns/nihongo-exam/internal/model"
	"github.com/lpkmns/nihongo-exam/internal/service"
	ws "github.com/lpkmns/nihongo-exam/internal/websocket"
	"github.com/rs/zerolog"
)

func (h *harness) streamServer(t *testing.T) *httptest.Server {
	t.Helper()
	r := gin.New()
	wsh := NewWSHandler(h.sessions, h.violations, h.cfg.WarningDuration, zerolog.Nop(), nil)
	r.GET("/stream", middleware.RequireStudentWSAuth(h.auth), wsh.ExamWebSocketStream)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func (h *harness) startExam(t *testing.T, code string) *service.StartedExam {
	t.Helper()
	ctx := context.Background()
	if v, err := h.tokens.Validate(ctx, code); err != nil || !v.Valid {
		t.Fatalf("Validate(%s) = %+v, %v", code, v, err)
	}
	started, err := h.sessions.StartExam(ctx, code, "Aiko", "dev-1")
	if err != nil {
		t.Fatalf("StartExam: %v", err)
	}
	return started
}

func dial(t *testing.T, srv *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/stream?device_id=dev-1&token=" + url.QueryEscape(token)
	conn, resp, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		t.Fatalf("dial: %v (status %d)", err, status)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

type wsEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// next returns the next event other than a clock tick.
func next(t *testing.T, conn *websocket.Conn) wsEvent {
	t.Helper()
	for {
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		var ev wsEvent
		if err := conn.ReadJSON(&ev); err != nil {
			t.Fatalf("read: %v", err)
		}
		if ev.Event != "tick" {
			return ev
		}
	}
}

func expectEvent(t *testing.T, conn *websocket.Conn, want string) json.RawMessage {
	t.Helper()
	ev := next(t, conn)
	if ev.Event != want {
		t.Fatalf("got event %q (%s), want %q", ev.Event, ev.Data, want)
	}
	return ev.Data
}

func TestExamStreamAnswerAndSubmit(t *testing.T) {
	h := newHarness(t, "ABCD1234")
	started := h.startExam(t, "ABCD1234")
	srv := h.streamServer(t)
	conn := dial(t, srv, started.Token)

	var view struct {
		State     string                     `json:"state"`
		Questions []model.QuestionForStudent `json:"questions"`
	}
	if err := json.Unmarshal(expectEvent(t, conn, "state"), &view); err != nil {
		t.Fatal(err)
	}
	if view.State != "active" || len(view.Questions) == 0 {
		t.Fatalf("state = %+v", view)
	}
	first := view.Questions[0].ID

	send := func(v any) {
		t.Helper()
		if err := conn.WriteJSON(v); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	send(map[string]any{"action": "select", "question_id": first, "option": 0})
	var saved struct {
		QuestionID string `json:"question_id"`
	}
	_ = json.Unmarshal(expectEvent(t, conn, "saved"), &saved)
	if saved.QuestionID != first {
		t.Errorf("saved %q, want %q", saved.QuestionID, first)
	}

	send(map[string]any{"action": "select", "question_id": "nope", "option": 0})
	var failure struct {
		Code string `json:"code"`
	}
	_ = json.Unmarshal(expectEvent(t, conn, "error"), &failure)
	if failure.Code != "INVALID_ANSWER" {
		t.Errorf("unknown question error = %q", failure.Code)
	}

	send(map[string]any{"action": "ping"})
	expectEvent(t, conn, "pong")

	// The first focus loss warns; the second inside the window only records.
	send(map[string]any{"action": "event", "event": map[string]any{"kind": "blur"}})
	expectEvent(t, conn, "violation")
	expectEvent(t, conn, "warning")
	send(map[string]any{"action": "event", "event": map[string]any{"kind": "blur"}})
	expectEvent(t, conn, "violation")
	send(map[string]any{"action": "ping"})
	expectEvent(t, conn, "pong")
	if n := h.violations.len(); n != 2 {
		t.Errorf("recorded %d violations, want 2", n)
	}

	send(map[string]any{"action": "submit"})
	var done struct {
		State  string           `json:"state"`
		Result model.ExamResult `json:"result"`
	}
	if err := json.Unmarshal(expectEvent(t, conn, "completed"), &done); err != nil {
		t.Fatal(err)
	}
	if done.State != "submitted" || done.Result.TotalQuestions != len(view.Questions) {
		t.Fatalf("completed = %+v", done)
	}

	send(map[string]any{"action": "submit"})
	send(map[string]any{"action": "ping"})
	for ev := next(t, conn); ev.Event != "pong"; ev = next(t, conn) {
		if ev.Event == "completed" {
			t.Fatal("completion delivered twice")
		}
	}

	st, err := h.students.GetByID(context.Background(), started.Student.ID)
	if err != nil || st.Status != model.StudentStatusCompleted {
		t.Errorf("student after submit = %+v, %v", st, err)
	}
}

func TestExamStreamRejectsMissingToken(t *testing.T) {
	h := newHarness(t)
	srv := h.streamServer(t)

	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/stream"
	_, resp, err := websocket.DefaultDialer.Dial(u, nil)
	if err == nil {
		t.Fatal("dial succeeded without a token")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("resp = %v", resp)
	}
}

func TestExamStreamClosedByDisconnect(t *testing.T) {
	h := newHarness(t, "ABCD1234")
	started := h.startExam(t, "ABCD1234")
	srv := h.streamServer(t)
	conn := dial(t, srv, started.Token)
	expectEvent(t, conn, "state")

	if err := h.sessions.Disconnect(context.Background(), started.Student.ID); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}

	var failure struct {
		Code string `json:"code"`
	}
	_ = json.Unmarshal(expectEvent(t, conn, "error"), &failure)
	if failure.Code != "EXAM_NOT_ACTIVE" {
		t.Errorf("error code = %q", failure.Code)
	}

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				t.Errorf("stream ended with %v", err)
			}
			break
		}
	}
}

func TestExamStreamSendAfterWriterFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		up := websocket.Upgrader{}
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn.Close()
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	st := newExamStream(conn, nil, zerolog.Nop())
	go st.writeLoop()

	conn.Close()
	st.send(ws.Message{Event: ws.EventPong})
	select {
	case <-st.writerDone:
	case <-time.After(2 * time.Second):
		t.Fatal("writer kept running on a closed connection")
	}

	flooded := make(chan struct{})
	go func() {
		for range outboundBuffer + 8 {
			st.send(ws.Message{Event: ws.EventPong})
		}
		close(flooded)
	}()
	select {
	case <-flooded:
	case <-time.After(2 * time.Second):
		t.Fatal("send blocked after the writer exited")
	}
	st.shutdown()
}
