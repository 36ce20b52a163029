package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/lpkmns/nihongo-exam/internal/engine"
	"github.com/lpkmns/nihongo-exam/internal/integrity"
	"github.com/lpkmns/nihongo-exam/internal/middleware"
	"github.com/lpkmns/nihongo-exam/internal/model"
	"github.com/lpkmns/nihongo-exam/internal/response"
	"github.com/lpkmns/nihongo-exam/internal/service"
	ws "github.com/lpkmns/nihongo-exam/internal/websocket"
	"github.com/rs/zerolog"
)

const outboundBuffer = 32

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// ViolationSink stores integrity violations reported on an exam stream.
type ViolationSink interface {
	Record(ctx context.Context, v model.Violation) error
}

// WSHandler handles the exam WebSocket stream.
type WSHandler struct {
	sessionService *service.ExamSessionService
	violations     ViolationSink
	warningWindow  time.Duration
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(
	sessionService *service.ExamSessionService,
	violations ViolationSink,
	warningWindow time.Duration,
	log zerolog.Logger,
	allowedOrigins []string,
) *WSHandler {
	return &WSHandler{
		sessionService: sessionService,
		violations:     violations,
		warningWindow:  warningWindow,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// ExamWebSocketStream godoc
// WS /ws/v1/student/stream?token=&device_id=
// Runs one exam view: answers, navigation, integrity events and submit
// flow in, clock ticks and completion flow out.
func (h *WSHandler) ExamWebSocketStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	// Resolve the engine before upgrading so failures still get a JSON body.
	sess, err := h.sessionService.Attach(c.Request.Context(), claims.StudentID, c.Query("device_id"))
	if err != nil {
		fail(c, err, response.ErrSessionNotFound)
		return
	}
	bg := context.WithoutCancel(c.Request.Context())
	defer h.sessionService.Detach(bg, claims.StudentID)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	st := newExamStream(conn, sess, h.log.With().Str("student_id", claims.StudentID.String()).Logger())
	st.cooldown = integrity.NewCooldown(h.warningWindow)
	st.monitor = integrity.NewMonitor(func(v integrity.Violation) {
		h.recordViolation(bg, st, v)
	})

	go st.writeLoop()
	unsubscribe := sess.Subscribe(st)

	st.log.Info().Msg("Student connected")

	st.send(ws.Message{Event: ws.EventState, Data: service.NewSessionView(sess)})
	if sess.State().Terminal() {
		st.sendCompleted(sess.Result(), sess.State())
	} else if err := st.monitor.Start(); err != nil {
		st.log.Warn().Err(err).Msg("Integrity monitor not started")
	}
	go st.watch()

	st.readLoop(bg)

	unsubscribe()
	st.monitor.Stop()
	st.shutdown()
	st.log.Info().Msg("Student disconnected")
}

func (h *WSHandler) recordViolation(ctx context.Context, st *examStream, v integrity.Violation) {
	student := st.sess.Student()
	err := h.violations.Record(ctx, model.Violation{
		StudentID:    student.ID,
		ExamCategory: student.ExamCategory,
		Kind:         string(v.Kind),
		Reason:       v.Reason,
		RecordedAt:   v.At,
	})
	if err != nil {
		st.log.Warn().Err(err).Str("reason", v.Reason).Msg("Failed to record violation")
	}
}

// ─── Stream ─────────────────────────────────────────────────────────────────

type outbound struct {
	msg   ws.Message
	close bool
}

// examStream is one connection to a live engine. A single goroutine owns
// writes to conn; everyone else goes through out.
type examStream struct {
	conn     *websocket.Conn
	sess     *engine.Session
	log      zerolog.Logger
	monitor  *integrity.Monitor
	cooldown *integrity.Cooldown

	out        chan outbound
	done       chan struct{}
	writerDone chan struct{}
	closeOnce  sync.Once
	completed  atomic.Bool
}

func newExamStream(conn *websocket.Conn, sess *engine.Session, log zerolog.Logger) *examStream {
	return &examStream{
		conn:       conn,
		sess:       sess,
		log:        log,
		out:        make(chan outbound, outboundBuffer),
		done:       make(chan struct{}),
		writerDone: make(chan struct{}),
	}
}

func (st *examStream) writeLoop() {
	defer close(st.writerDone)
	for {
		select {
		case <-st.done:
			return
		case o := <-st.out:
			if o.close {
				deadline := time.Now().Add(time.Second)
				msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
				_ = st.conn.WriteControl(websocket.CloseMessage, msg, deadline)
				st.conn.Close()
				return
			}
			if err := ws.WriteTyped(st.conn, o.msg); err != nil {
				st.log.Debug().Err(err).Msg("Write failed")
				st.conn.Close()
				return
			}
		}
	}
}

// send queues msg and waits for room, unless the stream is gone. A writer
// that died on a failed write counts as gone: nothing drains out after that.
func (st *examStream) send(msg ws.Message) {
	select {
	case st.out <- outbound{msg: msg}:
	case <-st.done:
	case <-st.writerDone:
	}
}

// offer queues msg only if there is room. Ticks are superseded by the next one.
func (st *examStream) offer(msg ws.Message) {
	select {
	case st.out <- outbound{msg: msg}:
	default:
	}
}

func (st *examStream) sendError(err error) {
	_, code := translateError(err, response.ErrSessionNotFound)
	st.send(ws.Message{Event: ws.EventError, Data: ws.ErrorData{
		Code:    string(code),
		Message: response.GetMessage(code),
	}})
}

func (st *examStream) sendCompleted(res *model.ExamResult, state engine.State) {
	if res == nil || !st.completed.CompareAndSwap(false, true) {
		return
	}
	st.send(ws.Message{Event: ws.EventCompleted, Data: gin.H{
		"state":  state,
		"result": res,
	}})
}

// watch ends the stream when the engine is closed underneath it, for
// example by an admin disconnect or server shutdown.
func (st *examStream) watch() {
	select {
	case <-st.done:
		return
	case <-st.sess.Done():
	}
	if st.sess.State().Terminal() {
		st.sendCompleted(st.sess.Result(), st.sess.State())
		return
	}
	st.sendError(engine.ErrSessionClosed)
	select {
	case st.out <- outbound{close: true}:
	case <-st.done:
	case <-st.writerDone:
	}
}

func (st *examStream) shutdown() {
	st.closeOnce.Do(func() { close(st.done) })
	<-st.writerDone
}

// ─── engine.Observer ────────────────────────────────────────────────────────

func (st *examStream) Tick(remaining time.Duration) {
	st.offer(ws.Message{Event: ws.EventTick, Data: ws.TickData{TimeRemaining: remaining.Milliseconds()}})
}

func (st *examStream) AutosaveFailed(error) {
	st.offer(ws.Message{Event: ws.EventAutosaveFailed})
}

func (st *examStream) Completed(res *model.ExamResult, state engine.State) {
	st.monitor.Stop()
	st.sendCompleted(res, state)
}

func (st *examStream) CompletionFailed(err error) {
	st.sendError(err)
}

// ─── Inbound ────────────────────────────────────────────────────────────────

func (st *examStream) readLoop(ctx context.Context) {
	for {
		var msg ws.RequestPayload
		if err := ws.ReadJSON(st.conn, &msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				st.log.Warn().Err(err).Msg("Unexpected close")
			} else {
				st.log.Debug().Msg("Connection closed")
			}
			return
		}
		st.dispatch(ctx, &msg)
	}
}

func (st *examStream) dispatch(ctx context.Context, msg *ws.RequestPayload) {
	switch msg.Action {
	case ws.ActionSelect:
		if msg.QuestionID == "" || msg.Option == nil {
			st.sendError(engine.ErrInvalidOption)
			return
		}
		if err := st.sess.SelectAnswer(msg.QuestionID, *msg.Option); err != nil {
			st.sendError(err)
			return
		}
		st.send(ws.Message{Event: ws.EventSaved, Data: ws.SavedData{QuestionID: msg.QuestionID, Option: *msg.Option}})

	case ws.ActionGoTo:
		if msg.Index == nil {
			st.sendError(engine.ErrInvalidQuestionIndex)
			return
		}
		if err := st.sess.GoTo(*msg.Index); err != nil {
			st.sendError(err)
		}

	case ws.ActionFullscreen:
		if msg.Fullscreen == nil {
			return
		}
		if err := st.sess.SetFullscreen(*msg.Fullscreen); err != nil {
			st.sendError(err)
		}

	case ws.ActionEvent:
		if msg.Event == nil {
			return
		}
		st.observe(*msg.Event)

	case ws.ActionSubmit:
		res, err := st.sess.Submit(ctx)
		if err != nil {
			// The observer already reported failed completions.
			if !errors.Is(err, engine.ErrCompletionFailed) {
				st.sendError(err)
			}
			return
		}
		st.sendCompleted(res, st.sess.State())

	case ws.ActionPing:
		st.send(ws.Message{Event: ws.EventPong})

	default:
		st.log.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
		st.send(ws.Message{Event: ws.EventError, Data: ws.ErrorData{
			Code:    string(response.ErrInvalidPayload),
			Message: "unknown action: " + string(msg.Action),
		}})
	}
}

func (st *examStream) observe(ev integrity.Event) {
	verdict := st.monitor.Observe(ev)
	if verdict.Violation == nil {
		return
	}
	st.send(ws.Message{Event: ws.EventViolation, Data: ws.ViolationData{
		Reason:         verdict.Violation.Reason,
		PreventDefault: verdict.PreventDefault,
	}})
	if st.cooldown.Allow(verdict.Violation.At) {
		st.send(ws.Message{Event: ws.EventWarning, Data: ws.WarningData{
			Reason:     verdict.Violation.Reason,
			DurationMS: st.cooldown.Window().Milliseconds(),
		}})
	}
}
