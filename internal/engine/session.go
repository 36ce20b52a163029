// Package engine runs one student's exam: answer recording, navigation,
// the countdown with periodic autosave, and the single completion cycle.
package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lpkmns/nihongo-exam/internal/catalog"
	"github.com/lpkmns/nihongo-exam/internal/model"
	"github.com/lpkmns/nihongo-exam/internal/scoring"
	"github.com/rs/zerolog"
)

// State is the lifecycle position of a session. StateAwaitingAuth is never
// held by a Session: a validated token waits as an admission ticket until
// Begin, which starts the session directly in StateActive. The value is
// kept so clients can render the pre-start phase with the same names.
type State string

const (
	StateAwaitingAuth State = "awaiting-auth"
	StateActive       State = "active"
	StateSubmitted    State = "submitted"
	StateTimedOut     State = "timed-out"
)

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateSubmitted || s == StateTimedOut
}

const (
	// TickInterval is both the timer period and the per-tick decrement.
	TickInterval = time.Second
	// DefaultAutosaveEvery is the remaining-time boundary that triggers a snapshot write.
	DefaultAutosaveEvery = 10 * time.Second
)

// Options tunes a session. Zero values fall back to defaults.
type Options struct {
	// Limit is the configured duration of the exam. Zero means the
	// category's catalog limit.
	Limit         time.Duration
	AutosaveEvery time.Duration
	DeviceID      string
	Marker        ResumeMarker
	Logger        zerolog.Logger
	Now           func() time.Time
	NewTicker     func(time.Duration) Ticker
}

func (o Options) withDefaults(category string) Options {
	if o.Limit <= 0 {
		o.Limit = catalog.TimeLimit(category, 0)
	}
	if o.AutosaveEvery <= 0 {
		o.AutosaveEvery = DefaultAutosaveEvery
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.NewTicker == nil {
		o.NewTicker = newRealTicker
	}
	return o
}

// Session is the live engine for one student. All methods are safe for
// concurrent use by several connections of the same student.
type Session struct {
	gw   Gateway
	opts Options
	log  zerolog.Logger
	// bg outlives request contexts so background writes are not cut short.
	bg context.Context

	mu         sync.Mutex
	student    model.Student
	sess       *model.ExamSession
	index      map[string]int
	state      State
	completing bool
	expired    bool
	closed     bool
	pending    *model.ExamResult
	result     *model.ExamResult

	inflight sync.WaitGroup
	done     chan struct{}
	stopOnce sync.Once

	obsMu     sync.RWMutex
	observers map[int]Observer
	nextObs   int
}

// Begin creates the Student and a fresh ExamSession for an admitted token,
// persists both, and returns an active session.
func Begin(ctx context.Context, gw Gateway, adm Admission, name string, opts Options) (*Session, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrInvalidName
	}
	opts = opts.withDefaults(adm.ExamCategory)

	questions, err := gw.LoadQuestions(ctx, adm.ExamCategory)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}

	now := opts.Now()
	student := &model.Student{
		Name:            name,
		Token:           adm.Token,
		ExamType:        adm.ExamType,
		ExamCategory:    adm.ExamCategory,
		StartTime:       now,
		Status:          model.StudentStatusActive,
		TimeRemaining:   opts.Limit.Milliseconds(),
		CurrentQuestion: 0,
	}
	if err := gw.CreateStudent(ctx, student); err != nil {
		return nil, fmt.Errorf("create student: %w", err)
	}

	snap := &model.ExamSession{
		StudentID:       student.ID,
		ExamType:        adm.ExamType,
		ExamCategory:    adm.ExamCategory,
		Questions:       questions,
		Answers:         make(map[string]int),
		StartTime:       now,
		TimeRemaining:   opts.Limit.Milliseconds(),
		CurrentQuestion: 0,
		UpdatedAt:       now,
	}
	if err := gw.SaveSession(ctx, snap); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	s := newSession(ctx, gw, *student, snap, opts)
	if opts.Marker != nil && opts.DeviceID != "" {
		if err := opts.Marker.Set(ctx, opts.DeviceID, student.ID); err != nil {
			s.log.Warn().Err(err).Msg("Failed to set resume marker")
		}
	}

	s.log.Info().
		Int("questions", len(questions)).
		Dur("limit", opts.Limit).
		Msg("Exam session started")

	return s, nil
}

// Restore re-attaches to an in-progress attempt from its persisted snapshot.
func Restore(ctx context.Context, gw Gateway, student *model.Student, opts Options) (*Session, error) {
	if student.Status != model.StudentStatusActive {
		return nil, ErrNotActive
	}
	opts = opts.withDefaults(student.ExamCategory)

	snap, err := gw.LoadSession(ctx, student.ID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if snap == nil {
		return nil, ErrSessionNotFound
	}

	questions, err := gw.LoadQuestions(ctx, student.ExamCategory)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	snap.Questions = questions
	if snap.Answers == nil {
		snap.Answers = make(map[string]int)
	}
	if snap.CurrentQuestion < 0 || snap.CurrentQuestion >= len(questions) {
		snap.CurrentQuestion = 0
	}

	s := newSession(ctx, gw, *student, snap, opts)
	s.log.Info().
		Int64("time_remaining", snap.TimeRemaining).
		Int("answered", len(snap.Answers)).
		Msg("Exam session restored")

	return s, nil
}

func newSession(ctx context.Context, gw Gateway, student model.Student, snap *model.ExamSession, opts Options) *Session {
	index := make(map[string]int, len(snap.Questions))
	for i, q := range snap.Questions {
		index[q.ID] = i
	}

	return &Session{
		gw:   gw,
		opts: opts,
		log: opts.Logger.With().
			Str("student_id", student.ID.String()).
			Str("category", student.ExamCategory).
			Logger(),
		bg:        context.WithoutCancel(ctx),
		student:   student,
		sess:      snap,
		index:     index,
		state:     StateActive,
		done:      make(chan struct{}),
		observers: make(map[int]Observer),
	}
}

// ─── Queries ────────────────────────────────────────────────────────────────

// StudentID returns the owning student's id.
func (s *Session) StudentID() uuid.UUID {
	return s.student.ID
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Student returns a copy of the student record as the engine last saw it.
func (s *Session) Student() model.Student {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.student
}

// Snapshot returns a deep copy of the live session state.
func (s *Session) Snapshot() *model.ExamSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sess.Clone()
}

// Result returns the completion record, or nil while the exam is running.
func (s *Session) Result() *model.ExamResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// Limit is the configured exam duration.
func (s *Session) Limit() time.Duration {
	return s.opts.Limit
}

// Done is closed once the timer is cancelled, by completion or Close.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// ─── Observers ──────────────────────────────────────────────────────────────

// Subscribe registers o for notifications and returns a function that removes it.
func (s *Session) Subscribe(o Observer) func() {
	s.obsMu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = o
	s.obsMu.Unlock()

	return func() {
		s.obsMu.Lock()
		delete(s.observers, id)
		s.obsMu.Unlock()
	}
}

func (s *Session) notify(fn func(Observer)) {
	s.obsMu.RLock()
	obs := make([]Observer, 0, len(s.observers))
	for _, o := range s.observers {
		obs = append(obs, o)
	}
	s.obsMu.RUnlock()

	for _, o := range obs {
		fn(o)
	}
}

// ─── Operations ─────────────────────────────────────────────────────────────

// SelectAnswer records option for questionID and schedules an asynchronous
// snapshot write. It never moves the current position.
func (s *Session) SelectAnswer(questionID string, option int) error {
	s.mu.Lock()
	if err := s.writableLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	i, ok := s.index[questionID]
	if !ok {
		s.mu.Unlock()
		return ErrUnknownQuestion
	}
	if !s.sess.Questions[i].ValidOption(option) {
		s.mu.Unlock()
		return ErrInvalidOption
	}

	s.sess.Answers[questionID] = option
	snap := s.snapshotLocked()
	s.inflight.Add(1)
	s.mu.Unlock()

	go s.autosave(snap)
	return nil
}

// GoTo moves to question index. Navigation alone is not persisted.
func (s *Session) GoTo(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateActive {
		return ErrNotActive
	}
	if index < 0 || index >= len(s.sess.Questions) {
		return ErrInvalidQuestionIndex
	}
	s.sess.CurrentQuestion = index
	return nil
}

// SetFullscreen records the view's fullscreen flag in the snapshot.
func (s *Session) SetFullscreen(on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateActive {
		return ErrNotActive
	}
	s.sess.IsFullscreen = on
	return nil
}

// Submit finishes the exam. After a terminal state it is a no-op that
// returns the existing result. A failure leaves the session active so the
// caller may retry.
func (s *Session) Submit(ctx context.Context) (*model.ExamResult, error) {
	return s.complete(ctx, StateSubmitted)
}

// Tick advances the countdown by one TickInterval. It reports whether the
// timer should keep running.
func (s *Session) Tick(ctx context.Context) bool {
	s.mu.Lock()
	if s.state != StateActive || s.expired || s.closed {
		s.mu.Unlock()
		return false
	}
	if s.completing {
		s.mu.Unlock()
		return true
	}

	s.sess.TimeRemaining -= TickInterval.Milliseconds()
	remaining := s.sess.TimeRemaining

	var snap *model.ExamSession
	if every := s.opts.AutosaveEvery.Milliseconds(); remaining >= 0 && remaining%every == 0 {
		snap = s.snapshotLocked()
		s.inflight.Add(1)
	}
	expired := remaining <= 0
	if expired {
		s.expired = true
	}
	s.mu.Unlock()

	s.notify(func(o Observer) { o.Tick(time.Duration(remaining) * time.Millisecond) })

	if snap != nil {
		go s.autosave(snap)
	}
	if expired {
		s.log.Info().Msg("Exam time is up, submitting automatically")
		_, _ = s.complete(ctx, StateTimedOut)
		return false
	}
	return true
}

// Flush writes the current snapshot synchronously.
func (s *Session) Flush(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateActive || s.completing {
		s.mu.Unlock()
		return nil
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if err := s.gw.SaveSession(ctx, snap); err != nil {
		return fmt.Errorf("flush session: %w", err)
	}
	return nil
}

// Close cancels the timer, persists the latest snapshot while the exam is
// still running, and waits for outstanding writes. The session state is
// left as is, so a later Restore picks up where this one stopped.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.stopTimer()
	err := s.Flush(ctx)
	s.inflight.Wait()
	return err
}

// ─── Internals ──────────────────────────────────────────────────────────────

func (s *Session) writableLocked() error {
	if s.state != StateActive {
		return ErrNotActive
	}
	if s.closed {
		return ErrSessionClosed
	}
	if s.completing || s.pending != nil {
		return ErrSubmitInProgress
	}
	return nil
}

func (s *Session) snapshotLocked() *model.ExamSession {
	s.sess.UpdatedAt = s.opts.Now()
	return s.sess.Clone()
}

func (s *Session) autosave(snap *model.ExamSession) {
	defer s.inflight.Done()
	if err := s.gw.SaveSession(s.bg, snap); err != nil {
		s.log.Warn().Err(err).Int64("time_remaining", snap.TimeRemaining).Msg("Autosave failed")
		s.notify(func(o Observer) { o.AutosaveFailed(err) })
	}
}

func (s *Session) stopTimer() {
	s.stopOnce.Do(func() { close(s.done) })
}

// complete runs the scoring, persist and cleanup sequence at most once.
func (s *Session) complete(ctx context.Context, target State) (*model.ExamResult, error) {
	s.mu.Lock()
	switch {
	case s.state.Terminal():
		res := s.result
		s.mu.Unlock()
		return res, nil
	case s.state != StateActive:
		s.mu.Unlock()
		return nil, ErrNotActive
	case s.closed:
		s.mu.Unlock()
		return nil, ErrSessionClosed
	case s.completing:
		s.mu.Unlock()
		return nil, ErrSubmitInProgress
	}
	s.completing = true
	if s.expired || s.sess.TimeRemaining <= 0 {
		target = StateTimedOut
	}
	questions := s.sess.Questions
	answers := s.sess.Clone().Answers
	remaining := time.Duration(s.sess.TimeRemaining) * time.Millisecond
	current := s.sess.CurrentQuestion
	student := s.student
	pending := s.pending
	s.mu.Unlock()

	// Autosaves already in flight must land before the session is deleted.
	s.inflight.Wait()

	now := s.opts.Now()
	if pending == nil {
		res := scoring.Assemble(questions, answers, scoring.Attempt{
			Student:   &student,
			Limit:     s.opts.Limit,
			Remaining: remaining,
			TimedOut:  target == StateTimedOut,
			Now:       now,
		})
		if err := s.gw.SaveResult(ctx, &res); err != nil {
			return nil, s.abort(fmt.Errorf("save result: %w", err))
		}
		pending = &res
		s.mu.Lock()
		s.pending = pending
		s.mu.Unlock()
	}

	student.Status = model.StudentStatusCompleted
	student.EndTime = &now
	student.TimeRemaining = max(remaining.Milliseconds(), 0)
	student.CurrentQuestion = current
	if err := s.gw.UpdateStudent(ctx, &student); err != nil {
		return nil, s.abort(fmt.Errorf("update student: %w", err))
	}

	s.mu.Lock()
	s.state = target
	s.completing = false
	s.result = pending
	s.student = student
	s.mu.Unlock()
	s.stopTimer()

	if err := s.gw.DeleteSession(s.bg, student.ID); err != nil {
		s.log.Warn().Err(err).Msg("Failed to delete finished session")
	}
	if s.opts.Marker != nil && s.opts.DeviceID != "" {
		if err := s.opts.Marker.Clear(s.bg, s.opts.DeviceID); err != nil {
			s.log.Warn().Err(err).Msg("Failed to clear resume marker")
		}
	}

	s.log.Info().
		Str("state", string(target)).
		Int("score", pending.Score).
		Int("total", pending.TotalQuestions).
		Int("percentage", pending.Percentage).
		Msg("Exam completed")

	s.notify(func(o Observer) { o.Completed(pending, target) })
	return pending, nil
}

func (s *Session) abort(err error) error {
	s.mu.Lock()
	s.completing = false
	s.mu.Unlock()

	err = fmt.Errorf("%w: %w", ErrCompletionFailed, err)
	s.log.Error().Err(err).Msg("Exam completion failed, session stays active")
	s.notify(func(o Observer) { o.CompletionFailed(err) })
	return err
}
