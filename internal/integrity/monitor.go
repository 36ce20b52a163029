// Package integrity translates raw client signals from an exam view into
// violations. A Monitor holds no persisted state; what happens with a
// violation is up to the callback its owner supplies.
package integrity

import (
	"errors"
	"strings"
	"sync"
	"time"
)

// EventKind is the type of client signal being reported.
type EventKind string

const (
	EventVisibility   EventKind = "visibility"
	EventBlur         EventKind = "blur"
	EventContextMenu  EventKind = "contextmenu"
	EventKeyDown      EventKind = "keydown"
	EventBeforeUnload EventKind = "beforeunload"
)

// Event is one signal forwarded by the exam view.
type Event struct {
	Kind   EventKind `json:"kind"`
	Key    string    `json:"key,omitempty"`
	Ctrl   bool      `json:"ctrl,omitempty"`
	Shift  bool      `json:"shift,omitempty"`
	Alt    bool      `json:"alt,omitempty"`
	Meta   bool      `json:"meta,omitempty"`
	Hidden bool      `json:"hidden,omitempty"`
}

// Violation is a signal that matched the deny-list.
type Violation struct {
	Kind   EventKind `json:"kind"`
	Reason string    `json:"reason"`
	At     time.Time `json:"at"`
}

// Verdict tells the view how to handle the original event.
type Verdict struct {
	PreventDefault bool       `json:"prevent_default"`
	Prompt         bool       `json:"prompt,omitempty"`
	Violation      *Violation `json:"violation,omitempty"`
}

const (
	ReasonTabSwitch      = "Tab switching detected"
	ReasonFocusLost      = "Window lost focus"
	ReasonForbiddenKey   = "Forbidden key pressed: "
	ReasonForbiddenCombo = "Forbidden key combination detected"
)

// ViolationFunc receives every violation while the monitor is active.
type ViolationFunc func(Violation)

var ErrAlreadyStarted = errors.New("integrity monitor already started")

// Monitor is owned by exactly one exam view. Start it when the session
// becomes active and Stop it when the view goes away.
type Monitor struct {
	mu          sync.Mutex
	onViolation ViolationFunc
	active      bool
	stopped     bool
	keys        map[string]struct{}
	combos      []Combo
	now         func() time.Time
}

// Option customises a Monitor.
type Option func(*Monitor)

// WithDenyList replaces the default forbidden keys and combinations.
func WithDenyList(keys []string, combos []Combo) Option {
	return func(m *Monitor) {
		m.keys = keySet(keys)
		m.combos = combos
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) { m.now = now }
}

// NewMonitor builds an inactive monitor. onViolation must not be nil.
func NewMonitor(onViolation ViolationFunc, opts ...Option) *Monitor {
	m := &Monitor{
		onViolation: onViolation,
		keys:        keySet(DefaultForbiddenKeys),
		combos:      DefaultForbiddenCombos,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start begins routing violations to the callback. A stopped monitor
// cannot be restarted.
func (m *Monitor) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active || m.stopped {
		return ErrAlreadyStarted
	}
	m.active = true
	return nil
}

// Stop detaches the callback. It is safe to call more than once.
func (m *Monitor) Stop() {
	m.mu.Lock()
	m.active = false
	m.stopped = true
	m.onViolation = nil
	m.mu.Unlock()
}

// Active reports whether the monitor is currently routing violations.
func (m *Monitor) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Observe classifies ev. When it matches the deny-list the callback runs
// synchronously before Observe returns. An inactive monitor ignores everything.
func (m *Monitor) Observe(ev Event) Verdict {
	m.mu.Lock()
	if !m.active {
		m.mu.Unlock()
		return Verdict{}
	}
	cb := m.onViolation
	v := m.classify(ev)
	m.mu.Unlock()

	if v.Violation != nil && cb != nil {
		cb(*v.Violation)
	}
	return v
}

func (m *Monitor) classify(ev Event) Verdict {
	switch ev.Kind {
	case EventVisibility:
		if ev.Hidden {
			return m.violation(ev.Kind, ReasonTabSwitch, false)
		}
	case EventBlur:
		return m.violation(ev.Kind, ReasonFocusLost, false)
	case EventContextMenu:
		return Verdict{PreventDefault: true}
	case EventBeforeUnload:
		return Verdict{PreventDefault: true, Prompt: true}
	case EventKeyDown:
		if _, ok := m.keys[normalizeKey(ev.Key)]; ok {
			return m.violation(ev.Kind, ReasonForbiddenKey+ev.Key, true)
		}
		for _, c := range m.combos {
			if c.Matches(ev) {
				return m.violation(ev.Kind, ReasonForbiddenCombo, true)
			}
		}
	}
	return Verdict{}
}

func (m *Monitor) violation(kind EventKind, reason string, prevent bool) Verdict {
	return Verdict{
		PreventDefault: prevent,
		Violation:      &Violation{Kind: kind, Reason: reason, At: m.now()},
	}
}

func keySet(keys []string) map[string]struct{} {
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[normalizeKey(k)] = struct{}{}
	}
	return set
}

func normalizeKey(k string) string {
	return strings.ToUpper(strings.TrimSpace(k))
}
