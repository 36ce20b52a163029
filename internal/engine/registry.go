package engine

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// OpenFunc builds a session when no live engine exists for a student.
type OpenFunc func(ctx context.Context) (*Session, error)

type entry struct {
	s    *Session
	refs int
}

// Registry keeps at most one live engine per student. Each connection
// holds a reference; the last Release closes the engine. Engines that
// finish on their own are dropped automatically.
type Registry struct {
	ctx   context.Context
	log   zerolog.Logger
	group singleflight.Group

	mu      sync.Mutex
	entries map[uuid.UUID]*entry
}

// NewRegistry creates a Registry whose timers run until ctx is cancelled.
func NewRegistry(ctx context.Context, log zerolog.Logger) *Registry {
	return &Registry{
		ctx:     ctx,
		log:     log,
		entries: make(map[uuid.UUID]*entry),
	}
}

// Acquire returns the live engine for id, opening and starting it if needed.
// Every successful Acquire must be paired with a Release.
func (r *Registry) Acquire(ctx context.Context, id uuid.UUID, open OpenFunc) (*Session, error) {
	if s, ok := r.ref(id); ok {
		return s, nil
	}

	v, err, _ := r.group.Do(id.String(), func() (any, error) {
		r.mu.Lock()
		if e, ok := r.entries[id]; ok {
			r.mu.Unlock()
			return e.s, nil
		}
		r.mu.Unlock()

		s, err := open(ctx)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		r.entries[id] = &entry{s: s}
		r.mu.Unlock()

		r.start(id, s)
		return s, nil
	})
	if err != nil {
		return nil, err
	}

	s := v.(*Session)
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok || e.s != s {
		return nil, ErrSessionClosed
	}
	e.refs++
	return s, nil
}

// Adopt registers and starts an engine created elsewhere (after Begin)
// without taking a reference. It keeps running until a connection acquires
// and releases it, it finishes, or it is removed. An existing engine for
// the same student wins.
func (r *Registry) Adopt(s *Session) *Session {
	r.mu.Lock()
	if e, ok := r.entries[s.StudentID()]; ok {
		r.mu.Unlock()
		return e.s
	}
	r.entries[s.StudentID()] = &entry{s: s}
	r.mu.Unlock()

	r.start(s.StudentID(), s)
	return s
}

func (r *Registry) start(id uuid.UUID, s *Session) {
	go s.Run(r.ctx)
	go func() {
		<-s.Done()
		r.mu.Lock()
		if e, ok := r.entries[id]; ok && e.s == s {
			delete(r.entries, id)
		}
		r.mu.Unlock()
	}()
}

func (r *Registry) ref(id uuid.UUID) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return nil, false
	}
	e.refs++
	return e.s, true
}

// Get returns the live engine for id without taking a reference.
func (r *Registry) Get(id uuid.UUID) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return nil, false
	}
	return e.s, true
}

// Release drops one reference and closes the engine when none remain.
func (r *Registry) Release(ctx context.Context, id uuid.UUID) {
	r.mu.Lock()
	e, ok := r.entries[id]
	if !ok {
		r.mu.Unlock()
		return
	}
	e.refs--
	if e.refs > 0 {
		r.mu.Unlock()
		return
	}
	delete(r.entries, id)
	r.mu.Unlock()

	r.close(ctx, e.s)
}

// Remove closes the engine for id regardless of outstanding references.
// It reports whether an engine was live.
func (r *Registry) Remove(ctx context.Context, id uuid.UUID) bool {
	r.mu.Lock()
	e, ok := r.entries[id]
	if ok {
		delete(r.entries, id)
	}
	r.mu.Unlock()

	if ok {
		r.close(ctx, e.s)
	}
	return ok
}

// Len returns the number of live engines.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// CloseAll closes every live engine. Used on shutdown.
func (r *Registry) CloseAll(ctx context.Context) {
	r.mu.Lock()
	all := make([]*Session, 0, len(r.entries))
	for id, e := range r.entries {
		all = append(all, e.s)
		delete(r.entries, id)
	}
	r.mu.Unlock()

	var wg sync.WaitGroup
	for _, s := range all {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.close(ctx, s)
		}()
	}
	wg.Wait()

	r.log.Info().Int("sessions", len(all)).Msg("Live exam sessions closed")
}

func (r *Registry) close(ctx context.Context, s *Session) {
	if err := s.Close(ctx); err != nil {
		r.log.Warn().Err(err).Str("student_id", s.StudentID().String()).Msg("Failed to flush session on close")
	}
}
