package builder

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

// Saver persists a form snapshot and returns where it went (a file path, a template id).
type Saver interface {
	Save(ctx context.Context, f Form) (string, error)
}

// SaveResult tells the caller which saver ended up holding the form.
type SaveResult struct {
	Location string `json:"location"`
	Fallback bool   `json:"fallback"`
}

type subscriber struct {
	id int
	fn func(Form)
}

// Store owns the current snapshot and is safe for concurrent use. Subscribers run
// outside the lock, in subscription order, once per accepted dispatch and in dispatch
// order. A subscriber may dispatch: the nested snapshot is queued and delivered after
// the current round, so the nested Dispatch returns before its subscribers run.
type Store struct {
	mu         sync.Mutex
	form       Form
	subs       []subscriber
	nextSub    int
	pending    []Form
	delivering bool
	saver      Saver
	fallback   Saver
	now        func() time.Time
}

// NewStore saves through saver and falls back to fallback when saver fails or is nil.
func NewStore(saver, fallback Saver) *Store {
	return &Store{
		saver:    saver,
		fallback: fallback,
		now:      time.Now,
	}
}

// Dispatch reduces action over the current snapshot. A rejected action leaves the
// snapshot as it was.
func (s *Store) Dispatch(action Action) (Form, error) {
	s.mu.Lock()
	next, err := Reduce(s.form, action, s.now())
	if err != nil {
		s.mu.Unlock()
		return Form{}, err
	}
	s.form = next
	s.pending = append(s.pending, next.clone())
	if s.delivering {
		s.mu.Unlock()
		return next.clone(), nil
	}
	s.delivering = true
	s.mu.Unlock()

	s.deliver()
	return next.clone(), nil
}

// deliver drains the pending queue; only one goroutine delivers at a time.
func (s *Store) deliver() {
	defer func() {
		if r := recover(); r != nil {
			s.mu.Lock()
			s.delivering = false
			s.pending = nil
			s.mu.Unlock()
			panic(r)
		}
	}()

	for {
		s.mu.Lock()
		if len(s.pending) == 0 {
			s.delivering = false
			s.mu.Unlock()
			return
		}
		f := s.pending[0]
		s.pending = s.pending[1:]
		subs := append([]subscriber(nil), s.subs...)
		s.mu.Unlock()

		for _, sub := range subs {
			sub.fn(f.clone())
		}
	}
}

// Snapshot returns a copy of the current form; ok is false before any form exists.
func (s *Store) Snapshot() (Form, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.form.clone(), !s.form.IsZero()
}

// Replace installs f as the current snapshot, e.g. after loading it from disk.
func (s *Store) Replace(f Form) {
	s.mu.Lock()
	s.form = f.clone()
	s.mu.Unlock()
}

// Subscribe registers fn for every accepted dispatch. The returned func unregisters it.
func (s *Store) Subscribe(fn func(Form)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subs = append(s.subs, subscriber{id: id, fn: fn})
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.subs {
			if sub.id == id {
				s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
				return
			}
		}
	}
}

// Save persists the current snapshot. Saving never happens implicitly on dispatch.
func (s *Store) Save(ctx context.Context) (SaveResult, error) {
	f, ok := s.Snapshot()
	if !ok {
		return SaveResult{}, ErrNoForm
	}

	if s.saver != nil {
		loc, err := s.saver.Save(ctx, f)
		if err == nil {
			return SaveResult{Location: loc}, nil
		}
		if s.fallback == nil {
			return SaveResult{}, err
		}
		log.Printf("[builder] save form %s failed, falling back to local copy: %v", f.ID, err)
	}
	if s.fallback == nil {
		return SaveResult{}, fmt.Errorf("no saver configured for form %s", f.ID)
	}

	loc, err := s.fallback.Save(ctx, f)
	if err != nil {
		return SaveResult{}, err
	}
	return SaveResult{Location: loc, Fallback: s.saver != nil}, nil
}
