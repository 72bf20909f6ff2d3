package store

import "sync"

// State holds the live configuration aggregate. Every writer commits through
// Update, so the read-modify-write always sees the snapshot current at commit
// time; a slow support-AI reply cannot overwrite a faster builder turn.
type State struct {
	mu       sync.Mutex
	cfg      Configuration
	onCommit func(Configuration)
}

// NewState wraps an initial configuration.
func NewState(cfg Configuration) *State {
	return &State{cfg: cfg.Clone()}
}

// SetCommitHook registers a callback invoked after every commit with a private
// copy of the new configuration. Used for persistence.
func (s *State) SetCommitHook(fn func(Configuration)) {
	s.mu.Lock()
	s.onCommit = fn
	s.mu.Unlock()
}

// Snapshot returns a copy of the current configuration.
func (s *State) Snapshot() Configuration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Clone()
}

// Update applies fn to the latest configuration under the lock and commits the
// result. fn receives a private copy and may mutate it freely.
func (s *State) Update(fn func(Configuration) Configuration) Configuration {
	s.mu.Lock()
	next := fn(s.cfg.Clone())
	s.cfg = next
	hook := s.onCommit
	snap := next.Clone()
	s.mu.Unlock()

	if hook != nil {
		hook(snap)
	}
	return snap
}
