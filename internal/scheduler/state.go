package scheduler

import (
	"sync"
	"time"
)

// RunRecord describes the most recent run of a job.
type RunRecord struct {
	At       time.Time
	Duration time.Duration
	Err      error
}

// State is shared by every job of one Scheduler: the last run of each job and named
// marks such as cool-down timestamps. Safe for concurrent use. Volatile; a restart
// starts from empty.
type State struct {
	mu      sync.Mutex
	lastRun map[string]RunRecord
	marks   map[string]time.Time
}

func NewState() *State {
	return &State{
		lastRun: make(map[string]RunRecord),
		marks:   make(map[string]time.Time),
	}
}

func (s *State) LastRun(job string) (RunRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.lastRun[job]
	return r, ok
}

func (s *State) LastMark(key string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.marks[key]
	return t, ok
}

func (s *State) SetMark(key string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marks[key] = at
}

func (s *State) recordRun(job string, r RunRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastRun[job] = r
}
