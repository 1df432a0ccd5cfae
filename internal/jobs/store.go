package jobs

import (
	"sync"

	"github.com/medbillai/medbill/constants"
	"github.com/medbillai/medbill/internal/common"
	"github.com/medbillai/medbill/internal/entity"
)

// Store is the canonical in-memory job state. Both the polling handler and
// the SSE stream read from it, so the two surfaces can never disagree about
// a job. All snapshots handed out are deep copies.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*entity.Job
	subs map[string]map[*subscriber]struct{}
}

// subscriber holds a 1-slot coalescing channel: a slow reader sees the
// latest snapshot, never a backlog, and never blocks stage progression.
type subscriber struct {
	ch     chan *entity.Job
	closed bool
}

func NewStore() *Store {
	return &Store{
		jobs: make(map[string]*entity.Job),
		subs: make(map[string]map[*subscriber]struct{}),
	}
}

// Put registers a new job.
func (s *Store) Put(job *entity.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job.Clone()
}

// Get returns a snapshot of a job.
func (s *Store) Get(id string) (*entity.Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, false
	}
	return job.Clone(), true
}

// Update mutates a job under the store lock and notifies subscribers with
// the resulting snapshot. Terminal jobs are never modified again.
func (s *Store) Update(id string, fn func(*entity.Job)) (*entity.Job, error) {
	s.mu.Lock()
	job, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		return nil, common.ErrNotFound
	}
	if job.Status.Terminal() {
		s.mu.Unlock()
		return nil, common.ErrTerminalJob
	}
	fn(job)
	snap := job.Clone()
	terminal := job.Status.Terminal()
	subs := s.subs[id]
	for sub := range subs {
		sub.deliver(snap)
		if terminal {
			sub.finish()
		}
	}
	if terminal {
		delete(s.subs, id)
	}
	s.mu.Unlock()
	return snap, nil
}

// Subscribe returns a channel of job snapshots, starting with the current
// one. The channel closes after the terminal snapshot. The cancel func is
// safe to call more than once.
func (s *Store) Subscribe(id string) (<-chan *entity.Job, func(), bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, nil, false
	}

	sub := &subscriber{ch: make(chan *entity.Job, 1)}
	sub.deliver(job.Clone())
	if job.Status.Terminal() {
		sub.finish()
		return sub.ch, func() {}, true
	}

	if s.subs[id] == nil {
		s.subs[id] = make(map[*subscriber]struct{})
	}
	s.subs[id][sub] = struct{}{}

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if set, ok := s.subs[id]; ok {
			if _, present := set[sub]; present {
				delete(set, sub)
				sub.finish()
			}
		}
	}
	return sub.ch, cancel, true
}

// deliver replaces any undelivered snapshot with the newer one.
func (sub *subscriber) deliver(snap *entity.Job) {
	if sub.closed {
		return
	}
	select {
	case sub.ch <- snap:
	default:
		select {
		case <-sub.ch:
		default:
		}
		select {
		case sub.ch <- snap:
		default:
		}
	}
}

func (sub *subscriber) finish() {
	if sub.closed {
		return
	}
	sub.closed = true
	close(sub.ch)
}

// progressFor maps completed stages to a coarse percentage.
func progressFor(job *entity.Job) int {
	done := 0
	for _, st := range job.Stages {
		if st.Status == constants.StageDone {
			done++
		}
	}
	return done * 100 / len(constants.StageOrder)
}
