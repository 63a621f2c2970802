package core

import (
	"sync"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/scrape-jobs/internal/entity"
)

// Publisher receives progress events. notify.Hub implements it.
type Publisher interface {
	Publish(evt entity.ProgressEvent)
}

// emitter serializes event publication per job so nothing is published for a job
// after its terminal event, even when the reaper and a worker race.
type emitter struct {
	pub Publisher

	mu   sync.Mutex
	live map[uuid.UUID]*jobStream
}

type jobStream struct {
	pub      Publisher
	mu       sync.Mutex
	terminal bool
}

func newEmitter(pub Publisher) *emitter {
	return &emitter{pub: pub, live: make(map[uuid.UUID]*jobStream)}
}

// open registers the stream for a running job.
func (e *emitter) open(id uuid.UUID) *jobStream {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.live[id]
	if !ok {
		s = &jobStream{pub: e.pub}
		e.live[id] = s
	}
	return s
}

func (e *emitter) release(id uuid.UUID) {
	e.mu.Lock()
	delete(e.live, id)
	e.mu.Unlock()
}

// terminal publishes a terminal event decided outside the worker (reaper, recovery).
func (e *emitter) terminal(evt entity.ProgressEvent) {
	e.mu.Lock()
	s, ok := e.live[evt.JobID]
	e.mu.Unlock()
	if !ok {
		s = &jobStream{pub: e.pub}
	}
	s.emit(evt)
}

// emit publishes evt unless the job already announced its terminal state.
func (s *jobStream) emit(evt entity.ProgressEvent) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.terminal {
		return false
	}
	if s.pub != nil {
		s.pub.Publish(evt)
	}
	if evt.Terminal() {
		s.terminal = true
	}
	return true
}
