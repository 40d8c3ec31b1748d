package manager

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"diffusiond/internal/pipeline"
)

// Manager owns the single pipeline. Generation is serialized through sem;
// queueCh bounds how many requests may wait for it.
type Manager struct {
	mu    sync.RWMutex
	state State
	pipe  pipeline.Pipeline
	info  pipeline.Info
	err   string

	backend       pipeline.Backend
	opts          pipeline.Options
	loadTimeout   time.Duration
	genTimeout    time.Duration
	blankFiltered bool
	publisher     EventPublisher
	log           zerolog.Logger
	seed          func() int64

	// Admission
	maxQueueDepth int
	queueCh       chan struct{}
	sem           *semaphore.Weighted
}

// Ready reports whether a pipeline is loaded and accepting work.
func (m *Manager) Ready() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state == StateReady && m.pipe != nil
}

// Info returns the load info of the current pipeline, if any.
func (m *Manager) Info() (pipeline.Info, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.info, m.pipe != nil
}

// current returns the pipeline when ready.
func (m *Manager) current() (pipeline.Pipeline, pipeline.Info, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state != StateReady || m.pipe == nil {
		return nil, pipeline.Info{}, false
	}
	return m.pipe, m.info, true
}
