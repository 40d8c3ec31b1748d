package manager

import (
	"context"
	"errors"
	"time"

	"diffusiond/internal/pipeline"
)

// Load initializes the pipeline once. It must complete before the HTTP
// listener opens; any error is fatal to startup.
func (m *Manager) Load(ctx context.Context) error {
	m.mu.Lock()
	switch {
	case m.state == StateClosed:
		m.mu.Unlock()
		return errors.New("manager closed")
	case m.pipe != nil:
		m.mu.Unlock()
		return nil
	case m.backend == nil:
		m.mu.Unlock()
		return errors.New("no backend configured")
	}
	m.state = StateLoading
	m.mu.Unlock()

	if m.loadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.loadTimeout)
		defer cancel()
	}
	start := time.Now()
	m.publisher.Publish(Event{Name: "load_start", Fields: map[string]any{"backend": m.backend.Name()}})
	p, err := pipeline.Load(ctx, m.backend, m.opts, m.log)
	if err != nil {
		m.mu.Lock()
		m.state = StateError
		m.err = err.Error()
		m.mu.Unlock()
		m.publisher.Publish(Event{Name: "load_error", Fields: map[string]any{"error": err.Error()}})
		return err
	}
	info := p.Info()

	m.mu.Lock()
	if m.state == StateClosed {
		m.mu.Unlock()
		_ = p.Close()
		return errors.New("manager closed during load")
	}
	m.pipe = p
	m.info = info
	m.state = StateReady
	m.err = ""
	m.mu.Unlock()
	m.publisher.Publish(Event{Name: "load_done", ModelID: info.Model, Fields: map[string]any{
		"variant":   string(info.Variant),
		"device":    string(info.Device.Class),
		"precision": string(info.Device.Precision),
		"duration":  time.Since(start).String(),
	}})
	return nil
}
