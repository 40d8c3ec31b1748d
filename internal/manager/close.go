package manager

// Close releases the pipeline. It is idempotent; Generate returns
// ErrPipelineNotLoaded afterwards.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.state == StateClosed {
		m.mu.Unlock()
		return nil
	}
	p := m.pipe
	model := m.info.Model
	m.pipe = nil
	m.state = StateClosed
	m.mu.Unlock()

	if p == nil {
		return nil
	}
	m.publisher.Publish(Event{Name: "unload_start", ModelID: model})
	err := p.Close()
	if err != nil {
		m.log.Warn().Err(err).Msg("pipeline close failed")
	}
	m.publisher.Publish(Event{Name: "unload_done", ModelID: model})
	return err
}

// Shutdown lets a dependency injector close the manager.
func (m *Manager) Shutdown() error { return m.Close() }
