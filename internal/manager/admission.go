package manager

import "context"

// beginGeneration reserves a queue slot and then the single device slot.
// A full queue fails fast with tooBusyError; waiting for the device honors ctx.
// Returns a release func to be deferred.
func (m *Manager) beginGeneration(ctx context.Context) (func(), error) {
	if err := ctx.Err(); err != nil {
		return func() {}, err
	}
	select {
	case m.queueCh <- struct{}{}:
	default:
		return func() {}, tooBusyError{depth: m.maxQueueDepth}
	}
	if err := m.sem.Acquire(ctx, 1); err != nil {
		<-m.queueCh
		return func() {}, err
	}
	return func() { m.sem.Release(1); <-m.queueCh }, nil
}
