package manager

import "diffusiond/internal/pipeline"

// State represents the lifecycle state of the manager.
type State string

const (
	StateLoading State = "loading"
	StateReady   State = "ready"
	StateError   State = "error"
	StateClosed  State = "closed"
)

// Snapshot is a read-only projection of the manager state.
type Snapshot struct {
	State    State
	Loaded   bool
	Info     pipeline.Info
	Err      string
	QueueLen int
	QueueCap int
}
