package manager

import "github.com/rs/zerolog"

// LogPublisher writes events as structured log lines.
type LogPublisher struct {
	log zerolog.Logger
}

func NewLogPublisher(log zerolog.Logger) *LogPublisher {
	return &LogPublisher{log: log.With().Str("component", "manager").Logger()}
}

func (p *LogPublisher) Publish(e Event) {
	ev := p.log.Debug()
	switch e.Name {
	case "load_error", "generate_error":
		ev = p.log.Warn()
	case "load_done", "unload_done":
		ev = p.log.Info()
	}
	if e.ModelID != "" {
		ev = ev.Str("model", e.ModelID)
	}
	ev.Fields(e.Fields).Str("event", e.Name).Msg("manager event")
}
