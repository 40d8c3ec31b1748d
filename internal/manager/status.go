package manager

import (
	"diffusiond/internal/pipeline"
	"diffusiond/pkg/types"
)

// Snapshot returns a read-only view of the manager state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Snapshot{
		State:    m.state,
		Loaded:   m.pipe != nil,
		Info:     m.info,
		Err:      m.err,
		QueueLen: len(m.queueCh),
		QueueCap: cap(m.queueCh),
	}
}

// intendedVariant is the variant the configuration asks for before load.
func (m *Manager) intendedVariant() (pipeline.Variant, string) {
	if m.opts.UseSDXL {
		return pipeline.SDXL, m.opts.SDXLModel
	}
	return pipeline.SD15, m.opts.SD15Model
}

// Root builds the GET / response.
func (m *Manager) Root() types.RootResponse {
	s := m.Snapshot()
	if !s.Loaded {
		_, model := m.intendedVariant()
		return types.RootResponse{Status: string(s.State), Device: m.configuredDevice(), Model: model}
	}
	return types.RootResponse{
		Status:         "ready",
		Device:         string(s.Info.Device.Class),
		Model:          s.Info.Model,
		LibraryVersion: s.Info.LibraryVersion,
	}
}

// Health builds the GET /health response. Before load it reports the
// configured intent without error.
func (m *Manager) Health() types.HealthResponse {
	s := m.Snapshot()
	if !s.Loaded {
		variant, _ := m.intendedVariant()
		return types.HealthResponse{
			Status:         "healthy",
			PipelineLoaded: false,
			Device:         m.configuredDevice(),
			ModelType:      string(variant),
		}
	}
	return types.HealthResponse{
		Status:            "healthy",
		PipelineLoaded:    true,
		Device:            string(s.Info.Device.Class),
		HardwareAvailable: s.Info.Device.HardwareAvailable,
		ModelType:         string(s.Info.Variant),
	}
}

func (m *Manager) configuredDevice() string {
	if m.opts.Device == "" {
		return "auto"
	}
	return m.opts.Device
}
