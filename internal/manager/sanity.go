package manager

import (
	"context"

	"diffusiond/internal/device"
	"diffusiond/internal/pipeline"
)

// SanityReport describes what Load would choose, without loading anything.
type SanityReport struct {
	Backend           string       `json:"backend"`
	Device            string       `json:"device"`
	Precision         string       `json:"precision"`
	HardwareAvailable bool         `json:"hardware_available"`
	GPUs              []device.GPU `json:"gpus,omitempty"`
	Variant           string       `json:"variant"`
	Model             string       `json:"model"`
	Error             string       `json:"error,omitempty"`
}

// SanityCheck probes the backend's devices and reports the variant selection.
// It does not mutate state and is safe to call at any time.
func SanityCheck(ctx context.Context, b pipeline.Backend, o pipeline.Options) SanityReport {
	r := SanityReport{Backend: b.Name()}
	gpus, probeErr := b.Prober().Probe(ctx)
	if probeErr != nil {
		r.Error = probeErr.Error()
	}
	probed := device.ProberFunc(func(context.Context) ([]device.GPU, error) { return gpus, probeErr })
	dev, err := device.Select(ctx, o.Device, probed)
	if err != nil {
		r.Error = err.Error()
		return r
	}
	variant, model := pipeline.SelectVariant(o, dev)
	r.Device = string(dev.Class)
	r.Precision = string(dev.Precision)
	r.HardwareAvailable = dev.HardwareAvailable
	r.GPUs = dev.GPUs
	r.Variant = string(variant)
	r.Model = model
	return r
}
