// Package pipeline loads a text-to-image diffusion runtime once at startup and
// exposes it as a Pipeline.
//
// The diffusion math runs inside an external runtime; this package only picks
// the model variant and device, configures the runtime, and shuttles
// parameters and images across the boundary. Backends:
//
//   - webui: an HTTP server speaking the sdapi/v1 protocol (AUTOMATIC1111,
//     Forge, SD.Next). See webui.go.
//   - sdcpp: the stable-diffusion.cpp "sd" executable, one subprocess per
//     generation. See sdcpp.go.
package pipeline

import (
	"context"
	"image"

	"diffusiond/internal/device"
)

// Variant is the model family.
type Variant string

const (
	SDXL Variant = "SDXL"
	SD15 Variant = "SD1.5"
)

// Scheduler names the sampling solver installed at load time.
const Scheduler = "DPM++ 2M"

// Params are validated generation inputs.
type Params struct {
	Prompt         string
	NegativePrompt string
	Width          int
	Height         int
	Steps          int
	Guidance       float64
	Seed           int64
}

// Info describes a loaded pipeline.
type Info struct {
	Backend        string
	Model          string
	Variant        Variant
	Device         device.Info
	LibraryVersion string
	Scheduler      string
	// Memory options actually applied.
	AttentionSlicing bool
	VAESlicing       bool
	// SafetyChecker reports whether the runtime screens outputs.
	SafetyChecker bool
}

// Pipeline is a loaded model. It is shared by all requests and is read-only
// after load; callers serialize Generate calls per device.
type Pipeline interface {
	// Generate runs one text-to-image inference. A nil image with a nil error
	// means the runtime's safety filter suppressed the output.
	Generate(ctx context.Context, p Params) (image.Image, error)
	Info() Info
	// Close releases the runtime. It is safe to call more than once.
	Close() error
}

// Spec is what the loader asks a backend to load.
type Spec struct {
	Model   string
	Variant Variant
	Device  device.Info
	// Requested memory options; backends apply those they support.
	AttentionSlicing bool
	VAESlicing       bool
}

// Backend loads pipelines on a particular runtime.
type Backend interface {
	Name() string
	// Prober reports the accelerators visible to the runtime.
	Prober() device.Prober
	Load(ctx context.Context, spec Spec) (Pipeline, error)
}
