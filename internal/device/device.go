// Package device detects accelerated hardware and derives the compute device
// class and numeric precision used by the diffusion runtime.
package device

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Class is the coarse compute device class.
type Class string

const (
	CUDA Class = "cuda"
	CPU  Class = "cpu"
)

// Precision is the numeric precision of model weights and activations.
type Precision string

const (
	FP16 Precision = "fp16"
	FP32 Precision = "fp32"
)

// GPU describes one accelerator reported by a probe.
type GPU struct {
	Name     string
	MemoryMB int
}

// Info is the outcome of device selection.
type Info struct {
	Class Class
	// HardwareAvailable reports whether a probe found an accelerator, regardless
	// of the configured override.
	HardwareAvailable bool
	Precision         Precision
	GPUs              []GPU
}

// Accelerated reports whether work runs on an accelerator.
func (i Info) Accelerated() bool { return i.Class == CUDA }

// PrecisionFor returns reduced precision on accelerated hardware, full precision otherwise.
func PrecisionFor(c Class) Precision {
	if c == CUDA {
		return FP16
	}
	return FP32
}

// Prober reports the accelerators visible to the diffusion runtime.
// An empty slice with a nil error means none are present.
type Prober interface {
	Probe(ctx context.Context) ([]GPU, error)
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(ctx context.Context) ([]GPU, error)

func (f ProberFunc) Probe(ctx context.Context) ([]GPU, error) { return f(ctx) }

// Select resolves the device class from an override ("auto", "cuda", "cpu")
// and a probe. Probe errors are treated as "no accelerator" under auto; a
// forced "cuda" is honored even when the probe finds nothing, since the probe
// may not see the runtime's hardware.
func Select(ctx context.Context, override string, p Prober) (Info, error) {
	var gpus []GPU
	var probeErr error
	if p != nil {
		gpus, probeErr = p.Probe(ctx)
	}
	info := Info{HardwareAvailable: probeErr == nil && len(gpus) > 0, GPUs: gpus}
	switch strings.ToLower(strings.TrimSpace(override)) {
	case "", "auto":
		info.Class = CPU
		if info.HardwareAvailable {
			info.Class = CUDA
		}
	case string(CUDA):
		info.Class = CUDA
	case string(CPU):
		info.Class = CPU
	default:
		return Info{}, fmt.Errorf("unknown device %q", override)
	}
	info.Precision = PrecisionFor(info.Class)
	return info, nil
}

// NvidiaSMI probes local NVIDIA GPUs through the nvidia-smi executable.
type NvidiaSMI struct {
	// Path to nvidia-smi; empty means look it up on PATH.
	Path string
	// run is swapped in tests.
	run func(ctx context.Context, name string, args ...string) ([]byte, error)
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// Probe returns no GPUs (and no error) when nvidia-smi is not installed.
func (n NvidiaSMI) Probe(ctx context.Context) ([]GPU, error) {
	path := n.Path
	if path == "" {
		p, err := exec.LookPath("nvidia-smi")
		if err != nil {
			return nil, nil
		}
		path = p
	}
	run := n.run
	if run == nil {
		run = runCommand
	}
	out, err := run(ctx, path, "--query-gpu=name,memory.total", "--format=csv,noheader,nounits")
	if err != nil {
		return nil, fmt.Errorf("nvidia-smi: %w", err)
	}
	return parseSMI(out)
}

func parseSMI(out []byte) ([]GPU, error) {
	r := csv.NewReader(bytes.NewReader(out))
	r.TrimLeadingSpace = true
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse nvidia-smi output: %w", err)
	}
	gpus := make([]GPU, 0, len(records))
	for _, rec := range records {
		if len(rec) < 2 {
			continue
		}
		mem, _ := strconv.Atoi(strings.TrimSpace(rec[1]))
		gpus = append(gpus, GPU{Name: strings.TrimSpace(rec[0]), MemoryMB: mem})
	}
	return gpus, nil
}
