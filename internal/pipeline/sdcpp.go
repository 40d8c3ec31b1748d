package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"diffusiond/internal/common/fsutil"
	"diffusiond/internal/device"
	"diffusiond/internal/imaging"
	"diffusiond/internal/registry"
)

// sdcppSampler is the sd executable's name for the multistep DPM-Solver++ sampler.
const sdcppSampler = "dpm++2m"

// runner executes one sd invocation and returns combined stderr on failure.
type runner func(ctx context.Context, bin string, args []string) ([]byte, error)

// SDCPPBackend drives the stable-diffusion.cpp "sd" executable.
type SDCPPBackend struct {
	Bin       string
	ModelsDir string
	Threads   int
	// TempDir holds per-request output files; empty means os.TempDir.
	TempDir string
	// DeviceProber defaults to the local nvidia-smi probe.
	DeviceProber device.Prober

	log zerolog.Logger
	run runner
}

// NewSDCPPBackend constructs a backend for the sd executable bin with
// checkpoints resolved from modelsDir.
func NewSDCPPBackend(bin, modelsDir string, threads int, log zerolog.Logger) *SDCPPBackend {
	return &SDCPPBackend{
		Bin:       bin,
		ModelsDir: modelsDir,
		Threads:   threads,
		log:       log.With().Str("backend", "sdcpp").Logger(),
		run:       runProcess,
	}
}

func runProcess(ctx context.Context, bin string, args []string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stdout = &stderr
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stderr.Bytes(), err
}

func (b *SDCPPBackend) Name() string { return "sdcpp" }

func (b *SDCPPBackend) Prober() device.Prober {
	if b.DeviceProber != nil {
		return b.DeviceProber
	}
	return device.NvidiaSMI{}
}

// Load resolves the executable and checkpoint and records the runtime version.
// Weights are read by each sd invocation.
func (b *SDCPPBackend) Load(ctx context.Context, spec Spec) (Pipeline, error) {
	bin, err := fsutil.ResolveExecutable(b.Bin)
	if err != nil {
		return nil, fmt.Errorf("sd executable: %w", err)
	}
	dir, err := fsutil.ExpandHome(b.ModelsDir)
	if err != nil {
		return nil, err
	}
	modelPath, err := registry.Resolve(dir, spec.Model)
	if err != nil {
		return nil, ModelNotFoundError{Model: spec.Model, Available: checkpointIDs(dir)}
	}
	out, err := b.run(ctx, bin, []string{"--version"})
	if err != nil {
		return nil, fmt.Errorf("sd --version: %w: %s", err, tail(out, 512))
	}
	version := parseSDVersion(out)

	p := &sdcppPipeline{
		b:         b,
		bin:       bin,
		modelPath: modelPath,
		info: Info{
			Backend:          b.Name(),
			Model:            spec.Model,
			Variant:          spec.Variant,
			Device:           spec.Device,
			LibraryVersion:   version,
			Scheduler:        sdcppSampler,
			AttentionSlicing: spec.AttentionSlicing,
			VAESlicing:       spec.VAESlicing,
		},
	}
	b.log.Info().Str("path", modelPath).Str("version", version).Msg("sd executable ready")
	return p, nil
}

func checkpointIDs(dir string) []string {
	cks, err := registry.LoadDir(dir)
	if err != nil {
		return nil
	}
	ids := make([]string, 0, len(cks))
	for _, ck := range cks {
		ids = append(ids, ck.ID)
	}
	return ids
}

// parseSDVersion keeps the first non-empty line of sd --version output.
func parseSDVersion(out []byte) string {
	for _, line := range strings.Split(string(out), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return "stable-diffusion.cpp"
}

func tail(b []byte, n int) string {
	s := strings.TrimSpace(string(b))
	if len(s) > n {
		s = s[len(s)-n:]
	}
	return s
}

type sdcppPipeline struct {
	b         *SDCPPBackend
	bin       string
	modelPath string
	info      Info

	mu     sync.Mutex
	closed bool
	cancel context.CancelFunc
}

func (p *sdcppPipeline) Info() Info { return p.info }

// args builds the sd command line for one generation writing to out.
func (p *sdcppPipeline) args(in Params, out string) []string {
	a := []string{
		"-m", p.modelPath,
		"-p", in.Prompt,
		"-n", in.NegativePrompt,
		"-W", strconv.Itoa(in.Width),
		"-H", strconv.Itoa(in.Height),
		"--steps", strconv.Itoa(in.Steps),
		"--cfg-scale", strconv.FormatFloat(in.Guidance, 'f', -1, 64),
		"-s", strconv.FormatInt(in.Seed, 10),
		"--sampling-method", sdcppSampler,
		"-o", out,
	}
	if p.info.Device.Precision == device.FP16 {
		a = append(a, "--type", "f16")
	} else {
		a = append(a, "--type", "f32")
	}
	if p.info.AttentionSlicing {
		a = append(a, "--diffusion-fa")
	}
	if p.info.VAESlicing {
		a = append(a, "--vae-tiling")
	}
	if !p.info.Device.Accelerated() {
		// Keep weights and VAE on the CPU backend.
		a = append(a, "--clip-on-cpu", "--vae-on-cpu")
	}
	if p.b.Threads > 0 {
		a = append(a, "-t", strconv.Itoa(p.b.Threads))
	}
	return a
}

func (p *sdcppPipeline) Generate(ctx context.Context, in Params) (image.Image, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrClosed
	}
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		p.cancel = nil
		p.mu.Unlock()
		cancel()
	}()

	dir, err := os.MkdirTemp(p.b.TempDir, "diffusiond-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)
	out := filepath.Join(dir, "out.png")

	p.b.log.Debug().Int64("seed", in.Seed).Int("steps", in.Steps).Msg("running sd")
	stderr, err := p.b.run(ctx, p.bin, p.args(in, out))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("sd exited: %w: %s", err, tail(stderr, 1024))
	}
	data, err := os.ReadFile(out)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("sd produced no image: %s", tail(stderr, 1024))
	}
	if err != nil {
		return nil, err
	}
	return imaging.Decode(data)
}

// Close stops an in-flight sd process.
func (p *sdcppPipeline) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	if p.cancel != nil {
		p.cancel()
	}
	return nil
}
