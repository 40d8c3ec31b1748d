package manager

import (
	"context"
	"image"
	"image/color"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"diffusiond/internal/device"
	"diffusiond/internal/pipeline"
	"diffusiond/pkg/types"
)

// fakeBackend loads fakePipelines and reports gpus.
type fakeBackend struct {
	gpus    []device.GPU
	loadErr error
	pipe    *fakePipeline
}

func (b *fakeBackend) Name() string { return "fake" }

func (b *fakeBackend) Prober() device.Prober {
	return device.ProberFunc(func(context.Context) ([]device.GPU, error) { return b.gpus, nil })
}

func (b *fakeBackend) Load(_ context.Context, s pipeline.Spec) (pipeline.Pipeline, error) {
	if b.loadErr != nil {
		return nil, b.loadErr
	}
	if b.pipe == nil {
		b.pipe = &fakePipeline{}
	}
	b.pipe.info = pipeline.Info{Backend: "fake", Model: s.Model, Variant: s.Variant, Device: s.Device, LibraryVersion: "fake-1.0", Scheduler: pipeline.Scheduler}
	return b.pipe, nil
}

// fakePipeline renders a solid image of the requested size unless gen is set.
type fakePipeline struct {
	info   pipeline.Info
	gen    func(ctx context.Context, p pipeline.Params) (image.Image, error)
	calls  atomic.Int32
	closes atomic.Int32

	mu   sync.Mutex
	last pipeline.Params
}

func (p *fakePipeline) Generate(ctx context.Context, in pipeline.Params) (image.Image, error) {
	p.calls.Add(1)
	p.mu.Lock()
	p.last = in
	p.mu.Unlock()
	if p.gen != nil {
		return p.gen(ctx, in)
	}
	return solid(in.Width, in.Height, color.NRGBA{R: uint8(in.Seed), G: 90, B: 200, A: 255}), nil
}

func (p *fakePipeline) Info() pipeline.Info { return p.info }

func (p *fakePipeline) Close() error {
	p.closes.Add(1)
	return nil
}

func (p *fakePipeline) lastParams() pipeline.Params {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

func solid(w, h int, c color.Color) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func testOptions() pipeline.Options {
	return pipeline.Options{
		SDXLModel: "stabilityai/stable-diffusion-xl-base-1.0",
		SD15Model: "runwayml/stable-diffusion-v1-5",
		UseSDXL:   true,
		Device:    "auto",
	}
}

// newLoaded returns a loaded manager on a fake GPU backend.
func newLoaded(t *testing.T, cfg ManagerConfig) (*Manager, *fakePipeline) {
	t.Helper()
	b := &fakeBackend{gpus: []device.GPU{{Name: "test", MemoryMB: 8000}}, pipe: &fakePipeline{}}
	cfg.Backend = b
	if cfg.Options == (pipeline.Options{}) {
		cfg.Options = testOptions()
	}
	cfg.Logger = zerolog.Nop()
	m := NewWithConfig(cfg)
	if err := m.Load(testCtx(t)); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return m, b.pipe
}

func ptr[T any](v T) *T { return &v }

func smallRequest(prompt string) types.GenerateRequest {
	return types.GenerateRequest{Prompt: prompt, Width: ptr(512), Height: ptr(512), Steps: ptr(10)}
}

// testCtx returns a context with a short timeout, canceled on test cleanup.
func testCtx(t *testing.T) context.Context {
	t.Helper()
	c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return c
}
