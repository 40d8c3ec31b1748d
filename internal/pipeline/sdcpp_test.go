package pipeline

import (
	"context"
	"errors"
	"image"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"diffusiond/internal/device"
	"diffusiond/internal/imaging"
)

func newTestSDCPP(t *testing.T) (*SDCPPBackend, *[][]string) {
	t.Helper()
	dir := t.TempDir()
	bin := filepath.Join(dir, "sd")
	if err := os.WriteFile(bin, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	models := filepath.Join(dir, "models")
	if err := os.MkdirAll(models, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(models, "stable-diffusion-v1-5.safetensors"), []byte("weights"), 0o644); err != nil {
		t.Fatal(err)
	}
	var calls [][]string
	b := NewSDCPPBackend(bin, models, 4, zerolog.Nop())
	b.TempDir = dir
	b.DeviceProber = device.ProberFunc(func(context.Context) ([]device.GPU, error) { return nil, nil })
	b.run = func(ctx context.Context, _ string, args []string) ([]byte, error) {
		calls = append(calls, args)
		if len(args) == 1 && args[0] == "--version" {
			return []byte("stable-diffusion.cpp version master-1e0d283, commit 1e0d283\n"), nil
		}
		i := slices.Index(args, "-o")
		if i < 0 {
			return nil, errors.New("no -o")
		}
		data, err := imaging.EncodePNG(image.NewNRGBA(image.Rect(0, 0, 512, 512)))
		if err != nil {
			return nil, err
		}
		return nil, os.WriteFile(args[i+1], data, 0o644)
	}
	return b, &calls
}

func argValue(args []string, flag string) string {
	i := slices.Index(args, flag)
	if i < 0 || i+1 >= len(args) {
		return ""
	}
	return args[i+1]
}

func TestSDCPPLoadAndGenerate(t *testing.T) {
	b, calls := newTestSDCPP(t)
	p, err := Load(context.Background(), b, Options{
		SDXLModel:        "stabilityai/sd_xl_base_1.0",
		SD15Model:        "runwayml/stable-diffusion-v1-5",
		UseSDXL:          true,
		Device:           "auto",
		AttentionSlicing: true,
		VAESlicing:       true,
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	info := p.Info()
	if info.Variant != SD15 || info.LibraryVersion != "stable-diffusion.cpp version master-1e0d283, commit 1e0d283" {
		t.Fatalf("unexpected info: %+v", info)
	}
	if info.Scheduler != "dpm++2m" || !info.VAESlicing || !info.AttentionSlicing {
		t.Fatalf("unexpected options: %+v", info)
	}

	img, err := p.Generate(context.Background(), Params{
		Prompt: "a lighthouse", NegativePrompt: "text", Width: 512, Height: 512, Steps: 20, Guidance: 7.5, Seed: 1234,
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if img == nil || img.Bounds().Dx() != 512 {
		t.Fatalf("unexpected image %v", img)
	}
	args := (*calls)[len(*calls)-1]
	for flag, want := range map[string]string{
		"-p":                "a lighthouse",
		"-n":                "text",
		"-s":                "1234",
		"--steps":           "20",
		"--cfg-scale":       "7.5",
		"--sampling-method": "dpm++2m",
		"--type":            "f32",
		"-t":                "4",
	} {
		if got := argValue(args, flag); got != want {
			t.Fatalf("%s = %q, want %q (args %v)", flag, got, want, args)
		}
	}
	if !strings.HasSuffix(argValue(args, "-m"), "stable-diffusion-v1-5.safetensors") {
		t.Fatalf("model path not resolved: %v", args)
	}
	if !slices.Contains(args, "--vae-tiling") || !slices.Contains(args, "--diffusion-fa") {
		t.Fatalf("memory flags missing: %v", args)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := p.Generate(context.Background(), Params{}); !errors.Is(err, ErrClosed) {
		t.Fatalf("want ErrClosed, got %v", err)
	}
}

func TestSDCPPForcedCUDAUsesFP16(t *testing.T) {
	b, calls := newTestSDCPP(t)
	p, err := b.Load(context.Background(), Spec{
		Model:   "runwayml/stable-diffusion-v1-5",
		Variant: SD15,
		Device:  device.Info{Class: device.CUDA, Precision: device.FP16},
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := p.Generate(context.Background(), Params{Prompt: "x", Width: 512, Height: 512, Steps: 10, Guidance: 1}); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	args := (*calls)[len(*calls)-1]
	if argValue(args, "--type") != "f16" || slices.Contains(args, "--vae-on-cpu") {
		t.Fatalf("unexpected args for cuda: %v", args)
	}
}

func TestSDCPPMissingModel(t *testing.T) {
	b, _ := newTestSDCPP(t)
	_, err := b.Load(context.Background(), Spec{Model: "org/missing"})
	if !IsModelNotFound(err) {
		t.Fatalf("want model not found, got %v", err)
	}
	if !strings.Contains(err.Error(), "stable-diffusion-v1-5") {
		t.Fatalf("available models not listed: %v", err)
	}
}

func TestSDCPPMissingExecutable(t *testing.T) {
	b, _ := newTestSDCPP(t)
	b.Bin = filepath.Join(t.TempDir(), "nope")
	if _, err := b.Load(context.Background(), Spec{Model: "stable-diffusion-v1-5"}); err == nil {
		t.Fatalf("expected error for missing executable")
	}
}

func TestSDCPPProcessFailure(t *testing.T) {
	b, _ := newTestSDCPP(t)
	p, err := b.Load(context.Background(), Spec{Model: "stable-diffusion-v1-5"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	b.run = func(context.Context, string, []string) ([]byte, error) {
		return []byte("ggml: out of memory"), errors.New("exit status 1")
	}
	_, err = p.Generate(context.Background(), Params{Prompt: "x"})
	if err == nil || !strings.Contains(err.Error(), "out of memory") {
		t.Fatalf("want stderr in error, got %v", err)
	}

	b.run = func(context.Context, string, []string) ([]byte, error) { return nil, nil }
	if _, err := p.Generate(context.Background(), Params{Prompt: "x"}); err == nil || !strings.Contains(err.Error(), "no image") {
		t.Fatalf("want missing output error, got %v", err)
	}
}

func TestSDCPPContextCanceled(t *testing.T) {
	b, _ := newTestSDCPP(t)
	p, err := b.Load(context.Background(), Spec{Model: "stable-diffusion-v1-5"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	b.run = func(ctx context.Context, _ string, _ []string) ([]byte, error) {
		<-ctx.Done()
		return nil, errors.New("signal: killed")
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.Generate(ctx, Params{Prompt: "x"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
}

func TestParseSDVersion(t *testing.T) {
	if got := parseSDVersion([]byte("\n  v1.2.3\nextra")); got != "v1.2.3" {
		t.Fatalf("got %q", got)
	}
	if got := parseSDVersion(nil); got != "stable-diffusion.cpp" {
		t.Fatalf("got %q", got)
	}
}
