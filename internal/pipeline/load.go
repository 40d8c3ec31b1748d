package pipeline

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"diffusiond/internal/device"
)

// Options selects what to load. It mirrors the model section of the service
// configuration.
type Options struct {
	SDXLModel        string
	SD15Model        string
	UseSDXL          bool
	Device           string // auto, cuda or cpu
	AttentionSlicing bool
	VAESlicing       bool
}

// SelectVariant prefers SDXL only when it is enabled and the device is
// accelerated; otherwise it falls back to SD 1.5.
func SelectVariant(o Options, dev device.Info) (Variant, string) {
	if o.UseSDXL && dev.Accelerated() {
		return SDXL, o.SDXLModel
	}
	return SD15, o.SD15Model
}

// Load selects device and variant, then loads the model on b. Any error is
// fatal to startup.
func Load(ctx context.Context, b Backend, o Options, log zerolog.Logger) (Pipeline, error) {
	dev, err := device.Select(ctx, o.Device, b.Prober())
	if err != nil {
		return nil, fmt.Errorf("select device: %w", err)
	}
	variant, model := SelectVariant(o, dev)
	log.Info().
		Str("backend", b.Name()).
		Str("device", string(dev.Class)).
		Bool("hardware_available", dev.HardwareAvailable).
		Str("precision", string(dev.Precision)).
		Bool("use_sdxl", o.UseSDXL).
		Msg("initializing diffusion pipeline")
	if o.UseSDXL && variant != SDXL {
		log.Info().Msg("SDXL requested without accelerated hardware, falling back to SD 1.5")
	}
	log.Info().Str("variant", string(variant)).Str("model", model).Msg("loading model")

	p, err := b.Load(ctx, Spec{
		Model:            model,
		Variant:          variant,
		Device:           dev,
		AttentionSlicing: o.AttentionSlicing,
		VAESlicing:       o.VAESlicing,
	})
	if err != nil {
		return nil, fmt.Errorf("could not load diffusion model %s: %w", model, err)
	}

	info := p.Info()
	if info.AttentionSlicing {
		log.Info().Msg("attention slicing enabled")
	}
	if info.VAESlicing {
		log.Info().Msg("VAE slicing enabled")
	}
	if o.VAESlicing && !info.VAESlicing {
		log.Debug().Str("backend", b.Name()).Msg("VAE slicing not supported, skipped")
	}
	log.Info().Str("scheduler", info.Scheduler).Msg("sampling scheduler configured")
	if !info.SafetyChecker {
		log.Warn().Msg("safety checker not loaded, consider enabling one for production")
	}
	log.Info().Str("model", info.Model).Str("library_version", info.LibraryVersion).Msg("pipeline loaded")
	return p, nil
}
