package manager

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"diffusiond/internal/imaging"
	"diffusiond/internal/pipeline"
	"diffusiond/pkg/types"
)

type generationIDKey struct{}

// WithGenerationID tags ctx with an id used in logs and events.
func WithGenerationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, generationIDKey{}, id)
}

// GenerationIDFrom returns the id set by WithGenerationID, or "".
func GenerationIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(generationIDKey{}).(string)
	return id
}

// Generate validates req, runs one serialized inference and returns the PNG
// image base64 encoded. The pipeline is not invoked for invalid requests.
func (m *Manager) Generate(ctx context.Context, req types.GenerateRequest) (types.GenerateResponse, error) {
	params := ParamsFromRequest(req)
	if err := params.Validate(); err != nil {
		return types.GenerateResponse{}, err
	}
	pipe, info, ok := m.current()
	if !ok {
		return types.GenerateResponse{}, ErrPipelineNotLoaded
	}

	var seed int64
	if params.Seed != nil {
		seed = *params.Seed
	} else {
		seed = m.seed()
	}
	genID := GenerationIDFrom(ctx)
	log := m.log.With().Str("generation_id", genID).Logger()
	log.Info().
		Str("prompt", promptPrefix(params.Prompt, 60)).
		Int("width", params.Width).
		Int("height", params.Height).
		Int("steps", params.Steps).
		Float64("cfg", params.CFG).
		Int64("seed", seed).
		Msg("generating image")

	release, err := m.beginGeneration(ctx)
	if err != nil {
		if IsTooBusy(err) {
			log.Warn().Int("max_queue_depth", m.maxQueueDepth).Msg("generation queue full")
		}
		return types.GenerateResponse{}, err
	}
	defer release()
	// Close may have run while this request waited for the device.
	if pipe, info, ok = m.current(); !ok {
		return types.GenerateResponse{}, ErrPipelineNotLoaded
	}

	if m.genTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.genTimeout)
		defer cancel()
	}
	start := time.Now()
	m.publisher.Publish(Event{Name: "generate_start", ModelID: info.Model, Fields: map[string]any{"generation_id": genID, "seed": seed}})
	img, err := pipe.Generate(ctx, pipeline.Params{
		Prompt:         params.Prompt,
		NegativePrompt: params.NegativePrompt,
		Width:          params.Width,
		Height:         params.Height,
		Steps:          params.Steps,
		Guidance:       params.CFG,
		Seed:           seed,
	})
	if err == nil && (img == nil || (m.blankFiltered && imaging.IsBlank(img))) {
		err = pipeline.ErrContentFiltered
	}
	var b64 string
	if err == nil {
		b64, err = imaging.EncodePNGBase64(imaging.Fit(img, params.Width, params.Height))
	}
	if err != nil {
		return types.GenerateResponse{}, m.generationFailed(log, info.Model, genID, err)
	}
	log.Info().Dur("duration", time.Since(start)).Msg("image generated")
	m.publisher.Publish(Event{Name: "generate_done", ModelID: info.Model, Fields: map[string]any{"generation_id": genID, "duration": time.Since(start).String()}})
	return types.GenerateResponse{Image: b64, Seed: seed, Model: info.Model}, nil
}

// generationFailed classifies err. Safety blocks and errors carrying a status
// code pass through; anything else becomes a GenerationError.
func (m *Manager) generationFailed(log zerolog.Logger, model, genID string, err error) error {
	m.publisher.Publish(Event{Name: "generate_error", ModelID: model, Fields: map[string]any{"generation_id": genID, "error": err.Error()}})
	if errors.Is(err, pipeline.ErrClosed) {
		log.Warn().Msg("pipeline closed during generation")
		return ErrPipelineNotLoaded
	}
	if IsContentFiltered(err) {
		log.Warn().Msg("output blocked by safety filter")
		return err
	}
	log.Error().Err(err).Msg("generation failed")
	var he interface{ StatusCode() int }
	if errors.As(err, &he) {
		return err
	}
	return &GenerationError{Err: err}
}

// promptPrefix returns at most n runes of s.
func promptPrefix(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
