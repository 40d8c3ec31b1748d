package pipeline

import (
	"context"
	"encoding/json"
	"image"
	"image/color"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"diffusiond/internal/device"
	"diffusiond/internal/imaging"
)

type fakeWebUI struct {
	mu       sync.Mutex
	cuda     bool
	noImages bool
	options  map[string]any
	txt2img  []map[string]any
	unloaded int
	authUser string
	authPass string
}

func (f *fakeWebUI) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/sdapi/v1/memory", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		cuda := f.cuda
		f.mu.Unlock()
		if cuda {
			_, _ = w.Write([]byte(`{"ram":{"total":1},"cuda":{"system":{"free":1,"used":1,"total":25769803776}}}`))
			return
		}
		_, _ = w.Write([]byte(`{"ram":{"total":1},"cuda":{"error":"no cuda"}}`))
	})
	mux.HandleFunc("/sdapi/v1/sd-models", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[
			{"title":"sd_xl_base_1.0.safetensors [31e35c80fc]","model_name":"sd_xl_base_1.0","filename":"/models/sd_xl_base_1.0.safetensors"},
			{"title":"stable-diffusion-v1-5.safetensors [6ce0161689]","model_name":"stable-diffusion-v1-5","filename":"/models/stable-diffusion-v1-5.safetensors"}
		]`))
	})
	mux.HandleFunc("/sdapi/v1/options", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.authUser, f.authPass, _ = r.BasicAuth()
		_ = json.NewDecoder(r.Body).Decode(&f.options)
		_, _ = w.Write([]byte(`null`))
	})
	mux.HandleFunc("/sdapi/v1/txt2img", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		f.mu.Lock()
		f.txt2img = append(f.txt2img, body)
		f.mu.Unlock()
		if f.noImages {
			_, _ = w.Write([]byte(`{"images":[],"info":"{}"}`))
			return
		}
		img := image.NewNRGBA(image.Rect(0, 0, int(body["width"].(float64)), int(body["height"].(float64))))
		img.Set(0, 0, color.NRGBA{R: 200, A: 255})
		s, err := imaging.EncodePNGBase64(img)
		require.NoError(t, err)
		_ = json.NewEncoder(w).Encode(map[string]any{"images": []string{s}, "info": "{}"})
	})
	mux.HandleFunc("/sdapi/v1/unload-checkpoint", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.unloaded++
		f.mu.Unlock()
		_, _ = w.Write([]byte(`null`))
	})
	return mux
}

func TestWebUIProbe(t *testing.T) {
	f := &fakeWebUI{cuda: true}
	srv := httptest.NewServer(f.handler(t))
	defer srv.Close()
	b := NewWebUIBackend(srv.URL, "", 0, zerolog.Nop())
	gpus, err := b.Prober().Probe(context.Background())
	require.NoError(t, err)
	require.Len(t, gpus, 1)
	assert.Equal(t, 24576, gpus[0].MemoryMB)

	f.mu.Lock()
	f.cuda = false
	f.mu.Unlock()
	gpus, err = b.Prober().Probe(context.Background())
	require.NoError(t, err)
	assert.Empty(t, gpus)
}

func TestWebUILoadAndGenerate(t *testing.T) {
	f := &fakeWebUI{cuda: true}
	srv := httptest.NewServer(f.handler(t))
	defer srv.Close()
	b := NewWebUIBackend(srv.URL+"/", "alice:secret", 0, zerolog.Nop())

	p, err := Load(context.Background(), b, Options{
		SDXLModel: "stabilityai/sd_xl_base_1.0",
		SD15Model: "runwayml/stable-diffusion-v1-5",
		UseSDXL:   true,
		Device:    "auto",
	}, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, "sd_xl_base_1.0.safetensors [31e35c80fc]", f.options["sd_model_checkpoint"])
	assert.Equal(t, "alice", f.authUser)
	assert.Equal(t, "secret", f.authPass)

	info := p.Info()
	assert.Equal(t, SDXL, info.Variant)
	assert.Equal(t, device.CUDA, info.Device.Class)
	assert.Equal(t, webuiSampler, info.Scheduler)
	assert.False(t, info.SafetyChecker)

	img, err := p.Generate(context.Background(), Params{
		Prompt: "a red apple", NegativePrompt: "blurry", Width: 512, Height: 768, Steps: 12, Guidance: 6.5, Seed: 42,
	})
	require.NoError(t, err)
	require.NotNil(t, img)
	assert.Equal(t, image.Rect(0, 0, 512, 768), img.Bounds())

	require.Len(t, f.txt2img, 1)
	got := f.txt2img[0]
	assert.Equal(t, "a red apple", got["prompt"])
	assert.Equal(t, "blurry", got["negative_prompt"])
	assert.Equal(t, float64(42), got["seed"])
	assert.Equal(t, float64(6.5), got["cfg_scale"])
	assert.Equal(t, float64(12), got["steps"])
	assert.Equal(t, "DPM++ 2M", got["sampler_name"])
	assert.Equal(t, float64(1), got["batch_size"])

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	assert.Equal(t, 1, f.unloaded)

	_, err = p.Generate(context.Background(), Params{Prompt: "x"})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestWebUIEmptyImagesMeansFiltered(t *testing.T) {
	f := &fakeWebUI{noImages: true}
	srv := httptest.NewServer(f.handler(t))
	defer srv.Close()
	b := NewWebUIBackend(srv.URL, "", 0, zerolog.Nop())
	p, err := b.Load(context.Background(), Spec{Model: "stable-diffusion-v1-5", Variant: SD15})
	require.NoError(t, err)
	img, err := p.Generate(context.Background(), Params{Prompt: "x", Width: 512, Height: 512, Steps: 10, Guidance: 7.5})
	require.NoError(t, err)
	assert.Nil(t, img)

	// CPU pipelines skip the unload call.
	require.NoError(t, p.Close())
	assert.Equal(t, 0, f.unloaded)
}

func TestWebUIUnknownModel(t *testing.T) {
	f := &fakeWebUI{}
	srv := httptest.NewServer(f.handler(t))
	defer srv.Close()
	b := NewWebUIBackend(srv.URL, "", 0, zerolog.Nop())
	_, err := b.Load(context.Background(), Spec{Model: "org/does-not-exist"})
	require.Error(t, err)
	assert.True(t, IsModelNotFound(err))
	assert.Contains(t, err.Error(), "sd_xl_base_1.0")
}

func TestWebUIHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()
	b := NewWebUIBackend(srv.URL, "", 0, zerolog.Nop())
	_, err := b.Load(context.Background(), Spec{Model: "m"})
	require.Error(t, err)
	var he *RuntimeHTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusInternalServerError, he.Status)
	assert.Contains(t, err.Error(), "boom")
}

func TestWebUIModelMatching(t *testing.T) {
	m := webuiModel{Title: "v1-5-pruned-emaonly.safetensors [6ce0161689]", ModelName: "v1-5-pruned-emaonly", Filename: `C:\models\v1-5-pruned-emaonly.safetensors`}
	for _, id := range []string{"v1-5-pruned-emaonly", "runwayml/v1-5-pruned-emaonly", "V1-5-PRUNED-EMAONLY.safetensors"} {
		assert.True(t, m.matches(id), id)
	}
	for _, id := range []string{"", "/", "v1-5"} {
		assert.False(t, m.matches(id), id)
	}
}
