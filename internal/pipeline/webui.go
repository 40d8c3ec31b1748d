package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"net"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"diffusiond/internal/device"
	"diffusiond/internal/imaging"
)

// webuiSampler is the sdapi name of the multistep DPM-Solver++ sampler.
const webuiSampler = "DPM++ 2M"

// WebUIBackend loads pipelines on an HTTP runtime speaking sdapi/v1.
type WebUIBackend struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client
	log        zerolog.Logger
}

// NewWebUIBackend constructs a backend for baseURL. auth is optional
// "user:password" for --api-auth protected servers.
func NewWebUIBackend(baseURL, auth string, connectTimeout time.Duration, log zerolog.Logger) *WebUIBackend {
	if connectTimeout <= 0 {
		connectTimeout = 10 * time.Second
	}
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   connectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          16,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	b := &WebUIBackend{
		baseURL: strings.TrimRight(baseURL, "/"),
		// Deadlines come from request contexts.
		httpClient: &http.Client{Transport: tr, Timeout: 0},
		log:        log.With().Str("backend", "webui").Logger(),
	}
	if auth != "" {
		b.username, b.password, _ = strings.Cut(auth, ":")
	}
	return b
}

func (b *WebUIBackend) Name() string { return "webui" }

// Prober reads the runtime's CUDA memory report.
func (b *WebUIBackend) Prober() device.Prober { return device.ProberFunc(b.probe) }

type webuiMemory struct {
	CUDA struct {
		System *struct {
			Free  float64 `json:"free"`
			Used  float64 `json:"used"`
			Total float64 `json:"total"`
		} `json:"system"`
		Error string `json:"error"`
	} `json:"cuda"`
}

func (b *WebUIBackend) probe(ctx context.Context) ([]device.GPU, error) {
	var mem webuiMemory
	if err := b.do(ctx, http.MethodGet, "/sdapi/v1/memory", nil, &mem); err != nil {
		return nil, fmt.Errorf("probe webui memory: %w", err)
	}
	if mem.CUDA.System == nil || mem.CUDA.System.Total <= 0 {
		if mem.CUDA.Error != "" {
			b.log.Debug().Str("cuda_error", mem.CUDA.Error).Msg("runtime reports no CUDA device")
		}
		return nil, nil
	}
	return []device.GPU{{Name: "cuda:0", MemoryMB: int(mem.CUDA.System.Total / (1 << 20))}}, nil
}

type webuiModel struct {
	Title     string `json:"title"`
	ModelName string `json:"model_name"`
	Hash      string `json:"hash"`
	Filename  string `json:"filename"`
}

// matches compares the last segment of id against the checkpoint's name,
// title and file stem, ignoring case.
func (m webuiModel) matches(id string) bool {
	want := strings.ToLower(path.Base(strings.TrimSpace(id)))
	if want == "" || want == "." || want == "/" {
		return false
	}
	cands := []string{m.ModelName, m.Title, path.Base(strings.ReplaceAll(m.Filename, "\\", "/"))}
	for _, c := range cands {
		c = strings.ToLower(c)
		if c == want || strings.TrimSuffix(c, path.Ext(c)) == want {
			return true
		}
		// Titles carry a trailing hash: "name.safetensors [abcd1234]".
		if i := strings.Index(c, " ["); i > 0 {
			t := c[:i]
			if t == want || strings.TrimSuffix(t, path.Ext(t)) == want {
				return true
			}
		}
	}
	return false
}

// Load activates spec.Model as the runtime's checkpoint.
func (b *WebUIBackend) Load(ctx context.Context, spec Spec) (Pipeline, error) {
	var models []webuiModel
	if err := b.do(ctx, http.MethodGet, "/sdapi/v1/sd-models", nil, &models); err != nil {
		return nil, fmt.Errorf("list webui models: %w", err)
	}
	m, ok := lo.Find(models, func(m webuiModel) bool { return m.matches(spec.Model) })
	if !ok {
		return nil, ModelNotFoundError{
			Model:     spec.Model,
			Available: lo.Map(models, func(m webuiModel, _ int) string { return m.ModelName }),
		}
	}
	opts := map[string]any{"sd_model_checkpoint": m.Title}
	if err := b.do(ctx, http.MethodPost, "/sdapi/v1/options", opts, nil); err != nil {
		return nil, fmt.Errorf("activate checkpoint %s: %w", m.Title, err)
	}
	if spec.AttentionSlicing || spec.VAESlicing {
		b.log.Info().Msg("memory optimizations are governed by the runtime's launch flags")
	}
	b.log.Info().Str("checkpoint", m.Title).Msg("checkpoint active")
	return &webuiPipeline{
		b:          b,
		checkpoint: m.Title,
		info: Info{
			Backend:        b.Name(),
			Model:          spec.Model,
			Variant:        spec.Variant,
			Device:         spec.Device,
			LibraryVersion: "sdapi/v1",
			Scheduler:      webuiSampler,
		},
	}, nil
}

type webuiPipeline struct {
	b          *WebUIBackend
	checkpoint string
	info       Info

	mu     sync.Mutex
	closed bool
}

type txt2imgRequest struct {
	Prompt         string         `json:"prompt"`
	NegativePrompt string         `json:"negative_prompt"`
	Width          int            `json:"width"`
	Height         int            `json:"height"`
	Steps          int            `json:"steps"`
	CFGScale       float64        `json:"cfg_scale"`
	Seed           int64          `json:"seed"`
	SamplerName    string         `json:"sampler_name"`
	BatchSize      int            `json:"batch_size"`
	NIter          int            `json:"n_iter"`
	SendImages     bool           `json:"send_images"`
	SaveImages     bool           `json:"save_images"`
	Override       map[string]any `json:"override_settings,omitempty"`
}

type txt2imgResponse struct {
	Images []string `json:"images"`
	Info   string   `json:"info"`
}

func (p *webuiPipeline) Info() Info { return p.info }

func (p *webuiPipeline) Generate(ctx context.Context, in Params) (image.Image, error) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}
	req := txt2imgRequest{
		Prompt:         in.Prompt,
		NegativePrompt: in.NegativePrompt,
		Width:          in.Width,
		Height:         in.Height,
		Steps:          in.Steps,
		CFGScale:       in.Guidance,
		Seed:           in.Seed,
		SamplerName:    webuiSampler,
		BatchSize:      1,
		NIter:          1,
		SendImages:     true,
		// Pin the checkpoint in case another client switched it.
		Override: map[string]any{"sd_model_checkpoint": p.checkpoint},
	}
	var resp txt2imgResponse
	if err := p.b.do(ctx, http.MethodPost, "/sdapi/v1/txt2img", req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Images) == 0 {
		return nil, nil
	}
	img, err := imaging.DecodeBase64(resp.Images[0])
	if err != nil {
		return nil, fmt.Errorf("decode webui image: %w", err)
	}
	return img, nil
}

// Close asks the runtime to unload the checkpoint when it held GPU memory.
func (p *webuiPipeline) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()
	if !p.info.Device.Accelerated() {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := p.b.do(ctx, http.MethodPost, "/sdapi/v1/unload-checkpoint", nil, nil); err != nil {
		return fmt.Errorf("unload checkpoint: %w", err)
	}
	p.b.log.Info().Msg("checkpoint unloaded, GPU memory released")
	return nil
}

// do sends a JSON request and decodes a JSON response into out when non-nil.
func (b *WebUIBackend) do(ctx context.Context, method, p string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+p, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if b.username != "" {
		req.SetBasicAuth(b.username, b.password)
	}
	resp, err := b.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &RuntimeHTTPError{Status: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", p, err)
	}
	return nil
}

// RuntimeHTTPError is a non-2xx reply from the runtime.
type RuntimeHTTPError struct {
	Status int
	Body   string
}

func (e *RuntimeHTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("runtime http %d", e.Status)
	}
	return fmt.Sprintf("runtime http %d: %s", e.Status, e.Body)
}
