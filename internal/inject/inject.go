// Package inject wires the service graph.
package inject

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/do"

	"diffusiond/internal/config"
	"diffusiond/internal/httpapi"
	"diffusiond/internal/manager"
	"diffusiond/internal/pipeline"
)

// Setup registers providers for cfg. Services are built lazily on first
// invoke; injector.Shutdown closes the manager.
func Setup(cfg config.Config, log zerolog.Logger) *do.Injector {
	injector := do.NewWithOpts(&do.InjectorOpts{
		Logf: func(format string, args ...any) {
			log.Debug().Str("component", "inject").Msg(fmt.Sprintf(format, args...))
		},
	})
	do.ProvideValue[config.Config](injector, cfg)
	do.ProvideValue[zerolog.Logger](injector, log)
	do.Provide[pipeline.Backend](injector, NewBackend)
	do.Provide[*manager.Manager](injector, NewManager)
	do.Provide[*http.Server](injector, NewServer)
	return injector
}

// NewBackend selects the runtime named by the configuration.
func NewBackend(i *do.Injector) (pipeline.Backend, error) {
	cfg := do.MustInvoke[config.Config](i)
	log := do.MustInvoke[zerolog.Logger](i)
	return BackendFor(cfg, log)
}

// BackendFor builds the configured backend without an injector.
func BackendFor(cfg config.Config, log zerolog.Logger) (pipeline.Backend, error) {
	switch cfg.Backend {
	case "webui":
		return pipeline.NewWebUIBackend(cfg.WebUIURL, cfg.WebUIAuth, 10*time.Second, log), nil
	case "sdcpp":
		return pipeline.NewSDCPPBackend(cfg.SDBin, cfg.ModelsDir, cfg.SDThreads, log), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

// PipelineOptions projects the model section of cfg.
func PipelineOptions(cfg config.Config) pipeline.Options {
	return pipeline.Options{
		SDXLModel:        cfg.SDXLModel,
		SD15Model:        cfg.SD15Model,
		UseSDXL:          cfg.UseSDXL,
		Device:           cfg.Device,
		AttentionSlicing: cfg.AttentionSlicing,
		VAESlicing:       cfg.VAESlicing,
	}
}

// NewManager builds an unloaded manager; callers Load it before serving.
func NewManager(i *do.Injector) (*manager.Manager, error) {
	cfg := do.MustInvoke[config.Config](i)
	log := do.MustInvoke[zerolog.Logger](i)
	backend, err := do.Invoke[pipeline.Backend](i)
	if err != nil {
		return nil, err
	}
	return manager.NewWithConfig(manager.ManagerConfig{
		Backend:              backend,
		Options:              PipelineOptions(cfg),
		LoadTimeout:          time.Duration(cfg.LoadTimeoutSeconds) * time.Second,
		MaxQueueDepth:        cfg.MaxQueueDepth,
		GenerateTimeout:      time.Duration(cfg.GenerateTimeoutSeconds) * time.Second,
		TreatBlankAsFiltered: cfg.TreatBlankAsFiltered,
		Publisher:            manager.MultiPublisher{manager.NewLogPublisher(log), httpapi.EventMetrics{}},
		Logger:               log,
	}), nil
}

// NewServer builds the HTTP server around the manager and applies the HTTP
// layer settings.
func NewServer(i *do.Injector) (*http.Server, error) {
	cfg := do.MustInvoke[config.Config](i)
	log := do.MustInvoke[zerolog.Logger](i)
	mgr, err := do.Invoke[*manager.Manager](i)
	if err != nil {
		return nil, err
	}
	httpapi.SetLogger(log)
	if _, ok := os.LookupEnv("DIFFUSIOND_REQUEST_LOG"); !ok {
		httpapi.SetDefaultRequestLogLevel(cfg.LogLevel)
	}
	httpapi.SetMaxBodyBytes(cfg.MaxBodyBytes)
	httpapi.SetCORSOptions(cfg.CORSEnabled, cfg.CORSOrigins, nil, nil)
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpapi.NewMux(mgr),
		ReadHeaderTimeout: 10 * time.Second,
	}, nil
}
