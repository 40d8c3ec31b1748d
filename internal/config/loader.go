package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters for the service. It is fixed once the
// pipeline is loaded.
type Config struct {
	Addr    string `json:"addr" yaml:"addr" toml:"addr"`
	Backend string `json:"backend" yaml:"backend" toml:"backend"`
	// Device is auto, cuda or cpu.
	Device string `json:"device" yaml:"device" toml:"device"`

	SDXLModel        string `json:"sdxl_model" yaml:"sdxl_model" toml:"sdxl_model"`
	SD15Model        string `json:"sd15_model" yaml:"sd15_model" toml:"sd15_model"`
	UseSDXL          bool   `json:"use_sdxl" yaml:"use_sdxl" toml:"use_sdxl"`
	AttentionSlicing bool   `json:"attention_slicing" yaml:"attention_slicing" toml:"attention_slicing"`
	VAESlicing       bool   `json:"vae_slicing" yaml:"vae_slicing" toml:"vae_slicing"`
	ModelsDir        string `json:"models_dir" yaml:"models_dir" toml:"models_dir"`

	// webui backend
	WebUIURL  string `json:"webui_url" yaml:"webui_url" toml:"webui_url"`
	WebUIAuth string `json:"webui_auth" yaml:"webui_auth" toml:"webui_auth"`
	// sdcpp backend
	SDBin     string `json:"sd_bin" yaml:"sd_bin" toml:"sd_bin"`
	SDThreads int    `json:"sd_threads" yaml:"sd_threads" toml:"sd_threads"`

	LoadTimeoutSeconds     int   `json:"load_timeout_seconds" yaml:"load_timeout_seconds" toml:"load_timeout_seconds"`
	GenerateTimeoutSeconds int   `json:"generate_timeout_seconds" yaml:"generate_timeout_seconds" toml:"generate_timeout_seconds"`
	ShutdownTimeoutSeconds int   `json:"shutdown_timeout_seconds" yaml:"shutdown_timeout_seconds" toml:"shutdown_timeout_seconds"`
	MaxQueueDepth          int   `json:"max_queue_depth" yaml:"max_queue_depth" toml:"max_queue_depth"`
	MaxBodyBytes           int64 `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes"`

	TreatBlankAsFiltered bool     `json:"treat_blank_as_filtered" yaml:"treat_blank_as_filtered" toml:"treat_blank_as_filtered"`
	CORSEnabled          bool     `json:"cors_enabled" yaml:"cors_enabled" toml:"cors_enabled"`
	CORSOrigins          []string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins"`

	LogLevel  string `json:"log_level" yaml:"log_level" toml:"log_level"`
	LogFormat string `json:"log_format" yaml:"log_format" toml:"log_format"`
	LogFile   string `json:"log_file" yaml:"log_file" toml:"log_file"`
}

// Default returns the configuration used when nothing else is specified.
func Default() Config {
	return Config{
		Addr:                   ":7861",
		Backend:                "webui",
		Device:                 "auto",
		SDXLModel:              "stabilityai/stable-diffusion-xl-base-1.0",
		SD15Model:              "runwayml/stable-diffusion-v1-5",
		UseSDXL:                true,
		AttentionSlicing:       true,
		VAESlicing:             true,
		ModelsDir:              "~/models/diffusion",
		WebUIURL:               "http://127.0.0.1:7860",
		SDBin:                  "sd",
		LoadTimeoutSeconds:     600,
		ShutdownTimeoutSeconds: 10,
		MaxQueueDepth:          16,
		MaxBodyBytes:           1 << 20,
		TreatBlankAsFiltered:   true,
		CORSEnabled:            true,
		CORSOrigins:            []string{"*"},
		LogLevel:               "info",
		LogFormat:              "json",
	}
}

// Load reads a configuration file based on its extension on top of Default.
// Keys absent from the file keep their default values.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &cfg)
	case ".json":
		err = json.Unmarshal(b, &cfg)
	case ".toml":
		err = toml.Unmarshal(b, &cfg)
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	if err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks values that cannot be corrected silently.
func (c Config) Validate() error {
	switch c.Backend {
	case "webui", "sdcpp":
	default:
		return fmt.Errorf("unknown backend %q (want webui or sdcpp)", c.Backend)
	}
	switch c.Device {
	case "auto", "cuda", "cpu":
	default:
		return fmt.Errorf("unknown device %q (want auto, cuda or cpu)", c.Device)
	}
	if strings.TrimSpace(c.SDXLModel) == "" || strings.TrimSpace(c.SD15Model) == "" {
		return fmt.Errorf("both sdxl_model and sd15_model must be set")
	}
	if c.Backend == "webui" && strings.TrimSpace(c.WebUIURL) == "" {
		return fmt.Errorf("webui_url is required for the webui backend")
	}
	if c.Backend == "sdcpp" && strings.TrimSpace(c.SDBin) == "" {
		return fmt.Errorf("sd_bin is required for the sdcpp backend")
	}
	if c.MaxQueueDepth < 1 {
		return fmt.Errorf("max_queue_depth must be at least 1, got %d", c.MaxQueueDepth)
	}
	if c.GenerateTimeoutSeconds < 0 || c.LoadTimeoutSeconds < 0 || c.ShutdownTimeoutSeconds < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("unknown log_format %q (want json or console)", c.LogFormat)
	}
	return nil
}
