package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"diffusiond/internal/common/fsutil"
)

// envPrefix namespaces service settings. Model selection keys keep their
// unprefixed names for compatibility with existing deployments.
const envPrefix = "DIFFUSIOND_"

type envBinding struct {
	name string
	set  func(c *Config, v string) error
}

func str(dst func(*Config) *string) func(*Config, string) error {
	return func(c *Config, v string) error { *dst(c) = v; return nil }
}

func boolean(dst func(*Config) *bool) func(*Config, string) error {
	return func(c *Config, v string) error {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return err
		}
		*dst(c) = b
		return nil
	}
}

// lenient reads a toggle the way existing deployments set it: "true" in any
// case enables it and every other value disables it.
func lenient(dst func(*Config) *bool) func(*Config, string) error {
	return func(c *Config, v string) error {
		*dst(c) = strings.EqualFold(strings.TrimSpace(v), "true")
		return nil
	}
}

func integer(dst func(*Config) *int) func(*Config, string) error {
	return func(c *Config, v string) error {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return err
		}
		*dst(c) = n
		return nil
	}
}

var envBindings = []envBinding{
	{envPrefix + "ADDR", str(func(c *Config) *string { return &c.Addr })},
	{envPrefix + "BACKEND", str(func(c *Config) *string { return &c.Backend })},
	{envPrefix + "DEVICE", str(func(c *Config) *string { return &c.Device })},
	{"SDXL_MODEL", str(func(c *Config) *string { return &c.SDXLModel })},
	{"SD15_MODEL", str(func(c *Config) *string { return &c.SD15Model })},
	{"USE_SDXL", lenient(func(c *Config) *bool { return &c.UseSDXL })},
	{"ENABLE_ATTENTION_SLICING", lenient(func(c *Config) *bool { return &c.AttentionSlicing })},
	{"ENABLE_VAE_SLICING", lenient(func(c *Config) *bool { return &c.VAESlicing })},
	{envPrefix + "MODELS_DIR", str(func(c *Config) *string { return &c.ModelsDir })},
	{envPrefix + "WEBUI_URL", str(func(c *Config) *string { return &c.WebUIURL })},
	{envPrefix + "WEBUI_AUTH", str(func(c *Config) *string { return &c.WebUIAuth })},
	{envPrefix + "SD_BIN", str(func(c *Config) *string { return &c.SDBin })},
	{envPrefix + "SD_THREADS", integer(func(c *Config) *int { return &c.SDThreads })},
	{envPrefix + "LOAD_TIMEOUT", integer(func(c *Config) *int { return &c.LoadTimeoutSeconds })},
	{envPrefix + "GENERATE_TIMEOUT", integer(func(c *Config) *int { return &c.GenerateTimeoutSeconds })},
	{envPrefix + "SHUTDOWN_TIMEOUT", integer(func(c *Config) *int { return &c.ShutdownTimeoutSeconds })},
	{envPrefix + "MAX_QUEUE_DEPTH", integer(func(c *Config) *int { return &c.MaxQueueDepth })},
	{envPrefix + "MAX_BODY_BYTES", func(c *Config, v string) error {
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return err
		}
		c.MaxBodyBytes = n
		return nil
	}},
	{envPrefix + "TREAT_BLANK_AS_FILTERED", boolean(func(c *Config) *bool { return &c.TreatBlankAsFiltered })},
	{envPrefix + "CORS_ENABLED", boolean(func(c *Config) *bool { return &c.CORSEnabled })},
	{envPrefix + "CORS_ORIGINS", func(c *Config, v string) error { c.CORSOrigins = SplitCSV(v); return nil }},
	{envPrefix + "LOG_LEVEL", str(func(c *Config) *string { return &c.LogLevel })},
	{envPrefix + "LOG_FORMAT", str(func(c *Config) *string { return &c.LogFormat })},
	{envPrefix + "LOG_FILE", str(func(c *Config) *string { return &c.LogFile })},
}

// ApplyEnv overlays environment values onto c. lookup is typically os.LookupEnv.
// Empty values are ignored.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	for _, b := range envBindings {
		v, ok := lookup(b.name)
		if !ok || v == "" {
			continue
		}
		if err := b.set(c, v); err != nil {
			return fmt.Errorf("env %s=%q: %w", b.name, v, err)
		}
	}
	return nil
}

// LoadDotEnv loads KEY=VALUE pairs from path into the process environment
// without overriding variables that are already set. A missing default
// ".env" is not an error; a missing explicitly named file is.
func LoadDotEnv(path string) error {
	if path == "" {
		if !fsutil.PathExists(".env") {
			return nil
		}
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// SplitCSV splits a comma-separated list, trimming blanks and dropping empty items.
func SplitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
