package main

import (
	"os"

	"github.com/spf13/cobra"

	"diffusiond/internal/config"
)

type rootFlags struct {
	configPath string
	envFile    string
	addr       string
	backend    string
	device     string
	logLevel   string
	logFormat  string
	logFile    string
}

func newRootCmd() *cobra.Command {
	root, _ := buildRootCmd()
	return root
}

func buildRootCmd() (*cobra.Command, *rootFlags) {
	f := &rootFlags{}
	root := &cobra.Command{
		Use:           "diffusiond",
		Short:         "Text-to-image generation service",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, f)
		},
	}
	pf := root.PersistentFlags()
	pf.StringVar(&f.configPath, "config", "", "Path to a config file (.yaml, .yml, .json, .toml)")
	pf.StringVar(&f.envFile, "env-file", "", "Path to a .env file (default: ./.env when present)")
	pf.StringVar(&f.addr, "addr", "", "HTTP listen address, e.g. :7861")
	pf.StringVar(&f.backend, "backend", "", "Diffusion runtime: webui or sdcpp")
	pf.StringVar(&f.device, "device", "", "Compute device: auto, cuda or cpu")
	pf.StringVar(&f.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.StringVar(&f.logFormat, "log-format", "", "Log format: json or console")
	pf.StringVar(&f.logFile, "log-file", "", "Also write logs to this file (rotated)")

	root.AddCommand(newServeCmd(f), newProbeCmd(f), newVersionCmd())
	return root, f
}

// resolveConfig layers defaults, the config file, the environment and
// explicitly set flags, in that order.
func resolveConfig(cmd *cobra.Command, f *rootFlags, lookup func(string) (string, bool)) (config.Config, error) {
	if err := config.LoadDotEnv(f.envFile); err != nil {
		return config.Config{}, err
	}
	cfg := config.Default()
	if f.configPath != "" {
		var err error
		if cfg, err = config.Load(f.configPath); err != nil {
			return cfg, err
		}
	}
	if err := cfg.ApplyEnv(lookup); err != nil {
		return cfg, err
	}
	flags := cmd.Flags()
	if flags.Changed("addr") {
		cfg.Addr = f.addr
	}
	if flags.Changed("backend") {
		cfg.Backend = f.backend
	}
	if flags.Changed("device") {
		cfg.Device = f.device
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = f.logLevel
	}
	if flags.Changed("log-format") {
		cfg.LogFormat = f.logFormat
	}
	if flags.Changed("log-file") {
		cfg.LogFile = f.logFile
	}
	return cfg, cfg.Validate()
}

func osLookup(k string) (string, bool) { return os.LookupEnv(k) }
