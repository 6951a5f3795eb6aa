package main

import (
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/devplane/internal/config"
)

// loadConfig reads the config file and environment, then applies every flag
// the user set explicitly. Flags beat env, env beats the file.
func loadConfig(cmd *cli.Command) (config.Config, error) {
	path := configPath
	if path == "" {
		path = config.Path()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}
	if err := cfg.ApplyEnv(lookupEnv); err != nil {
		return config.Config{}, err
	}
	applyFlags(cmd, &cfg)
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg.Resolved(), nil
}

func applyFlags(cmd *cli.Command, cfg *config.Config) {
	if cmd.IsSet("backend") {
		cfg.Backend = backendName
	}
	if cmd.IsSet("seed") {
		s := seed
		cfg.Seed = &s
	}
	if cmd.IsSet("true-fp16-gemm") {
		b := trueFP16Gemm
		cfg.TrueFP16Gemm = &b
	}
	if cmd.IsSet("log-level") {
		cfg.LogLevel = logLevel
	}
	if debug {
		cfg.LogLevel = "debug"
	}
	if cmd.IsSet("log-format") {
		cfg.LogFormat = logFormat
	}
}
