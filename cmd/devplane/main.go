package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/devplane/internal/config"
	"github.com/samcharles93/devplane/internal/logger"
)

// lookupEnv is a seam for tests.
var lookupEnv = os.LookupEnv

type configKey struct{}

func main() {
	app := &cli.Command{
		Name:   "devplane",
		Usage:  "GPU execution context plane: devices, contexts, RNG pools",
		Flags:  append(planeFlags(), loggingFlags()...),
		Before: setup,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return cli.ShowAppHelp(cmd)
		},
		Commands: []*cli.Command{
			devicesCmd(),
			probeCmd(),
			rngCmd(),
			serveCmd(),
			versionCmd(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup resolves the configuration and installs the logger on ctx.
func setup(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return ctx, err
	}
	log, err := logger.NewFormat(os.Stderr, cfg.LogFormat, logger.ParseLevel(cfg.LogLevel))
	if err != nil {
		return ctx, err
	}
	ctx = logger.WithContext(ctx, log)
	return context.WithValue(ctx, configKey{}, cfg), nil
}

func configFrom(ctx context.Context) config.Config {
	if cfg, ok := ctx.Value(configKey{}).(config.Config); ok {
		return cfg
	}
	return config.Config{}.Resolved()
}
