package main

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/devplane/internal/api"
	"github.com/samcharles93/devplane/internal/logger"
	"github.com/samcharles93/devplane/internal/version"
)

func serveCmd() *cli.Command {
	var (
		addr        string
		readTimeout time.Duration
	)

	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the read-only diagnostics API and /metrics",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "addr",
				Usage:       "listen address",
				Destination: &addr,
			},
			&cli.DurationFlag{
				Name:        "read-timeout",
				Usage:       "read header timeout",
				Value:       10 * time.Second,
				Destination: &readTimeout,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)
			cfg := configFrom(ctx)
			if !cmd.IsSet("addr") {
				addr = cfg.Server.Address
			}

			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
			m, picked, err := openManager(ctx, reg)
			if err != nil {
				return err
			}
			defer m.Close()

			if err := m.Capabilities().Warm(ctx); err != nil {
				log.Warn("device warm-up failed", "error", err)
			}

			server := api.NewServer(api.Options{
				Manager:   m,
				Backend:   picked,
				Version:   version.String(),
				Gatherer:  reg,
				Logger:    log,
				RateLimit: *cfg.Server.RateLimit,
				Burst:     *cfg.Server.Burst,
			})
			e := server.NewEcho()
			log.Info("starting diagnostics server", "address", addr, "backend", picked)
			sc := echo.StartConfig{
				Address: addr,
				BeforeServeFunc: func(srv *http.Server) error {
					srv.ReadHeaderTimeout = readTimeout
					return nil
				},
			}
			return sc.Start(ctx, e)
		},
	}
}
