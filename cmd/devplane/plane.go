package main

import (
	"context"
	"io"
	"os"

	json "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/samcharles93/devplane/internal/backend"
	"github.com/samcharles93/devplane/internal/devctx"
	"github.com/samcharles93/devplane/internal/logger"
)

// stdout is a seam for tests.
var stdout io.Writer = os.Stdout

// openManager builds the Manager for a command from the resolved config.
func openManager(ctx context.Context, reg prometheus.Registerer) (*devctx.Manager, string, error) {
	log := logger.FromContext(ctx)
	m, picked, err := backend.NewManager(configFrom(ctx), log, reg)
	if err != nil {
		return nil, "", err
	}
	log.Debug("device plane ready", "backend", picked)
	return m, picked, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
