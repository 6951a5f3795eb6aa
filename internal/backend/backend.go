// Package backend chooses the devctx.Driver for this build and host and
// assembles the process Manager around it.
package backend

import (
	"fmt"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/samcharles93/devplane/internal/config"
	"github.com/samcharles93/devplane/internal/devctx"
	"github.com/samcharles93/devplane/internal/logger"
)

const (
	None = "none"
	CUDA = "cuda"
	Auto = "auto"
)

func Normalize(name string) (string, error) {
	backend := strings.ToLower(strings.TrimSpace(name))
	if backend == "" {
		return Auto, nil
	}
	switch backend {
	case None, CUDA, Auto:
		return backend, nil
	default:
		return "", fmt.Errorf("unknown backend %q (expected auto, none, or cuda)", backend)
	}
}

// NewDriver opens the named backend and reports which one it picked. Auto
// falls back to the device-less driver when CUDA is not compiled in or finds
// no usable device.
func NewDriver(name string, log logger.Logger) (devctx.Driver, string, error) {
	if log == nil {
		log = logger.Discard()
	}
	backend, err := Normalize(name)
	if err != nil {
		return nil, "", err
	}
	switch backend {
	case None:
		return devctx.NoDevices{}, None, nil
	case CUDA:
		drv, err := newCUDA(log)
		if err != nil {
			return nil, "", err
		}
		return drv, CUDA, nil
	default:
		if !cudaEnabled {
			return devctx.NoDevices{}, None, nil
		}
		drv, err := newCUDA(log)
		if err != nil {
			log.Info("cuda unavailable, continuing without devices", "error", err)
			return devctx.NoDevices{}, None, nil
		}
		return drv, CUDA, nil
	}
}

// NewManager builds a Manager from a resolved config.
func NewManager(cfg config.Config, log logger.Logger, reg prometheus.Registerer) (*devctx.Manager, string, error) {
	cfg = cfg.Resolved()
	drv, picked, err := NewDriver(cfg.Backend, log)
	if err != nil {
		return nil, "", err
	}
	m, err := devctx.New(devctx.Options{
		Driver:       drv,
		Seed:         *cfg.Seed,
		TrueFP16Gemm: *cfg.TrueFP16Gemm,
		Logger:       log,
		Registerer:   reg,
	})
	if err != nil {
		return nil, "", err
	}
	return m, picked, nil
}

var (
	defaultOnce sync.Once
	defaultMgr  *devctx.Manager
	defaultErr  error
)

// Default returns the process-wide Manager, built on first use from the
// config file and DEVPLANE_* environment. Code that can take a Manager as a
// parameter should.
func Default() (*devctx.Manager, error) {
	defaultOnce.Do(func() {
		cfg, err := config.LoadDefault()
		if err != nil {
			defaultErr = err
			return
		}
		if err := cfg.Validate(); err != nil {
			defaultErr = err
			return
		}
		defaultMgr, _, defaultErr = NewManager(cfg, logger.Default(), nil)
	})
	return defaultMgr, defaultErr
}
