//go:build cuda

package backend

import (
	"github.com/samcharles93/devplane/internal/backend/cuda"
	"github.com/samcharles93/devplane/internal/devctx"
	"github.com/samcharles93/devplane/internal/logger"
)

const cudaEnabled = true

func newCUDA(log logger.Logger) (devctx.Driver, error) {
	drv, err := cuda.NewDriver(log)
	if err != nil {
		return nil, err
	}
	return drv, nil
}
