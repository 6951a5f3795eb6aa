//go:build !cuda

package backend

import (
	"errors"

	"github.com/samcharles93/devplane/internal/devctx"
	"github.com/samcharles93/devplane/internal/logger"
)

const cudaEnabled = false

var errCUDAUnavailable = errors.New("cuda backend is not available in this build (rebuild with -tags cuda)")

func newCUDA(logger.Logger) (devctx.Driver, error) {
	return nil, errCUDAUnavailable
}
