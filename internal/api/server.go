// Package api serves a read-only HTTP view of the device plane: device
// capabilities, the GEMM mode, RNG pool capacity and prometheus metrics.
package api

import (
	"net/http"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/samcharles93/devplane/internal/devctx"
	"github.com/samcharles93/devplane/internal/logger"
)

type Options struct {
	Manager *devctx.Manager
	// Backend names the driver in use, reported by /healthz.
	Backend string
	Version string
	// Gatherer backs /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer
	Logger   logger.Logger
	// RateLimit is requests per second on /v1. Zero disables limiting.
	RateLimit float64
	Burst     int
}

type Server struct {
	mgr     *devctx.Manager
	backend string
	version string
	metrics http.Handler
	log     logger.Logger
	limit   echo.MiddlewareFunc
}

func NewServer(opts Options) *Server {
	log := opts.Logger
	if log == nil {
		log = logger.Discard()
	}
	s := &Server{
		mgr:     opts.Manager,
		backend: opts.Backend,
		version: opts.Version,
		log:     log,
		limit:   RateLimit(opts.RateLimit, opts.Burst),
	}
	if opts.Gatherer != nil {
		s.metrics = promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})
	}
	return s
}

// NewEcho returns an echo instance with the server's routes and middleware.
func (s *Server) NewEcho() *echo.Echo {
	e := echo.New()
	e.Use(RequestID(s.log))
	e.Use(middleware.RequestLogger())
	e.Use(middleware.Recover())
	s.Register(e)
	return e
}

func (s *Server) Register(e *echo.Echo) {
	e.GET("/healthz", s.handleHealth)
	if s.metrics != nil {
		e.GET("/metrics", s.handleMetrics)
	}

	e.GET("/v1/devices", s.handleListDevices, s.limit)
	e.GET("/v1/devices/:id", s.handleGetDevice, s.limit)
	e.GET("/v1/gemm-mode", s.handleGemmMode, s.limit)
	e.GET("/v1/rng/:device", s.handleRNG, s.limit)
}

func (s *Server) handleHealth(c *echo.Context) error {
	n, err := s.mgr.Capabilities().DeviceCount()
	if err != nil {
		return writePlaneError(c, err)
	}
	return c.JSON(http.StatusOK, HealthResponse{
		Status:  "ok",
		Backend: s.backend,
		Devices: n,
		Version: s.version,
	})
}

func (s *Server) handleMetrics(c *echo.Context) error {
	s.metrics.ServeHTTP(c.Response(), c.Request())
	return nil
}

func (s *Server) handleListDevices(c *echo.Context) error {
	all, err := s.mgr.Capabilities().All()
	if err != nil {
		logger.FromContext(c.Request().Context()).Warn("device listing failed", "error", err)
		return writePlaneError(c, err)
	}
	return c.JSON(http.StatusOK, DeviceList{Object: "list", Backend: s.backend, Data: all})
}

func (s *Server) handleGetDevice(c *echo.Context) error {
	dev, err := deviceParam(c, "id")
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	caps, err := s.mgr.Capabilities().Capabilities(dev)
	if err != nil {
		return writePlaneError(c, err)
	}
	return c.JSON(http.StatusOK, caps)
}

func (s *Server) handleGemmMode(c *echo.Context) error {
	resp := GemmModeResponse{TrueFP16: s.mgr.Gemm().TrueFP16(), Accumulation: "fp32"}
	if resp.TrueFP16 {
		resp.Accumulation = "fp16"
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleRNG(c *echo.Context) error {
	dev, err := deviceParam(c, "device")
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	n, err := s.mgr.Capabilities().DeviceCount()
	if err != nil {
		return writePlaneError(c, err)
	}
	if dev >= n {
		return writePlaneError(c, &devctx.InvalidDeviceError{Device: dev, Count: n})
	}
	return c.JSON(http.StatusOK, RNGResponse{
		Device:     dev,
		Capacity:   s.mgr.RNG().Capacity(dev),
		Seed:       s.mgr.RNG().Seed(),
		StateBytes: devctx.PhiloxStateSize,
	})
}
