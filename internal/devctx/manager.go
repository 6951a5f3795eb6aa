// Package devctx is the resource and configuration plane GPU kernels run
// under: per-thread execution contexts, cached device capabilities, the
// device RNG state pool and the GEMM accumulation mode.
//
// Handles are bound to the OS thread that requested them. Goroutines that
// drive GPU work must call runtime.LockOSThread first and keep the lock for
// as long as they use the handles.
package devctx

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/samcharles93/devplane/internal/logger"
)

// Options configures a Manager.
type Options struct {
	Driver Driver
	// Seed derives every RNG state.
	Seed uint64
	// TrueFP16Gemm is the baseline GEMM mode.
	TrueFP16Gemm bool
	Logger       logger.Logger
	// Registerer receives the plane's metrics. Nil disables metrics.
	Registerer prometheus.Registerer
	// ThreadID identifies the calling OS thread. Defaults to the native
	// thread id.
	ThreadID func() int
}

// Manager owns the plane's process-scoped state. Create one per process and
// pass it to the code that dispatches kernels.
type Manager struct {
	caps     *CapabilityCache
	registry *Registry
	rng      *RNGPool
	gemm     *GemmMode
	log      logger.Logger
}

func New(opts Options) (*Manager, error) {
	if opts.Driver == nil {
		return nil, errors.New("devctx: driver is required")
	}
	log := opts.Logger
	if log == nil {
		log = logger.Discard()
	}
	threadID := opts.ThreadID
	if threadID == nil {
		threadID = currentThreadID
	}
	var metrics *Metrics
	if opts.Registerer != nil {
		metrics = NewMetrics(opts.Registerer)
	}

	devices := newDeviceTable(opts.Driver)
	return &Manager{
		caps:     newCapabilityCache(opts.Driver, devices, log.With("component", "capabilities"), metrics),
		registry: newRegistry(opts.Driver, devices, threadID, log.With("component", "registry"), metrics),
		rng:      newRNGPool(opts.Driver, devices, opts.Seed, log.With("component", "rng"), metrics),
		gemm:     newGemmMode(opts.TrueFP16Gemm, metrics),
		log:      log,
	}, nil
}

func (m *Manager) Capabilities() *CapabilityCache { return m.caps }

func (m *Manager) Registry() *Registry { return m.registry }

func (m *Manager) RNG() *RNGPool { return m.rng }

func (m *Manager) Gemm() *GemmMode { return m.gemm }

// Close releases every native resource. Call it once at process exit.
func (m *Manager) Close() error {
	err := errors.Join(m.rng.Close(), m.registry.Close())
	if err != nil {
		m.log.Warn("device context teardown reported errors", "err", err)
	}
	return err
}
