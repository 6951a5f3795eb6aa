package devctx

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/samcharles93/devplane/internal/logger"
)

// ExecutionContext bundles the handles one OS thread uses to drive one device.
// It is owned by that thread; handles must not be driven from another.
type ExecutionContext struct {
	Device int
	Thread int
	Stream Stream
	Blas   BlasHandle

	dnn dnnSlot
}

func (ec *ExecutionContext) destroy() error {
	return errors.Join(ec.dnn.destroy(), ec.Blas.Destroy(), ec.Stream.Destroy())
}

type contextKey struct {
	device int
	thread int
}

// Registry hands out one ExecutionContext per (device, thread), creating it on
// first request. Lookups of existing entries take no lock.
type Registry struct {
	drv      Driver
	devices  *deviceTable
	threadID func() int
	log      logger.Logger
	metrics  *Metrics

	contexts sync.Map // contextKey -> *ExecutionContext
	closeMu  sync.RWMutex
	closed   atomic.Bool
}

func newRegistry(drv Driver, devices *deviceTable, threadID func() int, log logger.Logger, metrics *Metrics) *Registry {
	return &Registry{drv: drv, devices: devices, threadID: threadID, log: log, metrics: metrics}
}

// Context returns the calling thread's context for device, creating it if
// needed. device may be CurrentDevice.
func (r *Registry) Context(device int) (*ExecutionContext, error) {
	if r.closed.Load() {
		return nil, ErrClosed
	}
	dev, err := r.devices.Resolve(device)
	if err != nil {
		return nil, err
	}
	key := contextKey{device: dev, thread: r.threadID()}
	if v, ok := r.contexts.Load(key); ok {
		return v.(*ExecutionContext), nil
	}

	r.closeMu.RLock()
	defer r.closeMu.RUnlock()
	if r.closed.Load() {
		return nil, ErrClosed
	}

	ec, err := r.create(key)
	if err != nil {
		r.metrics.contextFailed(dev, err)
		r.log.Warn("execution context creation failed", "device", dev, "thread", key.thread, "err", err)
		return nil, err
	}
	if v, loaded := r.contexts.LoadOrStore(key, ec); loaded {
		_ = ec.destroy()
		return v.(*ExecutionContext), nil
	}
	r.metrics.contextCreated(dev)
	r.log.Debug("execution context created", "device", dev, "thread", key.thread)
	return ec, nil
}

// Stream returns the calling thread's compute stream for device.
func (r *Registry) Stream(device int) (Stream, error) {
	ec, err := r.Context(device)
	if err != nil {
		return nil, err
	}
	return ec.Stream, nil
}

// Blas returns the calling thread's BLAS handle for device.
func (r *Registry) Blas(device int) (BlasHandle, error) {
	ec, err := r.Context(device)
	if err != nil {
		return nil, err
	}
	return ec.Blas, nil
}

// create builds every handle for key or none of them.
func (r *Registry) create(key contextKey) (*ExecutionContext, error) {
	restore, err := r.devices.use(key.device)
	if err != nil {
		return nil, resourceError("select device", key.device, err)
	}
	defer restore()

	stream, err := r.drv.NewStream(key.device)
	if err != nil {
		return nil, resourceError("create stream", key.device, err)
	}
	blas, err := r.drv.NewBlasHandle(key.device, stream)
	if err != nil {
		_ = stream.Destroy()
		return nil, resourceError("create blas handle", key.device, err)
	}
	ec := &ExecutionContext{Device: key.device, Thread: key.thread, Stream: stream, Blas: blas}
	if err := ec.dnn.create(r.drv, key.device, stream); err != nil {
		_ = blas.Destroy()
		_ = stream.Destroy()
		return nil, resourceError("create dnn handle", key.device, err)
	}
	return ec, nil
}

// Len returns the number of live contexts.
func (r *Registry) Len() int {
	n := 0
	r.contexts.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Close destroys every context. Later requests fail with ErrClosed.
func (r *Registry) Close() error {
	r.closeMu.Lock()
	defer r.closeMu.Unlock()
	if r.closed.Swap(true) {
		return nil
	}
	var errs []error
	r.contexts.Range(func(k, v any) bool {
		errs = append(errs, v.(*ExecutionContext).destroy())
		r.contexts.Delete(k)
		return true
	})
	return errors.Join(errs...)
}
