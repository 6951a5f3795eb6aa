package devctx

import (
	"errors"
	"fmt"
	"sync"

	"github.com/samcharles93/devplane/internal/logger"
)

// ErrStaleStates is returned when a States handle is used after the pool
// replaced its buffer.
var ErrStaleStates = errors.New("rng states handle is stale")

// States is a handle to at least Count generator states on Device. It stays
// valid until the next growth on that device; Generation identifies the
// buffer it refers to.
type States struct {
	Device     int
	Count      int
	Buffer     DeviceBuffer
	Generation uint64
}

type stateBuffer struct {
	buf        DeviceBuffer
	count      int
	generation uint64
}

// RNGPool owns the device-resident Philox states, one buffer per device.
// State i is always NewPhiloxState(seed, i, 0), so growth reproduces every
// previously issued state. Growth replaces the buffer: callers refetch.
type RNGPool struct {
	drv     Driver
	devices *deviceTable
	seed    uint64
	log     logger.Logger
	metrics *Metrics

	mu      sync.Mutex
	buffers map[int]*stateBuffer
	closed  bool
}

func newRNGPool(drv Driver, devices *deviceTable, seed uint64, log logger.Logger, metrics *Metrics) *RNGPool {
	return &RNGPool{
		drv:     drv,
		devices: devices,
		seed:    seed,
		log:     log,
		metrics: metrics,
		buffers: make(map[int]*stateBuffer),
	}
}

// Seed returns the process seed the pool derives every state from.
func (p *RNGPool) Seed() uint64 {
	return p.seed
}

// States returns a handle to at least count states on device, growing the
// pool if needed.
func (p *RNGPool) States(device, count int) (States, error) {
	if count <= 0 {
		return States{}, fmt.Errorf("%w: rng state count must be > 0, got %d", ErrInvalidArgument, count)
	}
	dev, err := p.devices.Resolve(device)
	if err != nil {
		return States{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return States{}, ErrClosed
	}
	sb := p.buffers[dev]
	if sb == nil || sb.count < count {
		if sb, err = p.grow(dev, count, sb); err != nil {
			return States{}, err
		}
	}
	return States{Device: dev, Count: sb.count, Buffer: sb.buf, Generation: sb.generation}, nil
}

// grow replaces the device's buffer with one holding count states. On error
// the previous buffer is left in place.
func (p *RNGPool) grow(dev, count int, prev *stateBuffer) (*stateBuffer, error) {
	restore, err := p.devices.use(dev)
	if err != nil {
		return nil, resourceError("select device", dev, err)
	}
	defer restore()

	buf, err := p.drv.Alloc(dev, int64(count)*PhiloxStateSize)
	if err != nil {
		return nil, resourceError("allocate rng states", dev, err)
	}
	if err := p.drv.CopyToDevice(buf, seedStates(p.seed, count)); err != nil {
		_ = buf.Free()
		return nil, resourceError("upload rng states", dev, err)
	}

	next := &stateBuffer{buf: buf, count: count, generation: 1}
	if prev != nil {
		// Kernels queued against the old buffer must finish before it goes.
		if err := p.drv.Synchronize(dev); err != nil {
			_ = buf.Free()
			return nil, resourceError("synchronize device", dev, err)
		}
		if err := prev.buf.Free(); err != nil {
			p.log.Warn("freeing previous rng states failed", "device", dev, "err", err)
		}
		next.generation = prev.generation + 1
	}
	p.buffers[dev] = next
	p.metrics.rngGrown(dev, count)
	p.log.Debug("rng pool grown", "device", dev, "states", count, "generation", next.generation)
	return next, nil
}

// Capacity returns the number of states provisioned on device, 0 if none or
// if device does not resolve.
func (p *RNGPool) Capacity(device int) int {
	dev, err := p.devices.Resolve(device)
	if err != nil {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if sb := p.buffers[dev]; sb != nil {
		return sb.count
	}
	return 0
}

// ReadStates copies the first n states of h back to the host.
func (p *RNGPool) ReadStates(h States, n int) ([]PhiloxState, error) {
	if n < 0 || n > h.Count {
		return nil, fmt.Errorf("%w: read %d of %d states", ErrInvalidArgument, n, h.Count)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	sb := p.buffers[h.Device]
	if sb == nil || sb.generation != h.Generation {
		return nil, ErrStaleStates
	}

	raw := make([]byte, n*PhiloxStateSize)
	if err := p.drv.CopyToHost(raw, sb.buf); err != nil {
		return nil, resourceError("download rng states", h.Device, err)
	}
	out := make([]PhiloxState, n)
	for i := range out {
		s, err := UnmarshalPhiloxState(raw[i*PhiloxStateSize:])
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

// Close frees every buffer.
func (p *RNGPool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	var errs []error
	for dev, sb := range p.buffers {
		errs = append(errs, sb.buf.Free())
		delete(p.buffers, dev)
	}
	return errors.Join(errs...)
}
