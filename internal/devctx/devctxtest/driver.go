// Package devctxtest provides an in-memory devctx.Driver for tests of code
// layered on the device plane.
package devctxtest

import (
	"errors"
	"fmt"
	"sync"

	"github.com/samcharles93/devplane/internal/devctx"
)

// Driver simulates devices in host memory. Handles are plain structs and
// buffers are byte slices.
type Driver struct {
	mu      sync.Mutex
	devices []devctx.DeviceProperties
	current int
	live    int

	// FailProperties, when set, is returned by every property query.
	FailProperties error
}

var _ devctx.Driver = (*Driver)(nil)

// NewDriver returns a driver with one device per compute capability pair.
func NewDriver(computes ...[2]int) *Driver {
	d := &Driver{}
	for i, c := range computes {
		d.devices = append(d.devices, devctx.DeviceProperties{
			Device:             i,
			Name:               fmt.Sprintf("Simulated GPU %d.%d", c[0], c[1]),
			UUID:               fmt.Sprintf("GPU-00000000-0000-0000-0000-%012d", i),
			ComputeMajor:       c[0],
			ComputeMinor:       c[1],
			MultiProcessors:    40,
			MaxThreadsPerBlock: 1024,
			TotalMemory:        8 << 30,
			PCIBusID:           fmt.Sprintf("0000:%02x:00.0", i+1),
		})
	}
	return d
}

// LiveBuffers returns the number of allocations not yet freed.
func (d *Driver) LiveBuffers() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.live
}

func (d *Driver) DeviceCount() (int, error) { return len(d.devices), nil }

func (d *Driver) CurrentDevice() (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current, nil
}

func (d *Driver) SetDevice(device int) error {
	if device < 0 || device >= len(d.devices) {
		return devctx.Translate(101, devctx.Compute)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.current = device
	return nil
}

func (d *Driver) DeviceProperties(device int) (devctx.DeviceProperties, error) {
	if d.FailProperties != nil {
		return devctx.DeviceProperties{}, d.FailProperties
	}
	if device < 0 || device >= len(d.devices) {
		return devctx.DeviceProperties{}, devctx.Translate(101, devctx.Compute)
	}
	return d.devices[device], nil
}

type handle struct{}

func (handle) Synchronize() error { return nil }

func (handle) Destroy() error { return nil }

func (d *Driver) NewStream(int) (devctx.Stream, error) { return handle{}, nil }

func (d *Driver) NewBlasHandle(int, devctx.Stream) (devctx.BlasHandle, error) { return handle{}, nil }

type buffer struct {
	d     *Driver
	data  []byte
	freed bool
}

func (b *buffer) Free() error {
	b.d.mu.Lock()
	defer b.d.mu.Unlock()
	if b.freed {
		return errors.New("double free")
	}
	b.freed = true
	b.d.live--
	return nil
}

func (d *Driver) Alloc(_ int, bytes int64) (devctx.DeviceBuffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.live++
	return &buffer{d: d, data: make([]byte, bytes)}, nil
}

func (d *Driver) CopyToDevice(dst devctx.DeviceBuffer, src []byte) error {
	copy(dst.(*buffer).data, src)
	return nil
}

func (d *Driver) CopyToHost(dst []byte, src devctx.DeviceBuffer) error {
	copy(dst, src.(*buffer).data)
	return nil
}

func (d *Driver) Synchronize(int) error { return nil }
