//go:build cuda

// Package cuda implements devctx.Driver over the CUDA runtime and cuBLAS,
// with NVML filling in the device names and memory sizes the runtime
// attribute API does not expose.
package cuda

import (
	"errors"
	"fmt"

	"github.com/samcharles93/devplane/internal/backend/cuda/native"
	"github.com/samcharles93/devplane/internal/backend/inventory"
	"github.com/samcharles93/devplane/internal/devctx"
	"github.com/samcharles93/devplane/internal/logger"
)

// ErrNoDevices is returned by NewDriver when the runtime loads but reports no
// devices.
var ErrNoDevices = errors.New("no cuda devices detected")

type Driver struct {
	inv *inventory.Inventory
	log logger.Logger
}

var _ devctx.Driver = (*Driver)(nil)

func NewDriver(log logger.Logger) (*Driver, error) {
	return NewDriverWithInventory(inventory.New(log), log)
}

// NewDriverWithInventory uses inv for device enrichment instead of the
// host's NVML.
func NewDriverWithInventory(inv *inventory.Inventory, log logger.Logger) (*Driver, error) {
	if log == nil {
		log = logger.Discard()
	}
	count, err := native.DeviceCount()
	if err != nil {
		return nil, fmt.Errorf("cuda device query failed: %w", err)
	}
	if count < 1 {
		return nil, ErrNoDevices
	}
	log.Debug("cuda runtime loaded", "devices", count)
	return &Driver{inv: inv, log: log}, nil
}

func (d *Driver) DeviceCount() (int, error) {
	return native.DeviceCount()
}

func (d *Driver) CurrentDevice() (int, error) {
	return native.Device()
}

func (d *Driver) SetDevice(device int) error {
	return native.SetDevice(device)
}

func (d *Driver) DeviceProperties(device int) (devctx.DeviceProperties, error) {
	props := devctx.DeviceProperties{
		Device: device,
		Name:   fmt.Sprintf("cuda:%d", device),
	}
	fields := []struct {
		attr int
		dst  *int
	}{
		{native.AttrComputeCapabilityMajor, &props.ComputeMajor},
		{native.AttrComputeCapabilityMinor, &props.ComputeMinor},
		{native.AttrMultiProcessorCount, &props.MultiProcessors},
		{native.AttrMaxThreadsPerBlock, &props.MaxThreadsPerBlock},
	}
	for _, f := range fields {
		v, err := native.DeviceAttribute(f.attr, device)
		if err != nil {
			return devctx.DeviceProperties{}, err
		}
		*f.dst = v
	}

	bus, err := native.PCIBusID(device)
	if err != nil {
		d.log.Warn("pci bus id unavailable", "device", device, "error", err)
		return props, nil
	}
	props.PCIBusID = bus
	if !d.inv.Enrich(&props) {
		d.log.Debug("no nvml record for device", "device", device, "bus", bus)
	}
	return props, nil
}

// NewStream creates a non-blocking stream on the active device. The caller
// has already made device current.
func (d *Driver) NewStream(device int) (devctx.Stream, error) {
	s, err := native.NewStream()
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (d *Driver) NewBlasHandle(device int, stream devctx.Stream) (devctx.BlasHandle, error) {
	s, ok := stream.(native.Stream)
	if !ok {
		return nil, foreignHandle("stream", stream)
	}
	h, err := native.NewBlasHandle(s)
	if err != nil {
		return nil, err
	}
	return h, nil
}

func (d *Driver) Alloc(device int, bytes int64) (devctx.DeviceBuffer, error) {
	buf, err := native.AllocDevice(bytes)
	if err != nil {
		return nil, err
	}
	return buf, nil
}

func (d *Driver) CopyToDevice(dst devctx.DeviceBuffer, src []byte) error {
	buf, ok := dst.(native.DeviceBuffer)
	if !ok {
		return foreignHandle("buffer", dst)
	}
	return native.MemcpyH2D(buf, src)
}

func (d *Driver) CopyToHost(dst []byte, src devctx.DeviceBuffer) error {
	buf, ok := src.(native.DeviceBuffer)
	if !ok {
		return foreignHandle("buffer", src)
	}
	return native.MemcpyD2H(dst, buf)
}

// Synchronize waits for the active device, which the caller has set to
// device.
func (d *Driver) Synchronize(device int) error {
	return native.Synchronize()
}
