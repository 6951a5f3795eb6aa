package devctx

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/samcharles93/devplane/internal/logger"
)

// Capability names a hardware-gated code path.
type Capability string

const (
	Int8           Capability = "int8 matmul"
	Int8TensorPath Capability = "int8 tensor-core path"
	FP16TensorPath Capability = "fp16 tensor-core path"
)

// Minimum compute versions (major*10+minor) for each capability.
const (
	minInt8Compute           = 61
	minInt8TensorPathCompute = 72
	minFP16TensorPathCompute = 70
)

// Capabilities is the cached capability record of one device.
type Capabilities struct {
	Properties     DeviceProperties `json:"properties"`
	SupportsInt8   bool             `json:"supports_int8"`
	Int8TensorPath bool             `json:"int8_tensor_path"`
	FP16TensorPath bool             `json:"fp16_tensor_path"`
}

// Has reports whether the record grants c.
func (c Capabilities) Has(capability Capability) bool {
	switch capability {
	case Int8:
		return c.SupportsInt8
	case Int8TensorPath:
		return c.Int8TensorPath
	case FP16TensorPath:
		return c.FP16TensorPath
	}
	return false
}

func capabilitiesOf(p DeviceProperties) Capabilities {
	v := p.ComputeVersion()
	return Capabilities{
		Properties:     p,
		SupportsInt8:   v >= minInt8Compute,
		Int8TensorPath: v >= minInt8TensorPathCompute,
		FP16TensorPath: v >= minFP16TensorPathCompute,
	}
}

// CapabilityCache memoizes device properties for the life of the process.
// Failed queries are not cached.
type CapabilityCache struct {
	drv     Driver
	devices *deviceTable
	log     logger.Logger
	metrics *Metrics

	flight  singleflight.Group
	records sync.Map // int -> Capabilities
}

func newCapabilityCache(drv Driver, devices *deviceTable, log logger.Logger, metrics *Metrics) *CapabilityCache {
	return &CapabilityCache{drv: drv, devices: devices, log: log, metrics: metrics}
}

// DeviceCount returns the number of visible devices.
func (c *CapabilityCache) DeviceCount() (int, error) {
	return c.devices.Count()
}

// HasDevice reports whether at least one device is visible.
func (c *CapabilityCache) HasDevice() bool {
	n, err := c.devices.Count()
	return err == nil && n > 0
}

func (c *CapabilityCache) Capabilities(device int) (Capabilities, error) {
	dev, err := c.devices.Resolve(device)
	if err != nil {
		return Capabilities{}, err
	}
	if v, ok := c.records.Load(dev); ok {
		return v.(Capabilities), nil
	}

	v, err, _ := c.flight.Do(strconv.Itoa(dev), func() (any, error) {
		if v, ok := c.records.Load(dev); ok {
			return v, nil
		}
		props, err := c.drv.DeviceProperties(dev)
		c.metrics.capabilityProbed(dev)
		if err != nil {
			c.log.Warn("device property query failed", "device", dev, "err", err)
			return nil, fmt.Errorf("query properties of device %d: %w", dev, err)
		}
		props.Device = dev
		caps := capabilitiesOf(props)
		c.records.Store(dev, caps)
		c.log.Debug("device capabilities cached",
			"device", dev,
			"name", props.Name,
			"compute", fmt.Sprintf("%d.%d", props.ComputeMajor, props.ComputeMinor),
		)
		return caps, nil
	})
	if err != nil {
		return Capabilities{}, err
	}
	return v.(Capabilities), nil
}

func (c *CapabilityCache) Properties(device int) (DeviceProperties, error) {
	caps, err := c.Capabilities(device)
	return caps.Properties, err
}

func (c *CapabilityCache) SupportsInt8(device int) (bool, error) {
	caps, err := c.Capabilities(device)
	return caps.SupportsInt8, err
}

func (c *CapabilityCache) HasInt8TensorPath(device int) (bool, error) {
	caps, err := c.Capabilities(device)
	return caps.Int8TensorPath, err
}

func (c *CapabilityCache) HasFP16TensorPath(device int) (bool, error) {
	caps, err := c.Capabilities(device)
	return caps.FP16TensorPath, err
}

// SameComputeCapability reports whether all devices share one compute
// capability version. Empty and single-device sets are trivially true.
func (c *CapabilityCache) SameComputeCapability(devices []int) (bool, error) {
	if len(devices) < 2 {
		return true, nil
	}
	first, err := c.Capabilities(devices[0])
	if err != nil {
		return false, err
	}
	for _, d := range devices[1:] {
		caps, err := c.Capabilities(d)
		if err != nil {
			return false, err
		}
		if caps.Properties.ComputeMajor != first.Properties.ComputeMajor ||
			caps.Properties.ComputeMinor != first.Properties.ComputeMinor {
			return false, nil
		}
	}
	return true, nil
}

// Require returns an UnsupportedCapabilityError if device lacks capability.
// Call it before dispatching a gated kernel.
func (c *CapabilityCache) Require(device int, capability Capability) error {
	caps, err := c.Capabilities(device)
	if err != nil {
		return err
	}
	if !caps.Has(capability) {
		return &UnsupportedCapabilityError{
			Device:     caps.Properties.Device,
			Capability: capability,
			Major:      caps.Properties.ComputeMajor,
			Minor:      caps.Properties.ComputeMinor,
		}
	}
	return nil
}

// Warm queries every visible device concurrently and fills the cache.
func (c *CapabilityCache) Warm(ctx context.Context) error {
	n, err := c.devices.Count()
	if err != nil {
		return err
	}
	g, ctx := errgroup.WithContext(ctx)
	for dev := range n {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			_, err := c.Capabilities(dev)
			return err
		})
	}
	return g.Wait()
}

// All returns the cached records of every visible device, querying any that
// are missing.
func (c *CapabilityCache) All() ([]Capabilities, error) {
	n, err := c.devices.Count()
	if err != nil {
		return nil, err
	}
	out := make([]Capabilities, 0, n)
	for dev := range n {
		caps, err := c.Capabilities(dev)
		if err != nil {
			return nil, err
		}
		out = append(out, caps)
	}
	return out, nil
}
