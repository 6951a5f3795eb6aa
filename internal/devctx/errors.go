package devctx

import (
	"errors"
	"fmt"
)

var (
	ErrDeviceResource        = errors.New("device resource error")
	ErrInvalidDevice         = errors.New("invalid device")
	ErrUnsupportedCapability = errors.New("unsupported capability")
	ErrInvalidArgument       = errors.New("invalid argument")
	ErrClosed                = errors.New("device context closed")
)

// DeviceResourceError reports a failed native creation or allocation.
type DeviceResourceError struct {
	Op     string
	Device int
	Err    error
}

func (e *DeviceResourceError) Error() string {
	return fmt.Sprintf("%s on device %d: %v", e.Op, e.Device, e.Err)
}

func (e *DeviceResourceError) Unwrap() error {
	return e.Err
}

func (e *DeviceResourceError) Is(target error) bool {
	return target == ErrDeviceResource
}

// Status returns the native status carried by the error, if any.
func (e *DeviceResourceError) Status() *StatusError {
	return statusOf(e.Err)
}

// InvalidDeviceError reports a device id outside [0, Count).
type InvalidDeviceError struct {
	Device int
	Count  int
}

func (e *InvalidDeviceError) Error() string {
	if e.Count == 0 {
		return fmt.Sprintf("invalid device %d: no devices available", e.Device)
	}
	return fmt.Sprintf("invalid device %d: expected 0..%d", e.Device, e.Count-1)
}

func (e *InvalidDeviceError) Is(target error) bool {
	return target == ErrInvalidDevice
}

// UnsupportedCapabilityError reports a capability-gated path requested on
// hardware that lacks it.
type UnsupportedCapabilityError struct {
	Device     int
	Capability Capability
	Major      int
	Minor      int
}

func (e *UnsupportedCapabilityError) Error() string {
	return fmt.Sprintf("device %d (compute %d.%d) does not support %s", e.Device, e.Major, e.Minor, e.Capability)
}

func (e *UnsupportedCapabilityError) Is(target error) bool {
	return target == ErrUnsupportedCapability
}

func resourceError(op string, device int, err error) error {
	return &DeviceResourceError{Op: op, Device: device, Err: err}
}
