package devctx

// Stream is an ordered queue of GPU work on one device.
type Stream interface {
	Synchronize() error
	Destroy() error
}

// BlasHandle is a BLAS library context bound to a stream.
type BlasHandle interface {
	Destroy() error
}

// DeviceBuffer is a device memory allocation.
type DeviceBuffer interface {
	Free() error
}

// DeviceProperties are the raw hardware properties of one device.
type DeviceProperties struct {
	Device             int    `json:"device"`
	Name               string `json:"name"`
	UUID               string `json:"uuid,omitempty"`
	ComputeMajor       int    `json:"compute_major"`
	ComputeMinor       int    `json:"compute_minor"`
	MultiProcessors    int    `json:"multiprocessors"`
	MaxThreadsPerBlock int    `json:"max_threads_per_block"`
	TotalMemory        uint64 `json:"total_memory"`
	PCIBusID           string `json:"pci_bus_id,omitempty"`
}

// ComputeVersion returns the compute capability as major*10+minor.
func (p DeviceProperties) ComputeVersion() int {
	return p.ComputeMajor*10 + p.ComputeMinor
}

// Driver is the native call surface the plane consumes. Implementations
// return *StatusError (possibly wrapped) for non-success native statuses.
//
// CurrentDevice and SetDevice act on the calling OS thread.
type Driver interface {
	DeviceCount() (int, error)
	CurrentDevice() (int, error)
	SetDevice(device int) error
	DeviceProperties(device int) (DeviceProperties, error)

	NewStream(device int) (Stream, error)
	NewBlasHandle(device int, stream Stream) (BlasHandle, error)

	Alloc(device int, bytes int64) (DeviceBuffer, error)
	CopyToDevice(dst DeviceBuffer, src []byte) error
	CopyToHost(dst []byte, src DeviceBuffer) error
	Synchronize(device int) error
}

// NoDevices is the Driver for builds without a GPU runtime. It reports zero
// devices, so every device-specific request fails with InvalidDeviceError.
type NoDevices struct{}

func (NoDevices) DeviceCount() (int, error) { return 0, nil }

func (NoDevices) CurrentDevice() (int, error) { return 0, nil }

func (NoDevices) SetDevice(device int) error {
	return &InvalidDeviceError{Device: device}
}

func (NoDevices) DeviceProperties(device int) (DeviceProperties, error) {
	return DeviceProperties{}, &InvalidDeviceError{Device: device}
}

func (NoDevices) NewStream(device int) (Stream, error) {
	return nil, &InvalidDeviceError{Device: device}
}

func (NoDevices) NewBlasHandle(device int, _ Stream) (BlasHandle, error) {
	return nil, &InvalidDeviceError{Device: device}
}

func (NoDevices) Alloc(device int, _ int64) (DeviceBuffer, error) {
	return nil, &InvalidDeviceError{Device: device}
}

func (NoDevices) CopyToDevice(DeviceBuffer, []byte) error { return ErrInvalidDevice }

func (NoDevices) CopyToHost([]byte, DeviceBuffer) error { return ErrInvalidDevice }

func (NoDevices) Synchronize(device int) error {
	return &InvalidDeviceError{Device: device}
}
