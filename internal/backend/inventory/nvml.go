package inventory

import "github.com/NVIDIA/go-nvml/pkg/nvml"

// Device is the subset of an NVML device handle the inventory reads.
type Device interface {
	GetName() (string, nvml.Return)
	GetUUID() (string, nvml.Return)
	GetMemoryInfo() (nvml.Memory, nvml.Return)
	GetPciInfo() (nvml.PciInfo, nvml.Return)
}

// Library is the subset of NVML the inventory calls.
type Library interface {
	Init() nvml.Return
	Shutdown() nvml.Return
	DeviceGetCount() (int, nvml.Return)
	DeviceGetHandleByIndex(index int) (Device, nvml.Return)
	SystemGetDriverVersion() (string, nvml.Return)
}

type realDevice struct {
	device nvml.Device
}

func (d realDevice) GetName() (string, nvml.Return) { return d.device.GetName() }

func (d realDevice) GetUUID() (string, nvml.Return) { return d.device.GetUUID() }

func (d realDevice) GetMemoryInfo() (nvml.Memory, nvml.Return) { return d.device.GetMemoryInfo() }

func (d realDevice) GetPciInfo() (nvml.PciInfo, nvml.Return) { return d.device.GetPciInfo() }

// System is the Library backed by the host's libnvidia-ml.
type System struct{}

func (System) Init() nvml.Return { return nvml.Init() }

func (System) Shutdown() nvml.Return { return nvml.Shutdown() }

func (System) DeviceGetCount() (int, nvml.Return) { return nvml.DeviceGetCount() }

func (System) DeviceGetHandleByIndex(index int) (Device, nvml.Return) {
	d, ret := nvml.DeviceGetHandleByIndex(index)
	if ret != nvml.SUCCESS {
		return nil, ret
	}
	return realDevice{device: d}, ret
}

func (System) SystemGetDriverVersion() (string, nvml.Return) { return nvml.SystemGetDriverVersion() }
