// Package inventory reads the NVML view of the host's GPUs: marketing name,
// UUID, memory size and PCI location. The compute runtime numbers devices in
// its own order, so records are matched to runtime devices by PCI bus id.
package inventory

import (
	"fmt"
	"strings"
	"sync"

	"github.com/NVIDIA/go-nvml/pkg/nvml"

	"github.com/samcharles93/devplane/internal/devctx"
	"github.com/samcharles93/devplane/internal/logger"
)

// Record is one device as NVML reports it.
type Record struct {
	Index       int    `json:"index"`
	Name        string `json:"name"`
	UUID        string `json:"uuid"`
	TotalMemory uint64 `json:"total_memory"`
	Bus         BusID  `json:"bus_id"`
}

// Report is the result of one scan.
type Report struct {
	DriverVersion string   `json:"driver_version,omitempty"`
	Devices       []Record `json:"devices"`
}

// Inventory scans NVML once and serves lookups from the cached report.
type Inventory struct {
	lib Library
	log logger.Logger

	once   sync.Once
	report Report
	err    error
}

func New(log logger.Logger) *Inventory {
	return NewWithLibrary(System{}, log)
}

// NewWithLibrary builds an Inventory over lib. Tests pass a fake.
func NewWithLibrary(lib Library, log logger.Logger) *Inventory {
	if log == nil {
		log = logger.Discard()
	}
	return &Inventory{lib: lib, log: log}
}

// Report returns the cached scan, scanning on first use. A failed scan is
// cached too: NVML availability does not change during a process lifetime.
func (i *Inventory) Report() (Report, error) {
	i.once.Do(func() {
		i.report, i.err = i.scan()
	})
	return i.report, i.err
}

// Lookup finds the record at bus. ok is false when NVML is unavailable or has
// no device there.
func (i *Inventory) Lookup(bus BusID) (Record, bool) {
	report, err := i.Report()
	if err != nil {
		return Record{}, false
	}
	for _, r := range report.Devices {
		if r.Bus == bus {
			return r, true
		}
	}
	return Record{}, false
}

// Enrich fills name, UUID and memory on props from the record sharing its
// PCI bus id. Fields NVML could not read are left as they were.
func (i *Inventory) Enrich(props *devctx.DeviceProperties) bool {
	bus, err := ParseBusID(props.PCIBusID)
	if err != nil {
		return false
	}
	r, ok := i.Lookup(bus)
	if !ok {
		return false
	}
	if r.Name != "" {
		props.Name = r.Name
	}
	if r.UUID != "" {
		props.UUID = r.UUID
	}
	if r.TotalMemory != 0 {
		props.TotalMemory = r.TotalMemory
	}
	return true
}

func (i *Inventory) scan() (Report, error) {
	if err := check(i.lib.Init()); err != nil {
		i.log.Warn("nvml unavailable", "error", err)
		return Report{}, fmt.Errorf("nvml init: %w", err)
	}
	defer func() {
		if err := check(i.lib.Shutdown()); err != nil {
			i.log.Warn("nvml shutdown failed", "error", err)
		}
	}()

	var report Report
	if v, ret := i.lib.SystemGetDriverVersion(); ret == nvml.SUCCESS {
		report.DriverVersion = v
	}

	count, ret := i.lib.DeviceGetCount()
	if err := check(ret); err != nil {
		return Report{}, fmt.Errorf("nvml device count: %w", err)
	}
	report.Devices = make([]Record, 0, count)
	for idx := range count {
		dev, ret := i.lib.DeviceGetHandleByIndex(idx)
		if err := check(ret); err != nil {
			i.log.Warn("nvml device handle failed", "index", idx, "error", err)
			continue
		}
		pci, ret := dev.GetPciInfo()
		if err := check(ret); err != nil {
			i.log.Warn("nvml pci info failed", "index", idx, "error", err)
			continue
		}
		r := Record{
			Index: idx,
			Bus:   BusID{Domain: pci.Domain, Bus: pci.Bus, Device: pci.Device},
		}
		if name, ret := dev.GetName(); ret == nvml.SUCCESS {
			r.Name = name
		}
		if uuid, ret := dev.GetUUID(); ret == nvml.SUCCESS {
			r.UUID = uuid
		}
		if mem, ret := dev.GetMemoryInfo(); ret == nvml.SUCCESS {
			r.TotalMemory = mem.Total
		}
		report.Devices = append(report.Devices, r)
	}
	i.log.Debug("nvml scan complete", "devices", len(report.Devices), "driver", report.DriverVersion)
	return report, nil
}

func check(ret nvml.Return) error {
	return devctx.Check(int(ret), devctx.Management)
}

// BusID is a PCI location. Function numbers are ignored: a GPU is always
// function 0.
type BusID struct {
	Domain uint32
	Bus    uint32
	Device uint32
}

func (b BusID) String() string {
	return fmt.Sprintf("%08x:%02x:%02x.0", b.Domain, b.Bus, b.Device)
}

func (b BusID) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

// ParseBusID reads "domain:bus:device.function" in hex. The domain may be 4
// or 8 digits; the runtime and NVML disagree on the width.
func ParseBusID(s string) (BusID, error) {
	var b BusID
	var fn uint32
	n, err := fmt.Sscanf(strings.ToLower(strings.TrimSpace(s)), "%x:%x:%x.%x", &b.Domain, &b.Bus, &b.Device, &fn)
	if err != nil || n != 4 {
		return BusID{}, fmt.Errorf("invalid pci bus id %q", s)
	}
	return b, nil
}
