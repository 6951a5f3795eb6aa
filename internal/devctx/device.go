package devctx

import (
	"fmt"
	"runtime"
	"sync"
)

// CurrentDevice selects the calling thread's active device.
const CurrentDevice = -1

// deviceTable resolves and validates device ids. The device count is cached
// after the first successful query; hardware does not change at runtime.
type deviceTable struct {
	drv Driver

	mu    sync.Mutex
	count int
	known bool
}

func newDeviceTable(drv Driver) *deviceTable {
	return &deviceTable{drv: drv}
}

func (t *deviceTable) Count() (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.known {
		return t.count, nil
	}
	n, err := t.drv.DeviceCount()
	if err != nil {
		return 0, fmt.Errorf("device count query failed: %w", err)
	}
	t.count = n
	t.known = true
	return n, nil
}

// Resolve maps CurrentDevice to the thread's active device and checks the
// result is in range.
func (t *deviceTable) Resolve(device int) (int, error) {
	if device == CurrentDevice {
		cur, err := t.drv.CurrentDevice()
		if err != nil {
			return 0, fmt.Errorf("current device query failed: %w", err)
		}
		device = cur
	}
	n, err := t.Count()
	if err != nil {
		return 0, err
	}
	if device < 0 || device >= n {
		return 0, &InvalidDeviceError{Device: device, Count: n}
	}
	return device, nil
}

// use makes device current on the calling thread and returns a func that
// restores the previous device. The goroutine stays locked to its thread
// until the restore func runs.
func (t *deviceTable) use(device int) (func(), error) {
	runtime.LockOSThread()
	prev, err := t.drv.CurrentDevice()
	if err != nil {
		runtime.UnlockOSThread()
		return nil, err
	}
	if prev == device {
		return runtime.UnlockOSThread, nil
	}
	if err := t.drv.SetDevice(device); err != nil {
		runtime.UnlockOSThread()
		return nil, err
	}
	return func() {
		_ = t.drv.SetDevice(prev)
		runtime.UnlockOSThread()
	}, nil
}
