//go:build cuda

package cuda

import (
	"errors"
	"runtime"
	"testing"

	"github.com/samcharles93/devplane/internal/devctx"
)

func newManager(t *testing.T) *devctx.Manager {
	t.Helper()
	drv, err := NewDriver(nil)
	if errors.Is(err, ErrNoDevices) {
		t.Skip("no cuda device available")
	}
	if err != nil {
		t.Skipf("cuda runtime unavailable: %v", err)
	}
	m, err := devctx.New(devctx.Options{Driver: drv, Seed: 7, TrueFP16Gemm: true})
	if err != nil {
		t.Fatalf("devctx.New: %v", err)
	}
	t.Cleanup(func() {
		if err := m.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return m
}

func TestDriverProperties(t *testing.T) {
	m := newManager(t)
	props, err := m.Capabilities().Properties(0)
	if err != nil {
		t.Fatalf("Properties: %v", err)
	}
	if props.ComputeMajor < 3 || props.MultiProcessors < 1 || props.MaxThreadsPerBlock < 32 {
		t.Fatalf("implausible properties %+v", props)
	}
	if props.Name == "" {
		t.Fatal("device name empty")
	}
}

func TestDriverContextPerThread(t *testing.T) {
	m := newManager(t)
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	a, err := m.Registry().Context(devctx.CurrentDevice)
	if err != nil {
		t.Fatalf("Context: %v", err)
	}
	b, err := m.Registry().Context(a.Device)
	if err != nil {
		t.Fatalf("Context again: %v", err)
	}
	if a != b {
		t.Fatal("same thread and device must share one context")
	}
	if err := a.Stream.Synchronize(); err != nil {
		t.Fatalf("stream synchronize: %v", err)
	}

	done := make(chan *devctx.ExecutionContext)
	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		ec, err := m.Registry().Context(a.Device)
		if err != nil {
			t.Errorf("Context on second thread: %v", err)
		}
		done <- ec
	}()
	if other := <-done; other == a {
		t.Fatal("a second OS thread must get its own context")
	}
}

func TestDriverRNGRoundTrip(t *testing.T) {
	m := newManager(t)
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	h, err := m.RNG().States(0, 128)
	if err != nil {
		t.Fatalf("States: %v", err)
	}
	states, err := m.RNG().ReadStates(h, 2)
	if err != nil {
		t.Fatalf("ReadStates: %v", err)
	}
	if want := devctx.NewPhiloxState(7, 1, 0); states[1] != want {
		t.Fatalf("state 1 = %+v, want %+v", states[1], want)
	}
}
