package devctx

import (
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
)

func TestRegistrySameThreadReusesHandles(t *testing.T) {
	t.Parallel()
	drv := newFakeDriver([2]int{8, 0})
	reg := newTestManager(t, drv, fixedThread(7)).Registry()

	s1, err := reg.Stream(0)
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	s2, err := reg.Stream(0)
	if err != nil {
		t.Fatalf("Stream again: %v", err)
	}
	if s1 != s2 {
		t.Fatal("expected the same stream for repeated requests")
	}
	b1, err := reg.Blas(0)
	if err != nil {
		t.Fatalf("Blas: %v", err)
	}
	b2, _ := reg.Blas(0)
	if b1 != b2 {
		t.Fatal("expected the same blas handle for repeated requests")
	}
	if b1.(*fakeBlas).stream != s1 {
		t.Fatal("blas handle must be bound to the context's stream")
	}
	if drv.streams != 1 || drv.blasHandles != 1 {
		t.Fatalf("expected one native creation each, got streams=%d blas=%d", drv.streams, drv.blasHandles)
	}
}

func TestRegistryKeysByThread(t *testing.T) {
	t.Parallel()
	drv := newFakeDriver([2]int{8, 0}, [2]int{8, 0})
	var tid atomic.Int64
	reg := newTestManager(t, drv, func() int { return int(tid.Load()) }).Registry()

	tid.Store(1)
	a, err := reg.Context(0)
	if err != nil {
		t.Fatalf("Context thread 1: %v", err)
	}
	tid.Store(2)
	b, err := reg.Context(0)
	if err != nil {
		t.Fatalf("Context thread 2: %v", err)
	}
	c, err := reg.Context(1)
	if err != nil {
		t.Fatalf("Context thread 2 device 1: %v", err)
	}
	if a == b || b == c || a.Stream == b.Stream {
		t.Fatal("distinct (device, thread) keys must not share contexts")
	}
	tid.Store(1)
	again, _ := reg.Context(0)
	if again != a {
		t.Fatal("thread 1 should get its original context back")
	}
	if reg.Len() != 3 {
		t.Fatalf("expected 3 contexts, got %d", reg.Len())
	}
}

func TestRegistryCurrentDevice(t *testing.T) {
	t.Parallel()
	drv := newFakeDriver([2]int{7, 5}, [2]int{8, 6})
	drv.current = 1
	reg := newTestManager(t, drv, fixedThread(1)).Registry()

	ec, err := reg.Context(CurrentDevice)
	if err != nil {
		t.Fatalf("Context: %v", err)
	}
	if ec.Device != 1 {
		t.Fatalf("expected current device 1, got %d", ec.Device)
	}
	explicit, _ := reg.Context(1)
	if explicit != ec {
		t.Fatal("CurrentDevice and the explicit id must share one context")
	}
}

func TestRegistryRestoresActiveDevice(t *testing.T) {
	t.Parallel()
	drv := newFakeDriver([2]int{8, 0}, [2]int{8, 0})
	reg := newTestManager(t, drv, fixedThread(1)).Registry()

	ec, err := reg.Context(1)
	if err != nil {
		t.Fatalf("Context: %v", err)
	}
	if got := ec.Stream.(*fakeStream).device; got != 1 {
		t.Fatalf("stream created on device %d, want 1", got)
	}
	if drv.current != 0 {
		t.Fatalf("active device changed to %d", drv.current)
	}
}

func TestRegistryInvalidDevice(t *testing.T) {
	t.Parallel()
	drv := newFakeDriver([2]int{8, 0})
	reg := newTestManager(t, drv, fixedThread(1)).Registry()

	for _, dev := range []int{1, 5, -2} {
		_, err := reg.Stream(dev)
		if !errors.Is(err, ErrInvalidDevice) {
			t.Fatalf("device %d: expected ErrInvalidDevice, got %v", dev, err)
		}
		var ide *InvalidDeviceError
		if !errors.As(err, &ide) || ide.Device != dev || ide.Count != 1 {
			t.Fatalf("device %d: unexpected error detail %#v", dev, err)
		}
	}
	if drv.streams != 0 {
		t.Fatal("no native resource should be created for an invalid device")
	}
}

func TestRegistryFailedCreationLeavesNothing(t *testing.T) {
	t.Parallel()
	drv := newFakeDriver([2]int{8, 0})
	drv.failBlas = Translate(3, Blas)
	reg := newTestManager(t, drv, fixedThread(1)).Registry()

	_, err := reg.Blas(0)
	if !errors.Is(err, ErrDeviceResource) {
		t.Fatalf("expected ErrDeviceResource, got %v", err)
	}
	var dre *DeviceResourceError
	if !errors.As(err, &dre) {
		t.Fatalf("expected *DeviceResourceError, got %T", err)
	}
	st := dre.Status()
	if st == nil || st.Subsystem != Blas || st.Code != 3 || st.Name != "CUBLAS_STATUS_ALLOC_FAILED" {
		t.Fatalf("unexpected status %#v", st)
	}
	if reg.Len() != 0 {
		t.Fatal("failed creation must not store an entry")
	}
	if drv.destroyed != 1 {
		t.Fatalf("stream from the failed attempt should be destroyed, destroyed=%d", drv.destroyed)
	}

	drv.failBlas = nil
	if _, err := reg.Blas(0); err != nil {
		t.Fatalf("retry after failure: %v", err)
	}
	if reg.Len() != 1 {
		t.Fatalf("expected one context after retry, got %d", reg.Len())
	}
}

func TestRegistryStreamFailure(t *testing.T) {
	t.Parallel()
	drv := newFakeDriver([2]int{8, 0})
	drv.failStream = TranslateMessage(2, Compute, "out of memory")
	reg := newTestManager(t, drv, fixedThread(1)).Registry()

	_, err := reg.Stream(0)
	var dre *DeviceResourceError
	if !errors.As(err, &dre) || dre.Op != "create stream" {
		t.Fatalf("expected create stream failure, got %v", err)
	}
	if dre.Status().Message != "out of memory" {
		t.Fatalf("native message lost: %v", err)
	}
}

func TestRegistryClose(t *testing.T) {
	t.Parallel()
	drv := newFakeDriver([2]int{8, 0}, [2]int{8, 0})
	reg := newTestManager(t, drv, fixedThread(1)).Registry()

	a, _ := reg.Context(0)
	b, _ := reg.Context(1)
	if err := reg.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	for _, ec := range []*ExecutionContext{a, b} {
		if !ec.Stream.(*fakeStream).destroyed || !ec.Blas.(*fakeBlas).destroyed {
			t.Fatal("Close must destroy every handle")
		}
	}
	if _, err := reg.Context(0); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if err := reg.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestRegistryOSThreads(t *testing.T) {
	if runtime.GOOS != "linux" && runtime.GOOS != "windows" {
		t.Skip("thread ids are only resolved on linux and windows")
	}
	t.Parallel()
	drv := newFakeDriver([2]int{8, 0})
	reg := newTestManager(t, drv, nil).Registry()

	const workers = 8
	var (
		fetched sync.WaitGroup
		done    sync.WaitGroup
		mu      sync.Mutex
		seen    = map[*ExecutionContext]bool{}
	)
	fetched.Add(workers)
	done.Add(workers)
	for range workers {
		go func() {
			defer done.Done()
			// Exiting while locked retires the thread, so ids stay unique.
			runtime.LockOSThread()
			first, err := reg.Context(0)
			if err != nil {
				t.Errorf("Context: %v", err)
				fetched.Done()
				return
			}
			second, _ := reg.Context(0)
			if first != second {
				t.Errorf("same thread got two contexts")
			}
			mu.Lock()
			seen[first] = true
			mu.Unlock()
			fetched.Done()
			fetched.Wait()
		}()
	}
	done.Wait()
	if len(seen) != workers {
		t.Fatalf("expected %d distinct contexts, got %d", workers, len(seen))
	}
}
