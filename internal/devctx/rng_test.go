package devctx

import (
	"errors"
	"sync"
	"testing"
)

func TestRNGGrowthPreservesPrefix(t *testing.T) {
	t.Parallel()
	drv := newFakeDriver([2]int{8, 0})
	pool := newTestManager(t, drv, fixedThread(1)).RNG()

	small, err := pool.States(0, 8)
	if err != nil {
		t.Fatalf("States(8): %v", err)
	}
	before, err := pool.ReadStates(small, 8)
	if err != nil {
		t.Fatalf("ReadStates: %v", err)
	}

	large, err := pool.States(0, 32)
	if err != nil {
		t.Fatalf("States(32): %v", err)
	}
	if large.Count != 32 || large.Generation != small.Generation+1 {
		t.Fatalf("unexpected handle after growth: %+v", large)
	}
	after, err := pool.ReadStates(large, 8)
	if err != nil {
		t.Fatalf("ReadStates after growth: %v", err)
	}
	for i := range before {
		if before[i] != after[i] {
			t.Fatalf("state %d changed across growth", i)
		}
	}
	if _, err := pool.ReadStates(small, 1); !errors.Is(err, ErrStaleStates) {
		t.Fatalf("expected ErrStaleStates for the replaced handle, got %v", err)
	}
	if drv.liveBuffers() != 1 {
		t.Fatalf("old buffer not released, live=%d", drv.liveBuffers())
	}
	if drv.syncs != 1 {
		t.Fatalf("expected one device sync before freeing, got %d", drv.syncs)
	}
}

func TestRNGSmallerRequestDoesNotGrow(t *testing.T) {
	t.Parallel()
	drv := newFakeDriver([2]int{8, 0})
	pool := newTestManager(t, drv, fixedThread(1)).RNG()

	big, err := pool.States(0, 64)
	if err != nil {
		t.Fatalf("States(64): %v", err)
	}
	small, err := pool.States(0, 16)
	if err != nil {
		t.Fatalf("States(16): %v", err)
	}
	if drv.allocs != 1 {
		t.Fatalf("expected a single allocation, got %d", drv.allocs)
	}
	if small != big || pool.Capacity(0) != 64 {
		t.Fatalf("smaller request must reuse the pool: %+v vs %+v", small, big)
	}

	other := newTestManager(t, newFakeDriver([2]int{8, 0}), fixedThread(1)).RNG()
	ref, _ := other.States(0, 16)
	want, _ := other.ReadStates(ref, 16)
	got, _ := pool.ReadStates(small, 16)
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("state %d differs from an independent pool with the same seed", i)
		}
	}
}

func TestRNGSeedChangesStates(t *testing.T) {
	t.Parallel()
	a, _ := New(Options{Driver: newFakeDriver([2]int{8, 0}), Seed: 1, ThreadID: fixedThread(1)})
	b, _ := New(Options{Driver: newFakeDriver([2]int{8, 0}), Seed: 2, ThreadID: fixedThread(1)})

	ha, _ := a.RNG().States(0, 4)
	hb, _ := b.RNG().States(0, 4)
	sa, _ := a.RNG().ReadStates(ha, 4)
	sb, _ := b.RNG().ReadStates(hb, 4)
	if sa[0] == sb[0] {
		t.Fatal("different seeds produced the same state")
	}
	if a.RNG().Seed() != 1 {
		t.Fatalf("Seed() = %d", a.RNG().Seed())
	}
}

func TestRNGGrowthFailureKeepsPool(t *testing.T) {
	t.Parallel()
	drv := newFakeDriver([2]int{8, 0})
	pool := newTestManager(t, drv, fixedThread(1)).RNG()

	h, err := pool.States(0, 8)
	if err != nil {
		t.Fatalf("States(8): %v", err)
	}
	drv.failAlloc = Translate(2, Compute)
	_, err = pool.States(0, 1024)
	var dre *DeviceResourceError
	if !errors.As(err, &dre) || dre.Status().Name != "cudaErrorMemoryAllocation" {
		t.Fatalf("expected allocation failure, got %v", err)
	}
	if pool.Capacity(0) != 8 {
		t.Fatalf("capacity changed to %d after failed growth", pool.Capacity(0))
	}
	if _, err := pool.ReadStates(h, 8); err != nil {
		t.Fatalf("prior handle unusable after failed growth: %v", err)
	}
	again, err := pool.States(0, 8)
	if err != nil || again != h {
		t.Fatalf("prior capacity should still serve: %+v %v", again, err)
	}
}

func TestRNGInvalidRequests(t *testing.T) {
	t.Parallel()
	pool := newTestManager(t, newFakeDriver([2]int{8, 0}), fixedThread(1)).RNG()

	for _, n := range []int{0, -4} {
		if _, err := pool.States(0, n); !errors.Is(err, ErrInvalidArgument) {
			t.Fatalf("count %d: expected ErrInvalidArgument, got %v", n, err)
		}
	}
	if _, err := pool.States(2, 8); !errors.Is(err, ErrInvalidDevice) {
		t.Fatalf("expected ErrInvalidDevice, got %v", err)
	}
	h, _ := pool.States(0, 4)
	if _, err := pool.ReadStates(h, 5); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument reading past the handle, got %v", err)
	}
}

func TestRNGConcurrentGrowth(t *testing.T) {
	t.Parallel()
	drv := newFakeDriver([2]int{8, 0})
	pool := newTestManager(t, drv, fixedThread(1)).RNG()

	var wg sync.WaitGroup
	for i := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h, err := pool.States(0, (i+1)*8)
			if err != nil {
				t.Errorf("States: %v", err)
				return
			}
			if h.Count < (i+1)*8 {
				t.Errorf("handle holds %d states, asked for %d", h.Count, (i+1)*8)
			}
		}()
	}
	wg.Wait()
	if pool.Capacity(0) != 128 {
		t.Fatalf("capacity = %d, want 128", pool.Capacity(0))
	}
	if drv.liveBuffers() != 1 {
		t.Fatalf("expected one live buffer, got %d", drv.liveBuffers())
	}
}

func TestRNGClose(t *testing.T) {
	t.Parallel()
	drv := newFakeDriver([2]int{8, 0}, [2]int{8, 0})
	pool := newTestManager(t, drv, fixedThread(1)).RNG()

	_, _ = pool.States(0, 8)
	_, _ = pool.States(1, 8)
	if err := pool.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if drv.liveBuffers() != 0 {
		t.Fatalf("Close left %d buffers", drv.liveBuffers())
	}
	if _, err := pool.States(0, 8); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestRNGCapacityCurrentDevice(t *testing.T) {
	t.Parallel()
	drv := newFakeDriver([2]int{7, 5}, [2]int{8, 6})
	drv.current = 1
	pool := newTestManager(t, drv, fixedThread(1)).RNG()

	h, err := pool.States(CurrentDevice, 8)
	if err != nil {
		t.Fatalf("States: %v", err)
	}
	if h.Device != 1 {
		t.Fatalf("handle on device %d, want 1", h.Device)
	}

	tests := []struct {
		device int
		want   int
	}{
		{CurrentDevice, 8},
		{1, 8},
		{0, 0},
		{5, 0},
		{-7, 0},
	}
	for _, tc := range tests {
		if got := pool.Capacity(tc.device); got != tc.want {
			t.Errorf("Capacity(%d) = %d, want %d", tc.device, got, tc.want)
		}
	}
}
