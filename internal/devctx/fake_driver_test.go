package devctx

import (
	"errors"
	"fmt"
	"sync"
)

// fakeDriver is an in-memory Driver. Device memory is a byte slice per
// buffer; streams and handles are counted so tests can check lifetimes.
type fakeDriver struct {
	mu sync.Mutex

	props   []DeviceProperties
	current int

	propQueries map[int]int
	streams     int
	blasHandles int
	destroyed   int
	allocs      int
	syncs       int
	nextID      int

	failProps  error
	failStream error
	failBlas   error
	failAlloc  error
	live       map[*fakeBuffer]bool
}

func newFakeDriver(computes ...[2]int) *fakeDriver {
	d := &fakeDriver{propQueries: map[int]int{}, live: map[*fakeBuffer]bool{}}
	for i, c := range computes {
		d.props = append(d.props, DeviceProperties{
			Name:               "fake",
			ComputeMajor:       c[0],
			ComputeMinor:       c[1],
			MultiProcessors:    80,
			MaxThreadsPerBlock: 1024,
			TotalMemory:        16 << 30,
			PCIBusID:           fmt.Sprintf("00000000:%02X:00.0", i+1),
		})
	}
	return d
}

type fakeStream struct {
	d         *fakeDriver
	id        int
	device    int
	destroyed bool
}

func (s *fakeStream) Synchronize() error { return nil }

func (s *fakeStream) Destroy() error {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	s.destroyed = true
	s.d.destroyed++
	return nil
}

type fakeBlas struct {
	d         *fakeDriver
	id        int
	stream    *fakeStream
	destroyed bool
}

func (b *fakeBlas) Destroy() error {
	b.d.mu.Lock()
	defer b.d.mu.Unlock()
	b.destroyed = true
	b.d.destroyed++
	return nil
}

type fakeBuffer struct {
	d     *fakeDriver
	data  []byte
	freed bool
}

func (b *fakeBuffer) Free() error {
	b.d.mu.Lock()
	defer b.d.mu.Unlock()
	if b.freed {
		return errors.New("double free")
	}
	b.freed = true
	delete(b.d.live, b)
	return nil
}

func (d *fakeDriver) DeviceCount() (int, error) { return len(d.props), nil }

func (d *fakeDriver) CurrentDevice() (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current, nil
}

func (d *fakeDriver) SetDevice(device int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.current = device
	return nil
}

func (d *fakeDriver) DeviceProperties(device int) (DeviceProperties, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.propQueries[device]++
	if d.failProps != nil {
		return DeviceProperties{}, d.failProps
	}
	return d.props[device], nil
}

func (d *fakeDriver) NewStream(device int) (Stream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failStream != nil {
		return nil, d.failStream
	}
	d.streams++
	d.nextID++
	return &fakeStream{d: d, id: d.nextID, device: device}, nil
}

func (d *fakeDriver) NewBlasHandle(device int, stream Stream) (BlasHandle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failBlas != nil {
		return nil, d.failBlas
	}
	d.blasHandles++
	d.nextID++
	return &fakeBlas{d: d, id: d.nextID, stream: stream.(*fakeStream)}, nil
}

func (d *fakeDriver) Alloc(device int, bytes int64) (DeviceBuffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failAlloc != nil {
		return nil, d.failAlloc
	}
	d.allocs++
	b := &fakeBuffer{d: d, data: make([]byte, bytes)}
	d.live[b] = true
	return b, nil
}

func (d *fakeDriver) CopyToDevice(dst DeviceBuffer, src []byte) error {
	b := dst.(*fakeBuffer)
	if b.freed {
		return errors.New("copy to freed buffer")
	}
	copy(b.data, src)
	return nil
}

func (d *fakeDriver) CopyToHost(dst []byte, src DeviceBuffer) error {
	b := src.(*fakeBuffer)
	if b.freed {
		return errors.New("copy from freed buffer")
	}
	copy(dst, b.data)
	return nil
}

func (d *fakeDriver) Synchronize(int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.syncs++
	return nil
}

func (d *fakeDriver) liveBuffers() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.live)
}

func newTestManager(t interface{ Fatalf(string, ...any) }, drv Driver, threadID func() int) *Manager {
	m, err := New(Options{Driver: drv, Seed: 42, TrueFP16Gemm: true, ThreadID: threadID})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return m
}

func fixedThread(id int) func() int {
	return func() int { return id }
}
