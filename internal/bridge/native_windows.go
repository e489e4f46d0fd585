//go:build windows

package bridge

import (
	"sync"
	"syscall"
	"unsafe"

	"github.com/pkg/errors"
)

// nativeClient binds to the host-provided DLL symbols (spec §6):
// PB_Init, PB_Close, PB_MaxDoubles, PB_WriteDoubles, PB_ReadDoubles,
// PB_ReadNextDoubles. PB_ReadNextDoubles is preferred when present; the
// library degrades to PB_ReadDoubles otherwise (ordering guarantees
// weaken, but coalescing in the worker still produces correct output).
type nativeClient struct {
	mu sync.Mutex

	dll *syscall.LazyDLL

	pbInit            *syscall.LazyProc
	pbClose           *syscall.LazyProc
	pbMaxDoubles      *syscall.LazyProc
	pbWriteDoubles    *syscall.LazyProc
	pbReadDoubles     *syscall.LazyProc
	pbReadNextDoubles *syscall.LazyProc
	hasReadNext       bool

	maxDoubles int
	scratch    []float64
	closed     bool
}

// NewNativeClient loads dllPath and binds the PB_* export table. The DLL
// is not opened until Open is called.
func NewNativeClient(dllPath string) (Client, error) {
	dll := syscall.NewLazyDLL(dllPath)
	c := &nativeClient{
		dll:            dll,
		pbInit:         dll.NewProc("PB_Init"),
		pbClose:        dll.NewProc("PB_Close"),
		pbMaxDoubles:   dll.NewProc("PB_MaxDoubles"),
		pbWriteDoubles: dll.NewProc("PB_WriteDoubles"),
		pbReadDoubles:  dll.NewProc("PB_ReadDoubles"),
	}
	if err := dll.Load(); err != nil {
		return nil, errors.Wrapf(err, "load native bridge library %q", dllPath)
	}
	if readNext := dll.NewProc("PB_ReadNextDoubles"); readNext.Find() == nil {
		c.pbReadNextDoubles = readNext
		c.hasReadNext = true
	}
	return c, nil
}

func (c *nativeClient) Open(channel string, capacityBytes int64) error {
	if channel == "" {
		return errors.New("bridge: channel name must not be empty")
	}
	if capacityBytes <= 0 {
		return errors.New("bridge: capacity_bytes must be positive")
	}
	wide, err := syscall.UTF16PtrFromString(channel)
	if err != nil {
		return errors.Wrap(err, "bridge: invalid channel name")
	}

	ret, _, _ := c.pbInit.Call(uintptr(unsafe.Pointer(wide)), uintptr(capacityBytes))
	if ret != 1 {
		return errors.Errorf("bridge: PB_Init failed for channel %q", channel)
	}

	max, _, _ := c.pbMaxDoubles.Call()
	c.maxDoubles = int(int32(max))
	if c.maxDoubles <= 0 {
		return errors.New("bridge: PB_MaxDoubles returned 0")
	}
	c.scratch = make([]float64, c.maxDoubles)
	return nil
}

func (c *nativeClient) MaxDoubles() int { return c.maxDoubles }

func (c *nativeClient) ReadNext(stream int) (Frame, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return Frame{}, false, errClosed
	}

	var sid int32
	var gotCount int32
	var ts int64

	proc := c.pbReadDoubles
	if c.hasReadNext {
		proc = c.pbReadNextDoubles
	}

	ret, _, _ := proc.Call(
		uintptr(stream),
		uintptr(unsafe.Pointer(&sid)),
		uintptr(unsafe.Pointer(&c.scratch[0])),
		uintptr(c.maxDoubles),
		uintptr(unsafe.Pointer(&gotCount)),
		uintptr(unsafe.Pointer(&ts)),
	)
	if ret <= 0 || gotCount <= 0 {
		return Frame{}, false, nil
	}

	payload := make([]float64, gotCount)
	copy(payload, c.scratch[:gotCount])
	return Frame{Stream: stream, SeriesID: uint16(sid), Payload: payload, Timestamp: ts}, true, nil
}

func (c *nativeClient) Write(stream int, seriesID uint16, payload []float64, ts int64) (int, error) {
	if len(payload) == 0 {
		return 0, nil
	}
	if len(payload) > c.maxDoubles {
		return 0, errors.Errorf("bridge: payload length %d exceeds MaxDoubles %d", len(payload), c.maxDoubles)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, errClosed
	}

	wrote, _, _ := c.pbWriteDoubles.Call(
		uintptr(stream),
		uintptr(seriesID),
		uintptr(unsafe.Pointer(&payload[0])),
		uintptr(len(payload)),
		uintptr(ts),
	)
	return int(int32(wrote)), nil
}

func (c *nativeClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.pbClose.Call()
	return nil
}
