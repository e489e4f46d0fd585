// Package memring is an in-process, pure-Go stand-in for the host's
// shared-memory ring library. It implements bridge.Client so the worker
// and supervisor can run unmodified in tests and on non-Windows
// development hosts where the real PB_* DLL is unavailable (spec §9's
// pluggable-backend note, applied to the bridge side).
package memring

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/sindlinger/pyshared-hub/internal/bridge"
)

const defaultMaxDoubles = 8192

type queue struct {
	frames []bridge.Frame
}

func (q *queue) push(f bridge.Frame) {
	q.frames = append(q.frames, f)
}

func (q *queue) pop() (bridge.Frame, bool) {
	if len(q.frames) == 0 {
		return bridge.Frame{}, false
	}
	f := q.frames[0]
	q.frames = q.frames[1:]
	return f, true
}

// Client is a two-stream FIFO ring bounded by a byte budget, addressed
// from the hub's point of view: ReadNext(0) drains what a simulated host
// wrote inbound, Write(1, ...) is what the simulated host later reads.
type Client struct {
	mu sync.Mutex

	channel       string
	capacityBytes int64
	usedBytes     int64
	maxDoubles    int

	streams [2]queue
	closed  bool
}

// New constructs a Client with a given per-frame payload cap. maxDoubles
// <= 0 uses defaultMaxDoubles.
func New(maxDoubles int) *Client {
	if maxDoubles <= 0 {
		maxDoubles = defaultMaxDoubles
	}
	return &Client{maxDoubles: maxDoubles}
}

func (c *Client) Open(channel string, capacityBytes int64) error {
	if channel == "" {
		return errors.New("bridge: channel name must not be empty")
	}
	if capacityBytes <= 0 {
		return errors.New("bridge: capacity_bytes must be positive")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.channel = channel
	c.capacityBytes = capacityBytes
	return nil
}

func (c *Client) MaxDoubles() int { return c.maxDoubles }

func (c *Client) ReadNext(stream int) (bridge.Frame, bool, error) {
	if stream != bridge.StreamInbound && stream != bridge.StreamOutbound {
		return bridge.Frame{}, false, errors.Errorf("bridge: invalid stream %d", stream)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return bridge.Frame{}, false, nil
	}
	f, ok := c.streams[stream].pop()
	if ok {
		c.usedBytes -= int64(len(f.Payload)) * 8
	}
	return f, ok, nil
}

func (c *Client) Write(stream int, seriesID uint16, payload []float64, ts int64) (int, error) {
	if len(payload) == 0 {
		return 0, nil
	}
	if len(payload) > c.maxDoubles {
		return 0, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, errors.New("bridge: write on closed client")
	}
	need := int64(len(payload)) * 8
	if c.capacityBytes > 0 && c.usedBytes+need > c.capacityBytes {
		return 0, nil
	}
	cp := make([]float64, len(payload))
	copy(cp, payload)
	c.streams[stream].push(bridge.Frame{Stream: stream, SeriesID: seriesID, Payload: cp, Timestamp: ts})
	c.usedBytes += need
	return len(payload), nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// InjectHost simulates the host writing a frame inbound (stream 0), for
// tests driving the worker end-to-end.
func (c *Client) InjectHost(seriesID uint16, payload []float64, ts int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := make([]float64, len(payload))
	copy(cp, payload)
	c.streams[bridge.StreamInbound].push(bridge.Frame{
		Stream: bridge.StreamInbound, SeriesID: seriesID, Payload: cp, Timestamp: ts,
	})
}

// DrainOutbound pops every frame the hub has written outbound (stream 1)
// so far, for test assertions.
func (c *Client) DrainOutbound() []bridge.Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.streams[bridge.StreamOutbound].frames
	c.streams[bridge.StreamOutbound].frames = nil
	return out
}
