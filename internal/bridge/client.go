package bridge

import "github.com/pkg/errors"

// errClosed is returned by a native client's ReadNext and Write after
// Close. An empty stream is not an error: ReadNext reports it as ok=false.
var errClosed = errors.New("bridge: client is closed")

// Client is the per-channel handle onto the host's shared-memory ring
// (spec §4.1). Exactly one Client is opened per channel name; it owns a
// fixed MaxDoubles()-sized scratch buffer and must not be shared across
// goroutines.
type Client interface {
	// Open initializes the ring for the given channel name and capacity.
	// Capacity must be positive; the channel name must be non-empty.
	Open(channel string, capacityBytes int64) error

	// MaxDoubles reports the per-frame payload cap, valid after Open.
	MaxDoubles() int

	// ReadNext returns the oldest unread frame on stream, or ok=false if
	// none is currently available. Non-blocking.
	ReadNext(stream int) (frame Frame, ok bool, err error)

	// Write copies payload into the ring on stream under seriesID/ts and
	// returns the number of elements written. Returns 0 if
	// len(payload) > MaxDoubles() or the ring rejects the write.
	Write(stream int, seriesID uint16, payload []float64, ts int64) (int, error)

	// Close releases the ring. Idempotent.
	Close() error
}
