// Package worker implements the per-channel drain-and-coalesce loop that
// bridges a bridge.Client's inbound stream to a transform.Transform and
// writes results back outbound (spec §4.3).
package worker

import (
	"context"
	"log"
	"time"

	"github.com/pkg/errors"

	"github.com/sindlinger/pyshared-hub/internal/bridge"
	"github.com/sindlinger/pyshared-hub/internal/transform"
)

// DefaultIdleThreshold is the duration of consecutive empty drains after
// which a connected channel is considered idle (spec §4.3).
const DefaultIdleThreshold = 5 * time.Second

// Recorder receives optional per-channel counters. A nil Recorder is
// valid; every call site checks before use.
type Recorder interface {
	FrameRead(channel string, seriesID uint16)
	FrameWritten(channel string, seriesID uint16)
	CoalesceDrop(channel string, seriesID uint16)
	IdleTransition(channel string, idle bool)
}

// Worker owns one channel's Client and Transform. Run must be called on
// its own goroutine; it is not safe to call any method concurrently with
// Run.
type Worker struct {
	Name   string
	Client bridge.Client
	Tr     transform.Transform

	Sleep         time.Duration
	IdleThreshold time.Duration

	Log     *log.Logger
	Metrics Recorder

	connected    bool
	lastActivity time.Time
}

// New constructs a Worker with spec §4.3 defaults filled in.
func New(name string, client bridge.Client, tr transform.Transform, sleep time.Duration, logger *log.Logger) *Worker {
	return &Worker{
		Name:          name,
		Client:        client,
		Tr:            tr,
		Sleep:         sleep,
		IdleThreshold: DefaultIdleThreshold,
		Log:           logger,
	}
}

// Run drains the channel until ctx is canceled. It never returns a
// non-nil error for transient per-frame failures (those are logged and
// the loop continues); it only returns an error if the context itself is
// misused, which in practice never happens, so Run always returns nil on
// clean shutdown.
func (w *Worker) Run(ctx context.Context) error {
	w.lastActivity = time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		drained, err := w.drainOnce()
		if err != nil {
			w.logf("channel %s: drain error: %v", w.Name, err)
		}

		now := time.Now()
		if drained {
			w.lastActivity = now
			if !w.connected {
				w.connected = true
				w.setIdle(false)
				w.logf("channel %s: connected", w.Name)
			}
		} else if w.connected && now.Sub(w.lastActivity) > w.IdleThreshold {
			w.connected = false
			w.setIdle(true)
			w.logf("channel %s: idle (no frames for %s)", w.Name, w.IdleThreshold)
		}

		if !drained {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(w.Sleep):
			}
		}
	}
}

func (w *Worker) setIdle(idle bool) {
	if w.Metrics != nil {
		w.Metrics.IdleTransition(w.Name, idle)
	}
}

func (w *Worker) logf(format string, args ...any) {
	if w.Log != nil {
		w.Log.Printf(format, args...)
	}
}

// drainOnce reads every currently-available inbound frame, coalescing per
// spec §4.3: the latest META, the concatenation of all FULL chunks, and
// the latest UPDATE. It reports whether any frame was read at all.
func (w *Worker) drainOnce() (drained bool, err error) {
	// A panicking transform is reported as a drain error so Run logs it
	// and keeps looping.
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("transform panic: %v", r)
		}
	}()

	var (
		haveMeta bool
		metaVec  []float64
		metaTs   int64

		haveFull  bool
		fullChunk []float64
		fullTs    int64

		haveUpdate bool
		updateVec  []float64
		updateTs   int64
	)

	for {
		f, ok, err := w.Client.ReadNext(bridge.StreamInbound)
		if err != nil {
			return drained, errors.Wrap(err, "read inbound")
		}
		if !ok {
			break
		}
		drained = true
		if w.Metrics != nil {
			w.Metrics.FrameRead(w.Name, f.SeriesID)
		}

		switch f.SeriesID {
		case bridge.SeriesMeta:
			if haveMeta && w.Metrics != nil {
				w.Metrics.CoalesceDrop(w.Name, f.SeriesID)
			}
			metaVec, metaTs, haveMeta = f.Payload, f.Timestamp, true
		case bridge.SeriesFull:
			fullChunk = append(fullChunk, f.Payload...)
			fullTs = f.Timestamp
			haveFull = true
		case bridge.SeriesUpdate:
			if haveUpdate && w.Metrics != nil {
				w.Metrics.CoalesceDrop(w.Name, f.SeriesID)
			}
			updateVec, updateTs, haveUpdate = f.Payload, f.Timestamp, true
		default:
			w.logf("channel %s: ignoring unknown series id %d", w.Name, f.SeriesID)
		}
	}

	if haveMeta {
		if err := w.Tr.Meta(metaVec, metaTs); err != nil {
			w.logf("channel %s: META rejected: %v", w.Name, err)
		} else {
			// Meta ACK is emitted only once the meta handler completes
			// without error (spec §7); a rejected META gets no ack.
			ack := []float64{float64(len(metaVec))}
			if _, err := w.Client.Write(bridge.StreamOutbound, bridge.SeriesMetaAck, ack, metaTs); err != nil {
				w.logf("channel %s: META ack write failed: %v", w.Name, err)
			} else if w.Metrics != nil {
				w.Metrics.FrameWritten(w.Name, bridge.SeriesMetaAck)
			}
		}
	}

	// FULL wins over UPDATE when both arrived in the same drain (spec
	// §4.3): a FULL recompute already supersedes any incremental step.
	switch {
	case haveFull:
		result := w.Tr.Full(fullChunk, fullTs)
		if _, err := w.Client.Write(bridge.StreamOutbound, bridge.SeriesFullResult, result, fullTs); err != nil {
			w.logf("channel %s: FULL result write failed: %v", w.Name, err)
		} else if w.Metrics != nil {
			w.Metrics.FrameWritten(w.Name, bridge.SeriesFullResult)
		}
	case haveUpdate:
		result := w.Tr.Update(updateVec, updateTs)
		if _, err := w.Client.Write(bridge.StreamOutbound, bridge.SeriesUpdateResult, result, updateTs); err != nil {
			w.logf("channel %s: UPDATE result write failed: %v", w.Name, err)
		} else if w.Metrics != nil {
			w.Metrics.FrameWritten(w.Name, bridge.SeriesUpdateResult)
		}
	}

	return drained, nil
}
