// Package bridge wraps the host-provided shared-memory ring library that
// carries price streams and transform results between the charting host
// and the compute hub.
package bridge

// Series IDs carried in frame headers. The host and the hub agree on
// these values out of band (spec §3); the bridge never interprets a
// payload beyond its length and element type.
const (
	SeriesFull       uint16 = 100 // FULL price window, newest-first
	SeriesUpdate     uint16 = 101 // UPDATE tick(s), newest-first
	SeriesMeta       uint16 = 900 // META parameter vector
	SeriesFullResult uint16 = 201 // FULL result, newest-first
	SeriesUpdateResult uint16 = 202 // UPDATE result, newest-first
	SeriesMetaAck    uint16 = 990 // META acknowledgement, payload=[count]
)

// Stream indices. Inbound is host -> hub, outbound is hub -> host.
const (
	StreamInbound  = 0
	StreamOutbound = 1
)

// Frame is the atomic unit exchanged over the bridge: one
// (stream, series_id, payload, timestamp) tuple (spec §3).
type Frame struct {
	Stream    int
	SeriesID  uint16
	Payload   []float64
	Timestamp int64
}
