// Package transform defines the capability set every pluggable compute
// transform implements (spec §4.4) and the built-in registry of
// transform ids the hub config can reference (spec §6).
package transform

import "github.com/pkg/errors"

// Transform is a stateful, single-threaded-per-instance computation
// consumed by exactly one channel worker (spec §4.4). All methods are
// invoked only on the owning worker's goroutine.
type Transform interface {
	// Meta interprets a parameter vector. Idempotent for identical
	// inputs; may invalidate cached state (e.g. phase continuity).
	Meta(vec []float64, ts int64) error

	// Full recomputes from scratch over the given chronological-or-
	// newest-first window (implementations receive newest-first per
	// spec §4.4) and returns a vector of the same length.
	Full(seriesNewestFirst []float64, ts int64) []float64

	// Update performs an incremental step and returns a short,
	// newest-first vector (length 1, or the transform's declared
	// buffer count).
	Update(seriesNewestFirst []float64, ts int64) []float64
}

// Factory constructs a Transform instance from the channel's free-form
// params map (spec §6 channel configuration).
type Factory func(params map[string]any) (Transform, error)

var registry = map[string]Factory{}

// Register adds a built-in transform id to the registry. Called from
// each transform package's init().
func Register(id string, f Factory) {
	registry[id] = f
}

// New constructs a Transform for the given built-in id. Unknown ids
// (including user-supplied artifact paths, which the hosting environment
// resolves externally — spec §6) return an error.
func New(id string, params map[string]any) (Transform, error) {
	f, ok := registry[id]
	if !ok {
		return nil, errors.Errorf("transform: unknown built-in id %q", id)
	}
	return f(params)
}

// notImplemented is used by registry entries that are named in spec §6
// but not implemented by this reference hub (see SPEC_FULL.md §12).
type notImplemented struct {
	id string
}

func (n notImplemented) Meta([]float64, int64) error { return n.err() }
func (n notImplemented) Full([]float64, int64) []float64 {
	return nil
}
func (n notImplemented) Update([]float64, int64) []float64 {
	return nil
}
func (n notImplemented) err() error {
	return errors.Errorf("transform %q: not implemented by this hub (CPU-only reference build)", n.id)
}

func registerStub(id string) {
	Register(id, func(map[string]any) (Transform, error) {
		return notImplemented{id: id}, nil
	})
}

func init() {
	registerStub("fisher")
	registerStub("vroc_fft_spike")
	registerStub("online_rls")
}
