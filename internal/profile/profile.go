// Package profile records wall-clock duration of the compiler core's
// phases as samples in a pprof Profile, for `-cpuprofile FILE` (SPEC_FULL.md
// §3's ambient stack addition). This repurposes the teacher's own
// `github.com/google/pprof/profile` dependency from "format cmd/go reads
// profiles in" to "format anvilc writes phase timings in".
package profile

import (
	"io"
	"time"

	"github.com/google/pprof/profile"
)

// Recorder accumulates one sample per phase invocation.
type Recorder struct {
	prof   *profile.Profile
	funcs  map[string]*profile.Function
	locs   map[string]*profile.Location
	nextID uint64
	start  time.Time
}

// NewRecorder returns an empty Recorder, its clock started.
func NewRecorder() *Recorder {
	return &Recorder{
		prof: &profile.Profile{
			SampleType: []*profile.ValueType{{Type: "phase", Unit: "nanoseconds"}},
			PeriodType: &profile.ValueType{Type: "phase", Unit: "nanoseconds"},
			Period:     1,
		},
		funcs: make(map[string]*profile.Function),
		locs:  make(map[string]*profile.Location),
		start: time.Now(),
	}
}

// Phase starts timing a named compiler phase and returns a function to stop
// it, so the phase driver can write `defer rec.Phase("declare")()`.
func (r *Recorder) Phase(name string) func() {
	if r == nil {
		return func() {}
	}
	t0 := time.Now()
	return func() {
		loc := r.locationFor(name)
		r.prof.Sample = append(r.prof.Sample, &profile.Sample{
			Location: []*profile.Location{loc},
			Value:    []int64{time.Since(t0).Nanoseconds()},
		})
	}
}

func (r *Recorder) locationFor(name string) *profile.Location {
	if loc, ok := r.locs[name]; ok {
		return loc
	}
	fn, ok := r.funcs[name]
	if !ok {
		r.nextID++
		fn = &profile.Function{ID: r.nextID, Name: name}
		r.prof.Function = append(r.prof.Function, fn)
		r.funcs[name] = fn
	}
	r.nextID++
	loc := &profile.Location{ID: r.nextID, Line: []profile.Line{{Function: fn}}}
	r.prof.Location = append(r.prof.Location, loc)
	r.locs[name] = loc
	return loc
}

// WriteTo serializes the accumulated samples in the standard pprof
// gzip-encoded proto format.
func (r *Recorder) WriteTo(w io.Writer) error {
	if r == nil {
		return nil
	}
	r.prof.TimeNanos = r.start.UnixNano()
	r.prof.DurationNanos = time.Since(r.start).Nanoseconds()
	return r.prof.Write(w)
}
