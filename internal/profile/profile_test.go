package profile

import (
	"bytes"
	"testing"

	"github.com/google/pprof/profile"
)

func TestPhaseRecordsSample(t *testing.T) {
	r := NewRecorder()
	stop := r.Phase("declare")
	stop()

	if len(r.prof.Sample) != 1 {
		t.Fatalf("expected one sample, got %d", len(r.prof.Sample))
	}
	if len(r.prof.Function) != 1 || r.prof.Function[0].Name != "declare" {
		t.Fatalf("expected one function named %q, got %#v", "declare", r.prof.Function)
	}
}

func TestPhaseReusesLocationAcrossCalls(t *testing.T) {
	r := NewRecorder()
	r.Phase("emit")()
	r.Phase("emit")()
	r.Phase("layout")()

	if len(r.prof.Sample) != 3 {
		t.Fatalf("expected three samples, got %d", len(r.prof.Sample))
	}
	if len(r.prof.Function) != 2 {
		t.Fatalf("expected two distinct functions (emit, layout), got %d", len(r.prof.Function))
	}
	if len(r.prof.Location) != 2 {
		t.Fatalf("expected locationFor to reuse the same *Location across repeat calls for the same name, got %d locations for 3 samples over 2 names", len(r.prof.Location))
	}
}

func TestNilRecorderIsInert(t *testing.T) {
	var r *Recorder
	stop := r.Phase("declare")
	stop()
	if err := r.WriteTo(&bytes.Buffer{}); err != nil {
		t.Fatalf("expected nil recorder WriteTo to be a no-op, got %v", err)
	}
}

func TestWriteToRoundTrips(t *testing.T) {
	r := NewRecorder()
	r.Phase("declare")()
	r.Phase("reduce")()

	var buf bytes.Buffer
	if err := r.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}

	got, err := profile.Parse(&buf)
	if err != nil {
		t.Fatalf("profile.Parse on WriteTo's output: %v", err)
	}
	if len(got.Sample) != 2 {
		t.Fatalf("expected 2 samples after round trip, got %d", len(got.Sample))
	}
}
