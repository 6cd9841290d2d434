package gaze

import (
	"math/rand"
	"testing"
	"time"
)

func testRandomConfig() RandomConfig {
	return RandomConfig{
		HLo: -0.5, HHi: 0.5,
		VLo: -0.25, VHi: 0.25,
		DwellMin: time.Second,
		DwellMax: time.Second,
		MinMove:  0.3,
	}
}

func TestRandomSourceHoldsWithinDwell(t *testing.T) {
	src := NewRandomSource(testRandomConfig(), rand.New(rand.NewSource(1)))
	t0 := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)

	first, err := src.Next(t0)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	for _, dt := range []time.Duration{0, 100 * time.Millisecond, 500 * time.Millisecond, 999 * time.Millisecond} {
		got, err := src.Next(t0.Add(dt))
		if err != nil {
			t.Fatalf("Next(+%v): %v", dt, err)
		}
		if got != first {
			t.Fatalf("target changed mid-dwell at +%v: got %+v, want %+v", dt, got, first)
		}
	}
}

func TestRandomSourceRedrawsAtDwellBoundary(t *testing.T) {
	src := NewRandomSource(testRandomConfig(), rand.New(rand.NewSource(1)))
	t0 := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)

	first, _ := src.Next(t0)
	second, _ := src.Next(t0.Add(time.Second))
	if second == first {
		t.Fatalf("target not redrawn at dwell boundary: still %+v", first)
	}
}

func TestRandomSourceStaysInSubRange(t *testing.T) {
	cfg := testRandomConfig()
	src := NewRandomSource(cfg, rand.New(rand.NewSource(42)))
	now := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 200; i++ {
		v, err := src.Next(now)
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if v.H < cfg.HLo || v.H > cfg.HHi {
			t.Fatalf("H=%g outside [%g, %g]", v.H, cfg.HLo, cfg.HHi)
		}
		if v.V < cfg.VLo || v.V > cfg.VHi {
			t.Fatalf("V=%g outside [%g, %g]", v.V, cfg.VLo, cfg.VHi)
		}
		now = now.Add(time.Second)
	}
}

func TestRandomSourceHonorsMinMove(t *testing.T) {
	cfg := testRandomConfig()
	src := NewRandomSource(cfg, rand.New(rand.NewSource(7)))
	now := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)

	prev, _ := src.Next(now)
	for i := 0; i < 100; i++ {
		now = now.Add(time.Second)
		cur, _ := src.Next(now)
		if d := targetDistance(cfg, prev, cur); d < cfg.MinMove {
			t.Fatalf("draw %d moved only %.3f, want >= %.3f", i, d, cfg.MinMove)
		}
		prev = cur
	}
}

func TestRandomSourceDegenerateRange(t *testing.T) {
	// A zero-width range can never satisfy MinMove; the redraw loop must
	// terminate and return the pinned value.
	cfg := RandomConfig{
		HLo: 0.2, HHi: 0.2,
		VLo: -0.1, VHi: -0.1,
		DwellMin: time.Second,
		DwellMax: time.Second,
		MinMove:  0.3,
	}
	src := NewRandomSource(cfg, rand.New(rand.NewSource(1)))
	t0 := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		v, err := src.Next(t0.Add(time.Duration(i) * time.Second))
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if v.H != 0.2 || v.V != -0.1 {
			t.Fatalf("got %+v, want pinned {0.2 -0.1}", v)
		}
	}
}

func TestRandomDwellRange(t *testing.T) {
	cfg := RandomConfig{DwellMin: 750 * time.Millisecond, DwellMax: 3 * time.Second}
	rng := rand.New(rand.NewSource(3))
	for i := 0; i < 500; i++ {
		d := randomDwell(cfg, rng)
		if d < cfg.DwellMin || d >= cfg.DwellMax {
			t.Fatalf("dwell %v outside [%v, %v)", d, cfg.DwellMin, cfg.DwellMax)
		}
	}
}

func TestIndependentSourceSeparateTimers(t *testing.T) {
	cfg := testRandomConfig()
	src := NewIndependentRandomSource(cfg, rand.New(rand.NewSource(11)))
	t0 := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)

	a0, err := src.NextFor(0, t0)
	if err != nil {
		t.Fatalf("NextFor: %v", err)
	}
	b0, _ := src.NextFor(1, t0)

	// Each eye holds its own target within its own dwell.
	a1, _ := src.NextFor(0, t0.Add(500*time.Millisecond))
	b1, _ := src.NextFor(1, t0.Add(500*time.Millisecond))
	if a1 != a0 {
		t.Fatalf("eye 0 target changed mid-dwell: %+v -> %+v", a0, a1)
	}
	if b1 != b0 {
		t.Fatalf("eye 1 target changed mid-dwell: %+v -> %+v", b0, b1)
	}
}

func TestTargetDistanceBounds(t *testing.T) {
	cfg := RandomConfig{HLo: -1, HHi: 1, VLo: -1, VHi: 1}
	full := targetDistance(cfg, Vector{H: -1, V: -1}, Vector{H: 1, V: 1})
	if full < 0.999 || full > 1.001 {
		t.Fatalf("corner-to-corner distance = %g, want 1", full)
	}
	if d := targetDistance(cfg, Vector{H: 0.3, V: -0.2}, Vector{H: 0.3, V: -0.2}); d != 0 {
		t.Fatalf("identical targets distance = %g, want 0", d)
	}
}
