package gaze

import (
	"math"
	"math/rand"
	"time"
)

// RandomConfig bounds the autonomous "looking around" behavior. The Lo/Hi
// pairs restrict random targets to a safe sub-range of [-1, 1] per axis so
// that asymmetric mechanics are never driven to a straining extreme.
type RandomConfig struct {
	HLo, HHi float64
	VLo, VHi float64

	// Each target is held for a uniformly random dwell in [DwellMin, DwellMax]
	// before a new one is drawn.
	DwellMin time.Duration
	DwellMax time.Duration

	// MinMove rejects draws closer than this normalized 2-D distance to the
	// previous target, so every move reads as a deliberate glance.
	MinMove float64
}

// maxDrawAttempts bounds the redraw loop when MinMove is unsatisfiable for
// the configured sub-range (e.g. a degenerate zero-width range).
const maxDrawAttempts = 32

// RandomSource generates synchronized random gaze targets: one vector shared
// by every eye, regenerated only at dwell boundaries.
type RandomSource struct {
	cfg RandomConfig
	rng *rand.Rand

	current  Vector
	nextDraw time.Time
	primed   bool
}

// NewRandomSource creates a synchronized random gaze source.
func NewRandomSource(cfg RandomConfig, rng *rand.Rand) *RandomSource {
	return &RandomSource{cfg: cfg, rng: rng}
}

// Next returns the current target, drawing a new one when the dwell interval
// has elapsed. The returned vector is identical for every caller within one
// dwell interval.
func (s *RandomSource) Next(now time.Time) (Vector, error) {
	if !s.primed || !now.Before(s.nextDraw) {
		s.current = drawTarget(s.cfg, s.rng, s.current, s.primed)
		s.nextDraw = now.Add(randomDwell(s.cfg, s.rng))
		s.primed = true
	}
	return s.current, nil
}

// IndependentRandomSource gives every eye its own randomly timed target, so
// the array shifts and flickers instead of moving in lockstep.
type IndependentRandomSource struct {
	cfg RandomConfig
	rng *rand.Rand

	eyes map[EyeID]*RandomSource
}

// NewIndependentRandomSource creates a per-eye random gaze source.
func NewIndependentRandomSource(cfg RandomConfig, rng *rand.Rand) *IndependentRandomSource {
	return &IndependentRandomSource{
		cfg:  cfg,
		rng:  rng,
		eyes: make(map[EyeID]*RandomSource),
	}
}

// NextFor returns the current target for one eye, drawing a new one when that
// eye's own dwell interval has elapsed.
func (s *IndependentRandomSource) NextFor(eye EyeID, now time.Time) (Vector, error) {
	src, ok := s.eyes[eye]
	if !ok {
		src = NewRandomSource(s.cfg, s.rng)
		s.eyes[eye] = src
	}
	return src.Next(now)
}

func randomDwell(cfg RandomConfig, rng *rand.Rand) time.Duration {
	if cfg.DwellMax <= cfg.DwellMin {
		return cfg.DwellMin
	}
	return cfg.DwellMin + time.Duration(rng.Int63n(int64(cfg.DwellMax-cfg.DwellMin)))
}

// drawTarget picks a uniform target inside the configured sub-range,
// redrawing until it is at least MinMove away from the previous one.
func drawTarget(cfg RandomConfig, rng *rand.Rand, prev Vector, havePrev bool) Vector {
	var v Vector
	for i := 0; i < maxDrawAttempts; i++ {
		v = Vector{
			H: uniform(rng, cfg.HLo, cfg.HHi),
			V: uniform(rng, cfg.VLo, cfg.VHi),
		}
		if !havePrev || targetDistance(cfg, prev, v) >= cfg.MinMove {
			return v
		}
	}
	return v
}

// targetDistance is the Euclidean distance between two targets with each axis
// normalized to its configured span, scaled so the result is in [0, 1].
func targetDistance(cfg RandomConfig, a, b Vector) float64 {
	hSpan := cfg.HHi - cfg.HLo
	vSpan := cfg.VHi - cfg.VLo

	var dh, dv float64
	if hSpan > 0 {
		dh = math.Abs(a.H-b.H) / hSpan
	}
	if vSpan > 0 {
		dv = math.Abs(a.V-b.V) / vSpan
	}
	return math.Sqrt(dh*dh+dv*dv) / math.Sqrt2
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	if hi <= lo {
		return lo
	}
	return lo + rng.Float64()*(hi-lo)
}
