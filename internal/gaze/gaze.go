package gaze

import "time"

// Axis selects one of the two servo axes of an eye unit.
type Axis int

const (
	Horizontal Axis = iota // positive = left
	Vertical               // positive = up
)

func (a Axis) String() string {
	switch a {
	case Horizontal:
		return "horizontal"
	case Vertical:
		return "vertical"
	}
	return "unknown"
}

// EyeID identifies one physical two-axis eye unit.
type EyeID int

// Vector is the canonical normalized gaze direction. Each component is in
// [-1, +1]: 0 is the calibrated center, ±1 the calibrated extremes.
// All gaze sources produce Vectors; actuator specifics stay out of this package.
type Vector struct {
	H float64 `json:"h"`
	V float64 `json:"v"`
}

// Component returns the value for one axis.
func (v Vector) Component(a Axis) float64 {
	if a == Vertical {
		return v.V
	}
	return v.H
}

// Clamp limits both components to [-1, 1].
func (v Vector) Clamp() Vector {
	return Vector{H: Clamp(v.H), V: Clamp(v.V)}
}

// Clamp limits a single normalized value to [-1, 1].
func Clamp(x float64) float64 {
	if x > 1 {
		return 1
	}
	if x < -1 {
		return -1
	}
	return x
}

// Source is anything that can provide a shared gaze vector over time.
// Next is pulled once per coordinator tick with the tick time.
type Source interface {
	Next(now time.Time) (Vector, error)
}

// EyeSource provides a per-eye gaze vector, for modes where eyes move
// independently rather than in lockstep.
type EyeSource interface {
	NextFor(eye EyeID, now time.Time) (Vector, error)
}
