// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package gaze

import (
	"time"

	"github.com/relabs-tech/eye_wall/internal/frame"
)

// TrackState is the tracking source's operating state.
type TrackState int

const (
	// StateFallbackRandom is the initial state: no sensor data yet, or the
	// sensor has been silent too long. Gaze comes from the embedded
	// synchronized random source.
	StateFallbackRandom TrackState = iota
	// StateTracking follows the sensor target.
	StateTracking
	// StateHold keeps the last known gaze through a transient sensor dropout
	// instead of snapping back to center.
	StateHold
)

func (s TrackState) String() string {
	switch s {
	case StateTracking:
		return "tracking"
	case StateHold:
		return "hold"
	case StateFallbackRandom:
		return "fallback_random"
	}
	return "unknown"
}

// TrackingConfig describes the sensor geometry and dropout behavior.
type TrackingConfig struct {
	// Sensor frame extents in pixels (Kinect v1: 640x480).
	SensorWidth  int
	SensorHeight int

	// HoldTimeout is how long a dropout is bridged by holding the last gaze
	// before falling back to random motion.
	HoldTimeout time.Duration
}

// TrackingSource converts sensor frames into a shared normalized gaze vector
// for the whole array. All eyes follow the same target; per-eye parallax is
// not modeled.
type TrackingSource struct {
	cfg      TrackingConfig
	frames   frame.Source
	fallback *RandomSource

	state     TrackState
	last      Vector
	holdSince time.Time

	// OnTransition, when set, is called for every state change.
	OnTransition func(from, to TrackState)
}

// NewTrackingSource creates a tracking gaze source. fallback supplies gaze
// while no sensor target is available; it must be a synchronized source so
// the array stays coherent during dropouts.
func NewTrackingSource(cfg TrackingConfig, frames frame.Source, fallback *RandomSource) *TrackingSource {
	return &TrackingSource{
		cfg:      cfg,
		frames:   frames,
		fallback: fallback,
		state:    StateFallbackRandom,
	}
}

// State returns the current operating state.
func (s *TrackingSource) State() TrackState { return s.state }

// Next polls the sensor and produces the gaze vector for this tick.
// A valid frame always (re)enters tracking; an invalid frame degrades
// tracking to hold, and hold to fallback once HoldTimeout has elapsed.
func (s *TrackingSource) Next(now time.Time) (Vector, error) {
	f, err := s.frames.PollFrame()
	valid := err == nil && f.Valid

	if valid {
		s.transition(StateTracking)
		s.last = s.project(f.Target)
		return s.last, nil
	}

	switch s.state {
	case StateTracking:
		s.transition(StateHold)
		s.holdSince = now
		return s.last, nil
	case StateHold:
		if now.Sub(s.holdSince) > s.cfg.HoldTimeout {
			s.transition(StateFallbackRandom)
			return s.fallback.Next(now)
		}
		return s.last, nil
	default:
		return s.fallback.Next(now)
	}
}

// project maps a sensor-space target into normalized gaze. The camera faces
// the viewer, so the image is mirrored: sensor x grows toward the array's
// left (positive H). Sensor rows grow downward, so y is inverted for
// positive-up V.
func (s *TrackingSource) project(p frame.Point) Vector {
	h := 2*float64(p.X)/float64(s.cfg.SensorWidth) - 1
	v := 1 - 2*float64(p.Y)/float64(s.cfg.SensorHeight)
	return Vector{H: h, V: v}.Clamp()
}

func (s *TrackingSource) transition(to TrackState) {
	if s.state == to {
		return
	}
	from := s.state
	s.state = to
	if s.OnTransition != nil {
		s.OnTransition(from, to)
	}
}
