// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package calib

import (
	"errors"
	"fmt"
	"math"

	"github.com/relabs-tech/eye_wall/internal/gaze"
)

// ErrUnconfiguredEye is returned when a referenced (eye, axis) has no
// calibration entry. Startup treats this as fatal.
var ErrUnconfiguredEye = errors.New("no calibration entry for eye")

// maxCommand is the PCA9685 12-bit pulse-count ceiling.
const maxCommand = 4095

// Entry holds the calibrated pulse counts for one (eye, axis): the safe
// travel bounds and the rest position. Mid is not assumed to be the
// arithmetic midpoint of Min/Max; real linkages are rarely symmetric.
type Entry struct {
	Min int `json:"min"`
	Mid int `json:"mid"`
	Max int `json:"max"`

	// Inverted flips the mapping so increasing gaze drives the command
	// toward Min. Used for units assembled with the servo horn mirrored.
	Inverted bool `json:"inverted,omitempty"`
}

// Validate checks ordering and pulse-count bounds.
func (e Entry) Validate() error {
	if e.Min < 0 || e.Max > maxCommand {
		return fmt.Errorf("calibration out of pulse range 0..%d: %+v", maxCommand, e)
	}
	if !(e.Min < e.Mid && e.Mid < e.Max) {
		return fmt.Errorf("calibration must satisfy min < mid < max: %+v", e)
	}
	return nil
}

type key struct {
	eye  gaze.EyeID
	axis gaze.Axis
}

// Table maps every configured (eye, axis) to its calibration. Built once at
// startup and read-only afterwards.
type Table struct {
	entries map[key]Entry
}

// NewTable creates an empty calibration table.
func NewTable() *Table {
	return &Table{entries: make(map[key]Entry)}
}

// Set stores the entry for one (eye, axis) after validating it.
func (t *Table) Set(eye gaze.EyeID, axis gaze.Axis, e Entry) error {
	if err := e.Validate(); err != nil {
		return fmt.Errorf("eye %d %s: %w", eye, axis, err)
	}
	t.entries[key{eye, axis}] = e
	return nil
}

// Lookup returns the entry for one (eye, axis).
func (t *Table) Lookup(eye gaze.EyeID, axis gaze.Axis) (Entry, error) {
	e, ok := t.entries[key{eye, axis}]
	if !ok {
		return Entry{}, fmt.Errorf("%w: eye %d axis %s", ErrUnconfiguredEye, eye, axis)
	}
	return e, nil
}

// ToCommand converts a normalized gaze value into a pulse count for one
// (eye, axis). The value is clamped to [-1, 1] and interpolated two-sided:
// positive values between Mid and Max, negative between Mid and Min, so the
// center maps exactly to Mid even when Min/Max are asymmetric around it.
func (t *Table) ToCommand(eye gaze.EyeID, axis gaze.Axis, v float64) (int, error) {
	e, err := t.Lookup(eye, axis)
	if err != nil {
		return 0, err
	}
	return e.Command(v), nil
}

// Command applies the two-sided interpolation for a single entry.
func (e Entry) Command(v float64) int {
	v = gaze.Clamp(v)
	if e.Inverted {
		v = -v
	}
	var c float64
	if v >= 0 {
		c = float64(e.Mid) + v*float64(e.Max-e.Mid)
	} else {
		c = float64(e.Mid) + v*float64(e.Mid-e.Min)
	}
	return int(math.Round(c))
}
