package frame

import "time"

// Point is a single 3-D observation in sensor coordinates: pixel column,
// pixel row, and measured depth in millimeters.
type Point struct {
	X       int `json:"x"`
	Y       int `json:"y"`
	DepthMM int `json:"depth_mm"`
}

// Frame is one sensor observation: the nearest valid target this frame, or
// Valid=false when nothing sat inside the detection window. Frames are
// consumed within one coordinator tick and never retained.
type Frame struct {
	Target Point     `json:"target"`
	Valid  bool      `json:"valid"`
	Time   time.Time `json:"time"`
}

// Source yields the most recent sensor frame without blocking the caller
// beyond a bounded poll. Implementations mark frames stale by returning
// Valid=false rather than by erroring.
type Source interface {
	PollFrame() (Frame, error)
}
