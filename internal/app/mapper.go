package app

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/relabs-tech/eye_wall/internal/calib"
	"github.com/relabs-tech/eye_wall/internal/gaze"
)

// EyeState is the last dispatched position of one eye, published as JSON on
// the state topic. Mutated only by the controller, once per tick.
type EyeState struct {
	Eye      int         `json:"eye"`
	Gaze     gaze.Vector `json:"gaze"`
	CommandH int         `json:"command_h"`
	CommandV int         `json:"command_v"`
	Updated  time.Time   `json:"updated"`
}

// Plan is the mapper's output for one eye on one tick: the blended gaze and
// the pulse counts to dispatch.
type Plan struct {
	Gaze gaze.Vector
	CmdH int
	CmdV int
}

// Mapper converts target gaze vectors into pulse commands, blending each new
// target with the previously dispatched command so rapid target switches
// (e.g. the sensor jumping between people) ease instead of snapping.
type Mapper struct {
	table *calib.Table
	alpha float64
	state map[gaze.EyeID]*EyeState
}

// NewMapper builds the mapper and verifies calibration exists for every
// configured eye and axis; a missing entry is a startup-fatal
// calib.ErrUnconfiguredEye. Initial state is centered (gaze zero, Mid pulses).
func NewMapper(table *calib.Table, alpha float64, eyes []gaze.EyeID) (*Mapper, error) {
	if alpha <= 0 || alpha > 1 {
		return nil, fmt.Errorf("smoothing alpha must be in (0,1], got %g", alpha)
	}
	m := &Mapper{
		table: table,
		alpha: alpha,
		state: make(map[gaze.EyeID]*EyeState, len(eyes)),
	}
	for _, eye := range eyes {
		h, err := table.Lookup(eye, gaze.Horizontal)
		if err != nil {
			return nil, err
		}
		v, err := table.Lookup(eye, gaze.Vertical)
		if err != nil {
			return nil, err
		}
		m.state[eye] = &EyeState{Eye: int(eye), CommandH: h.Mid, CommandV: v.Mid}
	}
	return m, nil
}

// Plan computes the commands for one eye without committing state. The blend
// is new = alpha*target + (1-alpha)*previous in command space, rounded, then
// clamped to the calibrated bounds as the final step.
func (m *Mapper) Plan(eye gaze.EyeID, target gaze.Vector) (Plan, error) {
	st, ok := m.state[eye]
	if !ok {
		return Plan{}, fmt.Errorf("%w: eye %d", calib.ErrUnconfiguredEye, eye)
	}

	cmdH, err := m.planAxis(eye, gaze.Horizontal, target.H, st.CommandH)
	if err != nil {
		return Plan{}, err
	}
	cmdV, err := m.planAxis(eye, gaze.Vertical, target.V, st.CommandV)
	if err != nil {
		return Plan{}, err
	}
	return Plan{Gaze: target.Clamp(), CmdH: cmdH, CmdV: cmdV}, nil
}

func (m *Mapper) planAxis(eye gaze.EyeID, axis gaze.Axis, target float64, prev int) (int, error) {
	e, err := m.table.Lookup(eye, axis)
	if err != nil {
		return 0, err
	}
	cmd := int(math.Round(m.alpha*float64(e.Command(target)) + (1-m.alpha)*float64(prev)))
	if cmd < e.Min {
		cmd = e.Min
	}
	if cmd > e.Max {
		cmd = e.Max
	}
	return cmd, nil
}

// Commit records a dispatched plan as the eye's new state.
func (m *Mapper) Commit(eye gaze.EyeID, p Plan, now time.Time) {
	st, ok := m.state[eye]
	if !ok {
		return
	}
	st.Gaze = p.Gaze
	st.CommandH = p.CmdH
	st.CommandV = p.CmdV
	st.Updated = now
}

// State returns a copy of one eye's state.
func (m *Mapper) State(eye gaze.EyeID) (EyeState, bool) {
	st, ok := m.state[eye]
	if !ok {
		return EyeState{}, false
	}
	return *st, true
}

// Snapshot returns all eye states ordered by eye id, for publishing.
func (m *Mapper) Snapshot() []EyeState {
	out := make([]EyeState, 0, len(m.state))
	for _, st := range m.state {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Eye < out[j].Eye })
	return out
}
