// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/relabs-tech/eye_wall/internal/bus"
	"github.com/relabs-tech/eye_wall/internal/gaze"
)

// Mode selects the gaze source at startup.
type Mode string

const (
	ModeRandomSynced      Mode = "random_synced"
	ModeRandomIndependent Mode = "random_independent"
	ModeTracking          Mode = "tracking"
)

// ControllerOptions wires the controller's collaborators. Exactly one of
// Shared/PerEye must be set, matching Mode.
type ControllerOptions struct {
	Bus     bus.Writer
	Mapping bus.Mapping
	Mapper  *Mapper
	Eyes    []gaze.EyeID
	Mode    Mode

	Shared gaze.Source    // random_synced and tracking modes
	PerEye gaze.EyeSource // random_independent mode

	// IdleOff cuts PWM on an eye whose command has not changed for this long,
	// to stop servo hum between moves. 0 disables.
	IdleOff time.Duration

	// CenterGap spaces out bulk servo writes during centering and parking so
	// dozens of servos do not slew on the same supply spike.
	CenterGap time.Duration

	// Publish, when set, receives the full state snapshot after every tick.
	Publish func([]EyeState)

	// Sleep is swapped for a no-op in tests.
	Sleep func(time.Duration)
}

// Controller owns the coordinator loop: it pulls the active gaze source once
// per tick, maps the result for every eye, and dispatches over the actuator
// bus, board by board. Hardware faults never stop the loop; a failing board
// is skipped for the tick and the rest of the wall keeps moving.
type Controller struct {
	opts ControllerOptions

	lastMove map[gaze.EyeID]time.Time
	parked   map[gaze.EyeID]bool
}

// NewController validates the option wiring.
func NewController(opts ControllerOptions) (*Controller, error) {
	if err := opts.Mapping.Validate(); err != nil {
		return nil, err
	}
	switch opts.Mode {
	case ModeRandomIndependent:
		if opts.PerEye == nil {
			return nil, fmt.Errorf("mode %s requires a per-eye gaze source", opts.Mode)
		}
	case ModeRandomSynced, ModeTracking:
		if opts.Shared == nil {
			return nil, fmt.Errorf("mode %s requires a shared gaze source", opts.Mode)
		}
	default:
		return nil, fmt.Errorf("unknown mode %q", opts.Mode)
	}
	if opts.Sleep == nil {
		opts.Sleep = time.Sleep
	}
	return &Controller{
		opts:     opts,
		lastMove: make(map[gaze.EyeID]time.Time),
		parked:   make(map[gaze.EyeID]bool),
	}, nil
}

// CenterAll drives every eye to its calibrated rest position. Called before
// the loop starts so the wall never snaps from an undefined power-on pose,
// and again when parking on shutdown.
func (c *Controller) CenterAll(now time.Time) {
	for _, eye := range c.opts.Eyes {
		plan, err := c.opts.Mapper.Plan(eye, gaze.Vector{})
		if err != nil {
			log.Printf("center: eye %d: %v", eye, err)
			continue
		}
		if c.dispatch(eye, plan, map[int]bool{}) {
			c.opts.Mapper.Commit(eye, plan, now)
		}
		c.lastMove[eye] = now
		c.parked[eye] = false
		if c.opts.CenterGap > 0 {
			c.opts.Sleep(c.opts.CenterGap)
		}
	}
}

// Tick runs one full update cycle: source, map, dispatch, state, publish.
func (c *Controller) Tick(now time.Time) {
	var shared gaze.Vector
	if c.opts.PerEye == nil {
		v, err := c.opts.Shared.Next(now)
		if err != nil {
			log.Printf("gaze source error, holding position: %v", err)
			c.publish()
			return
		}
		shared = v
	}

	failed := make(map[int]bool)
	for _, eye := range c.opts.Eyes {
		target := shared
		if c.opts.PerEye != nil {
			v, err := c.opts.PerEye.NextFor(eye, now)
			if err != nil {
				log.Printf("gaze source error for eye %d: %v", eye, err)
				continue
			}
			target = v
		}

		plan, err := c.opts.Mapper.Plan(eye, target)
		if err != nil {
			log.Printf("mapper error for eye %d: %v", eye, err)
			continue
		}

		st, _ := c.opts.Mapper.State(eye)
		unchanged := plan.CmdH == st.CommandH && plan.CmdV == st.CommandV

		if unchanged && c.parked[eye] {
			continue
		}
		if unchanged && c.opts.IdleOff > 0 && now.Sub(c.lastMove[eye]) >= c.opts.IdleOff {
			c.cutPWM(eye, failed)
			continue
		}

		if c.dispatch(eye, plan, failed) {
			c.opts.Mapper.Commit(eye, plan, now)
			if !unchanged {
				c.lastMove[eye] = now
				c.parked[eye] = false
			}
		}
	}

	c.publish()
}

// Run drives the fixed-period loop until stop is closed, then parks.
func (c *Controller) Run(stop <-chan struct{}, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Printf("controller loop started, tick every %s", interval)
	for {
		select {
		case <-stop:
			c.Park()
			return
		case t := <-ticker.C:
			c.Tick(t)
		}
	}
}

// Park re-centers the wall and then releases every configured channel so the
// servos power down instead of holding position indefinitely.
func (c *Controller) Park() {
	log.Println("parking: centering all eyes")
	c.CenterAll(time.Now())

	log.Println("parking: releasing servo channels")
	for _, eye := range c.opts.Eyes {
		c.cutPWM(eye, map[int]bool{})
		if c.opts.CenterGap > 0 {
			c.opts.Sleep(c.opts.CenterGap)
		}
	}
}

// dispatch writes both axis commands for one eye, vertical first (wiring
// order). A communication failure marks the whole board as skipped for the
// remainder of the tick; an out-of-range error is an internal invariant
// violation and is only logged.
func (c *Controller) dispatch(eye gaze.EyeID, p Plan, failed map[int]bool) bool {
	board, chH := c.opts.Mapping.ChannelFor(eye, gaze.Horizontal)
	_, chV := c.opts.Mapping.ChannelFor(eye, gaze.Vertical)
	if failed[board] {
		return false
	}

	for _, w := range []struct {
		channel int
		off     int
	}{{chV, p.CmdV}, {chH, p.CmdH}} {
		if err := c.opts.Bus.SetCommand(board, w.channel, 0, w.off); err != nil {
			if errors.Is(err, bus.ErrOutOfRange) {
				log.Printf("ERROR: invariant violation, clamped command rejected by bus: %v", err)
				return false
			}
			log.Printf("board %d write failed, skipping its eyes this tick: %v", board, err)
			failed[board] = true
			return false
		}
	}
	return true
}

// cutPWM turns both channels of an eye fully off.
func (c *Controller) cutPWM(eye gaze.EyeID, failed map[int]bool) {
	board, chH := c.opts.Mapping.ChannelFor(eye, gaze.Horizontal)
	_, chV := c.opts.Mapping.ChannelFor(eye, gaze.Vertical)
	if failed[board] {
		return
	}
	for _, ch := range []int{chV, chH} {
		if err := c.opts.Bus.SetCommand(board, ch, 0, 0); err != nil {
			log.Printf("board %d channel %d release failed: %v", board, ch, err)
			failed[board] = true
			return
		}
	}
	c.parked[eye] = true
}

func (c *Controller) publish() {
	if c.opts.Publish != nil {
		c.opts.Publish(c.opts.Mapper.Snapshot())
	}
}
