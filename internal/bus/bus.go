package bus

import (
	"errors"
	"fmt"

	"github.com/relabs-tech/eye_wall/internal/gaze"
)

var (
	// ErrBusCommunication wraps hardware write failures. Recoverable: the
	// coordinator logs it and skips the affected board for the tick.
	ErrBusCommunication = errors.New("bus communication error")

	// ErrOutOfRange guards the channel/pulse invariants. Should be
	// unreachable given mandatory clamping upstream.
	ErrOutOfRange = errors.New("command out of range")
)

const (
	// ChannelsPerBoard is fixed by the PCA9685.
	ChannelsPerBoard = 16
	// MaxOffTick is the 12-bit pulse-count ceiling.
	MaxOffTick = 4095
)

// Writer is the actuator-bus contract the coordinator dispatches through.
// Calls are fire-and-forget: no per-call acknowledgement beyond the error.
type Writer interface {
	// SetCommand asserts a pulse on one channel of one board. on and off are
	// raw PCA9685 tick counts (on is normally 0).
	SetCommand(board, channel, on, off int) error
	// SetRefreshRate sets the PWM frequency on every board.
	SetRefreshRate(hz int) error
	Close() error
}

// Mapping assigns every (eye, axis) its fixed board and channel. Eyes are
// packed in wiring order: eye slots fill a board two channels at a time,
// vertical on the even channel and horizontal on the odd one.
type Mapping struct {
	EyesPerBoard int
}

// ChannelFor returns the (board, channel) address for one (eye, axis).
// Addresses are immutable for the process lifetime.
func (m Mapping) ChannelFor(eye gaze.EyeID, axis gaze.Axis) (board, channel int) {
	slot := int(eye) % m.EyesPerBoard
	channel = 2 * slot
	if axis == gaze.Horizontal {
		channel++
	}
	return int(eye) / m.EyesPerBoard, channel
}

// Validate rejects mappings that would overflow a board's 16 channels.
func (m Mapping) Validate() error {
	if m.EyesPerBoard < 1 || m.EyesPerBoard*2 > ChannelsPerBoard {
		return fmt.Errorf("eyes per board must be 1..%d, got %d", ChannelsPerBoard/2, m.EyesPerBoard)
	}
	return nil
}

func checkRange(channel, on, off int) error {
	if channel < 0 || channel >= ChannelsPerBoard {
		return fmt.Errorf("%w: channel %d", ErrOutOfRange, channel)
	}
	if on < 0 || on > MaxOffTick || off < 0 || off > MaxOffTick {
		return fmt.Errorf("%w: pulse on=%d off=%d", ErrOutOfRange, on, off)
	}
	return nil
}
