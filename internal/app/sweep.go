package app

import (
	"fmt"
	"log"
	"time"

	"github.com/relabs-tech/eye_wall/internal/bus"
	"github.com/relabs-tech/eye_wall/internal/config"
	"github.com/relabs-tech/eye_wall/internal/gaze"
)

// sweepStep and sweepDelay give a slow, watchable sweep for checking linkage
// travel and spotting binding eyes.
const (
	sweepStep  = 0.1
	sweepDelay = 150 * time.Millisecond
)

// RunSweep slowly drives every eye center -> max -> min -> center on one
// axis so mechanical range can be verified by eye.
func RunSweep(axisName string, dryRun bool) error {
	var axis gaze.Axis
	switch axisName {
	case "h", "horizontal":
		axis = gaze.Horizontal
	case "v", "vertical":
		axis = gaze.Vertical
	default:
		return fmt.Errorf("axis must be h or v, got %q", axisName)
	}

	cfg := config.Get()

	table, eyes, err := buildCalibration(cfg)
	if err != nil {
		return err
	}

	writer, err := openBus(cfg, dryRun)
	if err != nil {
		return err
	}
	defer writer.Close()

	if err := writer.SetRefreshRate(cfg.PWMFrequencyHz); err != nil {
		return err
	}

	mapping := bus.Mapping{EyesPerBoard: cfg.EyesPerBoard}
	log.Printf("sweeping %s axis on %d eyes", axis, len(eyes))

	for _, v := range sweepSequence() {
		for _, eye := range eyes {
			e, err := table.Lookup(eye, axis)
			if err != nil {
				return err
			}
			board, channel := mapping.ChannelFor(eye, axis)
			if err := writer.SetCommand(board, channel, 0, e.Command(v)); err != nil {
				log.Printf("sweep: eye %d: %v", eye, err)
			}
		}
		log.Printf("sweep position %+.1f", v)
		time.Sleep(sweepDelay)
	}

	log.Println("sweep complete")
	return nil
}

// sweepSequence walks 0 -> +1 -> -1 -> 0 in fixed steps.
func sweepSequence() []float64 {
	var seq []float64
	for v := 0.0; v < 1; v += sweepStep {
		seq = append(seq, v)
	}
	for v := 1.0; v > -1; v -= sweepStep {
		seq = append(seq, v)
	}
	for v := -1.0; v <= 0; v += sweepStep {
		seq = append(seq, v)
	}
	return seq
}
