package app

import (
	"log"
	"time"

	"github.com/relabs-tech/eye_wall/internal/bus"
	"github.com/relabs-tech/eye_wall/internal/config"
	"github.com/relabs-tech/eye_wall/internal/gaze"
)

// RunCenter drives every configured eye to its calibrated rest position and
// exits, leaving the servos holding center. Used after assembly and before
// mechanical adjustment.
func RunCenter(dryRun bool) error {
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
	for _, eye := range eyes {
		for _, axis := range []gaze.Axis{gaze.Vertical, gaze.Horizontal} {
			e, err := table.Lookup(eye, axis)
			if err != nil {
				return err
			}
			board, channel := mapping.ChannelFor(eye, axis)
			if err := writer.SetCommand(board, channel, 0, e.Mid); err != nil {
				log.Printf("center: eye %d %s: %v", eye, axis, err)
				continue
			}
			time.Sleep(centerGap)
		}
	}

	log.Printf("centered %d eyes", len(eyes))
	return nil
}

func openBus(cfg *config.Config, dryRun bool) (bus.Writer, error) {
	if dryRun {
		log.Println("dry run: commands go to an in-memory bus, no hardware touched")
		return bus.NewMock(), nil
	}
	return bus.NewPCA9685Array(cfg.I2CBus, cfg.BoardAddresses)
}
