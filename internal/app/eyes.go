package app

import (
	crand "crypto/rand"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/eye_wall/internal/bus"
	"github.com/relabs-tech/eye_wall/internal/calib"
	"github.com/relabs-tech/eye_wall/internal/config"
	"github.com/relabs-tech/eye_wall/internal/gaze"
	"github.com/relabs-tech/eye_wall/internal/sensors"
)

// centerGap spaces bulk servo writes during centering/parking, from the
// original wall bring-up: 64 servos slewing at once browns out the supply.
const centerGap = 10 * time.Millisecond

// settleDelay is how long the wall rests at center before motion begins.
const settleDelay = 2 * time.Second

// ModeChange is the payload published on the mode topic whenever the
// tracking source changes state.
type ModeChange struct {
	From string    `json:"from"`
	To   string    `json:"to"`
	Time time.Time `json:"time"`
}

// RunEyeController is the main daemon: it brings up the actuator bus,
// centers the wall, and runs the coordinator loop until SIGINT/SIGTERM.
func RunEyeController(dryRun bool) error {
	log.Println("starting eye-wall controller")

	cfg := config.Get()

	table, eyes, err := buildCalibration(cfg)
	if err != nil {
		// Unconfigured or inconsistent calibration is fatal before any motion.
		return err
	}

	mapper, err := NewMapper(table, cfg.SmoothingAlpha, eyes)
	if err != nil {
		return err
	}

	var writer bus.Writer
	if dryRun {
		log.Println("dry run: commands go to an in-memory bus, no hardware touched")
		writer = bus.NewMock()
	} else {
		array, err := bus.NewPCA9685Array(cfg.I2CBus, cfg.BoardAddresses)
		if err != nil {
			return err
		}
		writer = array
	}
	defer writer.Close()

	if err := writer.SetRefreshRate(cfg.PWMFrequencyHz); err != nil {
		return err
	}
	log.Printf("PWM refresh rate set to %d Hz", cfg.PWMFrequencyHz)

	// --- connect to MQTT ---
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDEyes)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("MQTT connect error: %w", token.Error())
	}
	defer client.Disconnect(250)
	log.Printf("connected to MQTT broker at %s", cfg.MQTTBroker)

	// Seed randomness from an entropy source independent of the sensor and
	// actuator paths.
	rng := rand.New(rand.NewSource(entropySeed()))

	randomCfg := gaze.RandomConfig{
		HLo:      cfg.RandomHLo,
		HHi:      cfg.RandomHHi,
		VLo:      cfg.RandomVLo,
		VHi:      cfg.RandomVHi,
		DwellMin: time.Duration(cfg.DwellMinMS) * time.Millisecond,
		DwellMax: time.Duration(cfg.DwellMaxMS) * time.Millisecond,
		MinMove:  cfg.MinMoveDistance,
	}

	ctlOpts := ControllerOptions{
		Bus:       writer,
		Mapping:   bus.Mapping{EyesPerBoard: cfg.EyesPerBoard},
		Mapper:    mapper,
		Eyes:      eyes,
		Mode:      Mode(cfg.Mode),
		CenterGap: centerGap,
		Publish:   statePublisher(client, cfg.TopicState),
	}

	switch Mode(cfg.Mode) {
	case ModeRandomSynced:
		ctlOpts.Shared = gaze.NewRandomSource(randomCfg, rng)
	case ModeRandomIndependent:
		ctlOpts.PerEye = gaze.NewIndependentRandomSource(randomCfg, rng)
	case ModeTracking:
		frames, err := sensors.NewMQTTFrameSource(client, cfg.TopicFrame,
			time.Duration(cfg.FrameStaleMS)*time.Millisecond)
		if err != nil {
			return fmt.Errorf("subscribe to frame topic: %w", err)
		}
		tracker := gaze.NewTrackingSource(gaze.TrackingConfig{
			SensorWidth:  cfg.SensorWidth,
			SensorHeight: cfg.SensorHeight,
			HoldTimeout:  time.Duration(cfg.HoldTimeoutMS) * time.Millisecond,
		}, frames, gaze.NewRandomSource(randomCfg, rng))
		tracker.OnTransition = modePublisher(client, cfg.TopicMode)
		ctlOpts.Shared = tracker
		ctlOpts.IdleOff = time.Duration(cfg.ServoIdleOffMS) * time.Millisecond
	}

	ctrl, err := NewController(ctlOpts)
	if err != nil {
		return err
	}

	log.Printf("centering %d eyes across %d boards", cfg.EyeCount, len(cfg.BoardAddresses))
	ctrl.CenterAll(time.Now())

	log.Printf("holding center for %s before starting %s mode", settleDelay, cfg.Mode)
	time.Sleep(settleDelay)

	stop := make(chan struct{})
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		close(stop)
	}()

	ctrl.Run(stop, time.Duration(cfg.TickIntervalMS)*time.Millisecond)
	return nil
}

// buildCalibration expands the bulk servo calibration plus per-eye overrides
// into the full table and the configured eye list.
func buildCalibration(cfg *config.Config) (*calib.Table, []gaze.EyeID, error) {
	table := calib.NewTable()
	eyes := make([]gaze.EyeID, cfg.EyeCount)

	bulkH := calib.Entry{Min: cfg.ServoHMin, Mid: cfg.ServoMid, Max: cfg.ServoHMax}
	bulkV := calib.Entry{Min: cfg.ServoVMin, Mid: cfg.ServoMid, Max: cfg.ServoVMax}

	for i := 0; i < cfg.EyeCount; i++ {
		eye := gaze.EyeID(i)
		eyes[i] = eye
		if err := table.Set(eye, gaze.Horizontal, bulkH); err != nil {
			return nil, nil, err
		}
		if err := table.Set(eye, gaze.Vertical, bulkV); err != nil {
			return nil, nil, err
		}
	}

	for _, ov := range cfg.Overrides {
		if ov.Eye < 0 || ov.Eye >= cfg.EyeCount {
			return nil, nil, fmt.Errorf("calibration override for eye %d outside EYE_COUNT %d", ov.Eye, cfg.EyeCount)
		}
		axis := gaze.Horizontal
		if ov.Axis == "V" {
			axis = gaze.Vertical
		}
		entry := calib.Entry{Min: ov.Min, Mid: ov.Mid, Max: ov.Max, Inverted: ov.Inverted}
		if err := table.Set(gaze.EyeID(ov.Eye), axis, entry); err != nil {
			return nil, nil, err
		}
		log.Printf("calibration override: eye %d %s %+v", ov.Eye, axis, entry)
	}

	return table, eyes, nil
}

func statePublisher(client mqtt.Client, topic string) func([]EyeState) {
	return func(states []EyeState) {
		payload, err := json.Marshal(states)
		if err != nil {
			log.Printf("state marshal error: %v", err)
			return
		}
		if token := client.Publish(topic, 0, true, payload); token.Wait() && token.Error() != nil {
			log.Printf("MQTT publish error (state): %v", token.Error())
		}
	}
}

func modePublisher(client mqtt.Client, topic string) func(from, to gaze.TrackState) {
	return func(from, to gaze.TrackState) {
		log.Printf("tracking state: %s -> %s", from, to)
		payload, err := json.Marshal(ModeChange{From: from.String(), To: to.String(), Time: time.Now()})
		if err != nil {
			log.Printf("mode marshal error: %v", err)
			return
		}
		if token := client.Publish(topic, 0, true, payload); token.Wait() && token.Error() != nil {
			log.Printf("MQTT publish error (mode): %v", token.Error())
		}
	}
}

// entropySeed draws a PRNG seed from the OS entropy pool.
func entropySeed() int64 {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		// Extremely unlikely; fall back to wall clock.
		return time.Now().UnixNano()
	}
	return int64(binary.LittleEndian.Uint64(b[:]))
}
