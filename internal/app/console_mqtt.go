package app

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/eye_wall/internal/config"
	"github.com/relabs-tech/eye_wall/internal/frame"
)

func RunConsoleMQTT() error {
	cfg := config.Get()

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDConsole)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("console: connected to MQTT broker at %s", cfg.MQTTBroker)

	// Subscribe to eye state
	stateToken := client.Subscribe(cfg.TopicState, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var states []EyeState
		if err := json.Unmarshal(msg.Payload(), &states); err != nil {
			log.Printf("console: state unmarshal error: %v", err)
			return
		}
		if len(states) == 0 {
			return
		}
		s := states[0]
		fmt.Printf(
			"[EYES]  n=%2d  eye0 H=%+5.2f V=%+5.2f  cmdH=%4d cmdV=%4d\n",
			len(states), s.Gaze.H, s.Gaze.V, s.CommandH, s.CommandV,
		)
	})
	stateToken.Wait()
	if stateToken.Error() != nil {
		return stateToken.Error()
	}
	log.Printf("console: subscribed to %s", cfg.TopicState)

	// Subscribe to depth frames
	frameToken := client.Subscribe(cfg.TopicFrame, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var f frame.Frame
		if err := json.Unmarshal(msg.Payload(), &f); err != nil {
			log.Printf("console: frame unmarshal error: %v", err)
			return
		}
		fmt.Printf(
			"[FRAME] x=%3d y=%3d depth=%4dmm valid=%v\n",
			f.Target.X, f.Target.Y, f.Target.DepthMM, f.Valid,
		)
	})
	frameToken.Wait()
	if frameToken.Error() != nil {
		return frameToken.Error()
	}
	log.Printf("console: subscribed to %s", cfg.TopicFrame)

	// Subscribe to tracking mode transitions
	modeToken := client.Subscribe(cfg.TopicMode, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var m ModeChange
		if err := json.Unmarshal(msg.Payload(), &m); err != nil {
			log.Printf("console: mode unmarshal error: %v", err)
			return
		}
		fmt.Printf("[MODE]  %s -> %s\n", m.From, m.To)
	})
	modeToken.Wait()
	if modeToken.Error() != nil {
		return modeToken.Error()
	}
	log.Printf("console: subscribed to %s", cfg.TopicMode)

	// Wait for Ctrl+C
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("console: shutting down")
	client.Disconnect(250)
	return nil
}
