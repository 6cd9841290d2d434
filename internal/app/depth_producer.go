package app

import (
	"encoding/json"
	"log"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/eye_wall/internal/config"
	"github.com/relabs-tech/eye_wall/internal/sensors"
)

// RunDepthProducer opens the depth unit's serial port, parses its $PEWD
// sentences, and publishes each frame as JSON to the frame topic
// (depth unit -> MQTT).
func RunDepthProducer() error {
	cfg := config.Get()

	// ---- 1) Connect to MQTT broker ----
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDDepth)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("depth producer connected to MQTT broker at %s", cfg.MQTTBroker)

	// ---- 2) Open depth unit serial port ----
	reader, err := sensors.OpenSerialDepthReader(cfg.DepthSerialPort, cfg.DepthBaudRate,
		sensors.DepthWindow{MinMM: cfg.MinDepthMM, MaxMM: cfg.MaxDepthMM})
	if err != nil {
		return err
	}
	defer reader.Close()
	log.Printf("depth serial port opened on %s at %d baud, window %d-%d mm",
		cfg.DepthSerialPort, cfg.DepthBaudRate, cfg.MinDepthMM, cfg.MaxDepthMM)

	lastValid := false
	for {
		f, err := reader.ReadFrame()
		if err != nil {
			log.Printf("depth read error: %v", err)
			return err
		}

		payload, err := json.Marshal(f)
		if err != nil {
			log.Printf("frame JSON marshal error: %v", err)
			continue
		}

		token := client.Publish(cfg.TopicFrame, 0, true, payload)
		token.Wait()
		if token.Error() != nil {
			log.Printf("frame publish error: %v", token.Error())
			continue
		}

		// Frames arrive at sensor rate; only log acquisition and loss.
		if f.Valid != lastValid {
			if f.Valid {
				log.Printf("target acquired: x=%d y=%d depth=%dmm", f.Target.X, f.Target.Y, f.Target.DepthMM)
			} else {
				log.Println("target lost")
			}
			lastValid = f.Valid
		}
	}
}
