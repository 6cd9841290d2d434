package app

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gorilla/websocket"

	"github.com/relabs-tech/eye_wall/internal/config"
	"github.com/relabs-tech/eye_wall/internal/frame"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// wallStatus is the combined snapshot served over /api/state and /ws.
type wallStatus struct {
	Eyes  []EyeState   `json:"eyes"`
	Frame *frame.Frame `json:"frame,omitempty"`
	Mode  *ModeChange  `json:"mode,omitempty"`
}

func RunWeb() error {
	cfg := config.Get()

	var (
		mu        sync.RWMutex
		lastState []EyeState
		lastFrame *frame.Frame
		lastMode  *ModeChange
	)

	// 1) Connect to MQTT broker on the Pi
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDWeb)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("connected to MQTT broker at %s", cfg.MQTTBroker)

	// 2) Subscribe and cache the latest payload per topic
	stateToken := client.Subscribe(cfg.TopicState, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var states []EyeState
		if err := json.Unmarshal(msg.Payload(), &states); err != nil {
			log.Printf("MQTT state unmarshal error: %v", err)
			return
		}
		mu.Lock()
		lastState = states
		mu.Unlock()
	})
	stateToken.Wait()
	if stateToken.Error() != nil {
		return stateToken.Error()
	}

	frameToken := client.Subscribe(cfg.TopicFrame, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var f frame.Frame
		if err := json.Unmarshal(msg.Payload(), &f); err != nil {
			log.Printf("MQTT frame unmarshal error: %v", err)
			return
		}
		mu.Lock()
		lastFrame = &f
		mu.Unlock()
	})
	frameToken.Wait()
	if frameToken.Error() != nil {
		return frameToken.Error()
	}

	modeToken := client.Subscribe(cfg.TopicMode, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var m ModeChange
		if err := json.Unmarshal(msg.Payload(), &m); err != nil {
			log.Printf("MQTT mode unmarshal error: %v", err)
			return
		}
		mu.Lock()
		lastMode = &m
		mu.Unlock()
	})
	modeToken.Wait()
	if modeToken.Error() != nil {
		return modeToken.Error()
	}
	log.Printf("subscribed to %s, %s, %s", cfg.TopicState, cfg.TopicFrame, cfg.TopicMode)

	snapshot := func() wallStatus {
		mu.RLock()
		defer mu.RUnlock()
		return wallStatus{Eyes: lastState, Frame: lastFrame, Mode: lastMode}
	}

	// 3) JSON API endpoint: latest wall state
	http.HandleFunc("/api/state", func(w http.ResponseWriter, r *http.Request) {
		s := snapshot()
		if s.Eyes == nil {
			http.Error(w, "no data yet", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(s); err != nil {
			log.Printf("json encode error: %v", err)
		}
	})

	// 4) WebSocket stream: pushes the snapshot on a fixed cadence
	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("websocket upgrade error: %v", err)
			return
		}
		defer conn.Close()

		ticker := time.NewTicker(250 * time.Millisecond)
		defer ticker.Stop()

		for range ticker.C {
			if err := conn.WriteJSON(snapshot()); err != nil {
				// Client gone; normal disconnect path.
				return
			}
		}
	})

	// 5) Static files from ./web as the root
	fs := http.FileServer(http.Dir("web"))
	http.Handle("/", fs)

	addr := fmt.Sprintf(":%d", cfg.WebServerPort)
	log.Printf("web server listening on %s", addr)
	return http.ListenAndServe(addr, nil)
}
