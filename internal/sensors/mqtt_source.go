package sensors

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/eye_wall/internal/frame"
)

// MQTTFrameSource caches the newest depth frame published by the depth
// producer and serves it non-blocking to the coordinator. A frame older than
// the staleness window is reported invalid so a silent producer degrades the
// tracking source instead of freezing it on old data.
type MQTTFrameSource struct {
	mu    sync.RWMutex
	last  frame.Frame
	have  bool
	stale time.Duration
	now   func() time.Time
}

// NewMQTTFrameSource subscribes to the frame topic on an already connected
// client.
func NewMQTTFrameSource(client mqtt.Client, topic string, stale time.Duration) (*MQTTFrameSource, error) {
	s := &MQTTFrameSource{stale: stale, now: time.Now}

	token := client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var f frame.Frame
		if err := json.Unmarshal(msg.Payload(), &f); err != nil {
			log.Printf("frame payload unmarshal error: %v", err)
			return
		}
		s.mu.Lock()
		s.last = f
		s.have = true
		s.mu.Unlock()
	})
	token.Wait()
	if token.Error() != nil {
		return nil, token.Error()
	}
	return s, nil
}

// PollFrame returns the latest cached frame without blocking. Before the
// first message, and after the staleness window, the frame is invalid.
func (s *MQTTFrameSource) PollFrame() (frame.Frame, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.have {
		return frame.Frame{Valid: false}, nil
	}
	f := s.last
	if s.now().Sub(f.Time) > s.stale {
		f.Valid = false
	}
	return f, nil
}
