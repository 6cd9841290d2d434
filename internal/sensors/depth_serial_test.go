package sensors

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sentence frames a body with the NMEA checksum the coprocessor computes.
func sentence(body string) string {
	var cs byte
	for i := 0; i < len(body); i++ {
		cs ^= body[i]
	}
	return fmt.Sprintf("$%s*%02X\r\n", body, cs)
}

func newTestReader(window DepthWindow, lines ...string) *SerialDepthReader {
	r := NewSerialDepthReader(io.NopCloser(strings.NewReader(strings.Join(lines, ""))), window)
	r.now = func() time.Time { return time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC) }
	return r
}

func TestReadFrameParsesPEWD(t *testing.T) {
	r := newTestReader(DepthWindow{MinMM: 400, MaxMM: 900}, sentence("PEWD,480,120,650,A"))

	f, err := r.ReadFrame()
	require.NoError(t, err)
	assert.True(t, f.Valid)
	assert.Equal(t, 480, f.Target.X)
	assert.Equal(t, 120, f.Target.Y)
	assert.Equal(t, 650, f.Target.DepthMM)
	assert.Equal(t, time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC), f.Time)
}

func TestReadFrameSensorReportsNoTarget(t *testing.T) {
	r := newTestReader(DepthWindow{MinMM: 400, MaxMM: 900}, sentence("PEWD,0,0,0,V"))

	f, err := r.ReadFrame()
	require.NoError(t, err)
	assert.False(t, f.Valid)
}

func TestReadFrameDepthWindow(t *testing.T) {
	tests := []struct {
		name  string
		depth int
		valid bool
	}{
		{"inside window", 650, true},
		{"at near edge", 400, true},
		{"at far edge", 900, true},
		{"too close", 300, false},
		{"too far", 950, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestReader(DepthWindow{MinMM: 400, MaxMM: 900},
				sentence(fmt.Sprintf("PEWD,320,240,%d,A", tt.depth)))
			f, err := r.ReadFrame()
			require.NoError(t, err)
			assert.Equal(t, tt.valid, f.Valid)
			// Coordinates are preserved either way.
			assert.Equal(t, 320, f.Target.X)
		})
	}
}

func TestReadFrameZeroWindowDisablesFiltering(t *testing.T) {
	r := newTestReader(DepthWindow{}, sentence("PEWD,320,240,5000,A"))

	f, err := r.ReadFrame()
	require.NoError(t, err)
	assert.True(t, f.Valid)
}

func TestReadFrameSkipsNoise(t *testing.T) {
	r := newTestReader(DepthWindow{MinMM: 400, MaxMM: 900},
		"\r\n",
		"boot: kinect adapter v2.1\r\n",
		"EWD,1,2,3,A\r\n",                // missing $, skipped
		"$PEWD,480,120,650,A*00\r\n",     // bad checksum, skipped
		sentence("GPTXT,01,01,02,noise"), // wrong sentence type, skipped
		sentence("PEWD,480,120,650,A"),
	)

	f, err := r.ReadFrame()
	require.NoError(t, err)
	assert.True(t, f.Valid)
	assert.Equal(t, 480, f.Target.X)
}

func TestReadFrameStreamEnd(t *testing.T) {
	r := newTestReader(DepthWindow{}, sentence("PEWD,1,2,650,A"))

	_, err := r.ReadFrame()
	require.NoError(t, err)

	_, err = r.ReadFrame()
	assert.True(t, errors.Is(err, io.EOF))
}

func TestMQTTFrameSourceStaleness(t *testing.T) {
	base := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	s := &MQTTFrameSource{stale: 250 * time.Millisecond, now: func() time.Time { return base }}

	// No message received yet.
	f, err := s.PollFrame()
	require.NoError(t, err)
	assert.False(t, f.Valid)

	s.mu.Lock()
	s.last.Valid = true
	s.last.Target.X = 320
	s.last.Time = base.Add(-100 * time.Millisecond)
	s.have = true
	s.mu.Unlock()

	f, err = s.PollFrame()
	require.NoError(t, err)
	assert.True(t, f.Valid, "fresh frame must stay valid")

	s.now = func() time.Time { return base.Add(300 * time.Millisecond) }
	f, err = s.PollFrame()
	require.NoError(t, err)
	assert.False(t, f.Valid, "frame past the staleness window must be invalid")
	assert.Equal(t, 320, f.Target.X)
}
