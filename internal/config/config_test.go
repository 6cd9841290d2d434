package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const baseConfig = `# test config
MQTT_BROKER=tcp://localhost:1883
TOPIC_STATE=eyewall/state
TOPIC_FRAME=eyewall/frame
TOPIC_MODE=eyewall/mode

BOARD_ADDRESSES=0x40,0x41
EYES_PER_BOARD=8
EYE_COUNT=16
PWM_FREQUENCY_HZ=50

SERVO_MID=352
SERVO_H_MIN=272
SERVO_H_MAX=432
SERVO_V_MIN=302
SERVO_V_MAX=362

MODE=random_synced
SMOOTHING_ALPHA=0.35
TICK_INTERVAL_MS=20
DWELL_MIN_MS=750
DWELL_MAX_MS=3000
MIN_MOVE_DISTANCE=0.3
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFullConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, baseConfig))
	require.NoError(t, err)

	assert.Equal(t, "tcp://localhost:1883", cfg.MQTTBroker)
	assert.Equal(t, "eyewall/state", cfg.TopicState)
	assert.Equal(t, []uint16{0x40, 0x41}, cfg.BoardAddresses)
	assert.Equal(t, 8, cfg.EyesPerBoard)
	assert.Equal(t, 16, cfg.EyeCount)
	assert.Equal(t, 50, cfg.PWMFrequencyHz)
	assert.Equal(t, 352, cfg.ServoMid)
	assert.Equal(t, 272, cfg.ServoHMin)
	assert.Equal(t, "random_synced", cfg.Mode)
	assert.Equal(t, 0.35, cfg.SmoothingAlpha)
	assert.Equal(t, 750, cfg.DwellMinMS)
	assert.Equal(t, 0.3, cfg.MinMoveDistance)
}

func TestLoadCalOverrides(t *testing.T) {
	cfg, err := Load(writeConfig(t, baseConfig+
		"CAL_EYE_12_H=265,348,430\n"+
		"CAL_EYE_12_V=300,348,360,true\n"))
	require.NoError(t, err)

	require.Len(t, cfg.Overrides, 2)
	assert.Equal(t, CalOverride{Eye: 12, Axis: "H", Min: 265, Mid: 348, Max: 430}, cfg.Overrides[0])
	assert.Equal(t, CalOverride{Eye: 12, Axis: "V", Min: 300, Mid: 348, Max: 360, Inverted: true}, cfg.Overrides[1])
}

func TestLoadRejectsUnknownKey(t *testing.T) {
	_, err := Load(writeConfig(t, baseConfig+"SERVO_SPEED=9\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown config key")
}

func TestLoadRejectsMalformedLine(t *testing.T) {
	_, err := Load(writeConfig(t, baseConfig+"just some words\n"))
	assert.Error(t, err)
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"bad mode", "MODE=wander"},
		{"alpha zero", "SMOOTHING_ALPHA=0"},
		{"alpha above one", "SMOOTHING_ALPHA=1.5"},
		{"pulse above ceiling", "SERVO_MID=4096"},
		{"eyes per board overflow", "EYES_PER_BOARD=9"},
		{"min move at one", "MIN_MOVE_DISTANCE=1.0"},
		{"random bound outside unit", "RANDOM_H_LO=-1.5"},
		{"override missing field", "CAL_EYE_3_H=265,348"},
		{"override bad axis", "CAL_EYE_3_X=265,348,430"},
		{"override bad eye id", "CAL_EYE_abc_H=265,348,430"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Later duplicate keys overwrite earlier ones, so appending the bad
			// line to a valid base exercises just that value.
			_, err := Load(writeConfig(t, baseConfig+tt.line+"\n"))
			assert.Error(t, err)
		})
	}
}

func TestLoadRequiredFields(t *testing.T) {
	for _, missing := range []string{"MQTT_BROKER", "BOARD_ADDRESSES", "EYE_COUNT", "MODE", "TICK_INTERVAL_MS"} {
		t.Run(missing, func(t *testing.T) {
			var b strings.Builder
			for _, line := range strings.Split(baseConfig, "\n") {
				if strings.HasPrefix(line, missing+"=") {
					continue
				}
				b.WriteString(line + "\n")
			}
			_, err := Load(writeConfig(t, b.String()))
			require.Error(t, err)
			assert.Contains(t, err.Error(), missing)
		})
	}
}

func TestLoadEyeCountMustFitBoards(t *testing.T) {
	_, err := Load(writeConfig(t, strings.Replace(baseConfig, "EYE_COUNT=16", "EYE_COUNT=17", 1)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EYE_COUNT")
}

func TestLoadTrackingModeRequirements(t *testing.T) {
	tracking := strings.Replace(baseConfig, "MODE=random_synced", "MODE=tracking", 1)

	_, err := Load(writeConfig(t, tracking))
	require.Error(t, err, "tracking mode without sensor geometry must fail")

	full := tracking + `
SENSOR_WIDTH=640
SENSOR_HEIGHT=480
FRAME_STALE_MS=250
HOLD_TIMEOUT_MS=4000
`
	cfg, err := Load(writeConfig(t, full))
	require.NoError(t, err)
	assert.Equal(t, 640, cfg.SensorWidth)
	assert.Equal(t, 4000, cfg.HoldTimeoutMS)
}

func TestLoadDwellOrdering(t *testing.T) {
	_, err := Load(writeConfig(t, strings.Replace(baseConfig, "DWELL_MAX_MS=3000", "DWELL_MAX_MS=500", 1)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DWELL_MAX_MS")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.txt"))
	assert.Error(t, err)
}
