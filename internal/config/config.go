package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
)

// CalOverride is a per-eye calibration entry parsed from a CAL_EYE_<id>_<axis>
// key, overriding the bulk servo calibration for one drifted unit.
type CalOverride struct {
	Eye      int
	Axis     string // "H" or "V"
	Min      int
	Mid      int
	Max      int
	Inverted bool
}

// Config holds all application configuration values.
type Config struct {
	// MQTT
	MQTTBroker          string
	MQTTClientIDEyes    string
	MQTTClientIDDepth   string
	MQTTClientIDConsole string
	MQTTClientIDWeb     string

	// Topics
	TopicState string
	TopicFrame string
	TopicMode  string

	// Actuator bus
	I2CBus         string // "" selects the platform default bus
	BoardAddresses []uint16
	EyesPerBoard   int
	EyeCount       int
	PWMFrequencyHz int

	// Bulk servo calibration (pulse counts, 0-4095). Applied to every eye
	// unless a CAL_EYE_ override exists.
	ServoMid  int
	ServoHMin int
	ServoHMax int
	ServoVMin int
	ServoVMax int
	Overrides []CalOverride

	// Behavior
	Mode            string // "random_synced", "random_independent", "tracking"
	SmoothingAlpha  float64
	TickIntervalMS  int
	DwellMinMS      int
	DwellMaxMS      int
	MinMoveDistance float64
	RandomHLo       float64
	RandomHHi       float64
	RandomVLo       float64
	RandomVHi       float64
	ServoIdleOffMS  int // 0 disables idle PWM cutoff after tracking moves

	// Depth sensor
	SensorWidth     int
	SensorHeight    int
	MinDepthMM      int
	MaxDepthMM      int
	FrameStaleMS    int
	HoldTimeoutMS   int
	DepthSerialPort string
	DepthBaudRate   int

	// Web Server
	WebServerPort int
}

// Package-level unexported variables for singleton pattern:
//   - globalConfig: unexported (lowercase) so other packages cannot access it directly.
//     This enforces encapsulation and prevents external code from modifying config without proper locking.
//   - configOnce: ensures InitGlobal() only runs once, even if called multiple times.
//   - configMu: RWMutex protects concurrent access. Write lock (Lock) for initialization,
//     read lock (RLock) for Get() allows multiple concurrent readers without blocking each other.
//
// External code must use InitGlobal() to set and Get() to read, ensuring thread safety.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Load reads the configuration file and returns a Config struct.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	cfg := &Config{}
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=VALUE
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Validate required fields
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	switch key {
	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_EYES":
		c.MQTTClientIDEyes = value
	case "MQTT_CLIENT_ID_DEPTH":
		c.MQTTClientIDDepth = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "MQTT_CLIENT_ID_WEB":
		c.MQTTClientIDWeb = value

	// Topics
	case "TOPIC_STATE":
		c.TopicState = value
	case "TOPIC_FRAME":
		c.TopicFrame = value
	case "TOPIC_MODE":
		c.TopicMode = value

	// Actuator bus
	case "I2C_BUS":
		c.I2CBus = value
	case "BOARD_ADDRESSES":
		for _, part := range strings.Split(value, ",") {
			part = strings.TrimSpace(part)
			addr, err := strconv.ParseUint(part, 0, 16)
			if err != nil {
				return fmt.Errorf("invalid BOARD_ADDRESSES entry %q: %w", part, err)
			}
			c.BoardAddresses = append(c.BoardAddresses, uint16(addr))
		}
	case "EYES_PER_BOARD":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid EYES_PER_BOARD %q: %w", value, err)
		}
		if n < 1 || n > 8 {
			return fmt.Errorf("EYES_PER_BOARD must be 1-8 (two channels per eye, 16 channels per board), got %d", n)
		}
		c.EyesPerBoard = n
	case "EYE_COUNT":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid EYE_COUNT %q: %w", value, err)
		}
		c.EyeCount = n
	case "PWM_FREQUENCY_HZ":
		hz, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid PWM_FREQUENCY_HZ %q: %w", value, err)
		}
		c.PWMFrequencyHz = hz

	// Bulk servo calibration
	case "SERVO_MID":
		v, err := parsePulse(key, value)
		if err != nil {
			return err
		}
		c.ServoMid = v
	case "SERVO_H_MIN":
		v, err := parsePulse(key, value)
		if err != nil {
			return err
		}
		c.ServoHMin = v
	case "SERVO_H_MAX":
		v, err := parsePulse(key, value)
		if err != nil {
			return err
		}
		c.ServoHMax = v
	case "SERVO_V_MIN":
		v, err := parsePulse(key, value)
		if err != nil {
			return err
		}
		c.ServoVMin = v
	case "SERVO_V_MAX":
		v, err := parsePulse(key, value)
		if err != nil {
			return err
		}
		c.ServoVMax = v

	// Behavior
	case "MODE":
		switch value {
		case "random_synced", "random_independent", "tracking":
			c.Mode = value
		default:
			return fmt.Errorf("MODE must be random_synced, random_independent or tracking, got %q", value)
		}
	case "SMOOTHING_ALPHA":
		a, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid SMOOTHING_ALPHA %q: %w", value, err)
		}
		if a <= 0 || a > 1 {
			return fmt.Errorf("SMOOTHING_ALPHA must be in (0,1], got %g", a)
		}
		c.SmoothingAlpha = a
	case "TICK_INTERVAL_MS":
		ms, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid TICK_INTERVAL_MS %q: %w", value, err)
		}
		c.TickIntervalMS = ms
	case "DWELL_MIN_MS":
		ms, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid DWELL_MIN_MS %q: %w", value, err)
		}
		c.DwellMinMS = ms
	case "DWELL_MAX_MS":
		ms, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid DWELL_MAX_MS %q: %w", value, err)
		}
		c.DwellMaxMS = ms
	case "MIN_MOVE_DISTANCE":
		d, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid MIN_MOVE_DISTANCE %q: %w", value, err)
		}
		if d < 0 || d >= 1 {
			return fmt.Errorf("MIN_MOVE_DISTANCE must be in [0,1), got %g", d)
		}
		c.MinMoveDistance = d
	case "RANDOM_H_LO":
		v, err := parseNormalized(key, value)
		if err != nil {
			return err
		}
		c.RandomHLo = v
	case "RANDOM_H_HI":
		v, err := parseNormalized(key, value)
		if err != nil {
			return err
		}
		c.RandomHHi = v
	case "RANDOM_V_LO":
		v, err := parseNormalized(key, value)
		if err != nil {
			return err
		}
		c.RandomVLo = v
	case "RANDOM_V_HI":
		v, err := parseNormalized(key, value)
		if err != nil {
			return err
		}
		c.RandomVHi = v
	case "SERVO_IDLE_OFF_MS":
		ms, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid SERVO_IDLE_OFF_MS %q: %w", value, err)
		}
		if ms < 0 {
			return fmt.Errorf("SERVO_IDLE_OFF_MS must be >= 0, got %d", ms)
		}
		c.ServoIdleOffMS = ms

	// Depth sensor
	case "SENSOR_WIDTH":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid SENSOR_WIDTH %q: %w", value, err)
		}
		c.SensorWidth = n
	case "SENSOR_HEIGHT":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid SENSOR_HEIGHT %q: %w", value, err)
		}
		c.SensorHeight = n
	case "MIN_DEPTH_MM":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid MIN_DEPTH_MM %q: %w", value, err)
		}
		c.MinDepthMM = n
	case "MAX_DEPTH_MM":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid MAX_DEPTH_MM %q: %w", value, err)
		}
		c.MaxDepthMM = n
	case "FRAME_STALE_MS":
		ms, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid FRAME_STALE_MS %q: %w", value, err)
		}
		c.FrameStaleMS = ms
	case "HOLD_TIMEOUT_MS":
		ms, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid HOLD_TIMEOUT_MS %q: %w", value, err)
		}
		c.HoldTimeoutMS = ms
	case "DEPTH_SERIAL_PORT":
		c.DepthSerialPort = value
	case "DEPTH_BAUD_RATE":
		rate, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid DEPTH_BAUD_RATE %q: %w", value, err)
		}
		c.DepthBaudRate = rate

	// Web Server
	case "WEB_SERVER_PORT":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid WEB_SERVER_PORT %q: %w", value, err)
		}
		c.WebServerPort = port

	default:
		// Per-eye calibration overrides are data-driven keys:
		// CAL_EYE_<id>_H or CAL_EYE_<id>_V = min,mid,max[,inverted]
		if strings.HasPrefix(key, "CAL_EYE_") {
			ov, err := parseCalOverride(key, value)
			if err != nil {
				return err
			}
			c.Overrides = append(c.Overrides, ov)
			return nil
		}
		return fmt.Errorf("unknown config key: %q", key)
	}

	return nil
}

func parsePulse(key, value string) (int, error) {
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if v < 0 || v > 4095 {
		return 0, fmt.Errorf("%s must be 0-4095, got %d", key, v)
	}
	return v, nil
}

func parseNormalized(key, value string) (float64, error) {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if v < -1 || v > 1 {
		return 0, fmt.Errorf("%s must be in [-1,1], got %g", key, v)
	}
	return v, nil
}

func parseCalOverride(key, value string) (CalOverride, error) {
	rest := strings.TrimPrefix(key, "CAL_EYE_")
	idx := strings.LastIndex(rest, "_")
	if idx < 1 {
		return CalOverride{}, fmt.Errorf("invalid calibration key %q, want CAL_EYE_<id>_H or CAL_EYE_<id>_V", key)
	}
	axis := rest[idx+1:]
	if axis != "H" && axis != "V" {
		return CalOverride{}, fmt.Errorf("invalid calibration key %q: axis must be H or V", key)
	}
	eye, err := strconv.Atoi(rest[:idx])
	if err != nil {
		return CalOverride{}, fmt.Errorf("invalid calibration key %q: bad eye id: %w", key, err)
	}

	parts := strings.Split(value, ",")
	if len(parts) != 3 && len(parts) != 4 {
		return CalOverride{}, fmt.Errorf("%s: want min,mid,max[,inverted], got %q", key, value)
	}
	ov := CalOverride{Eye: eye, Axis: axis}
	for i, name := range []string{"min", "mid", "max"} {
		v, err := parsePulse(key+" "+name, strings.TrimSpace(parts[i]))
		if err != nil {
			return CalOverride{}, err
		}
		switch i {
		case 0:
			ov.Min = v
		case 1:
			ov.Mid = v
		case 2:
			ov.Max = v
		}
	}
	if len(parts) == 4 {
		inv, err := strconv.ParseBool(strings.TrimSpace(parts[3]))
		if err != nil {
			return CalOverride{}, fmt.Errorf("%s: bad inverted flag %q: %w", key, parts[3], err)
		}
		ov.Inverted = inv
	}
	return ov, nil
}

// validate checks that all required fields are set and consistent.
func (c *Config) validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required")
	}
	if c.TopicState == "" {
		return fmt.Errorf("TOPIC_STATE is required")
	}
	if c.TopicFrame == "" {
		return fmt.Errorf("TOPIC_FRAME is required")
	}
	if c.TopicMode == "" {
		return fmt.Errorf("TOPIC_MODE is required")
	}
	if len(c.BoardAddresses) == 0 {
		return fmt.Errorf("BOARD_ADDRESSES is required")
	}
	if c.EyesPerBoard == 0 {
		return fmt.Errorf("EYES_PER_BOARD is required")
	}
	if c.EyeCount == 0 {
		return fmt.Errorf("EYE_COUNT is required")
	}
	if c.EyeCount > len(c.BoardAddresses)*c.EyesPerBoard {
		return fmt.Errorf("EYE_COUNT %d exceeds %d boards x %d eyes per board",
			c.EyeCount, len(c.BoardAddresses), c.EyesPerBoard)
	}
	if c.PWMFrequencyHz == 0 {
		return fmt.Errorf("PWM_FREQUENCY_HZ is required")
	}
	if c.ServoMid == 0 || c.ServoHMin == 0 || c.ServoHMax == 0 || c.ServoVMin == 0 || c.ServoVMax == 0 {
		return fmt.Errorf("bulk servo calibration (SERVO_MID, SERVO_H_MIN/MAX, SERVO_V_MIN/MAX) is required")
	}
	if c.Mode == "" {
		return fmt.Errorf("MODE is required")
	}
	if c.SmoothingAlpha == 0 {
		return fmt.Errorf("SMOOTHING_ALPHA is required")
	}
	if c.TickIntervalMS == 0 {
		return fmt.Errorf("TICK_INTERVAL_MS is required")
	}
	if c.DwellMinMS == 0 || c.DwellMaxMS == 0 {
		return fmt.Errorf("DWELL_MIN_MS and DWELL_MAX_MS are required")
	}
	if c.DwellMaxMS < c.DwellMinMS {
		return fmt.Errorf("DWELL_MAX_MS %d must be >= DWELL_MIN_MS %d", c.DwellMaxMS, c.DwellMinMS)
	}
	if c.RandomHHi < c.RandomHLo {
		return fmt.Errorf("RANDOM_H_HI %g must be >= RANDOM_H_LO %g", c.RandomHHi, c.RandomHLo)
	}
	if c.RandomVHi < c.RandomVLo {
		return fmt.Errorf("RANDOM_V_HI %g must be >= RANDOM_V_LO %g", c.RandomVHi, c.RandomVLo)
	}
	if c.Mode == "tracking" {
		if c.SensorWidth == 0 || c.SensorHeight == 0 {
			return fmt.Errorf("SENSOR_WIDTH and SENSOR_HEIGHT are required in tracking mode")
		}
		if c.FrameStaleMS == 0 {
			return fmt.Errorf("FRAME_STALE_MS is required in tracking mode")
		}
		if c.HoldTimeoutMS == 0 {
			return fmt.Errorf("HOLD_TIMEOUT_MS is required in tracking mode")
		}
	}
	return nil
}

// InitGlobal initializes the global configuration from file.
// Uses sync.Once to ensure this only runs once, even if called multiple times.
// Acquires write lock (configMu.Lock) during initialization to prevent concurrent access.
// This is the only function that can set globalConfig.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
// Uses read lock (configMu.RLock) to allow multiple concurrent readers without blocking.
// This is thread-safe and efficient for concurrent access across goroutines.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
