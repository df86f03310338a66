// Package config loads the Signify KEY=VALUE configuration file.
package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration values.
type Config struct {
	// Serial
	SerialPortLeft    string
	SerialPortRight   string
	SerialBaudRate    int
	SerialReadTimeout int // milliseconds
	SerialSettle      int // milliseconds
	SerialResetDelay  int // milliseconds

	// Pipeline
	QueueSize            int
	CalibrationThreshold int
	CalibrationResample  int // milliseconds
	StaticSingleBound    float64
	StaticBothBound      float64
	DynamicBound         float64
	DynamicWindow        int
	Cooldown             int    // milliseconds
	DominantHand         string // "left", "right" or "none"

	// Storage
	DBPath string

	// HTTP
	HTTPAddr      string // empty disables the server
	HTTPStaticDir string // empty serves the API only

	// MQTT
	MQTTBroker      string // empty disables the publisher
	MQTTClientID    string
	MQTTTopicPrefix string

	// Speech
	SpeechCommand string // empty logs announcements
	SpeechTimeout int    // milliseconds

	// Tray
	TrayEnabled bool
}

// Default returns a Config with every optional value set.
func Default() *Config {
	return &Config{
		SerialBaudRate:       115200,
		SerialReadTimeout:    300,
		SerialSettle:         4000,
		SerialResetDelay:     1000,
		QueueSize:            50,
		CalibrationThreshold: 2,
		CalibrationResample:  1000,
		StaticSingleBound:    150,
		StaticBothBound:      950,
		DynamicBound:         30,
		DynamicWindow:        5,
		Cooldown:             2000,
		DominantHand:         "right",
		DBPath:               defaultDBPath(),
		MQTTClientID:         "signify",
		MQTTTopicPrefix:      "signify",
		SpeechTimeout:        10000,
	}
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "signify.db"
	}
	return filepath.Join(home, ".signify", "signify.db")
}

// Load reads the configuration file and returns a Config struct.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	return Parse(file)
}

// Parse reads KEY=VALUE lines on top of Default.
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

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

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	var err error

	switch key {
	// Serial
	case "SERIAL_PORT_LEFT":
		c.SerialPortLeft = value
	case "SERIAL_PORT_RIGHT":
		c.SerialPortRight = value
	case "SERIAL_BAUD_RATE":
		c.SerialBaudRate, err = intRange(key, value, 1200, 4000000)
	case "SERIAL_READ_TIMEOUT_MS":
		c.SerialReadTimeout, err = intRange(key, value, 100, 25500)
	case "SERIAL_SETTLE_MS":
		c.SerialSettle, err = intRange(key, value, 0, 60000)
	case "SERIAL_RESET_DELAY_MS":
		c.SerialResetDelay, err = intRange(key, value, 0, 60000)

	// Pipeline
	case "QUEUE_SIZE":
		c.QueueSize, err = intRange(key, value, 1, 10000)
	case "CALIBRATION_THRESHOLD":
		c.CalibrationThreshold, err = intRange(key, value, 1, 3)
	case "CALIBRATION_RESAMPLE_MS":
		c.CalibrationResample, err = intRange(key, value, 0, 60000)
	case "STATIC_SINGLE_BOUND":
		c.StaticSingleBound, err = positiveFloat(key, value)
	case "STATIC_BOTH_BOUND":
		c.StaticBothBound, err = positiveFloat(key, value)
	case "DYNAMIC_BOUND":
		c.DynamicBound, err = positiveFloat(key, value)
	case "DYNAMIC_WINDOW":
		c.DynamicWindow, err = intRange(key, value, 2, 20)
	case "COOLDOWN_MS":
		c.Cooldown, err = intRange(key, value, 1, 600000)
	case "DOMINANT_HAND":
		v := strings.ToLower(value)
		if v != "left" && v != "right" && v != "none" {
			return fmt.Errorf("DOMINANT_HAND must be left, right or none, got %q", value)
		}
		c.DominantHand = v

	// Storage
	case "DB_PATH":
		c.DBPath = expandHome(value)

	// HTTP
	case "HTTP_ADDR":
		c.HTTPAddr = value
	case "HTTP_STATIC_DIR":
		c.HTTPStaticDir = expandHome(value)

	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID":
		c.MQTTClientID = value
	case "MQTT_TOPIC_PREFIX":
		c.MQTTTopicPrefix = strings.TrimSuffix(value, "/")

	// Speech
	case "SPEECH_COMMAND":
		c.SpeechCommand = value
	case "SPEECH_TIMEOUT_MS":
		c.SpeechTimeout, err = intRange(key, value, 100, 600000)

	// Tray
	case "TRAY_ENABLED":
		c.TrayEnabled, err = strconv.ParseBool(value)
		if err != nil {
			err = fmt.Errorf("invalid TRAY_ENABLED %q: %w", value, err)
		}

	default:
		return fmt.Errorf("unknown config key %q", key)
	}

	return err
}

// validate checks required fields and cross-field constraints.
func (c *Config) validate() error {
	if c.SerialPortLeft == "" {
		return fmt.Errorf("SERIAL_PORT_LEFT is required")
	}
	if c.SerialPortRight == "" {
		return fmt.Errorf("SERIAL_PORT_RIGHT is required")
	}
	if c.SerialPortLeft == c.SerialPortRight {
		return fmt.Errorf("SERIAL_PORT_LEFT and SERIAL_PORT_RIGHT must differ, both are %q", c.SerialPortLeft)
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH must not be empty")
	}
	if c.MQTTBroker != "" && c.MQTTClientID == "" {
		return fmt.Errorf("MQTT_CLIENT_ID is required when MQTT_BROKER is set")
	}
	return nil
}

func intRange(key, value string, min, max int) (int, error) {
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if v < min || v > max {
		return 0, fmt.Errorf("%s must be %d-%d, got %d", key, min, max, v)
	}
	return v, nil
}

func positiveFloat(key, value string) (float64, error) {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %v", key, v)
	}
	return v, nil
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// ReadTimeout returns the serial read timeout.
func (c *Config) ReadTimeout() time.Duration {
	return time.Duration(c.SerialReadTimeout) * time.Millisecond
}

// SettleDelay returns the wait after opening the gloves.
func (c *Config) SettleDelay() time.Duration {
	return time.Duration(c.SerialSettle) * time.Millisecond
}

// ResetDelay returns the pause before reopening a busy port.
func (c *Config) ResetDelay() time.Duration {
	return time.Duration(c.SerialResetDelay) * time.Millisecond
}

// ResampleInterval returns the wait between calibration reads.
func (c *Config) ResampleInterval() time.Duration {
	return time.Duration(c.CalibrationResample) * time.Millisecond
}

// CooldownInterval returns the repeat suppression window.
func (c *Config) CooldownInterval() time.Duration {
	return time.Duration(c.Cooldown) * time.Millisecond
}

// SpeechTimeoutDuration returns the per-announcement command timeout.
func (c *Config) SpeechTimeoutDuration() time.Duration {
	return time.Duration(c.SpeechTimeout) * time.Millisecond
}
