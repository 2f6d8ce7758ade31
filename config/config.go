// Package config defines the immutable configuration of a hoverbot and how it is read.
package config

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"go.viam.com/hoverbot/logging"
	"go.viam.com/hoverbot/resource"
)

// Defaults carried over from the firmware the bot replaces.
const (
	DefaultIdentity            = "HOVERBOT"
	DefaultServerPort          = 3000
	DefaultTelemetryPort       = 3001
	DefaultSettleDelayMs       = 5000
	DefaultConnectTimeoutMs    = 5000
	DefaultReceiveTimeoutMs    = 10000
	DefaultReconnectDelayMs    = 2000
	DefaultObstacleThresholdCm = 15
	DefaultFrictionMsPerUnit   = 6
	DefaultPollIntervalMs      = 100
	DefaultTelemetryPeriodMs   = 100
	DefaultMaxRangeCm          = 400
	DefaultSensorTimeoutMs     = 30

	// ports below this are reserved and fall back to DefaultServerPort.
	minServerPort = 1024
)

// Config is the whole configuration of a bot. It is not mutated after Read returns.
type Config struct {
	Identity  string          `json:"identity" yaml:"identity" env:"HOVERBOT_IDENTITY"`
	Network   NetworkConfig   `json:"network" yaml:"network"`
	Safety    SafetyConfig    `json:"safety" yaml:"safety"`
	Sensor    SensorConfig    `json:"sensor" yaml:"sensor"`
	Telemetry TelemetryConfig `json:"telemetry" yaml:"telemetry"`

	Board       resource.Config `json:"board" yaml:"board"`
	Rangefinder resource.Config `json:"rangefinder" yaml:"rangefinder"`
	Drive       resource.Config `json:"drive" yaml:"drive"`

	Log logging.FileConfig `json:"log" yaml:"log" envPrefix:"HOVERBOT_LOG_"`
}

// NetworkConfig describes the peer the bot connects to.
type NetworkConfig struct {
	ServerHost       string `json:"server_host" yaml:"server_host" env:"HOVERBOT_SERVER_HOST"`
	ServerPort       int    `json:"server_port" yaml:"server_port" env:"HOVERBOT_SERVER_PORT"`
	TelemetryPort    int    `json:"telemetry_port" yaml:"telemetry_port" env:"HOVERBOT_TELEMETRY_PORT"`
	SettleDelayMs    int    `json:"settle_delay_ms" yaml:"settle_delay_ms" env:"HOVERBOT_SETTLE_DELAY_MS"`
	ConnectTimeoutMs int    `json:"connect_timeout_ms" yaml:"connect_timeout_ms" env:"HOVERBOT_CONNECT_TIMEOUT_MS"`
	ReceiveTimeoutMs int    `json:"receive_timeout_ms" yaml:"receive_timeout_ms" env:"HOVERBOT_RECEIVE_TIMEOUT_MS"`
	ReconnectDelayMs int    `json:"reconnect_delay_ms" yaml:"reconnect_delay_ms" env:"HOVERBOT_RECONNECT_DELAY_MS"`
}

// SafetyConfig holds the calibration of the obstacle interrupt.
type SafetyConfig struct {
	// ObstacleThresholdCm is the distance at or under which forward motion aborts.
	ObstacleThresholdCm int `json:"obstacle_threshold_cm" yaml:"obstacle_threshold_cm" env:"HOVERBOT_OBSTACLE_THRESHOLD_CM"`
	// FrictionMsPerUnit converts one degree of pivot into actuation milliseconds.
	FrictionMsPerUnit int `json:"friction_ms_per_unit" yaml:"friction_ms_per_unit" env:"HOVERBOT_FRICTION_MS_PER_UNIT"`
	PollIntervalMs    int `json:"poll_interval_ms" yaml:"poll_interval_ms" env:"HOVERBOT_POLL_INTERVAL_MS"`
}

// SensorConfig bounds a single range measurement.
type SensorConfig struct {
	MaxRangeCm int `json:"max_range_cm" yaml:"max_range_cm" env:"HOVERBOT_SENSOR_MAX_RANGE_CM"`
	TimeoutMs  int `json:"timeout_ms" yaml:"timeout_ms" env:"HOVERBOT_SENSOR_TIMEOUT_MS"`
}

// TelemetryConfig sets the proximity streaming cadence.
type TelemetryConfig struct {
	PeriodMs int `json:"period_ms" yaml:"period_ms" env:"HOVERBOT_TELEMETRY_PERIOD_MS"`
}

// Default returns a config with every default applied and fake components.
func Default() *Config {
	return &Config{
		Identity: DefaultIdentity,
		Network: NetworkConfig{
			ServerPort:       DefaultServerPort,
			TelemetryPort:    DefaultTelemetryPort,
			SettleDelayMs:    DefaultSettleDelayMs,
			ConnectTimeoutMs: DefaultConnectTimeoutMs,
			ReceiveTimeoutMs: DefaultReceiveTimeoutMs,
			ReconnectDelayMs: DefaultReconnectDelayMs,
		},
		Safety: SafetyConfig{
			ObstacleThresholdCm: DefaultObstacleThresholdCm,
			FrictionMsPerUnit:   DefaultFrictionMsPerUnit,
			PollIntervalMs:      DefaultPollIntervalMs,
		},
		Sensor: SensorConfig{
			MaxRangeCm: DefaultMaxRangeCm,
			TimeoutMs:  DefaultSensorTimeoutMs,
		},
		Telemetry:   TelemetryConfig{PeriodMs: DefaultTelemetryPeriodMs},
		Board:       resource.Config{Model: "fake"},
		Rangefinder: resource.Config{Model: "fake"},
		Drive:       resource.Config{Model: "fake"},
		Log:         logging.FileConfig{Level: "info"},
	}
}

// Validate ensures all parts of the config are valid. Out of range server ports are
// replaced by the default, as the firmware did.
func (c *Config) Validate() error {
	if c.Identity == "" {
		return goutils.NewConfigValidationFieldRequiredError("", "identity")
	}
	if err := c.Network.Validate("network"); err != nil {
		return err
	}
	if err := c.Safety.Validate("safety"); err != nil {
		return err
	}
	if err := c.Sensor.Validate("sensor"); err != nil {
		return err
	}
	if c.Telemetry.PeriodMs <= 0 {
		return goutils.NewConfigValidationFieldRequiredError("telemetry", "period_ms")
	}
	// A single measurement holds the sensor lock; it must fit inside both cadences.
	if c.Sensor.TimeoutMs >= c.Safety.PollIntervalMs {
		return goutils.NewConfigValidationError("sensor", errors.Errorf(
			"timeout_ms (%d) must be less than safety.poll_interval_ms (%d)", c.Sensor.TimeoutMs, c.Safety.PollIntervalMs))
	}
	if c.Sensor.TimeoutMs >= c.Telemetry.PeriodMs {
		return goutils.NewConfigValidationError("sensor", errors.Errorf(
			"timeout_ms (%d) must be less than telemetry.period_ms (%d)", c.Sensor.TimeoutMs, c.Telemetry.PeriodMs))
	}
	for path, comp := range map[string]*resource.Config{
		"board":       &c.Board,
		"rangefinder": &c.Rangefinder,
		"drive":       &c.Drive,
	} {
		if err := comp.Validate(path); err != nil {
			return err
		}
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return goutils.NewConfigValidationError("log", err)
	}
	return nil
}

// Validate ensures the network section is usable.
func (n *NetworkConfig) Validate(path string) error {
	if n.ServerHost == "" {
		return goutils.NewConfigValidationFieldRequiredError(path, "server_host")
	}
	if n.ServerPort < minServerPort || n.ServerPort > 65535 {
		n.ServerPort = DefaultServerPort
	}
	if n.TelemetryPort <= 0 || n.TelemetryPort > 65535 {
		return goutils.NewConfigValidationError(path, errors.Errorf("invalid telemetry_port %d", n.TelemetryPort))
	}
	if n.SettleDelayMs < 0 {
		return goutils.NewConfigValidationError(path, errors.New("settle_delay_ms cannot be negative"))
	}
	if n.ConnectTimeoutMs <= 0 {
		return goutils.NewConfigValidationFieldRequiredError(path, "connect_timeout_ms")
	}
	if n.ReceiveTimeoutMs <= 0 {
		return goutils.NewConfigValidationFieldRequiredError(path, "receive_timeout_ms")
	}
	if n.ReconnectDelayMs <= 0 {
		return goutils.NewConfigValidationFieldRequiredError(path, "reconnect_delay_ms")
	}
	return nil
}

// Validate ensures the safety calibration is positive.
func (s *SafetyConfig) Validate(path string) error {
	if s.ObstacleThresholdCm <= 0 {
		return goutils.NewConfigValidationFieldRequiredError(path, "obstacle_threshold_cm")
	}
	if s.FrictionMsPerUnit <= 0 {
		return goutils.NewConfigValidationFieldRequiredError(path, "friction_ms_per_unit")
	}
	if s.PollIntervalMs <= 0 {
		return goutils.NewConfigValidationFieldRequiredError(path, "poll_interval_ms")
	}
	return nil
}

// Validate ensures the sensor bounds are positive.
func (s *SensorConfig) Validate(path string) error {
	if s.MaxRangeCm <= 0 {
		return goutils.NewConfigValidationFieldRequiredError(path, "max_range_cm")
	}
	if s.TimeoutMs <= 0 {
		return goutils.NewConfigValidationFieldRequiredError(path, "timeout_ms")
	}
	return nil
}

// ServerAddress is the host:port of the command peer.
func (n NetworkConfig) ServerAddress() string {
	return net.JoinHostPort(n.ServerHost, strconv.Itoa(n.ServerPort))
}

// TelemetryAddress is the host:port proximity datagrams are sent to.
func (n NetworkConfig) TelemetryAddress() string {
	return net.JoinHostPort(n.ServerHost, strconv.Itoa(n.TelemetryPort))
}

// SettleDelay is how long the bot waits after connecting before registering.
func (n NetworkConfig) SettleDelay() time.Duration {
	return time.Duration(n.SettleDelayMs) * time.Millisecond
}

// ConnectTimeout bounds a single dial.
func (n NetworkConfig) ConnectTimeout() time.Duration {
	return time.Duration(n.ConnectTimeoutMs) * time.Millisecond
}

// ReceiveTimeout bounds a single frame read.
func (n NetworkConfig) ReceiveTimeout() time.Duration {
	return time.Duration(n.ReceiveTimeoutMs) * time.Millisecond
}

// ReconnectDelay is the minimum spacing between connection attempts.
func (n NetworkConfig) ReconnectDelay() time.Duration {
	return time.Duration(n.ReconnectDelayMs) * time.Millisecond
}

// PollInterval is the obstacle sampling period.
func (s SafetyConfig) PollInterval() time.Duration {
	return time.Duration(s.PollIntervalMs) * time.Millisecond
}

// Timeout bounds a single echo wait.
func (s SensorConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutMs) * time.Millisecond
}

// Period is the telemetry sampling period.
func (t TelemetryConfig) Period() time.Duration {
	return time.Duration(t.PeriodMs) * time.Millisecond
}

func (c *Config) String() string {
	return fmt.Sprintf("%s -> %s (board=%s rangefinder=%s drive=%s)",
		c.Identity, c.Network.ServerAddress(), c.Board.Model, c.Rangefinder.Model, c.Drive.Model)
}
