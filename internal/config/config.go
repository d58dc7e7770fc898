package config

import (
	"time"
)

// Config is the root configuration for the container.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Device   DeviceConfig   `yaml:"device"`
	Behavior BehaviorConfig `yaml:"behavior"`
	Update   UpdateConfig   `yaml:"update"`
	Announce AnnounceConfig `yaml:"announce"`
	Logging  LoggingConfig  `yaml:"logging"`
	Timing   TimingConfig   `yaml:"timing"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Addr        string        `yaml:"addr"`
	ReadTimeout time.Duration `yaml:"read_timeout"`
	IdleTimeout time.Duration `yaml:"idle_timeout"`
}

// DeviceConfig identifies the GPIO hardware driven by the behavior task.
type DeviceConfig struct {
	Chip   string `yaml:"chip"`
	LedPin int    `yaml:"led_pin"`
}

// BehaviorConfig holds the startup values of the tunable behavior
// parameters. The variable registry is seeded from these; runtime
// changes go through the registry, not this struct.
type BehaviorConfig struct {
	BlinkCount uint8  `yaml:"blink_count"`
	FastOnMs   uint32 `yaml:"fast_on_ms"`
	FastOffMs  uint32 `yaml:"fast_off_ms"`
	HoldOnMs   uint32 `yaml:"hold_on_ms"`
}

// UpdateConfig holds firmware slot store and reboot settings.
type UpdateConfig struct {
	DataDir           string `yaml:"data_dir"`
	SlotCapacityBytes int64  `yaml:"slot_capacity_bytes"`
	RebootCommand     string `yaml:"reboot_command"`
}

// AnnounceConfig holds discovery/advertisement settings. MQTT is
// optional and disabled when Broker is empty.
type AnnounceConfig struct {
	Hostname string     `yaml:"hostname"`
	MQTT     MQTTConfig `yaml:"mqtt"`
}

// MQTTConfig defines the optional status publisher connection.
type MQTTConfig struct {
	Broker      string `yaml:"broker"`
	User        string `yaml:"user"`
	Password    string `yaml:"password"`
	TopicPrefix string `yaml:"topic_prefix"`
}

// LoggingConfig holds structured log and audit log destinations.
type LoggingConfig struct {
	File       string `yaml:"file"`
	Level      string `yaml:"level"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	AuditDir   string `yaml:"audit_dir"`
}

// TimingConfig holds the coordination timing knobs.
type TimingConfig struct {
	// PollInterval is the behavior scheduler tick and the stop-flag
	// polling granularity. Worst-case stop latency is one tick.
	PollInterval time.Duration `yaml:"poll_interval"`

	// StopWaitCap bounds the quiesce handshake before an update
	// proceeds anyway.
	StopWaitCap time.Duration `yaml:"stop_wait_cap"`

	// SettleDelay is the pause between quiesce and the first flash
	// write.
	SettleDelay time.Duration `yaml:"settle_delay"`

	// ShutdownGrace bounds graceful HTTP shutdown.
	ShutdownGrace time.Duration `yaml:"shutdown_grace"`
}

// Baseline returns the built-in defaults, matching the stock device
// image.
func Baseline() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:        ":80",
			ReadTimeout: 30 * time.Second,
			// Write timeout is deliberately unset: the update ack is
			// flushed early and the pipeline then runs inline for
			// seconds to tens of seconds.
			IdleTimeout: 120 * time.Second,
		},
		Device: DeviceConfig{
			Chip:   "gpiochip0",
			LedPin: 2,
		},
		Behavior: BehaviorConfig{
			BlinkCount: 7,
			FastOnMs:   80,
			FastOffMs:  80,
			HoldOnMs:   5000,
		},
		Update: UpdateConfig{
			DataDir:           "/var/lib/dcc",
			SlotCapacityBytes: 4 << 20,
			RebootCommand:     "reboot",
		},
		Announce: AnnounceConfig{
			Hostname: "esp32-tartanhacks",
		},
		Logging: LoggingConfig{
			File:       "logs/dcc.log",
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			AuditDir:   "logs",
		},
		Timing: TimingConfig{
			PollInterval:  10 * time.Millisecond,
			StopWaitCap:   10 * time.Second,
			SettleDelay:   100 * time.Millisecond,
			ShutdownGrace: 30 * time.Second,
		},
	}
}
