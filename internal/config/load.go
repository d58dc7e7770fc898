package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"
)

// Load merges Baseline() + optional YAML file + DCC_* env overrides,
// then validates the result. An empty path skips the file layer.
func Load(path string) (*Config, error) {
	cfg := Baseline()

	if path != "" {
		if err := loadFromFile(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadFromFile overlays YAML file contents onto cfg. Fields absent
// from the file keep their current values.
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("invalid YAML: %w", err)
	}
	return nil
}

// applyEnvOverrides applies DCC_* environment variables on top of the
// current config. Unparseable values are ignored in favor of the
// existing setting.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DCC_SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("DCC_DEVICE_CHIP"); v != "" {
		cfg.Device.Chip = v
	}
	if v := os.Getenv("DCC_DEVICE_LED_PIN"); v != "" {
		if pin, err := strconv.Atoi(v); err == nil {
			cfg.Device.LedPin = pin
		}
	}
	if v := os.Getenv("DCC_UPDATE_DATA_DIR"); v != "" {
		cfg.Update.DataDir = v
	}
	if v := os.Getenv("DCC_UPDATE_SLOT_CAPACITY"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Update.SlotCapacityBytes = n
		}
	}
	if v := os.Getenv("DCC_UPDATE_REBOOT_COMMAND"); v != "" {
		cfg.Update.RebootCommand = v
	}
	if v := os.Getenv("DCC_ANNOUNCE_HOSTNAME"); v != "" {
		cfg.Announce.Hostname = v
	}
	if v := os.Getenv("DCC_MQTT_BROKER"); v != "" {
		cfg.Announce.MQTT.Broker = v
	}
	if v := os.Getenv("DCC_MQTT_USER"); v != "" {
		cfg.Announce.MQTT.User = v
	}
	if v := os.Getenv("DCC_MQTT_PASSWORD"); v != "" {
		cfg.Announce.MQTT.Password = v
	}
	if v := os.Getenv("DCC_MQTT_TOPIC_PREFIX"); v != "" {
		cfg.Announce.MQTT.TopicPrefix = v
	}
	if v := os.Getenv("DCC_LOG_FILE"); v != "" {
		cfg.Logging.File = v
	}
	if v := os.Getenv("DCC_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("DCC_AUDIT_DIR"); v != "" {
		cfg.Logging.AuditDir = v
	}

	cfg.Timing.PollInterval = GetEnvDuration("DCC_TIMING_POLL_INTERVAL", cfg.Timing.PollInterval)
	cfg.Timing.StopWaitCap = GetEnvDuration("DCC_TIMING_STOP_WAIT_CAP", cfg.Timing.StopWaitCap)
	cfg.Timing.SettleDelay = GetEnvDuration("DCC_TIMING_SETTLE_DELAY", cfg.Timing.SettleDelay)
	cfg.Timing.ShutdownGrace = GetEnvDuration("DCC_TIMING_SHUTDOWN_GRACE", cfg.Timing.ShutdownGrace)
}

// GetEnvDuration returns the duration value of an environment variable
// or the default if unset or unparseable.
func GetEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}
