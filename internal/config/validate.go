package config

import (
	"fmt"
)

// Validate enforces the configuration invariants.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if err := validateTiming(&cfg.Timing); err != nil {
		return fmt.Errorf("timing validation failed: %w", err)
	}
	if err := validateUpdate(&cfg.Update); err != nil {
		return fmt.Errorf("update validation failed: %w", err)
	}
	if err := validateDevice(&cfg.Device); err != nil {
		return fmt.Errorf("device validation failed: %w", err)
	}
	if cfg.Server.Addr == "" {
		return fmt.Errorf("server addr must not be empty")
	}
	if cfg.Announce.Hostname == "" {
		return fmt.Errorf("announce hostname must not be empty")
	}

	return nil
}

func validateTiming(t *TimingConfig) error {
	if t.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %v", t.PollInterval)
	}
	if t.StopWaitCap < t.PollInterval {
		return fmt.Errorf("stop wait cap %v must be >= poll interval %v", t.StopWaitCap, t.PollInterval)
	}
	if t.SettleDelay < 0 {
		return fmt.Errorf("settle delay must be non-negative, got %v", t.SettleDelay)
	}
	if t.ShutdownGrace <= 0 {
		return fmt.Errorf("shutdown grace must be positive, got %v", t.ShutdownGrace)
	}
	return nil
}

func validateUpdate(u *UpdateConfig) error {
	if u.DataDir == "" {
		return fmt.Errorf("data dir must not be empty")
	}
	if u.SlotCapacityBytes <= 0 {
		return fmt.Errorf("slot capacity must be positive, got %d", u.SlotCapacityBytes)
	}
	if u.RebootCommand == "" {
		return fmt.Errorf("reboot command must not be empty")
	}
	return nil
}

func validateDevice(d *DeviceConfig) error {
	if d.Chip == "" {
		return fmt.Errorf("gpio chip must not be empty")
	}
	if d.LedPin < 0 {
		return fmt.Errorf("led pin must be non-negative, got %d", d.LedPin)
	}
	return nil
}
