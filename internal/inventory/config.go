//
// Copyright (C) 2021 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package inventory

import (
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

// ServiceConfig is the daemon's whole configuration, loaded from a TOML
// file. Missing keys keep the defaults from NewServiceConfig.
type ServiceConfig struct {
	Device    DeviceConfig    `toml:"device"`
	HTTP      HTTPConfig      `toml:"http"`
	Inventory InventoryConfig `toml:"inventory"`
	// Aliases renames antenna locations ("antenna_1") to something
	// meaningful for the site ("dock-door"). Events and snapshots use the
	// alias when one exists.
	Aliases map[string]string `toml:"aliases"`
}

// DeviceConfig selects and tunes the reader connection.
type DeviceConfig struct {
	// Target is a serial device path ("/dev/ttyUSB0") or a TCP endpoint
	// ("192.168.1.190:27011").
	Target string `toml:"target"`
	// Baud applies to serial targets only.
	Baud int `toml:"baud"`

	CommandTimeoutMillis uint `toml:"command_timeout_millis"`
	PollTimeoutMillis    uint `toml:"poll_timeout_millis"`
	StopTimeoutMillis    uint `toml:"stop_timeout_millis"`

	// Power is the RF output in dBm applied at startup; negative leaves
	// the reader's stored setting untouched.
	Power int `toml:"power"`
	// AntennaMask selects the antenna ports applied at startup, bit 0 =
	// port 1; zero leaves the reader's stored setting untouched.
	AntennaMask uint8 `toml:"antenna_mask"`
	// Region is the regulatory frequency band applied at startup
	// (1=FCC, 2=ETSI, 3=China, 4=Korea, 5=Japan, 6=open); zero leaves
	// the reader's stored setting untouched.
	Region int `toml:"region"`
}

// HTTPConfig configures the control API listener.
type HTTPConfig struct {
	Bind string `toml:"bind"`
}

// InventoryConfig tunes the tag processor.
type InventoryConfig struct {
	DepartedThresholdSeconds     uint `toml:"departed_threshold_seconds"`
	DepartedCheckIntervalSeconds uint `toml:"departed_check_interval_seconds"`
	AgeOutHours                  uint `toml:"age_out_hours"`

	MobilityProfileSlope         float64 `toml:"mobility_profile_slope"`
	MobilityProfileThreshold     float64 `toml:"mobility_profile_threshold"`
	MobilityProfileHoldoffMillis float64 `toml:"mobility_profile_holdoff_millis"`
}

// NewServiceConfig returns the defaults: a USB-serial reader at 115200
// baud, vendor timeout tuning, and the asset-tracking mobility profile.
func NewServiceConfig() ServiceConfig {
	return ServiceConfig{
		Device: DeviceConfig{
			Target:               "/dev/ttyUSB0",
			Baud:                 115200,
			CommandTimeoutMillis: 2000,
			PollTimeoutMillis:    50,
			StopTimeoutMillis:    5000,
			Power:                -1,
		},
		HTTP: HTTPConfig{
			Bind: ":48086",
		},
		Inventory: InventoryConfig{
			DepartedThresholdSeconds:     600,
			DepartedCheckIntervalSeconds: 30,
			AgeOutHours:                  336,
			MobilityProfileSlope:         -0.008,
			MobilityProfileThreshold:     6.0,
			MobilityProfileHoldoffMillis: 500,
		},
		Aliases: make(map[string]string),
	}
}

// LoadServiceConfig reads a TOML file over the defaults and validates the
// result. Keys absent from the file keep their default values.
func LoadServiceConfig(path string) (ServiceConfig, error) {
	cfg := NewServiceConfig()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return ServiceConfig{}, errors.Wrapf(err, "load config %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return ServiceConfig{}, errors.Wrapf(err, "invalid config %s", path)
	}
	return cfg, nil
}

// Validate rejects configurations the daemon cannot run with.
func (cfg ServiceConfig) Validate() error {
	if strings.TrimSpace(cfg.Device.Target) == "" {
		return errors.New("device target must not be empty")
	}
	if !strings.Contains(cfg.Device.Target, ":") && cfg.Device.Baud <= 0 {
		return errors.Errorf("serial target needs a positive baud rate, got %d", cfg.Device.Baud)
	}
	if cfg.Device.PollTimeoutMillis == 0 {
		return errors.New("poll timeout must be positive")
	}
	if cfg.Device.Power > 30 {
		return errors.Errorf("power %d exceeds the 30 dBm hardware maximum", cfg.Device.Power)
	}
	if cfg.Device.Region < 0 || cfg.Device.Region > 6 {
		return errors.Errorf("region %d is not a known frequency region (1-6, 0 to leave unset)", cfg.Device.Region)
	}
	if strings.TrimSpace(cfg.HTTP.Bind) == "" {
		return errors.New("http bind address must not be empty")
	}
	if cfg.Inventory.DepartedThresholdSeconds == 0 {
		return errors.New("departed threshold must be positive")
	}
	if cfg.Inventory.DepartedCheckIntervalSeconds == 0 {
		return errors.New("departed check interval must be positive")
	}
	if cfg.Inventory.AgeOutHours == 0 {
		return errors.New("age out hours must be positive")
	}
	return nil
}

// CommandTimeout returns the configured command window as a Duration.
func (d DeviceConfig) CommandTimeout() time.Duration {
	return time.Duration(d.CommandTimeoutMillis) * time.Millisecond
}

// PollTimeout returns the configured poll window as a Duration.
func (d DeviceConfig) PollTimeout() time.Duration {
	return time.Duration(d.PollTimeoutMillis) * time.Millisecond
}

// StopTimeout returns the configured stop window as a Duration.
func (d DeviceConfig) StopTimeout() time.Duration {
	return time.Duration(d.StopTimeoutMillis) * time.Millisecond
}
