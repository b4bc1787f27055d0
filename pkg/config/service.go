package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/NotCoffee418/teleinfo/pkg/decoder"
	"github.com/NotCoffee418/teleinfo/pkg/pathing"
	"github.com/NotCoffee418/teleinfo/pkg/port_reader"
	"github.com/NotCoffee418/teleinfo/pkg/sensor"
	"github.com/NotCoffee418/teleinfo/pkg/tic"
)

var (
	ActiveInterpreterAPIConfig *InterpreterAPIConfig
	ActiveMeterCollectorConfig *MeterCollectorConfig
)

func DefaultInterpreterAPIConfig() *InterpreterAPIConfig {
	return &InterpreterAPIConfig{
		SerialDevice:        "/dev/ttyUSB0",
		Mode:                port_reader.ModeStandard,
		PollIntervalSeconds: 30,
		ReadTimeoutSeconds:  int(port_reader.DefaultReadTimeout / time.Second),
		ListenAddress:       "0.0.0.0",
		ListenPort:          9039,
		LogLevel:            "info",
		MQTT: MQTTConfig{
			ClientID:    "teleinfo",
			TopicPrefix: "teleinfo",
			Retain:      true,
		},
	}
}

func DefaultMeterCollectorConfig() *MeterCollectorConfig {
	return &MeterCollectorConfig{
		InterpreterAPIHost: "localhost:9039",
		TLSEnabled:         false,
		LogLevel:           "info",
	}
}

// LoadInterpreterAPIConfig loads interpreter_api.toml from path, or from the
// config dir when path is empty, and makes it the active config.
func LoadInterpreterAPIConfig(path string) error {
	if path == "" {
		path = filepath.Join(pathing.GetConfigDir(), "interpreter_api.toml")
	}
	cfg := DefaultInterpreterAPIConfig()
	if err := loadOrCreate(path, cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config %s: %w", path, err)
	}
	ActiveInterpreterAPIConfig = cfg
	return nil
}

// LoadMeterCollectorConfig loads meter_collector.toml like LoadInterpreterAPIConfig.
func LoadMeterCollectorConfig(path string) error {
	if path == "" {
		path = filepath.Join(pathing.GetConfigDir(), "meter_collector.toml")
	}
	cfg := DefaultMeterCollectorConfig()
	if err := loadOrCreate(path, cfg); err != nil {
		return err
	}
	if cfg.InterpreterAPIHost == "" {
		return fmt.Errorf("invalid config %s: interpreter_api_host is empty", path)
	}
	ActiveMeterCollectorConfig = cfg
	return nil
}

// Decodes path into cfg, which must hold the defaults.
// Missing files are created with those defaults.
func loadOrCreate(path string, cfg any) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		cfgFile, err := os.Create(path)
		if err != nil {
			return err
		}
		defer cfgFile.Close()
		return toml.NewEncoder(cfgFile).Encode(cfg)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return err
	}
	return nil
}

// Validate checks the values the decoder depends on.
func (c *InterpreterAPIConfig) Validate() error {
	if c.SerialDevice == "" {
		return errors.New("serial_device is empty")
	}
	if _, err := port_reader.OptionsForMode(c.Mode); err != nil {
		return err
	}
	if !decoder.ValidPollInterval(c.PollInterval()) {
		return fmt.Errorf("poll_interval_seconds %d: must be one of 10, 30, 60, 120, 300", c.PollIntervalSeconds)
	}
	if c.ReadTimeoutSeconds < 0 {
		return fmt.Errorf("read_timeout_seconds %d is negative", c.ReadTimeoutSeconds)
	}
	if _, err := c.SeparatorByte(); err != nil {
		return err
	}
	if c.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt qos %d: must be 0, 1 or 2", c.MQTT.QoS)
	}
	for _, s := range c.Sensors {
		if s.Key == "" {
			return errors.New("sensor with empty key")
		}
		if _, err := sensor.ParseStrategy(s.Strategy); err != nil {
			return err
		}
	}
	return nil
}

func (c *InterpreterAPIConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

// SeparatorByte returns the field separator. Left empty it follows the mode:
// space for historical meters, tab for standard ones.
func (c *InterpreterAPIConfig) SeparatorByte() (byte, error) {
	switch c.Separator {
	case "":
		if c.Mode == port_reader.ModeHistorical {
			return tic.SeparatorSpace, nil
		}
		return tic.SeparatorTab, nil
	case "tab":
		return tic.SeparatorTab, nil
	case "space":
		return tic.SeparatorSpace, nil
	}
	return 0, fmt.Errorf("separator %q: expected tab or space", c.Separator)
}

// SerialOptions returns the link settings for the configured mode.
func (c *InterpreterAPIConfig) SerialOptions() (port_reader.SerialOptions, error) {
	opts, err := port_reader.OptionsForMode(c.Mode)
	if err != nil {
		return opts, err
	}
	if c.ReadTimeoutSeconds > 0 {
		opts.ReadTimeout = time.Duration(c.ReadTimeoutSeconds) * time.Second
	}
	return opts, nil
}

func (c *InterpreterAPIConfig) EffectiveTotalEnergyKey() string {
	if c.TotalEnergyKey != "" {
		return c.TotalEnergyKey
	}
	return sensor.DefaultTotalEnergyKey(c.Mode)
}

// BuildSensors returns the configured sensors, or the defaults for the mode.
func (c *InterpreterAPIConfig) BuildSensors() (*sensor.Set, error) {
	if len(c.Sensors) == 0 {
		return sensor.NewSet(sensor.DefaultSensors(c.Mode)...), nil
	}

	sensors := make([]*sensor.Sensor, 0, len(c.Sensors))
	for _, sc := range c.Sensors {
		strategy, err := sensor.ParseStrategy(sc.Strategy)
		if err != nil {
			return nil, err
		}
		sensors = append(sensors, &sensor.Sensor{
			Key:      sc.Key,
			Name:     sc.Name,
			Unit:     sc.Unit,
			Strategy: strategy,
			Options:  sc.Options,
		})
	}
	return sensor.NewSet(sensors...), nil
}
