// Package config loads and validates the orientd YAML configuration.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"orientd/internal/report"
)

// Duration accepts "100ms"/"1s" style values in YAML.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("duration must be a string like \"100ms\"")
	}
	v, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

type Config struct {
	SignalK SignalKConfig  `yaml:"signalk"`
	Fusion  FusionConfig   `yaml:"fusion"`
	Sim     SimConfig      `yaml:"sim"`
	Reports []ReportConfig `yaml:"reports"`
	Button  ButtonConfig   `yaml:"button"`
	Web     WebConfig      `yaml:"web"`
}

type SignalKConfig struct {
	// Dest is the UDP host:port the deltas are sent to.
	Dest  string `yaml:"dest"`
	Label string `yaml:"label"`
}

type FusionConfig struct {
	Enable          bool   `yaml:"enable"`
	I2CBus          int    `yaml:"i2c_bus"`
	AccelMagAddr    uint16 `yaml:"accel_mag_addr"`
	GyroAddr        uint16 `yaml:"gyro_addr"`
	RateHz          int    `yaml:"rate_hz"`
	CalibrationPath string `yaml:"calibration_path"`
}

type SimConfig struct {
	Enable            bool     `yaml:"enable"`
	RollAmplitudeDeg  float64  `yaml:"roll_amplitude_deg"`
	PitchAmplitudeDeg float64  `yaml:"pitch_amplitude_deg"`
	RollPeriod        Duration `yaml:"roll_period"`
	TurnPeriod        Duration `yaml:"turn_period"`
}

type ReportConfig struct {
	Channel  string   `yaml:"channel"`
	Path     string   `yaml:"path"`
	Interval Duration `yaml:"interval"`
}

type ButtonConfig struct {
	Enable    bool     `yaml:"enable"`
	Pin       int      `yaml:"pin"`
	HoldErase Duration `yaml:"hold_erase"`
}

type WebConfig struct {
	Enable bool   `yaml:"enable"`
	Listen string `yaml:"listen"`
}

func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	dec := yaml.NewDecoder(strings.NewReader(string(b)))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}

	if err := DefaultAndValidate(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// DefaultAndValidate fills defaults in place and rejects invalid settings.
// The settings API calls it again before persisting edits.
func DefaultAndValidate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}

	if strings.TrimSpace(cfg.SignalK.Dest) == "" {
		return fmt.Errorf("signalk.dest is required")
	}
	if cfg.SignalK.Label == "" {
		cfg.SignalK.Label = "orientd"
	}

	// The hardware source is the default; the simulator replaces it.
	if cfg.Fusion.Enable && cfg.Sim.Enable {
		return fmt.Errorf("fusion and sim cannot both be enabled")
	}
	if !cfg.Fusion.Enable && !cfg.Sim.Enable {
		cfg.Fusion.Enable = true
	}

	if cfg.Fusion.I2CBus < 0 {
		return fmt.Errorf("fusion.i2c_bus must be >= 0")
	}
	if cfg.Fusion.AccelMagAddr == 0 {
		cfg.Fusion.AccelMagAddr = 0x1F
	}
	if cfg.Fusion.GyroAddr == 0 {
		cfg.Fusion.GyroAddr = 0x21
	}
	if cfg.Fusion.RateHz == 0 {
		cfg.Fusion.RateHz = 40
	}
	if cfg.Fusion.RateHz < 1 || cfg.Fusion.RateHz > 200 {
		return fmt.Errorf("fusion.rate_hz must be in [1,200]")
	}
	if cfg.Fusion.CalibrationPath == "" {
		cfg.Fusion.CalibrationPath = "/var/lib/orientd/magcal.json"
	}

	if cfg.Sim.RollAmplitudeDeg == 0 {
		cfg.Sim.RollAmplitudeDeg = 8
	}
	if cfg.Sim.PitchAmplitudeDeg == 0 {
		cfg.Sim.PitchAmplitudeDeg = 3
	}
	if cfg.Sim.RollPeriod <= 0 {
		cfg.Sim.RollPeriod = Duration(8 * time.Second)
	}
	if cfg.Sim.TurnPeriod <= 0 {
		cfg.Sim.TurnPeriod = Duration(5 * time.Minute)
	}

	if len(cfg.Reports) == 0 {
		cfg.Reports = []ReportConfig{
			{Channel: string(report.ChannelAttitude), Interval: Duration(100 * time.Millisecond)},
			{Channel: string(report.ChannelCompassHeading), Interval: Duration(100 * time.Millisecond)},
			{Channel: string(report.ChannelMagCal), Interval: Duration(time.Second)},
		}
	}
	for i := range cfg.Reports {
		r := &cfg.Reports[i]
		if !report.Channel(r.Channel).Known() {
			return fmt.Errorf("reports[%d].channel %q is unknown", i, r.Channel)
		}
		if r.Interval < 0 {
			return fmt.Errorf("reports[%d].interval must be >= 0", i)
		}
		if r.Interval == 0 {
			r.Interval = Duration(100 * time.Millisecond)
		}
	}

	if cfg.Button.Enable && cfg.Button.Pin <= 0 {
		return fmt.Errorf("button.pin is required when button.enable is true")
	}
	if cfg.Button.HoldErase <= 0 {
		cfg.Button.HoldErase = Duration(3 * time.Second)
	}

	if cfg.Web.Listen == "" {
		cfg.Web.Listen = ":8080"
	}

	return nil
}
