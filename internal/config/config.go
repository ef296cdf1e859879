// Package config loads and validates the suite configuration from an
// optional YAML file, environment variables, and built-in defaults.
package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Audio describes the capture stream and the analysis mode applied to it.
type Audio struct {
	SampleRate int `mapstructure:"sample_rate" validate:"gt=0"`
	BufferSize int `mapstructure:"buffer_size" validate:"gt=0"`
	Channels   int `mapstructure:"channels" validate:"min=1,max=16"`

	// InputDevice is matched as a case-insensitive substring against the
	// device names the driver reports. Empty selects the system default.
	InputDevice string `mapstructure:"input_device"`

	AnalysisMode string `mapstructure:"analysis_mode" validate:"oneof=low_latency balanced high_accuracy"`
}

// Session controls the musical clock.
type Session struct {
	// UpdateRate is the tick frequency in Hz.
	UpdateRate float64 `mapstructure:"update_rate" validate:"gt=0,lte=240"`
}

// MIDI selects the output port. Empty falls back to the first available.
type MIDI struct {
	OutputPort string `mapstructure:"output_port"`
}

// Animation selects the visual-rig transport and its endpoint.
type Animation struct {
	Protocol     string `mapstructure:"protocol" validate:"oneof=osc jsonline serial none"`
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port" validate:"gt=0,lt=65536"`
	SerialDevice string `mapstructure:"serial_device"`
	Baud         int    `mapstructure:"baud" validate:"gt=0"`
}

// AgentSpec declares one bandmate agent.
type AgentSpec struct {
	Type           string  `mapstructure:"type" validate:"oneof=drums bass keys"`
	Enabled        bool    `mapstructure:"enabled"`
	Responsiveness float64 `mapstructure:"responsiveness" validate:"gte=0,lte=1"`
}

type Log struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
}

type Config struct {
	Audio     Audio       `mapstructure:"audio"`
	Session   Session     `mapstructure:"session"`
	MIDI      MIDI        `mapstructure:"midi"`
	Animation Animation   `mapstructure:"animation"`
	Agents    []AgentSpec `mapstructure:"agents" validate:"dive"`
	Log       Log         `mapstructure:"log"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("audio.sample_rate", 44100)
	v.SetDefault("audio.buffer_size", 1024)
	v.SetDefault("audio.channels", 1)
	v.SetDefault("audio.input_device", "")
	v.SetDefault("audio.analysis_mode", "balanced")

	v.SetDefault("session.update_rate", 30.0)

	v.SetDefault("midi.output_port", "")

	v.SetDefault("animation.protocol", "osc")
	v.SetDefault("animation.host", "127.0.0.1")
	v.SetDefault("animation.port", 12000)
	v.SetDefault("animation.serial_device", "/dev/ttyACM0")
	v.SetDefault("animation.baud", 115200)

	v.SetDefault("agents", []map[string]any{
		{"type": "drums", "enabled": true, "responsiveness": 0.7},
		{"type": "bass", "enabled": true, "responsiveness": 0.8},
	})

	v.SetDefault("log.level", "info")
}

// Load builds a Config from defaults, PERFORM_* environment variables, and
// the YAML file at path. An empty path skips the file and uses defaults
// plus environment only.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("PERFORM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks enum and range constraints on every field.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// LogLevel maps the configured level name onto a slog level.
func (c *Config) LogLevel() slog.Level {
	switch c.Log.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
