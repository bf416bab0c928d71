// Package config holds the console's runtime configuration, loaded the
// way the teacher loads its own: a mapstructure-tagged struct populated
// by Viper, with defaults installed up front and environment variables
// automatically bound on top.
package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config is the aggregator/server process configuration (§6.4).
type Config struct {
	EventBufferCapacity  int           `mapstructure:"event_buffer_capacity"`
	ClientBufferCapacity int           `mapstructure:"client_buffer_capacity"`
	PublishInterval      time.Duration `mapstructure:"publish_interval"`
	Retention            time.Duration `mapstructure:"retention"`
	ServerAddr           string        `mapstructure:"server_addr"`
	RecordingPath        string        `mapstructure:"recording_path"`
}

var globalConfig *Config

// SetDefaults installs the §6.4 defaults onto a Viper instance.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("event_buffer_capacity", 10240)
	v.SetDefault("client_buffer_capacity", 4096)
	v.SetDefault("publish_interval", time.Second)
	v.SetDefault("retention", time.Hour)
	v.SetDefault("server_addr", "127.0.0.1:6669")
	v.SetDefault("recording_path", "")
}

// Load builds a Viper instance with defaults + environment overrides
// (CONSOLE_EVENT_BUFFER_CAPACITY, etc.) and unmarshals it into a Config.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("console")
	v.AutomaticEnv()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	globalConfig = &cfg
	return globalConfig, nil
}

// Reset clears the cached configuration; used by tests.
func Reset() {
	globalConfig = nil
}
