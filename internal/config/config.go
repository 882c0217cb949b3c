// Package config provides configuration management for the repository server
// using Viper for flexible loading from files, environment variables, and
// command-line flags.
//
// The configuration supports YAML files (.repokit.yml), environment variable
// overrides with the REPOKIT_ prefix, and validation. It covers the inbound
// server endpoint, the manifest store location, callback-channel dialing, and
// logging.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	Callback CallbackConfig `yaml:"callback"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig configures the inbound message endpoint.
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
	// QueueSize bounds the inbound message queue feeding the dispatcher.
	QueueSize int `yaml:"queue_size"`
}

// StorageConfig configures the manifest store.
type StorageConfig struct {
	// Path is the store directory holding manifests and stored source files.
	Path string `yaml:"path"`
	// Watch enables the fsnotify watcher that logs out-of-band edits to the
	// store directory.
	Watch bool `yaml:"watch"`
}

// CallbackConfig configures how callback channels to clients are dialed and
// bounded.
type CallbackConfig struct {
	// DialAttempts bounds channel-creation retries before a connect error.
	DialAttempts int `yaml:"dial_attempts"`
	// DialBackoff seeds the exponential backoff between dial attempts.
	DialBackoff time.Duration `yaml:"dial_backoff"`
	// OperationTimeout bounds one whole callback operation so a stuck client
	// cannot stall the dispatcher indefinitely.
	OperationTimeout time.Duration `yaml:"operation_timeout"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
	// Dir, when set, writes logs to a daily file in addition to stdout
	// behavior configured by Format.
	Dir string `yaml:"dir"`
}

// SetDefaults registers the default values on the given viper instance.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8347)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.queue_size", 256)
	v.SetDefault("storage.path", "./store")
	v.SetDefault("storage.watch", true)
	v.SetDefault("callback.dial_attempts", 3)
	v.SetDefault("callback.dial_backoff", 100*time.Millisecond)
	v.SetDefault("callback.operation_timeout", 2*time.Minute)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// Load builds a Config from the global viper state.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom builds a Config from the given viper instance.
func LoadFrom(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	config := &Config{
		Server: ServerConfig{
			Port:      v.GetInt("server.port"),
			Host:      v.GetString("server.host"),
			QueueSize: v.GetInt("server.queue_size"),
		},
		Storage: StorageConfig{
			Path:  v.GetString("storage.path"),
			Watch: v.GetBool("storage.watch"),
		},
		Callback: CallbackConfig{
			DialAttempts:     v.GetInt("callback.dial_attempts"),
			DialBackoff:      v.GetDuration("callback.dial_backoff"),
			OperationTimeout: v.GetDuration("callback.operation_timeout"),
		},
		Logging: LoggingConfig{
			Level:  v.GetString("logging.level"),
			Format: v.GetString("logging.format"),
			Dir:    v.GetString("logging.dir"),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks the configuration for values the server cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Server.QueueSize < 1 {
		return fmt.Errorf("server.queue_size must be positive, got %d", c.Server.QueueSize)
	}
	if c.Storage.Path == "" {
		return fmt.Errorf("storage.path must not be empty")
	}
	if c.Callback.DialAttempts < 1 {
		return fmt.Errorf("callback.dial_attempts must be positive, got %d", c.Callback.DialAttempts)
	}
	if c.Callback.OperationTimeout <= 0 {
		return fmt.Errorf("callback.operation_timeout must be positive, got %s", c.Callback.OperationTimeout)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}
	return nil
}
