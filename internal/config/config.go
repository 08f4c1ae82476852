// Package config loads the server configuration from a YAML file
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"
)

const (
	DefaultPort           = 42069
	DefaultHost           = "0.0.0.0"
	DefaultDataDir        = "data"
	DefaultMaxSessions    = 200
	DefaultMaxMessageSize = 1024
	DefaultGrace          = "5s"
	DefaultNatsSubject    = "bomberstudent.game.created"
	DefaultServiceName    = "bomberstudent"

	minMessageSize = 64
)

// ErrInvalidConfig is returned by Validate
var ErrInvalidConfig = errors.New("invalid configuration")

type ServerConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	MaxSessions    int    `yaml:"max_sessions"`
	MaxMessageSize int    `yaml:"max_message_size"`
	IdleTimeout    string `yaml:"idle_timeout"`
	WriteTimeout   string `yaml:"write_timeout"`
	WebSocketAddr  string `yaml:"websocket_addr"`
	HealthAddr     string `yaml:"health_addr"`
}

type DataConfig struct {
	Dir       string `yaml:"dir"`
	MapsFile  string `yaml:"maps_file"`
	GamesFile string `yaml:"games_file"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
	Dir   string `yaml:"dir"`
}

type ShutdownConfig struct {
	Grace string `yaml:"grace"`
}

type ConsulConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Address     string `yaml:"address"`
	ServiceName string `yaml:"service_name"`
}

type NatsConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// Config is the full server configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Data     DataConfig     `yaml:"data"`
	Log      LogConfig      `yaml:"log"`
	Shutdown ShutdownConfig `yaml:"shutdown"`
	Consul   ConsulConfig   `yaml:"consul"`
	Nats     NatsConfig     `yaml:"nats"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           DefaultHost,
			Port:           DefaultPort,
			MaxSessions:    DefaultMaxSessions,
			MaxMessageSize: DefaultMaxMessageSize,
			WriteTimeout:   "10s",
		},
		Data:     DataConfig{Dir: DefaultDataDir},
		Log:      LogConfig{Level: "INFO", Dir: "./logs"},
		Shutdown: ShutdownConfig{Grace: DefaultGrace},
		Consul:   ConsulConfig{ServiceName: DefaultServiceName},
		Nats:     NatsConfig{Subject: DefaultNatsSubject},
	}
}

// Load reads path over the defaults. An empty path yields Default().
// Unknown keys are rejected.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.UnmarshalStrict(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports the first unusable value
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidConfig, c.Server.Port)
	}
	if c.Server.MaxSessions < 1 {
		return fmt.Errorf("%w: max_sessions must be at least 1", ErrInvalidConfig)
	}
	if c.Server.MaxMessageSize < minMessageSize {
		return fmt.Errorf("%w: max_message_size must be at least %d", ErrInvalidConfig, minMessageSize)
	}
	if c.Data.Dir == "" {
		return fmt.Errorf("%w: data dir is empty", ErrInvalidConfig)
	}
	durations := map[string]string{
		"shutdown.grace":       c.Shutdown.Grace,
		"server.idle_timeout":  c.Server.IdleTimeout,
		"server.write_timeout": c.Server.WriteTimeout,
	}
	for key, value := range durations {
		if _, err := parseDuration(value); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, key, err)
		}
	}
	if c.Consul.Enabled && c.Server.HealthAddr == "" {
		return fmt.Errorf("%w: consul registration needs server.health_addr", ErrInvalidConfig)
	}
	return nil
}

// Address is the TCP listen address
func (c *Config) Address() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

func (c *Config) Grace() time.Duration {
	d, _ := parseDuration(c.Shutdown.Grace)
	return d
}

func (c *Config) IdleTimeout() time.Duration {
	d, _ := parseDuration(c.Server.IdleTimeout)
	return d
}

func (c *Config) WriteTimeout() time.Duration {
	d, _ := parseDuration(c.Server.WriteTimeout)
	return d
}

// parseDuration accepts "" as zero
func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %s", s)
	}
	return d, nil
}
