package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/airvol/airvol/pkg/types"
)

// Environment variables honored by FromEnv. Their values feed the
// forced-override data model; parsing them here keeps the rest of the
// system ignorant of the environment.
const (
	EnvForceIP   = "AIRVOL_FORCE_IP"
	EnvForcePort = "AIRVOL_FORCE_PORT"
	EnvForceName = "AIRVOL_FORCE_NAME"
)

// Duration wraps time.Duration for YAML decoding of values like "5s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Config is the full airvol configuration.
type Config struct {
	Service    string           `yaml:"service"`
	Discovery  DiscoveryConfig  `yaml:"discovery"`
	Connection ConnectionConfig `yaml:"connection"`
	Forced     ForcedConfig     `yaml:"forced"`
	Volume     VolumeConfig     `yaml:"volume"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Log        LogConfig        `yaml:"log"`
}

// DiscoveryConfig controls the UDP broadcast listener.
type DiscoveryConfig struct {
	Port     int      `yaml:"port"`
	Interval Duration `yaml:"interval"`
	Jitter   Duration `yaml:"jitter"`
	StaleTTL Duration `yaml:"stale_ttl"`
}

// ConnectionConfig controls the connection supervisor.
type ConnectionConfig struct {
	HeartbeatInterval Duration `yaml:"heartbeat_interval"`
	WatchdogTimeout   Duration `yaml:"watchdog_timeout"`
	ConnectTimeout    Duration `yaml:"connect_timeout"`
	RetryMin          Duration `yaml:"retry_min"`
	RetryMax          Duration `yaml:"retry_max"`
}

// ForcedConfig mirrors types.ForcedConfig in YAML form.
type ForcedConfig struct {
	IP   string `yaml:"ip"`
	Port int    `yaml:"port"`
	Name string `yaml:"name"`
}

// VolumeConfig controls the gate and the sink.
type VolumeConfig struct {
	Threshold float64 `yaml:"threshold"`
	// SinkCommand runs for each applied change with "{pct}" replaced by
	// the percent value, e.g. "pactl set-sink-volume @DEFAULT_SINK@ {pct}%".
	// Empty means the log-only sink.
	SinkCommand string `yaml:"sink_command"`
	// SinkTimeout bounds each sink command execution.
	SinkTimeout Duration `yaml:"sink_timeout"`
}

// MetricsConfig controls the optional Prometheus listener.
type MetricsConfig struct {
	Addr string `yaml:"addr"` // empty disables the listener
}

// LogConfig controls logging output.
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Default returns a configuration populated with protocol defaults.
func Default() *Config {
	return &Config{
		Service: types.DefaultServiceName,
		Discovery: DiscoveryConfig{
			Port:     types.DefaultDiscoveryPort,
			Interval: Duration(types.DefaultDiscoverInterval),
			Jitter:   Duration(types.DefaultDiscoverJitter),
			StaleTTL: Duration(types.DefaultStaleTargetTTL),
		},
		Connection: ConnectionConfig{
			HeartbeatInterval: Duration(types.DefaultHeartbeatInterval),
			WatchdogTimeout:   Duration(types.DefaultWatchdogTimeout),
			ConnectTimeout:    Duration(types.DefaultConnectTimeout),
			RetryMin:          Duration(types.DefaultRetryMin),
			RetryMax:          Duration(types.DefaultRetryMax),
		},
		Volume: VolumeConfig{
			Threshold:   types.DefaultVolumeThreshold,
			SinkTimeout: Duration(types.DefaultSinkTimeout),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads the YAML file at path on top of defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv overlays forced overrides from the environment. Environment
// values win over the config file; command-line flags win over both.
func (c *Config) FromEnv() error {
	if v := os.Getenv(EnvForceIP); v != "" {
		c.Forced.IP = v
	}
	if v := os.Getenv(EnvForcePort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port < 1 || port > 65535 {
			return fmt.Errorf("invalid %s value %q", EnvForcePort, v)
		}
		c.Forced.Port = port
	}
	if v := os.Getenv(EnvForceName); v != "" {
		c.Forced.Name = v
	}
	return nil
}

// Validate checks ranges that would otherwise surface as runtime faults.
func (c *Config) Validate() error {
	if c.Service == "" {
		return fmt.Errorf("service name is required")
	}
	if c.Discovery.Port < 1 || c.Discovery.Port > 65535 {
		return fmt.Errorf("discovery port %d out of range", c.Discovery.Port)
	}
	if c.Forced.Port != 0 && (c.Forced.Port < 1 || c.Forced.Port > 65535) {
		return fmt.Errorf("forced port %d out of range", c.Forced.Port)
	}
	if c.Discovery.Interval <= 0 {
		return fmt.Errorf("discovery interval must be positive")
	}
	if c.Connection.ConnectTimeout <= 0 {
		return fmt.Errorf("connect timeout must be positive")
	}
	if c.Connection.RetryMin <= 0 || c.Connection.RetryMax < c.Connection.RetryMin {
		return fmt.Errorf("retry bounds must satisfy 0 < min <= max")
	}
	if c.Connection.WatchdogTimeout <= 0 || c.Connection.HeartbeatInterval <= 0 {
		return fmt.Errorf("watchdog timeout and heartbeat interval must be positive")
	}
	if c.Volume.Threshold < 0 {
		return fmt.Errorf("volume threshold must not be negative")
	}
	if c.Volume.SinkTimeout <= 0 {
		return fmt.Errorf("sink timeout must be positive")
	}
	return nil
}

// ForcedTypes converts the YAML forced section to the shared data model.
func (c *Config) ForcedTypes() types.ForcedConfig {
	return types.ForcedConfig{
		IP:   c.Forced.IP,
		Port: c.Forced.Port,
		Name: c.Forced.Name,
	}
}
