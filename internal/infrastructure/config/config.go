package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Hearth Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site     SiteConfig     `yaml:"site"`
	Database DatabaseConfig `yaml:"database"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	API      APIConfig      `yaml:"api"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Logging  LoggingConfig  `yaml:"logging"`
	Engine   EngineConfig   `yaml:"engine"`
	Dispatch DispatchConfig `yaml:"dispatch"`
	Sun      SunConfig      `yaml:"sun"`
	Rules    RulesConfig    `yaml:"rules"`
}

// SiteConfig contains site-specific information.
type SiteConfig struct {
	ID       string         `yaml:"id"`
	Name     string         `yaml:"name"`
	Timezone string         `yaml:"timezone"`
	Location LocationConfig `yaml:"location"`
}

// LocationConfig contains geographic coordinates for sunrise/sunset calculations.
type LocationConfig struct {
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings (seconds).
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// InfluxDBConfig contains InfluxDB connection settings for runtime metrics.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// EngineConfig contains engine host settings.
type EngineConfig struct {
	// QueueSize is the bounded message queue capacity. Posts beyond
	// capacity are dropped (best-effort delivery).
	QueueSize int `yaml:"queue_size"`

	// SlowWarnMS is the soft per-message latency budget in milliseconds.
	// Exceeding it logs a warning; processing is never aborted.
	SlowWarnMS int `yaml:"slow_warn_ms"`
}

// DispatchConfig contains action dispatcher settings.
type DispatchConfig struct {
	// Workers is the number of concurrent action workers.
	Workers int `yaml:"workers"`

	// QueueSize is the bounded task queue capacity. Posts beyond
	// capacity are dropped and logged.
	QueueSize int `yaml:"queue_size"`

	// ActionTimeout is the per-action execution timeout in seconds.
	ActionTimeout int `yaml:"action_timeout"`
}

// SunConfig contains sun-time monitor settings.
type SunConfig struct {
	// EntropyMinutes bounds the random minute after local midnight at
	// which the daily sunrise/sunset recomputation is scheduled.
	EntropyMinutes int `yaml:"entropy_minutes"`

	// InitialDelaySeconds is the delay before the first computation.
	InitialDelaySeconds int `yaml:"initial_delay_seconds"`

	// RetryDelaySeconds is the base delay before retrying a failed
	// computation (one minute is added on top).
	RetryDelaySeconds int `yaml:"retry_delay_seconds"`
}

// RulesConfig contains stock automation rule settings.
type RulesConfig struct {
	// StockDirs is an ordered list of directories scanned for default
	// rules at startup. The first directory that exists wins.
	StockDirs []string `yaml:"stock_dirs"`
}

// Load reads the YAML file at path over the built-in defaults, then
// lets HEARTH_* environment variables override individual values
// (HEARTH_DATABASE_PATH, HEARTH_MQTT_HOST, ...). The merged result is
// validated before it is returned.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig is the baseline a missing or sparse YAML file starts
// from. Every value here is safe for a development machine.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:       "site-001",
			Name:     "Hearth",
			Timezone: "UTC",
		},
		Database: DatabaseConfig{
			Path:        "./data/hearth.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "hearth-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Engine: EngineConfig{
			QueueSize:  256,
			SlowWarnMS: 1000,
		},
		Dispatch: DispatchConfig{
			Workers:       4,
			QueueSize:     64,
			ActionTimeout: 30,
		},
		Sun: SunConfig{
			EntropyMinutes:      20,
			InitialDelaySeconds: 5,
			RetryDelaySeconds:   30,
		},
		Rules: RulesConfig{
			StockDirs: []string{
				"/etc/hearth/rules.d",
				"./configs/rules.d",
			},
		},
	}
}

// applyEnvOverrides covers the values that differ between deployments
// of the same config file: paths, hosts and credentials. Secrets in
// particular should come from the environment, not the YAML.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("HEARTH_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	if v := os.Getenv("HEARTH_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("HEARTH_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("HEARTH_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	if v := os.Getenv("HEARTH_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	if v := os.Getenv("HEARTH_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate collects every problem in the merged configuration into a
// single error so an operator fixes one restart's worth at a time.
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.Engine.QueueSize < 1 {
		errs = append(errs, "engine.queue_size must be at least 1")
	}

	if c.Dispatch.Workers < 1 {
		errs = append(errs, "dispatch.workers must be at least 1")
	}

	const (
		minLatitude  = -90.0
		maxLatitude  = 90.0
		minLongitude = -180.0
		maxLongitude = 180.0
	)
	if c.Site.Location.Latitude < minLatitude || c.Site.Location.Latitude > maxLatitude {
		errs = append(errs, "site.location.latitude must be between -90 and 90")
	}
	if c.Site.Location.Longitude < minLongitude || c.Site.Location.Longitude > maxLongitude {
		errs = append(errs, "site.location.longitude must be between -180 and 180")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// GetActionTimeout returns the per-action execution timeout as a Duration.
func (c *Config) GetActionTimeout() time.Duration {
	return time.Duration(c.Dispatch.ActionTimeout) * time.Second
}
