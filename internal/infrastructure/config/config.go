package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for homehub.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site      SiteConfig      `yaml:"site"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	Bus       BusConfig       `yaml:"bus"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Heater    HeaterConfig    `yaml:"heater"`
	Sensors   SensorsConfig   `yaml:"sensors"`
	Switches  SwitchesConfig  `yaml:"switches"`
	Security  SecurityConfig  `yaml:"security"`
}

// SiteConfig contains site-specific information.
type SiteConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	KeepAlive int                 `yaml:"keep_alive"` // seconds
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
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
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

// BusConfig contains event bus settings.
type BusConfig struct {
	// InboxSize is the per-subscriber buffer. Events beyond it are dropped.
	InboxSize int `yaml:"inbox_size"`
}

// MetricsConfig contains metric registry settings.
type MetricsConfig struct {
	// Name is the metric name used by the heater and external sensors.
	Name string `yaml:"name"`
}

// WebhookConfig contains outbound notification settings.
type WebhookConfig struct {
	// URL is a template with positional {} placeholders, e.g.
	// "http://homebridge:51828/?{}". Empty disables the forwarder.
	URL string `yaml:"url"`

	// StateURL is the base URL for the appliance full-state push.
	StateURL string `yaml:"state_url"`

	// Timeout bounds a single outbound call (seconds).
	Timeout int `yaml:"timeout"`

	// MaxInFlight caps concurrent outbound calls. 0 means unbounded.
	MaxInFlight int `yaml:"max_in_flight"`
}

// HeaterConfig contains settings for the MQTT heater/fan appliance.
type HeaterConfig struct {
	Enabled  bool   `yaml:"enabled"`
	DeviceID string `yaml:"device_id"`

	// HistorySize is the number of raw inbound messages kept in memory.
	HistorySize int `yaml:"history_size"`

	// RefreshDebounceMS coalesces refreshes under bursts. 0 refreshes on every update.
	RefreshDebounceMS int `yaml:"refresh_debounce_ms"`
}

// SensorsConfig contains producer settings for command-line sensors.
type SensorsConfig struct {
	Externals    []string `yaml:"externals"`
	ResolutionMS int      `yaml:"resolution_ms"`
}

// SwitchesConfig lists the virtual switches to expose.
type SwitchesConfig struct {
	Names []string `yaml:"names"`
}

// SecurityConfig contains security settings.
type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig contains JWT token settings. An empty secret disables authentication.
type JWTConfig struct {
	Secret string `yaml:"secret"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: HOMEHUB_SECTION_KEY
// For example: HOMEHUB_MQTT_HOST, HOMEHUB_WEBHOOK_URL
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
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

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:   "home",
			Name: "homehub",
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "homehub",
			},
			QoS:       1,
			KeepAlive: 5,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 7200,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Bus: BusConfig{
			InboxSize: 256,
		},
		Metrics: MetricsConfig{
			Name: "roomA",
		},
		Webhook: WebhookConfig{
			Timeout: 10,
		},
		Heater: HeaterConfig{
			HistorySize: 1000,
		},
		Sensors: SensorsConfig{
			ResolutionMS: 1000,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: HOMEHUB_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// MQTT
	if v := os.Getenv("HOMEHUB_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("HOMEHUB_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = port
		}
	}
	if v := os.Getenv("HOMEHUB_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("HOMEHUB_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API listen address in host:port form
	if v := os.Getenv("HOMEHUB_API_ADDR"); v != "" {
		if host, port, err := net.SplitHostPort(v); err == nil {
			cfg.API.Host = host
			if p, convErr := strconv.Atoi(port); convErr == nil {
				cfg.API.Port = p
			}
		}
	}

	// Metrics
	if v := os.Getenv("HOMEHUB_METRICS_NAME"); v != "" {
		cfg.Metrics.Name = v
	}

	// Webhooks
	if v := os.Getenv("HOMEHUB_WEBHOOK_URL"); v != "" {
		cfg.Webhook.URL = v
	}
	if v := os.Getenv("HOMEHUB_WEBHOOK_STATE_URL"); v != "" {
		cfg.Webhook.StateURL = v
	}

	// Heater
	if v := os.Getenv("HOMEHUB_HEATERFAN_ID"); v != "" {
		cfg.Heater.DeviceID = v
		cfg.Heater.Enabled = true
	}

	// Sensors and switches
	if v := os.Getenv("HOMEHUB_EXTERNALS"); v != "" {
		cfg.Sensors.Externals = splitList(v)
	}
	if v := os.Getenv("HOMEHUB_RESOLUTION_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			cfg.Sensors.ResolutionMS = ms
		}
	}
	if v := os.Getenv("HOMEHUB_SWITCHES"); v != "" {
		cfg.Switches.Names = splitList(v)
	}

	// InfluxDB
	if v := os.Getenv("HOMEHUB_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Security
	if v := os.Getenv("HOMEHUB_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
}

// splitList splits a comma-separated list, trimming blanks.
func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error { //nolint:gocognit,gocyclo // flat list of independent checks
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.KeepAlive < 1 {
		errs = append(errs, "mqtt.keep_alive must be at least 1 second")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.Bus.InboxSize < 1 {
		errs = append(errs, "bus.inbox_size must be positive")
	}

	if c.Metrics.Name == "" {
		errs = append(errs, "metrics.name is required")
	}

	if c.Webhook.URL != "" {
		if _, err := url.Parse(strings.ReplaceAll(c.Webhook.URL, "{}", "x")); err != nil {
			errs = append(errs, "webhook.url is not a valid URL template")
		}
	}
	if c.Webhook.StateURL != "" {
		if _, err := url.ParseRequestURI(c.Webhook.StateURL); err != nil {
			errs = append(errs, "webhook.state_url is not a valid URL")
		}
	}
	if c.Webhook.MaxInFlight < 0 {
		errs = append(errs, "webhook.max_in_flight cannot be negative")
	}

	if c.Heater.Enabled {
		if c.Heater.DeviceID == "" {
			errs = append(errs, "heater.device_id is required when the heater is enabled")
		}
		if c.Heater.HistorySize < 1 {
			errs = append(errs, "heater.history_size must be positive")
		}
		if c.Heater.RefreshDebounceMS < 0 {
			errs = append(errs, "heater.refresh_debounce_ms cannot be negative")
		}
	}

	if len(c.Sensors.Externals) > 0 && c.Sensors.ResolutionMS < 1 {
		errs = append(errs, "sensors.resolution_ms must be positive")
	}

	// An empty secret disables auth; a short one is a misconfiguration.
	const minJWTSecretLength = 32
	if s := c.Security.JWT.Secret; s != "" && len(s) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
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

// Resolution returns the polling interval for external sensors.
func (s SensorsConfig) Resolution() time.Duration {
	return time.Duration(s.ResolutionMS) * time.Millisecond
}

// RefreshDebounce returns the heater refresh debounce window.
func (h HeaterConfig) RefreshDebounce() time.Duration {
	return time.Duration(h.RefreshDebounceMS) * time.Millisecond
}

// TimeoutDuration returns the per-call webhook timeout.
func (w WebhookConfig) TimeoutDuration() time.Duration {
	return time.Duration(w.Timeout) * time.Second
}
