package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Confirmation modes for light state commands.
const (
	// ConfirmOptimistic merges the commanded state as soon as the publish succeeds.
	ConfirmOptimistic = "optimistic"

	// ConfirmAck waits for the device to echo the mutation id back on its state topic.
	ConfirmAck = "ack"
)

// Config is the root configuration structure for Prysma Core.
// Values come from YAML and can be overridden by PRYSMA_* environment variables.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Lights    LightsConfig    `yaml:"lights"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	Security  SecurityConfig  `yaml:"security"`
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

	// Namespace is the first topic level shared by every light,
	// e.g. "prysmalight" in "prysmalight/<id>/state".
	Namespace string `yaml:"namespace"`
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

// MQTTReconnectConfig contains MQTT reconnection settings (seconds).
type MQTTReconnectConfig struct {
	InitialDelay   int `yaml:"initial_delay"`
	MaxDelay       int `yaml:"max_delay"`
	ConnectTimeout int `yaml:"connect_timeout"`
}

// LightsConfig controls the state synchronisation engine.
type LightsConfig struct {
	// Confirmation is "optimistic" or "ack".
	Confirmation string `yaml:"confirmation"`

	// AckTimeout bounds how long an "ack" command waits for the device echo (milliseconds).
	AckTimeout int `yaml:"ack_timeout"`

	// FanoutBuffer is the per-subscriber event buffer size.
	FanoutBuffer int `yaml:"fanout_buffer"`

	// HistoryRetentionDays prunes state history older than this. 0 disables pruning.
	HistoryRetentionDays int `yaml:"history_retention_days"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings (seconds).
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains settings for the subscription feed.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
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

// SecurityConfig contains security settings.
type SecurityConfig struct {
	JWT       JWTConfig       `yaml:"jwt"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// JWTConfig contains bearer token settings. An empty secret disables auth.
type JWTConfig struct {
	Secret string `yaml:"secret"`
	Issuer string `yaml:"issuer"`
}

// RateLimitConfig contains rate limiting settings.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute"`
	Burst             int  `yaml:"burst"`
}

// Load reads configuration from a YAML file and applies environment overrides.
//
// Loading order:
//  1. Defaults
//  2. YAML file values
//  3. PRYSMA_SECTION_KEY environment variables
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

func defaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:        "./data/prysma.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "prysma-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay:   1,
				MaxDelay:       60,
				ConnectTimeout: 10,
			},
			Namespace: "prysmalight",
		},
		Lights: LightsConfig{
			Confirmation:         ConfirmOptimistic,
			AckTimeout:           3000,
			FanoutBuffer:         64,
			HistoryRetentionDays: 30,
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 4001,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Security: SecurityConfig{
			JWT: JWTConfig{
				Issuer: "prysma-core",
			},
			RateLimit: RateLimitConfig{
				Enabled:           true,
				RequestsPerMinute: 600,
				Burst:             50,
			},
		},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PRYSMA_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	if v := os.Getenv("PRYSMA_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("PRYSMA_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = port
		}
	}
	if v := os.Getenv("PRYSMA_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("PRYSMA_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}
	if v := os.Getenv("PRYSMA_MQTT_NAMESPACE"); v != "" {
		cfg.MQTT.Namespace = v
	}

	if v := os.Getenv("PRYSMA_LIGHTS_CONFIRMATION"); v != "" {
		cfg.Lights.Confirmation = v
	}

	if v := os.Getenv("PRYSMA_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("PRYSMA_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	if v := os.Getenv("PRYSMA_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	if v := os.Getenv("PRYSMA_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}

	if v := os.Getenv("PRYSMA_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration and reports every problem at once.
func (c *Config) Validate() error {
	var errs []string

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Namespace == "" || strings.ContainsAny(c.MQTT.Namespace, "/+#") {
		errs = append(errs, "mqtt.namespace must be a single non-empty topic level")
	}

	switch c.Lights.Confirmation {
	case ConfirmOptimistic, ConfirmAck:
	default:
		errs = append(errs, `lights.confirmation must be "optimistic" or "ack"`)
	}
	if c.Lights.Confirmation == ConfirmAck && c.Lights.AckTimeout <= 0 {
		errs = append(errs, "lights.ack_timeout must be positive in ack mode")
	}
	if c.Lights.FanoutBuffer < 1 {
		errs = append(errs, "lights.fanout_buffer must be at least 1")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	const minJWTSecretLength = 32
	if c.Security.JWT.Secret != "" && len(c.Security.JWT.Secret) < minJWTSecretLength {
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

// GetAckTimeout returns how long an acknowledged command may wait for its echo.
func (c *Config) GetAckTimeout() time.Duration {
	return time.Duration(c.Lights.AckTimeout) * time.Millisecond
}
