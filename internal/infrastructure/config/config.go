package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the Nest bridge.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site     SiteConfig     `yaml:"site"`
	Bridge   BridgeConfig   `yaml:"bridge"`
	Nest     NestConfig     `yaml:"nest"`
	Database DatabaseConfig `yaml:"database"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	API      APIConfig      `yaml:"api"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// SiteConfig contains site-specific information.
type SiteConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// BridgeConfig contains bridge identity and timing settings.
type BridgeConfig struct {
	ID string `yaml:"id"`

	// PollInterval is the long-poll period in seconds. Every known
	// thermostat is synchronized once per interval.
	PollInterval int `yaml:"poll_interval"`

	// HealthInterval is the health publish period in seconds.
	HealthInterval int `yaml:"health_interval"`

	// CommandTimeout bounds a single command (guard + mutation) in seconds.
	CommandTimeout int `yaml:"command_timeout"`
}

// NestConfig contains the cloud API credentials and client settings.
type NestConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`

	// PIN is the one-time authorization code shown to the user after
	// visiting the authorize URL. Only used while the token cache is empty.
	PIN string `yaml:"pin"`

	// TokenCacheFile stores the access token between runs.
	TokenCacheFile string `yaml:"token_cache_file"`

	// CacheTTL is how long (seconds) a fetched API snapshot is reused.
	CacheTTL int `yaml:"cache_ttl"`

	APIURL       string `yaml:"api_url"`
	AuthorizeURL string `yaml:"authorize_url"`
	TokenURL     string `yaml:"token_url"`

	// RequestTimeout bounds each HTTP request in seconds.
	RequestTimeout int `yaml:"request_timeout"`
}

// String returns a string representation with credentials redacted.
func (n NestConfig) String() string {
	return fmt.Sprintf("NestConfig{ClientID:%s ClientSecret:%s PIN:%s TokenCacheFile:%s CacheTTL:%d APIURL:%s}",
		n.ClientID, redact(n.ClientSecret), redact(n.PIN), n.TokenCacheFile, n.CacheTTL, n.APIURL)
}

// MarshalJSON implements json.Marshaler with credentials redacted.
func (n NestConfig) MarshalJSON() ([]byte, error) {
	type redacted struct {
		ClientID       string `json:"client_id"`
		ClientSecret   string `json:"client_secret,omitempty"`
		PIN            string `json:"pin,omitempty"`
		TokenCacheFile string `json:"token_cache_file"`
		CacheTTL       int    `json:"cache_ttl"`
		APIURL         string `json:"api_url"`
	}
	return json.Marshal(redacted{
		ClientID:       n.ClientID,
		ClientSecret:   redact(n.ClientSecret),
		PIN:            redact(n.PIN),
		TokenCacheFile: n.TokenCacheFile,
		CacheTTL:       n.CacheTTL,
		APIURL:         n.APIURL,
	})
}

func redact(s string) string {
	if s == "" {
		return ""
	}
	return "[REDACTED]"
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

// APIConfig contains the status HTTP API settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
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

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: NEST_BRIDGE_SECTION_KEY
// For example: NEST_BRIDGE_CLIENT_SECRET, NEST_BRIDGE_MQTT_HOST
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
			ID:   "site-001",
			Name: "Gray Logic",
		},
		Bridge: BridgeConfig{
			ID:             "nest-bridge-01",
			PollInterval:   30,
			HealthInterval: 30,
			CommandTimeout: 15,
		},
		Nest: NestConfig{
			TokenCacheFile: defaultTokenCacheFile(),
			CacheTTL:       25,
			APIURL:         "https://developer-api.nest.com",
			AuthorizeURL:   "https://home.nest.com/login/oauth2",
			TokenURL:       "https://api.home.nest.com/oauth2/access_token",
			RequestTimeout: 10,
		},
		Database: DatabaseConfig{
			Path:        "./data/nestbridge.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "graylogic-nest-bridge",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		API: APIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8090,
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
	}
}

func defaultTokenCacheFile() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".nest_auth"
	}
	return filepath.Join(home, ".graylogic", ".nest_auth")
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: NEST_BRIDGE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Nest credentials (keep secrets out of config files)
	if v := os.Getenv("NEST_BRIDGE_CLIENT_ID"); v != "" {
		cfg.Nest.ClientID = v
	}
	if v := os.Getenv("NEST_BRIDGE_CLIENT_SECRET"); v != "" {
		cfg.Nest.ClientSecret = v
	}
	if v := os.Getenv("NEST_BRIDGE_PIN"); v != "" {
		cfg.Nest.PIN = v
	}
	if v := os.Getenv("NEST_BRIDGE_TOKEN_CACHE_FILE"); v != "" {
		cfg.Nest.TokenCacheFile = v
	}

	// Bridge
	if v := os.Getenv("NEST_BRIDGE_ID"); v != "" {
		cfg.Bridge.ID = v
	}
	if v := os.Getenv("NEST_BRIDGE_POLL_INTERVAL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Bridge.PollInterval = n
		}
	}

	// Database
	if v := os.Getenv("NEST_BRIDGE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("NEST_BRIDGE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("NEST_BRIDGE_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = port
		}
	}
	if v := os.Getenv("NEST_BRIDGE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("NEST_BRIDGE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("NEST_BRIDGE_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	// InfluxDB
	if v := os.Getenv("NEST_BRIDGE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}

	if c.Bridge.ID == "" {
		errs = append(errs, "bridge.id is required")
	}
	if c.Bridge.PollInterval < 1 {
		errs = append(errs, "bridge.poll_interval must be at least 1 second")
	}

	// The cloud API rejects every call without application credentials.
	if c.Nest.ClientID == "" {
		errs = append(errs, "nest.client_id is required (set NEST_BRIDGE_CLIENT_ID environment variable)")
	}
	if c.Nest.ClientSecret == "" {
		errs = append(errs, "nest.client_secret is required (set NEST_BRIDGE_CLIENT_SECRET environment variable)")
	}
	if c.Nest.TokenCacheFile == "" {
		errs = append(errs, "nest.token_cache_file is required")
	}
	if c.Nest.CacheTTL < 0 {
		errs = append(errs, "nest.cache_ttl must not be negative")
	}
	if c.Nest.APIURL == "" {
		errs = append(errs, "nest.api_url is required")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetPollInterval returns the long-poll interval as a Duration.
func (c *Config) GetPollInterval() time.Duration {
	return time.Duration(c.Bridge.PollInterval) * time.Second
}

// GetHealthInterval returns the health publish interval as a Duration.
func (c *Config) GetHealthInterval() time.Duration {
	return time.Duration(c.Bridge.HealthInterval) * time.Second
}

// GetCommandTimeout returns the per-command timeout as a Duration.
func (c *Config) GetCommandTimeout() time.Duration {
	return time.Duration(c.Bridge.CommandTimeout) * time.Second
}

// GetCacheTTL returns the API snapshot freshness interval as a Duration.
func (c *Config) GetCacheTTL() time.Duration {
	return time.Duration(c.Nest.CacheTTL) * time.Second
}

// GetRequestTimeout returns the per-request HTTP timeout as a Duration.
func (c *Config) GetRequestTimeout() time.Duration {
	return time.Duration(c.Nest.RequestTimeout) * time.Second
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
