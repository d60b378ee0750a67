// Package config loads application settings from configs/config.yml with
// environment overrides (RADIATOR_MQTT_HOST, RADIATOR_DB_PATH, ...).
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "radiator"

// DefaultWriteTimeout applies when http.write_timeout is unset.
const DefaultWriteTimeout = 15 * time.Second

// Config is the root application configuration.
type Config struct {
	Port      string    `mapstructure:"port"`
	Log       Log       `mapstructure:"log"`
	DB        DB        `mapstructure:"db"`
	Auth      Auth      `mapstructure:"auth"`
	MQTT      MQTT      `mapstructure:"mqtt"`
	Protocol  Protocol  `mapstructure:"protocol"`
	Scheduler Scheduler `mapstructure:"scheduler"`
	HTTP      HTTP      `mapstructure:"http"`
	Devices   []string  `mapstructure:"devices"`
}

// Log configures the zap logger.
type Log struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// DB configures the SQLite database.
type DB struct {
	Path string `mapstructure:"path"`
}

// Auth configures token signing.
type Auth struct {
	SigningKey string        `mapstructure:"signing_key"`
	TokenTTL   time.Duration `mapstructure:"token_ttl"`
}

// MQTT configures the broker connection and the shared topic.
type MQTT struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	TLS            bool          `mapstructure:"tls"`
	ClientID       string        `mapstructure:"client_id"`
	Username       string        `mapstructure:"username"`
	Password       string        `mapstructure:"password"`
	Topic          string        `mapstructure:"topic"`
	QoS            int           `mapstructure:"qos"`
	WireFormat     string        `mapstructure:"wire_format"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	Retention      time.Duration `mapstructure:"retention"`
	EmbeddedBroker bool          `mapstructure:"embedded_broker"`
}

// Protocol tunes the STATE request/response correlator.
type Protocol struct {
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxAttempts  int           `mapstructure:"max_attempts"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	PollEvery    time.Duration `mapstructure:"poll_every"`
}

// Scheduler tunes the weekly planning loop.
type Scheduler struct {
	Timezone     string        `mapstructure:"timezone"`
	IdleInterval time.Duration `mapstructure:"idle_interval"`
	SettleDelay  time.Duration `mapstructure:"settle_delay"`
}

// HTTP tunes the API server.
type HTTP struct {
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("db.path", "radiators.db")
	v.SetDefault("auth.signing_key", "")
	v.SetDefault("auth.token_ttl", time.Hour)

	v.SetDefault("mqtt.host", "127.0.0.1")
	v.SetDefault("mqtt.port", 1883)
	v.SetDefault("mqtt.tls", false)
	v.SetDefault("mqtt.client_id", "radiator-controller")
	v.SetDefault("mqtt.topic", "test")
	v.SetDefault("mqtt.qos", 0)
	v.SetDefault("mqtt.wire_format", "literal")
	v.SetDefault("mqtt.connect_timeout", 5*time.Second)
	v.SetDefault("mqtt.retention", time.Minute)
	v.SetDefault("mqtt.embedded_broker", false)

	v.SetDefault("protocol.timeout", 2*time.Second)
	v.SetDefault("protocol.max_attempts", 4)
	v.SetDefault("protocol.poll_interval", 10*time.Millisecond)
	v.SetDefault("protocol.poll_every", time.Duration(0))

	v.SetDefault("scheduler.timezone", "Europe/Paris")
	v.SetDefault("scheduler.idle_interval", 10*time.Second)
	v.SetDefault("scheduler.settle_delay", 30*time.Second)

	v.SetDefault("http.read_header_timeout", 10*time.Second)
	v.SetDefault("http.write_timeout", DefaultWriteTimeout)
	v.SetDefault("http.idle_timeout", 60*time.Second)

	v.SetDefault("devices", []string{})
}

// Load reads config.yml from the given directories (first match wins). A
// missing file is not an error: defaults and environment still apply.
func Load(paths ...string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would otherwise fail deep inside a component.
func (c *Config) Validate() error {
	switch {
	case c.MQTT.Topic == "":
		return errors.New("config: mqtt.topic is required")
	case c.MQTT.QoS < 0 || c.MQTT.QoS > 2:
		return fmt.Errorf("config: mqtt.qos must be 0, 1 or 2, got %d", c.MQTT.QoS)
	case c.Protocol.MaxAttempts < 1:
		return fmt.Errorf("config: protocol.max_attempts must be >= 1, got %d", c.Protocol.MaxAttempts)
	case c.Protocol.Timeout <= 0:
		return errors.New("config: protocol.timeout must be positive")
	case c.Protocol.PollInterval <= 0:
		return errors.New("config: protocol.poll_interval must be positive")
	}
	if _, err := time.LoadLocation(c.Scheduler.Timezone); err != nil {
		return fmt.Errorf("config: scheduler.timezone: %w", err)
	}
	// A reply must still be in the inbox when the last round reads it.
	if window := time.Duration(c.Protocol.MaxAttempts) * c.Protocol.Timeout; c.MQTT.Retention > 0 && c.MQTT.Retention <= window {
		return fmt.Errorf("config: mqtt.retention %v must exceed protocol.timeout x max_attempts (%v)", c.MQTT.Retention, window)
	}
	if wt, bound := c.HTTP.EffectiveWriteTimeout(), c.Protocol.MaxRequestDuration(); wt <= bound {
		return fmt.Errorf("config: http.write_timeout %v must exceed the longest STATE request (%v)", wt, bound)
	}
	return nil
}

// EffectiveWriteTimeout is the write timeout the server applies, with zero
// meaning DefaultWriteTimeout.
func (h HTTP) EffectiveWriteTimeout() time.Duration {
	if h.WriteTimeout <= 0 {
		return DefaultWriteTimeout
	}
	return h.WriteTimeout
}

// MaxRequestDuration is the worst-case time a STATE request blocks its caller.
func (p Protocol) MaxRequestDuration() time.Duration {
	rounds := p.MaxAttempts - 1
	if rounds < 1 {
		rounds = 1
	}
	return time.Duration(rounds) * p.Timeout
}
