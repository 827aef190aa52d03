// Package config provides configuration loading, validation, and defaults for
// exposure-sync.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration for exposure-sync.
type Config struct {
	Log          LogConfig          `yaml:"log"          json:"log"`
	Server       ServerConfig       `yaml:"server"       json:"server"`
	Redis        RedisConfig        `yaml:"redis"        json:"redis"`
	Postgres     PostgresConfig     `yaml:"postgres"     json:"postgres"`
	Detection    DetectionConfig    `yaml:"detection"    json:"detection"`
	Subscription SubscriptionConfig `yaml:"subscription" json:"subscription"`
	Analytics    AnalyticsConfig    `yaml:"analytics"    json:"analytics"`
	NATS         NATSConfig         `yaml:"nats"         json:"nats"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `yaml:"level"  json:"level"  env:"EXS_LOG_LEVEL"  validate:"omitempty,oneof=trace debug info warn error fatal panic"`
	Format string `yaml:"format" json:"format" env:"EXS_LOG_FORMAT" validate:"omitempty,oneof=text json"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Enabled       bool   `yaml:"enabled"        json:"enabled"        env:"EXS_SERVER_ENABLED"`
	ListenAddress string `yaml:"listen_address" json:"listen_address" env:"EXS_LISTEN_ADDRESS" validate:"required_if=Enabled true"`
	EnablePprof   bool   `yaml:"enable_pprof"   json:"enable_pprof"   env:"EXS_ENABLE_PPROF"`
}

// RedisConfig selects Redis as the revision-token store when URL is set.
type RedisConfig struct {
	URL          string `yaml:"url"            json:"url"            env:"EXS_REDIS_URL"`
	PoolSize     int    `yaml:"pool_size"      json:"pool_size"      env:"EXS_REDIS_POOL_SIZE"      validate:"omitempty,min=1"`
	MinIdleConns int    `yaml:"min_idle_conns" json:"min_idle_conns" env:"EXS_REDIS_MIN_IDLE_CONNS" validate:"omitempty,min=0"`
}

// PostgresConfig selects Postgres as the revision-token store when DSN is
// set and no Redis URL is configured.
type PostgresConfig struct {
	DSN string `yaml:"dsn" json:"dsn" env:"EXS_POSTGRES_DSN"`
}

// DetectionConfig controls detection passes.
type DetectionConfig struct {
	// IntervalSeconds is the background check period; 0 disables it.
	IntervalSeconds int `yaml:"interval_seconds"     json:"interval_seconds"     env:"EXS_DETECTION_INTERVAL_SECONDS"     validate:"omitempty,min=0"`
	// MinIntervalSeconds spaces detection passes to respect the platform
	// quota; 0 disables throttling.
	MinIntervalSeconds int `yaml:"min_interval_seconds" json:"min_interval_seconds" env:"EXS_DETECTION_MIN_INTERVAL_SECONDS" validate:"omitempty,min=0"`
	Burst              int `yaml:"burst"                json:"burst"                env:"EXS_DETECTION_BURST"                validate:"omitempty,min=1"`
}

// Interval returns the background check interval as a time.Duration.
func (c DetectionConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// MinInterval returns the minimum spacing between detection passes.
func (c DetectionConfig) MinInterval() time.Duration {
	return time.Duration(c.MinIntervalSeconds) * time.Second
}

// SubscriptionConfig holds push-event delivery settings.
type SubscriptionConfig struct {
	EventBuffer int `yaml:"event_buffer" json:"event_buffer" env:"EXS_SUBSCRIPTION_EVENT_BUFFER" validate:"omitempty,min=1"`
}

// AnalyticsConfig holds product analytics settings.
type AnalyticsConfig struct {
	Enabled bool `yaml:"enabled"    json:"enabled"    env:"EXS_ANALYTICS_ENABLED"`
	// Consent is the user's initial product-analytics consent.
	Consent   bool `yaml:"consent"    json:"consent"    env:"EXS_ANALYTICS_CONSENT"`
	LogEvents bool `yaml:"log_events" json:"log_events" env:"EXS_ANALYTICS_LOG_EVENTS"`
}

// NATSConfig enables the NATS Streaming relay of background detection
// results when URL is set.
type NATSConfig struct {
	URL       string `yaml:"url"        json:"url"        env:"EXS_NATS_URL"        validate:"omitempty,url"`
	ClusterID string `yaml:"cluster_id" json:"cluster_id" env:"EXS_NATS_CLUSTER_ID" validate:"required_with=URL"`
	ClientID  string `yaml:"client_id"  json:"client_id"  env:"EXS_NATS_CLIENT_ID"`
	Subject   string `yaml:"subject"    json:"subject"    env:"EXS_NATS_SUBJECT"    validate:"required_with=URL"`
	Durable   string `yaml:"durable"    json:"durable"    env:"EXS_NATS_DURABLE"`
}

// Load reads a YAML configuration file, applies defaults, applies environment
// variable overrides, and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse builds a Config from YAML bytes the same way Load does.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// FromEnv returns the defaults with environment overrides applied, for runs
// without a config file.
func FromEnv() (*Config, error) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	applyEnvOverrides(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides walks the config struct and overwrites fields that have
// an "env" tag if the corresponding environment variable is set.
func applyEnvOverrides(cfg *Config) {
	applyEnvOverridesOnValue(reflect.ValueOf(cfg))
}

func applyEnvOverridesOnValue(v reflect.Value) {
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return
	}

	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldVal := v.Field(i)

		if fieldVal.Kind() == reflect.Struct {
			applyEnvOverridesOnValue(fieldVal.Addr())
			continue
		}

		envKey := field.Tag.Get("env")
		if envKey == "" {
			continue
		}

		envVal, ok := os.LookupEnv(envKey)
		if !ok {
			continue
		}

		setFieldFromString(fieldVal, envVal)
	}
}

// setFieldFromString sets a reflect.Value from a string, supporting
// string, bool, and int field types. Unparseable values are ignored.
func setFieldFromString(field reflect.Value, raw string) {
	if !field.CanSet() {
		return
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(raw)

	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err == nil {
			field.SetBool(b)
		}

	case reflect.Int:
		n, err := strconv.Atoi(raw)
		if err == nil {
			field.SetInt(int64(n))
		}
	}
}

// redactString replaces a secret string with "****" if non-empty.
func redactString(s string) string {
	if s == "" {
		return ""
	}
	return "****"
}

// Redacted returns a copy of the Config with connection strings masked.
func (c *Config) Redacted() Config {
	cp := *c
	cp.Redis.URL = redactString(cp.Redis.URL)
	cp.Postgres.DSN = redactString(cp.Postgres.DSN)
	cp.NATS.URL = redactString(cp.NATS.URL)
	return cp
}

// RedactedJSON returns the config as indented JSON with secrets masked.
func (c *Config) RedactedJSON() ([]byte, error) {
	redacted := c.Redacted()
	data, err := json.MarshalIndent(redacted, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling redacted config: %w", err)
	}
	return data, nil
}
