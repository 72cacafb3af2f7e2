package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"
)

type AppConfig struct {
	BoardID string

	SensorWSURL        string
	SensorMaxReconnect int
	SensorPingInterval time.Duration
	SensorHeaders      map[string]string

	HTTPAddr string

	RedisURL     string
	LiveStateTTL time.Duration

	ClockInitial   time.Duration
	ClockIncrement time.Duration
	ClockTick      time.Duration

	ResolveCaptures bool
}

// fileConfig mirrors the optional YAML file named by CONFIG_FILE. Durations are
// strings so "5m" and "300000" both work.
type fileConfig struct {
	BoardID string `yaml:"board_id"`
	Sensor  struct {
		WSURL        string            `yaml:"ws_url"`
		MaxReconnect int               `yaml:"max_reconnect"`
		PingInterval string            `yaml:"ping_interval"`
		Headers      map[string]string `yaml:"headers"`
	} `yaml:"sensor"`
	HTTPAddr     string `yaml:"http_addr"`
	RedisURL     string `yaml:"redis_url"`
	LiveStateTTL string `yaml:"live_state_ttl"`
	Clock        struct {
		Initial   string `yaml:"initial"`
		Increment string `yaml:"increment"`
		Tick      string `yaml:"tick"`
	} `yaml:"clock"`
	ResolveCaptures *bool `yaml:"resolve_captures"`
}

func defaults() *AppConfig {
	return &AppConfig{
		BoardID:            "board-1",
		SensorMaxReconnect: 10,
		SensorPingInterval: 30 * time.Second,
		HTTPAddr:           ":8080",
		LiveStateTTL:       6 * time.Hour,
		ClockInitial:       5 * time.Minute,
		ClockIncrement:     0,
		ClockTick:          100 * time.Millisecond,
	}
}

// Load builds the config from defaults, then CONFIG_FILE (if set), then
// environment variables. Environment wins.
func Load() (*AppConfig, error) {
	cfg := defaults()

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := cfg.applyYAML(raw); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) applyYAML(raw []byte) error {
	var f fileConfig
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return err
	}
	if s := strings.TrimSpace(f.BoardID); s != "" {
		c.BoardID = s
	}
	if s := strings.TrimSpace(f.Sensor.WSURL); s != "" {
		c.SensorWSURL = s
	}
	if f.Sensor.MaxReconnect > 0 {
		c.SensorMaxReconnect = f.Sensor.MaxReconnect
	}
	for k, v := range f.Sensor.Headers {
		c.setSensorHeader(k, v)
	}
	if s := strings.TrimSpace(f.HTTPAddr); s != "" {
		c.HTTPAddr = s
	}
	if s := strings.TrimSpace(f.RedisURL); s != "" {
		c.RedisURL = s
	}
	durations := []struct {
		raw string
		dst *time.Duration
		key string
	}{
		{f.LiveStateTTL, &c.LiveStateTTL, "live_state_ttl"},
		{f.Sensor.PingInterval, &c.SensorPingInterval, "sensor.ping_interval"},
		{f.Clock.Initial, &c.ClockInitial, "clock.initial"},
		{f.Clock.Increment, &c.ClockIncrement, "clock.increment"},
		{f.Clock.Tick, &c.ClockTick, "clock.tick"},
	}
	for _, d := range durations {
		if strings.TrimSpace(d.raw) == "" {
			continue
		}
		v, err := ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("%s: %w", d.key, err)
		}
		*d.dst = v
	}
	if f.ResolveCaptures != nil {
		c.ResolveCaptures = *f.ResolveCaptures
	}
	return nil
}

func (c *AppConfig) applyEnv() error {
	if v := strings.TrimSpace(os.Getenv("BOARD_ID")); v != "" {
		c.BoardID = v
	}
	if v := strings.TrimSpace(os.Getenv("SENSOR_WS_URL")); v != "" {
		c.SensorWSURL = v
	}
	if v := strings.TrimSpace(os.Getenv("SENSOR_MAX_RECONNECT")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			c.SensorMaxReconnect = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("SENSOR_HEADERS")); v != "" {
		for k, hv := range ParseHeaders(v) {
			c.setSensorHeader(k, hv)
		}
	}
	if v := strings.TrimSpace(os.Getenv("HTTP_ADDR")); v != "" {
		c.HTTPAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("REDIS_URL")); v != "" {
		c.RedisURL = v
	}
	if v := strings.TrimSpace(os.Getenv("RESOLVE_CAPTURES")); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.ResolveCaptures = b
		}
	}

	durations := []struct {
		env string
		dst *time.Duration
	}{
		{"LIVE_STATE_TTL", &c.LiveStateTTL},
		{"SENSOR_PING_INTERVAL", &c.SensorPingInterval},
		{"CLOCK_INITIAL", &c.ClockInitial},
		{"CLOCK_INCREMENT", &c.ClockIncrement},
		{"CLOCK_TICK", &c.ClockTick},
	}
	for _, d := range durations {
		v := strings.TrimSpace(os.Getenv(d.env))
		if v == "" {
			continue
		}
		parsed, err := ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", d.env, err)
		}
		*d.dst = parsed
	}
	return nil
}

func (c *AppConfig) Validate() error {
	if strings.TrimSpace(c.BoardID) == "" {
		return errors.New("BOARD_ID is required")
	}
	if c.ClockInitial < 0 {
		return errors.New("CLOCK_INITIAL must be non-negative")
	}
	if c.ClockIncrement < 0 {
		return errors.New("CLOCK_INCREMENT must be non-negative")
	}
	if c.ClockTick <= 0 {
		return errors.New("CLOCK_TICK must be positive")
	}
	if c.SensorPingInterval <= 0 {
		return errors.New("SENSOR_PING_INTERVAL must be positive")
	}
	return nil
}

// ParseDuration accepts Go duration strings ("5m", "1m30s") or bare
// milliseconds ("300000").
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Duration(n) * time.Millisecond, nil
	}
	return time.ParseDuration(s)
}

func (c *AppConfig) setSensorHeader(k, v string) {
	k, v = strings.TrimSpace(k), strings.TrimSpace(v)
	if k == "" || v == "" {
		return
	}
	if c.SensorHeaders == nil {
		c.SensorHeaders = map[string]string{}
	}
	c.SensorHeaders[k] = v
}

// ParseHeaders reads "Name=value,Other=value" pairs. Entries without a name
// or value are skipped.
func ParseHeaders(s string) map[string]string {
	out := map[string]string{}
	for _, pair := range strings.Split(s, ",") {
		k, v, ok := strings.Cut(pair, "=")
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if !ok || k == "" || v == "" {
			continue
		}
		out[k] = v
	}
	return out
}
