package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const defaultPath = "./config/config.yaml"

type HTTP struct {
	Addr         string        `yaml:"addr"`         // ":5000"
	ReadTimeout  time.Duration `yaml:"readTimeout"`  // "10s"
	WriteTimeout time.Duration `yaml:"writeTimeout"` // "15s"
	IdleTimeout  time.Duration `yaml:"idleTimeout"`  // "60s"
}

type GRPC struct {
	Addr string `yaml:"addr"` // empty disables the health endpoint
}

type RateLimit struct {
	PerSecond float64 `yaml:"perSecond"`
	Burst     int     `yaml:"burst"`
}

type WS struct {
	Path           string        `yaml:"path"`
	MaxMessageSize int64         `yaml:"maxMessageSize"`
	SendBuffer     int           `yaml:"sendBuffer"`
	WriteWait      time.Duration `yaml:"writeWait"`
	PongWait       time.Duration `yaml:"pongWait"`
	PingPeriod     time.Duration `yaml:"pingPeriod"`
	RateLimit      RateLimit     `yaml:"rateLimit"`
}

type CORS struct {
	AllowedOrigins []string `yaml:"allowedOrigins"`
}

type Hub struct {
	EventBuffer int `yaml:"eventBuffer"`
}

type Logging struct {
	Env       string `yaml:"env"`       // dev|stage|prod
	Service   string `yaml:"service"`   // session-hub
	Version   string `yaml:"version"`   // v0.1.0
	Backend   string `yaml:"backend"`   // std|zap
	AddSource bool   `yaml:"addSource"` // false|true
	Debug     bool   `yaml:"debug"`     // false|true
}

type Config struct {
	HTTP    HTTP    `yaml:"http"`
	GRPC    GRPC    `yaml:"grpc"`
	WS      WS      `yaml:"ws"`
	CORS    CORS    `yaml:"cors"`
	Hub     Hub     `yaml:"hub"`
	Logging Logging `yaml:"logging"`
}

// Load reads the YAML file at path. An empty path means CONFIG_PATH or the
// default location; the default file may be absent, an explicit one may not.
// PORT, when set, replaces the port of http.addr.
func Load(path string) (*Config, error) {
	explicit := true
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path, explicit = defaultPath, false
	}

	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("unmarshal %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		host, _, _ := net.SplitHostPort(cfg.HTTP.Addr)
		cfg.HTTP.Addr = net.JoinHostPort(host, port)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	var cfg Config
	_ = cfg.validate()
	return &cfg
}

func (c *Config) validate() error {
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":5000"
	}
	if c.HTTP.ReadTimeout == 0 {
		c.HTTP.ReadTimeout = 10 * time.Second
	}
	if c.HTTP.WriteTimeout == 0 {
		c.HTTP.WriteTimeout = 15 * time.Second
	}
	if c.HTTP.IdleTimeout == 0 {
		c.HTTP.IdleTimeout = 60 * time.Second
	}

	if c.WS.Path == "" {
		c.WS.Path = "/ws"
	}
	if !strings.HasPrefix(c.WS.Path, "/") {
		return fmt.Errorf("ws.path must start with /, got %q", c.WS.Path)
	}
	if c.WS.MaxMessageSize == 0 {
		c.WS.MaxMessageSize = 64 << 10
	}
	if c.WS.SendBuffer == 0 {
		c.WS.SendBuffer = 256
	}
	if c.WS.WriteWait == 0 {
		c.WS.WriteWait = 10 * time.Second
	}
	if c.WS.PongWait == 0 {
		c.WS.PongWait = 60 * time.Second
	}
	if c.WS.PingPeriod == 0 {
		c.WS.PingPeriod = c.WS.PongWait * 9 / 10
	}
	if c.WS.PingPeriod >= c.WS.PongWait {
		return errors.New("ws.pingPeriod must be shorter than ws.pongWait")
	}
	if c.WS.MaxMessageSize < 0 || c.WS.SendBuffer < 0 {
		return errors.New("ws.maxMessageSize and ws.sendBuffer must be positive")
	}
	if c.WS.RateLimit.PerSecond == 0 {
		c.WS.RateLimit.PerSecond = 20
	}
	if c.WS.RateLimit.Burst == 0 {
		c.WS.RateLimit.Burst = 40
	}
	if c.WS.RateLimit.PerSecond < 0 || c.WS.RateLimit.Burst < 0 {
		return errors.New("ws.rateLimit values must be positive")
	}

	if len(c.CORS.AllowedOrigins) == 0 {
		c.CORS.AllowedOrigins = []string{"http://localhost:3000"}
	}

	if c.Hub.EventBuffer == 0 {
		c.Hub.EventBuffer = 1024
	}
	if c.Hub.EventBuffer < 0 {
		return errors.New("hub.eventBuffer must be positive")
	}

	if c.Logging.Service == "" {
		c.Logging.Service = "session-hub"
	}
	if c.Logging.Env == "" {
		c.Logging.Env = "dev"
	}
	if c.Logging.Version == "" {
		c.Logging.Version = "v0.1.0"
	}
	if c.Logging.Backend == "" {
		c.Logging.Backend = "std"
	}
	return nil
}
