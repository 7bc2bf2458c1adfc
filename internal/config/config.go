// Package config loads planner settings from defaults, an optional YAML file
// and LOOP_-prefixed environment variables, in that order.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

const (
	EnvPrefix = "LOOP_"
	envDelim  = "__"
)

type Config struct {
	Server  Server  `koanf:"server"`
	Routing Routing `koanf:"routing"`
	Zones   Zones   `koanf:"zones"`
	Cache   Cache   `koanf:"cache"`
	Engine  Engine  `koanf:"engine"`
	Log     Log     `koanf:"log"`
}

type Server struct {
	Addr string `koanf:"addr"`
}

type Routing struct {
	BaseURL string        `koanf:"base_url"`
	Profile string        `koanf:"profile"`
	Locale  string        `koanf:"locale"`
	Timeout time.Duration `koanf:"timeout"`
}

type Zones struct {
	Dir             string  `koanf:"dir"`
	SimplifyEpsilon float64 `koanf:"simplify_epsilon"`
	DropContained   bool    `koanf:"drop_contained"`
}

// Cache configures the Redis route cache. An empty RedisAddr disables it.
type Cache struct {
	RedisAddr     string        `koanf:"redis_addr"`
	RedisPassword string        `koanf:"redis_password"`
	RedisDB       int           `koanf:"redis_db"`
	TTL           time.Duration `koanf:"ttl"`
}

type Engine struct {
	MaxAttempts int    `koanf:"max_attempts"`
	Spread      string `koanf:"spread"`
}

type Log struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Server: Server{Addr: ":8080"},
		Routing: Routing{
			BaseURL: "https://router.project-osrm.org",
			Profile: "foot",
			Locale:  "en",
			Timeout: 20 * time.Second,
		},
		Zones:  Zones{Dir: "unsafe-zones", DropContained: true},
		Cache:  Cache{TTL: 24 * time.Hour},
		Engine: Engine{MaxAttempts: 20, Spread: "tight"},
		Log:    Log{Level: "info", Format: "text"},
	}
}

// Load builds the configuration. path may be empty; a named file that does
// not exist is an error.
func Load(path string) (Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return Config{}, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return Config{}, fmt.Errorf("config file: %w", err)
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("load %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return Config{}, fmt.Errorf("load env: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// envKey maps LOOP_ROUTING__BASE_URL to routing.base_url.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, envDelim, ".")
}
