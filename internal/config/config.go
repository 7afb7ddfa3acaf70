package config

import (
	"fmt"
	"os"
	"strconv"
)

type Config struct {
	Port        int
	GinMode     string
	DataDir     string
	MirrorDB    string
	TLSCertFile string
	TLSKeyFile  string
}

type Env interface {
	Getenv(key string) string
}

type osEnv struct{}

func (osEnv) Getenv(key string) string { return os.Getenv(key) }

func LoadConfig() (Config, error) {
	return LoadConfigFromEnv(osEnv{})
}

func LoadConfigFromEnv(env Env) (Config, error) {
	cfg := Config{
		Port:    3000,
		GinMode: "release",
		DataDir: "data",
	}

	if raw := env.Getenv("PORT"); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil || port <= 0 || port > 65535 {
			return Config{}, fmt.Errorf("invalid PORT")
		}
		cfg.Port = port
	}

	if raw := env.Getenv("GIN_MODE"); raw != "" {
		cfg.GinMode = raw
	}

	if raw := env.Getenv("DATA_DIR"); raw != "" {
		cfg.DataDir = raw
	}

	// Empty means the secondary mirror is disabled.
	cfg.MirrorDB = env.Getenv("MIRROR_DB")

	cfg.TLSCertFile = env.Getenv("TLS_CERT_FILE")
	cfg.TLSKeyFile = env.Getenv("TLS_KEY_FILE")

	return cfg, nil
}
