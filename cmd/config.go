package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	tomlrepo "github.com/GoWebProd/obsidian-jira-master/internal/adapters/repo/toml"
	"github.com/GoWebProd/obsidian-jira-master/internal/cache"
	"github.com/spf13/viper"
)

const (
	configName = "config"
	configType = "toml"
	envPrefix  = "JM"

	cacheTTLKey         = "cache.ttl"
	cacheBackendKey     = "cache.backend"
	cacheRedisAddrKey   = "cache.redis_addr"
	cacheRedisPrefixKey = "cache.redis_prefix"
	cacheSingleFlight   = "cache.single_flight"
	httpTimeoutKey      = "http.timeout"
	logLevelKey         = "log.level"

	cacheBackendMemory = "memory"
	cacheBackendRedis  = "redis"
)

// settings is the resolved configuration the CLI wires itself from.
type settings struct {
	cacheTTL         time.Duration
	cacheBackend     string
	redisAddr        string
	redisPrefix      string
	singleFlight     bool
	httpTimeout      time.Duration
	logLevel         string
	metadataStaleAge time.Duration
}

// loadConfig reads ~/.jira-master/config.toml when present; JM_* variables override it.
func loadConfig() (*viper.Viper, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home directory: %w", err)
	}

	cfg := viper.New()
	cfg.SetConfigName(configName)
	cfg.SetConfigType(configType)
	cfg.AddConfigPath(filepath.Join(homeDir, tomlrepo.ConfigDir))
	cfg.SetEnvPrefix(envPrefix)
	cfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	cfg.AutomaticEnv()

	cfg.SetDefault(cacheTTLKey, "15m")
	cfg.SetDefault(cacheBackendKey, cacheBackendMemory)
	cfg.SetDefault(cacheRedisAddrKey, "127.0.0.1:6379")
	cfg.SetDefault(cacheRedisPrefixKey, "jm:cache:")
	cfg.SetDefault(cacheSingleFlight, false)
	cfg.SetDefault(httpTimeoutKey, "30s")
	cfg.SetDefault(logLevelKey, "warn")

	if err := cfg.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	return cfg, nil
}

func resolveSettings(cfg *viper.Viper) (settings, error) {
	ttl, err := cache.ParseTTL(cfg.GetString(cacheTTLKey))
	if err != nil {
		return settings{}, err
	}

	backend := strings.ToLower(strings.TrimSpace(cfg.GetString(cacheBackendKey)))
	switch backend {
	case cacheBackendMemory, cacheBackendRedis:
	default:
		return settings{}, fmt.Errorf("unsupported cache backend %q", backend)
	}

	timeout := cfg.GetDuration(httpTimeoutKey)
	if timeout <= 0 {
		return settings{}, fmt.Errorf("http timeout must be positive, got %q", cfg.GetString(httpTimeoutKey))
	}

	return settings{
		cacheTTL:         ttl,
		cacheBackend:     backend,
		redisAddr:        cfg.GetString(cacheRedisAddrKey),
		redisPrefix:      cfg.GetString(cacheRedisPrefixKey),
		singleFlight:     cfg.GetBool(cacheSingleFlight),
		httpTimeout:      timeout,
		logLevel:         cfg.GetString(logLevelKey),
		metadataStaleAge: 24 * time.Hour,
	}, nil
}
