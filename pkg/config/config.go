package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Cache     CacheConfig
	Snapshot  SnapshotConfig
	Upstream  UpstreamConfig
	Geocode   GeocodeConfig
	Ingestion IngestionConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Host           string
	Port           int
	ReadTimeout    int
	WriteTimeout   int
	BodyLimit      int
	AllowedOrigins []string
	Development    bool
}

type DatabaseConfig struct {
	Driver string
	DSN    string
}

type CacheConfig struct {
	Backend    string
	RedisURL   string
	TTLSeconds int
	Prefix     string
}

// TTL is the lifetime of cached read results.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

type SnapshotConfig struct {
	Dir      string
	MaxFiles int
}

type UpstreamConfig struct {
	APIURL     string
	APIKey     string
	Region     string
	Limit      int
	TimeoutSec int
}

type GeocodeConfig struct {
	BaseURL           string
	UserAgent         string
	TimeoutSec        int
	RequestsPerMinute int
}

type IngestionConfig struct {
	IntervalMinutes int
	LockTTLSeconds  int
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

// legacyEnv maps config keys to the environment names used by earlier
// deployments of the dashboard, which only shipped a flat .env file.
var legacyEnv = map[string]string{
	"server.port":      "PORT",
	"database.dsn":     "DATABASE_URL",
	"cache.redisUrl":   "REDIS_URL",
	"cache.ttlSeconds": "CACHE_TTL",
	"snapshot.dir":     "RAW_DIR",
	"upstream.apiUrl":  "MGNREGA_API_URL",
	"upstream.apiKey":  "MGNREGA_API_KEY",
	"upstream.region":  "STATE_NAME",
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/mgnrega")

	v.SetEnvPrefix("MGNREGA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	for key, env := range legacyEnv {
		prefixed := "MGNREGA_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, env); err != nil {
			return nil, fmt.Errorf("failed to bind env %s: %w", env, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if config.Cache.TTLSeconds <= 0 {
		config.Cache.TTLSeconds = 300
	}
	if config.Snapshot.MaxFiles <= 0 {
		config.Snapshot.MaxFiles = 5
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.readTimeout", 30)
	v.SetDefault("server.writeTimeout", 30)
	v.SetDefault("server.bodyLimit", 1048576)
	v.SetDefault("server.allowedOrigins", []string{"*"})
	v.SetDefault("server.development", false)

	v.SetDefault("database.driver", "sqlite3")
	v.SetDefault("database.dsn", "./data/mgnrega.db")

	v.SetDefault("cache.backend", "redis")
	v.SetDefault("cache.redisUrl", "")
	v.SetDefault("cache.ttlSeconds", 300)
	v.SetDefault("cache.prefix", "")

	v.SetDefault("snapshot.dir", "raw_fetches")
	v.SetDefault("snapshot.maxFiles", 5)

	v.SetDefault("upstream.apiUrl", "")
	v.SetDefault("upstream.apiKey", "")
	v.SetDefault("upstream.region", "Tamil Nadu")
	v.SetDefault("upstream.limit", 10000)
	v.SetDefault("upstream.timeoutSec", 30)

	v.SetDefault("geocode.baseUrl", "https://nominatim.openstreetmap.org")
	v.SetDefault("geocode.userAgent", "mgnrega-tn-app/1.0")
	v.SetDefault("geocode.timeoutSec", 10)
	v.SetDefault("geocode.requestsPerMinute", 60)

	v.SetDefault("ingestion.intervalMinutes", 0)
	v.SetDefault("ingestion.lockTtlSeconds", 900)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.outputPath", "stdout")
}
