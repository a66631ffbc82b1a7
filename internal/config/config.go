// 包 config：读取 .env 与环境变量，汇总为类型化配置
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"restroom-api/internal/utils"
)

// StoreBackend：记录存储实现
type StoreBackend string

const (
	StoreMemory   StoreBackend = "memory"
	StorePostgres StoreBackend = "postgres"
	StoreMongo    StoreBackend = "mongo"
)

// Config：服务配置
type Config struct {
	Addr    string
	APIBase string

	TLSEnable   bool
	TLSCertPath string
	TLSKeyPath  string

	PlacesAPIKey   string
	PlacesBaseURL  string
	PlacesQPS      int
	PlacesMaxPages int

	RefugeBaseURL string
	RefugeRetries int
	RefugeTimeout time.Duration

	DirectionsAPIKey  string
	DirectionsBaseURL string

	Store        StoreBackend
	PostgresDSN  string
	MongoURI     string
	MongoDB      string
	EnsureSchema bool

	CacheTTL      time.Duration
	CacheCapacity int
	RedisCache    bool
	Redis         utils.RedisConfig

	GeoIPPath string

	RateLimitQPS        int
	DefaultRadiusMeters int
	MoveThresholdMeters float64
}

// LoadEnvFiles：依次加载 .env 与 data/env/.env，已存在的环境变量不被覆盖
func LoadEnvFiles() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join("data", "env", ".env"))
}

// Load：加载 env 文件后读取环境变量
func Load() Config {
	LoadEnvFiles()
	return FromEnv()
}

// FromEnv：只读取当前进程环境变量
func FromEnv() Config {
	placesKey := env("PLACES_API_KEY", "")
	return Config{
		Addr:    env("ADDR", ":8080"),
		APIBase: strings.TrimRight(env("API_BASE", "/api"), "/"),

		TLSEnable:   envBool("TLS_ENABLE", false),
		TLSCertPath: env("TLS_CERT_PATH", filepath.Join("data", "certs", "server.crt")),
		TLSKeyPath:  env("TLS_KEY_PATH", filepath.Join("data", "certs", "server.key")),

		PlacesAPIKey:   placesKey,
		PlacesBaseURL:  env("PLACES_BASE_URL", ""),
		PlacesQPS:      envInt("PLACES_QPS", 10),
		PlacesMaxPages: envInt("PLACES_MAX_PAGES", 3),

		RefugeBaseURL: env("REFUGE_BASE_URL", ""),
		RefugeRetries: envInt("REFUGE_RETRIES", 0),
		RefugeTimeout: envSeconds("REFUGE_TIMEOUT_S", 8*time.Second),

		DirectionsAPIKey:  env("DIRECTIONS_API_KEY", placesKey),
		DirectionsBaseURL: env("DIRECTIONS_BASE_URL", ""),

		Store:        parseStore(env("STORE_BACKEND", "memory")),
		PostgresDSN:  utils.BuildPostgresDSNFromEnv(),
		MongoURI:     env("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:      env("MONGO_DB", "restroom"),
		EnsureSchema: envBool("ENSURE_SCHEMA", true),

		CacheTTL:      envSeconds("CACHE_TTL_S", 5*time.Minute),
		CacheCapacity: envInt("CACHE_CAPACITY", 1024),
		RedisCache:    envBool("CACHE_REDIS", false),
		Redis:         utils.RedisConfigFromEnv(),

		GeoIPPath: env("GEOIP_DB_PATH", ""),

		RateLimitQPS:        envInt("RATE_LIMIT_QPS", 0),
		DefaultRadiusMeters: envInt("DEFAULT_RADIUS_M", 2000),
		MoveThresholdMeters: envFloat("MOVE_THRESHOLD_M", 25),
	}
}

func parseStore(s string) StoreBackend {
	switch StoreBackend(strings.ToLower(s)) {
	case StorePostgres:
		return StorePostgres
	case StoreMongo, "mongodb":
		return StoreMongo
	}
	return StoreMemory
}

func env(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func envInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return def
}

func envFloat(k string, def float64) float64 {
	if v := os.Getenv(k); v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
	}
	return def
}

func envBool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return def
}

func envSeconds(k string, def time.Duration) time.Duration {
	if n := envInt(k, -1); n > 0 {
		return time.Duration(n) * time.Second
	}
	return def
}
