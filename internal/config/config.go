package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App       AppConfig       `yaml:"app"`
	Logging   LoggingConfig   `yaml:"logging"`
	Security  SecurityConfig  `yaml:"security"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Dedupe    DedupeConfig    `yaml:"dedupe"`
	Stores    StoresConfig    `yaml:"stores"`
	PubSub    PubSubConfig    `yaml:"pubsub"`
	API       APIConfig       `yaml:"api"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

type AppConfig struct {
	InstanceID       string        `yaml:"instance_id"`
	WindowSeconds    int64         `yaml:"window_seconds"`    // 0 -> 86400
	SnapshotInterval time.Duration `yaml:"snapshot_interval"` // window warm-start saves
	ShutdownTimeout  time.Duration `yaml:"shutdown_timeout"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug|info|warn|error
	Format string `yaml:"format"` // json|console
}

type JWTConfig struct {
	Enabled        bool          `yaml:"enabled"`
	PublicKeyPath  string        `yaml:"public_key_path"`
	PrivateKeyPath string        `yaml:"private_key_path"` // dev signer only
	Audience       string        `yaml:"audience"`
	Issuer         string        `yaml:"issuer"`
	Leeway         time.Duration `yaml:"leeway"`
}

type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

type RateBucketConfig struct {
	RefillPerSec int `yaml:"refill_per_sec"`
	Burst        int `yaml:"burst"`
}

type RateLimitConfig struct {
	Enabled bool             `yaml:"enabled"`
	ByJWT   RateBucketConfig `yaml:"by_jwt"`
	ByIP    RateBucketConfig `yaml:"by_ip"`
}

// IngestConfig points at the NATS subject the chain-scanning host publishes
// trade events to.
type IngestConfig struct {
	Subject string `yaml:"subject"`
	Queue   string `yaml:"queue"` // queue group; empty -> plain subscribe
}

type BloomConfig struct {
	Enabled  bool    `yaml:"enabled"`
	Key      string  `yaml:"key"`
	Capacity int64   `yaml:"capacity"`
	ErrRate  float64 `yaml:"err_rate"`
}

type DedupeConfig struct {
	TTL    time.Duration `yaml:"ttl"`
	Prefix string        `yaml:"prefix"`
	Bloom  BloomConfig   `yaml:"bloom"`
}

type RedisConfig struct {
	Addr         string        `yaml:"addr"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	EntityPrefix string        `yaml:"entity_prefix"`
	SnapshotKey  string        `yaml:"snapshot_key"` // window warm-start blob
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type ClickHouseWriterConfig struct {
	BatchMaxRows     int           `yaml:"batch_max_rows"`
	BatchMaxInterval time.Duration `yaml:"batch_max_interval"`
	MaxRetries       int           `yaml:"max_retries"`
	RetryBackoff     time.Duration `yaml:"retry_backoff"`
}

type ClickHouseConfig struct {
	Enabled bool                   `yaml:"enabled"`
	DSN     string                 `yaml:"dsn"`
	Writer  ClickHouseWriterConfig `yaml:"writer"`
}

type StoresConfig struct {
	Redis      RedisConfig      `yaml:"redis"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
}

type NATSConfig struct {
	URL             string `yaml:"url"`
	BroadcastPrefix string `yaml:"broadcast_prefix"`
}

type PubSubConfig struct {
	NATS NATSConfig `yaml:"nats"`
}

type CORSConfig struct {
	Enabled bool     `yaml:"enabled"`
	Origins []string `yaml:"origins"`
	Methods []string `yaml:"methods"`
	Headers []string `yaml:"headers"`
}

type HTTPConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
	CORS         CORSConfig    `yaml:"cors"`
}

type APIConfig struct {
	HTTP HTTPConfig `yaml:"http"`
}

type PyroscopeConfig struct {
	Enabled    bool              `yaml:"enabled"`
	AppName    string            `yaml:"app_name"`
	ServerAddr string            `yaml:"server_addr"`
	AuthToken  string            `yaml:"auth_token"`
	Tags       map[string]string `yaml:"tags"`
}

type MetricsConfig struct {
	Pyroscope PyroscopeConfig `yaml:"pyroscope"`
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err = yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
