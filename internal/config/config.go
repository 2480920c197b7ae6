package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Store   StoreConfig   `mapstructure:"store"`
	Storage StorageConfig `mapstructure:"storage"`
	Voting  VotingConfig  `mapstructure:"voting"`
	Events  EventsConfig  `mapstructure:"events"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

type ServerConfig struct {
	Port           int        `mapstructure:"port"`
	Mode           string     `mapstructure:"mode"`
	MaxUploadBytes int64      `mapstructure:"max_upload_bytes"`
	CORS           CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	AllowAllOrigins bool     `mapstructure:"allow_all_origins"`
}

// StoreConfig selects where the eligibility and meme documents live.
// Backend is one of: file, sqlite, postgres, redis, mongo, object.
type StoreConfig struct {
	Backend  string            `mapstructure:"backend"`
	File     FileStoreConfig   `mapstructure:"file"`
	Database DatabaseConfig    `mapstructure:"database"`
	Redis    RedisConfig       `mapstructure:"redis"`
	Mongo    MongoConfig       `mapstructure:"mongo"`
	Object   ObjectStoreConfig `mapstructure:"object"`
}

type FileStoreConfig struct {
	Dir string `mapstructure:"dir"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	Path            string        `mapstructure:"path"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// DSN builds the driver-specific connection string.
func (c *DatabaseConfig) DSN() string {
	if c.Driver == "postgres" {
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
	}
	return c.Path
}

type RedisConfig struct {
	URL       string `mapstructure:"url"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

type MongoConfig struct {
	URI        string `mapstructure:"uri"`
	Database   string `mapstructure:"database"`
	Collection string `mapstructure:"collection"`
}

type ObjectStoreConfig struct {
	Prefix string `mapstructure:"prefix"`
}

// StorageConfig configures where uploaded images go.
// Type is one of: local, s3, r2, s3compatible, minio.
type StorageConfig struct {
	Type      string `mapstructure:"type"`
	LocalDir  string `mapstructure:"local_dir"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	PublicURL string `mapstructure:"public_url"`
}

// IsLocal reports whether images resolve to the local disk.
func (c *StorageConfig) IsLocal() bool {
	return c.Type == "local" || (c.Type == "" && c.Endpoint == "")
}

type VotingConfig struct {
	VoteLimit   int `mapstructure:"vote_limit"`
	CreateLimit int `mapstructure:"create_limit"`
}

type EventsConfig struct {
	Kafka KafkaConfig `mapstructure:"kafka"`
	Live  LiveConfig  `mapstructure:"live"`
}

type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type LiveConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

func Load(configPath string) (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Bind environment variables explicitly for deployment-provided values
	v.BindEnv("server.port", "PORT")
	v.BindEnv("store.backend", "STORE_BACKEND")
	v.BindEnv("store.redis.url", "REDIS_URL")
	v.BindEnv("store.mongo.uri", "MONGO_URI")
	v.BindEnv("store.database.password", "DATABASE_PASSWORD")
	v.BindEnv("storage.access_key", "STORAGE_ACCESS_KEY")
	v.BindEnv("storage.secret_key", "STORAGE_SECRET_KEY")
	v.BindEnv("storage.public_url", "STORAGE_PUBLIC_URL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.max_upload_bytes", 5*1024*1024)
	v.SetDefault("server.cors.allow_all_origins", false)
	v.SetDefault("server.cors.allowed_origins", []string{"http://localhost:3000", "https://*.vercel.app"})
	v.SetDefault("store.backend", "file")
	v.SetDefault("store.file.dir", "./data")
	v.SetDefault("store.database.driver", "sqlite")
	v.SetDefault("store.database.path", "./data/memevote.db")
	v.SetDefault("store.database.port", 5432)
	v.SetDefault("store.database.sslmode", "disable")
	v.SetDefault("store.database.max_idle_conns", 5)
	v.SetDefault("store.database.max_open_conns", 10)
	v.SetDefault("store.database.conn_max_lifetime", time.Hour)
	v.SetDefault("store.database.auto_migrate", true)
	v.SetDefault("store.redis.url", "redis://localhost:6379/0")
	v.SetDefault("store.redis.key_prefix", "memevote:")
	v.SetDefault("store.mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("store.mongo.database", "memevote")
	v.SetDefault("store.mongo.collection", "documents")
	v.SetDefault("store.object.prefix", "documents/")
	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.local_dir", "./uploads")
	v.SetDefault("storage.bucket", "memevote")
	v.SetDefault("voting.vote_limit", 2)
	v.SetDefault("voting.create_limit", 1)
	v.SetDefault("events.kafka.enabled", false)
	v.SetDefault("events.kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("events.kafka.topic", "memevote-events")
	v.SetDefault("events.live.enabled", true)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

// Validate checks values that would otherwise fail late at runtime.
func (c *Config) Validate() error {
	if c.Voting.VoteLimit < 1 {
		return fmt.Errorf("voting.vote_limit must be positive, got %d", c.Voting.VoteLimit)
	}
	if c.Voting.CreateLimit < 1 {
		return fmt.Errorf("voting.create_limit must be positive, got %d", c.Voting.CreateLimit)
	}
	switch c.Store.Backend {
	case "file", "sqlite", "postgres", "redis", "mongo", "object":
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if c.Store.Backend == "object" && c.Storage.IsLocal() {
		return fmt.Errorf("store.backend object needs remote object storage; use store.backend file for local disk")
	}
	if c.Events.Kafka.Enabled && len(c.Events.Kafka.Brokers) == 0 {
		return fmt.Errorf("events.kafka.brokers is required when kafka is enabled")
	}
	return nil
}
