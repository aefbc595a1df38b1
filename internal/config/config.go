package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	ConfigPathEnv         = "FEEDPIPE_CONFIG"
	dbDriverEnv           = "FEEDPIPE_DB_DRIVER"
	dbDSNEnv              = "FEEDPIPE_DB_DSN"
	redisAddrEnv          = "FEEDPIPE_REDIS_ADDR"
	badgerPathEnv         = "FEEDPIPE_BADGER_PATH"
	addrEnv               = "FEEDPIPE_ADDR"
	logLevelEnv           = "FEEDPIPE_LOG_LEVEL"
	classifierEndpointEnv = "FEEDPIPE_CLASSIFIER_ENDPOINT"
	classifierModelEnv    = "FEEDPIPE_CLASSIFIER_MODEL"
	classifierAPIKeyEnv   = "FEEDPIPE_CLASSIFIER_API_KEY"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverHybrid   = "hybrid"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Storage    StorageConfig    `yaml:"storage"`
	Fetch      FetchConfig      `yaml:"fetch"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Worker     WorkerConfig     `yaml:"worker"`
	Schedule   ScheduleConfig   `yaml:"schedule"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
}

// StorageConfig selects the backend. DSN applies to postgres and sqlite;
// RedisAddr and BadgerPath apply to hybrid.
type StorageConfig struct {
	Driver     string `yaml:"driver"`
	DSN        string `yaml:"dsn"`
	RedisAddr  string `yaml:"redisAddr"`
	BadgerPath string `yaml:"badgerPath"`
}

// FetchConfig.Timeout of zero keeps the transport default (no deadline).
type FetchConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

// ClassifierConfig points at an OpenAI-compatible API. An empty endpoint
// disables the classifier and every article gets the fallback label.
type ClassifierConfig struct {
	Endpoint string        `yaml:"endpoint"`
	Model    string        `yaml:"model"`
	APIKey   string        `yaml:"apiKey"`
	Timeout  time.Duration `yaml:"timeout"`
}

type WorkerConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
	Batch    int           `yaml:"batch"`
}

// ScheduleConfig.Interval of zero disables scheduled runs.
type ScheduleConfig struct {
	Interval time.Duration `yaml:"interval"`
}

type LoggingConfig struct {
	Level      string `yaml:"level"`
	Encoding   string `yaml:"encoding"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"maxSizeMB"`
	MaxBackups int    `yaml:"maxBackups"`
	MaxAgeDays int    `yaml:"maxAgeDays"`
}

func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:         ":8080",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
		},
		Storage: StorageConfig{
			Driver:    DriverSQLite,
			DSN:       "data/feedpipe.db",
			RedisAddr: "localhost:6379",
		},
		Classifier: ClassifierConfig{
			Model:   "gpt-4o-mini",
			Timeout: 20 * time.Second,
		},
		Worker: WorkerConfig{
			Interval: time.Minute,
			Batch:    50,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Encoding:   "console",
			MaxSizeMB:  50,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// Load reads the YAML file at path (or $FEEDPIPE_CONFIG when path is empty)
// over the defaults, then applies environment overrides. A missing path is
// not an error; an unreadable or invalid file is.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(ConfigPathEnv)
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		// Fields absent from the file keep their defaults.
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	overrides := map[string]*string{
		dbDriverEnv:           &c.Storage.Driver,
		dbDSNEnv:              &c.Storage.DSN,
		redisAddrEnv:          &c.Storage.RedisAddr,
		badgerPathEnv:         &c.Storage.BadgerPath,
		addrEnv:               &c.Server.Addr,
		logLevelEnv:           &c.Logging.Level,
		classifierEndpointEnv: &c.Classifier.Endpoint,
		classifierModelEnv:    &c.Classifier.Model,
		classifierAPIKeyEnv:   &c.Classifier.APIKey,
	}
	for env, dst := range overrides {
		if v := os.Getenv(env); v != "" {
			*dst = v
		}
	}
}

func (c Config) Validate() error {
	switch c.Storage.Driver {
	case DriverPostgres, DriverSQLite:
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage.dsn is required for driver %q", c.Storage.Driver)
		}
	case DriverHybrid:
		if c.Storage.RedisAddr == "" {
			return fmt.Errorf("storage.redisAddr is required for driver %q", DriverHybrid)
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}

	if c.Fetch.Timeout < 0 {
		return fmt.Errorf("fetch.timeout must not be negative")
	}
	if c.Schedule.Interval < 0 {
		return fmt.Errorf("schedule.interval must not be negative")
	}
	return nil
}
