package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	AppEnv        string
	HTTPAddr      string
	RedisAddr     string
	RedisPassword string
	DataDir       string

	// Remote extraction sidecar (delegated lane).
	RemoteBaseURL string
	RemoteTimeout time.Duration

	// Per-lane worker pool sizes.
	BrowserConcurrency int
	RemoteConcurrency  int

	// Queue delivery policy: total deliveries (first one included) before
	// an item is archived, base delay for exponential backoff between them.
	QueueMaxAttempts int
	QueueRetryBase   time.Duration

	// Timeout applied to each browser primitive.
	ActionTimeout time.Duration

	SupabaseURL        string
	SupabaseServiceKey string
	SupabaseBucket     string
}

// fileConfig mirrors the overridable subset of Config for the optional
// CONFIG_FILE yaml overlay.
type fileConfig struct {
	HTTPAddr           string `yaml:"http_addr"`
	RedisAddr          string `yaml:"redis_addr"`
	RedisPassword      string `yaml:"redis_password"`
	DataDir            string `yaml:"data_dir"`
	RemoteBaseURL      string `yaml:"remote_base_url"`
	RemoteTimeoutSecs  int    `yaml:"remote_timeout_seconds"`
	BrowserConcurrency int    `yaml:"browser_concurrency"`
	RemoteConcurrency  int    `yaml:"remote_concurrency"`
	QueueMaxAttempts   int    `yaml:"queue_max_attempts"`
	QueueRetryBaseSecs int    `yaml:"queue_retry_base_seconds"`
	ActionTimeoutSecs  int    `yaml:"action_timeout_seconds"`
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func Load() Config {
	cfg := Config{
		AppEnv:        getenv("APP_ENV", "development"),
		HTTPAddr:      getenv("HTTP_ADDR", ":8090"),
		RedisAddr:     getenv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		DataDir:       getenv("DATA_DIR", "./data"),

		RemoteBaseURL: getenv("REMOTE_BASE_URL", "http://127.0.0.1:8000/crawl4ai"),
		RemoteTimeout: time.Duration(getenvInt("REMOTE_TIMEOUT_SECONDS", 60)) * time.Second,

		BrowserConcurrency: getenvInt("BROWSER_CONCURRENCY", 4),
		RemoteConcurrency:  getenvInt("REMOTE_CONCURRENCY", 10),

		QueueMaxAttempts: getenvInt("QUEUE_MAX_ATTEMPTS", 3),
		QueueRetryBase:   time.Duration(getenvInt("QUEUE_RETRY_BASE_SECONDS", 5)) * time.Second,

		ActionTimeout: time.Duration(getenvInt("ACTION_TIMEOUT_SECONDS", 30)) * time.Second,

		SupabaseURL:        os.Getenv("SUPABASE_URL"),
		SupabaseServiceKey: os.Getenv("SUPABASE_SERVICE_ROLE_KEY"),
		SupabaseBucket:     getenv("SUPABASE_STORAGE_BUCKET", "assets"),
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			panic(fmt.Errorf("config file %s: %w", path, err))
		}
	}

	if cfg.RedisAddr == "" {
		panic(fmt.Errorf("REDIS_ADDR is required"))
	}
	return cfg
}

func (c *Config) applyFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var fc fileConfig
	if err := yaml.Unmarshal(b, &fc); err != nil {
		return err
	}
	if fc.HTTPAddr != "" {
		c.HTTPAddr = fc.HTTPAddr
	}
	if fc.RedisAddr != "" {
		c.RedisAddr = fc.RedisAddr
	}
	if fc.RedisPassword != "" {
		c.RedisPassword = fc.RedisPassword
	}
	if fc.DataDir != "" {
		c.DataDir = fc.DataDir
	}
	if fc.RemoteBaseURL != "" {
		c.RemoteBaseURL = fc.RemoteBaseURL
	}
	if fc.RemoteTimeoutSecs > 0 {
		c.RemoteTimeout = time.Duration(fc.RemoteTimeoutSecs) * time.Second
	}
	if fc.BrowserConcurrency > 0 {
		c.BrowserConcurrency = fc.BrowserConcurrency
	}
	if fc.RemoteConcurrency > 0 {
		c.RemoteConcurrency = fc.RemoteConcurrency
	}
	if fc.QueueMaxAttempts > 0 {
		c.QueueMaxAttempts = fc.QueueMaxAttempts
	}
	if fc.QueueRetryBaseSecs > 0 {
		c.QueueRetryBase = time.Duration(fc.QueueRetryBaseSecs) * time.Second
	}
	if fc.ActionTimeoutSecs > 0 {
		c.ActionTimeout = time.Duration(fc.ActionTimeoutSecs) * time.Second
	}
	return nil
}
