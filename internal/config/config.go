package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// ListenAddr is the address the HTTP API binds to
	ListenAddr string `yaml:"listen_addr"`

	// DBPath is where the job record database lives
	DBPath string `yaml:"db_path"`

	// QueueDSN is the Postgres connection string for the work-order queue
	QueueDSN string `yaml:"queue_dsn"`

	// S3 holds the blob store connection settings
	S3 S3Config `yaml:"s3"`

	// SubmitTimeout bounds the whole submission operation
	SubmitTimeout time.Duration `yaml:"submit_timeout"`

	// StatusTimeout bounds a single status reconciliation, including the
	// blob listing
	StatusTimeout time.Duration `yaml:"status_timeout"`

	// DownloadTTL is how long a presigned download URL stays valid
	DownloadTTL time.Duration `yaml:"download_ttl"`

	// ListingCap limits how many blob entries a status poll inspects
	ListingCap int `yaml:"listing_cap"`

	// LogLevel is one of debug, info, warn, error
	LogLevel string `yaml:"log_level"`

	// LogFormat is "text" or "json"
	LogFormat string `yaml:"log_format"`
}

// S3Config describes an S3-compatible blob store endpoint.
type S3Config struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		ListenAddr:    ":8080",
		DBPath:        "data/jobs.db",
		QueueDSN:      "",
		SubmitTimeout: 10 * time.Second,
		StatusTimeout: 5 * time.Second,
		DownloadTTL:   15 * time.Minute,
		ListingCap:    200,
		LogLevel:      "info",
		LogFormat:     "text",
		S3: S3Config{
			Region: "us-east-1",
			UseSSL: true,
		},
	}
}

// Load reads config from a YAML file, applying defaults for missing values
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// No config file - use defaults plus environment
			cfg.applyEnv()
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	return cfg, nil
}

// applyEnv overrides settings from the environment. Environment wins over
// the file so container deployments can keep credentials out of the config.
func (c *Config) applyEnv() {
	if v := os.Getenv("QUEUE_DSN"); v != "" {
		c.QueueDSN = v
	}
	if v := os.Getenv("S3_ENDPOINT"); v != "" {
		c.S3.Endpoint = v
	}
	if v := os.Getenv("S3_ACCESS_KEY"); v != "" {
		c.S3.AccessKey = v
	}
	if v := os.Getenv("S3_SECRET_KEY"); v != "" {
		c.S3.SecretKey = v
	}
	if v := os.Getenv("S3_BUCKET"); v != "" {
		c.S3.Bucket = v
	}
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		c.ListenAddr = v
	}
}

func (c *Config) applyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = ":8080"
	}
	if c.DBPath == "" {
		c.DBPath = "data/jobs.db"
	}
	if c.SubmitTimeout <= 0 {
		c.SubmitTimeout = 10 * time.Second
	}
	if c.StatusTimeout <= 0 {
		c.StatusTimeout = 5 * time.Second
	}
	if c.DownloadTTL <= 0 {
		c.DownloadTTL = 15 * time.Minute
	}
	if c.ListingCap <= 0 {
		c.ListingCap = 200
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "text"
	}
	if c.S3.Region == "" {
		c.S3.Region = "us-east-1"
	}
}

// Save writes the config to a YAML file
func (c *Config) Save(path string) error {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
