// Package config loads and validates labelworker configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all worker configuration knobs loaded via Viper.
type Config struct {
	Extract ExtractConfig `mapstructure:"extract"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Render  RenderConfig  `mapstructure:"render"`
	Imaging ImagingConfig `mapstructure:"imaging"`
	Storage StorageConfig `mapstructure:"storage"`
	DB      DBConfig      `mapstructure:"db"`
	PubSub  PubSubConfig  `mapstructure:"pubsub"`
	Job     JobConfig     `mapstructure:"job"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ExtractConfig governs URL extraction from recall summaries.
type ExtractConfig struct {
	// Origin resolves root-relative hrefs found in summary markup.
	Origin string `mapstructure:"origin"`
}

// HTTPConfig configures the document fetcher.
type HTTPConfig struct {
	UserAgent         string `mapstructure:"user_agent"`
	TimeoutSeconds    int    `mapstructure:"timeout_seconds"`
	MaxAttempts       int    `mapstructure:"max_attempts"`
	RetryDelaySeconds int    `mapstructure:"retry_delay_seconds"`
}

// RenderConfig configures PDF page rasterization.
type RenderConfig struct {
	Enabled bool `mapstructure:"enabled"`
	DPI     int  `mapstructure:"dpi"`
}

// ImagingConfig configures web-size image normalization.
type ImagingConfig struct {
	Enabled  bool `mapstructure:"enabled"`
	MaxWidth int  `mapstructure:"max_width"`
	Quality  int  `mapstructure:"quality"`
}

// StorageConfig selects and configures the artifact object store.
type StorageConfig struct {
	// Backend is "gcs" or "local".
	Backend   string `mapstructure:"backend"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	ProjectID string `mapstructure:"project_id"`
	Prefix    string `mapstructure:"prefix"`
	LocalDir  string `mapstructure:"local_dir"`
}

// DBConfig controls access to the recall metadata database.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int    `mapstructure:"max_conns"`
	MinConns int    `mapstructure:"min_conns"`
}

// PubSubConfig holds metadata for completion event publishing. An empty
// topic disables publishing.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// JobConfig governs batch run behavior.
type JobConfig struct {
	Limit        int    `mapstructure:"limit"`
	Window       int    `mapstructure:"window"`
	DelaySeconds int    `mapstructure:"delay_seconds"`
	ScratchDir   string `mapstructure:"scratch_dir"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("LABELWORKER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("extract.origin", "https://www.fsis.usda.gov")
	v.SetDefault("http.timeout_seconds", 30)
	v.SetDefault("http.max_attempts", 3)
	v.SetDefault("http.retry_delay_seconds", 2)
	v.SetDefault("render.enabled", true)
	v.SetDefault("render.dpi", 150)
	v.SetDefault("imaging.enabled", true)
	v.SetDefault("imaging.max_width", 1200)
	v.SetDefault("imaging.quality", 85)
	v.SetDefault("storage.backend", "gcs")
	v.SetDefault("storage.prefix", "labels")
	v.SetDefault("job.limit", 3)
	v.SetDefault("job.window", 200)
	v.SetDefault("job.delay_seconds", 3)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Extract.Origin == "" {
		return fmt.Errorf("extract.origin must be set")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.MaxAttempts <= 0 {
		return fmt.Errorf("http.max_attempts must be > 0")
	}
	if c.Imaging.Enabled && c.Imaging.MaxWidth <= 0 {
		return fmt.Errorf("imaging.max_width must be > 0 when imaging is enabled")
	}
	if c.Imaging.Enabled && (c.Imaging.Quality <= 0 || c.Imaging.Quality > 100) {
		return fmt.Errorf("imaging.quality must be in (0, 100]")
	}
	switch c.Storage.Backend {
	case "gcs":
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket must be set for the gcs backend")
		}
	case "local":
		if c.Storage.LocalDir == "" {
			return fmt.Errorf("storage.local_dir must be set for the local backend")
		}
	default:
		return fmt.Errorf("storage.backend must be gcs or local, got %q", c.Storage.Backend)
	}
	if c.DB.DSN == "" {
		return fmt.Errorf("db.dsn must be set")
	}
	if c.Job.Window <= 0 {
		return fmt.Errorf("job.window must be > 0")
	}
	return nil
}

// HTTPTimeout converts the fetcher timeout config into a duration.
func (c Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// RetryDelay converts the fetcher retry delay config into a duration.
func (c Config) RetryDelay() time.Duration {
	return time.Duration(c.HTTP.RetryDelaySeconds) * time.Second
}

// RecallDelay converts the inter-recall pause config into a duration.
func (c Config) RecallDelay() time.Duration {
	return time.Duration(c.Job.DelaySeconds) * time.Second
}
