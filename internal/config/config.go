package config

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"contentpulse/internal/model"
)

// DefaultPath is where init writes the configuration file.
const DefaultPath = "./contentpulse.yaml"

// Config is the application's configuration model.
// It captures the session owner, platform credentials, storage and runtime settings.
type Config struct {
	Account     AccountConfig     `yaml:"account"`
	Credentials CredentialsConfig `yaml:"credentials"`
	Storage     StorageConfig     `yaml:"storage"`
	Refresh     RefreshConfig     `yaml:"refresh"`
	Logging     LoggingConfig     `yaml:"logging"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	API         APIConfig         `yaml:"api"`
	Collectors  CollectorsConfig  `yaml:"collectors"`
}

type AccountConfig struct {
	OwnerID string `yaml:"ownerId"`
	Name    string `yaml:"name"`
	Email   string `yaml:"email"`
}

type CredentialsConfig struct {
	// YouTube Data API key. If empty, read from env YOUTUBE_API_KEY
	YouTubeAPIKey string `yaml:"youtubeApiKey"`
	// ServiceNow instance, e.g. https://acme.service-now.com, plus basic auth.
	ServiceNowInstance string `yaml:"servicenowInstance"`
	ServiceNowUser     string `yaml:"servicenowUser"`
	ServiceNowPassword string `yaml:"servicenowPassword"`
	// If empty, read LINKEDIN_ACCESS_TOKEN
	LinkedInAccessToken string `yaml:"linkedinAccessToken"`
	// If empty, read X_BEARER_TOKEN
	XBearerToken string `yaml:"xBearerToken"`
	// Reddit public JSON needs only a descriptive user agent.
	RedditUserAgent string `yaml:"redditUserAgent"`
}

type StorageConfig struct {
	Driver      string `yaml:"driver"` // "sqlite" or "postgres"
	DBPath      string `yaml:"dbPath"`
	DatabaseURL string `yaml:"databaseUrl"`
}

type RefreshConfig struct {
	// Limit caps how many recent items a refresh run fetches; 0 means all.
	Limit    int           `yaml:"limit"`
	Interval time.Duration `yaml:"interval"`
}

type LoggingConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

type APIConfig struct {
	Addr string `yaml:"addr"`
}

// RateLimitConfig tunes one platform client. Zero values keep the built-in limits.
type RateLimitConfig struct {
	RPS         float64       `yaml:"rps"`
	Burst       int           `yaml:"burst"`
	MaxAttempts int           `yaml:"maxAttempts"`
	BaseBackoff time.Duration `yaml:"baseBackoff"`
}

// CollectorsConfig holds request limits for the platform APIs. Default applies
// to every platform; Platforms overrides it per platform tag.
type CollectorsConfig struct {
	Default   RateLimitConfig            `yaml:"default"`
	Platforms map[string]RateLimitConfig `yaml:"platforms"`
}

// Default returns a sensible default configuration.
func Default() Config {
	return Config{
		Account:     AccountConfig{OwnerID: "local"},
		Credentials: CredentialsConfig{RedditUserAgent: "contentpulse/1.0"},
		Storage:     StorageConfig{Driver: "sqlite", DBPath: "./contentpulse.db"},
		Refresh:     RefreshConfig{Limit: 5, Interval: 30 * time.Minute},
		Logging:     LoggingConfig{Level: "info"},
		API:         APIConfig{Addr: ":8080"},
	}
}

// LoadEnvFiles loads .env style files into the process environment.
// Missing files are skipped; variables already set are not overridden.
func LoadEnvFiles(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env.local", ".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return err
		}
	}
	return nil
}

// ResolveEnv fills in config fields from environment variables if not set.
func (c *Config) ResolveEnv() {
	setIfEmpty(&c.Credentials.YouTubeAPIKey, "YOUTUBE_API_KEY")
	setIfEmpty(&c.Credentials.ServiceNowInstance, "SERVICENOW_INSTANCE")
	setIfEmpty(&c.Credentials.ServiceNowUser, "SERVICENOW_USER")
	setIfEmpty(&c.Credentials.ServiceNowPassword, "SERVICENOW_PASSWORD")
	setIfEmpty(&c.Credentials.LinkedInAccessToken, "LINKEDIN_ACCESS_TOKEN")
	setIfEmpty(&c.Credentials.XBearerToken, "X_BEARER_TOKEN")
	setIfEmpty(&c.Storage.DatabaseURL, "DATABASE_URL")
	setIfEmpty(&c.Metrics.Addr, "METRICS_ADDR")
	setIfEmpty(&c.Logging.Level, "LOG_LEVEL")
	if c.Storage.Driver == "" {
		if c.Storage.DatabaseURL != "" {
			c.Storage.Driver = "postgres"
		} else {
			c.Storage.Driver = "sqlite"
		}
	}
	def := &c.Collectors.Default
	if v := os.Getenv("CONTENTPULSE_API_RPS"); v != "" && def.RPS == 0 {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			def.RPS = f
		}
	}
	setIntIfZero(&def.Burst, "CONTENTPULSE_API_BURST")
	setIntIfZero(&def.MaxAttempts, "CONTENTPULSE_API_MAX_ATTEMPTS")
	if def.BaseBackoff == 0 {
		var ms int
		setIntIfZero(&ms, "CONTENTPULSE_API_BASE_BACKOFF_MS")
		def.BaseBackoff = time.Duration(ms) * time.Millisecond
	}
	if v := os.Getenv("REFRESH_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Refresh.Limit = n
		}
	}
}

func setIfEmpty(dst *string, env string) {
	if *dst == "" {
		*dst = os.Getenv(env)
	}
}

func setIntIfZero(dst *int, env string) {
	if *dst != 0 {
		return
	}
	if n, err := strconv.Atoi(os.Getenv(env)); err == nil && n > 0 {
		*dst = n
	}
}

// RateLimits resolves the per-platform limit overrides. A platform entry
// inherits unset fields from the default section; platforms named by
// neither are absent. Unknown platform keys are ignored.
func (c Config) RateLimits() map[model.Platform]RateLimitConfig {
	out := map[model.Platform]RateLimitConfig{}
	def := c.Collectors.Default
	if def != (RateLimitConfig{}) {
		for _, p := range model.Platforms() {
			out[p] = def
		}
	}
	for k, l := range c.Collectors.Platforms {
		p, err := model.ParsePlatform(k)
		if err != nil {
			continue
		}
		if l.RPS == 0 {
			l.RPS = def.RPS
		}
		if l.Burst == 0 {
			l.Burst = def.Burst
		}
		if l.MaxAttempts == 0 {
			l.MaxAttempts = def.MaxAttempts
		}
		if l.BaseBackoff == 0 {
			l.BaseBackoff = def.BaseBackoff
		}
		out[p] = l
	}
	return out
}

// PlatformCredentials converts the credential section to per-platform blobs.
// Platforms with nothing configured are omitted.
func (c Config) PlatformCredentials() model.Credentials {
	out := model.Credentials{}
	put := func(p model.Platform, kv map[string]string) {
		blob := map[string]string{}
		for k, v := range kv {
			if v != "" {
				blob[k] = v
			}
		}
		if len(blob) > 0 {
			out[p] = blob
		}
	}
	cr := c.Credentials
	put(model.PlatformYouTube, map[string]string{"apiKey": cr.YouTubeAPIKey})
	put(model.PlatformServiceNow, map[string]string{
		"instance": cr.ServiceNowInstance, "username": cr.ServiceNowUser, "password": cr.ServiceNowPassword,
	})
	put(model.PlatformLinkedIn, map[string]string{"accessToken": cr.LinkedInAccessToken})
	put(model.PlatformTwitter, map[string]string{"bearerToken": cr.XBearerToken})
	put(model.PlatformReddit, map[string]string{"userAgent": cr.RedditUserAgent})
	return out
}

// Owner returns the configured session owner.
func (c Config) Owner() model.Owner {
	return model.Owner{ID: c.Account.OwnerID, Name: c.Account.Name, Email: c.Account.Email}
}

// Load reads YAML config from path.
func Load(path string) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, err
	}
	cfg.ResolveEnv()
	return cfg, nil
}

// Save writes YAML config to path, creating directories as needed.
func Save(path string, cfg Config) error {
	if path == "" {
		return errors.New("empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o600)
}
