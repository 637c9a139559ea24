// Package config loads livedocs configuration from YAML.
//
// Options that accept several shapes (cover_page, not_found_page, name_link,
// load_sidebar, alias) are decoded into tagged unions when the file is read,
// so a malformed shape is reported once at load time instead of at every render.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	lderrors "git.home.luguber.info/inful/livedocs/internal/errors"
)

// Config is the root configuration document.
type Config struct {
	Site    Site          `yaml:"site"`
	Source  SourceConfig  `yaml:"source"`
	Server  ServerConfig  `yaml:"server"`
	Cache   CacheConfig   `yaml:"cache"`
	Prewarm PrewarmConfig `yaml:"prewarm"`
	Retry   RetryConfig   `yaml:"retry"`
	Logging LoggingConfig `yaml:"logging"`
}

// Site holds the options that shape how pages are resolved and rendered.
type Site struct {
	Name     string   `yaml:"name"`
	NameLink NameLink `yaml:"name_link"`
	Logo     string   `yaml:"logo"`
	Repo     string   `yaml:"repo"`
	// Origin is the scheme://host pages are served from. Content fetched from
	// any other origin is sanitized before insertion.
	Origin       string     `yaml:"origin"`
	BasePath     string     `yaml:"base_path"`
	Homepage     string     `yaml:"homepage"`
	Ext          string     `yaml:"ext"`
	Alias        Aliases    `yaml:"alias"`
	RouterMode   RouterMode `yaml:"router_mode"`
	RelativePath bool       `yaml:"relative_path"`

	LoadSidebar  FileToggle   `yaml:"load_sidebar"`
	LoadNavbar   FileToggle   `yaml:"load_navbar"`
	CoverPage    CoverPage    `yaml:"cover_page"`
	OnlyCover    bool         `yaml:"only_cover"`
	NotFoundPage NotFoundPage `yaml:"not_found_page"`

	FallbackLanguages []string          `yaml:"fallback_languages"`
	RequestHeaders    map[string]string `yaml:"request_headers"`

	MaxLevel      int           `yaml:"max_level"`
	SubMaxLevel   int           `yaml:"sub_max_level"`
	ExecuteScript *bool         `yaml:"execute_script"`
	AutoHeader    bool          `yaml:"auto_header"`
	HideSidebar   bool          `yaml:"hide_sidebar"`
	FormatUpdated FormatUpdated `yaml:"format_updated"`
	FrontMatter   bool          `yaml:"front_matter"`
}

// SourceConfig selects where page fragments are fetched from.
type SourceConfig struct {
	Type    SourceType    `yaml:"type"`
	URL     string        `yaml:"url"`
	Dir     string        `yaml:"dir"`
	Git     GitSource     `yaml:"git"`
	Timeout time.Duration `yaml:"timeout"`
	// CacheResponses keeps successful responses in memory for the process lifetime.
	CacheResponses *bool `yaml:"cache_responses"`
}

// GitSource describes a repository cloned into memory and served as content.
type GitSource struct {
	URL      string `yaml:"url"`
	Branch   string `yaml:"branch"`
	Path     string `yaml:"path"`
	Username string `yaml:"username"`
	Token    string `yaml:"token"`
}

// ServerConfig configures the render server.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	Metrics         *bool         `yaml:"metrics"`
	WatchConfig     bool          `yaml:"watch_config"`
}

// CacheConfig selects the shared embed cache backend.
type CacheConfig struct {
	Backend CacheBackend  `yaml:"backend"`
	TTL     time.Duration `yaml:"ttl"`
	Redis   RedisCache    `yaml:"redis"`
	NATS    NATSCache     `yaml:"nats"`
	SQLite  SQLiteCache   `yaml:"sqlite"`
}

type RedisCache struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

type NATSCache struct {
	URL    string `yaml:"url"`
	Bucket string `yaml:"bucket"`
}

type SQLiteCache struct {
	Path string `yaml:"path"`
}

// PrewarmConfig schedules periodic rendering of known routes.
type PrewarmConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Interval      time.Duration `yaml:"interval"`
	Routes        []string      `yaml:"routes"`
	RefreshSource bool          `yaml:"refresh_source"`
}

// RetryConfig is the backoff policy for source refreshes and cache backend connects.
type RetryConfig struct {
	Backoff    RetryBackoffMode `yaml:"backoff"`
	Initial    time.Duration    `yaml:"initial"`
	Max        time.Duration    `yaml:"max"`
	MaxRetries int              `yaml:"max_retries"`
}

type LoggingConfig struct {
	Level  LogLevel  `yaml:"level"`
	Format LogFormat `yaml:"format"`
}

// Load reads configuration from path. Variables from .env files are loaded
// first and ${VAR} references are expanded before parsing.
func Load(path string) (*Config, error) {
	loadEnvFiles(filepath.Dir(path))

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, lderrors.ConfigError("configuration file not found").WithContext("path", path).Build()
		}
		return nil, lderrors.WrapError(err, lderrors.CategoryConfig, "failed to read config file").
			WithContext("path", path).Fatal().Build()
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	if cfg.Source.Type == SourceDir && cfg.Source.Dir != "" && !filepath.IsAbs(cfg.Source.Dir) {
		cfg.Source.Dir = filepath.Join(filepath.Dir(path), cfg.Source.Dir)
	}
	return cfg, nil
}

// Parse decodes, defaults and validates a configuration document.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, lderrors.WrapError(err, lderrors.CategoryConfig, "failed to unmarshal config").Fatal().Build()
	}
	if err := cfg.validateEnums(); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults fills zero values and normalizes enums.
func (c *Config) ApplyDefaults() {
	s := &c.Site
	if s.Ext == "" {
		s.Ext = ".md"
	} else if !strings.HasPrefix(s.Ext, ".") {
		s.Ext = "." + s.Ext
	}
	if s.Homepage == "" {
		s.Homepage = "README" + s.Ext
	}
	s.RouterMode = routerModeNormalizer.Normalize(string(s.RouterMode))
	if s.MaxLevel <= 0 {
		s.MaxLevel = 6
	}

	c.Source.Type = sourceTypeNormalizer.Normalize(string(c.Source.Type))
	if c.Source.Timeout <= 0 {
		c.Source.Timeout = 15 * time.Second
	}
	if c.Source.Git.Branch == "" {
		c.Source.Git.Branch = "main"
	}
	if s.Origin == "" && c.Source.Type == SourceHTTP {
		if u, err := url.Parse(c.Source.URL); err == nil && u.Host != "" {
			s.Origin = u.Scheme + "://" + u.Host
		}
	}

	if c.Server.Addr == "" {
		c.Server.Addr = ":3000"
	}
	if c.Server.ReadTimeout <= 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	if c.Server.WriteTimeout <= 0 {
		c.Server.WriteTimeout = 60 * time.Second
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}

	c.Cache.Backend = cacheBackendNormalizer.Normalize(string(c.Cache.Backend))
	if c.Cache.Redis.Prefix == "" {
		c.Cache.Redis.Prefix = "livedocs:embed:"
	}
	if c.Cache.NATS.Bucket == "" {
		c.Cache.NATS.Bucket = "livedocs-embeds"
	}
	if c.Cache.SQLite.Path == "" {
		c.Cache.SQLite.Path = "livedocs-cache.db"
	}

	if c.Prewarm.Interval <= 0 {
		c.Prewarm.Interval = 10 * time.Minute
	}
	if len(c.Prewarm.Routes) == 0 {
		c.Prewarm.Routes = []string{"/"}
	}

	c.Retry.Backoff = NormalizeRetryBackoff(string(c.Retry.Backoff))
	if c.Retry.Initial <= 0 {
		c.Retry.Initial = time.Second
	}
	if c.Retry.Max <= 0 {
		c.Retry.Max = 30 * time.Second
	}
	if c.Retry.MaxRetries == 0 {
		c.Retry.MaxRetries = 2
	} else if c.Retry.MaxRetries < 0 {
		c.Retry.MaxRetries = 0
	}

	c.Logging.Level = NormalizeLogLevel(string(c.Logging.Level))
	c.Logging.Format = NormalizeLogFormat(string(c.Logging.Format))
}

// Validate checks cross-field requirements after defaults are applied.
func (c *Config) Validate() error {
	switch c.Source.Type {
	case SourceHTTP:
		if c.Source.URL == "" {
			return lderrors.ConfigError("source.url is required for http sources").Build()
		}
		u, err := url.Parse(c.Source.URL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return lderrors.ConfigError("source.url must be an absolute URL").WithContext("url", c.Source.URL).Build()
		}
	case SourceDir:
		if c.Source.Dir == "" {
			return lderrors.ConfigError("source.dir is required for dir sources").Build()
		}
	case SourceGit:
		if c.Source.Git.URL == "" {
			return lderrors.ConfigError("source.git.url is required for git sources").Build()
		}
	}
	if c.Cache.Backend == CacheRedis && c.Cache.Redis.Addr == "" {
		return lderrors.ConfigError("cache.redis.addr is required for the redis backend").Build()
	}
	if c.Cache.Backend == CacheNATS && c.Cache.NATS.URL == "" {
		return lderrors.ConfigError("cache.nats.url is required for the nats backend").Build()
	}
	if c.Site.SubMaxLevel < 0 {
		return lderrors.ValidationError("site.sub_max_level cannot be negative").Build()
	}
	for _, lang := range c.Site.FallbackLanguages {
		if lang == "" || strings.Contains(lang, "/") {
			return lderrors.ValidationError("site.fallback_languages entries must be single path segments").
				WithContext("language", lang).Build()
		}
	}
	return nil
}

// validateEnums rejects unknown enum spellings before defaults replace them.
func (c *Config) validateEnums() error {
	checks := []error{
		routerModeNormalizer.Validate(string(c.Site.RouterMode)),
		sourceTypeNormalizer.Validate(string(c.Source.Type)),
		cacheBackendNormalizer.Validate(string(c.Cache.Backend)),
		retryBackoffNormalizer.Validate(string(c.Retry.Backoff)),
		logLevelNormalizer.Validate(string(c.Logging.Level)),
		logFormatNormalizer.Validate(string(c.Logging.Format)),
	}
	for _, err := range checks {
		if err != nil {
			return lderrors.WrapError(err, lderrors.CategoryValidation, "invalid configuration value").Fatal().Build()
		}
	}
	return nil
}

// ShouldExecuteScript reports whether inline scripts run after rendering.
// Unset defers to the presence of a view framework.
func (s Site) ShouldExecuteScript(hasViewFramework bool) bool {
	if s.ExecuteScript != nil {
		return *s.ExecuteScript
	}
	return hasViewFramework
}

// ResponseCacheEnabled reports whether the transport keeps successful responses.
func (s SourceConfig) ResponseCacheEnabled() bool {
	return s.CacheResponses == nil || *s.CacheResponses
}

// MetricsEnabled reports whether /metrics is served.
func (s ServerConfig) MetricsEnabled() bool {
	return s.Metrics == nil || *s.Metrics
}

// Init writes an example configuration file.
func Init(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return lderrors.ValidationError("configuration file already exists (use --force to overwrite)").
			WithContext("path", path).Build()
	}
	if err := os.WriteFile(path, []byte(exampleConfig), 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

const exampleConfig = `# livedocs configuration
site:
  name: My Docs
  load_sidebar: true
  load_navbar: false
  cover_page: false
  not_found_page: true
  sub_max_level: 2
  auto_header: true
  format_updated: "YYYY-MM-DD HH:mm"
  fallback_languages: []

source:
  type: http
  url: ${LIVEDOCS_ORIGIN}
  timeout: 15s

server:
  addr: ":3000"

cache:
  backend: memory

prewarm:
  enabled: false
  interval: 10m
  routes: ["/"]

logging:
  level: info
  format: text
`
