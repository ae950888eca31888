package sitegen

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/eringen/sitegen/renderer"
)

// SiteConfig holds all configuration for a sitegen server.
type SiteConfig struct {
	Name string `yaml:"name"` // Shown on the form page (default "Site Generator")
	Addr string `yaml:"addr"` // Listen address (default ":3000")

	TemplatesDir string `yaml:"templates_dir"` // Template bodies and descriptors (default "templates")
	SiteDir      string `yaml:"site_dir"`      // Managed output directory (default "site")
	ArchivePath  string `yaml:"archive_path"`  // Packaged archive (default "site.zip")
	StaticDir    string `yaml:"static_dir"`    // User static assets served under /public (default "public")
	DatabasePath string `yaml:"database_path"` // SQLite path for build history (default "data/sitegen.db")

	Selector           string `yaml:"selector"`            // Form field naming the template (default "template")
	StrictPlaceholders bool   `yaml:"strict_placeholders"` // Reject renders that leave placeholders unresolved

	OperationTimeout  time.Duration `yaml:"operation_timeout"`   // Bound on a generate/upload/delete (default 30s)
	MaxUploadSize     int64         `yaml:"max_upload_size"`     // Per-file upload limit in bytes (default 32MB)
	GenerateRateLimit int           `yaml:"generate_rate_limit"` // Generate requests per IP per minute (default 30)
	HistoryCacheTTL   time.Duration `yaml:"history_cache_ttl"`   // Build history cache TTL (default 1min)

	AdminPassword string `yaml:"admin_password"` // Optional: guards upload and delete
	SessionSecret string `yaml:"session_secret"` // Required when AdminPassword is set
	CookieSecure  bool   `yaml:"cookie_secure"`  // Set true for HTTPS
}

func (c *SiteConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "Site Generator"
	}
	if c.Addr == "" {
		c.Addr = ":3000"
	}
	if c.TemplatesDir == "" {
		c.TemplatesDir = "templates"
	}
	if c.SiteDir == "" {
		c.SiteDir = "site"
	}
	if c.ArchivePath == "" {
		c.ArchivePath = "site.zip"
	}
	if c.StaticDir == "" {
		c.StaticDir = "public"
	}
	if c.DatabasePath == "" {
		c.DatabasePath = "data/sitegen.db"
	}
	if c.Selector == "" {
		c.Selector = renderer.DefaultSelector
	}
	if c.OperationTimeout == 0 {
		c.OperationTimeout = 30 * time.Second
	}
	if c.MaxUploadSize == 0 {
		c.MaxUploadSize = 32 << 20
	}
	if c.GenerateRateLimit == 0 {
		c.GenerateRateLimit = 30
	}
	if c.HistoryCacheTTL == 0 {
		c.HistoryCacheTTL = time.Minute
	}
}

// LoadConfig reads a YAML config file. A missing file yields an empty config
// (defaults are applied by New) without error.
func LoadConfig(path string) (SiteConfig, error) {
	var cfg SiteConfig
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("sitegen: read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("sitegen: parse config %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides config values with SITEGEN_* environment variables.
func (c *SiteConfig) ApplyEnv() error {
	c.Name = EnvOr("SITEGEN_NAME", c.Name)
	c.Addr = EnvOr("SITEGEN_ADDR", c.Addr)
	c.TemplatesDir = EnvOr("SITEGEN_TEMPLATES_DIR", c.TemplatesDir)
	c.SiteDir = EnvOr("SITEGEN_SITE_DIR", c.SiteDir)
	c.ArchivePath = EnvOr("SITEGEN_ARCHIVE_PATH", c.ArchivePath)
	c.StaticDir = EnvOr("SITEGEN_STATIC_DIR", c.StaticDir)
	c.DatabasePath = EnvOr("SITEGEN_DATABASE_PATH", c.DatabasePath)
	c.AdminPassword = EnvOr("SITEGEN_ADMIN_PASSWORD", c.AdminPassword)
	c.SessionSecret = EnvOr("SITEGEN_SESSION_SECRET", c.SessionSecret)
	if v := os.Getenv("SITEGEN_COOKIE_SECURE"); v != "" {
		c.CookieSecure = v == "true" || v == "1"
	}
	if v := os.Getenv("SITEGEN_OPERATION_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("sitegen: SITEGEN_OPERATION_TIMEOUT: %w", err)
		}
		c.OperationTimeout = d
	}
	return nil
}

// Option configures additional App behavior.
type Option func(*App)

// WithCustomRoutes registers additional routes on the Echo instance.
// The callback receives the App before the server starts.
func WithCustomRoutes(fn func(*App)) Option {
	return func(a *App) {
		a.customRoutes = append(a.customRoutes, fn)
	}
}

// WithStore uses an already opened Store instead of opening DatabasePath.
func WithStore(s *Store) Option {
	return func(a *App) {
		a.Store = s
	}
}
