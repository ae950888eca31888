// Package sitegen generates static sites from named templates. A user picks a
// template, fills in its fields, and receives the rendered site packaged as a
// zip archive. The site directory can also be managed directly (list, upload,
// delete).
//
// The HTTP surface is an Echo server; the pipeline itself lives in the
// renderer, packager, sitedir and tmplstore packages and is composed by
// Builder.
package sitegen

import (
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/eringen/sitegen/sitedir"
	"github.com/eringen/sitegen/tmplstore"
)

// App is the central sitegen application. It wires together the store, the
// site directory, the builder, handlers and middleware.
type App struct {
	Config    SiteConfig
	Echo      *echo.Echo
	Store     *Store
	History   *BuildCache
	Templates *tmplstore.Store
	Site      *sitedir.Dir
	Builder   *Builder

	generateLimiter *RateLimiter
	loginLimiter    *RateLimiter
	customRoutes    []func(*App)
	ownsStore       bool
}

// New creates a new App with the given configuration.
func New(cfg SiteConfig, opts ...Option) *App {
	cfg.setDefaults()

	a := &App{
		Config: cfg,
		Echo:   echo.New(),
	}
	a.Echo.HideBanner = true

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Setup opens the store and site directory and registers middleware and
// routes. Start calls it; tests call it directly and drive a.Echo.
func (a *App) Setup() error {
	if a.Config.AdminPassword != "" && a.Config.SessionSecret == "" {
		return fmt.Errorf("sitegen: SessionSecret is required when AdminPassword is set")
	}

	if a.Store == nil {
		store, err := NewStore(a.Config.DatabasePath)
		if err != nil {
			return fmt.Errorf("sitegen: init store: %w", err)
		}
		a.Store = store
		a.ownsStore = true
	}
	a.History = NewBuildCache(a.Store, a.Config.HistoryCacheTTL)

	site, err := sitedir.Open(a.Config.SiteDir)
	if err != nil {
		return fmt.Errorf("sitegen: init site dir: %w", err)
	}
	a.Site = site
	a.Templates = tmplstore.New(a.Config.TemplatesDir)
	a.Builder = &Builder{
		Templates:   a.Templates,
		Site:        a.Site,
		ArchivePath: a.Config.ArchivePath,
		Strict:      a.Config.StrictPlaceholders,
		Timeout:     a.Config.OperationTimeout,
	}

	a.generateLimiter = NewRateLimiter(a.Config.GenerateRateLimit, time.Minute)
	a.loginLimiter = NewRateLimiter(5, time.Minute)

	a.setupMiddleware()
	a.setupRoutes()

	for _, fn := range a.customRoutes {
		fn(a)
	}
	return nil
}

// Start sets the app up and serves HTTP until the server is closed.
func (a *App) Start() error {
	if err := a.Setup(); err != nil {
		return err
	}
	if err := a.Echo.Start(a.Config.Addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (a *App) setupRoutes() {
	e := a.Echo

	// Framework assets first, then the user's static dir.
	embeddedFS, _ := fs.Sub(EmbeddedAssets, "embedded")
	embeddedHandler := http.FileServer(http.FS(embeddedFS))
	e.GET("/public/sitegen.js", echo.WrapHandler(http.StripPrefix("/public/", embeddedHandler)))
	e.GET("/public/sitegen.css", echo.WrapHandler(http.StripPrefix("/public/", embeddedHandler)))
	e.Static("/public", a.Config.StaticDir)

	e.GET("/", a.handleIndex)
	e.POST("/generate", a.handleGenerate)
	e.GET("/download/"+IndexFile, a.handleDownloadIndex)
	e.GET("/"+filepath.Base(a.Config.ArchivePath), a.handleDownloadArchive)
	e.GET("/templates", a.handleTemplateList)
	e.GET("/templates/:template", a.handleTemplateDescriptor)
	e.GET("/builds", a.handleBuilds)
	e.GET("/builds/:id", a.handleBuild)

	// Site file management.
	e.GET("/files", a.handleFileList)
	e.GET("/files/meta", a.handleFileMeta)
	e.POST("/upload", a.handleUpload, a.requireAdmin)
	e.DELETE("/delete/:file", a.handleDelete, a.requireAdmin)

	if a.adminEnabled() {
		e.POST("/login", a.handleLogin)
		e.POST("/logout", handleLogout)
	}
}

// Close cleans up resources. Call this when the app is shutting down.
func (a *App) Close() error {
	if a.generateLimiter != nil {
		a.generateLimiter.Stop()
	}
	if a.loginLimiter != nil {
		a.loginLimiter.Stop()
	}
	if a.Store != nil && a.ownsStore {
		return a.Store.Close()
	}
	return nil
}

// EnvOr returns the value of the environment variable key, or fallback if empty.
func EnvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// MustEnv returns the value of the environment variable key, or fatally exits if empty.
func MustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		log.Fatalf("sitegen: required environment variable %s is not set", key)
	}
	return v
}
