package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/eringen/sitegen"
)

var serveFlags struct {
	config string
	addr   string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web form and site file manager",
	Long: `Serve the generator over HTTP.

Configuration is read from the YAML file given by --config (missing is fine),
then SITEGEN_* environment variables, then flags.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&serveFlags.config, "config", "c", "sitegen.yaml", "Path to the YAML config file")
	serveCmd.Flags().StringVar(&serveFlags.addr, "addr", "", "Listen address (overrides config)")
}

func loadServeConfig() (sitegen.SiteConfig, error) {
	cfg, err := sitegen.LoadConfig(serveFlags.config)
	if err != nil {
		return cfg, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return cfg, err
	}
	if serveFlags.addr != "" {
		cfg.Addr = serveFlags.addr
	}
	return cfg, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadServeConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := setupTracing(ctx)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: flush traces: %v\n", err)
		}
	}()

	app := sitegen.New(cfg)
	defer app.Close()

	errc := make(chan error, 1)
	go func() { errc <- app.Start() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.Echo.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return <-errc
}
