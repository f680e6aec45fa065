// Bundlez serves the bundles declared in a configuration file over HTTP.
//
// On startup it loads and validates the configuration, registers every
// bundle, and maps the bundle and composite endpoints. With --watch, changes
// under the web root invalidate the artifacts built from the changed file.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"github.com/zoobzio/bundlez"
	"github.com/zoobzio/bundlez/pkg/server"
	"github.com/zoobzio/capitan"
	"github.com/zoobzio/clockz"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath string
		listen     string
		webRoot    string
		cacheDir   string
		watch      bool
		verbose    bool
	)

	flagSet := pflag.NewFlagSet("bundlez", pflag.ContinueOnError)
	flagSet.StringVarP(&configPath, "config", "c", "bundlez.yaml", "path to the YAML or JSON configuration file")
	flagSet.StringVar(&listen, "listen", ":8080", "HTTP listen address")
	flagSet.StringVar(&webRoot, "web-root", "", "directory source paths are relative to (overrides config)")
	flagSet.StringVar(&cacheDir, "cache-dir", "", "directory for compiled artifacts (overrides config)")
	flagSet.BoolVar(&watch, "watch", false, "invalidate artifacts when source files change")
	flagSet.BoolVarP(&verbose, "verbose", "v", false, "log every served and compiled artifact")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if args := flagSet.Args(); len(args) > 0 {
		return fmt.Errorf("unexpected argument: %s", args[0])
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	hookLogger(logger)
	defer capitan.Shutdown()

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if webRoot != "" {
		cfg.WebRoot = webRoot
	}
	if cacheDir != "" {
		cfg.CacheDir = cacheDir
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	resolver := bundlez.NewResolver(cfg.Version, clockz.RealClock)
	source := bundlez.NewDirSource(cfg.WebRoot)
	registry := bundlez.NewRegistry(source, resolver)
	factory := bundlez.DefaultFactory()

	if err := cfg.Apply(registry, factory); err != nil {
		return err
	}

	compiler := bundlez.NewCompiler(registry, factory, source, bundlez.NewDirStore(cfg.CacheDir), resolver).
		ErrorHistorySize(32)

	if watch {
		debounce, err := cfg.DebounceDuration()
		if err != nil {
			return err
		}
		invalidator := bundlez.NewInvalidator(compiler).Debounce(debounce)
		if err := invalidator.Start(ctx, bundlez.NewFileWatcher(cfg.WebRoot)); err != nil {
			return fmt.Errorf("starting file watcher: %w", err)
		}
	}

	srv := server.New(compiler).
		BundlePath(cfg.BundlePath).
		CompositePath(cfg.CompositePath)

	httpServer := &http.Server{
		Addr:              listen,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		errs <- httpServer.ListenAndServe()
	}()
	logger.Info("serving bundles",
		"listen", listen,
		"web_root", cfg.WebRoot,
		"js", registry.Names(bundlez.JS),
		"css", registry.Names(bundlez.CSS),
		"watch", watch,
	)

	select {
	case err := <-errs:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	logger.Info("stopped")
	return nil
}

func loadConfig(path string) (*bundlez.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	var codec bundlez.Codec = bundlez.YAMLCodec{}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		codec = bundlez.JSONCodec{}
	}
	return bundlez.LoadConfig(data, codec)
}
