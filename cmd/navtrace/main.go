package main

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"syscall"
	"time"

	"github.com/navtrace/navtrace/internal/api"
	"github.com/navtrace/navtrace/internal/auth"
	"github.com/navtrace/navtrace/internal/cache"
	"github.com/navtrace/navtrace/internal/metrics"
	"github.com/navtrace/navtrace/internal/orbit"
	"github.com/navtrace/navtrace/internal/rinex"
)

// navConfig controls where navigation data comes from.
type navConfig struct {
	File      string
	Dir       string
	SourceURL string
	CacheDir  string
	MaxFiles  int
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	addr := os.Getenv("NAVTRACE_HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	authCfg, err := loadAuthConfig(logger)
	if err != nil {
		logger.Error("invalid auth configuration", "error", err)
		os.Exit(1)
	}

	trustProxy := false
	if v := os.Getenv("NAVTRACE_TRUST_PROXY"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			logger.Warn("invalid NAVTRACE_TRUST_PROXY value, defaulting to false", "value", v)
		} else {
			trustProxy = b
		}
	}

	navCfg := loadNavConfig(logger)
	store := rinex.NewStore()
	navCache := rinex.NewCache(navCfg.CacheDir, navCfg.MaxFiles)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loadInitialDataset(ctx, logger, store, navCache, navCfg)

	orbitCfg := loadOrbitConfig(logger)
	prop := orbit.NewPropagator(store, orbitCfg, logger)

	results := cache.New(loadResultCacheMax(logger))

	srv := api.NewServer(api.Config{
		Addr:       addr,
		TrustProxy: trustProxy,
		Auth:       authCfg,
	}, store, prop, results, logger)

	// Hot reload navigation files dropped into the watch directory.
	if navCfg.Dir != "" {
		watcher := rinex.NewWatcher(navCfg.Dir, store, logger)
		go func() {
			if err := watcher.Run(ctx); err != nil {
				logger.Error("navigation watcher stopped", "error", err)
			}
		}()
	}

	// Background goroutine to update the dataset age gauge.
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				age := store.AgeSeconds()
				if age >= 0 {
					metrics.SetDatasetAge(age)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		logger.Info("starting server",
			"addr", addr,
			"auth_enabled", authCfg.Enabled,
			"watch_dir", navCfg.Dir,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server listen error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.HTTPServer().Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

// loadInitialDataset fills the store from the first available source: an
// explicit file, the newest cached download, then a fresh fetch.
func loadInitialDataset(ctx context.Context, logger *slog.Logger, store *rinex.Store, navCache *rinex.Cache, cfg navConfig) {
	if cfg.File != "" {
		f, err := os.Open(cfg.File)
		if err != nil {
			logger.Error("cannot open navigation file", "path", cfg.File, "error", err)
			os.Exit(1)
		}
		defer f.Close()

		ds, err := rinex.Parse(f, logger)
		if err != nil {
			logger.Error("navigation file rejected", "path", cfg.File, "error", err)
			os.Exit(1)
		}
		applyDataset(logger, store, ds, cfg.File)
		return
	}

	data, ts, err := navCache.LoadLatest()
	if err == nil {
		ds, perr := rinex.Parse(bytes.NewReader(data), logger)
		if perr != nil {
			logger.Warn("failed to parse cached navigation data", "error", perr)
		} else {
			applyDataset(logger, store, ds, "cache")
			logger.Info("loaded navigation data from cache", "cached_at", ts.Format(time.RFC3339))
			return
		}
	} else {
		logger.Info("no navigation cache found", "error", err)
	}

	if cfg.SourceURL == "" {
		logger.Info("starting without navigation data")
		return
	}

	fetcher := rinex.NewFetcher(cfg.SourceURL)
	data, err = fetcher.Fetch(ctx)
	if err != nil {
		logger.Warn("navigation fetch failed", "url", cfg.SourceURL, "error", err)
		return
	}
	ds, err := rinex.Parse(bytes.NewReader(data), logger)
	if err != nil {
		logger.Warn("fetched navigation data rejected", "url", cfg.SourceURL, "error", err)
		return
	}
	applyDataset(logger, store, ds, cfg.SourceURL)
	if err := navCache.Write(data, time.Now()); err != nil {
		logger.Warn("cannot cache navigation data", "error", err)
	}
}

func applyDataset(logger *slog.Logger, store *rinex.Store, ds *rinex.Dataset, source string) {
	ds.Source = source
	store.Lock()
	store.Set(ds)
	store.Unlock()

	metrics.RecordParse(ds.Stats.Records, ds.Stats.BlankBlocks, ds.Stats.ShortBlocks, ds.Stats.BadTimestamps)
	metrics.SetDatasetSatellites(len(ds.Satellites))

	logger.Info("navigation dataset loaded",
		"source", source,
		"satellites", len(ds.Satellites),
		"records", ds.Stats.Records,
		"skipped_blocks", ds.Stats.Skipped(),
	)
}

func loadAuthConfig(logger *slog.Logger) (auth.Config, error) {
	cfg := auth.Config{}

	enabledStr := os.Getenv("NAVTRACE_AUTH_ENABLED")
	if enabledStr != "" {
		enabled, err := strconv.ParseBool(enabledStr)
		if err != nil {
			return cfg, errors.New("NAVTRACE_AUTH_ENABLED must be a boolean value (true/false/1/0)")
		}
		cfg.Enabled = enabled
	}

	if cfg.Enabled {
		cfg.Token = os.Getenv("NAVTRACE_AUTH_TOKEN")
		if cfg.Token == "" {
			return cfg, errors.New("NAVTRACE_AUTH_TOKEN is required when auth is enabled")
		}
		logger.Info("auth enabled")
	}

	return cfg, nil
}

func loadNavConfig(logger *slog.Logger) navConfig {
	cfg := navConfig{
		CacheDir: "/tmp/navtrace/nav",
		MaxFiles: 5,
	}

	cfg.File = os.Getenv("NAVTRACE_NAV_FILE")
	cfg.Dir = os.Getenv("NAVTRACE_NAV_DIR")
	cfg.SourceURL = os.Getenv("NAVTRACE_NAV_SOURCE_URL")

	if v := os.Getenv("NAVTRACE_NAV_CACHE_DIR"); v != "" {
		cfg.CacheDir = v
	}

	if v := os.Getenv("NAVTRACE_NAV_MAX_FILES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid NAVTRACE_NAV_MAX_FILES value, using default", "value", v, "default", cfg.MaxFiles)
		} else {
			cfg.MaxFiles = n
		}
	}

	logger.Info("navigation config",
		"file", cfg.File,
		"watch_dir", cfg.Dir,
		"source_url", cfg.SourceURL,
		"cache_dir", cfg.CacheDir,
	)

	return cfg
}

func loadOrbitConfig(logger *slog.Logger) orbit.Config {
	cfg := orbit.Config{
		Workers: runtime.NumCPU(),
		Step:    30,
	}

	if v := os.Getenv("NAVTRACE_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid NAVTRACE_WORKERS value, using default", "value", v, "default", cfg.Workers)
		} else {
			cfg.Workers = n
		}
	}

	if v := os.Getenv("NAVTRACE_SAMPLE_STEP"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 {
			logger.Warn("invalid NAVTRACE_SAMPLE_STEP value, using default", "value", v, "default", cfg.Step)
		} else {
			cfg.Step = f
		}
	}

	logger.Info("orbit config",
		"workers", cfg.Workers,
		"step_seconds", cfg.Step,
	)

	return cfg
}

func loadResultCacheMax(logger *slog.Logger) int {
	limit := 0 // cache package default
	if v := os.Getenv("NAVTRACE_RESULT_CACHE_MAX"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid NAVTRACE_RESULT_CACHE_MAX value, using default", "value", v)
		} else {
			limit = n
		}
	}
	return limit
}
