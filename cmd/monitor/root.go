package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"StockMonitor/internal/cache"
	"StockMonitor/internal/collector"
	"StockMonitor/internal/config"
	"StockMonitor/internal/monitor"
	"StockMonitor/internal/recorder"
	"StockMonitor/internal/source"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Daily price history and technical indicators for ticker symbols",
	Long: `monitor fetches daily price history from an ordered list of data
sources with retry and stale-cache fallback, caches it in SQLite, and derives
moving averages, RSI, MACD, Bollinger bands and the stochastic oscillator.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	defaultPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		defaultPath = v
	}
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", defaultPath, "config file (env CONFIG_PATH)")

	rootCmd.AddCommand(newServeCmd(), newFetchCmd(), newIndicatorsCmd())
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// app bundles the wired core. Close releases the cache and the journal.
type app struct {
	service  *monitor.Service
	chain    *source.Chain
	store    cache.Store
	journal  recorder.Recorder
	attempts *recorder.SQLiteRecorder // nil unless the SQLite journal is enabled
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		log.Printf("[WARN] close cache: %v", err)
	}
	if err := a.journal.Close(); err != nil {
		log.Printf("[WARN] close journal: %v", err)
	}
}

func buildApp(cfg *config.Config) (*app, error) {
	var store cache.Store
	if cfg.Cache.SQLitePath != "" {
		s, err := cache.NewSQLiteStore(cfg.Cache.SQLitePath)
		if err != nil {
			log.Printf("[WARN] init sqlite cache failed, using memory: %v", err)
			store = cache.NewMemoryStore()
		} else {
			store = s
		}
	} else {
		store = cache.NewMemoryStore()
	}

	var journal recorder.Recorder = recorder.NewNoopRecorder()
	var attempts *recorder.SQLiteRecorder
	if cfg.Cache.JournalPath != "" {
		r, err := recorder.NewSQLiteRecorder(cfg.Cache.JournalPath)
		if err != nil {
			log.Printf("[WARN] init attempt journal failed, journaling disabled: %v", err)
		} else {
			journal, attempts = r, r
		}
	}

	var sources []source.Source
	for _, p := range cfg.EnabledProviders() {
		f, err := collector.New(p.Name, collector.Options{
			BaseURL: p.BaseURL,
			APIKey:  p.APIKey,
			Proxy:   cfg.Proxy,
			Timeout: p.Timeout,
		})
		if err != nil {
			_ = store.Close()
			_ = journal.Close()
			return nil, fmt.Errorf("provider %s: %w", p.Name, err)
		}
		sources = append(sources, source.Source{Fetcher: f, Retry: retryPolicy(cfg, p)})
		log.Printf("[INFO] data source #%d: %s", len(sources), f.Name())
	}

	opts := []source.Option{source.WithTTL(cfg.Cache.TTL), source.WithRecorder(journal)}
	if cfg.Dedup {
		opts = append(opts, source.WithSingleFlight(cfg.RequestTimeout))
	}
	chain := source.NewChain(store, sources, opts...)

	return &app{
		service:  monitor.NewService(chain),
		chain:    chain,
		store:    store,
		journal:  journal,
		attempts: attempts,
	}, nil
}

func retryPolicy(cfg *config.Config, p config.ProviderConfig) source.RetryPolicy {
	policy := source.RetryPolicy{
		MaxRetries: *cfg.Retry.MaxRetries,
		BaseDelay:  cfg.Retry.BaseDelay,
		MaxDelay:   cfg.Retry.MaxDelay,
		Factor:     cfg.Retry.Factor,
		MaxJitter:  cfg.Retry.MaxJitter,
	}
	if p.MaxRetries != nil {
		policy.MaxRetries = *p.MaxRetries
	}
	return policy
}
