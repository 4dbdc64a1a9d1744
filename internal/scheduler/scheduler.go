package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"StockMonitor/internal/model"
)

// SeriesFetcher is the facade call used to warm the cache.
type SeriesFetcher interface {
	FetchSeries(ctx context.Context, symbol string, period model.Period) (*model.PriceSeries, error)
}

// Scheduler refreshes a watchlist of symbols on a cron schedule so that
// interactive requests find a fresh cache entry.
type Scheduler struct {
	Cron      *cron.Cron
	Fetcher   SeriesFetcher
	Watchlist []string
	Period    model.Period
	Timeout   time.Duration
	Ctx       context.Context
}

// NewScheduler creates a new Scheduler. Cron specs include a seconds field.
func NewScheduler(ctx context.Context, fetcher SeriesFetcher, watchlist []string, period model.Period, timeout time.Duration) *Scheduler {
	return &Scheduler{
		Cron:      cron.New(cron.WithSeconds()),
		Fetcher:   fetcher,
		Watchlist: watchlist,
		Period:    period,
		Timeout:   timeout,
		Ctx:       ctx,
	}
}

// Register adds the watchlist refresh under spec.
func (s *Scheduler) Register(spec string) error {
	if _, err := s.Cron.AddFunc(spec, func() { s.RefreshNow() }); err != nil {
		return fmt.Errorf("register refresh task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Printf("[INFO] scheduler started, watching %d symbols", len(s.Watchlist))
}

// Stop stops the cron scheduler and waits for a running refresh to finish.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	log.Println("[INFO] scheduler stopped")
}

// RefreshNow fetches every watched symbol once, sequentially, and returns
// how many succeeded.
func (s *Scheduler) RefreshNow() int {
	ok := 0
	for _, symbol := range s.Watchlist {
		if s.Ctx.Err() != nil {
			log.Printf("[WARN] refresh interrupted: %v", s.Ctx.Err())
			break
		}
		if s.refresh(symbol) {
			ok++
		}
	}
	log.Printf("[INFO] refreshed %d/%d symbols", ok, len(s.Watchlist))
	return ok
}

func (s *Scheduler) refresh(symbol string) bool {
	ctx := s.Ctx
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(s.Ctx, s.Timeout)
		defer cancel()
	}

	series, err := s.Fetcher.FetchSeries(ctx, symbol, s.Period)
	if err != nil {
		log.Printf("[ERROR] refresh %s/%s: %v", symbol, s.Period, err)
		return false
	}
	log.Printf("[INFO] refreshed %s/%s: %d bars from %s", series.Symbol, series.Period, series.Len(), series.Source)
	return true
}
