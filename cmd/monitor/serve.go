package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"StockMonitor/internal/api"
	"StockMonitor/internal/model"
	"StockMonitor/internal/scheduler"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the watchlist refresher",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := buildApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if len(cfg.Schedule.Watchlist) > 0 {
				period, _ := model.ParsePeriod(cfg.Schedule.Period)
				sched := scheduler.NewScheduler(ctx, a.service, cfg.Schedule.Watchlist, period, cfg.RequestTimeout)
				if err := sched.Register(cfg.Schedule.RefreshCron); err != nil {
					return err
				}
				sched.Start()
				defer sched.Stop()

				if os.Getenv("RUN_ON_START") == "true" {
					log.Println("[INFO] RUN_ON_START enabled, refreshing watchlist now")
					go sched.RefreshNow()
				}
			}

			gin.SetMode(cfg.Server.Mode)
			handlerOpts := []api.HandlerOption{api.WithAllowedOrigins(cfg.Server.CORSOrigins)}
			if a.attempts != nil {
				handlerOpts = append(handlerOpts, api.WithSourceStats(a.attempts, api.DefaultStatsWindow))
			}
			handler := api.NewAPIHandler(a.service, a.chain.Names(), cfg.RequestTimeout, handlerOpts...)
			srv := &http.Server{
				Addr:              ":" + strconv.Itoa(cfg.Server.Port),
				Handler:           handler.SetupRoutes(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				log.Printf("[INFO] %s listening on %s", api.ServiceName, srv.Addr)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				if err != nil {
					return fmt.Errorf("http server: %w", err)
				}
			case <-ctx.Done():
				log.Println("[INFO] shutdown signal received, stopping...")
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("http shutdown: %w", err)
			}
			log.Printf("[INFO] %s stopped", api.ServiceName)
			return nil
		},
	}
}
