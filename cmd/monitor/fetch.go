package main

import (
	"context"
	"encoding/json"
	"io"

	"github.com/guregu/null/v6"
	"github.com/spf13/cobra"

	"StockMonitor/internal/model"
)

func newFetchCmd() *cobra.Command {
	var period string
	cmd := &cobra.Command{
		Use:   "fetch SYMBOL",
		Short: "Fetch the daily price series for a symbol and print it as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSeries(cmd, args[0], period, func(a *app, series *model.PriceSeries) error {
				return printJSON(cmd.OutOrStdout(), series)
			})
		},
	}
	cmd.Flags().StringVarP(&period, "period", "p", string(model.Period1mo), "lookback period (1d, 5d, 1mo, 3mo, 6mo, 1y)")
	return cmd
}

func newIndicatorsCmd() *cobra.Command {
	var period string
	cmd := &cobra.Command{
		Use:   "indicators SYMBOL",
		Short: "Print the latest indicator values for a symbol",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSeries(cmd, args[0], period, func(a *app, series *model.PriceSeries) error {
				set, err := a.service.ComputeIndicators(series)
				if err != nil {
					return err
				}
				last := series.Bars[len(series.Bars)-1]
				return printJSON(cmd.OutOrStdout(), struct {
					Symbol     string                `json:"symbol"`
					Source     string                `json:"source"`
					Date       string                `json:"date"`
					Close      float64               `json:"close"`
					Indicators map[string]null.Float `json:"indicators"`
				}{
					Symbol:     series.Symbol,
					Source:     series.Source,
					Date:       last.Time.Format("2006-01-02"),
					Close:      last.Close,
					Indicators: set.Snapshot(set.Len() - 1),
				})
			})
		},
	}
	cmd.Flags().StringVarP(&period, "period", "p", string(model.Period3mo), "lookback period (1d, 5d, 1mo, 3mo, 6mo, 1y)")
	return cmd
}

// withSeries loads the configuration, fetches one series and hands it to fn.
func withSeries(cmd *cobra.Command, symbol, period string, fn func(*app, *model.PriceSeries) error) error {
	p, err := model.ParsePeriod(period)
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := buildApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.RequestTimeout)
	defer cancel()

	series, err := a.service.FetchSeries(ctx, symbol, p)
	if err != nil {
		return err
	}
	if series.Len() == 0 {
		return model.ErrDataUnavailable
	}
	return fn(a, series)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
