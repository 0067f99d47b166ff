package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/fund-intake-cli/internal/config"
	"github.com/sells-group/fund-intake-cli/internal/resilience"
	"github.com/sells-group/fund-intake-cli/internal/staging"
	"github.com/sells-group/fund-intake-cli/pkg/assetapi"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "fund-intake-cli",
	Short: "Fund document extraction and staging pipeline",
	Long:  "Indexes fund offering documents, extracts structured asset data via Claude, stages submission payloads for review, and submits them to the asset-management API.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// initStore opens the staging store named by config: sqlite by default,
// postgres when a database URL is configured.
func initStore(ctx context.Context) (staging.Store, error) {
	switch cfg.Staging.Driver {
	case "", "sqlite":
		st, err := staging.NewSQLite(cfg.Staging.SQLitePath)
		if err != nil {
			return nil, eris.Wrap(err, "open sqlite staging store")
		}
		return st, nil
	case "postgres":
		st, err := staging.NewPostgres(ctx, cfg.Staging.DatabaseURL)
		if err != nil {
			return nil, eris.Wrap(err, "open postgres staging store")
		}
		return st, nil
	default:
		return nil, eris.Errorf("unknown staging driver %q", cfg.Staging.Driver)
	}
}

// initAssetClient authenticates against the asset-management API. An auth
// failure is fatal: nothing downstream works without the bearer token.
func initAssetClient(ctx context.Context) (assetapi.Client, error) {
	if cfg.AssetAPI.BaseURL == "" || cfg.AssetAPI.UserEmail == "" {
		return nil, eris.New("assetapi.base_url and assetapi.user_email are required")
	}
	client := assetapi.NewClient(cfg.AssetAPI.BaseURL,
		assetapi.WithRateLimit(cfg.AssetAPI.RateRPS))
	if err := client.Authenticate(ctx, cfg.AssetAPI.UserEmail); err != nil {
		return nil, eris.Wrap(err, "authenticate against asset API")
	}
	return client, nil
}

func retryConfig() resilience.RetryConfig {
	return resilience.FromConfig(
		cfg.Retry.MaxAttempts,
		cfg.Retry.InitialBackoffMs,
		cfg.Retry.MaxBackoffMs,
		cfg.Retry.Multiplier,
		cfg.Retry.JitterFraction,
	)
}
