// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-passkey.
//
// go-passkey is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-passkey/internal/config"
	"github.com/jeremyhahn/go-passkey/internal/rest"
	"github.com/jeremyhahn/go-passkey/pkg/health"
	"github.com/jeremyhahn/go-passkey/pkg/logging"
	"github.com/jeremyhahn/go-passkey/pkg/metrics"
	"github.com/jeremyhahn/go-passkey/pkg/passkey"
	"github.com/jeremyhahn/go-passkey/pkg/secret"
)

var serveUI bool

// serveCmd starts the passkey server.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the passkey server",
	Long: `Start the HTTP server hosting the passkey ceremony API, health
probes, and Prometheus metrics. Without --config a built-in localhost
development configuration is used.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	serveCmd.Flags().BoolVar(&serveUI, "ui", true, "serve the embedded demo web UI at /")
}

func runServe() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := logging.Configure(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("Starting passkey server",
		"rp_id", cfg.Passkey.RPID,
		"origins", cfg.Passkey.RPOrigins,
		"port", cfg.Server.Port)

	if !cfg.Metrics.Enabled {
		metrics.Disable()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stores := rest.NewStores(&rest.StoresConfig{
		ChallengeTTL: cfg.Passkey.ChallengeTTL,
	})
	cleanupCancel := stores.StartCleanupRoutine(ctx, time.Minute)
	defer cleanupCancel()

	svc, err := passkey.NewService(passkey.ServiceParams{
		Config:          &cfg.Passkey,
		UserStore:       stores.UserStore(),
		ChallengeStore:  stores.ChallengeStore(),
		CredentialStore: stores.CredentialStore(),
		SecretHasher:    secret.NewDefaultHasher(),
	})
	if err != nil {
		return fmt.Errorf("failed to create passkey service: %w", err)
	}

	checker := health.NewChecker()

	server, err := rest.NewServer(&rest.Config{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		Service:        svc,
		HealthChecker:  checker,
		Logger:         logger,
		MetricsEnabled: cfg.Metrics.Enabled,
		MetricsPath:    cfg.Metrics.Path,
		ServeUI:        serveUI,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	if cfg.Metrics.Enabled {
		metrics.StartResourceCollector(30*time.Second, ctx.Done())
	}

	errChan := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil {
			errChan <- err
		}
	}()
	checker.MarkStarted()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
	case err := <-errChan:
		return err
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	return server.Stop(shutdownCtx)
}

// loadConfig reads the config file when one was given and falls back to the
// built-in development configuration otherwise. PASSKEY_CONFIG overrides the
// flag for container deployments.
func loadConfig() (*config.Config, error) {
	path := configFile
	if envConfig := os.Getenv("PASSKEY_CONFIG"); envConfig != "" {
		path = envConfig
	}
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}
