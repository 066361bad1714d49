package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"common-addresses/internal/db"
	"common-addresses/internal/logging"
	"common-addresses/internal/server"
	"common-addresses/internal/staging"
	"common-addresses/internal/telemetry"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Printf("service=backend msg=%q err=%v", "fatal", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "common-addresses",
		Short: "Find the addresses common to a set of uploaded lists",
		Long: `Serves POST /api/find-common: upload 2 to 10 text files (one address per
line) or JSON arrays of strings and get back the sorted addresses that appear
in every one of them.

Configuration is read from defaults, then the YAML file given by --config,
then CA_* environment variables, then flags.`,
		SilenceUsage: true,
		RunE:         run,
	}

	cmd.Flags().StringP("addr", "a", getenvDefault("CA_ADDR", ":3000"), "Address to listen on")
	cmd.Flags().StringP("config", "c", getenvDefault("CA_CONFIG", ""), "Path to configuration file (YAML)")
	cmd.Flags().StringP("log-level", "l", getenvDefault("CA_LOG_LEVEL", "info"), "Log level (debug, info, warn, error)")
	cmd.Flags().String("log-format", getenvDefault("CA_LOG_FORMAT", "text"), "Log format (text, json)")

	return cmd
}

// loadConfig builds the configuration and applies flags the user set explicitly.
func loadConfig(cmd *cobra.Command) (server.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return server.Config{}, fmt.Errorf("failed to get config flag: %w", err)
	}

	cfg, err := server.LoadConfig(path, os.Getenv)
	if err != nil {
		return server.Config{}, err
	}

	overrides := map[string]*string{
		"addr":       &cfg.Addr,
		"log-level":  &cfg.LogLevel,
		"log-format": &cfg.LogFormat,
	}
	for name, dst := range overrides {
		if !cmd.Flags().Changed(name) {
			continue
		}
		v, err := cmd.Flags().GetString(name)
		if err != nil {
			return server.Config{}, fmt.Errorf("failed to get %s flag: %w", name, err)
		}
		*dst = v
	}

	return cfg, cfg.Validate()
}

func run(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logging.Configure(os.Stderr, logging.ParseLevel(cfg.LogLevel), cfg.LogFormat)
	cfg.WarnOnOptionalMissingConfig()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Config{
		ServiceName: "common-addresses",
		Version:     cfg.Version,
		Environment: cfg.Env,
		Endpoint:    cfg.OTLPEndpoint,
		Insecure:    getenvDefault("OTEL_EXPORTER_OTLP_INSECURE", "true") == "true",
	})
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer func() {
		sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer scancel()
		_ = shutdownTracing(sctx)
	}()

	store, err := openStore(ctx, cfg)
	if err != nil {
		log.Printf("service=backend msg=%q backend=%s err=%v", "staging_init_failed", cfg.Staging, err)
		return err
	}

	deps := server.Deps{Store: store, Metrics: server.NewMetrics(cfg.Version)}

	if cfg.DatabaseURL != "" {
		dbConn, err := db.OpenDB(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Printf("service=backend msg=%q err=%v", "db_connect_failed", err)
			return err
		}
		defer func() { _ = dbConn.Close() }()

		log.Printf("service=backend msg=%q", "running_migrations")
		if err := db.RunMigrations(dbConn); err != nil {
			log.Printf("service=backend msg=%q err=%v", "migration_failed", err)
			return err
		}
		log.Printf("service=backend msg=%q", "migrations_complete")

		deps.Runs = db.NewRunStore(dbConn)
	}

	go staging.RunSweeper(ctx, staging.SweeperConfig{
		Enabled:  cfg.SweepInterval > 0,
		Interval: cfg.SweepInterval,
		MaxAge:   cfg.SweepMaxAge,
		Store:    store,
		OnSweep:  deps.Metrics.RecordSweep,
	})

	srv := server.New(cfg, deps)

	// Start the HTTP server in a background goroutine.
	// This allows us to listen for OS signals while the server runs.
	errCh := make(chan error, 1)
	go func() {
		log.Printf("service=backend msg=%q addr=%s env=%s version=%s staging=%s",
			"starting", cfg.Addr, cfg.Env, cfg.Version, cfg.Staging)
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("service=backend msg=%q signal=%s", "shutting_down", sig.String())
		cancel()
		// Give in-flight requests time to finish and clean up their artifacts.
		sctx, scancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer scancel()
		if err := srv.Shutdown(sctx); err != nil {
			log.Printf("service=backend msg=%q err=%v", "shutdown_error", err)
			return err
		}
		log.Printf("service=backend msg=%q", "shutdown_complete")
		return nil
	case err := <-errCh:
		if err != nil {
			log.Printf("service=backend msg=%q err=%v", "server_error", err)
		}
		return err
	}
}

// openStore builds the staging backend selected by cfg.Staging.
func openStore(ctx context.Context, cfg server.Config) (staging.Store, error) {
	switch cfg.Staging {
	case server.StagingMinio:
		client, err := staging.NewMinioClient(ctx, staging.MinioConfig{
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Bucket:    cfg.Bucket,
		})
		if err != nil {
			return nil, err
		}
		cb := staging.NewCircuitBreaker("minio", 5, 30*time.Second)
		return staging.WithBreaker(staging.NewMinioStore(client, cfg.Bucket), cb), nil
	default:
		return staging.NewDiskStore(cfg.UploadDir, cfg.FormattedDir)
	}
}

// getenvDefault reads an environment variable and returns a default value if not set.
func getenvDefault(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}
