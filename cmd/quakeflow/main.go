// Package main implements the quakeflow binary. Each invocation performs
// exactly one pipeline run for the batch derived from the run timestamp;
// scheduling is left to whatever invokes it (cron, a workflow engine).
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/quakeflow/quakeflow/internal/app"
	"github.com/quakeflow/quakeflow/internal/config"
	"github.com/quakeflow/quakeflow/internal/errors"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	var (
		configFile  string
		dataDir     string
		sourcePath  string
		runTS       string
		showVersion bool
		showHelp    bool
	)

	flag.StringVar(&configFile, "config", "", "Path to configuration file (YAML or JSON)")
	flag.StringVar(&dataDir, "data-dir", "", "Base directory for all data files")
	flag.StringVar(&sourcePath, "source", "", "Path to the source CSV file")
	flag.StringVar(&runTS, "run-ts", "", "Run timestamp (RFC 3339); defaults to now")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showHelp, "help", false, "Show help message")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "QuakeFlow - Batch ELT pipeline for seismic event data\n\n")
		fmt.Fprintf(os.Stderr, "Usage: quakeflow [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  quakeflow --data-dir /data/quakeflow\n")
		fmt.Fprintf(os.Stderr, "  quakeflow --config /etc/quakeflow/config.yaml --source /data/Sismos.csv\n")
		fmt.Fprintf(os.Stderr, "  quakeflow --run-ts 2025-01-15T06:00:00Z\n")
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  QUAKEFLOW_DATA_DIR       Base directory for data files\n")
		fmt.Fprintf(os.Stderr, "  QUAKEFLOW_SOURCE_PATH    Path to the source CSV file\n")
		fmt.Fprintf(os.Stderr, "  QUAKEFLOW_STORAGE_TYPE   Storage type (local, s3)\n")
		fmt.Fprintf(os.Stderr, "  QUAKEFLOW_S3_BUCKET      S3 bucket for snapshots and exports\n")
	}

	flag.Parse()

	if showHelp {
		flag.Usage()
		os.Exit(0)
	}

	if showVersion {
		fmt.Printf("quakeflow version %s (commit: %s)\n", version, commit)
		os.Exit(0)
	}

	// Optional .env for local development; absence is not an error.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: failed to load .env: %v", err)
	}

	cfg, err := loadConfig(configFile, dataDir, sourcePath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	runTime := time.Now().UTC()
	if runTS != "" {
		runTime, err = time.Parse(time.RFC3339, runTS)
		if err != nil {
			log.Fatalf("Invalid -run-ts %q: %v", runTS, err)
		}
		runTime = runTime.UTC()
	}

	printBanner(cfg, runTime)

	application, err := app.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := application.Open(ctx); err != nil {
		log.Fatalf("Failed to open application: %v", err)
	}
	defer func() {
		if err := application.Close(); err != nil {
			log.Printf("Close error: %v", err)
		}
	}()

	rc, err := application.Run(ctx, runTime)
	if err != nil {
		log.Printf("Run failed at stage %s: %v", rc.FailedStage, err)
		if code := errors.GetCode(err); code != "" {
			log.Printf("Error code: %s (retryable=%v)", code, errors.IsRetryable(err))
		}
		application.Close()
		os.Exit(1)
	}

	log.Printf("Batch %s complete: %d rows loaded, %d events, %d exported to %s",
		rc.BatchID, rc.LoadedRowCount, rc.EventCount, rc.ExportedRows, rc.ExportPath)
}

// loadConfig loads configuration from file, environment, and command line flags.
func loadConfig(configFile, dataDir, sourcePath string) (*config.Config, error) {
	var cfg *config.Config
	var err error

	if configFile != "" {
		cfg, err = config.LoadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	} else {
		cfg = config.DefaultConfig()
	}

	config.LoadFromEnv(cfg)

	// Command line flags take highest priority.
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if sourcePath != "" {
		cfg.Source.Path = sourcePath
	}

	cfg.Resolve()
	return cfg, nil
}

// printBanner prints the startup banner with configuration summary.
func printBanner(cfg *config.Config, runTime time.Time) {
	log.Printf("QuakeFlow - batch ELT pipeline")
	log.Printf("Configuration:")
	log.Printf("  Data Dir:  %s", cfg.DataDir)
	log.Printf("  Source:    %s", cfg.Source.Path)
	log.Printf("  Warehouse: %s", cfg.Warehouse.Path)
	log.Printf("  Storage:   %s", cfg.Storage.Type)
	log.Printf("  Run time:  %s", runTime.Format(time.RFC3339))
}
