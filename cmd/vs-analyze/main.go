// Package main is the entry point for the anomaly detector.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"vaultsphere/internal/alerting"
	"vaultsphere/internal/analyzer"
	"vaultsphere/internal/cache"
	"vaultsphere/internal/config"
	"vaultsphere/internal/dataset"
	"vaultsphere/internal/detection"
	"vaultsphere/internal/logging"
	"vaultsphere/internal/report"
	"vaultsphere/internal/startup"
	"vaultsphere/internal/storage"
)

var version = "dev"

const defaultInput = "vaultsphere_food.csv"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("vs-analyze", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "Path to the YAML config (default $VS_CONFIG_PATH or "+config.DefaultPath+")")
	format := fs.String("format", "text", "Report format: text or json")
	threshold := fs.Int("threshold", 0, "Failed logins that make a burst")
	window := fs.Duration("window", 0, "Failed-login burst window, e.g. 1h")
	doPublish := fs.Bool("publish", false, "Publish findings to Kafka")
	doCache := fs.Bool("cache", false, "Reuse reports from Redis")
	doStore := fs.Bool("store", false, "Insert findings into ClickHouse")
	check := fs.Bool("check", false, "Run preflight diagnostics and exit")
	showVersion := fs.Bool("version", false, "Show version and exit")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: vs-analyze [flags] [file]\n\nAnalyzes %s when no file is given.\n\nFlags:\n", defaultInput)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *showVersion {
		fmt.Fprintf(stdout, "vs-analyze %s\n", version)
		return 0
	}
	if *format != "text" && *format != "json" {
		fmt.Fprintf(stderr, "error: unknown format %q\n", *format)
		return 2
	}
	path := defaultInput
	if fs.NArg() > 0 {
		path = fs.Arg(0)
	}

	_ = godotenv.Load()

	cfg, err := config.LoadPath(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "threshold":
			cfg.Detection.BurstThreshold = *threshold
		case "window":
			cfg.Detection.BurstWindow = *window
		case "publish":
			cfg.Alerting.Enabled = *doPublish
		case "cache":
			cfg.Cache.Enabled = *doCache
		case "store":
			cfg.Storage.Enabled = *doStore
		}
	})
	if *check {
		diag := startup.NewDiagnostics(cfg, config.ResolvePath(*configPath), logging.New(stderr, cfg.Logging))
		diag.RunAll(ctx)
		if diag.HasErrors() {
			return 1
		}
		return 0
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "error: invalid config: %v\n", err)
		return 1
	}

	logger := logging.Setup(stderr, cfg.Logging)

	catalog, err := cfg.Generator.Catalog()
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	det, err := detection.New(cfg.Detection, logger)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	a := analyzer.New(det, catalog, logger)

	if cfg.Cache.Enabled {
		store, err := cache.NewRedisStore(ctx, cfg.Cache)
		if err != nil {
			logger.Warn("report cache disabled", "error", err)
		} else {
			rc := cache.NewReportCache(store, cfg.Cache, logger)
			defer rc.Close()
			a.WithCache(rc)
		}
	}

	res, err := a.AnalyzeFile(ctx, path)
	if err != nil {
		var missing *dataset.MissingInputError
		if errors.As(err, &missing) {
			fmt.Fprintf(stderr, "error: input file not found: %s\n", missing.Path)
			return 1
		}
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}

	if cfg.Storage.Enabled {
		if err := storeResult(ctx, cfg.Storage, res, logger); err != nil {
			logger.Error("failed to store findings", "error", err)
		}
	}
	if cfg.Alerting.Enabled {
		if err := publishResult(ctx, cfg.Alerting, res, logger); err != nil {
			logger.Error("failed to publish findings", "error", err)
		}
	}

	doc := res.Document()
	if *format == "json" {
		err = report.WriteJSON(stdout, doc)
	} else {
		err = report.WriteText(stdout, doc)
	}
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func storeResult(ctx context.Context, cfg storage.Config, res *analyzer.Result, logger *slog.Logger) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	client, err := storage.NewClickHouseClient(ctx, cfg.ClickHouse)
	if err != nil {
		return err
	}
	defer client.Close()

	if _, err := storage.NewMigrator(client, logger).Run(ctx); err != nil {
		return err
	}
	w := storage.NewReportWriter(client)
	n, err := w.WriteFindings(ctx, res.Report)
	if err != nil {
		return err
	}
	if err := w.WriteRejected(ctx, res.Report.Source, res.Malformed); err != nil {
		return err
	}
	logger.Info("findings stored", "findings", n, "rejected", len(res.Malformed))
	return nil
}

func publishResult(ctx context.Context, cfg alerting.Config, res *analyzer.Result, logger *slog.Logger) error {
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	pub, err := alerting.NewPublisher(cfg, logger)
	if err != nil {
		return err
	}
	defer pub.Close()

	n, err := pub.PublishReport(ctx, res.Report)
	if err != nil {
		return err
	}
	logger.Info("findings published", "messages", n, "topic", cfg.Topic)
	return nil
}
