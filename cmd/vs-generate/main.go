// Package main is the entry point for the dataset generator.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"vaultsphere/internal/archive"
	"vaultsphere/internal/config"
	"vaultsphere/internal/dataset"
	"vaultsphere/internal/generator"
	"vaultsphere/internal/logging"
	"vaultsphere/internal/population"
	"vaultsphere/internal/sampling"
	"vaultsphere/internal/startup"
	"vaultsphere/internal/storage"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// output is one written dataset file.
type output struct {
	ds   *generator.Dataset
	path string
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("vs-generate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "Path to the YAML config (default $VS_CONFIG_PATH or "+config.DefaultPath+")")
	outDir := fs.String("out", "", "Output directory")
	tenants := fs.String("tenants", "", "Comma-separated tenant keys, e.g. food,it")
	seed := fs.Uint64("seed", 0, "Random seed; 0 picks one")
	combined := fs.String("combined", "", "Also write every tenant's events to this file")
	gz := fs.Bool("gzip", false, "Write gzip-compressed files")
	doArchive := fs.Bool("archive", false, "Upload the datasets to S3")
	doStore := fs.Bool("store", false, "Insert the events into ClickHouse")
	check := fs.Bool("check", false, "Run preflight diagnostics and exit")
	showVersion := fs.Bool("version", false, "Show version and exit")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *showVersion {
		fmt.Fprintf(stdout, "vs-generate %s\n", version)
		return 0
	}

	_ = godotenv.Load()

	cfg, err := config.LoadPath(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "out":
			cfg.Generator.OutputDir = *outDir
		case "tenants":
			cfg.Generator.Tenants = splitKeys(*tenants)
		case "seed":
			cfg.Generator.Seed = *seed
		case "combined":
			cfg.Generator.Combined = *combined
		case "gzip":
			cfg.Generator.Compress = *gz
		case "archive":
			cfg.Archive.Enabled = *doArchive
		case "store":
			cfg.Storage.Enabled = *doStore
		}
	})
	if *check {
		return preflight(ctx, cfg, *configPath, stderr)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "error: invalid config: %v\n", err)
		return 1
	}

	logger := logging.Setup(stderr, cfg.Logging)

	outputs, err := generate(cfg, logger, stdout)
	if err != nil {
		logger.Error("generation failed", "error", err)
		return 1
	}

	code := 0
	if cfg.Archive.Enabled {
		if err := archiveOutputs(ctx, cfg.Archive, outputs, logger); err != nil {
			logger.Error("archive failed", "error", err)
			code = 1
		}
	}
	if cfg.Storage.Enabled {
		if err := storeOutputs(ctx, cfg.Storage, outputs, logger); err != nil {
			logger.Error("storage failed", "error", err)
			code = 1
		}
	}
	return code
}

func generate(cfg *config.Config, logger *slog.Logger, stdout io.Writer) ([]output, error) {
	gc := cfg.Generator

	catalog, err := gc.Catalog()
	if err != nil {
		return nil, err
	}
	selected, err := catalog.Select(gc.Tenants)
	if err != nil {
		return nil, err
	}

	seed := gc.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	logger.Info("generating datasets", "seed", seed, "tenants", len(selected), "days_back", gc.DaysBack)

	src := sampling.NewSource(seed)
	gen := generator.New(src, gc.Options, logger)
	pools := population.BuildPools(src)

	var outputs []output
	var datasets []*generator.Dataset
	for _, t := range selected {
		ds, err := gen.Generate(t, pools)
		if err != nil {
			return nil, fmt.Errorf("tenant %s: %w", t.Key, err)
		}
		path := filepath.Join(gc.OutputDir, t.Filename)
		if gc.Compress && !dataset.IsCompressed(path) {
			path += ".gz"
		}
		if err := dataset.WriteFile(path, ds.Events); err != nil {
			return nil, fmt.Errorf("tenant %s: %w", t.Key, err)
		}
		fmt.Fprintf(stdout, "%s: %d events (%d baseline, %d injected) from %d users -> %s\n",
			t.Name, len(ds.Events), ds.Baseline, ds.InjectedTotal(), len(ds.Population.Users), path)
		for _, c := range generator.Categories {
			if st, ok := ds.Injected[c]; ok {
				fmt.Fprintf(stdout, "  %-22s %3d users %5d events\n", c, len(st.Users), st.Events)
			}
		}

		outputs = append(outputs, output{ds: ds, path: path})
		datasets = append(datasets, ds)
	}

	if gc.Combined != "" {
		path := gc.Combined
		if !filepath.IsAbs(path) {
			path = filepath.Join(gc.OutputDir, path)
		}
		events := generator.Merge(datasets...)
		if err := dataset.WriteFile(path, events); err != nil {
			return nil, fmt.Errorf("combined file: %w", err)
		}
		fmt.Fprintf(stdout, "combined: %d events -> %s\n", len(events), path)
	}
	return outputs, nil
}

func archiveOutputs(ctx context.Context, cfg archive.Config, outputs []output, logger *slog.Logger) error {
	archiver, err := archive.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	for _, o := range outputs {
		if err := archiver.ArchiveDataset(ctx, archive.ManifestFor(o.ds), []string{o.path}); err != nil {
			return err
		}
	}
	m := archiver.GetMetrics()
	logger.Info("datasets archived", "objects", m.ObjectsUploaded, "bytes", m.BytesUploaded)
	return nil
}

func storeOutputs(ctx context.Context, cfg storage.Config, outputs []output, logger *slog.Logger) error {
	client, err := storage.NewClickHouseClient(ctx, cfg.ClickHouse)
	if err != nil {
		return err
	}
	defer client.Close()

	if _, err := storage.NewMigrator(client, logger).Run(ctx); err != nil {
		return err
	}
	if err := storage.NewRetentionManager(client, cfg.Retention, logger).ApplyTTLs(ctx); err != nil {
		return err
	}

	for _, o := range outputs {
		bw := storage.NewBatchWriter(client, cfg.BatchWriter, o.ds.RunID.String(), logger)
		if err := bw.Write(o.ds.Events...); err != nil {
			bw.Close()
			return err
		}
		if err := bw.Close(); err != nil {
			return err
		}
		m := bw.Metrics()
		logger.Info("events stored", "tenant", o.ds.Tenant.Key, "run_id", o.ds.RunID, "written", m.Written, "batches", m.Batches)
	}
	return nil
}

// preflight runs the startup diagnostics and reports failure through the
// exit code.
func preflight(ctx context.Context, cfg *config.Config, configPath string, stderr io.Writer) int {
	logger := logging.New(stderr, cfg.Logging)
	diag := startup.NewDiagnostics(cfg, config.ResolvePath(configPath), logger)
	diag.RunAll(ctx)
	if diag.HasErrors() {
		return 1
	}
	return 0
}

// splitKeys splits a comma-separated list, dropping blanks around keys.
func splitKeys(s string) []string {
	var keys []string
	for _, k := range strings.Split(s, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}
