// Package main is the entry point for the interactive report browser.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"vaultsphere/internal/analyzer"
	"vaultsphere/internal/config"
	"vaultsphere/internal/dataset"
	"vaultsphere/internal/detection"
	"vaultsphere/internal/logging"
	"vaultsphere/internal/report"
	"vaultsphere/internal/tui"
)

var version = "dev"

const defaultInput = "vaultsphere_food.csv"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr, tui.Run))
}

func run(args []string, stdout, stderr io.Writer, browse func(*report.Document) error) int {
	fs := flag.NewFlagSet("vaultsphere", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "Path to the YAML config (default $VS_CONFIG_PATH or "+config.DefaultPath+")")
	showVersion := fs.Bool("version", false, "Show version and exit")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *showVersion {
		fmt.Fprintf(stdout, "vaultsphere %s\n", version)
		return 0
	}
	path := defaultInput
	if fs.NArg() > 0 {
		path = fs.Arg(0)
	}

	_ = godotenv.Load()

	cfg, err := config.LoadPath(*configPath)
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}

	// The browser owns the terminal, so only warnings reach stderr.
	logCfg := cfg.Logging
	if lvl, _ := logging.ParseLevel(logCfg.Level); lvl < slog.LevelWarn {
		logCfg.Level = "warn"
	}
	logger := logging.Setup(stderr, logCfg)

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

	res, err := analyzer.New(det, catalog, logger).AnalyzeFile(context.Background(), path)
	if err != nil {
		var missing *dataset.MissingInputError
		if errors.As(err, &missing) {
			fmt.Fprintf(stderr, "error: input file not found: %s\n", missing.Path)
			return 1
		}
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}

	if err := browse(res.Document()); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	return 0
}
