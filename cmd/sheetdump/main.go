// Command sheetdump reads a site spreadsheet once and prints it as JSON. It is the
// static-generation entrypoint: no cache store, no site registry.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/Zevik/google-sheets-site-builder/internal/clock/system"
	"github.com/Zevik/google-sheets-site-builder/internal/config"
	"github.com/Zevik/google-sheets-site-builder/internal/fetcher/gviz"
	"github.com/Zevik/google-sheets-site-builder/internal/fetcher/memo"
	"github.com/Zevik/google-sheets-site-builder/internal/logging"
	"github.com/Zevik/google-sheets-site-builder/internal/policy/ratelimit"
	"github.com/Zevik/google-sheets-site-builder/internal/sitedata"
)

type options struct {
	configPath    string
	spreadsheetID string
	tab           string
	validate      bool
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "Path to config file")
	flag.StringVar(&opts.spreadsheetID, "spreadsheet", "", "Spreadsheet id to read")
	flag.StringVar(&opts.tab, "tab", "", "Print only this tab")
	flag.BoolVar(&opts.validate, "validate", false, "Only check that every required tab is present")
	flag.Parse()

	_ = godotenv.Load()

	if err := run(opts, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "sheetdump: %v\n", err)
		os.Exit(1)
	}
}

func run(opts options, out io.Writer) error {
	if opts.spreadsheetID == "" {
		return errors.New("-spreadsheet is required")
	}
	if opts.tab != "" && !sitedata.KnownTab(opts.tab) {
		return fmt.Errorf("unknown tab %q", opts.tab)
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clock := system.New()
	limiter := ratelimit.New(ratelimit.Config{
		DefaultRPS:   cfg.Sheets.RateLimitRPS,
		DefaultBurst: cfg.Sheets.RateLimitBurst,
	})
	fetcher := memo.New(gviz.New(gviz.Config{
		BaseURL:   cfg.Sheets.BaseURL,
		UserAgent: cfg.Sheets.UserAgent,
		Timeout:   cfg.FetchTimeout(),
	}, limiter), clock, cfg.MemoTTL())

	if opts.tab != "" {
		table, err := fetcher.FetchTab(ctx, opts.spreadsheetID, sitedata.TabName(opts.tab))
		if err != nil {
			return fmt.Errorf("fetch tab: %w", err)
		}
		return writeJSON(out, table)
	}

	assembler := sitedata.NewAssembler(fetcher, clock, sitedata.AssemblerConfig{
		TabTimeout:     cfg.FetchTimeout(),
		FilterInactive: cfg.Sheets.FilterInactive,
		FetchTemplates: cfg.Sheets.FetchTemplates,
	}, logger.Named("assembler"))

	if opts.validate {
		result := assembler.Validate(ctx, opts.spreadsheetID)
		if err := writeJSON(out, result); err != nil {
			return err
		}
		if !result.Valid {
			return errors.New(result.Message)
		}
		return nil
	}

	snap, err := assembler.AssembleAll(ctx, opts.spreadsheetID)
	if err != nil {
		if tab, ok := sitedata.FailedTab(err); ok {
			logger.Error("tab failed", zap.String("tab", string(tab)), zap.Error(err))
		}
		return err
	}
	return writeJSON(out, snap)
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
