package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"go.uber.org/zap"

	"github.com/eugenenazirov/pallet-allocator/internal/application"
	"github.com/eugenenazirov/pallet-allocator/internal/config"
	"github.com/eugenenazirov/pallet-allocator/internal/dispatch"
	"github.com/eugenenazirov/pallet-allocator/internal/logging"
	"github.com/eugenenazirov/pallet-allocator/internal/sheet"
)

// Exit codes reported to the shell.
const (
	exitCompleted  = 0
	exitFatal      = 1
	exitPartial    = 2
	exitEmptyInput = 3
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	app := kingpin.New("allocate", "Allocate an order workbook onto numbered carriers")
	app.Writer(stderr)
	input := app.Arg("input", "Order workbook (.xlsx)").Required().ExistingFile()
	output := app.Flag("output", "Allocation workbook to write").Short('o').Default("allocation.xlsx").String()
	sheetName := app.Flag("sheet", "Sheet holding the order lines (defaults to the first sheet)").String()
	configFile := app.Flag("config", "Path to YAML configuration file").String()
	envFile := app.Flag("env-file", "Path to a .env file").Default(".env").String()
	dbPath := app.Flag("db", "SQLite database holding tiers and numbering (empty keeps state in memory)").String()
	logLevel := app.Flag("log-level", "Log level (debug, info, warn, error)").String()

	if _, err := app.Parse(args); err != nil {
		fmt.Fprintf(stderr, "allocate: %v\n", err)
		return exitFatal
	}

	cfg, err := config.Load(&config.CLIOverrides{
		ConfigFile:   *configFile,
		EnvFile:      *envFile,
		DatabasePath: dbPath,
		LogLevel:     logLevel,
	})
	if err != nil {
		fmt.Fprintf(stderr, "allocate: load configuration: %v\n", err)
		return exitFatal
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(stderr, "allocate: initialize logger: %v\n", err)
		return exitFatal
	}
	defer func() {
		_ = logger.Sync()
	}()

	store, err := application.OpenStorage(ctx, cfg)
	if err != nil {
		logger.Error("failed to open storage", zap.Error(err))
		return exitFatal
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("failed to close storage", zap.Error(err))
		}
	}()

	runner, err := application.NewRunner(cfg, store, logger)
	if err != nil {
		logger.Error("failed to build allocation pipeline", zap.Error(err))
		return exitFatal
	}

	var readerOpts []sheet.ReaderOption
	if *sheetName != "" {
		readerOpts = append(readerOpts, sheet.WithSheet(*sheetName))
	}
	source := sheet.FileSource{Path: *input, Reader: sheet.NewReader(logger, readerOpts...)}

	outcome := runner.Execute(ctx, source, sheet.FileSink{Path: *output})
	report(stdout, outcome, *output)

	switch outcome.Kind {
	case dispatch.Completed:
		return exitCompleted
	case dispatch.PartialWithUnplaced:
		return exitPartial
	case dispatch.EmptyInput:
		return exitEmptyInput
	default:
		logger.Error("allocation failed", zap.String("run_id", outcome.RunID), zap.Error(outcome.Err()))
		return exitFatal
	}
}

func report(w io.Writer, outcome dispatch.Outcome, output string) {
	fmt.Fprintf(w, "run %s: %s\n", outcome.RunID, outcome.Kind)
	if outcome.Kind == dispatch.Fatal {
		fmt.Fprintf(w, "  error: %v\n", outcome.Err())
		return
	}
	fmt.Fprintf(w, "  rows: %d, placed: %d, unplaced: %d\n", len(outcome.Rows), outcome.Placed(), len(outcome.Unplaced))
	for _, u := range outcome.Unplaced {
		fmt.Fprintf(w, "  - %s (%s) %s\n", u.ProductCode, u.Reason, u.Detail)
	}
	fmt.Fprintf(w, "  last carrier: %d%s\n", outcome.Numbering.LastNumber, outcome.Numbering.LastLetter)
	fmt.Fprintf(w, "  written to %s\n", output)
}
