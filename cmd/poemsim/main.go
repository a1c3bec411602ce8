// Package main is the poemsim CLI entry point.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/jakobytes/elias-1848/internal/cli"
	"github.com/jakobytes/elias-1848/internal/config"
	"github.com/jakobytes/elias-1848/internal/corpus"
	"github.com/jakobytes/elias-1848/internal/output"
	"github.com/jakobytes/elias-1848/internal/runner"
	"github.com/jakobytes/elias-1848/internal/server"
	"github.com/jakobytes/elias-1848/internal/storage"
	"github.com/jakobytes/elias-1848/internal/watcher"
	"github.com/jakobytes/elias-1848/pkg/utils"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/poemsim/config.yaml"
	localConfigName   = "poemsim.yaml"
)

// loadConfig loads config from path. When path is the default, poemsim.yaml in
// the current directory takes precedence, and a missing default file means
// built-in defaults. Returns the config and the path that was actually loaded
// ("" for built-in defaults).
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			local := filepath.Join(cwd, localConfigName)
			if _, statErr := os.Stat(local); statErr == nil {
				cfg, loadErr := config.Load(local)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, local, nil
			}
		}
		if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
			return config.Default(), "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "run":
		runRun()
	case "watch":
		runWatch()
	case "sort":
		runSort()
	case "merge":
		runMerge()
	case "serve":
		runServe()
	case "init":
		runInit()
	case "version", "--version", "-v":
		fmt.Printf("poemsim version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// configPathFromArgs returns the value of -config/--config from args if present, else defaultPath.
func configPathFromArgs(args []string, defaultPath string) string {
	for i, a := range args {
		if (a == "-config" || a == "--config") && i+1 < len(args) {
			return args[i+1]
		}
	}
	return defaultPath
}

// argsReorder moves any flags (and their values) that appear after the input
// path to the front, since flag.Parse stops at the first non-flag argument.
func argsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

// parseRunArgs loads the config named by -config and applies the remaining
// flags over it. Flag defaults are the config values, so only flags given on
// the command line change anything. A single positional argument is the
// input CSV.
func parseRunArgs(name string, args []string, errOut io.Writer) (*config.Config, error) {
	configPath := configPathFromArgs(args, defaultConfigPath)
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}

	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(errOut)
	fs.Usage = func() { printRunUsage(fs) }
	_ = fs.String("config", configPath, "config file path")
	fs.BoolVar(&cfg.Debug, "debug", cfg.Debug, "enable debug logging (splitting decisions, file events)")
	fs.StringVar(&cfg.LogFile, "logfile", cfg.LogFile, "also write logs to this file")

	fs.StringVar(&cfg.Input.Pattern, "pattern", cfg.Input.Pattern, "only score poems whose ID matches this regular expression (anchored at the start)")

	fs.StringVar(&cfg.Output.SimilaritiesPath, "o", cfg.Output.SimilaritiesPath, `poem similarities CSV ("-" = stdout, "" = none)`)
	fs.StringVar(&cfg.Output.AlignmentsPath, "alignments", cfg.Output.AlignmentsPath, "verse alignments CSV (enables alignment computation)")
	fs.BoolVar(&cfg.Output.PrintTexts, "print-texts", cfg.Output.PrintTexts, "include verse texts in the alignments output")
	fs.StringVar(&cfg.Output.SQLitePath, "sqlite", cfg.Output.SQLitePath, "also store results in this SQLite database")
	fs.StringVar(&cfg.Output.XLSXPath, "xlsx", cfg.Output.XLSXPath, "also write results to this spreadsheet")
	fs.StringVar(&cfg.Output.Summary, "summary", cfg.Output.Summary, "run summary format: text, json or none")

	fs.IntVar(&cfg.Vectorizer.Dimensions, "dim", cfg.Vectorizer.Dimensions, "verse vector dimension")
	fs.IntVar(&cfg.Vectorizer.NGram, "n", cfg.Vectorizer.NGram, "character n-gram order")
	fs.StringVar(&cfg.Vectorizer.Weighting, "weighting", cfg.Vectorizer.Weighting, "n-gram weighting: plain, sqrt or binary")
	fs.StringVar(&cfg.Vectorizer.VectorsPath, "vectors", cfg.Vectorizer.VectorsPath, "verse vector file (loaded when it matches the input, written otherwise)")

	fs.Float64Var(&cfg.Similarity.Threshold, "threshold", cfg.Similarity.Threshold, "minimum verse similarity")
	fs.Float64Var(&cfg.Similarity.SimRawThreshold, "sim-raw-thr", cfg.Similarity.SimRawThreshold, "minimum raw poem similarity")
	fs.Float64Var(&cfg.Similarity.SimOnesidedThreshold, "sim-onesided-thr", cfg.Similarity.SimOnesidedThreshold, "minimum one-sided poem similarity")
	fs.Float64Var(&cfg.Similarity.SimSymThreshold, "sim-sym-thr", cfg.Similarity.SimSymThreshold, "minimum symmetric poem similarity")
	fs.BoolVar(&cfg.Similarity.Rescale, "rescale", cfg.Similarity.Rescale, "rescale verse similarities above the threshold to [0,1]")
	fs.Int64Var(&cfg.Similarity.MemoryBudget, "max-memory", cfg.Similarity.MemoryBudget, "kernel memory budget in matrix elements")
	fs.StringVar(&cfg.Similarity.Backend, "backend", cfg.Similarity.Backend, "kernel backend: cpu or gpu")
	gpu := fs.Bool("gpu", false, "shorthand for -backend gpu")
	fs.IntVar(&cfg.Similarity.Workers, "workers", cfg.Similarity.Workers, "CPU kernel workers (0 = GOMAXPROCS)")

	jobID := fs.Int("job-id", 0, "shard to process (requires -jobs)")
	jobs := fs.Int("jobs", 0, "number of shards (requires -job-id)")
	fs.IntVar(&cfg.Progress, "print-progress", cfg.Progress, "log progress every N poems (0 = off)")
	fs.IntVar(&cfg.Watch.DebounceMillis, "debounce-ms", cfg.Watch.DebounceMillis, "watch: quiet period before re-running")

	if err := fs.Parse(argsReorder(args)); err != nil {
		return nil, err
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "job-id":
			cfg.Job.ID = jobID
		case "jobs":
			cfg.Job.Count = jobs
		case "gpu":
			if *gpu {
				cfg.Similarity.Backend = "gpu"
			}
		}
	})
	switch fs.NArg() {
	case 0:
	case 1:
		cfg.Input.Path = fs.Arg(0)
	default:
		return nil, fmt.Errorf("expected one input file, got %d arguments", fs.NArg())
	}
	return cfg, nil
}

// summaryWriter keeps the summary off stdout when stdout carries results.
func summaryWriter(cfg *config.Config) io.Writer {
	if cfg.Output.SimilaritiesPath == "-" {
		return os.Stderr
	}
	return os.Stdout
}

func mustRunConfig(name string) *config.Config {
	cfg, err := parseRunArgs(name, os.Args[2:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

func mustLogger(cfg *config.Config) *zap.Logger {
	logger, err := utils.NewFileLogger(cfg.Debug, cfg.LogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	return logger
}

func runRun() {
	cfg := mustRunConfig("run")
	logger := mustLogger(cfg)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, err := runner.New(cfg, runner.WithLogger(logger)).Run(ctx)
	if err != nil {
		_ = logger.Sync()
		fmt.Fprintf(os.Stderr, "Run failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteSummary(summaryWriter(cfg), summary, cli.OutputFormat(cfg.Output.Summary)); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runWatch() {
	cfg := mustRunConfig("watch")
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}
	logger := mustLogger(cfg)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	r := runner.New(cfg, runner.WithLogger(logger))
	runOnce := func() {
		summary, err := r.Run(ctx)
		if err != nil {
			logger.Error("run failed", zap.Error(err))
			return
		}
		if err := cli.WriteSummary(summaryWriter(cfg), summary, cli.OutputFormat(cfg.Output.Summary)); err != nil {
			logger.Warn("summary output failed", zap.Error(err))
		}
	}

	// Changes arriving during a run coalesce into one pending re-run.
	pending := make(chan struct{}, 1)
	w := watcher.NewWatcher(cfg.Input.Path,
		func(string) {
			select {
			case pending <- struct{}{}:
			default:
			}
		},
		watcher.WithDebounce(time.Duration(cfg.Watch.DebounceMillis)*time.Millisecond),
		watcher.WithLogger(logger),
	)
	if err := w.Start(ctx); err != nil {
		_ = logger.Sync()
		fmt.Fprintf(os.Stderr, "Failed to watch %s: %v\n", cfg.Input.Path, err)
		os.Exit(1)
	}
	defer w.Stop()

	logger.Info("watching input", zap.String("path", w.Path()))
	runOnce()
	for {
		select {
		case <-ctx.Done():
			logger.Info("watch stopped")
			return
		case <-pending:
			logger.Info("input changed, re-running", zap.String("path", w.Path()))
			runOnce()
		}
	}
}

// sortCSV regroups the verses read from in by poem and writes them longest
// poem first.
func sortCSV(in io.Reader, out io.Writer) (int, error) {
	verses, err := corpus.ReadCSV(in)
	if err != nil {
		return 0, err
	}
	return len(verses), corpus.WriteCSV(out, corpus.SortByLength(verses))
}

// createOutput opens path for writing; "-" and "" are stdout.
func createOutput(path string) (io.WriteCloser, error) {
	if path == "" || path == "-" {
		return nopCloser{os.Stdout}, nil
	}
	return os.Create(path)
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

func runSort() {
	fs := flag.NewFlagSet("sort", flag.ExitOnError)
	outPath := fs.String("o", "-", `output CSV ("-" = stdout)`)
	_ = fs.Parse(argsReorder(os.Args[2:]))
	if fs.NArg() != 1 {
		fmt.Println("Usage: poemsim sort [-o output.csv] <verses.csv|->")
		os.Exit(1)
	}

	in := io.Reader(os.Stdin)
	if fs.Arg(0) != "-" {
		f, err := os.Open(fs.Arg(0))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open input: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		in = f
	}
	out, err := createOutput(*outPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create output: %v\n", err)
		os.Exit(1)
	}
	n, err := sortCSV(in, out)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Sort failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "Sorted %d verse(s)\n", n)
}

func runMerge() {
	fs := flag.NewFlagSet("merge", flag.ExitOnError)
	outPath := fs.String("o", "-", `output CSV ("-" = stdout)`)
	_ = fs.Parse(argsReorder(os.Args[2:]))
	if fs.NArg() < 1 {
		fmt.Println("Usage: poemsim merge [-o output.csv] <similarities.csv>...")
		os.Exit(1)
	}

	out, err := createOutput(*outPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create output: %v\n", err)
		os.Exit(1)
	}
	n, err := output.MergeSimilarityFiles(out, fs.Args()...)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Merge failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "Merged %d row(s) from %d file(s)\n", n, fs.NArg())
}

func runServe() {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	dbPath := fs.String("sqlite", "", "results database (default: output.sqlite_path from config)")
	host := fs.String("host", "", "listen host (default from config)")
	port := fs.Int("port", 0, "listen port (default from config)")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *dbPath != "" {
		cfg.Output.SQLitePath = *dbPath
	}
	if *host != "" {
		cfg.Server.Host = *host
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if cfg.Output.SQLitePath == "" {
		fmt.Println("Usage: poemsim serve -sqlite results.db [-host h] [-port p]")
		os.Exit(1)
	}
	cfg.Debug = cfg.Debug || *debug
	logger := mustLogger(cfg)
	defer logger.Sync()

	store, err := storage.NewSQLiteStorage(cfg.Output.SQLitePath)
	if err != nil {
		logger.Fatal("Failed to open results database", zap.String("path", cfg.Output.SQLitePath), zap.Error(err))
	}
	defer store.Close()

	srv := server.NewServer(store, &cfg.Server, logger)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Stop(shutdownCtx); err != nil {
			logger.Warn("server shutdown failed", zap.Error(err))
		}
	}()
	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server failed", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

// initConfig writes the built-in defaults to path. An existing file is only
// replaced when force is set.
func initConfig(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use -force to overwrite)", path)
		}
	}
	return config.Save(path, config.Default())
}

func runInit() {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	force := fs.Bool("force", false, "overwrite an existing file")
	_ = fs.Parse(argsReorder(os.Args[2:]))
	path := localConfigName
	if fs.NArg() > 0 {
		path = fs.Arg(0)
	}
	if err := initConfig(path, *force); err != nil {
		fmt.Fprintf(os.Stderr, "Init failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote default config to %s\n", path)
}

func printRunUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: poemsim %s [flags] [verses.csv]\n\n", fs.Name())
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Flags override values from the config file. The input CSV has the columns
poem_id,pos,text with the verses of each poem on consecutive rows.

Examples:
  poemsim run verses.csv
  poemsim run -alignments aligns.csv -print-texts verses.csv
  poemsim run -pattern 'skvr_' -o skvr.csv verses.csv
  poemsim run -job-id 0 -jobs 4 -o job0.csv verses.csv
`)
}

func printUsage() {
	fmt.Println(`poemsim - Memory-bounded pairwise poem similarity

Usage:
  poemsim run [flags] [verses.csv]     Compute poem similarities
  poemsim watch [flags] [verses.csv]   Re-run whenever the input changes
  poemsim sort [-o out] <verses.csv>   Reorder poems longest first
  poemsim merge [-o out] <file>...     Merge and sort shard similarity files
  poemsim serve [flags]                Serve stored results over HTTP
  poemsim init [-force] [path]         Write a default config (poemsim.yaml)
  poemsim version                      Show version
  poemsim help                         Show this help

Run/Watch Flags (see "poemsim run -h" for all):
  --config string        Config file path (default: ./poemsim.yaml, then /usr/local/etc/poemsim/config.yaml)
  --o string             Similarities CSV ("-" = stdout)
  --alignments string    Alignments CSV; enables alignment computation
  --print-texts          Include verse texts in alignments
  --sqlite string        Store results in a SQLite database
  --xlsx string          Write results to a spreadsheet
  --pattern string       Only score poems whose ID matches
  --job-id int --jobs int  Process one shard of the eligible poems
  --max-memory int       Kernel memory budget in matrix elements
  --gpu                  Use the GPU backend

Serve Flags:
  --config string        Config file path
  --sqlite string        Results database (default: output.sqlite_path)
  --host string --port int  Listen address (default: localhost:8080)

Examples:
  poemsim run verses.csv
  poemsim run -job-id 0 -jobs 2 -o job0.csv verses.csv
  poemsim run -job-id 1 -jobs 2 -o job1.csv verses.csv
  poemsim merge -o sims.csv job0.csv job1.csv
  poemsim sort -o sorted.csv verses.csv
  poemsim watch -o sims.csv verses.csv
  poemsim run -sqlite results.db verses.csv && poemsim serve -sqlite results.db`)
}
