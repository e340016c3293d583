package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/mattjoyce/capinvoke/internal/api"
	"github.com/mattjoyce/capinvoke/internal/config"
	"github.com/mattjoyce/capinvoke/internal/inspect"
	"github.com/mattjoyce/capinvoke/internal/lock"
	"github.com/mattjoyce/capinvoke/internal/log"
	"github.com/mattjoyce/capinvoke/internal/scenario"
	"github.com/mattjoyce/capinvoke/internal/storage"
	"github.com/mattjoyce/capinvoke/internal/trace"
)

var (
	version   = "0.1.0-dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	os.Exit(runCLI(os.Args[1:]))
}

func runCLI(cliArgs []string) int {
	if len(cliArgs) < 1 {
		printUsage()
		return 1
	}

	cmd := cliArgs[0]
	args := cliArgs[1:]

	switch cmd {
	case "run":
		return runScenario(args)
	case "serve":
		return runServe(args)
	case "inspect":
		return runInspect(args)
	case "config":
		return runConfigNoun(args)
	case "version", "--version":
		return runVersion(args)
	case "help", "--help", "-h":
		printUsage()
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		return 1
	}
}

func printUsage() {
	fmt.Print(`capinvoke - capability invocation dispatcher

Usage:
  capinvoke <command> [flags]

Commands:
  run <scenario.yaml>   Run a scenario and print every step
  inspect <run-id>      Show a recorded run
  serve                 Serve recorded runs over HTTP
  config check          Validate configuration and checksums
  config hash-update    Rewrite the .checksums manifest
  version               Show version information
  help                  Show this help message

Flags common to every command but version:
  --config PATH         Configuration file or directory (default: built-in defaults)
`)
}

// loadConfig returns the defaults when path is empty.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Defaults(), nil
	}
	return config.Load(path)
}

type runReport struct {
	Passed   bool      `json:"passed"`
	Failures []string  `json:"failures"`
	Run      trace.Run `json:"run"`
}

func runScenario(args []string) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	jsonOut := fs.Bool("json", false, "Print the run as JSON")
	noRecord := fs.Bool("no-record", false, "Do not persist the run even when trace.path is set")
	if err := fs.Parse(reorderFlags(args)); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: capinvoke run <scenario.yaml> [--config PATH] [--json] [--no-record]")
		return 1
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	log.SetupWriter(os.Stderr, cfg.Service.LogLevel)

	sc, err := scenario.Load(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	runner, err := scenario.NewRunner(sc, cfg.Kernel, log.WithComponent("kernel"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: build scenario: %v\n", err)
		return 1
	}
	out, err := runner.Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: run scenario: %v\n", err)
		return 1
	}

	if cfg.Trace.Path != "" && !*noRecord {
		id, err := recordRun(cfg.Trace.Path, out.Run)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: record run: %v\n", err)
			return 1
		}
		out.Run.ID = id
		log.WithRun(id).Info("run recorded", "scenario", out.Run.Scenario, "trace", cfg.Trace.Path)
	}

	if *jsonOut {
		report := runReport{Passed: out.Passed(), Failures: out.Failures, Run: out.Run}
		if report.Failures == nil {
			report.Failures = []string{}
		}
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: render JSON: %v\n", err)
			return 1
		}
		fmt.Println(string(data))
	} else {
		printRun(out)
	}

	if !out.Passed() {
		return 1
	}
	return 0
}

func recordRun(dbPath string, run trace.Run) (string, error) {
	l, err := lock.Acquire(lock.PathFor(dbPath))
	if err != nil {
		return "", err
	}
	defer func() { _ = l.Release() }()

	ctx := context.Background()
	db, err := storage.OpenSQLite(ctx, dbPath)
	if err != nil {
		return "", err
	}
	defer db.Close()
	return trace.NewStore(db).RecordRun(ctx, run)
}

func printRun(out *scenario.Outcome) {
	inspect.Render(os.Stdout, out.Run)
	if out.Passed() {
		fmt.Println("PASS")
		return
	}
	for _, f := range out.Failures {
		fmt.Printf("FAIL %s\n", f)
	}
}

func runInspect(args []string) int {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	jsonOut := fs.Bool("json", false, "Print the run as JSON")
	if err := fs.Parse(reorderFlags(args)); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: capinvoke inspect <run-id> [--config PATH] [--json]")
		return 1
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if cfg.Trace.Path == "" {
		fmt.Fprintln(os.Stderr, "Error: trace.path is not set; no runs are recorded")
		return 1
	}

	ctx := context.Background()
	db, err := storage.OpenSQLite(ctx, cfg.Trace.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer db.Close()

	store := trace.NewStore(db)
	build := inspect.BuildReport
	if *jsonOut {
		build = inspect.BuildJSONReport
	}
	report, err := build(ctx, store, fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Println(strings.TrimRight(report, "\n"))
	return 0
}

func shortHash(h string) string {
	if len(h) <= 12 {
		return h
	}
	return h[:12]
}

func runServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	listen := fs.String("listen", "", "Override api.listen")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if cfg.Trace.Path == "" {
		fmt.Fprintln(os.Stderr, "Error: trace.path is not set; nothing to serve")
		return 1
	}
	if *listen != "" {
		cfg.API.Listen = *listen
	}

	log.Setup(cfg.Service.LogLevel)
	logger := log.WithComponent("main")
	logger.Info("capinvoke starting", "version", version, "config", *configPath, "trace", cfg.Trace.Path)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := storage.OpenSQLite(ctx, cfg.Trace.Path)
	if err != nil {
		logger.Error("failed to open trace database", "path", cfg.Trace.Path, "error", err)
		return 1
	}
	defer db.Close()

	srv := api.New(api.Config{Listen: cfg.API.Listen}, trace.NewStore(db), log.WithComponent("api"))
	if err := srv.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("API server failed", "error", err)
		return 1
	}
	logger.Info("capinvoke stopped")
	return 0
}

func runConfigNoun(args []string) int {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: capinvoke config <check|hash-update> [flags]")
		return 1
	}

	action := args[0]
	actionArgs := args[1:]

	switch action {
	case "check":
		return runConfigCheck(actionArgs)
	case "hash-update", "lock":
		return runConfigHashUpdate(actionArgs)
	default:
		fmt.Fprintf(os.Stderr, "Unknown config action: %s\n", action)
		return 1
	}
}

func runConfigCheck(args []string) int {
	fs := flag.NewFlagSet("config check", flag.ContinueOnError)
	configPath := fs.String("config", ".", "Path to configuration file or directory")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Printf("Configuration OK: %s\n", *configPath)
	fmt.Printf("  kernel: max_irq=%d cores=%d\n", cfg.Kernel.MaxIRQ, cfg.Kernel.Cores)
	if cfg.Trace.Path != "" {
		fmt.Printf("  trace:  %s\n", cfg.Trace.Path)
	} else {
		fmt.Println("  trace:  disabled")
	}
	return 0
}

func runConfigHashUpdate(args []string) int {
	fs := flag.NewFlagSet("config hash-update", flag.ContinueOnError)
	configPath := fs.String("config", ".", "Path to configuration file or directory")
	dryRun := fs.Bool("dry-run", false, "Show what would be hashed without writing")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	configDir, file, err := splitConfigPath(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	report, err := config.GenerateChecksumsWithReport(configDir, []string{file}, *dryRun)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	for _, f := range report.Files {
		if !f.Exists {
			fmt.Printf("  missing %s\n", f.Filename)
			continue
		}
		fmt.Printf("  %s  %s\n", shortHash(f.Hash), f.Filename)
	}
	if *dryRun {
		fmt.Printf("Dry run: would write %s\n", report.ChecksumPath)
		return 0
	}
	fmt.Printf("Wrote %s\n", report.ChecksumPath)
	return 0
}

// splitConfigPath resolves a --config value into its directory and file name.
func splitConfigPath(path string) (string, string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", "", fmt.Errorf("resolve %q: %w", path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", "", fmt.Errorf("config path not found: %s", abs)
	}
	if info.IsDir() {
		return abs, config.ConfigFileName, nil
	}
	return filepath.Dir(abs), filepath.Base(abs), nil
}

// reorderFlags moves flags ahead of positional arguments so that
// "run scenario.yaml --json" parses like "run --json scenario.yaml".
func reorderFlags(args []string) []string {
	takesValue := map[string]bool{"config": true}
	var flags, positionals []string
	for i := 0; i < len(args); i++ {
		a := args[i]
		if !strings.HasPrefix(a, "-") || a == "-" {
			positionals = append(positionals, a)
			continue
		}
		flags = append(flags, a)
		name := strings.TrimLeft(a, "-")
		if takesValue[name] && i+1 < len(args) {
			flags = append(flags, args[i+1])
			i++
		}
	}
	return append(flags, positionals...)
}

type versionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

func runVersion(args []string) int {
	fs := flag.NewFlagSet("version", flag.ContinueOnError)
	jsonOut := fs.Bool("json", false, "Output version metadata as JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	info := currentVersionInfo()
	if *jsonOut {
		data, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: render version JSON: %v\n", err)
			return 1
		}
		fmt.Println(string(data))
		return 0
	}

	fmt.Printf("capinvoke %s\n", info.Version)
	fmt.Printf("commit: %s\n", info.Commit)
	fmt.Printf("built_at: %s\n", info.BuildTime)
	return 0
}

func currentVersionInfo() versionInfo {
	info := versionInfo{
		Version:   strings.TrimSpace(version),
		Commit:    strings.TrimSpace(gitCommit),
		BuildTime: strings.TrimSpace(buildDate),
	}
	if info.Version == "" {
		info.Version = "0.0.0-dev"
	}
	if info.Commit == "" || info.Commit == "unknown" {
		info.Commit = buildSetting("vcs.revision", "unknown")
	}
	info.Commit = shortHash(info.Commit)
	if info.BuildTime == "" || info.BuildTime == "unknown" {
		info.BuildTime = buildSetting("vcs.time", "unknown")
	}
	if t, err := time.Parse(time.RFC3339Nano, info.BuildTime); err == nil {
		info.BuildTime = t.UTC().Format(time.RFC3339)
	}
	return info
}

func buildSetting(key, fallback string) string {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return fallback
	}
	for _, s := range bi.Settings {
		if s.Key == key && s.Value != "" {
			return s.Value
		}
	}
	return fallback
}
