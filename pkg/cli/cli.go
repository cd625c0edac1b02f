// Package cli wires up the bindsmith flags and dispatches to the generation
// pipeline.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	flag "github.com/spf13/pflag"

	"github.com/funvibe/bindsmith/internal/cache"
	"github.com/funvibe/bindsmith/internal/config"
	"github.com/funvibe/bindsmith/internal/logging"
	"github.com/funvibe/bindsmith/internal/pipeline"
)

// version is overridable at link time:
//
//	go build -ldflags "-X github.com/funvibe/bindsmith/pkg/cli.version=1.2.0"
var version = "0.1.0"

type options struct {
	configPath string
	dryRun     bool
	noCache    bool
	verbose    int
	logLevel   string
	logFormat  string
}

// Execute parses args and runs the requested command, writing reports to
// out.
func Execute(ctx context.Context, args []string, out io.Writer) error {
	opts := &options{}
	fs := flag.NewFlagSet("bindsmith", flag.ContinueOnError)
	fs.SetOutput(out)

	fs.StringVarP(&opts.configPath, "config", "c", "", "Path to bindsmith.yaml (searched upwards from the working directory by default)")
	fs.BoolVarP(&opts.dryRun, "dry-run", "n", false, "Resolve and render without writing the generated file")
	fs.BoolVar(&opts.noCache, "no-cache", false, "Ignore and do not update the selection cache")

	fs.CountVarP(&opts.verbose, "verbose", "v", "Log binding decisions (same as --log-level debug)")
	fs.StringVar(&opts.logLevel, "log-level", "info", "Log level: debug, info, warn or error")
	fs.StringVar(&opts.logFormat, "log-format", logging.FormatAuto, "Log format: auto, text or json")

	var showVersion, showHelp bool
	fs.BoolVar(&showVersion, "version", false, "Print version and exit")
	fs.BoolVarP(&showHelp, "help", "h", false, "Show this help")

	fs.Usage = func() { printUsage(out, fs) }

	if err := fs.Parse(args); err != nil {
		return err
	}
	if showHelp {
		printUsage(out, fs)
		return nil
	}
	if showVersion {
		fmt.Fprintf(out, "bindsmith %s\n", version)
		return nil
	}

	command, rest := "generate", fs.Args()
	if len(rest) > 0 {
		command, rest = rest[0], rest[1:]
	}

	logger, err := newLogger(opts)
	if err != nil {
		return err
	}
	configPath, err := resolveConfig(opts.configPath)
	if err != nil {
		return err
	}

	switch command {
	case "generate":
		return runGenerate(ctx, out, opts, configPath, logger)
	case "check":
		opts.dryRun = true
		return runCheck(ctx, out, opts, configPath, logger)
	case "list":
		return runList(ctx, out, configPath, logger)
	case "cache":
		if len(rest) != 1 || rest[0] != "clean" {
			return fmt.Errorf("usage: bindsmith cache clean")
		}
		return runCacheClean(ctx, out, configPath)
	}
	return fmt.Errorf("unknown command %q (available: generate, check, list, cache clean)", command)
}

func resolveConfig(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("cannot determine working directory: %w", err)
	}
	found, err := config.FindConfig(cwd)
	if err != nil {
		return "", err
	}
	if found == "" {
		return "", errors.New("bindsmith.yaml not found (or use --config)")
	}
	return found, nil
}

func newLogger(opts *options) (*slog.Logger, error) {
	level, err := logging.ParseLevel(opts.logLevel)
	if err != nil {
		return nil, err
	}
	if opts.verbose > 0 {
		level = logging.LevelDebug
	}
	return logging.New(&logging.Config{
		Level:     level,
		Format:    opts.logFormat,
		Output:    os.Stderr,
		Component: "bindsmith",
	})
}

func run(ctx context.Context, opts *options, configPath string, logger *slog.Logger) (*pipeline.PipelineContext, error) {
	var store *cache.Cache
	if !opts.noCache {
		s, err := cache.OpenProject(ctx, filepath.Dir(configPath))
		if err != nil {
			logger.Warn("selection cache unavailable", "error", err)
		} else {
			store = s
			defer store.Close()
		}
	}

	pctx := pipeline.NewContext(ctx, configPath, logger)
	pctx.DryRun = opts.dryRun
	pctx = pipeline.Default(store, nil).Run(pctx)
	return pctx, pctx.Err()
}

func runGenerate(ctx context.Context, out io.Writer, opts *options, configPath string, logger *slog.Logger) error {
	pctx, err := run(ctx, opts, configPath, logger)
	if err != nil {
		return err
	}
	verb := "Generated"
	if opts.dryRun {
		verb = "Would generate"
	}
	fmt.Fprintf(out, "%s %s (%d delegations, %d synthetic members, %d cached selections)\n",
		verb, pctx.File.Filename, len(pctx.Output.Delegations), len(pctx.Output.Members), pctx.Stats.CacheHits)
	return nil
}

func runCheck(ctx context.Context, out io.Writer, opts *options, configPath string, logger *slog.Logger) error {
	pctx, err := run(ctx, opts, configPath, logger)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Config: %s ✓\n", configPath)
	fmt.Fprintf(out, "Unit: %s (%s)\n", pctx.Output.Name, pctx.Output.Scope.Package)
	for _, d := range pctx.Output.Delegations {
		fmt.Fprintf(out, "  %s → %s %s\n", d.Receiver.String(), d.Target.String(), d.Score)
	}
	for _, m := range pctx.Output.Members {
		fmt.Fprintf(out, "  synthetic %s\n", m)
	}
	fmt.Fprintln(out, "\nAll receivers bound ✓")
	return nil
}

func runList(ctx context.Context, out io.Writer, configPath string, logger *slog.Logger) error {
	pctx := pipeline.NewContext(ctx, configPath, logger)
	pctx = pipeline.New(&pipeline.ConfigProcessor{}, &pipeline.SourceProcessor{}).Run(pctx)
	if err := pctx.Err(); err != nil {
		return err
	}
	fmt.Fprintf(out, "Receivers (%d):\n", len(pctx.Receivers))
	for i := range pctx.Receivers {
		fmt.Fprintf(out, "  %s\n", pctx.Receivers[i].String())
	}
	fmt.Fprintf(out, "Candidates (%d):\n", len(pctx.Candidates))
	for i := range pctx.Candidates {
		c := &pctx.Candidates[i]
		fmt.Fprintf(out, "  %s", c.String())
		if c.Static {
			fmt.Fprint(out, " [static]")
		}
		if c.Special {
			fmt.Fprint(out, " [special]")
		}
		if c.Ignored {
			fmt.Fprint(out, " [ignored]")
		}
		if c.Priority != 0 {
			fmt.Fprintf(out, " [priority:%d]", c.Priority)
		}
		fmt.Fprintln(out)
	}
	return nil
}

func runCacheClean(ctx context.Context, out io.Writer, configPath string) error {
	store, err := cache.OpenProject(ctx, filepath.Dir(configPath))
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.Clean(ctx); err != nil {
		return err
	}
	fmt.Fprintf(out, "Cleaned %s\n", cache.Dir(filepath.Dir(configPath)))
	return nil
}

func printUsage(out io.Writer, fs *flag.FlagSet) {
	fmt.Fprintf(out, `bindsmith %s

Generates Go types whose methods delegate to the best matching candidate.

Usage:
  bindsmith [options] [generate]     Bind receivers and write the generated file
  bindsmith [options] check          Bind receivers and report the selections
  bindsmith [options] list           List receivers and candidates
  bindsmith [options] cache clean    Forget remembered selections

Options:
`, version)
	fs.PrintDefaults()
}
