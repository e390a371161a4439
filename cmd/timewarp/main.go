// Command timewarp renders a demo scene and reprojects it to new camera
// poses.
//
// Usage:
//
//	timewarp sweep   [flags]   render a pose sweep and score the warps
//	timewarp analyze [flags]   re-score a run directory
//	timewarp runs    [flags]   list analyzed runs
//	timewarp cadence [flags]   simulate the render/present loop
//	timewarp warp    [flags]   reproject a saved frame snapshot
//	timewarp shaders           compile the GPU shaders to SPIR-V
//	timewarp config            print the default configuration
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/gogpu/timewarp"
	"github.com/gogpu/timewarp/internal/config"
)

type command struct {
	name    string
	summary string
	run     func(ctx context.Context, args []string) error
}

var commands = []command{
	{"sweep", "render a pose sweep and score the warps", runSweep},
	{"analyze", "re-score a run directory", runAnalyze},
	{"runs", "list analyzed runs", runRuns},
	{"cadence", "simulate the render/present loop", runCadence},
	{"warp", "reproject a saved frame snapshot", runWarp},
	{"shaders", "compile the GPU shaders to SPIR-V", runShaders},
	{"config", "print the default configuration", runConfig},
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	name := os.Args[1]
	for _, c := range commands {
		if c.name != name {
			continue
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		err := c.run(ctx, os.Args[2:])
		stop()
		if err != nil && !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintf(os.Stderr, "timewarp %s: %v\n", name, err)
			os.Exit(1)
		}
		return
	}
	if name != "-h" && name != "help" && name != "--help" {
		fmt.Fprintf(os.Stderr, "timewarp: unknown command %q\n", name)
	}
	usage()
	os.Exit(2)
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: timewarp <command> [flags]")
	fmt.Fprintln(os.Stderr)
	for _, c := range commands {
		fmt.Fprintf(os.Stderr, "  %-8s %s\n", c.name, c.summary)
	}
}

// globalFlags are shared by every command that loads a configuration.
type globalFlags struct {
	config    string
	verbose   bool
	algorithm string
	gpu       bool
	outputDir string
	database  string
	workers   int
}

func (g *globalFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&g.config, "config", "", "YAML configuration file")
	fs.BoolVar(&g.verbose, "v", false, "debug logging")
	fs.StringVar(&g.algorithm, "algorithm", "", "override the algorithm (mesh or raymarch)")
	fs.BoolVar(&g.gpu, "gpu", false, "reproject on the GPU")
	fs.StringVar(&g.outputDir, "out", "", "override the output directory")
	fs.StringVar(&g.database, "db", "", "override the analysis database path")
	fs.IntVar(&g.workers, "workers", -1, "override the CPU worker count (0 = GOMAXPROCS)")
}

// load installs the logger and returns the configuration with flag
// overrides applied.
func (g *globalFlags) load() (*config.Config, error) {
	level := slog.LevelInfo
	if g.verbose {
		level = slog.LevelDebug
	}
	timewarp.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	cfg := config.Default()
	if g.config != "" {
		var err error
		if cfg, err = config.Load(g.config); err != nil {
			return nil, err
		}
	}
	if g.algorithm != "" {
		cfg.Algorithm = g.algorithm
	}
	if g.outputDir != "" {
		cfg.OutputDir = g.outputDir
	}
	if g.database != "" {
		cfg.Database = g.database
	}
	if g.workers >= 0 {
		cfg.Workers = g.workers
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runConfig(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	data, err := config.Default().Marshal()
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(data)
	return err
}
