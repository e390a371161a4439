package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"golang.org/x/text/language"

	"github.com/gogpu/timewarp"
	"github.com/gogpu/timewarp/internal/analysis"
	"github.com/gogpu/timewarp/internal/config"
	"github.com/gogpu/timewarp/internal/demoscene"
	"github.com/gogpu/timewarp/internal/testrun"
)

const worstShown = 5

func runSweep(ctx context.Context, args []string) error {
	var g globalFlags
	fs := flag.NewFlagSet("sweep", flag.ContinueOnError)
	g.register(fs)
	id := fs.String("id", "", "run identifier (default: random UUID)")
	noAnalyze := fs.Bool("no-analyze", false, "skip scoring the run")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := g.load()
	if err != nil {
		return err
	}
	proj, err := cfg.TimewarpProjection()
	if err != nil {
		return err
	}
	settings := cfg.Settings()

	scene := demoscene.Room(demoscene.WithWorkers(cfg.Workers))
	defer scene.Close()
	alg, closeAlg, err := newAlgorithm(cfg, settings.Algorithm, g.gpu)
	if err != nil {
		return err
	}
	defer closeAlg()

	res, err := testrun.Run(ctx, scene, alg, testrun.Options{
		OutputDir:  cfg.OutputDir,
		ID:         *id,
		Width:      cfg.Width,
		Height:     cfg.Height,
		Projection: proj,
		Sweep:      cfg.TimewarpSweep(),
		Params:     settings.Params,
		Snapshot:   cfg.Snapshot,
		Progress:   os.Stderr,
	})
	if err != nil {
		return err
	}
	fmt.Printf("run %s: %d poses in %v -> %s\n", res.ID, res.Poses, res.Elapsed.Round(1e6), res.Dir)

	if *noAnalyze {
		return nil
	}
	return analyzeAndStore(ctx, cfg, res.Dir)
}

func runAnalyze(ctx context.Context, args []string) error {
	var g globalFlags
	fs := flag.NewFlagSet("analyze", flag.ContinueOnError)
	g.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := g.load()
	if err != nil {
		return err
	}

	dir := fs.Arg(0)
	if dir == "" {
		if dir, err = analysis.LatestRun(cfg.OutputDir); err != nil {
			return err
		}
	}
	return analyzeAndStore(ctx, cfg, dir)
}

func analyzeAndStore(ctx context.Context, cfg *config.Config, dir string) error {
	report, err := analysis.Analyze(ctx, dir, analysis.Options{
		Workers: cfg.Workers,
		SSIM:    analysis.DefaultSSIMOptions(),
	})
	if err != nil {
		return err
	}
	if report.Info.ID == "" {
		report.Info.ID = filepath.Base(dir)
	}

	if cfg.Database != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Database), 0o755); err != nil {
			return err
		}
		store, err := analysis.OpenStore(cfg.Database)
		if err != nil {
			return err
		}
		defer store.Close()
		if err := store.Save(ctx, report); err != nil {
			return err
		}
		timewarp.Logger().Info("analysis stored", "run", report.Info.ID, "database", cfg.Database)
	}
	return report.WriteText(os.Stdout, language.English, worstShown)
}

func runRuns(ctx context.Context, args []string) error {
	var g globalFlags
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	g.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := g.load()
	if err != nil {
		return err
	}
	store, err := analysis.OpenStore(cfg.Database)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.Runs(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tALGORITHM\tMODE\tMEAN SSIM\tMIN SSIM\tMEAN MSE\tANALYZED")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.4f\t%.4f\t%.6f\t%s\n",
			r.Info.ID, r.Info.Algorithm, r.Info.Mode, r.MeanSSIM, r.MinSSIM, r.MeanMSE,
			r.AnalyzedAt.Format("2006-01-02 15:04:05"))
	}
	return tw.Flush()
}
