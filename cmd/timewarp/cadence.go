package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/timewarp"
	"github.com/gogpu/timewarp/internal/demoscene"
)

// Camera motion of the cadence simulation: a sideways sway with a slight
// yaw, so consecutive presents need reprojection.
const (
	swayAmplitude = 0.3 // world units
	swayYaw       = 6   // degrees
	swayPeriod    = 2 * time.Second

	defaultPresentInterval = time.Second / 90
)

func runCadence(ctx context.Context, args []string) error {
	var g globalFlags
	fs := flag.NewFlagSet("cadence", flag.ContinueOnError)
	g.register(fs)
	duration := fs.Duration("duration", 2*time.Second, "simulated (or, with -realtime, wall-clock) duration")
	realtime := fs.Bool("realtime", false, "run against the system clock")
	dump := fs.String("dump", "", "write every presented frame as PNG into this directory")
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

	start := time.Now()
	var clock timewarp.Clock = timewarp.SystemClock{}
	var manual *timewarp.ManualClock
	if !*realtime {
		manual = timewarp.NewManualClock(start)
		clock = manual
	}
	origin := cfg.Sweep.Start.StartPose()
	poses := func() timewarp.Pose {
		return swayPose(origin, clock.Now().Sub(start))
	}

	opts := []timewarp.SchedulerOption{
		timewarp.WithClock(clock),
		timewarp.WithRenderInterval(cfg.RenderInterval.Duration()),
		timewarp.WithControls(timewarp.NewControls(settings)),
	}
	alg, closeAlg, err := newAlgorithm(cfg, settings.Algorithm, g.gpu)
	if err != nil {
		return err
	}
	defer closeAlg()
	opts = append(opts, timewarp.WithAlgorithm(settings.Algorithm, alg))

	presenter := timewarp.NewImagePresenter(0, 0)
	if *dump != "" {
		if err := os.MkdirAll(*dump, 0o755); err != nil {
			return err
		}
		var dumpErr error
		presenter.OnPresent(func(img *timewarp.Image) {
			if dumpErr != nil {
				return
			}
			name := filepath.Join(*dump, fmt.Sprintf("present_%05d.png", presenter.Count()))
			if dumpErr = img.SavePNG(name); dumpErr != nil {
				timewarp.Logger().Warn("dumping presented frame failed", "err", dumpErr)
			}
		})
	}

	store := timewarp.NewFrameStore(cfg.Width, cfg.Height, proj)
	sched, err := timewarp.NewScheduler(scene, presenter, poses, store, opts...)
	if err != nil {
		return err
	}
	defer sched.Close()

	period := cfg.PresentInterval.Duration()
	if period <= 0 {
		period = defaultPresentInterval
	}
	if *realtime {
		runCtx, cancel := context.WithTimeout(ctx, *duration)
		defer cancel()
		if err := sched.Run(runCtx, period); err != nil {
			return err
		}
	} else {
		ticks := int(*duration / period)
		for range ticks {
			if ctx.Err() != nil {
				break
			}
			if _, err := sched.Tick(ctx); err != nil {
				return err
			}
			manual.Advance(period)
		}
	}

	stats := sched.Stats()
	elapsed := clock.Now().Sub(start)
	fmt.Printf("%d ticks, %d renders, %d presents in %v (%.1f renders/s, %.1f presents/s)\n",
		stats.Ticks, stats.Renders, stats.Presents, elapsed.Round(time.Millisecond),
		perSecond(stats.Renders, elapsed), perSecond(stats.Presents, elapsed))

	if last := presenter.Last(); last != nil {
		if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
			return err
		}
		path := filepath.Join(cfg.OutputDir, "cadence_last.png")
		if err := last.SavePNG(path); err != nil {
			return err
		}
		fmt.Println("last presented frame:", path)
	}
	return nil
}

// swayPose moves origin sideways along its own x axis and yaws it slightly,
// with period swayPeriod.
func swayPose(origin timewarp.Pose, t time.Duration) timewarp.Pose {
	phase := 2 * math.Pi * t.Seconds() / swayPeriod.Seconds()
	s := float32(math.Sin(phase))
	right := origin.Orientation.Rotate(mgl32.Vec3{1, 0, 0})
	yaw := mgl32.QuatRotate(mgl32.DegToRad(swayYaw*s), mgl32.Vec3{0, 1, 0})
	return timewarp.NewPose(origin.Position.Add(right.Mul(swayAmplitude*s)), yaw.Mul(origin.Orientation))
}

func perSecond(n uint64, d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(n) / d.Seconds()
}
