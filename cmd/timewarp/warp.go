package main

import (
	"context"
	"errors"
	"flag"
	"fmt"

	"github.com/gogpu/timewarp"
	"github.com/gogpu/timewarp/internal/framecodec"
)

func runWarp(_ context.Context, args []string) error {
	var g globalFlags
	fs := flag.NewFlagSet("warp", flag.ContinueOnError)
	g.register(fs)
	snapshot := fs.String("snapshot", "", "CBOR frame snapshot written by sweep")
	offset := fs.String("offset", "0_0_0", "camera-local offset as x_y_z")
	output := fs.String("o", "warped.png", "output PNG")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *snapshot == "" {
		return errors.New("-snapshot is required")
	}
	cfg, err := g.load()
	if err != nil {
		return err
	}
	delta, err := timewarp.ParsePosition(*offset)
	if err != nil {
		return fmt.Errorf("-offset: %w", err)
	}

	src, err := framecodec.ReadFile(*snapshot)
	if err != nil {
		return err
	}
	settings := cfg.Settings()
	alg, closeAlg, err := newAlgorithm(cfg, settings.Algorithm, g.gpu)
	if err != nil {
		return err
	}
	defer closeAlg()

	fresh := src.Pose.Displaced(delta)
	dst := timewarp.NewImage(src.Width(), src.Height())
	if err := alg.Reproject(src, fresh, settings.Params, dst); err != nil {
		return err
	}
	if err := dst.SavePNG(*output); err != nil {
		return err
	}
	fmt.Printf("frame %d warped with %s to %s -> %s\n", src.Seq, alg.Name(), fresh, *output)
	return nil
}
