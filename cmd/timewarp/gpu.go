//go:build !nogpu

package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/gogpu/timewarp"
	"github.com/gogpu/timewarp/gpu"
	"github.com/gogpu/timewarp/internal/config"
)

func newGPUAlgorithm(cfg *config.Config, kind timewarp.AlgorithmKind) (timewarp.Algorithm, func(), error) {
	r, err := gpu.Open(kind, gpu.WithMeshGrid(cfg.MeshGrid.Width, cfg.MeshGrid.Height))
	if err != nil {
		return nil, nil, err
	}
	return r, r.Close, nil
}

func runShaders(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("shaders", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	shaders, err := gpu.CompileShaders()
	if err != nil {
		return err
	}
	for _, s := range shaders {
		fmt.Printf("%-9s %6d bytes SPIR-V\n", s.Kind, len(s.SPIRV))
	}
	return nil
}
