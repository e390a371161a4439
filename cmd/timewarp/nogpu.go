//go:build nogpu

package main

import (
	"context"
	"errors"

	"github.com/gogpu/timewarp"
	"github.com/gogpu/timewarp/internal/config"
)

var errNoGPU = errors.New("built with the nogpu tag")

func newGPUAlgorithm(*config.Config, timewarp.AlgorithmKind) (timewarp.Algorithm, func(), error) {
	return nil, nil, errNoGPU
}

func runShaders(context.Context, []string) error {
	return errNoGPU
}
