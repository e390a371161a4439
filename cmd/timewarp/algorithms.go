package main

import (
	"github.com/gogpu/timewarp"
	"github.com/gogpu/timewarp/internal/config"
)

// newAlgorithm builds the reprojector selected by cfg. The returned function
// releases it.
func newAlgorithm(cfg *config.Config, kind timewarp.AlgorithmKind, useGPU bool) (timewarp.Algorithm, func(), error) {
	if useGPU {
		alg, closeFn, err := newGPUAlgorithm(cfg, kind)
		if err == nil {
			return alg, closeFn, nil
		}
		timewarp.Logger().Warn("GPU reprojector not available, using CPU", "err", err)
	}
	switch kind {
	case timewarp.AlgorithmRayMarch:
		r := timewarp.NewRayMarchReprojector(timewarp.WithWorkers(cfg.Workers))
		return r, r.Close, nil
	default:
		m, err := timewarp.NewMeshReprojector(cfg.MeshGrid.Width, cfg.MeshGrid.Height, timewarp.WithWorkers(cfg.Workers))
		if err != nil {
			return nil, nil, err
		}
		return m, m.Close, nil
	}
}
