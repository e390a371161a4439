//go:build !nogpu

package gpu

import (
	_ "embed"
	"fmt"

	"github.com/gogpu/naga"

	"github.com/gogpu/timewarp"
)

//go:embed shaders/mesh_warp.wgsl
var meshWarpShaderSource string

//go:embed shaders/ray_warp.wgsl
var rayWarpShaderSource string

// ShaderSource returns the WGSL source of the shader for kind.
func ShaderSource(kind timewarp.AlgorithmKind) (string, error) {
	switch kind {
	case timewarp.AlgorithmMesh:
		return meshWarpShaderSource, nil
	case timewarp.AlgorithmRayMarch:
		return rayWarpShaderSource, nil
	}
	return "", fmt.Errorf("%w: %v", timewarp.ErrUnknownAlgorithm, kind)
}

// CompiledShader is the SPIR-V output of one warp shader.
type CompiledShader struct {
	Kind  timewarp.AlgorithmKind
	SPIRV []byte
}

// CompileShaders translates both warp shaders to SPIR-V with naga. It
// validates the WGSL without a device.
func CompileShaders() ([]CompiledShader, error) {
	kinds := []timewarp.AlgorithmKind{timewarp.AlgorithmMesh, timewarp.AlgorithmRayMarch}
	out := make([]CompiledShader, 0, len(kinds))
	for _, kind := range kinds {
		src, err := ShaderSource(kind)
		if err != nil {
			return nil, err
		}
		spirv, err := naga.Compile(src)
		if err != nil {
			return nil, fmt.Errorf("compile %s shader: %w", kind, err)
		}
		out = append(out, CompiledShader{Kind: kind, SPIRV: spirv})
	}
	return out, nil
}
