package loaders

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spaghettifunk/anima-hal/engine/core"
	"github.com/spaghettifunk/anima-hal/engine/renderer/metadata"
)

const spirvMagic = 0x07230203

type ShaderLoader struct{}

// Load reads a SPIR-V binary. The stage comes from the name: foo.vert.spv,
// foo.frag.spv, foo.geom.spv or foo.comp.spv.
func (sl *ShaderLoader) Load(path string, params interface{}) (*metadata.Resource, error) {
	stage, err := ShaderStageFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(data) < 4 || len(data)%4 != 0 || binary.LittleEndian.Uint32(data) != spirvMagic {
		return nil, fmt.Errorf("%s is not a SPIR-V module: %w", path, core.ErrInvalidArgument)
	}
	return &metadata.Resource{
		Name:     strings.TrimSuffix(filepath.Base(path), ".spv"),
		FullPath: path,
		DataSize: uint64(len(data)),
		Data: metadata.ShaderLoadParams{
			Type:     stage,
			ByteCode: data,
		},
	}, nil
}

func (sl *ShaderLoader) Unload(resource *metadata.Resource) error {
	resource.Data = nil
	resource.DataSize = 0
	return nil
}

func ShaderStageFromPath(path string) (metadata.ShaderType, error) {
	switch filepath.Ext(strings.TrimSuffix(path, ".spv")) {
	case ".vert":
		return metadata.SHADER_TYPE_VS, nil
	case ".frag":
		return metadata.SHADER_TYPE_PS, nil
	case ".geom":
		return metadata.SHADER_TYPE_GS, nil
	case ".comp":
		return metadata.SHADER_TYPE_CS, nil
	}
	return 0, fmt.Errorf("no shader stage in %s: %w", path, core.ErrInvalidArgument)
}
