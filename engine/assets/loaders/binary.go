package loaders

import (
	"io"
	"os"
	"path/filepath"

	"github.com/spaghettifunk/anima-hal/engine/renderer/metadata"
)

// BinaryLoader reads a file as is.
type BinaryLoader struct{}

func (bl *BinaryLoader) Load(path string, params interface{}) (*metadata.Resource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	return &metadata.Resource{
		Name:     filepath.Base(path),
		FullPath: path,
		DataSize: uint64(len(buf)),
		Data:     buf,
	}, nil
}

func (bl *BinaryLoader) Unload(resource *metadata.Resource) error {
	resource.Data = nil
	resource.DataSize = 0
	return nil
}
