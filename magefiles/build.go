//go:build mage

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
)

const shaderDir = "assets/shaders"

type Build mg.Namespace

// Compiles every GLSL stage under assets/shaders to SPIR-V next to it.
func (Build) Shaders() error {
	entries, err := os.ReadDir(shaderDir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		switch filepath.Ext(e.Name()) {
		case ".vert", ".frag", ".geom", ".comp":
		default:
			continue
		}
		if _, err := executeCmd("glslc", withArgs(e.Name(), "-o", e.Name()+".spv"), withDir(shaderDir), withStream()); err != nil {
			return err
		}
	}
	return nil
}

// Builds the testbed binary.
func (Build) Engine() error {
	mg.Deps(Build.Shaders)
	_, err := executeCmd("go", withArgs("build", "-o", filepath.Join("bin", "anima-hal"), "."), withStream())
	return err
}

// Removes compiled shaders, captures and binaries.
func Clean() error {
	spv, err := filepath.Glob(filepath.Join(shaderDir, "*.spv"))
	if err != nil {
		return err
	}
	for _, p := range append(spv, "bin", "captures") {
		fmt.Println("Removing", p)
		if err := os.RemoveAll(p); err != nil {
			return err
		}
	}
	return nil
}
