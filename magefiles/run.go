//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Runs the testbed against the Vulkan backend.
func (Run) Testbed() error {
	mg.Deps(Build.Shaders)
	fmt.Println("Run testbed...")
	_, err := executeCmd("go", withArgs("run", ".", "-config", "config.toml"), withStream())
	return err
}

// Runs the testbed headless for a few frames on the null backend.
func (Run) Null() error {
	mg.Deps(Build.Shaders)
	_, err := executeCmd("go", withArgs("run", ".", "-renderer", "null", "-frames", "10"), withStream())
	return err
}

// Runs the unit tests.
func Test() error {
	_, err := executeCmd("go", withArgs("test", "./..."), withStream())
	return err
}
