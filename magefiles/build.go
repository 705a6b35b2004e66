//go:build mage

package main

import (
	"path/filepath"
	"runtime"

	"github.com/magefile/mage/mg"
)

type Build mg.Namespace

var binary = filepath.Join("bin", "anima-cooker")

func init() {
	if runtime.GOOS == "windows" {
		binary += ".exe"
	}
}

// Builds the cooker into bin/.
func (Build) Cooker() error {
	_, err := executeCmd("go", withArgs("build", "-trimpath", "-o", binary, "."), withEnv("CGO_ENABLED=0"), withStream())
	return err
}

// Runs the unit tests of every package.
func (Build) Test() error {
	_, err := executeCmd("go", withArgs("test", "./..."), withStream())
	return err
}

// Runs go vet and the tests with the race detector.
func (Build) Check() error {
	if _, err := executeCmd("go", withArgs("vet", "./..."), withStream()); err != nil {
		return err
	}
	_, err := executeCmd("go", withArgs("test", "-race", "./..."), withStream())
	return err
}
