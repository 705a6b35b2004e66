//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Cooks a project for a platform, e.g. mage run:cook ./MyGame Windows.
func (Run) Cook(project, platform string) error {
	mg.Deps(Build.Cooker)
	fmt.Printf("Cooking %s for %s...\n", project, platform)
	_, err := executeCmd(binary, withArgs("cook", "--project", project, "--platform", platform), withStream())
	return err
}

// Cooks a project and keeps cooking it whenever its content changes.
func (Run) Watch(project, platform string) error {
	mg.Deps(Build.Cooker)
	_, err := executeCmd(binary, withArgs("cook", "--project", project, "--platform", platform, "--watch", "--skip-packaging"), withStream())
	return err
}
