//go:build mage

package main

import (
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const binDir = "bin"

var Default = Build

// Build compiles the ROLL binary into bin/.
func Build() error {
	mg.Deps(Vet)
	if err := os.MkdirAll(binDir, 0755); err != nil {
		return err
	}
	return sh.RunV("go", "build", "-o", filepath.Join(binDir, "ROLL"), "./cmd/roll")
}

// BuildArm cross-compiles for 32-bit ARM Linux boards.
func BuildArm() error {
	if err := os.MkdirAll(binDir, 0755); err != nil {
		return err
	}
	env := map[string]string{"GOOS": "linux", "GOARCH": "arm", "GOARM": "7"}
	return sh.RunWithV(env, "go", "build", "-o", filepath.Join(binDir, "ROLL_arm"), "./cmd/roll")
}

func Vet() error {
	return sh.RunV("go", "vet", "./...")
}

func Test() error {
	return sh.RunV("go", "test", "-race", "./...")
}

func Clean() error {
	return os.RemoveAll(binDir)
}
