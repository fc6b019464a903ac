//go:build mage
// +build mage

package main

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/magefile/mage/mg"
)

// Default target to run when none is specified
// If not set, running mage will list available targets
var Default = Build

// executables without cgo dependencies
var pureGo = []string{"importdata", "decodewc", "convertstivi", "simulation", "fit", "fitgauss", "calibrate", "plotfit"}

// Build compiles every stage into ./bin
func Build() error {
	mg.Deps(BuildStages)
	mg.Deps(BuildReshape)
	fmt.Println("Compilation finished")
	return nil
}

func buildExecutable(name string, cgo bool) error {
	fmt.Printf("Building %s executable...\n", name)
	cmd := exec.Command("go", "build", "-o", "./bin/"+name, "./"+name)
	cmd.Env = os.Environ()
	if cgo {
		ldflags := os.Getenv("CGO_LDFLAGS")
		cflags := os.Getenv("CGO_CFLAGS")
		cmd.Env = append(cmd.Env,
			"CGO_ENABLED=1",
			fmt.Sprintf("CGO_LDFLAGS=%s", ldflags),
			fmt.Sprintf("CGO_CFLAGS=%s", cflags))
	} else {
		cmd.Env = append(cmd.Env, "CGO_ENABLED=0")
	}
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func BuildStages() error {
	for _, name := range pureGo {
		if err := buildExecutable(name, false); err != nil {
			return err
		}
	}
	return nil
}

// BuildReshape needs the HDF5 C library.
func BuildReshape() error {
	return buildExecutable("reshape", true)
}

// Test runs the library tests.
func Test() error {
	cmd := exec.Command("go", "test", "./pkg/...")
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func Clean() error {
	fmt.Println("Removing ./bin")
	return os.RemoveAll("bin")
}
