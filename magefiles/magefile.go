//go:build mage

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"

	// mage utility functions
	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	binaryName = "pubami"
	schemaPath = "schema/pubami-staging.json"
)

func init() {
	os.Setenv("GO111MODULE", "on")
}

// InstallDeps downloads the module dependencies and tidies go.mod.
func InstallDeps() error {
	fmt.Println(color.YellowString("Installing dependencies."))

	if err := sh.RunV("go", "mod", "download"); err != nil {
		return fmt.Errorf(color.RedString("failed to download modules: %v", err))
	}
	if err := sh.RunV("go", "mod", "tidy"); err != nil {
		return fmt.Errorf(color.RedString("failed to tidy go.mod: %v", err))
	}
	return nil
}

// RunTests executes all unit tests with the race detector.
//
// Example usage:
//
// ```go
// mage runtests
// ```
func RunTests() error {
	fmt.Println(color.YellowString("Running unit tests."))
	if err := sh.RunV("go", "test", "-race", "-count=1", "./..."); err != nil {
		return fmt.Errorf("failed to run unit tests: %v", err)
	}
	return nil
}

// GenerateSchema writes the JSON schema of staging files to schema/.
func GenerateSchema() error {
	fmt.Println(color.YellowString("Generating staging file schema."))
	if err := sh.RunV("go", "run", "./cmd/schema-gen", "-o", schemaPath); err != nil {
		return fmt.Errorf("failed to generate schema: %v", err)
	}
	return nil
}

// Compile builds the pubami binary into bin/ for GOOS/GOARCH, stamping the
// version from the VERSION environment variable and the current git commit.
//
// Example usage:
//
// ```go
// VERSION=v1.2.0 GOOS=linux GOARCH=amd64 mage compile
// ```
func Compile() error {
	mg.Deps(GenerateSchema)

	version := os.Getenv("VERSION")
	if version == "" {
		version = "dev"
	}
	commit, err := sh.Output("git", "rev-parse", "--short", "HEAD")
	if err != nil {
		commit = "none"
	}

	ldflags := strings.Join([]string{
		"-s", "-w",
		"-X main.version=" + version,
		"-X main.commit=" + commit,
		"-X main.date=" + time.Now().UTC().Format(time.RFC3339),
	}, " ")

	output := filepath.Join("bin", binaryName)
	fmt.Printf("Compiling %s %s, please wait.\n", binaryName, version)
	if err := sh.RunV("go", "build", "-ldflags", ldflags, "-o", output, "./cmd/pubami"); err != nil {
		return fmt.Errorf("failed to compile %s: %v", binaryName, err)
	}
	return nil
}
