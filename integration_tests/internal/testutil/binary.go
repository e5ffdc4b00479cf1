package testutil

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// ShedBinary returns the path to the shed binary for integration tests.
// It checks these locations in order:
// 1. SHED_BINARY environment variable
// 2. Parent directory (../shed), where make build leaves it
// 3. bin directory (../bin/shed)
// When none exists the binary is built into a temporary directory, which the
// returned cleanup function removes.
func ShedBinary() (string, func(), error) {
	noop := func() {}

	if path := os.Getenv("SHED_BINARY"); path != "" {
		if _, err := os.Stat(path); err != nil {
			return "", noop, fmt.Errorf("SHED_BINARY: %w", err)
		}
		return path, noop, nil
	}

	for _, candidate := range []string{filepath.Join("..", "shed"), filepath.Join("..", "bin", "shed")} {
		if _, err := os.Stat(candidate); err == nil {
			abs, err := filepath.Abs(candidate)
			if err != nil {
				return "", noop, err
			}
			return abs, noop, nil
		}
	}

	dir, err := os.MkdirTemp("", "shed-bin-")
	if err != nil {
		return "", noop, err
	}
	cleanup := func() { _ = os.RemoveAll(dir) }

	path := filepath.Join(dir, "shed")
	build := exec.Command("go", "build", "-o", path, ".")
	build.Dir = ".."
	if out, err := build.CombinedOutput(); err != nil {
		cleanup()
		return "", noop, fmt.Errorf("go build failed: %w\n%s", err, out)
	}
	return path, cleanup, nil
}
