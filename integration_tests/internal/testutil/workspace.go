package testutil

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// Workspace is a scratch directory holding plan and config files for one test.
type Workspace struct {
	Dir    string
	binary string
}

// Result is the outcome of one CLI invocation.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Output returns stdout and stderr together.
func (r Result) Output() string {
	return r.Stdout + r.Stderr
}

// SetupWorkspace creates a unique directory in tmp_integration_tests/ and
// writes files into it. The directory is removed when the test ends unless
// keep is set.
func SetupWorkspace(t *testing.T, binary string, files map[string]string, keep bool) *Workspace {
	t.Helper()

	root, err := filepath.Abs(filepath.Join("..", "tmp_integration_tests"))
	require.NoError(t, err, "failed to get workspace root path")

	randomBytes := make([]byte, 4)
	_, err = rand.Read(randomBytes)
	require.NoError(t, err, "failed to generate random bytes")

	testName := strings.ReplaceAll(t.Name(), "/", "_")
	dir := filepath.Join(root, fmt.Sprintf("%s-%s", testName, hex.EncodeToString(randomBytes)))
	require.NoError(t, os.MkdirAll(dir, 0755), "failed to create test workspace directory")

	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}

	t.Cleanup(func() {
		if keep {
			t.Logf("Workspace preserved in: %s", dir)
			return
		}
		if err := os.RemoveAll(dir); err != nil {
			t.Logf("Warning: failed to clean up workspace directory %s: %v", dir, err)
		}
	})

	return &Workspace{Dir: dir, binary: binary}
}

// Path returns the absolute path of a file in the workspace.
func (w *Workspace) Path(name string) string {
	return filepath.Join(w.Dir, name)
}

// Run executes the shed binary in the workspace directory.
func (w *Workspace) Run(t *testing.T, args ...string) Result {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, w.binary, args...)
	cmd.Dir = w.Dir
	cmd.Env = append(os.Environ(), "LOG_MODE=", "LOG_FORMAT=")
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	var exitErr *exec.ExitError
	switch {
	case errors.As(err, &exitErr):
		result.ExitCode = exitErr.ExitCode()
	case err != nil:
		require.NoError(t, err, "failed to run shed")
	}

	t.Logf("shed %s exited %d", strings.Join(args, " "), result.ExitCode)
	return result
}
