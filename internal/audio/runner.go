package audio

import (
	"bytes"
	"context"
	"os"
	"os/exec"
)

// Runner executes an external media tool and returns what it wrote to
// stdout and stderr. A non-nil error means the tool could not be started or
// exited non-zero.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

// ExecRunner runs tools with os/exec.
type ExecRunner struct {
	// Env is appended to the parent environment. Empty means inherit as-is.
	Env []string
}

// Run implements Runner.
func (r ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec // binaries come from config, args are built here
	if len(r.Env) > 0 {
		cmd.Env = append(os.Environ(), r.Env...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}
