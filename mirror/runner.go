package mirror

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Runner runs external tools.
type Runner interface {
	// LookPath resolves a binary name.
	LookPath(name string) (string, error)
	// Output runs a command to completion and returns stdout followed by stderr.
	Output(ctx context.Context, name string, args ...string) (string, error)
	// Start launches a command without waiting for it.
	Start(name string, args ...string) error
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// LookPath implements Runner.
func (ExecRunner) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

// Output implements Runner.
func (ExecRunner) Output(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	output := strings.TrimSpace(stdout.String()) + strings.TrimSpace(stderr.String())
	if err != nil {
		return output, fmt.Errorf("run %s: %w", name, err)
	}
	return output, nil
}

// Start implements Runner. The child is reaped in the background.
func (ExecRunner) Start(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", name, err)
	}
	go func() {
		_ = cmd.Wait()
	}()
	return nil
}
