// Package process runs child processes for actions and elevation launchers.
package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/doeshing/deskgate/internal/domain"
	"github.com/doeshing/deskgate/internal/ports"
)

// Runner runs commands on the host.
type Runner struct {
	shell     string
	shellArgs []string
}

// NewRunner builds a runner. shell selects the interpreter used by RunScript:
// "auto" (PowerShell on Windows, $SHELL or /bin/sh elsewhere), "powershell",
// "pwsh", "sh", or a path to an executable that accepts "-c".
func NewRunner(shell string) *Runner {
	name, args := resolveShell(shell, runtime.GOOS)
	return &Runner{shell: name, shellArgs: args}
}

// Shell returns the interpreter RunScript invokes.
func (r *Runner) Shell() string { return r.shell }

func resolveShell(shell, goos string) (string, []string) {
	psArgs := []string{"-NoProfile", "-NonInteractive", "-ExecutionPolicy", "Bypass", "-Command"}
	switch strings.ToLower(strings.TrimSpace(shell)) {
	case "", "auto":
		if goos == "windows" {
			return "powershell.exe", psArgs
		}
		if env := os.Getenv("SHELL"); env != "" {
			return env, []string{"-c"}
		}
		return "/bin/sh", []string{"-c"}
	case "powershell":
		return "powershell.exe", psArgs
	case "pwsh":
		return "pwsh", psArgs
	case "sh":
		return "/bin/sh", []string{"-c"}
	}
	base := strings.ToLower(strings.TrimSuffix(filepath.Base(shell), ".exe"))
	if base == "powershell" || base == "pwsh" {
		return shell, psArgs
	}
	return shell, []string{"-c"}
}

// Run implements ports.ProcessRunner.
func (r *Runner) Run(ctx context.Context, cmd domain.Command) (domain.ScriptResult, error) {
	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir
	c.Env = mergeEnv(cmd.Env)
	if cmd.Stdin != "" {
		c.Stdin = strings.NewReader(cmd.Stdin)
	}
	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	start := time.Now()
	err := c.Run()
	result := domain.ScriptResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		result.ExitCode = -1
		return result, ctxErr
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	}
	if err != nil {
		result.ExitCode = -1
		return result, fmt.Errorf("run %s: %w", cmd.Name, err)
	}
	return result, nil
}

// RunScript implements ports.ProcessRunner. Values in env are exported to the
// script so callers never splice untrusted text into the script body.
func (r *Runner) RunScript(ctx context.Context, script string, env map[string]string) (domain.ScriptResult, error) {
	args := append(append([]string{}, r.shellArgs...), script)
	return r.Run(ctx, domain.Command{Name: r.shell, Args: args, Env: env})
}

// Start implements ports.ProcessRunner. The child is detached and not waited on.
func (r *Runner) Start(cmd domain.Command) (int, error) {
	c := exec.Command(cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir
	c.Env = mergeEnv(cmd.Env)
	if err := c.Start(); err != nil {
		return 0, fmt.Errorf("start %s: %w", cmd.Name, err)
	}
	pid := c.Process.Pid
	if err := c.Process.Release(); err != nil {
		return pid, fmt.Errorf("release %s: %w", cmd.Name, err)
	}
	return pid, nil
}

func mergeEnv(extra map[string]string) []string {
	if len(extra) == 0 {
		return nil
	}
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	env := os.Environ()
	for _, k := range keys {
		env = append(env, k+"="+extra[k])
	}
	return env
}

var _ ports.ProcessRunner = (*Runner)(nil)
