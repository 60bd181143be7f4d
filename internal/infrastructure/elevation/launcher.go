package elevation

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"github.com/doeshing/deskgate/internal/domain"
	"github.com/doeshing/deskgate/internal/ports"
)

var declinedPrompt = regexp.MustCompile(`(?i)canceled by the user|operation was cancel+ed|not authorized|dismissed|a password is required|incorrect password`)

// RunAsLauncher elevates through PowerShell's Start-Process -Verb RunAs, which
// raises the UAC consent prompt. Output of the elevated process is captured
// through temporary files because RunAs cannot redirect standard streams.
type RunAsLauncher struct {
	runner ports.ProcessRunner
	tmpDir string
}

// NewRunAsLauncher builds a UAC launcher. tmpDir defaults to os.TempDir().
func NewRunAsLauncher(runner ports.ProcessRunner, tmpDir string) *RunAsLauncher {
	return &RunAsLauncher{runner: runner, tmpDir: tmpDir}
}

// Name implements ports.ElevationLauncher.
func (l *RunAsLauncher) Name() string { return "runas" }

// Launch implements ports.ElevationLauncher.
func (l *RunAsLauncher) Launch(ctx context.Context, script string) (domain.ScriptResult, error) {
	dir, err := os.MkdirTemp(l.tmpDir, "deskgate-elevated-")
	if err != nil {
		return domain.ScriptResult{}, failed(fmt.Errorf("create work dir: %w", err))
	}
	defer os.RemoveAll(dir)

	scriptPath := filepath.Join(dir, "action.ps1")
	wrapperPath := filepath.Join(dir, "wrapper.ps1")
	outPath := filepath.Join(dir, "stdout.txt")
	errPath := filepath.Join(dir, "stderr.txt")

	if err := os.WriteFile(scriptPath, []byte(script), domain.SecureFilePermissions); err != nil {
		return domain.ScriptResult{}, failed(fmt.Errorf("write script: %w", err))
	}
	wrapper := fmt.Sprintf(`$ErrorActionPreference = 'Continue'
try {
  & %s 1> %s 2> %s
  if ($LASTEXITCODE) { exit $LASTEXITCODE }
  if (-not $?) { exit 1 }
  exit 0
} catch {
  $_ | Out-File -Append -FilePath %s
  exit 1
}
`, psQuote(scriptPath), psQuote(outPath), psQuote(errPath), psQuote(errPath))
	if err := os.WriteFile(wrapperPath, []byte(wrapper), domain.SecureFilePermissions); err != nil {
		return domain.ScriptResult{}, failed(fmt.Errorf("write wrapper: %w", err))
	}

	// Start-Process raises a terminating error when consent is declined; the
	// catch keeps that from falling through to a zero exit.
	outer := fmt.Sprintf(`$ErrorActionPreference = 'Stop'
try {
  $p = Start-Process -FilePath 'powershell.exe' -ArgumentList @('-NoProfile','-ExecutionPolicy','Bypass','-WindowStyle','Hidden','-File',%s) -Verb RunAs -Wait -PassThru -WindowStyle Hidden
  if ($null -eq $p) { exit 1 }
  exit $p.ExitCode
} catch {
  [Console]::Error.WriteLine($_.Exception.Message)
  exit 1
}`, psQuote(wrapperPath))
	res, err := l.runner.Run(ctx, domain.Command{
		Name: "powershell.exe",
		Args: []string{"-NoProfile", "-NonInteractive", "-Command", outer},
	})
	if err != nil {
		if ctx.Err() != nil {
			return res, domain.NewActionError(domain.ErrActionTimeout, "", fmt.Errorf("elevation prompt not answered: %w", ctx.Err()))
		}
		return res, failed(err)
	}
	if declinedPrompt.MatchString(res.Stderr) {
		return res, denied(strings.TrimSpace(res.Stderr))
	}

	// The wrapper's redirect creates stdout.txt whenever the script starts,
	// so a missing file means the elevated side never ran.
	stdout, outErr := os.ReadFile(outPath)
	if outErr != nil {
		msg := strings.TrimSpace(res.Stderr)
		if msg == "" {
			msg = fmt.Sprintf("elevated process exited with %d before running the script", res.ExitCode)
		}
		return res, failed(errors.New(msg))
	}
	stderr, _ := os.ReadFile(errPath)
	return domain.ScriptResult{
		ExitCode: res.ExitCode,
		Stdout:   string(stdout),
		Stderr:   string(stderr),
		Duration: res.Duration,
	}, nil
}

// CommandLauncher elevates by prefixing a POSIX helper such as pkexec or
// sudo -n. Exit codes listed in deniedCodes mean the user declined or could
// not authenticate.
type CommandLauncher struct {
	name        string
	prefix      []string
	deniedCodes map[int]bool
	runner      ports.ProcessRunner
}

// NewPkexecLauncher uses polkit; 126 means the dialog was dismissed and 127
// that authorization failed.
func NewPkexecLauncher(runner ports.ProcessRunner) *CommandLauncher {
	return &CommandLauncher{
		name:        "pkexec",
		prefix:      []string{"pkexec"},
		deniedCodes: map[int]bool{126: true, 127: true},
		runner:      runner,
	}
}

// NewSudoLauncher uses non-interactive sudo, which only succeeds with cached
// or passwordless credentials.
func NewSudoLauncher(runner ports.ProcessRunner) *CommandLauncher {
	return &CommandLauncher{
		name:        "sudo",
		prefix:      []string{"sudo", "-n"},
		deniedCodes: map[int]bool{},
		runner:      runner,
	}
}

// Name implements ports.ElevationLauncher.
func (l *CommandLauncher) Name() string { return l.name }

// Launch implements ports.ElevationLauncher.
func (l *CommandLauncher) Launch(ctx context.Context, script string) (domain.ScriptResult, error) {
	args := append(append([]string{}, l.prefix[1:]...), "sh", "-c", script)
	res, err := l.runner.Run(ctx, domain.Command{Name: l.prefix[0], Args: args})
	if err != nil {
		if ctx.Err() != nil {
			return res, domain.NewActionError(domain.ErrActionTimeout, "", fmt.Errorf("elevation prompt not answered: %w", ctx.Err()))
		}
		return res, failed(err)
	}
	if l.deniedCodes[res.ExitCode] || (res.ExitCode != 0 && declinedPrompt.MatchString(res.Stderr)) {
		return res, denied(strings.TrimSpace(res.Stderr))
	}
	return res, nil
}

// NewLauncher picks a launcher by name; "auto" selects the platform default.
func NewLauncher(name string, runner ports.ProcessRunner) (ports.ElevationLauncher, error) {
	switch strings.ToLower(name) {
	case "", "auto":
		if runtime.GOOS == "windows" {
			return NewRunAsLauncher(runner, ""), nil
		}
		return NewPkexecLauncher(runner), nil
	case "runas":
		return NewRunAsLauncher(runner, ""), nil
	case "pkexec":
		return NewPkexecLauncher(runner), nil
	case "sudo":
		return NewSudoLauncher(runner), nil
	default:
		return nil, fmt.Errorf("unknown elevation launcher %q", name)
	}
}

func psQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func denied(msg string) error {
	if msg == "" {
		msg = "elevation prompt was declined"
	}
	return &domain.ActionError{Kind: domain.ErrElevationDenied, Message: msg}
}

func failed(cause error) error {
	return domain.NewActionError(domain.ErrElevationFailed, "", cause)
}
