package process

import (
	"context"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/doeshing/deskgate/internal/domain"
)

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("uses /bin/sh")
	}
}

func TestRunScriptCapturesOutputAndExitCode(t *testing.T) {
	skipOnWindows(t)
	r := NewRunner("sh")

	res, err := r.RunScript(context.Background(), `echo "$GREETING"; echo oops >&2; exit 3`, map[string]string{"GREETING": "hello world"})
	if err != nil {
		t.Fatalf("RunScript: %v", err)
	}
	if res.ExitCode != 3 {
		t.Fatalf("exit code = %d, want 3", res.ExitCode)
	}
	if strings.TrimSpace(res.Stdout) != "hello world" {
		t.Fatalf("stdout = %q", res.Stdout)
	}
	if strings.TrimSpace(res.Stderr) != "oops" {
		t.Fatalf("stderr = %q", res.Stderr)
	}
}

func TestRunReportsMissingBinary(t *testing.T) {
	r := NewRunner("sh")
	_, err := r.Run(context.Background(), domain.Command{Name: "definitely-not-a-real-binary-7f3a"})
	if err == nil {
		t.Fatal("expected error for missing binary")
	}
}

func TestRunHonoursContextDeadline(t *testing.T) {
	skipOnWindows(t)
	r := NewRunner("sh")
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	res, err := r.RunScript(ctx, "sleep 5", nil)
	if err == nil {
		t.Fatal("expected deadline error")
	}
	if res.ExitCode != -1 {
		t.Fatalf("exit code = %d, want -1", res.ExitCode)
	}
}

func TestResolveShell(t *testing.T) {
	tests := []struct {
		shell, goos, want string
	}{
		{"auto", "windows", "powershell.exe"},
		{"pwsh", "linux", "pwsh"},
		{"sh", "linux", "/bin/sh"},
		{`C:\Program Files\PowerShell\7\pwsh.exe`, "windows", `C:\Program Files\PowerShell\7\pwsh.exe`},
	}
	for _, tt := range tests {
		name, args := resolveShell(tt.shell, tt.goos)
		if name != tt.want {
			t.Errorf("resolveShell(%q, %q) = %q, want %q", tt.shell, tt.goos, name, tt.want)
		}
		if len(args) == 0 {
			t.Errorf("resolveShell(%q) returned no args", tt.shell)
		}
	}
	_, args := resolveShell("/usr/bin/zsh", "linux")
	if len(args) != 1 || args[0] != "-c" {
		t.Errorf("posix shell args = %v", args)
	}
}
