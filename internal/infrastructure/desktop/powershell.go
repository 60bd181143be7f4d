// Package desktop talks to the Windows UI Automation framework and the
// Win32 input APIs through short PowerShell scripts.
package desktop

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/doeshing/deskgate/internal/domain"
	"github.com/doeshing/deskgate/internal/infrastructure/automation"
	"github.com/doeshing/deskgate/internal/ports"
)

const (
	exitNotFound    = 3
	exitUnsupported = 4
)

// PowerShell implements automation.Backend on Windows.
type PowerShell struct {
	runner ports.ProcessRunner
	exe    string
}

// NewPowerShell builds a backend that runs scripts with powershell.exe.
func NewPowerShell(runner ports.ProcessRunner) *PowerShell {
	return &PowerShell{runner: runner, exe: "powershell.exe"}
}

// NewBackend returns the PowerShell backend on Windows and Unavailable
// elsewhere.
func NewBackend(goos string, runner ports.ProcessRunner) automation.Backend {
	if goos == "windows" {
		return NewPowerShell(runner)
	}
	return Unavailable{}
}

func (p *PowerShell) run(ctx context.Context, script string, env map[string]string) (domain.ScriptResult, error) {
	return p.runner.Run(ctx, domain.Command{
		Name: p.exe,
		Args: []string{"-NoProfile", "-NonInteractive", "-ExecutionPolicy", "Bypass", "-Command", script},
		Env:  env,
	})
}

func scriptFailure(what string, res domain.ScriptResult) error {
	msg := strings.TrimSpace(res.Stderr)
	if msg == "" {
		msg = strings.TrimSpace(res.Stdout)
	}
	return fmt.Errorf("%s exited %d: %s", what, res.ExitCode, msg)
}

// Windows implements ports.WindowSource.
func (p *PowerShell) Windows(ctx context.Context) ([]domain.Window, error) {
	res, err := p.run(ctx, windowsScript, nil)
	if err != nil {
		return nil, err
	}
	if res.ExitCode != 0 {
		return nil, scriptFailure("window enumeration", res)
	}
	return parseWindows(res.Stdout)
}

func parseWindows(out string) ([]domain.Window, error) {
	out = strings.TrimSpace(out)
	if out == "" {
		return nil, nil
	}
	var windows []domain.Window
	if err := json.Unmarshal([]byte(out), &windows); err != nil {
		return nil, fmt.Errorf("decode window list: %w", err)
	}
	return windows, nil
}

// Invoke implements ports.AccessibilityAPI.
func (p *PowerShell) Invoke(ctx context.Context, window domain.Window, target domain.Target) (string, error) {
	env := map[string]string{
		"DESKGATE_HANDLE":    strconv.FormatInt(window.Handle, 10),
		"DESKGATE_ELEMENT":   target.Element,
		"DESKGATE_ROLE":      target.Role,
		"DESKGATE_OPERATION": string(target.Operation),
		"DESKGATE_TEXT":      target.Text,
		"DESKGATE_STATE":     "",
	}
	if target.State != nil {
		env["DESKGATE_STATE"] = strconv.FormatBool(*target.State)
	}
	res, err := p.run(ctx, invokeScript, env)
	if err != nil {
		return "", err
	}
	switch res.ExitCode {
	case 0:
		return fmt.Sprintf("%s %q", strings.TrimSpace(res.Stdout), target.Element), nil
	case exitNotFound:
		return "", fmt.Errorf("no element named %q: %w", target.Element, domain.ErrNotFound)
	case exitUnsupported:
		return "", fmt.Errorf("element %q has no pattern for %s", target.Element, target.Operation)
	default:
		return "", scriptFailure("UI Automation invoke", res)
	}
}

// ControlTree implements ports.ControlTreeSource.
func (p *PowerShell) ControlTree(ctx context.Context, window domain.Window, depth int) (*domain.Control, error) {
	if depth > 40 {
		depth = 40
	}
	res, err := p.run(ctx, controlTreeScript, map[string]string{
		"DESKGATE_HANDLE": strconv.FormatInt(window.Handle, 10),
		"DESKGATE_DEPTH":  strconv.Itoa(depth),
	})
	if err != nil {
		return nil, err
	}
	if res.ExitCode != 0 {
		return nil, scriptFailure("control tree", res)
	}
	var root domain.Control
	if err := json.Unmarshal([]byte(strings.TrimSpace(res.Stdout)), &root); err != nil {
		return nil, fmt.Errorf("decode control tree: %w", err)
	}
	return &root, nil
}

// Capture implements ports.ScreenCapturer.
func (p *PowerShell) Capture(ctx context.Context, region domain.Rect) (image.Image, error) {
	if region.Empty() {
		return nil, fmt.Errorf("capture region %+v has no area", region)
	}
	dir, err := os.MkdirTemp("", "deskgate-capture-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)
	out := filepath.Join(dir, "shot.png")

	res, err := p.run(ctx, captureScript, map[string]string{
		"DESKGATE_X":      strconv.Itoa(region.X),
		"DESKGATE_Y":      strconv.Itoa(region.Y),
		"DESKGATE_WIDTH":  strconv.Itoa(region.Width),
		"DESKGATE_HEIGHT": strconv.Itoa(region.Height),
		"DESKGATE_OUT":    out,
	})
	if err != nil {
		return nil, err
	}
	if res.ExitCode != 0 {
		return nil, scriptFailure("screen capture", res)
	}
	f, err := os.Open(out)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return png.Decode(f)
}

// Click implements ports.InputDriver.
func (p *PowerShell) Click(ctx context.Context, at domain.Point) error {
	res, err := p.run(ctx, clickScript, map[string]string{
		"DESKGATE_X": strconv.Itoa(at.X),
		"DESKGATE_Y": strconv.Itoa(at.Y),
	})
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return scriptFailure("click", res)
	}
	return nil
}

// Type implements ports.InputDriver.
func (p *PowerShell) Type(ctx context.Context, text string) error {
	res, err := p.run(ctx, typeScript, map[string]string{"DESKGATE_TEXT": EscapeSendKeys(text)})
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return scriptFailure("type", res)
	}
	return nil
}

// EscapeSendKeys quotes characters SendKeys treats as modifiers or groups.
func EscapeSendKeys(text string) string {
	var b strings.Builder
	for _, r := range text {
		switch r {
		case '+', '^', '%', '~', '(', ')', '[', ']', '{', '}':
			b.WriteString("{" + string(r) + "}")
		case '\n':
			b.WriteString("{ENTER}")
		case '\t':
			b.WriteString("{TAB}")
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

var _ automation.Backend = (*PowerShell)(nil)
