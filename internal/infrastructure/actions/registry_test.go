package actions

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/doeshing/deskgate/internal/domain"
)

type recordingRunner struct {
	started []domain.Command
	ran     []domain.Command
	result  domain.ScriptResult
}

func (r *recordingRunner) Run(_ context.Context, cmd domain.Command) (domain.ScriptResult, error) {
	r.ran = append(r.ran, cmd)
	return r.result, nil
}

func (r *recordingRunner) RunScript(_ context.Context, script string, _ map[string]string) (domain.ScriptResult, error) {
	return r.result, nil
}

func (r *recordingRunner) Start(cmd domain.Command) (int, error) {
	r.started = append(r.started, cmd)
	return 4242, nil
}

func TestRegistryCoversCatalog(t *testing.T) {
	reg := NewRegistry(&recordingRunner{})
	names := reg.Names()

	for _, spec := range domain.Catalog() {
		kind, ok := names[spec.Name]
		if !ok {
			t.Errorf("catalog action %s has no handler", spec.Name)
			continue
		}
		if kind != spec.Kind {
			t.Errorf("%s registered as %s, catalog says %s", spec.Name, kind, spec.Kind)
		}
		if desc := reg.Describe(domain.Action{Name: spec.Name}, spec.Kind); desc == "" {
			t.Errorf("%s has an empty description", spec.Name)
		}
	}
	if len(names) != len(domain.Catalog()) {
		t.Errorf("registry has %d handlers, catalog has %d actions", len(names), len(domain.Catalog()))
	}
}

func TestDescribe(t *testing.T) {
	reg := NewRegistry(&recordingRunner{})
	tests := []struct {
		action domain.Action
		kind   domain.ActionKind
		want   string
	}{
		{domain.Action{Name: "delete_file", Args: map[string]any{"path": "/home/u/a.txt"}}, domain.KindDirect, "Delete file /home/u/a.txt"},
		{domain.Action{Name: "move_file", Args: map[string]any{"source": "a", "destination": "b"}}, domain.KindDirect, "Move a to b"},
		{domain.Action{Name: "launch_app", Args: map[string]any{"command": "notepad", "args": []any{"x.txt"}}}, domain.KindDirect, "Launch notepad x.txt"},
		{domain.Action{Name: "set_toggle", Args: map[string]any{"window": "Settings", "element": "Bluetooth", "state": true}}, domain.KindInteractive, "Switch window=Settings element=Bluetooth on"},
		{domain.Action{Name: "unknown", Args: map[string]any{"b": 2, "a": 1}}, domain.KindDirect, "unknown a=1 b=2"},
	}
	for _, tt := range tests {
		if got := reg.Describe(tt.action, tt.kind); got != tt.want {
			t.Errorf("Describe(%s) = %q, want %q", tt.action.Name, got, tt.want)
		}
	}
}

func TestTopProcessesSortsAndLimits(t *testing.T) {
	lister := func(context.Context) ([]ProcessInfo, error) {
		return []ProcessInfo{
			{PID: 1, Name: "small", Memory: 1 << 20},
			{PID: 2, Name: "huge", Memory: 3 << 30},
			{PID: 3, Name: "medium", Memory: 200 << 20},
		}, nil
	}
	reg := NewRegistry(&recordingRunner{}, WithProcessLister(lister))
	h, _ := reg.Direct("get_top_processes_by_memory")

	out, err := h.Execute(context.Background(), domain.Action{Name: "get_top_processes_by_memory", Args: map[string]any{"limit": float64(2)}})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	lines := strings.Split(out, "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines:\n%s", len(lines), out)
	}
	if !strings.HasPrefix(lines[0], "Top 2 of 3") {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.Contains(lines[1], "huge") || !strings.Contains(lines[1], "3.0 GiB") {
		t.Errorf("first row = %q", lines[1])
	}
	if !strings.Contains(lines[2], "medium") {
		t.Errorf("second row = %q", lines[2])
	}
}

func TestParseProcessTables(t *testing.T) {
	single, err := parseWindowsProcesses(`{"Id":4,"ProcessName":"System","WorkingSet64":1048576}`)
	if err != nil || len(single) != 1 || single[0].Name != "System" || single[0].Memory != 1048576 {
		t.Fatalf("single object: %+v, %v", single, err)
	}
	many, err := parseWindowsProcesses(`[{"Id":1,"ProcessName":"a","WorkingSet64":1},{"Id":2,"ProcessName":"b","WorkingSet64":2}]`)
	if err != nil || len(many) != 2 {
		t.Fatalf("array: %+v, %v", many, err)
	}

	ps := parsePSOutput("    1  1024 /sbin/init\n  200  2048 Google Chrome Helper\ngarbage line\n")
	if len(ps) != 2 {
		t.Fatalf("parsePSOutput returned %d rows", len(ps))
	}
	if ps[1].Name != "Google Chrome Helper" || ps[1].Memory != 2048*1024 {
		t.Errorf("row = %+v", ps[1])
	}
}

func TestBluetoothStateParsing(t *testing.T) {
	if got, err := interpretRadioState("On\r\n"); err != nil || got != "ON" {
		t.Errorf("interpretRadioState(On) = %q, %v", got, err)
	}
	if _, err := interpretRadioState("NotFound"); err == nil {
		t.Error("expected error when no adapter exists")
	}
	out := "Controller 00:11:22:33:44:55 (public)\n\tName: host\n\tPowered: no\n"
	if got, err := interpretBluetoothctl(out); err != nil || got != "OFF" {
		t.Errorf("interpretBluetoothctl = %q, %v", got, err)
	}
	if _, err := interpretBluetoothctl("No default controller available\n"); err == nil {
		t.Error("expected error without a controller")
	}
}

func TestPrivilegedScripts(t *testing.T) {
	win := NewRegistry(&recordingRunner{}, WithGOOS("windows"))
	builder, _ := win.Privileged("bluetooth_off")
	script, err := builder.Script(domain.Action{Name: "bluetooth_off"})
	if err != nil {
		t.Fatalf("Script: %v", err)
	}
	if !strings.Contains(script, "$target = 'Off'") || !strings.Contains(script, "SetStateAsync") {
		t.Errorf("windows script does not switch radios off:\n%s", script)
	}

	ps, _ := win.Privileged("run_powershell")
	script, _ = ps.Script(domain.Action{Name: "run_powershell", Args: map[string]any{"script": "Get-Date"}})
	if script != "Get-Date" {
		t.Errorf("run_powershell on windows = %q", script)
	}

	linux := NewRegistry(&recordingRunner{}, WithGOOS("linux"))
	ps, _ = linux.Privileged("run_powershell")
	script, _ = ps.Script(domain.Action{Name: "run_powershell", Args: map[string]any{"script": "Write-Output 'hi'"}})
	if script != `pwsh -NoProfile -NonInteractive -Command 'Write-Output '\''hi'\'''` {
		t.Errorf("run_powershell on linux = %q", script)
	}
	toggle, _ := linux.Privileged("bluetooth_toggle")
	if script, _ := toggle.Script(domain.Action{Name: "bluetooth_toggle"}); !strings.Contains(script, "rfkill") {
		t.Errorf("linux toggle = %q", script)
	}

	mac := NewRegistry(&recordingRunner{}, WithGOOS("darwin"))
	on, _ := mac.Privileged("bluetooth_on")
	if _, err := on.Script(domain.Action{Name: "bluetooth_on"}); err == nil {
		t.Error("expected unsupported platform error")
	}
}

func TestInteractiveTargets(t *testing.T) {
	runner := &recordingRunner{}
	reg := NewRegistry(runner, WithGOOS("windows"))
	ctx := context.Background()

	toggle, _ := reg.Interactive("set_toggle")
	target, err := toggle.Prepare(ctx, domain.Action{Name: "set_toggle", Args: map[string]any{
		"process": "SystemSettings", "element": "Bluetooth", "state": false,
	}})
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if target.Operation != domain.OpToggle || target.State == nil || *target.State || target.Role != "ToggleButton" {
		t.Errorf("toggle target = %+v", target)
	}

	typer, _ := reg.Interactive("type_text")
	target, _ = typer.Prepare(ctx, domain.Action{Name: "type_text", Args: map[string]any{
		"window": "Untitled - Notepad", "element": "Text Editor", "text": "hello",
	}})
	if target.Operation != domain.OpType || target.Text != "hello" || target.Window != "Untitled - Notepad" {
		t.Errorf("type target = %+v", target)
	}

	nav, _ := reg.Interactive("navigate_settings")
	target, err = nav.Prepare(ctx, domain.Action{Name: "navigate_settings", Args: map[string]any{"uri": "ms-settings:bluetooth"}})
	if err != nil {
		t.Fatalf("navigate_settings: %v", err)
	}
	if target.Locates() {
		t.Errorf("page-only navigation should not locate an element: %+v", target)
	}
	if len(runner.started) != 1 || runner.started[0].Args[0] != "ms-settings:bluetooth" {
		t.Errorf("started = %+v", runner.started)
	}

	linux := NewRegistry(&recordingRunner{}, WithGOOS("linux"))
	nav, _ = linux.Interactive("navigate_settings")
	_, err = nav.Prepare(ctx, domain.Action{Name: "navigate_settings", Args: map[string]any{"uri": "ms-settings:"}})
	if !errors.Is(err, domain.ErrDesktopUnavailable) {
		t.Errorf("expected ErrDesktopUnavailable, got %v", err)
	}
}

func TestLaunchAppStartsDetached(t *testing.T) {
	runner := &recordingRunner{}
	reg := NewRegistry(runner)
	h, _ := reg.Direct("launch_app")

	out, err := h.Execute(context.Background(), domain.Action{Name: "launch_app", Args: map[string]any{
		"command": "notepad", "args": []any{"notes.txt"},
	}})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out != "Launched notepad (pid 4242)" {
		t.Errorf("output = %q", out)
	}
	if len(runner.started) != 1 || runner.started[0].Args[0] != "notes.txt" {
		t.Errorf("started = %+v", runner.started)
	}
}
