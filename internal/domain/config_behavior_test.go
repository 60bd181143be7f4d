package domain_test

import (
	"testing"
	"time"

	"github.com/doeshing/deskgate/internal/domain"
)

// TestExecutionSettings_Durations tests timeout parsing with fallbacks
func TestExecutionSettings_Durations(t *testing.T) {
	tests := []struct {
		name       string
		settings   domain.ExecutionSettings
		wantAction time.Duration
		wantPlan   time.Duration
	}{
		{
			name:       "uses configured values",
			settings:   domain.ExecutionSettings{ActionTimeout: "15s", PlanTimeout: "2m"},
			wantAction: 15 * time.Second,
			wantPlan:   2 * time.Minute,
		},
		{
			name:       "falls back when empty",
			settings:   domain.ExecutionSettings{},
			wantAction: domain.DefaultActionTimeout,
			wantPlan:   domain.DefaultPlanTimeout,
		},
		{
			name:       "falls back when invalid or negative",
			settings:   domain.ExecutionSettings{ActionTimeout: "soon", PlanTimeout: "-1m"},
			wantAction: domain.DefaultActionTimeout,
			wantPlan:   domain.DefaultPlanTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.settings.ActionTimeoutDuration(); got != tt.wantAction {
				t.Errorf("ActionTimeoutDuration() = %v, want %v", got, tt.wantAction)
			}
			if got := tt.settings.PlanTimeoutDuration(); got != tt.wantPlan {
				t.Errorf("PlanTimeoutDuration() = %v, want %v", got, tt.wantPlan)
			}
		})
	}
}

// TestAllowlistSettings_IsCaseInsensitive tests the auto mode per platform
func TestAllowlistSettings_IsCaseInsensitive(t *testing.T) {
	tests := []struct {
		mode string
		goos string
		want bool
	}{
		{mode: "auto", goos: "windows", want: true},
		{mode: "", goos: "darwin", want: true},
		{mode: "auto", goos: "linux", want: false},
		{mode: "true", goos: "linux", want: true},
		{mode: "false", goos: "windows", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.mode+"/"+tt.goos, func(t *testing.T) {
			settings := domain.AllowlistSettings{CaseInsensitive: tt.mode}
			if got := settings.IsCaseInsensitive(tt.goos); got != tt.want {
				t.Errorf("IsCaseInsensitive(%q) = %v, want %v", tt.goos, got, tt.want)
			}
		})
	}
}

// TestAllowlistSettings_AllowsApp tests application allowlisting
func TestAllowlistSettings_AllowsApp(t *testing.T) {
	settings := domain.AllowlistSettings{Apps: []string{"notepad", "Calc.exe"}}

	for _, name := range []string{"notepad", "NOTEPAD.EXE", "calc", " calc.exe "} {
		if !settings.AllowsApp(name) {
			t.Errorf("expected %q to be allowed", name)
		}
	}
	for _, name := range []string{"", "cmd", "powershell.exe", "notepad++"} {
		if settings.AllowsApp(name) {
			t.Errorf("expected %q to be denied", name)
		}
	}
}

// TestAutomationSettings_OwnersFor tests known window owner lookup
func TestAutomationSettings_OwnersFor(t *testing.T) {
	settings := domain.AutomationSettings{
		KnownOwners: map[string][]string{"Settings": {"SystemSettings", "ApplicationFrameHost"}},
	}

	if owners := settings.OwnersFor("settings"); len(owners) != 2 {
		t.Fatalf("expected 2 owners, got %v", owners)
	}
	if owners := settings.OwnersFor("Notepad"); owners != nil {
		t.Fatalf("expected no owners, got %v", owners)
	}
}

// TestPolicySettings_MaxActionsOrDefault tests the plan limit fallback
func TestPolicySettings_MaxActionsOrDefault(t *testing.T) {
	if got := (domain.PolicySettings{}).MaxActionsOrDefault(); got != domain.DefaultMaxActions {
		t.Errorf("MaxActionsOrDefault() = %d, want %d", got, domain.DefaultMaxActions)
	}
	if got := (domain.PolicySettings{MaxActions: 3}).MaxActionsOrDefault(); got != 3 {
		t.Errorf("MaxActionsOrDefault() = %d, want 3", got)
	}
}
