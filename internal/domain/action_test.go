package domain_test

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/doeshing/deskgate/internal/domain"
)

func TestPlanUnmarshalAcceptsArrayAndObject(t *testing.T) {
	inputs := []string{
		`[{"action":"list_files","args":{"path":"C:\\Users\\a"}}]`,
		`{"actions":[{"action":"list_files","args":{"path":"C:\\Users\\a"}}]}`,
	}
	for _, input := range inputs {
		var plan domain.Plan
		if err := json.Unmarshal([]byte(input), &plan); err != nil {
			t.Fatalf("unmarshal %s: %v", input, err)
		}
		if plan.Len() != 1 || plan.Actions[0].Name != "list_files" {
			t.Fatalf("unexpected plan %+v", plan)
		}
		if got, _ := plan.Actions[0].StringArg("path"); got != `C:\Users\a` {
			t.Fatalf("path arg = %q", got)
		}
	}
}

func TestActionIntArgHandlesJSONNumbers(t *testing.T) {
	var action domain.Action
	if err := json.Unmarshal([]byte(`{"action":"x","args":{"limit":7}}`), &action); err != nil {
		t.Fatal(err)
	}
	if got := action.IntArg("limit", 1); got != 7 {
		t.Fatalf("IntArg = %d, want 7", got)
	}
	if got := action.IntArg("missing", 3); got != 3 {
		t.Fatalf("IntArg fallback = %d, want 3", got)
	}
}

func TestActionCloneDoesNotShareArgs(t *testing.T) {
	original := domain.Action{Name: "create_file", Args: map[string]any{"path": "a"}}
	clone := original.Clone()
	clone.Args["path"] = "b"
	if original.Args["path"] != "a" {
		t.Fatalf("clone mutated original args")
	}
}

func TestMaxRisk(t *testing.T) {
	if got := domain.MaxRisk(); got != domain.RiskLow {
		t.Fatalf("MaxRisk() = %s", got)
	}
	if got := domain.MaxRisk(domain.RiskLow, domain.RiskHigh, domain.RiskMedium); got != domain.RiskHigh {
		t.Fatalf("MaxRisk = %s, want high", got)
	}
	if _, ok := domain.ParseRiskLevel("critical"); ok {
		t.Fatalf("critical is not a catalog tier")
	}
}

func TestCatalogEntriesAreConsistent(t *testing.T) {
	for _, spec := range domain.Catalog() {
		if !spec.Risk.Valid() {
			t.Errorf("%s: invalid risk %q", spec.Name, spec.Risk)
		}
		switch spec.Kind {
		case domain.KindDirect, domain.KindPrivileged, domain.KindInteractive:
		default:
			t.Errorf("%s: unknown kind %q", spec.Name, spec.Kind)
		}
		if !json.Valid([]byte(spec.Schema)) {
			t.Errorf("%s: schema is not valid JSON", spec.Name)
		}
		for _, arg := range spec.PathArgs {
			if !strings.Contains(spec.Schema, `"`+arg+`"`) {
				t.Errorf("%s: path arg %s missing from schema", spec.Name, arg)
			}
		}
	}
	if spec, ok := domain.LookupAction("delete_file"); !ok || spec.Risk != domain.RiskHigh {
		t.Fatalf("delete_file must be high risk, got %+v", spec)
	}
}

func TestActionErrorFormattingAndUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := &domain.ActionError{
		Kind:   domain.ErrElementNotFound,
		Action: "click_element",
		Attempts: []domain.LayerAttempt{
			{Layer: domain.LayerNativeAPI, Outcome: domain.AttemptNotFound},
			{Layer: domain.LayerOCR, Outcome: domain.AttemptTimeout},
		},
		Err: cause,
	}
	msg := err.Error()
	if !strings.Contains(msg, "native_api=not_found") || !strings.Contains(msg, "ocr=timeout") {
		t.Fatalf("unexpected message %q", msg)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected errors.Is to reach cause")
	}
	if kind, ok := domain.ErrorKindOf(err); !ok || kind != domain.ErrElementNotFound {
		t.Fatalf("ErrorKindOf = %v %v", kind, ok)
	}
	if !errors.Is(&domain.RejectionError{}, domain.ErrValidationRejected) {
		t.Fatalf("rejection must unwrap to ErrValidationRejected")
	}
}

func TestCancelSignal(t *testing.T) {
	var nilSignal *domain.CancelSignal
	if nilSignal.Cancelled() {
		t.Fatalf("nil signal must not fire")
	}
	var signal domain.CancelSignal
	signal.Cancel()
	if !signal.Cancelled() {
		t.Fatalf("signal should be raised")
	}
}
