package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doeshing/deskgate/internal/domain"
)

func TestReadPlanFormats(t *testing.T) {
	plan, err := ReadPlan(strings.NewReader(`[{"action":"chat","args":{"message":"hi"}}]`), "-")
	require.NoError(t, err)
	require.Equal(t, 1, plan.Len())
	assert.Equal(t, "chat", plan.Actions[0].Name)

	plan, err = ReadPlan(strings.NewReader(`{"actions":[{"action":"list_files","args":{"path":"~/Documents"},"risk_level":"low"}]}`), "")
	require.NoError(t, err)
	assert.Equal(t, "low", plan.Actions[0].RiskLevel)

	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "plan.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("- action: set_toggle\n  args:\n    window: Settings\n    element: Bluetooth\n    state: true\n"), 0o600))
	plan, err = ReadPlan(nil, yamlPath)
	require.NoError(t, err)
	assert.Equal(t, true, plan.Actions[0].Args["state"])

	wrapped := filepath.Join(dir, "plan.yml")
	require.NoError(t, os.WriteFile(wrapped, []byte("actions:\n  - action: chat\n    args: {message: hi}\n"), 0o600))
	plan, err = ReadPlan(nil, wrapped)
	require.NoError(t, err)
	assert.Equal(t, "hi", plan.Actions[0].Args["message"])
}

func TestReadPlanErrors(t *testing.T) {
	_, err := ReadPlan(strings.NewReader("  \n"), "-")
	assert.ErrorIs(t, err, domain.ErrEmptyPlan)

	_, err = ReadPlan(strings.NewReader(`{"actions": 3}`), "-")
	assert.ErrorContains(t, err, "parse plan")

	_, err = ReadPlan(nil, filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorContains(t, err, "read plan")
}

func verdictFor(risk domain.RiskLevel) domain.ValidationVerdict {
	return domain.ValidationVerdict{
		Approved: true, PlanRisk: risk, RequiresConfirmation: true, Digest: "sha256:0123456789abcdef",
		Actions: []domain.ActionVerdict{
			{Index: 0, Action: "delete_file", Approved: true, ComputedRisk: risk, Kind: domain.KindDirect},
		},
		Validated: []domain.ValidatedAction{{Index: 0, Kind: domain.KindDirect, Risk: risk}},
	}
}

func TestPrompterAsks(t *testing.T) {
	plan := domain.Plan{Actions: []domain.Action{{Name: "delete_file", Description: "remove old report"}}}
	for _, tc := range []struct {
		name  string
		risk  domain.RiskLevel
		input string
		want  bool
	}{
		{"medium accepts y", domain.RiskMedium, "y\n", true},
		{"medium default no", domain.RiskMedium, "\n", false},
		{"high needs full word", domain.RiskHigh, "y\n", false},
		{"high accepts yes", domain.RiskHigh, "yes\n", true},
		{"input without newline", domain.RiskMedium, "yes", true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			var out bytes.Buffer
			ok, err := NewPrompter(strings.NewReader(tc.input), &out).Approve(context.Background(), plan, verdictFor(tc.risk))
			require.NoError(t, err)
			assert.Equal(t, tc.want, ok)
			assert.Contains(t, out.String(), "digest sha256:01234")
			assert.Contains(t, out.String(), "1. delete_file ["+string(tc.risk)+"] remove old report")
		})
	}

	_, err := NewPrompter(strings.NewReader(""), &bytes.Buffer{}).Approve(context.Background(), plan, verdictFor(domain.RiskLow))
	require.Error(t, err)

	ok, err := AutoApprover{}.Approve(context.Background(), plan, verdictFor(domain.RiskHigh))
	require.NoError(t, err)
	assert.True(t, ok)
}

func sampleSummary() domain.Summary {
	return domain.Summary{
		RunID: "run-7", Digest: "sha256:feedfacecafebeef", SuccessCount: 1, TotalCount: 2, Planned: 3,
		Outcome: domain.OutcomePartial, Stopped: true, StopReason: domain.StopCancelled,
		Results: []domain.ExecutionResult{
			{Index: 0, Action: "list_files", Status: domain.StatusSuccess, Output: "a.txt\nb.txt", Duration: 12 * time.Millisecond},
			{Index: 1, Action: "set_toggle", Status: domain.StatusError, Error: &domain.ActionError{
				Kind: domain.ErrElementNotFound, Action: "set_toggle", Message: "Bluetooth",
				Attempts: []domain.LayerAttempt{{Layer: domain.LayerNativeAPI, Outcome: domain.AttemptNotFound}},
			}},
		},
	}
}

func TestRendererSummaryJSON(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, NewRenderer(&out, true).Summary(sampleSummary()))

	var doc map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &doc))
	assert.Equal(t, false, doc["success"])
	assert.Equal(t, float64(1), doc["success_count"])
	assert.Equal(t, float64(2), doc["total_count"])
	assert.Equal(t, true, doc["stopped"])
	assert.Equal(t, "cancelled", doc["stop_reason"])
	results := doc["results"].([]any)
	require.Len(t, results, 2)
	second := results[1].(map[string]any)
	assert.Equal(t, "element_not_found", second["error_kind"])
	assert.NotContains(t, results[0].(map[string]any), "error")
}

func TestRendererSummaryText(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, NewRenderer(&out, false).Summary(sampleSummary()))
	text := out.String()
	assert.Contains(t, text, "1. list_files")
	assert.Contains(t, text, "    b.txt\n")
	assert.Contains(t, text, "element_not_found [set_toggle]: Bluetooth (layers: native_api=not_found)")
	assert.Contains(t, text, "1 of 2 actions succeeded")
	assert.Contains(t, text, "Stopped (cancelled) after 2 of 3 planned actions")
	assert.Contains(t, text, "digest sha256:feedf\n")
}

func TestRendererRejectionJSON(t *testing.T) {
	verdict := domain.ValidationVerdict{
		Digest: "sha256:abc", Reason: "action 0 (delete_file): path outside allowlisted roots",
		Actions: []domain.ActionVerdict{{Index: 0, Action: "delete_file", Reason: "path outside allowlisted roots", ComputedRisk: domain.RiskHigh}},
	}
	var out bytes.Buffer
	require.NoError(t, NewRenderer(&out, true).Rejection(verdict, 1))

	var doc summaryJSON
	require.NoError(t, json.Unmarshal(out.Bytes(), &doc))
	assert.False(t, doc.Success)
	assert.Equal(t, 0, doc.TotalCount)
	assert.Empty(t, doc.Results)
	require.Len(t, doc.Verdicts, 1)
	assert.False(t, doc.Verdicts[0].Approved)
}

func TestRendererVerdictText(t *testing.T) {
	verdict := verdictFor(domain.RiskHigh)
	verdict.Actions[0].ClaimedRisk = "low"
	var out bytes.Buffer
	require.NoError(t, NewRenderer(&out, false).Verdict(verdict, []string{"Delete /home/ana/Documents/old.txt"}))
	text := out.String()
	assert.Contains(t, text, "Plan approved - risk HIGH, confirmation required")
	assert.Contains(t, text, "delete_file risk=high (claimed low)")
	assert.Contains(t, text, "  1. Delete /home/ana/Documents/old.txt")
}

func TestLiveProgressStreamsResults(t *testing.T) {
	var out bytes.Buffer
	renderer := NewRenderer(&out, false)
	progress := newLiveProgress(renderer, &bytes.Buffer{})
	assert.Nil(t, progress.spinner)

	summary := sampleSummary()
	progress.Started("run-7", 2)
	for _, r := range summary.Results {
		progress.Finished(r)
	}
	require.NoError(t, renderer.Summary(summary))
	assert.Equal(t, 1, strings.Count(out.String(), "list_files"))
}

func TestSpinnerRestarts(t *testing.T) {
	var out syncBuffer
	s := NewSpinner(&out)
	s.interval = time.Millisecond
	s.Start("action 1 of 2")
	s.Start("action 1 of 2")
	s.Stop()
	s.Start("action 2 of 2")
	s.Stop()
	s.Stop()
	assert.Contains(t, out.String(), "action 2 of 2")
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
