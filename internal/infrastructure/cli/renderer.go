package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/doeshing/deskgate/internal/domain"
)

var (
	okColor   = color.New(color.FgGreen, color.Bold)
	failColor = color.New(color.FgRed, color.Bold)
	warnColor = color.New(color.FgYellow)
	dimColor  = color.New(color.Faint)
)

// Renderer prints pipeline output either for people or as a single JSON
// document.
type Renderer struct {
	out  io.Writer
	json bool
	// streamed is set once results have been printed as they finished.
	streamed bool
}

// NewRenderer constructs a renderer writing to out.
func NewRenderer(out io.Writer, jsonOutput bool) *Renderer {
	return &Renderer{out: out, json: jsonOutput}
}

type resultJSON struct {
	Index      int                   `json:"index"`
	Action     string                `json:"action"`
	Status     domain.Status         `json:"status"`
	Output     string                `json:"output,omitempty"`
	Error      string                `json:"error,omitempty"`
	ErrorKind  domain.ErrorKind      `json:"error_kind,omitempty"`
	Layer      domain.Layer          `json:"layer,omitempty"`
	Attempts   []domain.LayerAttempt `json:"attempts,omitempty"`
	Elevated   bool                  `json:"elevated"`
	DurationMS int64                 `json:"duration_ms"`
}

type verdictJSON struct {
	Index    int               `json:"index"`
	Action   string            `json:"action"`
	Approved bool              `json:"approved"`
	Risk     domain.RiskLevel  `json:"risk"`
	Claimed  string            `json:"claimed_risk,omitempty"`
	Kind     domain.ActionKind `json:"kind,omitempty"`
	Reason   string            `json:"reason,omitempty"`
}

type summaryJSON struct {
	Success       bool           `json:"success"`
	SuccessCount  int            `json:"success_count"`
	TotalCount    int            `json:"total_count"`
	Planned       int            `json:"planned"`
	Outcome       domain.Outcome `json:"outcome,omitempty"`
	Stopped       bool           `json:"stopped"`
	StopReason    string         `json:"stop_reason,omitempty"`
	Digest        string         `json:"digest,omitempty"`
	RunID         string         `json:"run_id,omitempty"`
	AuditFailures int            `json:"audit_failures,omitempty"`
	Reason        string         `json:"reason,omitempty"`
	Results       []resultJSON   `json:"results"`
	Verdicts      []verdictJSON  `json:"verdicts,omitempty"`
}

type validationJSON struct {
	Approved             bool             `json:"approved"`
	PlanRisk             domain.RiskLevel `json:"plan_risk,omitempty"`
	RequiresConfirmation bool             `json:"requires_confirmation"`
	Digest               string           `json:"digest,omitempty"`
	Reason               string           `json:"reason,omitempty"`
	Actions              []verdictJSON    `json:"actions"`
	Descriptions         []string         `json:"descriptions,omitempty"`
}

func toResultsJSON(results []domain.ExecutionResult) []resultJSON {
	out := make([]resultJSON, 0, len(results))
	for _, r := range results {
		item := resultJSON{
			Index:      r.Index,
			Action:     r.Action,
			Status:     r.Status,
			Output:     r.Output,
			Layer:      r.Layer,
			Attempts:   r.Attempts,
			Elevated:   r.Elevated,
			DurationMS: r.Duration.Milliseconds(),
		}
		if r.Error != nil {
			item.Error = r.Error.Error()
			item.ErrorKind = r.Error.Kind
		}
		out = append(out, item)
	}
	return out
}

func toVerdictsJSON(actions []domain.ActionVerdict) []verdictJSON {
	out := make([]verdictJSON, 0, len(actions))
	for _, a := range actions {
		out = append(out, verdictJSON{
			Index:    a.Index,
			Action:   a.Action,
			Approved: a.Approved,
			Risk:     a.ComputedRisk,
			Claimed:  a.ClaimedRisk,
			Kind:     a.Kind,
			Reason:   a.Reason,
		})
	}
	return out
}

func (r *Renderer) encode(v any) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Summary prints the outcome of a finished run.
func (r *Renderer) Summary(s domain.Summary) error {
	if r.json {
		return r.encode(summaryJSON{
			Success:       s.Outcome == domain.OutcomeSuccess,
			SuccessCount:  s.SuccessCount,
			TotalCount:    s.TotalCount,
			Planned:       s.Planned,
			Outcome:       s.Outcome,
			Stopped:       s.Stopped,
			StopReason:    string(s.StopReason),
			Digest:        s.Digest,
			RunID:         s.RunID,
			AuditFailures: s.AuditFailures,
			Results:       toResultsJSON(s.Results),
		})
	}

	if !r.streamed {
		for _, res := range s.Results {
			r.result(res)
		}
	}
	fmt.Fprintln(r.out)
	line := fmt.Sprintf("%d of %d actions succeeded", s.SuccessCount, s.TotalCount)
	switch s.Outcome {
	case domain.OutcomeSuccess:
		okColor.Fprintln(r.out, line)
	case domain.OutcomePartial:
		warnColor.Fprintln(r.out, line)
	default:
		failColor.Fprintln(r.out, line)
	}
	if s.Stopped {
		warnColor.Fprintf(r.out, "Stopped (%s) after %d of %d planned actions\n", s.StopReason, s.TotalCount, s.Planned)
	}
	if s.AuditFailures > 0 {
		warnColor.Fprintf(r.out, "%d audit records could not be written\n", s.AuditFailures)
	}
	dimColor.Fprintf(r.out, "run %s  digest %s\n", s.RunID, shortDigest(s.Digest))
	return nil
}

func (r *Renderer) result(res domain.ExecutionResult) {
	mark := okColor.Sprint("OK ")
	if !res.Succeeded() {
		mark = failColor.Sprint("ERR")
	}
	fmt.Fprintf(r.out, "[%s] %d. %s", mark, res.Index+1, res.Action)
	var tags []string
	if res.Layer != "" {
		tags = append(tags, "via "+string(res.Layer))
	}
	if res.Elevated {
		tags = append(tags, "elevated")
	}
	if res.Duration > 0 {
		tags = append(tags, res.Duration.Round(time.Millisecond).String())
	}
	if len(tags) > 0 {
		dimColor.Fprintf(r.out, " (%s)", strings.Join(tags, ", "))
	}
	fmt.Fprintln(r.out)
	if res.Error != nil {
		fmt.Fprintf(r.out, "    %s\n", res.Error.Error())
		return
	}
	for _, line := range strings.Split(strings.TrimRight(res.Output, "\n"), "\n") {
		if line != "" {
			fmt.Fprintf(r.out, "    %s\n", line)
		}
	}
}

// Verdict prints a validation verdict. descriptions, when present, are the
// dry-run lines for each validated action.
func (r *Renderer) Verdict(v domain.ValidationVerdict, descriptions []string) error {
	if r.json {
		return r.encode(validationJSON{
			Approved:             v.Approved,
			PlanRisk:             v.PlanRisk,
			RequiresConfirmation: v.RequiresConfirmation,
			Digest:               v.Digest,
			Reason:               v.Reason,
			Actions:              toVerdictsJSON(v.Actions),
			Descriptions:         descriptions,
		})
	}

	if v.Approved {
		okColor.Fprintf(r.out, "Plan approved")
		fmt.Fprintf(r.out, " - risk %s", strings.ToUpper(string(v.PlanRisk)))
		if v.RequiresConfirmation {
			fmt.Fprint(r.out, ", confirmation required")
		}
		fmt.Fprintln(r.out)
	} else {
		failColor.Fprintf(r.out, "Plan rejected")
		if v.Reason != "" {
			fmt.Fprintf(r.out, " - %s", v.Reason)
		}
		fmt.Fprintln(r.out)
	}
	for _, a := range v.Actions {
		r.actionVerdict(a)
	}
	if len(descriptions) > 0 {
		fmt.Fprintln(r.out, "\nWould run:")
		for i, d := range descriptions {
			fmt.Fprintf(r.out, "  %d. %s\n", i+1, d)
		}
	}
	if v.Digest != "" {
		dimColor.Fprintf(r.out, "digest %s\n", shortDigest(v.Digest))
	}
	return nil
}

func (r *Renderer) actionVerdict(a domain.ActionVerdict) {
	mark := okColor.Sprint("OK ")
	if !a.Approved {
		mark = failColor.Sprint("DENY")
	}
	fmt.Fprintf(r.out, "  [%s] %d. %s", mark, a.Index+1, a.Action)
	if a.ComputedRisk != "" {
		fmt.Fprintf(r.out, " risk=%s", a.ComputedRisk)
	}
	if a.RiskCorrected() {
		warnColor.Fprintf(r.out, " (claimed %s)", a.ClaimedRisk)
	}
	if a.Reason != "" {
		fmt.Fprintf(r.out, " - %s", a.Reason)
	}
	fmt.Fprintln(r.out)
}

// Rejection prints a rejected plan. In JSON mode it emits the run document
// with zero results so callers can parse a single shape.
func (r *Renderer) Rejection(v domain.ValidationVerdict, planned int) error {
	if r.json {
		return r.encode(summaryJSON{
			Planned:  planned,
			Outcome:  domain.OutcomeFailure,
			Digest:   v.Digest,
			Reason:   v.Reason,
			Results:  []resultJSON{},
			Verdicts: toVerdictsJSON(v.Actions),
		})
	}
	return r.Verdict(v, nil)
}

func shortDigest(digest string) string {
	if len(digest) > 12 {
		return digest[:12]
	}
	return digest
}
