package domain

// ActionVerdict records the validator's decision for a single action.
type ActionVerdict struct {
	Index        int
	Action       string
	Approved     bool
	ComputedRisk RiskLevel
	ClaimedRisk  string
	Kind         ActionKind
	Reason       string
}

// RiskCorrected reports whether the planner claimed a level that differs
// from the catalog.
func (v ActionVerdict) RiskCorrected() bool {
	return v.ClaimedRisk != "" && RiskLevel(v.ClaimedRisk) != v.ComputedRisk
}

// ValidationVerdict is the all-or-nothing outcome of validating a plan.
// Validated is populated only when Approved is true.
type ValidationVerdict struct {
	Approved             bool
	PlanRisk             RiskLevel
	RequiresConfirmation bool
	Digest               string
	Reason               string
	Actions              []ActionVerdict
	Validated            []ValidatedAction
}

// Rejections returns the verdicts of rejected actions.
func (v ValidationVerdict) Rejections() []ActionVerdict {
	var out []ActionVerdict
	for _, a := range v.Actions {
		if !a.Approved {
			out = append(out, a)
		}
	}
	return out
}
