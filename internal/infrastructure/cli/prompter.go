package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/doeshing/deskgate/internal/domain"
	"github.com/doeshing/deskgate/internal/ports"
)

// Prompter implements ports.ApprovalSource using a terminal.
type Prompter struct {
	in  *bufio.Reader
	out io.Writer
}

// NewPrompter constructs a prompter referencing stdio.
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	if in == nil {
		in = os.Stdin
	}
	if out == nil {
		out = os.Stderr
	}
	return &Prompter{
		in:  bufio.NewReader(in),
		out: out,
	}
}

// Approve lists the validated plan and asks for confirmation. High-risk
// plans require the word "yes" to be typed in full.
func (p *Prompter) Approve(ctx context.Context, plan domain.Plan, verdict domain.ValidationVerdict) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	fmt.Fprintf(p.out, "\n%s risk plan with %d actions (digest %s)\n",
		strings.ToUpper(string(verdict.PlanRisk)), len(verdict.Validated), shortDigest(verdict.Digest))
	for _, a := range verdict.Actions {
		line := fmt.Sprintf("  %d. %s [%s]", a.Index+1, a.Action, a.ComputedRisk)
		if a.Index < len(plan.Actions) && plan.Actions[a.Index].Description != "" {
			line += " " + plan.Actions[a.Index].Description
		}
		fmt.Fprintln(p.out, line)
	}

	if verdict.PlanRisk == domain.RiskHigh {
		return p.askExplicit()
	}
	return p.ask("[y/N]: ")
}

func (p *Prompter) ask(prompt string) (bool, error) {
	fmt.Fprint(p.out, "Continue? ", prompt)
	line, err := p.in.ReadString('\n')
	if err != nil && line == "" {
		return false, err
	}
	line = strings.ToLower(strings.TrimSpace(line))
	return line == "y" || line == "yes", nil
}

func (p *Prompter) askExplicit() (bool, error) {
	fmt.Fprint(p.out, "Type 'yes' to confirm (or anything else to cancel): ")
	line, err := p.in.ReadString('\n')
	if err != nil && line == "" {
		return false, err
	}
	return strings.TrimSpace(line) == "yes", nil
}

// AutoApprover approves every plan; it backs the --yes flag.
type AutoApprover struct{}

func (AutoApprover) Approve(context.Context, domain.Plan, domain.ValidationVerdict) (bool, error) {
	return true, nil
}

var (
	_ ports.ApprovalSource = (*Prompter)(nil)
	_ ports.ApprovalSource = AutoApprover{}
)
