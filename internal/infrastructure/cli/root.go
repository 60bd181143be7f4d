package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/doeshing/deskgate/internal/app"
	"github.com/doeshing/deskgate/internal/domain"
	"github.com/doeshing/deskgate/internal/infrastructure/cli/commands"
	"github.com/doeshing/deskgate/internal/version"
)

// Options holds CLI-level configuration.
type Options struct {
	Verbose    bool
	ConfigPath string
}

// ErrIncompleteRun is returned when a plan ran but not every action succeeded.
var ErrIncompleteRun = errors.New("plan did not complete successfully")

// NewRootCmd wires the cobra root command. The returned cleanup flushes
// telemetry and closes the audit store.
func NewRootCmd(ctx context.Context, opts Options) (*cobra.Command, func(), error) {
	container, err := app.BuildContainer(ctx, app.Options{
		ConfigPath: opts.ConfigPath,
		Verbose:    opts.Verbose,
		Version:    version.Version,
	})
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := container.Close(shutdownCtx); err != nil {
			container.Logger.Warn("shutdown", map[string]interface{}{"error": err.Error()})
		}
	}

	root := &cobra.Command{
		Use:   "deskgate",
		Short: "deskgate - guarded executor for desktop action plans",
		Long: "deskgate validates a pre-authorized action plan against the allowlist and catalog, " +
			"executes it with elevation and layered GUI automation, and records every action in an audit trail.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newRunCommand(container))
	root.AddCommand(newValidateCommand(container))
	root.AddCommand(commands.NewAuditCommand(container))
	root.AddCommand(commands.NewAdminCommand(container))
	root.AddCommand(commands.NewActionsCommand())
	root.AddCommand(commands.NewConfigCommand(container))
	root.AddCommand(commands.NewDoctorCommand(container))
	root.AddCommand(commands.NewVersionCommand())
	return root, cleanup, nil
}

func newRunCommand(container *app.Container) *cobra.Command {
	var (
		assumeYes  bool
		dryRun     bool
		jsonOutput bool
		timeout    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "run [plan-file|-]",
		Short: "Validate and execute an action plan",
		Long: "Reads a plan (JSON, or YAML for .yaml/.yml files) and runs it. The first interrupt stops " +
			"the plan after the current action; a second interrupt aborts it.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			plan, err := ReadPlan(cmd.InOrStdin(), firstArg(args))
			if err != nil {
				return err
			}
			renderer := NewRenderer(cmd.OutOrStdout(), jsonOutput)

			if dryRun {
				verdict, lines, err := container.Pipeline.DryRun(cmd.Context(), plan)
				if rendered := renderVerdict(renderer, verdict, lines, plan, err); rendered != nil {
					return rendered
				}
				return err
			}

			if !jsonOutput {
				progress := newLiveProgress(renderer, cmd.ErrOrStderr())
				container.Pipeline.Progress = progress
				defer progress.stop()
			}
			if assumeYes {
				container.Pipeline.Approver = AutoApprover{}
			} else {
				container.Pipeline.Approver = NewPrompter(cmd.InOrStdin(), cmd.ErrOrStderr())
			}

			ctx := cmd.Context()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}
			ctx, stop := context.WithCancel(ctx)
			defer stop()
			cancelSignal := &domain.CancelSignal{}
			release := watchInterrupts(cancelSignal, stop)
			defer release()

			summary, err := container.Pipeline.Submit(ctx, plan, cancelSignal)
			var rejection *domain.RejectionError
			if errors.As(err, &rejection) {
				if rerr := renderer.Rejection(rejection.Verdict, plan.Len()); rerr != nil {
					return rerr
				}
				return err
			}
			if err != nil {
				return err
			}
			if err := renderer.Summary(summary); err != nil {
				return err
			}
			if summary.Outcome != domain.OutcomeSuccess {
				return fmt.Errorf("%w: %d of %d actions succeeded", ErrIncompleteRun, summary.SuccessCount, summary.Planned)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Approve the plan without prompting")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Validate and describe each action without executing")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the result as JSON")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Abort the run after this duration (0 uses execution.plan_timeout)")
	return cmd
}

func newValidateCommand(container *app.Container) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "validate [plan-file|-]",
		Short: "Validate a plan and print the verdict",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			plan, err := ReadPlan(cmd.InOrStdin(), firstArg(args))
			if err != nil {
				return err
			}
			verdict, err := container.Pipeline.Validate(cmd.Context(), plan)
			if err != nil {
				return err
			}
			if err := NewRenderer(cmd.OutOrStdout(), jsonOutput).Verdict(verdict, nil); err != nil {
				return err
			}
			if !verdict.Approved {
				return &domain.RejectionError{Verdict: verdict}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the verdict as JSON")
	return cmd
}

// renderVerdict prints a dry-run outcome. It returns a non-nil error only
// when rendering itself failed.
func renderVerdict(r *Renderer, verdict domain.ValidationVerdict, lines []string, plan domain.Plan, err error) error {
	var rejection *domain.RejectionError
	switch {
	case errors.As(err, &rejection):
		return r.Rejection(rejection.Verdict, plan.Len())
	case err != nil:
		return nil
	default:
		return r.Verdict(verdict, lines)
	}
}

// watchInterrupts raises signal on the first interrupt and calls abort on
// the second.
func watchInterrupts(cancel *domain.CancelSignal, abort context.CancelFunc) func() {
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, os.Interrupt)
	done := make(chan struct{})
	go func() {
		count := 0
		for {
			select {
			case <-ch:
				count++
				if count == 1 {
					cancel.Cancel()
					fmt.Fprintln(os.Stderr, "interrupt: stopping after the current action (press Ctrl+C again to abort)")
					continue
				}
				abort()
				return
			case <-done:
				return
			}
		}
	}()
	return func() {
		signal.Stop(ch)
		close(done)
	}
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
