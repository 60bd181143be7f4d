package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/doeshing/deskgate/internal/app"
	"github.com/doeshing/deskgate/internal/domain"
)

// NewAdminCommand groups privilege inspection subcommands.
func NewAdminCommand(container *app.Container) *cobra.Command {
	adminCmd := &cobra.Command{
		Use:   "admin",
		Short: "Inspect administrator status and elevation rules",
	}

	adminCmd.AddCommand(
		newAdminStatusCommand(container),
		newAdminClassifyCommand(container),
	)
	return adminCmd
}

// newAdminStatusCommand creates the 'admin status' subcommand
func newAdminStatusCommand(container *app.Container) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Report whether deskgate runs with administrator rights",
		RunE: func(cmd *cobra.Command, args []string) error {
			status := container.Elevator.Status()
			if jsonOutput {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(status)
			}
			displayAdminStatus(cmd.OutOrStdout(), status)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the status as JSON")
	return cmd
}

// newAdminClassifyCommand creates the 'admin classify' subcommand
func newAdminClassifyCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "classify <script...>",
		Short: "Show whether a script would be run elevated",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			assessment := container.Classifier.Classify(strings.Join(args, " "))
			displayAssessment(cmd.OutOrStdout(), assessment)
			return nil
		},
	}
}

func displayAdminStatus(out io.Writer, status domain.AdminStatus) {
	if status.IsAdmin {
		color.New(color.FgGreen).Fprintln(out, status.Message)
		return
	}
	color.New(color.FgYellow).Fprintln(out, status.Message)
	if status.Recommendation != "" {
		fmt.Fprintln(out, status.Recommendation)
	}
}

func displayAssessment(out io.Writer, assessment domain.ElevationAssessment) {
	if !assessment.Required {
		fmt.Fprintln(out, "Elevation: not required")
		return
	}
	fmt.Fprintf(out, "Elevation: required (%s)\n", strings.Join(assessment.MatchedRules, ", "))
	for _, reason := range assessment.Reasons {
		fmt.Fprintf(out, "  - %s\n", reason)
	}
}
