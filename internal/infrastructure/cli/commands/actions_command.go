package commands

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/doeshing/deskgate/internal/domain"
)

// NewActionsCommand lists the action catalog.
func NewActionsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "actions",
		Short: "List the actions a plan may contain",
		RunE: func(cmd *cobra.Command, args []string) error {
			displayCatalog(cmd.OutOrStdout(), domain.Catalog())
			return nil
		},
	}
}

func displayCatalog(out io.Writer, specs []domain.ActionSpec) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ACTION\tKIND\tRISK\tPATH ARGS\tSUMMARY")
	for _, spec := range specs {
		paths := "-"
		if len(spec.PathArgs) > 0 {
			paths = strings.Join(spec.PathArgs, ",")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", spec.Name, spec.Kind, spec.Risk, paths, spec.Summary)
	}
	w.Flush()
}
