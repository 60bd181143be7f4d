package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/doeshing/deskgate/internal/app"
	"github.com/doeshing/deskgate/internal/domain"
	"github.com/doeshing/deskgate/internal/ports"
)

// TimestampFormat is used for absolute audit timestamps.
const TimestampFormat = "2006-01-02 15:04:05"

// NewAuditCommand creates the audit command with all subcommands
func NewAuditCommand(container *app.Container) *cobra.Command {
	auditCmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect the audit trail",
	}

	auditCmd.AddCommand(
		newAuditListCommand(container),
		newAuditStatsCommand(container),
		newAuditExportCommand(container),
	)

	return auditCmd
}

// newAuditListCommand creates the 'audit list' subcommand
func newAuditListCommand(container *app.Container) *cobra.Command {
	var (
		limit      int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent audit records, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 1 {
				return errors.New(ErrLimitInvalid)
			}
			return listAuditRecords(cmd.Context(), cmd.OutOrStdout(), container.AuditStore, limit, jsonOutput)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", domain.DefaultAuditLimit, "Max records to show")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print records as JSON")
	return cmd
}

// newAuditStatsCommand creates the 'audit stats' subcommand
func newAuditStatsCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show success rate, elevation count and top actions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showAuditStats(cmd.Context(), cmd.OutOrStdout(), container.AuditStore)
		},
	}
}

// newAuditExportCommand creates the 'audit export' subcommand
func newAuditExportCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "export <path>",
		Short: "Export the audit trail to a JSONL file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store := container.AuditStore
			if store == nil {
				return errors.New(ErrAuditStoreUnavailable)
			}
			if err := store.ExportJSON(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("failed to export audit trail to %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported audit trail to %s\n", args[0])
			return nil
		},
	}
}

// listAuditRecords prints recent records
func listAuditRecords(ctx context.Context, out io.Writer, store ports.AuditRepository, limit int, jsonOutput bool) error {
	if store == nil {
		return errors.New(ErrAuditStoreUnavailable)
	}

	records, err := store.Recent(ctx, limit)
	if err != nil {
		return fmt.Errorf("failed to retrieve audit records: %w", err)
	}

	if jsonOutput {
		if records == nil {
			records = []domain.AuditRecord{}
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}
	if len(records) == 0 {
		fmt.Fprintln(out, MsgNoAuditRecorded)
		return nil
	}

	for _, rec := range records {
		fmt.Fprintf(out, "%s (%s) | %s | %-7s | %s", rec.Timestamp.Local().Format(TimestampFormat),
			humanize.Time(rec.Timestamp), rec.RiskLevel, rec.Status, rec.Action)
		if rec.Layer != "" {
			fmt.Fprintf(out, " via %s", rec.Layer)
		}
		if rec.Elevated {
			fmt.Fprint(out, " [elevated]")
		}
		if rec.Error != "" {
			fmt.Fprintf(out, " | %s", rec.Error)
		}
		fmt.Fprintln(out)
	}
	return nil
}

// showAuditStats displays success rate and top actions
func showAuditStats(ctx context.Context, out io.Writer, store ports.AuditRepository) error {
	if store == nil {
		return errors.New(ErrAuditStoreUnavailable)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		return fmt.Errorf("failed to compute audit statistics: %w", err)
	}
	if stats.Total == 0 {
		fmt.Fprintln(out, MsgNoAuditRecorded)
		return nil
	}
	displayAuditStatistics(out, stats)
	return nil
}

// displayAuditStatistics displays formatted audit statistics
func displayAuditStatistics(out io.Writer, stats domain.AuditStats) {
	fmt.Fprintf(out, "Actions audited: %s\nSucceeded: %s\nFailed: %s\nElevated: %s\nSuccess rate: %.1f%%\n",
		humanize.Comma(int64(stats.Total)),
		humanize.Comma(int64(stats.Successes)),
		humanize.Comma(int64(stats.Errors)),
		humanize.Comma(int64(stats.Elevated)),
		stats.SuccessRate())

	fmt.Fprintln(out, "Top actions:")
	for _, stat := range stats.TopActions {
		fmt.Fprintf(out, "  %s (%d)\n", stat.Action, stat.Count)
	}

	fmt.Fprintln(out, "Risk distribution:")
	levels := make([]string, 0, len(stats.ByRisk))
	for level := range stats.ByRisk {
		levels = append(levels, string(level))
	}
	sort.Strings(levels)
	for _, level := range levels {
		fmt.Fprintf(out, "  %s: %d\n", level, stats.ByRisk[domain.RiskLevel(level)])
	}
}
