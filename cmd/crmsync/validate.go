package main

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rxpartners/crm-backend/pkg/dbsync"
	"github.com/rxpartners/crm-backend/pkg/runlock"
)

var errNotConverged = errors.New("development did not converge with production")

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Compare both databases and reload differing development tables until they match",
	Long: `Runs the validation loop: compare every tracked table, reload the differing
ones in development from production, wait, and compare again, up to
sync.max_retries passes. A report is written for every run.

Exits 0 when development converged and 1 otherwise.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := openSession(ctx)
		if err != nil {
			return err
		}
		defer s.close()

		release, err := s.tooling.Locker.Obtain(ctx, runlock.ValidateKey)
		if err != nil {
			return err
		}
		defer release()

		report, err := s.tooling.Engine.Validate(ctx)
		if err != nil {
			s.logger.Error("Sync report was not persisted", zap.Error(err))
		}
		printSyncReport(cmd.OutOrStdout(), report)

		if !report.Success {
			return fmt.Errorf("%w after %d of %d attempts (%s)", errNotConverged, report.Attempts, report.MaxRetries, report.Outcome)
		}
		return nil
	},
}

func printSyncReport(out io.Writer, report *dbsync.SyncReport) {
	fmt.Fprintf(out, "Run %s: %s after %d attempt(s) in %s\n\n",
		report.RunID, report.Outcome, report.Attempts, report.Duration().Round(time.Millisecond))

	printTables(out, report.Tables)

	if len(report.Corrections) > 0 {
		fmt.Fprintln(out, "\nCorrections:")
	}
	for _, c := range report.Corrections {
		line := fmt.Sprintf("  pass %d %s: %s, %d row(s) copied", c.Attempt, c.Table, c.Status, c.RowsCopied)
		if c.Cascaded {
			line += " (dependent reload)"
		}
		if c.RowsFailed > 0 {
			line += fmt.Sprintf(", %d failed", c.RowsFailed)
		}
		if c.Error != "" {
			line += " (" + c.Error + ")"
		}
		fmt.Fprintln(out, line)
	}

	if len(report.Notes) > 0 {
		fmt.Fprintln(out, "\nNotes:")
	}
	for _, n := range report.Notes {
		fmt.Fprintf(out, "  %s\n", n)
	}
}

func printTables(out io.Writer, tables []dbsync.TableSummary) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TABLE\tPRODUCTION\tDEVELOPMENT\tDIFFERENCES")
	for _, t := range tables {
		total := 0
		for _, n := range t.DifferenceCounts {
			total += n
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\n", t.Table, t.ProductionCount, t.DevelopmentCount, total)
	}
	_ = w.Flush()
}
