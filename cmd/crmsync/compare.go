package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/rxpartners/crm-backend/pkg/syncreport"
)

var compareJSON bool

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Compare both databases without changing either",
	Long: `Runs one comparison pass, writes a comparison report with recommendations
and lists the development-only records that "promote" can copy to production.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := openSession(ctx)
		if err != nil {
			return err
		}
		defer s.close()

		res := s.tooling.Resolution
		snap := s.tooling.Engine.Compare(ctx)
		report := syncreport.NewComparisonReport(snap, s.tooling.Engine.Registry(),
			res.Production.Masked(), res.Development.Masked())

		location, err := s.tooling.Reports.WriteComparisonReport(ctx, report)
		if err != nil {
			return fmt.Errorf("write comparison report: %w", err)
		}

		out := cmd.OutOrStdout()
		if compareJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		}
		printComparison(out, report)
		fmt.Fprintf(out, "\nReport written to %s\n", location)
		return nil
	},
}

func init() {
	compareCmd.Flags().BoolVar(&compareJSON, "json", false, "Print the full report as JSON")
}

func printComparison(out io.Writer, report *syncreport.ComparisonReport) {
	fmt.Fprintf(out, "Production:  %s\nDevelopment: %s\n\n", report.Production, report.Development)

	printTables(out, report.Tables)

	sum := report.Summary
	fmt.Fprintf(out, "\nTotals: %d missing in development, %d only in development, %d field mismatch(es), %d error(s)\n",
		sum.TotalMissingInDev, sum.TotalMissingInProd, sum.TotalFieldMismatches, sum.Errors)

	if len(report.Operations) > 0 {
		fmt.Fprintln(out, "\nPromotable development records:")
		for _, op := range report.Operations {
			for _, rec := range op.Records {
				fmt.Fprintf(out, "  %s  %s\n", rec.ID, rec.Summary)
			}
		}
	}

	fmt.Fprintln(out, "\nRecommendations:")
	for _, r := range report.Recommendations {
		fmt.Fprintf(out, "  [%s] %s\n", r.Priority, r.Message)
		if r.Action != "" {
			fmt.Fprintf(out, "         %s\n", r.Action)
		}
	}
}
