package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var promoteYes bool

var promoteCmd = &cobra.Command{
	Use:   "promote [item-id...]",
	Short: "Copy selected development-only records into production",
	Long: `Without arguments, lists the development-only records found by a fresh
comparison. With item ids (as listed, e.g. customers-42), upserts exactly
those records into production. Nothing else in production is touched.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := openSession(ctx)
		if err != nil {
			return err
		}
		defer s.close()

		out := cmd.OutOrStdout()
		engine := s.tooling.Engine

		if len(args) == 0 {
			ops := engine.Operations(ctx)
			if len(ops) == 0 {
				fmt.Fprintln(out, "No development-only records to promote.")
				return nil
			}
			for _, op := range ops {
				fmt.Fprintf(out, "%s (%d):\n", op.Table, len(op.Records))
				for _, rec := range op.Records {
					fmt.Fprintf(out, "  %s  %s\n", rec.ID, rec.Summary)
				}
			}
			return nil
		}

		if !promoteYes {
			return fmt.Errorf("promotion writes to production %s; rerun with --yes to confirm",
				s.tooling.Resolution.Production.Masked())
		}

		result := engine.Promote(ctx, args)

		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ITEM\tSTATUS\tERROR")
		for _, r := range result.Results {
			fmt.Fprintf(w, "%s\t%s\t%s\n", r.ItemID, r.Status, r.Error)
		}
		_ = w.Flush()
		fmt.Fprintf(out, "\n%d of %d promoted\n", result.Successful, result.Total)

		if result.Failed > 0 {
			return fmt.Errorf("%d item(s) failed to promote", result.Failed)
		}
		return nil
	},
}

func init() {
	promoteCmd.Flags().BoolVarP(&promoteYes, "yes", "y", false, "Confirm writing to production")
}
