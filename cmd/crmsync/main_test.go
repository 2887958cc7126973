package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rxpartners/crm-backend/pkg/dbsync"
	"github.com/rxpartners/crm-backend/pkg/syncreport"
)

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version"})
	t.Cleanup(func() { rootCmd.SetArgs(nil); rootCmd.SetOut(nil) })

	require.NoError(t, rootCmd.Execute())
	assert.Equal(t, "crmsync version dev\n", out.String())
}

func TestPrintSyncReport(t *testing.T) {
	start := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	report := &dbsync.SyncReport{
		RunID:     "run-1",
		StartTime: start,
		EndTime:   start.Add(1500 * time.Millisecond),
		Attempts:  2,
		Outcome:   dbsync.OutcomeConverged,
		Tables: []dbsync.TableSummary{
			{Table: "customers", ProductionCount: 2, DevelopmentCount: 2},
			{Table: "users", ProductionCount: 3, DevelopmentCount: 3},
		},
		Corrections: []dbsync.CorrectionResult{
			{Table: "customers", Attempt: 1, Status: dbsync.CorrectionApplied, RowsCopied: 2},
			{Table: "users", Attempt: 1, Status: dbsync.CorrectionFailed, RowsCopied: 2, RowsFailed: 1, Error: "1 of 3 rows failed"},
			{Table: "customer_notes", Attempt: 1, Status: dbsync.CorrectionApplied, RowsCopied: 4, Cascaded: true},
		},
		Notes: []string{"customers: 1 reloaded row(s) got a development key different from production"},
	}

	var out bytes.Buffer
	printSyncReport(&out, report)

	text := out.String()
	assert.Contains(t, text, "Run run-1: converged after 2 attempt(s) in 1.5s")
	assert.Contains(t, text, "customers")
	assert.Contains(t, text, "pass 1 customers: corrected, 2 row(s) copied\n")
	assert.Contains(t, text, "pass 1 users: failed, 2 row(s) copied, 1 failed (1 of 3 rows failed)")
	assert.Contains(t, text, "pass 1 customer_notes: corrected, 4 row(s) copied (dependent reload)\n")
	assert.Contains(t, text, "Notes:\n  customers: 1 reloaded row(s) got a development key")
}

func TestPrintComparison(t *testing.T) {
	report := &syncreport.ComparisonReport{
		Production:  "postgres://crm:xxxxx@db/crm",
		Development: "postgres://crm:xxxxx@db/crm?schema=dev_crm",
		Summary:     syncreport.Summary{TablesCompared: 1, TablesWithDifferences: 1, TotalDifferences: 1, TotalMissingInProd: 1},
		Operations: []dbsync.SyncOperation{{
			Table:   "customers",
			Action:  dbsync.ActionInsertFromDev,
			Records: []dbsync.OperationRecord{{ID: "customers-3", Summary: "company_name=Rx Test"}},
		}},
		Recommendations: []syncreport.Recommendation{
			{Priority: syncreport.PriorityHigh, Message: "1 record exists only in development", Action: "review and promote"},
		},
	}

	var out bytes.Buffer
	printComparison(&out, report)

	text := out.String()
	assert.Contains(t, text, "Development: postgres://crm:xxxxx@db/crm?schema=dev_crm")
	assert.Contains(t, text, "  customers-3  company_name=Rx Test")
	assert.Contains(t, text, "Totals: 0 missing in development, 1 only in development")
	assert.Contains(t, text, "[HIGH] 1 record exists only in development")
}
