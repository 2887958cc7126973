package dbsync

import (
	"context"
	"time"
)

// Outcome is the terminal state of a validation loop run.
type Outcome string

const (
	OutcomeConverged Outcome = "converged"
	OutcomeExhausted Outcome = "exhausted"
	// OutcomeInterrupted: the context was cancelled between passes.
	OutcomeInterrupted Outcome = "interrupted"
)

// maxReportedDifferences caps the differences listed per table in a SyncReport.
const maxReportedDifferences = 100

// TableSummary is the per-table entry of a SyncReport.
type TableSummary struct {
	Table            string                 `json:"table"`
	ProductionCount  int                    `json:"productionCount"`
	DevelopmentCount int                    `json:"developmentCount"`
	HasDifferences   bool                   `json:"hasDifferences"`
	DifferenceCounts map[DifferenceKind]int `json:"differenceCounts"`
	Differences      []RowDifference        `json:"differences"`
	Truncated        bool                   `json:"truncated,omitempty"`
}

// SyncReport is the audit record of one validation loop run. It is not modified after the run.
type SyncReport struct {
	RunID       string             `json:"runId"`
	StartTime   time.Time          `json:"startTime"`
	EndTime     time.Time          `json:"endTime"`
	Attempts    int                `json:"attempts"`
	MaxRetries  int                `json:"maxRetries"`
	Success     bool               `json:"success"`
	Outcome     Outcome            `json:"outcome"`
	Tables      []TableSummary     `json:"tables"`
	Corrections []CorrectionResult `json:"corrections"`
	// Notes are operator hints about the run, such as renumbered keys.
	Notes []string `json:"notes,omitempty"`
}

// Duration is the wall time of the run.
func (r *SyncReport) Duration() time.Duration {
	return r.EndTime.Sub(r.StartTime)
}

// ReportWriter persists reports. It returns where the report was stored.
type ReportWriter interface {
	WriteSyncReport(ctx context.Context, report *SyncReport) (string, error)
}

// Summarize turns comparison results into report summaries.
func Summarize(results []TableComparisonResult) []TableSummary {
	summaries := make([]TableSummary, 0, len(results))
	for _, r := range results {
		s := TableSummary{
			Table:            r.Table,
			ProductionCount:  r.ProductionCount,
			DevelopmentCount: r.DevelopmentCount,
			HasDifferences:   r.HasDifferences,
			DifferenceCounts: make(map[DifferenceKind]int),
			Differences:      r.Differences,
		}
		for _, d := range r.Differences {
			s.DifferenceCounts[d.Kind]++
		}
		if len(s.Differences) > maxReportedDifferences {
			s.Differences = s.Differences[:maxReportedDifferences]
			s.Truncated = true
		}
		if s.Differences == nil {
			s.Differences = []RowDifference{}
		}
		summaries = append(summaries, s)
	}
	return summaries
}
