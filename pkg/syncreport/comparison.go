// Package syncreport persists sync and comparison reports.
package syncreport

import (
	"fmt"
	"time"

	"github.com/rxpartners/crm-backend/pkg/dbconn"
	"github.com/rxpartners/crm-backend/pkg/dbsync"
)

// Priority orders recommendations.
type Priority string

const (
	PriorityHigh   Priority = "HIGH"
	PriorityMedium Priority = "MEDIUM"
	PriorityInfo   Priority = "INFO"
)

// Recommendation is an operator hint derived from a comparison.
type Recommendation struct {
	Priority Priority `json:"priority"`
	Message  string   `json:"message"`
	Action   string   `json:"action"`
}

// Summary totals a comparison across all tables.
type Summary struct {
	TablesCompared        int `json:"tablesCompared"`
	TablesWithDifferences int `json:"tablesWithDifferences"`
	TotalDifferences      int `json:"totalDifferences"`
	TotalMissingInProd    int `json:"totalMissingInProd"`
	TotalMissingInDev     int `json:"totalMissingInDev"`
	TotalFieldMismatches  int `json:"totalFieldMismatches"`
	CountMismatches       int `json:"countMismatches"`
	Errors                int `json:"errors"`
}

// MissingRecord is a row present on one side only.
type MissingRecord struct {
	ID  string     `json:"id"`
	Row dbconn.Row `json:"row,omitempty"`
}

// ComparisonReport is the one-shot report produced by a comparison without correction.
// The per-table maps and lists are complete; Tables carries capped summaries.
type ComparisonReport struct {
	GeneratedAt     time.Time                  `json:"generatedAt"`
	Production      string                     `json:"production"`
	Development     string                     `json:"development"`
	Summary         Summary                    `json:"summary"`
	MissingInProd   map[string][]MissingRecord `json:"missingInProd"`
	MissingInDev    map[string][]MissingRecord `json:"missingInDev"`
	FieldMismatches []dbsync.RowDifference     `json:"fieldMismatches"`
	Errors          []dbsync.RowDifference     `json:"errors"`
	Tables          []dbsync.TableSummary      `json:"tables"`
	Operations      []dbsync.SyncOperation     `json:"operations"`
	Recommendations []Recommendation           `json:"recommendations"`
}

// NewComparisonReport builds a report from one comparison pass. production and development are
// the masked identities of both sides.
func NewComparisonReport(snapshot *dbsync.Snapshot, registry *dbsync.Registry, production, development string) *ComparisonReport {
	report := &ComparisonReport{
		GeneratedAt: snapshot.TakenAt,
		Production:  production,
		Development: development,
		Tables:      dbsync.Summarize(snapshot.Results),
		Operations:  dbsync.BuildSyncOperations(snapshot.Results, registry),

		MissingInProd:   make(map[string][]MissingRecord),
		MissingInDev:    make(map[string][]MissingRecord),
		FieldMismatches: []dbsync.RowDifference{},
		Errors:          []dbsync.RowDifference{},
	}

	s := &report.Summary
	for _, r := range snapshot.Results {
		s.TablesCompared++
		if r.HasDifferences {
			s.TablesWithDifferences++
		}
		s.TotalDifferences += len(r.Differences)

		for _, d := range r.Differences {
			switch d.Kind {
			case dbsync.MissingInProduction:
				report.MissingInProd[r.Table] = append(report.MissingInProd[r.Table], MissingRecord{ID: d.RecordID, Row: d.Row})
				s.TotalMissingInProd++
			case dbsync.MissingInDevelopment:
				report.MissingInDev[r.Table] = append(report.MissingInDev[r.Table], MissingRecord{ID: d.RecordID, Row: d.Row})
				s.TotalMissingInDev++
			case dbsync.FieldMismatch:
				report.FieldMismatches = append(report.FieldMismatches, d)
				s.TotalFieldMismatches++
			case dbsync.CountMismatch:
				s.CountMismatches++
			case dbsync.ComparisonError:
				report.Errors = append(report.Errors, d)
				s.Errors++
			}
		}
	}
	report.Recommendations = recommend(report.Summary)
	return report
}

func recommend(s Summary) []Recommendation {
	var out []Recommendation
	if s.Errors > 0 {
		out = append(out, Recommendation{
			Priority: PriorityHigh,
			Message:  fmt.Sprintf("%d table(s) could not be compared", s.Errors),
			Action:   "Check that both schemas are migrated and reachable, then compare again",
		})
	}
	if s.TotalMissingInProd > 0 {
		out = append(out, Recommendation{
			Priority: PriorityHigh,
			Message:  fmt.Sprintf("%d record(s) exist only in development", s.TotalMissingInProd),
			Action:   "Review the listed operations and promote legitimate records before the next validation run removes them",
		})
	}
	if s.TotalMissingInDev > 0 || s.TotalFieldMismatches > 0 {
		out = append(out, Recommendation{
			Priority: PriorityMedium,
			Message: fmt.Sprintf("development is behind production (%d missing, %d field mismatches)",
				s.TotalMissingInDev, s.TotalFieldMismatches),
			Action: "Run crmsync validate to reload development from production",
		})
	}
	if len(out) == 0 && s.CountMismatches > 0 {
		out = append(out, Recommendation{
			Priority: PriorityMedium,
			Message:  fmt.Sprintf("%d table(s) differ in row count", s.CountMismatches),
			Action:   "Run crmsync validate to reload development from production",
		})
	}
	if len(out) == 0 {
		out = append(out, Recommendation{
			Priority: PriorityInfo,
			Message:  "development matches production",
			Action:   "No action required",
		})
	}
	return out
}
