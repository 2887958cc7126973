package dbsync

import (
	"github.com/rxpartners/crm-backend/pkg/dbconn"
)

// DifferenceKind tags a RowDifference.
type DifferenceKind string

const (
	CountMismatch DifferenceKind = "count_mismatch"
	// MissingInProduction: development holds a row production lacks.
	MissingInProduction  DifferenceKind = "missing_in_production"
	MissingInDevelopment DifferenceKind = "missing_in_development"
	FieldMismatch        DifferenceKind = "field_mismatch"
	ComparisonError      DifferenceKind = "comparison_error"
)

// RowDifference is one detected difference. Which payload fields are set depends on Kind:
//
//	CountMismatch         ProductionValue, DevelopmentValue hold the row counts
//	MissingInProduction   RecordID, Row (development snapshot)
//	MissingInDevelopment  RecordID, Row (production snapshot)
//	FieldMismatch         RecordID, Field, ProductionValue, DevelopmentValue (normalized)
//	ComparisonError       Error
type RowDifference struct {
	Kind             DifferenceKind `json:"kind"`
	Table            string         `json:"table"`
	RecordID         string         `json:"recordId,omitempty"`
	Field            string         `json:"field,omitempty"`
	ProductionValue  interface{}    `json:"productionValue,omitempty"`
	DevelopmentValue interface{}    `json:"developmentValue,omitempty"`
	Row              dbconn.Row     `json:"row,omitempty"`
	Error            string         `json:"error,omitempty"`
}

// TableComparisonResult is the outcome of comparing one table.
type TableComparisonResult struct {
	Table            string          `json:"table"`
	ProductionCount  int             `json:"productionCount"`
	DevelopmentCount int             `json:"developmentCount"`
	Differences      []RowDifference `json:"differences"`
	HasDifferences   bool            `json:"hasDifferences"`
}

// Count returns the number of differences of the given kind.
func (r TableComparisonResult) Count(kind DifferenceKind) int {
	n := 0
	for _, d := range r.Differences {
		if d.Kind == kind {
			n++
		}
	}
	return n
}

// OfKind returns the differences of the given kind, in detection order.
func (r TableComparisonResult) OfKind(kind DifferenceKind) []RowDifference {
	var out []RowDifference
	for _, d := range r.Differences {
		if d.Kind == kind {
			out = append(out, d)
		}
	}
	return out
}

func (r *TableComparisonResult) add(d RowDifference) {
	d.Table = r.Table
	r.Differences = append(r.Differences, d)
	r.HasDifferences = true
}

// AnyDifferences reports whether any table in results has differences.
func AnyDifferences(results []TableComparisonResult) bool {
	for _, r := range results {
		if r.HasDifferences {
			return true
		}
	}
	return false
}
