package dbsync

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/rxpartners/crm-backend/pkg/dbconn"
	"github.com/rxpartners/crm-backend/pkg/environment"
)

// Comparator computes per-table differences between production and development.
// It only reads from either side.
type Comparator struct {
	production  dbconn.Reader
	development dbconn.Reader
	registry    *Registry
	logger      *zap.Logger
}

// NewComparator creates a Comparator over the two environments.
func NewComparator(production, development dbconn.Reader, registry *Registry, logger *zap.Logger) *Comparator {
	return &Comparator{
		production:  production,
		development: development,
		registry:    registry,
		logger:      logger.Named("comparator"),
	}
}

// CompareAll compares every tracked table, strictly one after another in registry order.
func (c *Comparator) CompareAll(ctx context.Context) []TableComparisonResult {
	tables := c.registry.Tables()
	results := make([]TableComparisonResult, 0, len(tables))
	for _, t := range tables {
		results = append(results, c.CompareTable(ctx, t.Name, t.PrimaryKey))
	}
	return results
}

// CompareTable compares one table. Failures never escape: any error becomes a single
// ComparisonError difference for the table.
func (c *Comparator) CompareTable(ctx context.Context, table, primaryKey string) TableComparisonResult {
	result := TableComparisonResult{Table: table, Differences: []RowDifference{}}

	tracked, ok := c.registry.Lookup(table)
	if !ok {
		return c.failed(result, fmt.Errorf("table %q is not tracked", table))
	}
	if primaryKey == "" {
		primaryKey = tracked.PrimaryKey
	}
	if !environment.ValidIdentifier(primaryKey) {
		return c.failed(result, fmt.Errorf("invalid primary key column %q", primaryKey))
	}

	query, args := selectAllQuery(table, primaryKey)
	prodRows, err := c.production.Query(ctx, query, args...)
	if err != nil {
		return c.failed(result, fmt.Errorf("production: %w", err))
	}
	devRows, err := c.development.Query(ctx, query, args...)
	if err != nil {
		return c.failed(result, fmt.Errorf("development: %w", err))
	}

	result.ProductionCount = len(prodRows)
	result.DevelopmentCount = len(devRows)
	if result.ProductionCount != result.DevelopmentCount {
		result.add(RowDifference{
			Kind:             CountMismatch,
			ProductionValue:  result.ProductionCount,
			DevelopmentValue: result.DevelopmentCount,
		})
	}

	if c.registry.IsCritical(table) {
		reconcileRows(&result, tracked, primaryKey, prodRows, devRows)
	}

	c.logger.Debug("Compared table",
		zap.String("table", table),
		zap.Int("production_rows", result.ProductionCount),
		zap.Int("development_rows", result.DevelopmentCount),
		zap.Int("differences", len(result.Differences)))
	return result
}

func reconcileRows(result *TableComparisonResult, table TrackedTable, primaryKey string, prodRows, devRows []dbconn.Row) {
	devByKey := make(map[string]dbconn.Row, len(devRows))
	for _, row := range devRows {
		devByKey[recordKey(row[primaryKey])] = row
	}
	prodKeys := make(map[string]bool, len(prodRows))

	for _, prodRow := range prodRows {
		key := recordKey(prodRow[primaryKey])
		prodKeys[key] = true

		devRow, ok := devByKey[key]
		if !ok {
			result.add(RowDifference{Kind: MissingInDevelopment, RecordID: key, Row: prodRow})
			continue
		}
		for _, field := range table.KeyFields {
			if valuesEqual(prodRow[field], devRow[field]) {
				continue
			}
			result.add(RowDifference{
				Kind:             FieldMismatch,
				RecordID:         key,
				Field:            field,
				ProductionValue:  Normalize(prodRow[field]),
				DevelopmentValue: Normalize(devRow[field]),
			})
		}
	}

	for _, devRow := range devRows {
		key := recordKey(devRow[primaryKey])
		if !prodKeys[key] {
			result.add(RowDifference{Kind: MissingInProduction, RecordID: key, Row: devRow})
		}
	}
}

func (c *Comparator) failed(result TableComparisonResult, err error) TableComparisonResult {
	c.logger.Warn("Table comparison failed", zap.String("table", result.Table), zap.Error(err))
	result.ProductionCount, result.DevelopmentCount = 0, 0
	result.Differences = nil
	result.add(RowDifference{Kind: ComparisonError, Error: err.Error()})
	return result
}
