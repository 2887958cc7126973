package dbsync

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/rxpartners/crm-backend/internal/metrics"
	"github.com/rxpartners/crm-backend/pkg/dbconn"
)

// CorrectionStatus is the outcome of correcting one table.
type CorrectionStatus string

const (
	CorrectionApplied CorrectionStatus = "corrected"
	CorrectionSkipped CorrectionStatus = "skipped"
	CorrectionFailed  CorrectionStatus = "failed"
)

// KeyPolicy decides what happens to the primary key during a reload.
type KeyPolicy string

const (
	// RenumberKeys leaves a generated primary key to development, which numbers the reloaded
	// rows from 1 in production key order. A key development does not generate is copied.
	RenumberKeys KeyPolicy = "renumber"
	// PreserveKeys copies the primary key verbatim and moves the key sequence past it.
	PreserveKeys KeyPolicy = "preserve"
)

// CorrectionResult records what one corrective reload did.
type CorrectionResult struct {
	Table       string           `json:"table"`
	Attempt     int              `json:"attempt"`
	Status      CorrectionStatus `json:"status"`
	RowsCopied  int              `json:"rowsCopied"`
	RowsFailed  int              `json:"rowsFailed,omitempty"`
	ColumnsUsed []string         `json:"columnsUsed,omitempty"`
	// KeysRenumbered counts rows whose development key differs from the production key.
	KeysRenumbered int `json:"keysRenumbered,omitempty"`
	// Cascaded is set when the table was reloaded because a table it depends on was.
	Cascaded bool   `json:"cascaded,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Synchronizer forces development tables to match production. Production is only ever read.
type Synchronizer struct {
	production  dbconn.Reader
	development dbconn.Database
	registry    *Registry
	keyPolicy   KeyPolicy
	logger      *zap.Logger
}

// NewSynchronizer creates a Synchronizer. An empty policy means RenumberKeys.
func NewSynchronizer(production dbconn.Reader, development dbconn.Database, registry *Registry, policy KeyPolicy, logger *zap.Logger) *Synchronizer {
	if policy == "" {
		policy = RenumberKeys
	}
	return &Synchronizer{
		production:  production,
		development: development,
		registry:    registry,
		keyPolicy:   policy,
		logger:      logger.Named("synchronizer"),
	}
}

// Correct replaces the development copy of result.Table with production's rows over the
// columns both sides share. Failures are reported in the result, never returned.
func (s *Synchronizer) Correct(ctx context.Context, result TableComparisonResult) CorrectionResult {
	out := CorrectionResult{Table: result.Table}
	logger := s.logger.With(zap.String("table", result.Table))

	table, ok := s.registry.Lookup(result.Table)
	if !ok {
		return s.fail(logger, out, fmt.Errorf("table %q is not tracked", result.Table))
	}

	exists, err := tableExists(ctx, s.development, table.Name)
	if err != nil {
		return s.fail(logger, out, err)
	}
	if !exists {
		logger.Warn("Table missing in development, skipping correction")
		out.Status = CorrectionSkipped
		out.Error = "table does not exist in development"
		return out
	}

	prodColumns, err := tableColumns(ctx, s.production, table.Name)
	if err != nil {
		return s.fail(logger, out, err)
	}
	if len(prodColumns) == 0 {
		logger.Warn("Table missing in production, skipping correction")
		out.Status = CorrectionSkipped
		out.Error = "table does not exist in production"
		return out
	}
	devColumns, err := tableColumns(ctx, s.development, table.Name)
	if err != nil {
		return s.fail(logger, out, err)
	}

	plan := s.planColumns(table.PrimaryKey, prodColumns, devColumns)
	if len(plan.insert) == 0 {
		return s.fail(logger, out, fmt.Errorf("no overlapping writable columns"))
	}
	out.ColumnsUsed = plan.insert

	// Read production before anything is removed from development.
	query, args := selectColumnsQuery(table.Name, table.PrimaryKey, plan.selected)
	rows, err := s.production.Query(ctx, query, args...)
	if err != nil {
		return s.fail(logger, out, fmt.Errorf("production: %w", err))
	}

	truncate, truncateArgs := truncateQuery(table.Name)
	if _, err := s.development.Exec(ctx, truncate, truncateArgs...); err != nil {
		return s.fail(logger, out, fmt.Errorf("truncate: %w", err))
	}

	for i, row := range rows {
		values := make([]interface{}, len(plan.insert))
		for j, col := range plan.insert {
			values[j] = row[col]
		}
		query, args := insertQuery(table.Name, plan.insert, values, plan.overriding)
		if _, err := s.development.Exec(ctx, query, args...); err != nil {
			out.RowsFailed++
			logger.Warn("Failed to copy row",
				zap.String("record_id", recordKey(row[table.PrimaryKey])),
				zap.Error(err))
			continue
		}
		out.RowsCopied++
		// each attempted insert draws one value from the restarted sequence
		if plan.renumbered && recordKey(row[table.PrimaryKey]) != strconv.Itoa(i+1) {
			out.KeysRenumbered++
		}
	}

	if plan.advanceSequence && out.RowsCopied > 0 {
		query, args := advanceSequenceQuery(table.Name, table.PrimaryKey)
		if _, err := s.development.Query(ctx, query, args...); err != nil {
			logger.Warn("Failed to advance key sequence", zap.Error(err))
		}
	}

	metrics.RowsCopied.WithLabelValues(table.Name).Add(float64(out.RowsCopied))

	if out.KeysRenumbered > 0 {
		logger.Warn("Development keys no longer match production keys",
			zap.Int("renumbered", out.KeysRenumbered))
	}
	if out.RowsFailed > 0 {
		out.Status = CorrectionFailed
		out.Error = fmt.Sprintf("%d of %d rows failed to copy", out.RowsFailed, len(rows))
		metrics.ErrorsTotal.WithLabelValues("synchronizer", "row_copy").Add(float64(out.RowsFailed))
		logger.Warn("Correction incomplete", zap.Int("rows_copied", out.RowsCopied), zap.Int("rows_failed", out.RowsFailed))
		return out
	}

	out.Status = CorrectionApplied
	logger.Info("Development table reloaded from production",
		zap.Int("rows_copied", out.RowsCopied),
		zap.Int("columns_used", len(out.ColumnsUsed)))
	return out
}

type columnPlan struct {
	// selected is read from production; it always carries the primary key.
	selected []string
	// insert is written to development.
	insert          []string
	overriding      bool
	renumbered      bool
	advanceSequence bool
}

// planColumns intersects the two column sets in development order.
func (s *Synchronizer) planColumns(primaryKey string, prodColumns, devColumns []Column) columnPlan {
	var plan columnPlan
	devPK, devHasPK := columnByName(devColumns, primaryKey)
	_, prodHasPK := columnByName(prodColumns, primaryKey)
	copyKey := devHasPK && prodHasPK && (!devPK.Generated || s.keyPolicy == PreserveKeys)

	for _, dc := range devColumns {
		if dc.Computed {
			continue
		}
		if _, ok := columnByName(prodColumns, dc.Name); !ok {
			continue
		}
		if dc.Name == primaryKey && !copyKey {
			continue
		}
		plan.insert = append(plan.insert, dc.Name)
	}

	plan.selected = append([]string(nil), plan.insert...)
	if prodHasPK && !copyKey {
		plan.selected = append(plan.selected, primaryKey)
	}
	plan.renumbered = devHasPK && devPK.Generated && !copyKey
	plan.overriding = copyKey && devPK.Identity
	plan.advanceSequence = copyKey && devPK.Generated
	return plan
}

func (s *Synchronizer) fail(logger *zap.Logger, out CorrectionResult, err error) CorrectionResult {
	logger.Error("Correction failed", zap.Error(err))
	metrics.ErrorsTotal.WithLabelValues("synchronizer", "table").Inc()
	out.Status = CorrectionFailed
	out.Error = err.Error()
	return out
}
