package dbsync

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/rxpartners/crm-backend/internal/metrics"
	"github.com/rxpartners/crm-backend/pkg/dbconn"
)

// ErrRecordNotFound is reported for promotion items that are not in the snapshot's
// missing-in-production set.
var ErrRecordNotFound = errors.New("record not found")

// ActionInsertFromDev is the only SyncOperation action.
const ActionInsertFromDev = "insert-from-dev"

// OperationRecord is one reviewable development-only record.
type OperationRecord struct {
	ID      string `json:"id"`
	Summary string `json:"summary"`
}

// SyncOperation lists the development-only records of one table that could be promoted.
type SyncOperation struct {
	Table   string            `json:"table"`
	Action  string            `json:"action"`
	Records []OperationRecord `json:"records"`
}

// PromotionStatus is the per-item outcome.
type PromotionStatus string

const (
	PromotionSucceeded PromotionStatus = "success"
	PromotionFailed    PromotionStatus = "failed"
)

// PromotionItemResult is the result of one promotion item.
type PromotionItemResult struct {
	ItemID   string          `json:"itemId"`
	Table    string          `json:"table,omitempty"`
	RecordID string          `json:"recordId,omitempty"`
	Status   PromotionStatus `json:"status"`
	Error    string          `json:"error,omitempty"`
}

// PromotionResult has exactly one entry per requested item.
type PromotionResult struct {
	Successful int                   `json:"successful"`
	Failed     int                   `json:"failed"`
	Total      int                   `json:"total"`
	Results    []PromotionItemResult `json:"results"`
}

// BuildSyncOperations collects the MissingInProduction records of a comparison snapshot
// into one operation per table, in snapshot order.
func BuildSyncOperations(snapshot []TableComparisonResult, registry *Registry) []SyncOperation {
	ops := []SyncOperation{}
	for _, r := range snapshot {
		missing := r.OfKind(MissingInProduction)
		if len(missing) == 0 {
			continue
		}
		table, _ := registry.Lookup(r.Table)
		op := SyncOperation{Table: r.Table, Action: ActionInsertFromDev}
		for _, d := range missing {
			op.Records = append(op.Records, OperationRecord{
				ID:      ItemID(r.Table, d.RecordID),
				Summary: summarizeRow(table, d.Row),
			})
		}
		ops = append(ops, op)
	}
	return ops
}

func summarizeRow(table TrackedTable, row dbconn.Row) string {
	fields := table.KeyFields
	if len(fields) == 0 {
		for k := range row {
			fields = append(fields, k)
		}
		sort.Strings(fields)
	}
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		v := Normalize(row[f])
		if v == nil || v == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s=%v", f, v))
	}
	return strings.Join(parts, ", ")
}

// Promoter upserts selected development-only records into production.
// It never truncates or deletes anything in production.
type Promoter struct {
	production dbconn.Database
	registry   *Registry
	logger     *zap.Logger
}

// NewPromoter creates a Promoter writing to production.
func NewPromoter(production dbconn.Database, registry *Registry, logger *zap.Logger) *Promoter {
	return &Promoter{production: production, registry: registry, logger: logger.Named("promoter")}
}

// Promote upserts every item of the form "<table>-<recordId>" found in the snapshot's
// MissingInProduction set. Every item yields exactly one result.
func (p *Promoter) Promote(ctx context.Context, snapshot []TableComparisonResult, itemIDs []string) PromotionResult {
	out := PromotionResult{Total: len(itemIDs), Results: make([]PromotionItemResult, 0, len(itemIDs))}
	columnsByTable := make(map[string][]Column)

	for _, itemID := range itemIDs {
		res := p.promoteItem(ctx, snapshot, itemID, columnsByTable)
		if res.Status == PromotionSucceeded {
			out.Successful++
		} else {
			out.Failed++
		}
		metrics.PromotionsTotal.WithLabelValues(metricTable(res.Table), string(res.Status)).Inc()
		out.Results = append(out.Results, res)
	}

	p.logger.Info("Promotion finished",
		zap.Int("successful", out.Successful),
		zap.Int("failed", out.Failed),
		zap.Int("total", out.Total))
	return out
}

func (p *Promoter) promoteItem(ctx context.Context, snapshot []TableComparisonResult, itemID string, columnsByTable map[string][]Column) PromotionItemResult {
	res := PromotionItemResult{ItemID: itemID, Status: PromotionFailed}

	table, recordID, ok := p.registry.SplitItemID(itemID)
	if !ok {
		res.Error = ErrRecordNotFound.Error()
		return res
	}
	res.Table, res.RecordID = table.Name, recordID

	row, ok := findMissingInProduction(snapshot, table.Name, recordID)
	if !ok {
		res.Error = ErrRecordNotFound.Error()
		return res
	}

	columns, ok := columnsByTable[table.Name]
	if !ok {
		var err error
		columns, err = tableColumns(ctx, p.production, table.Name)
		if err != nil {
			res.Error = err.Error()
			return res
		}
		columnsByTable[table.Name] = columns
	}

	var (
		names  []string
		values []interface{}
	)
	hasKey := false
	for _, c := range columns {
		if c.Computed {
			continue
		}
		v, present := row[c.Name]
		if !present {
			continue
		}
		names = append(names, c.Name)
		values = append(values, v)
		hasKey = hasKey || c.Name == table.PrimaryKey
	}
	if !hasKey {
		res.Error = fmt.Sprintf("primary key %s is not a production column of the record", table.PrimaryKey)
		return res
	}

	pk, _ := columnByName(columns, table.PrimaryKey)
	query, args := upsertQuery(table.Name, table.PrimaryKey, names, values, pk.Identity)
	if _, err := p.production.Exec(ctx, query, args...); err != nil {
		p.logger.Warn("Failed to promote record", zap.String("item_id", itemID), zap.Error(err))
		res.Error = err.Error()
		return res
	}

	if pk.Generated {
		query, args := advanceSequenceQuery(table.Name, table.PrimaryKey)
		if _, err := p.production.Query(ctx, query, args...); err != nil {
			p.logger.Warn("Failed to advance production key sequence",
				zap.String("table", table.Name), zap.Error(err))
		}
	}

	p.logger.Info("Promoted record", zap.String("item_id", itemID))
	res.Status = PromotionSucceeded
	return res
}

func findMissingInProduction(snapshot []TableComparisonResult, table, recordID string) (dbconn.Row, bool) {
	for _, r := range snapshot {
		if r.Table != table {
			continue
		}
		for _, d := range r.Differences {
			if d.Kind == MissingInProduction && d.RecordID == recordID && d.Row != nil {
				return d.Row, true
			}
		}
	}
	return nil, false
}

func metricTable(table string) string {
	if table == "" {
		return "unknown"
	}
	return table
}
