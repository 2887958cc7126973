package dbsync

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rxpartners/crm-backend/pkg/dbconn"
)

// Snapshot is a comparison pass kept for review and promotion.
type Snapshot struct {
	TakenAt time.Time               `json:"takenAt"`
	Results []TableComparisonResult `json:"results"`
}

// Engine wires the comparator, synchronizer, validation loop and promoter over one pair of
// environments and remembers the most recent comparison.
type Engine struct {
	registry *Registry
	compare  *Comparator
	loop     *Loop
	promote  *Promoter
	logger   *zap.Logger

	mu   sync.Mutex
	last *Snapshot
}

// EngineConfig configures an Engine.
type EngineConfig struct {
	Loop      LoopConfig
	KeyPolicy KeyPolicy
	Writer    ReportWriter
}

// NewEngine builds an Engine. Production is written only by promotion.
func NewEngine(production, development dbconn.Database, registry *Registry, cfg EngineConfig, logger *zap.Logger) *Engine {
	comparator := NewComparator(production, development, registry, logger)
	synchronizer := NewSynchronizer(production, development, registry, cfg.KeyPolicy, logger)
	return &Engine{
		registry: registry,
		compare:  comparator,
		loop:     NewLoop(comparator, synchronizer, cfg.Writer, cfg.Loop, logger),
		promote:  NewPromoter(production, registry, logger),
		logger:   logger.Named("engine"),
	}
}

// Registry returns the tracked table registry.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Compare runs one comparison pass and keeps it as the latest snapshot.
func (e *Engine) Compare(ctx context.Context) *Snapshot {
	snap := &Snapshot{TakenAt: time.Now().UTC(), Results: e.compare.CompareAll(ctx)}
	e.mu.Lock()
	e.last = snap
	e.mu.Unlock()
	return snap
}

// LatestSnapshot returns the most recent comparison, running one if none exists yet.
func (e *Engine) LatestSnapshot(ctx context.Context) *Snapshot {
	e.mu.Lock()
	last := e.last
	e.mu.Unlock()
	if last != nil {
		return last
	}
	return e.Compare(ctx)
}

// Validate runs the validation loop and drops the latest snapshot, since development
// was reloaded.
func (e *Engine) Validate(ctx context.Context) (*SyncReport, error) {
	report, err := e.loop.Run(ctx)
	e.mu.Lock()
	e.last = nil
	e.mu.Unlock()
	return report, err
}

// Operations lists promotable development-only records from the latest snapshot.
func (e *Engine) Operations(ctx context.Context) []SyncOperation {
	return BuildSyncOperations(e.LatestSnapshot(ctx).Results, e.registry)
}

// Promote upserts the given items from the latest snapshot into production, then drops the
// snapshot because it no longer reflects production.
func (e *Engine) Promote(ctx context.Context, itemIDs []string) PromotionResult {
	result := e.promote.Promote(ctx, e.LatestSnapshot(ctx).Results, itemIDs)
	if result.Successful > 0 {
		e.mu.Lock()
		e.last = nil
		e.mu.Unlock()
	}
	return result
}
