package dbsync

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rxpartners/crm-backend/internal/metrics"
)

// State is a validation loop state.
type State string

const (
	StateComparing  State = "comparing"
	StateCorrecting State = "correcting"
	StateConverged  State = "converged"
	StateExhausted  State = "exhausted"
)

// LoopConfig bounds the validation loop.
type LoopConfig struct {
	// MaxRetries is the maximum number of comparison passes.
	MaxRetries int
	// RetryDelay is waited after each corrective pass.
	RetryDelay time.Duration
}

// DefaultLoopConfig returns the default retry budget.
func DefaultLoopConfig() LoopConfig {
	return LoopConfig{MaxRetries: 3, RetryDelay: 2 * time.Second}
}

// Loop compares and corrects until development matches production or the budget runs out.
type Loop struct {
	comparator   *Comparator
	synchronizer *Synchronizer
	writer       ReportWriter
	cfg          LoopConfig
	logger       *zap.Logger

	now  func() time.Time
	wait func(ctx context.Context, d time.Duration) error
}

// NewLoop creates a validation loop. writer may be nil, in which case reports are only returned.
func NewLoop(comparator *Comparator, synchronizer *Synchronizer, writer ReportWriter, cfg LoopConfig, logger *zap.Logger) *Loop {
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 1
	}
	return &Loop{
		comparator:   comparator,
		synchronizer: synchronizer,
		writer:       writer,
		cfg:          cfg,
		logger:       logger.Named("validator"),
		now:          time.Now,
		wait:         sleepContext,
	}
}

// Run executes the loop. The report is always returned, also when persisting it fails;
// the error then describes the persistence failure.
func (l *Loop) Run(ctx context.Context) (*SyncReport, error) {
	report := &SyncReport{
		RunID:       uuid.NewString(),
		StartTime:   l.now().UTC(),
		MaxRetries:  l.cfg.MaxRetries,
		Corrections: []CorrectionResult{},
	}
	logger := l.logger.With(zap.String("run_id", report.RunID))
	logger.Info("Starting validation loop", zap.Int("max_retries", l.cfg.MaxRetries))

	var (
		attempt = 1
		state   = StateComparing
		results []TableComparisonResult
	)

loop:
	for {
		switch state {
		case StateComparing:
			results = l.comparator.CompareAll(ctx)
			recordDifferences(results)
			switch {
			case !AnyDifferences(results):
				state = StateConverged
			case attempt >= l.cfg.MaxRetries:
				state = StateExhausted
			default:
				state = StateCorrecting
			}
			logger.Info("Comparison pass finished",
				zap.Int("attempt", attempt),
				zap.Int("tables_with_differences", countDiffering(results)),
				zap.String("next", string(state)))

		case StateCorrecting:
			report.Corrections = append(report.Corrections, l.correct(ctx, results, attempt)...)
			if err := l.wait(ctx, l.cfg.RetryDelay); err != nil {
				logger.Warn("Validation loop interrupted", zap.Error(err))
				report.Outcome = OutcomeInterrupted
				break loop
			}
			attempt++
			state = StateComparing

		case StateConverged:
			report.Outcome, report.Success = OutcomeConverged, true
			break loop

		case StateExhausted:
			report.Outcome = OutcomeExhausted
			break loop
		}
	}

	report.Attempts = attempt
	report.Tables = Summarize(results)
	report.Notes = keyNotes(report.Corrections)
	report.EndTime = l.now().UTC()

	metrics.SyncRunsTotal.WithLabelValues(string(report.Outcome)).Inc()
	metrics.SyncRunDuration.Observe(report.Duration().Seconds())
	metrics.SyncAttempts.Set(float64(report.Attempts))

	logger.Info("Validation loop finished",
		zap.String("outcome", string(report.Outcome)),
		zap.Bool("success", report.Success),
		zap.Int("attempts", report.Attempts),
		zap.Duration("duration", report.Duration()))

	if l.writer == nil {
		return report, nil
	}
	// The report is written even when the run itself was cancelled.
	location, err := l.writer.WriteSyncReport(context.WithoutCancel(ctx), report)
	if err != nil {
		metrics.ErrorsTotal.WithLabelValues("validator", "report").Inc()
		return report, fmt.Errorf("failed to persist sync report: %w", err)
	}
	logger.Info("Sync report written", zap.String("location", location))
	return report, nil
}

// correct reloads every differing table and, in the same pass, every table depending on a
// reloaded one, since the truncate cascades into it. Results arrive in registry order, so
// a dependent is always reached after the tables it depends on.
func (l *Loop) correct(ctx context.Context, results []TableComparisonResult, attempt int) []CorrectionResult {
	registry := l.synchronizer.registry
	emptied := make(map[string]bool)

	var out []CorrectionResult
	for _, r := range results {
		if !r.HasDifferences && !emptied[r.Table] {
			continue
		}
		correction := l.synchronizer.Correct(ctx, r)
		correction.Attempt = attempt
		correction.Cascaded = !r.HasDifferences
		out = append(out, correction)

		if correction.Status == CorrectionSkipped {
			continue
		}
		for _, dep := range registry.Dependents(r.Table) {
			emptied[dep.Name] = true
		}
	}
	return out
}

// keyNotes explains renumbered keys, which keep development from ever matching production
// row by row once production has gaps in its key sequence.
func keyNotes(corrections []CorrectionResult) []string {
	renumbered := make(map[string]int)
	var tables []string
	for _, c := range corrections {
		if c.KeysRenumbered == 0 {
			continue
		}
		if _, ok := renumbered[c.Table]; !ok {
			tables = append(tables, c.Table)
		}
		renumbered[c.Table] = c.KeysRenumbered
	}

	notes := make([]string, 0, len(tables))
	for _, table := range tables {
		notes = append(notes, fmt.Sprintf(
			"%s: %d reloaded row(s) got a development key different from production; "+
				"rows are matched by key and dependent tables point at production keys, "+
				"so set sync.preserve_primary_keys to copy production keys",
			table, renumbered[table]))
	}
	return notes
}

func recordDifferences(results []TableComparisonResult) {
	for _, r := range results {
		for _, kind := range []DifferenceKind{CountMismatch, MissingInProduction, MissingInDevelopment, FieldMismatch, ComparisonError} {
			metrics.TableDifferences.WithLabelValues(r.Table, string(kind)).Set(float64(r.Count(kind)))
		}
	}
}

func countDiffering(results []TableComparisonResult) int {
	n := 0
	for _, r := range results {
		if r.HasDifferences {
			n++
		}
	}
	return n
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
