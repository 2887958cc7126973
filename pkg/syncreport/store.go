package syncreport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/rxpartners/crm-backend/pkg/dbsync"
)

// timestampLayout is used in report file names; it avoids ':' so names are portable.
const timestampLayout = "2006-01-02T15-04-05.000Z"

// Store persists one named report document and returns where it went.
type Store interface {
	Put(ctx context.Context, name string, data []byte) (string, error)
}

// FileStore writes reports into a local directory, creating it on first use.
type FileStore struct {
	Dir string
}

// Put writes data to Dir/name.
func (s FileStore) Put(_ context.Context, name string, data []byte) (string, error) {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}
	path := filepath.Join(s.Dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return path, nil
}

// Writer serializes reports and hands them to every configured store. The first store is
// primary: its failure fails the write. Later stores are best effort.
type Writer struct {
	stores []Store
	logger *zap.Logger
	now    func() time.Time
}

var _ dbsync.ReportWriter = (*Writer)(nil)

// NewWriter creates a Writer over primary and any additional stores.
func NewWriter(logger *zap.Logger, primary Store, extra ...Store) *Writer {
	return &Writer{
		stores: append([]Store{primary}, extra...),
		logger: logger.Named("reports"),
		now:    time.Now,
	}
}

// WriteSyncReport persists a validation loop report as sync-report-<timestamp>.json.
func (w *Writer) WriteSyncReport(ctx context.Context, report *dbsync.SyncReport) (string, error) {
	return w.write(ctx, fileName("sync-report", report.StartTime), report)
}

// WriteComparisonReport persists a comparison report as comparison-report-<timestamp>.json.
func (w *Writer) WriteComparisonReport(ctx context.Context, report *ComparisonReport) (string, error) {
	at := report.GeneratedAt
	if at.IsZero() {
		at = w.now()
	}
	return w.write(ctx, fileName("comparison-report", at), report)
}

func (w *Writer) write(ctx context.Context, name string, v interface{}) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode report: %w", err)
	}

	var location string
	var errs []error
	for i, store := range w.stores {
		loc, err := store.Put(ctx, name, data)
		if err != nil {
			if i == 0 {
				return "", err
			}
			w.logger.Warn("Failed to upload report copy", zap.String("name", name), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		if i == 0 {
			location = loc
		}
		w.logger.Debug("Report stored", zap.String("location", loc))
	}
	if len(errs) > 0 {
		w.logger.Warn("Report stored with missing copies",
			zap.String("location", location), zap.Error(errors.Join(errs...)))
	}
	return location, nil
}

func fileName(prefix string, at time.Time) string {
	return fmt.Sprintf("%s-%s.json", prefix, at.UTC().Format(timestampLayout))
}
