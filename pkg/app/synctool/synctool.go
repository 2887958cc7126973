// Package synctool builds the sync engine and its collaborators from configuration.
// The API server and the crmsync CLI share it.
package synctool

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/rxpartners/crm-backend/pkg/config"
	"github.com/rxpartners/crm-backend/pkg/dbconn"
	"github.com/rxpartners/crm-backend/pkg/dbsync"
	"github.com/rxpartners/crm-backend/pkg/environment"
	"github.com/rxpartners/crm-backend/pkg/pgutil"
	"github.com/rxpartners/crm-backend/pkg/runlock"
	"github.com/rxpartners/crm-backend/pkg/syncreport"
)

// Tooling is everything a compare, validate or promote run needs.
type Tooling struct {
	Resolution  *environment.ToolingResolution
	Production  dbconn.Database
	Development dbconn.Database
	Engine      *dbsync.Engine
	Reports     *syncreport.Writer
	Locker      runlock.Locker

	closers []func() error
}

// Settings maps the environment section of cfg onto resolver settings.
func Settings(cfg *config.Config) environment.Settings {
	return environment.Settings{
		Mode:           cfg.Environment.Mode,
		DatabaseURL:    cfg.Environment.DatabaseURL,
		ProductionURL:  cfg.Environment.ProductionURL,
		DevelopmentURL: cfg.Environment.DevelopmentURL,
	}
}

// KeyPolicy maps the sync config onto the reload key policy.
func KeyPolicy(cfg config.SyncConfig) dbsync.KeyPolicy {
	if cfg.PreserveKeys {
		return dbsync.PreserveKeys
	}
	return dbsync.RenumberKeys
}

// Open resolves both environments, connects to them and assembles the engine.
// Resolution failures are returned unchanged so callers can recognise environment.ConfigError.
func Open(ctx context.Context, cfg *config.Config, resolver *environment.Resolver, logger *zap.Logger) (*Tooling, error) {
	res, err := resolver.ResolveTooling(Settings(cfg))
	if err != nil {
		return nil, err
	}

	t := &Tooling{Resolution: res}
	poolSize := pgutil.WithMaxOpenConns(cfg.Environment.MaxOpenConns)
	ok := false
	defer func() {
		if !ok {
			_ = t.Close()
		}
	}()

	t.Production, err = dbconn.Open(ctx, res.Production, logger.Named("production"), poolSize)
	if err != nil {
		return nil, fmt.Errorf("connect production: %w", err)
	}
	t.closers = append(t.closers, t.Production.Close)

	t.Development, err = dbconn.Open(ctx, res.Development, logger.Named("development"), poolSize)
	if err != nil {
		return nil, fmt.Errorf("connect development: %w", err)
	}
	t.closers = append(t.closers, t.Development.Close)

	registry, err := dbsync.DefaultRegistry(cfg.Sync.CriticalTables)
	if err != nil {
		return nil, &environment.ConfigError{Rule: "sync-critical-tables", Msg: err.Error()}
	}

	t.Reports, err = NewReportWriter(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	t.Locker, err = runlock.New(ctx, cfg.Lock, logger)
	if err != nil {
		return nil, err
	}
	t.closers = append(t.closers, t.Locker.Close)

	t.Engine = dbsync.NewEngine(t.Production, t.Development, registry, dbsync.EngineConfig{
		Loop: dbsync.LoopConfig{
			MaxRetries: cfg.Sync.MaxRetries,
			RetryDelay: cfg.Sync.RetryDelay,
		},
		KeyPolicy: KeyPolicy(cfg.Sync),
		Writer:    t.Reports,
	}, logger)

	ok = true
	return t, nil
}

// NewReportWriter writes to sync.report_dir and, when a bucket is configured, also to S3.
func NewReportWriter(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*syncreport.Writer, error) {
	primary := syncreport.FileStore{Dir: cfg.Sync.ReportDir}
	if !cfg.Reports.S3.Enabled() {
		return syncreport.NewWriter(logger, primary), nil
	}
	s3Store, err := syncreport.NewS3Store(ctx, cfg.Reports.S3)
	if err != nil {
		return nil, fmt.Errorf("report bucket: %w", err)
	}
	logger.Info("Uploading reports to S3", zap.String("bucket", cfg.Reports.S3.Bucket))
	return syncreport.NewWriter(logger, primary, s3Store), nil
}

// Close releases connections in reverse order of opening.
func (t *Tooling) Close() error {
	var errs []error
	for i := len(t.closers) - 1; i >= 0; i-- {
		if err := t.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	t.closers = nil
	return errors.Join(errs...)
}
