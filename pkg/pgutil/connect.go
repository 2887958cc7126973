package pgutil

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"go.uber.org/zap"

	"github.com/rxpartners/crm-backend/pkg/environment"
)

type connectOptions struct {
	searchPath   string
	maxOpenConns int
	pingTimeout  time.Duration
	logger       *zap.Logger
}

// ConnectOption configures ConnectDB
type ConnectOption func(*connectOptions)

// WithSearchPath pins the search_path of every pooled connection. The API server and the
// migration runner use it; sync components scope each query through dbconn instead.
func WithSearchPath(schema string) ConnectOption {
	return func(o *connectOptions) { o.searchPath = schema }
}

// WithMaxOpenConns caps the pool size
func WithMaxOpenConns(n int) ConnectOption {
	return func(o *connectOptions) { o.maxOpenConns = n }
}

// WithLogger sets the logger used for connection diagnostics
func WithLogger(logger *zap.Logger) ConnectOption {
	return func(o *connectOptions) { o.logger = logger }
}

// ConnectDB opens a bun pool for the descriptor's URL and verifies it with a ping.
// The descriptor's schema qualifier is not applied here.
func ConnectDB(ctx context.Context, desc environment.Descriptor, opts ...ConnectOption) (*bun.DB, error) {
	o := connectOptions{
		maxOpenConns: 10,
		pingTimeout:  10 * time.Second,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	driverOpts := []pgdriver.Option{pgdriver.WithDSN(desc.URL)}
	if o.searchPath != "" {
		if !environment.ValidIdentifier(o.searchPath) {
			return nil, fmt.Errorf("invalid search path %q", o.searchPath)
		}
		driverOpts = append(driverOpts, pgdriver.WithConnParams(map[string]interface{}{
			"search_path": o.searchPath,
		}))
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(driverOpts...))
	sqldb.SetMaxOpenConns(o.maxOpenConns)

	db := bun.NewDB(sqldb, pgdialect.New())

	pingCtx, cancel := context.WithTimeout(ctx, o.pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close() // Close connection to prevent resource leak
		return nil, fmt.Errorf("failed to connect to database %s: %w", desc.Masked(), err)
	}

	o.logger.Info("Connected to database", zap.String("url", desc.Masked()))
	return db, nil
}
