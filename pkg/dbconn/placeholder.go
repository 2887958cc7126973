package dbconn

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"
)

// Placeholder stands in for a database in development when no development database is
// configured. Reads return nothing and writes touch nothing.
type Placeholder struct {
	logger     *zap.Logger
	statements atomic.Int64
}

var _ Database = (*Placeholder)(nil)

// NewPlaceholder creates the in-memory stand-in.
func NewPlaceholder(logger *zap.Logger) *Placeholder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Placeholder{logger: logger.Named("placeholder-db")}
}

func (p *Placeholder) Query(_ context.Context, query string, _ ...interface{}) ([]Row, error) {
	p.statements.Add(1)
	p.logger.Warn("Placeholder database: query ignored", zap.String("query", query))
	return []Row{}, nil
}

func (p *Placeholder) Exec(_ context.Context, query string, _ ...interface{}) (int64, error) {
	p.statements.Add(1)
	p.logger.Warn("Placeholder database: statement ignored", zap.String("query", query))
	return 0, nil
}

func (p *Placeholder) Schema() string { return "" }

func (p *Placeholder) Close() error { return nil }

// Statements is the number of queries and statements the placeholder has swallowed.
func (p *Placeholder) Statements() int64 {
	return p.statements.Load()
}
