// Package dbconn provides the query capability every sync component receives.
//
// A Database either delegates straight to a bun pool or, when its descriptor names a schema,
// runs each logical query on a dedicated connection whose search_path was set just before.
package dbconn

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"github.com/rxpartners/crm-backend/pkg/environment"
	"github.com/rxpartners/crm-backend/pkg/pgutil"
)

// ErrSchemaNotFound is returned when the schema a query is scoped to does not exist.
var ErrSchemaNotFound = errors.New("schema not found")

// Row is one result row keyed by column name.
type Row map[string]interface{}

// Reader runs read queries. Components that must never write to a database get only this.
type Reader interface {
	Query(ctx context.Context, query string, args ...interface{}) ([]Row, error)
}

// Database runs queries and statements. Placeholders follow bun's formatter:
// `?` for values, bun.Ident for identifiers.
type Database interface {
	Reader
	Exec(ctx context.Context, query string, args ...interface{}) (int64, error)
	// Schema is the schema queries are scoped to, empty when unscoped.
	Schema() string
	Close() error
}

// Open connects to the descriptor's database and wraps the pool.
func Open(ctx context.Context, desc environment.Descriptor, logger *zap.Logger, opts ...pgutil.ConnectOption) (Database, error) {
	db, err := pgutil.ConnectDB(ctx, desc, append(opts, pgutil.WithLogger(logger))...)
	if err != nil {
		return nil, err
	}
	return New(db, desc.Schema), nil
}

// New wraps a bun pool. An empty schema means no scoping.
func New(db *bun.DB, schema string) Database {
	if schema == "" {
		return &pool{db: db}
	}
	return &scoped{db: db, schema: schema}
}

// CheckSchema fails with ErrSchemaNotFound unless schema exists on db.
// An empty schema only checks that the pool answers.
func CheckSchema(ctx context.Context, db *bun.DB, schema string) error {
	_, err := New(db, schema).Query(ctx, "SELECT 1 AS one")
	return err
}

type pool struct {
	db *bun.DB
}

func (p *pool) Query(ctx context.Context, query string, args ...interface{}) ([]Row, error) {
	return queryRows(ctx, p.db, query, args...)
}

func (p *pool) Exec(ctx context.Context, query string, args ...interface{}) (int64, error) {
	return execAffected(ctx, p.db, query, args...)
}

func (p *pool) Schema() string { return "" }

func (p *pool) Close() error { return p.db.Close() }

// scoped pins every logical query to one connection for its whole acquire, set path,
// execute, release sequence.
type scoped struct {
	db     *bun.DB
	schema string
}

func (s *scoped) Query(ctx context.Context, query string, args ...interface{}) ([]Row, error) {
	var rows []Row
	err := s.withConn(ctx, func(conn bun.Conn) error {
		var err error
		rows, err = queryRows(ctx, conn, query, args...)
		return err
	})
	return rows, err
}

func (s *scoped) Exec(ctx context.Context, query string, args ...interface{}) (int64, error) {
	var affected int64
	err := s.withConn(ctx, func(conn bun.Conn) error {
		var err error
		affected, err = execAffected(ctx, conn, query, args...)
		return err
	})
	return affected, err
}

func (s *scoped) Schema() string { return s.schema }

func (s *scoped) Close() error { return s.db.Close() }

func (s *scoped) withConn(ctx context.Context, fn func(conn bun.Conn) error) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer func() {
		// Hand the connection back with the server default path.
		_, _ = conn.ExecContext(context.WithoutCancel(ctx), "RESET search_path")
		_ = conn.Close()
	}()

	// set_config on a pg_namespace row yields nothing for a missing schema, where a plain
	// SET search_path would silently succeed.
	var applied []string
	err = conn.NewRaw(
		"SELECT set_config('search_path', quote_ident(?), false) FROM pg_namespace WHERE nspname = ?",
		s.schema, s.schema,
	).Scan(ctx, &applied)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	if len(applied) == 0 {
		return fmt.Errorf("%w: %s", ErrSchemaNotFound, s.schema)
	}

	return fn(conn)
}

// querier is the part of bun.DB and bun.Conn the adapters need.
type querier interface {
	NewRaw(query string, args ...interface{}) *bun.RawQuery
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func queryRows(ctx context.Context, db querier, query string, args ...interface{}) ([]Row, error) {
	var maps []map[string]interface{}
	if err := db.NewRaw(query, args...).Scan(ctx, &maps); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	rows := make([]Row, len(maps))
	for i, m := range maps {
		rows[i] = m
	}
	return rows, nil
}

func execAffected(ctx context.Context, db querier, query string, args ...interface{}) (int64, error) {
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
