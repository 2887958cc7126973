package dbconn

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"github.com/rxpartners/crm-backend/pkg/environment"
	"github.com/rxpartners/crm-backend/pkg/pgutil"
)

func setupSchemas(t *testing.T) (*bun.DB, func()) {
	t.Helper()

	db, _, cleanup := pgutil.SetupTestDB(t)
	ctx := context.Background()
	for _, stmt := range []string{
		"CREATE TABLE public.customers (id serial PRIMARY KEY, company_name text)",
		"INSERT INTO public.customers (company_name) VALUES ('Prod Pharmacy')",
		"CREATE SCHEMA dev_crm",
		"CREATE TABLE dev_crm.customers (id serial PRIMARY KEY, company_name text)",
		"INSERT INTO dev_crm.customers (company_name) VALUES ('Dev Pharmacy'), ('Test Pharmacy')",
	} {
		_, err := db.ExecContext(ctx, stmt)
		require.NoError(t, err, stmt)
	}
	return db, cleanup
}

func TestPool_QueriesDefaultSchema(t *testing.T) {
	db, cleanup := setupSchemas(t)
	defer cleanup()
	ctx := context.Background()

	pool := New(db, "")
	assert.Empty(t, pool.Schema())

	rows, err := pool.Query(ctx, "SELECT * FROM ? ORDER BY ?", bun.Ident("customers"), bun.Ident("id"))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Prod Pharmacy", rows[0]["company_name"])
}

func TestScoped_QueriesRunInsideSchema(t *testing.T) {
	db, cleanup := setupSchemas(t)
	defer cleanup()
	ctx := context.Background()

	scopedDB := New(db, "dev_crm")
	assert.Equal(t, "dev_crm", scopedDB.Schema())

	rows, err := scopedDB.Query(ctx, "SELECT * FROM ? ORDER BY ?", bun.Ident("customers"), bun.Ident("id"))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Dev Pharmacy", rows[0]["company_name"])

	affected, err := scopedDB.Exec(ctx, "UPDATE ? SET company_name = ? WHERE id = ?", bun.Ident("customers"), "Renamed", 2)
	require.NoError(t, err)
	assert.EqualValues(t, 1, affected)

	// production untouched
	var name string
	require.NoError(t, db.NewRaw("SELECT company_name FROM public.customers WHERE id = 1").Scan(ctx, &name))
	assert.Equal(t, "Prod Pharmacy", name)
}

func TestScoped_ConnectionReturnsWithDefaultPath(t *testing.T) {
	db, cleanup := setupSchemas(t)
	defer cleanup()
	ctx := context.Background()

	// one pooled connection, so the follow-up query reuses it
	db.SetMaxOpenConns(1)

	_, err := New(db, "dev_crm").Query(ctx, "SELECT 1 AS one")
	require.NoError(t, err)

	var path string
	require.NoError(t, db.NewRaw("SHOW search_path").Scan(ctx, &path))
	assert.NotContains(t, path, "dev_crm")
	assert.Equal(t, 0, db.Stats().InUse)
}

func TestScoped_MissingSchemaReleasesConnection(t *testing.T) {
	db, cleanup := setupSchemas(t)
	defer cleanup()
	ctx := context.Background()
	db.SetMaxOpenConns(1)

	missing := New(db, "does_not_exist")
	for i := 0; i < 3; i++ {
		_, err := missing.Query(ctx, "SELECT 1 AS one")
		require.ErrorIs(t, err, ErrSchemaNotFound)
	}

	// with a single connection this would block forever had it leaked
	queryCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	rows, err := New(db, "dev_crm").Query(queryCtx, "SELECT 1 AS one")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.Equal(t, 0, db.Stats().InUse)
}

func TestCheckSchema(t *testing.T) {
	db, cleanup := setupSchemas(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, CheckSchema(ctx, db, ""))
	require.NoError(t, CheckSchema(ctx, db, "dev_crm"))
	require.ErrorIs(t, CheckSchema(ctx, db, "dev_crn"), ErrSchemaNotFound)
	assert.Equal(t, 0, db.Stats().InUse)
}

func TestScoped_QueryErrorReleasesConnection(t *testing.T) {
	db, cleanup := setupSchemas(t)
	defer cleanup()
	ctx := context.Background()
	db.SetMaxOpenConns(1)

	_, err := New(db, "dev_crm").Query(ctx, "SELECT * FROM ?", bun.Ident("no_such_table"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrSchemaNotFound)
	assert.Equal(t, 0, db.Stats().InUse)
}

func TestOpen_UnreachableHost(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	desc, err := environment.ParseDescriptor("postgres://u:p@" + addr + "/crm?sslmode=disable&schema=dev_crm")
	require.NoError(t, err)
	_, err = Open(context.Background(), desc, zap.NewNop())
	require.Error(t, err)
}

func TestPlaceholder(t *testing.T) {
	p := NewPlaceholder(zap.NewNop())
	ctx := context.Background()

	rows, err := p.Query(ctx, "SELECT * FROM customers")
	require.NoError(t, err)
	assert.Empty(t, rows)

	n, err := p.Exec(ctx, "DELETE FROM customers")
	require.NoError(t, err)
	assert.Zero(t, n)

	assert.EqualValues(t, 2, p.Statements())
	assert.NoError(t, p.Close())
}
