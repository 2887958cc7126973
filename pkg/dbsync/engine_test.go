package dbsync

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/rxpartners/crm-backend/pkg/dbconn"
	"github.com/rxpartners/crm-backend/pkg/migrations/crmdb"
	"github.com/rxpartners/crm-backend/pkg/pgutil"
	mghelper "github.com/rxpartners/crm-backend/pkg/pgutil/migrations"
)

func TestEngine_SnapshotLifecycle(t *testing.T) {
	prod, dev := customerDBs()
	prod.seed("customers", customer(1, "Alpha Pharmacy", "Signed"))
	dev.seed("customers", customer(1, "Alpha Pharmacy", "Signed"), customer(2, "Test Pharmacy", "Lead"))

	engine := NewEngine(prod, dev, customersOnly(), EngineConfig{Loop: LoopConfig{MaxRetries: 1}}, zap.NewNop())
	ctx := context.Background()

	ops := engine.Operations(ctx)
	require.Len(t, ops, 1)
	assert.Equal(t, "customers-2", ops[0].Records[0].ID)

	first := engine.LatestSnapshot(ctx)
	assert.Same(t, first, engine.LatestSnapshot(ctx), "the snapshot is reused until invalidated")

	result := engine.Promote(ctx, []string{"customers-2"})
	require.Equal(t, 1, result.Successful)

	assert.NotSame(t, first, engine.LatestSnapshot(ctx))
	assert.Empty(t, engine.Operations(ctx))
}

func TestEngine_ValidateNeverPromotes(t *testing.T) {
	prod, dev := customerDBs()
	prod.seed("customers", customer(1, "Alpha Pharmacy", "Signed"))
	dev.seed("customers", customer(1, "Alpha Pharmacy", "Lead"), customer(2, "Test Pharmacy", "Lead"))

	engine := NewEngine(prod, dev, customersOnly(), EngineConfig{Loop: LoopConfig{MaxRetries: 2}}, zap.NewNop())
	engine.loop.wait = func(context.Context, time.Duration) error { return nil }

	report, err := engine.Validate(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Success)
	assert.Len(t, prod.rows("customers"), 1, "development-only rows are dropped, not pushed")
	assert.Len(t, dev.rows("customers"), 1)
}

// TestEngine_PostgresSchemas runs the whole cycle against one Postgres instance holding
// production in public and development in dev_crm.
func TestEngine_PostgresSchemas(t *testing.T) {
	db, desc, cleanup := pgutil.SetupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	migrator := migrate.NewMigrator(db, crmdb.Migrations)
	require.NoError(t, migrator.Init(ctx))
	_, err := migrator.Migrate(ctx)
	require.NoError(t, err)

	require.NoError(t, mghelper.EnsureSchema(ctx, db, "dev_crm"))
	devDB, err := pgutil.ConnectDB(ctx, desc, pgutil.WithSearchPath("dev_crm"))
	require.NoError(t, err)
	defer devDB.Close()
	devMigrator := migrate.NewMigrator(devDB, crmdb.Migrations)
	require.NoError(t, devMigrator.Init(ctx))
	_, err = devMigrator.Migrate(ctx)
	require.NoError(t, err)

	for _, stmt := range []string{
		"INSERT INTO public.customers (company_name, contact_name, email, status) VALUES " +
			"('Alpha Pharmacy', 'Ann', 'ann@alpha.test', 'Signed'), ('Beta Pharmacy', 'Ben', 'ben@beta.test', 'Lead')",
		"INSERT INTO dev_crm.customers (company_name, contact_name, email, status) VALUES " +
			"('Alpha Pharmacy', 'Ann', 'ann@alpha.test', 'Lead')",
	} {
		_, err := db.ExecContext(ctx, stmt)
		require.NoError(t, err, stmt)
	}

	production := dbconn.New(db, "")
	development := dbconn.New(db, "dev_crm")
	engine := NewEngine(production, development, customersOnly(), EngineConfig{Loop: LoopConfig{MaxRetries: 3}}, zaptest.NewLogger(t))

	first := engine.Compare(ctx)
	require.Len(t, first.Results, 1)
	assert.Equal(t, 1, first.Results[0].Count(FieldMismatch))
	assert.Equal(t, 1, first.Results[0].Count(MissingInDevelopment))

	report, err := engine.Validate(ctx)
	require.NoError(t, err)
	assert.True(t, report.Success)
	assert.Equal(t, 2, report.Attempts)
	pgutil.AssertRowCount(t, db, "public", "customers", 2)
	pgutil.AssertRowCount(t, db, "dev_crm", "customers", 2)

	_, err = db.ExecContext(ctx, "INSERT INTO ?.customers (company_name, contact_name, email) VALUES ('QA Pharmacy', 'Quinn', 'qa@test.test')",
		bun.Ident("dev_crm"))
	require.NoError(t, err)

	engine.Compare(ctx)
	ops := engine.Operations(ctx)
	require.Len(t, ops, 1)
	require.Len(t, ops[0].Records, 1)
	assert.Equal(t, "customers-3", ops[0].Records[0].ID)

	result := engine.Promote(ctx, []string{"customers-3"})
	require.Equal(t, 1, result.Successful, "%+v", result.Results)
	pgutil.AssertRowCount(t, db, "public", "customers", 3)

	var status string
	require.NoError(t, db.NewRaw("SELECT status FROM public.customers WHERE id = 3").Scan(ctx, &status))
	assert.Equal(t, "Lead", status)

	// the production sequence moved past the promoted key
	_, err = db.ExecContext(ctx, "INSERT INTO public.customers (company_name, contact_name, email) VALUES ('Delta Pharmacy', 'Dee', 'dee@delta.test')")
	require.NoError(t, err)
	pgutil.AssertRowCount(t, db, "public", "customers", 4)

	var promoted []string
	require.NoError(t, db.NewRaw("SELECT company_name FROM public.customers ORDER BY id").Scan(ctx, &promoted))
	assert.Equal(t, []string{"Alpha Pharmacy", "Beta Pharmacy", "QA Pharmacy", "Delta Pharmacy"}, promoted)
}
