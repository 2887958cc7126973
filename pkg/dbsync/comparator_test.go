package dbsync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rxpartners/crm-backend/pkg/dbconn"
)

func customerDBs() (prod, dev *fakeDB) {
	prod, dev = newFakeDB("production"), newFakeDB("development")
	prod.createTable("customers", customerColumns()...)
	dev.createTable("customers", customerColumns()...)
	return prod, dev
}

func TestCompareTable_FieldMismatchAndMissingInDevelopment(t *testing.T) {
	prod, dev := customerDBs()
	prod.seed("customers", customer(1, "Alpha Pharmacy", "Signed"), customer(2, "Beta Pharmacy", "Lead"))
	dev.seed("customers", customer(1, "Alpha Pharmacy", "Lead"))

	c := NewComparator(prod, dev, customersOnly(), zap.NewNop())
	result := c.CompareTable(context.Background(), "customers", "id")

	assert.True(t, result.HasDifferences)
	assert.Equal(t, 2, result.ProductionCount)
	assert.Equal(t, 1, result.DevelopmentCount)

	mismatches := result.OfKind(FieldMismatch)
	require.Len(t, mismatches, 1)
	assert.Equal(t, "customers", mismatches[0].Table)
	assert.Equal(t, "1", mismatches[0].RecordID)
	assert.Equal(t, "status", mismatches[0].Field)
	assert.Equal(t, "Signed", mismatches[0].ProductionValue)
	assert.Equal(t, "Lead", mismatches[0].DevelopmentValue)

	missing := result.OfKind(MissingInDevelopment)
	require.Len(t, missing, 1)
	assert.Equal(t, "2", missing[0].RecordID)
	assert.Equal(t, "customers", missing[0].Table)
	assert.Equal(t, "Beta Pharmacy", missing[0].Row["company_name"])

	counts := result.OfKind(CountMismatch)
	require.Len(t, counts, 1)
	assert.Equal(t, 2, counts[0].ProductionValue)
	assert.Equal(t, 1, counts[0].DevelopmentValue)

	assert.Zero(t, result.Count(MissingInProduction))
}

func TestCompareTable_MissingInProduction(t *testing.T) {
	prod, dev := customerDBs()
	prod.seed("customers", customer(1, "Alpha Pharmacy", "Signed"))
	dev.seed("customers", customer(1, "Alpha Pharmacy", "Signed"), customer(7, "Test Pharmacy", "Lead"))

	c := NewComparator(prod, dev, customersOnly(), zap.NewNop())
	result := c.CompareTable(context.Background(), "customers", "id")

	missing := result.OfKind(MissingInProduction)
	require.Len(t, missing, 1)
	assert.Equal(t, "7", missing[0].RecordID)
	assert.Equal(t, "Test Pharmacy", missing[0].Row["company_name"])
	assert.Zero(t, result.Count(MissingInDevelopment))
	assert.Zero(t, result.Count(FieldMismatch))
}

func TestCompareTable_IdenticalAfterNormalization(t *testing.T) {
	prod, dev := customerDBs()
	created := time.Date(2024, 5, 1, 8, 30, 0, 0, time.UTC)

	prodRow := customer(1, "Alpha Pharmacy", "Signed")
	prodRow["next_step"] = created
	devRow := customer(1, "Alpha Pharmacy  ", "Signed")
	devRow["id"] = int32(1)
	devRow["next_step"] = created.In(time.FixedZone("PST", -8*3600))
	// not a key field, so it may differ freely
	devRow["contact_name"] = "Someone Else"

	prod.seed("customers", prodRow)
	dev.seed("customers", devRow)

	c := NewComparator(prod, dev, customersOnly(), zap.NewNop())
	result := c.CompareTable(context.Background(), "customers", "id")

	assert.False(t, result.HasDifferences)
	assert.Empty(t, result.Differences)
}

func TestCompareTable_Symmetry(t *testing.T) {
	prod, dev := customerDBs()
	prod.seed("customers", customer(1, "Alpha Pharmacy", "Signed"), customer(2, "Beta Pharmacy", "Lead"))
	dev.seed("customers", customer(1, "Alpha Pharmacy", "Lead"), customer(3, "Gamma Pharmacy", "Lost"))

	forward := NewComparator(prod, dev, customersOnly(), zap.NewNop()).CompareTable(context.Background(), "customers", "id")
	backward := NewComparator(dev, prod, customersOnly(), zap.NewNop()).CompareTable(context.Background(), "customers", "id")

	assert.Equal(t, forward.Count(MissingInDevelopment), backward.Count(MissingInProduction))
	assert.Equal(t, forward.Count(MissingInProduction), backward.Count(MissingInDevelopment))
	assert.Equal(t, forward.Count(FieldMismatch), backward.Count(FieldMismatch))

	f := forward.OfKind(FieldMismatch)[0]
	b := backward.OfKind(FieldMismatch)[0]
	assert.Equal(t, f.ProductionValue, b.DevelopmentValue)
	assert.Equal(t, f.DevelopmentValue, b.ProductionValue)
}

func TestCompareTable_NonCriticalOnlyCounts(t *testing.T) {
	prod, dev := customerDBs()
	prod.seed("customers", customer(1, "Alpha Pharmacy", "Signed"))
	dev.seed("customers", customer(1, "Alpha Pharmacy", "Lead"))

	registry, err := NewRegistry(DefaultTables()[:1], nil)
	require.NoError(t, err)

	result := NewComparator(prod, dev, registry, zap.NewNop()).CompareTable(context.Background(), "customers", "id")
	assert.False(t, result.HasDifferences)

	dev.seed("customers", customer(2, "Beta Pharmacy", "Lead"))
	result = NewComparator(prod, dev, registry, zap.NewNop()).CompareTable(context.Background(), "customers", "id")
	require.Len(t, result.Differences, 1)
	assert.Equal(t, CountMismatch, result.Differences[0].Kind)
}

func TestCompareTable_Errors(t *testing.T) {
	t.Run("untracked table", func(t *testing.T) {
		prod, dev := customerDBs()
		result := NewComparator(prod, dev, customersOnly(), zap.NewNop()).CompareTable(context.Background(), "pg_authid", "oid")

		require.Len(t, result.Differences, 1)
		assert.Equal(t, ComparisonError, result.Differences[0].Kind)
		assert.Contains(t, result.Differences[0].Error, "not tracked")
		assert.Empty(t, prod.recorded(), "an untracked table never reaches the database")
	})

	t.Run("query failure", func(t *testing.T) {
		prod, dev := customerDBs()
		prod.failQuery["SELECT *"] = errors.New("connection reset")

		result := NewComparator(prod, dev, customersOnly(), zap.NewNop()).CompareTable(context.Background(), "customers", "id")
		require.Len(t, result.Differences, 1)
		assert.True(t, result.HasDifferences)
		assert.Contains(t, result.Differences[0].Error, "connection reset")
		assert.Zero(t, result.ProductionCount)
	})
}

func TestCompareAll_TableMissingInDevelopment(t *testing.T) {
	prod, dev := customerDBs()
	prod.createTable("customer_notes", fakeColumn{name: "id", dflt: "nextval('customer_notes_id_seq'::regclass)"},
		fakeColumn{name: "customer_id"}, fakeColumn{name: "content"})
	prod.seed("customer_notes", dbconn.Row{"id": int64(1), "customer_id": int64(1), "content": "Called"})
	prod.seed("customers", customer(1, "Alpha Pharmacy", "Signed"))
	dev.seed("customers", customer(1, "Alpha Pharmacy", "Signed"))

	registry, err := NewRegistry(DefaultTables()[:2], []string{"customers", "customer_notes"})
	require.NoError(t, err)

	results := NewComparator(prod, dev, registry, zap.NewNop()).CompareAll(context.Background())
	require.Len(t, results, 2)

	assert.Equal(t, "customers", results[0].Table)
	assert.False(t, results[0].HasDifferences)

	assert.Equal(t, "customer_notes", results[1].Table)
	assert.True(t, results[1].HasDifferences)
	require.Len(t, results[1].Differences, 1)
	assert.Equal(t, ComparisonError, results[1].Differences[0].Kind)
	assert.Contains(t, results[1].Differences[0].Error, "development")
}
