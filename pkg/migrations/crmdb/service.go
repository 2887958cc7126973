// Package crmdb holds all the migrations for the CRM database
package crmdb

import (
	"github.com/uptrace/bun/migrate"
	"go.uber.org/zap"
)

// Migrations is the collection of all migrations for the CRM database.
// The same set runs in production and in the development schema so both sides share table structure.
var Migrations = migrate.NewMigrations()

func logger() *zap.Logger {
	return zap.L().Named("crmdb")
}
