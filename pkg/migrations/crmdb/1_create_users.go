package crmdb

import (
	"context"

	"github.com/rxpartners/crm-backend/pkg/crm"
	mghelper "github.com/rxpartners/crm-backend/pkg/pgutil/migrations"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		if err := mghelper.CreateSchema(ctx, db, logger(), &crm.UserDao{}); err != nil {
			return err
		}
		return mghelper.CreateModelIndexes(ctx, db, &crm.UserDao{}, "email")
	}, func(ctx context.Context, db *bun.DB) error {
		return mghelper.DropTables(ctx, db, logger(), &crm.UserDao{})
	})
}
