package crmdb

import (
	"context"

	"github.com/rxpartners/crm-backend/pkg/crm"
	mghelper "github.com/rxpartners/crm-backend/pkg/pgutil/migrations"

	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

const customerForeignKey = `("customer_id") REFERENCES "customers" ("id") ON DELETE CASCADE`

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		for _, model := range []any{&crm.CustomerNoteDao{}, &crm.CustomerFileDao{}} {
			logger().Info("Creating table", zap.String("model", db.NewCreateTable().Model(model).GetTableName()))
			_, err := db.NewCreateTable().
				Model(model).
				IfNotExists().
				ForeignKey(customerForeignKey).
				Exec(ctx)
			if err != nil {
				return err
			}
			if err := mghelper.CreateModelIndexes(ctx, db, model, "customer_id"); err != nil {
				return err
			}
		}
		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		return mghelper.DropTables(ctx, db, logger(), &crm.CustomerFileDao{}, &crm.CustomerNoteDao{})
	})
}
