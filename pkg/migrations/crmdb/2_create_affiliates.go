package crmdb

import (
	"context"

	"github.com/rxpartners/crm-backend/pkg/crm"
	mghelper "github.com/rxpartners/crm-backend/pkg/pgutil/migrations"

	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		if err := mghelper.CreateSchema(ctx, db, logger(), &crm.AffiliateDao{}); err != nil {
			return err
		}
		logger().Info("Creating table", zap.String("model", "affiliate_aes"))
		_, err := db.NewCreateTable().
			Model(&crm.AffiliateAEDao{}).
			IfNotExists().
			ForeignKey(`("affiliate_id") REFERENCES "affiliates" ("id") ON DELETE CASCADE`).
			Exec(ctx)
		if err != nil {
			return err
		}
		return mghelper.CreateModelIndexes(ctx, db, &crm.AffiliateAEDao{}, "affiliate_id")
	}, func(ctx context.Context, db *bun.DB) error {
		return mghelper.DropTables(ctx, db, logger(), &crm.AffiliateAEDao{}, &crm.AffiliateDao{})
	})
}
