package main

import (
	"context"
	"flag"
	"log"

	"github.com/uptrace/bun/migrate"
	"go.uber.org/zap"

	"github.com/rxpartners/crm-backend/pkg/app/synctool"
	"github.com/rxpartners/crm-backend/pkg/config"
	"github.com/rxpartners/crm-backend/pkg/environment"
	"github.com/rxpartners/crm-backend/pkg/migrations/crmdb"
	"github.com/rxpartners/crm-backend/pkg/pgutil"
	mghelper "github.com/rxpartners/crm-backend/pkg/pgutil/migrations"
)

func main() {
	cfgPath := flag.String("config", "", "Path to configuration file")
	flag.Usage = mghelper.Usage
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("error reading configuration: %s", err.Error())
	}

	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("error creating logger: %s", err.Error())
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	ctx := context.Background()

	res, err := environment.NewResolver(logger).ResolveServer(synctool.Settings(cfg))
	if err != nil {
		logger.Fatal("Environment resolution failed", zap.Error(err))
	}
	if res.Placeholder {
		logger.Fatal("No development database configured; nothing to migrate")
	}
	desc := res.Descriptor

	if desc.Scoped() {
		// The schema must exist before search_path can point at it.
		bootstrap, err := pgutil.ConnectDB(ctx, desc, pgutil.WithLogger(logger))
		if err != nil {
			logger.Fatal("Failed to connect to database", zap.Error(err))
		}
		err = mghelper.EnsureSchema(ctx, bootstrap, desc.Schema)
		_ = bootstrap.Close()
		if err != nil {
			logger.Fatal("Failed to create schema", zap.String("schema", desc.Schema), zap.Error(err))
		}
	}

	opts := []pgutil.ConnectOption{pgutil.WithLogger(logger)}
	if desc.Scoped() {
		opts = append(opts, pgutil.WithSearchPath(desc.Schema))
	}
	db, err := pgutil.ConnectDB(ctx, desc, opts...)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	logger.Info("Running CRM migrations",
		zap.Stringer("environment", res.Environment),
		zap.String("url", desc.Masked()),
		zap.String("schema", desc.Schema),
	)

	migrator := migrate.NewMigrator(db, crmdb.Migrations)
	if err := mghelper.RunMigrations(ctx, migrator, logger, flag.Args()...); err != nil {
		mghelper.Exitf(err.Error())
	}
}
