// Package api implements app.Runner for the API server process.
package api

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"github.com/rxpartners/crm-backend/internal/metrics"
	apphttp "github.com/rxpartners/crm-backend/pkg/app/http"
	"github.com/rxpartners/crm-backend/pkg/app/synctool"
	"github.com/rxpartners/crm-backend/pkg/auth"
	"github.com/rxpartners/crm-backend/pkg/config"
	"github.com/rxpartners/crm-backend/pkg/dbconn"
	"github.com/rxpartners/crm-backend/pkg/environment"
	"github.com/rxpartners/crm-backend/pkg/pgutil"
	"github.com/rxpartners/crm-backend/pkg/synchttp"
	"github.com/rxpartners/crm-backend/pkg/user"
	userservice "github.com/rxpartners/crm-backend/pkg/user/service"
	"github.com/rxpartners/crm-backend/pkg/userstore"
)

const readinessTimeout = 5 * time.Second

// Server holds cfg to init the api server.
type Server struct {
	cfg *config.Config
}

// NewServer initializes new api server.
func NewServer(cfg *config.Config) *Server {
	return &Server{cfg: cfg}
}

// Run resolves the environment, opens the database and serves until SIGINT or SIGTERM.
// Environment resolution failures are returned as *environment.ConfigError.
func (s *Server) Run() error {
	if s.cfg == nil {
		return fmt.Errorf("api server config is nil")
	}
	cfg := s.cfg

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("setup logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	resolver := environment.NewResolver(logger)
	res, err := resolver.ResolveServer(synctool.Settings(cfg))
	if err != nil {
		return err
	}

	logger.Info("Starting CRM API server",
		zap.Stringer("environment", res.Environment),
		zap.Bool("placeholder", res.Placeholder),
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
	)

	deps := routerDeps{environment: res.Environment, placeholder: res.Placeholder}

	if res.Placeholder {
		metrics.PlaceholderMode.Set(1)
		deps.db = dbconn.NewPlaceholder(logger)
	} else {
		metrics.PlaceholderMode.Set(0)
		bunDB, err := s.openDB(ctx, res.Descriptor, logger)
		if err != nil {
			return err
		}
		defer func() { _ = bunDB.Close() }()

		deps.db = dbconn.New(bunDB, "")
		if deps.users, deps.authn, err = s.userServices(bunDB, logger); err != nil {
			return err
		}
	}

	if res.Environment.IsDevelopment() && !res.Placeholder {
		tooling, err := synctool.Open(ctx, cfg, resolver, logger)
		switch {
		case err == nil:
			defer func() { _ = tooling.Close() }()
			deps.sync = synchttp.NewHandler(
				tooling.Engine,
				tooling.Locker,
				tooling.Reports,
				tooling.Resolution.Production.Masked(),
				tooling.Resolution.Development.Masked(),
				logger,
			)
		case environment.IsConfigError(err):
			logger.Warn("Sync endpoints disabled: tooling environment not resolvable", zap.Error(err))
		default:
			logger.Warn("Sync endpoints disabled", zap.Error(err))
		}
	}

	router := s.setupRouter(deps, logger)
	return apphttp.ServeAndWait(ctx, router, logger, &cfg.Server)
}

// openDB connects the application pool. A schema-qualified development descriptor pins
// search_path on every pooled connection.
func (s *Server) openDB(ctx context.Context, desc environment.Descriptor, logger *zap.Logger) (*bun.DB, error) {
	opts := []pgutil.ConnectOption{
		pgutil.WithLogger(logger),
		pgutil.WithMaxOpenConns(s.cfg.Environment.MaxOpenConns),
	}
	if desc.Scoped() {
		opts = append(opts, pgutil.WithSearchPath(desc.Schema))
	}
	db, err := pgutil.ConnectDB(ctx, desc, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}
	// search_path accepts a schema that does not exist, so check it before serving.
	if err := dbconn.CheckSchema(ctx, db, desc.Schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("check schema %q: %w", desc.Schema, err)
	}
	return db, nil
}

func (s *Server) userServices(db bun.IDB, logger *zap.Logger) (userservice.Service, *auth.Authenticator, error) {
	tokens, err := auth.NewTokenIssuer(s.cfg.Auth.JWTSecret, s.cfg.Auth.Issuer, s.cfg.Auth.TokenTTL)
	if err != nil {
		return nil, nil, err
	}
	svc := userservice.NewLog(userservice.NewService(userstore.NewStore(db), tokens, logger), logger)
	return svc, auth.NewAuthenticator(tokens, svc, logger), nil
}

type routerDeps struct {
	environment environment.Environment
	placeholder bool
	db          dbconn.Reader
	users       userservice.Service
	authn       *auth.Authenticator
	sync        *synchttp.Handler
}

func (s *Server) setupRouter(deps routerDeps, logger *zap.Logger) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if s.cfg.Server.RequestTimeout > 0 {
		r.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()
		if _, err := deps.db.Query(ctx, "SELECT 1"); err != nil {
			logger.Warn("Readiness check failed", zap.Error(err))
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("database unavailable"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("READY"))
	})

	if s.cfg.Monitoring.Enabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", func(w http.ResponseWriter, _ *http.Request) {
			apphttp.WriteJSON(w, http.StatusOK, map[string]any{
				"environment":   deps.environment.String(),
				"placeholder":   deps.placeholder,
				"syncEndpoints": deps.sync != nil,
			})
		})

		if deps.users == nil {
			logger.Warn("Login disabled: no user database in placeholder mode")
			return
		}
		userservice.RegisterRoutes(r, deps.users, logger)

		if deps.sync != nil {
			r.Group(func(r chi.Router) {
				r.Use(deps.authn.RequireUser, auth.RequireRole(user.RoleAdmin))
				deps.sync.RegisterRoutes(r)
			})
			logger.Info("Dev sync endpoints enabled", zap.String("path", "/api/v1/dev/sync"))
		}
	})

	return r
}
