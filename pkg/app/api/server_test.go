package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rxpartners/crm-backend/pkg/auth"
	"github.com/rxpartners/crm-backend/pkg/config"
	"github.com/rxpartners/crm-backend/pkg/dbconn"
	"github.com/rxpartners/crm-backend/pkg/dbsync"
	"github.com/rxpartners/crm-backend/pkg/environment"
	"github.com/rxpartners/crm-backend/pkg/pgutil"
	"github.com/rxpartners/crm-backend/pkg/runlock"
	"github.com/rxpartners/crm-backend/pkg/synchttp"
	"github.com/rxpartners/crm-backend/pkg/user"
	"github.com/rxpartners/crm-backend/pkg/user/service/mocks"
)

type stubEngine struct {
	registry *dbsync.Registry
}

func (e stubEngine) Registry() *dbsync.Registry { return e.registry }
func (e stubEngine) Compare(context.Context) *dbsync.Snapshot {
	return &dbsync.Snapshot{TakenAt: time.Now().UTC()}
}
func (e stubEngine) Validate(context.Context) (*dbsync.SyncReport, error) {
	return &dbsync.SyncReport{RunID: "r", Success: true, Outcome: dbsync.OutcomeConverged}, nil
}
func (e stubEngine) Operations(context.Context) []dbsync.SyncOperation { return nil }
func (e stubEngine) Promote(context.Context, []string) dbsync.PromotionResult {
	return dbsync.PromotionResult{}
}

func testConfig() *config.Config {
	return &config.Config{Monitoring: config.MonitoringConfig{Enabled: true}}
}

func get(t *testing.T, h http.Handler, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouter_PlaceholderMode(t *testing.T) {
	placeholder := dbconn.NewPlaceholder(zap.NewNop())
	router := NewServer(testConfig()).setupRouter(routerDeps{
		environment: environment.Development,
		placeholder: true,
		db:          placeholder,
	}, zap.NewNop())

	assert.Equal(t, http.StatusOK, get(t, router, "/health", "").Code)

	rec := get(t, router, "/ready", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(1), placeholder.Statements())

	rec = get(t, router, "/api/v1/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"environment":"development","placeholder":true,"syncEndpoints":false}`, rec.Body.String())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewBufferString(`{}`))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	assert.Equal(t, http.StatusOK, get(t, router, "/metrics", "").Code)
}

func TestRouter_SyncEndpointsRequireAdmin(t *testing.T) {
	tokens, err := auth.NewTokenIssuer("secret", "crm-backend", time.Hour)
	require.NoError(t, err)

	admin := &user.User{ID: 1, Username: "maria", Role: user.RoleAdmin}
	sales := &user.User{ID: 2, Username: "sam", Role: user.RoleSales}

	users := mocks.NewService(t)
	users.EXPECT().GetUserByID(mock.Anything, int64(1)).Return(admin, nil).Maybe()
	users.EXPECT().GetUserByID(mock.Anything, int64(2)).Return(sales, nil).Maybe()

	registry, err := dbsync.DefaultRegistry(nil)
	require.NoError(t, err)

	router := NewServer(testConfig()).setupRouter(routerDeps{
		environment: environment.Development,
		db:          dbconn.NewPlaceholder(zap.NewNop()),
		users:       users,
		authn:       auth.NewAuthenticator(tokens, users, zap.NewNop()),
		sync:        synchttp.NewHandler(stubEngine{registry: registry}, runlock.NewLocal(), nil, "prod", "dev", zap.NewNop()),
	}, zap.NewNop())

	adminToken, _, err := tokens.Issue(admin)
	require.NoError(t, err)
	salesToken, _, err := tokens.Issue(sales)
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnauthorized, get(t, router, "/api/v1/dev/sync/operations", "").Code)
	assert.Equal(t, http.StatusForbidden, get(t, router, "/api/v1/dev/sync/operations", salesToken).Code)

	rec := get(t, router, "/api/v1/dev/sync/operations", adminToken)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"operations":[]}`, rec.Body.String())

	var status map[string]any
	require.NoError(t, json.Unmarshal(get(t, router, "/api/v1/status", "").Body.Bytes(), &status))
	assert.Equal(t, true, status["syncEndpoints"])
}

func TestOpenDB_RejectsMissingSchema(t *testing.T) {
	db, desc, cleanup := pgutil.SetupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	_, err := db.ExecContext(ctx, "CREATE SCHEMA dev_crm")
	require.NoError(t, err)

	s := NewServer(testConfig())

	desc.Schema = "dev_crm"
	appDB, err := s.openDB(ctx, desc, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, appDB.Close())

	desc.Schema = "dev_crn"
	_, err = s.openDB(ctx, desc, zap.NewNop())
	require.ErrorIs(t, err, dbconn.ErrSchemaNotFound)
}
