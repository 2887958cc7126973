// Package synchttp exposes the sync engine to administrators over HTTP.
// The routes are only mounted on development servers.
package synchttp

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apperrors "github.com/rxpartners/crm-backend/pkg/app/errors"
	apphttp "github.com/rxpartners/crm-backend/pkg/app/http"
	"github.com/rxpartners/crm-backend/pkg/dbsync"
	"github.com/rxpartners/crm-backend/pkg/runlock"
	"github.com/rxpartners/crm-backend/pkg/syncreport"
)

// maxPromotionItems bounds a single promote request.
const maxPromotionItems = 500

// Engine is the part of dbsync.Engine the handlers drive.
type Engine interface {
	Registry() *dbsync.Registry
	Compare(ctx context.Context) *dbsync.Snapshot
	Validate(ctx context.Context) (*dbsync.SyncReport, error)
	Operations(ctx context.Context) []dbsync.SyncOperation
	Promote(ctx context.Context, itemIDs []string) dbsync.PromotionResult
}

// ComparisonWriter persists one-shot comparison reports.
type ComparisonWriter interface {
	WriteComparisonReport(ctx context.Context, report *syncreport.ComparisonReport) (string, error)
}

// Handler serves the dev sync endpoints.
type Handler struct {
	engine      Engine
	locker      runlock.Locker
	reports     ComparisonWriter
	production  string
	development string
	logger      *zap.Logger
}

// NewHandler creates the handler. production and development are the masked descriptors
// shown in comparison reports.
func NewHandler(engine Engine, locker runlock.Locker, reports ComparisonWriter, production, development string, logger *zap.Logger) *Handler {
	return &Handler{
		engine:      engine,
		locker:      locker,
		reports:     reports,
		production:  production,
		development: development,
		logger:      logger.Named("synchttp"),
	}
}

// RegisterRoutes mounts the handler under /dev/sync. Callers add authentication.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/dev/sync", func(r chi.Router) {
		r.Post("/compare", apphttp.HandleError(h.compare))
		r.Post("/validate", apphttp.HandleError(h.validate))
		r.Get("/operations", apphttp.HandleError(h.operations))
		r.Post("/promote", apphttp.HandleError(h.promote))
	})
}

type compareResponse struct {
	*syncreport.ComparisonReport
	Location string `json:"location,omitempty"`
}

func (h *Handler) compare(w http.ResponseWriter, r *http.Request) error {
	snap := h.engine.Compare(r.Context())
	report := syncreport.NewComparisonReport(snap, h.engine.Registry(), h.production, h.development)

	resp := compareResponse{ComparisonReport: report}
	if h.reports != nil {
		location, err := h.reports.WriteComparisonReport(r.Context(), report)
		if err != nil {
			h.logger.Warn("Failed to persist comparison report", zap.Error(err))
		}
		resp.Location = location
	}

	apphttp.WriteJSON(w, http.StatusOK, resp)
	return nil
}

type validateResponse struct {
	*dbsync.SyncReport
	ReportError string `json:"reportError,omitempty"`
}

func (h *Handler) validate(w http.ResponseWriter, r *http.Request) error {
	// A dropped client must not abort a reload halfway.
	ctx := context.WithoutCancel(r.Context())

	release, err := h.locker.Obtain(ctx, runlock.ValidateKey)
	if err != nil {
		if errors.Is(err, runlock.ErrLockNotObtained) {
			return apperrors.LockedError(err, "a validation run is already in progress")
		}
		return apperrors.DependencyError(err, "run lock unavailable")
	}
	defer release()

	report, err := h.engine.Validate(ctx)
	if report == nil {
		return apperrors.GeneralError(err)
	}

	resp := validateResponse{SyncReport: report}
	if err != nil {
		h.logger.Error("Validation report was not persisted", zap.String("run_id", report.RunID), zap.Error(err))
		resp.ReportError = "report could not be persisted"
	}
	apphttp.WriteJSON(w, http.StatusOK, resp)
	return nil
}

type operationsResponse struct {
	Operations []dbsync.SyncOperation `json:"operations"`
}

func (h *Handler) operations(w http.ResponseWriter, r *http.Request) error {
	ops := h.engine.Operations(r.Context())
	if ops == nil {
		ops = []dbsync.SyncOperation{}
	}
	apphttp.WriteJSON(w, http.StatusOK, operationsResponse{Operations: ops})
	return nil
}

type promoteRequest struct {
	Items []string `json:"items"`
}

func (h *Handler) promote(w http.ResponseWriter, r *http.Request) error {
	var req promoteRequest
	if err := apphttp.DecodeJSON(r, &req); err != nil {
		return err
	}

	items := make([]string, 0, len(req.Items))
	for _, item := range req.Items {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return apperrors.BadRequestError(nil, "items required")
	}
	if len(items) > maxPromotionItems {
		return apperrors.BadRequestError(nil, "too many items")
	}

	result := h.engine.Promote(context.WithoutCancel(r.Context()), items)
	h.logger.Info("Promotion request handled",
		zap.Int("requested", result.Total),
		zap.Int("successful", result.Successful),
		zap.Int("failed", result.Failed),
	)
	apphttp.WriteJSON(w, http.StatusOK, result)
	return nil
}
