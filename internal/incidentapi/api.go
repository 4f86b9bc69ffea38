// Package incidentapi exposes the incident pipeline over HTTP.
package incidentapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/incidentd/internal/incident"
)

// IncidentService defines the business operations incidentapi needs.
type IncidentService interface {
	Ingest(ctx context.Context, payload map[string]any) (*incident.IngestResult, error)
	Query(ctx context.Context, question string) (incident.QuerySpec, []*incident.IncidentRecord, error)
	UpdateActionStatus(ctx context.Context, documentID string, status incident.ActionPlanStatus, notes string) (*incident.IncidentRecord, error)
	Sample(ctx context.Context, limit int) ([]*incident.IncidentRecord, error)
	Health(ctx context.Context) *incident.HealthReport
}

// API holds dependencies for HTTP handlers.
type API struct {
	logger log.Logger
	svc    IncidentService
}

// New creates a new API handler.
func New(logger log.Logger, svc IncidentService) *API {
	if logger == nil {
		logger = log.Nop()
	}
	if svc == nil {
		panic(xerrors.New("incident service is required"))
	}
	return &API{
		logger: logger,
		svc:    svc,
	}
}

// RegisterRoutes attaches API endpoints to the router.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/incidents", a.handleIngest)
		r.Get("/incidents", a.handleQuery)
		r.Post("/tools/query-incidents", a.handleToolQuery)
		r.Post("/incident-actions", a.handleUpdateActions)
		r.Get("/sample-incidents", a.handleSample)
		r.Get("/health", a.handleHealth)
	})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.svc.Health(r.Context()))
}
