package incident

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/oklog/ulid/v2"
)

// Validation sentinels surfaced before any store access.
var (
	ErrValidation = errors.New("incident: invalid argument")
	ErrEmptyQuery = errors.New("incident: query parameter is required")
)

// Notifier delivers out-of-band notifications for ingested incidents.
type Notifier interface {
	Send(ctx context.Context, rec *IncidentRecord) error
}

// notifySeverityLevel is the minimum severity rank that triggers a
// notification on ingest.
const notifySeverityLevel = 4

// IngestResult is the outcome of running the ingest pipeline once.
type IngestResult struct {
	Record  *IncidentRecord
	Ref     DocumentRef
	Outcome Outcome
}

// HealthReport carries per-dependency health without mutating state.
type HealthReport struct {
	Status        string    `json:"status"`
	DocumentStore string    `json:"document_store"`
	LLMProvider   string    `json:"llm_provider"`
	Service       string    `json:"service"`
	Timestamp     time.Time `json:"timestamp"`
}

// Service is the business boundary for the incident pipeline: ingest,
// natural-language query, action status updates, sampling, and health.
type Service struct {
	store      Store
	generator  *Generator
	translator *Translator
	logger     log.Logger
	metrics    *Metrics
	notifier   Notifier
}

// NewService creates the pipeline service. metrics and notifier may be nil.
func NewService(store Store, generator *Generator, translator *Translator, logger log.Logger, metrics *Metrics, notifier Notifier) *Service {
	if logger == nil {
		logger = log.Nop()
	}
	return &Service{
		store:      store,
		generator:  generator,
		translator: translator,
		logger:     logger,
		metrics:    metrics,
		notifier:   notifier,
	}
}

// Ingest runs the full analysis pipeline: normalize, generate a plan
// (validated or degraded, never an error), then upsert exactly once. The
// write happens only after a complete plan exists, so no partial document
// is ever stored.
func (s *Service) Ingest(ctx context.Context, payload map[string]any) (*IngestResult, error) {
	start := time.Now()
	rec := Normalize(payload, time.Now().UTC())
	if rec.IncidentID == "" {
		// Without a business key the upsert has no dedup key; mint one.
		rec.IncidentID = "GEN-" + ulid.Make().String()
	}

	L := s.logger.With("incident_id", rec.IncidentID, "severity", rec.Severity)
	L.Info(ctx, "ingesting incident", "title", rec.Title)

	plan, outcome := s.generator.Generate(ctx, rec)
	rec.Analysis = plan

	ref, err := s.store.Upsert(ctx, rec)
	if err != nil {
		s.metrics.observeIngest("failed", outcome, time.Since(start))
		return nil, fmt.Errorf("store incident: %w", err)
	}
	rec.ID = ref.DocumentID
	s.metrics.observeIngest("stored", outcome, time.Since(start))

	L.Info(ctx, "incident stored",
		"document_id", ref.DocumentID,
		"risk_level", plan.RiskLevel,
		"outcome", string(outcome),
	)

	if s.notifier != nil && rec.SeverityLevel >= notifySeverityLevel {
		go s.notify(context.WithoutCancel(ctx), rec)
	}

	return &IngestResult{Record: rec, Ref: ref, Outcome: outcome}, nil
}

func (s *Service) notify(ctx context.Context, rec *IncidentRecord) {
	if err := s.notifier.Send(ctx, rec); err != nil {
		s.logger.Error(ctx, err, "incident notification failed", "incident_id", rec.IncidentID)
	}
}

// Query translates a natural-language question and executes it against the
// store. An empty question is rejected before translation; translation and
// store errors propagate.
func (s *Service) Query(ctx context.Context, question string) (QuerySpec, []*IncidentRecord, error) {
	if strings.TrimSpace(question) == "" {
		return QuerySpec{}, nil, ErrEmptyQuery
	}

	spec, err := s.translator.Translate(ctx, question)
	if err != nil {
		s.metrics.observeQuery("translation_failed", 0)
		return QuerySpec{}, nil, err
	}

	records, err := s.store.Query(ctx, spec)
	if err != nil {
		s.metrics.observeQuery("store_failed", 0)
		return QuerySpec{}, nil, fmt.Errorf("query incidents: %w", err)
	}

	s.metrics.observeQuery("ok", len(records))
	s.logger.Info(ctx, "incident query complete", "question", question, "count", len(records))
	return spec, records, nil
}

// UpdateActionStatus validates arguments, then performs the guarded update.
// A revision conflict is retried once before propagating ErrConflict.
func (s *Service) UpdateActionStatus(ctx context.Context, documentID string, status ActionPlanStatus, notes string) (*IncidentRecord, error) {
	if documentID == "" {
		return nil, fmt.Errorf("%w: document_id is required", ErrValidation)
	}
	if status == "" {
		return nil, fmt.Errorf("%w: action_status is required", ErrValidation)
	}
	if !status.Valid() {
		return nil, fmt.Errorf("%w: action_status %q not in {Pending, InProgress, Completed}", ErrValidation, status)
	}

	rec, err := s.store.UpdateActionStatus(ctx, documentID, status, notes)
	if errors.Is(err, ErrConflict) {
		s.logger.Warn(ctx, "action status update conflicted, retrying", "document_id", documentID)
		rec, err = s.store.UpdateActionStatus(ctx, documentID, status, notes)
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "action plan status updated",
		"document_id", documentID, "action_status", string(status))
	return rec, nil
}

// Sample returns the limit highest-severity incidents, limit clamped by the
// store to [MinSampleLimit, MaxSampleLimit].
func (s *Service) Sample(ctx context.Context, limit int) ([]*IncidentRecord, error) {
	return s.store.Sample(ctx, limit)
}

// Health probes each dependency without mutating state. Aggregate status is
// healthy only when every dependency is.
func (s *Service) Health(ctx context.Context) *HealthReport {
	report := &HealthReport{
		Service:   "incidentd",
		Timestamp: time.Now().UTC(),
	}

	switch {
	case s.store == nil:
		report.DocumentStore = "not initialized"
	default:
		if err := s.store.Ping(ctx); err != nil {
			report.DocumentStore = "unhealthy: " + err.Error()
		} else {
			report.DocumentStore = "healthy"
		}
	}

	if s.generator == nil || s.generator.provider == nil {
		report.LLMProvider = "not initialized"
	} else {
		report.LLMProvider = "healthy"
	}

	if report.DocumentStore == "healthy" && report.LLMProvider == "healthy" {
		report.Status = "healthy"
	} else {
		report.Status = "degraded"
	}
	return report
}

// SeedSample ingests one representative incident when the store is empty,
// so fresh deployments have data to query. No-op when records exist.
func (s *Service) SeedSample(ctx context.Context) error {
	existing, err := s.store.Sample(ctx, 1)
	if err != nil {
		return fmt.Errorf("check existing incidents: %w", err)
	}
	if len(existing) > 0 {
		s.logger.Info(ctx, "sample incidents already exist, skipping seed")
		return nil
	}

	payload := map[string]any{
		"incidentId":     "INC-001",
		"title":          "Suspicious PowerShell Activity Detected",
		"severity":       "High",
		"status":         "New",
		"description":    "Multiple PowerShell commands with obfuscation detected on production server",
		"createdTimeUtc": time.Now().UTC().Format(time.RFC3339),
		"tactics":        []any{"Execution", "Defense Evasion"},
		"techniques":     []any{"T1059.001", "T1027"},
		"relatedEntities": []any{
			map[string]any{"type": "Host", "name": "PROD-WEB-01"},
			map[string]any{"type": "Account", "name": "svc_web"},
		},
	}

	if _, err := s.Ingest(ctx, payload); err != nil {
		return fmt.Errorf("seed sample incident: %w", err)
	}
	s.logger.Info(ctx, "seeded sample incident")
	return nil
}
