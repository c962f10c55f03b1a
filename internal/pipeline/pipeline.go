package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/citizen-alerts-service/internal/domain"
	"github.com/couchcryptid/citizen-alerts-service/internal/observability"
	"github.com/couchcryptid/citizen-alerts-service/internal/store"
)

//go:generate mockgen -destination=mocks/mock_gateway.go -package=mocks github.com/couchcryptid/citizen-alerts-service/internal/pipeline Gateway

// Gateway is the incidents service.
type Gateway interface {
	FetchIncidents(ctx context.Context, isOngoing *bool) ([]domain.RawIncident, error)
	SubmitReport(ctx context.Context, sub domain.ReportSubmission) (domain.ReportAck, error)
}

// Publisher forwards freshly fetched alerts downstream.
type Publisher interface {
	Publish(ctx context.Context, alerts []domain.Alert) error
}

// Options holds the optional collaborators of a Pipeline.
type Options struct {
	Geocoder        domain.Geocoder
	Publisher       Publisher
	Locations       domain.LocationProvider
	DefaultOngoing  *bool         // filter used by the refresh loop and post-report refetch
	RefreshInterval time.Duration // 0 fetches once at startup
	Clock           clockwork.Clock
}

// Status summarizes the pipeline for operators.
type Status struct {
	State       string     `json:"state"`
	Error       string     `json:"error,omitempty"`
	Alerts      int        `json:"alerts"`
	Ready       bool       `json:"ready"`
	LastFetchAt *time.Time `json:"lastFetchAt,omitempty"`
	LastSkipped int        `json:"lastSkipped"`
}

// Pipeline owns the alert store and is the only path that mutates it.
type Pipeline struct {
	gateway         Gateway
	store           *store.Store
	normalizer      *Normalizer
	publisher       Publisher
	locations       domain.LocationProvider
	defaultOngoing  *bool
	refreshInterval time.Duration
	clock           clockwork.Clock
	logger          *slog.Logger
	metrics         *observability.Metrics
	ready           atomic.Bool

	statusMu    sync.Mutex
	lastFetchAt time.Time
	lastSkipped int
}

// New creates a Pipeline around gateway and st.
func New(gateway Gateway, st *store.Store, logger *slog.Logger, metrics *observability.Metrics, opts Options) *Pipeline {
	clk := opts.Clock
	if clk == nil {
		clk = clockwork.NewRealClock()
	}
	return &Pipeline{
		gateway:         gateway,
		store:           st,
		normalizer:      NewNormalizer(opts.Geocoder, logger),
		publisher:       opts.Publisher,
		locations:       opts.Locations,
		defaultOngoing:  opts.DefaultOngoing,
		refreshInterval: opts.RefreshInterval,
		clock:           clk,
		logger:          logger,
		metrics:         metrics,
	}
}

// CheckReadiness returns nil once at least one fetch has succeeded.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no successful incident fetch yet")
	}
	return nil
}

// Fetch loads incidents from the backend and replaces the store contents.
// On failure the previous alerts stay visible and the error is both returned
// and recorded on the store. A result that completes after a newer fetch has
// already been applied is discarded.
func (p *Pipeline) Fetch(ctx context.Context, isOngoing *bool) error {
	start := p.clock.Now()
	seq := p.store.BeginFetch()

	raws, err := p.gateway.FetchIncidents(ctx, isOngoing)
	if err != nil {
		netErr := domain.AsNetworkError(err, "fetch incidents")
		if p.store.Fail(seq, netErr) {
			p.metrics.FetchesTotal.WithLabelValues("error").Inc()
		} else {
			p.metrics.FetchesTotal.WithLabelValues("stale").Inc()
		}
		p.logger.Error("fetch incidents failed", "error", netErr, "kind", netErr.Kind)
		return netErr
	}
	p.metrics.IncidentsReceived.Add(float64(len(raws)))

	result := p.normalizer.Normalize(ctx, raws)
	skipped := result.SkippedTotal()
	for reason, n := range result.Skipped {
		p.metrics.IncidentsSkipped.WithLabelValues(reason).Add(float64(n))
	}
	if skipped > 0 {
		p.logger.Warn("dropped incidents during normalization",
			"received", len(raws),
			"skipped", skipped,
			"reasons", result.Skipped,
		)
	}

	if !p.store.Replace(seq, result.Alerts) {
		p.metrics.FetchesTotal.WithLabelValues("stale").Inc()
		p.logger.Debug("discarding stale fetch result", "seq", seq)
		return nil
	}

	p.metrics.FetchesTotal.WithLabelValues("success").Inc()
	p.metrics.FetchDuration.Observe(p.clock.Since(start).Seconds())
	p.metrics.AlertsCurrent.Set(float64(p.store.Len()))
	p.ready.Store(true)

	p.statusMu.Lock()
	p.lastFetchAt = p.clock.Now()
	p.lastSkipped = skipped
	p.statusMu.Unlock()

	p.logger.Info("incidents fetched", "alerts", len(result.Alerts), "skipped", skipped)
	p.publish(ctx, result.Alerts)
	return nil
}

// Submit sends a user report, attaching it to existingIncidentID when set,
// and returns the alert the report produced. A successful submission
// triggers a full refetch; a failed refetch does not fail the submission.
func (p *Pipeline) Submit(ctx context.Context, in domain.UserReportInput, existingIncidentID *int64) (domain.Alert, error) {
	sub, loc, err := domain.BuildSubmission(in, p.locations, existingIncidentID)
	if err != nil {
		p.store.RecordError(err)
		p.metrics.ReportsSubmitted.WithLabelValues("invalid").Inc()
		return domain.Alert{}, err
	}
	if len(in.Photos) > 0 {
		p.logger.Debug("photo upload not supported, dropping attachments", "photos", len(in.Photos))
	}

	ack, err := p.gateway.SubmitReport(ctx, sub)
	if err != nil {
		netErr := domain.AsNetworkError(err, "submit report")
		p.store.RecordError(netErr)
		p.metrics.ReportsSubmitted.WithLabelValues("error").Inc()
		p.logger.Error("submit report failed", "error", netErr, "kind", netErr.Kind)
		return domain.Alert{}, netErr
	}
	p.metrics.ReportsSubmitted.WithLabelValues("success").Inc()

	alert := p.normalizer.Enrich(ctx, domain.AlertFromAck(in, loc, ack, existingIncidentID))
	p.logger.Info("report submitted",
		"alert_id", alert.ID,
		"incident_id", ack.IncidentID,
		"type", alert.Type,
		"severity", alert.Severity,
	)

	if err := p.Fetch(ctx, p.defaultOngoing); err != nil {
		p.logger.Warn("refetch after report failed", "error", err)
	}
	return alert, nil
}

// CurrentAlerts returns the current snapshot, newest first.
func (p *Pipeline) CurrentAlerts() []domain.Alert {
	return p.store.Snapshot()
}

// Get returns a single alert.
func (p *Pipeline) Get(id uuid.UUID) (domain.Alert, error) {
	a, ok := p.store.Get(id)
	if !ok {
		return domain.Alert{}, domain.ErrNotFound
	}
	return a, nil
}

// Filtered applies f to the current snapshot. A radius without a center is
// measured from the current location, or ignored if there is none.
func (p *Pipeline) Filtered(f store.Filter) []domain.Alert {
	if f.RadiusKm != nil && f.Center == nil {
		f.Center = p.currentLocation()
	}
	return f.Apply(p.store.Snapshot())
}

// Sorted orders the current snapshot. Distance ordering uses ref, or the
// current location when ref is nil.
func (p *Pipeline) Sorted(key store.SortKey, ref *domain.Location) []domain.Alert {
	return p.sort(p.store.Snapshot(), key, ref)
}

// Query filters and then sorts the current snapshot.
func (p *Pipeline) Query(f store.Filter, key store.SortKey) []domain.Alert {
	if f.RadiusKm != nil && f.Center == nil {
		f.Center = p.currentLocation()
	}
	return p.sort(f.Apply(p.store.Snapshot()), key, f.Center)
}

func (p *Pipeline) sort(alerts []domain.Alert, key store.SortKey, ref *domain.Location) []domain.Alert {
	if ref == nil {
		ref = p.currentLocation()
	}
	return store.Sort(alerts, key, ref)
}

// IncrementReportCount records a corroborating report against an alert.
// The change is local and is overwritten by the next fetch.
func (p *Pipeline) IncrementReportCount(id uuid.UUID) (int, error) {
	return p.store.IncrementReportCount(id)
}

// UpdateAlert replaces an alert in the store. The change is local.
func (p *Pipeline) UpdateAlert(alert domain.Alert) error {
	return p.store.ReplaceByID(alert)
}

// Remove deletes an alert from the store. The change is local.
func (p *Pipeline) Remove(id uuid.UUID) error {
	if err := p.store.Remove(id); err != nil {
		return err
	}
	p.metrics.AlertsCurrent.Set(float64(p.store.Len()))
	return nil
}

// Status reports the store state and the outcome of the last fetch.
func (p *Pipeline) Status() Status {
	p.statusMu.Lock()
	defer p.statusMu.Unlock()

	st := Status{
		State:       p.store.State().String(),
		Alerts:      p.store.Len(),
		Ready:       p.ready.Load(),
		LastSkipped: p.lastSkipped,
	}
	if err := p.store.Err(); err != nil {
		st.Error = err.Error()
	}
	if !p.lastFetchAt.IsZero() {
		t := p.lastFetchAt
		st.LastFetchAt = &t
	}
	return st
}

// Run fetches once and then every refresh interval until ctx is cancelled.
// Failed refreshes are logged and retried on the next tick only.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("refresh loop started", "interval", p.refreshInterval)
	p.metrics.RefreshRunning.Set(1)
	defer p.metrics.RefreshRunning.Set(0)

	_ = p.Fetch(ctx, p.defaultOngoing)

	if p.refreshInterval <= 0 {
		<-ctx.Done()
		p.logger.Info("refresh loop stopping", "reason", ctx.Err())
		return nil
	}

	ticker := p.clock.NewTicker(p.refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("refresh loop stopping", "reason", ctx.Err())
			return nil
		case <-ticker.Chan():
			_ = p.Fetch(ctx, p.defaultOngoing)
		}
	}
}

func (p *Pipeline) publish(ctx context.Context, alerts []domain.Alert) {
	if p.publisher == nil || len(alerts) == 0 {
		return
	}
	if err := p.publisher.Publish(ctx, alerts); err != nil {
		p.metrics.PublishErrors.Inc()
		p.logger.Warn("publish alerts failed", "error", err, "alerts", len(alerts))
		return
	}
	p.metrics.AlertsPublished.Add(float64(len(alerts)))
}

func (p *Pipeline) currentLocation() *domain.Location {
	if p.locations == nil {
		return nil
	}
	loc, ok := p.locations.Current()
	if !ok {
		return nil
	}
	return &loc
}
