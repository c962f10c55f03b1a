package pipeline_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/citizen-alerts-service/internal/domain"
	"github.com/couchcryptid/citizen-alerts-service/internal/observability"
	"github.com/couchcryptid/citizen-alerts-service/internal/pipeline"
	"github.com/couchcryptid/citizen-alerts-service/internal/pipeline/mocks"
	"github.com/couchcryptid/citizen-alerts-service/internal/store"
)

var (
	central     = domain.Location{Latitude: 22.2819, Longitude: 114.1582}
	causewayBay = domain.Location{Latitude: 22.2802, Longitude: 114.1849}
	kowloonTong = domain.Location{Latitude: 22.3372, Longitude: 114.1763}
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func ptr[T any](v T) *T { return &v }

func raw(id int64, category string, loc domain.Location, firstReported string) domain.RawIncident {
	return domain.RawIncident{
		IncidentID:          ptr(id),
		Type:                ptr(category),
		LocationCoordinates: &domain.Coordinates{Latitude: ptr(loc.Latitude), Longitude: ptr(loc.Longitude)},
		Urgency:             ptr(80.0),
		Credibility:         ptr(70.0),
		FirstReportedAt:     ptr(firstReported),
		Description:         ptr("incident " + category),
	}
}

func sampleBatch() []domain.RawIncident {
	return []domain.RawIncident{
		raw(1, "FIRE", central, "2024-04-26T09:00:00Z"),
		raw(2, "CRIME", kowloonTong, "2024-04-26T11:00:00Z"),
		raw(3, "DISASTER", causewayBay, "2024-04-26T10:00:00Z"),
		{IncidentID: ptr(int64(4)), LocationCoordinates: &domain.Coordinates{Longitude: ptr(22.3)}},
	}
}

type fixture struct {
	gateway *mocks.MockGateway
	store   *store.Store
	metrics *observability.Metrics
	p       *pipeline.Pipeline
}

func newFixture(t *testing.T, opts pipeline.Options) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	f := &fixture{
		gateway: mocks.NewMockGateway(ctrl),
		store:   store.New(),
		metrics: observability.NewMetricsForTesting(),
	}
	f.p = pipeline.New(f.gateway, f.store, discardLogger(), f.metrics, opts)
	return f
}

func titles(alerts []domain.Alert) []string {
	out := make([]string, len(alerts))
	for i, a := range alerts {
		out[i] = a.Title
	}
	return out
}

// --- fetch ---

func TestFetch_Success(t *testing.T) {
	f := newFixture(t, pipeline.Options{})
	ongoing := ptr(true)
	f.gateway.EXPECT().FetchIncidents(gomock.Any(), ongoing).Return(sampleBatch(), nil)

	require.Error(t, f.p.CheckReadiness(context.Background()))

	err := f.p.Fetch(context.Background(), ongoing)

	require.NoError(t, err)
	assert.Equal(t, []string{"incident CRIME", "incident DISASTER", "incident FIRE"}, titles(f.p.CurrentAlerts()))
	assert.Equal(t, store.StateLoaded, f.store.State())
	assert.NoError(t, f.p.CheckReadiness(context.Background()))

	assert.Equal(t, 4.0, testutil.ToFloat64(f.metrics.IncidentsReceived))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.IncidentsSkipped.WithLabelValues("missing_coordinates")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.FetchesTotal.WithLabelValues("success")))
	assert.Equal(t, 3.0, testutil.ToFloat64(f.metrics.AlertsCurrent))

	st := f.p.Status()
	assert.Equal(t, "loaded", st.State)
	assert.Equal(t, 3, st.Alerts)
	assert.Equal(t, 1, st.LastSkipped)
	assert.True(t, st.Ready)
	assert.NotNil(t, st.LastFetchAt)
}

func TestFetch_FailureKeepsSnapshot(t *testing.T) {
	f := newFixture(t, pipeline.Options{})
	gomock.InOrder(
		f.gateway.EXPECT().FetchIncidents(gomock.Any(), gomock.Any()).Return(sampleBatch(), nil),
		f.gateway.EXPECT().FetchIncidents(gomock.Any(), gomock.Any()).Return(nil, &domain.NetworkError{
			Kind:   domain.NetworkStatus,
			Detail: "GET /api/incidents returned 503",
		}),
	)

	require.NoError(t, f.p.Fetch(context.Background(), nil))
	err := f.p.Fetch(context.Background(), nil)

	var netErr *domain.NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, domain.NetworkStatus, netErr.Kind)
	assert.Len(t, f.p.CurrentAlerts(), 3)
	assert.Equal(t, store.StateFailed, f.store.State())
	assert.ErrorIs(t, f.store.Err(), err)
	assert.Contains(t, f.p.Status().Error, "503")
	assert.NoError(t, f.p.CheckReadiness(context.Background()), "readiness survives later failures")
}

func TestFetch_PlainErrorWrappedAsTransport(t *testing.T) {
	f := newFixture(t, pipeline.Options{})
	cause := errors.New("connection refused")
	f.gateway.EXPECT().FetchIncidents(gomock.Any(), gomock.Any()).Return(nil, cause)

	err := f.p.Fetch(context.Background(), nil)

	var netErr *domain.NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, domain.NetworkTransport, netErr.Kind)
	assert.ErrorIs(t, err, cause)
	assert.Error(t, f.p.CheckReadiness(context.Background()))
}

func TestFetch_StaleResultDiscarded(t *testing.T) {
	f := newFixture(t, pipeline.Options{})
	entered := make(chan struct{})
	release := make(chan struct{})

	gomock.InOrder(
		f.gateway.EXPECT().FetchIncidents(gomock.Any(), gomock.Any()).DoAndReturn(
			func(context.Context, *bool) ([]domain.RawIncident, error) {
				close(entered)
				<-release
				return []domain.RawIncident{raw(10, "FIRE", central, "2024-04-26T12:00:00Z")}, nil
			}),
		f.gateway.EXPECT().FetchIncidents(gomock.Any(), gomock.Any()).Return(
			[]domain.RawIncident{raw(20, "CRIME", central, "2024-04-26T08:00:00Z")}, nil),
	)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, f.p.Fetch(context.Background(), nil))
	}()
	<-entered

	require.NoError(t, f.p.Fetch(context.Background(), nil))
	close(release)
	wg.Wait()

	assert.Equal(t, []string{"incident CRIME"}, titles(f.p.CurrentAlerts()))
	assert.Equal(t, store.StateLoaded, f.store.State())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.FetchesTotal.WithLabelValues("stale")))
}

// --- publishing and enrichment ---

type recordingPublisher struct {
	mu      sync.Mutex
	batches [][]domain.Alert
	err     error
}

func (r *recordingPublisher) Publish(_ context.Context, alerts []domain.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, alerts)
	return r.err
}

func TestFetch_PublishesAlerts(t *testing.T) {
	pub := &recordingPublisher{}
	f := newFixture(t, pipeline.Options{Publisher: pub})
	f.gateway.EXPECT().FetchIncidents(gomock.Any(), gomock.Any()).Return(sampleBatch(), nil)

	require.NoError(t, f.p.Fetch(context.Background(), nil))

	require.Len(t, pub.batches, 1)
	assert.Len(t, pub.batches[0], 3)
	assert.Equal(t, 3.0, testutil.ToFloat64(f.metrics.AlertsPublished))
}

func TestFetch_PublishErrorIsNotFatal(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker unavailable")}
	f := newFixture(t, pipeline.Options{Publisher: pub})
	f.gateway.EXPECT().FetchIncidents(gomock.Any(), gomock.Any()).Return(sampleBatch(), nil)

	require.NoError(t, f.p.Fetch(context.Background(), nil))

	assert.Len(t, f.p.CurrentAlerts(), 3)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.PublishErrors))
}

type stubGeocoder struct{}

func (stubGeocoder) ReverseGeocode(_ context.Context, _, _ float64) (domain.GeocodingResult, error) {
	return domain.GeocodingResult{FormattedAddress: "Central, Hong Kong", City: "Hong Kong"}, nil
}

func TestFetch_GeocodingEnrichment(t *testing.T) {
	f := newFixture(t, pipeline.Options{Geocoder: stubGeocoder{}})
	f.gateway.EXPECT().FetchIncidents(gomock.Any(), gomock.Any()).Return(
		[]domain.RawIncident{raw(1, "FIRE", central, "2024-04-26T09:00:00Z")}, nil)

	require.NoError(t, f.p.Fetch(context.Background(), nil))

	alerts := f.p.CurrentAlerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, "Central, Hong Kong", alerts[0].Location.Address)
	assert.Equal(t, "Hong Kong", alerts[0].Location.City)
}

// --- submit ---

func reportInput() domain.UserReportInput {
	return domain.UserReportInput{
		Type:        domain.AlertTypeFire,
		Title:       "Kitchen fire",
		Description: "Smoke from the third floor",
		Location:    &domain.Location{Latitude: 22.28, Longitude: 114.15},
		Severity:    domain.SeverityCritical,
		Anonymity:   domain.AnonymityAnonymous,
	}
}

func TestSubmit_NewIncident(t *testing.T) {
	ongoing := ptr(true)
	f := newFixture(t, pipeline.Options{DefaultOngoing: ongoing})

	want := domain.ReportSubmission{
		LocationCoordinates: domain.ReportCoordinates{Latitude: 22.28, Longitude: 114.15},
		IncidentType:        "FIRE",
		Credibility:         90,
		Urgency:             95,
		ReportType:          "user",
		Description:         "Smoke from the third floor",
	}
	gomock.InOrder(
		f.gateway.EXPECT().SubmitReport(gomock.Any(), want).Return(domain.ReportAck{
			ReportID:    ptr(int64(501)),
			IncidentID:  ptr(int64(77)),
			Credibility: ptr(90),
			Timestamp:   ptr("2024-04-26T12:00:00.250Z"),
		}, nil),
		f.gateway.EXPECT().FetchIncidents(gomock.Any(), ongoing).Return(sampleBatch(), nil),
	)

	alert, err := f.p.Submit(context.Background(), reportInput(), nil)

	require.NoError(t, err)
	assert.Equal(t, "Kitchen fire", alert.Title)
	assert.Equal(t, domain.SeverityCritical, alert.Severity)
	assert.True(t, alert.IsVerified)
	assert.Equal(t, int64(77), *alert.IncidentID)
	assert.Equal(t, time.Date(2024, 4, 26, 12, 0, 0, 250000000, time.UTC), alert.CreatedAt)
	assert.Len(t, f.p.CurrentAlerts(), 3, "store refreshed after submit")
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.ReportsSubmitted.WithLabelValues("success")))
}

func TestSubmit_ExistingIncidentOmitsCategory(t *testing.T) {
	f := newFixture(t, pipeline.Options{})
	f.gateway.EXPECT().SubmitReport(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, sub domain.ReportSubmission) (domain.ReportAck, error) {
			assert.Empty(t, sub.IncidentType)
			require.NotNil(t, sub.IncidentID)
			assert.Equal(t, int64(12), *sub.IncidentID)
			return domain.ReportAck{}, nil
		})
	f.gateway.EXPECT().FetchIncidents(gomock.Any(), gomock.Any()).Return(nil, nil)

	alert, err := f.p.Submit(context.Background(), reportInput(), ptr(int64(12)))

	require.NoError(t, err)
	assert.Equal(t, int64(12), *alert.IncidentID)
	assert.False(t, alert.IsVerified)
}

func TestSubmit_UsesProviderLocation(t *testing.T) {
	f := newFixture(t, pipeline.Options{Locations: domain.NewStaticLocation(central)})
	f.gateway.EXPECT().SubmitReport(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, sub domain.ReportSubmission) (domain.ReportAck, error) {
			assert.Equal(t, central.Latitude, sub.LocationCoordinates.Latitude)
			return domain.ReportAck{}, nil
		})
	f.gateway.EXPECT().FetchIncidents(gomock.Any(), gomock.Any()).Return(nil, nil)

	in := reportInput()
	in.Location = nil
	_, err := f.p.Submit(context.Background(), in, nil)

	require.NoError(t, err)
}

func TestSubmit_InvalidLocation(t *testing.T) {
	f := newFixture(t, pipeline.Options{})
	in := reportInput()
	in.Location = nil

	_, err := f.p.Submit(context.Background(), in, nil)

	require.ErrorIs(t, err, domain.ErrInvalidLocation)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.ReportsSubmitted.WithLabelValues("invalid")))
	assert.ErrorIs(t, f.store.Err(), domain.ErrInvalidLocation)
	assert.Equal(t, domain.ErrInvalidLocation.Error(), f.p.Status().Error)
}

func TestSubmit_GatewayFailure(t *testing.T) {
	f := newFixture(t, pipeline.Options{})
	f.gateway.EXPECT().SubmitReport(gomock.Any(), gomock.Any()).Return(domain.ReportAck{}, &domain.NetworkError{
		Kind:   domain.NetworkTimeout,
		Detail: "POST /api/reports/v1",
	})

	_, err := f.p.Submit(context.Background(), reportInput(), nil)

	var netErr *domain.NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, domain.NetworkTimeout, netErr.Kind)
	assert.ErrorIs(t, f.store.Err(), err)
}

func TestSubmit_RefetchFailureDoesNotFailSubmit(t *testing.T) {
	f := newFixture(t, pipeline.Options{})
	f.gateway.EXPECT().SubmitReport(gomock.Any(), gomock.Any()).Return(domain.ReportAck{}, nil)
	f.gateway.EXPECT().FetchIncidents(gomock.Any(), gomock.Any()).Return(nil, errors.New("boom"))

	alert, err := f.p.Submit(context.Background(), reportInput(), nil)

	require.NoError(t, err)
	assert.Equal(t, "Kitchen fire", alert.Title)
	assert.Equal(t, store.StateFailed, f.store.State())
}

// --- queries and mutations ---

func loadedFixture(t *testing.T, opts pipeline.Options) *fixture {
	t.Helper()
	f := newFixture(t, opts)
	f.gateway.EXPECT().FetchIncidents(gomock.Any(), gomock.Any()).Return(sampleBatch(), nil)
	require.NoError(t, f.p.Fetch(context.Background(), nil))
	return f
}

func TestFiltered_RadiusUsesCurrentLocation(t *testing.T) {
	f := loadedFixture(t, pipeline.Options{Locations: domain.NewStaticLocation(central)})

	got := f.p.Filtered(store.Filter{RadiusKm: ptr(5.0)})

	assert.Equal(t, []string{"incident DISASTER", "incident FIRE"}, titles(got))
}

func TestFiltered_RadiusWithoutAnyCenterIsIgnored(t *testing.T) {
	f := loadedFixture(t, pipeline.Options{})

	assert.Len(t, f.p.Filtered(store.Filter{RadiusKm: ptr(1.0)}), 3)
}

func TestSorted(t *testing.T) {
	f := loadedFixture(t, pipeline.Options{Locations: domain.NewStaticLocation(central)})

	assert.Equal(t, []string{"incident FIRE", "incident DISASTER", "incident CRIME"},
		titles(f.p.Sorted(store.SortDistance, nil)))
	assert.Equal(t, []string{"incident DISASTER", "incident FIRE", "incident CRIME"},
		titles(f.p.Sorted(store.SortDistance, &causewayBay)))
	assert.Equal(t, []string{"incident CRIME", "incident DISASTER", "incident FIRE"},
		titles(f.p.Sorted(store.SortRecency, nil)))
}

func TestQuery(t *testing.T) {
	f := loadedFixture(t, pipeline.Options{})

	got := f.p.Query(store.Filter{Center: &central, RadiusKm: ptr(5.0)}, store.SortDistance)

	assert.Equal(t, []string{"incident FIRE", "incident DISASTER"}, titles(got))
}

func TestIncrementReportCount(t *testing.T) {
	f := loadedFixture(t, pipeline.Options{})
	target := f.p.CurrentAlerts()[0]

	n, err := f.p.IncrementReportCount(target.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	before := f.p.CurrentAlerts()
	_, err = f.p.IncrementReportCount(uuid.New())
	require.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, before, f.p.CurrentAlerts())
}

func TestRemoveAndGet(t *testing.T) {
	f := loadedFixture(t, pipeline.Options{})
	target := f.p.CurrentAlerts()[0]

	got, err := f.p.Get(target.ID)
	require.NoError(t, err)
	assert.Equal(t, target.Title, got.Title)

	require.NoError(t, f.p.Remove(target.ID))
	_, err = f.p.Get(target.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, f.p.Remove(target.ID), domain.ErrNotFound)
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.AlertsCurrent))
}

func TestUpdateAlert(t *testing.T) {
	f := loadedFixture(t, pipeline.Options{})
	target := f.p.CurrentAlerts()[0]
	target.Title = "Updated"

	require.NoError(t, f.p.UpdateAlert(target))
	got, _ := f.p.Get(target.ID)
	assert.Equal(t, "Updated", got.Title)

	target.ID = uuid.New()
	assert.ErrorIs(t, f.p.UpdateAlert(target), domain.ErrNotFound)
}

func TestUpdateAlert_Invalid(t *testing.T) {
	f := loadedFixture(t, pipeline.Options{})
	before := f.p.CurrentAlerts()[0]

	bad := before
	bad.ReportCount = 0
	bad.Title = ""
	bad.Severity = "bogus"
	assert.ErrorIs(t, f.p.UpdateAlert(bad), domain.ErrInvalidAlert)

	got, err := f.p.Get(before.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.ReportCount)
	assert.Equal(t, before.Title, got.Title)
	assert.Equal(t, before.Severity, got.Severity)
}

// --- refresh loop ---

func TestRun_RefreshesOnTicker(t *testing.T) {
	fc := clockwork.NewFakeClock()
	f := newFixture(t, pipeline.Options{RefreshInterval: time.Minute, Clock: fc})

	fetched := make(chan struct{}, 4)
	f.gateway.EXPECT().FetchIncidents(gomock.Any(), gomock.Any()).DoAndReturn(
		func(context.Context, *bool) ([]domain.RawIncident, error) {
			fetched <- struct{}{}
			return sampleBatch(), nil
		}).Times(2)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.p.Run(ctx) }()

	<-fetched
	require.NoError(t, fc.BlockUntilContext(ctx, 1))
	fc.Advance(time.Minute)
	<-fetched

	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, 0.0, testutil.ToFloat64(f.metrics.RefreshRunning))
}

func TestRun_SingleFetchWithoutInterval(t *testing.T) {
	f := newFixture(t, pipeline.Options{})
	f.gateway.EXPECT().FetchIncidents(gomock.Any(), gomock.Any()).Return(nil, errors.New("down"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.p.Run(ctx) }()

	require.Eventually(t, func() bool { return f.store.State() == store.StateFailed }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
}
