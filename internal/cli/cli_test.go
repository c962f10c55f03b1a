package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/citizen-alerts-service/internal/chat"
	"github.com/couchcryptid/citizen-alerts-service/internal/domain"
	"github.com/couchcryptid/citizen-alerts-service/internal/observability"
)

const incidentsJSON = `[
  {"incidentId": 1, "type": "FIRE", "locationCoordinates": {"latitude": 22.2819, "longitude": 114.1577},
   "locationDescription": "Central District", "urgency": 90, "credibility": 90,
   "firstReportedAt": "2025-10-25T09:00:00Z", "description": "Smoke near Central MTR"},
  {"incidentId": 2, "type": "CRIME", "locationCoordinates": {"latitude": 22.2974, "longitude": 114.1720},
   "urgency": 30, "credibility": 30, "firstReportedAt": "2025-10-25T10:00:00Z",
   "description": "Suspicious person"},
  {"incidentId": 3, "type": "DISASTER", "locationCoordinates": {"latitude": null, "longitude": 114.1},
   "urgency": 50, "credibility": 50},
  {"incidentId": 4, "type": "WEATHER", "location": "POINT(114.1694 22.3193)",
   "urgency": 10, "credibility": 10, "firstReportedAt": "2025-10-25T08:00:00Z"},
  {"incidentId": 5, "type": "FIRE", "location": "somewhere downtown", "urgency": 10, "credibility": 10}
]`

func TestMain(m *testing.M) {
	newMetrics = observability.NewMetricsForTesting
	os.Exit(m.Run())
}

func run(t *testing.T, stdin io.Reader, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	if stdin != nil {
		cmd.SetIn(stdin)
	}
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

type backendStub struct {
	mu          sync.Mutex
	submissions []domain.ReportSubmission
	queries     []string
}

func newBackend(t *testing.T) *backendStub {
	t.Helper()
	b := &backendStub{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/incidents":
			b.queries = append(b.queries, r.URL.RawQuery)
			_, _ = w.Write([]byte(incidentsJSON))
		case "/api/reports/v1":
			var sub domain.ReportSubmission
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&sub))
			b.submissions = append(b.submissions, sub)
			_, _ = w.Write([]byte(`{"reportId": 9, "incidentId": 77, "credibility": 70, "timestamp": "2025-10-25T11:00:00Z"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	t.Setenv("BACKEND_BASE_URL", srv.URL)
	return b
}

func TestVersion(t *testing.T) {
	out, err := run(t, nil, "version")
	require.NoError(t, err)
	assert.Equal(t, "citizen-alerts dev\n", out)
}

func TestConfigShow(t *testing.T) {
	t.Setenv("BACKEND_BASE_URL", "http://incidents.internal:9000/")
	t.Setenv("MAPBOX_TOKEN", "pk.secret")
	t.Setenv("REFRESH_INTERVAL", "2m")

	out, err := run(t, nil, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "backend_base_url: http://incidents.internal:9000\n")
	assert.Contains(t, out, "refresh_interval: 2m0s\n")
	assert.Contains(t, out, "mapbox_enabled: true\n")
	assert.NotContains(t, out, "pk.secret")
}

func TestConfigShow_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("backend_base_url: http://from-file:8080\nlog_format: text\n"), 0o600))

	out, err := run(t, nil, "--config", path, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "backend_base_url: http://from-file:8080\n")
	assert.Contains(t, out, "log_format: text\n")
}

func TestConfigShow_Invalid(t *testing.T) {
	t.Setenv("BACKEND_TIMEOUT", "soon")
	_, err := run(t, nil, "config", "show")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BACKEND_TIMEOUT")
}

func TestNormalize_Text(t *testing.T) {
	path := filepath.Join(t.TempDir(), "incidents.json")
	require.NoError(t, os.WriteFile(path, []byte(incidentsJSON), 0o600))

	out, err := run(t, nil, "normalize", "--file", path)
	require.NoError(t, err)

	assert.Contains(t, out, "received:   5\n")
	assert.Contains(t, out, "normalized: 3 (1 verified)\n")
	assert.Contains(t, out, "missing_coordinates")
	assert.Contains(t, out, "unparseable_location")
}

func TestNormalize_JSONFromStdin(t *testing.T) {
	out, err := run(t, strings.NewReader(incidentsJSON), "normalize", "--file", "-", "-o", "json")
	require.NoError(t, err)

	var s normalizeSummary
	require.NoError(t, json.Unmarshal([]byte(out), &s))
	assert.Equal(t, 5, s.Received)
	assert.Equal(t, 3, s.Normalized)
	assert.Equal(t, map[string]int{"missing_coordinates": 1, "unparseable_location": 1}, s.Skipped)
	assert.Equal(t, 1, s.ByType[domain.AlertTypeFire])
	assert.Equal(t, 1, s.ByType[domain.AlertTypeCrime])
	assert.Equal(t, 1, s.ByType[domain.AlertTypeOther])
	assert.Equal(t, 1, s.BySeverity[domain.SeverityCritical])
	assert.Equal(t, 1, s.BySeverity[domain.SeverityMedium])
	assert.Equal(t, 1, s.BySeverity[domain.SeverityLow])
}

func TestNormalize_Alerts(t *testing.T) {
	out, err := run(t, strings.NewReader(incidentsJSON), "normalize", "-f", "-", "-o", "alerts")
	require.NoError(t, err)

	var alerts []domain.Alert
	require.NoError(t, json.Unmarshal([]byte(out), &alerts))
	require.Len(t, alerts, 3)
	// Newest first.
	assert.Equal(t, domain.AlertTypeCrime, alerts[0].Type)
	assert.Equal(t, domain.AlertTypeFire, alerts[1].Type)
	assert.Equal(t, domain.AlertTypeOther, alerts[2].Type)
	assert.InDelta(t, 22.3193, alerts[2].Location.Latitude, 1e-9)
}

func TestNormalize_Errors(t *testing.T) {
	_, err := run(t, nil, "normalize")
	require.Error(t, err, "--file is required")

	_, err = run(t, nil, "normalize", "--file", filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)

	_, err = run(t, strings.NewReader(`{"not": "an array"}`), "normalize", "--file", "-")
	require.Error(t, err)
}

func TestAlerts_JSON(t *testing.T) {
	b := newBackend(t)

	out, err := run(t, nil, "alerts", "--sort", "severity", "-o", "json")
	require.NoError(t, err)

	var alerts []domain.Alert
	require.NoError(t, json.Unmarshal([]byte(out), &alerts))
	require.Len(t, alerts, 3)
	assert.Equal(t, domain.SeverityCritical, alerts[0].Severity)
	assert.Equal(t, domain.SeverityLow, alerts[2].Severity)
	assert.Equal(t, []string{"isOngoing=true"}, b.queries)
}

func TestAlerts_Filtered(t *testing.T) {
	b := newBackend(t)

	out, err := run(t, nil, "alerts", "--ongoing", "any", "--radius", "1", "--lat", "22.2819", "--lon", "114.1577")
	require.NoError(t, err)

	assert.Contains(t, out, "SEVERITY")
	assert.Contains(t, out, "Central District")
	assert.NotContains(t, out, "Suspicious person")
	assert.Equal(t, []string{""}, b.queries)
}

func TestAlerts_BadFlags(t *testing.T) {
	newBackend(t)

	for _, args := range [][]string{
		{"alerts", "--lat", "22.3"},
		{"alerts", "--type", "volcano"},
		{"alerts", "--sort", "name"},
		{"alerts", "--ongoing", "sometimes"},
		{"alerts", "-o", "xml"},
	} {
		_, err := run(t, nil, args...)
		assert.Error(t, err, args)
	}
}

func TestReport(t *testing.T) {
	b := newBackend(t)

	out, err := run(t, nil, "report",
		"--type", "fire", "--severity", "critical",
		"--lat", "22.2819", "--lon", "114.1577", "--address", "Central",
		"--title", "Smoke from rooftop",
	)
	require.NoError(t, err)

	var alert domain.Alert
	require.NoError(t, json.Unmarshal([]byte(out), &alert))
	assert.Equal(t, "Smoke from rooftop", alert.Title)
	require.NotNil(t, alert.IncidentID)
	assert.Equal(t, int64(77), *alert.IncidentID)
	assert.True(t, alert.IsVerified)

	require.Len(t, b.submissions, 1)
	sub := b.submissions[0]
	assert.Equal(t, "FIRE", sub.IncidentType)
	assert.Equal(t, 95, sub.Urgency)
	assert.Equal(t, 90, sub.Credibility)
	assert.Equal(t, "Central", sub.LocationDescription)
	// The accepted report is followed by a refetch.
	assert.Len(t, b.queries, 1)
}

func TestReport_DefaultLocation(t *testing.T) {
	b := newBackend(t)
	t.Setenv("DEFAULT_LAT", "22.2783")
	t.Setenv("DEFAULT_LON", "114.1653")

	_, err := run(t, nil, "report", "--incident-id", "12")
	require.NoError(t, err)

	require.Len(t, b.submissions, 1)
	sub := b.submissions[0]
	assert.InDelta(t, 22.2783, sub.LocationCoordinates.Latitude, 1e-9)
	require.NotNil(t, sub.IncidentID)
	assert.Equal(t, int64(12), *sub.IncidentID)
	assert.Empty(t, sub.IncidentType)
}

func TestReport_NoLocation(t *testing.T) {
	b := newBackend(t)

	_, err := run(t, nil, "report", "--type", "fire")
	require.ErrorIs(t, err, domain.ErrInvalidLocation)
	assert.Empty(t, b.submissions)
}

func TestRunChat(t *testing.T) {
	in := strings.NewReader("help\n\n/photo knife near Admiralty\n/clear\n/quit\nthanks\n")
	var out bytes.Buffer
	conv := chat.NewConversation(nil)

	require.NoError(t, runChat(in, &out, conv))

	s := out.String()
	assert.Contains(t, s, "Available commands")
	assert.Contains(t, s, "[High] Man with knife spotted at Admiralty @ Admiralty")
	assert.Contains(t, s, "  > Did I get it right?")
	assert.NotContains(t, s, "You're welcome")
	assert.Len(t, conv.Messages(), 1, "history cleared")
}

func TestRunChat_EOF(t *testing.T) {
	var out bytes.Buffer
	conv := chat.NewConversation(nil)
	require.NoError(t, runChat(strings.NewReader("what happened?"), &out, conv))
	assert.Contains(t, out.String(), "Show nearby alerts")
	assert.Len(t, conv.Messages(), 3)
}
