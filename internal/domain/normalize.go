package domain

import (
	"errors"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// ingestVerifiedThreshold is the credibility an incident must exceed to be
// shown as verified when it is fetched.
const ingestVerifiedThreshold = 60

// alertNamespace seeds name-based alert ids for backend incidents.
var alertNamespace = uuid.MustParse("8f1d7c52-4b1e-4f3a-9a57-2c0b6d1e9f40")

// NormalizeResult is the outcome of a batch normalization.
type NormalizeResult struct {
	Alerts  []Alert
	Skipped map[string]int // skip reason -> count
}

// SkippedTotal returns the number of dropped records across all reasons.
func (r NormalizeResult) SkippedTotal() int {
	n := 0
	for _, c := range r.Skipped {
		n += c
	}
	return n
}

// Normalize converts one raw incident into an alert. It fails only when the
// record has no usable position; every other field degrades to a default.
func Normalize(raw RawIncident) (Alert, error) {
	loc, err := incidentLocation(raw)
	if err != nil {
		return Alert{}, err
	}
	if raw.LocationDescription != nil {
		loc.Address = strings.TrimSpace(*raw.LocationDescription)
	}

	alertType := AlertTypeFromBackend(raw.Type)

	createdAt, ok := parseTimestampPtr(raw.FirstReportedAt)
	if !ok {
		createdAt = clock.Now().UTC()
	}
	updatedAt, ok := parseTimestampPtr(raw.LastReportedAt)
	if !ok {
		updatedAt = createdAt
	}

	description := ""
	if raw.Description != nil {
		description = strings.TrimSpace(*raw.Description)
	}
	title := description
	if title == "" {
		title = alertType.Label()
	}

	return Alert{
		ID:          alertID(raw.IncidentID),
		IncidentID:  copyInt64(raw.IncidentID),
		Type:        alertType,
		Title:       title,
		Description: description,
		Location:    loc,
		Severity:    SeverityFromScores(raw.Urgency, raw.Credibility),
		CreatedAt:   createdAt,
		UpdatedAt:   updatedAt,
		Photos:      []string{},
		IsVerified:  floatOrZero(raw.Credibility) > ingestVerifiedThreshold,
		ReportCount: 1,
	}, nil
}

// NormalizeAll normalizes a batch, dropping records that fail and counting
// them by reason. When an incident id repeats, only the record with the
// latest UpdatedAt is kept (the later one on a tie). Surviving alerts are
// sorted by CreatedAt, newest first.
func NormalizeAll(raws []RawIncident, logger *slog.Logger) NormalizeResult {
	result := NormalizeResult{
		Alerts:  make([]Alert, 0, len(raws)),
		Skipped: map[string]int{},
	}
	byIncident := make(map[int64]int, len(raws))

	for i, raw := range raws {
		alert, err := Normalize(raw)
		if err != nil {
			reason := SkipReason(err)
			result.Skipped[reason]++
			logger.Warn("skipping incident",
				"index", i,
				"incident_id", int64OrZero(raw.IncidentID),
				"reason", reason,
			)
			continue
		}
		if alert.UpdatedAt.Before(alert.CreatedAt) {
			logger.Warn("incident updated before it was created",
				"alert_id", alert.ID,
				"created_at", alert.CreatedAt,
				"updated_at", alert.UpdatedAt,
			)
		}

		if alert.IncidentID == nil {
			result.Alerts = append(result.Alerts, alert)
			continue
		}
		prev, seen := byIncident[*alert.IncidentID]
		if !seen {
			byIncident[*alert.IncidentID] = len(result.Alerts)
			result.Alerts = append(result.Alerts, alert)
			continue
		}
		reason := SkipReason(ErrDuplicateIncident)
		result.Skipped[reason]++
		logger.Warn("skipping incident",
			"index", i,
			"incident_id", *alert.IncidentID,
			"reason", reason,
		)
		if !alert.UpdatedAt.Before(result.Alerts[prev].UpdatedAt) {
			result.Alerts[prev] = alert
		}
	}

	SortByRecency(result.Alerts)
	return result
}

// SkipReason returns a short metric-friendly label for a normalization error.
func SkipReason(err error) string {
	switch {
	case errors.Is(err, ErrMissingCoordinates):
		return "missing_coordinates"
	case errors.Is(err, ErrCoordinatesOutOfRange):
		return "invalid_coordinates"
	case errors.Is(err, ErrUnparseableLocation):
		return "unparseable_location"
	case errors.Is(err, ErrDuplicateIncident):
		return "duplicate_incident"
	default:
		return "other"
	}
}

// SortByRecency sorts alerts in place by CreatedAt, newest first. Ties keep
// their input order.
func SortByRecency(alerts []Alert) {
	sort.SliceStable(alerts, func(i, j int) bool {
		return alerts[i].CreatedAt.After(alerts[j].CreatedAt)
	})
}

// incidentLocation prefers the structured coordinate object and falls back
// to the legacy location string only when the object is absent entirely.
func incidentLocation(raw RawIncident) (Location, error) {
	if c := raw.LocationCoordinates; c != nil {
		if c.Latitude == nil || c.Longitude == nil {
			return Location{}, ErrMissingCoordinates
		}
		if !ValidCoordinates(*c.Latitude, *c.Longitude) {
			return Location{}, ErrCoordinatesOutOfRange
		}
		return Location{Latitude: *c.Latitude, Longitude: *c.Longitude}, nil
	}

	if raw.Location != nil && strings.TrimSpace(*raw.Location) != "" {
		loc, ok := ParseLocation(*raw.Location)
		if !ok {
			return Location{}, ErrUnparseableLocation
		}
		return loc, nil
	}

	return Location{}, ErrMissingCoordinates
}

// alertID derives a stable id from the backend incident id, or a random one
// when the incident has none.
func alertID(incidentID *int64) uuid.UUID {
	if incidentID == nil {
		return uuid.New()
	}
	return uuid.NewSHA1(alertNamespace, []byte("incident:"+strconv.FormatInt(*incidentID, 10)))
}

func copyInt64(v *int64) *int64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func int64OrZero(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}
