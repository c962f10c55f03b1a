package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Location is a WGS-84 point with optional human-readable context.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   string  `json:"address,omitempty"`
	City      string  `json:"city,omitempty"`
}

// Alert is the normalized, display-ready representation of an incident.
type Alert struct {
	ID          uuid.UUID `json:"id"`
	IncidentID  *int64    `json:"incidentId,omitempty"`
	Type        AlertType `json:"type"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Location    Location  `json:"location"`
	Severity    Severity  `json:"severity"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	Photos      []string  `json:"photos"`
	IsVerified  bool      `json:"isVerified"`
	ReportCount int       `json:"reportCount"`
	ReporterID  string    `json:"reporterId,omitempty"`
}

// Clone returns a copy of the alert that shares no mutable state with a.
func (a Alert) Clone() Alert {
	if a.IncidentID != nil {
		id := *a.IncidentID
		a.IncidentID = &id
	}
	a.Photos = append([]string(nil), a.Photos...)
	if a.Photos == nil {
		a.Photos = []string{}
	}
	return a
}

// Validate checks the fields every stored alert must carry.
func (a Alert) Validate() error {
	switch {
	case strings.TrimSpace(a.Title) == "":
		return fmt.Errorf("%w: empty title", ErrInvalidAlert)
	case !a.Type.Valid():
		return fmt.Errorf("%w: unknown type %q", ErrInvalidAlert, a.Type)
	case !a.Severity.Valid():
		return fmt.Errorf("%w: unknown severity %q", ErrInvalidAlert, a.Severity)
	case a.ReportCount < 1:
		return fmt.Errorf("%w: report count %d", ErrInvalidAlert, a.ReportCount)
	case !ValidCoordinates(a.Location.Latitude, a.Location.Longitude):
		return fmt.Errorf("%w: %w", ErrInvalidAlert, ErrCoordinatesOutOfRange)
	}
	return nil
}

// Coordinates is the backend's structured coordinate object. Either axis may
// be missing independently.
type Coordinates struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// RawIncident is an incident record as returned by the incidents service.
type RawIncident struct {
	IncidentID          *int64       `json:"incidentId"`
	Type                *string      `json:"type"`
	LocationCoordinates *Coordinates `json:"locationCoordinates"`
	Location            *string      `json:"location,omitempty"` // legacy WKT or "lat,lon" string
	LocationDescription *string      `json:"locationDescription"`
	Urgency             *float64     `json:"urgency"`
	Credibility         *float64     `json:"credibility"`
	IsOngoing           *bool        `json:"isOngoing"`
	FirstReportedAt     *string      `json:"firstReportedAt"`
	LastReportedAt      *string      `json:"lastReportedAt"`
	Description         *string      `json:"description"`
}

// ReportCoordinates is the required coordinate pair on an outbound report.
type ReportCoordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// ReportSubmission is the payload posted to the reports endpoint.
// IncidentType and IncidentID are mutually exclusive.
type ReportSubmission struct {
	LocationCoordinates ReportCoordinates `json:"locationCoordinates"`
	LocationDescription string            `json:"locationDescription,omitempty"`
	IncidentType        string            `json:"incidentType,omitempty"`
	Credibility         int               `json:"credibility"`
	Urgency             int               `json:"urgency"`
	ReportType          string            `json:"reportType"`
	Description         string            `json:"description,omitempty"`
	IncidentID          *int64            `json:"incidentId,omitempty"`
}

// ReportAck is the backend's response to a report submission.
type ReportAck struct {
	ReportID            *int64             `json:"reportId"`
	Type                *string            `json:"type"`
	LocationCoordinates *ReportCoordinates `json:"locationCoordinates"`
	LocationDescription *string            `json:"locationDescription"`
	Credibility         *int               `json:"credibility"`
	Urgency             *int               `json:"urgency"`
	ReportType          *string            `json:"reportType"`
	IncidentID          *int64             `json:"incidentId"`
	Timestamp           *string            `json:"timestamp"`
	Description         *string            `json:"description"`
}

// Anonymity controls whether a reporter identifier is attached to a report.
type Anonymity string

const (
	AnonymityAnonymous Anonymity = "anonymous"
	AnonymityNickname  Anonymity = "nickname"
	AnonymityVerified  Anonymity = "verified"
)

// Valid reports whether a is one of the known anonymity levels.
func (a Anonymity) Valid() bool {
	switch a {
	case AnonymityAnonymous, AnonymityNickname, AnonymityVerified:
		return true
	default:
		return false
	}
}

// Photo is a user-attached image. Photos are accepted on input but never
// uploaded.
type Photo struct {
	Data      []byte `json:"data"`
	Thumbnail []byte `json:"thumbnail,omitempty"`
}

// UserReportInput is what a user fills in when creating a report.
type UserReportInput struct {
	Type                AlertType `json:"type"`
	Title               string    `json:"title"`
	Description         string    `json:"description"`
	Location            *Location `json:"location,omitempty"`
	LocationDescription string    `json:"locationDescription,omitempty"`
	Severity            Severity  `json:"severity"`
	Photos              []Photo   `json:"photos,omitempty"`
	Anonymity           Anonymity `json:"anonymity"`
	ReporterID          string    `json:"reporterId,omitempty"`
}

// LocationProvider supplies the caller's current position, if known.
type LocationProvider interface {
	Current() (Location, bool)
}

// StaticLocation is a LocationProvider with a fixed position.
type StaticLocation struct {
	loc Location
	ok  bool
}

// NewStaticLocation returns a provider that always reports loc.
func NewStaticLocation(loc Location) *StaticLocation {
	return &StaticLocation{loc: loc, ok: true}
}

// Current implements LocationProvider.
func (s *StaticLocation) Current() (Location, bool) {
	if s == nil {
		return Location{}, false
	}
	return s.loc, s.ok
}
