package domain

import "strings"

const (
	// reportVerifiedThreshold is the echoed credibility a freshly submitted
	// report must exceed for its alert to be shown as verified.
	reportVerifiedThreshold = 50

	userReportType = "user"
)

// WithDefaults fills unset type, severity and anonymity with Other, Medium
// and anonymous.
func (in UserReportInput) WithDefaults() UserReportInput {
	if !in.Type.Valid() {
		in.Type = AlertTypeOther
	}
	if !in.Severity.Valid() {
		in.Severity = SeverityMedium
	}
	if !in.Anonymity.Valid() {
		in.Anonymity = AnonymityAnonymous
	}
	return in
}

// BuildSubmission composes the backend payload for a user report. The report
// location comes from the input, or from provider when the input has none;
// ErrInvalidLocation is returned when neither yields a valid position.
//
// When existingIncidentID is set the report is attached to that incident and
// no category is sent.
func BuildSubmission(in UserReportInput, provider LocationProvider, existingIncidentID *int64) (ReportSubmission, Location, error) {
	in = in.WithDefaults()

	var base Location
	switch {
	case in.Location != nil:
		base = *in.Location
	case provider != nil:
		cur, ok := provider.Current()
		if !ok {
			return ReportSubmission{}, Location{}, ErrInvalidLocation
		}
		base = cur
	default:
		return ReportSubmission{}, Location{}, ErrInvalidLocation
	}
	if !ValidCoordinates(base.Latitude, base.Longitude) {
		return ReportSubmission{}, Location{}, ErrInvalidLocation
	}

	locationDescription := strings.TrimSpace(in.LocationDescription)
	if locationDescription == "" && in.Location != nil {
		locationDescription = in.Location.Address
	}
	final := Location{
		Latitude:  base.Latitude,
		Longitude: base.Longitude,
		Address:   locationDescription,
		City:      base.City,
	}

	sub := ReportSubmission{
		LocationCoordinates: ReportCoordinates{Latitude: final.Latitude, Longitude: final.Longitude},
		LocationDescription: locationDescription,
		Credibility:         CredibilityFor(in.Severity),
		Urgency:             UrgencyFor(in.Severity),
		ReportType:          userReportType,
		Description:         strings.TrimSpace(in.Description),
		IncidentID:          copyInt64(existingIncidentID),
	}
	if existingIncidentID == nil {
		sub.IncidentType = BackendCategory(in.Type)
	}
	return sub, final, nil
}

// AlertFromAck builds the locally visible alert for an accepted report.
func AlertFromAck(in UserReportInput, loc Location, ack ReportAck, existingIncidentID *int64) Alert {
	in = in.WithDefaults()

	createdAt, ok := parseTimestampPtr(ack.Timestamp)
	if !ok {
		createdAt = clock.Now().UTC()
	}

	incidentID := copyInt64(ack.IncidentID)
	if incidentID == nil {
		incidentID = copyInt64(existingIncidentID)
	}

	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = in.Type.Label()
	}
	description := strings.TrimSpace(in.Description)
	if description == "" && ack.Description != nil {
		description = *ack.Description
	}

	credibility := 0
	if ack.Credibility != nil {
		credibility = *ack.Credibility
	}

	alert := Alert{
		ID:          alertID(incidentID),
		IncidentID:  incidentID,
		Type:        in.Type,
		Title:       title,
		Description: description,
		Location:    loc,
		Severity:    in.Severity,
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
		Photos:      []string{},
		IsVerified:  credibility > reportVerifiedThreshold,
		ReportCount: 1,
	}
	if in.Anonymity != AnonymityAnonymous {
		alert.ReporterID = in.ReporterID
	}
	return alert
}
