// Package domain models community incident alerts and the rules that turn
// backend incident records into them.
//
// # Backend Data Conventions
//
// Incidents arrive from the incidents service as loosely-typed JSON. Every
// field is optional; records are accepted or dropped individually and a bad
// record never fails the batch.
//
// Coordinates:
//
//	Preferred: a "locationCoordinates" object {"latitude": 22.28, "longitude": 114.15}.
//	Legacy:    a "location" string, either WKT "POINT(<lon> <lat>)" (longitude first)
//	           or a plain "<lat>,<lon>" pair (latitude first). See [ParseLocation].
//	A record without a valid coordinate pair is skipped. Latitude must be within
//	[-90, 90] and longitude within [-180, 180].
//
// Timestamps:
//
//	ISO-8601 with an optional fractional-seconds part, e.g. "2024-04-26T15:10:00.123Z".
//	Unparseable values are treated as absent. See [ParseTimestamp].
//
// Categories:
//
//	The backend knows three categories (CRIME, FIRE, DISASTER), matched
//	case-insensitively. Anything else, including a missing category, maps to
//	[AlertTypeOther]. Outgoing reports use a separate table: weather reports are
//	sent as DISASTER and every unmapped type as "ETC". The two directions are
//	not inverses of each other.
//
// Severity classification:
//
//	Backend records carry urgency and credibility scores (0-100 expected,
//	unbounded in practice). They are blended as 0.7*urgency + 0.3*credibility:
//
//	  <25 Low | <60 Medium | <85 High | ≥85 Critical
//
//	Outgoing reports invert the mapping with fixed constants, see [UrgencyFor]
//	and [CredibilityFor].
//
// # ID Generation
//
// Alerts backed by a backend incident get a name-based (SHA-1) UUID derived
// from the incident id, so refetching the same incident yields the same alert
// id. Records without an incident id get a random UUID. See [alertID].
package domain
