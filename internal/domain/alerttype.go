package domain

import "strings"

// AlertType is the client-side incident taxonomy.
type AlertType string

const (
	AlertTypeFire         AlertType = "fire"
	AlertTypeTraffic      AlertType = "traffic"
	AlertTypeEmergency    AlertType = "emergency"
	AlertTypeCrime        AlertType = "crime"
	AlertTypeDisaster     AlertType = "disaster"
	AlertTypePublicSafety AlertType = "public_safety"
	AlertTypeWeather      AlertType = "weather"
	AlertTypeOther        AlertType = "other"
)

// fallbackBackendCategory is sent for report types with no backend counterpart.
const fallbackBackendCategory = "ETC"

var alertTypeLabels = map[AlertType]string{
	AlertTypeFire:         "Fire",
	AlertTypeTraffic:      "Traffic Accident",
	AlertTypeEmergency:    "Emergency",
	AlertTypeCrime:        "Crime",
	AlertTypeDisaster:     "Disaster",
	AlertTypePublicSafety: "Public Safety",
	AlertTypeWeather:      "Weather Alert",
	AlertTypeOther:        "Other",
}

// AlertTypes lists every alert type in display order.
func AlertTypes() []AlertType {
	return []AlertType{
		AlertTypeFire, AlertTypeTraffic, AlertTypeEmergency, AlertTypeCrime,
		AlertTypeDisaster, AlertTypePublicSafety, AlertTypeWeather, AlertTypeOther,
	}
}

// Label returns the display label, e.g. "Traffic Accident".
func (t AlertType) Label() string {
	if l, ok := alertTypeLabels[t]; ok {
		return l
	}
	return alertTypeLabels[AlertTypeOther]
}

// Valid reports whether t is a known alert type.
func (t AlertType) Valid() bool {
	_, ok := alertTypeLabels[t]
	return ok
}

// ParseAlertType accepts either a slug ("public_safety") or a display label
// ("Public Safety"), case-insensitively.
func ParseAlertType(s string) (AlertType, bool) {
	s = strings.TrimSpace(s)
	for _, t := range AlertTypes() {
		if strings.EqualFold(s, string(t)) || strings.EqualFold(s, t.Label()) {
			return t, true
		}
	}
	return "", false
}

// AlertTypeFromBackend maps a backend category to an alert type.
// Only CRIME, FIRE and DISASTER are recognized; everything else is "other".
func AlertTypeFromBackend(category *string) AlertType {
	if category == nil {
		return AlertTypeOther
	}
	switch strings.ToUpper(strings.TrimSpace(*category)) {
	case "CRIME":
		return AlertTypeCrime
	case "FIRE":
		return AlertTypeFire
	case "DISASTER":
		return AlertTypeDisaster
	default:
		return AlertTypeOther
	}
}

// BackendCategory maps an alert type to the category sent with a new report.
// Weather collapses into DISASTER; types without a backend category use "ETC".
func BackendCategory(t AlertType) string {
	switch t {
	case AlertTypeCrime:
		return "CRIME"
	case AlertTypeFire:
		return "FIRE"
	case AlertTypeDisaster, AlertTypeWeather:
		return "DISASTER"
	default:
		return fallbackBackendCategory
	}
}
