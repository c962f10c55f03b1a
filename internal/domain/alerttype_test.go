package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func strPtr(s string) *string { return &s }

func TestAlertTypeFromBackend(t *testing.T) {
	tests := []struct {
		name  string
		input *string
		want  AlertType
	}{
		{"crime", strPtr("CRIME"), AlertTypeCrime},
		{"fire lowercase", strPtr("fire"), AlertTypeFire},
		{"disaster mixed case", strPtr("Disaster"), AlertTypeDisaster},
		{"weather is not a backend category", strPtr("WEATHER"), AlertTypeOther},
		{"fallback code", strPtr("ETC"), AlertTypeOther},
		{"empty", strPtr(""), AlertTypeOther},
		{"missing", nil, AlertTypeOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AlertTypeFromBackend(tt.input))
		})
	}
}

func TestBackendCategory(t *testing.T) {
	tests := []struct {
		input AlertType
		want  string
	}{
		{AlertTypeCrime, "CRIME"},
		{AlertTypeFire, "FIRE"},
		{AlertTypeDisaster, "DISASTER"},
		{AlertTypeWeather, "DISASTER"},
		{AlertTypeTraffic, "ETC"},
		{AlertTypeEmergency, "ETC"},
		{AlertTypePublicSafety, "ETC"},
		{AlertTypeOther, "ETC"},
	}

	for _, tt := range tests {
		t.Run(string(tt.input), func(t *testing.T) {
			assert.Equal(t, tt.want, BackendCategory(tt.input))
		})
	}
}

func TestBackendCategory_NotABijection(t *testing.T) {
	back := AlertTypeFromBackend(strPtr(BackendCategory(AlertTypeWeather)))
	assert.Equal(t, AlertTypeDisaster, back)
}

func TestAlertType_Label(t *testing.T) {
	assert.Equal(t, "Traffic Accident", AlertTypeTraffic.Label())
	assert.Equal(t, "Weather Alert", AlertTypeWeather.Label())
	assert.Equal(t, "Public Safety", AlertTypePublicSafety.Label())
	assert.Equal(t, "Other", AlertType("bogus").Label())
	assert.Len(t, AlertTypes(), 8)
}

func TestParseAlertType(t *testing.T) {
	got, ok := ParseAlertType("public_safety")
	assert.True(t, ok)
	assert.Equal(t, AlertTypePublicSafety, got)

	got, ok = ParseAlertType("traffic accident")
	assert.True(t, ok)
	assert.Equal(t, AlertTypeTraffic, got)

	_, ok = ParseAlertType("flood")
	assert.False(t, ok)
}
