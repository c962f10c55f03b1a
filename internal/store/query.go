package store

import (
	"fmt"
	"sort"
	"strings"

	"github.com/couchcryptid/citizen-alerts-service/internal/domain"
)

// SortKey selects an ordering for Sort.
type SortKey string

const (
	SortRecency  SortKey = "recency"
	SortDistance SortKey = "distance"
	SortSeverity SortKey = "severity"
)

// ParseSortKey validates a sort key. An empty string means recency.
func ParseSortKey(s string) (SortKey, error) {
	switch SortKey(strings.ToLower(strings.TrimSpace(s))) {
	case "", SortRecency:
		return SortRecency, nil
	case SortDistance:
		return SortDistance, nil
	case SortSeverity:
		return SortSeverity, nil
	default:
		return "", fmt.Errorf("unknown sort key %q", s)
	}
}

// Filter narrows a set of alerts. Zero-valued fields do not filter.
type Filter struct {
	Type     domain.AlertType
	RadiusKm *float64
	Center   *domain.Location
	Text     string
}

// Apply runs every configured filter in turn. A radius without a center is
// ignored.
func (f Filter) Apply(alerts []domain.Alert) []domain.Alert {
	out := FilterByType(alerts, f.Type)
	if f.RadiusKm != nil && f.Center != nil {
		out = FilterByRadius(out, *f.Center, *f.RadiusKm)
	}
	return FilterByText(out, f.Text)
}

// FilterByType keeps alerts of exactly type t. An empty t keeps everything.
func FilterByType(alerts []domain.Alert, t domain.AlertType) []domain.Alert {
	if t == "" {
		return copyAlerts(alerts)
	}
	out := make([]domain.Alert, 0, len(alerts))
	for _, a := range alerts {
		if a.Type == t {
			out = append(out, a)
		}
	}
	return out
}

// FilterByRadius keeps alerts whose great-circle distance from center is at
// most radiusKm.
func FilterByRadius(alerts []domain.Alert, center domain.Location, radiusKm float64) []domain.Alert {
	out := make([]domain.Alert, 0, len(alerts))
	for _, a := range alerts {
		if domain.DistanceKm(center, a.Location) <= radiusKm {
			out = append(out, a)
		}
	}
	return out
}

// FilterByText keeps alerts whose title or description contains query,
// ignoring case. An empty query keeps everything.
func FilterByText(alerts []domain.Alert, query string) []domain.Alert {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return copyAlerts(alerts)
	}
	out := make([]domain.Alert, 0, len(alerts))
	for _, a := range alerts {
		if strings.Contains(strings.ToLower(a.Title), query) ||
			strings.Contains(strings.ToLower(a.Description), query) {
			out = append(out, a)
		}
	}
	return out
}

// Sort returns a sorted copy of alerts. Distance ordering needs ref; without
// one it falls back to recency.
func Sort(alerts []domain.Alert, key SortKey, ref *domain.Location) []domain.Alert {
	out := copyAlerts(alerts)

	switch {
	case key == SortDistance && ref != nil:
		center := *ref
		sort.SliceStable(out, func(i, j int) bool {
			di := domain.DistanceKm(center, out[i].Location)
			dj := domain.DistanceKm(center, out[j].Location)
			if di != dj {
				return di < dj
			}
			return out[i].CreatedAt.After(out[j].CreatedAt)
		})
	case key == SortSeverity:
		sort.SliceStable(out, func(i, j int) bool {
			ri, rj := out[i].Severity.Rank(), out[j].Severity.Rank()
			if ri != rj {
				return ri > rj
			}
			return out[i].CreatedAt.After(out[j].CreatedAt)
		})
	default:
		domain.SortByRecency(out)
	}
	return out
}

func copyAlerts(alerts []domain.Alert) []domain.Alert {
	out := make([]domain.Alert, len(alerts))
	copy(out, alerts)
	return out
}
