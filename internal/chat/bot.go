// Package chat implements the keyword-matched assistant that answers
// questions about reporting and viewing alerts.
package chat

import (
	"strings"

	"github.com/couchcryptid/citizen-alerts-service/internal/domain"
)

const defaultCardLocation = "Central, Hong Kong"

// AlertCard is a suggested alert derived from a message with photos.
type AlertCard struct {
	Title       string          `json:"title"`
	Location    string          `json:"location"`
	Description string          `json:"description"`
	Severity    domain.Severity `json:"severity"`
}

// Reply is the assistant's answer to one message.
type Reply struct {
	Content      string     `json:"content"`
	QuickReplies []string   `json:"quickReplies,omitempty"`
	AlertCard    *AlertCard `json:"alertCard,omitempty"`
}

// Keyword sets are matched as lowercase substrings.
var (
	dangerKeywords    = []string{"knife", "danger", "emergency", "attack", "naked", "running"}
	helpKeywords      = []string{"help", "도움말"}
	reportKeywords    = []string{"report", "신고"}
	alertsKeywords    = []string{"alerts", "알림"}
	emergencyKeywords = []string{"emergency", "급"}
	thanksKeywords    = []string{"thanks", "감사", "고마워"}
)

// knownPlaces maps a lowercase keyword to its display name, in match order.
var knownPlaces = []struct{ keyword, name string }{
	{"central", "Central"},
	{"queen's road", "Queen's Road"},
	{"the center", "The Center"},
	{"admiralty", "Admiralty"},
	{"causeway bay", "Causeway Bay"},
}

const (
	helpText = `Hello! I'm the Citizen Alert assistant. How can I help you?

Available commands:
- "report" - Reporting guide
- "alerts" - View recent alerts
- "help" - Help guide
- "nearby" - View alerts near you`

	reportText = `How to report:

1. Choose the incident type (fire, traffic, emergency, etc.)
2. Choose a location (current or manual)
3. Add photos and a description
4. Submit your report

For emergencies, call 999 directly!`

	alertsText = `To view recent alerts:

- Browse them on the map or as a list
- Filter by type to see specific alerts
- Sort by distance to see what is nearby`

	emergencyText = `Emergency report

For urgent situations, call immediately:

999 (Fire, Medical)
999 (Police)

Also report here to alert people nearby.`

	whatHappenedText = "I can help you check recent incidents. Try asking about specific locations or types of alerts."

	thanksText = "You're welcome! Feel free to ask if you need more help."

	fallbackText = `I'm sorry, I didn't understand that.

Try these commands:
- "help" - Usage guide
- "report" - Reporting guide
- "alerts" - How to view alerts`

	welcomeText = `Hello! I'm the Citizen Alert assistant.

Type "help" if you need assistance.`
)

// Respond answers a single message. imageCount is the number of photos
// attached to it; photos plus a danger keyword produce an alert card.
func Respond(text string, imageCount int) Reply {
	lower := strings.ToLower(text)

	if imageCount > 0 && containsAny(lower, dangerKeywords) {
		title := alertTitle(lower)
		location, ok := extractLocation(lower)
		if !ok {
			location = defaultCardLocation
		}
		return Reply{
			Content:      title,
			QuickReplies: []string{"Did I get it right?", "Need more info"},
			AlertCard: &AlertCard{
				Title:       title,
				Location:    location,
				Description: text,
				Severity:    domain.SeverityHigh,
			},
		}
	}

	switch {
	case containsAny(lower, helpKeywords):
		return Reply{Content: helpText}
	case containsAny(lower, reportKeywords):
		return Reply{Content: reportText}
	case containsAny(lower, alertsKeywords):
		return Reply{Content: alertsText}
	case containsAny(lower, emergencyKeywords):
		return Reply{Content: emergencyText}
	case strings.Contains(lower, "what") && strings.Contains(lower, "happen"):
		return Reply{
			Content:      whatHappenedText,
			QuickReplies: []string{"Show nearby alerts", "Report an incident"},
		}
	case containsAny(lower, thanksKeywords):
		return Reply{Content: thanksText}
	default:
		return Reply{Content: fallbackText}
	}
}

func alertTitle(lower string) string {
	switch {
	case containsAny(lower, []string{"knife", "naked", "running"}):
		place, ok := extractLocation(lower)
		if !ok {
			place = "The Center"
		}
		return "Man with knife spotted at " + place
	case strings.Contains(lower, "fire"):
		return "Fire breakout detected"
	case strings.Contains(lower, "traffic"):
		return "Traffic incident reported"
	default:
		return "Incident reported"
	}
}

func extractLocation(lower string) (string, bool) {
	for _, p := range knownPlaces {
		if strings.Contains(lower, p.keyword) {
			return p.name, true
		}
	}
	return "", false
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
