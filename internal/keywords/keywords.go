// Package keywords holds the ordered keyword tables the agent uses to classify
// user and agent messages. All matching is case-insensitive substring containment.
package keywords

import "strings"

// Class is a pattern-routing category for a user message.
type Class string

const (
	ClassNone    Class = ""
	ClassCost    Class = "cost"
	ClassBanking Class = "banking"
	ClassUrgency Class = "urgency"
)

// classTable is evaluated in order; the first class with a matching keyword wins.
var classTable = []struct {
	class Class
	words []string
}{
	{ClassCost, []string{"cost", "price", "how much", "expensive", "pricing"}},
	{ClassBanking, []string{"bank", "banking", "account", "payment"}},
	{ClassUrgency, []string{"urgent", "asap", "quickly", "fast", "immediate"}},
}

var (
	// Decision words gate the consultation offer.
	Decision = []string{"cost", "price", "how much", "timeline", "when", "process", "bank", "banking"}

	// EarlyCost is the cost test used by the detailed_cost_question scenario.
	EarlyCost = []string{"cost", "price"}

	// EarlyBanking is the banking test used by the banking_requirements scenario.
	EarlyBanking = []string{"bank", "banking", "account"}

	// Jurisdictions counted by the multiple_jurisdictions scenario.
	Jurisdictions = []string{"singapore", "hong kong", "uk", "usa", "florida", "new mexico"}
)

// Classify returns the pattern class of msg, honouring the cost, banking,
// urgency precedence.
func Classify(msg string) Class {
	lower := strings.ToLower(msg)
	for _, row := range classTable {
		if containsAnyLower(lower, row.words) {
			return row.class
		}
	}
	return ClassNone
}

// PatternKey maps a class to its response_patterns key.
func PatternKey(c Class) string {
	switch c {
	case ClassCost:
		return "cost_inquiry"
	case ClassBanking:
		return "banking_inquiry"
	case ClassUrgency:
		return "urgency_response"
	default:
		return ""
	}
}

// ContainsAny reports whether msg contains any of words, ignoring case.
func ContainsAny(msg string, words []string) bool {
	return containsAnyLower(strings.ToLower(msg), words)
}

// CountMatches returns how many of words occur in msg, ignoring case.
func CountMatches(msg string, words []string) int {
	lower := strings.ToLower(msg)
	n := 0
	for _, w := range words {
		if strings.Contains(lower, strings.ToLower(w)) {
			n++
		}
	}
	return n
}

func containsAnyLower(lower string, words []string) bool {
	for _, w := range words {
		if strings.Contains(lower, strings.ToLower(w)) {
			return true
		}
	}
	return false
}

// Booking sentinels. These tokens are the wire contract between agent replies
// and outcome analysis and must not change.
const (
	CalendarToken = "CALENDLY_LINK"
	EmailToken    = "EMAIL"
)

// ContainsBookingMarker reports whether text carries a booking offer.
func ContainsBookingMarker(text string) bool {
	upper := strings.ToUpper(text)
	return strings.Contains(upper, CalendarToken) || strings.Contains(upper, EmailToken)
}

var consultationWords = []string{"CONSULTATION", "EXPERTS", "CONSULTANTS"}

// MentionsConsultation reports whether an agent reply proposed a consultation.
func MentionsConsultation(text string) bool {
	upper := strings.ToUpper(text)
	for _, w := range consultationWords {
		if strings.Contains(upper, w) {
			return true
		}
	}
	return false
}
