// Package strategy defines the learned strategy record shared by every
// conversation, its defaults, and its durable stores.
package strategy

import (
	"encoding/json"
	"fmt"

	"github.com/MikeSquared-Agency/closer/internal/analyzer"
)

// Response pattern keys.
const (
	PatternCost                   = "cost_inquiry"
	PatternJurisdictionComparison = "jurisdiction_comparison"
	PatternBanking                = "banking_inquiry"
	PatternUrgency                = "urgency_response"
)

// Early link scenarios.
const (
	ScenarioDetailedCost        = "detailed_cost_question"
	ScenarioSpecificTimeline    = "specific_timeline"
	ScenarioMultiJurisdiction   = "multiple_jurisdictions"
	ScenarioBankingRequirements = "banking_requirements"
)

// DefaultLinkTiming is the exchange at which a consultation is offered when no
// strategy says otherwise.
const DefaultLinkTiming = 4

// DefaultConsultationTrigger is appended when escalating and no learned trigger exists.
const DefaultConsultationTrigger = "I will put you in touch with one of our experts. Please, choose your preferred time in the calendar CALENDLY_LINK or via email EMAIL to discuss the details."

// Record is the durable learned strategy. Slices documented as sets keep
// insertion order and hold no duplicates.
type Record struct {
	Version int             `json:"version"`
	Tactics Tactics         `json:"conversation_tactics"`
	Timing  Timing          `json:"timing_strategy"`
	Learned LearnedPatterns `json:"learned_patterns"`
	Metrics Metrics         `json:"success_metrics"`
}

type Tactics struct {
	OpeningPhrases        []string          `json:"opening_phrases"`        // set
	SuccessfulTransitions []string          `json:"successful_transitions"` // set
	ResponsePatterns      map[string]string `json:"response_patterns"`
	ProvenQuestions       []string          `json:"proven_questions"`
	ConsultationTriggers  []string          `json:"consultation_triggers"`
}

type Timing struct {
	LinkTiming         int      `json:"link_timing"`
	UrgencyTriggers    []string `json:"urgency_triggers"`     // set
	EarlyLinkScenarios []string `json:"early_link_scenarios"` // set
	EngagementSignals  []string `json:"engagement_signals"`   // set
}

type LearnedPatterns struct {
	SuccessfulConversations []analyzer.Features `json:"successful_conversations"`
	FailedConversations     []analyzer.Features `json:"failed_conversations"`
	SuccessfulPhrases       []string            `json:"successful_phrases"`     // set
	HighConversionTopics    []string            `json:"high_conversion_topics"` // set
}

type Metrics struct {
	ConversationsCompleted int     `json:"conversations_completed"`
	LinkShared             int     `json:"link_shared"`
	ConsultationsRequested int     `json:"consultations_requested"`
	ConversionRate         float64 `json:"conversion_rate"`
}

// RecomputeConversionRate restores the conversion_rate invariant.
func (m *Metrics) RecomputeConversionRate() {
	if m.ConversationsCompleted > 0 {
		m.ConversionRate = float64(m.LinkShared) / float64(m.ConversationsCompleted) * 100
		return
	}
	m.ConversionRate = 0
}

// EffectiveLinkTiming returns the link timing, falling back to the default
// for unset records.
func (r *Record) EffectiveLinkTiming() int {
	if r == nil || r.Timing.LinkTiming <= 0 {
		return DefaultLinkTiming
	}
	return r.Timing.LinkTiming
}

// ScenarioEnabled reports whether an early link scenario is switched on.
func (r *Record) ScenarioEnabled(name string) bool {
	if r == nil {
		return false
	}
	return Contains(r.Timing.EarlyLinkScenarios, name)
}

// Pattern returns the canned reply for key, if any.
func (r *Record) Pattern(key string) (string, bool) {
	if r == nil || key == "" {
		return "", false
	}
	p, ok := r.Tactics.ResponsePatterns[key]
	return p, ok && p != ""
}

// Clone returns a deep copy.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	data, err := json.Marshal(r)
	if err != nil {
		panic(fmt.Sprintf("strategy: clone marshal: %v", err))
	}
	var out Record
	if err := json.Unmarshal(data, &out); err != nil {
		panic(fmt.Sprintf("strategy: clone unmarshal: %v", err))
	}
	out.normalize()
	return &out
}

// normalize fills nil collections so a decoded record behaves like a default one.
func (r *Record) normalize() {
	if r.Tactics.ResponsePatterns == nil {
		r.Tactics.ResponsePatterns = map[string]string{}
	}
	if r.Learned.SuccessfulConversations == nil {
		r.Learned.SuccessfulConversations = []analyzer.Features{}
	}
	if r.Learned.FailedConversations == nil {
		r.Learned.FailedConversations = []analyzer.Features{}
	}
	if r.Learned.SuccessfulPhrases == nil {
		r.Learned.SuccessfulPhrases = []string{}
	}
	if r.Learned.HighConversionTopics == nil {
		r.Learned.HighConversionTopics = []string{}
	}
	if r.Timing.LinkTiming <= 0 {
		r.Timing.LinkTiming = DefaultLinkTiming
	}
}

// Decode parses a stored record.
func Decode(data []byte) (*Record, error) {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode strategy: %w", err)
	}
	r.normalize()
	return &r, nil
}

// Encode renders a record the way it is stored on disk.
func Encode(r *Record) ([]byte, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode strategy: %w", err)
	}
	return data, nil
}

// Contains reports whether s holds v.
func Contains(s []string, v string) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}

// AddUnique appends values not yet present, preserving order.
func AddUnique(set []string, values ...string) []string {
	for _, v := range values {
		if !Contains(set, v) {
			set = append(set, v)
		}
	}
	return set
}
