// Package analyzer extracts learnable features from a finished conversation.
package analyzer

import (
	"strings"
	"time"
	"unicode/utf8"
)

const (
	engagementWords = 15.0
	maxPhraseLen    = 50
	briefWords      = 5.0
	detailedWords   = 20.0
	inquisitiveQs   = 2
)

// topicRule tags a conversation with Topic when any of Words appear in any turn.
type topicRule struct {
	Topic string
	Words []string
}

// topicTable is evaluated in order, so Topics come out in this order.
var topicTable = []topicRule{
	{"singapore", []string{"singapore"}},
	{"hong_kong", []string{"hong kong", "hk"}},
	{"usa", []string{"usa", "america", "florida", "new mexico"}},
	{"uk", []string{"uk", "britain"}},
	{"malaysia", []string{"malaysia"}},
	{"thailand", []string{"thailand"}},
	{"pricing", []string{"cost", "price"}},
	{"urgency", []string{"timeline", "urgent"}},
	{"banking", []string{"bank"}},
	{"taxation", []string{"tax"}},
}

type flowRule struct {
	Event FlowEvent
	Words []string
}

var flowTable = []flowRule{
	{FlowQuestionAsked, []string{"?"}},
	{FlowConsultationOffered, []string{"calendly", "email"}},
	{FlowBankingDiscussed, []string{"banking", "payment"}},
	{FlowTaxationDiscussed, []string{"tax"}},
	{FlowTimelineDiscussed, []string{"timeline", "week"}},
}

// openers mark agent sentences worth reusing when a conversation converted.
var openers = []string{"Sure", "Yes", "Happy to help", "Let me share", "No problem"}

// Analyzer computes Features. The zero value is not usable; call New.
type Analyzer struct {
	now func() time.Time
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(a *Analyzer) { a.now = now }
}

func New(opts ...Option) *Analyzer {
	a := &Analyzer{now: time.Now}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Analyze uses the wall clock for the timestamp.
func Analyze(turns []Turn, linkShared, consultationRequested bool) Features {
	return New().Analyze(turns, linkShared, consultationRequested)
}

// Analyze is deterministic over its inputs apart from the timestamp.
func (a *Analyzer) Analyze(turns []Turn, linkShared, consultationRequested bool) Features {
	users := userTurns(turns)
	return Features{
		Timestamp:             a.now().UTC(),
		UserTurnCount:         len(users),
		LinkShared:            linkShared,
		ConsultationRequested: consultationRequested,
		EngagementScore:       Engagement(turns),
		Topics:                Topics(turns),
		SuccessfulPhrases:     SuccessfulPhrases(turns, linkShared),
		FlowEvents:            Flow(turns),
		UserStyle:             Style(turns),
	}
}

// Engagement is the mean user-turn word count over 15, clamped to [0,1].
func Engagement(turns []Turn) float64 {
	users := userTurns(turns)
	if len(users) == 0 {
		return 0
	}
	score := meanWords(users) / engagementWords
	if score > 1 {
		return 1
	}
	return score
}

// Topics returns the set of topic tags triggered anywhere in the conversation.
func Topics(turns []Turn) []string {
	seen := make(map[string]bool)
	for _, t := range turns {
		lower := strings.ToLower(t.Text)
		for _, rule := range topicTable {
			if !seen[rule.Topic] && containsAny(lower, rule.Words) {
				seen[rule.Topic] = true
			}
		}
	}
	topics := make([]string, 0, len(seen))
	for _, rule := range topicTable {
		if seen[rule.Topic] {
			topics = append(topics, rule.Topic)
		}
	}
	return topics
}

// SuccessfulPhrases mines opener sentences from agent turns of a converted
// conversation. Duplicates are kept.
func SuccessfulPhrases(turns []Turn, linkShared bool) []string {
	if !linkShared {
		return []string{}
	}
	phrases := []string{}
	for _, t := range turns {
		if t.Role != RoleAgent {
			continue
		}
		for _, sentence := range strings.Split(t.Text, ". ") {
			sentence = strings.TrimSpace(sentence)
			if !startsWithOpener(sentence) {
				continue
			}
			phrase, _, _ := strings.Cut(sentence, ".")
			phrase = truncate(phrase, maxPhraseLen)
			if phrase != "" {
				phrases = append(phrases, phrase)
			}
		}
	}
	return phrases
}

// Flow tags each agent turn, in order. A turn may yield several events.
func Flow(turns []Turn) []FlowEvent {
	flow := []FlowEvent{}
	for _, t := range turns {
		if t.Role != RoleAgent {
			continue
		}
		lower := strings.ToLower(t.Text)
		for _, rule := range flowTable {
			if containsAny(lower, rule.Words) {
				flow = append(flow, rule.Event)
			}
		}
	}
	return flow
}

// Style classifies how the lead writes.
func Style(turns []Turn) UserStyle {
	users := userTurns(turns)
	if len(users) == 0 {
		return StyleUnknown
	}
	avg := meanWords(users)
	questions := 0
	for _, t := range users {
		questions += strings.Count(t.Text, "?")
	}
	switch {
	case avg < briefWords:
		return StyleBrief
	case avg > detailedWords:
		return StyleDetailed
	case questions > inquisitiveQs:
		return StyleInquisitive
	default:
		return StyleStandard
	}
}

func userTurns(turns []Turn) []Turn {
	var out []Turn
	for _, t := range turns {
		if t.Role == RoleUser {
			out = append(out, t)
		}
	}
	return out
}

func meanWords(turns []Turn) float64 {
	total := 0
	for _, t := range turns {
		total += len(strings.Fields(t.Text))
	}
	return float64(total) / float64(len(turns))
}

func startsWithOpener(sentence string) bool {
	for _, o := range openers {
		if strings.HasPrefix(sentence, o) {
			return true
		}
	}
	return false
}

// truncate cuts s to at most n characters.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func containsAny(lower string, words []string) bool {
	for _, w := range words {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}
