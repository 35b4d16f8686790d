// Package optimizer folds analyzed conversations into the strategy record.
package optimizer

import (
	"math"

	"github.com/MikeSquared-Agency/closer/internal/analyzer"
	"github.com/MikeSquared-Agency/closer/internal/strategy"
)

const (
	// minSuccesses before timing is re-learned.
	minSuccesses = 3
	// timingWindow is how many recent successes feed link timing.
	timingWindow = 10
	// topicWindow is how many recent high-conversion topics are inspected.
	topicWindow = 5

	minLinkTiming = 3
	maxLinkTiming = 6

	// DefaultRetention bounds each conversation history.
	DefaultRetention = 50
)

// BankingTransition is added once banking shows up among converting topics.
const BankingTransition = "We have established relationships with banking institutions"

// Optimizer merges features into strategy records.
type Optimizer struct {
	retention int
}

// New returns an optimizer keeping at most retention conversations per
// history. Zero keeps everything.
func New(retention int) *Optimizer {
	if retention < 0 {
		retention = 0
	}
	return &Optimizer{retention: retention}
}

// Merge returns a copy of rec with f folded in. rec is not modified.
func (o *Optimizer) Merge(f analyzer.Features, rec *strategy.Record) *strategy.Record {
	if rec == nil {
		rec = strategy.Default()
	}
	out := rec.Clone()

	if f.LinkShared {
		out.Learned.SuccessfulConversations = o.bound(append(out.Learned.SuccessfulConversations, f))
		out.Learned.SuccessfulPhrases = strategy.AddUnique(out.Learned.SuccessfulPhrases, f.SuccessfulPhrases...)
		out.Learned.HighConversionTopics = strategy.AddUnique(out.Learned.HighConversionTopics, f.Topics...)
		updateResponsePatterns(out, f)
	} else {
		out.Learned.FailedConversations = o.bound(append(out.Learned.FailedConversations, f))
	}

	updateMetrics(&out.Metrics, f)
	optimize(out)

	out.Version++
	return out
}

func (o *Optimizer) bound(convs []analyzer.Features) []analyzer.Features {
	if o.retention == 0 || len(convs) <= o.retention {
		return convs
	}
	return append([]analyzer.Features(nil), convs[len(convs)-o.retention:]...)
}

func updateResponsePatterns(rec *strategy.Record, f analyzer.Features) {
	if len(f.SuccessfulPhrases) == 0 || len(f.Topics) == 0 {
		return
	}
	best := f.SuccessfulPhrases[0]
	if f.HasTopic("pricing") {
		rec.Tactics.ResponsePatterns[strategy.PatternCost] = strategy.CostPattern(best)
	}
	if f.HasTopic("banking") {
		rec.Tactics.ResponsePatterns[strategy.PatternBanking] = strategy.BankingPattern(best)
	}
}

func updateMetrics(m *strategy.Metrics, f analyzer.Features) {
	m.ConversationsCompleted++
	if f.LinkShared {
		m.LinkShared++
	}
	if f.ConsultationRequested {
		m.ConsultationsRequested++
	}
	m.RecomputeConversionRate()
}

func optimize(rec *strategy.Record) {
	successes := rec.Learned.SuccessfulConversations
	if len(successes) < minSuccesses {
		return
	}

	rec.Timing.LinkTiming = LinkTiming(successes)

	topics := rec.Learned.HighConversionTopics
	if len(topics) > topicWindow {
		topics = topics[len(topics)-topicWindow:]
	}
	if strategy.Contains(topics, "banking") {
		rec.Tactics.SuccessfulTransitions = strategy.AddUnique(rec.Tactics.SuccessfulTransitions, BankingTransition)
	}
}

// LinkTiming is the rounded mean user-turn count of the most recent successes,
// clamped to [3,6].
func LinkTiming(successes []analyzer.Features) int {
	if len(successes) == 0 {
		return strategy.DefaultLinkTiming
	}
	if len(successes) > timingWindow {
		successes = successes[len(successes)-timingWindow:]
	}
	total := 0
	for _, s := range successes {
		total += s.UserTurnCount
	}
	mean := float64(total) / float64(len(successes))
	timing := int(math.Round(mean))
	if timing < minLinkTiming {
		return minLinkTiming
	}
	if timing > maxLinkTiming {
		return maxLinkTiming
	}
	return timing
}
