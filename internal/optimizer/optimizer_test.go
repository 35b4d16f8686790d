package optimizer

import (
	"math"
	"strings"
	"testing"

	"github.com/MikeSquared-Agency/closer/internal/analyzer"
	"github.com/MikeSquared-Agency/closer/internal/strategy"
)

func success(turns int, topics ...string) analyzer.Features {
	return analyzer.Features{
		UserTurnCount:     turns,
		LinkShared:        true,
		Topics:            topics,
		SuccessfulPhrases: []string{"Sure, no problem"},
	}
}

func failure(turns int) analyzer.Features {
	return analyzer.Features{UserTurnCount: turns}
}

func checkConversionInvariant(t *testing.T, m strategy.Metrics) {
	t.Helper()
	if m.ConversationsCompleted == 0 {
		if m.ConversionRate != 0 {
			t.Errorf("expected zero rate, got %f", m.ConversionRate)
		}
		return
	}
	want := 100 * float64(m.LinkShared) / float64(m.ConversationsCompleted)
	if math.Abs(m.ConversionRate-want) > 1e-9 {
		t.Errorf("conversion rate %f, want %f", m.ConversionRate, want)
	}
}

func TestMerge_RoutesAndCounts(t *testing.T) {
	o := New(DefaultRetention)
	rec := strategy.Default()

	rec = o.Merge(failure(2), rec)
	rec = o.Merge(success(4, "pricing"), rec)

	if len(rec.Learned.FailedConversations) != 1 {
		t.Errorf("expected 1 failed conversation, got %d", len(rec.Learned.FailedConversations))
	}
	if len(rec.Learned.SuccessfulConversations) != 1 {
		t.Errorf("expected 1 successful conversation, got %d", len(rec.Learned.SuccessfulConversations))
	}
	if rec.Metrics.ConversationsCompleted != 2 || rec.Metrics.LinkShared != 1 {
		t.Errorf("unexpected metrics %+v", rec.Metrics)
	}
	if rec.Metrics.ConversionRate != 50 {
		t.Errorf("expected 50%% conversion, got %f", rec.Metrics.ConversionRate)
	}
	if rec.Version != 2 {
		t.Errorf("expected version 2, got %d", rec.Version)
	}
	checkConversionInvariant(t, rec.Metrics)
}

func TestMerge_DoesNotMutateInput(t *testing.T) {
	o := New(DefaultRetention)
	rec := strategy.Default()
	_ = o.Merge(success(4, "pricing"), rec)

	if len(rec.Learned.SuccessfulConversations) != 0 {
		t.Error("input record was mutated")
	}
	if rec.Metrics.ConversationsCompleted != 0 {
		t.Error("input metrics were mutated")
	}
}

func TestMerge_ConsultationCounted(t *testing.T) {
	o := New(0)
	f := failure(3)
	f.ConsultationRequested = true
	rec := o.Merge(f, strategy.Default())
	if rec.Metrics.ConsultationsRequested != 1 {
		t.Errorf("expected 1 consultation, got %d", rec.Metrics.ConsultationsRequested)
	}
	checkConversionInvariant(t, rec.Metrics)
}

func TestMerge_LearnsPhrasesAndTopics(t *testing.T) {
	o := New(DefaultRetention)
	f := success(4, "singapore", "pricing", "banking")
	f.SuccessfulPhrases = []string{"Yes, no problem", "Happy to help", "Yes, no problem"}

	rec := o.Merge(f, strategy.Default())

	if got := rec.Learned.SuccessfulPhrases; len(got) != 2 || got[0] != "Yes, no problem" || got[1] != "Happy to help" {
		t.Errorf("unexpected learned phrases %v", got)
	}
	if len(rec.Learned.HighConversionTopics) != 3 {
		t.Errorf("unexpected topics %v", rec.Learned.HighConversionTopics)
	}
	cost, _ := rec.Pattern(strategy.PatternCost)
	if !strings.HasPrefix(cost, "Yes, no problem. Pricing is customized") {
		t.Errorf("unexpected cost pattern %q", cost)
	}
	banking, _ := rec.Pattern(strategy.PatternBanking)
	if !strings.HasPrefix(banking, "Yes, no problem. We work with several banking partners") {
		t.Errorf("unexpected banking pattern %q", banking)
	}
}

func TestMerge_PatternsGatedOnTopic(t *testing.T) {
	o := New(DefaultRetention)
	def := strategy.Default()
	f := success(4, "pricing")
	f.SuccessfulPhrases = []string{"Happy to help"}

	rec := o.Merge(f, def)

	banking, _ := rec.Pattern(strategy.PatternBanking)
	wantBanking, _ := def.Pattern(strategy.PatternBanking)
	if banking != wantBanking {
		t.Errorf("banking pattern should be untouched, got %q", banking)
	}
}

func TestMerge_NoPatternRewriteWithoutPhrases(t *testing.T) {
	o := New(DefaultRetention)
	def := strategy.Default()
	f := success(4, "pricing")
	f.SuccessfulPhrases = nil

	rec := o.Merge(f, def)
	cost, _ := rec.Pattern(strategy.PatternCost)
	wantCost, _ := def.Pattern(strategy.PatternCost)
	if cost != wantCost {
		t.Errorf("cost pattern should be untouched, got %q", cost)
	}
}

func TestMerge_OptimizesTimingAfterThreeSuccesses(t *testing.T) {
	o := New(DefaultRetention)
	rec := strategy.Default()
	rec.Timing.LinkTiming = 6

	rec = o.Merge(success(3), rec)
	rec = o.Merge(success(4), rec)
	if rec.Timing.LinkTiming != 6 {
		t.Errorf("timing should not change before 3 successes, got %d", rec.Timing.LinkTiming)
	}
	rec = o.Merge(success(5), rec)
	if rec.Timing.LinkTiming != 4 {
		t.Errorf("expected timing 4, got %d", rec.Timing.LinkTiming)
	}
}

func TestLinkTiming(t *testing.T) {
	tests := []struct {
		name   string
		counts []int
		want   int
	}{
		{"mean four", []int{3, 4, 5}, 4},
		{"rounds half up", []int{4, 5}, 5},
		{"clamped low", []int{1, 1, 2}, 3},
		{"clamped high", []int{9, 10, 12}, 6},
		{"last ten only", []int{20, 20, 3, 3, 3, 3, 3, 3, 3, 3, 3, 3}, 3},
		{"empty", nil, strategy.DefaultLinkTiming},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var fs []analyzer.Features
			for _, c := range tt.counts {
				fs = append(fs, success(c))
			}
			if got := LinkTiming(fs); got != tt.want {
				t.Errorf("LinkTiming(%v) = %d, want %d", tt.counts, got, tt.want)
			}
		})
	}
}

func TestMerge_BankingTransitionAddedOnce(t *testing.T) {
	o := New(DefaultRetention)
	rec := strategy.Default()
	for i := 0; i < 4; i++ {
		rec = o.Merge(success(4, "banking"), rec)
	}
	n := 0
	for _, tr := range rec.Tactics.SuccessfulTransitions {
		if tr == BankingTransition {
			n++
		}
	}
	if n != 1 {
		t.Errorf("expected banking transition once, got %d", n)
	}
}

func TestMerge_BankingOutsideRecentTopicsIgnored(t *testing.T) {
	o := New(DefaultRetention)
	rec := strategy.Default()
	rec.Learned.HighConversionTopics = []string{"banking", "a", "b", "c", "d", "e"}
	for i := 0; i < 3; i++ {
		rec = o.Merge(success(4, "pricing"), rec)
	}
	// pricing was appended, so the last five are b c d e pricing.
	if strategy.Contains(rec.Tactics.SuccessfulTransitions, BankingTransition) {
		t.Error("banking transition should not be added when banking is not recent")
	}
}

func TestMerge_Retention(t *testing.T) {
	o := New(3)
	rec := strategy.Default()
	for i := 1; i <= 5; i++ {
		rec = o.Merge(success(i), rec)
		rec = o.Merge(failure(i), rec)
	}
	if len(rec.Learned.SuccessfulConversations) != 3 {
		t.Fatalf("expected 3 retained successes, got %d", len(rec.Learned.SuccessfulConversations))
	}
	if rec.Learned.SuccessfulConversations[0].UserTurnCount != 3 {
		t.Errorf("expected oldest retained to have 3 turns, got %d", rec.Learned.SuccessfulConversations[0].UserTurnCount)
	}
	if len(rec.Learned.FailedConversations) != 3 {
		t.Errorf("expected 3 retained failures, got %d", len(rec.Learned.FailedConversations))
	}
	if rec.Metrics.ConversationsCompleted != 10 {
		t.Errorf("metrics must count every conversation, got %d", rec.Metrics.ConversationsCompleted)
	}
	checkConversionInvariant(t, rec.Metrics)
}
