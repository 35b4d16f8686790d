package analyzer

import (
	"math"
	"strings"
	"testing"
	"time"
	"unicode/utf8"
)

func conv(texts ...string) []Turn {
	turns := make([]Turn, len(texts))
	for i, text := range texts {
		role := RoleUser
		if i%2 == 1 {
			role = RoleAgent
		}
		turns[i] = Turn{Role: role, Text: text, Ordinal: i}
	}
	return turns
}

func TestAnalyze_SuccessfulPhrasesInOrder(t *testing.T) {
	turns := conv(
		"Hi, I want a company",
		"Sure, no problem. Which market are you considering?",
		"Singapore please",
		"Yes, no problem. We can help there.",
	)

	f := Analyze(turns, true, false)

	want := []string{"Sure, no problem", "Yes, no problem"}
	if len(f.SuccessfulPhrases) != len(want) {
		t.Fatalf("expected %d phrases, got %d: %v", len(want), len(f.SuccessfulPhrases), f.SuccessfulPhrases)
	}
	for i := range want {
		if f.SuccessfulPhrases[i] != want[i] {
			t.Errorf("phrase[%d] = %q, want %q", i, f.SuccessfulPhrases[i], want[i])
		}
	}
}

func TestSuccessfulPhrases_NotComputedWithoutLink(t *testing.T) {
	turns := conv("hello", "Sure, no problem. Anything else?")
	if got := SuccessfulPhrases(turns, false); len(got) != 0 {
		t.Errorf("expected no phrases, got %v", got)
	}
}

func TestSuccessfulPhrases_IgnoresUserTurnsAndKeepsDuplicates(t *testing.T) {
	turns := []Turn{
		{Role: RoleUser, Text: "Sure, I am the user."},
		{Role: RoleAgent, Text: "Sure, no problem. Sure, no problem."},
	}
	got := SuccessfulPhrases(turns, true)
	if len(got) != 2 {
		t.Fatalf("expected 2 phrases, got %v", got)
	}
	for _, p := range got {
		if p != "Sure, no problem" {
			t.Errorf("unexpected phrase %q", p)
		}
	}
}

func TestSuccessfulPhrases_Truncated(t *testing.T) {
	long := "Happy to help with every single aspect of your incorporation journey in Asia"
	got := SuccessfulPhrases([]Turn{{Role: RoleAgent, Text: long}}, true)
	if len(got) != 1 {
		t.Fatalf("expected 1 phrase, got %v", got)
	}
	if len(got[0]) != 50 {
		t.Errorf("expected 50 chars, got %d", len(got[0]))
	}
	if !strings.HasPrefix(long, got[0]) {
		t.Errorf("expected a prefix of the sentence, got %q", got[0])
	}
}

func TestSuccessfulPhrases_TruncatedByCharacters(t *testing.T) {
	text := "Sure, " + strings.Repeat("ñ", 50) + " done. Next"
	got := SuccessfulPhrases([]Turn{{Role: RoleAgent, Text: text}}, true)
	if len(got) != 1 {
		t.Fatalf("expected 1 phrase, got %v", got)
	}
	if n := utf8.RuneCountInString(got[0]); n != 50 {
		t.Errorf("expected 50 characters, got %d", n)
	}
	want := "Sure, " + strings.Repeat("ñ", 44)
	if got[0] != want {
		t.Errorf("expected %q, got %q", want, got[0])
	}
}

func TestEngagement(t *testing.T) {
	tests := []struct {
		name  string
		turns []Turn
		want  float64
	}{
		{"no user turns", []Turn{{Role: RoleAgent, Text: "hi"}}, 0},
		{"three words", conv("one two three"), 0.2},
		{"clamped", conv(strings.Repeat("word ", 30)), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Engagement(tt.turns); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Engagement = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestTopics(t *testing.T) {
	turns := conv(
		"We look at HK and America",
		"Banking and tax are covered.",
		"What is the cost and timeline? Maybe britain too",
	)
	got := Topics(turns)
	want := []string{"hong_kong", "usa", "uk", "pricing", "urgency", "banking", "taxation"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("topic[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestFlow(t *testing.T) {
	turns := []Turn{
		{Role: RoleUser, Text: "what about tax?"},
		{Role: RoleAgent, Text: "Tax is simple. Which market?"},
		{Role: RoleAgent, Text: "Book via EMAIL, usually around one week for banking."},
	}
	got := Flow(turns)
	want := []FlowEvent{
		FlowQuestionAsked, FlowTaxationDiscussed,
		FlowConsultationOffered, FlowBankingDiscussed, FlowTimelineDiscussed,
	}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("flow[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestStyle(t *testing.T) {
	tests := []struct {
		name  string
		turns []Turn
		want  UserStyle
	}{
		{"unknown", nil, StyleUnknown},
		{"brief", conv("hi"), StyleBrief},
		{"detailed", conv(strings.Repeat("detail ", 25)), StyleDetailed},
		{"inquisitive", conv("what is the cost? and when? and how? ok"), StyleInquisitive},
		{"standard", conv("I would like to open a company in Singapore"), StyleStandard},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Style(tt.turns); got != tt.want {
				t.Errorf("Style = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAnalyze_Fields(t *testing.T) {
	fixed := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	a := New(WithClock(func() time.Time { return fixed }))

	f := a.Analyze(conv("cost of banking in singapore", "Sure. Happy to help?"), false, true)

	if !f.Timestamp.Equal(fixed) {
		t.Errorf("expected timestamp %v, got %v", fixed, f.Timestamp)
	}
	if f.UserTurnCount != 1 {
		t.Errorf("expected 1 user turn, got %d", f.UserTurnCount)
	}
	if f.LinkShared {
		t.Error("expected link_shared false")
	}
	if !f.ConsultationRequested {
		t.Error("expected consultation_requested true")
	}
	if !f.HasTopic("pricing") || !f.HasTopic("banking") || !f.HasTopic("singapore") {
		t.Errorf("unexpected topics %v", f.Topics)
	}
	if len(f.SuccessfulPhrases) != 0 {
		t.Errorf("expected no phrases for unconverted conversation, got %v", f.SuccessfulPhrases)
	}
}
