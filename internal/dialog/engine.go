// Package dialog decides, turn by turn, how the agent replies: a canned
// strategy pattern, a generated reply, or the fallback sentence, with an
// optional consultation offer appended.
package dialog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/MikeSquared-Agency/closer/internal/analyzer"
	"github.com/MikeSquared-Agency/closer/internal/keywords"
	"github.com/MikeSquared-Agency/closer/internal/knowledge"
	"github.com/MikeSquared-Agency/closer/internal/llm"
	"github.com/MikeSquared-Agency/closer/internal/strategy"
)

const (
	// FallbackReply is returned whenever generation fails.
	FallbackReply = "We can help with company formation across multiple jurisdictions. Which market are you considering?"

	MaxOutputTokens = 200
	Temperature     = 0.7

	DefaultMaxHistory        = 20
	DefaultGenerationTimeout = 30 * time.Second

	// patternCutoff is the exchange from which canned patterns are no longer used.
	patternCutoff = 4
	// promptTurns is how much history goes into a generation prompt.
	promptTurns = 8
	// maxPrefixWords bounds the phrase prepended to a generated reply.
	maxPrefixWords = 6
	// detailedCostWords is the word count above which a cost question is detailed.
	detailedCostWords = 15
)

// Reply sources reported to the Recorder.
const (
	SourcePattern   = "pattern"
	SourceGenerated = "generated"
	SourceFallback  = "fallback"
)

// Recorder observes engine decisions.
type Recorder interface {
	Reply(source string)
	Escalation(early bool)
	GenerationFailure(kind llm.ErrorKind)
}

type nopRecorder struct{}

func (nopRecorder) Reply(string)                    {}
func (nopRecorder) Escalation(bool)                 {}
func (nopRecorder) GenerationFailure(llm.ErrorKind) {}

// Engine holds one conversation. Calls to Respond must not overlap.
type Engine struct {
	gen      llm.Generator
	strategy *strategy.Record
	persona  string
	rng      *rand.Rand
	logger   *slog.Logger
	recorder Recorder
	timeout  time.Duration

	mu          sync.Mutex
	maxHistory  int
	history     []analyzer.Turn
	nextOrdinal int
}

type Option func(*Engine)

// WithRand sets the source used for phrase and trigger selection.
func WithRand(r *rand.Rand) Option {
	return func(e *Engine) { e.rng = r }
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithMaxHistory bounds the retained transcript.
func WithMaxHistory(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxHistory = n
		}
	}
}

func WithGenerationTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

func WithRecorder(r Recorder) Option {
	return func(e *Engine) {
		if r != nil {
			e.recorder = r
		}
	}
}

// New builds an engine over a private copy of snapshot. A nil snapshot
// behaves like a record with no learned tactics and adds nothing to the
// persona.
func New(gen llm.Generator, snapshot *strategy.Record, opts ...Option) *Engine {
	snap := snapshot.Clone()
	if snap == nil {
		snap = &strategy.Record{}
	}
	e := &Engine{
		gen:        gen,
		strategy:   snap,
		rng:        rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0)),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		recorder:   nopRecorder{},
		timeout:    DefaultGenerationTimeout,
		maxHistory: DefaultMaxHistory,
	}
	for _, o := range opts {
		o(e)
	}
	e.persona = basePersona
	if snapshot != nil {
		e.persona = buildPersona(e.strategy)
	}
	return e
}

// Persona returns the system instructions sent with every generation.
func (e *Engine) Persona() string { return e.persona }

// Respond produces the agent reply to userText and records both turns.
// It never fails: backend errors degrade to FallbackReply.
func (e *Engine) Respond(ctx context.Context, userText string) string {
	history := e.Transcript()
	exchange := countUser(history)

	if reply, ok := e.pattern(userText, exchange); ok {
		e.append(userText, reply)
		e.recorder.Reply(SourcePattern)
		return reply
	}

	reply, source := e.generate(ctx, history, userText, exchange)
	if source == SourceGenerated {
		reply = stripLabel(reply)
		if exchange > 0 {
			reply = e.prefixPhrase(reply)
		}
		reply = e.escalate(reply, userText, exchange)
	}

	e.append(userText, reply)
	e.recorder.Reply(source)
	return reply
}

func (e *Engine) pattern(userText string, exchange int) (string, bool) {
	if exchange >= patternCutoff {
		return "", false
	}
	class := keywords.Classify(userText)
	if class == keywords.ClassNone {
		return "", false
	}
	return e.strategy.Pattern(keywords.PatternKey(class))
}

func (e *Engine) generate(ctx context.Context, history []analyzer.Turn, userText string, exchange int) (string, string) {
	if e.gen == nil {
		return FallbackReply, SourceFallback
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	reply, err := e.gen.Generate(ctx, llm.Request{
		System:      e.persona,
		Prompt:      buildPrompt(history, knowledge.Lookup(userText), userText, exchange),
		MaxTokens:   MaxOutputTokens,
		Temperature: Temperature,
	})
	if err == nil && strings.TrimSpace(reply) == "" {
		err = llm.NewError("dialog", llm.KindMalformed, 0, errors.New("empty reply"))
	}
	if err != nil {
		kind := llm.KindOf(err)
		if kind == "" {
			kind = llm.KindBackend
		}
		e.logger.Warn("generation failed, using fallback reply", "kind", kind, "error", err)
		e.recorder.GenerationFailure(kind)
		return FallbackReply, SourceFallback
	}
	return strings.TrimSpace(reply), SourceGenerated
}

func buildPrompt(history []analyzer.Turn, digest, userText string, exchange int) string {
	return fmt.Sprintf(`CONVERSATION HISTORY:
%s

RELEVANT KNOWLEDGE:
%s

USER: %s

Remember the guidelines and respond as a professional consultant using learned strategies. Current exchange count: %d`,
		formatHistory(history), digest, userText, exchange+1)
}

func formatHistory(history []analyzer.Turn) string {
	if len(history) == 0 {
		return "This is the start of the conversation."
	}
	if len(history) > promptTurns {
		history = history[len(history)-promptTurns:]
	}
	lines := make([]string, 0, len(history))
	for _, t := range history {
		label := "Consultant"
		if t.Role == analyzer.RoleUser {
			label = "User"
		}
		lines = append(lines, label+": "+t.Text)
	}
	return strings.Join(lines, "\n")
}

// stripLabel removes a role label the backend echoed back.
func stripLabel(reply string) string {
	const label = "CONSULTANT:"
	if len(reply) >= len(label) && strings.EqualFold(reply[:len(label)], label) {
		return strings.TrimSpace(reply[len(label):])
	}
	return reply
}

func (e *Engine) prefixPhrase(reply string) string {
	phrases := make([]string, 0, len(e.strategy.Learned.SuccessfulPhrases)+len(e.strategy.Tactics.OpeningPhrases))
	phrases = append(phrases, e.strategy.Learned.SuccessfulPhrases...)
	phrases = append(phrases, e.strategy.Tactics.OpeningPhrases...)
	if len(phrases) == 0 {
		return reply
	}

	phrase := phrases[e.rng.IntN(len(phrases))]
	words := strings.Fields(phrase)
	if len(words) == 0 || len(words) >= maxPrefixWords {
		return reply
	}
	if strings.HasPrefix(reply, words[0]) {
		return reply
	}
	return phrase + " " + reply
}

// ShouldEscalateEarly reports whether userText justifies a consultation offer
// before the learned link timing.
func ShouldEscalateEarly(rec *strategy.Record, userText string) bool {
	if rec == nil {
		return false
	}
	if keywords.ContainsAny(userText, rec.Timing.UrgencyTriggers) {
		return true
	}
	if rec.ScenarioEnabled(strategy.ScenarioDetailedCost) &&
		len(strings.Fields(userText)) > detailedCostWords &&
		keywords.ContainsAny(userText, keywords.EarlyCost) {
		return true
	}
	if rec.ScenarioEnabled(strategy.ScenarioBankingRequirements) &&
		keywords.ContainsAny(userText, keywords.EarlyBanking) {
		return true
	}
	if rec.ScenarioEnabled(strategy.ScenarioMultiJurisdiction) &&
		keywords.CountMatches(userText, keywords.Jurisdictions) > 1 {
		return true
	}
	return false
}

func (e *Engine) escalate(reply, userText string, exchange int) string {
	early := ShouldEscalateEarly(e.strategy, userText)
	onTime := exchange >= e.strategy.EffectiveLinkTiming()
	if !onTime && !early {
		return reply
	}
	if keywords.ContainsBookingMarker(reply) || !keywords.ContainsAny(userText, keywords.Decision) {
		return reply
	}

	trigger := strategy.DefaultConsultationTrigger
	if triggers := e.strategy.Tactics.ConsultationTriggers; len(triggers) > 0 {
		trigger = triggers[e.rng.IntN(len(triggers))]
	}
	e.recorder.Escalation(early && !onTime)
	return reply + " " + trigger
}

func (e *Engine) append(userText, reply string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.history = append(e.history,
		analyzer.Turn{Role: analyzer.RoleUser, Text: userText, Ordinal: e.nextOrdinal},
		analyzer.Turn{Role: analyzer.RoleAgent, Text: reply, Ordinal: e.nextOrdinal + 1},
	)
	e.nextOrdinal += 2
	if len(e.history) > e.maxHistory {
		e.history = append([]analyzer.Turn(nil), e.history[len(e.history)-e.maxHistory:]...)
	}
}

// Transcript returns a copy of the retained turns.
func (e *Engine) Transcript() []analyzer.Turn {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]analyzer.Turn(nil), e.history...)
}

// ExchangeCount is the number of user turns in the retained transcript.
func (e *Engine) ExchangeCount() int {
	return countUser(e.Transcript())
}

// Reset discards the transcript.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.history = nil
	e.nextOrdinal = 0
}

func countUser(turns []analyzer.Turn) int {
	n := 0
	for _, t := range turns {
		if t.Role == analyzer.RoleUser {
			n++
		}
	}
	return n
}
