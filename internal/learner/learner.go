// Package learner owns the process-wide strategy record and serializes the
// analyze, merge and persist sequence that follows every finished conversation.
package learner

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/closer/internal/analyzer"
	"github.com/MikeSquared-Agency/closer/internal/hermes"
	"github.com/MikeSquared-Agency/closer/internal/keywords"
	"github.com/MikeSquared-Agency/closer/internal/optimizer"
	"github.com/MikeSquared-Agency/closer/internal/strategy"
)

var (
	// ErrEmptyTranscript is returned when there is nothing to learn from.
	ErrEmptyTranscript = errors.New("empty transcript")
	// ErrNoArchive means archived features cannot be read back.
	ErrNoArchive = errors.New("feature archive not available")
)

// Outcome is a finished conversation ready for analysis.
type Outcome struct {
	SessionID             string
	Turns                 []analyzer.Turn
	LinkShared            bool
	ConsultationRequested bool
}

// Publisher is the event bus.
type Publisher interface {
	Publish(subject string, data any) error
}

// Archiver keeps analyzed features outside the strategy record.
type Archiver interface {
	ArchiveFeatures(ctx context.Context, sessionID string, f analyzer.Features) (uuid.UUID, error)
}

// FeatureReader is an Archiver whose archive can be read back.
type FeatureReader interface {
	FeaturesForSession(ctx context.Context, sessionID string) ([]analyzer.Features, error)
}

// Notifier tells humans what was learned.
type Notifier interface {
	PostLearningSummary(ctx context.Context, sessionID string, f analyzer.Features, rec *strategy.Record) (string, error)
}

// Recorder observes merges.
type Recorder interface {
	ConversationLearned(f analyzer.Features, rec *strategy.Record)
}

type Learner struct {
	store     strategy.Store
	analyzer  *analyzer.Analyzer
	optimizer *optimizer.Optimizer
	logger    *slog.Logger

	publisher Publisher
	archiver  Archiver
	notifier  Notifier
	recorder  Recorder

	mu      sync.Mutex
	current *strategy.Record
}

type Option func(*Learner)

func WithPublisher(p Publisher) Option { return func(l *Learner) { l.publisher = p } }
func WithArchiver(a Archiver) Option   { return func(l *Learner) { l.archiver = a } }
func WithNotifier(n Notifier) Option   { return func(l *Learner) { l.notifier = n } }
func WithRecorder(r Recorder) Option   { return func(l *Learner) { l.recorder = r } }

// WithRetention bounds the conversation histories kept in the record.
func WithRetention(n int) Option {
	return func(l *Learner) { l.optimizer = optimizer.New(n) }
}

// WithAnalyzer replaces the default analyzer, typically to fix the clock.
func WithAnalyzer(a *analyzer.Analyzer) Option {
	return func(l *Learner) { l.analyzer = a }
}

// New starts from initial, which is usually strategy.LoadOrDefault's result.
// A nil store keeps updates in memory only.
func New(initial *strategy.Record, store strategy.Store, logger *slog.Logger, opts ...Option) *Learner {
	if initial == nil {
		initial = strategy.Default()
	}
	l := &Learner{
		store:     store,
		analyzer:  analyzer.New(),
		optimizer: optimizer.New(optimizer.DefaultRetention),
		logger:    logger,
		current:   initial.Clone(),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Snapshot returns a private copy of the current record for a new session.
func (l *Learner) Snapshot() *strategy.Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current.Clone()
}

// Version returns a specific strategy version: the current record, or an
// older one when the store keeps history.
func (l *Learner) Version(ctx context.Context, version int) (*strategy.Record, error) {
	l.mu.Lock()
	if l.current.Version == version {
		rec := l.current.Clone()
		l.mu.Unlock()
		return rec, nil
	}
	l.mu.Unlock()

	history, ok := l.store.(strategy.VersionedStore)
	if !ok {
		return nil, strategy.ErrNotFound
	}
	return history.Version(ctx, version)
}

// ArchivedFeatures returns what was learned from a session, oldest first.
func (l *Learner) ArchivedFeatures(ctx context.Context, sessionID string) ([]analyzer.Features, error) {
	reader, ok := l.archiver.(FeatureReader)
	if !ok {
		return nil, ErrNoArchive
	}
	return reader.FeaturesForSession(ctx, sessionID)
}

// Learn folds a finished conversation into the strategy. Persistence and
// notification failures are logged, never returned.
func (l *Learner) Learn(ctx context.Context, o Outcome) (analyzer.Features, error) {
	if len(o.Turns) == 0 {
		return analyzer.Features{}, ErrEmptyTranscript
	}

	f := l.analyzer.Analyze(o.Turns, o.LinkShared, o.ConsultationRequested)

	l.mu.Lock()
	merged := l.optimizer.Merge(f, l.current)
	if l.store != nil {
		if err := l.store.Save(ctx, merged); err != nil {
			l.logger.Error("strategy save failed, keeping update in memory", "version", merged.Version, "error", err)
		}
	}
	l.current = merged
	snapshot := merged.Clone()
	l.mu.Unlock()

	l.logger.Info("conversation learned",
		"session_id", o.SessionID,
		"link_shared", f.LinkShared,
		"message_count", f.UserTurnCount,
		"version", snapshot.Version,
		"link_timing", snapshot.Timing.LinkTiming,
		"conversion_rate", snapshot.Metrics.ConversionRate,
	)

	l.afterLearn(ctx, o.SessionID, f, snapshot)
	return f, nil
}

func (l *Learner) afterLearn(ctx context.Context, sessionID string, f analyzer.Features, rec *strategy.Record) {
	if l.recorder != nil {
		l.recorder.ConversationLearned(f, rec)
	}

	if l.archiver != nil {
		if _, err := l.archiver.ArchiveFeatures(ctx, sessionID, f); err != nil {
			l.logger.Warn("archive features failed", "session_id", sessionID, "error", err)
		}
	}

	if l.publisher != nil {
		learned := hermes.ConversationLearned{
			SessionID:             sessionID,
			StrategyVersion:       rec.Version,
			LinkShared:            f.LinkShared,
			ConsultationRequested: f.ConsultationRequested,
			UserTurnCount:         f.UserTurnCount,
			EngagementScore:       f.EngagementScore,
			Topics:                f.Topics,
			UserStyle:             string(f.UserStyle),
			LearnedAt:             f.Timestamp,
		}
		if err := l.publisher.Publish(hermes.SubjectConversationLearned, learned); err != nil {
			l.logger.Warn("publish conversation learned failed", "session_id", sessionID, "error", err)
		}
		updated := hermes.StrategyUpdated{
			Version:                rec.Version,
			LinkTiming:             rec.EffectiveLinkTiming(),
			ConversationsCompleted: rec.Metrics.ConversationsCompleted,
			ConversionRate:         rec.Metrics.ConversionRate,
			SuccessfulPhrases:      len(rec.Learned.SuccessfulPhrases),
		}
		if err := l.publisher.Publish(hermes.SubjectStrategyUpdated, updated); err != nil {
			l.logger.Warn("publish strategy updated failed", "version", rec.Version, "error", err)
		}
	}

	if l.notifier != nil {
		if _, err := l.notifier.PostLearningSummary(ctx, sessionID, f, rec); err != nil {
			l.logger.Warn("slack learning summary failed", "session_id", sessionID, "error", err)
		}
	}
}

// HandleTranscriptFinished learns from a transcript published by another
// chat surface.
func (l *Learner) HandleTranscriptFinished(subject string, data []byte) {
	var evt hermes.TranscriptFinished
	if err := json.Unmarshal(data, &evt); err != nil {
		l.logger.Error("failed to parse transcript event", "subject", subject, "error", err)
		return
	}

	turns := TurnsFromMessages(evt.Messages)
	linkShared, consultation := DetectOutcome(turns)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := l.Learn(ctx, Outcome{
		SessionID:             evt.SessionID,
		Turns:                 turns,
		LinkShared:            linkShared,
		ConsultationRequested: consultation,
	}); err != nil {
		l.logger.Warn("transcript not learned", "session_id", evt.SessionID, "error", err)
	}
}

// DetectOutcome scans agent turns for a booking marker and a consultation
// mention.
func DetectOutcome(turns []analyzer.Turn) (linkShared, consultationRequested bool) {
	for _, t := range turns {
		if t.Role != analyzer.RoleAgent {
			continue
		}
		if keywords.ContainsBookingMarker(t.Text) {
			linkShared = true
		}
		if keywords.MentionsConsultation(t.Text) {
			consultationRequested = true
		}
	}
	return linkShared, consultationRequested
}

// TurnsFromMessages converts exchanged messages to turns. Any role other than
// "user" is treated as the agent.
func TurnsFromMessages(msgs []hermes.Message) []analyzer.Turn {
	turns := make([]analyzer.Turn, 0, len(msgs))
	for i, m := range msgs {
		role := analyzer.RoleAgent
		if m.Role == string(analyzer.RoleUser) {
			role = analyzer.RoleUser
		}
		turns = append(turns, analyzer.Turn{Role: role, Text: m.Content, Ordinal: i})
	}
	return turns
}
