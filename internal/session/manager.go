// Package session runs live conversations: one dialog engine per
// conversation, outcome detection, and hand-off to the learner when a
// conversation finishes.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/MikeSquared-Agency/closer/internal/analyzer"
	"github.com/MikeSquared-Agency/closer/internal/dialog"
	"github.com/MikeSquared-Agency/closer/internal/learner"
	"github.com/MikeSquared-Agency/closer/internal/llm"
	"github.com/MikeSquared-Agency/closer/internal/strategy"
)

var (
	ErrNotFound        = errors.New("conversation not found")
	ErrTooManySessions = errors.New("maximum sessions reached")
)

const activeSessionsKey = "active_sessions"

// Learner is the part of learner.Learner the manager needs.
type Learner interface {
	Snapshot() *strategy.Record
	Learn(ctx context.Context, o learner.Outcome) (analyzer.Features, error)
}

// Gauge receives the number of open conversations.
type Gauge interface {
	SessionsActive(n int)
}

type Config struct {
	MaxSessions       int
	SessionTimeout    time.Duration
	AnalyzeAfter      int
	GenerationTimeout time.Duration
}

// Conversation is one live chat.
type Conversation struct {
	ID        string
	CreatedAt time.Time

	lastActivity atomic.Int64

	mu       sync.Mutex
	engine   *dialog.Engine
	analyzed bool
}

func (c *Conversation) touch(t time.Time) { c.lastActivity.Store(t.UnixNano()) }

// LastActivity is when the conversation last changed.
func (c *Conversation) LastActivity() time.Time {
	return time.Unix(0, c.lastActivity.Load())
}

// Reply is the outcome of one user message.
type Reply struct {
	Text       string `json:"reply"`
	LinkShared bool   `json:"link_shared"`
	Analyzed   bool   `json:"analyzed"`
}

type Manager struct {
	cfg      Config
	gen      llm.Generator
	learner  Learner
	redis    *redis.Client
	recorder dialog.Recorder
	gauge    Gauge
	logger   *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*Conversation
}

type Option func(*Manager)

// WithRedis mirrors session state into Redis. A nil client disables it.
func WithRedis(c *redis.Client) Option { return func(m *Manager) { m.redis = c } }

func WithRecorder(r dialog.Recorder) Option { return func(m *Manager) { m.recorder = r } }

func WithGauge(g Gauge) Option { return func(m *Manager) { m.gauge = g } }

func NewManager(cfg Config, gen llm.Generator, l Learner, logger *slog.Logger, opts ...Option) *Manager {
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = 100
	}
	if cfg.SessionTimeout <= 0 {
		cfg.SessionTimeout = 30 * time.Minute
	}
	if cfg.AnalyzeAfter <= 0 {
		cfg.AnalyzeAfter = 6
	}
	m := &Manager{
		cfg:      cfg,
		gen:      gen,
		learner:  l,
		logger:   logger,
		sessions: make(map[string]*Conversation),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Create opens a conversation over the current strategy snapshot.
func (m *Manager) Create(ctx context.Context) (*Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.sessions) >= m.cfg.MaxSessions {
		return nil, ErrTooManySessions
	}

	opts := []dialog.Option{
		dialog.WithLogger(m.logger),
		dialog.WithGenerationTimeout(m.cfg.GenerationTimeout),
	}
	if m.recorder != nil {
		opts = append(opts, dialog.WithRecorder(m.recorder))
	}

	now := time.Now()
	conv := &Conversation{
		ID:        uuid.New().String(),
		CreatedAt: now,
		engine:    dialog.New(m.gen, m.learner.Snapshot(), opts...),
	}
	conv.touch(now)
	m.sessions[conv.ID] = conv

	if m.redis != nil {
		key := "session:" + conv.ID
		m.redis.HSet(ctx, key, map[string]interface{}{
			"created_at":    conv.CreatedAt.Format(time.RFC3339),
			"last_activity": now.Format(time.RFC3339),
			"status":        "active",
			"message_count": 0,
		})
		m.redis.SAdd(ctx, activeSessionsKey, conv.ID)
		m.redis.Expire(ctx, key, m.cfg.SessionTimeout)
	}
	m.reportCount()

	m.logger.Info("conversation created", "session_id", conv.ID)
	return conv, nil
}

func (m *Manager) get(id string) (*Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	conv, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return conv, nil
}

// Send delivers one user message. Turns of one conversation are processed
// strictly one at a time.
func (m *Manager) Send(ctx context.Context, id, text string) (Reply, error) {
	conv, err := m.get(id)
	if err != nil {
		return Reply{}, err
	}

	conv.mu.Lock()
	defer conv.mu.Unlock()

	reply := Reply{Text: conv.engine.Respond(ctx, text)}
	conv.touch(time.Now())

	turns := conv.engine.Transcript()
	linkShared, consultation := learner.DetectOutcome(turns)
	reply.LinkShared = linkShared

	if linkShared && !conv.analyzed {
		reply.Analyzed = m.learn(ctx, conv, turns, linkShared, consultation)
	}

	m.mirror(ctx, conv, len(turns), linkShared)
	return reply, nil
}

// Transcript returns the retained turns of a conversation.
func (m *Manager) Transcript(id string) ([]analyzer.Turn, error) {
	conv, err := m.get(id)
	if err != nil {
		return nil, err
	}
	return conv.engine.Transcript(), nil
}

// Reset analyzes the conversation if it qualifies and then clears it.
func (m *Manager) Reset(ctx context.Context, id string) (bool, error) {
	conv, err := m.get(id)
	if err != nil {
		return false, err
	}

	conv.mu.Lock()
	defer conv.mu.Unlock()

	analyzed := m.finish(ctx, conv)
	conv.engine.Reset()
	conv.analyzed = false
	conv.touch(time.Now())
	m.mirror(ctx, conv, 0, false)

	m.logger.Info("conversation reset", "session_id", id, "analyzed", analyzed)
	return analyzed, nil
}

// Remove finishes and drops a conversation.
func (m *Manager) Remove(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	conv, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.reportCount()
	m.mu.Unlock()
	if !ok {
		return false, ErrNotFound
	}

	conv.mu.Lock()
	analyzed := m.finish(ctx, conv)
	conv.mu.Unlock()

	m.forget(ctx, id)
	return analyzed, nil
}

// finish learns from a conversation that qualifies and has not been learned
// yet. Callers hold conv.mu.
func (m *Manager) finish(ctx context.Context, conv *Conversation) bool {
	if conv.analyzed {
		return false
	}
	turns := conv.engine.Transcript()
	if len(turns) == 0 {
		return false
	}
	linkShared, consultation := learner.DetectOutcome(turns)
	if !linkShared && len(turns) < m.cfg.AnalyzeAfter {
		return false
	}
	return m.learn(ctx, conv, turns, linkShared, consultation)
}

func (m *Manager) learn(ctx context.Context, conv *Conversation, turns []analyzer.Turn, linkShared, consultation bool) bool {
	_, err := m.learner.Learn(ctx, learner.Outcome{
		SessionID:             conv.ID,
		Turns:                 turns,
		LinkShared:            linkShared,
		ConsultationRequested: consultation,
	})
	if err != nil {
		m.logger.Warn("conversation not learned", "session_id", conv.ID, "error", err)
		return false
	}
	conv.analyzed = true
	return true
}

func (m *Manager) mirror(ctx context.Context, conv *Conversation, messages int, linkShared bool) {
	if m.redis == nil {
		return
	}
	key := "session:" + conv.ID
	if err := m.redis.HSet(ctx, key, map[string]interface{}{
		"last_activity": conv.LastActivity().Format(time.RFC3339),
		"message_count": messages,
		"link_shared":   linkShared,
		"analyzed":      conv.analyzed,
	}).Err(); err != nil {
		m.logger.Warn("redis mirror failed", "session_id", conv.ID, "error", err)
		return
	}
	m.redis.Expire(ctx, key, m.cfg.SessionTimeout)
}

func (m *Manager) forget(ctx context.Context, id string) {
	if m.redis == nil {
		return
	}
	m.redis.Del(ctx, "session:"+id)
	m.redis.SRem(ctx, activeSessionsKey, id)
}

// Count returns the number of open conversations.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// reportCount must be called with m.mu held.
func (m *Manager) reportCount() {
	if m.gauge != nil {
		m.gauge.SessionsActive(len(m.sessions))
	}
}

// CleanupInactive finishes and drops conversations idle longer than the
// session timeout.
func (m *Manager) CleanupInactive(ctx context.Context) int {
	now := time.Now()

	m.mu.Lock()
	var expired []*Conversation
	for id, conv := range m.sessions {
		if now.Sub(conv.LastActivity()) > m.cfg.SessionTimeout {
			expired = append(expired, conv)
			delete(m.sessions, id)
		}
	}
	m.reportCount()
	m.mu.Unlock()

	for _, conv := range expired {
		conv.mu.Lock()
		m.finish(ctx, conv)
		conv.mu.Unlock()
		m.forget(ctx, conv.ID)
		m.logger.Info("conversation expired", "session_id", conv.ID)
	}
	return len(expired)
}

// StartCleanupRoutine runs CleanupInactive every interval until ctx is done.
func (m *Manager) StartCleanupRoutine(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.CleanupInactive(ctx)
		}
	}
}

// Shutdown finishes every open conversation.
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.Lock()
	convs := make([]*Conversation, 0, len(m.sessions))
	for id, conv := range m.sessions {
		convs = append(convs, conv)
		delete(m.sessions, id)
	}
	m.reportCount()
	m.mu.Unlock()

	for _, conv := range convs {
		conv.mu.Lock()
		m.finish(ctx, conv)
		conv.mu.Unlock()
		m.forget(ctx, conv.ID)
	}
}
