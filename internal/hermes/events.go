package hermes

import "time"

// Subjects.
const (
	SubjectTranscriptFinished  = "swarm.closer.transcript.finished"
	SubjectConversationLearned = "swarm.closer.conversation.learned"
	SubjectStrategyUpdated     = "swarm.closer.strategy.updated"
	SubjectAgentRegistered     = "swarm.agent.closer.registered"
)

// Message is one transcript line as exchanged with other services. Role is
// "user" or "assistant".
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// TranscriptFinished is published by chat surfaces when a conversation ends.
type TranscriptFinished struct {
	SessionID string    `json:"session_id"`
	Source    string    `json:"source,omitempty"`
	Messages  []Message `json:"messages"`
	EndedAt   time.Time `json:"ended_at,omitempty"`
}

// ConversationLearned reports the features learned from one conversation.
type ConversationLearned struct {
	SessionID             string    `json:"session_id"`
	StrategyVersion       int       `json:"strategy_version"`
	LinkShared            bool      `json:"link_shared"`
	ConsultationRequested bool      `json:"consultation_requested"`
	UserTurnCount         int       `json:"message_count"`
	EngagementScore       float64   `json:"user_engagement"`
	Topics                []string  `json:"topics_discussed"`
	UserStyle             string    `json:"user_response_style"`
	LearnedAt             time.Time `json:"learned_at"`
}

// StrategyUpdated announces a new strategy version.
type StrategyUpdated struct {
	Version                int     `json:"version"`
	LinkTiming             int     `json:"link_timing"`
	ConversationsCompleted int     `json:"conversations_completed"`
	ConversionRate         float64 `json:"conversion_rate"`
	SuccessfulPhrases      int     `json:"successful_phrases"`
}

// AgentRegistered is published once at startup.
type AgentRegistered struct {
	AgentID      string   `json:"agent_id"`
	Name         string   `json:"name"`
	Backend      string   `json:"backend"`
	Capabilities []string `json:"capabilities"`
}
