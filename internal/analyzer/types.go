package analyzer

import "time"

// Role identifies who authored a turn.
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

// Turn is one message in a conversation.
type Turn struct {
	Role    Role   `json:"role"`
	Text    string `json:"content"`
	Ordinal int    `json:"ordinal"`
}

// FlowEvent tags what an agent turn did.
type FlowEvent string

const (
	FlowQuestionAsked       FlowEvent = "question_asked"
	FlowConsultationOffered FlowEvent = "consultation_offered"
	FlowBankingDiscussed    FlowEvent = "banking_discussed"
	FlowTaxationDiscussed   FlowEvent = "taxation_discussed"
	FlowTimelineDiscussed   FlowEvent = "timeline_discussed"
)

// UserStyle is a coarse description of how the lead writes.
type UserStyle string

const (
	StyleBrief       UserStyle = "brief"
	StyleDetailed    UserStyle = "detailed"
	StyleInquisitive UserStyle = "inquisitive"
	StyleStandard    UserStyle = "standard"
	StyleUnknown     UserStyle = "unknown"
)

// Features is what one finished conversation teaches the strategy.
// JSON names match the durable strategy file.
type Features struct {
	Timestamp             time.Time   `json:"timestamp"`
	UserTurnCount         int         `json:"message_count"`
	LinkShared            bool        `json:"link_shared"`
	ConsultationRequested bool        `json:"consultation_requested"`
	EngagementScore       float64     `json:"user_engagement"`
	Topics                []string    `json:"topics_discussed"`
	SuccessfulPhrases     []string    `json:"successful_phrases"`
	FlowEvents            []FlowEvent `json:"conversation_flow"`
	UserStyle             UserStyle   `json:"user_response_style"`
}

// HasTopic reports whether topic was discussed.
func (f Features) HasTopic(topic string) bool {
	for _, t := range f.Topics {
		if t == topic {
			return true
		}
	}
	return false
}
