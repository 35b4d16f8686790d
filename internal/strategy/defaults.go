package strategy

import "github.com/MikeSquared-Agency/closer/internal/analyzer"

// Default returns the hardcoded strategy used when nothing durable exists.
func Default() *Record {
	return &Record{
		Version: 0,
		Tactics: Tactics{
			OpeningPhrases: []string{
				"Sure, no problem.",
				"Happy to help.",
				"Let me share some details.",
				"Yes, no problem.",
			},
			SuccessfulTransitions: []string{
				"We have many clients in that industry",
				"We work with established banking partners",
				"Our team has extensive experience",
			},
			ResponsePatterns: map[string]string{
				PatternCost:                   "Sure, no problem. " + costContinuation,
				PatternJurisdictionComparison: "Happy to help. Both have excellent benefits and the best choice depends on your specific business needs. What's your main priority?",
				PatternBanking:                "Let me share some details. " + bankingContinuation,
				PatternUrgency:                "Yes, no problem. We can definitely help with urgent setups and usually complete incorporations around one week. Our team would be happy to provide more information if needed.",
			},
			ProvenQuestions: []string{
				"What's your main priority for the setup?",
				"What industry are you in?",
				"What's driving your decision to expand there?",
			},
			ConsultationTriggers: []string{DefaultConsultationTrigger},
		},
		Timing: Timing{
			LinkTiming:         DefaultLinkTiming,
			UrgencyTriggers:    []string{"urgent", "asap", "quickly", "timeline", "when", "fast", "immediate"},
			EarlyLinkScenarios: []string{ScenarioDetailedCost, ScenarioSpecificTimeline, ScenarioMultiJurisdiction, ScenarioBankingRequirements},
			EngagementSignals:  []string{"long_responses", "multiple_questions", "industry_specific"},
		},
		Learned: LearnedPatterns{
			SuccessfulConversations: []analyzer.Features{},
			FailedConversations:     []analyzer.Features{},
			SuccessfulPhrases:       []string{},
			HighConversionTopics:    []string{},
		},
	}
}

// Canned continuations used when a learned phrase is promoted ahead of them.
const (
	costContinuation    = "Pricing is customized based on your specific requirements and we provide quotes individually after a free expert consultation. What's your timeline looking like?"
	bankingContinuation = "We work with several banking partners and the best option depends on your industry and home country. Would you like to discuss this in detail?"
)

// CostPattern builds the cost_inquiry reply led by phrase.
func CostPattern(phrase string) string {
	return phrase + ". " + costContinuation
}

// BankingPattern builds the banking_inquiry reply led by phrase.
func BankingPattern(phrase string) string {
	return phrase + ". " + bankingContinuation
}
