package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/MikeSquared-Agency/closer/internal/analyzer"
	"github.com/MikeSquared-Agency/closer/internal/strategy"
)

const defaultPostMessageURL = "https://slack.com/api/chat.postMessage"

type Poster struct {
	token   string
	channel string
	client  *http.Client
	logger  *slog.Logger
	apiURL  string
}

func NewPoster(token, channel string, logger *slog.Logger) *Poster {
	return &Poster{
		token:   token,
		channel: channel,
		client:  &http.Client{Timeout: 10 * time.Second},
		apiURL:  defaultPostMessageURL,
		logger:  logger,
	}
}

// PostLearningSummary posts what one conversation taught the strategy.
// Returns the message timestamp.
func (p *Poster) PostLearningSummary(ctx context.Context, sessionID string, f analyzer.Features, rec *strategy.Record) (string, error) {
	ts, err := p.PostText(ctx, formatLearningMessage(sessionID, f, rec))
	if err != nil {
		return "", err
	}
	p.logger.Info("posted learning summary to slack", "ts", ts, "session_id", sessionID)
	return ts, nil
}

// PostText posts a standalone mrkdwn message and returns its timestamp.
func (p *Poster) PostText(ctx context.Context, text string) (string, error) {
	body, err := json.Marshal(map[string]any{
		"channel": p.channel,
		"text":    text,
		"blocks": []map[string]any{
			{
				"type": "section",
				"text": map[string]any{
					"type": "mrkdwn",
					"text": text,
				},
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+p.token)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("slack post: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var slackResp struct {
		OK    bool   `json:"ok"`
		TS    string `json:"ts"`
		Error string `json:"error,omitempty"`
	}
	if err := json.Unmarshal(respBody, &slackResp); err != nil {
		return "", fmt.Errorf("parse slack response: %w", err)
	}
	if !slackResp.OK {
		return "", fmt.Errorf("slack error: %s", slackResp.Error)
	}

	return slackResp.TS, nil
}

func formatLearningMessage(sessionID string, f analyzer.Features, rec *strategy.Record) string {
	var sb strings.Builder

	outcome := "no link shared"
	if f.LinkShared {
		outcome = "link shared"
	}
	fmt.Fprintf(&sb, "*Conversation:* %s (%s)\n", sessionID, outcome)
	fmt.Fprintf(&sb, "*Messages:* %d | *Engagement:* %.2f | *Style:* %s\n", f.UserTurnCount, f.EngagementScore, f.UserStyle)

	if len(f.Topics) > 0 {
		fmt.Fprintf(&sb, "*Topics:* %s\n", strings.Join(f.Topics, ", "))
	}
	if len(f.SuccessfulPhrases) > 0 {
		fmt.Fprintf(&sb, "*Phrases learned: %d*\n", len(f.SuccessfulPhrases))
		for i, phrase := range f.SuccessfulPhrases {
			fmt.Fprintf(&sb, "%d. %s\n", i+1, phrase)
		}
	}

	if rec != nil {
		fmt.Fprintf(&sb, "\n*Strategy v%d:* link timing %d | %d conversations | %.1f%% conversion",
			rec.Version, rec.EffectiveLinkTiming(), rec.Metrics.ConversationsCompleted, rec.Metrics.ConversionRate)
	}

	return sb.String()
}
