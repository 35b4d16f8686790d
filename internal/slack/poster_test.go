package slack

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MikeSquared-Agency/closer/internal/analyzer"
	"github.com/MikeSquared-Agency/closer/internal/strategy"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFormatLearningMessage_Success(t *testing.T) {
	f := analyzer.Features{
		UserTurnCount:     4,
		LinkShared:        true,
		EngagementScore:   0.53,
		Topics:            []string{"singapore", "pricing"},
		SuccessfulPhrases: []string{"Sure, no problem", "Yes, no problem"},
		UserStyle:         analyzer.StyleStandard,
	}
	rec := strategy.Default()
	rec.Version = 12
	rec.Metrics.ConversationsCompleted = 10
	rec.Metrics.ConversionRate = 40

	msg := formatLearningMessage("sess-1", f, rec)

	checks := []string{
		"sess-1",
		"link shared",
		"*Messages:* 4",
		"0.53",
		"singapore, pricing",
		"Phrases learned: 2",
		"2. Yes, no problem",
		"Strategy v12",
		"link timing 4",
		"40.0% conversion",
	}
	for _, check := range checks {
		if !strings.Contains(msg, check) {
			t.Errorf("expected message to contain %q", check)
		}
	}
}

func TestFormatLearningMessage_Failed(t *testing.T) {
	msg := formatLearningMessage("sess-2", analyzer.Features{UserStyle: analyzer.StyleUnknown}, nil)

	if !strings.Contains(msg, "no link shared") {
		t.Errorf("expected failed outcome, got %q", msg)
	}
	if strings.Contains(msg, "Phrases learned") || strings.Contains(msg, "Strategy v") {
		t.Errorf("expected no phrases or strategy line, got %q", msg)
	}
}

func TestPostLearningSummary_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer xoxb-test" {
			t.Errorf("expected Bearer xoxb-test, got %q", r.Header.Get("Authorization"))
		}

		body, _ := io.ReadAll(r.Body)
		var payload map[string]any
		json.Unmarshal(body, &payload)

		if payload["channel"] != "C123" {
			t.Errorf("expected channel C123, got %v", payload["channel"])
		}

		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"ok": true,
			"ts": "1234567890.123456",
		})
	}))
	defer server.Close()

	p := NewPoster("xoxb-test", "C123", discardLogger())
	p.apiURL = server.URL

	ts, err := p.PostLearningSummary(context.Background(), "sess-1", analyzer.Features{LinkShared: true}, strategy.Default())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ts != "1234567890.123456" {
		t.Errorf("expected ts 1234567890.123456, got %q", ts)
	}
}

func TestPostLearningSummary_SlackError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"ok":    false,
			"error": "channel_not_found",
		})
	}))
	defer server.Close()

	p := NewPoster("xoxb-test", "C123", discardLogger())
	p.apiURL = server.URL

	_, err := p.PostLearningSummary(context.Background(), "sess-1", analyzer.Features{}, nil)
	if err == nil {
		t.Fatal("expected error for slack error response")
	}
}

func TestPostText_SendsBlocks(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(map[string]any{"ok": true, "ts": "1.2"})
	}))
	defer server.Close()

	p := NewPoster("xoxb-test", "C123", discardLogger())
	p.apiURL = server.URL

	ts, err := p.PostText(context.Background(), "*Backfill* done")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ts != "1.2" {
		t.Errorf("expected ts 1.2, got %q", ts)
	}
	if got["text"] != "*Backfill* done" {
		t.Errorf("expected text to be forwarded, got %v", got["text"])
	}
	blocks, ok := got["blocks"].([]any)
	if !ok || len(blocks) != 1 {
		t.Errorf("expected one mrkdwn block, got %v", got["blocks"])
	}
}
