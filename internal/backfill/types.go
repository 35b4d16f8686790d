package backfill

import (
	"time"

	"github.com/MikeSquared-Agency/closer/internal/hermes"
)

// Conversation is one line of an exported transcript file.
type Conversation struct {
	SessionID string           `json:"session_id"`
	Source    string           `json:"source,omitempty"`
	Messages  []hermes.Message `json:"messages"`
	EndedAt   time.Time        `json:"ended_at"`

	Path string `json:"-"`
	Line int    `json:"-"`
}

// FileSummary counts what a single file contributed.
type FileSummary struct {
	Path        string
	Date        string
	Learned     int
	LinksShared int
	Skipped     int
	Duplicates  int
	Errors      int
}

// Summary totals a backfill run.
type Summary struct {
	Files         int
	Conversations int
	Learned       int
	LinksShared   int
	Skipped       int
	Duplicates    int
	Errors        int
	DryRun        bool
}
