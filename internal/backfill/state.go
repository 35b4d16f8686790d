package backfill

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultStatePath is used when no state path is configured.
const DefaultStatePath = "~/.closer/backfill-state.json"

// BackfillState tracks progress for resumable backfill runs.
type BackfillState struct {
	StartedAt            time.Time `json:"started_at"`
	LastProcessedAt      time.Time `json:"last_processed_at"`
	FilesProcessed       []string  `json:"files_processed"`
	ConversationsLearned int       `json:"conversations_learned"`
	ConversationsSkipped int       `json:"conversations_skipped"`
	Duplicates           int       `json:"duplicates"`
	Fingerprints         []string  `json:"fingerprints"`
	Errors               []string  `json:"errors"`

	path string
	seen map[string]bool
}

// LoadState loads the backfill state from disk, or creates a new one.
func LoadState(path string) (*BackfillState, error) {
	if path == "" {
		path = DefaultStatePath
	}
	p := expandHome(path)

	data, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return &BackfillState{
				StartedAt: time.Now().UTC(),
				path:      p,
			}, nil
		}
		return nil, fmt.Errorf("read state: %w", err)
	}

	var s BackfillState
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse state: %w", err)
	}
	s.path = p
	return &s, nil
}

// Path returns where the state is saved.
func (s *BackfillState) Path() string { return s.path }

// Save persists the state to disk.
func (s *BackfillState) Save() error {
	s.LastProcessedAt = time.Now().UTC()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	return os.WriteFile(s.path, data, 0o644)
}

// IsProcessed returns true if the given file has already been processed.
func (s *BackfillState) IsProcessed(path string) bool {
	for _, f := range s.FilesProcessed {
		if f == path {
			return true
		}
	}
	return false
}

// MarkProcessed records a file as processed.
func (s *BackfillState) MarkProcessed(path string) {
	s.FilesProcessed = append(s.FilesProcessed, path)
}

// HasSeen reports whether a conversation fingerprint was already learned.
func (s *BackfillState) HasSeen(fp string) bool {
	if s.seen == nil {
		s.seen = make(map[string]bool, len(s.Fingerprints))
		for _, f := range s.Fingerprints {
			s.seen[f] = true
		}
	}
	return s.seen[fp]
}

// MarkSeen records a learned conversation fingerprint.
func (s *BackfillState) MarkSeen(fp string) {
	if s.HasSeen(fp) {
		return
	}
	s.seen[fp] = true
	s.Fingerprints = append(s.Fingerprints, fp)
}

// AddError records a processing error.
func (s *BackfillState) AddError(msg string) {
	s.Errors = append(s.Errors, msg)
}

func expandHome(path string) string {
	if len(path) > 1 && path[0] == '~' && path[1] == '/' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
