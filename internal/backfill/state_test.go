package backfill

import (
	"os"
	"path/filepath"
	"testing"
)

func TestBackfillState_SaveAndReload(t *testing.T) {
	dir := t.TempDir()
	statePath := filepath.Join(dir, "state.json")

	s, err := LoadState(statePath)
	if err != nil {
		t.Fatalf("LoadState failed: %v", err)
	}
	s.MarkProcessed("file1.jsonl")
	s.MarkProcessed("file2.jsonl")
	s.MarkSeen("abc")
	s.ConversationsLearned = 5

	if err := s.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	reloaded, err := LoadState(statePath)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if !reloaded.IsProcessed("file2.jsonl") {
		t.Error("expected file2 to be processed after reload")
	}
	if !reloaded.HasSeen("abc") {
		t.Error("expected fingerprint to survive reload")
	}
	if reloaded.ConversationsLearned != 5 {
		t.Errorf("expected 5 learned, got %d", reloaded.ConversationsLearned)
	}
	if reloaded.LastProcessedAt.IsZero() {
		t.Error("expected last processed time to be set")
	}
}

func TestLoadState_CorruptFile(t *testing.T) {
	statePath := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(statePath, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadState(statePath); err == nil {
		t.Fatal("expected error for corrupt state file")
	}
}

func TestBackfillState_IsProcessed(t *testing.T) {
	s := &BackfillState{}

	if s.IsProcessed("file1.jsonl") {
		t.Error("file1 should not be processed yet")
	}

	s.MarkProcessed("file1.jsonl")

	if !s.IsProcessed("file1.jsonl") {
		t.Error("file1 should be processed")
	}
	if s.IsProcessed("file2.jsonl") {
		t.Error("file2 should not be processed")
	}
}

func TestBackfillState_MarkSeenOnce(t *testing.T) {
	s := &BackfillState{}
	s.MarkSeen("fp")
	s.MarkSeen("fp")

	if len(s.Fingerprints) != 1 {
		t.Errorf("expected 1 fingerprint, got %d", len(s.Fingerprints))
	}
}

func TestBackfillState_AddError(t *testing.T) {
	s := &BackfillState{}
	s.AddError("something went wrong")
	s.AddError("another error")

	if len(s.Errors) != 2 {
		t.Fatalf("expected 2 errors, got %d", len(s.Errors))
	}
	if s.Errors[0] != "something went wrong" {
		t.Errorf("error[0] = %q", s.Errors[0])
	}
}

func TestBackfillState_SaveCreatesDirectories(t *testing.T) {
	dir := t.TempDir()
	statePath := filepath.Join(dir, "nested", "dir", "state.json")

	s := &BackfillState{path: statePath}
	if err := s.Save(); err != nil {
		t.Fatalf("Save with nested dir failed: %v", err)
	}
	if _, err := os.Stat(statePath); err != nil {
		t.Fatalf("state file not created in nested dir: %v", err)
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("cannot determine home dir")
	}

	got := expandHome("~/test/path")
	want := filepath.Join(home, "test/path")
	if got != want {
		t.Errorf("expandHome(~/test/path) = %q, want %q", got, want)
	}

	got = expandHome("/absolute/path")
	if got != "/absolute/path" {
		t.Errorf("expandHome(/absolute/path) = %q", got)
	}
}
