//go:build integration

package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/closer/internal/analyzer"
	"github.com/MikeSquared-Agency/closer/internal/strategy"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, dbURL)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}

	t.Cleanup(func() {
		s.Close()
	})
	return s
}

func TestIntegration_SaveAndLoadStrategy(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	rec := strategy.Default()
	rec.Version = int(time.Now().Unix())
	rec.Timing.LinkTiming = 5
	rec.Learned.SuccessfulPhrases = []string{"Sure, no problem", "Yes, no problem"}

	if err := s.Save(ctx, rec); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got.Version != rec.Version {
		t.Errorf("expected version %d, got %d", rec.Version, got.Version)
	}
	if got.Timing.LinkTiming != 5 {
		t.Errorf("expected link timing 5, got %d", got.Timing.LinkTiming)
	}
	if len(got.Learned.SuccessfulPhrases) != 2 || got.Learned.SuccessfulPhrases[1] != "Yes, no problem" {
		t.Errorf("expected phrase order preserved, got %v", got.Learned.SuccessfulPhrases)
	}

	// Saving the same version again replaces it.
	rec.Timing.LinkTiming = 3
	if err := s.Save(ctx, rec); err != nil {
		t.Fatalf("second Save failed: %v", err)
	}
	got, err = s.Version(ctx, rec.Version)
	if err != nil {
		t.Fatalf("Version failed: %v", err)
	}
	if got.Timing.LinkTiming != 3 {
		t.Errorf("expected link timing 3 after overwrite, got %d", got.Timing.LinkTiming)
	}
}

func TestIntegration_VersionNotFound(t *testing.T) {
	s := setupTestStore(t)
	_, err := s.Version(context.Background(), -1)
	if err != strategy.ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestIntegration_ArchiveFeatures(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	sessionID := "integration-test-" + uuid.New().String()[:8]

	f := analyzer.Features{
		Timestamp:     time.Now().UTC().Truncate(time.Second),
		UserTurnCount: 4,
		LinkShared:    true,
		Topics:        []string{"singapore", "pricing"},
		UserStyle:     analyzer.StyleStandard,
	}

	id, err := s.ArchiveFeatures(ctx, sessionID, f)
	if err != nil {
		t.Fatalf("ArchiveFeatures failed: %v", err)
	}
	if id == uuid.Nil {
		t.Fatal("expected non-nil id")
	}

	got, err := s.FeaturesForSession(ctx, sessionID)
	if err != nil {
		t.Fatalf("FeaturesForSession failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 archived record, got %d", len(got))
	}
	if got[0].UserTurnCount != 4 || !got[0].LinkShared {
		t.Errorf("unexpected archived features: %+v", got[0])
	}
	if len(got[0].Topics) != 2 || got[0].Topics[0] != "singapore" {
		t.Errorf("expected topics in order, got %v", got[0].Topics)
	}
}
