package strategy

import (
	"context"
	"errors"
	"log/slog"
)

var (
	// ErrNotFound means no record has been stored yet.
	ErrNotFound = errors.New("strategy not found")
	// ErrStorageUnavailable wraps any failure to reach durable storage.
	ErrStorageUnavailable = errors.New("strategy storage unavailable")
)

// Store is durable storage for the single strategy record.
type Store interface {
	Load(ctx context.Context) (*Record, error)
	Save(ctx context.Context, r *Record) error
}

// VersionedStore is a Store that also keeps every saved version.
type VersionedStore interface {
	Store
	Version(ctx context.Context, version int) (*Record, error)
}

// LoadOrDefault loads the stored record, substituting Default when it is
// absent or storage cannot be read.
func LoadOrDefault(ctx context.Context, s Store, logger *slog.Logger) *Record {
	if s == nil {
		return Default()
	}
	r, err := s.Load(ctx)
	switch {
	case err == nil:
		logger.Info("strategy loaded", "version", r.Version, "link_timing", r.Timing.LinkTiming)
		return r
	case errors.Is(err, ErrNotFound):
		logger.Info("no stored strategy, using defaults")
	default:
		logger.Warn("strategy load failed, using defaults", "error", err)
	}
	return Default()
}
