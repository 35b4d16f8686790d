package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/closer/internal/analyzer"
)

// ArchiveFeatures keeps the features of one analyzed conversation.
func (s *Store) ArchiveFeatures(ctx context.Context, sessionID string, f analyzer.Features) (uuid.UUID, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshal features: %w", err)
	}

	id := uuid.New()
	_, err = s.pool.Exec(ctx, `
		INSERT INTO conversation_features (id, session_id, link_shared, record)
		VALUES ($1, $2, $3, $4)`,
		id, sessionID, f.LinkShared, data,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert conversation features: %w", err)
	}
	return id, nil
}

// FeaturesForSession returns archived features for a session, oldest first.
func (s *Store) FeaturesForSession(ctx context.Context, sessionID string) ([]analyzer.Features, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT record FROM conversation_features
		WHERE session_id = $1 ORDER BY created_at`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query conversation features: %w", err)
	}
	defer rows.Close()

	var out []analyzer.Features
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan conversation features: %w", err)
		}
		var f analyzer.Features
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("unmarshal conversation features: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
