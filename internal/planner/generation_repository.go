package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ai-fitness-planner/internal/database"
)

// GenerationRepository stores the append-only generation audit trail.
// Rows are never updated or deleted.
type GenerationRepository struct {
	db *database.DB
}

func NewGenerationRepository(db *database.DB) *GenerationRepository {
	return &GenerationRepository{db: db}
}

const generationColumns = `id, plan_id, user_id, generation_type, providers, synthesizer, prompt, response, tokens_used, flagged, created_at`

// SaveGeneration appends one audit row.
func (r *GenerationRepository) SaveGeneration(ctx context.Context, g *GenerationRecord) error {
	providers, err := json.Marshal(g.Providers)
	if err != nil {
		return fmt.Errorf("failed to encode providers: %w", err)
	}
	synth, err := json.Marshal(g.Synthesizer)
	if err != nil {
		return fmt.Errorf("failed to encode synthesizer: %w", err)
	}

	_, err = r.db.SQL.ExecContext(ctx,
		r.db.Rebind(`INSERT INTO ai_generations (`+generationColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		g.ID, g.PlanID, g.UserID, g.GenerationType, string(providers), string(synth),
		g.Prompt, g.Response, g.TokensUsed, g.Flagged, g.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert generation record: %w", err)
	}
	return nil
}

// ListByUserID returns the newest audit rows for a user.
func (r *GenerationRepository) ListByUserID(ctx context.Context, userID string, limit int) ([]GenerationRecord, error) {
	rows, err := r.db.SQL.QueryContext(ctx,
		r.db.Rebind(`SELECT `+generationColumns+` FROM ai_generations WHERE user_id = ? ORDER BY created_at DESC LIMIT ?`),
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list generations for user %s: %w", userID, err)
	}
	defer rows.Close()

	records := []GenerationRecord{}
	for rows.Next() {
		var (
			g                GenerationRecord
			providers, synth string
			createdAt        time.Time
		)
		if err := rows.Scan(&g.ID, &g.PlanID, &g.UserID, &g.GenerationType, &providers, &synth,
			&g.Prompt, &g.Response, &g.TokensUsed, &g.Flagged, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan generation record: %w", err)
		}
		if err := json.Unmarshal([]byte(providers), &g.Providers); err != nil {
			return nil, fmt.Errorf("failed to decode providers: %w", err)
		}
		if err := json.Unmarshal([]byte(synth), &g.Synthesizer); err != nil {
			return nil, fmt.Errorf("failed to decode synthesizer: %w", err)
		}
		g.CreatedAt = createdAt.UTC()
		records = append(records, g)
	}
	return records, rows.Err()
}
