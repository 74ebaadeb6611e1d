package planner

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ai-fitness-planner/internal/database"
)

// ErrPlanNotFound is returned when no plan has the requested id.
var ErrPlanNotFound = errors.New("plan not found")

// PlanRepository is a database-backed repository for synthesized plans.
type PlanRepository struct {
	db *database.DB
}

// NewPlanRepository creates a new PlanRepository.
func NewPlanRepository(db *database.DB) *PlanRepository {
	return &PlanRepository{db: db}
}

const planColumns = `id, user_id, name, plan_type, generation_type, content, flagged, reasons,
	bmr, tdee, calories, protein_g, carbs_g, fat_g, bmi, water_glasses, sources, synthesizer, created_at`

// SavePlan inserts a new plan.
func (r *PlanRepository) SavePlan(ctx context.Context, p *Plan) error {
	reasons, err := json.Marshal(nonNil(p.Reasons))
	if err != nil {
		return fmt.Errorf("failed to encode reasons: %w", err)
	}
	sources, err := json.Marshal(p.Sources)
	if err != nil {
		return fmt.Errorf("failed to encode sources: %w", err)
	}
	synth, err := json.Marshal(p.Synthesizer)
	if err != nil {
		return fmt.Errorf("failed to encode synthesizer: %w", err)
	}

	query := r.db.Rebind(`INSERT INTO plans (` + planColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err = r.db.SQL.ExecContext(ctx, query,
		p.ID, p.UserID, p.Name, string(p.PlanType), p.GenerationType, p.Content, p.Flagged, string(reasons),
		p.Targets.BMR, p.Targets.TDEE, p.Targets.Calories,
		p.Targets.Macros.ProteinG, p.Targets.Macros.CarbsG, p.Targets.Macros.FatG,
		p.Targets.BMI, p.Targets.WaterGlasses,
		string(sources), string(synth), p.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert plan %s: %w", p.ID, err)
	}
	return nil
}

// GetPlan returns the plan with the given id or ErrPlanNotFound.
func (r *PlanRepository) GetPlan(ctx context.Context, id string) (*Plan, error) {
	row := r.db.SQL.QueryRowContext(ctx, r.db.Rebind(`SELECT `+planColumns+` FROM plans WHERE id = ?`), id)
	p, err := scanPlan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPlanNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get plan %s: %w", id, err)
	}
	return p, nil
}

// ListRecentByUserID retrieves the N most recent plans for a given user.
func (r *PlanRepository) ListRecentByUserID(ctx context.Context, userID string, limit int) ([]Plan, error) {
	rows, err := r.db.SQL.QueryContext(ctx,
		r.db.Rebind(`SELECT `+planColumns+` FROM plans WHERE user_id = ? ORDER BY created_at DESC LIMIT ?`),
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent plans for user %s: %w", userID, err)
	}
	defer rows.Close()

	plans := []Plan{}
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan plan: %w", err)
		}
		plans = append(plans, *p)
	}
	return plans, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPlan(s rowScanner) (*Plan, error) {
	var (
		p                       Plan
		planType                string
		reasons, sources, synth string
		createdAt               time.Time
	)
	err := s.Scan(
		&p.ID, &p.UserID, &p.Name, &planType, &p.GenerationType, &p.Content, &p.Flagged, &reasons,
		&p.Targets.BMR, &p.Targets.TDEE, &p.Targets.Calories,
		&p.Targets.Macros.ProteinG, &p.Targets.Macros.CarbsG, &p.Targets.Macros.FatG,
		&p.Targets.BMI, &p.Targets.WaterGlasses,
		&sources, &synth, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	p.PlanType = PlanType(planType)
	p.CreatedAt = createdAt.UTC()
	if err := json.Unmarshal([]byte(reasons), &p.Reasons); err != nil {
		return nil, fmt.Errorf("failed to decode reasons: %w", err)
	}
	if err := json.Unmarshal([]byte(sources), &p.Sources); err != nil {
		return nil, fmt.Errorf("failed to decode sources: %w", err)
	}
	if err := json.Unmarshal([]byte(synth), &p.Synthesizer); err != nil {
		return nil, fmt.Errorf("failed to decode synthesizer: %w", err)
	}
	return &p, nil
}
