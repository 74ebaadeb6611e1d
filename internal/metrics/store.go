package metrics

import (
	"context"
	"fmt"
	"sort"
	"time"

	"ai-fitness-planner/internal/database"
	"ai-fitness-planner/internal/shared"
)

// ExecutionMetric records metadata for a single provider call.
type ExecutionMetric struct {
	Provider         string
	Role             string
	Model            string
	PromptTokens     int
	CompletionTokens int
	LatencyMS        int64
	Success          bool
	Timestamp        time.Time
}

// Store handles persistence of metrics to the execution_metrics table.
type Store struct {
	db  *database.DB
	now func() time.Time
}

// NewStore initializes the Store with an existing database connection.
func NewStore(db *database.DB) *Store {
	return &Store{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

const insertExecutionMetric = `INSERT INTO execution_metrics
	(provider, role, model, prompt_tokens, completion_tokens, latency_ms, success, timestamp)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

// Record saves a metric to the database.
func (s *Store) Record(ctx context.Context, m ExecutionMetric) error {
	ts := m.Timestamp
	if ts.IsZero() {
		ts = s.now()
	}

	_, err := s.db.SQL.ExecContext(ctx, s.db.Rebind(insertExecutionMetric),
		m.Provider,
		m.Role,
		m.Model,
		m.PromptTokens,
		m.CompletionTokens,
		m.LatencyMS,
		m.Success,
		ts.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record execution metric: %w", err)
	}
	return nil
}

// RecordCall records one provider call from its CallMeta.
func (s *Store) RecordCall(ctx context.Context, meta shared.CallMeta) error {
	return s.Record(ctx, MapUsage(meta))
}

// DailyUsage represents token totals for a single day.
type DailyUsage struct {
	Date            string
	TotalPrompt     int
	TotalCompletion int
	TotalExecution  int
	Failures        int
}

const selectUsageSince = `SELECT prompt_tokens, completion_tokens, success, timestamp
	FROM execution_metrics
	WHERE timestamp >= ?`

// GetDailyUsage retrieves usage for the last N days, newest day first.
// Days are bucketed in UTC.
func (s *Store) GetDailyUsage(ctx context.Context, days int) ([]DailyUsage, error) {
	since := s.now().AddDate(0, 0, -days)
	rows, err := s.db.SQL.QueryContext(ctx, s.db.Rebind(selectUsageSince), since)
	if err != nil {
		return nil, fmt.Errorf("failed to query usage: %w", err)
	}
	defer rows.Close()

	byDay := make(map[string]*DailyUsage)
	for rows.Next() {
		var (
			prompt, completion int
			success            bool
			ts                 time.Time
		)
		if err := rows.Scan(&prompt, &completion, &success, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan usage row: %w", err)
		}
		day := ts.UTC().Format("2006-01-02")
		u, ok := byDay[day]
		if !ok {
			u = &DailyUsage{Date: day}
			byDay[day] = u
		}
		u.TotalPrompt += prompt
		u.TotalCompletion += completion
		u.TotalExecution++
		if !success {
			u.Failures++
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read usage rows: %w", err)
	}

	results := make([]DailyUsage, 0, len(byDay))
	for _, u := range byDay {
		results = append(results, *u)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Date > results[j].Date })
	return results, nil
}

// Cleanup removes records older than the specified number of days.
func (s *Store) Cleanup(ctx context.Context, olderThanDays int) (int64, error) {
	threshold := s.now().AddDate(0, 0, -olderThanDays)
	res, err := s.db.SQL.ExecContext(ctx, s.db.Rebind(`DELETE FROM execution_metrics WHERE timestamp < ?`), threshold)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up execution metrics: %w", err)
	}
	return res.RowsAffected()
}

// MapUsage converts a CallMeta to an ExecutionMetric.
func MapUsage(meta shared.CallMeta) ExecutionMetric {
	return ExecutionMetric{
		Provider:         meta.Provider,
		Role:             meta.Role,
		Model:            meta.Usage.Model,
		PromptTokens:     meta.Usage.PromptTokens,
		CompletionTokens: meta.Usage.CompletionTokens,
		LatencyMS:        meta.Latency.Milliseconds(),
		Success:          meta.Err == nil,
		Timestamp:        time.Now().UTC(),
	}
}
