package database

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"ultra-signal-engine/internal/arbiter"
)

// Repository provides data access for the signal history
type Repository struct {
	db *DB
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// HealthCheck performs a database health check
func (r *Repository) HealthCheck(ctx context.Context) error {
	return r.db.Pool.Ping(ctx)
}

// SignalRecord is a persisted signal together with the change reason that
// made it worth persisting
type SignalRecord struct {
	arbiter.UltraSignal
	ChangeReason string    `json:"change_reason"`
	RecordedAt   time.Time `json:"recorded_at"`
}

// HistoryFilter narrows ListSignalHistory results. Zero values match
// everything.
type HistoryFilter struct {
	Symbol        string
	Timeframe     string
	Side          string
	MinConfidence float64
	Since         time.Time
	Limit         int
	Offset        int
}

// HistoryStats summarizes the persisted signal history
type HistoryStats struct {
	Total         int64              `json:"total"`
	BySide        map[string]int64   `json:"by_side"`
	ByTimeframe   map[string]int64   `json:"by_timeframe"`
	AvgConfidence map[string]float64 `json:"avg_confidence_by_side"`
}

// InsertSignalHistory persists a signal snapshot with its change reason
func (r *Repository) InsertSignalHistory(ctx context.Context, signal *arbiter.UltraSignal, changeReason string) error {
	sourcesJSON, err := json.Marshal(signal.SourcesUsed)
	if err != nil {
		return fmt.Errorf("marshal sources: %w", err)
	}
	subScoresJSON, err := json.Marshal(signal.SubScores)
	if err != nil {
		return fmt.Errorf("marshal sub scores: %w", err)
	}
	reasoningJSON, err := json.Marshal(signal.Reasoning)
	if err != nil {
		return fmt.Errorf("marshal reasoning: %w", err)
	}

	query := `
		INSERT INTO signal_history (id, symbol, timeframe, side, final_confidence, risk_level,
		                            entry, stop_loss, take_profit, rr_ratio, dominance_ratio,
		                            sources_used, sub_scores, reasoning, change_reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (id) DO UPDATE SET
			side = EXCLUDED.side,
			final_confidence = EXCLUDED.final_confidence,
			risk_level = EXCLUDED.risk_level,
			entry = EXCLUDED.entry,
			stop_loss = EXCLUDED.stop_loss,
			take_profit = EXCLUDED.take_profit,
			rr_ratio = EXCLUDED.rr_ratio,
			dominance_ratio = EXCLUDED.dominance_ratio,
			sources_used = EXCLUDED.sources_used,
			sub_scores = EXCLUDED.sub_scores,
			reasoning = EXCLUDED.reasoning,
			change_reason = EXCLUDED.change_reason
	`
	_, err = r.db.Pool.Exec(
		ctx, query,
		signal.ID, signal.Symbol, signal.Timeframe, signal.Side, signal.FinalConfidence, signal.RiskLevel,
		signal.Entry, signal.StopLoss, signal.TakeProfit, signal.RRRatio, signal.DominanceRatio,
		sourcesJSON, subScoresJSON, reasoningJSON, changeReason, signal.CreatedAt,
	)
	return err
}

// ListSignalHistory retrieves persisted signals matching the filter, newest
// first
func (r *Repository) ListSignalHistory(ctx context.Context, filter HistoryFilter) ([]*SignalRecord, error) {
	where, args := buildHistoryWhere(filter)

	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`
		SELECT id, symbol, timeframe, side, final_confidence, risk_level,
		       entry, stop_loss, take_profit, rr_ratio, dominance_ratio,
		       sources_used, sub_scores, reasoning, change_reason, created_at, recorded_at
		FROM signal_history
		%s
		ORDER BY created_at DESC
		LIMIT %d OFFSET %d
	`, where, limit, offset)

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*SignalRecord
	for rows.Next() {
		record := &SignalRecord{}
		var sourcesJSON, subScoresJSON, reasoningJSON []byte
		err := rows.Scan(
			&record.ID, &record.Symbol, &record.Timeframe, &record.Side,
			&record.FinalConfidence, &record.RiskLevel,
			&record.Entry, &record.StopLoss, &record.TakeProfit,
			&record.RRRatio, &record.DominanceRatio,
			&sourcesJSON, &subScoresJSON, &reasoningJSON,
			&record.ChangeReason, &record.CreatedAt, &record.RecordedAt,
		)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(sourcesJSON, &record.SourcesUsed); err != nil {
			return nil, fmt.Errorf("unmarshal sources for %s: %w", record.ID, err)
		}
		if err := json.Unmarshal(subScoresJSON, &record.SubScores); err != nil {
			return nil, fmt.Errorf("unmarshal sub scores for %s: %w", record.ID, err)
		}
		if err := json.Unmarshal(reasoningJSON, &record.Reasoning); err != nil {
			return nil, fmt.Errorf("unmarshal reasoning for %s: %w", record.ID, err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// SignalHistoryStats aggregates counts and average confidence over the
// persisted history
func (r *Repository) SignalHistoryStats(ctx context.Context) (*HistoryStats, error) {
	stats := &HistoryStats{
		BySide:        make(map[string]int64),
		ByTimeframe:   make(map[string]int64),
		AvgConfidence: make(map[string]float64),
	}

	if err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM signal_history`).Scan(&stats.Total); err != nil {
		return nil, err
	}

	rows, err := r.db.Pool.Query(ctx, `
		SELECT side, COUNT(*), AVG(final_confidence)
		FROM signal_history
		GROUP BY side
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var side string
		var count int64
		var avg float64
		if err := rows.Scan(&side, &count, &avg); err != nil {
			return nil, err
		}
		stats.BySide[side] = count
		stats.AvgConfidence[side] = avg
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	tfRows, err := r.db.Pool.Query(ctx, `
		SELECT timeframe, COUNT(*)
		FROM signal_history
		GROUP BY timeframe
	`)
	if err != nil {
		return nil, err
	}
	defer tfRows.Close()
	for tfRows.Next() {
		var timeframe string
		var count int64
		if err := tfRows.Scan(&timeframe, &count); err != nil {
			return nil, err
		}
		stats.ByTimeframe[timeframe] = count
	}
	return stats, tfRows.Err()
}

// buildHistoryWhere assembles the WHERE clause and positional args for the
// filter
func buildHistoryWhere(filter HistoryFilter) (string, []interface{}) {
	var clauses []string
	var args []interface{}

	add := func(clause string, value interface{}) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}

	if filter.Symbol != "" {
		add("symbol = $%d", filter.Symbol)
	}
	if filter.Timeframe != "" {
		add("timeframe = $%d", filter.Timeframe)
	}
	if filter.Side != "" {
		add("side = $%d", filter.Side)
	}
	if filter.MinConfidence > 0 {
		add("final_confidence >= $%d", filter.MinConfidence)
	}
	if !filter.Since.IsZero() {
		add("created_at >= $%d", filter.Since)
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(clauses, " AND "), args
}
