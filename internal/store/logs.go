package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"lockin/internal/model"
)

// AppendLog records a verification outcome for one block on one day.
// Resubmitting proof for the same block on the same day replaces the
// earlier log.
func (s *Store) AppendLog(ctx context.Context, userID string, lg model.VerificationLog) error {
	distractions := "[]"
	if len(lg.Distractions) > 0 {
		data, _ := json.Marshal(lg.Distractions)
		distractions = string(data)
	}

	query := `
        INSERT OR REPLACE INTO verification_logs (user_id, block_id, date, verified, focus_score, critique, distractions, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)
    `
	_, err := s.db.ExecContext(ctx, query,
		userID, lg.BlockID, lg.Date, boolToInt(lg.Verified), lg.FocusScore, lg.Critique, distractions,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("store: append log: %w", err)
	}
	return nil
}

// LogsForDay returns the user's verification logs for one day, keyed by
// block ID, which is the shape the daily aggregator consumes.
func (s *Store) LogsForDay(ctx context.Context, userID, date string) (map[string]model.VerificationLog, error) {
	query := `
        SELECT block_id, date, verified, focus_score, critique, distractions
        FROM verification_logs
        WHERE user_id = ? AND date = ?
    `
	rows, err := s.db.QueryContext(ctx, query, userID, date)
	if err != nil {
		return nil, fmt.Errorf("store: logs for day: %w", err)
	}
	defer func() { _ = rows.Close() }()

	logs := make(map[string]model.VerificationLog)
	for rows.Next() {
		var lg model.VerificationLog
		var verified int
		var distractions string
		if err := rows.Scan(&lg.BlockID, &lg.Date, &verified, &lg.FocusScore, &lg.Critique, &distractions); err != nil {
			return nil, fmt.Errorf("store: scan log: %w", err)
		}
		lg.Verified = verified != 0
		if distractions != "" && distractions != "[]" {
			_ = json.Unmarshal([]byte(distractions), &lg.Distractions)
		}
		logs[lg.BlockID] = lg
	}
	return logs, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
