package store

import (
	"context"
	"fmt"
	"time"
)

// MarkSummarySent records that the daily summary for (user, date) went
// out. It returns first=true only for the initial call on a given day, so
// callers get once-per-day send discipline from a single statement.
func (s *Store) MarkSummarySent(ctx context.Context, userID, date string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO summaries_sent (user_id, date, sent_at) VALUES (?, ?, ?)`,
		userID, date, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return false, fmt.Errorf("store: mark summary sent: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("store: mark summary sent: %w", err)
	}
	return n > 0, nil
}

// Streak counts consecutive fully-completed days ending at (and
// including) date. A day counts when its summary was sent, which only
// happens on AllComplete.
func (s *Store) Streak(ctx context.Context, userID, date string) (int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT date FROM summaries_sent WHERE user_id = ? AND date <= ? ORDER BY date DESC LIMIT 366`,
		userID, date,
	)
	if err != nil {
		return 0, fmt.Errorf("store: streak: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var dates []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return 0, err
		}
		dates = append(dates, d)
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	day, err := time.Parse("2006-01-02", date)
	if err != nil {
		return 0, fmt.Errorf("store: streak: bad date %q: %w", date, err)
	}

	streak := 0
	for _, d := range dates {
		want := day.AddDate(0, 0, -streak).Format("2006-01-02")
		if d != want {
			break
		}
		streak++
	}
	return streak, nil
}
