package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	appLog "lockin/internal/log"
	"lockin/internal/model"
)

// LoadSchedule returns the user's schedule blocks in saved order, or
// ErrNotFound when the user has no schedule.
func (s *Store) LoadSchedule(ctx context.Context, userID string) ([]model.ScheduleBlock, error) {
	query := `
        SELECT block_id, start_time, end_time, activity, category, days
        FROM schedule_blocks
        WHERE user_id = ?
        ORDER BY position ASC
    `
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("store: load schedule: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var blocks []model.ScheduleBlock
	for rows.Next() {
		var b model.ScheduleBlock
		var category, daysJSON string
		if err := rows.Scan(&b.ID, &b.Start, &b.End, &b.Activity, &category, &daysJSON); err != nil {
			return nil, fmt.Errorf("store: scan block: %w", err)
		}
		b.Category = model.Category(category)
		if daysJSON != "" && daysJSON != "[]" {
			var days []time.Weekday
			if err := json.Unmarshal([]byte(daysJSON), &days); err != nil {
				// The block degrades to every-day rather than vanishing.
				appLog.Warn("store: corrupt days value; treating block as daily", err,
					"user", userID, "block", b.ID, "days", daysJSON)
			} else {
				b.Days = days
			}
		}
		blocks = append(blocks, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(blocks) == 0 {
		return nil, ErrNotFound
	}
	return blocks, nil
}

// SaveSchedule replaces the user's schedule wholesale in one transaction.
// There is no optimistic concurrency check: concurrent saves for the same
// user resolve to last write wins.
func (s *Store) SaveSchedule(ctx context.Context, userID string, blocks []model.ScheduleBlock) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin save schedule: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM schedule_blocks WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("store: clear schedule: %w", err)
	}

	insert := `
        INSERT INTO schedule_blocks (user_id, position, block_id, start_time, end_time, activity, category, days)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)
    `
	for i, b := range blocks {
		daysJSON := "[]"
		if len(b.Days) > 0 {
			data, _ := json.Marshal(b.Days)
			daysJSON = string(data)
		}
		if _, err := tx.ExecContext(ctx, insert, userID, i, b.ID, b.Start, b.End, b.Activity, string(b.Category), daysJSON); err != nil {
			return fmt.Errorf("store: insert block %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit schedule: %w", err)
	}
	return nil
}

// UsersWithSchedules lists every user ID that currently has a saved
// schedule. Used by the daily cron jobs.
func (s *Store) UsersWithSchedules(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT user_id FROM schedule_blocks ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("store: list users: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var users []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
