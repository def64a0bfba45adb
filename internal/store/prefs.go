package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"lockin/internal/model"
)

// LoadPreferences returns the user's notification preferences. A user who
// never saved any gets the zero value (all channels off) rather than
// ErrNotFound, since that is a meaningful default.
func (s *Store) LoadPreferences(ctx context.Context, userID string) (model.Preferences, error) {
	query := `
        SELECT name, push_enabled, email_enabled, email, lead_minutes
        FROM preferences
        WHERE user_id = ?
    `
	var p model.Preferences
	var push, email int
	err := s.db.QueryRowContext(ctx, query, userID).Scan(&p.Name, &push, &email, &p.Email, &p.LeadMinutes)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Preferences{}, nil
	}
	if err != nil {
		return model.Preferences{}, fmt.Errorf("store: load preferences: %w", err)
	}
	p.PushEnabled = push != 0
	p.EmailEnabled = email != 0
	return p, nil
}

// SavePreferences upserts the user's notification preferences.
func (s *Store) SavePreferences(ctx context.Context, userID string, p model.Preferences) error {
	query := `
        INSERT INTO preferences (user_id, name, push_enabled, email_enabled, email, lead_minutes)
        VALUES (?, ?, ?, ?, ?, ?)
        ON CONFLICT (user_id) DO UPDATE SET
            name = excluded.name,
            push_enabled = excluded.push_enabled,
            email_enabled = excluded.email_enabled,
            email = excluded.email,
            lead_minutes = excluded.lead_minutes
    `
	_, err := s.db.ExecContext(ctx, query, userID, p.Name, boolToInt(p.PushEnabled), boolToInt(p.EmailEnabled), p.Email, p.LeadMinutes)
	if err != nil {
		return fmt.Errorf("store: save preferences: %w", err)
	}
	return nil
}
