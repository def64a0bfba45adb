package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"lockin/internal/config"
	appLog "lockin/internal/log"
	"lockin/internal/model"
)

// EmailClient talks to a JSON mail API ({from, to, subject, text}) for
// reminder and daily-summary emails. Delivery is best effort: callers log
// failures and move on.
type EmailClient struct {
	endpoint string
	apiKey   string
	from     string
	client   *http.Client
}

// NewEmailClient constructs an EmailClient from mail config.
func NewEmailClient(cfg config.MailConfig) *EmailClient {
	return &EmailClient{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		from:     cfg.From,
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// Configured reports whether outbound mail can be attempted at all.
func (c *EmailClient) Configured() bool {
	return c.endpoint != "" && c.apiKey != "" && c.from != ""
}

// SendReminder emails an upcoming-activity reminder.
func (c *EmailClient) SendReminder(ctx context.Context, to, name, activity, startTime string, leadMinutes int) error {
	greeting := "Hey"
	if name != "" {
		greeting = "Hey " + name
	}
	subject := fmt.Sprintf("Reminder: %s at %s", activity, startTime)
	text := fmt.Sprintf("%s,\n\n%q starts at %s, %d minutes from now.\n\nLock in.\n", greeting, activity, startTime, leadMinutes)
	return c.send(ctx, to, subject, text)
}

// SendDailySummary emails the end-of-day completion summary.
func (c *EmailClient) SendDailySummary(ctx context.Context, to, name string, s model.DaySummary, streak int) error {
	greeting := "Hey"
	if name != "" {
		greeting = "Hey " + name
	}
	subject := fmt.Sprintf("Daily summary %s: %d/%d blocks done", s.Date, s.CompletedCount, s.TotalBlocks)
	text := fmt.Sprintf(
		"%s,\n\nYour day in numbers:\n  Completed: %d of %d blocks (%d%%)\n  Average focus: %d/10\n  Streak: %d day(s)\n\nSee you tomorrow.\n",
		greeting, s.CompletedCount, s.TotalBlocks, s.CompletionRate, s.AvgFocusScore, streak,
	)
	return c.send(ctx, to, subject, text)
}

func (c *EmailClient) send(ctx context.Context, to, subject, text string) error {
	if !c.Configured() {
		return errors.New("notify: mail is not configured")
	}
	if to == "" {
		return errors.New("notify: recipient is empty")
	}

	payload := map[string]string{
		"from":    c.from,
		"to":      to,
		"subject": subject,
		"text":    text,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("notify: marshal mail payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notify: build mail request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("notify: mail send failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("notify: mail API returned %s: %s", resp.Status, string(respBody))
	}

	appLog.Debug("mail sent", "to", to, "subject", subject)
	return nil
}
