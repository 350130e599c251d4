package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/lucasdaniellopes/fittrack-monorepo/internal/domain"
)

type historyRow struct {
	ID        string `db:"id"`
	EventID   string `db:"event_id"`
	Kind      string `db:"kind"`
	ClientID  string `db:"client_id"`
	SubjectID string `db:"subject_id"`
	Notes     string `db:"notes"`
	CreatedAt string `db:"created_at"`
}

// RecordHistory inserts a history entry unless one exists for the same event.
func (s *Store) RecordHistory(ctx context.Context, e domain.HistoryEntry) error {
	_, err := s.conn(ctx).ExecContext(ctx,
		`INSERT INTO history_entries (id, event_id, kind, client_id, subject_id, notes, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (event_id) DO NOTHING`,
		e.ID, e.EventID, string(e.Kind), e.ClientID, e.SubjectID, e.Notes, formatTime(e.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting history entry: %w", err)
	}
	return nil
}

// ListHistory returns a client's history, oldest first.
func (s *Store) ListHistory(ctx context.Context, clientID string) ([]domain.HistoryEntry, error) {
	var rows []historyRow
	err := sqlx.SelectContext(ctx, s.conn(ctx), &rows,
		`SELECT id, event_id, kind, client_id, subject_id, notes, created_at
		 FROM history_entries WHERE client_id = ? ORDER BY created_at, id`, clientID)
	if err != nil {
		return nil, fmt.Errorf("listing history: %w", err)
	}

	out := make([]domain.HistoryEntry, 0, len(rows))
	for _, r := range rows {
		createdAt, err := parseTime(r.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		out = append(out, domain.HistoryEntry{
			ID:        r.ID,
			EventID:   r.EventID,
			Kind:      domain.HistoryKind(r.Kind),
			ClientID:  r.ClientID,
			SubjectID: r.SubjectID,
			Notes:     r.Notes,
			CreatedAt: createdAt,
		})
	}
	return out, nil
}

type notificationRow struct {
	ID          string         `db:"id"`
	EventID     string         `db:"event_id"`
	RecipientID string         `db:"recipient_id"`
	Kind        string         `db:"kind"`
	Message     string         `db:"message"`
	CreatedAt   string         `db:"created_at"`
	ReadAt      sql.NullString `db:"read_at"`
}

// CreateNotification inserts a notification unless the recipient already got one for the event.
func (s *Store) CreateNotification(ctx context.Context, n domain.Notification) error {
	_, err := s.conn(ctx).ExecContext(ctx,
		`INSERT INTO notifications (id, event_id, recipient_id, kind, message, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (event_id, recipient_id) DO NOTHING`,
		n.ID, n.EventID, n.RecipientID, string(n.Kind), n.Message, formatTime(n.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting notification: %w", err)
	}
	return nil
}

// ListNotifications returns a recipient's notifications, newest first.
func (s *Store) ListNotifications(ctx context.Context, recipientID string, unreadOnly bool) ([]domain.Notification, error) {
	query := `SELECT id, event_id, recipient_id, kind, message, created_at, read_at
		FROM notifications WHERE recipient_id = ?`
	if unreadOnly {
		query += ` AND read_at IS NULL`
	}
	query += ` ORDER BY created_at DESC, id`

	var rows []notificationRow
	if err := sqlx.SelectContext(ctx, s.conn(ctx), &rows, query, recipientID); err != nil {
		return nil, fmt.Errorf("listing notifications: %w", err)
	}

	out := make([]domain.Notification, 0, len(rows))
	for _, r := range rows {
		createdAt, err := parseTime(r.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		readAt, err := parseNullTime(r.ReadAt)
		if err != nil {
			return nil, fmt.Errorf("parsing read_at: %w", err)
		}
		out = append(out, domain.Notification{
			ID:          r.ID,
			EventID:     r.EventID,
			RecipientID: r.RecipientID,
			Kind:        domain.EventType(r.Kind),
			Message:     r.Message,
			CreatedAt:   createdAt,
			ReadAt:      readAt,
		})
	}
	return out, nil
}

// MarkNotificationsRead marks every unread notification of the recipient as read.
func (s *Store) MarkNotificationsRead(ctx context.Context, recipientID string, at time.Time) (int, error) {
	res, err := s.conn(ctx).ExecContext(ctx,
		`UPDATE notifications SET read_at = ? WHERE recipient_id = ? AND read_at IS NULL`,
		formatTime(at), recipientID)
	if err != nil {
		return 0, fmt.Errorf("marking notifications read: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return int(n), nil
}
