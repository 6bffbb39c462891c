package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/homebase-id/odin-notify/internal/model"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// NotificationRepository provides data access for the notification journal.
type NotificationRepository struct {
	db *sql.DB
}

// NewNotificationRepository creates a new NotificationRepository.
func NewNotificationRepository(db *sql.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create inserts entry. An empty ID is filled with a new UUID.
func (r *NotificationRepository) Create(ctx context.Context, entry *model.Entry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}

	query := `
		INSERT INTO notifications (id, transport, notification_type, drive, sender, payload, received_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		entry.ID,
		entry.Transport,
		entry.NotificationType,
		nullString(entry.Drive),
		nullString(entry.Sender),
		entry.PayloadString(),
		entry.ReceivedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to create notification entry: %w", err)
	}
	return nil
}

// GetByID retrieves an entry by its ID.
func (r *NotificationRepository) GetByID(ctx context.Context, id string) (*model.Entry, error) {
	query := `
		SELECT id, transport, notification_type, drive, sender, payload, received_at
		FROM notifications
		WHERE id = ?
	`

	entry, err := scanEntry(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, model.ErrNotificationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get notification entry: %w", err)
	}
	return entry, nil
}

// List returns entries matching filter, newest first.
func (r *NotificationRepository) List(ctx context.Context, filter model.EntryFilter) ([]*model.Entry, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.Transport != "" {
		where = append(where, "transport = ?")
		args = append(args, filter.Transport)
	}
	if filter.NotificationType != "" {
		where = append(where, "notification_type = ?")
		args = append(args, filter.NotificationType)
	}

	query := `
		SELECT id, transport, notification_type, drive, sender, payload, received_at
		FROM notifications
	`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY received_at DESC, rowid DESC LIMIT ?"
	args = append(args, clampLimit(filter.Limit))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list notification entries: %w", err)
	}
	defer rows.Close()

	var entries []*model.Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate notification entries: %w", err)
	}
	return entries, nil
}

// Count returns the number of journaled entries.
func (r *NotificationRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM notifications").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count notification entries: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(s scanner) (*model.Entry, error) {
	entry := &model.Entry{}
	var drive, sender sql.NullString
	var payload string

	err := s.Scan(
		&entry.ID,
		&entry.Transport,
		&entry.NotificationType,
		&drive,
		&sender,
		&payload,
		&entry.ReceivedAt,
	)
	if err != nil {
		return nil, err
	}

	entry.Drive = drive.String
	entry.Sender = sender.String
	entry.Payload = []byte(payload)
	return entry, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}
