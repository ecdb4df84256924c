package ledger

import (
	"context"
	"database/sql"
	"time"

	"github.com/heimdex/heimdex-stream/internal/db"
)

type Repository interface {
	CreateUpload(ctx context.Context, u *Upload) error
	CreateWebhookEvent(ctx context.Context, e *WebhookEvent) error
	ListUploads(ctx context.Context, limit int) ([]*UploadSummary, error)
	ListWebhookEvents(ctx context.Context, uid string) ([]*WebhookEvent, error)
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) CreateUpload(ctx context.Context, u *Upload) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO uploads (id, uid, method, source_url, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, u.ID, u.UID, u.Method, nullString(u.SourceURL), formatTime(u.CreatedAt))
	return err
}

func (r *SQLiteRepository) CreateWebhookEvent(ctx context.Context, e *WebhookEvent) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO webhook_events (id, uid, state, ready_to_stream, error_code, received_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, e.ID, e.UID, e.State, boolToInt(e.ReadyToStream), nullString(e.ErrorCode), formatTime(e.ReceivedAt))
	return err
}

func (r *SQLiteRepository) ListUploads(ctx context.Context, limit int) ([]*UploadSummary, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT u.id, u.uid, u.method, u.source_url, u.created_at,
		       e.id, e.state, e.ready_to_stream, e.error_code, e.received_at
		FROM uploads u
		LEFT JOIN webhook_events e ON e.id = (
			SELECT w.id FROM webhook_events w
			WHERE w.uid = u.uid
			ORDER BY w.received_at DESC
			LIMIT 1
		)
		ORDER BY u.created_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var uploads []*UploadSummary
	for rows.Next() {
		var s UploadSummary
		var sourceURL, createdAt sql.NullString
		var eventID, state, errorCode, receivedAt sql.NullString
		var ready sql.NullInt64

		if err := rows.Scan(&s.ID, &s.UID, &s.Method, &sourceURL, &createdAt,
			&eventID, &state, &ready, &errorCode, &receivedAt); err != nil {
			return nil, err
		}
		s.SourceURL = sourceURL.String
		s.CreatedAt = parseTime(createdAt.String)

		if eventID.Valid {
			s.LatestEvent = &WebhookEvent{
				ID:            eventID.String,
				UID:           s.UID,
				State:         state.String,
				ReadyToStream: ready.Int64 == 1,
				ErrorCode:     errorCode.String,
				ReceivedAt:    parseTime(receivedAt.String),
			}
		}
		uploads = append(uploads, &s)
	}
	return uploads, rows.Err()
}

func (r *SQLiteRepository) ListWebhookEvents(ctx context.Context, uid string) ([]*WebhookEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, uid, state, ready_to_stream, error_code, received_at
		FROM webhook_events WHERE uid = ?
		ORDER BY received_at DESC
	`, uid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*WebhookEvent
	for rows.Next() {
		var e WebhookEvent
		var ready int
		var errorCode sql.NullString
		var receivedAt string

		if err := rows.Scan(&e.ID, &e.UID, &e.State, &ready, &errorCode, &receivedAt); err != nil {
			return nil, err
		}
		e.ReadyToStream = ready == 1
		e.ErrorCode = errorCode.String
		e.ReceivedAt = parseTime(receivedAt)
		events = append(events, &e)
	}
	return events, rows.Err()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(db.TimeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(db.TimeLayout, s)
	return t
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
