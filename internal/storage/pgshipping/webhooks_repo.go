package pgshipping

import (
	"context"
	"time"

	"github.com/BearBump/ShipBox/internal/apperr"
	"github.com/BearBump/ShipBox/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

func (s *Storage) SaveWebhookLog(ctx context.Context, wl *models.WebhookLog) error {
	payload := []byte(wl.Payload)
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	_, err := s.db.Exec(ctx, `
INSERT INTO webhook_logs (id, tracking_number, event_type, payload, received_at, processed_at, processed, error)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
`, wl.ID, wl.TrackingNumber, wl.EventType, payload, wl.ReceivedAt.UTC(), wl.ProcessedAt, wl.Processed, wl.Error)
	return errors.Wrap(err, "insert webhook log")
}

func (s *Storage) MarkWebhookProcessed(ctx context.Context, id uuid.UUID, processedAt time.Time, errMsg string) error {
	tag, err := s.db.Exec(ctx, `
UPDATE webhook_logs
SET processed = TRUE, processed_at = $2, error = $3
WHERE id = $1
`, id, processedAt.UTC(), errMsg)
	if err != nil {
		return errors.Wrap(err, "mark webhook processed")
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound.WithDetails("webhook log " + id.String())
	}
	return nil
}

func (s *Storage) GetWebhookLog(ctx context.Context, id uuid.UUID) (*models.WebhookLog, error) {
	var wl models.WebhookLog
	var payload []byte
	err := s.db.QueryRow(ctx, `
SELECT id, tracking_number, event_type, payload, received_at, processed_at, processed, error
FROM webhook_logs
WHERE id = $1
`, id).Scan(&wl.ID, &wl.TrackingNumber, &wl.EventType, &payload, &wl.ReceivedAt, &wl.ProcessedAt, &wl.Processed, &wl.Error)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.ErrNotFound.WithDetails("webhook log " + id.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, "select webhook log")
	}
	wl.Payload = payload
	return &wl, nil
}

// PurgeWebhookLogs удаляет только обработанные логи, полученные раньше olderThan.
func (s *Storage) PurgeWebhookLogs(ctx context.Context, olderThan time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM webhook_logs WHERE processed AND received_at < $1`, olderThan.UTC())
	if err != nil {
		return 0, errors.Wrap(err, "purge webhook logs")
	}
	return tag.RowsAffected(), nil
}
