package pgshipping

import (
	"context"

	"github.com/BearBump/ShipBox/internal/models"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// AppendShipmentEvent только добавляет строку: история не дедуплицируется,
// повторный вебхук даёт повторное событие.
func (s *Storage) AppendShipmentEvent(ctx context.Context, ev *models.ShipmentEvent) error {
	var payload []byte
	if len(ev.Payload) > 0 {
		payload = ev.Payload
	}
	_, err := s.db.Exec(ctx, `
INSERT INTO shipment_events (
  id, shipment_id, status, description, location, raw_status, payload, event_time, created_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
`, ev.ID, ev.ShipmentID, string(ev.Status), ev.Description, ev.Location, ev.RawStatus, payload, ev.EventTime.UTC(), ev.CreatedAt.UTC())
	return errors.Wrap(err, "insert shipment event")
}

func (s *Storage) ListShipmentEvents(ctx context.Context, shipmentID uuid.UUID, limit, offset int) ([]*models.ShipmentEvent, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.Query(ctx, `
SELECT
  id, shipment_id, status, description, location, raw_status,
  payload, event_time, created_at
FROM shipment_events
WHERE shipment_id = $1
ORDER BY event_time DESC, created_at DESC
LIMIT $2 OFFSET $3
`, shipmentID, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "select events")
	}
	defer rows.Close()

	var out []*models.ShipmentEvent
	for rows.Next() {
		var (
			e       models.ShipmentEvent
			payload []byte
		)
		if err := rows.Scan(
			&e.ID, &e.ShipmentID, &e.Status, &e.Description, &e.Location, &e.RawStatus,
			&payload, &e.EventTime, &e.CreatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "scan event")
		}
		if len(payload) > 0 {
			e.Payload = payload
		}
		out = append(out, &e)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}
