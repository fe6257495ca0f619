package pgshipping

import (
	"context"
	"time"

	"github.com/BearBump/ShipBox/internal/apperr"
	"github.com/BearBump/ShipBox/internal/models"
	"github.com/BearBump/ShipBox/internal/status"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

const shipmentColumns = `
  id, order_id, carrier_id, service_id, tracking_number, label_url, label_id,
  status, status_description, last_event_description, last_event_location,
  last_event_at, delivered_at, pickup_scheduled,
  next_check_at, check_fail_count,
  created_at, updated_at`

func scanShipment(row scanner) (*models.Shipment, error) {
	var sh models.Shipment
	err := row.Scan(
		&sh.ID, &sh.OrderID, &sh.CarrierID, &sh.ServiceID, &sh.TrackingNumber, &sh.LabelURL, &sh.LabelID,
		&sh.Status, &sh.StatusDescription, &sh.LastEventDescription, &sh.LastEventLocation,
		&sh.LastEventAt, &sh.DeliveredAt, &sh.PickupScheduled,
		&sh.NextCheckAt, &sh.CheckFailCount,
		&sh.CreatedAt, &sh.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &sh, nil
}

func (s *Storage) CreateShipment(ctx context.Context, sh *models.Shipment) error {
	now := time.Now().UTC()
	if sh.CreatedAt.IsZero() {
		sh.CreatedAt = now
	}
	if sh.UpdatedAt.IsZero() {
		sh.UpdatedAt = now
	}
	if sh.NextCheckAt.IsZero() {
		sh.NextCheckAt = now
	}

	_, err := s.db.Exec(ctx, `
INSERT INTO shipments (`+shipmentColumns+`
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
`,
		sh.ID, sh.OrderID, sh.CarrierID, sh.ServiceID, sh.TrackingNumber, sh.LabelURL, sh.LabelID,
		string(sh.Status), sh.StatusDescription, sh.LastEventDescription, sh.LastEventLocation,
		sh.LastEventAt, sh.DeliveredAt, sh.PickupScheduled,
		sh.NextCheckAt.UTC(), sh.CheckFailCount,
		sh.CreatedAt, sh.UpdatedAt,
	)
	return errors.Wrap(err, "insert shipment")
}

func (s *Storage) GetShipment(ctx context.Context, id uuid.UUID) (*models.Shipment, error) {
	sh, err := scanShipment(s.db.QueryRow(ctx, `SELECT`+shipmentColumns+` FROM shipments WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.ErrShipmentNotFound.WithDetails(id.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, "select shipment")
	}
	return sh, nil
}

func (s *Storage) GetShipmentByTrackingNumber(ctx context.Context, trackingNumber string) (*models.Shipment, error) {
	sh, err := scanShipment(s.db.QueryRow(ctx, `SELECT`+shipmentColumns+` FROM shipments WHERE tracking_number = $1`, trackingNumber))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.ErrShipmentNotFound.WithDetails(trackingNumber)
	}
	if err != nil {
		return nil, errors.Wrap(err, "select shipment by tracking number")
	}
	return sh, nil
}

// UpdateShipmentStatus перезаписывает статус без сравнения версий: выигрывает последняя запись.
func (s *Storage) UpdateShipmentStatus(ctx context.Context, upd models.ShipmentUpdate) error {
	tag, err := s.db.Exec(ctx, `
UPDATE shipments
SET
  status = $2,
  status_description = $3,
  last_event_description = $4,
  last_event_location = $5,
  last_event_at = $6,
  delivered_at = COALESCE($7, delivered_at),
  updated_at = now()
WHERE id = $1
`, upd.ShipmentID, string(upd.Status), upd.StatusDescription, upd.LastEventDescription, upd.LastEventLocation, upd.LastEventAt, upd.DeliveredAt)
	if err != nil {
		return errors.Wrap(err, "update shipment status")
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrShipmentNotFound.WithDetails(upd.ShipmentID.String())
	}
	return nil
}

func (s *Storage) MarkPickupScheduled(ctx context.Context, trackingNumbers []string) error {
	if len(trackingNumbers) == 0 {
		return nil
	}
	_, err := s.db.Exec(ctx, `
UPDATE shipments
SET pickup_scheduled = TRUE, updated_at = now()
WHERE tracking_number = ANY($1)
`, trackingNumbers)
	return errors.Wrap(err, "mark pickup scheduled")
}

// ClaimDueShipments выбирает нефинальные отправления, которым пора обновить трекинг,
// и сдвигает им next_check_at на lease, чтобы параллельный воркер их не взял.
func (s *Storage) ClaimDueShipments(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]*models.Shipment, error) {
	finals := make([]string, 0, 5)
	for _, st := range status.FinalStatuses() {
		finals = append(finals, string(st))
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `
SELECT`+shipmentColumns+`
FROM shipments
WHERE next_check_at <= $1
  AND NOT (status = ANY($2))
ORDER BY next_check_at ASC
LIMIT $3
FOR UPDATE SKIP LOCKED
`, now.UTC(), finals, limit)
	if err != nil {
		return nil, errors.Wrap(err, "select due shipments")
	}

	var picked []*models.Shipment
	for rows.Next() {
		sh, err := scanShipment(rows)
		if err != nil {
			rows.Close()
			return nil, errors.Wrap(err, "scan due shipment")
		}
		picked = append(picked, sh)
	}
	rows.Close()
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}

	leaseUntil := now.UTC().Add(lease)
	for _, sh := range picked {
		if _, err := tx.Exec(ctx, `UPDATE shipments SET next_check_at = $2 WHERE id = $1`, sh.ID, leaseUntil); err != nil {
			return nil, errors.Wrap(err, "lease shipment")
		}
		sh.NextCheckAt = leaseUntil
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "commit tx")
	}
	return picked, nil
}

func (s *Storage) ScheduleNextCheck(ctx context.Context, shipmentID uuid.UUID, nextCheckAt time.Time, failCount int32) error {
	_, err := s.db.Exec(ctx, `
UPDATE shipments
SET next_check_at = $2, check_fail_count = $3
WHERE id = $1
`, shipmentID, nextCheckAt.UTC(), failCount)
	return errors.Wrap(err, "schedule next check")
}
