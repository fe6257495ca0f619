package pgshipping

import (
	"context"
	"encoding/json"
	"time"

	"github.com/BearBump/ShipBox/internal/apperr"
	"github.com/BearBump/ShipBox/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// SaveOrder создаёт или полностью перезаписывает заказ вместе с позициями.
// Заказы принадлежат витрине; здесь это нужно для импорта и тестов.
func (s *Storage) SaveOrder(ctx context.Context, o *models.Order) error {
	addr, err := json.Marshal(o.ShippingAddress)
	if err != nil {
		return errors.Wrap(err, "marshal address")
	}
	now := time.Now().UTC()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	o.UpdatedAt = now

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
INSERT INTO orders (
  id, status, shipping_address, subtotal, tracking_number, carrier_id, service_id, created_at, updated_at
)
VALUES ($1,$2,$3,$4::numeric,$5,$6,$7,$8,$9)
ON CONFLICT (id) DO UPDATE SET
  status = EXCLUDED.status,
  shipping_address = EXCLUDED.shipping_address,
  subtotal = EXCLUDED.subtotal,
  tracking_number = EXCLUDED.tracking_number,
  carrier_id = EXCLUDED.carrier_id,
  service_id = EXCLUDED.service_id,
  updated_at = EXCLUDED.updated_at
`, o.ID, string(o.Status), addr, o.Subtotal.String(), o.TrackingNumber, o.CarrierID, o.ServiceID, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return errors.Wrap(err, "upsert order")
	}

	if _, err := tx.Exec(ctx, `DELETE FROM order_items WHERE order_id = $1`, o.ID); err != nil {
		return errors.Wrap(err, "delete order items")
	}
	for i, it := range o.Items {
		_, err := tx.Exec(ctx, `
INSERT INTO order_items (order_id, position, product_id, name, quantity, unit_price, weight_kg)
VALUES ($1,$2,$3,$4,$5,$6::numeric,$7)
`, o.ID, i, it.ProductID, it.Name, it.Quantity, it.UnitPrice.String(), it.WeightKg)
		if err != nil {
			return errors.Wrap(err, "insert order item")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit tx")
	}
	return nil
}

func (s *Storage) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	var (
		o        models.Order
		addr     []byte
		subtotal string
	)
	err := s.db.QueryRow(ctx, `
SELECT id, status, shipping_address, subtotal::text, tracking_number, carrier_id, service_id, created_at, updated_at
FROM orders
WHERE id = $1
`, orderID).Scan(&o.ID, &o.Status, &addr, &subtotal, &o.TrackingNumber, &o.CarrierID, &o.ServiceID, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.ErrOrderNotFound.WithDetails(orderID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "select order")
	}
	if err := json.Unmarshal(addr, &o.ShippingAddress); err != nil {
		return nil, errors.Wrap(err, "unmarshal address")
	}
	if o.Subtotal, err = decimal.NewFromString(subtotal); err != nil {
		return nil, errors.Wrap(err, "parse subtotal")
	}

	rows, err := s.db.Query(ctx, `
SELECT product_id, name, quantity, unit_price::text, weight_kg
FROM order_items
WHERE order_id = $1
ORDER BY position
`, orderID)
	if err != nil {
		return nil, errors.Wrap(err, "select order items")
	}
	defer rows.Close()

	for rows.Next() {
		var (
			it    models.OrderItem
			price string
		)
		if err := rows.Scan(&it.ProductID, &it.Name, &it.Quantity, &price, &it.WeightKg); err != nil {
			return nil, errors.Wrap(err, "scan order item")
		}
		if it.UnitPrice, err = decimal.NewFromString(price); err != nil {
			return nil, errors.Wrap(err, "parse unit price")
		}
		o.Items = append(o.Items, it)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return &o, nil
}

func (s *Storage) UpdateOrderShipping(ctx context.Context, upd models.OrderShippingUpdate) error {
	tag, err := s.db.Exec(ctx, `
UPDATE orders
SET
  tracking_number = $2,
  carrier_id = $3,
  service_id = $4,
  status = $5,
  updated_at = now()
WHERE id = $1
`, upd.OrderID, upd.TrackingNumber, upd.CarrierID, upd.ServiceID, string(upd.Status))
	if err != nil {
		return errors.Wrap(err, "update order shipping")
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrOrderNotFound.WithDetails(upd.OrderID)
	}
	return nil
}

func (s *Storage) UpdateOrderStatus(ctx context.Context, orderID string, st models.OrderStatus) error {
	tag, err := s.db.Exec(ctx, `UPDATE orders SET status = $2, updated_at = now() WHERE id = $1`, orderID, string(st))
	if err != nil {
		return errors.Wrap(err, "update order status")
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrOrderNotFound.WithDetails(orderID)
	}
	return nil
}
