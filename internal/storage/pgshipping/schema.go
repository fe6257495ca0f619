package pgshipping

import (
	"context"

	"github.com/pkg/errors"
)

func (s *Storage) initSchema(ctx context.Context) error {
	stmts := []string{
		`
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  status TEXT NOT NULL,
  shipping_address JSONB NOT NULL,
  subtotal NUMERIC(14,2) NOT NULL DEFAULT 0,
  tracking_number TEXT NOT NULL DEFAULT '',
  carrier_id TEXT NOT NULL DEFAULT '',
  service_id TEXT NOT NULL DEFAULT '',
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL
)`,
		`
CREATE TABLE IF NOT EXISTS order_items (
  order_id TEXT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
  position INT NOT NULL,
  product_id TEXT NOT NULL DEFAULT '',
  name TEXT NOT NULL DEFAULT '',
  quantity INT NOT NULL,
  unit_price NUMERIC(14,2) NOT NULL DEFAULT 0,
  weight_kg DOUBLE PRECISION NULL,
  PRIMARY KEY (order_id, position)
)`,
		`
CREATE TABLE IF NOT EXISTS shipments (
  id UUID PRIMARY KEY,
  order_id TEXT NOT NULL,
  carrier_id TEXT NOT NULL,
  service_id TEXT NOT NULL,
  tracking_number TEXT NOT NULL UNIQUE,
  label_url TEXT NOT NULL DEFAULT '',
  label_id TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL,
  status_description TEXT NOT NULL DEFAULT '',
  last_event_description TEXT NOT NULL DEFAULT '',
  last_event_location TEXT NOT NULL DEFAULT '',
  last_event_at TIMESTAMPTZ NULL,
  delivered_at TIMESTAMPTZ NULL,
  pickup_scheduled BOOLEAN NOT NULL DEFAULT FALSE,
  next_check_at TIMESTAMPTZ NOT NULL,
  check_fail_count INT NOT NULL DEFAULT 0,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_shipments_next_check_at ON shipments(next_check_at)`,
		`CREATE INDEX IF NOT EXISTS idx_shipments_order_id ON shipments(order_id)`,
		`
CREATE TABLE IF NOT EXISTS shipment_events (
  id UUID PRIMARY KEY,
  shipment_id UUID NOT NULL REFERENCES shipments(id) ON DELETE CASCADE,
  status TEXT NOT NULL,
  description TEXT NOT NULL DEFAULT '',
  location TEXT NOT NULL DEFAULT '',
  raw_status TEXT NOT NULL DEFAULT '',
  payload JSONB NULL,
  event_time TIMESTAMPTZ NOT NULL,
  created_at TIMESTAMPTZ NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_shipment_events_shipment_id_event_time ON shipment_events(shipment_id, event_time DESC)`,
		`
CREATE TABLE IF NOT EXISTS webhook_logs (
  id UUID PRIMARY KEY,
  tracking_number TEXT NOT NULL DEFAULT '',
  event_type TEXT NOT NULL DEFAULT '',
  payload JSONB NOT NULL,
  received_at TIMESTAMPTZ NOT NULL,
  processed_at TIMESTAMPTZ NULL,
  processed BOOLEAN NOT NULL DEFAULT FALSE,
  error TEXT NOT NULL DEFAULT ''
)`,
		`CREATE INDEX IF NOT EXISTS idx_webhook_logs_received_at ON webhook_logs(received_at)`,
		`CREATE INDEX IF NOT EXISTS idx_webhook_logs_tracking_number ON webhook_logs(tracking_number)`,
	}

	for _, q := range stmts {
		if _, err := s.db.Exec(ctx, q); err != nil {
			return errors.Wrap(err, "init schema")
		}
	}
	return nil
}
