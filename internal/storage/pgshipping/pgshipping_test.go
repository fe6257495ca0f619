package pgshipping

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/BearBump/ShipBox/internal/apperr"
	"github.com/BearBump/ShipBox/internal/models"
	"github.com/BearBump/ShipBox/internal/services/poller"
	"github.com/BearBump/ShipBox/internal/services/shipments"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

var (
	_ shipments.Repository = (*Storage)(nil)
	_ poller.Repository    = (*Storage)(nil)
)

func startPostgres(t *testing.T) *Storage {
	t.Helper()
	if testing.Short() {
		t.Skip("postgres container test skipped in -short mode")
	}
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:15-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "admin",
			"POSTGRES_PASSWORD": "admin",
			"POSTGRES_DB":       "shipbox_test",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	pgC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgC.Terminate(ctx) })

	host, err := pgC.Host(ctx)
	require.NoError(t, err)
	port, err := pgC.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	dsn := "postgres://admin:admin@" + host + ":" + port.Port() + "/shipbox_test?sslmode=disable"
	st, err := New(dsn)
	require.NoError(t, err)
	t.Cleanup(st.Close)
	return st
}

func TestPGShipping_RepoFlow(t *testing.T) {
	st := startPostgres(t)
	ctx := context.Background()

	w := 0.7
	order := &models.Order{
		ID:     "order-100",
		Status: models.OrderPending,
		ShippingAddress: models.Address{
			Name: "Ana Souza", Street: "Rua das Flores 10", City: "Rio de Janeiro", Region: "RJ", PostalCode: "20040002",
		},
		Items: []models.OrderItem{
			{ProductID: "p-1", Name: "Caneca", Quantity: 2, UnitPrice: decimal.RequireFromString("29.90"), WeightKg: &w},
			{ProductID: "p-2", Name: "Pôster", Quantity: 1, UnitPrice: decimal.RequireFromString("15")},
		},
		Subtotal: decimal.RequireFromString("74.80"),
	}
	require.NoError(t, st.SaveOrder(ctx, order))

	got, err := st.GetOrder(ctx, "order-100")
	require.NoError(t, err)
	require.Equal(t, "RJ", got.ShippingAddress.Region)
	require.True(t, decimal.RequireFromString("74.80").Equal(got.Subtotal))
	require.Len(t, got.Items, 2)
	require.NotNil(t, got.Items[0].WeightKg)
	require.Nil(t, got.Items[1].WeightKg)

	_, err = st.GetOrder(ctx, "missing")
	require.ErrorIs(t, err, apperr.ErrOrderNotFound)

	now := time.Now().UTC().Truncate(time.Microsecond)
	sh := &models.Shipment{
		ID:             uuid.New(),
		OrderID:        order.ID,
		CarrierID:      "correios",
		ServiceID:      "sedex",
		TrackingNumber: "BR100",
		LabelID:        "L-100",
		Status:         models.StatusLabelCreated,
		NextCheckAt:    now.Add(-time.Minute),
	}
	require.NoError(t, st.CreateShipment(ctx, sh))
	require.NoError(t, st.UpdateOrderShipping(ctx, models.OrderShippingUpdate{
		OrderID: order.ID, TrackingNumber: "BR100", CarrierID: "correios", ServiceID: "sedex", Status: models.OrderProcessing,
	}))

	byTN, err := st.GetShipmentByTrackingNumber(ctx, "BR100")
	require.NoError(t, err)
	require.Equal(t, sh.ID, byTN.ID)
	require.Equal(t, models.StatusLabelCreated, byTN.Status)

	_, err = st.GetShipmentByTrackingNumber(ctx, "nope")
	require.ErrorIs(t, err, apperr.ErrShipmentNotFound)

	// lease: второй claim в пределах lease ничего не вернёт
	lease := 10 * time.Second
	due, err := st.ClaimDueShipments(ctx, now, 10, lease)
	require.NoError(t, err)
	require.Len(t, due, 1)
	require.WithinDuration(t, now.Add(lease), due[0].NextCheckAt, time.Second)
	again, err := st.ClaimDueShipments(ctx, now, 10, lease)
	require.NoError(t, err)
	require.Empty(t, again)

	require.NoError(t, st.ScheduleNextCheck(ctx, sh.ID, now.Add(-time.Second), 2))

	delivered := now.Add(-time.Hour)
	require.NoError(t, st.AppendShipmentEvent(ctx, &models.ShipmentEvent{
		ID: uuid.New(), ShipmentID: sh.ID, Status: models.StatusDelivered, Description: "Entregue",
		RawStatus: "DELIVERED", Payload: json.RawMessage(`{"status":"DELIVERED"}`), EventTime: delivered, CreatedAt: now,
	}))
	require.NoError(t, st.UpdateShipmentStatus(ctx, models.ShipmentUpdate{
		ShipmentID: sh.ID, Status: models.StatusDelivered, StatusDescription: "Delivered",
		LastEventDescription: "Entregue", LastEventAt: &delivered, DeliveredAt: &delivered,
	}))
	require.NoError(t, st.UpdateOrderStatus(ctx, order.ID, models.OrderDelivered))

	byID, err := st.GetShipment(ctx, sh.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusDelivered, byID.Status)
	require.NotNil(t, byID.DeliveredAt)
	require.Equal(t, int32(2), byID.CheckFailCount)

	// финальные статусы не попадают в выборку даже с просроченным next_check_at
	due, err = st.ClaimDueShipments(ctx, now, 10, lease)
	require.NoError(t, err)
	require.Empty(t, due)

	evs, err := st.ListShipmentEvents(ctx, sh.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, evs, 1)
	require.JSONEq(t, `{"status":"DELIVERED"}`, string(evs[0].Payload))

	require.NoError(t, st.MarkPickupScheduled(ctx, []string{"BR100"}))
	byID, err = st.GetShipment(ctx, sh.ID)
	require.NoError(t, err)
	require.True(t, byID.PickupScheduled)

	o, err := st.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, models.OrderDelivered, o.Status)
	require.Equal(t, "BR100", o.TrackingNumber)
}

func TestPGShipping_WebhookLogs(t *testing.T) {
	st := startPostgres(t)
	ctx := context.Background()

	old := &models.WebhookLog{
		ID: uuid.New(), TrackingNumber: "BR1", EventType: "tracking",
		Payload: json.RawMessage(`{"tracking":"BR1"}`), ReceivedAt: time.Now().Add(-40 * 24 * time.Hour),
	}
	fresh := &models.WebhookLog{
		ID: uuid.New(), TrackingNumber: "BR2",
		Payload: json.RawMessage(`{"tracking":"BR2"}`), ReceivedAt: time.Now(),
	}
	pending := &models.WebhookLog{
		ID: uuid.New(), Payload: json.RawMessage(`{"raw":"x"}`), ReceivedAt: time.Now().Add(-40 * 24 * time.Hour),
	}
	for _, wl := range []*models.WebhookLog{old, fresh, pending} {
		require.NoError(t, st.SaveWebhookLog(ctx, wl))
	}
	require.NoError(t, st.MarkWebhookProcessed(ctx, old.ID, time.Now(), ""))
	require.NoError(t, st.MarkWebhookProcessed(ctx, fresh.ID, time.Now(), "shipment_not_found"))
	require.ErrorIs(t, st.MarkWebhookProcessed(ctx, uuid.New(), time.Now(), ""), apperr.ErrNotFound)

	got, err := st.GetWebhookLog(ctx, fresh.ID)
	require.NoError(t, err)
	require.True(t, got.Processed)
	require.Equal(t, "shipment_not_found", got.Error)
	require.NotNil(t, got.ProcessedAt)

	n, err := st.PurgeWebhookLogs(ctx, time.Now().Add(-30*24*time.Hour))
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	_, err = st.GetWebhookLog(ctx, old.ID)
	require.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = st.GetWebhookLog(ctx, pending.ID)
	require.NoError(t, err)
}
