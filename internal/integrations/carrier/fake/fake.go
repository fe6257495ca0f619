package fake

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	"github.com/BearBump/ShipBox/internal/integrations/carrier"
	"github.com/BearBump/ShipBox/internal/models"
	"github.com/shopspring/decimal"
)

// FakeClient: офлайн-провайдер для демо-режима и тестов.
// Все ответы детерминированы по входным данным.
type FakeClient struct{}

func New() *FakeClient { return &FakeClient{} }

func (f *FakeClient) Configured() bool { return true }

func hash(parts ...string) uint32 {
	h := fnv.New32a()
	for i, p := range parts {
		if i > 0 {
			_, _ = h.Write([]byte("|"))
		}
		_, _ = h.Write([]byte(p))
	}
	return h.Sum32()
}

func (f *FakeClient) Quote(ctx context.Context, dest models.Address, pkgs []models.Package, carrierID string) ([]carrier.RawServiceOffer, error) {
	weight := 0.0
	for _, p := range pkgs {
		weight += p.WeightKg
	}
	v := hash(carrierID, dest.PostalCode)

	base := decimal.NewFromInt(int64(15 + v%20)).Add(decimal.NewFromFloat(weight).Mul(decimal.NewFromInt(4)))
	name := fmt.Sprintf("Carrier %s", carrierID)
	return []carrier.RawServiceOffer{
		{
			CarrierID: carrierID, CarrierName: name,
			ServiceID: carrierID + "-std", ServiceName: "Standard",
			Price: base.Round(2), Currency: "BRL", DeliveryTime: fmt.Sprintf("%d", 5+v%4),
		},
		{
			CarrierID: carrierID, CarrierName: name,
			ServiceID: carrierID + "-exp", ServiceName: "Express",
			Price: base.Mul(decimal.NewFromFloat(1.8)).Round(2), Currency: "BRL", DeliveryTime: fmt.Sprintf("%d", 1+v%2),
		},
	}, nil
}

func (f *FakeClient) CreateLabel(ctx context.Context, dest models.Address, pkgs []models.Package, carrierID, serviceID, reference string) (carrier.RawLabelResult, error) {
	v := hash(carrierID, serviceID, reference)
	id := fmt.Sprintf("FAKE%09d", v%1_000_000_000)
	return carrier.RawLabelResult{
		TrackingNumber: id + "BR",
		LabelURL:       "https://labels.invalid/" + id + ".pdf",
		LabelID:        strings.ToLower(id),
	}, nil
}

// Track: часть треков (каждый пятый) считается доставленной.
func (f *FakeClient) Track(ctx context.Context, trackingNumber, carrierID string) (carrier.RawTrackingResult, error) {
	now := time.Now().UTC()
	v := hash(carrierID, trackingNumber)

	status := "IN_TRANSIT"
	if v%5 == 0 {
		status = "DELIVERED"
	}

	return carrier.RawTrackingResult{
		TrackingNumber: trackingNumber,
		CarrierID:      carrierID,
		Status:         status,
		Description:    "fake carrier update",
		Events: []carrier.RawTrackingEvent{
			{Status: "POSTED", Description: "posted", EventTime: now.Add(-24 * time.Hour)},
			{Status: status, Description: "fake carrier update", EventTime: now},
		},
	}, nil
}

func (f *FakeClient) SchedulePickup(ctx context.Context, req carrier.PickupRequest) (carrier.RawPickupResult, error) {
	return carrier.RawPickupResult{
		PickupID:  fmt.Sprintf("PK%d", hash(req.CarrierID, strings.Join(req.TrackingNumbers, ","))%100000),
		Status:    "scheduled",
		Scheduled: true,
	}, nil
}

func (f *FakeClient) Cancel(ctx context.Context, labelID, carrierID string) (carrier.RawCancelResult, error) {
	return carrier.RawCancelResult{Cancelled: true, Status: "cancelled"}, nil
}

