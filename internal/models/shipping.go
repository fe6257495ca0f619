package models

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Address: адрес отправителя или получателя.
type Address struct {
	Name       string `json:"name" validate:"required"`
	Email      string `json:"email,omitempty" validate:"omitempty,email"`
	Phone      string `json:"phone,omitempty"`
	Street     string `json:"street" validate:"required"`
	District   string `json:"district,omitempty"`
	City       string `json:"city" validate:"required"`
	Region     string `json:"region" validate:"required"`
	PostalCode string `json:"postalCode" validate:"required"`
	Country    string `json:"country,omitempty"`
	Reference  string `json:"reference,omitempty"`
}

type Dimensions struct {
	LengthCm float64 `json:"lengthCm"`
	WidthCm  float64 `json:"widthCm"`
	HeightCm float64 `json:"heightCm"`
}

type Package struct {
	Content       string          `json:"content"`
	Quantity      int             `json:"quantity" validate:"gte=1"`
	WeightKg      float64         `json:"weightKg" validate:"gt=0"`
	DeclaredValue decimal.Decimal `json:"declaredValue"`
	Insurance     decimal.Decimal `json:"insurance"`
	Dimensions
}

type Quote struct {
	CarrierID     string          `json:"carrierId"`
	CarrierName   string          `json:"carrierName"`
	ServiceID     string          `json:"serviceId"`
	ServiceName   string          `json:"serviceName"`
	Description   string          `json:"description,omitempty"`
	Price         decimal.Decimal `json:"price"`
	Currency      string          `json:"currency"`
	DeliveryTime  string          `json:"deliveryTime"`
	Express       bool            `json:"express"`
	OriginalPrice decimal.Decimal `json:"originalPrice"`
	Free          bool            `json:"free"`
	Label         string          `json:"label,omitempty"`
}

// Key идентифицирует пару (перевозчик, сервис).
func (q Quote) Key() string {
	return q.CarrierID + "|" + q.ServiceID
}

const (
	DefaultItemWeightKg = 0.5
	MinPackageWeightKg  = 0.5
)

// PackageFromItems собирает одну посылку из позиций заказа или корзины.
func PackageFromItems(items []OrderItem, dims Dimensions) Package {
	weight := decimal.Zero
	value := decimal.Zero
	units := 0
	names := make([]string, 0, len(items))

	for _, it := range items {
		qty := it.Quantity
		if qty <= 0 {
			continue
		}
		w := DefaultItemWeightKg
		if it.WeightKg != nil && *it.WeightKg > 0 {
			w = *it.WeightKg
		}
		q := decimal.NewFromInt(int64(qty))
		weight = weight.Add(decimal.NewFromFloat(w).Mul(q))
		value = value.Add(it.UnitPrice.Mul(q))
		units += qty
		if it.Name != "" {
			names = append(names, it.Name)
		}
	}

	min := decimal.NewFromFloat(MinPackageWeightKg)
	if weight.LessThan(min) {
		weight = min
	}
	if units == 0 {
		units = 1
	}

	content := strings.Join(names, ", ")
	if content == "" {
		content = fmt.Sprintf("%d item(s)", units)
	}

	wf, _ := weight.Float64()
	return Package{
		Content:       content,
		Quantity:      units,
		WeightKg:      wf,
		DeclaredValue: value,
		Dimensions:    dims,
	}
}
