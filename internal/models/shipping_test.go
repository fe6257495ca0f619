package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestPackageFromItems(t *testing.T) {
	w := 1.2
	items := []OrderItem{
		{Name: "Mug", Quantity: 2, UnitPrice: decimal.RequireFromString("35.50")},
		{Name: "Lamp", Quantity: 1, UnitPrice: decimal.RequireFromString("120"), WeightKg: &w},
	}

	p := PackageFromItems(items, Dimensions{LengthCm: 20, WidthCm: 15, HeightCm: 10})

	require.InDelta(t, 2.2, p.WeightKg, 0.0001)
	require.True(t, decimal.RequireFromString("191").Equal(p.DeclaredValue))
	require.Equal(t, 3, p.Quantity)
	require.Equal(t, "Mug, Lamp", p.Content)
	require.Equal(t, 20.0, p.LengthCm)
}

func TestPackageFromItems_MinimumWeight(t *testing.T) {
	w := 0.1
	p := PackageFromItems([]OrderItem{
		{Quantity: 1, UnitPrice: decimal.NewFromInt(10), WeightKg: &w},
	}, Dimensions{})

	require.Equal(t, MinPackageWeightKg, p.WeightKg)
	require.Equal(t, "1 item(s)", p.Content)
}

func TestPackageFromItems_Empty(t *testing.T) {
	p := PackageFromItems(nil, Dimensions{})
	require.Equal(t, MinPackageWeightKg, p.WeightKg)
	require.True(t, p.DeclaredValue.IsZero())
	require.Equal(t, 1, p.Quantity)
}
