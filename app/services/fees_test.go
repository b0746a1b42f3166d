package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCommission(t *testing.T) {
	assert.Equal(t, 20.0, Commission(200, 10))
	assert.Equal(t, 3.33, Commission(33.3, 10))
	assert.Equal(t, 0.0, Commission(200, 0))
	assert.Equal(t, 0.0, Commission(-5, 10))
}

func TestDeliveryFeeModes(t *testing.T) {
	distance := []DistanceTier{{UptoKm: 5, Fee: 40}, {UptoKm: 2, Fee: 20}, {UptoKm: 10, Fee: 60}}
	weight := []WeightTier{{UptoKg: 1, Fee: 10}, {UptoKg: 5, Fee: 30}}

	cases := []struct {
		name string
		cfg  FeeConfig
		in   FeeInput
		want float64
	}{
		{"flat", FeeConfig{Mode: DeliveryFlat, FlatFee: 25}, FeeInput{BaseAmount: 100}, 25},
		{"unknown mode falls back to flat", FeeConfig{Mode: "teleport", FlatFee: 25}, FeeInput{}, 25},
		{"distance first tier", FeeConfig{Mode: DeliveryDistance, DistanceTiers: distance}, FeeInput{DistanceKm: 1.2}, 20},
		{"distance on boundary", FeeConfig{Mode: DeliveryDistance, DistanceTiers: distance}, FeeInput{DistanceKm: 5}, 40},
		{"distance beyond last tier", FeeConfig{Mode: DeliveryDistance, DistanceTiers: distance}, FeeInput{DistanceKm: 42}, 60},
		{"distance without tiers", FeeConfig{Mode: DeliveryDistance, FlatFee: 15}, FeeInput{DistanceKm: 3}, 15},
		{"weight", FeeConfig{Mode: DeliveryWeight, WeightTiers: weight}, FeeInput{WeightKg: 3}, 30},
		{"weight beyond last tier", FeeConfig{Mode: DeliveryWeight, WeightTiers: weight}, FeeInput{WeightKg: 50}, 30},
		{"zone known", FeeConfig{Mode: DeliveryZone, ZoneFees: map[string]float64{"north": 35}, DefaultZoneFee: 50}, FeeInput{Zone: "north"}, 35},
		{"zone unknown", FeeConfig{Mode: DeliveryZone, ZoneFees: map[string]float64{"north": 35}, DefaultZoneFee: 50}, FeeInput{Zone: "east"}, 50},
		{"combined", FeeConfig{Mode: DeliveryCombined, DistanceTiers: distance, WeightTiers: weight}, FeeInput{DistanceKm: 4, WeightKg: 0.5}, 50},
		{"free_above below threshold", FeeConfig{Mode: DeliveryFreeAbove, FlatFee: 30, FreeAbove: 500}, FeeInput{BaseAmount: 499.99}, 30},
		{"free_above at threshold", FeeConfig{Mode: DeliveryFreeAbove, FlatFee: 30, FreeAbove: 500}, FeeInput{BaseAmount: 500}, 0},
		{"threshold applies to any mode", FeeConfig{Mode: DeliveryDistance, DistanceTiers: distance, FreeAbove: 300}, FeeInput{BaseAmount: 300, DistanceKm: 9}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, DeliveryFee(tc.cfg, tc.in))
		})
	}
}

func TestQuote(t *testing.T) {
	q := Quote(FeeConfig{Mode: DeliveryFlat, FlatFee: 0, CommissionRate: 10}, FeeInput{BaseAmount: 200})
	assert.Equal(t, FeeBreakdown{
		BaseAmount:     200,
		Commission:     20,
		DeliveryFee:    0,
		TotalAmount:    200,
		SupplierPayout: 180,
		Mode:           DeliveryFlat,
	}, q)

	q = Quote(FeeConfig{Mode: DeliveryFlat, FlatFee: 29.5, CommissionRate: 12.5}, FeeInput{BaseAmount: 99.99})
	assert.Equal(t, 12.5, q.Commission)
	assert.Equal(t, 129.49, q.TotalAmount)
	assert.Equal(t, 87.49, q.SupplierPayout)
}

func TestHaversine(t *testing.T) {
	// RR Nagar to Majestic, Bengaluru: roughly 8 km.
	d := HaversineKm(12.9274, 77.5155, 12.9767, 77.5713)
	assert.InDelta(t, 8.2, d, 0.6)
	assert.Equal(t, 0.0, HaversineKm(12.9, 77.5, 12.9, 77.5))

	lat := 12.9
	assert.Equal(t, 0.0, distanceBetween(&lat, nil, &lat, &lat))
}
