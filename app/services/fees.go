package services

import (
	"math"
	"sort"
)

// Delivery fee modes (PlatformConfig delivery_mode).
const (
	DeliveryFlat      = "flat"
	DeliveryDistance  = "distance"
	DeliveryWeight    = "weight"
	DeliveryZone      = "zone"
	DeliveryCombined  = "combined"
	DeliveryFreeAbove = "free_above"
)

type DistanceTier struct {
	UptoKm float64 `json:"upto_km"`
	Fee    float64 `json:"fee"`
}

type WeightTier struct {
	UptoKg float64 `json:"upto_kg"`
	Fee    float64 `json:"fee"`
}

type FeeConfig struct {
	Mode           string             `json:"mode"`
	CommissionRate float64            `json:"commissionRate"`
	FlatFee        float64            `json:"flatFee"`
	DistanceTiers  []DistanceTier     `json:"distanceTiers"`
	WeightTiers    []WeightTier       `json:"weightTiers"`
	ZoneFees       map[string]float64 `json:"zoneFees"`
	DefaultZoneFee float64            `json:"defaultZoneFee"`
	FreeAbove      float64            `json:"freeAbove"`
}

type FeeInput struct {
	BaseAmount float64
	DistanceKm float64
	WeightKg   float64
	Zone       string
}

type FeeBreakdown struct {
	BaseAmount     float64 `json:"baseAmount"`
	Commission     float64 `json:"commission"`
	DeliveryFee    float64 `json:"deliveryFee"`
	TotalAmount    float64 `json:"totalAmount"`
	SupplierPayout float64 `json:"supplierPayout"`
	DistanceKm     float64 `json:"distanceKm"`
	Mode           string  `json:"mode"`
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

// Commission is ratePercent of base, rounded to paise.
func Commission(base, ratePercent float64) float64 {
	if base <= 0 || ratePercent <= 0 {
		return 0
	}
	return round2(base * ratePercent / 100)
}

type tier struct{ upto, fee float64 }

// tierFee picks the first tier whose upper bound covers v; past the last
// tier the last fee applies. No tiers means fallback.
func tierFee(tiers []tier, v, fallback float64) float64 {
	if len(tiers) == 0 {
		return fallback
	}
	sort.Slice(tiers, func(i, j int) bool { return tiers[i].upto < tiers[j].upto })
	for _, t := range tiers {
		if v <= t.upto {
			return t.fee
		}
	}
	return tiers[len(tiers)-1].fee
}

func distanceFee(cfg FeeConfig, km float64) float64 {
	tiers := make([]tier, len(cfg.DistanceTiers))
	for i, t := range cfg.DistanceTiers {
		tiers[i] = tier{t.UptoKm, t.Fee}
	}
	return tierFee(tiers, km, cfg.FlatFee)
}

func weightFee(cfg FeeConfig, kg float64) float64 {
	tiers := make([]tier, len(cfg.WeightTiers))
	for i, t := range cfg.WeightTiers {
		tiers[i] = tier{t.UptoKg, t.Fee}
	}
	return tierFee(tiers, kg, cfg.FlatFee)
}

// DeliveryFee applies cfg.Mode to in. Whatever the mode, a positive
// FreeAbove threshold met by the base amount makes delivery free.
func DeliveryFee(cfg FeeConfig, in FeeInput) float64 {
	if cfg.FreeAbove > 0 && in.BaseAmount >= cfg.FreeAbove {
		return 0
	}

	var fee float64
	switch cfg.Mode {
	case DeliveryDistance:
		fee = distanceFee(cfg, in.DistanceKm)
	case DeliveryWeight:
		fee = weightFee(cfg, in.WeightKg)
	case DeliveryZone:
		if f, ok := cfg.ZoneFees[in.Zone]; ok && in.Zone != "" {
			fee = f
		} else {
			fee = cfg.DefaultZoneFee
		}
	case DeliveryCombined:
		fee = distanceFee(cfg, in.DistanceKm) + weightFee(cfg, in.WeightKg)
	default: // flat, free_above and unknown modes
		fee = cfg.FlatFee
	}
	if fee < 0 {
		fee = 0
	}
	return round2(fee)
}

// Quote is the full breakdown for a base amount. The customer pays base
// plus delivery; the supplier receives base minus commission.
func Quote(cfg FeeConfig, in FeeInput) FeeBreakdown {
	base := round2(in.BaseAmount)
	commission := Commission(base, cfg.CommissionRate)
	delivery := DeliveryFee(cfg, in)
	return FeeBreakdown{
		BaseAmount:     base,
		Commission:     commission,
		DeliveryFee:    delivery,
		TotalAmount:    round2(base + delivery),
		SupplierPayout: round2(base - commission),
		DistanceKm:     round2(in.DistanceKm),
		Mode:           cfg.Mode,
	}
}

const earthRadiusKm = 6371.0

// HaversineKm is the great-circle distance between two points.
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	rad := func(d float64) float64 { return d * math.Pi / 180 }
	dLat := rad(lat2 - lat1)
	dLon := rad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rad(lat1))*math.Cos(rad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// distanceBetween is 0 unless both points are known.
func distanceBetween(lat1, lon1, lat2, lon2 *float64) float64 {
	if lat1 == nil || lon1 == nil || lat2 == nil || lon2 == nil {
		return 0
	}
	return HaversineKm(*lat1, *lon1, *lat2, *lon2)
}
