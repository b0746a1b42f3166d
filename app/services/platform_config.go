package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/spf13/cast"
	"gorm.io/gorm"

	"github.com/rrnagar/marketplace/app/models"
	"github.com/rrnagar/marketplace/app/repositories"
	"github.com/rrnagar/marketplace/config"
	"github.com/rrnagar/marketplace/pkg/collection"
	"github.com/rrnagar/marketplace/pkg/logger"
)

// Platform config keys.
const (
	KeyCommissionRate    = "commission_rate"
	KeyDeliveryMode      = "delivery_mode"
	KeyDeliveryFlatFee   = "delivery_flat_fee"
	KeyDistanceTiers     = "delivery_distance_tiers"
	KeyWeightTiers       = "delivery_weight_tiers"
	KeyZoneFees          = "delivery_zone_fees"
	KeyDefaultZoneFee    = "delivery_default_zone_fee"
	KeyFreeDeliveryAbove = "free_delivery_above"
	KeyUPIID             = "upi_id"
	KeyUPIPayee          = "upi_payee_name"
)

// DefaultPlatformConfig is seeded on first install.
var DefaultPlatformConfig = []models.PlatformConfig{
	{Key: KeyCommissionRate, Value: "10", Type: models.ConfigFloat, Description: "Platform commission in percent of the base amount"},
	{Key: KeyDeliveryMode, Value: DeliveryFlat, Type: models.ConfigString, Description: "flat, distance, weight, zone, combined or free_above"},
	{Key: KeyDeliveryFlatFee, Value: "0", Type: models.ConfigFloat, Description: "Flat delivery fee in rupees"},
	{Key: KeyDistanceTiers, Value: `[{"upto_km":2,"fee":20},{"upto_km":5,"fee":40},{"upto_km":10,"fee":60}]`, Type: models.ConfigJSON, Description: "Distance tiers"},
	{Key: KeyWeightTiers, Value: `[{"upto_kg":1,"fee":10},{"upto_kg":5,"fee":30},{"upto_kg":20,"fee":60}]`, Type: models.ConfigJSON, Description: "Weight tiers"},
	{Key: KeyZoneFees, Value: `{}`, Type: models.ConfigJSON, Description: "Delivery fee per zone"},
	{Key: KeyDefaultZoneFee, Value: "30", Type: models.ConfigFloat, Description: "Fee for zones not listed"},
	{Key: KeyFreeDeliveryAbove, Value: "0", Type: models.ConfigFloat, Description: "Free delivery at or above this base amount (0 disables)"},
	{Key: KeyUPIID, Value: "rrnagar@upi", Type: models.ConfigString, Description: "UPI id customers pay to"},
	{Key: KeyUPIPayee, Value: "RR Nagar Market", Type: models.ConfigString, Description: "UPI payee name"},
}

// ConfigService serves PlatformConfig rows from an in-process cache that
// is reloaded after ConfigCacheTTL or after any update.
type ConfigService struct {
	repo *repositories.ConfigRepository
	ttl  time.Duration

	mu       sync.RWMutex
	values   map[string]models.PlatformConfig
	loadedAt time.Time
}

func NewConfigService(db *gorm.DB) *ConfigService {
	return &ConfigService{repo: repositories.NewConfigRepository(db), ttl: config.ConfigCacheTTL()}
}

// Refresh reloads every row.
func (s *ConfigService) Refresh(ctx context.Context) error {
	rows, err := s.repo.All(ctx)
	if err != nil {
		return fmt.Errorf("config: load: %w", err)
	}
	values := collection.KeyBy(rows, func(r models.PlatformConfig) string { return r.Key })
	s.mu.Lock()
	s.values = values
	s.loadedAt = time.Now()
	s.mu.Unlock()
	return nil
}

// Invalidate forces a reload on next read.
func (s *ConfigService) Invalidate() {
	s.mu.Lock()
	s.values = nil
	s.mu.Unlock()
}

func (s *ConfigService) lookup(ctx context.Context, key string) (models.PlatformConfig, bool) {
	s.mu.RLock()
	fresh := s.values != nil && time.Since(s.loadedAt) < s.ttl
	v, ok := s.values[key]
	s.mu.RUnlock()
	if fresh {
		return v, ok
	}

	if err := s.Refresh(ctx); err != nil {
		// serve stale values rather than failing the request
		logger.WithCtx(ctx).Warn("config: refresh failed", "error", err)
		return v, ok
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok = s.values[key]
	return v, ok
}

func (s *ConfigService) String(ctx context.Context, key, def string) string {
	if v, ok := s.lookup(ctx, key); ok {
		return v.Value
	}
	return def
}

func (s *ConfigService) Float(ctx context.Context, key string, def float64) float64 {
	if v, ok := s.lookup(ctx, key); ok {
		if f, err := cast.ToFloat64E(v.Value); err == nil {
			return f
		}
	}
	return def
}

func (s *ConfigService) Int(ctx context.Context, key string, def int) int {
	if v, ok := s.lookup(ctx, key); ok {
		if n, err := cast.ToIntE(v.Value); err == nil {
			return n
		}
	}
	return def
}

func (s *ConfigService) Bool(ctx context.Context, key string, def bool) bool {
	if v, ok := s.lookup(ctx, key); ok {
		if b, err := cast.ToBoolE(v.Value); err == nil {
			return b
		}
	}
	return def
}

// JSON decodes a json-typed value into dest. A missing key leaves dest alone.
func (s *ConfigService) JSON(ctx context.Context, key string, dest any) error {
	v, ok := s.lookup(ctx, key)
	if !ok || v.Value == "" {
		return nil
	}
	return json.Unmarshal([]byte(v.Value), dest)
}

// Typed returns every row with its parsed value, for the admin screen.
func (s *ConfigService) Typed(ctx context.Context) ([]TypedConfig, error) {
	rows, err := s.repo.All(ctx)
	if err != nil {
		return nil, err
	}
	return collection.Map(rows, func(r models.PlatformConfig) TypedConfig {
		parsed, err := ParseConfigValue(r.Type, r.Value)
		if err != nil {
			parsed = r.Value
		}
		return TypedConfig{PlatformConfig: r, Parsed: parsed}
	}), nil
}

type TypedConfig struct {
	models.PlatformConfig
	Parsed any `json:"parsed"`
}

// ParseConfigValue converts raw to the Go value for typ.
func ParseConfigValue(typ, raw string) (any, error) {
	switch typ {
	case models.ConfigString, "":
		return raw, nil
	case models.ConfigInt:
		return cast.ToIntE(raw)
	case models.ConfigFloat:
		return cast.ToFloat64E(raw)
	case models.ConfigBool:
		return cast.ToBoolE(raw)
	case models.ConfigJSON:
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return nil, err
		}
		return v, nil
	}
	return nil, fmt.Errorf("unknown config type %q", typ)
}

type ConfigInput struct {
	Value       string `json:"value"`
	Type        string `json:"type" validate:"nullable,in=string|int|float|bool|json"`
	Description string `json:"description"`
}

// Set creates or updates key after checking the value parses as its type,
// then invalidates the cache.
func (s *ConfigService) Set(ctx context.Context, key string, in ConfigInput) (*models.PlatformConfig, error) {
	row, err := s.repo.ByKey(ctx, key)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if row == nil {
		row = &models.PlatformConfig{Key: key, Type: models.ConfigString}
	}
	if in.Type != "" {
		row.Type = in.Type
	}
	if _, err := ParseConfigValue(row.Type, in.Value); err != nil {
		return nil, invalid("value", fmt.Sprintf("The value must be a valid %s.", row.Type))
	}
	row.Value = in.Value
	if in.Description != "" {
		row.Description = in.Description
	}
	if err := s.repo.Save(ctx, row); err != nil {
		return nil, err
	}
	s.Invalidate()
	return row, nil
}

// FeeConfig assembles the fee settings, falling back to COMMISSION_RATE
// when the commission key is absent.
func (s *ConfigService) FeeConfig(ctx context.Context) FeeConfig {
	cfg := FeeConfig{
		Mode:           s.String(ctx, KeyDeliveryMode, DeliveryFlat),
		CommissionRate: s.Float(ctx, KeyCommissionRate, config.CommissionRate()),
		FlatFee:        s.Float(ctx, KeyDeliveryFlatFee, 0),
		DefaultZoneFee: s.Float(ctx, KeyDefaultZoneFee, 0),
		FreeAbove:      s.Float(ctx, KeyFreeDeliveryAbove, 0),
	}
	log := logger.WithCtx(ctx)
	if err := s.JSON(ctx, KeyDistanceTiers, &cfg.DistanceTiers); err != nil {
		log.Warn("config: bad distance tiers", "error", err)
	}
	if err := s.JSON(ctx, KeyWeightTiers, &cfg.WeightTiers); err != nil {
		log.Warn("config: bad weight tiers", "error", err)
	}
	if err := s.JSON(ctx, KeyZoneFees, &cfg.ZoneFees); err != nil {
		log.Warn("config: bad zone fees", "error", err)
	}
	return cfg
}
