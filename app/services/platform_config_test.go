package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rrnagar/marketplace/app/models"
)

func TestConfigTypedValuesAndRefresh(t *testing.T) {
	f := setup(t)
	for _, row := range DefaultPlatformConfig {
		r := row
		require.NoError(t, f.db.Create(&r).Error)
	}
	cfg := f.svc.Config

	assert.Equal(t, 10.0, cfg.Float(f.ctx, KeyCommissionRate, 0))
	assert.Equal(t, DeliveryFlat, cfg.String(f.ctx, KeyDeliveryMode, ""))
	assert.Equal(t, "fallback", cfg.String(f.ctx, "missing", "fallback"))

	var tiers []DistanceTier
	require.NoError(t, cfg.JSON(f.ctx, KeyDistanceTiers, &tiers))
	assert.Len(t, tiers, 3)

	// a write behind the service's back is not seen until refresh
	require.NoError(t, f.db.Model(&models.PlatformConfig{}).Where(map[string]any{"key": KeyCommissionRate}).Update("value", "12").Error)
	assert.Equal(t, 10.0, cfg.Float(f.ctx, KeyCommissionRate, 0))
	require.NoError(t, cfg.Refresh(f.ctx))
	assert.Equal(t, 12.0, cfg.Float(f.ctx, KeyCommissionRate, 0))

	_, err := cfg.Set(f.ctx, KeyCommissionRate, ConfigInput{Value: "7.5"})
	require.NoError(t, err)
	assert.Equal(t, 7.5, cfg.Float(f.ctx, KeyCommissionRate, 0))
	assert.Equal(t, 7.5, cfg.FeeConfig(f.ctx).CommissionRate)
}

func TestConfigSetRejectsBadValues(t *testing.T) {
	f := setup(t)

	_, err := f.svc.Config.Set(f.ctx, "max_cart_items", ConfigInput{Value: "ten", Type: models.ConfigInt})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "value")

	_, err = f.svc.Config.Set(f.ctx, KeyZoneFees, ConfigInput{Value: "{not json", Type: models.ConfigJSON})
	assert.ErrorAs(t, err, &verr)

	row, err := f.svc.Config.Set(f.ctx, "max_cart_items", ConfigInput{Value: "10", Type: models.ConfigInt})
	require.NoError(t, err)
	assert.Equal(t, models.ConfigInt, row.Type)
	assert.Equal(t, 10, f.svc.Config.Int(f.ctx, "max_cart_items", 0))
}
