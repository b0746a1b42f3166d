package seeders

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rrnagar/marketplace/app/models"
	"github.com/rrnagar/marketplace/app/services"
	"github.com/rrnagar/marketplace/config"
	"github.com/rrnagar/marketplace/pkg/testkit"
)

func TestRunAllIsIdempotent(t *testing.T) {
	db := testkit.DB(t, models.All()...)
	config.Set("ADMIN_EMAIL", "Root@RRNagar.in")
	t.Cleanup(func() { config.Set("ADMIN_EMAIL", "") })

	ran, err := RunAll(db)
	require.NoError(t, err)
	assert.Equal(t, []string{"categories", "platform_config", "super_admin"}, ran)

	// an admin-edited value survives a second run
	require.NoError(t, db.Model(&models.PlatformConfig{}).
		Where("key = ?", services.KeyCommissionRate).Update("value", "12").Error)
	_, err = RunAll(db)
	require.NoError(t, err)

	var cats, cfg, admins int64
	db.Model(&models.Category{}).Count(&cats)
	db.Model(&models.PlatformConfig{}).Count(&cfg)
	db.Model(&models.Admin{}).Count(&admins)
	assert.EqualValues(t, len(defaultCategories), cats)
	assert.EqualValues(t, len(services.DefaultPlatformConfig), cfg)
	assert.EqualValues(t, 1, admins)

	var rate models.PlatformConfig
	require.NoError(t, db.Where("key = ?", services.KeyCommissionRate).First(&rate).Error)
	assert.Equal(t, "12", rate.Value)

	var root models.Admin
	require.NoError(t, db.First(&root).Error)
	assert.Equal(t, "root@rrnagar.in", root.Email)
	assert.Equal(t, models.AdminRoleSuper, root.Role)
	assert.True(t, root.Approved)
}

func TestSuperAdminSkippedWithoutEmail(t *testing.T) {
	db := testkit.DB(t, models.All()...)
	config.Set("ADMIN_EMAIL", "")

	require.NoError(t, SuperAdmin(db))
	var n int64
	db.Model(&models.Admin{}).Count(&n)
	assert.Zero(t, n)
}
