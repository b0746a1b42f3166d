package migrations

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rrnagar/marketplace/app/models"
	"github.com/rrnagar/marketplace/pkg/migration"
	"github.com/rrnagar/marketplace/pkg/queue"
	"github.com/rrnagar/marketplace/pkg/testkit"
)

func TestMigrateStatusRollback(t *testing.T) {
	db := testkit.DB(t)
	r := migration.New(db)

	ran, err := r.Run()
	require.NoError(t, err)
	assert.Equal(t, migration.Names(), ran)
	for _, m := range append(models.All(), &queue.FailedJob{}) {
		assert.True(t, db.Migrator().HasTable(m), "%T", m)
	}

	again, err := r.Run()
	require.NoError(t, err)
	assert.Empty(t, again)

	status, err := r.Status()
	require.NoError(t, err)
	for _, s := range status {
		assert.True(t, s.Ran, s.Name)
		assert.Equal(t, 1, s.Batch)
	}

	reverted, err := r.Rollback()
	require.NoError(t, err)
	assert.Len(t, reverted, len(ran))
	assert.Equal(t, ran[len(ran)-1], reverted[0])
	assert.False(t, db.Migrator().HasTable(&models.Order{}))
	assert.False(t, db.Migrator().HasTable(&models.Customer{}))
}
