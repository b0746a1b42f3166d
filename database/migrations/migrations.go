// Package migrations registers the schema migrations. Import it for side
// effects wherever the migration runner is used.
package migrations

import (
	"gorm.io/gorm"

	"github.com/rrnagar/marketplace/pkg/migration"
)

// createTables migrates models up and drops their tables on rollback,
// in reverse order.
type createTables struct {
	models []any
}

func (m createTables) Up(db *gorm.DB) error {
	return db.AutoMigrate(m.models...)
}

func (m createTables) Down(db *gorm.DB) error {
	for i := len(m.models) - 1; i >= 0; i-- {
		if err := db.Migrator().DropTable(m.models[i]); err != nil {
			return err
		}
	}
	return nil
}

func tables(models ...any) migration.Migration { return createTables{models: models} }
