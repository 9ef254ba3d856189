package versions

import (
	"log"

	"chatterfix/cmms/schema"

	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

func initialMigration() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "0_initial_migration",
		Migrate: func(txn *gorm.DB) error {
			log.Println("creating initial schema")
			return txn.Migrator().AutoMigrate(schema.AllTables()...)
		},
		Rollback: func(txn *gorm.DB) error {
			for _, table := range schema.AllTables() {
				if err := txn.Migrator().DropTable(table); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

// All returns the migrations in the order they should be applied.
func All() []*gormigrate.Migration {
	return []*gormigrate.Migration{
		initialMigration(),
	}
}
