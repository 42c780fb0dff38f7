package models

import (
	"github.com/mediflow/cabinet_backend/config"
)

// MigrateTable creates or alters every table of the module.
func MigrateTable() error {
	db := config.GetDB()
	return db.AutoMigrate(
		&Office{},
		&User{},
		&Patient{},
		&Prescriber{},
		&CatalogAct{},
		&CareSheet{},
		&OrthopedicInvoice{},
		&DocumentActLink{},
		&Bordereau{},
		&OutboxRecord{},
		&Attachment{},
		&History{},
	)
}
