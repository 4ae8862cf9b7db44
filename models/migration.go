package models

import (
	"log"

	"github.com/mmdatafocus/reviews_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Review{}, &StatusHistory{}, &Activity{},
		&SLARule{},
		&User{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
