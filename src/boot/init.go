package boot

import (
	"log"

	"rms/src/db"
	"rms/src/models"

	"gorm.io/gorm"
)

func InitDb() *gorm.DB {
	db := db.GetDb()

	err := db.AutoMigrate(
		&models.User{},
		&models.Property{},
		&models.Unit{},
		&models.Booking{},
		&models.Transaction{},
		&models.Wallet{},
		&models.WalletTransaction{},
		&models.Notification{},
	)
	if err != nil {
		log.Fatalf("error migration: %s", err.Error())
	}

	return db
}
