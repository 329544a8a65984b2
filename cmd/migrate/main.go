package main

import (
	"log"
	"os"

	"github.com/SantiagoCTB/whatsapp-ia/internal/entity"
	"github.com/SantiagoCTB/whatsapp-ia/pkg/database"

	"github.com/joho/godotenv"
)

func main() {
	// 1. Load Environment Variables
	if err := godotenv.Load(); err != nil {
		log.Println("Info: No .env file found, using system env")
	}

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		log.Fatal("Error: DB_CONNECTION_STRING is not set")
	}

	// 2. Connect to Database using existing GORM helpers
	db, err := database.NewGormDBFromDSN(dsn)
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}

	log.Println("Starting GORM Migration...")

	tables := []interface{}{
		&entity.Rule{},
		&entity.ChatState{},
		&entity.Message{},
		&entity.ProcessedMessage{},
		&entity.ChatRole{},
		&entity.AISettings{},
		&entity.AILog{},
	}

	if err := db.AutoMigrate(tables...); err != nil {
		log.Fatal("Error: AutoMigrate failed:", err)
	}

	// Seed the single settings row so the worker has a cursor to claim.
	settings := entity.AISettings{Id: 1, Enabled: true}
	if err := db.Where("id = 1").FirstOrCreate(&settings).Error; err != nil {
		log.Printf("Warn: failed to seed ia_settings row: %v", err)
	}

	log.Printf("Migration complete: %d tables", len(tables))
}
