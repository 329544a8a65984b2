package main

import (
	"context"
	"log"

	"github.com/SantiagoCTB/whatsapp-ia/internal/bootstrap"
	"github.com/SantiagoCTB/whatsapp-ia/internal/config"
	"github.com/SantiagoCTB/whatsapp-ia/internal/server"
	"github.com/SantiagoCTB/whatsapp-ia/pkg/database"
)

func main() {
	// 1. Load Configuration
	cfg := config.Load()

	// 2. Initialize Database
	gormDB, err := database.NewGormDBFromDSN(cfg.Database.Connection)
	if err != nil {
		log.Panicf("Unable to connect to GORM DB: %v", err)
	}

	// 3. Bootstrap Dependencies (Container)
	container := bootstrap.NewContainer(gormDB, cfg)

	// 4. Start Background Services
	go container.AIWorker.Run(context.Background())

	if err := container.IngestQueue.Consume(context.Background()); err != nil {
		log.Panicf("Unable to start ingest consumer: %v", err)
	}

	// 5. Initialize Server
	srv := server.New(cfg, container)

	// 6. Run Server
	log.Fatal(srv.Run())
}
