package main

import (
	"log"
	"os"

	"github.com/SantiagoCTB/whatsapp-ia/internal/entity"
	"github.com/SantiagoCTB/whatsapp-ia/pkg/database"

	"github.com/joho/godotenv"
)

func main() {
	// Load Environment Variables
	if err := godotenv.Load(); err != nil {
		log.Println("Info: No .env file found, using system env")
	}

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		log.Fatal("Error: DB_CONNECTION_STRING is not set")
	}

	db, err := database.NewGormDBFromDSN(dsn)
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}

	log.Println("Seeding base conversation flow...")

	// Minimal working flow: a greeting menu, a catalog branch handed to the
	// AI, and a measurement branch exercising the compute handler.
	rules := []entity.Rule{
		{
			Step:     "menu_principal",
			Trigger:  "iniciar",
			Response: "¡Hola! Soy el asistente. Escribe:\n1 para ver el catálogo\n2 para cotizar una medida",
			Kind:     "texto",
		},
		{
			Step:     "menu_principal",
			Trigger:  "1, catalogo, catálogo",
			Response: "Te paso con nuestro asesor del catálogo. ¿Qué te gustaría saber?",
			Kind:     "texto",
			NextStep: "ia_chat",
		},
		{
			Step:     "menu_principal",
			Trigger:  "2, cotizar",
			Response: "Indícame la medida en metros, por ejemplo: 3 x 4",
			Kind:     "texto",
			NextStep: "medidas",
		},
		{
			Step:     "medidas",
			Trigger:  "*",
			Response: "El área es de {resultado} m². Un asesor te enviará la cotización.",
			Kind:     "texto",
			Handler:  "medicion",
			Compute:  "area",
			NextStep: "menu_principal",
		},
		{
			Step:     "ia_chat",
			Trigger:  "salir, volver",
			Response: "Listo, volvemos al menú.",
			Kind:     "texto",
			NextStep: "menu_principal",
		},
	}

	for _, r := range rules {
		var existing entity.Rule
		if err := db.Where("step = ? AND input = ?", r.Step, r.Trigger).First(&existing).Error; err == nil {
			log.Printf("Rule (%s, %q) already exists, skipping...", r.Step, r.Trigger)
			continue
		}
		if err := db.Create(&r).Error; err != nil {
			log.Printf("Error: failed to create rule (%s, %q): %v", r.Step, r.Trigger, err)
			continue
		}
		log.Printf("Created rule (%s, %q)", r.Step, r.Trigger)
	}

	log.Println("Seeding complete.")
}
