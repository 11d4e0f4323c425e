package main

import (
	"log"
	"os"

	"pronto-backend/internal/database"

	"github.com/joho/godotenv"
)

// Applies the schema and seeds against DATABASE_URL, then exits. Useful
// for provisioning a database before the first server boot.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	db, err := database.Connect(dbURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	if err := database.SeedUsers(db); err != nil {
		log.Fatalf("User seeding failed: %v", err)
	}
	if err := database.SeedOrders(db); err != nil {
		log.Fatalf("Order seeding failed: %v", err)
	}

	log.Println("Migration and seeding completed successfully!")
}
