package main

import (
	"flag"
	"log"
	"os"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"
)

// One-off: creates an admin account for the dispatch board.
//
//	go run add_dispatch_admin.go -email ops@example.com -name "Ops" -password secret
func main() {
	email := flag.String("email", "", "admin email (required)")
	name := flag.String("name", "", "display name (required)")
	password := flag.String("password", "", "login password (required)")
	flag.Parse()

	if *email == "" || *name == "" || *password == "" {
		flag.Usage()
		os.Exit(2)
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	db, err := sqlx.Connect("postgres", dbURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	log.Println("🔌 Connected to database")

	var exists bool
	if err := db.Get(&exists, "SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)", *email); err != nil {
		log.Fatalf("Failed to check for existing user: %v", err)
	}
	if exists {
		log.Fatalf("⚠️  User already exists: %s", *email)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(*password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("Failed to hash password: %v", err)
	}

	query := `
		INSERT INTO users (id, email, password, name, role)
		VALUES ($1, $2, $3, $4, 'admin')
	`
	if _, err := db.Exec(query, uuid.New().String(), *email, string(hashed), *name); err != nil {
		log.Fatalf("Failed to create admin: %v", err)
	}

	log.Printf("✅ Created admin user: %s", *email)
}
