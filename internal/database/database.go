package database

import (
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

func Connect(dbURL string) (*sqlx.DB, error) {
	log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	log.Println("🔌 DATABASE CONNECTION ATTEMPT")
	log.Printf("   📍 Database URL length: %d characters", len(dbURL))
	log.Printf("   📍 URL prefix: %s...", dbURL[:min(30, len(dbURL))])
	log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")

	log.Println("🔄 Step 1: Attempting sqlx.Connect()...")
	db, err := sqlx.Connect("postgres", dbURL)
	if err != nil {
		log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		log.Println("❌ DATABASE CONNECTION FAILED AT sqlx.Connect()")
		log.Printf("   Error type: %T", err)
		log.Printf("   Error message: %v", err)
		log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	log.Println("✅ Step 1 Complete: sqlx.Connect() succeeded")

	log.Println("🔄 Step 2: Testing connection with Ping()...")
	if err := db.Ping(); err != nil {
		log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		log.Println("❌ DATABASE CONNECTION FAILED AT Ping()")
		log.Printf("   Error type: %T", err)
		log.Printf("   Error message: %v", err)
		log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	log.Println("✅ Step 2 Complete: Ping() succeeded")

	log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	log.Println("✅ DATABASE CONNECTION SUCCESSFUL")
	log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	return db, nil
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func Migrate(db *sqlx.DB) error {
	migrations := []string{
		// Create users table
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			password TEXT NOT NULL,
			name TEXT NOT NULL,
			phone TEXT,
			role TEXT NOT NULL CHECK(role IN ('driver', 'admin')),
			on_duty_since BIGINT,
			created_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT,
			updated_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT
		)`,

		// Create FCM tokens table
		`CREATE TABLE IF NOT EXISTS fcm_tokens (
			id SERIAL PRIMARY KEY,
			user_id TEXT NOT NULL,
			token TEXT NOT NULL UNIQUE,
			device_type TEXT NOT NULL CHECK(device_type IN ('ios', 'android')),
			created_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT,
			updated_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT,
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
		)`,

		// Create delivery_orders table
		`CREATE TABLE IF NOT EXISTS delivery_orders (
			id TEXT PRIMARY KEY,
			order_number TEXT NOT NULL UNIQUE,
			status TEXT NOT NULL CHECK(status IN ('confirmed', 'preparing', 'ready', 'out_for_delivery', 'delivered', 'voided')),
			customer_name TEXT NOT NULL,
			customer_phone TEXT,
			address TEXT NOT NULL,
			latitude DOUBLE PRECISION,
			longitude DOUBLE PRECISION,
			distance_miles DOUBLE PRECISION,
			scheduled_for BIGINT,
			driver_id TEXT,
			delivery_route_id TEXT,
			dispatched_at BIGINT,
			delivered_at BIGINT,
			created_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT,
			updated_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT,
			FOREIGN KEY (driver_id) REFERENCES users(id) ON DELETE SET NULL,
			CHECK ((driver_id IS NULL) = (delivery_route_id IS NULL))
		)`,

		// Create delivery_routes table
		`CREATE TABLE IF NOT EXISTS delivery_routes (
			id TEXT PRIMARY KEY,
			driver_id TEXT NOT NULL,
			status TEXT NOT NULL CHECK(status IN ('active', 'completed')),
			total_stops INT NOT NULL DEFAULT 0,
			delivered_stops INT NOT NULL DEFAULT 0,
			estimated_duration_min DOUBLE PRECISION,
			actual_duration_min DOUBLE PRECISION,
			started_at BIGINT NOT NULL,
			completed_at BIGINT,
			created_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT,
			FOREIGN KEY (driver_id) REFERENCES users(id) ON DELETE CASCADE,
			CHECK (delivered_stops <= total_stops)
		)`,

		// Create route_stops table (customer fields snapshotted at dispatch)
		`CREATE TABLE IF NOT EXISTS route_stops (
			id SERIAL PRIMARY KEY,
			route_id TEXT NOT NULL,
			order_id TEXT NOT NULL,
			sequence_order INT NOT NULL,
			order_number TEXT NOT NULL,
			customer_name TEXT NOT NULL,
			customer_phone TEXT,
			address TEXT NOT NULL,
			latitude DOUBLE PRECISION,
			longitude DOUBLE PRECISION,
			status TEXT NOT NULL DEFAULT 'pending' CHECK(status IN ('pending', 'delivered')),
			delivered_at BIGINT,
			created_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT,
			FOREIGN KEY (route_id) REFERENCES delivery_routes(id) ON DELETE CASCADE,
			UNIQUE (route_id, order_id)
		)`,

		// Create indexes
		`CREATE INDEX IF NOT EXISTS idx_users_email ON users(email)`,
		`CREATE INDEX IF NOT EXISTS idx_users_on_duty_since ON users(on_duty_since) WHERE on_duty_since IS NOT NULL`,
		`CREATE INDEX IF NOT EXISTS idx_fcm_tokens_user_id ON fcm_tokens(user_id)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_fcm_tokens_token ON fcm_tokens(token)`,
		`CREATE INDEX IF NOT EXISTS idx_delivery_orders_status ON delivery_orders(status)`,
		`CREATE INDEX IF NOT EXISTS idx_delivery_orders_driver_id ON delivery_orders(driver_id)`,
		`CREATE INDEX IF NOT EXISTS idx_delivery_orders_route_id ON delivery_orders(delivery_route_id)`,
		`CREATE INDEX IF NOT EXISTS idx_delivery_orders_created_at ON delivery_orders(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_delivery_orders_ready ON delivery_orders(created_at) WHERE status = 'ready' AND driver_id IS NULL`,
		`CREATE INDEX IF NOT EXISTS idx_delivery_routes_driver_id ON delivery_routes(driver_id)`,
		// One active route per driver, enforced by the database so two
		// concurrent dispatches cannot both slip past the busy check
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_delivery_routes_one_active_per_driver ON delivery_routes(driver_id) WHERE status = 'active'`,
		`CREATE INDEX IF NOT EXISTS idx_delivery_routes_status ON delivery_routes(status)`,
		`CREATE INDEX IF NOT EXISTS idx_delivery_routes_created_at ON delivery_routes(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_route_stops_route_id ON route_stops(route_id)`,
		`CREATE INDEX IF NOT EXISTS idx_route_stops_order_id ON route_stops(order_id)`,
		`CREATE INDEX IF NOT EXISTS idx_route_stops_route_seq ON route_stops(route_id, sequence_order)`,
	}

	for _, migration := range migrations {
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	log.Println("✓ Database migrations completed")
	return nil
}
