package database

import (
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"
)

func SeedUsers(db *sqlx.DB) error {
	// Check if users already exist
	var count int
	if err := db.Get(&count, "SELECT COUNT(*) FROM users"); err != nil {
		return err
	}

	if count > 0 {
		log.Println("✓ Users already seeded, skipping...")
		return nil
	}

	log.Println("🌱 Seeding test users...")

	// Hash passwords
	driverPassword, err := bcrypt.GenerateFromPassword([]byte("driver123"), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	adminPassword, err := bcrypt.GenerateFromPassword([]byte("admin123"), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	users := []map[string]interface{}{
		{
			"id":       uuid.New().String(),
			"email":    "marco@pronto.pizza",
			"password": string(driverPassword),
			"name":     "Marco Rossi",
			"phone":    "+1-408-555-0141",
			"role":     "driver",
		},
		{
			"id":       uuid.New().String(),
			"email":    "elena@pronto.pizza",
			"password": string(driverPassword),
			"name":     "Elena Bianchi",
			"phone":    "+1-408-555-0152",
			"role":     "driver",
		},
		{
			"id":       uuid.New().String(),
			"email":    "admin@pronto.pizza",
			"password": string(adminPassword),
			"name":     "Dispatch Admin",
			"phone":    "+1-408-555-0100",
			"role":     "admin",
		},
	}

	for _, user := range users {
		query := `
			INSERT INTO users (id, email, password, name, phone, role)
			VALUES (:id, :email, :password, :name, :phone, :role)
		`
		if _, err := db.NamedExec(query, user); err != nil {
			return err
		}
		log.Printf("  ✓ Created user: %s (%s)", user["email"], user["role"])
	}

	log.Println("✓ Successfully seeded test users")
	log.Println("  📧 Driver: marco@pronto.pizza / driver123")
	log.Println("  📧 Driver: elena@pronto.pizza / driver123")
	log.Println("  📧 Admin:  admin@pronto.pizza / admin123")
	return nil
}

// SeedOrders loads a demo batch of ready delivery orders spread around the
// downtown store so a fresh install has something to dispatch
func SeedOrders(db *sqlx.DB) error {
	// Check if orders already exist
	var count int
	if err := db.Get(&count, "SELECT COUNT(*) FROM delivery_orders"); err != nil {
		return err
	}

	if count > 0 {
		log.Println("✓ Orders already seeded, skipping...")
		return nil
	}

	log.Println("🌱 Seeding demo delivery orders...")

	now := time.Now().Unix()
	inNinety := now + 90*60

	orders := []map[string]interface{}{
		{"order_number": "P-1001", "customer_name": "Alice Nguyen", "customer_phone": "+1-408-555-0171", "address": "200 E Santa Clara St, San Jose, CA 95113", "latitude": 37.3361, "longitude": -121.8869, "distance_miles": 0.4, "scheduled_for": nil, "created_at": now - 38*60},
		{"order_number": "P-1002", "customer_name": "Ben Carter", "customer_phone": "+1-408-555-0172", "address": "89 S Market St, San Jose, CA 95113", "latitude": 37.3339, "longitude": -121.8905, "distance_miles": 0.3, "scheduled_for": nil, "created_at": now - 26*60},
		{"order_number": "P-1003", "customer_name": "Carmen Diaz", "customer_phone": "+1-408-555-0173", "address": "777 Story Rd, San Jose, CA 95122", "latitude": 37.3226, "longitude": -121.8572, "distance_miles": 2.1, "scheduled_for": nil, "created_at": now - 21*60},
		{"order_number": "P-1004", "customer_name": "Dmitri Volkov", "customer_phone": "+1-408-555-0174", "address": "1535 Meridian Ave, San Jose, CA 95125", "latitude": 37.3094, "longitude": -121.9113, "distance_miles": 2.4, "scheduled_for": inNinety, "created_at": now - 15*60},
		{"order_number": "P-1005", "customer_name": "Erin Walsh", "customer_phone": "+1-408-555-0175", "address": "1075 The Alameda, San Jose, CA 95126", "latitude": 37.3374, "longitude": -121.9178, "distance_miles": 1.7, "scheduled_for": nil, "created_at": now - 12*60},
		{"order_number": "P-1006", "customer_name": "Farid Hassan", "customer_phone": "+1-408-555-0176", "address": "2044 McKee Rd, San Jose, CA 95116", "latitude": 37.3666, "longitude": -121.8497, "distance_miles": 2.8, "scheduled_for": now + 45*60, "created_at": now - 9*60},
		{"order_number": "P-1007", "customer_name": "Grace Kim", "customer_phone": "+1-408-555-0177", "address": "Apt 4, rear unit off San Carlos (no GPS pin)", "latitude": nil, "longitude": nil, "distance_miles": 1.2, "scheduled_for": nil, "created_at": now - 7*60},
		{"order_number": "P-1008", "customer_name": "Hana Sato", "customer_phone": "+1-408-555-0178", "address": "500 W San Carlos St, San Jose, CA 95110", "latitude": 37.3286, "longitude": -121.9003, "distance_miles": 0.8, "scheduled_for": nil, "created_at": now - 4*60},
	}

	for _, order := range orders {
		order["id"] = uuid.New().String()
		order["status"] = "ready"
		query := `
			INSERT INTO delivery_orders (id, order_number, status, customer_name, customer_phone, address,
			                             latitude, longitude, distance_miles, scheduled_for, created_at)
			VALUES (:id, :order_number, :status, :customer_name, :customer_phone, :address,
			        :latitude, :longitude, :distance_miles, :scheduled_for, :created_at)
		`
		if _, err := db.NamedExec(query, order); err != nil {
			return err
		}
	}

	log.Printf("✓ Successfully seeded %d demo orders", len(orders))
	return nil
}
