package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"pronto-backend/internal/models"
)

// GetDispatchQueue returns every order eligible for routing: ready, no
// driver, no route. Oldest first; urgency ordering is applied by the
// caller after scoring.
func GetDispatchQueue(db *sqlx.DB) ([]models.DeliveryOrder, error) {
	var orders []models.DeliveryOrder
	query := `
		SELECT * FROM delivery_orders
		WHERE status = 'ready' AND driver_id IS NULL AND delivery_route_id IS NULL
		ORDER BY created_at ASC
	`
	if err := db.Select(&orders, query); err != nil {
		return nil, fmt.Errorf("failed to get dispatch queue: %w", err)
	}
	if orders == nil {
		orders = []models.DeliveryOrder{}
	}
	return orders, nil
}

// CreateOrder inserts a new delivery order
func CreateOrder(db *sqlx.DB, order *models.DeliveryOrder) error {
	query := `
		INSERT INTO delivery_orders (
			id, order_number, status, customer_name, customer_phone, address,
			latitude, longitude, distance_miles, scheduled_for, created_at, updated_at
		) VALUES (
			:id, :order_number, :status, :customer_name, :customer_phone, :address,
			:latitude, :longitude, :distance_miles, :scheduled_for, :created_at, :updated_at
		)
	`
	if _, err := db.NamedExec(query, order); err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

// GetOrderByID retrieves a single order, nil when absent
func GetOrderByID(db *sqlx.DB, orderID string) (*models.DeliveryOrder, error) {
	var order models.DeliveryOrder
	err := db.Get(&order, `SELECT * FROM delivery_orders WHERE id = $1`, orderID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return &order, nil
}

// UpdateOrderCoordinates stores a geocoding result on an order
func UpdateOrderCoordinates(db *sqlx.DB, orderID string, lat, lng float64, distanceMiles *float64) error {
	result, err := db.Exec(`
		UPDATE delivery_orders
		SET latitude = $1, longitude = $2, distance_miles = COALESCE($3, distance_miles), updated_at = $4
		WHERE id = $5
	`, lat, lng, distanceMiles, time.Now().Unix(), orderID)
	if err != nil {
		return fmt.Errorf("failed to update coordinates: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("order not found: %s", orderID)
	}
	return nil
}
