package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"pronto-backend/internal/models"
)

// GetUserByEmail retrieves a user for login, nil when absent
func GetUserByEmail(db *sqlx.DB, email string) (*models.User, error) {
	var user models.User
	err := db.Get(&user, `SELECT * FROM users WHERE email = $1`, email)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return &user, nil
}

// GetUserByID retrieves a user, nil when absent
func GetUserByID(db *sqlx.DB, userID string) (*models.User, error) {
	var user models.User
	err := db.Get(&user, `SELECT * FROM users WHERE id = $1`, userID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// ListUsers returns the full roster for the admin screen
func ListUsers(db *sqlx.DB) ([]models.User, error) {
	var users []models.User
	if err := db.Select(&users, `SELECT * FROM users ORDER BY role, name`); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	if users == nil {
		users = []models.User{}
	}
	return users, nil
}

// GetAvailableDrivers returns on-duty drivers with their active route, if
// any, ordered longest on duty first. That order is also the assignment
// order for new route proposals.
func GetAvailableDrivers(db *sqlx.DB) ([]models.DriverAvailability, error) {
	var drivers []models.DriverAvailability
	query := `
		SELECT u.id, u.name, u.phone, u.on_duty_since, r.id AS active_route_id
		FROM users u
		LEFT JOIN delivery_routes r ON r.driver_id = u.id AND r.status = 'active'
		WHERE u.role = 'driver' AND u.on_duty_since IS NOT NULL
		ORDER BY u.on_duty_since ASC
	`
	if err := db.Select(&drivers, query); err != nil {
		return nil, fmt.Errorf("failed to get available drivers: %w", err)
	}
	if drivers == nil {
		drivers = []models.DriverAvailability{}
	}
	return drivers, nil
}

// SetDriverDuty clocks a driver in or out
func SetDriverDuty(db *sqlx.DB, driverID string, onDuty bool) error {
	now := time.Now().Unix()

	var query string
	if onDuty {
		query = `UPDATE users SET on_duty_since = $1, updated_at = $1 WHERE id = $2 AND role = 'driver' AND on_duty_since IS NULL`
	} else {
		query = `UPDATE users SET on_duty_since = NULL, updated_at = $1 WHERE id = $2 AND role = 'driver' AND on_duty_since IS NOT NULL`
	}

	result, err := db.Exec(query, now, driverID)
	if err != nil {
		return fmt.Errorf("failed to set duty state: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("driver not found or already in requested state: %s", driverID)
	}
	return nil
}

// SaveFCMToken upserts a device token for push notifications
func SaveFCMToken(db *sqlx.DB, userID, token, deviceType string) error {
	now := time.Now().Unix()
	query := `
		INSERT INTO fcm_tokens (user_id, token, device_type, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (token) DO UPDATE
		SET user_id = EXCLUDED.user_id,
		    device_type = EXCLUDED.device_type,
		    updated_at = EXCLUDED.updated_at
	`
	if _, err := db.Exec(query, userID, token, deviceType, now); err != nil {
		return fmt.Errorf("failed to save FCM token: %w", err)
	}
	return nil
}

// GetFCMTokensForUser returns every registered device token for a user
func GetFCMTokensForUser(db *sqlx.DB, userID string) ([]string, error) {
	var tokens []string
	if err := db.Select(&tokens, `SELECT token FROM fcm_tokens WHERE user_id = $1`, userID); err != nil {
		return nil, fmt.Errorf("failed to get FCM tokens: %w", err)
	}
	return tokens, nil
}
