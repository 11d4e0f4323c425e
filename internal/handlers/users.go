package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"pronto-backend/internal/database"
	"pronto-backend/internal/middleware"
	"pronto-backend/internal/models"
	"pronto-backend/internal/websocket"
	"pronto-backend/pkg/utils"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"
)

type CreateUserRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Role     string `json:"role"` // "driver" or "admin"
}

// CreateUser creates a new driver or admin account.
// Requires admin authentication.
func CreateUser(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Println("📥 REQUEST: POST /api/users")

		var req CreateUserRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			log.Printf("❌ Invalid request body: %v", err)
			utils.RespondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		if req.Email == "" || req.Password == "" || req.Name == "" || req.Role == "" {
			utils.RespondError(w, http.StatusBadRequest, "Email, password, name, and role are required")
			return
		}

		if req.Role != "driver" && req.Role != "admin" {
			log.Printf("❌ Invalid role: %s", req.Role)
			utils.RespondError(w, http.StatusBadRequest, "Role must be 'driver' or 'admin'")
			return
		}

		existing, err := database.GetUserByEmail(db, req.Email)
		if err != nil {
			log.Printf("❌ Failed to check for existing user: %v", err)
			utils.RespondError(w, http.StatusInternalServerError, "Failed to create user")
			return
		}
		if existing != nil {
			log.Printf("❌ User already exists: %s", req.Email)
			utils.RespondError(w, http.StatusConflict, "User with this email already exists")
			return
		}

		hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			log.Printf("❌ Failed to hash password: %v", err)
			utils.RespondError(w, http.StatusInternalServerError, "Failed to hash password")
			return
		}

		now := time.Now().Unix()
		user := models.User{
			ID:        uuid.New().String(),
			Email:     req.Email,
			Password:  string(hashedPassword),
			Name:      req.Name,
			Role:      req.Role,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if req.Phone != "" {
			user.Phone = &req.Phone
		}

		insertQuery := `
			INSERT INTO users (id, email, password, name, phone, role, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`
		if _, err = db.Exec(insertQuery, user.ID, user.Email, user.Password, user.Name, user.Phone, user.Role, user.CreatedAt, user.UpdatedAt); err != nil {
			log.Printf("❌ Database error: %v", err)
			utils.RespondError(w, http.StatusInternalServerError, "Failed to create user")
			return
		}

		log.Printf("✅ User created: %s (%s)", user.Email, user.Role)

		userResponse := user.ToUserResponse()
		utils.RespondJSON(w, http.StatusCreated, map[string]interface{}{
			"success": true,
			"data":    userResponse,
		})
	}
}

// ListUsers returns the full roster for the admin screen
func ListUsers(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		users, err := database.ListUsers(db)
		if err != nil {
			log.Printf("❌ Failed to list users: %v", err)
			utils.RespondError(w, http.StatusInternalServerError, "Failed to list users")
			return
		}

		responses := make([]models.UserResponse, 0, len(users))
		for i := range users {
			responses = append(responses, users[i].ToUserResponse())
		}

		utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"data":    responses,
		})
	}
}

// SetDriverDuty clocks a driver in or out. The admin board refreshes over
// the websocket so the driver list stays live.
func SetDriverDuty(db *sqlx.DB, wsHub *websocket.Hub, onDuty bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		driverID := chi.URLParam(r, "id")

		if err := database.SetDriverDuty(db, driverID, onDuty); err != nil {
			log.Printf("❌ Failed to set duty state for %s: %v", driverID, err)
			utils.RespondError(w, http.StatusConflict, "Driver not found or already in requested state")
			return
		}

		state := "off duty"
		if onDuty {
			state = "on duty"
		}
		log.Printf("✅ Driver %s is now %s", driverID, state)

		wsHub.BroadcastToRole("admin", map[string]interface{}{
			"type":      "dispatch_update",
			"subtype":   "driver_duty_changed",
			"driver_id": driverID,
			"on_duty":   onDuty,
		})

		utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"data":    map[string]interface{}{"driver_id": driverID, "on_duty": onDuty},
		})
	}
}

type RegisterFCMTokenRequest struct {
	Token      string `json:"token"`
	DeviceType string `json:"device_type"` // "ios" or "android"
}

// RegisterFCMToken stores a device token for the authenticated user
func RegisterFCMToken(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetUserFromContext(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		var req RegisterFCMTokenRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.RespondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if req.Token == "" {
			utils.RespondError(w, http.StatusBadRequest, "token is required")
			return
		}
		if req.DeviceType != "ios" && req.DeviceType != "android" {
			utils.RespondError(w, http.StatusBadRequest, "device_type must be 'ios' or 'android'")
			return
		}

		if err := database.SaveFCMToken(db, claims.UserID, req.Token, req.DeviceType); err != nil {
			log.Printf("❌ Failed to save FCM token: %v", err)
			utils.RespondError(w, http.StatusInternalServerError, "Failed to save FCM token")
			return
		}

		log.Printf("✅ FCM token registered for user %s (%s)", claims.UserID, req.DeviceType)

		utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
		})
	}
}
