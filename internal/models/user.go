package models

import "time"

type User struct {
	ID          string  `json:"id" db:"id"`
	Email       string  `json:"email" db:"email"`
	Password    string  `json:"-" db:"password"` // Never return password in JSON
	Name        string  `json:"name" db:"name"`
	Phone       *string `json:"phone,omitempty" db:"phone"`
	Role        string  `json:"role" db:"role"` // "driver" or "admin"
	OnDutySince *int64  `json:"on_duty_since" db:"on_duty_since"`
	CreatedAt   int64   `json:"created_at" db:"created_at"`
	UpdatedAt   int64   `json:"updated_at" db:"updated_at"`
}

type UserResponse struct {
	ID          string  `json:"id"`
	Email       string  `json:"email"`
	Name        string  `json:"name"`
	Phone       *string `json:"phone,omitempty"`
	Role        string  `json:"role"`
	OnDuty      bool    `json:"on_duty"`
	OnDutySince *int64  `json:"on_duty_since,omitempty"`
	CreatedAt   int64   `json:"created_at"`
}

func (u *User) ToUserResponse() UserResponse {
	return UserResponse{
		ID:          u.ID,
		Email:       u.Email,
		Name:        u.Name,
		Phone:       u.Phone,
		Role:        u.Role,
		OnDuty:      u.IsOnDuty(),
		OnDutySince: u.OnDutySince,
		CreatedAt:   u.CreatedAt,
	}
}

// IsOnDuty reports whether the driver has clocked in
func (u *User) IsOnDuty() bool {
	return u.OnDutySince != nil
}

// OnDutyMinutes returns how long the driver has been on duty
func (u *User) OnDutyMinutes(now time.Time) float64 {
	if u.OnDutySince == nil {
		return 0
	}
	mins := now.Sub(time.Unix(*u.OnDutySince, 0)).Minutes()
	if mins < 0 {
		return 0
	}
	return mins
}

// FCMToken represents a Firebase Cloud Messaging token for a user
type FCMToken struct {
	ID         int    `json:"id" db:"id"`
	UserID     string `json:"user_id" db:"user_id"`
	Token      string `json:"token" db:"token"`
	DeviceType string `json:"device_type" db:"device_type"` // "ios" or "android"
	CreatedAt  int64  `json:"created_at" db:"created_at"`
	UpdatedAt  int64  `json:"updated_at" db:"updated_at"`
}

// DriverAvailability is the dispatch view of a driver: duty state plus
// whether they already have an active route
type DriverAvailability struct {
	ID            string  `json:"id" db:"id"`
	Name          string  `json:"name" db:"name"`
	Phone         *string `json:"phone,omitempty" db:"phone"`
	OnDutySince   *int64  `json:"on_duty_since" db:"on_duty_since"`
	ActiveRouteID *string `json:"active_route_id" db:"active_route_id"`
}

// IsAvailable reports whether the driver can take a new route
func (d *DriverAvailability) IsAvailable() bool {
	return d.OnDutySince != nil && d.ActiveRouteID == nil
}
