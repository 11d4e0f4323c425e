package models

import "time"

// RouteStatus represents the current status of a delivery route
type RouteStatus string

const (
	RouteStatusActive    RouteStatus = "active"    // Driver is out delivering
	RouteStatusCompleted RouteStatus = "completed" // Every stop delivered or operator override
)

// StopStatus represents the status of a single stop on a route
type StopStatus string

const (
	StopStatusPending   StopStatus = "pending"
	StopStatusDelivered StopStatus = "delivered"
)

// DeliveryRoute represents a dispatched multi-stop delivery run
type DeliveryRoute struct {
	ID                   string      `json:"id" db:"id"`
	DriverID             string      `json:"driver_id" db:"driver_id"`
	Status               RouteStatus `json:"status" db:"status"`
	TotalStops           int         `json:"total_stops" db:"total_stops"`
	DeliveredStops       int         `json:"delivered_stops" db:"delivered_stops"`
	EstimatedDurationMin *float64    `json:"estimated_duration_min" db:"estimated_duration_min"`
	ActualDurationMin    *float64    `json:"actual_duration_min" db:"actual_duration_min"`
	StartedAt            int64       `json:"started_at" db:"started_at"`
	CompletedAt          *int64      `json:"completed_at" db:"completed_at"`
	CreatedAt            int64       `json:"created_at" db:"created_at"`
}

// RouteStop is one sequenced stop on a route. Customer fields are snapshotted
// at dispatch time so the route history survives later order edits.
type RouteStop struct {
	ID            int        `json:"id" db:"id"`
	RouteID       string     `json:"route_id" db:"route_id"`
	OrderID       string     `json:"order_id" db:"order_id"`
	SequenceOrder int        `json:"sequence_order" db:"sequence_order"`
	OrderNumber   string     `json:"order_number" db:"order_number"`
	CustomerName  string     `json:"customer_name" db:"customer_name"`
	CustomerPhone *string    `json:"customer_phone,omitempty" db:"customer_phone"`
	Address       string     `json:"address" db:"address"`
	Latitude      *float64   `json:"latitude" db:"latitude"`
	Longitude     *float64   `json:"longitude" db:"longitude"`
	Status        StopStatus `json:"status" db:"status"`
	DeliveredAt   *int64     `json:"delivered_at" db:"delivered_at"`
	CreatedAt     int64      `json:"created_at" db:"created_at"`
}

// IsComplete returns true if every stop has been delivered
func (r *DeliveryRoute) IsComplete() bool {
	return r.TotalStops > 0 && r.DeliveredStops >= r.TotalStops
}

// RemainingStops returns how many stops are still pending
func (r *DeliveryRoute) RemainingStops() int {
	remaining := r.TotalStops - r.DeliveredStops
	if remaining < 0 {
		return 0
	}
	return remaining
}

// GetCompletionPercentage returns completion as 0.0-1.0
func (r *DeliveryRoute) GetCompletionPercentage() float64 {
	if r.TotalStops == 0 {
		return 0.0
	}
	return float64(r.DeliveredStops) / float64(r.TotalStops)
}

// ElapsedMinutes returns minutes since the route was dispatched
func (r *DeliveryRoute) ElapsedMinutes(now time.Time) float64 {
	if r.StartedAt == 0 {
		return 0
	}
	mins := now.Sub(time.Unix(r.StartedAt, 0)).Minutes()
	if mins < 0 {
		return 0
	}
	return mins
}

// RouteWithStops is a route with its driver name and ordered stops,
// as returned by the dispatch board listing
type RouteWithStops struct {
	DeliveryRoute
	DriverName string      `json:"driver_name" db:"driver_name"`
	Stops      []RouteStop `json:"stops"`
}

// DispatchRouteRequest is the request body for POST /api/dispatch/routes
type DispatchRouteRequest struct {
	DriverID             string   `json:"driver_id"`
	OrderIDs             []string `json:"order_ids"`
	EstimatedDurationMin *float64 `json:"estimated_duration_min,omitempty"`
}

// StopDeliveredResponse reports route progress after a stop is delivered
type StopDeliveredResponse struct {
	RouteID           string   `json:"route_id"`
	DeliveredStops    int      `json:"delivered_stops"`
	TotalStops        int      `json:"total_stops"`
	RouteCompleted    bool     `json:"route_completed"`
	ActualDurationMin *float64 `json:"actual_duration_min,omitempty"`
}

// CompleteRouteResponse reports the final state after an operator override
type CompleteRouteResponse struct {
	RouteID           string      `json:"route_id"`
	DriverID          string      `json:"driver_id"`
	Status            RouteStatus `json:"status"`
	ForcedStops       int         `json:"forced_stops"` // pending stops delivered by the override
	ActualDurationMin float64     `json:"actual_duration_min"`
	CompletedAt       int64       `json:"completed_at"`
}
