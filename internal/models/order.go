package models

import "time"

// OrderStatus represents the current status of a delivery order
type OrderStatus string

const (
	OrderStatusConfirmed      OrderStatus = "confirmed"        // Accepted, kitchen not started
	OrderStatusPreparing      OrderStatus = "preparing"        // Kitchen working on it
	OrderStatusReady          OrderStatus = "ready"            // Packed, waiting for dispatch
	OrderStatusOutForDelivery OrderStatus = "out_for_delivery" // On an active route
	OrderStatusDelivered      OrderStatus = "delivered"        // Handed to the customer
	OrderStatusVoided         OrderStatus = "voided"           // Cancelled or refunded
)

// DeliveryOrder represents a single customer delivery
type DeliveryOrder struct {
	ID              string      `json:"id" db:"id"`
	OrderNumber     string      `json:"order_number" db:"order_number"`
	Status          OrderStatus `json:"status" db:"status"`
	CustomerName    string      `json:"customer_name" db:"customer_name"`
	CustomerPhone   *string     `json:"customer_phone,omitempty" db:"customer_phone"`
	Address         string      `json:"address" db:"address"`
	Latitude        *float64    `json:"latitude" db:"latitude"`   // nil until geocoded
	Longitude       *float64    `json:"longitude" db:"longitude"` // nil until geocoded
	DistanceMiles   *float64    `json:"distance_miles" db:"distance_miles"`
	ScheduledFor    *int64      `json:"scheduled_for" db:"scheduled_for"` // Unix timestamp, nil for ASAP orders
	DriverID        *string     `json:"driver_id" db:"driver_id"`
	DeliveryRouteID *string     `json:"delivery_route_id" db:"delivery_route_id"`
	DispatchedAt    *int64      `json:"dispatched_at" db:"dispatched_at"`
	DeliveredAt     *int64      `json:"delivered_at" db:"delivered_at"`
	CreatedAt       int64       `json:"created_at" db:"created_at"`
	UpdatedAt       int64       `json:"updated_at" db:"updated_at"`
}

// IsDispatchEligible reports whether the order can be put on a route.
// Eligible means ready and not yet claimed by any driver or route.
func (o *DeliveryOrder) IsDispatchEligible() bool {
	return o.Status == OrderStatusReady && o.DriverID == nil && o.DeliveryRouteID == nil
}

// IsScheduled reports whether the order has a promised delivery time
func (o *DeliveryOrder) IsScheduled() bool {
	return o.ScheduledFor != nil
}

// HasCoordinates reports whether geocoding succeeded for this order
func (o *DeliveryOrder) HasCoordinates() bool {
	return o.Latitude != nil && o.Longitude != nil
}

// WaitingMinutes returns how long the order has been waiting since creation
func (o *DeliveryOrder) WaitingMinutes(now time.Time) float64 {
	if o.CreatedAt == 0 {
		return 0
	}
	return now.Sub(time.Unix(o.CreatedAt, 0)).Minutes()
}

// MinutesUntilDue returns minutes until the promised time. Negative means
// the promise is already in the past. Zero if the order is not scheduled.
func (o *DeliveryOrder) MinutesUntilDue(now time.Time) float64 {
	if o.ScheduledFor == nil {
		return 0
	}
	return time.Unix(*o.ScheduledFor, 0).Sub(now).Minutes()
}

// Distance returns the straight-line store distance, 0 when unknown
func (o *DeliveryOrder) Distance() float64 {
	if o.DistanceMiles == nil {
		return 0
	}
	return *o.DistanceMiles
}

// CreateOrderRequest is the request body for POST /api/orders
type CreateOrderRequest struct {
	OrderNumber   string   `json:"order_number"`
	CustomerName  string   `json:"customer_name"`
	CustomerPhone string   `json:"customer_phone"`
	Address       string   `json:"address"`
	ScheduledFor  *int64   `json:"scheduled_for,omitempty"` // Unix timestamp
	Latitude      *float64 `json:"latitude,omitempty"`      // optional, skips geocoding
	Longitude     *float64 `json:"longitude,omitempty"`
}

// QueueEntry is a dispatch-queue row: the order plus its computed urgency
type QueueEntry struct {
	DeliveryOrder
	PriorityScore  float64 `json:"priority_score"`
	WaitingMinutes float64 `json:"waiting_minutes"`
}
