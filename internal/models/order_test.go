package models

import (
	"testing"
	"time"
)

func TestIsDispatchEligible(t *testing.T) {
	driverID := "d1"
	routeID := "r1"

	cases := []struct {
		name  string
		order DeliveryOrder
		want  bool
	}{
		{"ready and unassigned", DeliveryOrder{Status: OrderStatusReady}, true},
		{"still preparing", DeliveryOrder{Status: OrderStatusPreparing}, false},
		{"already out", DeliveryOrder{Status: OrderStatusOutForDelivery, DriverID: &driverID, DeliveryRouteID: &routeID}, false},
		{"ready but claimed", DeliveryOrder{Status: OrderStatusReady, DriverID: &driverID, DeliveryRouteID: &routeID}, false},
		{"delivered", DeliveryOrder{Status: OrderStatusDelivered}, false},
	}

	for _, tc := range cases {
		if got := tc.order.IsDispatchEligible(); got != tc.want {
			t.Errorf("%s: eligible = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestHasCoordinates(t *testing.T) {
	lat, lng := 37.33, -121.89

	if (&DeliveryOrder{}).HasCoordinates() {
		t.Error("order without coordinates reported as geocoded")
	}
	if (&DeliveryOrder{Latitude: &lat}).HasCoordinates() {
		t.Error("latitude alone is not a coordinate pair")
	}
	if !(&DeliveryOrder{Latitude: &lat, Longitude: &lng}).HasCoordinates() {
		t.Error("geocoded order reported as missing coordinates")
	}
}

func TestWaitingMinutes(t *testing.T) {
	now := time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)

	order := &DeliveryOrder{CreatedAt: now.Add(-45 * time.Minute).Unix()}
	if got := order.WaitingMinutes(now); got != 45 {
		t.Fatalf("waiting = %v, want 45", got)
	}

	if got := (&DeliveryOrder{}).WaitingMinutes(now); got != 0 {
		t.Fatalf("missing created_at should wait 0, got %v", got)
	}
}

func TestMinutesUntilDue(t *testing.T) {
	now := time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)

	due := now.Add(30 * time.Minute).Unix()
	order := &DeliveryOrder{ScheduledFor: &due}
	if got := order.MinutesUntilDue(now); got != 30 {
		t.Fatalf("until due = %v, want 30", got)
	}

	past := now.Add(-10 * time.Minute).Unix()
	order = &DeliveryOrder{ScheduledFor: &past}
	if got := order.MinutesUntilDue(now); got != -10 {
		t.Fatalf("overdue order = %v, want -10", got)
	}

	if got := (&DeliveryOrder{}).MinutesUntilDue(now); got != 0 {
		t.Fatalf("unscheduled order = %v, want 0", got)
	}
}
