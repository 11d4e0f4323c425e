package models

import (
	"testing"
	"time"
)

func TestRouteIsComplete(t *testing.T) {
	cases := []struct {
		total, delivered int
		want             bool
	}{
		{3, 0, false},
		{3, 2, false},
		{3, 3, true},
		{0, 0, false}, // an empty route never completes itself
	}

	for _, tc := range cases {
		r := &DeliveryRoute{TotalStops: tc.total, DeliveredStops: tc.delivered}
		if got := r.IsComplete(); got != tc.want {
			t.Errorf("%d/%d complete = %v, want %v", tc.delivered, tc.total, got, tc.want)
		}
	}
}

func TestRemainingStops(t *testing.T) {
	r := &DeliveryRoute{TotalStops: 5, DeliveredStops: 2}
	if got := r.RemainingStops(); got != 3 {
		t.Fatalf("remaining = %d, want 3", got)
	}

	r = &DeliveryRoute{TotalStops: 2, DeliveredStops: 4}
	if got := r.RemainingStops(); got != 0 {
		t.Fatalf("over-delivered route should clamp to 0, got %d", got)
	}
}

func TestElapsedMinutes(t *testing.T) {
	now := time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)

	r := &DeliveryRoute{StartedAt: now.Add(-25 * time.Minute).Unix()}
	if got := r.ElapsedMinutes(now); got != 25 {
		t.Fatalf("elapsed = %v, want 25", got)
	}

	if got := (&DeliveryRoute{}).ElapsedMinutes(now); got != 0 {
		t.Fatalf("unstarted route elapsed = %v, want 0", got)
	}
}
