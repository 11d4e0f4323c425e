package database

import (
	"errors"
	"fmt"
	"testing"
)

func TestOrderConflictError(t *testing.T) {
	err := &OrderConflictError{OrderNumbers: []string{"P-1001", "P-1004"}}

	want := "orders already assigned: P-1001, P-1004"
	if err.Error() != want {
		t.Fatalf("message = %q, want %q", err.Error(), want)
	}

	// Handlers unwrap the conflict through errors.As to surface the lost
	// order numbers to the operator
	wrapped := fmt.Errorf("dispatch: %w", err)
	var conflict *OrderConflictError
	if !errors.As(wrapped, &conflict) {
		t.Fatal("errors.As failed to find OrderConflictError")
	}
	if len(conflict.OrderNumbers) != 2 {
		t.Fatalf("conflict carries %d orders, want 2", len(conflict.OrderNumbers))
	}
}

func TestSentinelErrorsAreDistinct(t *testing.T) {
	sentinels := []error{ErrNoStops, ErrDriverNotFound, ErrDriverBusy, ErrRouteNotFound, ErrOrderNotDeliverable}
	for i, a := range sentinels {
		for j, b := range sentinels {
			if i != j && errors.Is(a, b) {
				t.Fatalf("sentinel %d and %d are not distinct", i, j)
			}
		}
	}
}
