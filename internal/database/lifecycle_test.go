package database

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"pronto-backend/internal/models"
)

// These tests run the dispatch transactions against a real Postgres.
// Set TEST_DATABASE_URL to run them; without it they skip.
func testDB(t *testing.T) *sqlx.DB {
	t.Helper()

	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	db, err := sqlx.Connect("postgres", dbURL)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func createTestDriver(t *testing.T, db *sqlx.DB) string {
	t.Helper()

	id := uuid.New().String()
	_, err := db.Exec(`
		INSERT INTO users (id, email, password, name, role, on_duty_since)
		VALUES ($1, $2, 'not-a-real-hash', $3, 'driver', $4)
	`, id, id+"@test.local", "Test Driver "+id[:8], time.Now().Unix())
	if err != nil {
		t.Fatalf("create driver: %v", err)
	}
	t.Cleanup(func() { db.Exec(`DELETE FROM users WHERE id = $1`, id) })
	return id
}

func createReadyOrder(t *testing.T, db *sqlx.DB) string {
	t.Helper()

	id := uuid.New().String()
	_, err := db.Exec(`
		INSERT INTO delivery_orders (id, order_number, status, customer_name, address)
		VALUES ($1, $2, 'ready', 'Test Customer', '123 Test St')
	`, id, "T-"+id[:8])
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	t.Cleanup(func() { db.Exec(`DELETE FROM delivery_orders WHERE id = $1`, id) })
	return id
}

func orderState(t *testing.T, db *sqlx.DB, orderID string) (status string, driverID *string) {
	t.Helper()

	row := db.QueryRowx(`SELECT status, driver_id FROM delivery_orders WHERE id = $1`, orderID)
	if err := row.Scan(&status, &driverID); err != nil {
		t.Fatalf("load order %s: %v", orderID, err)
	}
	return status, driverID
}

func TestMarkStopDeliveredCompletesOnLastStop(t *testing.T) {
	db := testDB(t)
	driverID := createTestDriver(t, db)
	orderIDs := []string{createReadyOrder(t, db), createReadyOrder(t, db), createReadyOrder(t, db)}

	estimated := 25.0
	route, err := DispatchRoute(db, driverID, orderIDs, &estimated)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if route.TotalStops != 3 || len(route.Stops) != 3 {
		t.Fatalf("route has %d/%d stops, want 3/3", route.TotalStops, len(route.Stops))
	}

	// The route must complete on the third delivery and not before
	for i, orderID := range orderIDs {
		result, err := MarkStopDelivered(db, orderID)
		if err != nil {
			t.Fatalf("deliver stop %d: %v", i+1, err)
		}
		if result.DeliveredStops != i+1 {
			t.Fatalf("delivered count = %d after stop %d", result.DeliveredStops, i+1)
		}
		wantCompleted := i == len(orderIDs)-1
		if result.RouteCompleted != wantCompleted {
			t.Fatalf("stop %d: completed = %v, want %v", i+1, result.RouteCompleted, wantCompleted)
		}
		if wantCompleted && result.ActualDurationMin == nil {
			t.Fatal("completed route missing actual duration")
		}
	}

	for _, orderID := range orderIDs {
		if status, _ := orderState(t, db, orderID); status != "delivered" {
			t.Fatalf("order %s status = %s, want delivered", orderID, status)
		}
	}

	active, err := GetActiveRouteForDriver(db, driverID)
	if err != nil {
		t.Fatalf("active route: %v", err)
	}
	if active != nil {
		t.Fatalf("driver still on route %s after delivering everything", active.ID)
	}

	if _, err := MarkStopDelivered(db, orderIDs[0]); !errors.Is(err, ErrOrderNotDeliverable) {
		t.Fatalf("redelivery error = %v, want ErrOrderNotDeliverable", err)
	}
}

func TestDispatchConflictLeavesBatchUntouched(t *testing.T) {
	db := testDB(t)
	winner := createTestDriver(t, db)
	loser := createTestDriver(t, db)
	contested := createReadyOrder(t, db)
	bystander := createReadyOrder(t, db)

	if _, err := DispatchRoute(db, winner, []string{contested}, nil); err != nil {
		t.Fatalf("first dispatch: %v", err)
	}

	_, err := DispatchRoute(db, loser, []string{contested, bystander}, nil)
	var conflict *OrderConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("second dispatch error = %v, want OrderConflictError", err)
	}
	if len(conflict.OrderNumbers) != 1 {
		t.Fatalf("conflict names %d orders, want 1", len(conflict.OrderNumbers))
	}

	// The losing dispatch rolled back whole: the bystander order it would
	// have claimed is still sitting in the queue
	status, assignee := orderState(t, db, bystander)
	if status != "ready" || assignee != nil {
		t.Fatalf("bystander order is %s/assigned=%v, want ready/unassigned", status, assignee != nil)
	}

	active, err := GetActiveRouteForDriver(db, loser)
	if err != nil {
		t.Fatalf("active route: %v", err)
	}
	if active != nil {
		t.Fatalf("losing driver got route %s out of a failed dispatch", active.ID)
	}
}

func TestDispatchToBusyDriverRejected(t *testing.T) {
	db := testDB(t)
	driverID := createTestDriver(t, db)
	onTruck := createReadyOrder(t, db)
	queued := createReadyOrder(t, db)

	if _, err := DispatchRoute(db, driverID, []string{onTruck}, nil); err != nil {
		t.Fatalf("first dispatch: %v", err)
	}

	if _, err := DispatchRoute(db, driverID, []string{queued}, nil); !errors.Is(err, ErrDriverBusy) {
		t.Fatalf("second dispatch error = %v, want ErrDriverBusy", err)
	}

	status, assignee := orderState(t, db, queued)
	if status != "ready" || assignee != nil {
		t.Fatalf("queued order is %s/assigned=%v, want ready/unassigned", status, assignee != nil)
	}
}

func TestCompleteRouteRoundTrip(t *testing.T) {
	db := testDB(t)
	driverID := createTestDriver(t, db)
	orderIDs := []string{createReadyOrder(t, db), createReadyOrder(t, db), createReadyOrder(t, db)}

	route, err := DispatchRoute(db, driverID, orderIDs, nil)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if _, err := MarkStopDelivered(db, orderIDs[0]); err != nil {
		t.Fatalf("deliver first stop: %v", err)
	}

	result, err := CompleteRoute(db, route.ID)
	if err != nil {
		t.Fatalf("complete route: %v", err)
	}
	if result.ForcedStops != 2 {
		t.Fatalf("forced stops = %d, want 2", result.ForcedStops)
	}
	if result.Status != models.RouteStatusCompleted {
		t.Fatalf("status = %s, want completed", result.Status)
	}
	if result.DriverID != driverID {
		t.Fatalf("driver id = %s, want %s", result.DriverID, driverID)
	}

	if _, err := CompleteRoute(db, route.ID); !errors.Is(err, ErrRouteNotFound) {
		t.Fatalf("double completion error = %v, want ErrRouteNotFound", err)
	}

	// The dispatch board listing must show the closed-out state
	routes, err := ListActiveAndRecentRoutes(db)
	if err != nil {
		t.Fatalf("list routes: %v", err)
	}
	var listed *models.RouteWithStops
	for i := range routes {
		if routes[i].ID == route.ID {
			listed = &routes[i]
			break
		}
	}
	if listed == nil {
		t.Fatalf("route %s missing from today's listing", route.ID)
	}
	if listed.Status != models.RouteStatusCompleted {
		t.Fatalf("listed status = %s, want completed", listed.Status)
	}
	if listed.DeliveredStops != listed.TotalStops {
		t.Fatalf("listed progress = %d/%d, want all delivered", listed.DeliveredStops, listed.TotalStops)
	}
	if listed.ActualDurationMin == nil {
		t.Fatal("listed route missing actual duration")
	}
	for _, stop := range listed.Stops {
		if stop.Status != models.StopStatusDelivered {
			t.Fatalf("stop %d status = %s, want delivered", stop.SequenceOrder, stop.Status)
		}
	}
	for _, orderID := range orderIDs {
		if status, _ := orderState(t, db, orderID); status != "delivered" {
			t.Fatalf("order %s status = %s, want delivered", orderID, status)
		}
	}
}
