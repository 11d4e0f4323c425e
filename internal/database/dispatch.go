package database

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"pronto-backend/internal/models"
)

var (
	// ErrNoStops rejects a dispatch with an empty stop list
	ErrNoStops = errors.New("route needs at least one stop")

	// ErrDriverNotFound rejects a dispatch to an unknown driver
	ErrDriverNotFound = errors.New("driver not found")

	// ErrDriverBusy rejects a dispatch to a driver already out on a route
	ErrDriverBusy = errors.New("driver already has an active route")

	// ErrRouteNotFound covers both a bad route id and a route that is no
	// longer active
	ErrRouteNotFound = errors.New("route not found or already completed")

	// ErrOrderNotDeliverable covers a bad order id and an order that is
	// not currently out for delivery
	ErrOrderNotDeliverable = errors.New("order not found or not out for delivery")
)

// OrderConflictError reports orders that another dispatch claimed first.
// The caller should re-fetch the queue and re-plan.
type OrderConflictError struct {
	OrderNumbers []string
}

func (e *OrderConflictError) Error() string {
	return fmt.Sprintf("orders already assigned: %s", strings.Join(e.OrderNumbers, ", "))
}

// DispatchRoute atomically claims every order and creates the route with
// its snapshotted stops. Each order is claimed with a conditional update
// re-validating that it is still ready and unassigned, so two dispatches
// racing for the same order serialize through the database and exactly
// one wins. The loser gets an OrderConflictError naming every lost order
// and nothing is persisted.
func DispatchRoute(db *sqlx.DB, driverID string, orderIDs []string, estimatedDurationMin *float64) (*models.RouteWithStops, error) {
	if len(orderIDs) == 0 {
		return nil, ErrNoStops
	}

	tx, err := db.Beginx()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var driverName string
	err = tx.Get(&driverName, `SELECT name FROM users WHERE id = $1 AND role = 'driver'`, driverID)
	if err == sql.ErrNoRows {
		return nil, ErrDriverNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up driver: %w", err)
	}

	var activeCount int
	err = tx.Get(&activeCount, `SELECT COUNT(*) FROM delivery_routes WHERE driver_id = $1 AND status = 'active'`, driverID)
	if err != nil {
		return nil, fmt.Errorf("failed to check driver routes: %w", err)
	}
	if activeCount > 0 {
		return nil, ErrDriverBusy
	}

	routeID := uuid.New().String()
	now := time.Now().Unix()

	routeQuery := `
		INSERT INTO delivery_routes (
			id, driver_id, status, total_stops, delivered_stops,
			estimated_duration_min, started_at, created_at
		) VALUES ($1, $2, 'active', $3, 0, $4, $5, $5)
	`
	if _, err = tx.Exec(routeQuery, routeID, driverID, len(orderIDs), estimatedDurationMin, now); err != nil {
		// The partial unique index on active routes catches the race two
		// concurrent dispatches to the same driver can win past the count
		// check above
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return nil, ErrDriverBusy
		}
		return nil, fmt.Errorf("failed to create route: %w", err)
	}

	claimQuery := `
		UPDATE delivery_orders
		SET status = 'out_for_delivery',
		    driver_id = $1,
		    delivery_route_id = $2,
		    dispatched_at = $3,
		    updated_at = $3
		WHERE id = $4 AND status = 'ready' AND driver_id IS NULL
	`

	var conflicts []string
	stops := make([]models.RouteStop, 0, len(orderIDs))

	for i, orderID := range orderIDs {
		result, err := tx.Exec(claimQuery, driverID, routeID, now, orderID)
		if err != nil {
			return nil, fmt.Errorf("failed to claim order %s: %w", orderID, err)
		}
		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rowsAffected == 0 {
			// Someone else got here first, or the order left the queue.
			// Keep probing the rest so the caller learns every conflict
			// in one round trip.
			conflicts = append(conflicts, orderDisplayNumber(tx, orderID))
			continue
		}

		var order models.DeliveryOrder
		if err := tx.Get(&order, `SELECT * FROM delivery_orders WHERE id = $1`, orderID); err != nil {
			return nil, fmt.Errorf("failed to snapshot order %s: %w", orderID, err)
		}

		stops = append(stops, models.RouteStop{
			RouteID:       routeID,
			OrderID:       order.ID,
			SequenceOrder: i + 1,
			OrderNumber:   order.OrderNumber,
			CustomerName:  order.CustomerName,
			CustomerPhone: order.CustomerPhone,
			Address:       order.Address,
			Latitude:      order.Latitude,
			Longitude:     order.Longitude,
			Status:        models.StopStatusPending,
			CreatedAt:     now,
		})
	}

	if len(conflicts) > 0 {
		log.Printf("❌ Dispatch rejected: %d of %d orders already claimed", len(conflicts), len(orderIDs))
		return nil, &OrderConflictError{OrderNumbers: conflicts}
	}

	stopQuery := `
		INSERT INTO route_stops (
			route_id, order_id, sequence_order, order_number, customer_name,
			customer_phone, address, latitude, longitude, status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 'pending', $10)
	`
	for _, stop := range stops {
		_, err = tx.Exec(stopQuery,
			stop.RouteID, stop.OrderID, stop.SequenceOrder, stop.OrderNumber, stop.CustomerName,
			stop.CustomerPhone, stop.Address, stop.Latitude, stop.Longitude, stop.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create stop %d: %w", stop.SequenceOrder, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.Printf("✅ Dispatched route %s to %s with %d stops", routeID, driverName, len(stops))

	return &models.RouteWithStops{
		DeliveryRoute: models.DeliveryRoute{
			ID:                   routeID,
			DriverID:             driverID,
			Status:               models.RouteStatusActive,
			TotalStops:           len(stops),
			DeliveredStops:       0,
			EstimatedDurationMin: estimatedDurationMin,
			StartedAt:            now,
			CreatedAt:            now,
		},
		DriverName: driverName,
		Stops:      stops,
	}, nil
}

// orderDisplayNumber resolves an order id to its human-facing number for
// conflict messages, falling back to the raw id
func orderDisplayNumber(tx *sqlx.Tx, orderID string) string {
	var number string
	if err := tx.Get(&number, `SELECT order_number FROM delivery_orders WHERE id = $1`, orderID); err != nil {
		return orderID
	}
	return number
}

// MarkStopDelivered flips an order and its route stop to delivered in one
// transaction. When the last pending stop goes, the route auto-completes
// with its actual duration. An order that is not currently out for
// delivery is a no-op reported as not found.
func MarkStopDelivered(db *sqlx.DB, orderID string) (*models.StopDeliveredResponse, error) {
	tx, err := db.Beginx()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().Unix()

	var routeID *string
	err = tx.QueryRowx(`
		UPDATE delivery_orders
		SET status = 'delivered', delivered_at = $1, updated_at = $1
		WHERE id = $2 AND status = 'out_for_delivery'
		RETURNING delivery_route_id
	`, now, orderID).Scan(&routeID)
	if err == sql.ErrNoRows {
		return nil, ErrOrderNotDeliverable
	}
	if err != nil {
		return nil, fmt.Errorf("failed to mark order delivered: %w", err)
	}

	if routeID == nil {
		// Order was out for delivery with no route link. Repair what we
		// can and move on instead of aborting the delivery.
		log.Printf("⚠️ Order %s delivered but had no route link", orderID)
		if err = tx.Commit(); err != nil {
			return nil, fmt.Errorf("failed to commit transaction: %w", err)
		}
		return &models.StopDeliveredResponse{}, nil
	}

	result, err := tx.Exec(`
		UPDATE route_stops
		SET status = 'delivered', delivered_at = $1
		WHERE route_id = $2 AND order_id = $3 AND status = 'pending'
	`, now, *routeID, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to update stop: %w", err)
	}
	if rows, raErr := result.RowsAffected(); raErr == nil && rows == 0 {
		log.Printf("⚠️ Route %s has no pending stop for order %s", *routeID, orderID)
	}

	var route models.DeliveryRoute
	err = tx.QueryRowx(`
		UPDATE delivery_routes
		SET delivered_stops = (SELECT COUNT(*) FROM route_stops WHERE route_id = $1 AND status = 'delivered')
		WHERE id = $1
		RETURNING id, status, total_stops, delivered_stops, started_at
	`, *routeID).Scan(&route.ID, &route.Status, &route.TotalStops, &route.DeliveredStops, &route.StartedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to update route progress: %w", err)
	}

	response := &models.StopDeliveredResponse{
		RouteID:        route.ID,
		DeliveredStops: route.DeliveredStops,
		TotalStops:     route.TotalStops,
	}

	if route.Status == models.RouteStatusActive && route.IsComplete() {
		actual := float64(now-route.StartedAt) / 60.0
		_, err = tx.Exec(`
			UPDATE delivery_routes
			SET status = 'completed', completed_at = $1, actual_duration_min = $2
			WHERE id = $3 AND status = 'active'
		`, now, actual, route.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to complete route: %w", err)
		}
		response.RouteCompleted = true
		response.ActualDurationMin = &actual
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	if response.RouteCompleted {
		log.Printf("🏁 Route %s completed: all %d stops delivered", route.ID, route.TotalStops)
	} else {
		log.Printf("📦 Order %s delivered (%d/%d on route %s)", orderID, route.DeliveredStops, route.TotalStops, route.ID)
	}

	return response, nil
}

// CompleteRoute is the operator override: the route is forced to
// completed and every still-pending stop is marked delivered with its
// order updated in lockstep, so nothing is left dangling out for
// delivery on a closed route.
func CompleteRoute(db *sqlx.DB, routeID string) (*models.CompleteRouteResponse, error) {
	tx, err := db.Beginx()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().Unix()

	var driverID string
	var actualDurationMin float64
	var totalStops int
	err = tx.QueryRowx(`
		UPDATE delivery_routes
		SET status = 'completed',
		    completed_at = $1,
		    actual_duration_min = ($1 - started_at) / 60.0,
		    delivered_stops = total_stops
		WHERE id = $2 AND status = 'active'
		RETURNING driver_id, actual_duration_min, total_stops
	`, now, routeID).Scan(&driverID, &actualDurationMin, &totalStops)
	if err == sql.ErrNoRows {
		return nil, ErrRouteNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to complete route: %w", err)
	}

	result, err := tx.Exec(`
		UPDATE route_stops
		SET status = 'delivered', delivered_at = $1
		WHERE route_id = $2 AND status = 'pending'
	`, now, routeID)
	if err != nil {
		return nil, fmt.Errorf("failed to force-deliver stops: %w", err)
	}
	forced, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}

	_, err = tx.Exec(`
		UPDATE delivery_orders
		SET status = 'delivered', delivered_at = $1, updated_at = $1
		WHERE delivery_route_id = $2 AND status = 'out_for_delivery'
	`, now, routeID)
	if err != nil {
		return nil, fmt.Errorf("failed to force-deliver orders: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.Printf("🏁 Route %s force-completed by operator (%d stops forced)", routeID, forced)

	return &models.CompleteRouteResponse{
		RouteID:           routeID,
		DriverID:          driverID,
		Status:            models.RouteStatusCompleted,
		ForcedStops:       int(forced),
		ActualDurationMin: actualDurationMin,
		CompletedAt:       now,
	}, nil
}

// ListActiveAndRecentRoutes returns today's routes for the dispatch
// board, active ones first, each with driver name and ordered stops.
// Active routes left over from yesterday are included so they are never
// invisible to the operator.
func ListActiveAndRecentRoutes(db *sqlx.DB) ([]models.RouteWithStops, error) {
	now := time.Now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).Unix()

	var routes []models.RouteWithStops
	err := db.Select(&routes, `
		SELECT r.*, u.name AS driver_name
		FROM delivery_routes r
		JOIN users u ON u.id = r.driver_id
		WHERE r.created_at >= $1 OR r.status = 'active'
		ORDER BY CASE WHEN r.status = 'active' THEN 0 ELSE 1 END, r.created_at DESC
	`, midnight)
	if err != nil {
		return nil, fmt.Errorf("failed to list routes: %w", err)
	}
	if len(routes) == 0 {
		return []models.RouteWithStops{}, nil
	}

	routeIDs := make([]string, len(routes))
	for i := range routes {
		routeIDs[i] = routes[i].ID
	}

	query, args, err := sqlx.In(`
		SELECT * FROM route_stops
		WHERE route_id IN (?)
		ORDER BY route_id, sequence_order ASC
	`, routeIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to build stops query: %w", err)
	}
	query = db.Rebind(query)

	var stops []models.RouteStop
	if err := db.Select(&stops, query, args...); err != nil {
		return nil, fmt.Errorf("failed to load stops: %w", err)
	}

	byRoute := make(map[string][]models.RouteStop, len(routes))
	for _, stop := range stops {
		byRoute[stop.RouteID] = append(byRoute[stop.RouteID], stop)
	}
	for i := range routes {
		routes[i].Stops = byRoute[routes[i].ID]
		if routes[i].Stops == nil {
			routes[i].Stops = []models.RouteStop{}
		}
	}

	return routes, nil
}

// GetActiveRouteForDriver returns the driver's current route with stops,
// or nil when they have none
func GetActiveRouteForDriver(db *sqlx.DB, driverID string) (*models.RouteWithStops, error) {
	var route models.RouteWithStops
	err := db.Get(&route, `
		SELECT r.*, u.name AS driver_name
		FROM delivery_routes r
		JOIN users u ON u.id = r.driver_id
		WHERE r.driver_id = $1 AND r.status = 'active'
		ORDER BY r.created_at DESC
		LIMIT 1
	`, driverID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active route: %w", err)
	}

	if err := db.Select(&route.Stops, `
		SELECT * FROM route_stops
		WHERE route_id = $1
		ORDER BY sequence_order ASC
	`, route.ID); err != nil {
		return nil, fmt.Errorf("failed to load stops: %w", err)
	}
	if route.Stops == nil {
		route.Stops = []models.RouteStop{}
	}

	return &route, nil
}
