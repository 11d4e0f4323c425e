package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"pronto-backend/internal/database"
	"pronto-backend/internal/metrics"
	"pronto-backend/internal/middleware"
	"pronto-backend/internal/models"
	"pronto-backend/internal/services"
	"pronto-backend/internal/websocket"
	"pronto-backend/pkg/utils"

	"github.com/go-chi/chi/v5"
	"github.com/jmoiron/sqlx"
)

// DispatchRoute persists a confirmed proposal: claims every order, creates
// the route, and notifies the driver. A proposal that lost any order to a
// concurrent dispatch is rejected whole with the conflicting order numbers
// so the operator can rebuild.
func DispatchRoute(db *sqlx.DB, wsHub *websocket.Hub, fcmService *services.FCMService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		log.Println("📥 REQUEST: POST /api/dispatch/routes")

		var req models.DispatchRouteRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			log.Printf("❌ Invalid request body: %v", err)
			utils.RespondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		if req.DriverID == "" {
			utils.RespondError(w, http.StatusBadRequest, "driver_id is required")
			return
		}

		log.Printf("   🚗 Driver: %s", req.DriverID)
		log.Printf("   📦 Stops: %d", len(req.OrderIDs))

		route, err := database.DispatchRoute(db, req.DriverID, req.OrderIDs, req.EstimatedDurationMin)
		if err != nil {
			var conflict *database.OrderConflictError
			switch {
			case errors.Is(err, database.ErrNoStops):
				utils.RespondError(w, http.StatusBadRequest, "Route needs at least one stop")
			case errors.Is(err, database.ErrDriverNotFound):
				utils.RespondError(w, http.StatusNotFound, "Driver not found")
			case errors.Is(err, database.ErrDriverBusy):
				utils.RespondError(w, http.StatusConflict, "Driver already has an active route")
			case errors.As(err, &conflict):
				utils.RespondJSON(w, http.StatusConflict, map[string]interface{}{
					"success":            false,
					"error":              conflict.Error(),
					"conflicting_orders": conflict.OrderNumbers,
				})
			default:
				log.Printf("❌ Dispatch failed: %v", err)
				utils.RespondError(w, http.StatusInternalServerError, "Failed to dispatch route")
			}
			return
		}

		metrics.RoutesDispatched.Inc()

		estimated := 0.0
		if route.EstimatedDurationMin != nil {
			estimated = *route.EstimatedDurationMin
		}

		// Push to the driver's devices. A failed push never unwinds the
		// dispatch, the route is already committed.
		if fcmService != nil {
			tokens, err := database.GetFCMTokensForUser(db, req.DriverID)
			if err != nil {
				log.Printf("⚠️ Failed to load FCM tokens for driver %s: %v", req.DriverID, err)
			}
			if err := fcmService.SendRouteAssignedNotification(tokens, route.ID, route.TotalStops, estimated); err != nil {
				log.Printf("⚠️ FCM push failed: %v", err)
			}
		}

		wsHub.BroadcastToUser(req.DriverID, map[string]interface{}{
			"type":  "route_assigned",
			"route": route,
		})
		wsHub.BroadcastToRole("admin", map[string]interface{}{
			"type":     "dispatch_update",
			"subtype":  "route_dispatched",
			"route_id": route.ID,
			"driver":   route.DriverName,
			"stops":    route.TotalStops,
		})

		log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		log.Printf("✅ ROUTE DISPATCHED: %s → %s (%d stops)", route.ID, route.DriverName, route.TotalStops)
		log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")

		utils.RespondJSON(w, http.StatusCreated, map[string]interface{}{
			"success": true,
			"data":    route,
		})
	}
}

// ListRoutes returns today's routes for the dispatch board, active first
func ListRoutes(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		routes, err := database.ListActiveAndRecentRoutes(db)
		if err != nil {
			log.Printf("❌ Failed to list routes: %v", err)
			utils.RespondError(w, http.StatusInternalServerError, "Failed to list routes")
			return
		}

		utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"data":    routes,
		})
	}
}

// CompleteRoute is the operator override that closes out a route and
// force-delivers any stops still pending
func CompleteRoute(db *sqlx.DB, wsHub *websocket.Hub, fcmService *services.FCMService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		routeID := chi.URLParam(r, "id")
		log.Printf("📥 REQUEST: POST /api/dispatch/routes/%s/complete", routeID)

		result, err := database.CompleteRoute(db, routeID)
		if err != nil {
			if errors.Is(err, database.ErrRouteNotFound) {
				utils.RespondError(w, http.StatusNotFound, "Route not found or already completed")
				return
			}
			log.Printf("❌ Failed to complete route: %v", err)
			utils.RespondError(w, http.StatusInternalServerError, "Failed to complete route")
			return
		}

		if result.ForcedStops > 0 {
			metrics.OrdersDelivered.WithLabelValues("forced").Add(float64(result.ForcedStops))
		}

		// Tell the driver their route was closed from the office
		if fcmService != nil {
			tokens, err := database.GetFCMTokensForUser(db, result.DriverID)
			if err != nil {
				log.Printf("⚠️ Failed to load FCM tokens for driver %s: %v", result.DriverID, err)
			}
			if err := fcmService.SendRouteCompletedNotification(tokens, result.RouteID); err != nil {
				log.Printf("⚠️ FCM push failed: %v", err)
			}
		}

		wsHub.BroadcastToRole("admin", map[string]interface{}{
			"type":     "dispatch_update",
			"subtype":  "route_completed",
			"route_id": result.RouteID,
			"forced":   result.ForcedStops,
		})

		utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"data":    result,
		})
	}
}

// MarkOrderDelivered records a stop handoff. When it was the route's last
// pending stop the route completes in the same transaction.
func MarkOrderDelivered(db *sqlx.DB, wsHub *websocket.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID := chi.URLParam(r, "id")
		log.Printf("📥 REQUEST: POST /api/orders/%s/delivered", orderID)

		result, err := database.MarkStopDelivered(db, orderID)
		if err != nil {
			if errors.Is(err, database.ErrOrderNotDeliverable) {
				utils.RespondError(w, http.StatusNotFound, "Order not found or not out for delivery")
				return
			}
			log.Printf("❌ Failed to mark order delivered: %v", err)
			utils.RespondError(w, http.StatusInternalServerError, "Failed to mark order delivered")
			return
		}

		metrics.OrdersDelivered.WithLabelValues("delivered").Inc()

		wsHub.BroadcastToRole("admin", map[string]interface{}{
			"type":     "dispatch_update",
			"subtype":  "order_delivered",
			"order_id": orderID,
			"route_id": result.RouteID,
			"progress": map[string]int{"delivered": result.DeliveredStops, "total": result.TotalStops},
		})
		if result.RouteCompleted {
			wsHub.BroadcastToRole("admin", map[string]interface{}{
				"type":     "dispatch_update",
				"subtype":  "route_completed",
				"route_id": result.RouteID,
			})
		}

		utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"data":    result,
		})
	}
}

// GetMyRoute returns the authenticated driver's active route, or null when
// they have none
func GetMyRoute(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetUserFromContext(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		route, err := database.GetActiveRouteForDriver(db, claims.UserID)
		if err != nil {
			log.Printf("❌ Failed to load route for driver %s: %v", claims.UserID, err)
			utils.RespondError(w, http.StatusInternalServerError, "Failed to load route")
			return
		}

		utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"data":    route,
		})
	}
}
