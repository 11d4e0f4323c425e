package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"pronto-backend/internal/database"
	"pronto-backend/internal/metrics"
	"pronto-backend/internal/models"
	"pronto-backend/internal/services"
	"pronto-backend/pkg/utils"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// CreateOrder takes a delivery order straight into the ready queue. The
// address is geocoded inline when possible; a geocode failure still
// creates the order, it just rides unclustered until someone retries.
func CreateOrder(db *sqlx.DB, provider services.GeoProvider, depot *services.DepotCache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Println("📥 REQUEST: POST /api/orders")

		var req models.CreateOrderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			log.Printf("❌ Invalid request body: %v", err)
			utils.RespondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		if req.OrderNumber == "" || req.CustomerName == "" || req.Address == "" {
			utils.RespondError(w, http.StatusBadRequest, "order_number, customer_name, and address are required")
			return
		}

		now := time.Now().Unix()
		order := models.DeliveryOrder{
			ID:           uuid.New().String(),
			OrderNumber:  req.OrderNumber,
			Status:       models.OrderStatusReady,
			CustomerName: req.CustomerName,
			Address:      req.Address,
			ScheduledFor: req.ScheduledFor,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if req.CustomerPhone != "" {
			order.CustomerPhone = &req.CustomerPhone
		}

		if req.Latitude != nil && req.Longitude != nil {
			order.Latitude = req.Latitude
			order.Longitude = req.Longitude
		} else if provider != nil {
			coords, err := provider.Geocode(r.Context(), req.Address)
			if err != nil {
				log.Printf("⚠️ Geocoding failed for %q: %v", req.Address, err)
				metrics.GeocodeFailures.Inc()
			} else {
				order.Latitude = &coords.Lat
				order.Longitude = &coords.Lng
			}
		}

		if order.HasCoordinates() && depot != nil {
			if depotCoords, ok := depot.Resolve(r.Context()); ok {
				miles := services.HaversineMiles(depotCoords, services.Coordinates{Lat: *order.Latitude, Lng: *order.Longitude})
				order.DistanceMiles = &miles
			}
		}

		if err := database.CreateOrder(db, &order); err != nil {
			log.Printf("❌ Failed to create order: %v", err)
			utils.RespondError(w, http.StatusInternalServerError, "Failed to create order")
			return
		}

		log.Printf("✅ Order created: %s (%s) at %s", order.OrderNumber, order.ID, order.Address)

		utils.RespondJSON(w, http.StatusCreated, map[string]interface{}{
			"success": true,
			"data":    order,
		})
	}
}

// GeocodeOrder retries geocoding for an order whose address never resolved
func GeocodeOrder(db *sqlx.DB, provider services.GeoProvider, depot *services.DepotCache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID := chi.URLParam(r, "id")
		log.Printf("📥 REQUEST: POST /api/orders/%s/geocode", orderID)

		order, err := database.GetOrderByID(db, orderID)
		if err != nil {
			log.Printf("❌ Failed to load order: %v", err)
			utils.RespondError(w, http.StatusInternalServerError, "Failed to load order")
			return
		}
		if order == nil {
			utils.RespondError(w, http.StatusNotFound, "Order not found")
			return
		}

		if provider == nil {
			utils.RespondError(w, http.StatusServiceUnavailable, "Geocoding is not configured")
			return
		}

		coords, err := provider.Geocode(r.Context(), order.Address)
		if err != nil {
			log.Printf("⚠️ Geocoding retry failed for %q: %v", order.Address, err)
			metrics.GeocodeFailures.Inc()
			utils.RespondError(w, http.StatusBadGateway, "Address could not be geocoded")
			return
		}

		var distanceMiles *float64
		if depot != nil {
			if depotCoords, ok := depot.Resolve(r.Context()); ok {
				miles := services.HaversineMiles(depotCoords, coords)
				distanceMiles = &miles
			}
		}

		if err := database.UpdateOrderCoordinates(db, orderID, coords.Lat, coords.Lng, distanceMiles); err != nil {
			log.Printf("❌ Failed to store coordinates: %v", err)
			utils.RespondError(w, http.StatusInternalServerError, "Failed to store coordinates")
			return
		}

		log.Printf("✅ Order %s geocoded: (%.6f, %.6f)", order.OrderNumber, coords.Lat, coords.Lng)

		utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"data": map[string]interface{}{
				"order_id":       orderID,
				"latitude":       coords.Lat,
				"longitude":      coords.Lng,
				"distance_miles": distanceMiles,
			},
		})
	}
}
