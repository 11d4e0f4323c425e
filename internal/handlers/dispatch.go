package handlers

import (
	"log"
	"net/http"
	"time"

	"pronto-backend/internal/database"
	"pronto-backend/internal/metrics"
	"pronto-backend/internal/models"
	"pronto-backend/internal/services"
	"pronto-backend/pkg/utils"

	"github.com/jmoiron/sqlx"
)

// GetDispatchQueue returns every dispatch-eligible order with its computed
// urgency score, most urgent first
func GetDispatchQueue(db *sqlx.DB, scorer *services.PriorityScorer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orders, err := database.GetDispatchQueue(db)
		if err != nil {
			log.Printf("❌ Failed to load dispatch queue: %v", err)
			utils.RespondError(w, http.StatusInternalServerError, "Failed to load dispatch queue")
			return
		}

		entries := scorer.ScoreQueue(orders, time.Now())

		utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"data":    entries,
		})
	}
}

// DriverView is one row of the dispatch board's driver panel
type DriverView struct {
	models.DriverAvailability
	Available     bool    `json:"available"`
	OnDutyMinutes float64 `json:"on_duty_minutes"`
}

// GetDrivers returns on-duty drivers with their availability for dispatch
func GetDrivers(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		drivers, err := database.GetAvailableDrivers(db)
		if err != nil {
			log.Printf("❌ Failed to load drivers: %v", err)
			utils.RespondError(w, http.StatusInternalServerError, "Failed to load drivers")
			return
		}

		now := time.Now()
		views := make([]DriverView, 0, len(drivers))
		for _, d := range drivers {
			onDuty := 0.0
			if d.OnDutySince != nil {
				onDuty = now.Sub(time.Unix(*d.OnDutySince, 0)).Minutes()
			}
			views = append(views, DriverView{
				DriverAvailability: d,
				Available:          d.IsAvailable(),
				OnDutyMinutes:      onDuty,
			})
		}

		utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"data":    views,
		})
	}
}

// BuildRoutes runs the route builder over the current queue and available
// drivers and returns the proposals. Nothing is persisted; the operator
// confirms a proposal through POST /api/dispatch/routes.
func BuildRoutes(db *sqlx.DB, scorer *services.PriorityScorer, builder *services.RouteBuilder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Println("📥 REQUEST: POST /api/dispatch/routes/build")

		orders, err := database.GetDispatchQueue(db)
		if err != nil {
			log.Printf("❌ Failed to load dispatch queue: %v", err)
			utils.RespondError(w, http.StatusInternalServerError, "Failed to load dispatch queue")
			return
		}

		drivers, err := database.GetAvailableDrivers(db)
		if err != nil {
			log.Printf("❌ Failed to load drivers: %v", err)
			utils.RespondError(w, http.StatusInternalServerError, "Failed to load drivers")
			return
		}

		// Drivers already out on a route stay on the board but are not
		// candidates for a new proposal
		available := make([]models.DriverAvailability, 0, len(drivers))
		for _, d := range drivers {
			if d.IsAvailable() {
				available = append(available, d)
			}
		}

		entries := scorer.ScoreQueue(orders, time.Now())

		start := time.Now()
		result := builder.Build(r.Context(), entries, available)
		metrics.RouteBuildDuration.Observe(time.Since(start).Seconds())

		utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"data":    result,
		})
	}
}
