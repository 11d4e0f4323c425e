package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"strconv"

	"pronto-backend/internal/database"
	"pronto-backend/internal/handlers"
	"pronto-backend/internal/metrics"
	"pronto-backend/internal/middleware"
	"pronto-backend/internal/services"
	"pronto-backend/internal/websocket"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	log.Println("═══════════════════════════════════════════════════════════════════")
	log.Println("🚀 PRONTO DISPATCH BACKEND STARTING")
	log.Println("═══════════════════════════════════════════════════════════════════")

	// Load .env file
	log.Println("📂 Loading environment variables...")
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  Warning: .env file not found, using environment variables from system")
	} else {
		log.Println("✅ .env file loaded successfully")
	}

	// Get database URL
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		log.Println("❌ FATAL ERROR: DATABASE_URL environment variable is required")
		log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		log.Fatal("DATABASE_URL environment variable is required")
	}

	// Connect to database
	db, err := database.Connect(dbURL)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	// Run migrations
	log.Println("🔄 Running database migrations...")
	if err := database.Migrate(db); err != nil {
		log.Fatalf("❌ FATAL ERROR: Database migrations failed: %v", err)
	}

	// Seed database
	log.Println("🌱 Seeding database with initial data...")
	if err := database.SeedUsers(db); err != nil {
		log.Fatalf("❌ FATAL ERROR: User seeding failed: %v", err)
	}
	if err := database.SeedOrders(db); err != nil {
		log.Fatalf("❌ FATAL ERROR: Order seeding failed: %v", err)
	}

	// Geo provider (nil when no API key; everything degrades to haversine)
	googleMaps := services.NewGoogleMapsService()
	var provider services.GeoProvider
	if googleMaps != nil {
		provider = googleMaps
	}

	// Depot coordinates: direct lat/lng override beats geocoding the
	// configured store address
	var depot *services.DepotCache
	storeLat, latErr := strconv.ParseFloat(os.Getenv("STORE_LAT"), 64)
	storeLng, lngErr := strconv.ParseFloat(os.Getenv("STORE_LNG"), 64)
	if latErr == nil && lngErr == nil {
		depot = services.NewStaticDepot(services.Coordinates{Lat: storeLat, Lng: storeLng})
		log.Printf("✅ Store location from env: (%.6f, %.6f)", storeLat, storeLng)
	} else {
		storeAddress := os.Getenv("STORE_ADDRESS")
		if storeAddress == "" {
			log.Println("⚠️  STORE_ADDRESS not set - route clustering disabled, builds fall back to a single route")
		}
		depot = services.NewDepotCache(storeAddress, provider)
		// Warm the cache so the first route build doesn't pay for
		// the geocode round trip
		if storeAddress != "" && provider != nil {
			depot.Resolve(context.Background())
		}
	}

	maxRadius := services.DefaultMaxRadiusMiles
	if v, err := strconv.ParseFloat(os.Getenv("MAX_DELIVERY_RADIUS_MILES"), 64); err == nil && v > 0 {
		maxRadius = v
	}

	scorer := services.NewPriorityScorer(maxRadius)

	builderCfg := services.DefaultRouteBuilderConfig()
	builderCfg.MaxRadiusMiles = maxRadius
	builder := services.NewRouteBuilder(builderCfg, provider, depot)

	// Initialize Firebase Cloud Messaging
	var fcmService *services.FCMService
	if fcmCredsBase64 := os.Getenv("FIREBASE_CREDENTIALS_BASE64"); fcmCredsBase64 != "" {
		fcmService, err = services.NewFCMServiceFromBase64(fcmCredsBase64)
		if err != nil {
			log.Printf("⚠️  Failed to initialize FCM from base64: %v (push notifications disabled)", err)
			fcmService = nil
		} else {
			log.Println("✅ Firebase Cloud Messaging initialized from base64 credentials")
		}
	} else if fcmCredentialsFile := os.Getenv("FIREBASE_CREDENTIALS_FILE"); fcmCredentialsFile != "" {
		fcmService, err = services.NewFCMService(fcmCredentialsFile)
		if err != nil {
			log.Printf("⚠️  Failed to initialize FCM from file: %v (push notifications disabled)", err)
			fcmService = nil
		} else {
			log.Println("✅ Firebase Cloud Messaging initialized from file")
		}
	} else {
		log.Println("⚠️  No Firebase credentials configured (push notifications disabled)")
	}

	// Initialize WebSocket hub
	wsHub := websocket.NewHub()
	go wsHub.Run()
	log.Println("✅ WebSocket hub started")

	// Prometheus registry
	metrics.RegisterDefault()

	// Create router
	r := chi.NewRouter()

	// Middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Metrics)

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	// Prometheus metrics
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// Authentication routes (no auth required)
	r.Post("/api/login", handlers.Login(db))

	// WebSocket endpoint (authentication handled in handler via query param)
	r.Get("/ws", websocket.HandleWebSocket(wsHub))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Driver endpoints (require authentication)
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth)

			r.Get("/my-route", handlers.GetMyRoute(db))
			r.Post("/orders/{id}/delivered", handlers.MarkOrderDelivered(db, wsHub))
			r.Post("/fcm-token", handlers.RegisterFCMToken(db))
		})

		// Operator endpoints (require authentication + admin role)
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth)
			r.Use(middleware.RequireRole("admin"))

			// Dispatch board
			r.Get("/dispatch/queue", handlers.GetDispatchQueue(db, scorer))
			r.Get("/dispatch/drivers", handlers.GetDrivers(db))
			r.Post("/dispatch/routes/build", handlers.BuildRoutes(db, scorer, builder))
			r.Post("/dispatch/routes", handlers.DispatchRoute(db, wsHub, fcmService))
			r.Get("/dispatch/routes", handlers.ListRoutes(db))
			r.Post("/dispatch/routes/{id}/complete", handlers.CompleteRoute(db, wsHub, fcmService))

			// Order intake and repair
			r.Post("/orders", handlers.CreateOrder(db, provider, depot))
			r.Post("/orders/{id}/geocode", handlers.GeocodeOrder(db, provider, depot))

			// Roster management
			r.Get("/users", handlers.ListUsers(db))
			r.Post("/users", handlers.CreateUser(db))
			r.Post("/drivers/{id}/on-duty", handlers.SetDriverDuty(db, wsHub, true))
			r.Post("/drivers/{id}/off-duty", handlers.SetDriverDuty(db, wsHub, false))
		})
	})

	// Get port
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
		log.Printf("⚠️  PORT not set, using default: %s", port)
	}

	log.Println("═══════════════════════════════════════════════════════════════════")
	log.Println("✅ ALL INITIALIZATION COMPLETE")
	log.Printf("🚀 Server starting on http://localhost:%s", port)
	log.Println("═══════════════════════════════════════════════════════════════════")

	// Start server
	if err := http.ListenAndServe(":"+port, r); err != nil {
		log.Fatal(err)
	}
}
