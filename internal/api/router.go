package api

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/attune-ai/attune/internal/api/handlers"
	mw "github.com/attune-ai/attune/internal/api/middleware"
	"github.com/attune-ai/attune/internal/buildconfig"
	"github.com/attune-ai/attune/internal/classifier"
	"github.com/attune-ai/attune/internal/config"
	"github.com/attune-ai/attune/internal/domain"
	"github.com/attune-ai/attune/internal/service"
	"github.com/attune-ai/attune/internal/session"
	"github.com/attune-ai/attune/internal/store"
)

// App holds the router and the pieces the server lifecycle has to reach:
// the reflection sweeper to start and stop, the session hub for
// visibility, and the counters behind /metrics.
type App struct {
	Router       *chi.Mux
	Reflection   *service.ReflectionService
	Hub          *session.Hub
	startTime    time.Time
	requestCount atomic.Int64
	errorCount   atomic.Int64
}

func NewApp(db *pgxpool.Pool, logger *zap.Logger) *App {
	// Stores
	workspaceStore := store.NewWorkspaceStore(db)
	profileStore := store.NewProfileStore(db)
	signalStore := store.NewSignalStore(db)
	dimensionStore := store.NewDimensionStore(db)
	elicitationStore := store.NewElicitationStore(db)
	statsStore := store.NewInsightStatsStore(db)

	// Classifier via provider factory
	provider := config.ClassifierProvider()
	msgClassifier, err := classifier.NewClassifier(provider)
	if err != nil {
		logger.Warn("classifier initialization failed, falling back to heuristic",
			zap.String("provider", provider), zap.Error(err))
		msgClassifier = classifier.NewHeuristic()
	} else {
		logger.Info("classifier initialized", zap.String("provider", provider))
	}

	// Session hub
	hub := session.NewHub(config.SessionTTL(), logger)

	// Services
	reflectionSvc := service.NewReflectionService(profileStore, signalStore, dimensionStore, logger)
	elicitationSvc := service.NewElicitationService(elicitationStore, dimensionStore, logger)
	signalSvc := service.NewSignalService(profileStore, signalStore, msgClassifier, reflectionSvc, elicitationSvc, logger)
	insightSvc := service.NewInsightService(hub, dimensionStore, statsStore, logger)
	patternSvc := service.NewPatternService(dimensionStore, insightSvc, logger)
	contextSvc := service.NewContextService(profileStore, dimensionStore, logger)

	// Handlers
	workspaceHandler := handlers.NewWorkspaceHandler(workspaceStore)
	profileHandler := handlers.NewProfileHandler(profileStore, dimensionStore, signalStore, signalSvc, reflectionSvc, contextSvc, patternSvc, hub)
	elicitationHandler := handlers.NewElicitationHandler(profileStore, elicitationSvc)
	sessionHandler := handlers.NewSessionHandler(profileStore, hub, patternSvc, insightSvc, reflectionSvc)
	insightHandler := handlers.NewInsightHandler(insightSvc, hub)
	reflectionHandler := handlers.NewReflectionHandler(reflectionSvc)

	r := chi.NewRouter()

	app := &App{
		Router:     r,
		Reflection: reflectionSvc,
		Hub:        hub,
		startTime:  time.Now(),
	}

	// Metrics collector for middleware
	metricsCollector := mw.NewMetricsCollector(&app.requestCount, &app.errorCount)

	// Global middleware (order matters)
	r.Use(mw.RequestID)
	r.Use(middleware.RealIP)
	r.Use(metricsCollector.Middleware)
	r.Use(mw.Logging(logger))
	r.Use(middleware.Recoverer)
	r.Use(mw.RateLimit(config.RateLimitRPS(), config.RateLimitBurst()))

	// Health (no auth)
	r.Get("/health", healthHandler(db))

	// Metrics (no auth)
	r.Get("/metrics", app.metricsHandler())

	// Workspace creation (no auth, bootstrap endpoint)
	r.Post("/v1/workspaces", workspaceHandler.Create)

	// Authenticated routes
	r.Route("/v1", func(r chi.Router) {
		r.Use(mw.APIKeyAuth(workspaceStore))

		// Profiles
		r.Route("/profiles", func(r chi.Router) {
			r.Post("/", profileHandler.Create)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", profileHandler.GetByID)
				r.Put("/privacy", profileHandler.UpdatePrivacy)
				r.Post("/messages", profileHandler.IngestMessage)
				r.Post("/reflect", profileHandler.Reflect)
				r.Get("/context", profileHandler.Context)
				r.Get("/gaps", profileHandler.Gaps)
				r.Delete("/dimensions", profileHandler.ResetDimensions)
				r.Get("/elicitation/next", elicitationHandler.Next)
				r.Post("/elicitation/answer", elicitationHandler.Answer)
			})
		})

		// Sessions
		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", sessionHandler.Open)
			r.Route("/{id}", func(r chi.Router) {
				r.Delete("/", sessionHandler.Close)
				r.Post("/activity", sessionHandler.Activity)
				r.Put("/settings", sessionHandler.UpdateSettings)
				r.Route("/insights", func(r chi.Router) {
					r.Post("/", insightHandler.Queue)
					r.Get("/next", insightHandler.Next)
					r.Post("/{insightID}/engagement", insightHandler.Engagement)
					r.Post("/{insightID}/rating", insightHandler.Rate)
				})
			})
		})

		// Reflection sweep (operator endpoint)
		r.Post("/reflection/sweep", reflectionHandler.Sweep)
	})

	return app
}

// NewRouter returns just the chi.Mux for callers that manage lifecycle
// themselves.
func NewRouter(db *pgxpool.Pool, logger *zap.Logger) *chi.Mux {
	return NewApp(db, logger).Router
}

func healthHandler(db *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(r.Context()); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "error", "error": err.Error()})
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}

func (app *App) metricsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var memStats runtime.MemStats
		runtime.ReadMemStats(&memStats)

		uptime := time.Since(app.startTime)

		response := map[string]any{
			"uptime_seconds":  uptime.Seconds(),
			"uptime_human":    uptime.Round(time.Second).String(),
			"request_count":   app.requestCount.Load(),
			"error_count":     app.errorCount.Load(),
			"active_sessions": app.Hub.Active(),
			"goroutines":      runtime.NumGoroutine(),
			"memory": map[string]any{
				"alloc_mb":       float64(memStats.Alloc) / 1024 / 1024,
				"total_alloc_mb": float64(memStats.TotalAlloc) / 1024 / 1024,
				"sys_mb":         float64(memStats.Sys) / 1024 / 1024,
				"num_gc":         memStats.NumGC,
			},
			"go_version": runtime.Version(),
			"build":      buildconfig.Info(),
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(response)
	}
}

// Ensure stores satisfy their domain interfaces at compile time.
var (
	_ domain.WorkspaceStore    = (*store.WorkspaceStore)(nil)
	_ domain.ProfileStore      = (*store.ProfileStore)(nil)
	_ domain.SignalStore       = (*store.SignalStore)(nil)
	_ domain.DimensionStore    = (*store.DimensionStore)(nil)
	_ domain.ElicitationStore  = (*store.ElicitationStore)(nil)
	_ domain.InsightStatsStore = (*store.InsightStatsStore)(nil)
)
