package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/stockroom/api/controllers"
	webhookcontrollers "github.com/angelmondragon/stockroom/api/controllers/webhooks"
	"github.com/angelmondragon/stockroom/api/middleware"
	"github.com/angelmondragon/stockroom/internal/automation"
	"github.com/angelmondragon/stockroom/internal/inventory"
	"github.com/angelmondragon/stockroom/internal/profiles"
	"github.com/angelmondragon/stockroom/pkg/config"
	"github.com/angelmondragon/stockroom/pkg/enums"
	"github.com/angelmondragon/stockroom/pkg/logger"
	"github.com/angelmondragon/stockroom/pkg/metrics"
)

type webhookService interface {
	webhookcontrollers.Receiver
	webhookcontrollers.EventLog
}

// Params carries everything the router wires into handlers. Redis may be nil.
type Params struct {
	Config *config.Config
	Logger *logger.Logger
	// BaseContext outlives requests; the scheduler is started against it.
	BaseContext context.Context
	DB          controllers.Pinger
	Redis       controllers.Pinger
	Gatherer    prometheus.Gatherer
	HTTPMetrics *metrics.HTTPMetrics

	Inventory  inventory.Service
	Automation automation.Service
	Profiles   profiles.Service
	Scheduler  controllers.Scheduler
	Jobs       controllers.JobClient
	Webhooks   webhookService
}

func NewRouter(p Params) http.Handler {
	cfg := p.Config
	logg := p.Logger
	base := p.BaseContext
	if base == nil {
		base = context.Background()
	}
	gatherer := p.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg, p.HTTPMetrics),
		middleware.RequestID(logg),
		middleware.Metrics(p.HTTPMetrics),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, p.DB, p.Redis))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing(cfg))
	})

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/job-service", webhookcontrollers.JobServiceWebhook(cfg.JobService.WebhookSecret, p.Webhooks, logg))
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(logg, enums.ActorRoleAdmin))

		threshold := cfg.Automation.StockThreshold

		r.Get("/ping", controllers.AdminPing(cfg))

		r.Route("/inventory", func(r chi.Router) {
			r.Get("/low", controllers.InventoryLowStock(p.Inventory, threshold, logg))
			r.Get("/stats/{productId}", controllers.InventoryStats(p.Inventory, logg))
			r.Get("/{productId}/restock-check", controllers.InventoryRestockCheck(p.Inventory, threshold, logg))
			r.Get("/{productId}/available", controllers.InventoryAvailable(p.Inventory, logg))
			r.Post("/{productId}", controllers.InventoryRequest(p.Automation, p.Profiles, logg))
			r.Post("/{productId}/items", controllers.InventoryAddItems(p.Inventory, logg))
		})

		r.Route("/orders/{orderId}", func(r chi.Router) {
			r.Post("/reserve", controllers.OrderReserve(p.Inventory, logg))
			r.Post("/complete", controllers.OrderComplete(p.Inventory, logg))
			r.Post("/cancel", controllers.OrderCancel(p.Inventory, logg))
		})

		r.Post("/items/{itemId}/validity-checks", controllers.ItemValidityCheck(p.Inventory, logg))
		r.Post("/validate/{productId}", controllers.ValidateProduct(p.Automation, p.Profiles, logg))

		r.Route("/automation", func(r chi.Router) {
			r.Post("/start", controllers.AutomationStart(p.Scheduler, base, logg))
			r.Post("/stop", controllers.AutomationStop(p.Scheduler, logg))
			r.Get("/status", controllers.AutomationStatus(p.Scheduler))
			r.Post("/tasks/{task}/run", controllers.AutomationRunTask(p.Scheduler, base, logg))
		})

		r.Route("/profiles", func(r chi.Router) {
			r.Get("/", controllers.ProfilesList(p.Profiles, logg))
			r.Get("/{productId}", controllers.ProfileGet(p.Profiles, logg))
			r.Put("/{productId}", controllers.ProfileUpsert(p.Profiles, logg))
		})

		r.Route("/jobs", func(r chi.Router) {
			r.Get("/status", controllers.JobServiceStatus(p.Jobs, logg))
			r.Post("/", controllers.JobCreate(p.Jobs, logg))
			r.Get("/{jobId}", controllers.JobGet(p.Jobs, logg))
			r.Get("/{jobId}/hits", controllers.JobHits(p.Jobs, logg))
			r.Post("/{jobId}/start", controllers.JobStart(p.Jobs, logg))
			r.Post("/{jobId}/stop", controllers.JobStop(p.Jobs, logg))
		})

		r.Route("/webhooks", func(r chi.Router) {
			r.Get("/events", webhookcontrollers.ListEvents(p.Webhooks, logg))
			r.Post("/drain", webhookcontrollers.DrainEvents(p.Webhooks, logg))
		})
	})

	return r
}
