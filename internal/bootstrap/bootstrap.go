// Package bootstrap assembles the services shared by the api and cron-worker
// binaries from a loaded config.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/angelmondragon/stockroom/internal/alerts"
	"github.com/angelmondragon/stockroom/internal/automation"
	"github.com/angelmondragon/stockroom/internal/cron"
	"github.com/angelmondragon/stockroom/internal/inventory"
	"github.com/angelmondragon/stockroom/internal/profiles"
	jobservicewebhook "github.com/angelmondragon/stockroom/internal/webhooks/jobservice"
	"github.com/angelmondragon/stockroom/pkg/config"
	"github.com/angelmondragon/stockroom/pkg/db"
	"github.com/angelmondragon/stockroom/pkg/jobservice"
	"github.com/angelmondragon/stockroom/pkg/logger"
	"github.com/angelmondragon/stockroom/pkg/metrics"
	"github.com/angelmondragon/stockroom/pkg/migrate"
	"github.com/angelmondragon/stockroom/pkg/pubsub"
	"github.com/angelmondragon/stockroom/pkg/redis"
)

// App holds every long-lived dependency. Redis and PubSub are nil when not
// configured.
type App struct {
	Config   *config.Config
	Logger   *logger.Logger
	Registry *prometheus.Registry
	HTTP     *metrics.HTTPMetrics

	DB     *db.Client
	Redis  *redis.Client
	PubSub *pubsub.Client
	Jobs   *jobservice.Client

	Inventory  inventory.Service
	Profiles   profiles.Service
	Automation automation.Service
	Webhooks   *jobservicewebhook.Service
	Alerts     alerts.Sink
	Scheduler  *cron.Scheduler
}

// Build connects to the configured backends and wires the services. On
// failure every connection opened so far is closed.
func Build(ctx context.Context, cfg *config.Config, logg *logger.Logger) (*App, error) {
	app := &App{Config: cfg, Logger: logg, Registry: prometheus.NewRegistry()}
	if err := app.wire(ctx); err != nil {
		_ = app.Close()
		return nil, err
	}
	return app, nil
}

func (app *App) wire(ctx context.Context) error {
	cfg := app.Config
	logg := app.Logger
	var err error

	app.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	app.HTTP = metrics.NewHTTPMetrics(app.Registry)

	app.DB, err = db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("bootstrap database: %w", err)
	}
	if err := migrate.MaybeRunDev(ctx, cfg, logg, app.DB); err != nil {
		return fmt.Errorf("run dev migrations: %w", err)
	}

	if cfg.Redis.Enabled() {
		app.Redis, err = redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			return fmt.Errorf("bootstrap redis: %w", err)
		}
	} else {
		logg.Warn(ctx, "redis not configured; scheduler runs without distributed locks")
	}

	app.Jobs, err = jobservice.NewClient(cfg.JobService.BaseURL, cfg.JobService.APIKey, jobservice.WithTimeout(cfg.JobService.Timeout))
	if err != nil {
		return fmt.Errorf("job service client: %w", err)
	}

	app.Inventory, err = inventory.NewService(inventory.ServiceParams{
		Repo: inventory.NewRepository(app.DB.DB()),
		Tx:   app.DB,
	})
	if err != nil {
		return err
	}
	app.Profiles, err = profiles.NewService(profiles.NewRepository(app.DB.DB()))
	if err != nil {
		return err
	}
	app.Automation, err = automation.NewService(automation.ServiceParams{
		Jobs:              app.Jobs,
		Stats:             app.Inventory,
		Logger:            logg,
		DefaultSourcePath: cfg.JobService.SourcePath,
	})
	if err != nil {
		return err
	}
	app.Webhooks, err = jobservicewebhook.NewService(jobservicewebhook.ServiceParams{
		Repo:        jobservicewebhook.NewRepository(app.DB.DB()),
		Jobs:        app.Jobs,
		Ledger:      app.Inventory,
		Logger:      logg,
		Metrics:     metrics.NewWebhookMetrics(app.Registry),
		MaxAttempts: cfg.JobService.MaxDispatchAttempts,
	})
	if err != nil {
		return err
	}
	if cfg.JobService.WebhookSecret == "" {
		logg.Warn(ctx, "webhook secret not configured; job service webhooks are accepted unsigned")
	}

	if app.Alerts, err = app.buildAlerts(ctx); err != nil {
		return err
	}
	if app.Scheduler, err = app.buildScheduler(); err != nil {
		return err
	}
	return nil
}

func (app *App) buildAlerts(ctx context.Context) (alerts.Sink, error) {
	cfg := app.Config.Alerts
	sinks := []alerts.Sink{alerts.NewLogSink(app.Logger)}

	if cfg.TelegramEnabled() {
		tg, err := alerts.NewTelegramSink(cfg.TelegramBotToken, cfg.TelegramChatID)
		if err != nil {
			return nil, fmt.Errorf("telegram sink: %w", err)
		}
		sinks = append(sinks, tg)
	}

	if cfg.PubSubEnabled() {
		client, err := pubsub.NewClient(ctx, cfg, app.Logger)
		if err != nil {
			return nil, fmt.Errorf("bootstrap pubsub: %w", err)
		}
		app.PubSub = client
		sink, err := alerts.NewPubSubSink(client.AlertPublisher())
		if err != nil {
			return nil, fmt.Errorf("pubsub sink: %w", err)
		}
		sinks = append(sinks, sink)
	}

	return alerts.NewFanout(sinks...), nil
}

func (app *App) buildScheduler() (*cron.Scheduler, error) {
	cfg := app.Config.Automation

	stockMonitor, err := cron.NewStockMonitorJob(cron.StockMonitorJobParams{
		Logger:     app.Logger,
		Ledger:     app.Inventory,
		Profiles:   app.Profiles,
		Automation: app.Automation,
		Alerts:     app.Alerts,
		Threshold:  cfg.StockThreshold,
		Baseline:   cfg.RestockBaseline,
	})
	if err != nil {
		return nil, fmt.Errorf("stock monitor job: %w", err)
	}
	drain, err := cron.NewWebhookDrainJob(cron.WebhookDrainJobParams{
		Logger:    app.Logger,
		Webhooks:  app.Webhooks,
		BatchSize: cfg.DrainBatchSize,
	})
	if err != nil {
		return nil, fmt.Errorf("webhook drain job: %w", err)
	}
	sweep, err := cron.NewValidationSweepJob(cron.ValidationSweepJobParams{
		Logger:     app.Logger,
		Ledger:     app.Inventory,
		Profiles:   app.Profiles,
		Automation: app.Automation,
	})
	if err != nil {
		return nil, fmt.Errorf("validation sweep job: %w", err)
	}

	registry := cron.NewRegistry(
		cron.Task{Job: stockMonitor, Interval: cfg.StockInterval},
		cron.Task{Job: drain, Interval: cfg.DrainInterval},
		cron.Task{Job: sweep, Interval: cfg.ValidationInterval},
	)

	params := cron.SchedulerParams{
		Logger:   app.Logger,
		Registry: registry,
		Metrics:  metrics.NewTaskMetrics(app.Registry),
		Alerts:   app.Alerts,
	}
	if app.Redis != nil {
		params.Locks = cron.RedisLockFactory(app.Redis, cfg.LockTTL)
	}
	return cron.NewScheduler(params)
}

// Close releases every connection Build opened.
func (app *App) Close() error {
	var err error
	if app.PubSub != nil {
		err = multierr.Append(err, app.PubSub.Close())
	}
	if app.Redis != nil {
		err = multierr.Append(err, app.Redis.Close())
	}
	if app.DB != nil {
		err = multierr.Append(err, app.DB.Close())
	}
	return err
}
