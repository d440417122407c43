package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/stockroom/internal/alerts"
	"github.com/angelmondragon/stockroom/internal/automation"
	"github.com/angelmondragon/stockroom/internal/inventory"
	"github.com/angelmondragon/stockroom/internal/profiles"
	"github.com/angelmondragon/stockroom/pkg/logger"
)

const StockMonitorTask = "stock-monitor"

type lowStockReader interface {
	GetLowStockProducts(ctx context.Context, threshold int) ([]inventory.LowStockProduct, error)
}

type profileReader interface {
	ForProducts(ctx context.Context, productIDs []string) (map[string]profiles.Profile, error)
	ListActive(ctx context.Context) ([]profiles.Profile, error)
}

type collectionLauncher interface {
	RequestInventory(ctx context.Context, input automation.CollectionInput) (automation.JobLaunch, error)
}

type StockMonitorJobParams struct {
	Logger     *logger.Logger
	Ledger     lowStockReader
	Profiles   profileReader
	Automation collectionLauncher
	Alerts     alerts.Sink
	Threshold  int
	Baseline   int
}

func NewStockMonitorJob(params StockMonitorJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger required")
	}
	if params.Profiles == nil {
		return nil, fmt.Errorf("profiles required")
	}
	if params.Automation == nil {
		return nil, fmt.Errorf("automation service required")
	}
	if params.Alerts == nil {
		return nil, fmt.Errorf("alert sink required")
	}
	if params.Threshold <= 0 {
		return nil, fmt.Errorf("threshold must be positive")
	}
	return &stockMonitorJob{
		logg:       params.Logger,
		ledger:     params.Ledger,
		profiles:   params.Profiles,
		automation: params.Automation,
		alerts:     params.Alerts,
		threshold:  params.Threshold,
		baseline:   params.Baseline,
		now:        time.Now,
	}, nil
}

type stockMonitorJob struct {
	logg       *logger.Logger
	ledger     lowStockReader
	profiles   profileReader
	automation collectionLauncher
	alerts     alerts.Sink
	threshold  int
	baseline   int
	now        func() time.Time
}

func (j *stockMonitorJob) Name() string { return StockMonitorTask }

// Run alerts on products under threshold and launches a collection job for
// each one with a collection profile. A failing product does not stop the
// others; all failures are returned together.
func (j *stockMonitorJob) Run(ctx context.Context) error {
	low, err := j.ledger.GetLowStockProducts(ctx, j.threshold)
	if err != nil {
		return fmt.Errorf("low stock lookup: %w", err)
	}
	if len(low) == 0 {
		j.logg.Info(ctx, "stock levels healthy")
		return nil
	}

	var errs error
	if err := j.alerts.Send(ctx, alerts.LowStock(low, j.threshold, j.now().UTC())); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("low stock alert: %w", err))
	}

	ids := make([]string, 0, len(low))
	for _, p := range low {
		ids = append(ids, p.ProductID)
	}
	byProduct, err := j.profiles.ForProducts(ctx, ids)
	if err != nil {
		return multierr.Append(errs, fmt.Errorf("load profiles: %w", err))
	}

	outcomes := make([]alerts.RestockOutcome, 0, len(low))
	for _, p := range low {
		profile, ok := byProduct[p.ProductID]
		if !ok || !profile.CanCollect() {
			outcomes = append(outcomes, alerts.RestockOutcome{ProductID: p.ProductID, Skipped: "no collection profile"})
			continue
		}

		baseline := j.baseline
		if profile.RestockBaseline > 0 {
			baseline = profile.RestockBaseline
		}
		target := automation.RestockTarget(j.threshold, p.AvailableItems, baseline)

		launch, err := j.automation.RequestInventory(ctx, automation.CollectionInput{
			ProductID:   p.ProductID,
			ConfigID:    profile.CollectionConfigID,
			SourcePath:  profile.SourcePath,
			TargetCount: target,
		})
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("restock %s: %w", p.ProductID, err))
			outcomes = append(outcomes, alerts.RestockOutcome{ProductID: p.ProductID, TargetCount: target, Error: err.Error()})
			continue
		}
		outcomes = append(outcomes, alerts.RestockOutcome{ProductID: p.ProductID, JobID: launch.JobID, TargetCount: target})
	}

	if err := j.alerts.Send(ctx, alerts.RestockStarted(outcomes, j.now().UTC())); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("restock alert: %w", err))
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"low_products": len(low),
		"threshold":    j.threshold,
	}), "stock monitor complete")
	return errs
}
