package cron

import (
	"context"
	"fmt"

	"go.uber.org/multierr"

	"github.com/angelmondragon/stockroom/internal/automation"
	"github.com/angelmondragon/stockroom/pkg/db/models"
	"github.com/angelmondragon/stockroom/pkg/logger"
)

const ValidationSweepTask = "validation-sweep"

type statsReader interface {
	GetStats(ctx context.Context, productID string) (models.InventoryStats, error)
}

type validationLauncher interface {
	ValidateItems(ctx context.Context, input automation.ValidationInput) (automation.JobLaunch, error)
}

type ValidationSweepJobParams struct {
	Logger     *logger.Logger
	Ledger     statsReader
	Profiles   profileReader
	Automation validationLauncher
}

func NewValidationSweepJob(params ValidationSweepJobParams) (Job, error) {
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
	return &validationSweepJob{
		logg:       params.Logger,
		ledger:     params.Ledger,
		profiles:   params.Profiles,
		automation: params.Automation,
	}, nil
}

type validationSweepJob struct {
	logg       *logger.Logger
	ledger     statsReader
	profiles   profileReader
	automation validationLauncher
}

func (j *validationSweepJob) Name() string { return ValidationSweepTask }

func (j *validationSweepJob) Run(ctx context.Context) error {
	active, err := j.profiles.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list profiles: %w", err)
	}

	var errs error
	launched := 0
	for _, profile := range active {
		if !profile.CanValidate() {
			continue
		}
		productCtx := j.logg.WithProductID(ctx, profile.ProductID)
		stats, err := j.ledger.GetStats(productCtx, profile.ProductID)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("stats %s: %w", profile.ProductID, err))
			continue
		}
		if stats.UncheckedItems == 0 {
			continue
		}
		launch, err := j.automation.ValidateItems(productCtx, automation.ValidationInput{
			ProductID:  profile.ProductID,
			ConfigID:   profile.ValidationConfigID,
			SourcePath: profile.SourcePath,
		})
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("validate %s: %w", profile.ProductID, err))
			continue
		}
		if launch.Launched {
			launched++
		}
	}

	j.logg.Info(j.logg.WithField(ctx, "launched", launched), "validation sweep complete")
	return errs
}
