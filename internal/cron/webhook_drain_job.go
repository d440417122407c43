package cron

import (
	"context"
	"fmt"

	jobservicewebhook "github.com/angelmondragon/stockroom/internal/webhooks/jobservice"
	"github.com/angelmondragon/stockroom/pkg/logger"
)

const (
	WebhookDrainTask      = "webhook-drain"
	defaultDrainBatchSize = 100
)

type webhookDrainer interface {
	DrainUnprocessed(ctx context.Context, limit int) (jobservicewebhook.DrainSummary, error)
}

type WebhookDrainJobParams struct {
	Logger    *logger.Logger
	Webhooks  webhookDrainer
	BatchSize int
}

func NewWebhookDrainJob(params WebhookDrainJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Webhooks == nil {
		return nil, fmt.Errorf("webhook service required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultDrainBatchSize
	}
	return &webhookDrainJob{logg: params.Logger, webhooks: params.Webhooks, batch: batch}, nil
}

type webhookDrainJob struct {
	logg     *logger.Logger
	webhooks webhookDrainer
	batch    int
}

func (j *webhookDrainJob) Name() string { return WebhookDrainTask }

func (j *webhookDrainJob) Run(ctx context.Context) error {
	summary, err := j.webhooks.DrainUnprocessed(ctx, j.batch)
	if err != nil {
		return fmt.Errorf("webhook drain: %w", err)
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"scanned":   summary.Scanned,
		"processed": summary.Processed,
		"failed":    summary.Failed,
		"deferred":  summary.Deferred,
	}), "webhook drain complete")
	return nil
}
