package bootstrap

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/stockroom/internal/cron"
	"github.com/angelmondragon/stockroom/pkg/config"
	"github.com/angelmondragon/stockroom/pkg/logger"
)

func sqliteConfig(t *testing.T) *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "dev"},
		DB: config.DBConfig{
			Driver:     config.DBDriverSQLite,
			SQLitePath: filepath.Join(t.TempDir(), "stockroom.db"),
		},
		JWT:        config.JWTConfig{Secret: "s", Issuer: "i", ExpirationMinutes: 5},
		JobService: config.JobServiceConfig{BaseURL: "http://127.0.0.1:1", Timeout: time.Second},
		Automation: config.AutomationConfig{
			StockThreshold:     10,
			StockInterval:      time.Hour,
			RestockBaseline:    100,
			DrainInterval:      time.Minute,
			DrainBatchSize:     50,
			ValidationInterval: 24 * time.Hour,
		},
	}
}

func TestBuildWiresSchedulerOverSQLite(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "test", Output: &bytes.Buffer{}})
	app, err := Build(context.Background(), sqliteConfig(t), logg)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, app.Close()) })

	require.Nil(t, app.Redis)
	require.Nil(t, app.PubSub)

	report := app.Scheduler.Status()
	names := make([]string, 0, len(report.Tasks))
	for _, task := range report.Tasks {
		names = append(names, task.Name)
	}
	require.ElementsMatch(t, []string{cron.StockMonitorTask, cron.WebhookDrainTask, cron.ValidationSweepTask}, names)

	ran, err := app.Scheduler.RunNow(context.Background(), cron.WebhookDrainTask)
	require.NoError(t, err)
	require.True(t, ran)

	families, err := app.Registry.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, families)
}
