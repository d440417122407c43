package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/stockroom/api/responses"
	"github.com/angelmondragon/stockroom/internal/cron"
	pkgerrors "github.com/angelmondragon/stockroom/pkg/errors"
	"github.com/angelmondragon/stockroom/pkg/logger"
)

// Scheduler is the lifecycle surface of the automation scheduler.
type Scheduler interface {
	Start(ctx context.Context) bool
	Stop() bool
	Status() cron.Report
	RunNow(ctx context.Context, name string) (bool, error)
}

// AutomationStart starts the scheduler bound to base, the process lifetime
// context. Starting twice is reported, not an error.
func AutomationStart(sched Scheduler, base context.Context, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		started := sched.Start(base)
		if logg != nil {
			ctx := logg.WithField(r.Context(), "started", started)
			logg.Info(ctx, "automation.start requested")
		}
		responses.WriteSuccess(w, map[string]any{"started": started, "status": sched.Status()})
	}
}

// AutomationStop halts future ticks. In-flight runs finish on their own.
func AutomationStop(sched Scheduler, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stopped := sched.Stop()
		if logg != nil {
			ctx := logg.WithField(r.Context(), "stopped", stopped)
			logg.Info(ctx, "automation.stop requested")
		}
		responses.WriteSuccess(w, map[string]any{"stopped": stopped, "status": sched.Status()})
	}
}

func AutomationStatus(sched Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, sched.Status())
	}
}

// AutomationRunTask runs one task to completion outside its ticker. The run
// is bound to base so a client disconnect does not abort it.
func AutomationRunTask(sched Scheduler, base context.Context, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimSpace(chi.URLParam(r, "task"))
		ran, err := sched.RunNow(base, name)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "unknown task").
				WithDetails(map[string]any{"task": name}))
			return
		}
		responses.WriteSuccess(w, map[string]any{"task": name, "ran": ran})
	}
}
