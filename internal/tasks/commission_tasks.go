package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"kainan_app_echo/internal/models"
	"kainan_app_echo/internal/services"
)

// WeeklyCommissionTaskDef rolls up cash-channel commission into payable
// invoices, once per restaurant per settlement week
type WeeklyCommissionTaskDef struct{}

// TaskID returns the unique identifier for this task
func (t *WeeklyCommissionTaskDef) TaskID() string {
	return "weekly_commission_rollup"
}

// HandleExecution runs the rollup for one settlement week. The week defaults
// to the current one; a "week_ending" RFC3339 argument targets a past week
// (for backfill or replay).
func (t *WeeklyCommissionTaskDef) HandleExecution(ctx context.Context, db *gorm.DB, task models.ScheduledTask) (map[string]interface{}, error) {
	weekEnding := services.WeekEnding(time.Now())
	if raw, ok := task.Arguments["week_ending"].(string); ok && raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, fmt.Errorf("invalid week_ending argument %q: %w", raw, err)
		}
		weekEnding = parsed
	}

	ledger := services.NewTransactionLedger(db)
	commission := services.NewCommissionService(db, ledger, services.NewXenditService(), services.NewEmailService())

	result, err := commission.AggregateWeek(ctx, weekEnding)
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"status":      "success",
		"week_ending": weekEnding.Format(time.RFC3339),
		"invoiced":    result.Invoiced,
		"skipped":     result.Skipped,
		"failed":      result.Failed,
	}, nil
}

// WeeklyCommissionTask is the singleton instance of WeeklyCommissionTaskDef
var WeeklyCommissionTask = &WeeklyCommissionTaskDef{}

// weeklyCommissionRule fires every Saturday; the worker tick granularity puts
// the actual run shortly after the 20:00 Manila settlement cutoff.
const weeklyCommissionRule = "FREQ=WEEKLY;BYDAY=SA"

// SeedWeeklyCommissionTask ensures the recurring rollup task exists. Safe to
// call on every worker start.
func SeedWeeklyCommissionTask(db *gorm.DB) error {
	var existing models.ScheduledTask
	err := db.Where("task_name = ? AND status IN ?", WeeklyCommissionTask.TaskID(),
		[]models.ScheduledTaskStatus{models.ScheduledTaskStatusActive, models.ScheduledTaskStatusFailure}).
		First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	rule := weeklyCommissionRule
	task, err := BuildScheduledTask(
		WeeklyCommissionTask.TaskID(),
		map[string]interface{}{},
		services.WeekEnding(time.Now()),
		&rule,
		models.ScheduledTaskTypeRecurring,
		3,
	)
	if err != nil {
		return err
	}
	return db.Create(task).Error
}
