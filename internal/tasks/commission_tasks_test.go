package tasks

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"kainan_app_echo/internal/models"
	"kainan_app_echo/internal/services"
)

func setupTaskDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := services.AutoMigrate(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

func TestSeedWeeklyCommissionTask(t *testing.T) {
	db := setupTaskDB(t)

	if err := SeedWeeklyCommissionTask(db); err != nil {
		t.Fatalf("SeedWeeklyCommissionTask failed: %v", err)
	}
	// Seeding again must not duplicate the task
	if err := SeedWeeklyCommissionTask(db); err != nil {
		t.Fatalf("second SeedWeeklyCommissionTask failed: %v", err)
	}

	var seeded []models.ScheduledTask
	if err := db.Where("task_name = ?", WeeklyCommissionTask.TaskID()).Find(&seeded).Error; err != nil {
		t.Fatalf("failed to fetch seeded tasks: %v", err)
	}
	if len(seeded) != 1 {
		t.Fatalf("seeded task count = %d; want 1", len(seeded))
	}

	task := seeded[0]
	if task.TaskType != models.ScheduledTaskTypeRecurring {
		t.Errorf("task type = %s; want recurring", task.TaskType)
	}
	if task.RecurringInterval == nil || *task.RecurringInterval != weeklyCommissionRule {
		t.Errorf("recurring interval = %v; want %q", task.RecurringInterval, weeklyCommissionRule)
	}
	if task.Status != models.ScheduledTaskStatusActive {
		t.Errorf("status = %s; want active", task.Status)
	}
}

func TestWeeklyCommissionTaskRejectsBadWeekEnding(t *testing.T) {
	db := setupTaskDB(t)

	task := models.ScheduledTask{
		TaskName:  WeeklyCommissionTask.TaskID(),
		Arguments: map[string]interface{}{"week_ending": "not-a-date"},
	}
	_, err := WeeklyCommissionTask.HandleExecution(context.Background(), db, task)
	if err == nil {
		t.Error("HandleExecution accepted an unparseable week_ending")
	}
}

func TestRegistry(t *testing.T) {
	registry := &Registry{handlers: make(map[string]TaskHandler)}

	if _, ok := registry.Get("missing"); ok {
		t.Error("Get returned a handler for an unregistered name")
	}

	registry.Register("noop", func(ctx context.Context, db *gorm.DB, task models.ScheduledTask) (map[string]interface{}, error) {
		return map[string]interface{}{"status": "success"}, nil
	})

	handler, ok := registry.Get("noop")
	if !ok {
		t.Fatal("registered handler not found")
	}
	result, err := handler(context.Background(), nil, models.ScheduledTask{})
	if err != nil || result["status"] != "success" {
		t.Errorf("handler = %v, %v; want success", result, err)
	}
}
