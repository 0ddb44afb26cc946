package tasks

// DefineTasks registers all available tasks
func DefineTasks() {
	// Register general tasks
	RegisterHandler(LogInfoTask.TaskID(), LogInfoTask.HandleExecution)

	// Register settlement tasks
	RegisterHandler(WeeklyCommissionTask.TaskID(), WeeklyCommissionTask.HandleExecution)
}
