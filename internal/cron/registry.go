package cron

import (
	"context"
	"time"
)

// Job is a unit of periodic work.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Task binds a job to its own interval.
type Task struct {
	Job      Job
	Interval time.Duration
}

// Registry tracks the tasks a scheduler will run.
type Registry struct {
	tasks []Task
}

// NewRegistry builds a registry preloaded with the provided tasks.
func NewRegistry(tasks ...Task) *Registry {
	registry := &Registry{}
	for _, task := range tasks {
		registry.Register(task)
	}
	return registry
}

// Register adds a task. Tasks without a job or a positive interval are ignored.
func (r *Registry) Register(task Task) {
	if task.Job == nil || task.Interval <= 0 {
		return
	}
	r.tasks = append(r.tasks, task)
}

// Tasks returns the registered tasks in the order they were added.
func (r *Registry) Tasks() []Task {
	tasks := make([]Task, len(r.tasks))
	copy(tasks, r.tasks)
	return tasks
}
