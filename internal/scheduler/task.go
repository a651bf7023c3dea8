package scheduler

import "context"

// Task is a scheduler-managed running instance of a service. Tasks are
// supplied by the surrounding system and treated as read-only input here.
type Task struct {
	ID    string `json:"id" yaml:"id"`
	Host  string `json:"host" yaml:"host"`
	Ports []int  `json:"ports" yaml:"ports"`
}

// TaskProvider supplies the current set of tasks for correlation.
type TaskProvider interface {
	Tasks(ctx context.Context) ([]Task, error)
}

// StaticProvider returns a fixed task list. Useful for tests and for
// embedding when the caller already holds the tasks.
type StaticProvider []Task

func (p StaticProvider) Tasks(ctx context.Context) ([]Task, error) {
	return p, nil
}
