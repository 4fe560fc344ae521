package loadtest

import (
	"context"
	"math/rand/v2"
	"time"
)

// Task is one weighted action of a simulated user
type Task struct {
	Name   string
	Weight int
	Fn     func(ctx context.Context)
}

// User is a simulated user. Implementations own their state exclusively;
// the runner never calls one user from two goroutines.
type User interface {
	Tasks() []Task
}

// Starter is implemented by users with a start hook
type Starter interface {
	OnStart(ctx context.Context)
}

// Stopper is implemented by users with a stop hook
type Stopper interface {
	OnStop(ctx context.Context)
}

// WaitTimeFunc returns the pause before the next task
type WaitTimeFunc func() time.Duration

// UserClass describes a population of simulated users
type UserClass struct {
	Name     string
	Weight   int
	WaitTime WaitTimeFunc
	New      func(env *Environment) User
}

// Between returns a wait time drawn uniformly from [min, max]
func Between(min, max time.Duration) WaitTimeFunc {
	if max < min {
		min, max = max, min
	}
	return func() time.Duration {
		if max == min {
			return min
		}
		return min + rand.N(max-min+1)
	}
}

// Constant returns the same wait time every cycle
func Constant(d time.Duration) WaitTimeFunc {
	return func() time.Duration {
		return d
	}
}

// taskPicker makes a discrete weighted choice over a fixed task list
type taskPicker struct {
	tasks      []Task
	cumulative []int
	total      int
	intN       func(n int) int
}

func newTaskPicker(tasks []Task, intN func(n int) int) *taskPicker {
	if intN == nil {
		intN = rand.IntN
	}
	p := &taskPicker{intN: intN}
	for _, task := range tasks {
		if task.Weight <= 0 || task.Fn == nil {
			continue
		}
		p.total += task.Weight
		p.tasks = append(p.tasks, task)
		p.cumulative = append(p.cumulative, p.total)
	}
	return p
}

// empty reports whether there is nothing to pick
func (p *taskPicker) empty() bool {
	return p.total == 0
}

// pick returns a task with probability weight/total
func (p *taskPicker) pick() Task {
	n := p.intN(p.total)
	for i, bound := range p.cumulative {
		if n < bound {
			return p.tasks[i]
		}
	}
	return p.tasks[len(p.tasks)-1]
}

// sleep waits for d or until ctx is done. Returns false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// Sleep is the exported form of the cancellable pause, for tasks that pause
// between calls inside one action
func Sleep(ctx context.Context, d time.Duration) bool {
	return sleep(ctx, d)
}
