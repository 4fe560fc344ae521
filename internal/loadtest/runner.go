package loadtest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const metricsBufferSize = 100

// errRunTimeElapsed is the cancellation cause of a run that reached its run time
var errRunTimeElapsed = errors.New("run time elapsed")

// Runner spawns simulated users and drives their task loops until the run ends
type Runner struct {
	env     *Environment
	config  *Config
	classes []*UserClass
	manager *Manager // nil disables persistence
	run     *Run

	ctx        context.Context
	cancelFunc context.CancelFunc
	group      *errgroup.Group
	testStart  time.Time
	stopped    atomic.Bool

	startOnce sync.Once
	waitOnce  sync.Once
	waitErr   error

	metricsMu     sync.RWMutex
	metricsClosed bool
	metricsCh     chan *Metric
	collectorDone chan struct{}
	metricsBuf    []*Metric

	activeUsers  atomic.Int32
	spawnedUsers atomic.Int32
}

// NewRunner validates the configuration and creates the run record
func NewRunner(env *Environment, config *Config, classes []*UserClass, manager *Manager) (*Runner, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	usable := make([]*UserClass, 0, len(classes))
	for _, class := range classes {
		if class != nil && class.New != nil && class.Weight > 0 {
			usable = append(usable, class)
		}
	}
	if len(usable) == 0 {
		return nil, fmt.Errorf("%w: at least one user class with a positive weight is required", ErrInvalidConfig)
	}

	run := &Run{
		Name:       config.Name,
		Host:       config.Host,
		Preset:     config.Preset,
		Users:      config.Users,
		SpawnRate:  config.SpawnRate,
		RunTimeSec: int(config.RunTime / time.Second),
		StartedAt:  time.Now(),
		Status:     StatusRunning,
	}
	if manager != nil {
		if err := manager.CreateRun(run); err != nil {
			return nil, fmt.Errorf("failed to create run record: %w", err)
		}
	}

	r := &Runner{
		env:           env,
		config:        config,
		classes:       usable,
		manager:       manager,
		run:           run,
		metricsCh:     make(chan *Metric, metricsBufferSize*2),
		collectorDone: make(chan struct{}),
		metricsBuf:    make([]*Metric, 0, metricsBufferSize),
	}
	if manager != nil {
		env.Events.OnRequest(r.enqueueMetric)
	}
	return r, nil
}

// Start begins spawning users. It returns immediately.
func (r *Runner) Start(parent context.Context) {
	r.startOnce.Do(func() {
		if r.config.RunTime > 0 {
			r.ctx, r.cancelFunc = context.WithTimeoutCause(parent, r.config.RunTime, errRunTimeElapsed)
		} else {
			r.ctx, r.cancelFunc = context.WithCancel(parent)
		}
		r.testStart = time.Now()
		r.run.StartedAt = r.testStart

		r.env.Events.fireTestStart(r.env)
		go r.collectMetrics()

		g, gctx := errgroup.WithContext(r.ctx)
		r.group = g
		g.Go(func() error {
			r.spawnUsers(gctx, g)
			return nil
		})
	})
}

// Run starts the test and blocks until it ends
func (r *Runner) Run(ctx context.Context) error {
	r.Start(ctx)
	return r.Wait()
}

// Stop cancels the run and waits for every user to finish
func (r *Runner) Stop() error {
	r.stopped.Store(true)
	if r.cancelFunc != nil {
		r.cancelFunc()
	}
	return r.Wait()
}

// Wait blocks until the run ends, finalizes the run record and fires the stop listeners
func (r *Runner) Wait() error {
	r.waitOnce.Do(func() {
		if r.group == nil {
			r.waitErr = errors.New("runner was not started")
			return
		}

		r.waitErr = r.group.Wait()
		r.closeMetrics()
		<-r.collectorDone

		status := StatusStopped
		if !r.stopped.Load() && errors.Is(context.Cause(r.ctx), errRunTimeElapsed) {
			status = StatusCompleted
		}
		if r.waitErr != nil {
			status = StatusFailed
		}
		r.cancelFunc()

		r.finalize(status)
		r.env.Events.fireTestStop(r.env)
	})
	return r.waitErr
}

// GetRun returns the run record
func (r *Runner) GetRun() *Run {
	return r.run
}

// Environment returns the environment users run against
func (r *Runner) Environment() *Environment {
	return r.env
}

// ActiveUsers returns the number of users currently running
func (r *Runner) ActiveUsers() int {
	return int(r.activeUsers.Load())
}

// SpawnedUsers returns the number of users started so far
func (r *Runner) SpawnedUsers() int {
	return int(r.spawnedUsers.Load())
}

// spawnUsers starts users at the configured spawn rate
func (r *Runner) spawnUsers(ctx context.Context, g *errgroup.Group) {
	counts := allocateUsers(r.classes, r.config.Users)
	order := spawnOrder(r.classes, counts)
	limiter := rate.NewLimiter(rate.Limit(r.config.SpawnRate), 1)

	for i, class := range order {
		if err := limiter.Wait(ctx); err != nil {
			r.env.Logger.Info("spawning interrupted",
				zap.Int("spawned", i), zap.Int("requested", len(order)))
			return
		}
		id := i + 1
		r.spawnedUsers.Add(1)
		g.Go(func() error {
			r.runUser(ctx, class, id)
			return nil
		})
	}
	r.env.Logger.Info("all users spawned", zap.Int("users", len(order)))
}

// runUser drives one simulated user: start hook, then pick, wait, run until ctx ends
func (r *Runner) runUser(ctx context.Context, class *UserClass, id int) {
	user := class.New(r.env)
	r.activeUsers.Add(1)
	defer r.activeUsers.Add(-1)

	if s, ok := user.(Starter); ok {
		s.OnStart(ctx)
	}
	defer func() {
		if s, ok := user.(Stopper); ok {
			s.OnStop(context.WithoutCancel(ctx))
		}
	}()

	picker := newTaskPicker(user.Tasks(), nil)
	if picker.empty() {
		r.env.Logger.Warn("user class has no runnable tasks", zap.String("class", class.Name), zap.Int("user", id))
		<-ctx.Done()
		return
	}

	wait := class.WaitTime
	if wait == nil {
		wait = Constant(0)
	}

	for {
		task := picker.pick()
		if !sleep(ctx, wait()) {
			return
		}
		task.Fn(ctx)
		if ctx.Err() != nil {
			return
		}
	}
}

// enqueueMetric turns a reported request into a buffered metric row
func (r *Runner) enqueueMetric(ev RequestEvent) {
	metric := &Metric{
		RunID:        r.run.ID,
		Timestamp:    ev.Timestamp,
		ElapsedMs:    ev.Timestamp.Sub(r.testStart).Milliseconds(),
		Method:       ev.Method,
		Name:         ev.Name,
		StatusCode:   ev.StatusCode,
		ResponseMs:   ev.ResponseTime.Milliseconds(),
		ResponseSize: ev.ResponseLength,
	}
	if ev.Err != nil {
		metric.Failure = ev.Err.Error()
	}

	r.metricsMu.RLock()
	defer r.metricsMu.RUnlock()
	if r.metricsClosed {
		return
	}
	r.metricsCh <- metric
}

// closeMetrics safely closes the metrics channel (only once)
func (r *Runner) closeMetrics() {
	r.metricsMu.Lock()
	defer r.metricsMu.Unlock()
	if !r.metricsClosed {
		r.metricsClosed = true
		close(r.metricsCh)
	}
}

// collectMetrics buffers metrics and writes them in batches
func (r *Runner) collectMetrics() {
	defer close(r.collectorDone)
	for metric := range r.metricsCh {
		r.metricsBuf = append(r.metricsBuf, metric)
		if len(r.metricsBuf) >= metricsBufferSize {
			r.flushMetrics()
		}
	}
	r.flushMetrics()
}

// flushMetrics writes buffered metrics to the database
func (r *Runner) flushMetrics() {
	if len(r.metricsBuf) == 0 || r.manager == nil {
		r.metricsBuf = r.metricsBuf[:0]
		return
	}

	if err := r.manager.SaveMetricsBatch(r.metricsBuf); err != nil {
		// Log error but don't stop execution
		r.env.Logger.Error("failed to save metrics", zap.Int("count", len(r.metricsBuf)), zap.Error(err))
	}
	r.metricsBuf = r.metricsBuf[:0]
}

// finalize completes the run record with final statistics
func (r *Runner) finalize(status string) {
	total := r.env.Stats.Total()
	now := time.Now()

	r.run.CompletedAt = &now
	r.run.Status = status
	r.run.TotalRequests = total.NumRequests
	r.run.TotalFailures = total.NumFailures
	r.run.AvgResponseMs = total.AvgResponseMs()
	r.run.MinResponseMs = total.Min()
	r.run.MaxResponseMs = total.Max()
	r.run.P50ResponseMs = total.P50()
	r.run.P95ResponseMs = total.P95()
	r.run.P99ResponseMs = total.P99()
	r.run.CurrentRPS = total.CurrentRPS(now)

	if r.manager == nil {
		return
	}
	if err := r.manager.UpdateRun(r.run); err != nil {
		r.env.Logger.Error("failed to update run record", zap.Int64("run", r.run.ID), zap.Error(err))
	}
}

// allocateUsers splits n users across classes in proportion to their weights
// using largest remainder. When n allows it, every class gets at least one user.
func allocateUsers(classes []*UserClass, n int) []int {
	counts := make([]int, len(classes))
	totalWeight, eligible := 0, 0
	for _, class := range classes {
		if class.Weight > 0 {
			totalWeight += class.Weight
			eligible++
		}
	}
	if totalWeight == 0 || n <= 0 {
		return counts
	}

	type remainder struct {
		idx  int
		frac float64
	}
	var rems []remainder
	assigned := 0
	for i, class := range classes {
		if class.Weight <= 0 {
			continue
		}
		exact := float64(n) * float64(class.Weight) / float64(totalWeight)
		counts[i] = int(exact)
		assigned += counts[i]
		rems = append(rems, remainder{idx: i, frac: exact - float64(counts[i])})
	}
	sort.SliceStable(rems, func(a, b int) bool {
		return rems[a].frac > rems[b].frac
	})
	for k := 0; assigned < n; k++ {
		counts[rems[k%len(rems)].idx]++
		assigned++
	}

	if n >= eligible {
		for i, class := range classes {
			if class.Weight <= 0 || counts[i] > 0 {
				continue
			}
			donor := 0
			for j := range counts {
				if counts[j] > counts[donor] {
					donor = j
				}
			}
			counts[donor]--
			counts[i]++
		}
	}
	return counts
}

// spawnOrder interleaves classes so a partial spawn keeps the population mix
func spawnOrder(classes []*UserClass, counts []int) []*UserClass {
	remaining := append([]int(nil), counts...)
	var order []*UserClass
	for {
		added := false
		for i, class := range classes {
			if remaining[i] > 0 {
				order = append(order, class)
				remaining[i]--
				added = true
			}
		}
		if !added {
			return order
		}
	}
}
