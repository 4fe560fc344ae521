package loadtest

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// ErrInvalidConfig is wrapped by every validation failure
var ErrInvalidConfig = errors.New("invalid load test config")

const (
	// Run status values
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusStopped   = "stopped"
	StatusFailed    = "failed"

	// DefaultRequestTimeout applies when Config.RequestTimeout is zero
	DefaultRequestTimeout = 30 * time.Second

	maxUsers = 10000
)

// Config represents a load test configuration
type Config struct {
	Name           string
	Host           string
	Preset         string
	Users          int
	SpawnRate      float64       // Users started per second
	RunTime        time.Duration // Zero runs until stopped
	RequestTimeout time.Duration
}

// Run represents a load test run record
type Run struct {
	ID            int64
	Name          string
	Host          string
	Preset        string
	Users         int
	SpawnRate     float64
	RunTimeSec    int
	StartedAt     time.Time
	CompletedAt   *time.Time
	Status        string
	TotalRequests int
	TotalFailures int
	AvgResponseMs float64
	MinResponseMs int64
	MaxResponseMs int64
	P50ResponseMs int64
	P95ResponseMs int64
	P99ResponseMs int64
	CurrentRPS    float64
}

// Metric represents a single request metric in a load test run
type Metric struct {
	ID           int64
	RunID        int64
	Timestamp    time.Time
	ElapsedMs    int64
	Method       string
	Name         string
	StatusCode   int
	ResponseMs   int64
	ResponseSize int64
	Failure      string
}

// EndpointSummary aggregates persisted metrics for one (method, name) pair
type EndpointSummary struct {
	Method        string
	Name          string
	Requests      int
	Failures      int
	AvgResponseMs float64
	MaxResponseMs int64
}

// Validate validates the load test configuration
func (c *Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("%w: host is required", ErrInvalidConfig)
	}
	u, err := url.Parse(c.Host)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: host must be an http(s) URL, got %q", ErrInvalidConfig, c.Host)
	}
	if c.Users <= 0 {
		return fmt.Errorf("%w: users must be greater than 0", ErrInvalidConfig)
	}
	if c.Users > maxUsers {
		return fmt.Errorf("%w: users cannot exceed %d", ErrInvalidConfig, maxUsers)
	}
	if c.SpawnRate <= 0 {
		return fmt.Errorf("%w: spawn rate must be greater than 0", ErrInvalidConfig)
	}
	if c.RunTime < 0 {
		return fmt.Errorf("%w: run time cannot be negative", ErrInvalidConfig)
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("%w: request timeout cannot be negative", ErrInvalidConfig)
	}
	return nil
}

// GetRequestTimeout returns the per-request timeout, defaulting to 30s
func (c *Config) GetRequestTimeout() time.Duration {
	if c.RequestTimeout == 0 {
		return DefaultRequestTimeout
	}
	return c.RequestTimeout
}

// IsRunning returns true if the run is currently in progress
func (r *Run) IsRunning() bool {
	return r.Status == StatusRunning
}

// IsCompleted returns true if the run has finished
func (r *Run) IsCompleted() bool {
	return r.Status == StatusCompleted || r.Status == StatusStopped || r.Status == StatusFailed
}

// FailRatio returns failures over requests, or 0 when nothing was sent
func (r *Run) FailRatio() float64 {
	if r.TotalRequests == 0 {
		return 0
	}
	return float64(r.TotalFailures) / float64(r.TotalRequests)
}
