package loadtest

import (
	"time"

	"go.uber.org/zap"
)

// Environment is what every simulated user and listener sees of the run
type Environment struct {
	Host   string
	Stats  *Stats
	Events *Events
	Logger *zap.Logger
	Client *Client
}

// EnvironmentOptions configures NewEnvironment
type EnvironmentOptions struct {
	Host           string
	RequestTimeout time.Duration
	MaxConns       int // Connection pool size, usually the user count
	Logger         *zap.Logger
}

// NewEnvironment wires the aggregator, events and HTTP client together
func NewEnvironment(opts EnvironmentOptions) *Environment {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	env := &Environment{
		Host:   opts.Host,
		Stats:  NewStats(),
		Events: &Events{},
		Logger: logger,
	}
	env.Client = NewClient(opts.Host, buildLoadTestHTTPClient(timeout, opts.MaxConns), env.report)
	return env
}

// report is the single entry point from Client into the aggregator
func (env *Environment) report(ev RequestEvent) {
	env.Stats.Record(ev)
	env.Events.fireRequest(ev)
}
