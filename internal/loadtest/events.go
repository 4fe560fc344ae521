package loadtest

import (
	"sync"
	"time"
)

// RequestEvent describes one timed request as seen by the aggregator
type RequestEvent struct {
	Method         string
	Name           string
	StatusCode     int
	ResponseTime   time.Duration
	ResponseLength int64
	Err            error // nil on success
	Timestamp      time.Time
}

// Failed reports whether the request was classified as a failure
func (ev RequestEvent) Failed() bool {
	return ev.Err != nil
}

// Events holds run-level listeners.
// Listeners run synchronously, in registration order, on the goroutine that fired them.
type Events struct {
	mu        sync.RWMutex
	testStart []func(*Environment)
	testStop  []func(*Environment)
	request   []func(RequestEvent)
	failure   []func(RequestEvent)
}

// OnTestStart registers a listener fired once before any user is spawned
func (e *Events) OnTestStart(fn func(*Environment)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.testStart = append(e.testStart, fn)
}

// OnTestStop registers a listener fired once after every user has stopped
func (e *Events) OnTestStop(fn func(*Environment)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.testStop = append(e.testStop, fn)
}

// OnRequest registers a listener fired for every reported request
func (e *Events) OnRequest(fn func(RequestEvent)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.request = append(e.request, fn)
}

// OnRequestFailure registers a listener fired for failed requests only
func (e *Events) OnRequestFailure(fn func(RequestEvent)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failure = append(e.failure, fn)
}

func (e *Events) fireTestStart(env *Environment) {
	e.mu.RLock()
	listeners := append([]func(*Environment){}, e.testStart...)
	e.mu.RUnlock()
	for _, fn := range listeners {
		fn(env)
	}
}

func (e *Events) fireTestStop(env *Environment) {
	e.mu.RLock()
	listeners := append([]func(*Environment){}, e.testStop...)
	e.mu.RUnlock()
	for _, fn := range listeners {
		fn(env)
	}
}

func (e *Events) fireRequest(ev RequestEvent) {
	e.mu.RLock()
	request := append([]func(RequestEvent){}, e.request...)
	var failure []func(RequestEvent)
	if ev.Failed() {
		failure = append(failure, e.failure...)
	}
	e.mu.RUnlock()

	for _, fn := range request {
		fn(ev)
	}
	for _, fn := range failure {
		fn(ev)
	}
}
