/*
Package loadtest is the engine that drives simulated users against an HTTP API.

# Overview

The engine plays the part of a load-testing framework:
  - User classes with a population weight, a wait-time distribution and weighted tasks
  - Spawning at a fixed rate until the requested user count is reached
  - A shared, pooled HTTP client whose requests are reported explicitly
  - A run-wide aggregator with per-endpoint statistics
  - Run-level events (test start, test stop, request, request failure)
  - Optional SQLite persistence of runs and per-request metrics
  - Optional Prometheus export

# Architecture

 1. Environment (environment.go): host, Stats, Events, Logger and Client for one run
 2. Client (client.go): issues requests; callers report each Response exactly once
 3. Stats (stats.go): thread-safe aggregator, percentiles and current RPS
 4. Runner (runner.go): user allocation, spawning and per-user task loops
 5. Manager (manager.go): database operations for runs and metrics
 6. Exporter (exporter.go): Prometheus collectors fed by request events

# User Loop

Each simulated user runs on its own goroutine:
 1. OnStart hook, if the user implements Starter
 2. Pick a task by weight, wait the class wait time, run the task
 3. Repeat until the run context ends
 4. OnStop hook, if the user implements Stopper (runs even after cancellation)

Users never share state. The runner only needs the per-user state to stay on
that user's goroutine.

# Reporting Contract

Client.Do does not classify anything. The task decides:

	resp := env.Client.Do(ctx, &loadtest.Request{Method: http.MethodGet, Path: "/health"})
	if resp.StatusCode == http.StatusOK {
		resp.Success()
	} else {
		resp.Failure(fmt.Sprintf("HTTP error: %d", resp.StatusCode))
	}

Requests interrupted by the end of the run are marked Cancelled and never counted.

# Run End

A run ends when its run time elapses (status "completed"), when Stop is called or
the parent context is cancelled (status "stopped"). Test stop listeners fire after
every user has stopped and the run record is final.
*/
package loadtest
