package loadtest

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Exporter publishes live aggregator data as Prometheus metrics
type Exporter struct {
	registry     *prometheus.Registry
	requests     *prometheus.CounterVec
	failures     *prometheus.CounterVec
	responseTime *prometheus.HistogramVec
	logger       *zap.Logger

	shutdownTimeout time.Duration
}

const exporterShutdownTimeout = 5 * time.Second

// NewExporter registers collectors and subscribes to the environment's request events
func NewExporter(env *Environment) *Exporter {
	registry := prometheus.NewRegistry()
	e := &Exporter{
		registry: registry,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chatload",
			Name:      "requests_total",
			Help:      "Requests reported by simulated users.",
		}, []string{"method", "name"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chatload",
			Name:      "request_failures_total",
			Help:      "Requests classified as failures.",
		}, []string{"method", "name"}),
		responseTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "chatload",
			Name:      "response_time_seconds",
			Help:      "Response time of reported requests.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{"method", "name"}),
		logger:          env.Logger,
		shutdownTimeout: exporterShutdownTimeout,
	}
	registry.MustRegister(e.requests, e.failures, e.responseTime)
	env.Events.OnRequest(e.observe)
	return e
}

// TrackUsers exposes the number of running users as a gauge
func (e *Exporter) TrackUsers(activeUsers func() int) {
	e.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "chatload",
		Name:      "active_users",
		Help:      "Simulated users currently running.",
	}, func() float64 {
		return float64(activeUsers())
	}))
}

func (e *Exporter) observe(ev RequestEvent) {
	e.requests.WithLabelValues(ev.Method, ev.Name).Inc()
	if ev.Failed() {
		e.failures.WithLabelValues(ev.Method, ev.Name).Inc()
	}
	e.responseTime.WithLabelValues(ev.Method, ev.Name).Observe(ev.ResponseTime.Seconds())
}

// Handler returns the /metrics handler
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

// Serve listens on addr until ctx is done
func (e *Exporter) Serve(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return e.serve(ctx, listener)
}

func (e *Exporter) serve(ctx context.Context, listener net.Listener) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", e.Handler())
	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), e.shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			e.logger.Warn("metrics server shutdown", zap.Error(err))
		}
	}()

	e.logger.Info("serving metrics", zap.String("addr", listener.Addr().String()))
	if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
