package loadtest

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestEvents_FailureListenersOnlyForFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/fail" {
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer server.Close()

	env := NewEnvironment(EnvironmentOptions{Host: server.URL})
	var order []string
	env.Events.OnRequest(func(ev RequestEvent) { order = append(order, "request "+ev.Name) })
	env.Events.OnRequestFailure(func(ev RequestEvent) { order = append(order, "failure "+ev.Name) })

	ok := env.Client.Do(context.Background(), &Request{Method: http.MethodGet, Path: "/ok"})
	ok.Success()
	bad := env.Client.Do(context.Background(), &Request{Method: http.MethodGet, Path: "/fail"})
	bad.Failure("HTTP error: 500")

	assert.Equal(t, []string{"request /ok", "request /fail", "failure /fail"}, order)

	entry, found := env.Stats.Entry(http.MethodGet, "/fail")
	require.True(t, found)
	assert.Equal(t, 1, entry.NumFailures)
}

func TestExporter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	env := NewEnvironment(EnvironmentOptions{Host: server.URL})
	exporter := NewExporter(env)
	exporter.TrackUsers(func() int { return 7 })

	for i := 0; i < 3; i++ {
		env.Client.Do(context.Background(), &Request{Method: http.MethodPost, Path: "/chat"}).Success()
	}
	env.Client.Do(context.Background(), &Request{Method: http.MethodPost, Path: "/chat"}).Failure("API error: x")

	rec := httptest.NewRecorder()
	exporter.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	text := string(body)
	assert.True(t, strings.Contains(text, "chatload_active_users 7"), text)
	assert.True(t, strings.Contains(text, `chatload_requests_total{method="POST",name="/chat"} 4`), text)
	assert.True(t, strings.Contains(text, `chatload_request_failures_total{method="POST",name="/chat"} 1`), text)
	assert.True(t, strings.Contains(text, `chatload_response_time_seconds_count{method="POST",name="/chat"} 4`), text)
}

func TestExporter_LogsShutdownError(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	env := NewEnvironment(EnvironmentOptions{Host: "http://localhost", Logger: zap.New(core)})
	exporter := NewExporter(env)
	exporter.shutdownTimeout = 20 * time.Millisecond

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- exporter.serve(ctx, listener)
	}()

	// a connection that never sends a request keeps the server from draining
	conn, err := net.Dial("tcp", listener.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	time.Sleep(50 * time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	assert.Eventually(t, func() bool {
		return logs.FilterMessage("metrics server shutdown").Len() == 1
	}, 2*time.Second, 10*time.Millisecond)
}
