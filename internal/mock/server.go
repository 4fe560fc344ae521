package mock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/studiowebux/chatload/internal/types"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"

	defaultPageSize = 20
	maxPageSize     = 100
	maxLogs         = 1000
)

// Server is an in-memory implementation of the chat API endpoints
type Server struct {
	config     *Config
	store      *Store
	logger     *zap.Logger
	httpServer *http.Server
	listener   net.Listener
	logs       []RequestLog
	logsMutex  sync.RWMutex
	failRoll   func() float64
}

// NewServer creates a new mock server
func NewServer(config *Config, logger *zap.Logger) *Server {
	if config.Host == "" {
		config.Host = "localhost"
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Server{
		config:   config,
		store:    NewStore(),
		logger:   logger,
		logs:     make([]RequestLog, 0),
		failRoll: rand.Float64,
	}
}

// Store returns the session store backing the server
func (s *Server) Store() *Store {
	return s.store
}

// Handler returns the routed HTTP handler
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.record)
	r.Use(s.latency)
	r.Use(s.injectFailures)

	r.Route("/api/ai", func(api chi.Router) {
		api.Post("/session/create", s.handleCreateSession)
		api.Post("/chat-with-context", s.handleChat)
		api.Get("/session/{sessionID}/messages", s.handleMessages)
		api.Get("/session/{sessionID}/stats", s.handleStats)
		api.Get("/sessions/{userID}", s.handleUserSessions)
	})
	return r
}

// Start starts the mock server in the background
func (s *Server) Start() error {
	addr := net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = listener

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("mock server error", zap.Error(err))
		}
	}()

	s.logger.Info("mock chat API listening", zap.String("address", s.GetAddress()))
	return nil
}

// Stop stops the mock server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return s.httpServer.Shutdown(ctx)
}

// GetAddress returns the server base URL
func (s *Server) GetAddress() string {
	if s.listener != nil {
		return "http://" + s.listener.Addr().String()
	}
	return fmt.Sprintf("http://%s:%d", s.config.Host, s.config.Port)
}

// GetLogs returns all logged requests
func (s *Server) GetLogs() []RequestLog {
	s.logsMutex.RLock()
	defer s.logsMutex.RUnlock()

	// Return a copy
	logs := make([]RequestLog, len(s.logs))
	copy(logs, s.logs)
	return logs
}

// ClearLogs clears all logged requests
func (s *Server) ClearLogs() {
	s.logsMutex.Lock()
	defer s.logsMutex.Unlock()

	s.logs = make([]RequestLog, 0)
}

// logRequest adds a request to the log
func (s *Server) logRequest(entry RequestLog) {
	s.logsMutex.Lock()
	s.logs = append(s.logs, entry)
	if len(s.logs) > maxLogs {
		s.logs = s.logs[len(s.logs)-maxLogs:]
	}
	s.logsMutex.Unlock()

	if s.config.Logging {
		s.logger.Info("request",
			zap.String("method", entry.Method),
			zap.String("path", entry.Path),
			zap.Int("status", entry.Status),
			zap.Bool("injected", entry.Injected),
			zap.Duration("duration", entry.Duration))
	}
}

type injectedKey struct{}

// record logs every request once the handler chain has finished
func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		injected := new(bool)
		next.ServeHTTP(ww, r.WithContext(context.WithValue(r.Context(), injectedKey{}, injected)))

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.logRequest(RequestLog{
			Timestamp: start,
			Method:    r.Method,
			Path:      r.URL.Path,
			Route:     chi.RouteContext(r.Context()).RoutePattern(),
			Status:    status,
			Injected:  *injected,
			Duration:  time.Since(start),
		})
	})
}

// latency delays the response by Delay plus a random share of Jitter
func (s *Server) latency(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d := s.config.Delay
		if s.config.Jitter > 0 {
			d += rand.N(s.config.Jitter + 1)
		}
		if d > 0 {
			timer := time.NewTimer(d)
			select {
			case <-r.Context().Done():
				timer.Stop()
				return
			case <-timer.C:
			}
		}
		next.ServeHTTP(w, r)
	})
}

// injectFailures answers a FailureRate share of requests with a failure
func (s *Server) injectFailures(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.config.FailureRate <= 0 || s.failRoll() >= s.config.FailureRate {
			next.ServeHTTP(w, r)
			return
		}
		if flag, ok := r.Context().Value(injectedKey{}).(*bool); ok {
			*flag = true
		}
		status := s.config.FailureStatus
		if status == 0 {
			status = http.StatusOK
		}
		respondError(w, status, "injected failure")
	})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var payload types.CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.UserID == "" {
		respondError(w, http.StatusBadRequest, "userId is required")
		return
	}

	session := s.store.CreateSession(payload.UserID, payload.SessionData.Title, payload.SessionData.Platform)
	respondJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"sessionId": session.ID,
		"data":      session,
	})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var payload types.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.SessionID == "" || payload.Message == "" {
		respondError(w, http.StatusBadRequest, "sessionId and message are required")
		return
	}

	contextSize := 0
	if payload.ContextSize != nil {
		contextSize = *payload.ContextSize
	}
	now := time.Now()
	reply := Message{Role: RoleAssistant, Content: "Echo: " + payload.Message, Model: payload.Model, CreatedAt: now}
	used, ok := s.store.AppendMessages(payload.SessionID, contextSize,
		Message{Role: RoleUser, Content: payload.Message, CreatedAt: now},
		reply,
	)
	if !ok {
		respondError(w, http.StatusOK, "session not found")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data": map[string]any{
			"reply":       reply.Content,
			"model":       payload.Model,
			"contextUsed": used,
		},
	})
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	page := queryInt(r, "page", 1)
	pageSize := min(queryInt(r, "pageSize", defaultPageSize), maxPageSize)

	messages, total, ok := s.store.Messages(sessionID, page, pageSize)
	if !ok {
		respondError(w, http.StatusOK, "session not found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data": map[string]any{
			"messages": messages,
			"page":     page,
			"pageSize": pageSize,
			"total":    total,
		},
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, ok := s.store.Stats(chi.URLParam(r, "sessionID"))
	if !ok {
		respondError(w, http.StatusOK, "session not found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    stats,
	})
}

func (s *Server) handleUserSessions(w http.ResponseWriter, r *http.Request) {
	sessions := s.store.UserSessions(chi.URLParam(r, "userID"))
	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    sessions,
	})
}

// queryInt reads a positive integer query parameter
func queryInt(r *http.Request, key string, fallback int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || v < 1 {
		return fallback
	}
	return v
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]any{"success": false, "error": message})
}
