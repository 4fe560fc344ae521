package mock

import "time"

// Config represents the mock chat API configuration
type Config struct {
	Port          int           `json:"port" yaml:"port"`                                       // Server port (default: 3000, 0 picks a free port)
	Host          string        `json:"host" yaml:"host"`                                       // Server host (default: localhost)
	Delay         time.Duration `json:"delay,omitempty" yaml:"delay,omitempty"`                 // Base latency added to every response
	Jitter        time.Duration `json:"jitter,omitempty" yaml:"jitter,omitempty"`               // Extra random latency in [0, jitter]
	FailureRate   float64       `json:"failureRate,omitempty" yaml:"failureRate,omitempty"`     // Fraction of requests answered with an injected failure
	FailureStatus int           `json:"failureStatus,omitempty" yaml:"failureStatus,omitempty"` // Status of injected failures (default: 200 with success false)
	Logging       bool          `json:"logging" yaml:"logging"`                                 // Log every request
}

// Message is one stored chat message
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Model     string    `json:"model,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Session is one in-memory chat session
type Session struct {
	ID        string    `json:"sessionId"`
	UserID    string    `json:"userId"`
	Title     string    `json:"title"`
	Platform  string    `json:"platform"`
	CreatedAt time.Time `json:"createdAt"`
	Messages  []Message `json:"-"`
}

// SessionSummary is the list view of a session
type SessionSummary struct {
	ID           string    `json:"sessionId"`
	Title        string    `json:"title"`
	Platform     string    `json:"platform"`
	MessageCount int       `json:"messageCount"`
	CreatedAt    time.Time `json:"createdAt"`
}

// SessionStats is the body data of the stats endpoint
type SessionStats struct {
	SessionID         string     `json:"sessionId"`
	MessageCount      int        `json:"messageCount"`
	UserMessages      int        `json:"userMessages"`
	AssistantMessages int        `json:"assistantMessages"`
	CreatedAt         time.Time  `json:"createdAt"`
	LastMessageAt     *time.Time `json:"lastMessageAt,omitempty"`
}

// RequestLog represents a logged request
type RequestLog struct {
	Timestamp time.Time     `json:"timestamp"`
	Method    string        `json:"method"`
	Path      string        `json:"path"`
	Route     string        `json:"route"`
	Status    int           `json:"status"`
	Injected  bool          `json:"injected"`
	Duration  time.Duration `json:"duration"`
}
