package types

import (
	"fmt"
	"time"
)

// SessionData carries the static metadata sent when a chat session is created
type SessionData struct {
	Title    string `json:"title" yaml:"title"`
	Platform string `json:"platform" yaml:"platform"`
}

// CreateSessionRequest is the body of POST /api/ai/session/create
type CreateSessionRequest struct {
	UserID      string      `json:"userId"`
	SessionData SessionData `json:"sessionData"`
}

// ChatRequest is the body of POST /api/ai/chat-with-context
type ChatRequest struct {
	SessionID   string `json:"sessionId"`
	UserID      string `json:"userId"`
	Message     string `json:"message"`
	Model       string `json:"model"`
	ContextSize *int   `json:"contextSize,omitempty"` // Omitted by the burst and occasional actions
}

// Envelope is the common shape of every chat API response.
// Success is a pointer so an absent flag can be told apart from false.
type Envelope struct {
	Success   *bool  `json:"success,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
	Error     string `json:"error,omitempty"`
	Message   string `json:"message,omitempty"`
}

// IsSuccess returns true only when the success flag is present and true
func (e *Envelope) IsSuccess() bool {
	return e != nil && e.Success != nil && *e.Success
}

// ErrorMessage returns the embedded error text, falling back to message
func (e *Envelope) ErrorMessage() string {
	if e == nil {
		return ""
	}
	if e.Error != "" {
		return e.Error
	}
	return e.Message
}

// Preset is a named bundle of run parameters
type Preset struct {
	Name        string  `json:"name" yaml:"name"`
	Users       int     `json:"users" yaml:"users"`
	SpawnRate   float64 `json:"spawnRate" yaml:"spawnRate"`
	RunTime     string  `json:"runTime" yaml:"runTime"` // Go duration string, e.g. "2m"
	Description string  `json:"description,omitempty" yaml:"description,omitempty"`
}

// Duration parses RunTime
func (p Preset) Duration() (time.Duration, error) {
	d, err := time.ParseDuration(p.RunTime)
	if err != nil {
		return 0, fmt.Errorf("preset %s: invalid run time %q: %w", p.Name, p.RunTime, err)
	}
	return d, nil
}
