package scenario

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"github.com/studiowebux/chatload/internal/chatapi"
	"github.com/studiowebux/chatload/internal/loadtest"
	"github.com/studiowebux/chatload/internal/types"
)

// Class names
const (
	ClassChat          = "chat"
	ClassHighFrequency = "high-frequency"
	ClassLowFrequency  = "low-frequency"
)

const (
	chatContextSize = 10
	historyPageSize = 20
	historyMaxPage  = 3

	// BurstSize is the number of chat calls in one high-frequency burst
	BurstSize = 3
	// DefaultBurstPause separates the calls of a burst
	DefaultBurstPause = 100 * time.Millisecond
)

var standardMessages = []string{
	"Hello, I am user %s",
	"I'd like to know more about the membership plans",
	"Video playback keeps stuttering, how do I fix it?",
	"How do I update my profile?",
	"My payment failed, can you help me with it?",
	"Do you remember what I asked earlier?",
	"Can you recommend some trending videos?",
	"How do I reach a human agent?",
	"The app crashed, what should I do?",
	"My account balance looks wrong",
}

var occasionalMessages = []string{
	"I have a quick question",
	"Thanks for your help",
	"Goodbye",
}

// ChatUser is the standard profile: mostly chatting, sometimes browsing history,
// stats and the session list
type ChatUser struct {
	*SimulatedUser
}

// NewChatUser creates a standard user
func NewChatUser(api *chatapi.API, logger *zap.Logger) *ChatUser {
	return &ChatUser{SimulatedUser: newSimulatedUser("chat_user", "Load test session", api, logger)}
}

// Tasks returns the weighted actions of the standard profile
func (u *ChatUser) Tasks() []loadtest.Task {
	return []loadtest.Task{
		{Name: "send_message", Weight: 10, Fn: u.SendMessage},
		{Name: "load_history", Weight: 3, Fn: u.LoadHistory},
		{Name: "session_stats", Weight: 1, Fn: u.SessionStats},
		{Name: "list_sessions", Weight: 1, Fn: u.ListSessions},
	}
}

// SendMessage sends one context-aware chat message
func (u *ChatUser) SendMessage(ctx context.Context) {
	if !u.ensureSession(ctx) {
		return
	}

	template := standardMessages[rand.IntN(len(standardMessages))]
	text := template
	if template == standardMessages[0] {
		text = fmt.Sprintf(template, u.ID)
	}
	n := u.nextMessageNumber()
	contextSize := chatContextSize

	out := u.api.Chat(ctx, types.ChatRequest{
		SessionID:   u.SessionID,
		UserID:      u.ID,
		Message:     fmt.Sprintf("%s (message #%d)", text, n),
		ContextSize: &contextSize,
	})
	u.logOutcome("send message", out)
}

// LoadHistory loads a random page of the session history
func (u *ChatUser) LoadHistory(ctx context.Context) {
	if !u.ensureSession(ctx) {
		return
	}
	page := rand.IntN(historyMaxPage) + 1
	u.logOutcome("load history", u.api.SessionMessages(ctx, u.SessionID, page, historyPageSize))
}

// SessionStats fetches the session statistics
func (u *ChatUser) SessionStats(ctx context.Context) {
	if !u.ensureSession(ctx) {
		return
	}
	u.logOutcome("session stats", u.api.SessionStats(ctx, u.SessionID))
}

// ListSessions lists every session of the user
func (u *ChatUser) ListSessions(ctx context.Context) {
	if !u.ensureSession(ctx) {
		return
	}
	u.logOutcome("list sessions", u.api.UserSessions(ctx, u.ID))
}

// HighFrequencyUser fires short bursts of messages
type HighFrequencyUser struct {
	*SimulatedUser
	BurstPause time.Duration
}

// NewHighFrequencyUser creates a high-frequency user
func NewHighFrequencyUser(api *chatapi.API, logger *zap.Logger) *HighFrequencyUser {
	return &HighFrequencyUser{
		SimulatedUser: newSimulatedUser("high_freq_user", "High-frequency session", api, logger),
		BurstPause:    DefaultBurstPause,
	}
}

// Tasks returns the single burst action
func (u *HighFrequencyUser) Tasks() []loadtest.Task {
	return []loadtest.Task{
		{Name: "rapid_fire", Weight: 1, Fn: u.RapidFire},
	}
}

// RapidFire sends BurstSize messages back to back, pausing BurstPause between them
func (u *HighFrequencyUser) RapidFire(ctx context.Context) {
	if !u.ensureSession(ctx) {
		return
	}

	for i := 0; i < BurstSize; i++ {
		if i > 0 && !loadtest.Sleep(ctx, u.BurstPause) {
			return
		}
		n := u.nextMessageNumber()
		out := u.api.Chat(ctx, types.ChatRequest{
			SessionID: u.SessionID,
			UserID:    u.ID,
			Message:   fmt.Sprintf("rapid message #%d from %s", n, u.ID),
		})
		u.logOutcome("rapid message", out)
	}
}

// LowFrequencyUser drops in now and then with a short message
type LowFrequencyUser struct {
	*SimulatedUser
}

// NewLowFrequencyUser creates a low-frequency user
func NewLowFrequencyUser(api *chatapi.API, logger *zap.Logger) *LowFrequencyUser {
	return &LowFrequencyUser{SimulatedUser: newSimulatedUser("low_freq_user", "Low-frequency session", api, logger)}
}

// Tasks returns the single occasional action
func (u *LowFrequencyUser) Tasks() []loadtest.Task {
	return []loadtest.Task{
		{Name: "occasional_message", Weight: 1, Fn: u.OccasionalMessage},
	}
}

// OccasionalMessage sends one message from a small pool
func (u *LowFrequencyUser) OccasionalMessage(ctx context.Context) {
	if !u.ensureSession(ctx) {
		return
	}
	u.nextMessageNumber()
	out := u.api.Chat(ctx, types.ChatRequest{
		SessionID: u.SessionID,
		UserID:    u.ID,
		Message:   occasionalMessages[rand.IntN(len(occasionalMessages))],
	})
	u.logOutcome("occasional message", out)
}
