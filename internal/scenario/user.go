package scenario

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/studiowebux/chatload/internal/chatapi"
	"github.com/studiowebux/chatload/internal/types"
)

// Platform is the platform tag sent with every new session
const Platform = "test"

// SimulatedUser is the state shared by every profile: an identifier, the
// current session and a message counter. It belongs to one user goroutine.
type SimulatedUser struct {
	ID           string
	SessionID    string
	MessageCount int

	// BootstrapAttempts counts session creation calls, successful or not
	BootstrapAttempts int

	title  string
	api    *chatapi.API
	logger *zap.Logger
}

func newSimulatedUser(prefix, title string, api *chatapi.API, logger *zap.Logger) *SimulatedUser {
	if logger == nil {
		logger = zap.NewNop()
	}
	id := prefix + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return &SimulatedUser{
		ID:     id,
		title:  title,
		api:    api,
		logger: logger.With(zap.String("user", id)),
	}
}

// HasSession reports whether a session id has been obtained
func (u *SimulatedUser) HasSession() bool {
	return u.SessionID != ""
}

// Bootstrap creates a chat session. On failure the session stays unset and no
// retry is scheduled; the next action tries again.
func (u *SimulatedUser) Bootstrap(ctx context.Context) bool {
	u.BootstrapAttempts++
	sessionID, out := u.api.CreateSession(ctx, u.ID, types.SessionData{
		Title:    u.title,
		Platform: Platform,
	})

	switch {
	case out.OK():
		u.SessionID = sessionID
		u.logger.Info("session created", zap.String("session", sessionID))
		return true
	case out.Kind == chatapi.OutcomeCancelled:
		return false
	default:
		u.logger.Error("session creation failed",
			zap.String("kind", out.Kind.String()),
			zap.Int("status", out.StatusCode),
			zap.String("reason", out.Reason()))
		return false
	}
}

// ensureSession returns true when the action may proceed. Without a session it
// makes one bootstrap attempt and returns false; the action is skipped this cycle.
func (u *SimulatedUser) ensureSession(ctx context.Context) bool {
	if u.HasSession() {
		return true
	}
	u.Bootstrap(ctx)
	return false
}

func (u *SimulatedUser) nextMessageNumber() int {
	u.MessageCount++
	return u.MessageCount
}

func (u *SimulatedUser) logOutcome(action string, out chatapi.Outcome) {
	switch {
	case out.Kind == chatapi.OutcomeCancelled:
		return
	case out.OK():
		u.logger.Debug(action+" succeeded", zap.String("session", u.SessionID))
		return
	}
	u.logger.Debug(action+" failed", zap.String("reason", out.Reason()))
}

// OnStart creates the user's session
func (u *SimulatedUser) OnStart(ctx context.Context) {
	u.Bootstrap(ctx)
	u.logger.Info("user started")
}

// OnStop logs the user summary
func (u *SimulatedUser) OnStop(ctx context.Context) {
	u.logger.Info("user finished",
		zap.Int("messages", u.MessageCount),
		zap.Bool("has_session", u.HasSession()),
		zap.Int("bootstrap_attempts", u.BootstrapAttempts))
}
