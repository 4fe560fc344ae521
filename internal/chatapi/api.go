// Package chatapi is the typed client for the chat endpoints under load.
package chatapi

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/studiowebux/chatload/internal/loadtest"
	"github.com/studiowebux/chatload/internal/types"
)

const (
	PathCreateSession = "/api/ai/session/create"
	PathChat          = "/api/ai/chat-with-context"

	// Stats names for the parameterised paths
	NameSessionMessages = "/api/ai/session/[id]/messages"
	NameSessionStats    = "/api/ai/session/[id]/stats"
	NameUserSessions    = "/api/ai/sessions/[userId]"

	DefaultModel = "THUDM/GLM-4-9B-0414"
)

// API issues chat API calls through the load test client
type API struct {
	client *loadtest.Client
	model  string
}

// New creates an API. An empty model falls back to DefaultModel.
func New(client *loadtest.Client, model string) *API {
	if model == "" {
		model = DefaultModel
	}
	return &API{client: client, model: model}
}

// Model returns the model name sent with chat requests
func (a *API) Model() string {
	return a.model
}

// CreateSession creates a session and returns its id on success
func (a *API) CreateSession(ctx context.Context, userID string, data types.SessionData) (string, Outcome) {
	resp := a.client.Do(ctx, &loadtest.Request{
		Method: http.MethodPost,
		Path:   PathCreateSession,
		JSON: types.CreateSessionRequest{
			UserID:      userID,
			SessionData: data,
		},
	})
	out := Classify(resp)
	if out.OK() && out.Envelope.SessionID == "" {
		out.Kind = OutcomeApplication
		out.Message = "response is missing sessionId"
	}
	reportOutcome(resp, out)
	if !out.OK() {
		return "", out
	}
	return out.Envelope.SessionID, out
}

// Chat sends one message in a session. Model defaults to the API model.
func (a *API) Chat(ctx context.Context, req types.ChatRequest) Outcome {
	if req.Model == "" {
		req.Model = a.model
	}
	resp := a.client.Do(ctx, &loadtest.Request{
		Method: http.MethodPost,
		Path:   PathChat,
		JSON:   req,
	})
	return report(resp)
}

// SessionMessages loads one page of a session's history
func (a *API) SessionMessages(ctx context.Context, sessionID string, page, pageSize int) Outcome {
	resp := a.client.Do(ctx, &loadtest.Request{
		Method: http.MethodGet,
		Path:   "/api/ai/session/" + url.PathEscape(sessionID) + "/messages",
		Query: url.Values{
			"page":     {strconv.Itoa(page)},
			"pageSize": {strconv.Itoa(pageSize)},
		},
		Name: NameSessionMessages,
	})
	return report(resp)
}

// SessionStats fetches a session's statistics
func (a *API) SessionStats(ctx context.Context, sessionID string) Outcome {
	resp := a.client.Do(ctx, &loadtest.Request{
		Method: http.MethodGet,
		Path:   "/api/ai/session/" + url.PathEscape(sessionID) + "/stats",
		Name:   NameSessionStats,
	})
	return report(resp)
}

// UserSessions lists every session of a user
func (a *API) UserSessions(ctx context.Context, userID string) Outcome {
	resp := a.client.Do(ctx, &loadtest.Request{
		Method: http.MethodGet,
		Path:   "/api/ai/sessions/" + url.PathEscape(userID),
		Name:   NameUserSessions,
	})
	return report(resp)
}
