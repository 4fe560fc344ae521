package scenario

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studiowebux/chatload/internal/chatapi"
	"github.com/studiowebux/chatload/internal/loadtest"
)

type reply struct {
	status int
	body   string
}

type call struct {
	method string
	path   string
	body   map[string]any
}

// scriptedServer answers each path from a queue of replies, then with success
type scriptedServer struct {
	mu      sync.Mutex
	replies map[string][]reply
	calls   []call
}

func newScriptedServer(t *testing.T) (*scriptedServer, *loadtest.Environment) {
	t.Helper()
	s := &scriptedServer{replies: make(map[string][]reply)}
	server := httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(server.Close)
	env := loadtest.NewEnvironment(loadtest.EnvironmentOptions{Host: server.URL})
	return s, env
}

func (s *scriptedServer) script(path string, replies ...reply) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies[path] = append(s.replies[path], replies...)
}

func (s *scriptedServer) serve(w http.ResponseWriter, r *http.Request) {
	c := call{method: r.Method, path: r.URL.Path}
	json.NewDecoder(r.Body).Decode(&c.body)

	s.mu.Lock()
	s.calls = append(s.calls, c)
	next := reply{status: http.StatusOK, body: `{"success":true}`}
	if queue := s.replies[r.URL.Path]; len(queue) > 0 {
		next, s.replies[r.URL.Path] = queue[0], queue[1:]
	}
	s.mu.Unlock()

	w.WriteHeader(next.status)
	w.Write([]byte(next.body))
}

func (s *scriptedServer) callsTo(path string) []call {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []call
	for _, c := range s.calls {
		if c.path == path {
			out = append(out, c)
		}
	}
	return out
}

func (s *scriptedServer) total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

var sessionOK = reply{http.StatusOK, `{"success":true,"sessionId":"abc"}`}

func TestBootstrap_SessionReused(t *testing.T) {
	srv, env := newScriptedServer(t)
	srv.script(chatapi.PathCreateSession, sessionOK)

	user := NewChatUser(chatapi.New(env.Client, ""), nil)
	ctx := context.Background()
	user.OnStart(ctx)
	require.Equal(t, "abc", user.SessionID)

	user.SendMessage(ctx)
	user.SendMessage(ctx)
	user.LoadHistory(ctx)

	chats := srv.callsTo(chatapi.PathChat)
	require.Len(t, chats, 2)
	for _, c := range chats {
		assert.Equal(t, "abc", c.body["sessionId"])
		assert.Equal(t, user.ID, c.body["userId"])
		assert.EqualValues(t, 10, c.body["contextSize"])
		assert.Equal(t, chatapi.DefaultModel, c.body["model"])
	}
	assert.True(t, strings.HasSuffix(chats[0].body["message"].(string), "(message #1)"))
	assert.True(t, strings.HasSuffix(chats[1].body["message"].(string), "(message #2)"))
	assert.Len(t, srv.callsTo("/api/ai/session/abc/messages"), 1)
	assert.Len(t, srv.callsTo(chatapi.PathCreateSession), 1)
	assert.Equal(t, "abc", user.SessionID)
	assert.Equal(t, 1, user.BootstrapAttempts)
}

func TestBootstrap_RequestBody(t *testing.T) {
	srv, env := newScriptedServer(t)
	srv.script(chatapi.PathCreateSession, sessionOK)

	user := NewLowFrequencyUser(chatapi.New(env.Client, ""), nil)
	user.OnStart(context.Background())

	creates := srv.callsTo(chatapi.PathCreateSession)
	require.Len(t, creates, 1)
	assert.Equal(t, user.ID, creates[0].body["userId"])
	assert.Equal(t, map[string]any{"title": "Low-frequency session", "platform": "test"}, creates[0].body["sessionData"])
	assert.True(t, strings.HasPrefix(user.ID, "low_freq_user_"))
}

func TestActions_WithoutSession(t *testing.T) {
	failed := reply{http.StatusInternalServerError, `{"success":false}`}

	chatUser := func(api *chatapi.API) map[string]func(context.Context) {
		u := NewChatUser(api, nil)
		return map[string]func(context.Context){
			"send_message": u.SendMessage, "load_history": u.LoadHistory,
			"session_stats": u.SessionStats, "list_sessions": u.ListSessions,
		}
	}
	high := func(api *chatapi.API) map[string]func(context.Context) {
		return map[string]func(context.Context){"rapid_fire": NewHighFrequencyUser(api, nil).RapidFire}
	}
	low := func(api *chatapi.API) map[string]func(context.Context) {
		return map[string]func(context.Context){"occasional_message": NewLowFrequencyUser(api, nil).OccasionalMessage}
	}

	for _, build := range []func(*chatapi.API) map[string]func(context.Context){chatUser, high, low} {
		srv, env := newScriptedServer(t)
		for name, action := range build(chatapi.New(env.Client, "")) {
			t.Run(name, func(t *testing.T) {
				before := srv.total()
				srv.script(chatapi.PathCreateSession, failed)

				action(context.Background())

				assert.Equal(t, before+1, srv.total(), "exactly one request: the bootstrap")
				assert.Empty(t, srv.callsTo(chatapi.PathChat))
			})
		}
	}
}

func TestActions_RecoverSession(t *testing.T) {
	srv, env := newScriptedServer(t)
	srv.script(chatapi.PathCreateSession, reply{http.StatusServiceUnavailable, ``}, sessionOK)

	user := NewChatUser(chatapi.New(env.Client, ""), nil)
	ctx := context.Background()
	user.OnStart(ctx)
	assert.False(t, user.HasSession())

	user.SendMessage(ctx) // bootstraps, skips the chat
	assert.Equal(t, "abc", user.SessionID)
	assert.Empty(t, srv.callsTo(chatapi.PathChat))

	user.SendMessage(ctx)
	assert.Len(t, srv.callsTo(chatapi.PathChat), 1)
	assert.Equal(t, 2, user.BootstrapAttempts)
}

func TestRapidFire_Burst(t *testing.T) {
	srv, env := newScriptedServer(t)
	srv.script(chatapi.PathCreateSession, sessionOK)

	user := NewHighFrequencyUser(chatapi.New(env.Client, ""), nil)
	user.BurstPause = 20 * time.Millisecond
	ctx := context.Background()
	user.OnStart(ctx)

	start := time.Now()
	user.RapidFire(ctx)
	elapsed := time.Since(start)

	chats := srv.callsTo(chatapi.PathChat)
	require.Len(t, chats, BurstSize)
	for i, c := range chats {
		assert.Equal(t, "rapid message #"+string(rune('1'+i))+" from "+user.ID, c.body["message"])
		assert.NotContains(t, c.body, "contextSize")
	}
	assert.GreaterOrEqual(t, elapsed, 2*user.BurstPause)
	assert.Equal(t, BurstSize, user.MessageCount)
}

func TestRapidFire_StopsOnCancel(t *testing.T) {
	srv, env := newScriptedServer(t)
	srv.script(chatapi.PathCreateSession, sessionOK)

	user := NewHighFrequencyUser(chatapi.New(env.Client, ""), nil)
	user.BurstPause = time.Minute
	user.OnStart(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	user.RapidFire(ctx)

	assert.Len(t, srv.callsTo(chatapi.PathChat), 1)
}

func TestOccasionalMessage(t *testing.T) {
	srv, env := newScriptedServer(t)
	srv.script(chatapi.PathCreateSession, sessionOK)

	user := NewLowFrequencyUser(chatapi.New(env.Client, "custom-model"), nil)
	ctx := context.Background()
	user.OnStart(ctx)
	user.OccasionalMessage(ctx)

	chats := srv.callsTo(chatapi.PathChat)
	require.Len(t, chats, 1)
	assert.Contains(t, occasionalMessages, chats[0].body["message"])
	assert.Equal(t, "custom-model", chats[0].body["model"])
	assert.Equal(t, 1, user.MessageCount)
}

func TestEndToEnd_Aggregates(t *testing.T) {
	srv, env := newScriptedServer(t)
	srv.script(chatapi.PathCreateSession, sessionOK)
	srv.script(chatapi.PathChat,
		reply{http.StatusOK, `{"success":true}`},
		reply{http.StatusOK, `{"success":false,"error":"model overloaded"}`},
	)

	var failures []loadtest.RequestEvent
	env.Events.OnRequestFailure(func(ev loadtest.RequestEvent) { failures = append(failures, ev) })

	user := NewChatUser(chatapi.New(env.Client, ""), nil)
	ctx := context.Background()
	user.OnStart(ctx)
	user.SendMessage(ctx)
	user.SendMessage(ctx)
	user.LoadHistory(ctx)

	create, ok := env.Stats.Entry(http.MethodPost, chatapi.PathCreateSession)
	require.True(t, ok)
	assert.Equal(t, 1, create.NumRequests)
	assert.Equal(t, 0, create.NumFailures)

	chat, ok := env.Stats.Entry(http.MethodPost, chatapi.PathChat)
	require.True(t, ok)
	assert.Equal(t, 2, chat.NumRequests)
	assert.Equal(t, 1, chat.NumFailures)

	history, ok := env.Stats.Entry(http.MethodGet, chatapi.NameSessionMessages)
	require.True(t, ok)
	assert.Equal(t, 1, history.NumRequests)
	assert.Equal(t, 0, history.NumFailures)

	total := env.Stats.Total()
	assert.Equal(t, 4, total.NumRequests)
	assert.Equal(t, 1, total.NumFailures)

	require.Len(t, failures, 1)
	assert.Equal(t, "API error: model overloaded", failures[0].Err.Error())
}
