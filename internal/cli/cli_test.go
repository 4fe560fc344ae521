package cli

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studiowebux/chatload/internal/config"
	"github.com/studiowebux/chatload/internal/loadtest"
	"github.com/studiowebux/chatload/internal/mock"
)

func TestBuildPlan_Precedence(t *testing.T) {
	require.NoError(t, config.InitializeAt(t.TempDir()))

	tests := []struct {
		name      string
		opts      RunOptions
		settings  config.Settings
		wantHost  string
		wantUsers int
		wantRate  float64
		wantTime  time.Duration
		wantDB    string
	}{
		{
			name:      "defaults",
			wantHost:  config.DefaultHost,
			wantUsers: 1,
			wantRate:  1,
			wantDB:    config.DatabasePath,
		},
		{
			name:      "settings host",
			settings:  config.Settings{Host: "http://from-file:1"},
			wantHost:  "http://from-file:1",
			wantUsers: 1,
			wantRate:  1,
			wantDB:    config.DatabasePath,
		},
		{
			name:      "flag beats settings",
			opts:      RunOptions{Host: "http://from-flag:2"},
			settings:  config.Settings{Host: "http://from-file:1"},
			wantHost:  "http://from-flag:2",
			wantUsers: 1,
			wantRate:  1,
			wantDB:    config.DatabasePath,
		},
		{
			name:      "preset",
			opts:      RunOptions{Preset: "spike"},
			wantHost:  config.DefaultHost,
			wantUsers: 50,
			wantRate:  10,
			wantTime:  2 * time.Minute,
			wantDB:    config.DatabasePath,
		},
		{
			name:      "flags override preset fields",
			opts:      RunOptions{Preset: "load", Users: 5, RunTime: 30 * time.Second, RunTimeSet: true},
			wantHost:  config.DefaultHost,
			wantUsers: 5,
			wantRate:  2,
			wantTime:  30 * time.Second,
			wantDB:    config.DatabasePath,
		},
		{
			name:      "zero run time flag clears the preset run time",
			opts:      RunOptions{Preset: "endurance", RunTimeSet: true},
			wantHost:  config.DefaultHost,
			wantUsers: 10,
			wantRate:  1,
			wantDB:    config.DatabasePath,
		},
		{
			name:      "no db",
			opts:      RunOptions{NoDB: true, DBPath: "ignored.db"},
			wantHost:  config.DefaultHost,
			wantUsers: 1,
			wantRate:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settings := tt.settings
			plan, err := buildPlan(tt.opts, &settings)
			require.NoError(t, err)
			assert.Equal(t, tt.wantHost, plan.config.Host)
			assert.Equal(t, tt.wantUsers, plan.config.Users)
			assert.Equal(t, tt.wantRate, plan.config.SpawnRate)
			assert.Equal(t, tt.wantTime, plan.config.RunTime)
			assert.Equal(t, tt.wantDB, plan.dbPath)
			assert.NotEmpty(t, plan.config.Name)
			assert.Len(t, plan.classes, 3)
		})
	}
}

func TestBuildPlan_Errors(t *testing.T) {
	require.NoError(t, config.InitializeAt(t.TempDir()))

	tests := map[string]RunOptions{
		"unknown preset":  {Preset: "soak"},
		"unknown profile": {Profiles: []string{"vip"}},
		"bad host":        {Host: "ftp://x"},
	}
	for name, opts := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := buildPlan(opts, &config.Settings{})
			assert.Error(t, err)
		})
	}
}

func TestBuildPlan_Profiles(t *testing.T) {
	require.NoError(t, config.InitializeAt(t.TempDir()))

	plan, err := buildPlan(RunOptions{Profiles: []string{"chat", "low-frequency"}}, &config.Settings{})
	require.NoError(t, err)
	require.Len(t, plan.classes, 2)
	assert.Equal(t, "chat", plan.classes[0].Name)
	assert.Equal(t, "low-frequency", plan.classes[1].Name)
}

func TestRunAndListRuns(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, config.InitializeAt(dir))

	server := mock.NewServer(mock.DefaultConfig(), nil)
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	settingsPath := filepath.Join(dir, "settings.yaml")
	require.NoError(t, os.WriteFile(settingsPath, []byte(`
logLevel: error
profiles:
  chat: {minWait: 1ms, maxWait: 5ms}
  high-frequency: {minWait: 1ms, maxWait: 5ms}
  low-frequency: {minWait: 1ms, maxWait: 5ms}
`), config.FilePermissions))

	dbPath := filepath.Join(dir, "runs.db")
	var out bytes.Buffer
	err := Run(context.Background(), RunOptions{
		Name:       "cli test",
		Host:       ts.URL,
		Users:      3,
		SpawnRate:  50,
		RunTime:    400 * time.Millisecond,
		RunTimeSet: true,
		ConfigPath: settingsPath,
		DBPath:     dbPath,
		Out:        &out,
	})
	require.NoError(t, err)

	console := out.String()
	assert.Contains(t, console, "Chat API load test started")
	assert.Contains(t, console, "Chat API load test finished")
	assert.Contains(t, console, "Run #1 saved (completed)")

	var list bytes.Buffer
	require.NoError(t, Runs(RunsOptions{DBPath: dbPath, Out: &list}))
	assert.Contains(t, list.String(), "cli test")

	manager, err := loadtest.NewManager(dbPath)
	require.NoError(t, err)
	run, err := manager.GetRun(1)
	require.NoError(t, err)
	manager.Close()
	assert.Equal(t, loadtest.StatusCompleted, run.Status)
	assert.Greater(t, run.TotalRequests, 0)

	var details bytes.Buffer
	require.NoError(t, Runs(RunsOptions{DBPath: dbPath, Show: 1, Out: &details}))
	assert.Contains(t, details.String(), "/api/ai/session/create")

	var deleted bytes.Buffer
	require.NoError(t, Runs(RunsOptions{DBPath: dbPath, Delete: 1, Out: &deleted}))
	assert.True(t, strings.HasPrefix(deleted.String(), "Deleted run #1"))
	assert.Error(t, Runs(RunsOptions{DBPath: dbPath, Show: 1, Out: &details}))
}

func TestPresets(t *testing.T) {
	var out bytes.Buffer
	Presets(&out)
	for _, name := range []string{"spike", "load", "endurance"} {
		assert.Contains(t, out.String(), name)
	}
}

func TestMock_InitWritesConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mock.yaml")
	var out bytes.Buffer

	require.NoError(t, Mock(context.Background(), MockOptions{InitPath: path, Out: &out}))
	assert.Equal(t, "Wrote mock config to "+path+"\n", out.String())

	cfg, err := mock.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, mock.DefaultConfig().Port, cfg.Port)
}
