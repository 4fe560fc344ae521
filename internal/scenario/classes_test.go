package scenario

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studiowebux/chatload/internal/chatapi"
	"github.com/studiowebux/chatload/internal/loadtest"
	"github.com/studiowebux/chatload/internal/mock"
)

func TestClasses_Defaults(t *testing.T) {
	classes, err := Classes(Options{})
	require.NoError(t, err)
	require.Len(t, classes, 3)

	weights := map[string]int{}
	for _, c := range classes {
		weights[c.Name] = c.Weight
	}
	assert.Equal(t, map[string]int{ClassChat: 1, ClassHighFrequency: 2, ClassLowFrequency: 1}, weights)

	for i := 0; i < 100; i++ {
		d := classes[1].WaitTime()
		require.GreaterOrEqual(t, d, 500*time.Millisecond)
		require.LessOrEqual(t, d, 2*time.Second)
	}
}

func TestClasses_Overrides(t *testing.T) {
	classes, err := Classes(Options{Overrides: map[string]ProfileOverride{
		ClassLowFrequency: {Weight: 4, MinWait: time.Millisecond, MaxWait: 2 * time.Millisecond},
	}})
	require.NoError(t, err)

	low := classes[2]
	assert.Equal(t, ClassLowFrequency, low.Name)
	assert.Equal(t, 4, low.Weight)
	assert.LessOrEqual(t, low.WaitTime(), 2*time.Millisecond)

	_, err = Classes(Options{Overrides: map[string]ProfileOverride{"vip": {Weight: 1}}})
	assert.Error(t, err)

	_, err = Classes(Options{Overrides: map[string]ProfileOverride{
		ClassChat: {MinWait: 5 * time.Second, MaxWait: time.Second},
	}})
	assert.Error(t, err)
}

func TestSelect(t *testing.T) {
	classes, err := Classes(Options{})
	require.NoError(t, err)

	all, err := Select(classes, nil)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	one, err := Select(classes, []string{" high-frequency ", "high-frequency"})
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, ClassHighFrequency, one[0].Name)

	_, err = Select(classes, []string{"nope"})
	assert.Error(t, err)
}

func TestPresets(t *testing.T) {
	assert.Equal(t, []string{"endurance", "load", "spike"}, PresetNames())

	tests := []struct {
		name      string
		users     int
		spawnRate float64
		runTime   time.Duration
	}{
		{"spike", 50, 10, 2 * time.Minute},
		{"load", 20, 2, 10 * time.Minute},
		{"endurance", 10, 1, 30 * time.Minute},
	}
	for _, tt := range tests {
		p, err := LookupPreset(tt.name)
		require.NoError(t, err)
		d, err := p.Duration()
		require.NoError(t, err)
		assert.Equal(t, tt.users, p.Users)
		assert.Equal(t, tt.spawnRate, p.SpawnRate)
		assert.Equal(t, tt.runTime, d)
	}

	p, err := LookupPreset(" Spike ")
	require.NoError(t, err)
	assert.Equal(t, "spike", p.Name)

	_, err = LookupPreset("soak")
	assert.Error(t, err)
}

func TestRun_AgainstMockServer(t *testing.T) {
	server := mock.NewServer(mock.DefaultConfig(), nil)
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	fast := ProfileOverride{MinWait: time.Millisecond, MaxWait: 5 * time.Millisecond}
	classes, err := Classes(Options{Overrides: map[string]ProfileOverride{
		ClassChat: fast, ClassHighFrequency: fast, ClassLowFrequency: fast,
	}})
	require.NoError(t, err)

	env := loadtest.NewEnvironment(loadtest.EnvironmentOptions{Host: ts.URL, MaxConns: 8})
	runner, err := loadtest.NewRunner(env, &loadtest.Config{
		Host:      ts.URL,
		Users:     4,
		SpawnRate: 100,
		RunTime:   500 * time.Millisecond,
	}, classes, nil)
	require.NoError(t, err)
	require.NoError(t, runner.Run(context.Background()))

	assert.Equal(t, loadtest.StatusCompleted, runner.GetRun().Status)
	total := env.Stats.Total()
	assert.Greater(t, total.NumRequests, 4)
	assert.Equal(t, 0, total.NumFailures)

	create, ok := env.Stats.Entry(http.MethodPost, chatapi.PathCreateSession)
	require.True(t, ok)
	assert.Equal(t, 4, create.NumRequests, "one session per user")
	assert.Equal(t, 4, server.Store().Len())

	_, ok = env.Stats.Entry(http.MethodPost, chatapi.PathChat)
	assert.True(t, ok)
}
