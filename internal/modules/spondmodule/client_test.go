package spondmodule

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redbridgehc/clubhouse/internal/config"
)

func TestClientGroups(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.Equal(t, "/groups", r.URL.Path)
		assert.Equal(t, "100", r.URL.Query().Get("max"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"id":"g1","name":"Redbridge HC","members":[{"id":"m1","firstName":"Ada","lastName":"Lovelace"}]}]`))
	}))
	defer server.Close()

	client := NewClient(config.SpondConfig{BaseURL: server.URL, Token: "secret", PageSize: 100})
	groups, err := client.Groups(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "Bearer secret", gotAuth)
	require.Len(t, groups, 1)
	assert.Equal(t, "Redbridge HC", groups[0].Name)
	require.Len(t, groups[0].Members, 1)
	assert.Equal(t, "Ada", groups[0].Members[0].FirstName)
}

func TestClientEventsWindow(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/sponds", r.URL.Path)
		assert.NotEmpty(t, r.URL.Query().Get("minStartTimestamp"))
		assert.NotEmpty(t, r.URL.Query().Get("maxStartTimestamp"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"id":"e1","heading":"Training","startTimestamp":"2026-09-01T18:00:00Z","endTimestamp":"2026-09-01T19:30:00Z"}]`))
	}))
	defer server.Close()

	client := NewClient(config.SpondConfig{BaseURL: server.URL, Token: "secret"})
	events, err := client.Events(context.Background(), time.Now(), time.Now().AddDate(0, 1, 0))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Training", events[0].Heading)
}

func TestClientErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClient(config.SpondConfig{BaseURL: server.URL, Token: "bad"})
	_, err := client.Groups(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}
