package client

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazypower/affect/internal/affect"
	"github.com/lazypower/affect/internal/boundary"
	"github.com/lazypower/affect/internal/engine"
	"github.com/lazypower/affect/internal/inference"
	"github.com/lazypower/affect/internal/server"
)

func testClient(t *testing.T) *Client {
	t.Helper()
	e := engine.New(engine.Static(inference.NewLexicon()), engine.Options{BlendRatio: engine.DefaultBlendRatio, Logger: zerolog.Nop()})
	t.Cleanup(func() { e.Close() })
	srv := server.New(boundary.New(e, zerolog.Nop()), server.Options{Version: "test", Logger: zerolog.Nop()})
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return New(ts.URL, ts.Client())
}

func TestNewClientEnv(t *testing.T) {
	t.Setenv("AFFECT_URL", "http://example.test:9")
	assert.Equal(t, "http://example.test:9", NewClient().URL())

	t.Setenv("AFFECT_URL", "")
	assert.Equal(t, defaultServerURL, NewClient().URL())
}

func TestClientRoundTrip(t *testing.T) {
	c := testClient(t)
	require.True(t, c.Healthy())

	_, err := c.ListNPCs()
	assert.ErrorIs(t, err, affect.ErrNotInitialized)

	require.NoError(t, c.Initialize())
	require.NoError(t, c.Initialize(), "second initialize is tolerated")

	config := json.RawMessage(`{"identity":{"name":"Mira"},"personality":{"valence":0.2,"arousal":-0.1}}`)
	id, err := c.CreateNPC(config, nil)
	require.NoError(t, err)

	got, err := c.Evaluate(id, "Thank you for saving my life", "player", 5)
	require.NoError(t, err)
	assert.Greater(t, got.Valence, 0.2)

	emo, err := c.Emotion(id, "nobody")
	require.NoError(t, err)
	assert.Equal(t, affect.Coordinate{Valence: 0.2, Arousal: -0.1}, emo)

	mem, err := c.Memory(id)
	require.NoError(t, err)
	assert.Contains(t, string(mem), `"source_id":"player"`)

	clock, err := c.Advance(id, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(15), clock)

	list, err := c.ListNPCs()
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Mira", list[0].Name)

	require.NoError(t, c.ClearMemory(id))
	require.NoError(t, c.RemoveNPC(id))

	_, err = c.Emotion(id, "")
	assert.ErrorIs(t, err, affect.ErrSessionNotFound)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
}

func TestClientCreateWithMemories(t *testing.T) {
	c := testClient(t)
	require.NoError(t, c.Initialize())

	config := json.RawMessage(`{"identity":{"name":"Bram"}}`)
	memories := json.RawMessage(`[{"text":"You lied","valence":-0.8,"arousal":0.5,"source_id":"player","past_time":3}]`)
	id, err := c.CreateNPC(config, memories)
	require.NoError(t, err)

	emo, err := c.Emotion(id, "player")
	require.NoError(t, err)
	assert.Less(t, emo.Valence, 0.0)

	_, err = c.CreateNPC(json.RawMessage(`{"identity":{"name":""}}`), nil)
	assert.ErrorIs(t, err, affect.ErrInvalidConfig)
}

func TestClientNonPayloadError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer ts.Close()

	_, err := New(ts.URL, ts.Client()).Emotion("x", "")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
	assert.Equal(t, "bad gateway", apiErr.Message)
}

func TestHealthyUnreachable(t *testing.T) {
	assert.False(t, New("http://127.0.0.1:1", http.DefaultClient).Healthy())
}
