// Package client talks to a running affect server over HTTP.
package client

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/lazypower/affect/internal/affect"
	"github.com/lazypower/affect/internal/boundary"
)

const (
	defaultServerURL = "http://127.0.0.1:37778"
	httpTimeout      = 60 * time.Second
)

// APIError is a failed payload returned by the server.
type APIError struct {
	Status  int
	Kind    string
	Message string
}

func (e *APIError) Error() string {
	if e.Kind == "" {
		return fmt.Sprintf("status %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap maps the kind back onto its sentinel so errors.Is works across the
// wire.
func (e *APIError) Unwrap() error {
	switch e.Kind {
	case affect.KindInvalidConfig:
		return affect.ErrInvalidConfig
	case affect.KindSessionNotFound:
		return affect.ErrSessionNotFound
	case affect.KindInvalidInput:
		return affect.ErrInvalidInput
	case affect.KindInferenceUnavailable:
		return affect.ErrInferenceUnavailable
	case affect.KindNotInitialized:
		return affect.ErrNotInitialized
	case affect.KindAlreadyInitialized:
		return affect.ErrAlreadyInitialized
	}
	return nil
}

// Client talks to the affect server.
type Client struct {
	http      *http.Client
	serverURL string
}

// NewClient creates a new HTTP client.
// Respects AFFECT_URL env var, falls back to http://127.0.0.1:37778.
func NewClient() *Client {
	u := os.Getenv("AFFECT_URL")
	if u == "" {
		u = defaultServerURL
	}
	return New(u, &http.Client{Timeout: httpTimeout})
}

// New creates a client for serverURL using hc.
func New(serverURL string, hc *http.Client) *Client {
	return &Client{http: hc, serverURL: serverURL}
}

// URL returns the server base URL.
func (c *Client) URL() string {
	return c.serverURL
}

func (c *Client) do(method, path string, body any) (json.RawMessage, error) {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		rd = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.serverURL+path, rd)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response %s: %w", path, err)
	}

	var p boundary.Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, &APIError{Status: resp.StatusCode, Message: string(bytes.TrimSpace(data))}
	}
	if !p.OK {
		return nil, &APIError{Status: resp.StatusCode, Kind: p.Kind, Message: p.Error}
	}
	return p.Data, nil
}

// Healthy checks if the server is reachable.
func (c *Client) Healthy() bool {
	resp, err := c.http.Get(c.serverURL + "/api/health")
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Initialize asks the server to load its predictor. An already initialized
// server is not an error.
func (c *Client) Initialize() error {
	_, err := c.do(http.MethodPost, "/api/initialize", nil)
	if errors.Is(err, affect.ErrAlreadyInitialized) {
		return nil
	}
	return err
}

// CreateNPC registers a new NPC. memories may be nil.
func (c *Client) CreateNPC(config, memories json.RawMessage) (string, error) {
	body := map[string]json.RawMessage{"config": config}
	if len(memories) > 0 {
		body["memories"] = memories
	}
	data, err := c.do(http.MethodPost, "/api/npcs", body)
	if err != nil {
		return "", err
	}
	var out struct {
		NpcID string `json:"npc_id"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("decode npc id: %w", err)
	}
	return out.NpcID, nil
}

// RemoveNPC drops an NPC.
func (c *Client) RemoveNPC(npcID string) error {
	_, err := c.do(http.MethodDelete, "/api/npcs/"+url.PathEscape(npcID), nil)
	return err
}

// ListNPCs describes every live NPC.
func (c *Client) ListNPCs() ([]boundary.SessionInfo, error) {
	data, err := c.do(http.MethodGet, "/api/npcs", nil)
	if err != nil {
		return nil, err
	}
	var out []boundary.SessionInfo
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode sessions: %w", err)
	}
	return out, nil
}

// Evaluate records an interaction and returns the blended reading.
func (c *Client) Evaluate(npcID, text, sourceID string, elapsed int64) (affect.Coordinate, error) {
	data, err := c.do(http.MethodPost, "/api/npcs/"+url.PathEscape(npcID)+"/evaluate", map[string]any{
		"text":      text,
		"source_id": sourceID,
		"elapsed":   elapsed,
	})
	if err != nil {
		return affect.Coordinate{}, err
	}
	return decodeCoordinate(data)
}

// Emotion returns the NPC's aggregate, restricted to sourceID when it is
// non-empty.
func (c *Client) Emotion(npcID, sourceID string) (affect.Coordinate, error) {
	path := "/api/npcs/" + url.PathEscape(npcID) + "/emotion"
	if sourceID != "" {
		path += "?source=" + url.QueryEscape(sourceID)
	}
	data, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return affect.Coordinate{}, err
	}
	return decodeCoordinate(data)
}

// Memory returns the raw JSON memory list.
func (c *Client) Memory(npcID string) (json.RawMessage, error) {
	return c.do(http.MethodGet, "/api/npcs/"+url.PathEscape(npcID)+"/memory", nil)
}

// ClearMemory empties the NPC's memory.
func (c *Client) ClearMemory(npcID string) error {
	_, err := c.do(http.MethodDelete, "/api/npcs/"+url.PathEscape(npcID)+"/memory", nil)
	return err
}

// Advance moves the NPC's clock forward and returns the new value.
func (c *Client) Advance(npcID string, minutes int64) (int64, error) {
	data, err := c.do(http.MethodPost, "/api/npcs/"+url.PathEscape(npcID)+"/advance", map[string]int64{"minutes": minutes})
	if err != nil {
		return 0, err
	}
	var out struct {
		Clock int64 `json:"clock"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return 0, fmt.Errorf("decode clock: %w", err)
	}
	return out.Clock, nil
}

func decodeCoordinate(data json.RawMessage) (affect.Coordinate, error) {
	var c affect.Coordinate
	if err := json.Unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("decode coordinate: %w", err)
	}
	return c, nil
}
