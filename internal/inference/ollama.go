package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/lazypower/affect/internal/affect"
)

// Ollama calls a local Ollama instance.
type Ollama struct {
	url    string
	model  string
	client *http.Client
}

// NewOllama creates a new Ollama predictor.
func NewOllama(url, model string) *Ollama {
	return &Ollama{
		url:    url,
		model:  model,
		client: &http.Client{Timeout: 120 * time.Second},
	}
}

// Predict sends the reading prompt to Ollama's generate endpoint in JSON mode.
func (o *Ollama) Predict(ctx context.Context, text string) (affect.Coordinate, error) {
	reqBody := map[string]any{
		"model":  o.model,
		"system": systemPrompt,
		"prompt": dialogue(text),
		"format": "json",
		"stream": false,
		"options": map[string]any{
			"temperature": 0,
			"num_predict": 64,
		},
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return affect.Coordinate{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", o.url+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return affect.Coordinate{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return affect.Coordinate{}, fmt.Errorf("ollama api: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return affect.Coordinate{}, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return affect.Coordinate{}, fmt.Errorf("ollama api status %d: %s", resp.StatusCode, respBody)
	}

	var result struct {
		Response string `json:"response"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return affect.Coordinate{}, fmt.Errorf("decode response: %w", err)
	}

	return parseReading(result.Response)
}
