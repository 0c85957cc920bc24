package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/lazypower/affect/internal/affect"
	"github.com/lazypower/affect/internal/inference"
)

const createBody = `{
	"config": {
		"identity": {"name": "Mira", "background": "Innkeeper"},
		"personality": {"valence": 0.2, "arousal": -0.1},
		"memory": {"decay_rate": 0.1}
	}
}`

func createNPC(t *testing.T, srv http.Handler) string {
	t.Helper()
	w := do(t, srv, "POST", "/api/npcs", createBody)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: status = %d, body: %s", w.Code, w.Body.String())
	}
	var out struct {
		NpcID string `json:"npc_id"`
	}
	if err := json.Unmarshal(decode(t, w).Data, &out); err != nil {
		t.Fatalf("decode npc_id: %v", err)
	}
	return out.NpcID
}

func TestNPCLifecycle(t *testing.T) {
	mock := &inference.Mock{Responses: map[string]inference.MockResult{
		"Thank you for saving my life": {Coordinate: affect.Coordinate{Valence: 0.9, Arousal: 0.7}},
	}}
	srv, a := testServer(t, mock)
	do(t, srv, "POST", "/api/initialize", "")
	id := createNPC(t, srv)

	w := do(t, srv, "POST", "/api/npcs/"+id+"/evaluate", `{"text":"Thank you for saving my life","source_id":"player"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("evaluate: status = %d, body: %s", w.Code, w.Body.String())
	}
	var c affect.Coordinate
	if err := json.Unmarshal(decode(t, w).Data, &c); err != nil {
		t.Fatalf("decode coordinate: %v", err)
	}
	if c.Valence < 0.549 || c.Valence > 0.551 {
		t.Errorf("valence = %v, want 0.55", c.Valence)
	}

	w = do(t, srv, "GET", "/api/npcs/"+id+"/memory", "")
	var mem []map[string]any
	if err := json.Unmarshal(decode(t, w).Data, &mem); err != nil {
		t.Fatalf("decode memory: %v", err)
	}
	if len(mem) != 1 || mem[0]["source_id"] != "player" {
		t.Fatalf("memory = %v", mem)
	}

	w = do(t, srv, "GET", "/api/npcs/"+id+"/emotion?source=stranger", "")
	if err := json.Unmarshal(decode(t, w).Data, &c); err != nil {
		t.Fatalf("decode emotion: %v", err)
	}
	if c != (affect.Coordinate{Valence: 0.2, Arousal: -0.1}) {
		t.Errorf("stranger emotion = %v, want personality", c)
	}

	w = do(t, srv, "GET", "/api/npcs/"+id+"/emotion", "")
	if w.Code != http.StatusOK {
		t.Fatalf("emotion: status = %d", w.Code)
	}

	w = do(t, srv, "POST", "/api/npcs/"+id+"/advance", `{"minutes":45}`)
	if !strings.Contains(string(decode(t, w).Data), `"clock":45`) {
		t.Errorf("advance body = %s", w.Body.String())
	}

	w = do(t, srv, "GET", "/api/npcs", "")
	if !strings.Contains(w.Body.String(), id) {
		t.Errorf("list missing %s: %s", id, w.Body.String())
	}

	if w = do(t, srv, "DELETE", "/api/npcs/"+id+"/memory", ""); w.Code != http.StatusOK {
		t.Fatalf("clear: status = %d", w.Code)
	}
	w = do(t, srv, "GET", "/api/npcs/"+id+"/memory", "")
	if string(decode(t, w).Data) != "[]" {
		t.Errorf("memory after clear = %s", w.Body.String())
	}

	if w = do(t, srv, "DELETE", "/api/npcs/"+id, ""); w.Code != http.StatusOK {
		t.Fatalf("remove: status = %d, body: %s", w.Code, w.Body.String())
	}
	if w = do(t, srv, "GET", "/api/npcs/"+id+"/emotion", ""); w.Code != http.StatusNotFound {
		t.Errorf("emotion after remove: status = %d, want 404", w.Code)
	}

	if n := a.Outstanding(); n != 0 {
		t.Errorf("outstanding handles = %d, want 0", n)
	}
}

func TestCreateNPCErrors(t *testing.T) {
	srv, _ := testServer(t, &inference.Mock{})
	do(t, srv, "POST", "/api/initialize", "")

	tests := []struct {
		name string
		body string
		want int
	}{
		{"not json", `nope`, http.StatusBadRequest},
		{"missing config", `{}`, http.StatusBadRequest},
		{"bad personality", `{"config":{"identity":{"name":"x"},"personality":{"valence":9}}}`, http.StatusBadRequest},
		{"bad memories", `{"config":{"identity":{"name":"x"}},"memories":[{"text":"a","valence":0,"arousal":0,"created_at":-4}]}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := do(t, srv, "POST", "/api/npcs", tt.body); w.Code != tt.want {
				t.Errorf("status = %d, want %d; body: %s", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestEvaluateErrors(t *testing.T) {
	mock := &inference.Mock{Responses: map[string]inference.MockResult{
		"boom": {Err: errors.New("model offline")},
	}}
	srv, _ := testServer(t, mock)
	do(t, srv, "POST", "/api/initialize", "")
	id := createNPC(t, srv)

	tests := []struct {
		name string
		path string
		body string
		want int
	}{
		{"unknown npc", "/api/npcs/nope/evaluate", `{"text":"hi"}`, http.StatusNotFound},
		{"too long", "/api/npcs/" + id + "/evaluate", `{"text":"` + strings.Repeat("a", 513) + `"}`, http.StatusBadRequest},
		{"negative elapsed", "/api/npcs/" + id + "/evaluate", `{"text":"hi","elapsed":-1}`, http.StatusBadRequest},
		{"inference down", "/api/npcs/" + id + "/evaluate", `{"text":"boom"}`, http.StatusBadGateway},
		{"bad json", "/api/npcs/" + id + "/evaluate", `{"text":`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := do(t, srv, "POST", tt.path, tt.body); w.Code != tt.want {
				t.Errorf("status = %d, want %d; body: %s", w.Code, tt.want, w.Body.String())
			}
		})
	}

	w := do(t, srv, "GET", "/api/npcs/"+id+"/memory", "")
	if string(decode(t, w).Data) != "[]" {
		t.Errorf("failed evaluations left memories: %s", w.Body.String())
	}
}

func TestEvaluateTimeout(t *testing.T) {
	mock := &inference.Mock{Block: make(chan struct{})}
	defer close(mock.Block)
	srv, _ := testServer(t, mock)
	srv.timeout = 20 * time.Millisecond
	do(t, srv, "POST", "/api/initialize", "")
	id := createNPC(t, srv)

	w := do(t, srv, "POST", "/api/npcs/"+id+"/evaluate", `{"text":"hello"}`)
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadGateway)
	}
	if p := decode(t, w); p.Kind != affect.KindInferenceUnavailable {
		t.Errorf("kind = %q", p.Kind)
	}
}
