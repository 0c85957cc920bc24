package cli

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/lazypower/affect/internal/affect"
	"github.com/lazypower/affect/internal/boundary"
	"github.com/lazypower/affect/internal/engine"
	"github.com/lazypower/affect/internal/inference"
	"github.com/lazypower/affect/internal/server"
	"github.com/lazypower/affect/internal/store"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(out, "affect dev") {
		t.Errorf("output = %q", out)
	}
}

func TestNpcCommands(t *testing.T) {
	e := engine.New(engine.Static(&inference.Mock{Default: affect.Coordinate{Valence: 0.6, Arousal: 0.2}}),
		engine.Options{BlendRatio: engine.DefaultBlendRatio, Logger: zerolog.Nop()})
	if err := e.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	t.Cleanup(func() { e.Close() })
	ts := httptest.NewServer(server.New(boundary.New(e, zerolog.Nop()), server.Options{Logger: zerolog.Nop()}))
	t.Cleanup(ts.Close)
	t.Setenv("AFFECT_URL", ts.URL)

	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "mira.yaml")
	if err := os.WriteFile(cfgFile, []byte("identity:\n  name: Mira\npersonality:\n  valence: 0.2\n  arousal: -0.1\n"), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	out, err := run(t, "npc", "create", cfgFile)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	id := strings.TrimSpace(out)
	if len(id) != 36 {
		t.Fatalf("create printed %q, want a uuid", out)
	}

	if out, err = run(t, "npc", "eval", id, "Thank", "you", "-s", "player", "-e", "4"); err != nil {
		t.Fatalf("eval: %v", err)
	}
	if !strings.Contains(out, "valence +0.400") {
		t.Errorf("eval output = %q", out)
	}

	if out, err = run(t, "npc", "memory", id, "-f", "yaml"); err != nil {
		t.Fatalf("memory: %v", err)
	}
	for _, want := range []string{"source_id: player", "text: Thank you", "created_at: 4"} {
		if !strings.Contains(out, want) {
			t.Errorf("memory output missing %q:\n%s", want, out)
		}
	}

	if out, err = run(t, "npc", "advance", id, "6"); err != nil || strings.TrimSpace(out) != "clock 10" {
		t.Errorf("advance = %q, %v", out, err)
	}

	if out, err = run(t, "npc", "ls"); err != nil || !strings.Contains(out, id) {
		t.Errorf("ls = %q, %v", out, err)
	}

	if _, err = run(t, "npc", "rm", id); err != nil {
		t.Fatalf("rm: %v", err)
	}
	if _, err = run(t, "npc", "emotion", id); err == nil {
		t.Error("emotion after rm: want error")
	}
}

func TestSnapshotsCommand(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "affect.db")
	t.Setenv("AFFECT_DB", dbPath)

	out, err := run(t, "--config", filepath.Join(dir, "missing.yaml"), "snapshots")
	if err != nil {
		t.Fatalf("snapshots: %v", err)
	}
	if !strings.Contains(out, "No persisted sessions.") {
		t.Errorf("output = %q", out)
	}

	db, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	err = db.SaveSnapshot(affect.Snapshot{
		ID:     "npc-1",
		Config: affect.NpcConfig{Identity: affect.Identity{Name: "Bram"}, Memory: affect.MemoryConfig{DecayRate: 0.1}},
		Clock:  3,
		NextID: 2,
		Memories: []affect.MemoryEntry{
			{ID: 1, SourceID: "player", Text: "Go away", Coordinate: affect.Coordinate{Valence: -0.5}, CreatedAt: 3},
		},
	})
	db.Close()
	if err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}

	if out, err = run(t, "snapshots"); err != nil || !strings.Contains(out, "npc-1  Bram") {
		t.Errorf("snapshots = %q, %v", out, err)
	}
	if out, err = run(t, "snapshots", "export", "npc-1"); err != nil {
		t.Fatalf("export: %v", err)
	}
	for _, want := range []string{"name: Bram", "decay_rate: 0.1", "text: Go away"} {
		if !strings.Contains(out, want) {
			t.Errorf("export missing %q:\n%s", want, out)
		}
	}
	if _, err = run(t, "snapshots", "export", "npc-2"); err == nil {
		t.Error("export of unknown id: want error")
	}
}

func TestStopEngineCheckpoints(t *testing.T) {
	db, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer db.Close()

	eng := engine.New(engine.Static(&inference.Mock{}), engine.Options{Logger: zerolog.Nop()})
	eng.SetPersister(db)
	if err := eng.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	cfg := affect.DefaultNpcConfig()
	cfg.Identity.Name = "Mira"
	id, err := eng.CreateSession(cfg, nil)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if _, err := eng.Evaluate(context.Background(), id, "hello", "player", 3); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	stopEngine(eng, zerolog.Nop())

	snap, err := db.LoadSnapshot(id)
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if snap == nil || len(snap.Memories) != 1 || snap.Clock != 3 {
		t.Fatalf("snapshot = %+v, want one memory at clock 3", snap)
	}
	if eng.Initialized() {
		t.Error("engine still initialized after stop")
	}
}
