package config

import (
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"robohost/server/domain"
)

const yamlConfig = `
log_level: debug
seed: 42
server:
  port: "7070"
  ping_interval_ms: 2500
arena:
  width: 1000
  rounds: 3
  paint_enabled: true
  byte_order: big
robots:
  - kind: rulebot
    name: alpha
    team: blue
  - kind: sittingduck
`

const tomlConfig = `
results_db = "/tmp/results.db"

[arena]
seats = 4
max_turns = 500

[proxy]
max_calls = 5000

[[robots]]
kind = "spinner"
name = "s1"
`

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"ROBOHOST_CONFIG", "ADDR", "PORT", "LOG_LEVEL", "RECORD_DIR", "RESULTS_DB", "ENGINE_URL", "SEATS", "ROUNDS", "PAINT_ENABLED", "PING_INTERVAL"} {
		t.Setenv(k, "")
	}
}

func TestLoadYAML(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(writeFile(t, "robohost.yaml", yamlConfig))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Level() != slog.LevelDebug {
		t.Errorf("Level = %v, want debug", cfg.Level())
	}
	if cfg.ListenAddr() != "localhost:7070" {
		t.Errorf("ListenAddr = %s, want localhost:7070", cfg.ListenAddr())
	}
	if cfg.PingInterval() != 2500*time.Millisecond {
		t.Errorf("PingInterval = %v, want 2.5s", cfg.PingInterval())
	}
	ec := cfg.EngineConfig(nil)
	if ec.Width != 1000 || ec.Height != 600 || ec.Rounds != 3 || !ec.PaintEnabled || ec.Seed != 42 {
		t.Errorf("engine config = %+v", ec)
	}
	if ec.ByteOrder != domain.BigEndian {
		t.Errorf("ByteOrder = %s, want big", ec.ByteOrder)
	}
	if po := cfg.ProxyOptions(nil); po.ByteOrder != domain.BigEndian {
		t.Errorf("proxy ByteOrder = %s, want big", po.ByteOrder)
	}
	if len(cfg.Robots) != 2 || cfg.Robots[0].Team != "blue" || cfg.Robots[1].Kind != "sittingduck" {
		t.Errorf("robots = %+v", cfg.Robots)
	}
}

func TestLoadTOML(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(writeFile(t, "robohost.toml", tomlConfig))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.ResultsDB != "/tmp/results.db" || cfg.Arena.Seats != 4 || cfg.Arena.MaxTurns != 500 {
		t.Errorf("config = %+v", cfg)
	}
	if po := cfg.ProxyOptions(nil); po.MaxCalls != 5000 {
		t.Errorf("MaxCalls = %d, want 5000", po.MaxCalls)
	}
	if len(cfg.Robots) != 1 || cfg.Robots[0].Name != "s1" {
		t.Errorf("robots = %+v", cfg.Robots)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	clearEnv(t)
	tests := []struct {
		name string
		file string
		body string
	}{
		{name: "unknown robot kind", file: "a.yaml", body: "robots:\n  - kind: tank\n"},
		{name: "unknown field", file: "b.yaml", body: "arena:\n  depth: 3\n"},
		{name: "tiny battlefield", file: "c.toml", body: "[arena]\nwidth = 10\n"},
		{name: "bad port", file: "d.json", body: `{"server": {"port": "http"}}`},
		{name: "wrong type", file: "e.yaml", body: "arena:\n  rounds: many\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeFile(t, tt.file, tt.body)); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestLoadUnsupportedFormat(t *testing.T) {
	clearEnv(t)
	if _, err := Load(writeFile(t, "robohost.ini", "x=1")); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("got %v, want ErrUnsupportedFormat", err)
	}
}

func TestLoadDefaultsAndEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "8181")
	t.Setenv("ENGINE_URL", "ws://engine:9090/ws")
	t.Setenv("SEATS", "3")
	t.Setenv("PING_INTERVAL", "1s")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != "8181" || cfg.EngineURL != "ws://engine:9090/ws" || cfg.Arena.Seats != 3 {
		t.Errorf("config = %+v", cfg)
	}
	if cfg.PingInterval() != time.Second {
		t.Errorf("PingInterval = %v, want 1s", cfg.PingInterval())
	}
	if len(cfg.Robots) != 2 {
		t.Errorf("got %d default robots, want 2", len(cfg.Robots))
	}
}

func TestLoadFromEnvPath(t *testing.T) {
	clearEnv(t)
	t.Setenv("ROBOHOST_CONFIG", writeFile(t, "env.yaml", "arena:\n  rounds: 7\n"))
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Arena.Rounds != 7 {
		t.Errorf("Rounds = %d, want 7", cfg.Arena.Rounds)
	}
}

func TestEmptyFileKeepsDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(writeFile(t, "empty.yaml", ""))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Arena != Default().Arena {
		t.Errorf("arena = %+v, want defaults", cfg.Arena)
	}
}

func TestDefaultMatchesSchema(t *testing.T) {
	raw, err := json.Marshal(Default())
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	cfg := Config{}
	if err := Decode(raw, ".json", &cfg); err != nil {
		t.Fatalf("defaults do not pass the schema: %v", err)
	}
	if cfg.Arena != Default().Arena {
		t.Errorf("arena = %+v, want defaults", cfg.Arena)
	}
}
