package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func TestLoadYAMLWithWrappers(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "config.yaml")
	data := `
server:
  address: "127.0.0.1"
  port: 9090
storage:
  db_path: "/tmp/recalld-db"
security:
  ask_key: "secret"
llm:
  model: "gemini-2.0-flash"
  api_key: "k"
  timeout: "30s"
  max_output_bytes: "64KB"
janitor:
  enabled: true
  cron: "0 3 * * *"
`
	if err := os.WriteFile(p, []byte(data), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr() != "127.0.0.1:9090" {
		t.Fatalf("Addr: %s", cfg.Addr())
	}
	if cfg.LLM.Timeout.Duration() != 30*time.Second {
		t.Fatalf("timeout: %v", cfg.LLM.Timeout.Duration())
	}
	if cfg.LLM.MaxOutputBytes.Int64() != 64*1000 && cfg.LLM.MaxOutputBytes.Int64() != 64*1024 {
		t.Fatalf("max_output_bytes: %d", cfg.LLM.MaxOutputBytes.Int64())
	}
	if !cfg.Janitor.Enabled || cfg.Janitor.Cron != "0 3 * * *" {
		t.Fatalf("janitor: %+v", cfg.Janitor)
	}
	if cfg.Security.AskKey != "secret" {
		t.Fatalf("ask_key: %q", cfg.Security.AskKey)
	}
}

func TestEnvOverridesWin(t *testing.T) {
	t.Setenv("RECALLD_ADDR", "0.0.0.0:7070")
	t.Setenv("RECALLD_DB_PATH", "/env/db")
	t.Setenv("RECALLD_ASK_KEY", "env-ask")
	t.Setenv("RECALLD_API_BACKEND_KEYS", "bk1, bk2")

	cfg := &Config{}
	keys, envUsed := LoadEnvOverrides(cfg)
	if !envUsed {
		t.Fatalf("env not detected")
	}
	if cfg.Server.Address != "0.0.0.0" || cfg.Server.Port != 7070 {
		t.Fatalf("addr override: %+v", cfg.Server)
	}
	if cfg.Storage.DBPath != "/env/db" {
		t.Fatalf("db override: %q", cfg.Storage.DBPath)
	}
	if cfg.Security.AskKey != "env-ask" {
		t.Fatalf("ask override: %q", cfg.Security.AskKey)
	}
	if _, ok := keys["bk1"]; !ok {
		t.Fatalf("backend keys not parsed: %v", keys)
	}
	if _, ok := keys["bk2"]; !ok {
		t.Fatalf("backend keys not trimmed: %v", keys)
	}
}

func TestResolveEffectivePrecedence(t *testing.T) {
	cfg := &Config{}
	cfg.Server.Address = "10.0.0.1"
	cfg.Server.Port = 9999
	cfg.Storage.DBPath = "/cfg/db"

	// flags win
	eff := ResolveEffective(cfg, ":1234", "/flag/db", map[string]bool{"addr": true, "db": true}, false)
	if eff.Addr != ":1234" || eff.DBPath != "/flag/db" || eff.Source != "flags" {
		t.Fatalf("flags precedence: %+v", eff)
	}

	// config wins when flags unset
	eff = ResolveEffective(cfg, ":8080", "./.database", map[string]bool{}, false)
	if eff.Addr != "10.0.0.1:9999" || eff.DBPath != "/cfg/db" || eff.Source != "config" {
		t.Fatalf("config precedence: %+v", eff)
	}

	// env marks source
	eff = ResolveEffective(cfg, ":8080", "./.database", map[string]bool{}, true)
	if eff.Source != "env" {
		t.Fatalf("env source: %+v", eff)
	}
}

func TestDurationParsesNumericSeconds(t *testing.T) {
	var d Duration
	node := &yaml.Node{Kind: yaml.ScalarNode, Value: "2.5"}
	if err := d.UnmarshalYAML(node); err != nil {
		t.Fatalf("UnmarshalYAML: %v", err)
	}
	if d.Duration() != 2500*time.Millisecond {
		t.Fatalf("numeric seconds: %v", d.Duration())
	}
}

func TestRuntimeConfigAccessors(t *testing.T) {
	SetRuntime(&RuntimeConfig{
		BackendKeys: map[string]struct{}{"bk": {}},
		AskKey:      "ask",
	})
	if GetAskKey() != "ask" {
		t.Fatalf("GetAskKey: %q", GetAskKey())
	}
	keys := GetBackendKeys()
	if _, ok := keys["bk"]; !ok {
		t.Fatalf("GetBackendKeys: %v", keys)
	}
}
