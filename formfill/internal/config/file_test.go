package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFile(t *testing.T) {
	// WHAT: A YAML file is loaded and defaults fill the gaps.
	// WHY: Operators only write what they change.
	path := filepath.Join(t.TempDir(), "formfill.yaml")
	data := `
browser:
  stealth: headful
  recycle_interval: 1h
llm:
  provider: ollama
  model: llama3
  url: http://localhost:11434
  timeout: 20s
fill:
  delay: -1ms
store:
  profiles: /tmp/p.db
  history: /tmp/h.db
sinks:
  - type: webhook
    url: http://example.com/hook
aliases: aliases.yaml
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Browser.Stealth != "headful" || cfg.Browser.RecycleInterval != time.Hour {
		t.Errorf("browser = %+v", cfg.Browser)
	}
	if cfg.Browser.MemoryLimit != 1<<30 {
		t.Errorf("memory limit default = %d", cfg.Browser.MemoryLimit)
	}
	if cfg.LLM.Provider != "ollama" || cfg.LLM.Timeout != 20*time.Second || cfg.LLM.Retries != 2 {
		t.Errorf("llm = %+v", cfg.LLM)
	}
	if cfg.Fill.Delay != 0 {
		t.Errorf("negative delay should disable pacing, got %v", cfg.Fill.Delay)
	}
	if cfg.Store.History != "/tmp/h.db" {
		t.Errorf("store = %+v", cfg.Store)
	}
	if len(cfg.Sinks) != 1 || cfg.Sinks[0].Type != "webhook" {
		t.Errorf("sinks = %+v", cfg.Sinks)
	}
	if cfg.Aliases != "aliases.yaml" {
		t.Errorf("aliases = %q", cfg.Aliases)
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Fill.Delay != 50*time.Millisecond {
		t.Errorf("delay = %v", cfg.Fill.Delay)
	}
	if cfg.LLM.Provider != "gemini" || cfg.HTTP.Addr != ":8089" {
		t.Errorf("cfg = %+v", cfg)
	}
	if len(cfg.Sinks) != 1 || cfg.Sinks[0].Type != "stdout" {
		t.Errorf("sinks = %+v", cfg.Sinks)
	}
}

func TestLoadFile_Invalid(t *testing.T) {
	// WHAT: Malformed YAML is an error.
	// WHY: A typo must fail at start, not on the first pass.
	path := filepath.Join(t.TempDir(), "bad.yaml")
	os.WriteFile(path, []byte("browser: [\n"), 0o644)
	if _, err := LoadFile(path); err == nil {
		t.Fatal("expected parse error")
	}
}
