package configuration

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadConfigCreatesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "calc.cfg")

	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default config file not written: %v", err)
	}
	if v, ok := cfg.get("Calc", "output_prefix"); !ok || v != `\t` {
		t.Errorf("Calc.output_prefix = %q, %v", v, ok)
	}

	// The written file must load back to the same values.
	reloaded, err := loadConfig(path)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if v, _ := reloaded.get("Network", "pong_timeout"); v != "90s" {
		t.Errorf("Network.pong_timeout after reload = %q", v)
	}
}

func TestParseSectionsAndComments(t *testing.T) {
	cfg := &Config{settings: make(map[string]map[string]string)}
	input := `
; comment
# another comment
[Calc]
output_prefix = >>
max_line_length=12

after_blank = kept
[Debug]
log_level = DEBUG
`
	if err := cfg.parse(strings.NewReader(input)); err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	tests := []struct {
		section, key, want string
	}{
		{"Calc", "output_prefix", ">>"},
		{"Calc", "max_line_length", "12"},
		{"Debug", "log_level", "DEBUG"},
	}
	for _, tt := range tests {
		if got, _ := cfg.get(tt.section, tt.key); got != tt.want {
			t.Errorf("%s.%s = %q, want %q", tt.section, tt.key, got, tt.want)
		}
	}
	if _, ok := cfg.get("Calc", "after_blank"); !ok {
		t.Error("key after blank line should stay in the current section")
	}
}

func TestTypedGetters(t *testing.T) {
	UseDefaults()
	defer func() { globalConfig = nil }()

	if got := GetInt("Server", "max_sessions", 0); got != 100 {
		t.Errorf("GetInt = %d, want 100", got)
	}
	if got := GetBool("Transcript", "enabled", true); got {
		t.Error("GetBool(Transcript.enabled) should be false")
	}
	if got := GetDuration("Server", "max_inactive_time", 0); got != 30*time.Minute {
		t.Errorf("GetDuration = %v, want 30m", got)
	}
	if got := GetUnquoted("Calc", "output_prefix", ""); got != "\t" {
		t.Errorf("GetUnquoted = %q, want tab", got)
	}
	if got := GetInt("Calc", "missing", 7); got != 7 {
		t.Errorf("default not returned for missing key: %d", got)
	}

	SetString("Calc", "max_line_length", "not-a-number")
	if got := GetInt("Calc", "max_line_length", 42); got != 42 {
		t.Errorf("default not returned for malformed value: %d", got)
	}

	section := GetSection("JWT")
	section["secret_key"] = "changed"
	if GetString("JWT", "secret_key", "") == "changed" {
		t.Error("GetSection must return a copy")
	}
}

func TestGettersWithoutConfig(t *testing.T) {
	globalConfig = nil
	if got := GetString("Calc", "output_prefix", "x"); got != "x" {
		t.Errorf("GetString without config = %q", got)
	}
	if err := Save(); err == nil {
		t.Error("Save without config should fail")
	}
}
