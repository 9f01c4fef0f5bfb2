package configuration

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestParseINI(t *testing.T) {
	input := `
; comment
# another comment
orphan = ignored
[Calculator]
error_indicator = Err
  default_mode=scientific

[ History ]
path = /tmp/a=b.db
`
	settings := make(map[string]map[string]string)
	if err := parseINI(strings.NewReader(input), settings); err != nil {
		t.Fatal(err)
	}

	expected := map[string]map[string]string{
		"Calculator": {"error_indicator": "Err", "default_mode": "scientific"},
		"History":    {"path": "/tmp/a=b.db"},
	}
	if diff := cmp.Diff(expected, settings); diff != "" {
		t.Errorf("parseINI mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadConfigCreatesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "settings.cfg")

	config, err := loadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default config was not written: %v", err)
	}

	reloaded, err := loadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(config.settings, reloaded.settings); diff != "" {
		t.Errorf("saved defaults do not round-trip (-created +reloaded):\n%s", diff)
	}
	if got := reloaded.settings["Calculator"]["error_indicator"]; got != "Error" {
		t.Errorf("error_indicator = %q, want Error", got)
	}
}

func TestLocalOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.cfg")
	if err := os.WriteFile(path, []byte("[History]\nbackend = memory\nmax_entries = 10\n"), 0644); err != nil {
		t.Fatal(err)
	}
	local := filepath.Join(dir, LocalOverrideFile)
	if err := os.WriteFile(local, []byte("[History]\nbackend = bolt\n"), 0644); err != nil {
		t.Fatal(err)
	}

	config, err := loadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := config.loadLocalConfig(local); err != nil {
		t.Fatal(err)
	}

	expected := map[string]string{"backend": "bolt", "max_entries": "10"}
	if diff := cmp.Diff(expected, config.settings["History"]); diff != "" {
		t.Errorf("override mismatch (-want +got):\n%s", diff)
	}
}

func TestGettersWithoutConfig(t *testing.T) {
	saved := globalConfig
	globalConfig = nil
	defer func() { globalConfig = saved }()

	if got := GetString("Calculator", "error_indicator", "Error"); got != "Error" {
		t.Errorf("GetString = %q", got)
	}
	if got := GetInt("History", "max_entries", 1000); got != 1000 {
		t.Errorf("GetInt = %d", got)
	}
	if got := GetDuration("Network", "pong_timeout", time.Minute); got != time.Minute {
		t.Errorf("GetDuration = %v", got)
	}
	if got := GetSection("Debug"); len(got) != 0 {
		t.Errorf("GetSection = %v, want empty", got)
	}
	if err := Save(); err == nil {
		t.Error("Save without config succeeded")
	}
}

func TestTypedGetters(t *testing.T) {
	saved := globalConfig
	globalConfig = &Config{settings: map[string]map[string]string{
		"Security": {
			"max_clients":       "7",
			"rate_limit_window": "30s",
			"bad_int":           "seven",
		},
		"TLS":   {"enabled": "true"},
		"Ratio": {"factor": "0.25"},
	}}
	defer func() { globalConfig = saved }()

	if got := GetInt("Security", "max_clients", 100); got != 7 {
		t.Errorf("GetInt = %d, want 7", got)
	}
	if got := GetInt("Security", "bad_int", 3); got != 3 {
		t.Errorf("GetInt on malformed value = %d, want default 3", got)
	}
	if got := GetDuration("Security", "rate_limit_window", time.Minute); got != 30*time.Second {
		t.Errorf("GetDuration = %v, want 30s", got)
	}
	if got := GetBool("TLS", "enabled", false); !got {
		t.Error("GetBool = false, want true")
	}
	if got := GetFloat("Ratio", "factor", 1); got != 0.25 {
		t.Errorf("GetFloat = %v, want 0.25", got)
	}

	SetString("Calculator", "error_indicator", "ERR")
	if got := GetString("Calculator", "error_indicator", "Error"); got != "ERR" {
		t.Errorf("GetString after SetString = %q, want ERR", got)
	}
}
