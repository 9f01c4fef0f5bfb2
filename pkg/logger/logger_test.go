package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestLogger(t *testing.T, level LogLevel, areas ...LogArea) *Logger {
	t.Helper()
	l := &Logger{
		areaEnabled:   make(map[LogArea]*int32),
		logPath:       filepath.Join(t.TempDir(), "logs", "test.log"),
		maxSizeMB:     10,
		rotationCount: 3,
		enabled:       1,
		level:         int32(level),
	}
	for _, area := range allAreas {
		l.areaEnabled[area] = new(int32)
	}
	for _, area := range areas {
		*l.areaEnabled[area] = 1
	}
	if err := l.openLogFile(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { l.file.Close() })
	return l
}

func TestShouldLog(t *testing.T) {
	l := newTestLogger(t, INFO, AreaHistory)

	tests := []struct {
		name     string
		level    LogLevel
		area     LogArea
		expected bool
	}{
		{name: "enabled area at level", level: INFO, area: AreaHistory, expected: true},
		{name: "enabled area above level", level: ERROR, area: AreaHistory, expected: true},
		{name: "enabled area below level", level: DEBUG, area: AreaHistory, expected: false},
		{name: "disabled area", level: ERROR, area: AreaCalc, expected: false},
		{name: "unknown area", level: ERROR, area: LogArea("nope"), expected: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := l.shouldLog(tt.level, tt.area); got != tt.expected {
				t.Errorf("shouldLog(%s, %s) = %v, want %v", tt.level, tt.area, got, tt.expected)
			}
		})
	}

	l.enabled = 0
	if l.shouldLog(ERROR, AreaHistory) {
		t.Error("shouldLog with logging disabled = true")
	}
}

func TestWriteLog(t *testing.T) {
	l := newTestLogger(t, DEBUG, AreaCalc)
	l.writeLog(INFO, AreaCalc, "evaluated %q", "1+2")

	data, err := os.ReadFile(l.logPath)
	if err != nil {
		t.Fatal(err)
	}
	line := string(data)
	if !strings.Contains(line, "INFO") || !strings.Contains(line, "[CALC]") || !strings.Contains(line, `evaluated "1+2"`) {
		t.Errorf("unexpected log line %q", line)
	}
}

func TestRotation(t *testing.T) {
	l := newTestLogger(t, DEBUG, AreaGeneral)
	l.maxSizeMB = 0
	l.writeLog(INFO, AreaGeneral, "first")

	l.mutex.Lock()
	if err := l.rotateLocked(); err != nil {
		l.mutex.Unlock()
		t.Fatal(err)
	}
	l.mutex.Unlock()
	l.writeLog(INFO, AreaGeneral, "second")

	rotated, err := os.ReadFile(l.logPath + ".1")
	if err != nil {
		t.Fatal(err)
	}
	current, err := os.ReadFile(l.logPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(rotated), "first") || strings.Contains(string(current), "first") {
		t.Errorf("rotation mixed up entries: rotated=%q current=%q", rotated, current)
	}
	if !strings.Contains(string(current), "second") {
		t.Errorf("current log = %q, want the second entry", current)
	}
}

func TestFormatEntry(t *testing.T) {
	now := time.Date(2024, 5, 6, 7, 8, 9, 10_000_000, time.UTC)
	got := formatEntry(now, WARN, "/src/pkg/session/session.go", 42, AreaSession, "hello")
	want := "[2024-05-06 07:08:09.010] WARN [session.go:42] [SESSION] hello\n"
	if got != want {
		t.Errorf("formatEntry = %q, want %q", got, want)
	}
}

func TestParseLogLevel(t *testing.T) {
	for input, want := range map[string]LogLevel{
		"debug": DEBUG, "INFO": INFO, "warning": WARN, "Error": ERROR, "fatal": FATAL, "bogus": INFO,
	} {
		if got := parseLogLevel(input); got != want {
			t.Errorf("parseLogLevel(%q) = %s, want %s", input, got, want)
		}
	}
}

func TestPackageFunctionsBeforeInitialize(t *testing.T) {
	// Must not panic or write anything without a global logger.
	Debug(AreaCalc, "ignored")
	Info(AreaSession, "ignored")
	Warn(AreaHistory, "ignored")
	Error(AreaWebSocket, "ignored")
	EnableArea(AreaCalc)
	if GetAreaStatus(AreaCalc) {
		t.Error("GetAreaStatus without logger = true")
	}
	if len(ListAreas()) != len(allAreas) {
		t.Errorf("ListAreas returned %d areas", len(ListAreas()))
	}
}
