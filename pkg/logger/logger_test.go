package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    LogLevel
		wantErr bool
	}{
		{"DEBUG", DEBUG, false},
		{"info", INFO, false},
		{"", INFO, false},
		{" warn ", WARN, false},
		{"WARNING", WARN, false},
		{"ERROR", ERROR, false},
		{"verbose", INFO, true},
	}

	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestSetFileWritesEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "server.log")

	l := New("TEST")
	if err := l.SetFile(path); err != nil {
		t.Fatalf("SetFile: %v", err)
	}
	l.With("session", 7).Info("game %q created", "alpha")
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	out := string(data)
	for _, want := range []string{"TEST", `game "alpha" created`, "session"} {
		if !strings.Contains(out, want) {
			t.Errorf("log file missing %q:\n%s", want, out)
		}
	}
}

func TestGlobalLevelFiltersDebug(t *testing.T) {
	defer SetGlobalLogLevel(INFO)

	path := filepath.Join(t.TempDir(), "level.log")
	l := New("LEVEL")
	if err := l.SetFile(path); err != nil {
		t.Fatalf("SetFile: %v", err)
	}

	SetGlobalLogLevel(WARN)
	l.Info("hidden")
	l.Warn("shown")
	l.Close()

	data, _ := os.ReadFile(path)
	if strings.Contains(string(data), "hidden") {
		t.Errorf("info entry written at WARN level:\n%s", data)
	}
	if !strings.Contains(string(data), "shown") {
		t.Errorf("warn entry missing:\n%s", data)
	}
}

func TestFatalExits(t *testing.T) {
	code := -1
	l := NewNop()
	l.exit = func(c int) { code = c }
	l.Fatal("boom")
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
}
