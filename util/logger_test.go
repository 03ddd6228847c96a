package util

import (
	"bytes"
	"strings"
	"testing"
)

func TestLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(3) // debug level
	l.SetOutput(&buf)
	l.SetTimestamps(false)

	l.Error("e")
	l.Warn("w")
	l.Info("i")
	l.Verbose("v")
	l.Debug("d")

	output := buf.String()
	lines := strings.Split(strings.TrimSpace(output), "\n")
	if len(lines) != 5 {
		t.Fatalf("expected 5 lines, got %d:\n%s", len(lines), output)
	}

	wantPrefixes := []string{"[ERR]", "[WRN]", "[INF]", "[VRB]", "[DBG]"}
	for i, prefix := range wantPrefixes {
		if !strings.Contains(lines[i], prefix) {
			t.Errorf("line %d %q missing prefix %q", i, lines[i], prefix)
		}
	}
}

func TestLogger_QuietMode(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(0) // quiet
	l.SetOutput(&buf)
	l.SetTimestamps(false)

	l.Info("should not appear")
	l.Verbose("should not appear")
	l.Debug("should not appear")
	l.Error("always appears")

	output := buf.String()
	lines := strings.Split(strings.TrimSpace(output), "\n")
	if len(lines) != 1 {
		t.Errorf("expected 1 line in quiet mode, got %d:\n%s", len(lines), output)
	}
}

func TestLogger_Timestamps(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(1)
	l.SetOutput(&buf)
	l.SetTimestamps(true)

	l.Info("test")

	output := buf.String()
	// Timestamp format is "HH:MM:SS.mmm"
	if !strings.Contains(output, ":") || len(output) < 15 {
		t.Errorf("expected timestamp prefix, got %q", output)
	}
}

func TestLogger_AttachFormat(t *testing.T) {
	var local, remote bytes.Buffer
	l := NewLogger(0)
	l.SetOutput(&local)

	detach := l.Attach(&remote, LogDebug)
	l.Warn("disk almost full")
	l.Debug("tick %d", 7)
	detach()

	want := "WARNING  disk almost full\nDEBUG    tick 7\n"
	if got := remote.String(); got != want {
		t.Errorf("sink output = %q, want %q", got, want)
	}
	if local.Len() != 0 {
		t.Errorf("quiet logger wrote locally: %q", local.String())
	}
}

func TestLogger_AttachLevelFilter(t *testing.T) {
	var remote bytes.Buffer
	l := NewLogger(3)
	l.SetOutput(&bytes.Buffer{})

	detach := l.Attach(&remote, LogNormal)
	defer detach()

	l.Info("kept")
	l.Verbose("dropped")
	l.Debug("dropped")
	l.Error("kept")

	lines := strings.Split(strings.TrimSpace(remote.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 forwarded lines, got %d: %q", len(lines), remote.String())
	}
	if !strings.HasPrefix(lines[0], "INFO ") || !strings.HasPrefix(lines[1], "ERROR ") {
		t.Errorf("unexpected lines: %q", lines)
	}
}

func TestLogger_AttachWarningLevel(t *testing.T) {
	tests := []struct {
		level LogLevel
		want  string
	}{
		{LogQuiet, "ERROR    e\n"},
		{LogWarn, "WARNING  w\nERROR    e\n"},
		{LogNormal, "WARNING  w\nINFO     i\nERROR    e\n"},
	}
	for _, tt := range tests {
		t.Run(tt.level.String(), func(t *testing.T) {
			var remote bytes.Buffer
			l := NewLogger(int(LogQuiet))
			l.SetOutput(&bytes.Buffer{})
			detach := l.Attach(&remote, tt.level)
			defer detach()

			l.Warn("w")
			l.Info("i")
			l.Verbose("v")
			l.Error("e")

			if got := remote.String(); got != tt.want {
				t.Errorf("forwarded = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLogger_WarnLevelLocally(t *testing.T) {
	var local bytes.Buffer
	l := NewLogger(int(LogWarn))
	l.SetOutput(&local)

	l.Info("hidden")
	l.Warn("shown")
	if got := local.String(); got != "[WRN] shown\n" {
		t.Errorf("output = %q", got)
	}
}

func TestLogger_DetachRestoresCount(t *testing.T) {
	l := NewLogger(0)
	if l.Sinks() != 0 {
		t.Fatalf("fresh logger has %d sinks", l.Sinks())
	}

	var a, b bytes.Buffer
	detachA := l.Attach(&a, LogDebug)
	detachB := l.Attach(&b, LogDebug)
	if l.Sinks() != 2 {
		t.Fatalf("Sinks() = %d, want 2", l.Sinks())
	}

	detachA()
	detachA() // idempotent
	if l.Sinks() != 1 {
		t.Fatalf("Sinks() = %d after detach, want 1", l.Sinks())
	}

	l.Info("only b")
	if a.Len() != 0 {
		t.Errorf("detached sink still received %q", a.String())
	}
	if !strings.Contains(b.String(), "only b") {
		t.Errorf("attached sink missed record: %q", b.String())
	}

	detachB()
	if l.Sinks() != 0 {
		t.Errorf("Sinks() = %d, want 0", l.Sinks())
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    LogLevel
		wantErr bool
	}{
		{"debug", LogDebug, false},
		{"INFO", LogNormal, false},
		{"warning", LogWarn, false},
		{"WARN", LogWarn, false},
		{"4", LogQuiet, true},
		{"verbose", LogVerbose, false},
		{"error", LogQuiet, false},
		{"2", LogVerbose, false},
		{"9", LogQuiet, true},
		{"loud", LogQuiet, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLogLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLogLevel(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if err == nil && got != tt.want {
				t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
