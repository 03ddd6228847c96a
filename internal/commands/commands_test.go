package commands

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"cmdshell/internal/metrics"
	"cmdshell/shell"
	"cmdshell/util"
)

func newShell(logger *util.Logger, m *metrics.Collector) (*shell.Interpreter, *bytes.Buffer) {
	out := &bytes.Buffer{}
	opts := []shell.Option{shell.WithCommands(All(Info{Version: "1.2.3", Metrics: m})...)}
	if logger != nil {
		opts = append(opts, shell.WithLogger(logger))
	}
	return shell.New(strings.NewReader(""), out, opts...), out
}

func TestEchoAndVersion(t *testing.T) {
	tests := []struct {
		line string
		want string
	}{
		{"echo  spaced   words ", "spaced   words\n"},
		{"echo", "\n"},
		{"version", "cmdshell 1.2.3\n"},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			sh, out := newShell(nil, nil)
			if got := sh.Dispatch(tt.line); got != shell.Continue {
				t.Fatalf("Dispatch = %v", got)
			}
			if out.String() != tt.want {
				t.Errorf("output = %q, want %q", out.String(), tt.want)
			}
		})
	}
}

func TestLog(t *testing.T) {
	logger := util.NewLogger(0)
	logger.SetOutput(&bytes.Buffer{})
	forwarded := &bytes.Buffer{}
	detach := logger.Attach(forwarded, util.LogDebug)
	defer detach()

	sh, out := newShell(logger, nil)

	tests := []struct {
		line    string
		want    shell.Outcome
		wantLog string
	}{
		{"log warning disk almost full", shell.Continue, "WARNING  disk almost full\n"},
		{"log INFO hello", shell.Continue, "INFO     hello\n"},
		{"log debug x", shell.Continue, "DEBUG    x\n"},
		{"log loud hello", shell.Failed, ""},
		{"log info", shell.Failed, ""},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			forwarded.Reset()
			out.Reset()
			if got := sh.Dispatch(tt.line); got != tt.want {
				t.Errorf("Dispatch = %v, want %v", got, tt.want)
			}
			if forwarded.String() != tt.wantLog {
				t.Errorf("forwarded = %q, want %q", forwarded.String(), tt.wantLog)
			}
			if tt.want == shell.Failed && !strings.HasPrefix(out.String(), "[-] usage") {
				t.Errorf("output = %q, want usage", out.String())
			}
		})
	}
}

func TestLog_WithoutLogger(t *testing.T) {
	sh, out := newShell(nil, nil)
	if got := sh.Dispatch("log info hi"); got != shell.Failed {
		t.Errorf("Dispatch = %v, want failed", got)
	}
	if !strings.Contains(out.String(), "no logger") {
		t.Errorf("output = %q", out.String())
	}
}

func TestStats(t *testing.T) {
	m := metrics.New()
	m.SessionOpened()
	sh, out := newShell(nil, m)

	sh.Dispatch("stats")

	var snap metrics.Snapshot
	if err := json.Unmarshal(out.Bytes(), &snap); err != nil {
		t.Fatalf("stats output is not JSON: %v\n%s", err, out.String())
	}
	if snap.SessionsActive != 1 || snap.SessionsTotal != 1 {
		t.Errorf("snapshot = %+v", snap)
	}
}
