package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"cmdshell/config"
	ncerr "cmdshell/internal/errors"
)

// execute runs the CLI with captured streams.
func execute(t *testing.T, stdin string, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var out, errOut bytes.Buffer
	err = run(context.Background(), args, strings.NewReader(stdin), &out, &errOut)
	return out.String(), errOut.String(), err
}

func isolateEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{config.EnvConfigFile, "CMDSHELL_PORT", "CMDSHELL_HOST",
		"CMDSHELL_LISTEN", "CMDSHELL_VERBOSE", "CMDSHELL_PROMPT"} {
		t.Setenv(key, "")
	}
}

func TestExecute_Version(t *testing.T) {
	isolateEnv(t)
	out, _, err := execute(t, "", "--version")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "cmdshell "+version+"\n" {
		t.Errorf("stdout = %q", out)
	}
}

func TestExecute_Help(t *testing.T) {
	isolateEnv(t)
	for _, arg := range []string{"--help", "-h"} {
		t.Run(arg, func(t *testing.T) {
			_, errOut, err := execute(t, "", arg)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !strings.Contains(errOut, "Usage:") || !strings.Contains(errOut, "--listen") {
				t.Errorf("usage = %q", errOut)
			}
		})
	}
}

func TestExecute_DryRun(t *testing.T) {
	isolateEnv(t)
	out, _, err := execute(t, "", "-l", "-p", "8080", "--once", "--hide", "stats,version", "--dry-run")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{"# mode: serve", "port: 8080", "once: true", "- stats", "- version", "timeout: 10s"} {
		if !strings.Contains(out, want) {
			t.Errorf("dry run output missing %q:\n%s", want, out)
		}
	}
}

func TestExecute_DryRunInvalid(t *testing.T) {
	isolateEnv(t)
	_, _, err := execute(t, "", "-l", "--dry-run") // listen without -p

	var ce *ncerr.ConfigError
	if !errors.As(err, &ce) || ce.Field != "port" {
		t.Fatalf("err = %v, want a port ConfigError", err)
	}
}

func TestExecute_InvalidArgs(t *testing.T) {
	isolateEnv(t)
	tests := map[string][]string{
		"unknown flag":          {"--nonexistent-flag"},
		"host without port":     {"shell.internal", "--dry-run"},
		"bad port":              {"shell.internal", "ssh", "--dry-run"},
		"bad joined port":       {"shell.internal:ssh", "--dry-run"},
		"too many listen args":  {"-l", "-p", "1", "a", "b", "--dry-run"},
		"too many connect args": {"a", "1", "b", "--dry-run"},
		"bad timeout":           {"-w", "soon", "a", "1", "--dry-run"},
		"disable exit":          {"--disable", "exit", "--dry-run"},
		"missing config file":   {"--config", filepath.Join(t.TempDir(), "nope.yaml")},
	}
	for name, args := range tests {
		t.Run(name, func(t *testing.T) {
			if _, _, err := execute(t, "", args...); err == nil {
				t.Fatalf("expected an error for %q", args)
			}
		})
	}
}

func TestExecute_Precedence(t *testing.T) {
	isolateEnv(t)
	path := filepath.Join(t.TempDir(), "cmdshell.yaml")
	if err := os.WriteFile(path, []byte("listen: true\nport: 1111\nprompt: admin\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CMDSHELL_PORT", "2222")

	tests := []struct {
		name string
		args []string
		want []string
	}{
		{"file and env", []string{"--config", path}, []string{"port: 2222", "prompt: admin", "# file: " + path}},
		{"flag wins", []string{"--config=" + path, "-p", "3333"}, []string{"port: 3333"}},
		{"verbosity", []string{"--config", path, "-vv"}, []string{"verbose: 3"}},
		{"quiet", []string{"--config", path, "-v", "-q"}, []string{"verbose: 0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := execute(t, "", append(tt.args, "--dry-run")...)
			if err != nil {
				t.Fatal(err)
			}
			for _, want := range tt.want {
				if !strings.Contains(out, want) {
					t.Errorf("output missing %q:\n%s", want, out)
				}
			}
		})
	}
}

func TestExecute_ConnectArgs(t *testing.T) {
	isolateEnv(t)
	out, _, err := execute(t, "", "-w", "3", "-T", "ops@bastion", "shell.internal", "4444", "--dry-run")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"# mode: connect", "host: shell.internal", "port: 4444", "timeout: 3s", "target: ops@bastion"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestExecute_ConnectHostPortArg(t *testing.T) {
	isolateEnv(t)
	out, _, err := execute(t, "", "shell.internal:5555", "--dry-run")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"# mode: connect", "host: shell.internal", "port: 5555"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestExecute_LocalShell(t *testing.T) {
	isolateEnv(t)
	out, _, err := execute(t, "version\necho hi there\nbogus\nexit\n", "--disable", "log", "-q")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	want := "cmdshell " + version + "\nhi there\n[-] unknown command: bogus\n"
	if out != want {
		t.Errorf("stdout = %q, want %q", out, want)
	}
}
