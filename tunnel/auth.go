package tunnel

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"
	"golang.org/x/term"
)

// PromptFunc asks the user for a secret.  The answer is not echoed.
type PromptFunc func(prompt string) ([]byte, error)

// TerminalPrompt reads a secret from standard input, which must be a
// terminal.
func TerminalPrompt(prompt string) ([]byte, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil, errors.New("standard input is not a terminal")
	}
	fmt.Fprint(os.Stderr, prompt)
	secret, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	return secret, err
}

// defaultKeyNames are tried in ~/.ssh when no method is configured.
var defaultKeyNames = []string{"id_ed25519", "id_ecdsa", "id_rsa"}

// BuildAuthMethods returns the configured authentication methods in the
// order key file, agent, password.  With none configured it falls back to
// the agent and the usual key files.
func BuildAuthMethods(cfg *SSHConfig) ([]ssh.AuthMethod, error) {
	prompt := cfg.Prompt
	if prompt == nil {
		prompt = TerminalPrompt
	}

	var methods []ssh.AuthMethod
	if cfg.KeyPath != "" {
		m, err := publicKeyAuth(cfg.KeyPath, prompt)
		if err != nil {
			return nil, fmt.Errorf("key %s: %w", cfg.KeyPath, err)
		}
		methods = append(methods, m)
	}
	if cfg.UseAgent {
		m, err := agentAuth()
		if err != nil {
			return nil, fmt.Errorf("ssh-agent: %w", err)
		}
		methods = append(methods, m)
	}
	if cfg.PromptPass {
		user := cfg.User
		methods = append(methods, ssh.PasswordCallback(func() (string, error) {
			pass, err := prompt(fmt.Sprintf("%s@%s's password: ", user, cfg.Host))
			if err != nil {
				return "", fmt.Errorf("reading password: %w", err)
			}
			return string(pass), nil
		}))
	}

	if len(methods) == 0 {
		methods = defaultAuthMethods()
	}
	if len(methods) == 0 {
		return nil, errors.New("no SSH authentication methods available; " +
			"use --ssh-key, --ssh-password or --ssh-agent")
	}
	return methods, nil
}

func publicKeyAuth(keyPath string, prompt PromptFunc) (ssh.AuthMethod, error) {
	data, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, err
	}
	signer, err := parseKey(data, keyPath, prompt)
	if err != nil {
		return nil, err
	}
	return ssh.PublicKeys(signer), nil
}

// parseKey parses a private key, asking for the passphrase if the key
// is encrypted.
func parseKey(data []byte, name string, prompt PromptFunc) (ssh.Signer, error) {
	signer, err := ssh.ParsePrivateKey(data)
	var missing *ssh.PassphraseMissingError
	if !errors.As(err, &missing) {
		if err != nil {
			return nil, fmt.Errorf("parsing key: %w", err)
		}
		return signer, nil
	}

	pass, err := prompt(fmt.Sprintf("Enter passphrase for %s: ", name))
	if err != nil {
		return nil, fmt.Errorf("reading passphrase: %w", err)
	}
	signer, err = ssh.ParsePrivateKeyWithPassphrase(data, pass)
	if err != nil {
		return nil, fmt.Errorf("decrypting key: %w", err)
	}
	return signer, nil
}

func agentAuth() (ssh.AuthMethod, error) {
	sock := os.Getenv("SSH_AUTH_SOCK")
	if sock == "" {
		return nil, errors.New("SSH_AUTH_SOCK is not set")
	}
	conn, err := net.Dial("unix", sock)
	if err != nil {
		return nil, fmt.Errorf("connecting to agent at %s: %w", sock, err)
	}
	return ssh.PublicKeysCallback(agent.NewClient(conn).Signers), nil
}

// defaultAuthMethods never prompts: encrypted default keys are skipped.
func defaultAuthMethods() []ssh.AuthMethod {
	var out []ssh.AuthMethod
	if m, err := agentAuth(); err == nil {
		out = append(out, m)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return out
	}
	noPrompt := func(string) ([]byte, error) { return nil, errors.New("encrypted") }
	for _, name := range defaultKeyNames {
		if m, err := publicKeyAuth(filepath.Join(home, ".ssh", name), noPrompt); err == nil {
			out = append(out, m)
		}
	}
	return out
}

func hostKeyCallback(cfg *SSHConfig) (ssh.HostKeyCallback, error) {
	if !cfg.StrictHostKey {
		return ssh.InsecureIgnoreHostKey(), nil //nolint:gosec // opted out with --strict-hostkey=false
	}

	file := cfg.KnownHosts
	if file == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("locating home directory: %w", err)
		}
		file = filepath.Join(home, ".ssh", "known_hosts")
	}
	cb, err := knownhosts.New(file)
	if err != nil {
		return nil, fmt.Errorf("loading known_hosts from %s: %w", file, err)
	}
	return cb, nil
}
