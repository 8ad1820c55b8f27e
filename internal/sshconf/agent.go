package sshconf

import (
	"bytes"
	"errors"
	"fmt"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"

	"github.com/acolita/mutagen-bridge/internal/ports"
	"github.com/acolita/mutagen-bridge/internal/security"
)

// PassphraseSource looks up stored passphrases for encrypted keys.
type PassphraseSource interface {
	GetSSHPassphrase(keyPath string) ([]byte, error)
}

// Agent registers private keys with the user's running SSH agent so
// the sync engine can authenticate through it. Encrypted keys pull
// their passphrase from the PassphraseSource.
type Agent struct {
	fs          ports.FileSystem
	dialer      ports.NetworkDialer
	passphrases PassphraseSource
}

// NewAgent creates an Agent. passphrases may be nil when no passphrase
// store is available.
func NewAgent(fs ports.FileSystem, dialer ports.NetworkDialer, passphrases PassphraseSource) *Agent {
	return &Agent{
		fs:          fs,
		dialer:      dialer,
		passphrases: passphrases,
	}
}

// RegisterKey adds the key at keyPath to the SSH agent. A key the
// agent already holds is left alone.
func (a *Agent) RegisterKey(keyPath string) error {
	socket := a.fs.Getenv("SSH_AUTH_SOCK")
	if socket == "" {
		return fmt.Errorf("SSH_AUTH_SOCK not set")
	}

	conn, err := a.dialer.Dial("unix", socket)
	if err != nil {
		return fmt.Errorf("dial agent: %w", err)
	}
	defer conn.Close()

	client := agent.NewClient(conn)
	held, err := client.List()
	if err != nil {
		return fmt.Errorf("list agent keys: %w", err)
	}

	key, err := a.parseKey(keyPath)
	if err != nil {
		return err
	}

	if signer, err := ssh.NewSignerFromKey(key); err == nil {
		blob := signer.PublicKey().Marshal()
		for _, k := range held {
			if bytes.Equal(k.Blob, blob) {
				return nil
			}
		}
	}

	if err := client.Add(agent.AddedKey{
		PrivateKey: key,
		Comment:    "mutagen-bridge: " + keyPath,
	}); err != nil {
		return fmt.Errorf("add key to agent: %w", err)
	}
	return nil
}

func (a *Agent) parseKey(keyPath string) (interface{}, error) {
	data, err := a.fs.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}

	key, err := ssh.ParseRawPrivateKey(data)
	if err == nil {
		return key, nil
	}

	var missing *ssh.PassphraseMissingError
	if !errors.As(err, &missing) {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	if a.passphrases == nil {
		return nil, fmt.Errorf("key %s is encrypted and no passphrase store is available", keyPath)
	}
	passphrase, err := a.passphrases.GetSSHPassphrase(keyPath)
	if err != nil || passphrase == nil {
		return nil, fmt.Errorf("key %s is encrypted and no passphrase is stored", keyPath)
	}
	defer security.WipeBytes(passphrase)

	key, err = ssh.ParseRawPrivateKeyWithPassphrase(data, passphrase)
	if err != nil {
		return nil, fmt.Errorf("parse private key with stored passphrase: %w", err)
	}
	return key, nil
}

var _ KeyRegistrar = (*Agent)(nil)
