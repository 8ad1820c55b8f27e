package remotefs

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/acolita/mutagen-bridge/internal/security"
)

// defaultKeyNames are probed in order when no explicit key is given.
var defaultKeyNames = []string{"id_ed25519", "id_rsa", "id_ecdsa"}

// authMethods builds the ladder: running agent, explicit key, default
// keys, stored password. The returned cleanup closes the agent socket
// and must be called after the handshake.
func (b *Browser) authMethods(target Target) ([]ssh.AuthMethod, func(), error) {
	var methods []ssh.AuthMethod
	cleanup := func() {}

	if socket := b.fs.Getenv("SSH_AUTH_SOCK"); socket != "" {
		if conn, err := b.netDial.Dial("unix", socket); err == nil {
			methods = append(methods, ssh.PublicKeysCallback(agent.NewClient(conn).Signers))
			cleanup = func() { conn.Close() }
		}
	}

	if target.KeyPath != "" {
		signer, err := b.loadKey(target.KeyPath)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		methods = append(methods, ssh.PublicKeys(signer))
	} else if home, err := b.fs.UserHomeDir(); err == nil {
		for _, name := range defaultKeyNames {
			keyPath := filepath.Join(home, ".ssh", name)
			if _, err := b.fs.Stat(keyPath); err != nil {
				continue
			}
			if signer, err := b.loadKey(keyPath); err == nil {
				methods = append(methods, ssh.PublicKeys(signer))
				break
			}
		}
	}

	if b.secrets != nil {
		if password := b.serverPassword(target); len(password) > 0 {
			methods = append(methods, ssh.Password(string(password)))
			security.WipeBytes(password)
		}
	}

	if len(methods) == 0 {
		cleanup()
		return nil, nil, fmt.Errorf("no authentication methods available for %s@%s", target.User, target.Host)
	}
	return methods, cleanup, nil
}

// serverPassword returns the stored password for the target, going
// through the credential cache so a browse flow of many listings hits
// the OS keyring once. Callers own the returned copy and should wipe
// it after use.
func (b *Browser) serverPassword(target Target) []byte {
	if password := b.creds.Get(target.Host, target.User); password != nil {
		return password
	}
	password, err := b.secrets.GetServerPassword(target.Host, target.User)
	if err != nil || len(password) == 0 {
		return nil
	}
	b.creds.Set(target.Host, target.User, password)
	return password
}

// isAuthFailure matches the handshake error the ssh package returns
// when every offered method was rejected. Network errors must not
// count toward the lockout.
func isAuthFailure(err error) bool {
	return err != nil && strings.Contains(err.Error(), "unable to authenticate")
}

// loadKey parses a private key, consulting the passphrase store for
// encrypted keys.
func (b *Browser) loadKey(keyPath string) (ssh.Signer, error) {
	data, err := b.fs.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("read private key %s: %w", keyPath, err)
	}

	signer, err := ssh.ParsePrivateKey(data)
	if err == nil {
		return signer, nil
	}
	var missing *ssh.PassphraseMissingError
	if !errors.As(err, &missing) {
		return nil, fmt.Errorf("parse private key %s: %w", keyPath, err)
	}

	if b.secrets == nil {
		return nil, fmt.Errorf("private key %s is encrypted and no passphrase store is available", keyPath)
	}
	passphrase, err := b.secrets.GetSSHPassphrase(keyPath)
	if err != nil || len(passphrase) == 0 {
		return nil, fmt.Errorf("private key %s is encrypted and no passphrase is stored", keyPath)
	}
	defer security.WipeBytes(passphrase)

	signer, err = ssh.ParsePrivateKeyWithPassphrase(data, passphrase)
	if err != nil {
		return nil, fmt.Errorf("parse private key %s with stored passphrase: %w", keyPath, err)
	}
	return signer, nil
}

// hostKeyCallback verifies against ~/.ssh/known_hosts when one exists.
// Without one any host key is accepted, matching the transfer layer's
// StrictHostKeyChecking=no.
func (b *Browser) hostKeyCallback() (ssh.HostKeyCallback, error) {
	home, err := b.fs.UserHomeDir()
	if err != nil {
		return ssh.InsecureIgnoreHostKey(), nil
	}
	knownHosts := filepath.Join(home, ".ssh", "known_hosts")
	if _, err := b.fs.Stat(knownHosts); err != nil {
		return ssh.InsecureIgnoreHostKey(), nil
	}
	callback, err := knownhosts.New(knownHosts)
	if err != nil {
		return nil, fmt.Errorf("parse known_hosts: %w", err)
	}
	return callback, nil
}
