package sshconf

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"net"
	"strings"
	"testing"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"

	"github.com/acolita/mutagen-bridge/internal/testing/fakes/fakefs"
	"github.com/acolita/mutagen-bridge/internal/testing/fakes/fakenet"
)

type fakePassphrases struct {
	passphrase []byte
	err        error
}

func (f *fakePassphrases) GetSSHPassphrase(keyPath string) ([]byte, error) {
	return f.passphrase, f.err
}

// newAgentBackend serves an in-memory SSH agent over a fresh pipe for
// every dial, sharing one key store across connections.
func newAgentBackend() (agent.Agent, *fakenet.Dialer) {
	backend := agent.NewKeyring()
	dialer := fakenet.NewDialer()
	dialer.DialFunc = func(network, address string) (net.Conn, error) {
		server, client := net.Pipe()
		go func() {
			_ = agent.ServeAgent(backend, server)
			server.Close()
		}()
		return client, nil
	}
	return backend, dialer
}

func generateKeyPEM(t *testing.T, passphrase []byte) []byte {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	var block *pem.Block
	if len(passphrase) > 0 {
		block, err = ssh.MarshalPrivateKeyWithPassphrase(priv, "", passphrase)
	} else {
		block, err = ssh.MarshalPrivateKey(priv, "")
	}
	if err != nil {
		t.Fatalf("marshal key: %v", err)
	}
	return pem.EncodeToMemory(block)
}

func TestRegisterKey_AddsKeyToAgent(t *testing.T) {
	fsys := fakefs.New()
	fsys.SetEnv("SSH_AUTH_SOCK", "/tmp/agent.sock")
	fsys.AddFile("/home/test/.ssh/id_ed25519", generateKeyPEM(t, nil), 0600)

	backend, dialer := newAgentBackend()
	a := NewAgent(fsys, dialer, nil)

	if err := a.RegisterKey("/home/test/.ssh/id_ed25519"); err != nil {
		t.Fatalf("RegisterKey() error = %v", err)
	}

	keys, err := backend.List()
	if err != nil {
		t.Fatalf("backend.List() error = %v", err)
	}
	if len(keys) != 1 {
		t.Fatalf("agent holds %d keys, want 1", len(keys))
	}
	if keys[0].Comment != "mutagen-bridge: /home/test/.ssh/id_ed25519" {
		t.Errorf("key comment = %q", keys[0].Comment)
	}

	calls := dialer.Calls()
	if len(calls) != 1 || calls[0].Network != "unix" || calls[0].Address != "/tmp/agent.sock" {
		t.Errorf("dial calls = %+v, want one unix dial to socket", calls)
	}
}

func TestRegisterKey_SkipsKeyAlreadyHeld(t *testing.T) {
	fsys := fakefs.New()
	fsys.SetEnv("SSH_AUTH_SOCK", "/tmp/agent.sock")
	fsys.AddFile("/home/test/.ssh/id_ed25519", generateKeyPEM(t, nil), 0600)

	backend, dialer := newAgentBackend()
	a := NewAgent(fsys, dialer, nil)

	for i := 0; i < 2; i++ {
		if err := a.RegisterKey("/home/test/.ssh/id_ed25519"); err != nil {
			t.Fatalf("RegisterKey() call %d error = %v", i, err)
		}
	}

	keys, err := backend.List()
	if err != nil {
		t.Fatalf("backend.List() error = %v", err)
	}
	if len(keys) != 1 {
		t.Errorf("agent holds %d keys after re-registration, want 1", len(keys))
	}
}

func TestRegisterKey_NoSocket(t *testing.T) {
	fsys := fakefs.New()
	_, dialer := newAgentBackend()
	a := NewAgent(fsys, dialer, nil)

	err := a.RegisterKey("/home/test/.ssh/id_ed25519")
	if err == nil {
		t.Fatal("RegisterKey() error = nil, want SSH_AUTH_SOCK error")
	}
	if !strings.Contains(err.Error(), "SSH_AUTH_SOCK") {
		t.Errorf("error = %v, want mention of SSH_AUTH_SOCK", err)
	}
	if len(dialer.Calls()) != 0 {
		t.Errorf("dialed %d times without a socket, want 0", len(dialer.Calls()))
	}
}

func TestRegisterKey_DialError(t *testing.T) {
	fsys := fakefs.New()
	fsys.SetEnv("SSH_AUTH_SOCK", "/tmp/agent.sock")

	dialer := fakenet.NewDialer()
	dialer.SetError(errors.New("connection refused"))
	a := NewAgent(fsys, dialer, nil)

	err := a.RegisterKey("/home/test/.ssh/id_ed25519")
	if err == nil || !strings.Contains(err.Error(), "dial agent") {
		t.Errorf("error = %v, want dial agent error", err)
	}
}

func TestRegisterKey_MissingKeyFile(t *testing.T) {
	fsys := fakefs.New()
	fsys.SetEnv("SSH_AUTH_SOCK", "/tmp/agent.sock")

	_, dialer := newAgentBackend()
	a := NewAgent(fsys, dialer, nil)

	err := a.RegisterKey("/home/test/.ssh/id_missing")
	if err == nil || !strings.Contains(err.Error(), "read key file") {
		t.Errorf("error = %v, want read key file error", err)
	}
}

func TestRegisterKey_UnparsableKey(t *testing.T) {
	fsys := fakefs.New()
	fsys.SetEnv("SSH_AUTH_SOCK", "/tmp/agent.sock")
	fsys.AddFile("/home/test/.ssh/id_bad", []byte("not a private key"), 0600)

	_, dialer := newAgentBackend()
	a := NewAgent(fsys, dialer, nil)

	err := a.RegisterKey("/home/test/.ssh/id_bad")
	if err == nil || !strings.Contains(err.Error(), "parse private key") {
		t.Errorf("error = %v, want parse error", err)
	}
}

func TestRegisterKey_EncryptedKeyWithStoredPassphrase(t *testing.T) {
	fsys := fakefs.New()
	fsys.SetEnv("SSH_AUTH_SOCK", "/tmp/agent.sock")
	fsys.AddFile("/home/test/.ssh/id_enc", generateKeyPEM(t, []byte("s3cret")), 0600)

	backend, dialer := newAgentBackend()
	a := NewAgent(fsys, dialer, &fakePassphrases{passphrase: []byte("s3cret")})

	if err := a.RegisterKey("/home/test/.ssh/id_enc"); err != nil {
		t.Fatalf("RegisterKey() error = %v", err)
	}

	keys, err := backend.List()
	if err != nil {
		t.Fatalf("backend.List() error = %v", err)
	}
	if len(keys) != 1 {
		t.Errorf("agent holds %d keys, want 1", len(keys))
	}
}

func TestRegisterKey_EncryptedKeyWithoutStore(t *testing.T) {
	fsys := fakefs.New()
	fsys.SetEnv("SSH_AUTH_SOCK", "/tmp/agent.sock")
	fsys.AddFile("/home/test/.ssh/id_enc", generateKeyPEM(t, []byte("s3cret")), 0600)

	_, dialer := newAgentBackend()
	a := NewAgent(fsys, dialer, nil)

	err := a.RegisterKey("/home/test/.ssh/id_enc")
	if err == nil || !strings.Contains(err.Error(), "no passphrase store") {
		t.Errorf("error = %v, want missing store error", err)
	}
}

func TestRegisterKey_EncryptedKeyPassphraseNotStored(t *testing.T) {
	fsys := fakefs.New()
	fsys.SetEnv("SSH_AUTH_SOCK", "/tmp/agent.sock")
	fsys.AddFile("/home/test/.ssh/id_enc", generateKeyPEM(t, []byte("s3cret")), 0600)

	_, dialer := newAgentBackend()
	a := NewAgent(fsys, dialer, &fakePassphrases{err: errors.New("not found")})

	err := a.RegisterKey("/home/test/.ssh/id_enc")
	if err == nil || !strings.Contains(err.Error(), "no passphrase is stored") {
		t.Errorf("error = %v, want missing passphrase error", err)
	}
}

func TestRegisterKey_WrongStoredPassphrase(t *testing.T) {
	fsys := fakefs.New()
	fsys.SetEnv("SSH_AUTH_SOCK", "/tmp/agent.sock")
	fsys.AddFile("/home/test/.ssh/id_enc", generateKeyPEM(t, []byte("s3cret")), 0600)

	_, dialer := newAgentBackend()
	a := NewAgent(fsys, dialer, &fakePassphrases{passphrase: []byte("wrong")})

	err := a.RegisterKey("/home/test/.ssh/id_enc")
	if err == nil || !strings.Contains(err.Error(), "stored passphrase") {
		t.Errorf("error = %v, want passphrase parse error", err)
	}
}
