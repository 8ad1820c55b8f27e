// Package remotefs lists directories on sync endpoints over SFTP, backing
// the remote path picker in the GUI.
package remotefs

import (
	"fmt"
	"net"
	"path"
	"sort"
	"strconv"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"github.com/acolita/mutagen-bridge/internal/adapters/realfs"
	"github.com/acolita/mutagen-bridge/internal/adapters/realnet"
	"github.com/acolita/mutagen-bridge/internal/adapters/realsshdialer"
	"github.com/acolita/mutagen-bridge/internal/ports"
	"github.com/acolita/mutagen-bridge/internal/security"
)

// DefaultDialTimeout bounds the SSH handshake.
const DefaultDialTimeout = 30 * time.Second

// Secrets supplies stored credentials. Both lookups are optional; a
// miss removes that rung from the authentication ladder.
type Secrets interface {
	GetSSHPassphrase(keyPath string) ([]byte, error)
	GetServerPassword(host, user string) ([]byte, error)
}

// Target identifies the remote endpoint to browse.
type Target struct {
	Host    string
	Port    int
	User    string
	KeyPath string // optional explicit private key
}

// Entry describes one remote directory entry.
type Entry struct {
	Name    string `json:"name"`
	Path    string `json:"path"`
	IsDir   bool   `json:"is_dir"`
	Size    int64  `json:"size"`
	ModTime int64  `json:"mod_time"` // Unix timestamp
}

// Listing is a browsed directory with its entries sorted
// directories-first.
type Listing struct {
	Path    string  `json:"path"`
	Parent  string  `json:"parent"`
	Entries []Entry `json:"entries"`
}

// Options configures a Browser. Zero-value fields fall back to the real
// adapters and DefaultDialTimeout.
type Options struct {
	FileSystem  ports.FileSystem
	SSHDialer   ports.SSHDialer
	NetDialer   ports.NetworkDialer
	Secrets     Secrets
	DialTimeout time.Duration
}

// Browser opens short-lived SFTP connections to list remote
// directories.
type Browser struct {
	fs      ports.FileSystem
	dialer  ports.SSHDialer
	netDial ports.NetworkDialer
	secrets Secrets
	timeout time.Duration

	limiter *security.AuthRateLimiter
	creds   *security.CredentialCache
}

// New creates a Browser.
func New(opts Options) *Browser {
	if opts.FileSystem == nil {
		opts.FileSystem = realfs.New()
	}
	if opts.SSHDialer == nil {
		opts.SSHDialer = realsshdialer.New()
	}
	if opts.NetDialer == nil {
		opts.NetDialer = realnet.NewDialer()
	}
	if opts.DialTimeout == 0 {
		opts.DialTimeout = DefaultDialTimeout
	}
	return &Browser{
		fs:      opts.FileSystem,
		dialer:  opts.SSHDialer,
		netDial: opts.NetDialer,
		secrets: opts.Secrets,
		timeout: opts.DialTimeout,
		limiter: security.NewAuthRateLimiter(0, 0),
		creds:   security.NewCredentialCache(security.DefaultCredentialTTL),
	}
}

// Browse connects to the target and lists dir. An empty dir resolves to
// the remote user's working directory. The connection is torn down
// before returning; each call is one short-lived session.
func (b *Browser) Browse(target Target, dir string) (*Listing, error) {
	if target.Host == "" {
		return nil, fmt.Errorf("host is required")
	}
	if target.User == "" {
		return nil, fmt.Errorf("user is required")
	}

	if locked, wait := b.limiter.IsLocked(target.Host, target.User); locked {
		return nil, fmt.Errorf("authentication for %s@%s is locked after repeated failures, retry in %s",
			target.User, target.Host, wait.Round(time.Second))
	}

	methods, cleanup, err := b.authMethods(target)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	hostKeys, err := b.hostKeyCallback()
	if err != nil {
		return nil, err
	}

	port := target.Port
	if port == 0 {
		port = 22
	}
	addr := net.JoinHostPort(target.Host, strconv.Itoa(port))

	client, err := b.dialer.Dial("tcp", addr, &ssh.ClientConfig{
		User:            target.User,
		Auth:            methods,
		HostKeyCallback: hostKeys,
		Timeout:         b.timeout,
	})
	if err != nil {
		if isAuthFailure(err) {
			b.limiter.RecordFailure(target.Host, target.User)
			b.creds.Clear(target.Host, target.User)
		}
		return nil, fmt.Errorf("ssh dial %s: %w", addr, err)
	}
	defer client.Close()
	b.limiter.RecordSuccess(target.Host, target.User)

	ftp, err := sftp.NewClient(client)
	if err != nil {
		return nil, fmt.Errorf("start sftp subsystem: %w", err)
	}
	defer ftp.Close()

	if dir == "" {
		dir, err = ftp.RealPath(".")
		if err != nil {
			return nil, fmt.Errorf("resolve remote working directory: %w", err)
		}
	}
	dir = path.Clean(dir)

	infos, err := ftp.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read remote directory %s: %w", dir, err)
	}

	entries := make([]Entry, 0, len(infos))
	for _, info := range infos {
		entries = append(entries, Entry{
			Name:    info.Name(),
			Path:    path.Join(dir, info.Name()),
			IsDir:   info.IsDir(),
			Size:    info.Size(),
			ModTime: info.ModTime().Unix(),
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].IsDir != entries[j].IsDir {
			return entries[i].IsDir
		}
		return entries[i].Name < entries[j].Name
	})

	return &Listing{Path: dir, Parent: path.Dir(dir), Entries: entries}, nil
}
