// Package diagnose maps sync failures to actionable recovery hints.
package diagnose

import (
	"errors"
	"fmt"
	"regexp"
	"sort"

	"github.com/acolita/mutagen-bridge/internal/engine"
)

// Hint describes a detected failure and a way out of it.
type Hint struct {
	Problem    string   `json:"problem"`            // what went wrong, one line
	Category   string   `json:"category"`           // install, auth, hostkey, network, daemon, filesystem, disk, session
	Advice     string   `json:"advice"`             // what to do about it
	Commands   []string `json:"commands,omitempty"` // suggested shell commands
	Confidence float64  `json:"-"`                  // match strength, orders multi-rule hits
	Risky      bool     `json:"risky,omitempty"`    // review before running the commands
}

// Analyzer matches failure text against known patterns.
type Analyzer struct {
	rules []rule
}

type rule struct {
	name    string
	pattern *regexp.Regexp
	build   func(matches []string) *Hint
}

// NewAnalyzer creates an analyzer with the default rule set.
func NewAnalyzer() *Analyzer {
	return &Analyzer{rules: defaultRules()}
}

// Analyze inspects a sync failure and returns hints ordered by
// confidence. Typed engine errors short-circuit the text rules.
func (a *Analyzer) Analyze(err error) []*Hint {
	if err == nil {
		return nil
	}
	if engine.IsBinaryNotFound(err) {
		return []*Hint{installHint()}
	}
	if engine.IsTimeout(err) {
		return []*Hint{engineTimeoutHint()}
	}

	text := failureText(err)
	var hints []*Hint
	for _, rule := range a.rules {
		if matches := rule.pattern.FindStringSubmatch(text); matches != nil {
			if hint := rule.build(matches); hint != nil {
				hints = append(hints, hint)
			}
		}
	}
	sort.SliceStable(hints, func(i, j int) bool {
		return hints[i].Confidence > hints[j].Confidence
	})
	return hints
}

// Best returns the strongest hint, or nil when nothing matched.
func (a *Analyzer) Best(err error) *Hint {
	hints := a.Analyze(err)
	if len(hints) == 0 {
		return nil
	}
	return hints[0]
}

// failureText prefers the captured process output over the wrapping
// error message, which repeats only a fragment of it.
func failureText(err error) string {
	var failed *engine.CommandFailedError
	if errors.As(err, &failed) {
		return failed.Output
	}
	return err.Error()
}

func installHint() *Hint {
	return &Hint{
		Problem:  "mutagen is not installed",
		Category: "install",
		Advice:   "Install the sync engine and make sure it is on PATH. See " + engine.InstallURL,
		Commands: []string{
			"brew install mutagen-io/mutagen/mutagen",
			"mutagen version",
		},
		Confidence: 1.0,
	}
}

func engineTimeoutHint() *Hint {
	return &Hint{
		Problem:  "the engine did not respond in time",
		Category: "network",
		Advice:   "The command exceeded its bound. Check connectivity to the remote host and restart the daemon if it is wedged.",
		Commands: []string{
			"mutagen daemon stop",
			"mutagen daemon start",
		},
		Confidence: 0.7,
	}
}

func defaultRules() []rule {
	return []rule{
		{
			name:    "rsync_missing",
			pattern: regexp.MustCompile(`(?i)rsync is not installed|rsync:\s*command not found`),
			build: func(_ []string) *Hint {
				return &Hint{
					Problem:  "rsync is not installed",
					Category: "install",
					Advice:   "The initial copy needs rsync on this machine. Install it and retry.",
					Commands: []string{
						"sudo apt install rsync",
						"brew install rsync",
					},
					Confidence: 0.95,
				}
			},
		},
		{
			name:    "ssh_publickey",
			pattern: regexp.MustCompile(`(?i)permission denied \(publickey`),
			build: func(_ []string) *Hint {
				return &Hint{
					Problem:  "the server rejected the SSH key",
					Category: "auth",
					Advice:   "The key was offered but not accepted. Check that the right key is selected and that its public half is in the server's authorized_keys.",
					Commands: []string{
						"ssh-add -l",
						"ssh -v <user>@<host>",
					},
					Confidence: 0.9,
				}
			},
		},
		{
			name:    "ssh_passphrase",
			pattern: regexp.MustCompile(`(?i)incorrect passphrase|bad passphrase|passphrase.*incorrect`),
			build: func(_ []string) *Hint {
				return &Hint{
					Problem:    "the stored key passphrase is wrong",
					Category:   "auth",
					Advice:     "The private key could not be decrypted. Update the stored passphrase for this key and retry.",
					Confidence: 0.9,
				}
			},
		},
		{
			name:    "ssh_auth_generic",
			pattern: regexp.MustCompile(`(?i)unable to authenticate|authentication failed|too many authentication failures`),
			build: func(_ []string) *Hint {
				return &Hint{
					Problem:  "SSH authentication failed",
					Category: "auth",
					Advice:   "No offered credential was accepted. Verify the username, key path and password for this connection.",
					Commands: []string{
						"ssh <user>@<host>",
					},
					Confidence: 0.85,
				}
			},
		},
		{
			name:    "host_key",
			pattern: regexp.MustCompile(`(?i)REMOTE HOST IDENTIFICATION HAS CHANGED|host key verification failed`),
			build: func(_ []string) *Hint {
				return &Hint{
					Problem:  "the remote host key does not match known_hosts",
					Category: "hostkey",
					Advice:   "The host presented an unexpected key. If the server was legitimately reinstalled, drop the old entry; otherwise treat this as a possible interception.",
					Commands: []string{
						"ssh-keygen -R <host>",
					},
					Confidence: 0.9,
					Risky:      true,
				}
			},
		},
		{
			name:    "daemon_down",
			pattern: regexp.MustCompile(`(?i)unable to connect to (?:the )?daemon|daemon (?:is )?not running`),
			build: func(_ []string) *Hint {
				return &Hint{
					Problem:  "the sync daemon is not running",
					Category: "daemon",
					Advice:   "Sessions are managed by a background daemon. Start it and retry.",
					Commands: []string{
						"mutagen daemon start",
					},
					Confidence: 0.9,
				}
			},
		},
		{
			name:    "connection_refused",
			pattern: regexp.MustCompile(`(?i)connection refused`),
			build: func(_ []string) *Hint {
				return &Hint{
					Problem:  "the remote host refused the connection",
					Category: "network",
					Advice:   "Nothing is listening on the configured port. Check that sshd is running on the server and that the port number is right.",
					Commands: []string{
						"ssh -p <port> <user>@<host>",
						"systemctl status sshd",
					},
					Confidence: 0.8,
				}
			},
		},
		{
			name:    "host_unreachable",
			pattern: regexp.MustCompile(`(?i)could not resolve hostname|name or service not known|no route to host|network is unreachable`),
			build: func(_ []string) *Hint {
				return &Hint{
					Problem:  "the remote host is unreachable",
					Category: "network",
					Advice:   "The hostname does not resolve or no route exists. Check the spelling, DNS and any VPN the host sits behind.",
					Commands: []string{
						"ping <host>",
					},
					Confidence: 0.85,
				}
			},
		},
		{
			name:    "connection_timeout",
			pattern: regexp.MustCompile(`(?i)connection timed out|operation timed out|i/o timeout`),
			build: func(_ []string) *Hint {
				return &Hint{
					Problem:  "the connection timed out",
					Category: "network",
					Advice:   "The host did not answer. A firewall may be dropping the port, or the machine is down.",
					Commands: []string{
						"ping <host>",
						"ssh -p <port> <user>@<host>",
					},
					Confidence: 0.75,
				}
			},
		},
		{
			name:    "remote_path_missing",
			pattern: regexp.MustCompile(`(?i)change_dir "([^"]+)" failed|no such file or directory`),
			build: func(matches []string) *Hint {
				hint := &Hint{
					Problem:    "a sync path does not exist",
					Category:   "filesystem",
					Advice:     "One side of the session points at a missing directory. Create it or fix the configured path.",
					Confidence: 0.7,
				}
				if len(matches) > 1 && matches[1] != "" {
					hint.Problem = "the path " + matches[1] + " does not exist"
					hint.Commands = []string{fmt.Sprintf("ssh <user>@<host> 'mkdir -p %s'", matches[1])}
				}
				return hint
			},
		},
		{
			name:    "disk_full",
			pattern: regexp.MustCompile(`(?i)no space left on device`),
			build: func(_ []string) *Hint {
				return &Hint{
					Problem:  "a disk is full",
					Category: "disk",
					Advice:   "The receiving side ran out of space. Free some up before resuming.",
					Commands: []string{
						"df -h",
						"du -sh * | sort -h | tail -10",
					},
					Confidence: 0.9,
				}
			},
		},
		{
			name:    "session_exists",
			pattern: regexp.MustCompile(`(?i)already (?:exists|in use)`),
			build: func(_ []string) *Hint {
				return &Hint{
					Problem:  "a session with this name already exists",
					Category: "session",
					Advice:   "Terminate the old session first, or pick another name.",
					Commands: []string{
						"mutagen sync list",
						"mutagen sync terminate <name>",
					},
					Confidence: 0.6,
				}
			},
		},
	}
}
