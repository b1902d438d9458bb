package signature

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"

	"github.com/mcp-defender/mcp-defender/internal/domain"
)

// deniedPaths are absolute paths to sensitive system and credential files.
// Matching is case-insensitive substring over the canonical input.
var deniedPaths = []string{
	"/etc/passwd",
	"/etc/shadow",
	"/etc/sudoers",
	"/etc/ssl/private",
	"/root/.ssh",
	"/.ssh/id_",
	"/.ssh/authorized_keys",
	"/.aws/credentials",
	"/.gnupg/",
	"/.config/gcloud",
	"/var/run/docker.sock",
	"/private/etc/master.passwd",
	`c:\windows\system32\config`,
}

// traversalSequences include the percent-encoded spellings attackers use to
// slip past naive path checks.
var traversalSequences = []string{
	"../", `..\`,
	"..%2f", "..%5c",
	"%2e%2e/", "%2e%2e%2f", "%2e%2e%5c",
}

type suspiciousPaths struct {
	patterns []suspiciousPattern
}

type suspiciousPattern struct {
	path    string
	matcher glob.Glob
}

func newSuspiciousPaths(policy Policy) *suspiciousPaths {
	paths := append(append([]string(nil), deniedPaths...), policy.ExtraDeniedPaths...)
	patterns := make([]suspiciousPattern, 0, len(paths))
	for _, path := range paths {
		lowered := strings.ToLower(path)
		patterns = append(patterns, suspiciousPattern{
			path:    path,
			matcher: glob.MustCompile("*" + glob.QuoteMeta(lowered) + "*"),
		})
	}
	return &suspiciousPaths{patterns: patterns}
}

func (s *suspiciousPaths) ID() string   { return "suspicious_paths" }
func (s *suspiciousPaths) Name() string { return "Suspicious file path" }

func (s *suspiciousPaths) Detect(input domain.ScanInput) domain.Verdict {
	lowered := strings.ToLower(input.Text)

	for _, pattern := range s.patterns {
		if pattern.matcher.Match(lowered) {
			return domain.Deny(fmt.Sprintf("suspicious path: access to %q", pattern.path))
		}
	}

	for _, seq := range traversalSequences {
		if strings.Contains(lowered, seq) {
			return domain.Deny(fmt.Sprintf("suspicious path: directory traversal sequence %q", seq))
		}
	}

	return domain.Allow()
}
