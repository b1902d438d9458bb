package signature

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/kballard/go-shellquote"

	"github.com/mcp-defender/mcp-defender/internal/domain"
)

// chainSequences are shell metacharacter and chaining constructs that have
// no business inside legitimate tool arguments.
var chainSequences = []string{
	"&&", "||", ";", "|", "`", "$(", "${", ">>", "<(",
}

var dangerousBinaries = map[string]struct{}{
	"sh": {}, "bash": {}, "zsh": {}, "dash": {}, "ksh": {}, "fish": {},
	"sudo": {}, "su": {}, "doas": {},
	"rm": {}, "dd": {}, "mkfs": {}, "shred": {},
	"chmod": {}, "chown": {},
	"shutdown": {}, "reboot": {}, "halt": {},
	"nc": {}, "ncat": {}, "netcat": {},
	"eval": {}, "exec": {},
}

var devicePathPrefixes = []string{"/proc/", "/dev/", "/sys/"}

type commandInjection struct {
	extraBins map[string]struct{}
}

func newCommandInjection(policy Policy) *commandInjection {
	extra := make(map[string]struct{}, len(policy.ExtraDangerousBins))
	for _, bin := range policy.ExtraDangerousBins {
		extra[strings.ToLower(bin)] = struct{}{}
	}
	return &commandInjection{extraBins: extra}
}

func (s *commandInjection) ID() string   { return "command_injection" }
func (s *commandInjection) Name() string { return "Command injection" }

func (s *commandInjection) Detect(input domain.ScanInput) domain.Verdict {
	if reason := s.check(input.Text); reason != "" {
		return domain.Deny("command injection: " + reason)
	}

	// Re-apply every check to the percent-decoded form to catch encoded
	// payloads. A decoding failure is not itself a denial signal.
	decoded, err := url.QueryUnescape(input.Text)
	if err == nil && decoded != input.Text {
		if reason := s.check(decoded); reason != "" {
			return domain.Deny("command injection (percent-encoded): " + reason)
		}
	}

	return domain.Allow()
}

func (s *commandInjection) check(text string) string {
	for _, seq := range chainSequences {
		if strings.Contains(text, seq) {
			return fmt.Sprintf("shell metacharacter sequence %q", seq)
		}
	}

	lowered := strings.ToLower(text)
	for _, prefix := range devicePathPrefixes {
		if strings.Contains(lowered, prefix) {
			return fmt.Sprintf("process or device file access via %q", prefix)
		}
	}

	if bin := s.findDangerousBinary(text); bin != "" {
		return fmt.Sprintf("dangerous binary %q", bin)
	}
	return ""
}

// findDangerousBinary tokenizes command-like text so binary names match as
// whole words, not substrings of ordinary prose.
func (s *commandInjection) findDangerousBinary(text string) string {
	tokens, err := shellquote.Split(text)
	if err != nil {
		tokens = strings.Fields(text)
	}
	for _, token := range tokens {
		name := strings.ToLower(filepath.Base(strings.Trim(token, `"'`)))
		if _, ok := dangerousBinaries[name]; ok {
			return name
		}
		if _, ok := s.extraBins[name]; ok {
			return name
		}
	}
	return ""
}
