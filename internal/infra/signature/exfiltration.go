package signature

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/mcp-defender/mcp-defender/internal/domain"
)

var fileReadTerms = []string{
	"read_file", "readfile", "read file",
	"read_dir", "readdir", "list_dir", "listdir",
	"get_file", "open(", "fs.read", "cat ",
}

var bulkOperationTerms = []string{
	"tar ", "tar.gz", "zip ", "archive", "dump",
	"recursive", "rsync", "xcopy", "glob(", "**/*",
}

var networkTransferTerms = []string{
	"http://", "https://", "ftp://",
	"upload", "curl", "wget", "webhook", "exfil", "send to",
}

// numericFieldPattern matches size/limit/count-style fields in the canonical
// JSON form of tool arguments.
var numericFieldPattern = regexp.MustCompile(`(?i)"(?:size|limit|count|max_?[a-z]*|bytes|length|depth)"\s*:\s*(\d+)`)

type bulkExfiltration struct {
	policy Policy
}

func newBulkExfiltration(policy Policy) *bulkExfiltration {
	return &bulkExfiltration{policy: policy}
}

func (s *bulkExfiltration) ID() string   { return "bulk_exfiltration" }
func (s *bulkExfiltration) Name() string { return "Bulk exfiltration" }

// Detect accumulates independent suspicion signals and denies when one or
// more fire, reporting every fired signal.
func (s *bulkExfiltration) Detect(input domain.ScanInput) domain.Verdict {
	lowered := strings.ToLower(input.Text)
	var signals []string

	if len(input.Text) > s.policy.MaxInputChars {
		signals = append(signals, fmt.Sprintf("oversized input (%d chars, limit %d)", len(input.Text), s.policy.MaxInputChars))
	}

	if mentions := countTerms(lowered, fileReadTerms); mentions > s.policy.MaxFileReadMentions {
		signals = append(signals, fmt.Sprintf("%d file-read operations mentioned (limit %d)", mentions, s.policy.MaxFileReadMentions))
	}

	if depth := strings.Count(lowered, "../") + strings.Count(lowered, `..\`); depth > s.policy.MaxTraversalDepth {
		signals = append(signals, fmt.Sprintf("traversal depth %d (limit %d)", depth, s.policy.MaxTraversalDepth))
	}

	if term := firstTerm(lowered, bulkOperationTerms); term != "" {
		signals = append(signals, fmt.Sprintf("bulk-operation vocabulary %q", strings.TrimSpace(term)))
	}

	if field, value := s.largeNumericField(input.Text); field != "" {
		signals = append(signals, fmt.Sprintf("large numeric threshold %s in %s (limit %d)", value, field, s.policy.LargeNumericThreshold))
	}

	// Network-transfer vocabulary is only suspicious alongside another
	// signal; on its own it describes ordinary tool traffic.
	if len(signals) > 0 {
		if term := firstTerm(lowered, networkTransferTerms); term != "" {
			signals = append(signals, fmt.Sprintf("network-transfer vocabulary %q alongside other signals", strings.TrimSpace(term)))
		}
	}

	if len(signals) == 0 {
		return domain.Allow()
	}
	return domain.Deny("bulk exfiltration: " + strings.Join(signals, ", "))
}

func (s *bulkExfiltration) largeNumericField(text string) (field, value string) {
	for _, match := range numericFieldPattern.FindAllStringSubmatch(text, -1) {
		parsed, err := strconv.Atoi(match[1])
		if err != nil {
			continue
		}
		if parsed > s.policy.LargeNumericThreshold {
			return strings.SplitN(match[0], ":", 2)[0], match[1]
		}
	}
	return "", ""
}

func countTerms(text string, terms []string) int {
	total := 0
	for _, term := range terms {
		total += strings.Count(text, term)
	}
	return total
}

func firstTerm(text string, terms []string) string {
	for _, term := range terms {
		if strings.Contains(text, term) {
			return term
		}
	}
	return ""
}
