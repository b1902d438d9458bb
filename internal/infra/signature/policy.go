// Package signature implements the deterministic first line of defense: a
// fixed, declared-order set of independent pattern detectors applied to tool
// input in canonical string form.
package signature

import "github.com/mcp-defender/mcp-defender/internal/domain"

// Policy carries the tunable detection thresholds. The zero value is not
// usable; start from DefaultPolicy.
type Policy struct {
	MaxInputChars         int      `mapstructure:"maxInputChars" json:"maxInputChars"`
	MaxFileReadMentions   int      `mapstructure:"maxFileReadMentions" json:"maxFileReadMentions"`
	MaxTraversalDepth     int      `mapstructure:"maxTraversalDepth" json:"maxTraversalDepth"`
	LargeNumericThreshold int      `mapstructure:"largeNumericThreshold" json:"largeNumericThreshold"`
	ExtraDeniedPaths      []string `mapstructure:"extraDeniedPaths" json:"extraDeniedPaths,omitempty"`
	ExtraDangerousBins    []string `mapstructure:"extraDangerousBinaries" json:"extraDangerousBinaries,omitempty"`
}

func DefaultPolicy() Policy {
	return Policy{
		MaxInputChars:         domain.DefaultMaxInputChars,
		MaxFileReadMentions:   domain.DefaultMaxFileReadMentions,
		MaxTraversalDepth:     domain.DefaultMaxTraversalDepth,
		LargeNumericThreshold: domain.DefaultLargeNumericThreshold,
	}
}

// Defaults returns every built-in signature in its fixed evaluation order.
// Signatures are independent; order only determines reason concatenation.
func Defaults(policy Policy) []domain.Signature {
	return []domain.Signature{
		newCommandInjection(policy),
		newSecretKeys(),
		newSuspiciousPaths(policy),
		newBulkExfiltration(policy),
	}
}
