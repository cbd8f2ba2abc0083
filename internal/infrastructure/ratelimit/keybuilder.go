package ratelimit

import (
	"regexp"
	"strings"

	"github.com/turtacn/edugate/pkg/constants"
)

var (
	invalidKeyChars   = regexp.MustCompile(`[^A-Za-z0-9:_-]`)
	repeatedUnderline = regexp.MustCompile(`_{2,}`)
)

// NormalizeIdentifier replaces every character outside [A-Za-z0-9:_-] with '_'
// and collapses runs of '_'. Colons are kept as they are: "::" is significant
// in IPv6 addresses. Dotted IPv4 addresses and UUIDs map one-to-one because
// neither ever contains '_'.
func NormalizeIdentifier(identifier string) string {
	s := invalidKeyChars.ReplaceAllString(identifier, "_")
	return repeatedUnderline.ReplaceAllString(s, "_")
}

// BuildKey joins [prefix, "rate-limit", context, identifier] with ':' skipping empty
// optional parts. The result is deterministic for a given input.
func BuildKey(prefix, rlContext, identifier string) string {
	parts := make([]string, 0, 4)
	if prefix != "" {
		parts = append(parts, prefix)
	}
	parts = append(parts, constants.RateLimitKeySegment)
	if rlContext != "" {
		parts = append(parts, rlContext)
	}
	parts = append(parts, NormalizeIdentifier(identifier))
	return strings.Join(parts, constants.RateLimitKeySeparator)
}
