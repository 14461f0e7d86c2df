package rules

import (
	"strings"

	"github.com/SujathaSimmala2829/Focus-blocker/internal/focus/common/utils"
	"github.com/SujathaSimmala2829/Focus-blocker/internal/focus/domain"
)

// IsBareHost reports whether a site specifier names a host rather than an
// explicit pattern: it contains neither '/' nor '*'.
func IsBareHost(specifier string) bool {
	return !strings.ContainsAny(specifier, "/*")
}

// PatternFor returns the engine pattern for a site specifier. A bare host is
// domain-anchored as "||host^", which matches the host and its subdomains
// but not hosts that merely share a suffix. Anything else passes through.
func PatternFor(specifier string) string {
	if IsBareHost(specifier) {
		return "||" + utils.CanonicalHostName(specifier) + "^"
	}
	return specifier
}

// Compile turns one site specifier into a top-level navigation redirect
// rule with the given id. It does not validate; the engine does.
func Compile(specifier string, id uint32) domain.BlockRule {
	return domain.BlockRule{
		ID:      id,
		Pattern: PatternFor(specifier),
		Scope:   domain.ScopeTopLevelNavigation,
		Action:  domain.ActionRedirectToBlockedPage,
	}
}

// CompileAll compiles specifiers[i] with ids[i] and tags every rule with
// source. Both slices must have the same length.
func CompileAll(specifiers []string, ids []uint32, source string) []domain.BlockRule {
	out := make([]domain.BlockRule, len(specifiers))
	for i, s := range specifiers {
		r := Compile(s, ids[i])
		r.Source = source
		out[i] = r
	}
	return out
}

// Apex returns the registrable domain of a bare-host specifier, or "" for
// explicit patterns.
func Apex(specifier string) string {
	if !IsBareHost(specifier) || strings.TrimSpace(specifier) == "" {
		return ""
	}
	return utils.GetApexDomain(specifier)
}
