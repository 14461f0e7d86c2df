package domain

import (
	"fmt"
	"strings"
)

// ResourceScope limits which requests a rule applies to.
type ResourceScope uint8

const (
	// ScopeTopLevelNavigation applies a rule to main-frame navigations only.
	ScopeTopLevelNavigation ResourceScope = iota
)

// String returns a stable string representation of the scope.
func (s ResourceScope) String() string {
	switch s {
	case ScopeTopLevelNavigation:
		return "main_frame"
	default:
		return fmt.Sprintf("ResourceScope(%d)", s)
	}
}

// ParseResourceScope converts a string into a ResourceScope.
func ParseResourceScope(s string) (ResourceScope, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "main_frame":
		return ScopeTopLevelNavigation, nil
	default:
		return 0, fmt.Errorf("unsupported ResourceScope: %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s ResourceScope) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *ResourceScope) UnmarshalText(b []byte) error {
	v, err := ParseResourceScope(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// RuleAction is what the engine does with a matching request.
type RuleAction uint8

const (
	// ActionRedirectToBlockedPage sends the navigation to the blocked page.
	ActionRedirectToBlockedPage RuleAction = iota
)

// String returns a stable string representation of the action.
func (a RuleAction) String() string {
	switch a {
	case ActionRedirectToBlockedPage:
		return "redirect"
	default:
		return fmt.Sprintf("RuleAction(%d)", a)
	}
}

// ParseRuleAction converts a string into a RuleAction.
func ParseRuleAction(s string) (RuleAction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "redirect":
		return ActionRedirectToBlockedPage, nil
	default:
		return 0, fmt.Errorf("unsupported RuleAction: %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (a RuleAction) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *RuleAction) UnmarshalText(b []byte) error {
	v, err := ParseRuleAction(string(b))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// BlockRule is one compiled match pattern plus its block action, as
// registered with the blocking engine.
//
// Notes:
// - ID lives in a namespace shared by every rule source of the engine.
// - Source identifies the rule source that owns the rule.
type BlockRule struct {
	ID      uint32        `json:"id"`
	Pattern string        `json:"pattern"`
	Scope   ResourceScope `json:"scope"`
	Action  RuleAction    `json:"action"`
	Source  string        `json:"source"`
}

// NewBlockRule constructs a top-level navigation redirect rule and validates it.
func NewBlockRule(id uint32, pattern, source string) (BlockRule, error) {
	r := BlockRule{
		ID:      id,
		Pattern: pattern,
		Scope:   ScopeTopLevelNavigation,
		Action:  ActionRedirectToBlockedPage,
		Source:  strings.TrimSpace(source),
	}
	if err := r.Validate(); err != nil {
		return BlockRule{}, err
	}
	return r, nil
}

// Validate checks the BlockRule for required fields and supported values.
// Pattern syntax is the engine's concern and is not checked here.
func (r BlockRule) Validate() error {
	if r.ID == 0 {
		return fmt.Errorf("rule id must be positive")
	}
	if r.Pattern == "" {
		return fmt.Errorf("rule pattern must not be empty")
	}
	if r.Scope != ScopeTopLevelNavigation {
		return fmt.Errorf("unsupported ResourceScope: %d", r.Scope)
	}
	if r.Action != ActionRedirectToBlockedPage {
		return fmt.Errorf("unsupported RuleAction: %d", r.Action)
	}
	return nil
}

// RuleIDs returns the identifiers of rules in order.
func RuleIDs(rules []BlockRule) []uint32 {
	ids := make([]uint32, len(rules))
	for i, r := range rules {
		ids[i] = r.ID
	}
	return ids
}
