package domain

// BlockDecision represents the outcome of evaluating a navigation URL
// against the engine's rule set.
type BlockDecision struct {
	Blocked bool   // true if a rule redirects the navigation
	RuleID  uint32 // id of the first matching rule
	Pattern string // pattern of the matching rule
	Source  string // rule source that owns the matching rule
}

// IsBlocked is a convenience accessor.
func (d BlockDecision) IsBlocked() bool { return d.Blocked }

// EmptyDecision returns a not-blocked decision.
func EmptyDecision() BlockDecision { return BlockDecision{Blocked: false} }

// DecisionFor builds a blocking decision from the matched rule.
func DecisionFor(r BlockRule) BlockDecision {
	return BlockDecision{Blocked: true, RuleID: r.ID, Pattern: r.Pattern, Source: r.Source}
}
