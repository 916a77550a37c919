package placement

import (
	"fmt"
	"strings"
)

// Policy selects how eligible demand is grouped and ordered.
type Policy string

const (
	// VarietyFirst buckets demand by variety, mixed variety first.
	VarietyFirst Policy = "variety_first"
	// ClientBlock places whole clients only.
	ClientBlock Policy = "client_block"
	// PriorityOrdered places demand by descending priority.
	PriorityOrdered Policy = "priority"
	// Direct loads everything on a single pre-labelled carrier without checks.
	Direct Policy = "direct"
)

// ParsePolicy converts a configuration value into a Policy. Empty means VarietyFirst.
func ParsePolicy(raw string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(raw))); p {
	case "":
		return VarietyFirst, nil
	case VarietyFirst, ClientBlock, PriorityOrdered, Direct:
		return p, nil
	}
	return "", fmt.Errorf("%q: %w", raw, ErrUnknownPolicy)
}
