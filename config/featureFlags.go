package config

import (
	"os"
	"strings"
)

// RejectUnplannedIssueLines makes material issuance fail when a line's item has no
// matching consumption-plan entry on the order. Default behavior accepts such lines
// (they stay untracked for reconciliation).
//
// Set via env:
// - REJECT_UNPLANNED_ISSUE_LINES=true
func RejectUnplannedIssueLines() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("REJECT_UNPLANNED_ISSUE_LINES")))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

// StrictMovementImmutability enables fintech-grade guardrails:
// posted stock movements can never be edited; corrections go through adjustments.
//
// Set via env:
// - STRICT_MOVEMENT_IMMUTABLE=true
func StrictMovementImmutability() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("STRICT_MOVEMENT_IMMUTABLE")))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}
