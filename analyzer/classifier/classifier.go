// Package classifier computes a change's type and base severity from
// the previous and current IP sets, the record TTL, and temporal
// context.
package classifier

import (
	"time"

	"github.com/dnsentinel/dnsentinel/analyzer/temporal"
)

// ChangeType names the shape of an observed IP-set transition.
type ChangeType string

const (
	Addition       ChangeType = "addition"
	Removal        ChangeType = "removal"
	Replacement    ChangeType = "replacement"
	CompleteChange ChangeType = "complete_change"
)

// Severity ranks how urgently a change warrants attention.
type Severity string

const (
	Low      Severity = "low"
	Medium   Severity = "medium"
	High     Severity = "high"
	Critical Severity = "critical"
)

// Context is the classifier's verdict.
type Context struct {
	ChangeType ChangeType
	Severity   Severity
	TTL        time.Duration
	Confidence float64
	At         time.Time
}

// Classify implements the changeType/severity rules: addition/removal
// from emptiness, disjoint nonempty sets as a complete change,
// otherwise a replacement. Severity is critical for a complete change
// during business hours, high for a removal, low for any other change
// during a maintenance window, and medium otherwise; TTL is
// informational only.
func Classify(previousIPs, currentIPs []string, ttl time.Duration, tctx temporal.Context, now time.Time) Context {
	changeType := classifyType(previousIPs, currentIPs)

	var severity Severity
	switch {
	case changeType == CompleteChange && tctx.IsBusinessHours:
		severity = Critical
	case changeType == Removal:
		severity = High
	case tctx.IsMaintenanceWindow:
		severity = Low
	default:
		severity = Medium
	}

	return Context{
		ChangeType: changeType,
		Severity:   severity,
		TTL:        ttl,
		Confidence: 0.8,
		At:         now,
	}
}

func classifyType(previousIPs, currentIPs []string) ChangeType {
	if len(previousIPs) == 0 {
		return Addition
	}
	if len(currentIPs) == 0 {
		return Removal
	}
	if disjoint(previousIPs, currentIPs) {
		return CompleteChange
	}
	return Replacement
}

func disjoint(a, b []string) bool {
	set := make(map[string]struct{}, len(a))
	for _, ip := range a {
		set[ip] = struct{}{}
	}
	for _, ip := range b {
		if _, ok := set[ip]; ok {
			return false
		}
	}
	return true
}
