// Package coordinated correlates near-simultaneous changes across
// sibling FQDNs sharing a registrable parent, distinguishing a
// platform-wide event from an isolated per-domain incident.
package coordinated

import (
	"fmt"
	"sort"

	"github.com/dnsentinel/dnsentinel/domain"
	"github.com/dnsentinel/dnsentinel/domainstate"
)

// Result is the correlation verdict for one domain's change.
type Result struct {
	IsCoordinated bool
	Score         float64
	AnalysisText  string
	RelatedDomains []string
}

// Detect inspects entries (the current and prior 5-minute global
// change buckets) for siblings of fqdn under the same registrable
// parent, computes IP overlap against currentIPs, and scores the
// correlation.
func Detect(entries []domainstate.ChangeEntry, fqdn string, currentIPs []string) Result {
	parent := domain.Parent(fqdn)

	relatedSet := make(map[string]struct{})
	var relatedIPs []string
	for _, e := range entries {
		if e.Domain == fqdn {
			continue
		}
		if domain.Parent(e.Domain) != parent {
			continue
		}
		relatedSet[e.Domain] = struct{}{}
		relatedIPs = append(relatedIPs, e.IPs...)
	}

	related := make([]string, 0, len(relatedSet))
	for d := range relatedSet {
		related = append(related, d)
	}
	sort.Strings(related)

	overlap := overlapRatio(currentIPs, relatedIPs)
	score := 0.3*float64(len(related)) + 0.7*overlap
	if score > 1 {
		score = 1
	}

	isCoordinated := len(related) >= 2 && score > 0.6

	return Result{
		IsCoordinated:  isCoordinated,
		Score:          score,
		AnalysisText:   analysisText(related, overlap, isCoordinated),
		RelatedDomains: related,
	}
}

func overlapRatio(currentIPs, relatedIPs []string) float64 {
	if len(currentIPs) == 0 && len(relatedIPs) == 0 {
		return 0
	}
	currentSet := toSet(currentIPs)
	relatedSet := toSet(relatedIPs)

	union := toSet(relatedIPs)
	for ip := range currentSet {
		union[ip] = struct{}{}
	}

	intersection := 0
	for ip := range relatedSet {
		if _, ok := currentSet[ip]; ok {
			intersection++
		}
	}

	denom := len(union)
	if len(currentIPs) > denom {
		denom = len(currentIPs)
	}
	if denom == 0 {
		return 0
	}
	return float64(intersection) / float64(denom)
}

func toSet(ips []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ips))
	for _, ip := range ips {
		set[ip] = struct{}{}
	}
	return set
}

func analysisText(related []string, overlap float64, isCoordinated bool) string {
	if !isCoordinated {
		return "no cross-domain correlation within the current window"
	}
	return fmt.Sprintf("change correlates with %d sibling domain(s) under the same parent, %.0f%% IP overlap",
		len(related), overlap*100)
}
