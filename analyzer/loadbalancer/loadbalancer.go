// Package loadbalancer classifies a domain's windowed IP-set history
// into a load-balancing behavior pattern.
package loadbalancer

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Pattern names a detected load-balancing behavior.
type Pattern string

const (
	RoundRobin Pattern = "round_robin"
	Weighted   Pattern = "weighted"
	Failover   Pattern = "failover"
	Geographic Pattern = "geographic"
	Unknown    Pattern = "unknown"
)

// Entry is one windowed observation: a sorted IP set and its time.
type Entry struct {
	IPs []string
	At  time.Time
}

// Result is the analyzer's verdict.
type Result struct {
	IsLoadBalancer bool
	Pattern        Pattern
	Confidence     float64
	AnalysisText   string
}

// Analyze classifies windowed history: only entries within the last hour
// qualify; fewer than 3 qualifying entries yields Unknown. Evaluation
// order is round_robin, then weighted, then failover; first match
// wins.
func Analyze(history []Entry, now time.Time) Result {
	qualifying := filterLastHour(history, now)
	n := len(qualifying)
	if n < 3 {
		return Result{Pattern: Unknown, AnalysisText: "insufficient history in the last hour to classify"}
	}

	signatures := make(map[string]int)
	for _, e := range qualifying {
		signatures[signature(e.IPs)]++
	}
	u := len(signatures)

	if n >= 5 && u >= 2 && u <= 3 {
		return Result{
			IsLoadBalancer: true,
			Pattern:        RoundRobin,
			Confidence:     0.8,
			AnalysisText:   fmt.Sprintf("round-robin rotation across %d distinct IP sets over %d observations", u, n),
		}
	}

	if u >= 2 && u <= 4 {
		if isWeighted(signatures) {
			return Result{
				IsLoadBalancer: true,
				Pattern:        Weighted,
				Confidence:     0.7,
				AnalysisText:   fmt.Sprintf("weighted distribution across %d distinct IP sets, one dominant", u),
			}
		}
	}

	if u <= 2 && isFailoverGapPattern(qualifying) {
		return Result{
			IsLoadBalancer: true,
			Pattern:        Failover,
			Confidence:     0.6,
			AnalysisText:   fmt.Sprintf("an outlier gap between changes across %d distinct IP sets suggests failover", u),
		}
	}

	return Result{Pattern: Unknown, AnalysisText: "no recognizable load-balancing pattern in the last hour"}
}

func filterLastHour(history []Entry, now time.Time) []Entry {
	cutoff := now.Add(-time.Hour)
	var out []Entry
	for _, e := range history {
		if !e.At.Before(cutoff) {
			out = append(out, e)
		}
	}
	return out
}

func signature(ips []string) string {
	sorted := append([]string{}, ips...)
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}

// isWeighted reports whether the most-frequent signature occurs more
// than 1.5x the second-most-frequent. Undefined (and treated as false)
// when there is only one distinct signature.
func isWeighted(signatures map[string]int) bool {
	if len(signatures) < 2 {
		return false
	}
	counts := make([]int, 0, len(signatures))
	for _, c := range signatures {
		counts = append(counts, c)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(counts)))
	first, second := counts[0], counts[1]
	if second == 0 {
		return false
	}
	return float64(first) > 1.5*float64(second)
}

// isFailoverGapPattern reports whether any gap between consecutive
// entries exceeds 3x the mean of the OTHER gaps — a leave-one-out
// baseline, since comparing a gap against a mean that includes itself
// can never flag an outlier when there are only two other gaps (the
// exact shape of a short failover sequence).
func isFailoverGapPattern(entries []Entry) bool {
	sorted := append([]Entry{}, entries...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].At.Before(sorted[j].At) })

	if len(sorted) < 2 {
		return false
	}
	var gaps []time.Duration
	for i := 1; i < len(sorted); i++ {
		gaps = append(gaps, sorted[i].At.Sub(sorted[i-1].At))
	}
	if len(gaps) < 2 {
		return false
	}
	var total time.Duration
	for _, g := range gaps {
		total += g
	}
	for _, g := range gaps {
		othersSum := total - g
		othersMean := othersSum / time.Duration(len(gaps)-1)
		if othersMean <= 0 {
			continue
		}
		if g > 3*othersMean {
			return true
		}
	}
	return false
}
