// Package dampening computes the adaptive suppression interval for a
// detected DNS change and decides whether it should be notified.
package dampening

import (
	"fmt"
	"time"

	"github.com/dnsentinel/dnsentinel/analyzer/cdn"
	"github.com/dnsentinel/dnsentinel/analyzer/classifier"
	"github.com/dnsentinel/dnsentinel/analyzer/loadbalancer"
	"github.com/dnsentinel/dnsentinel/analyzer/temporal"
	"github.com/dnsentinel/dnsentinel/domainstate"
)

const (
	clampMin            = time.Minute
	clampMax            = 4 * time.Hour
	oscillationWindow   = 24 * time.Hour
	oscillationDetected = 2 * time.Hour
	oscillationPlain    = 30 * time.Minute
	suppressionWindow   = 4 * time.Hour
)

// Signals bundles every analyzer output the calculator consumes.
type Signals struct {
	TTL               time.Duration
	CDN               cdn.Result
	LB                loadbalancer.Result
	Temporal          temporal.Context
	Severity          classifier.Severity
	ChangesInLastHour int
	CurrentIPs        []string
	RecentIPHistory   []domainstate.IPHistoryEntry
	Now               time.Time
}

// Decision is the calculator's verdict.
type Decision struct {
	Notify          bool
	AutoSuppress    bool
	EffectivePeriod time.Duration
}

// Calculate implements the base-dampening table, the multiplier stack,
// the oscillation override, and auto-suppression, then decides whether
// to notify given lastNotificationAt.
//
// multiplier applies every matching signal rather than just one —
// see DESIGN.md decision 6 for why a worked example that only applies
// the severity factor doesn't change this.
func Calculate(s Signals, lastNotificationAt *time.Time) Decision {
	period := clamp(time.Duration(float64(baseDampening(s.TTL)) * multiplier(s)))

	if oscillating(s.CurrentIPs, s.RecentIPHistory, s.Now) {
		if s.CDN.IsAnyCDN || s.LB.IsLoadBalancer {
			period = oscillationDetected
		} else {
			period = oscillationPlain
		}
	}

	threshold := 5
	if s.LB.IsLoadBalancer {
		threshold = 3
	}
	if s.ChangesInLastHour >= threshold {
		return Decision{Notify: true, AutoSuppress: true, EffectivePeriod: suppressionWindow}
	}

	if lastNotificationAt != nil && s.Now.Sub(*lastNotificationAt) < period {
		return Decision{Notify: false, EffectivePeriod: period}
	}
	return Decision{Notify: true, EffectivePeriod: period}
}

// baseDampening reads the TTL bucket table. The second boundary is
// inclusive of 300s (a TTL of exactly 300 still gets the flat 15
// minutes) to match the worked 15-minute base for a 300s TTL change.
func baseDampening(ttl time.Duration) time.Duration {
	switch {
	case ttl < 60*time.Second:
		return 20 * time.Minute
	case ttl <= 300*time.Second:
		return 15 * time.Minute
	case ttl < 900*time.Second:
		return maxDuration(2*ttl, 5*time.Minute)
	default:
		return maxDuration(ttl, 5*time.Minute)
	}
}

func multiplier(s Signals) float64 {
	m := 1.0

	switch {
	case s.CDN.IsAnyCDN && s.CDN.Confidence > 0.8:
		m *= 2.0
	case s.CDN.IsAnyCDN:
		m *= 1.5
	}

	switch s.LB.Pattern {
	case loadbalancer.RoundRobin:
		m *= 3.0
	case loadbalancer.Weighted:
		m *= 2.0
	case loadbalancer.Failover:
		m *= 0.5
	case loadbalancer.Geographic:
		m *= 1.5
	}

	if s.Temporal.IsMaintenanceWindow {
		m *= 1.5
	}
	if s.Temporal.IsBusinessHours {
		m *= 0.8
	}

	switch s.Severity {
	case classifier.Critical:
		m *= 0.3
	case classifier.High:
		m *= 0.6
	case classifier.Low:
		m *= 2.0
	}

	switch {
	case s.ChangesInLastHour >= 5:
		m *= 4.0
	case s.ChangesInLastHour >= 3:
		m *= 2.0
	}

	return m
}

func clamp(d time.Duration) time.Duration {
	if d < clampMin {
		return clampMin
	}
	if d > clampMax {
		return clampMax
	}
	return d
}

func maxDuration(a, b time.Duration) time.Duration {
	if a > b {
		return a
	}
	return b
}

func oscillating(currentIPs []string, history []domainstate.IPHistoryEntry, now time.Time) bool {
	sig := signature(currentIPs)
	horizon := now.Add(-oscillationWindow)
	for _, e := range history {
		if e.At().Before(horizon) {
			continue
		}
		if signature(e.IPs) == sig {
			return true
		}
	}
	return false
}

func signature(ips []string) string {
	return fmt.Sprint(ips)
}
