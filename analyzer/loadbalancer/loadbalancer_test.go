package loadbalancer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAnalyzeInsufficientHistory(t *testing.T) {
	now := time.Now()
	history := []Entry{
		{IPs: []string{"1.1.1.1"}, At: now.Add(-10 * time.Minute)},
		{IPs: []string{"1.1.1.2"}, At: now.Add(-5 * time.Minute)},
	}
	r := Analyze(history, now)
	assert.Equal(t, Unknown, r.Pattern)
	assert.False(t, r.IsLoadBalancer)
}

func TestAnalyzeExactlyThreeEntriesNoRoundRobin(t *testing.T) {
	// round_robin requires N >= 5; 3 entries must never
	// misclassify as round_robin even with 2-3 signatures.
	now := time.Now()
	history := []Entry{
		{IPs: []string{"1.1.1.1"}, At: now.Add(-50 * time.Minute)},
		{IPs: []string{"1.1.1.2"}, At: now.Add(-30 * time.Minute)},
		{IPs: []string{"1.1.1.1"}, At: now.Add(-10 * time.Minute)},
	}
	r := Analyze(history, now)
	assert.NotEqual(t, RoundRobin, r.Pattern)
}

func TestAnalyzeRoundRobin(t *testing.T) {
	now := time.Now()
	var history []Entry
	for i := 0; i < 6; i++ {
		ips := []string{"104.16.0.1", "104.16.0.2"}
		if i%2 == 0 {
			ips = []string{"104.16.0.3", "104.16.0.4"}
		}
		history = append(history, Entry{IPs: ips, At: now.Add(-time.Duration(60-i*10) * time.Minute)})
	}
	r := Analyze(history, now)
	assert.Equal(t, RoundRobin, r.Pattern)
	assert.True(t, r.IsLoadBalancer)
	assert.Equal(t, 0.8, r.Confidence)
}

func TestAnalyzeWeighted(t *testing.T) {
	now := time.Now()
	history := []Entry{
		{IPs: []string{"1.1.1.1"}, At: now.Add(-50 * time.Minute)},
		{IPs: []string{"1.1.1.1"}, At: now.Add(-40 * time.Minute)},
		{IPs: []string{"1.1.1.1"}, At: now.Add(-30 * time.Minute)},
		{IPs: []string{"2.2.2.2"}, At: now.Add(-10 * time.Minute)},
	}
	r := Analyze(history, now)
	assert.Equal(t, Weighted, r.Pattern)
}

func TestAnalyzeWeightedUndefinedWithSingleSignature(t *testing.T) {
	now := time.Now()
	history := []Entry{
		{IPs: []string{"1.1.1.1"}, At: now.Add(-50 * time.Minute)},
		{IPs: []string{"1.1.1.1"}, At: now.Add(-30 * time.Minute)},
		{IPs: []string{"1.1.1.1"}, At: now.Add(-10 * time.Minute)},
	}
	r := Analyze(history, now)
	assert.NotEqual(t, Weighted, r.Pattern)
}

func TestAnalyzeFailover(t *testing.T) {
	// a last gap 12x the mean of the other gaps, with two IP sets seen
	// equally often (so the weighted rule, checked first, does not
	// match), must classify as failover.
	now := time.Now()
	history := []Entry{
		{IPs: []string{"1.1.1.1"}, At: now.Add(-14 * time.Minute)},
		{IPs: []string{"1.1.1.1"}, At: now.Add(-13 * time.Minute)},
		{IPs: []string{"2.2.2.2"}, At: now.Add(-12 * time.Minute)},
		{IPs: []string{"2.2.2.2"}, At: now},
	}
	r := Analyze(history, now)
	assert.Equal(t, Failover, r.Pattern)
	assert.Equal(t, 0.6, r.Confidence)
}
