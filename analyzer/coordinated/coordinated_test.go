package coordinated

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dnsentinel/dnsentinel/domainstate"
)

func TestDetectNoRelatedDomains(t *testing.T) {
	r := Detect(nil, "a.example.com", []string{"1.1.1.1"})
	assert.False(t, r.IsCoordinated)
	assert.Empty(t, r.RelatedDomains)
}

func TestDetectCoordinatedAcrossSiblings(t *testing.T) {
	now := time.Now()
	entries := []domainstate.ChangeEntry{
		{Domain: "api.example.com", IPs: []string{"9.9.9.9"}, Timestamp: now.UnixMilli()},
		{Domain: "www.example.com", IPs: []string{"9.9.9.9"}, Timestamp: now.UnixMilli()},
		{Domain: "mail.other.com", IPs: []string{"9.9.9.9"}, Timestamp: now.UnixMilli()},
	}
	r := Detect(entries, "app.example.com", []string{"9.9.9.9"})
	assert.True(t, r.IsCoordinated)
	assert.Greater(t, r.Score, 0.6)
	assert.ElementsMatch(t, []string{"api.example.com", "www.example.com"}, r.RelatedDomains)
}

func TestDetectExcludesSelf(t *testing.T) {
	now := time.Now()
	entries := []domainstate.ChangeEntry{
		{Domain: "app.example.com", IPs: []string{"9.9.9.9"}, Timestamp: now.UnixMilli()},
	}
	r := Detect(entries, "app.example.com", []string{"9.9.9.9"})
	assert.Empty(t, r.RelatedDomains)
}

func TestDetectRequiresTwoRelatedDomains(t *testing.T) {
	now := time.Now()
	entries := []domainstate.ChangeEntry{
		{Domain: "api.example.com", IPs: []string{"9.9.9.9"}, Timestamp: now.UnixMilli()},
	}
	r := Detect(entries, "app.example.com", []string{"9.9.9.9"})
	assert.False(t, r.IsCoordinated)
}

func TestDetectLowOverlapNotCoordinated(t *testing.T) {
	now := time.Now()
	entries := []domainstate.ChangeEntry{
		{Domain: "api.example.com", IPs: []string{"1.1.1.1"}, Timestamp: now.UnixMilli()},
		{Domain: "www.example.com", IPs: []string{"2.2.2.2"}, Timestamp: now.UnixMilli()},
	}
	r := Detect(entries, "app.example.com", []string{"9.9.9.9"})
	assert.False(t, r.IsCoordinated)
}
