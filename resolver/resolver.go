// Package resolver queries a recursive resolver over DNS-over-HTTPS
// for a domain's A records and SOA, combining both into one
// ResolveResult. Implementation detail only — the system never
// performs authoritative resolution.
package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/linki/instrumented_http"
	"github.com/miekg/dns"
	"go.uber.org/ratelimit"

	"github.com/dnsentinel/dnsentinel/dnserr"
)

// authorityUnreachableMarker is the DoH comment substring that signals
// the recursive resolver could not reach any authoritative server for
// the queried zone.
const authorityUnreachableMarker = "No Reachable Authority"

// ARecord is one answer from the A-record query.
type ARecord struct {
	IP  string
	TTL uint32
}

// SOA summarizes a Start-of-Authority answer.
type SOA struct {
	PrimaryNS  string
	AdminEmail string
	Serial     string
	Refresh    uint32
	Retry      uint32
	Expire     uint32
	MinTTL     uint32
}

// Result is the combined outcome of the two independent DoH queries.
type Result struct {
	ARecords    []ARecord
	SOA         *SOA
	Status      int
	NoAuthority bool
	Comments    []string
}

// SortedIPs returns the A-record IP addresses sorted ascending
// lexicographically, the canonical form requires.
func (r Result) SortedIPs() []string {
	ips := make([]string, 0, len(r.ARecords))
	for _, a := range r.ARecords {
		ips = append(ips, a.IP)
	}
	sort.Strings(ips)
	return ips
}

// MinTTL returns the smallest TTL among the A records, or 0 if none.
func (r Result) MinTTL() uint32 {
	var min uint32
	for i, a := range r.ARecords {
		if i == 0 || a.TTL < min {
			min = a.TTL
		}
	}
	return min
}

// Resolver is the seam the Observer depends on.
type Resolver interface {
	Resolve(ctx context.Context, fqdn string) (Result, error)
}

// Config configures a DoHResolver.
type Config struct {
	// Endpoint is the DoH base URL, e.g. "https://1.1.1.1/dns-query".
	Endpoint string
	// Timeout bounds each individual query.
	Timeout time.Duration
	// RatePerSecond bounds outbound queries/sec across all domains.
	// Zero disables limiting.
	RatePerSecond int
}

// DoHResolver is the production Resolver, querying a fixed recursive
// resolver over HTTPS.
type DoHResolver struct {
	endpoint string
	client   *http.Client
	limiter  ratelimit.Limiter
}

// New builds a DoHResolver from cfg. The HTTP client is wrapped with
// instrumented_http so DoH latency/error rates surface as metrics.
func New(cfg Config) *DoHResolver {
	base := &http.Client{Timeout: cfg.Timeout}
	client := instrumented_http.NewClient(base, &instrumented_http.CallbackOptions{
		PathProcessor: func(path string) string { return "dns-query" },
	})

	var limiter ratelimit.Limiter
	if cfg.RatePerSecond > 0 {
		limiter = ratelimit.New(cfg.RatePerSecond)
	} else {
		limiter = ratelimit.NewUnlimited()
	}

	return &DoHResolver{endpoint: cfg.Endpoint, client: client, limiter: limiter}
}

type dohResponse struct {
	Status int `json:"Status"`
	Answer []struct {
		Name string `json:"name"`
		Type int    `json:"type"`
		TTL  uint32 `json:"TTL"`
		Data string `json:"data"`
	} `json:"Answer"`
	Comment []string `json:"Comment"`
}

// Resolve performs the two independent DoH queries (SOA then A) and
// combines them.
func (r *DoHResolver) Resolve(ctx context.Context, fqdn string) (Result, error) {
	soaResp, err := r.query(ctx, fqdn, dns.TypeSOA)
	if err != nil {
		return Result{}, dnserr.New(dnserr.Transport, "resolver.Resolve soa", err)
	}

	aResp, err := r.query(ctx, fqdn, dns.TypeA)
	if err != nil {
		return Result{}, dnserr.New(dnserr.Transport, "resolver.Resolve a", err)
	}

	result := Result{
		Status:   aResp.Status,
		Comments: append(append([]string{}, soaResp.Comment...), aResp.Comment...),
	}
	for _, c := range result.Comments {
		if strings.Contains(c, authorityUnreachableMarker) {
			result.NoAuthority = true
			break
		}
	}

	for _, ans := range aResp.Answer {
		if ans.Type != int(dns.TypeA) {
			continue
		}
		result.ARecords = append(result.ARecords, ARecord{IP: ans.Data, TTL: ans.TTL})
	}

	for _, ans := range soaResp.Answer {
		if ans.Type != int(dns.TypeSOA) {
			continue
		}
		soa, perr := parseSOA(ans.Data)
		if perr != nil {
			continue
		}
		result.SOA = soa
		break
	}

	return result, nil
}

func (r *DoHResolver) query(ctx context.Context, fqdn string, qtype uint16) (*dohResponse, error) {
	r.limiter.Take()

	url := fmt.Sprintf("%s?name=%s&type=%s", r.endpoint, fqdn, dns.TypeToString[qtype])
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/dns-json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out dohResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

// parseSOA parses the whitespace-separated SOA record data field:
// "primaryNS admin serial refresh retry expire minTTL".
func parseSOA(data string) (*SOA, error) {
	fields := strings.Fields(data)
	if len(fields) != 7 {
		return nil, dnserr.New(dnserr.Integrity, "resolver.parseSOA", fmt.Errorf("expected 7 fields, got %d", len(fields)))
	}
	parseU32 := func(s string) uint32 {
		v, _ := strconv.ParseUint(s, 10, 32)
		return uint32(v)
	}
	return &SOA{
		PrimaryNS:  fields[0],
		AdminEmail: fields[1],
		Serial:     fields[2],
		Refresh:    parseU32(fields[3]),
		Retry:      parseU32(fields[4]),
		Expire:     parseU32(fields[5]),
		MinTTL:     parseU32(fields[6]),
	}, nil
}
