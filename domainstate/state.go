// Package domainstate is the typed view over store.Store implementing
// the bit-exact keyspace of: per-domain monitoring state,
// notification tracking, oscillation history, the dynamic domain list,
// the global change bucket, deployment version, and bot status.
package domainstate

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/dnsentinel/dnsentinel/dnserr"
	"github.com/dnsentinel/dnsentinel/store"
)

// State is a domain's monitoring lifecycle stage.
type State string

const (
	Unseen      State = "unseen"
	Resolved    State = "resolved"
	NoAuthority State = "no_authority"
)

const (
	maxIPHistory     = 10
	ipHistoryHorizon = 7 * 24 * time.Hour
	globalBucketSize = 5 * time.Minute
	globalBucketTTL  = time.Hour
)

// IPHistoryEntry is one observed IP-set snapshot.
type IPHistoryEntry struct {
	IPs       []string  `json:"ips"`
	Timestamp int64     `json:"timestamp"`
}

// At returns the entry's timestamp as a time.Time.
func (e IPHistoryEntry) At() time.Time {
	return time.UnixMilli(e.Timestamp)
}

// MonitoredState is the per-domain record.
type MonitoredState struct {
	State              State
	LastIPs            []string
	LastSerial         string
	LastNotificationAt *time.Time
	RecentIPHistory    []IPHistoryEntry
}

// ChangeEntry is one record in the global change bucket.
type ChangeEntry struct {
	Domain    string    `json:"domain"`
	IPs       []string  `json:"ips"`
	Timestamp int64     `json:"timestamp"`
}

// At returns the entry's timestamp as a time.Time.
func (e ChangeEntry) At() time.Time { return time.UnixMilli(e.Timestamp) }

// BotStatus is the heartbeat record written once per tick.
type BotStatus struct {
	Online           bool   `json:"online"`
	LastCheck        int64  `json:"lastCheck"`
	DomainsMonitored int    `json:"domainsMonitored"`
	Activity         string `json:"activity"`
	UpdatedAt        int64  `json:"updatedAt"`
}

// Repo wraps a store.Store with the typed accessors the rest of the
// system uses. It never validates FQDNs (callers use domain.Validate
// before reaching here).
type Repo struct {
	s store.Store
}

// New wraps s.
func New(s store.Store) *Repo {
	return &Repo{s: s}
}

func keyState(fqdn string) string      { return fmt.Sprintf("dns:%s:state", fqdn) }
func keyIPs(fqdn string) string        { return fmt.Sprintf("dns:%s:ips", fqdn) }
func keySerial(fqdn string) string     { return fmt.Sprintf("dns:%s:serial", fqdn) }
func keyNotifyLast(fqdn string) string { return fmt.Sprintf("notify:%s:last", fqdn) }
func keyRecentIPs(fqdn string) string  { return fmt.Sprintf("notify:%s:recent_ips", fqdn) }

const keyDynamicDomains = "dynamic:domains"
const keyVersion = "system:version_id"
const keyBotStatus = "bot:status"

func keyGlobalBucket(t time.Time) string {
	bucket := t.UnixMilli() / globalBucketSize.Milliseconds()
	return fmt.Sprintf("global:dns_changes:%d", bucket)
}

// Load reads a domain's MonitoredState. Absent keys default to the
// zero MonitoredState (State Unseen, no history).
func (r *Repo) Load(ctx context.Context, fqdn string) (MonitoredState, error) {
	var ms MonitoredState
	ms.State = Unseen

	if v, ok, err := r.s.Get(ctx, keyState(fqdn)); err != nil {
		return ms, dnserr.New(dnserr.Transport, "domainstate.Load state", err)
	} else if ok {
		ms.State = State(v)
	}

	if v, ok, err := r.s.Get(ctx, keyIPs(fqdn)); err != nil {
		return ms, dnserr.New(dnserr.Transport, "domainstate.Load ips", err)
	} else if ok && v != "" {
		ms.LastIPs = splitSorted(v)
	}

	if v, ok, err := r.s.Get(ctx, keySerial(fqdn)); err != nil {
		return ms, dnserr.New(dnserr.Transport, "domainstate.Load serial", err)
	} else if ok {
		ms.LastSerial = v
	}

	if v, ok, err := r.s.Get(ctx, keyNotifyLast(fqdn)); err != nil {
		return ms, dnserr.New(dnserr.Transport, "domainstate.Load notify last", err)
	} else if ok {
		ms.LastNotificationAt = parseEpochMillis(v)
	}

	if v, ok, err := r.s.Get(ctx, keyRecentIPs(fqdn)); err != nil {
		return ms, dnserr.New(dnserr.Transport, "domainstate.Load recent ips", err)
	} else if ok && v != "" {
		var hist []IPHistoryEntry
		if err := json.Unmarshal([]byte(v), &hist); err != nil {
			// Integrity error: treat corrupt history as absent rather
			// than surfacing to the caller.
			hist = nil
		}
		ms.RecentIPHistory = hist
	}

	return ms, nil
}

// WriteResolved atomically (best-effort) writes state, IPs, and
// serial for a domain transitioning to Resolved.
func (r *Repo) WriteResolved(ctx context.Context, fqdn string, ips []string, serial string) error {
	sorted := sortedCopy(ips)
	if err := r.s.Set(ctx, keyState(fqdn), string(Resolved)); err != nil {
		return dnserr.New(dnserr.Transport, "domainstate.WriteResolved state", err)
	}
	if err := r.s.Set(ctx, keyIPs(fqdn), joinSorted(sorted)); err != nil {
		return dnserr.New(dnserr.Transport, "domainstate.WriteResolved ips", err)
	}
	if err := r.s.Set(ctx, keySerial(fqdn), serial); err != nil {
		return dnserr.New(dnserr.Transport, "domainstate.WriteResolved serial", err)
	}
	return nil
}

// WriteSerial updates only the serial (used when IPs are unchanged but
// the zone serial advanced — step 7).
func (r *Repo) WriteSerial(ctx context.Context, fqdn, serial string) error {
	if err := r.s.Set(ctx, keySerial(fqdn), serial); err != nil {
		return dnserr.New(dnserr.Transport, "domainstate.WriteSerial", err)
	}
	return nil
}

// WriteNoAuthority transitions a domain to NoAuthority.
func (r *Repo) WriteNoAuthority(ctx context.Context, fqdn string) error {
	if err := r.s.Set(ctx, keyState(fqdn), string(NoAuthority)); err != nil {
		return dnserr.New(dnserr.Transport, "domainstate.WriteNoAuthority", err)
	}
	return nil
}

// RecordNotification sets lastNotificationAt to at. This must be
// written before the notification is emitted in
// failure-free execution, and stands even if the emit itself fails
// (fail-open on dampening).
func (r *Repo) RecordNotification(ctx context.Context, fqdn string, at time.Time) error {
	if err := r.s.Set(ctx, keyNotifyLast(fqdn), strconv.FormatInt(at.UnixMilli(), 10)); err != nil {
		return dnserr.New(dnserr.Transport, "domainstate.RecordNotification", err)
	}
	return nil
}

// ClearNotification deletes lastNotificationAt so the next change is
// notified immediately, regardless of the current dampening period.
func (r *Repo) ClearNotification(ctx context.Context, fqdn string) error {
	if err := r.s.Delete(ctx, keyNotifyLast(fqdn)); err != nil {
		return dnserr.New(dnserr.Transport, "domainstate.ClearNotification", err)
	}
	return nil
}

// AppendIPHistory appends a new IP-set observation and trims the
// history to the invariants: at most 10 entries, within
// a 7-day freshness horizon, ordered by timestamp ascending.
func (r *Repo) AppendIPHistory(ctx context.Context, fqdn string, ips []string, at time.Time) error {
	ms, err := r.Load(ctx, fqdn)
	if err != nil {
		return err
	}
	hist := append(ms.RecentIPHistory, IPHistoryEntry{
		IPs:       sortedCopy(ips),
		Timestamp: at.UnixMilli(),
	})
	hist = trimHistory(hist, at)

	b, err := json.Marshal(hist)
	if err != nil {
		return dnserr.New(dnserr.Integrity, "domainstate.AppendIPHistory marshal", err)
	}
	if err := r.s.Set(ctx, keyRecentIPs(fqdn), string(b)); err != nil {
		return dnserr.New(dnserr.Transport, "domainstate.AppendIPHistory", err)
	}
	return nil
}

func trimHistory(hist []IPHistoryEntry, now time.Time) []IPHistoryEntry {
	sort.Slice(hist, func(i, j int) bool { return hist[i].Timestamp < hist[j].Timestamp })
	horizon := now.Add(-ipHistoryHorizon).UnixMilli()
	fresh := hist[:0:0]
	for _, e := range hist {
		if e.Timestamp >= horizon {
			fresh = append(fresh, e)
		}
	}
	if len(fresh) > maxIPHistory {
		fresh = fresh[len(fresh)-maxIPHistory:]
	}
	return fresh
}

// Delete removes every key for fqdn.
func (r *Repo) Delete(ctx context.Context, fqdn string) error {
	for _, k := range []string{
		keyState(fqdn), keyIPs(fqdn), keySerial(fqdn),
		keyNotifyLast(fqdn), keyRecentIPs(fqdn),
	} {
		if err := r.s.Delete(ctx, k); err != nil {
			return dnserr.New(dnserr.Transport, "domainstate.Delete", err)
		}
	}
	return nil
}

// ListDynamic returns the current dynamic domain list.
func (r *Repo) ListDynamic(ctx context.Context) ([]string, error) {
	v, ok, err := r.s.Get(ctx, keyDynamicDomains)
	if err != nil {
		return nil, dnserr.New(dnserr.Transport, "domainstate.ListDynamic", err)
	}
	if !ok || v == "" {
		return nil, nil
	}
	var domains []string
	if err := json.Unmarshal([]byte(v), &domains); err != nil {
		return nil, nil // corrupt: treat as absent
	}
	return domains, nil
}

func (r *Repo) writeDynamic(ctx context.Context, domains []string) error {
	b, err := json.Marshal(domains)
	if err != nil {
		return dnserr.New(dnserr.Integrity, "domainstate.writeDynamic", err)
	}
	if err := r.s.Set(ctx, keyDynamicDomains, string(b)); err != nil {
		return dnserr.New(dnserr.Transport, "domainstate.writeDynamic", err)
	}
	return nil
}

// AddDynamic appends fqdn to the dynamic domain list if not already
// present. Returns added=false if it was a duplicate.
func (r *Repo) AddDynamic(ctx context.Context, fqdn string) (added bool, err error) {
	domains, err := r.ListDynamic(ctx)
	if err != nil {
		return false, err
	}
	for _, d := range domains {
		if d == fqdn {
			return false, nil
		}
	}
	domains = append(domains, fqdn)
	if err := r.writeDynamic(ctx, domains); err != nil {
		return false, err
	}
	return true, nil
}

// RemoveDynamic removes fqdn from the dynamic domain list. Returns
// removed=false if it was not present.
func (r *Repo) RemoveDynamic(ctx context.Context, fqdn string) (removed bool, err error) {
	domains, err := r.ListDynamic(ctx)
	if err != nil {
		return false, err
	}
	out := domains[:0:0]
	for _, d := range domains {
		if d != fqdn {
			out = append(out, d)
		}
	}
	if len(out) == len(domains) {
		return false, nil
	}
	if err := r.writeDynamic(ctx, out); err != nil {
		return false, err
	}
	return true, nil
}

// AppendGlobalChange appends a change observation to the current
// 5-minute bucket, used by the coordinated-change detector. Must be
// called before the detector reads the same tick's bucket.
func (r *Repo) AppendGlobalChange(ctx context.Context, fqdn string, ips []string, at time.Time) error {
	key := keyGlobalBucket(at)
	var entries []ChangeEntry
	if v, ok, err := r.s.Get(ctx, key); err == nil && ok && v != "" {
		_ = json.Unmarshal([]byte(v), &entries)
	}
	entries = append(entries, ChangeEntry{Domain: fqdn, IPs: sortedCopy(ips), Timestamp: at.UnixMilli()})
	b, err := json.Marshal(entries)
	if err != nil {
		return dnserr.New(dnserr.Integrity, "domainstate.AppendGlobalChange", err)
	}
	if err := r.s.SetTTL(ctx, key, string(b), globalBucketTTL); err != nil {
		return dnserr.New(dnserr.Transport, "domainstate.AppendGlobalChange", err)
	}
	return nil
}

// RecentGlobalChanges returns every change entry recorded in the
// current bucket and the one before it (the last 10 minutes), which
// the coordinated-change detector treats as its correlation window.
func (r *Repo) RecentGlobalChanges(ctx context.Context, now time.Time) ([]ChangeEntry, error) {
	var all []ChangeEntry
	for _, t := range []time.Time{now, now.Add(-globalBucketSize)} {
		key := keyGlobalBucket(t)
		v, ok, err := r.s.Get(ctx, key)
		if err != nil {
			return nil, dnserr.New(dnserr.Transport, "domainstate.RecentGlobalChanges", err)
		}
		if !ok || v == "" {
			continue
		}
		var entries []ChangeEntry
		if err := json.Unmarshal([]byte(v), &entries); err != nil {
			continue // corrupt bucket: skip
		}
		all = append(all, entries...)
	}
	return all, nil
}

// GetVersion returns the currently stored deployment id.
func (r *Repo) GetVersion(ctx context.Context) (string, error) {
	v, _, err := r.s.Get(ctx, keyVersion)
	if err != nil {
		return "", dnserr.New(dnserr.Transport, "domainstate.GetVersion", err)
	}
	return v, nil
}

// SetVersion stores the current deployment id.
func (r *Repo) SetVersion(ctx context.Context, id string) error {
	if err := r.s.Set(ctx, keyVersion, id); err != nil {
		return dnserr.New(dnserr.Transport, "domainstate.SetVersion", err)
	}
	return nil
}

// SetStatus writes the bot:status heartbeat.
func (r *Repo) SetStatus(ctx context.Context, status BotStatus) error {
	b, err := json.Marshal(status)
	if err != nil {
		return dnserr.New(dnserr.Integrity, "domainstate.SetStatus", err)
	}
	if err := r.s.Set(ctx, keyBotStatus, string(b)); err != nil {
		return dnserr.New(dnserr.Transport, "domainstate.SetStatus", err)
	}
	return nil
}

// GetStatus reads the bot:status heartbeat.
func (r *Repo) GetStatus(ctx context.Context) (BotStatus, bool, error) {
	v, ok, err := r.s.Get(ctx, keyBotStatus)
	if err != nil {
		return BotStatus{}, false, dnserr.New(dnserr.Transport, "domainstate.GetStatus", err)
	}
	if !ok {
		return BotStatus{}, false, nil
	}
	var status BotStatus
	if err := json.Unmarshal([]byte(v), &status); err != nil {
		return BotStatus{}, false, nil
	}
	return status, true, nil
}

func sortedCopy(ips []string) []string {
	out := append([]string{}, ips...)
	sort.Strings(out)
	return out
}

func joinSorted(ips []string) string {
	return joinComma(ips)
}

func splitSorted(v string) []string {
	if v == "" {
		return nil
	}
	parts := splitComma(v)
	sort.Strings(parts)
	return parts
}

func parseEpochMillis(v string) *time.Time {
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil
	}
	t := time.UnixMilli(ms)
	return &t
}
