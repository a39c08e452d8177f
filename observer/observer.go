// Package observer implements the per-domain tick: resolve, diff
// against stored state, run the change analyzer, persist, and notify.
package observer

import (
	"context"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dnsentinel/dnsentinel/analyzer/cdn"
	"github.com/dnsentinel/dnsentinel/analyzer/classifier"
	"github.com/dnsentinel/dnsentinel/analyzer/coordinated"
	"github.com/dnsentinel/dnsentinel/analyzer/dampening"
	"github.com/dnsentinel/dnsentinel/analyzer/loadbalancer"
	"github.com/dnsentinel/dnsentinel/analyzer/temporal"
	"github.com/dnsentinel/dnsentinel/domainstate"
	"github.com/dnsentinel/dnsentinel/metrics"
	"github.com/dnsentinel/dnsentinel/notify"
	"github.com/dnsentinel/dnsentinel/resolver"
)

// Observer runs one tick for one domain.
type Observer struct {
	Resolver resolver.Resolver
	Repo     *domainstate.Repo
	Notifier notify.Notifier
	Log      *logrus.Entry
	Now      func() time.Time
}

// New builds an Observer with sensible defaults for Now and Log.
func New(res resolver.Resolver, repo *domainstate.Repo, notifier notify.Notifier, log *logrus.Entry) *Observer {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Observer{Resolver: res, Repo: repo, Notifier: notifier, Log: log, Now: time.Now}
}

// Check runs one tick for fqdn, implementing each step in order:
// resolve, classify transport/authority failures, first-seen silent
// write, IP/serial diff branching, analyzer invocation, notify
// decision, and state persistence.
func (o *Observer) Check(ctx context.Context, fqdn string) error {
	now := o.now()
	log := o.Log.WithField("domain", fqdn)

	result, err := o.Resolver.Resolve(ctx, fqdn)
	if err != nil {
		metrics.ResolverErrorsTotal.Inc()
		metrics.DomainChecksTotal.WithLabelValues("transport_error").Inc()
		log.WithError(err).Warn("resolver transport error")
		o.emit(notify.ErrorMonitoring(fqdn, err))
		return nil
	}

	if result.NoAuthority {
		ms, err := o.Repo.Load(ctx, fqdn)
		if err != nil {
			return err
		}
		if ms.State != domainstate.NoAuthority {
			o.emit(notify.AuthorityUnreachable(fqdn))
			if err := o.Repo.WriteNoAuthority(ctx, fqdn); err != nil {
				return err
			}
		}
		metrics.DomainChecksTotal.WithLabelValues("no_authority").Inc()
		return nil
	}

	currentIPs := result.SortedIPs()
	serial := ""
	if result.SOA != nil {
		serial = result.SOA.Serial
	}

	ms, err := o.Repo.Load(ctx, fqdn)
	if err != nil {
		return err
	}

	if ms.State == domainstate.Unseen {
		if err := o.Repo.WriteResolved(ctx, fqdn, currentIPs, serial); err != nil {
			return err
		}
		metrics.DomainChecksTotal.WithLabelValues("first_seen").Inc()
		return nil
	}

	if !sameSet(currentIPs, ms.LastIPs) {
		if err := o.Repo.WriteResolved(ctx, fqdn, currentIPs, serial); err != nil {
			return err
		}
		if err := o.Repo.AppendGlobalChange(ctx, fqdn, currentIPs, now); err != nil {
			return err
		}
		metrics.DomainChecksTotal.WithLabelValues("ip_change").Inc()
		return o.analyzeAndNotify(ctx, fqdn, ms, currentIPs, serial, result, now, log)
	}

	if serial != ms.LastSerial {
		if err := o.Repo.WriteSerial(ctx, fqdn, serial); err != nil {
			return err
		}
		metrics.DomainChecksTotal.WithLabelValues("serial_only").Inc()
		o.emit(notify.ZoneUpdated(fqdn, serial))
		return nil
	}

	metrics.DomainChecksTotal.WithLabelValues("unchanged").Inc()
	return nil
}

func (o *Observer) analyzeAndNotify(
	ctx context.Context,
	fqdn string,
	prior domainstate.MonitoredState,
	currentIPs []string,
	serial string,
	res resolver.Result,
	now time.Time,
	log *logrus.Entry,
) error {
	tctx := temporal.Analyze(now)
	cdnResult := cdn.Detect(currentIPs)

	lbHistory := toLBEntries(prior.RecentIPHistory)
	lbHistory = append(lbHistory, loadbalancer.Entry{IPs: currentIPs, At: now})
	lbResult := loadbalancer.Analyze(lbHistory, now)

	ttl := time.Duration(res.MinTTL()) * time.Second
	changeCtx := classifier.Classify(prior.LastIPs, currentIPs, ttl, tctx, now)

	globalEntries, err := o.Repo.RecentGlobalChanges(ctx, now)
	if err != nil {
		return err
	}
	coordResult := coordinated.Detect(globalEntries, fqdn, currentIPs)

	if coordResult.IsCoordinated && lbResult.Pattern == loadbalancer.Unknown {
		lbResult = loadbalancer.Result{
			IsLoadBalancer: true,
			Pattern:        loadbalancer.RoundRobin,
			Confidence:     coordResult.Score,
			AnalysisText:   coordResult.AnalysisText,
		}
		changeCtx.Severity = classifier.High
	}

	changesInLastHour := countRecentChanges(prior.RecentIPHistory, now)

	decision := dampening.Calculate(dampening.Signals{
		TTL:               changeCtx.TTL,
		CDN:               cdnResult,
		LB:                lbResult,
		Temporal:          tctx,
		Severity:          changeCtx.Severity,
		ChangesInLastHour: changesInLastHour,
		CurrentIPs:        currentIPs,
		RecentIPHistory:   prior.RecentIPHistory,
		Now:               now,
	}, prior.LastNotificationAt)

	if err := o.Repo.AppendIPHistory(ctx, fqdn, currentIPs, now); err != nil {
		return err
	}

	if decision.AutoSuppress {
		if err := o.Repo.RecordNotification(ctx, fqdn, now); err != nil {
			return err
		}
		o.emit(notify.AutoSuppressionNotice(fqdn, changesInLastHour, decision.EffectivePeriod.String()))
		return nil
	}

	if !decision.Notify {
		metrics.NotificationsSuppressedTotal.Inc()
		log.Debug("change suppressed by dampening calculator")
		return nil
	}

	if err := o.Repo.RecordNotification(ctx, fqdn, now); err != nil {
		return err
	}

	n := notify.Build(notify.Bundle{
		Domain:      fqdn,
		PreviousIPs: prior.LastIPs,
		CurrentIPs:  currentIPs,
		Change:      changeCtx,
		CDN:         cdnResult,
		LB:          lbResult,
		Temporal:    tctx,
		Coordinated: coordResult,
		SOASerial:   serial,
		Period:      decision.EffectivePeriod.String(),
	})
	o.emit(n)
	return nil
}

func (o *Observer) emit(n notify.Notification) {
	metrics.NotificationsEmittedTotal.WithLabelValues(n.Title).Inc()
	if o.Notifier == nil {
		return
	}
	if err := o.Notifier.Emit(n); err != nil {
		o.Log.WithError(err).Warn("notifier emit failed")
	}
}

func (o *Observer) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func toLBEntries(hist []domainstate.IPHistoryEntry) []loadbalancer.Entry {
	out := make([]loadbalancer.Entry, 0, len(hist))
	for _, e := range hist {
		out = append(out, loadbalancer.Entry{IPs: e.IPs, At: e.At()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].At.Before(out[j].At) })
	return out
}

func countRecentChanges(hist []domainstate.IPHistoryEntry, now time.Time) int {
	cutoff := now.Add(-time.Hour)
	count := 0
	for _, e := range hist {
		if !e.At().Before(cutoff) {
			count++
		}
	}
	return count
}

