// Package scheduler fans out Observer.Check across the monitored
// domain set once per tick.
package scheduler

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/dnsentinel/dnsentinel/domainstate"
	"github.com/dnsentinel/dnsentinel/metrics"
	"github.com/dnsentinel/dnsentinel/notify"
	"github.com/dnsentinel/dnsentinel/observer"
)

// DefaultConcurrency bounds how many domain checks run at once within
// a tick.
const DefaultConcurrency = 16

// DomainSource supplies the domain set for a tick.
type DomainSource interface {
	Static() []string
	Dynamic(ctx context.Context) ([]string, error)
}

// Scheduler owns one Observer and runs it across a domain set on each
// tick, bounded to Concurrency in-flight checks.
type Scheduler struct {
	Observer    *observer.Observer
	Repo        *domainstate.Repo
	Notifier    notify.Notifier
	Domains     DomainSource
	Concurrency int
	Log         *logrus.Entry
	Now         func() time.Time
}

// New builds a Scheduler with DefaultConcurrency.
func New(obs *observer.Observer, repo *domainstate.Repo, notifier notify.Notifier, domains DomainSource, log *logrus.Entry) *Scheduler {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Scheduler{
		Observer:    obs,
		Repo:        repo,
		Notifier:    notifier,
		Domains:     domains,
		Concurrency: DefaultConcurrency,
		Log:         log,
		Now:         time.Now,
	}
}

// Tick enumerates the union of static and dynamic domains, emits a
// NewDeployment notification if versionID differs from the stored
// deployment id, fans out Observer.Check with bounded concurrency, and
// writes the bot:status heartbeat once all checks settle.
func (s *Scheduler) Tick(ctx context.Context, versionID string) error {
	if err := s.checkDeployment(ctx, versionID); err != nil {
		s.Log.WithError(err).Warn("deployment-id check failed")
	}

	domains, err := s.domainSet(ctx)
	if err != nil {
		return err
	}

	concurrency := s.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	g, gctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, concurrency)

	for _, d := range domains {
		d := d
		sem <- struct{}{}
		g.Go(func() error {
			defer func() { <-sem }()
			if err := s.Observer.Check(gctx, d); err != nil {
				s.Log.WithField("domain", d).WithError(err).Warn("observer check failed")
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	metrics.TicksTotal.Inc()
	metrics.DomainsMonitored.Set(float64(len(domains)))

	now := s.now()
	return s.Repo.SetStatus(ctx, domainstate.BotStatus{
		Online:           true,
		LastCheck:        now.UnixMilli(),
		DomainsMonitored: len(domains),
		Activity:         "monitoring",
		UpdatedAt:        now.UnixMilli(),
	})
}

func (s *Scheduler) checkDeployment(ctx context.Context, versionID string) error {
	if versionID == "" {
		return nil
	}
	current, err := s.Repo.GetVersion(ctx)
	if err != nil {
		return err
	}
	if current == versionID {
		return nil
	}
	if err := s.Repo.SetVersion(ctx, versionID); err != nil {
		return err
	}
	if s.Notifier != nil {
		if err := s.Notifier.Emit(notify.NewDeployment(versionID)); err != nil {
			s.Log.WithError(err).Warn("new deployment notification failed")
		}
	}
	return nil
}

func (s *Scheduler) domainSet(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	var out []string
	for _, d := range s.Domains.Static() {
		if _, ok := seen[d]; !ok {
			seen[d] = struct{}{}
			out = append(out, d)
		}
	}
	dynamic, err := s.Domains.Dynamic(ctx)
	if err != nil {
		return nil, err
	}
	for _, d := range dynamic {
		if _, ok := seen[d]; !ok {
			seen[d] = struct{}{}
			out = append(out, d)
		}
	}
	return out, nil
}

// StaticAndDynamic is the default DomainSource: a fixed boot-time list
// plus, when Dynamic is enabled, whatever the external command surface
// has added.
type StaticAndDynamic struct {
	StaticDomains []string
	DynamicSource bool
	Repo          *domainstate.Repo
}

func (d StaticAndDynamic) Static() []string { return d.StaticDomains }

func (d StaticAndDynamic) Dynamic(ctx context.Context) ([]string, error) {
	if !d.DynamicSource {
		return nil, nil
	}
	return d.Repo.ListDynamic(ctx)
}

func (s *Scheduler) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
