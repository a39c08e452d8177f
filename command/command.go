// Package command implements the external command surface consumed by
// the chat-command module: list, add, remove, and dampening/status
// inspection for monitored domains.
package command

import (
	"context"
	"strings"

	"github.com/dnsentinel/dnsentinel/domain"
	"github.com/dnsentinel/dnsentinel/domainstate"
)

// AddResult names the outcome of AddDynamic.
type AddResult string

const (
	Added     AddResult = "added"
	Duplicate AddResult = "duplicate"
	Invalid   AddResult = "invalid"
)

// RemoveResult names the outcome of RemoveDynamic.
type RemoveResult string

const (
	Removed  RemoveResult = "removed"
	NotFound RemoveResult = "not_found"
)

// Domains is the {static, dynamic} pair returned by ListDomains.
type Domains struct {
	Static  []string
	Dynamic []string
}

// Surface implements the command surface over a Repo and a fixed
// static domain list. Static domains cannot be removed through this
// surface.
type Surface struct {
	Repo          *domainstate.Repo
	StaticDomains []string
}

// New builds a Surface.
func New(repo *domainstate.Repo, staticDomains []string) *Surface {
	return &Surface{Repo: repo, StaticDomains: staticDomains}
}

// ListDomains returns the current static and dynamic domain sets.
func (s *Surface) ListDomains(ctx context.Context) (Domains, error) {
	dynamic, err := s.Repo.ListDynamic(ctx)
	if err != nil {
		return Domains{}, err
	}
	return Domains{Static: s.StaticDomains, Dynamic: dynamic}, nil
}

// AddDynamic validates and normalizes fqdn, then adds it to the
// dynamic domain list.
func (s *Surface) AddDynamic(ctx context.Context, fqdn string) (AddResult, error) {
	normalized, err := domain.Validate(fqdn)
	if err != nil {
		return Invalid, nil
	}
	added, err := s.Repo.AddDynamic(ctx, normalized)
	if err != nil {
		return "", err
	}
	if !added {
		return Duplicate, nil
	}
	return Added, nil
}

// RemoveDynamic removes fqdn from the dynamic domain list.
func (s *Surface) RemoveDynamic(ctx context.Context, fqdn string) (RemoveResult, error) {
	normalized := domain.Normalize(fqdn)
	removed, err := s.Repo.RemoveDynamic(ctx, normalized)
	if err != nil {
		return "", err
	}
	if !removed {
		return NotFound, nil
	}
	if err := s.Repo.Delete(ctx, normalized); err != nil {
		return "", err
	}
	return Removed, nil
}

// RemoveSubtree removes fqdn and every dynamic domain suffixed with
// ".fqdn". Static matches are refused — provenance affects removal
// permission only.
func (s *Surface) RemoveSubtree(ctx context.Context, fqdn string) ([]string, error) {
	normalized := domain.Normalize(fqdn)
	for _, d := range s.StaticDomains {
		if d == normalized || strings.HasSuffix(d, "."+normalized) {
			return nil, domain.ErrStaticDomain
		}
	}

	dynamic, err := s.Repo.ListDynamic(ctx)
	if err != nil {
		return nil, err
	}

	var removed []string
	for _, d := range dynamic {
		if d == normalized || strings.HasSuffix(d, "."+normalized) {
			if _, err := s.Repo.RemoveDynamic(ctx, d); err != nil {
				return removed, err
			}
			if err := s.Repo.Delete(ctx, d); err != nil {
				return removed, err
			}
			removed = append(removed, d)
		}
	}
	return removed, nil
}

// Dampening is the subset of MonitoredState relevant to an operator
// inspecting why a domain is or isn't notifying.
type Dampening struct {
	LastNotificationAtMillis int64
	RecentChangeCount        int
}

// GetDampening reports the domain's current notification-tracking
// state.
func (s *Surface) GetDampening(ctx context.Context, fqdn string) (Dampening, error) {
	ms, err := s.Repo.Load(ctx, domain.Normalize(fqdn))
	if err != nil {
		return Dampening{}, err
	}
	var last int64
	if ms.LastNotificationAt != nil {
		last = ms.LastNotificationAt.UnixMilli()
	}
	return Dampening{LastNotificationAtMillis: last, RecentChangeCount: len(ms.RecentIPHistory)}, nil
}

// ClearDampening resets a domain's notification tracking so the next
// change is notified immediately.
func (s *Surface) ClearDampening(ctx context.Context, fqdn string) error {
	return s.Repo.ClearNotification(ctx, domain.Normalize(fqdn))
}

// GetStatus reports a domain's current lifecycle state.
func (s *Surface) GetStatus(ctx context.Context, fqdn string) (domainstate.MonitoredState, error) {
	return s.Repo.Load(ctx, domain.Normalize(fqdn))
}
