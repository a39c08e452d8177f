// Package domain holds the Domain identity type: validation and
// canonicalization of the fully-qualified domain names this system
// watches.
package domain

import (
	"regexp"
	"strings"

	"github.com/miekg/dns"

	"github.com/dnsentinel/dnsentinel/dnserr"
)

const maxFQDNLength = 253

// labelPattern matches the full dot-separated label grammar a
// monitored domain must satisfy.
var labelPattern = regexp.MustCompile(
	`^[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(\.[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$`,
)

// Provenance distinguishes domains configured at boot from domains
// added at runtime through the external command surface. It affects
// removal permission only (static domains cannot be removed).
type Provenance int

const (
	// Static domains come from a boot-time list and are immutable via
	// the command surface.
	Static Provenance = iota
	// Dynamic domains were added at runtime and may be removed.
	Dynamic
)

func (p Provenance) String() string {
	if p == Static {
		return "static"
	}
	return "dynamic"
}

// Normalize lowercases and trims a trailing dot from fqdn without
// validating it.
func Normalize(fqdn string) string {
	fqdn = strings.TrimSuffix(strings.TrimSpace(fqdn), ".")
	return strings.ToLower(fqdn)
}

// Validate normalizes fqdn and checks it against the label grammar and
// length bound. It returns the canonical form or a *dnserr.Error of
// Kind Validation.
func Validate(fqdn string) (string, error) {
	norm := Normalize(fqdn)
	if norm == "" {
		return "", dnserr.New(dnserr.Validation, "domain.Validate", errEmptyFQDN)
	}
	if len(norm) > maxFQDNLength {
		return "", dnserr.New(dnserr.Validation, "domain.Validate", errTooLong)
	}
	if !labelPattern.MatchString(norm) {
		return "", dnserr.New(dnserr.Validation, "domain.Validate", errBadLabel)
	}
	// dns.IsFqdn wants a trailing dot; give it one for the sanity
	// check but keep the stored form dot-free.
	if !dns.IsFqdn(norm + ".") {
		return "", dnserr.New(dnserr.Validation, "domain.Validate", errBadLabel)
	}
	return norm, nil
}

// Parent returns the registrable parent of fqdn: its last two
// dot-separated labels. Used by the coordinated-change detector to
// group sibling domains.
func Parent(fqdn string) string {
	labels := strings.Split(fqdn, ".")
	if len(labels) < 2 {
		return fqdn
	}
	return strings.Join(labels[len(labels)-2:], ".")
}

// IsSubtreeOf reports whether fqdn equals parent or is a subdomain of
// it (i.e. fqdn is suffixed by "."+parent).
func IsSubtreeOf(fqdn, parent string) bool {
	if fqdn == parent {
		return true
	}
	return strings.HasSuffix(fqdn, "."+parent)
}

var (
	errEmptyFQDN = fqdnError("domain name is empty")
	errTooLong   = fqdnError("domain name exceeds 253 bytes")
	errBadLabel  = fqdnError("domain name fails label validation")
	// ErrStaticDomain is returned when a command tries to remove a
	// domain that came from the boot-time static list.
	ErrStaticDomain = fqdnError("cannot remove a statically configured domain")
)

type fqdnError string

func (e fqdnError) Error() string { return string(e) }
