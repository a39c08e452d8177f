// Package notify builds the structured notification for a classified
// DNS change and defines the seam for delivering it.
package notify

import (
	"fmt"

	"github.com/dnsentinel/dnsentinel/analyzer/cdn"
	"github.com/dnsentinel/dnsentinel/analyzer/classifier"
	"github.com/dnsentinel/dnsentinel/analyzer/coordinated"
	"github.com/dnsentinel/dnsentinel/analyzer/loadbalancer"
	"github.com/dnsentinel/dnsentinel/analyzer/temporal"
)

// Color is the severity presentation color. Exact embed/hex encoding
// is the Notifier's concern.
type Color string

const (
	Red    Color = "red"
	Orange Color = "orange"
	Yellow Color = "yellow"
	Blue   Color = "blue"
	Gray   Color = "gray"
)

// Field is one labeled fact shown in the notification body.
type Field struct {
	Name  string
	Value string
}

// Notification is the fully-built, transport-agnostic message.
type Notification struct {
	Title         string
	SeverityColor Color
	Fields        []Field
	Actions       []string
}

// Notifier delivers a built Notification. The core never constructs
// transport payloads itself.
type Notifier interface {
	Emit(n Notification) error
}

// Bundle is everything the builder needs to assemble a notification
// for a routine (non-auto-suppression, non-error) change.
type Bundle struct {
	Domain      string
	PreviousIPs []string
	CurrentIPs  []string
	Change      classifier.Context
	CDN         cdn.Result
	LB          loadbalancer.Result
	Temporal    temporal.Context
	Coordinated coordinated.Result
	SOASerial   string
	Period      string
}

// Build assembles a Notification from a classification bundle per the
// title-selection order: coordinated, then critical severity, then
// failover, then any CDN, then maintenance window, then complete
// change, else a generic title.
func Build(b Bundle) Notification {
	return Notification{
		Title:         title(b),
		SeverityColor: severityColor(b.Change.Severity),
		Fields:        fields(b),
		Actions:       recommendedActions(b),
	}
}

func title(b Bundle) string {
	switch {
	case b.Coordinated.IsCoordinated:
		return "Coordinated Infrastructure Change Detected"
	case b.Change.Severity == classifier.Critical:
		return "Critical DNS Change Detected"
	case b.LB.Pattern == loadbalancer.Failover:
		return "Load Balancer Failover Detected"
	case b.CDN.IsAnyCDN:
		return "CDN Configuration Change"
	case b.Temporal.IsMaintenanceWindow:
		return "DNS Change During Maintenance Window"
	case b.Change.ChangeType == classifier.CompleteChange:
		return "Complete IP Address Change"
	default:
		return "DNS Change Detected"
	}
}

func severityColor(s classifier.Severity) Color {
	switch s {
	case classifier.Critical:
		return Red
	case classifier.High:
		return Orange
	case classifier.Medium:
		return Yellow
	case classifier.Low:
		return Blue
	default:
		return Gray
	}
}

func fields(b Bundle) []Field {
	f := []Field{
		{Name: "Previous IPs", Value: joinOrNone(b.PreviousIPs)},
		{Name: "Current IPs", Value: joinOrNone(b.CurrentIPs)},
		{Name: "Change Type", Value: string(b.Change.ChangeType)},
		{Name: "Severity", Value: string(b.Change.Severity)},
		{Name: "TTL", Value: b.Change.TTL.String()},
		{Name: "Time Context", Value: string(b.Temporal.Pattern)},
	}
	if b.CDN.IsAnyCDN {
		f = append(f, Field{Name: "CDN", Value: fmt.Sprintf("%s (confidence %.2f)", b.CDN.Provider, b.CDN.Confidence)})
	}
	if b.LB.IsLoadBalancer {
		f = append(f, Field{Name: "Load Balancer", Value: fmt.Sprintf("%s (confidence %.2f) — %s", b.LB.Pattern, b.LB.Confidence, b.LB.AnalysisText)})
	}
	if b.Coordinated.IsCoordinated {
		f = append(f, Field{Name: "Coordinated With", Value: joinOrNone(b.Coordinated.RelatedDomains)})
	}
	if b.SOASerial != "" {
		f = append(f, Field{Name: "SOA Serial", Value: b.SOASerial})
	}
	if b.Period != "" {
		f = append(f, Field{Name: "Suppressed For", Value: b.Period})
	}
	return f
}

func recommendedActions(b Bundle) []string {
	var actions []string

	switch b.Change.Severity {
	case classifier.Critical:
		actions = append(actions, "Verify the new IPs resolve the intended service before assuming an outage.")
	case classifier.High:
		actions = append(actions, "Confirm this change was expected; escalate if not.")
	}

	switch b.LB.Pattern {
	case loadbalancer.Failover:
		actions = append(actions, "Check the primary endpoint's health — this looks like an automatic failover.")
	case loadbalancer.RoundRobin, loadbalancer.Weighted:
		actions = append(actions, "Likely normal load-balancer rotation; no action needed unless paired with errors.")
	}

	if b.CDN.IsAnyCDN {
		actions = append(actions, fmt.Sprintf("Edge IP rotation within %s's network; typically benign.", b.CDN.Provider))
	}

	if b.Temporal.IsMaintenanceWindow {
		actions = append(actions, "Falls within a maintenance window; likely planned.")
	}

	if b.Change.ChangeType == classifier.CompleteChange {
		actions = append(actions, "All IPs changed simultaneously; confirm this matches a known migration or cutover.")
	}

	if b.Coordinated.IsCoordinated {
		actions = append(actions, "Related domains changed within the same window; investigate the shared parent infrastructure.")
	}

	if len(actions) == 0 {
		actions = append(actions, "No action required; change appears routine.")
	}
	return actions
}

func joinOrNone(ips []string) string {
	if len(ips) == 0 {
		return "(none)"
	}
	out := ips[0]
	for _, ip := range ips[1:] {
		out += ", " + ip
	}
	return out
}

// AutoSuppressionNotice builds the distinct notification path for an
// auto-suppression event.
func AutoSuppressionNotice(domain string, changesInLastHour int, suppressFor string) Notification {
	return Notification{
		Title:         "Change Notifications Auto-Suppressed",
		SeverityColor: Gray,
		Fields: []Field{
			{Name: "Domain", Value: domain},
			{Name: "Changes In Last Hour", Value: fmt.Sprintf("%d", changesInLastHour)},
			{Name: "Suppressed For", Value: suppressFor},
		},
		Actions: []string{"This domain is changing frequently; further notifications are suppressed to reduce noise."},
	}
}

// ErrorMonitoring builds the notification emitted when a tick's
// resolve step fails transiently.
func ErrorMonitoring(domain string, cause error) Notification {
	return Notification{
		Title:         "Error Monitoring Domain",
		SeverityColor: Gray,
		Fields: []Field{
			{Name: "Domain", Value: domain},
			{Name: "Error", Value: cause.Error()},
		},
		Actions: []string{"Transient resolver failure; will retry next tick."},
	}
}

// AuthorityUnreachable builds the notification emitted when a domain
// transitions into the no_authority state.
func AuthorityUnreachable(domain string) Notification {
	return Notification{
		Title:         "DNS Authority Unreachable",
		SeverityColor: Orange,
		Fields: []Field{
			{Name: "Domain", Value: domain},
		},
		Actions: []string{"No authoritative server responded; verify the zone's nameservers."},
	}
}

// ZoneUpdated builds the notification emitted when only the SOA
// serial advanced with no IP change.
func ZoneUpdated(domain, serial string) Notification {
	return Notification{
		Title:         "DNS Zone Updated",
		SeverityColor: Blue,
		Fields: []Field{
			{Name: "Domain", Value: domain},
			{Name: "SOA Serial", Value: serial},
		},
		Actions: []string{"Zone serial advanced with no IP change; likely a metadata-only update."},
	}
}

// NewDeployment builds the notification emitted once per deployment-id
// change, before a tick's domain checks begin.
func NewDeployment(versionID string) Notification {
	return Notification{
		Title:         "New Deployment",
		SeverityColor: Blue,
		Fields: []Field{
			{Name: "Version", Value: versionID},
		},
	}
}
