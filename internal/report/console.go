package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"vaultsphere/internal/dataset"
	"vaultsphere/internal/detection"
	"vaultsphere/internal/tui/styles"
)

const noneDetected = "none detected"

// WriteText writes the full console report.
func WriteText(w io.Writer, doc *Document) error {
	sections := []string{
		Summary(doc),
		Bursts(doc.Report),
		EventMix(doc.Report),
		IPAccess(doc.Report),
		OffHours(doc.Report),
		TenantActivity(doc.Profile),
		Risk(doc),
	}
	_, err := io.WriteString(w, strings.Join(sections, "\n\n")+"\n")
	return err
}

func metric(label string, value any) string {
	return styles.MetricLabel.Render(fmt.Sprintf("%-20s", label)) + styles.MetricValue.Render(fmt.Sprint(value))
}

func heading(rule detection.Rule, n int) string {
	title := styles.Section.Render(fmt.Sprintf("%s (%d)", rule.Name, n))
	desc := styles.Muted.Render(rule.Description)
	return lipgloss.JoinVertical(lipgloss.Left, title, desc)
}

func ruleFor(c detection.Category) detection.Rule {
	for _, r := range detection.Rules() {
		if r.Category == c {
			return r
		}
	}
	return detection.Rule{Category: c, Name: string(c)}
}

func none() string {
	return styles.StatusOK.Render(noneDetected)
}

// Summary renders the dataset header and profile.
func Summary(doc *Document) string {
	r := doc.Report
	var b strings.Builder

	title := "VaultSphere anomaly report"
	if r.Source != "" {
		title += ": " + r.Source
	}
	b.WriteString(styles.Title.Render(title))
	b.WriteString("\n")
	b.WriteString(metric("Events analyzed", r.Events) + "\n")
	b.WriteString(metric("Malformed rows", r.Malformed) + "\n")

	if p := doc.Profile; p != nil && p.Events > 0 {
		b.WriteString(metric("Users", p.Users) + "\n")
		b.WriteString(metric("Unique IPs", p.UniqueIPs) + "\n")
		b.WriteString(metric("Date range", p.First.Format(time.DateOnly)+" to "+p.Last.Format(time.DateOnly)) + "\n")
		b.WriteString(metric("Success rate", fmt.Sprintf("%.1f%%", p.SuccessRate*100)) + "\n")
		b.WriteString(metric("Hours (biz/off/night)", fmt.Sprintf("%d / %d / %d", p.BusinessHours, p.OffHours, p.NightHours)) + "\n")
		if p.Injected > 0 {
			b.WriteString(metric("Labelled anomalies", p.Injected) + "\n")
		}
		var types []string
		for _, c := range p.EventTypes {
			types = append(types, fmt.Sprintf("%s %d", c.Key, c.Count))
		}
		b.WriteString(metric("Event types", strings.Join(types, ", ")) + "\n")
		if len(p.RiskyIPs) > 0 {
			b.WriteString(styles.StatusWarning.Render("High-failure addresses") + "\n")
			for _, ip := range p.RiskyIPs {
				fmt.Fprintf(&b, "  %-16s %d/%d failed (%.0f%%)\n", ip.IP, ip.Failures, ip.Events, ip.FailureRate*100)
			}
		}
	}
	for _, line := range doc.Rejected {
		b.WriteString(styles.Muted.Render("skipped "+line) + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// Bursts renders the failed-login burst findings.
func Bursts(r *detection.Report) string {
	var b strings.Builder
	b.WriteString(heading(ruleFor(detection.CategoryFailedLoginBurst), len(r.Bursts)) + "\n")
	if len(r.Bursts) == 0 {
		b.WriteString(none())
		return b.String()
	}
	for _, f := range r.Bursts {
		fmt.Fprintf(&b, "  %s  %d failures in %s (%d in window) from %s  %s\n",
			styles.StatusError.Render(f.UserID),
			f.FailureCount, f.Duration(), f.WindowCount,
			f.Start.Format(time.DateTime),
			styles.Muted.Render(strings.Join(f.IPs, ", ")),
		)
	}
	return strings.TrimRight(b.String(), "\n")
}

// EventMix renders the unusual event-type findings.
func EventMix(r *detection.Report) string {
	var b strings.Builder
	b.WriteString(heading(ruleFor(detection.CategoryUnusualEventMix), len(r.UnusualMix)) + "\n")
	if len(r.UnusualMix) == 0 {
		b.WriteString(none())
		return b.String()
	}
	for _, f := range r.UnusualMix {
		fmt.Fprintf(&b, "  %s  %s %d of %d events (%.1f%%)  %s\n",
			f.UserID, f.EventType, f.Count, f.TotalEvents, f.Percentage,
			styles.Level(string(f.Severity)).Render(string(f.Severity)),
		)
	}
	return strings.TrimRight(b.String(), "\n")
}

// IPAccess renders the suspicious IP-access findings.
func IPAccess(r *detection.Report) string {
	var b strings.Builder
	b.WriteString(heading(ruleFor(detection.CategorySuspiciousIP), len(r.IPPatterns)) + "\n")
	if len(r.IPPatterns) == 0 {
		b.WriteString(none())
		return b.String()
	}
	for _, f := range r.IPPatterns {
		fmt.Fprintf(&b, "  %s  %d addresses over %d events, primary %s\n",
			styles.StatusWarning.Render(f.UserID), f.UniqueIPs, f.TotalEvents, strings.Join(f.PrimaryIPs, ", "))
		for _, ip := range f.OccasionalIP {
			fmt.Fprintf(&b, "      occasional %-16s x%d\n", ip.Key, ip.Count)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// OffHours renders the off-hours activity findings.
func OffHours(r *detection.Report) string {
	var b strings.Builder
	b.WriteString(heading(ruleFor(detection.CategoryOffHours), len(r.OffHours)) + "\n")
	if len(r.OffHours) == 0 {
		b.WriteString(none())
		return b.String()
	}
	for _, f := range r.OffHours {
		var types, hours []string
		for _, c := range f.EventTypes {
			types = append(types, fmt.Sprintf("%s %d", c.Key, c.Count))
		}
		for _, h := range f.PeakHours {
			hours = append(hours, fmt.Sprintf("%02d:00 x%d", h.Hour, h.Count))
		}
		fmt.Fprintf(&b, "  %s  %d of %d events (%.1f%%)  types: %s  peak: %s\n",
			styles.StatusWarning.Render(f.UserID), f.Count, f.TotalEvents, f.Percentage,
			strings.Join(types, ", "), strings.Join(hours, ", "))
	}
	return strings.TrimRight(b.String(), "\n")
}

// TenantActivity renders the complaint and admin-action watch lists of
// the dataset profile.
func TenantActivity(p *dataset.Profile) string {
	var b strings.Builder
	b.WriteString(styles.Section.Render("Tenant-Specific Activity") + "\n")
	switch {
	case p == nil:
		b.WriteString(styles.Muted.Render("no dataset profile for a cached report"))
		return b.String()
	case len(p.Complaints) == 0 && len(p.AdminActions) == 0:
		b.WriteString(styles.Muted.Render("no complaint or admin-action events"))
		return b.String()
	}
	watch := func(label, unit string, w dataset.TenantWatch) {
		fmt.Fprintf(&b, "%s (%s): %d %s from %d users, %s\n",
			styles.MetricLabel.Render(label), w.Tenant, w.Total, w.EventType, w.Users,
			styles.StatusWarning.Render(fmt.Sprintf("%d with %d+", w.Flagged, w.Threshold)))
		for _, c := range w.Top {
			fmt.Fprintf(&b, "  %-10s %d %s\n", c.Key, c.Count, unit)
		}
	}
	for _, w := range p.Complaints {
		watch("Complaints", "complaints", w)
	}
	for _, w := range p.AdminActions {
		watch("Admin actions", "admin actions", w)
	}
	return strings.TrimRight(b.String(), "\n")
}

// Risk renders the rollup, recommendations and label evaluation.
func Risk(doc *Document) string {
	r := doc.Report
	var b strings.Builder

	b.WriteString(styles.Section.Render("Risk Assessment") + "\n")
	b.WriteString(metric("Total anomalies", r.Risk.TotalAnomalies) + "\n")
	b.WriteString(metric("Anomaly rate", fmt.Sprintf("%.2f%%", r.Risk.AnomalyRate*100)) + "\n")
	b.WriteString(styles.MetricLabel.Render(fmt.Sprintf("%-20s", "Risk level")) +
		styles.Level(string(r.Risk.Level)).Render(string(r.Risk.Level)) + "\n")

	b.WriteString("\n" + styles.Section.Render("Recommendations") + "\n")
	if len(doc.Recommendations) == 0 {
		b.WriteString("  No action needed\n")
	}
	for _, rec := range doc.Recommendations {
		b.WriteString("  - " + rec + "\n")
	}

	if ev := r.Evaluation; ev != nil {
		b.WriteString("\n" + styles.Section.Render("Label Evaluation") + "\n")
		b.WriteString(metric("Labelled events", ev.InjectedEvents) + "\n")
		b.WriteString(metric("Users recovered", fmt.Sprintf("%d of %d (%.0f%%)", ev.DetectedUsers, ev.InjectedUsers, ev.Recall*100)) + "\n")
		for _, de := range ev.Detectors {
			fmt.Fprintf(&b, "  %-22s flagged %3d  labelled %3d  precision %.0f%%\n",
				ruleFor(de.Category).Name, de.Flagged, de.Labelled, de.Precision*100)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
