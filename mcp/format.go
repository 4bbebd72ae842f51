package mcp

import (
	"fmt"
	"strings"
	"time"

	"github.com/hyperengineering/gatelog"
	"github.com/hyperengineering/gatelog/model"
)

const timeLayout = "2006-01-02 15:04"

func formatCycle(res model.CycleResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Sync %s (%s)\n", res.Status, shortID(res.ID))
	if res.Message != "" {
		fmt.Fprintf(&b, "%s\n", res.Message)
	}
	fmt.Fprintf(&b, "Added: %d, updated: %d, errors: %d\n", res.Added, res.Updated, res.Errors)

	var failed []string
	for _, o := range res.Modules {
		if o.Failed() {
			failed = append(failed, fmt.Sprintf("%s/%s: %s", o.Module, o.Phase, truncate(o.Error, 120)))
		}
	}
	if len(failed) > 0 {
		b.WriteString("\nFailures:\n")
		for _, f := range failed {
			b.WriteString(indent(f))
			b.WriteString("\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatReport(r *gatelog.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Status: %s\n", r.Status)
	if !r.Remote {
		b.WriteString("Remote: not configured (offline mode)\n")
	}
	if r.LastSync.IsZero() {
		b.WriteString("Last sync: never\n")
	} else {
		fmt.Fprintf(&b, "Last sync: %s\n", r.LastSync.Local().Format(timeLayout))
	}
	fmt.Fprintf(&b, "Pending: %s, queued deletions: %d\n\n", plural(r.Pending(), "record"), r.Tombstones)

	b.WriteString("Modules:\n")
	for _, m := range r.Modules {
		fmt.Fprintf(&b, "  %-15s %5d total, %d unsynced\n", m.Module, m.Total, m.Unsynced)
	}

	if r.LastCycle != nil {
		b.WriteString("\nLast cycle:\n")
		b.WriteString(indent(formatCycle(*r.LastCycle)))
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatSettings(s model.Settings, saved bool) string {
	var b strings.Builder
	if saved {
		b.WriteString("Settings saved. They sync on the next cycle.\n\n")
	}
	fmt.Fprintf(&b, "Company: %s\n", s.CompanyName)
	fmt.Fprintf(&b, "Device: %s\n", s.DeviceName)
	fmt.Fprintf(&b, "Theme: %s\n", s.Theme)
	fmt.Fprintf(&b, "Font size: %s\n", s.FontSize)
	if len(s.SectorContacts) > 0 {
		b.WriteString("Contacts:\n")
		for _, c := range s.SectorContacts {
			fmt.Fprintf(&b, "  %s: %s\n", c.Name, c.Number)
		}
	}
	fmt.Fprintf(&b, "Synced: %t", s.Synced)
	return b.String()
}

func formatRecords(module string, items []listed, total int) string {
	if len(items) == 0 {
		return fmt.Sprintf("No %s records found.", module)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Showing %d of %s in %s:\n\n", len(items), plural(total, "record"), module)
	for i, it := range items {
		mark := ""
		if !it.meta.Synced {
			mark = " [pending]"
		}
		fmt.Fprintf(&b, "%d. [%s]%s %s\n", i+1, shortID(it.meta.ID), mark, truncate(summarize(it.data), 100))
	}
	return strings.TrimRight(b.String(), "\n")
}

func summarize(v any) string {
	switch r := v.(type) {
	case model.VehicleEntry:
		return join(r.AccessType, r.DriverName, r.VehiclePlate, r.Status, stamp(r.EntryTime))
	case model.BreakfastRecord:
		return join(r.Date, r.PersonName, r.BreakfastType, r.Status)
	case model.PackageRecord:
		return join(r.DeliveryCompany, r.RecipientName, r.Status, stamp(r.ReceivedAt))
	case model.Meter:
		unit := r.Unit
		if r.CustomUnit != "" {
			unit = r.CustomUnit
		}
		return join(r.Name, r.Type, unit)
	case model.MeterReading:
		return join(shortID(r.MeterID), fmt.Sprintf("%g", r.Value), stamp(r.Timestamp))
	case model.PatrolRecord:
		return join(r.Date, r.Guard, r.Status)
	case model.WorkShift:
		return join(r.Date, r.OperatorName)
	case model.AppLog:
		return join(stamp(r.Timestamp), r.User, r.Module, r.Action, r.Details)
	}
	return fmt.Sprintf("%v", v)
}

func join(parts ...string) string {
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " | ")
}

func stamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format(timeLayout)
}
