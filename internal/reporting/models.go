package reporting

import (
	"fmt"
	"strings"

	"leadtracker/internal/leads"
)

// Window is a date filter over lead_date.
type Window string

const (
	WindowAll   Window = "all"
	WindowToday Window = "today"
	WindowWeek  Window = "week"
	WindowMonth Window = "month"
)

// UnassignedSalesperson groups leads with a blank salesperson name.
const UnassignedSalesperson = "Unassigned"

// topPerformerLimit caps AdminOverview.TopPerformers.
const topPerformerLimit = 5

// Look-back lengths for the rolling windows.
const (
	weekDays  = 7
	monthDays = 30
)

// ParseWindow accepts all, today, week or month. Empty means all.
func ParseWindow(s string) (Window, error) {
	switch w := Window(strings.ToLower(strings.TrimSpace(s))); w {
	case "":
		return WindowAll, nil
	case WindowAll, WindowToday, WindowWeek, WindowMonth:
		return w, nil
	default:
		return "", fmt.Errorf("%w: unknown window %q", ErrInvalidRequest, s)
	}
}

// Stats is the dashboard header summary for a set of leads.
type Stats struct {
	Total                 int     `json:"total"`
	TodayCount            int     `json:"today_count"`
	InvalidCount          int     `json:"invalid_count"`
	ClosedCount           int     `json:"closed_count"`
	TotalRevenue          float64 `json:"total_revenue"`
	ConversionRatePercent int     `json:"conversion_rate_percent"`
}

// SalespersonSummary aggregates leads per salesperson.
// Blank names are grouped under UnassignedSalesperson.
type SalespersonSummary struct {
	Name    string  `json:"name"`
	Total   int     `json:"total"`
	Closed  int     `json:"closed"`
	Revenue float64 `json:"revenue"`
}

// SourceSummary aggregates leads per lead source.
type SourceSummary struct {
	Source  string  `json:"source"`
	Total   int     `json:"total"`
	Closed  int     `json:"closed"`
	Revenue float64 `json:"revenue"`
}

// AdminOverview is the admin dashboard summary.
type AdminOverview struct {
	Total            int     `json:"total"`
	Active           int     `json:"active"`
	Closed           int     `json:"closed"`
	Lost             int     `json:"lost"`
	TotalRevenue     float64 `json:"total_revenue"`
	AverageDealValue float64 `json:"average_deal_value"`
	// ConversionRate is a percentage rounded to one decimal.
	ConversionRate float64              `json:"conversion_rate"`
	TopPerformers  []SalespersonSummary `json:"top_performers"`
	BySource       []SourceSummary      `json:"by_source"`
}

// Dashboard is the filtered lead list with its stats.
type Dashboard struct {
	Window Window       `json:"window"`
	Stats  Stats        `json:"stats"`
	Leads  []leads.Lead `json:"leads"`
}
