package reporting

import (
	"errors"
	"math"
	"sort"
	"strings"
	"time"

	"leadtracker/internal/leads"
)

var ErrInvalidRequest = errors.New("reporting: invalid request")

// All functions in this file are pure: inputs are never mutated and the
// result depends only on the arguments, so callers recompute on every change.

// FilterByDate keeps the leads whose lead_date falls in w, preserving order.
//
// today compares lead_date to the UTC calendar date of now. week and month
// keep leads whose lead_date (UTC midnight) is on or after now minus 7 or 30
// days. Leads with an unparseable lead_date only match all.
func FilterByDate(in []leads.Lead, w Window, now time.Time) []leads.Lead {
	out := make([]leads.Lead, 0, len(in))
	switch w {
	case WindowToday:
		today := now.UTC().Format(leads.DateLayout)
		for _, l := range in {
			if l.LeadDate == today {
				out = append(out, l)
			}
		}
	case WindowWeek, WindowMonth:
		days := weekDays
		if w == WindowMonth {
			days = monthDays
		}
		cutoff := now.Add(-time.Duration(days) * 24 * time.Hour)
		for _, l := range in {
			d, err := time.Parse(leads.DateLayout, l.LeadDate)
			if err != nil {
				continue
			}
			if !d.Before(cutoff) {
				out = append(out, l)
			}
		}
	default:
		out = append(out, in...)
	}
	return out
}

// ComputeStats summarizes leads for the dashboard header.
// Revenue only counts closed leads; a closed lead without a deal value adds 0.
func ComputeStats(in []leads.Lead, now time.Time) Stats {
	today := now.UTC().Format(leads.DateLayout)
	var st Stats
	for _, l := range in {
		st.Total++
		if l.LeadDate == today {
			st.TodayCount++
		}
		if l.Invalid() {
			st.InvalidCount++
		}
		if l.Status == leads.StatusClosed {
			st.ClosedCount++
			st.TotalRevenue += l.Deal()
		}
	}
	if st.Total > 0 {
		st.ConversionRatePercent = int(math.Round(float64(st.ClosedCount) / float64(st.Total) * 100))
	}
	return st
}

// GroupBySalesperson aggregates per salesperson, highest revenue first.
func GroupBySalesperson(in []leads.Lead) []SalespersonSummary {
	idx := map[string]int{}
	out := make([]SalespersonSummary, 0)
	for _, l := range in {
		name := strings.TrimSpace(l.SalespersonName)
		if name == "" {
			name = UnassignedSalesperson
		}
		i, ok := idx[name]
		if !ok {
			i = len(out)
			idx[name] = i
			out = append(out, SalespersonSummary{Name: name})
		}
		out[i].Total++
		if l.Status == leads.StatusClosed {
			out[i].Closed++
			out[i].Revenue += l.Deal()
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Revenue != out[j].Revenue {
			return out[i].Revenue > out[j].Revenue
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// GroupBySource aggregates per lead source, most leads first.
func GroupBySource(in []leads.Lead) []SourceSummary {
	idx := map[string]int{}
	out := make([]SourceSummary, 0)
	for _, l := range in {
		src := string(l.LeadSource)
		i, ok := idx[src]
		if !ok {
			i = len(out)
			idx[src] = i
			out = append(out, SourceSummary{Source: src})
		}
		out[i].Total++
		if l.Status == leads.StatusClosed {
			out[i].Closed++
			out[i].Revenue += l.Deal()
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].Source < out[j].Source
	})
	return out
}

// Overview is the admin summary over every lead.
func Overview(in []leads.Lead) AdminOverview {
	var ov AdminOverview
	for _, l := range in {
		ov.Total++
		switch {
		case l.Status == leads.StatusClosed:
			ov.Closed++
			ov.TotalRevenue += l.Deal()
		case l.Status == leads.StatusLost:
			ov.Lost++
		case l.Status.Active():
			ov.Active++
		}
	}
	if ov.Closed > 0 {
		ov.AverageDealValue = ov.TotalRevenue / float64(ov.Closed)
	}
	if ov.Total > 0 {
		ov.ConversionRate = math.Round(float64(ov.Closed)/float64(ov.Total)*1000) / 10
	}
	ov.TopPerformers = GroupBySalesperson(in)
	if len(ov.TopPerformers) > topPerformerLimit {
		ov.TopPerformers = ov.TopPerformers[:topPerformerLimit]
	}
	ov.BySource = GroupBySource(in)
	return ov
}

// Service builds dashboards from a clock, so handlers stay deterministic in tests.
type Service struct {
	clock func() time.Time
}

func NewService(clock func() time.Time) *Service {
	if clock == nil {
		clock = time.Now
	}
	return &Service{clock: clock}
}

// Now returns the service clock's current time.
func (s *Service) Now() time.Time { return s.clock() }

// Dashboard filters leads by w and computes stats over the filtered set.
func (s *Service) Dashboard(in []leads.Lead, w Window) Dashboard {
	now := s.clock()
	filtered := FilterByDate(in, w, now)
	return Dashboard{Window: w, Stats: ComputeStats(filtered, now), Leads: filtered}
}
