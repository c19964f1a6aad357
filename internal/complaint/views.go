package complaint

import "strings"

// Matches reports whether a complaint matches a search term. The term is
// compared case-insensitively as a substring of the customer name, the
// complaint number and the phone number. An empty term matches everything.
func Matches(c Complaint, term string) bool {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return true
	}
	return strings.Contains(strings.ToLower(c.CustomerName), term) ||
		strings.Contains(strings.ToLower(c.ComplaintNumber), term) ||
		strings.Contains(strings.ToLower(c.PhoneNumber), term)
}

// ActiveView returns the complaints that are not Completed and match term,
// in their original order.
func ActiveView(records []Complaint, term string) []Complaint {
	return filter(records, func(c Complaint) bool {
		return !c.IsClosed() && Matches(c, term)
	})
}

// HistoryView returns the Completed complaints that match term, in their
// original order.
func HistoryView(records []Complaint, term string) []Complaint {
	return filter(records, func(c Complaint) bool {
		return c.IsClosed() && Matches(c, term)
	})
}

// DashboardStats are the counters shown above the active list.
type DashboardStats struct {
	Pending       int `json:"pending"`
	InProgress    int `json:"inProgress"`
	Reopened      int `json:"reopened"`
	ResolvedToday int `json:"resolvedToday"`
}

// Dashboard counts active complaints per status and the complaints whose
// closing date is today.
func Dashboard(records []Complaint, today string) DashboardStats {
	var stats DashboardStats
	for _, c := range records {
		switch c.Status {
		case StatusPending:
			stats.Pending++
		case StatusInProgress:
			stats.InProgress++
		case StatusReopened:
			stats.Reopened++
		}
		if c.ClosingDate != "" && c.ClosingDate == today {
			stats.ResolvedToday++
		}
	}
	return stats
}

func filter(records []Complaint, keep func(Complaint) bool) []Complaint {
	out := make([]Complaint, 0, len(records))
	for _, c := range records {
		if keep(c) {
			out = append(out, c)
		}
	}
	return out
}
