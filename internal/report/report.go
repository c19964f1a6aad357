// Package report derives read-only statistics from a snapshot of complaints.
//
// Every function is a pure aggregation over the slice it is given; nothing is
// cached or maintained incrementally.
package report

import (
	"sort"

	"svcdesk/internal/complaint"
)

// UnknownDate labels completed complaints that carry no closing date.
const UnknownDate = "Unknown"

// DayRevenue is the revenue collected on one closing date.
type DayRevenue struct {
	Date    string  `json:"date"`
	Revenue float64 `json:"revenue"`
}

// ProductCount is the number of complaints for one product type.
type ProductCount struct {
	Product complaint.ProductType `json:"product"`
	Count   int                   `json:"count"`
}

// CaseTypeStats splits completed complaints by billing classification.
// Unknown cases are not counted.
type CaseTypeStats struct {
	WarrantyCases   int     `json:"warrantyCases"`
	RevenueCases    int     `json:"revenueCases"`
	WarrantyRevenue float64 `json:"warrantyRevenue"`
	RevenueRevenue  float64 `json:"revenueRevenue"`
}

// TechnicianStats is one technician's record.
type TechnicianStats struct {
	Name      string  `json:"name"`
	Completed int     `json:"completed"`
	Revenue   float64 `json:"revenue"`
	Reopened  int     `json:"reopened"`
}

// Report is the full set of statistics for one snapshot.
type Report struct {
	GeneratedOn     string                   `json:"generatedOn"`
	TotalComplaints int                      `json:"totalComplaints"`
	ActiveCount     int                      `json:"activeCount"`
	CompletedCount  int                      `json:"completedCount"`
	TotalRevenue    float64                  `json:"totalRevenue"`
	CaseTypes       CaseTypeStats            `json:"caseTypes"`
	RevenueByDay    []DayRevenue             `json:"revenueByDay"`
	Products        []ProductCount           `json:"products"`
	Technicians     []TechnicianStats        `json:"technicians"`
	Dashboard       complaint.DashboardStats `json:"dashboard"`
}

// Build computes every statistic for records. today is used for the
// "resolved today" counter and stamped as GeneratedOn.
func Build(records []complaint.Complaint, today string) Report {
	completed := completedOnly(records)
	return Report{
		GeneratedOn:     today,
		TotalComplaints: len(records),
		ActiveCount:     len(records) - len(completed),
		CompletedCount:  len(completed),
		TotalRevenue:    TotalRevenue(records),
		CaseTypes:       CaseTypeBreakdown(records),
		RevenueByDay:    RevenueByDay(records),
		Products:        ProductBreakdown(records),
		Technicians:     Leaderboard(records),
		Dashboard:       complaint.Dashboard(records, today),
	}
}

// RevenueByDay sums amountTaken of completed complaints per closing date.
// Rows are sorted by date, with UnknownDate last.
func RevenueByDay(records []complaint.Complaint) []DayRevenue {
	totals := make(map[string]float64)
	for _, c := range completedOnly(records) {
		date := c.ClosingDate
		if date == "" {
			date = UnknownDate
		}
		totals[date] += c.Amount()
	}

	rows := make([]DayRevenue, 0, len(totals))
	for date, revenue := range totals {
		rows = append(rows, DayRevenue{Date: date, Revenue: revenue})
	}
	sort.Slice(rows, func(i, j int) bool {
		if (rows[i].Date == UnknownDate) != (rows[j].Date == UnknownDate) {
			return rows[j].Date == UnknownDate
		}
		return rows[i].Date < rows[j].Date
	})
	return rows
}

// ProductBreakdown counts complaints of any status per product type, in the
// display order of complaint.ProductTypes followed by any other values.
func ProductBreakdown(records []complaint.Complaint) []ProductCount {
	counts := make(map[complaint.ProductType]int)
	for _, c := range records {
		counts[c.ProductType]++
	}

	rows := make([]ProductCount, 0, len(counts))
	for _, pt := range complaint.ProductTypes {
		if n, ok := counts[pt]; ok {
			rows = append(rows, ProductCount{Product: pt, Count: n})
			delete(counts, pt)
		}
	}
	extra := make([]ProductCount, 0, len(counts))
	for pt, n := range counts {
		extra = append(extra, ProductCount{Product: pt, Count: n})
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i].Product < extra[j].Product })
	return append(rows, extra...)
}

// CaseTypeBreakdown counts and sums completed complaints by case type.
func CaseTypeBreakdown(records []complaint.Complaint) CaseTypeStats {
	var stats CaseTypeStats
	for _, c := range completedOnly(records) {
		switch c.Type {
		case complaint.CaseWarranty:
			stats.WarrantyCases++
			stats.WarrantyRevenue += c.Amount()
		case complaint.CaseRevenue:
			stats.RevenueCases++
			stats.RevenueRevenue += c.Amount()
		}
	}
	return stats
}

// TechnicianPerformance aggregates per technician name, sorted by name.
//
// Completed and Revenue only count the technician's Completed complaints;
// Reopened sums reopenCount over all of the technician's complaints.
func TechnicianPerformance(records []complaint.Complaint) []TechnicianStats {
	byName := make(map[string]*TechnicianStats)
	for _, c := range records {
		if c.TechnicianName == "" {
			continue
		}
		stats, ok := byName[c.TechnicianName]
		if !ok {
			stats = &TechnicianStats{Name: c.TechnicianName}
			byName[c.TechnicianName] = stats
		}
		if c.IsClosed() {
			stats.Completed++
			stats.Revenue += c.Amount()
		}
		stats.Reopened += c.ReopenCount
	}

	rows := make([]TechnicianStats, 0, len(byName))
	for _, stats := range byName {
		rows = append(rows, *stats)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Name < rows[j].Name })
	return rows
}

// Leaderboard is TechnicianPerformance ordered by revenue, then completed
// jobs, then name.
func Leaderboard(records []complaint.Complaint) []TechnicianStats {
	rows := TechnicianPerformance(records)
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Revenue != rows[j].Revenue {
			return rows[i].Revenue > rows[j].Revenue
		}
		return rows[i].Completed > rows[j].Completed
	})
	return rows
}

// TotalRevenue sums amountTaken over completed complaints.
func TotalRevenue(records []complaint.Complaint) float64 {
	var total float64
	for _, c := range completedOnly(records) {
		total += c.Amount()
	}
	return total
}

func completedOnly(records []complaint.Complaint) []complaint.Complaint {
	return complaint.HistoryView(records, "")
}
