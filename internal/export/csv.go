// Package export renders the downloadable artifacts: the complaint CSV, the
// multi-section report CSV and the JSON backup.
package export

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"svcdesk/internal/complaint"
	"svcdesk/internal/report"
)

// bom makes spreadsheet tools open the files as UTF-8.
const bom = "\uFEFF"

// ComplaintHeaders are the columns of the complaint CSV.
var ComplaintHeaders = []string{
	"Complaint No", "Customer", "Phone", "Product", "Status", "Type",
	"Part Status", "Part Name", "Closing Date", "Amount", "Technician",
}

// WriteComplaintsCSV writes one row per complaint. Free-text fields are
// always double-quoted; a missing closing date is written as "-".
func WriteComplaintsCSV(w io.Writer, records []complaint.Complaint) error {
	bw := bufio.NewWriter(w)
	bw.WriteString(bom)
	writeRow(bw, quoteAll(ComplaintHeaders))

	for _, c := range records {
		closingDate := c.ClosingDate
		if closingDate == "" {
			closingDate = "-"
		}
		writeRow(bw, []string{
			quote(c.ComplaintNumber),
			quote(c.CustomerName),
			quote(c.PhoneNumber),
			quote(string(c.ProductType)),
			quote(string(c.Status)),
			quote(string(c.Type)),
			quote(string(c.PartStatus)),
			quote(c.PartName),
			quote(closingDate),
			formatAmount(c.Amount()),
			quote(c.TechnicianName),
		})
	}
	return bw.Flush()
}

// WriteReportCSV writes the structured report: summary metrics, technician
// leaderboard, daily revenue timeline and product mix, with a blank line
// between sections.
func WriteReportCSV(w io.Writer, r report.Report, currency string) error {
	bw := bufio.NewWriter(w)
	bw.WriteString(bom)

	writeRow(bw, []string{quote("SUMMARY"), quote("Generated " + r.GeneratedOn)})
	writeRow(bw, quoteAll([]string{"Metric", "Value"}))
	writeRow(bw, []string{quote("Total Revenue (" + currency + ")"), formatAmount(r.TotalRevenue)})
	writeRow(bw, []string{quote("Total Complaints"), strconv.Itoa(r.TotalComplaints)})
	writeRow(bw, []string{quote("Active Complaints"), strconv.Itoa(r.ActiveCount)})
	writeRow(bw, []string{quote("Completed Complaints"), strconv.Itoa(r.CompletedCount)})
	writeRow(bw, []string{quote("Warranty Cases"), strconv.Itoa(r.CaseTypes.WarrantyCases)})
	writeRow(bw, []string{quote("Revenue Cases"), strconv.Itoa(r.CaseTypes.RevenueCases)})
	writeRow(bw, []string{quote("Warranty Revenue"), formatAmount(r.CaseTypes.WarrantyRevenue)})
	writeRow(bw, []string{quote("Revenue Case Revenue"), formatAmount(r.CaseTypes.RevenueRevenue)})
	writeRow(bw, []string{quote("Resolved Today"), strconv.Itoa(r.Dashboard.ResolvedToday)})
	bw.WriteString("\n")

	writeRow(bw, []string{quote("TECHNICIAN LEADERBOARD")})
	writeRow(bw, quoteAll([]string{"Rank", "Technician", "Completed", "Revenue", "Reopened"}))
	for i, t := range r.Technicians {
		writeRow(bw, []string{
			strconv.Itoa(i + 1),
			quote(t.Name),
			strconv.Itoa(t.Completed),
			formatAmount(t.Revenue),
			strconv.Itoa(t.Reopened),
		})
	}
	bw.WriteString("\n")

	writeRow(bw, []string{quote("DAILY REVENUE")})
	writeRow(bw, quoteAll([]string{"Date", "Revenue"}))
	for _, d := range r.RevenueByDay {
		writeRow(bw, []string{quote(d.Date), formatAmount(d.Revenue)})
	}
	bw.WriteString("\n")

	writeRow(bw, []string{quote("PRODUCT MIX")})
	writeRow(bw, quoteAll([]string{"Product", "Complaints"}))
	for _, p := range r.Products {
		writeRow(bw, []string{quote(string(p.Product)), strconv.Itoa(p.Count)})
	}

	return bw.Flush()
}

// quote wraps a field in double quotes, doubling embedded quotes.
func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func quoteAll(fields []string) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = quote(f)
	}
	return out
}

func writeRow(bw *bufio.Writer, fields []string) {
	bw.WriteString(strings.Join(fields, ","))
	bw.WriteString("\n")
}

// formatAmount prints whole amounts without decimals and others with two.
func formatAmount(v float64) string {
	if v == float64(int64(v)) {
		return strconv.FormatInt(int64(v), 10)
	}
	return fmt.Sprintf("%.2f", v)
}
