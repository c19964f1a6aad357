package summary

import (
	"bytes"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"svcdesk/internal/complaint"
	"svcdesk/internal/report"
)

func TestRenderReport(t *testing.T) {
	records := complaint.SeedComplaints()
	amount := 1800.0
	records = append(records, complaint.Complaint{
		ID: "3", ComplaintNumber: "1025", CustomerName: "Usman", ProductType: complaint.ProductAC,
		Status: complaint.StatusCompleted, Type: complaint.CaseRevenue, TechnicianName: "Bilal",
		AmountTaken: &amount, ClosingDate: "2026-10-19",
	})
	r := report.Build(records, "2026-10-19")

	data, err := RenderReport(r, complaint.ActiveView(records, ""), "PKR", time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC))
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	bounds := img.Bounds()
	assert.Greater(t, bounds.Dx(), 4*cardWidth)
	assert.Greater(t, bounds.Dy(), titlePadding+cardHeight)
}

func TestRenderReportEmpty(t *testing.T) {
	data, err := RenderReport(report.Build(nil, "2026-10-19"), nil, "PKR", time.Now())
	require.NoError(t, err)
	_, err = png.Decode(bytes.NewReader(data))
	assert.NoError(t, err)
}

func TestBuildTables(t *testing.T) {
	active := make([]complaint.Complaint, maxActiveRows+3)
	for i := range active {
		active[i] = complaint.Complaint{ComplaintNumber: "n", PartStatus: complaint.PartRequired, PartName: "Compressor"}
	}
	tables := buildTables(report.Build(nil, "2026-10-19"), active)
	require.Len(t, tables, 4)

	assert.Equal(t, "No data", tables[0].rows[0][0], "empty sections get a placeholder row")
	open := tables[3]
	require.Len(t, open.rows, maxActiveRows+1)
	assert.Equal(t, "+3 more", open.rows[maxActiveRows][0])
	assert.Equal(t, "Required Compressor", open.rows[0][6])
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate(" abc\n", 5))
	assert.Equal(t, "ab…", truncate("abcdef", 2))
	assert.Equal(t, strings.Repeat("é", 3)+"…", truncate(strings.Repeat("é", 10), 3))
}
