// Package summary renders the report snapshot as a PNG for chat delivery.
package summary

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/fogleman/gg"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"

	"svcdesk/internal/complaint"
	"svcdesk/internal/report"
)

// Layout constants, rendered at 2x scale for Telegram clarity
const (
	cellPaddingX   = 20
	cellPaddingY   = 16
	minRowHeight   = 64
	headerHeight   = 72
	fontSize       = 24
	headerFontSz   = 24
	sectionFontSz  = 30
	titleFontSz    = 40
	titlePadding   = 110
	sectionPadding = 70
	sectionGap     = 40
	footerPadding  = 80
	minColWidth    = 110
	cardWidth      = 300
	cardHeight     = 140
	cardGap        = 20
	maxCellRunes   = 60
	maxActiveRows  = 25
)

// Light theme colors
var (
	bgColor         = color.RGBA{R: 245, G: 247, B: 250, A: 255}
	titleColor      = color.RGBA{R: 30, G: 41, B: 59, A: 255}
	headerBgColor   = color.RGBA{R: 37, G: 99, B: 235, A: 255}
	headerTextColor = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	rowEvenColor    = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	rowOddColor     = color.RGBA{R: 241, G: 245, B: 249, A: 255}
	textColor       = color.RGBA{R: 30, G: 41, B: 59, A: 255}
	borderColor     = color.RGBA{R: 203, G: 213, B: 225, A: 255}
	footerColor     = color.RGBA{R: 100, G: 116, B: 139, A: 255}
	cardColor       = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	accentColor     = color.RGBA{R: 79, G: 70, B: 229, A: 255}
)

// table is one titled grid of the report image.
type table struct {
	title   string
	headers []string
	rows    [][]string
}

type card struct {
	label string
	value string
}

// fonts holds the faces used for one render.
type fonts struct {
	title, section, header, cell, card, footer font.Face
}

// findFont locates a font file across Linux and Windows paths. It returns
// "" when none is installed.
func findFont(bold bool) string {
	var candidates []string
	if runtime.GOOS == "windows" {
		winRoot := os.Getenv("WINDIR")
		if winRoot == "" {
			winRoot = `C:\Windows`
		}
		if bold {
			candidates = []string{winRoot + `\Fonts\arialbd.ttf`, winRoot + `\Fonts\Arial Bold.ttf`}
		} else {
			candidates = []string{winRoot + `\Fonts\arial.ttf`, winRoot + `\Fonts\Arial.ttf`}
		}
	} else {
		if bold {
			candidates = []string{
				"/usr/share/fonts/truetype/dejavu/DejaVuSans-Bold.ttf",
				"/usr/share/fonts/TTF/DejaVuSans-Bold.ttf",
			}
		} else {
			candidates = []string{
				"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
				"/usr/share/fonts/TTF/DejaVuSans.ttf",
			}
		}
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// loadFace loads a TrueType face, falling back to the built-in bitmap face
// on hosts without system fonts.
func loadFace(bold bool, size float64) font.Face {
	if path := findFont(bold); path != "" {
		if face, err := gg.LoadFontFace(path, size); err == nil {
			return face
		}
	}
	return basicfont.Face7x13
}

func loadFonts() fonts {
	return fonts{
		title:   loadFace(true, titleFontSz),
		section: loadFace(true, sectionFontSz),
		header:  loadFace(true, headerFontSz),
		cell:    loadFace(false, fontSize),
		card:    loadFace(true, 36),
		footer:  loadFace(false, 22),
	}
}

// RenderReport draws the report card: headline metrics, the technician
// leaderboard, daily revenue, product mix and the open complaints.
func RenderReport(r report.Report, active []complaint.Complaint, currency string, now time.Time) ([]byte, error) {
	f := loadFonts()

	cards := []card{
		{"Revenue (" + currency + ")", formatAmount(r.TotalRevenue)},
		{"Active", strconv.Itoa(r.ActiveCount)},
		{"Completed", strconv.Itoa(r.CompletedCount)},
		{"Resolved Today", strconv.Itoa(r.Dashboard.ResolvedToday)},
	}
	tables := buildTables(r, active)

	// ---- Step 1: Measure ----
	tmpDC := gg.NewContext(1, 1)
	widths := make([][]float64, len(tables))
	heights := make([][]float64, len(tables))
	contentWidth := float64(len(cards)*cardWidth + (len(cards)-1)*cardGap)
	for i, t := range tables {
		widths[i] = measureColumns(tmpDC, f, t)
		heights[i] = measureRows(tmpDC, f, t)
		if w := sum(widths[i]); w > contentWidth {
			contentWidth = w
		}
	}

	canvasWidth := contentWidth + 80
	canvasHeight := float64(titlePadding + cardHeight + sectionGap + footerPadding)
	for i := range tables {
		canvasHeight += sectionPadding + headerHeight + sum(heights[i]) + sectionGap
	}

	// ---- Step 2: Draw ----
	dc := gg.NewContext(int(canvasWidth), int(canvasHeight))
	dc.SetColor(bgColor)
	dc.Clear()

	dc.SetFontFace(f.title)
	dc.SetColor(titleColor)
	title := fmt.Sprintf("Service Desk Report  ·  %s", now.Format("02 Jan 2006, 03:04 PM"))
	dc.DrawStringAnchored(title, canvasWidth/2, float64(titlePadding)/2+2, 0.5, 0.5)

	y := float64(titlePadding)
	drawCards(dc, f, cards, 40, y)
	y += cardHeight + sectionGap

	for i, t := range tables {
		y = drawTable(dc, f, t, widths[i], heights[i], 40, y)
		y += sectionGap
	}

	dc.SetFontFace(f.footer)
	dc.SetColor(footerColor)
	footer := fmt.Sprintf("Total: %d complaints  ·  Warranty %d / Revenue %d closed", r.TotalComplaints, r.CaseTypes.WarrantyCases, r.CaseTypes.RevenueCases)
	dc.DrawStringAnchored(footer, canvasWidth/2, canvasHeight-30, 0.5, 0.5)

	// ---- Step 3: Encode to PNG ----
	return encodeImage(dc.Image())
}

func buildTables(r report.Report, active []complaint.Complaint) []table {
	leaderboard := table{title: "Technician Leaderboard", headers: []string{"#", "Technician", "Completed", "Revenue", "Reopened"}}
	for i, t := range r.Technicians {
		leaderboard.rows = append(leaderboard.rows, []string{
			strconv.Itoa(i + 1), t.Name, strconv.Itoa(t.Completed), formatAmount(t.Revenue), strconv.Itoa(t.Reopened),
		})
	}

	daily := table{title: "Daily Revenue", headers: []string{"Date", "Revenue"}}
	for _, d := range r.RevenueByDay {
		daily.rows = append(daily.rows, []string{d.Date, formatAmount(d.Revenue)})
	}

	products := table{title: "Product Mix", headers: []string{"Product", "Complaints"}}
	for _, p := range r.Products {
		products.rows = append(products.rows, []string{string(p.Product), strconv.Itoa(p.Count)})
	}

	open := table{title: "Open Complaints", headers: []string{"Complaint No.", "Customer", "Phone", "Product", "Status", "Technician", "Part", "Date"}}
	for i, c := range active {
		if i == maxActiveRows {
			open.rows = append(open.rows, []string{fmt.Sprintf("+%d more", len(active)-maxActiveRows), "", "", "", "", "", "", ""})
			break
		}
		part := string(c.PartStatus)
		if c.PartName != "" {
			part = strings.TrimSpace(part + " " + c.PartName)
		}
		open.rows = append(open.rows, []string{
			c.ComplaintNumber, c.CustomerName, c.PhoneNumber, string(c.ProductType),
			string(c.Status), c.TechnicianName, part, c.Date,
		})
	}

	tables := []table{leaderboard, daily, products, open}
	for i := range tables {
		if len(tables[i].rows) == 0 {
			empty := make([]string, len(tables[i].headers))
			empty[0] = "No data"
			tables[i].rows = [][]string{empty}
		}
		for _, row := range tables[i].rows {
			for j := range row {
				row[j] = truncate(row[j], maxCellRunes)
			}
		}
	}
	return tables
}

func measureColumns(dc *gg.Context, f fonts, t table) []float64 {
	widths := make([]float64, len(t.headers))
	dc.SetFontFace(f.header)
	for i, h := range t.headers {
		w, _ := dc.MeasureString(h)
		widths[i] = w + cellPaddingX*2 + 4
		if widths[i] < minColWidth {
			widths[i] = minColWidth
		}
	}
	dc.SetFontFace(f.cell)
	for _, row := range t.rows {
		for i, cell := range row {
			w, _ := dc.MeasureString(cell)
			if needed := w + cellPaddingX*2 + 4; needed > widths[i] {
				widths[i] = needed
			}
		}
	}
	return widths
}

func measureRows(dc *gg.Context, f fonts, t table) []float64 {
	dc.SetFontFace(f.cell)
	_, lineH := dc.MeasureString("Ay")
	heights := make([]float64, len(t.rows))
	for i := range t.rows {
		h := lineH + cellPaddingY*2
		if h < minRowHeight {
			h = minRowHeight
		}
		heights[i] = h
	}
	return heights
}

func drawCards(dc *gg.Context, f fonts, cards []card, x, y float64) {
	for _, c := range cards {
		dc.SetColor(cardColor)
		dc.DrawRoundedRectangle(x, y, cardWidth, cardHeight, 16)
		dc.Fill()
		dc.SetColor(borderColor)
		dc.SetLineWidth(1)
		dc.DrawRoundedRectangle(x, y, cardWidth, cardHeight, 16)
		dc.Stroke()

		dc.SetFontFace(f.footer)
		dc.SetColor(footerColor)
		dc.DrawStringAnchored(c.label, x+cardWidth/2, y+40, 0.5, 0.5)

		dc.SetFontFace(f.card)
		dc.SetColor(accentColor)
		dc.DrawStringAnchored(c.value, x+cardWidth/2, y+95, 0.5, 0.5)

		x += cardWidth + cardGap
	}
}

// drawTable draws t with its top-left corner at (x, y) and returns the y
// coordinate below it.
func drawTable(dc *gg.Context, f fonts, t table, colWidths, rowHeights []float64, x, y float64) float64 {
	totalWidth := sum(colWidths)

	dc.SetFontFace(f.section)
	dc.SetColor(titleColor)
	dc.DrawStringAnchored(t.title, x, y+sectionPadding/2, 0, 0.5)
	y += sectionPadding

	// Header row background (rounded top corners)
	dc.SetColor(headerBgColor)
	dc.DrawRoundedRectangle(x, y, totalWidth, headerHeight, 16)
	dc.Fill()

	dc.SetFontFace(f.header)
	dc.SetColor(headerTextColor)
	cx := x
	for i, h := range t.headers {
		dc.DrawStringAnchored(h, cx+colWidths[i]/2, y+headerHeight/2, 0.5, 0.5)
		cx += colWidths[i]
	}

	dc.SetFontFace(f.cell)
	tableTop := y
	curY := y + headerHeight
	for rowIdx, row := range t.rows {
		rh := rowHeights[rowIdx]

		if rowIdx%2 == 0 {
			dc.SetColor(rowEvenColor)
		} else {
			dc.SetColor(rowOddColor)
		}
		dc.DrawRectangle(x, curY, totalWidth, rh)
		dc.Fill()

		dc.SetColor(borderColor)
		dc.SetLineWidth(0.5)
		dc.DrawLine(x, curY+rh, x+totalWidth, curY+rh)
		dc.Stroke()

		dc.SetColor(textColor)
		cx := x
		for i, cell := range row {
			dc.DrawStringAnchored(cell, cx+cellPaddingX, curY+rh/2, 0, 0.5)
			cx += colWidths[i]
		}
		curY += rh
	}

	dc.SetColor(borderColor)
	dc.SetLineWidth(1)
	dc.DrawRoundedRectangle(x, tableTop, totalWidth, curY-tableTop, 16)
	dc.Stroke()

	dc.SetLineWidth(0.5)
	cx = x
	for i := 0; i < len(colWidths)-1; i++ {
		cx += colWidths[i]
		dc.DrawLine(cx, tableTop+headerHeight, cx, curY)
		dc.Stroke()
	}
	return curY
}

func encodeImage(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode PNG: %w", err)
	}
	return buf.Bytes(), nil
}

func truncate(s string, maxLen int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) > maxLen {
		runes := []rune(s)
		return string(runes[:maxLen]) + "…"
	}
	return s
}

func sum(values []float64) float64 {
	var total float64
	for _, v := range values {
		total += v
	}
	return total
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
