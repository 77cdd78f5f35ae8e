// Package report renders harvest results for the terminal.
// Column widths use display width so Korean titles line up.
package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-runewidth"

	"kornews/internal/crawler"
	"kornews/internal/pipeline"
)

const defaultTitleWidth = 40

// Printer writes one status line per article.
type Printer struct {
	w          io.Writer
	titleWidth int
	mu         sync.Mutex
}

// NewPrinter creates a printer. titleWidth is the display width titles are
// truncated or padded to; zero selects the default.
func NewPrinter(w io.Writer, titleWidth int) *Printer {
	if titleWidth <= 0 {
		titleWidth = defaultTitleWidth
	}

	return &Printer{w: w, titleWidth: titleWidth}
}

// Print writes the status line for st.
func (p *Printer) Print(st pipeline.ArticleStatus) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintln(p.w, StatusLine(st, p.titleWidth))
}

// Summary writes the summary table for stats followed by the page fetch log.
func (p *Printer) Summary(stats *pipeline.Stats) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintln(p.w, Summary(stats))

	if len(stats.Attempts) > 0 {
		fmt.Fprintln(p.w)
		fmt.Fprintln(p.w, Attempts(stats.Attempts))
	}
}

// StatusLine formats one article as
// "[status  ] p<page> <title padded to width> <identity> <detail>".
func StatusLine(st pipeline.ArticleStatus, titleWidth int) string {
	title := runewidth.Truncate(st.Title, titleWidth, "…")
	title = runewidth.FillRight(title, titleWidth)

	line := fmt.Sprintf("[%-8s] p%d %s %s", st.Status, st.Page, title, st.Identity)

	switch {
	case st.Err != nil:
		line += " (" + st.Err.Error() + ")"
	case st.RecordID != "":
		line += " -> " + st.RecordID
	}

	return strings.TrimRight(line, " ")
}

// Summary renders stats as a two column table.
func Summary(stats *pipeline.Stats) string {
	failedPages := "-"
	if len(stats.FailedPages) > 0 {
		nums := make([]string, len(stats.FailedPages))
		for i, n := range stats.FailedPages {
			nums[i] = strconv.Itoa(n)
		}

		failedPages = strings.Join(nums, ",")
	}

	rows := [][]string{
		{"항목 / Metric", "값 / Value"},
		{"Run", stats.RunID},
		{"Pages", strconv.Itoa(stats.Pages)},
		{"Failed pages", failedPages},
		{"Fragments", strconv.Itoa(stats.Fragments)},
		{"Uploaded", strconv.Itoa(stats.Uploaded)},
		{"Skipped", strconv.Itoa(stats.Skipped)},
		{"Failed", strconv.Itoa(stats.Failed)},
		{"Dropped", strconv.Itoa(stats.Dropped)},
		{"Duration", stats.Duration().Round(time.Millisecond).String()},
	}

	return strings.Join(Table(rows), "\n")
}

// Attempts renders one row per page fetch: status code, tries, time spent and error.
func Attempts(attempts []crawler.AttemptResult) string {
	rows := [][]string{{"Page", "Status", "Tries", "Duration", "Error"}}

	for _, a := range attempts {
		status := "-"
		if a.StatusCode != 0 {
			status = strconv.Itoa(a.StatusCode)
		}

		rows = append(rows, []string{
			strconv.Itoa(a.Page),
			status,
			strconv.Itoa(a.Attempts),
			a.Duration.Round(time.Millisecond).String(),
			a.Error,
		})
	}

	return strings.Join(Table(rows), "\n")
}

// Table renders rows as a pipe table. The first row is the header and is
// followed by a separator; every cell is padded to its column's display width.
func Table(rows [][]string) []string {
	if len(rows) == 0 {
		return nil
	}

	colCount := 0
	for _, row := range rows {
		colCount = max(colCount, len(row))
	}

	// Separator needs at least "---"
	colWidths := make([]int, colCount)
	for i := range colWidths {
		colWidths[i] = 3
	}

	for _, row := range rows {
		for i, cell := range row {
			colWidths[i] = max(colWidths[i], runewidth.StringWidth(cell))
		}
	}

	result := make([]string, 0, len(rows)+1)

	for i, row := range rows {
		result = append(result, renderRow(row, colWidths))

		if i == 0 {
			sep := make([]string, colCount)
			for j, w := range colWidths {
				sep[j] = strings.Repeat("-", w)
			}

			result = append(result, renderRow(sep, colWidths))
		}
	}

	return result
}

func renderRow(row []string, colWidths []int) string {
	var sb strings.Builder

	sb.WriteString("|")

	for j, w := range colWidths {
		content := ""
		if j < len(row) {
			content = row[j]
		}

		sb.WriteString(" ")
		sb.WriteString(content)

		// Pad with spaces based on display width
		if padding := w - runewidth.StringWidth(content); padding > 0 {
			sb.WriteString(strings.Repeat(" ", padding))
		}

		sb.WriteString(" |")
	}

	return sb.String()
}
