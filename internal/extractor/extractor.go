// Package extractor turns rendered HTML tables into rows of text.
package extractor

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"github.com/PuerkitoBio/goquery"
)

// ErrNoTable is returned when the HTML holds no <table>.
var ErrNoTable = errors.New("extractor: no table found")

// maxSpan caps rowspan/colspan values taken from the page.
const maxSpan = 1000

// Table is a parsed HTML table with spans expanded.
type Table struct {
	Header []string
	Rows   [][]string
}

// Width returns the column count, taken from the header when present
func (t *Table) Width() int {
	if len(t.Header) > 0 {
		return len(t.Header)
	}
	width := 0
	for _, row := range t.Rows {
		if len(row) > width {
			width = len(row)
		}
	}
	return width
}

// ParseTable parses the first table in tableHTML.
//
// Header rows come from <thead>, or from the leading rows made only of <th>
// cells when there is no <thead>. Cells spanning several rows or columns are
// repeated into every position they cover.
func ParseTable(tableHTML string) (*Table, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(tableHTML))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	table := doc.Find("table").First()
	if table.Length() == 0 {
		return nil, ErrNoTable
	}

	// Rows of nested tables are not ours.
	rows := table.Find("tr").FilterFunction(func(_ int, tr *goquery.Selection) bool {
		return tr.Closest("table").IsSelection(table)
	})

	var headRows, bodyRows []*goquery.Selection
	inHead := true
	rows.Each(func(_ int, tr *goquery.Selection) {
		isHead := tr.ParentsFiltered("thead").Length() > 0 ||
			(inHead && tr.Find("td").Length() == 0 && tr.Find("th").Length() > 0)
		if isHead && inHead {
			headRows = append(headRows, tr)
			return
		}
		inHead = false
		bodyRows = append(bodyRows, tr)
	})

	header := expand(headRows)
	t := &Table{Rows: expand(bodyRows)}
	if len(header) > 0 {
		// Multi-row headers collapse into the last row, which carries the
		// most specific labels after span expansion.
		t.Header = header[len(header)-1]
	}
	return t, nil
}

// expand lays rows out on a grid, copying spanned cells into every slot they
// cover.
func expand(rows []*goquery.Selection) [][]string {
	type pending struct {
		text string
		left int
	}
	carry := map[int]*pending{}
	out := make([][]string, 0, len(rows))

	for _, tr := range rows {
		var record []string
		col := 0
		fill := func() {
			for {
				p, ok := carry[col]
				if !ok {
					return
				}
				record = append(record, p.text)
				p.left--
				if p.left == 0 {
					delete(carry, col)
				}
				col++
			}
		}

		tr.Children().Filter("th, td").Each(func(_ int, cell *goquery.Selection) {
			fill()
			text := cellText(cell)
			colspan := span(cell, "colspan")
			rowspan := span(cell, "rowspan")
			for i := 0; i < colspan; i++ {
				record = append(record, text)
				if rowspan > 1 {
					carry[col] = &pending{text: text, left: rowspan - 1}
				}
				col++
			}
		})
		fill()

		if len(record) > 0 {
			out = append(out, record)
		}
	}
	return out
}

func cellText(cell *goquery.Selection) string {
	return strings.Join(strings.Fields(cell.Text()), " ")
}

func span(cell *goquery.Selection, attr string) int {
	v, ok := cell.Attr(attr)
	if !ok {
		return 1
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n < 1 {
		return 1
	}
	if n > maxSpan {
		return maxSpan
	}
	return n
}

// TableMarkdown converts a rendered table (or any HTML fragment) to markdown.
func TableMarkdown(html string) (string, error) {
	converter := md.NewConverter("", true, nil)
	converter.Use(plugin.Table())

	markdown, err := converter.ConvertString(html)
	if err != nil {
		return "", fmt.Errorf("failed to convert HTML to Markdown: %w", err)
	}
	return markdown, nil
}
