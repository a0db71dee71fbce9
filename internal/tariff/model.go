// Package tariff walks the CFE selector hierarchy and collects the tariff
// table of every state, month, municipality and division combination.
package tariff

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ErrEmptyResult means a state traversal never extracted a single table.
var ErrEmptyResult = errors.New("tariff: no tables extracted")

// TableColumns is the canonical schema of the six portal table columns.
var TableColumns = []string{"Tariff", "Description", "Time-of-use Interval", "Charge", "Units", "Value"}

// ContextColumns are stamped from the selections active at extraction time.
var ContextColumns = []string{"year", "month", "state", "municipality", "division", "division_value"}

// Header returns the output column order.
func Header() []string {
	return append(append([]string{}, TableColumns...), ContextColumns...)
}

// Row is one table row stamped with its selection context.
type Row struct {
	Tariff      string `json:"tariff"`
	Description string `json:"description"`
	Interval    string `json:"interval"`
	Charge      string `json:"charge"`
	Units       string `json:"units"`
	Value       string `json:"value"`

	Year          string `json:"year"`
	Month         int    `json:"month"`
	State         string `json:"state"`
	Municipality  string `json:"municipality"`
	Division      string `json:"division"`
	DivisionValue string `json:"division_value"`
}

// Record returns the row in Header order.
func (r Row) Record() []string {
	return []string{
		r.Tariff, r.Description, r.Interval, r.Charge, r.Units, r.Value,
		r.Year, strconv.Itoa(r.Month), r.State, r.Municipality, r.Division, r.DivisionValue,
	}
}

// Dataset holds every row collected for one state and year.
type Dataset struct {
	State string `json:"state"`
	Year  string `json:"year"`
	Rows  []Row  `json:"rows"`
}

// ToCSV renders the dataset with a header row and no index column
func (d *Dataset) ToCSV() (string, error) {
	var buf bytes.Buffer
	if err := d.WriteCSV(&buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// WriteCSV streams the header and rows to w.
func (d *Dataset) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header()); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, row := range d.Rows {
		if err := cw.Write(row.Record()); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ToJSON returns the dataset as indented JSON
func (d *Dataset) ToJSON() ([]byte, error) {
	return json.MarshalIndent(d, "", "  ")
}

// ToMarkdown renders the dataset as a single markdown table
func (d *Dataset) ToMarkdown() (string, error) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## %s %s\n\n", d.State, d.Year))
	sb.WriteString(fmt.Sprintf("%d rows\n\n", len(d.Rows)))

	header := Header()
	sb.WriteString("| " + strings.Join(header, " | ") + " |\n")
	sb.WriteString("|")
	for range header {
		sb.WriteString("---|")
	}
	sb.WriteString("\n")

	for _, row := range d.Rows {
		cells := row.Record()
		for i, c := range cells {
			cells[i] = strings.ReplaceAll(c, "|", `\|`)
		}
		sb.WriteString("| " + strings.Join(cells, " | ") + " |\n")
	}
	return sb.String(), nil
}
