// Package portaltest provides an in-memory portal whose rendered table is a
// function of the current selections.
package portaltest

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"cfetariff/internal/portal"
)

// ErrNotFound is returned for unknown controls and missing tables, the same
// way a browser lookup times out.
var ErrNotFound = errors.New("portaltest: element not found")

// Key identifies one rendered page state.
type Key struct {
	Month        int
	Municipality string
	Division     string
}

// Selection records one Select call.
type Selection struct {
	Control string
	Value   string
}

// Portal is a fake CFE page. Configure it before opening sessions.
type Portal struct {
	// MonthControl is the id months are selected on.
	MonthControl string
	// Municipalities per state value, placeholder excluded.
	Municipalities map[string][]portal.Option
	// Divisions per municipality value, placeholder excluded.
	Divisions map[string][]portal.Option
	// Tables maps a page state to the HTML of its results table.
	Tables map[Key]string

	// OpenErr, NavigateErr fail the corresponding step.
	OpenErr     error
	NavigateErr error
	// FailSelect makes Select fail for the given control/value pair.
	FailSelect map[Selection]bool
	// HideControl makes the control disappear.
	HideControl map[string]bool

	mu         sync.Mutex
	selections []Selection
	reads      map[string]int
	opened     int
	closed     int
}

// Open satisfies portal.Opener.
func (p *Portal) Open(ctx context.Context) (portal.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.OpenErr != nil {
		return nil, p.OpenErr
	}
	p.opened++
	return &session{portal: p, selected: map[string]string{}}, nil
}

// Selections returns every Select call made on any session, in order.
func (p *Portal) Selections() []Selection {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Selection(nil), p.selections...)
}

// Reads returns how many times the options of control were read.
func (p *Portal) Reads(control string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reads[control]
}

// Sessions returns the number of opened and closed sessions.
func (p *Portal) Sessions() (opened, closed int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.opened, p.closed
}

type session struct {
	portal   *Portal
	selected map[string]string
	loaded   bool
}

func (s *session) Navigate(ctx context.Context, url string) error {
	if s.portal.NavigateErr != nil {
		return s.portal.NavigateErr
	}
	s.loaded = true
	return nil
}

func (s *session) Select(ctx context.Context, control, value string) error {
	p := s.portal
	p.mu.Lock()
	defer p.mu.Unlock()

	if !s.loaded || p.HideControl[control] {
		return fmt.Errorf("select %s: %w", control, ErrNotFound)
	}
	sel := Selection{Control: control, Value: value}
	if p.FailSelect[sel] {
		return fmt.Errorf("select %s=%s: %w", control, value, ErrNotFound)
	}
	p.selections = append(p.selections, sel)
	s.selected[control] = value

	// Cascading controls reset their children, like the ASP.NET postback.
	switch control {
	case portal.StateControl:
		delete(s.selected, portal.MunicipalityControl)
		delete(s.selected, portal.DivisionControl)
	case portal.MunicipalityControl:
		delete(s.selected, portal.DivisionControl)
	}
	return nil
}

func (s *session) Options(ctx context.Context, control string) ([]portal.Option, error) {
	p := s.portal
	p.mu.Lock()
	defer p.mu.Unlock()

	if !s.loaded || p.HideControl[control] {
		return nil, fmt.Errorf("options %s: %w", control, ErrNotFound)
	}
	if p.reads == nil {
		p.reads = map[string]int{}
	}
	p.reads[control]++

	var opts []portal.Option
	switch control {
	case portal.MunicipalityControl:
		opts = p.Municipalities[s.selected[portal.StateControl]]
	case portal.DivisionControl:
		opts = p.Divisions[s.selected[portal.MunicipalityControl]]
	default:
		return nil, fmt.Errorf("options %s: %w", control, ErrNotFound)
	}
	return withPlaceholder(opts), nil
}

func (s *session) TableHTML(ctx context.Context, selector string) (string, error) {
	p := s.portal
	p.mu.Lock()
	defer p.mu.Unlock()

	month, err := strconv.Atoi(s.selected[p.MonthControl])
	if err != nil {
		return "", fmt.Errorf("table %s: %w", selector, ErrNotFound)
	}
	html, ok := p.Tables[Key{
		Month:        month,
		Municipality: s.selected[portal.MunicipalityControl],
		Division:     s.selected[portal.DivisionControl],
	}]
	if !ok {
		return "", fmt.Errorf("table %s: %w", selector, ErrNotFound)
	}
	return html, nil
}

func (s *session) Close() error {
	s.portal.mu.Lock()
	defer s.portal.mu.Unlock()
	s.portal.closed++
	return nil
}

func withPlaceholder(opts []portal.Option) []portal.Option {
	out := make([]portal.Option, 0, len(opts)+1)
	out = append(out, portal.Option{Label: "Seleccione", Value: "0"})
	return append(out, opts...)
}

// TariffTable renders a results table with the given data rows. Every row
// must carry six cells to be accepted by the collector.
func TariffTable(rows ...[]string) string {
	html := `<table class="table table-bordered table-striped"><thead><tr>` +
		`<th>Tarifa</th><th>Descripción</th><th>Int. Horario</th><th>Cargo</th><th>Unidades</th><th>Valor</th>` +
		`</tr></thead><tbody>`
	for _, row := range rows {
		html += "<tr>"
		for _, cell := range row {
			html += "<td>" + cell + "</td>"
		}
		html += "</tr>"
	}
	return html + "</tbody></table>"
}
