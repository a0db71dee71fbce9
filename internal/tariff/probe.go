package tariff

import (
	"context"
	"fmt"
	"strconv"

	"cfetariff/internal/portal"
)

// Probe selects exactly one combination and reports what the page renders
// for it, along with the raw table HTML when there is one.
type Probe struct {
	Month        int
	Municipality string
	Division     string
}

// ProbeResult is the outcome of a probe.
type ProbeResult struct {
	Outcome Outcome
	HTML    string
}

// Probe runs a single combination of t. Errors opening or driving the page
// are returned; a missing or unreadable table is reported in the outcome.
func (c *Collector) Probe(ctx context.Context, t Target, p Probe) (*ProbeResult, error) {
	sess, err := c.open(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open session: %w", err)
	}
	defer sess.Close()

	if err := sess.Navigate(ctx, t.URL); err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", t.URL, err)
	}

	steps := []struct {
		control, value string
	}{
		{portal.YearControl, t.Year},
		{portal.StateControl, t.StateID},
		{t.MonthControl, strconv.Itoa(p.Month)},
		{portal.MunicipalityControl, p.Municipality},
	}
	for _, step := range steps {
		if err := sess.Select(ctx, step.control, step.value); err != nil {
			return nil, fmt.Errorf("failed to select %s=%s: %w", step.control, step.value, err)
		}
	}

	opts, err := sess.Options(ctx, portal.DivisionControl)
	if err != nil {
		return nil, fmt.Errorf("failed to read divisions: %w", err)
	}
	division, ok := findOption(portal.DropPlaceholder(opts), p.Division)
	if !ok {
		return nil, fmt.Errorf("division %s is not offered for municipality %s", p.Division, p.Municipality)
	}
	if err := sess.Select(ctx, portal.DivisionControl, division.Value); err != nil {
		return nil, fmt.Errorf("failed to select division: %w", err)
	}

	cur := Cursor{Year: t.Year, State: State{ID: t.StateID, Name: t.StateName}}.
		WithMonth(p.Month).
		WithMunicipality(portal.Option{Value: p.Municipality}).
		WithDivision(division)

	res := &ProbeResult{Outcome: c.extract(ctx, sess, cur)}
	if res.Outcome.Skip != SkipNoTable {
		res.HTML, _ = sess.TableHTML(ctx, c.tableSelector)
	}
	return res, nil
}

func findOption(opts []portal.Option, value string) (portal.Option, bool) {
	for _, o := range opts {
		if o.Value == value {
			return o, true
		}
	}
	return portal.Option{}, false
}
