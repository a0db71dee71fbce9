package tariff_test

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"cfetariff/internal/portal"
	"cfetariff/internal/portal/portaltest"
	"cfetariff/internal/tariff"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	guadalajara = portal.Option{Label: "GUADALAJARA", Value: "39"}
	zapopan     = portal.Option{Label: "ZAPOPAN", Value: "120"}
	residencial = portal.Option{Label: "Residencial", Value: "5"}
	comercial   = portal.Option{Label: "Comercial", Value: "6"}
	bajio       = portal.Option{Label: "Bajío", Value: "7"}
)

func jaliscoPortal() *portaltest.Portal {
	return &portaltest.Portal{
		MonthControl: portal.CurrentMonthControl,
		Municipalities: map[string][]portal.Option{
			"10": {guadalajara, zapopan},
		},
		Divisions: map[string][]portal.Option{
			guadalajara.Value: {residencial, comercial},
			zapopan.Value:     {bajio},
		},
		Tables: map[portaltest.Key]string{},
	}
}

func jaliscoTarget() tariff.Target {
	return tariff.Target{
		StateID:      "10",
		StateName:    "jalisco",
		URL:          portal.DefaultURL,
		Year:         "2022",
		MonthControl: portal.CurrentMonthControl,
		LastMonth:    11,
	}
}

func TestCollectSingleTable(t *testing.T) {
	p := jaliscoPortal()
	p.Tables[portaltest.Key{Month: 3, Municipality: "39", Division: "5"}] = portaltest.TariffTable(
		[]string{"GDMTH", "Energía", "Base", "Variable", "$/kWh", "1.0127"},
	)

	ds, stats, err := tariff.NewCollector(p.Open).Collect(context.Background(), jaliscoTarget())
	require.NoError(t, err)

	want := []tariff.Row{{
		Tariff:        "GDMTH",
		Description:   "Energía",
		Interval:      "Base",
		Charge:        "Variable",
		Units:         "$/kWh",
		Value:         "1.0127",
		Year:          "2022",
		Month:         3,
		State:         "jalisco",
		Municipality:  "39",
		Division:      "Residencial",
		DivisionValue: "5",
	}}
	if diff := cmp.Diff(want, ds.Rows); diff != "" {
		t.Fatalf("rows mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "jalisco", ds.State)
	assert.Equal(t, "2022", ds.Year)

	// 10 months x (2 + 1) divisions.
	assert.Equal(t, 30, stats.Combinations)
	assert.Equal(t, 1, stats.Extracted)
	assert.Equal(t, 1, stats.Rows)
	assert.Equal(t, 29, stats.Skipped[tariff.SkipNoTable])
	assert.Equal(t, stats.Combinations, stats.Extracted+stats.TotalSkipped())

	opened, closed := p.Sessions()
	assert.Equal(t, 1, opened)
	assert.Equal(t, 1, closed)
}

func TestCollectVisitsMonthsInOrder(t *testing.T) {
	for _, tc := range []struct {
		name      string
		lastMonth int
		want      int
	}{
		{name: "running year", lastMonth: 11, want: 10},
		{name: "closed year", lastMonth: 13, want: 12},
	} {
		t.Run(tc.name, func(t *testing.T) {
			p := jaliscoPortal()
			p.Tables[portaltest.Key{Month: 1, Municipality: "39", Division: "5"}] = portaltest.TariffTable(
				[]string{"a", "b", "c", "d", "e", "f"},
			)
			target := jaliscoTarget()
			target.LastMonth = tc.lastMonth

			_, _, err := tariff.NewCollector(p.Open).Collect(context.Background(), target)
			require.NoError(t, err)

			var months []string
			for _, sel := range p.Selections() {
				if sel.Control == portal.CurrentMonthControl {
					months = append(months, sel.Value)
				}
			}
			require.Len(t, months, tc.want)
			assert.Equal(t, "1", months[0])
			assert.Equal(t, strconv.Itoa(tc.want), months[len(months)-1])
		})
	}
}

func TestCollectNeverSelectsPlaceholder(t *testing.T) {
	p := jaliscoPortal()
	p.Tables[portaltest.Key{Month: 2, Municipality: "120", Division: "7"}] = portaltest.TariffTable(
		[]string{"a", "b", "c", "d", "e", "f"},
	)

	ds, _, err := tariff.NewCollector(p.Open).Collect(context.Background(), jaliscoTarget())
	require.NoError(t, err)

	for _, sel := range p.Selections() {
		switch sel.Control {
		case portal.MunicipalityControl, portal.DivisionControl:
			assert.NotEqual(t, "0", sel.Value, "placeholder selected on %s", sel.Control)
		}
	}
	for _, row := range ds.Rows {
		assert.NotEqual(t, "0", row.Municipality)
		assert.NotEqual(t, "Seleccione", row.Division)
	}
}

func TestCollectRereadsDivisionsPerMunicipality(t *testing.T) {
	p := jaliscoPortal()
	p.Tables[portaltest.Key{Month: 1, Municipality: "120", Division: "7"}] = portaltest.TariffTable(
		[]string{"a", "b", "c", "d", "e", "f"},
	)

	_, _, err := tariff.NewCollector(p.Open).Collect(context.Background(), jaliscoTarget())
	require.NoError(t, err)

	assert.Equal(t, 1, p.Reads(portal.MunicipalityControl))
	// One read per municipality per month.
	assert.Equal(t, 2*10, p.Reads(portal.DivisionControl))
}

func TestCollectStampsSelectionsActiveAtExtraction(t *testing.T) {
	p := jaliscoPortal()
	row := []string{"GDMTH", "Cargo fijo", "", "Fijo", "$/mes", "571.89"}
	p.Tables[portaltest.Key{Month: 4, Municipality: "39", Division: "6"}] = portaltest.TariffTable(row, row)
	p.Tables[portaltest.Key{Month: 9, Municipality: "120", Division: "7"}] = portaltest.TariffTable(row)

	var outcomes []tariff.Outcome
	c := tariff.NewCollector(p.Open)
	c.OnOutcome = func(o tariff.Outcome) { outcomes = append(outcomes, o) }

	ds, stats, err := c.Collect(context.Background(), jaliscoTarget())
	require.NoError(t, err)
	require.Len(t, ds.Rows, 3)
	assert.Equal(t, 2, stats.Extracted)
	assert.Len(t, outcomes, stats.Combinations)

	for _, r := range ds.Rows[:2] {
		assert.Equal(t, 4, r.Month)
		assert.Equal(t, "39", r.Municipality)
		assert.Equal(t, "Comercial", r.Division)
		assert.Equal(t, "6", r.DivisionValue)
	}
	last := ds.Rows[2]
	assert.Equal(t, 9, last.Month)
	assert.Equal(t, "120", last.Municipality)
	assert.Equal(t, "Bajío", last.Division)
	assert.Equal(t, "7", last.DivisionValue)
}

func TestCollectCountsSkipReasons(t *testing.T) {
	p := jaliscoPortal()
	p.Tables[portaltest.Key{Month: 1, Municipality: "39", Division: "5"}] = portaltest.TariffTable(
		[]string{"a", "b", "c", "d", "e", "f"},
	)
	// Header only.
	p.Tables[portaltest.Key{Month: 1, Municipality: "120", Division: "7"}] = portaltest.TariffTable()
	// Not a table at all.
	p.Tables[portaltest.Key{Month: 2, Municipality: "39", Division: "5"}] = `<div>sin datos</div>`
	p.FailSelect = map[portaltest.Selection]bool{
		{Control: portal.DivisionControl, Value: "6"}: true,
	}

	target := jaliscoTarget()
	target.LastMonth = 3

	var skipped []tariff.Outcome
	c := tariff.NewCollector(p.Open)
	c.OnOutcome = func(o tariff.Outcome) {
		if o.Skipped() {
			skipped = append(skipped, o)
		}
	}

	_, stats, err := c.Collect(context.Background(), target)
	require.NoError(t, err)

	assert.Equal(t, 6, stats.Combinations)
	assert.Equal(t, 1, stats.Extracted)
	assert.Equal(t, map[tariff.SkipReason]int{
		tariff.SkipSelect:     2,
		tariff.SkipEmptyTable: 1,
		tariff.SkipParse:      1,
		tariff.SkipNoTable:    1,
	}, stats.Skipped)
	assert.Equal(t, "no-table=1 parse=1 empty-table=1 select=2", stats.SkipSummary())

	for _, o := range skipped {
		assert.Error(t, o.Err, "skip %s at %s carries no cause", o.Skip, o.Cursor)
	}
}

func TestCollectColumnCountSkip(t *testing.T) {
	p := jaliscoPortal()
	p.Tables[portaltest.Key{Month: 1, Municipality: "39", Division: "5"}] = `<table><tr><th>a</th><th>b</th></tr><tr><td>1</td><td>2</td></tr></table>`

	target := jaliscoTarget()
	target.LastMonth = 2

	_, stats, err := tariff.NewCollector(p.Open).Collect(context.Background(), target)
	require.ErrorIs(t, err, tariff.ErrEmptyResult)
	assert.Equal(t, 1, stats.Skipped[tariff.SkipColumnCount])
}

func TestCollectEmptyResult(t *testing.T) {
	p := jaliscoPortal()

	ds, stats, err := tariff.NewCollector(p.Open).Collect(context.Background(), jaliscoTarget())
	require.ErrorIs(t, err, tariff.ErrEmptyResult)
	assert.Nil(t, ds)
	assert.Equal(t, 30, stats.Skipped[tariff.SkipNoTable])

	_, closed := p.Sessions()
	assert.Equal(t, 1, closed)
}

func TestCollectAbortsOnSessionFailures(t *testing.T) {
	boom := errors.New("boom")

	for _, tc := range []struct {
		name  string
		setup func(p *portaltest.Portal)
	}{
		{name: "open", setup: func(p *portaltest.Portal) { p.OpenErr = boom }},
		{name: "navigate", setup: func(p *portaltest.Portal) { p.NavigateErr = boom }},
		{name: "year control", setup: func(p *portaltest.Portal) {
			p.HideControl = map[string]bool{portal.YearControl: true}
		}},
		{name: "state control", setup: func(p *portaltest.Portal) {
			p.HideControl = map[string]bool{portal.StateControl: true}
		}},
		{name: "municipality options", setup: func(p *portaltest.Portal) {
			p.HideControl = map[string]bool{portal.MunicipalityControl: true}
		}},
		{name: "month control", setup: func(p *portaltest.Portal) {
			p.HideControl = map[string]bool{portal.CurrentMonthControl: true}
		}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			p := jaliscoPortal()
			p.Tables[portaltest.Key{Month: 1, Municipality: "39", Division: "5"}] = portaltest.TariffTable(
				[]string{"a", "b", "c", "d", "e", "f"},
			)
			tc.setup(p)

			ds, _, err := tariff.NewCollector(p.Open).Collect(context.Background(), jaliscoTarget())
			require.Error(t, err)
			assert.NotErrorIs(t, err, tariff.ErrEmptyResult)
			assert.Nil(t, ds)

			opened, closed := p.Sessions()
			assert.Equal(t, opened, closed, "session left open")
		})
	}
}

func TestCollectStopsOnCancel(t *testing.T) {
	p := jaliscoPortal()
	p.Tables[portaltest.Key{Month: 1, Municipality: "39", Division: "5"}] = portaltest.TariffTable(
		[]string{"a", "b", "c", "d", "e", "f"},
	)

	ctx, cancel := context.WithCancel(context.Background())
	c := tariff.NewCollector(p.Open)
	c.OnOutcome = func(tariff.Outcome) { cancel() }

	_, stats, err := c.Collect(ctx, jaliscoTarget())
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, stats.Combinations)
}

func TestProbe(t *testing.T) {
	p := jaliscoPortal()
	p.Tables[portaltest.Key{Month: 3, Municipality: "39", Division: "5"}] = portaltest.TariffTable(
		[]string{"GDMTH", "Energía", "Base", "Variable", "$/kWh", "1.0127"},
	)

	res, err := tariff.NewCollector(p.Open).Probe(context.Background(), jaliscoTarget(), tariff.Probe{
		Month: 3, Municipality: "39", Division: "5",
	})
	require.NoError(t, err)
	require.False(t, res.Outcome.Skipped())
	require.Len(t, res.Outcome.Rows, 1)
	assert.Equal(t, "Residencial", res.Outcome.Rows[0].Division)
	assert.Contains(t, res.HTML, "GDMTH")

	_, err = tariff.NewCollector(p.Open).Probe(context.Background(), jaliscoTarget(), tariff.Probe{
		Month: 3, Municipality: "39", Division: "99",
	})
	assert.ErrorContains(t, err, "division 99")
}
