package tariff

import (
	"context"
	"fmt"
	"strconv"

	"cfetariff/internal/extractor"
	"cfetariff/internal/portal"

	"github.com/rs/zerolog"
)

// Target describes one state traversal.
type Target struct {
	StateID   string
	StateName string
	URL       string
	Year      string
	// MonthControl is the id of the month selector for Year.
	MonthControl string
	// LastMonth is the exclusive upper bound of the month loop.
	LastMonth int
}

// Collector walks the selector hierarchy of one state and gathers every
// table it can read.
type Collector struct {
	open          portal.Opener
	log           zerolog.Logger
	tableSelector string

	// OnOutcome, when set, observes every combination in traversal order.
	OnOutcome func(Outcome)
}

// CollectorOption configures a Collector.
type CollectorOption func(*Collector)

// WithLogger sets the logger; the default discards everything.
func WithLogger(log zerolog.Logger) CollectorOption {
	return func(c *Collector) { c.log = log }
}

// WithTableSelector overrides portal.TableSelector.
func WithTableSelector(selector string) CollectorOption {
	return func(c *Collector) { c.tableSelector = selector }
}

// NewCollector creates a Collector drawing sessions from open.
func NewCollector(open portal.Opener, opts ...CollectorOption) *Collector {
	c := &Collector{
		open:          open,
		log:           zerolog.Nop(),
		tableSelector: portal.TableSelector,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Collect runs the whole traversal for t and returns the concatenated
// dataset. Per-combination failures are skipped and counted; a failure of
// the session, the page or a top-level control aborts the state.
func (c *Collector) Collect(ctx context.Context, t Target) (*Dataset, Stats, error) {
	var stats Stats
	log := c.log.With().Str("state", t.StateName).Str("year", t.Year).Logger()

	sess, err := c.open(ctx)
	if err != nil {
		return nil, stats, fmt.Errorf("failed to open session: %w", err)
	}
	defer func() {
		if err := sess.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close session")
		}
	}()

	if err := sess.Navigate(ctx, t.URL); err != nil {
		return nil, stats, fmt.Errorf("failed to load %s: %w", t.URL, err)
	}
	if err := sess.Select(ctx, portal.YearControl, t.Year); err != nil {
		return nil, stats, fmt.Errorf("failed to select year: %w", err)
	}
	if err := sess.Select(ctx, portal.StateControl, t.StateID); err != nil {
		return nil, stats, fmt.Errorf("failed to select state: %w", err)
	}

	opts, err := sess.Options(ctx, portal.MunicipalityControl)
	if err != nil {
		return nil, stats, fmt.Errorf("failed to read municipalities: %w", err)
	}
	municipalities := portal.DropPlaceholder(opts)
	log.Debug().Int("municipalities", len(municipalities)).Msg("traversal started")

	root := Cursor{Year: t.Year, State: State{ID: t.StateID, Name: t.StateName}}
	ds := &Dataset{State: t.StateName, Year: t.Year}

	record := func(o Outcome) {
		stats.add(o)
		if o.Skipped() {
			log.Debug().Str("at", o.Cursor.String()).Stringer("reason", o.Skip).Err(o.Err).Msg("combination skipped")
		} else {
			ds.Rows = append(ds.Rows, o.Rows...)
		}
		if c.OnOutcome != nil {
			c.OnOutcome(o)
		}
	}

	for month := 1; month < t.LastMonth; month++ {
		if err := ctx.Err(); err != nil {
			return nil, stats, err
		}
		if err := sess.Select(ctx, t.MonthControl, strconv.Itoa(month)); err != nil {
			return nil, stats, fmt.Errorf("failed to select month %d: %w", month, err)
		}
		c.walkMunicipalities(ctx, sess, root.WithMonth(month), municipalities, record)
		if err := ctx.Err(); err != nil {
			return nil, stats, err
		}
	}

	log.Info().
		Int("rows", stats.Rows).
		Int("extracted", stats.Extracted).
		Int("skipped", stats.TotalSkipped()).
		Msg("traversal finished")

	if len(ds.Rows) == 0 {
		return nil, stats, fmt.Errorf("state %s (%s) year %s: %w", t.StateName, t.StateID, t.Year, ErrEmptyResult)
	}
	return ds, stats, nil
}

func (c *Collector) walkMunicipalities(ctx context.Context, page portal.Page, cur Cursor, municipalities []portal.Option, record func(Outcome)) {
	for _, m := range municipalities {
		if ctx.Err() != nil {
			return
		}
		mc := cur.WithMunicipality(m)

		if err := page.Select(ctx, portal.MunicipalityControl, m.Value); err != nil {
			record(Outcome{Cursor: mc, Skip: SkipSelect, Err: err})
			continue
		}

		// Divisions depend on the municipality just selected; never reuse them.
		opts, err := page.Options(ctx, portal.DivisionControl)
		if err != nil {
			record(Outcome{Cursor: mc, Skip: SkipSelect, Err: err})
			continue
		}

		for _, d := range portal.DropPlaceholder(opts) {
			if ctx.Err() != nil {
				return
			}
			dc := mc.WithDivision(d)
			if err := page.Select(ctx, portal.DivisionControl, d.Value); err != nil {
				record(Outcome{Cursor: dc, Skip: SkipSelect, Err: err})
				continue
			}
			record(c.extract(ctx, page, dc))
		}
	}
}

// extract reads whatever table is rendered for cur.
func (c *Collector) extract(ctx context.Context, page portal.Page, cur Cursor) Outcome {
	html, err := page.TableHTML(ctx, c.tableSelector)
	if err != nil {
		return Outcome{Cursor: cur, Skip: SkipNoTable, Err: err}
	}

	table, err := extractor.ParseTable(html)
	if err != nil {
		return Outcome{Cursor: cur, Skip: SkipParse, Err: err}
	}
	rows, skip, err := stampTable(table, cur)
	return Outcome{Cursor: cur, Rows: rows, Skip: skip, Err: err}
}

// stampTable maps a parsed table onto the canonical schema and stamps every
// row with cur.
func stampTable(table *extractor.Table, cur Cursor) ([]Row, SkipReason, error) {
	width := len(TableColumns)
	if w := table.Width(); w != width {
		return nil, SkipColumnCount, fmt.Errorf("table has %d columns, want %d", w, width)
	}
	if len(table.Rows) == 0 {
		return nil, SkipEmptyTable, fmt.Errorf("table has no data rows")
	}

	rows := make([]Row, 0, len(table.Rows))
	for i, cells := range table.Rows {
		if len(cells) > width {
			return nil, SkipColumnCount, fmt.Errorf("row %d has %d cells, want %d", i, len(cells), width)
		}
		// Short rows leave their trailing columns empty.
		padded := make([]string, width)
		copy(padded, cells)
		rows = append(rows, cur.Stamp(Row{
			Tariff:      padded[0],
			Description: padded[1],
			Interval:    padded[2],
			Charge:      padded[3],
			Units:       padded[4],
			Value:       padded[5],
		}))
	}
	return rows, Extracted, nil
}
