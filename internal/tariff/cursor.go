package tariff

import (
	"fmt"

	"cfetariff/internal/portal"
)

// State is one entry of the state mapping.
type State struct {
	ID   string
	Name string
}

// Cursor is the selection context at one point of the traversal. Each loop
// level derives a child cursor, so the selections a table was read under
// travel with it instead of living only in the page.
type Cursor struct {
	Year         string
	State        State
	Month        int
	Municipality portal.Option
	Division     portal.Option
}

func (c Cursor) WithMonth(month int) Cursor {
	c.Month = month
	c.Municipality = portal.Option{}
	c.Division = portal.Option{}
	return c
}

func (c Cursor) WithMunicipality(m portal.Option) Cursor {
	c.Municipality = m
	c.Division = portal.Option{}
	return c
}

func (c Cursor) WithDivision(d portal.Option) Cursor {
	c.Division = d
	return c
}

// Stamp fills the context fields of row.
func (c Cursor) Stamp(row Row) Row {
	row.Year = c.Year
	row.Month = c.Month
	row.State = c.State.Name
	row.Municipality = c.Municipality.Value
	row.Division = c.Division.Label
	row.DivisionValue = c.Division.Value
	return row
}

func (c Cursor) String() string {
	return fmt.Sprintf("%s/%s/%02d/%s/%s", c.State.Name, c.Year, c.Month, c.Municipality.Value, c.Division.Value)
}
