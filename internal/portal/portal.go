// Package portal describes the CFE tariff page as seen by the collector:
// a handful of <select> controls and one rendered results table.
package portal

import "context"

// DefaultURL is the production "Gran Demanda en Media Tensión Horaria" page.
const DefaultURL = "https://app.cfe.mx/Aplicaciones/CCFE/Tarifas/TarifasCRENegocio/Tarifas/GranDemandaMTH.aspx"

// Control ids of the portal form.
const (
	YearControl         = "ContentPlaceHolder1_Fecha_ddAnio"
	StateControl        = "ContentPlaceHolder1_EdoMpoDiv_ddEstado"
	MunicipalityControl = "ContentPlaceHolder1_EdoMpoDiv_ddMunicipio"
	DivisionControl     = "ContentPlaceHolder1_EdoMpoDiv_ddDivision"

	// The month control differs between the running year and closed years.
	CurrentMonthControl = "ContentPlaceHolder1_Fecha2_ddMes"
	ClosedMonthControl  = "ContentPlaceHolder1_MesVerano3_ddMesConsulta"
)

// TableSelector matches the tariff results table.
const TableSelector = "table.table.table-bordered.table-striped"

// Option is one entry of a selector control.
type Option struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// DropPlaceholder removes the leading "Seleccione..." entry every control
// carries. The returned slice never aliases a placeholder.
func DropPlaceholder(opts []Option) []Option {
	if len(opts) == 0 {
		return nil
	}
	return opts[1:]
}

// Page is the single shared UI state a traversal drives. Every selection may
// change what the following reads return.
type Page interface {
	Navigate(ctx context.Context, url string) error
	// Select picks the option with the given value on the control with the
	// given element id.
	Select(ctx context.Context, control, value string) error
	// Options returns the control's options in display order, placeholder
	// included.
	Options(ctx context.Context, control string) ([]Option, error)
	// TableHTML returns the outerHTML of the first element matching selector.
	TableHTML(ctx context.Context, selector string) (string, error)
}

// Session is a Page backed by resources that must be released.
type Session interface {
	Page
	Close() error
}

// Opener acquires a fresh session, one per state traversal.
type Opener func(ctx context.Context) (Session, error)
