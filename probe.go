package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"cfetariff/internal/browser"
	"cfetariff/internal/config"
	"cfetariff/internal/extractor"
	"cfetariff/internal/formatter"
	"cfetariff/internal/tariff"

	"github.com/spf13/cobra"
)

var (
	probeState        string
	probeStatesFile   string
	probeMonth        int
	probeMunicipality string
	probeDivision     string
	probeFormat       string
	probeRaw          bool
)

func newProbeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Select one combination and print the table the portal renders for it",
		Long: `probe opens the portal, selects a single year, state, month,
municipality and division and prints the stamped rows, or with --raw the
rendered table itself as markdown. Use it to check the page layout before
starting a long collection.`,
		Args:         cobra.NoArgs,
		RunE:         runProbe,
		SilenceUsage: true,
	}

	f := cmd.Flags()
	f.StringVar(&probeState, "state", "", "State id (value of the state selector)")
	f.StringVar(&probeStatesFile, "states", config.DefaultStatesFile, "JSON mapping used to name the state")
	f.IntVar(&probeMonth, "month", 1, "Month value")
	f.StringVar(&probeMunicipality, "municipality", "", "Municipality value")
	f.StringVar(&probeDivision, "division", "", "Division value")
	f.StringVarP(&probeFormat, "format", "f", "markdown", "Output format ("+strings.Join(formatter.Formats, ", ")+")")
	f.BoolVar(&probeRaw, "raw", false, "Print the rendered table converted to markdown instead of the stamped rows")
	for _, name := range []string{"state", "municipality", "division"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func runProbe(cmd *cobra.Command, args []string) error {
	s, err := resolveSettings(cmd)
	if err != nil {
		return err
	}
	log, err := newLogger(s.LogLevel)
	if err != nil {
		return err
	}

	p := s.Profile()
	if probeMonth < 1 || probeMonth >= p.LastMonth {
		return fmt.Errorf("month %d is outside 1..%d for year %s", probeMonth, p.LastMonth-1, s.Year)
	}

	t := target(s)
	t.StateID = probeState
	t.StateName = stateName(probeStatesFile, probeState)

	collector := tariff.NewCollector(browser.Opener(browserConfig(s)), tariff.WithLogger(log))
	res, err := collector.Probe(context.Background(), t, tariff.Probe{
		Month:        probeMonth,
		Municipality: probeMunicipality,
		Division:     probeDivision,
	})
	if err != nil {
		return fmt.Errorf("failed to probe: %w", err)
	}

	if probeRaw {
		if res.HTML == "" {
			return fmt.Errorf("no table rendered: %w", res.Outcome.Err)
		}
		markdown, err := extractor.TableMarkdown(res.HTML)
		if err != nil {
			return err
		}
		fmt.Println(markdown)
		return nil
	}

	if res.Outcome.Skipped() {
		return fmt.Errorf("combination skipped (%s): %w", res.Outcome.Skip, res.Outcome.Err)
	}

	ds := &tariff.Dataset{State: t.StateName, Year: t.Year, Rows: res.Outcome.Rows}
	out, err := formatter.Format(ds, probeFormat)
	if err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}
	fmt.Println(out)
	fmt.Fprintf(os.Stderr, "%d rows for %s\n", len(ds.Rows), res.Outcome.Cursor)
	return nil
}

// stateName looks id up in the mapping, falling back to the id itself.
func stateName(path, id string) string {
	states, err := config.LoadStates(path)
	if err != nil {
		return id
	}
	for _, st := range states {
		if st.ID == id {
			return st.Name
		}
	}
	return id
}
