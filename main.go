package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"cfetariff/internal/browser"
	"cfetariff/internal/config"
	"cfetariff/internal/output"
	"cfetariff/internal/runner"
	"cfetariff/internal/tariff"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var version = "dev"

var (
	configFile string
	settings   = config.Defaults()
)

func main() {
	var rootCmd = &cobra.Command{
		Use:     "cfetariff",
		Short:   "Collect CFE electricity tariff tables per state into CSV files",
		Version: version,
		Long: `cfetariff drives a headless browser through the CFE tariff portal. For
every state of the state mapping it walks each month, municipality and
division, reads the rendered tariff table and writes the stamped rows to
./scraped_data/<state>/scraped_data_<year>.csv.`,
		Example: `  # Collect 2022 for every state after the first nine
  cfetariff --year 2022 --offset 9

  # Collect a closed year with two browsers in parallel, keep going on failures
  cfetariff --year 2021 --workers 2 --continue-on-error

  # Check a single combination before a long run
  cfetariff probe --state 14 --month 3 --municipality 39 --division 5 --raw`,
		Args:         cobra.NoArgs,
		RunE:         runCollect,
		SilenceUsage: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configFile, "config", "c", config.DefaultFile, "Settings file (json5); <name>.local.<ext> is merged over it")
	pf.StringVar(&settings.Year, "year", settings.Year, "Year to scrape")
	pf.StringVar(&settings.URL, "url", settings.URL, "Page to scrape")
	pf.StringVar(&settings.MonthControl, "month-control", "", "Override the month selector id of the year profile")
	pf.IntVar(&settings.LastMonth, "last-month", 0, "Override the exclusive upper month bound of the year profile")
	pf.IntVar(&settings.WaitSeconds, "wait", settings.WaitSeconds, "Implicit wait for page elements, in seconds")
	pf.IntVar(&settings.TableWaitSeconds, "table-wait", 0, "Wait for the results table, in seconds (defaults to --wait)")
	pf.BoolVar(&settings.ShowUI, "showui", false, "Show browser UI (disable headless mode)")
	pf.StringVarP(&settings.ProxyURL, "proxy", "p", os.Getenv("CFETARIFF_PROXY"), "Proxy URL, defaults to CFETARIFF_PROXY env var")
	pf.StringVar(&settings.BrowserBin, "browser-bin", "", "Browser executable to launch instead of the managed one")
	pf.StringVar(&settings.LogLevel, "log-level", settings.LogLevel, "Log level (debug, info, warn, error)")

	f := rootCmd.Flags()
	f.StringVar(&settings.StatesFile, "states", settings.StatesFile, "JSON mapping of state id to state name")
	f.IntVar(&settings.Offset, "offset", 0, "Skip this many leading states of the mapping")
	f.StringVarP(&settings.OutputDir, "output", "o", settings.OutputDir, "Root directory of the per-state CSV files")
	f.IntVarP(&settings.Workers, "workers", "w", settings.Workers, "States processed in parallel, one browser each")
	f.BoolVar(&settings.ContinueOnError, "continue-on-error", false, "Keep going when a state fails")

	rootCmd.AddCommand(newProbeCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveSettings layers defaults, the settings file and explicitly set flags.
func resolveSettings(cmd *cobra.Command) (config.Settings, error) {
	flagged := settings

	s, err := config.Load(configFile)
	if err != nil {
		return s, fmt.Errorf("failed to load settings: %w", err)
	}

	cmd.Flags().Visit(func(fl *pflag.Flag) {
		applyFlag(&s, flagged, fl.Name)
	})
	if s.ProxyURL == "" {
		s.ProxyURL = flagged.ProxyURL
	}

	if err := s.Validate(); err != nil {
		return s, err
	}
	return s, nil
}

// applyFlag copies the value behind flag name from src to dst.
func applyFlag(dst *config.Settings, src config.Settings, name string) {
	switch name {
	case "year":
		dst.Year = src.Year
	case "url":
		dst.URL = src.URL
	case "month-control":
		dst.MonthControl = src.MonthControl
	case "last-month":
		dst.LastMonth = src.LastMonth
	case "wait":
		dst.WaitSeconds = src.WaitSeconds
	case "table-wait":
		dst.TableWaitSeconds = src.TableWaitSeconds
	case "showui":
		dst.ShowUI = src.ShowUI
	case "proxy":
		dst.ProxyURL = src.ProxyURL
	case "browser-bin":
		dst.BrowserBin = src.BrowserBin
	case "log-level":
		dst.LogLevel = src.LogLevel
	case "states":
		dst.StatesFile = src.StatesFile
	case "offset":
		dst.Offset = src.Offset
	case "output":
		dst.OutputDir = src.OutputDir
	case "workers":
		dst.Workers = src.Workers
	case "continue-on-error":
		dst.ContinueOnError = src.ContinueOnError
	}
}

func newLogger(level string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("invalid log level: %s", level)
	}
	writer := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	return zerolog.New(writer).Level(lvl).With().Timestamp().Logger(), nil
}

func browserConfig(s config.Settings) browser.Config {
	return browser.Config{
		Headless:  !s.ShowUI,
		ProxyURL:  s.ProxyURL,
		Bin:       s.BrowserBin,
		Wait:      s.Wait(),
		TableWait: s.TableWait(),
	}
}

func target(s config.Settings) tariff.Target {
	p := s.Profile()
	return tariff.Target{
		URL:          s.URL,
		Year:         s.Year,
		MonthControl: p.MonthControl,
		LastMonth:    p.LastMonth,
	}
}

func runCollect(cmd *cobra.Command, args []string) error {
	s, err := resolveSettings(cmd)
	if err != nil {
		return err
	}
	log, err := newLogger(s.LogLevel)
	if err != nil {
		return err
	}

	states, err := config.LoadStates(s.StatesFile)
	if err != nil {
		return err
	}
	states, err = config.SkipStates(states, s.Offset)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	r := &runner.Runner{
		Collector:       tariff.NewCollector(browser.Opener(browserConfig(s)), tariff.WithLogger(log)),
		Writer:          output.NewWriter(s.OutputDir),
		Log:             log,
		Template:        target(s),
		Workers:         s.Workers,
		ContinueOnError: s.ContinueOnError,
	}

	log.Info().
		Str("year", s.Year).
		Int("states", len(states)).
		Int("offset", s.Offset).
		Int("workers", s.Workers).
		Msg("starting collection")

	summary, err := r.Run(ctx, states)
	for _, f := range summary.Failed {
		fmt.Fprintf(os.Stderr, "Failed: %s: %v\n", f.State.Name, f.Err)
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Collected %d states into %s\n", len(summary.Written), s.OutputDir)
	return nil
}
