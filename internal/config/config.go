// Package config holds run settings, the state mapping and the
// year-dependent layout of the portal.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"cfetariff/internal/browser"
	"cfetariff/internal/output"
	"cfetariff/internal/portal"

	"dario.cat/mergo"
)

// DefaultYear is the year the portal's running-year layout applies to.
const DefaultYear = "2022"

// DefaultFile is the optional settings file read at startup.
const DefaultFile = "cfetariff.json5"

// Profile is the month selector layout of one year.
type Profile struct {
	MonthControl string
	// LastMonth is exclusive.
	LastMonth int
}

// Months returns the month values the traversal visits, ascending.
func (p Profile) Months() []int {
	months := make([]int, 0, p.LastMonth)
	for m := 1; m < p.LastMonth; m++ {
		months = append(months, m)
	}
	return months
}

// ProfileFor returns the layout used for year. The running year only has
// months published so far and its own month control.
func ProfileFor(year string) Profile {
	if year == DefaultYear {
		return Profile{MonthControl: portal.CurrentMonthControl, LastMonth: 11}
	}
	return Profile{MonthControl: portal.ClosedMonthControl, LastMonth: 13}
}

// Settings are the knobs of a run. Zero values fall back to defaults.
type Settings struct {
	URL        string `json:"url"`
	Year       string `json:"year"`
	StatesFile string `json:"states_file"`
	// Offset skips that many leading states of the mapping.
	Offset    int    `json:"offset"`
	OutputDir string `json:"output_dir"`

	MonthControl string `json:"month_control"`
	LastMonth    int    `json:"last_month"`

	WaitSeconds      int `json:"wait_seconds"`
	TableWaitSeconds int `json:"table_wait_seconds"`

	Workers         int  `json:"workers"`
	ContinueOnError bool `json:"continue_on_error"`

	ShowUI     bool   `json:"show_ui"`
	ProxyURL   string `json:"proxy_url"`
	BrowserBin string `json:"browser_bin"`

	LogLevel string `json:"log_level"`
}

// Defaults returns the settings of a bare run.
func Defaults() Settings {
	return Settings{
		URL:         portal.DefaultURL,
		Year:        DefaultYear,
		StatesFile:  DefaultStatesFile,
		OutputDir:   output.DefaultRoot,
		WaitSeconds: int(browser.DefaultWait / time.Second),
		Workers:     1,
		LogLevel:    "info",
	}
}

// Profile returns the year profile with explicit overrides applied
func (s Settings) Profile() Profile {
	p := ProfileFor(s.Year)
	if s.MonthControl != "" {
		p.MonthControl = s.MonthControl
	}
	if s.LastMonth > 0 {
		p.LastMonth = s.LastMonth
	}
	return p
}

// Wait is the implicit element wait.
func (s Settings) Wait() time.Duration {
	return time.Duration(s.WaitSeconds) * time.Second
}

// TableWait is the wait for the results table, Wait when unset.
func (s Settings) TableWait() time.Duration {
	if s.TableWaitSeconds > 0 {
		return time.Duration(s.TableWaitSeconds) * time.Second
	}
	return s.Wait()
}

// Validate checks the settings after all sources are merged
func (s Settings) Validate() error {
	if s.URL == "" {
		return fmt.Errorf("url is required")
	}
	if s.Year == "" {
		return fmt.Errorf("year is required")
	}
	if s.Offset < 0 {
		return fmt.Errorf("offset must not be negative")
	}
	if s.Workers < 1 {
		return fmt.Errorf("workers must be at least 1")
	}
	if s.WaitSeconds < 1 {
		return fmt.Errorf("wait must be at least one second")
	}
	if p := s.Profile(); p.LastMonth < 2 || p.LastMonth > 13 {
		return fmt.Errorf("last month must be within 2..13, got %d", p.LastMonth)
	}
	return nil
}

// Load reads the settings file at name over Defaults. A missing file is not
// an error.
func Load(name string) (Settings, error) {
	s := Defaults()
	fromFile, err := Read[Settings](name)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return s, err
	}
	if err := mergo.Merge(&s, fromFile, mergo.WithOverride); err != nil {
		return s, fmt.Errorf("failed to merge %s: %w", name, err)
	}
	return s, nil
}
