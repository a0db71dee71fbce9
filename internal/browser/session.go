package browser

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"cfetariff/internal/portal"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// DefaultWait is the implicit wait applied to every element lookup.
const DefaultWait = 10 * time.Second

// settleIdle is how long the network must stay quiet after a selection
// before the postback is considered finished.
const settleIdle = 300 * time.Millisecond

// Session is a single tab on the tariff portal. It implements portal.Session.
type Session struct {
	browser   *Browser
	page      *rod.Page
	wait      time.Duration
	tableWait time.Duration
}

// Opener returns a portal.Opener launching one browser per session.
func Opener(cfg Config) portal.Opener {
	return func(ctx context.Context) (portal.Session, error) {
		s, err := Open(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

// Open launches a browser and opens a blank tab in it.
func Open(ctx context.Context, cfg Config) (*Session, error) {
	wait := cfg.Wait
	if wait <= 0 {
		wait = DefaultWait
	}
	tableWait := cfg.TableWait
	if tableWait <= 0 {
		tableWait = wait
	}

	b, err := New(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create browser: %w", err)
	}

	page, err := b.NewPage()
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	return &Session{browser: b, page: page, wait: wait, tableWait: tableWait}, nil
}

// lookup returns the page bound to ctx with the implicit wait applied.
func (s *Session) lookup(ctx context.Context) *rod.Page {
	return s.page.Context(ctx).Timeout(s.wait)
}

// Navigate loads url and waits for the load event
func (s *Session) Navigate(ctx context.Context, url string) error {
	page := s.lookup(ctx)
	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("failed to navigate: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("failed to wait for page load: %w", err)
	}
	return nil
}

// Select picks the option whose value attribute equals value and waits for
// the resulting postback to settle.
func (s *Session) Select(ctx context.Context, control, value string) error {
	page := s.lookup(ctx)

	el, err := page.Element("#" + control)
	if err != nil {
		return fmt.Errorf("failed to find control '%s': %w", control, err)
	}

	// Selection triggers an ASP.NET postback; wait for its requests to drain.
	wait := page.WaitRequestIdle(
		settleIdle, nil, nil,
		[]proto.NetworkResourceType{proto.NetworkResourceTypeImage, proto.NetworkResourceTypeMedia},
	)

	option := "option[value=" + strconv.Quote(value) + "]"
	if err := el.Select([]string{option}, true, rod.SelectorTypeCSSSector); err != nil {
		return fmt.Errorf("failed to select %s on '%s': %w", value, control, err)
	}
	wait()

	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("failed to wait for page load: %w", err)
	}
	return nil
}

// Options reads label/value pairs of a control in display order
func (s *Session) Options(ctx context.Context, control string) ([]portal.Option, error) {
	el, err := s.lookup(ctx).Element("#" + control)
	if err != nil {
		return nil, fmt.Errorf("failed to find control '%s': %w", control, err)
	}

	result, err := el.Eval(`() => Array.from(this.options).map(o => ({
		label: o.text.trim(),
		value: o.value,
	}))`)
	if err != nil {
		return nil, fmt.Errorf("failed to read options of '%s': %w", control, err)
	}

	var opts []portal.Option
	if err := result.Value.Unmarshal(&opts); err != nil {
		return nil, fmt.Errorf("failed to parse options of '%s': %w", control, err)
	}
	return opts, nil
}

// TableHTML returns the outerHTML of the first element matching selector
func (s *Session) TableHTML(ctx context.Context, selector string) (string, error) {
	el, err := s.page.Context(ctx).Timeout(s.tableWait).Element(selector)
	if err != nil {
		return "", fmt.Errorf("failed to find '%s': %w", selector, err)
	}
	html, err := el.HTML()
	if err != nil {
		return "", fmt.Errorf("failed to get element HTML: %w", err)
	}
	return html, nil
}

// Close closes the tab and the browser behind it
func (s *Session) Close() error {
	if s.page != nil {
		s.page.Close()
	}
	return s.browser.Close()
}
