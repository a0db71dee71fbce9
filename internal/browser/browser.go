package browser

import (
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// Config controls how the browser process is launched.
type Config struct {
	Headless bool
	ProxyURL string
	// Bin overrides the browser executable; empty lets rod download or find one.
	Bin string

	// Wait is the implicit wait of every element lookup, DefaultWait when zero.
	Wait time.Duration
	// TableWait bounds the results table lookup, Wait when zero.
	TableWait time.Duration
}

// Browser wraps a launched rod.Browser together with its launcher
type Browser struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
}

// New launches a browser process and connects to it.
func New(cfg Config) (*Browser, error) {
	l := launcher.New().Headless(cfg.Headless)

	if cfg.ProxyURL != "" {
		l = l.Proxy(cfg.ProxyURL)
	}
	if cfg.Bin != "" {
		l = l.Bin(cfg.Bin)
	}

	url, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(url)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	return &Browser{
		browser:  browser,
		launcher: l,
	}, nil
}

// NewPage opens a blank tab
func (b *Browser) NewPage() (*rod.Page, error) {
	page, err := b.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, err
	}
	return page, nil
}

// Close closes the browser and kills the launched process
func (b *Browser) Close() error {
	if b.browser != nil {
		if err := b.browser.Close(); err != nil {
			return err
		}
	}
	if b.launcher != nil {
		b.launcher.Kill()
	}
	return nil
}
