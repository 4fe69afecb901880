// Package rodwrapper adapts go-rod to the engine's browser ports. It
// owns the launcher so the Chrome process is killed and cleaned up on
// Close, not just disconnected.
package rodwrapper

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"tavily-register/internal/application/port/output"
)

var _ output.BrowserPort = (*Browser)(nil)

type Config struct {
	Headless   bool
	SlowMotion time.Duration
	Timeout    time.Duration
	NoSandbox  bool
}

func DefaultConfig() Config {
	return Config{
		Headless:   false,
		SlowMotion: 500 * time.Millisecond,
		Timeout:    30 * time.Second,
		NoSandbox:  true,
	}
}

type Browser struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	timeout  time.Duration
	closed   bool
}

func NewBrowser(cfg Config) (*Browser, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}

	l := launcher.New().
		Headless(cfg.Headless).
		Devtools(false).
		NoSandbox(cfg.NoSandbox).
		Delete("use-mock-keychain").
		Set("disable-dev-shm-usage")

	url, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().
		ControlURL(url).
		SlowMotion(cfg.SlowMotion)
	if err := browser.Connect(); err != nil {
		l.Kill()
		l.Cleanup()
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	return &Browser{
		browser:  browser,
		launcher: l,
		timeout:  cfg.Timeout,
	}, nil
}

func (b *Browser) NewPage(ctx context.Context) (output.PagePort, error) {
	if b.closed {
		return nil, output.ErrBrowserNotConnected
	}
	rodPage, err := b.browser.Context(ctx).Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}
	return newPage(rodPage, b.timeout), nil
}

// SetCookies installs persisted cookies on the browser so a prior
// webmail session can be resumed without interactive login.
func (b *Browser) SetCookies(cookies []*proto.NetworkCookieParam) error {
	if b.closed {
		return output.ErrBrowserNotConnected
	}
	if err := b.browser.SetCookies(cookies); err != nil {
		return fmt.Errorf("set cookies: %w", err)
	}
	return nil
}

// Cookies returns the browser's current cookies, for persisting a fresh
// interactive login.
func (b *Browser) Cookies() ([]*proto.NetworkCookie, error) {
	if b.closed {
		return nil, output.ErrBrowserNotConnected
	}
	return b.browser.GetCookies()
}

// Close disconnects and kills the Chrome process. Safe to call twice.
func (b *Browser) Close() {
	if b.closed {
		return
	}
	b.closed = true
	if b.browser != nil {
		_ = b.browser.Close()
	}
	if b.launcher != nil {
		b.launcher.Kill()
		b.launcher.Cleanup()
	}
}
