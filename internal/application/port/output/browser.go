package output

import (
	"context"
	"errors"
	"time"

	"tavily-register/internal/engine/locator"
)

var ErrBrowserNotConnected = errors.New("browser is not connected")

// BrowserPort owns the browser engine. Each session acquires exactly one
// page (its browser context) through it and must release the page on
// every exit path.
type BrowserPort interface {
	NewPage(ctx context.Context) (PagePort, error)
	Close()
}

// PagePort is the engine's whole view of a live page. Document returns a
// fresh snapshot for the locator; everything else is navigation and
// observation.
type PagePort interface {
	Navigate(ctx context.Context, url string) error
	Reload(ctx context.Context) error
	URL() string
	HTML(ctx context.Context) (string, error)
	Text(ctx context.Context) (string, error)
	Screenshot(ctx context.Context) ([]byte, error)
	Document(ctx context.Context) (locator.Document, error)
	WaitIdle(ctx context.Context, timeout time.Duration) error
	Close() error
}
