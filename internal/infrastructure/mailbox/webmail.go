// Package mailbox drives the 2925.com webmail UI to pick up signup
// verification mail. It authenticates from a persisted cookie jar, polls
// the inbox on a fixed interval and extracts the confirmation link from
// the newest matching message.
package mailbox

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"tavily-register/internal/application/port/output"
	"tavily-register/internal/engine/locator"
	"tavily-register/internal/infrastructure/cookies"
)

var _ output.MailboxPort = (*Webmail)(nil)

// Browser is the slice of the rod wrapper the webmail client needs:
// a page of its own plus cookie install/read for session restore.
type Browser interface {
	NewPage(ctx context.Context) (output.PagePort, error)
	SetCookies(cks []*proto.NetworkCookieParam) error
	Cookies() ([]*proto.NetworkCookie, error)
}

type Config struct {
	MailboxURL   string
	SenderMatch  string
	LinkPattern  string
	PollInterval time.Duration
}

type Webmail struct {
	browser Browser
	jar     *cookies.Jar
	cfg     Config
	linkRe  *regexp.Regexp
	log     *zap.Logger

	page output.PagePort
}

func NewWebmail(browser Browser, jar *cookies.Jar, cfg Config, log *zap.Logger) (*Webmail, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 30 * time.Second
	}
	linkRe, err := regexp.Compile(cfg.LinkPattern)
	if err != nil {
		return nil, fmt.Errorf("mail link pattern: %w", err)
	}
	return &Webmail{
		browser: browser,
		jar:     jar,
		cfg:     cfg,
		linkRe:  linkRe,
		log:     log,
	}, nil
}

// Authenticate installs the persisted session cookies and verifies they
// still hold by landing on the inbox. A missing or expired jar, or a
// bounce to the login page, reports false without an error.
func (w *Webmail) Authenticate(ctx context.Context) (bool, error) {
	params, err := w.jar.Load()
	if err != nil {
		if errors.Is(err, cookies.ErrNoCookies) || errors.Is(err, cookies.ErrSessionExpired) {
			w.log.Info("no usable webmail session", zap.Error(err))
			return false, nil
		}
		return false, err
	}
	if err := w.browser.SetCookies(params); err != nil {
		return false, fmt.Errorf("install webmail cookies: %w", err)
	}

	page, err := w.browser.NewPage(ctx)
	if err != nil {
		return false, fmt.Errorf("open webmail page: %w", err)
	}
	if err := page.Navigate(ctx, w.cfg.MailboxURL); err != nil {
		_ = page.Close()
		return false, fmt.Errorf("open inbox: %w", err)
	}
	if loginPage(page.URL()) {
		_ = page.Close()
		w.log.Info("webmail session rejected, login required")
		return false, nil
	}

	w.page = page
	return true, nil
}

// FindVerificationLink polls the inbox until a message for address from
// the expected sender yields a link, or deadline passes.
func (w *Webmail) FindVerificationLink(ctx context.Context, address string, deadline time.Time) (string, error) {
	if w.page == nil {
		return "", output.ErrMailSessionExpired
	}
	prefix := addressTag(address)

	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		link, err := w.checkOnce(ctx, prefix)
		if err != nil {
			w.log.Warn("inbox check failed", zap.Error(err))
		} else if link != "" {
			w.log.Info("verification link found", zap.String("address", address))
			return link, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return "", output.ErrNoVerificationMail
		}
		pause := w.cfg.PollInterval
		if pause > remaining {
			pause = remaining
		}
		w.log.Info("no verification mail yet",
			zap.String("address", address),
			zap.Duration("next_check_in", pause))

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(pause):
		}
	}
}

// checkOnce reloads the inbox, opens the newest matching message and
// tries to extract a link from it. Empty string with nil error means no
// matching message yet.
func (w *Webmail) checkOnce(ctx context.Context, prefix string) (string, error) {
	if err := w.page.Navigate(ctx, w.cfg.MailboxURL); err != nil {
		return "", fmt.Errorf("reload inbox: %w", err)
	}
	if loginPage(w.page.URL()) {
		return "", output.ErrMailSessionExpired
	}

	doc, err := w.page.Document(ctx)
	if err != nil {
		return "", fmt.Errorf("inbox snapshot: %w", err)
	}

	row, ok := w.newestMatch(doc.Elements(), prefix)
	if !ok {
		return "", nil
	}
	if err := row.Click(ctx); err != nil {
		return "", fmt.Errorf("open message: %w", err)
	}
	_ = w.page.WaitIdle(ctx, 5*time.Second)

	html, err := w.page.HTML(ctx)
	if err != nil {
		return "", fmt.Errorf("read message: %w", err)
	}
	link, ok := ExtractVerificationLink(html, w.linkRe)
	if !ok {
		return "", nil
	}
	return link, nil
}

type clickable interface {
	Click(ctx context.Context) error
}

// newestMatch picks the most recently received row mentioning the
// expected sender and the session's address tag. The list's render
// order is not trusted: when several rows match, the timestamp shown
// on each row decides, and only rows without any readable timestamp
// fall back to document position.
func (w *Webmail) newestMatch(elements []locator.Element, prefix string) (clickable, bool) {
	sender := strings.ToLower(w.cfg.SenderMatch)
	var best clickable
	var bestAt time.Time
	for _, el := range elements {
		if !el.Visible() {
			continue
		}
		text := strings.ToLower(el.Text())
		if sender != "" && !strings.Contains(text, sender) {
			continue
		}
		if prefix != "" && !strings.Contains(text, strings.ToLower(prefix)) {
			continue
		}
		c, ok := el.(clickable)
		if !ok {
			continue
		}
		at := receivedAt(el)
		if best == nil || at.After(bestAt) {
			best, bestAt = c, at
		}
	}
	return best, best != nil
}

var rowTimeRe = regexp.MustCompile(
	`\d{4}[-/]\d{2}[-/]\d{2}[ T]\d{2}:\d{2}(?::\d{2})?|\d{2}:\d{2}(?::\d{2})?`)

var rowTimeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006/01/02 15:04:05",
	"2006/01/02 15:04",
}

// receivedAt reads the row's receipt time: a machine-readable attribute
// when the list carries one, otherwise the timestamp text on the row.
// Bare clock times (today's mail) are anchored to the current date.
// Zero time means no signal, which sorts below any parsed stamp.
func receivedAt(el locator.Element) time.Time {
	stamp := el.Attr("data-time")
	if stamp == "" {
		stamp = rowTimeRe.FindString(el.Text())
	}
	if stamp == "" {
		return time.Time{}
	}
	for _, layout := range rowTimeLayouts {
		if t, err := time.ParseInLocation(layout, stamp, time.Local); err == nil {
			return t
		}
	}
	for _, layout := range []string{"15:04:05", "15:04"} {
		t, err := time.ParseInLocation(layout, stamp, time.Local)
		if err != nil {
			continue
		}
		now := time.Now()
		return time.Date(now.Year(), now.Month(), now.Day(),
			t.Hour(), t.Minute(), t.Second(), 0, time.Local)
	}
	return time.Time{}
}

// PersistSession saves the browser's current cookies into the jar, for
// use right after an interactive login.
func (w *Webmail) PersistSession() error {
	cks, err := w.browser.Cookies()
	if err != nil {
		return fmt.Errorf("read browser cookies: %w", err)
	}
	if err := w.jar.Save(cks); err != nil {
		return fmt.Errorf("persist webmail session: %w", err)
	}
	return nil
}

func (w *Webmail) Close() {
	if w.page != nil {
		_ = w.page.Close()
		w.page = nil
	}
}

// addressTag isolates the suffixed tag of a generated address; 2925's
// list view shows the tag of plus-style aliases rather than the full
// address.
func addressTag(address string) string {
	local, _, ok := strings.Cut(address, "@")
	if !ok {
		return address
	}
	if _, tag, ok := strings.Cut(local, "-"); ok {
		return tag
	}
	return local
}

func loginPage(url string) bool {
	u := strings.ToLower(url)
	return strings.Contains(u, "login") || strings.Contains(u, "signin")
}
