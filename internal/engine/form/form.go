// Package form combines the locator and the adaptive waiter into
// reliable fill and activate operations. Every operation verifies its own
// effect: fills are read back, activations wait for an observable page
// reaction. Failures here are retryable by design; the state machine
// decides what exhausting them means.
package form

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"time"

	"go.uber.org/zap"

	"tavily-register/internal/engine/locator"
	"tavily-register/internal/engine/wait"
)

var (
	ErrNotLocated       = errors.New("element not located")
	ErrNotInteractable  = errors.New("element is not a usable control")
	ErrFillVerification = errors.New("field content did not match written value")
	ErrNoEffect         = errors.New("activation produced no observable change")
)

// Control is what a located element must support to be acted on. The rod
// page snapshot and the test documents both satisfy it.
type Control interface {
	locator.Element
	Input(ctx context.Context, value string) error
	Value(ctx context.Context) (string, error)
	Click(ctx context.Context) error
}

// Page is the slice of the page port the form layer needs.
type Page interface {
	URL() string
	HTML(ctx context.Context) (string, error)
	Document(ctx context.Context) (locator.Document, error)
	WaitIdle(ctx context.Context, timeout time.Duration) error
}

// Interactor is the swap point between the adaptive implementation and
// the fixed-wait debugging baseline.
type Interactor interface {
	Fill(ctx context.Context, intent locator.Intent, value string) error
	Activate(ctx context.Context, intent locator.Intent) error
}

type Config struct {
	// FillAttempts bounds fill retries and includes the successful
	// attempt. The default matches the empirically tuned original; it
	// is a configurable default, not a guarantee.
	FillAttempts  int
	LocateTimeout time.Duration
	PollMin       time.Duration
	PollMax       time.Duration
	// GracePeriod is how long an activation may take to produce a
	// visible reaction before it counts as a dud click.
	GracePeriod time.Duration
}

func DefaultConfig() Config {
	return Config{
		FillAttempts:  3,
		LocateTimeout: 10 * time.Second,
		PollMin:       100 * time.Millisecond,
		PollMax:       2 * time.Second,
		GracePeriod:   3 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.FillAttempts <= 0 {
		c.FillAttempts = d.FillAttempts
	}
	if c.LocateTimeout <= 0 {
		c.LocateTimeout = d.LocateTimeout
	}
	if c.PollMin <= 0 {
		c.PollMin = d.PollMin
	}
	if c.PollMax <= 0 {
		c.PollMax = d.PollMax
	}
	if c.GracePeriod <= 0 {
		c.GracePeriod = d.GracePeriod
	}
	return c
}

var _ Interactor = (*Robust)(nil)

type Robust struct {
	page Page
	cfg  Config
	log  *zap.Logger
}

func NewRobust(page Page, cfg Config, log *zap.Logger) *Robust {
	if log == nil {
		log = zap.NewNop()
	}
	return &Robust{page: page, cfg: cfg.withDefaults(), log: log}
}

// Fill waits for the field, clears it, writes value and reads it back.
// A mismatch burns one attempt; the whole operation is idempotent, so a
// retried fill converges on the same end state as a single clean one.
func (r *Robust) Fill(ctx context.Context, intent locator.Intent, value string) error {
	var lastErr error = ErrNotLocated
	for attempt := 1; attempt <= r.cfg.FillAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		ctrl, err := r.locate(ctx, intent)
		if err != nil {
			lastErr = err
			continue
		}
		if err := ctrl.Input(ctx, value); err != nil {
			lastErr = fmt.Errorf("write %s: %w", intent, err)
			continue
		}
		got, err := ctrl.Value(ctx)
		if err != nil {
			lastErr = fmt.Errorf("read back %s: %w", intent, err)
			continue
		}
		if got == value {
			return nil
		}
		lastErr = ErrFillVerification
		r.log.Debug("fill verification mismatch",
			zap.String("intent", string(intent)),
			zap.Int("attempt", attempt),
			zap.Int("want_len", len(value)),
			zap.Int("got_len", len(got)))
	}
	return fmt.Errorf("fill %s after %d attempts: %w", intent, r.cfg.FillAttempts, lastErr)
}

// Activate clicks the control and waits for evidence the click landed: a
// URL change, a document mutation, or the control disabling itself. A
// click with no observable effect is retried once before escalating.
func (r *Robust) Activate(ctx context.Context, intent locator.Intent) error {
	const clickAttempts = 2

	var lastErr error
	for attempt := 1; attempt <= clickAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		ctrl, err := r.locate(ctx, intent)
		if err != nil {
			lastErr = err
			continue
		}

		beforeURL := r.page.URL()
		beforeDoc := r.fingerprint(ctx)

		if err := ctrl.Click(ctx); err != nil {
			lastErr = fmt.Errorf("click %s: %w", intent, err)
			continue
		}

		reacted := wait.Until(ctx, wait.Options{
			MinInterval: r.cfg.PollMin,
			MaxInterval: r.cfg.PollMax,
			Timeout:     r.cfg.GracePeriod,
		}, func(ctx context.Context) bool {
			if r.page.URL() != beforeURL {
				return true
			}
			if !ctrl.Enabled() {
				return true
			}
			return r.fingerprint(ctx) != beforeDoc
		})
		if reacted {
			_ = r.page.WaitIdle(ctx, r.cfg.GracePeriod)
			return nil
		}
		lastErr = ErrNoEffect
		r.log.Debug("activation had no observable effect",
			zap.String("intent", string(intent)),
			zap.Int("attempt", attempt))
	}
	return fmt.Errorf("activate %s: %w", intent, lastErr)
}

// locate blocks until the intent resolves to an interactable control or
// the locate timeout passes.
func (r *Robust) locate(ctx context.Context, intent locator.Intent) (Control, error) {
	var (
		found   Control
		located bool
	)
	ok := wait.Until(ctx, wait.Options{
		MinInterval: r.cfg.PollMin,
		MaxInterval: r.cfg.PollMax,
		Timeout:     r.cfg.LocateTimeout,
	}, func(ctx context.Context) bool {
		doc, err := r.page.Document(ctx)
		if err != nil {
			return false
		}
		cand, hit := locator.Locate(doc, intent)
		if !hit {
			return false
		}
		located = true
		ctrl, usable := cand.Element.(Control)
		if !usable {
			return false
		}
		found = ctrl
		return true
	})
	if !ok {
		if located {
			return nil, fmt.Errorf("%s: %w", intent, ErrNotInteractable)
		}
		return nil, fmt.Errorf("%s: %w", intent, ErrNotLocated)
	}
	return found, nil
}

// fingerprint reduces the current document to a cheap comparable value
// so Activate can detect DOM mutations without diffing HTML.
func (r *Robust) fingerprint(ctx context.Context) uint64 {
	doc, err := r.page.Document(ctx)
	if err != nil {
		return 0
	}
	h := fnv.New64a()
	for _, el := range doc.Elements() {
		h.Write([]byte(el.Tag()))
		h.Write([]byte(el.Text()))
		h.Write([]byte{0})
	}
	return h.Sum64()
}
