// Package wait replaces fixed sleeps with a cancellable polling loop.
// Callers describe readiness as a predicate; Until polls it with
// multiplicative backoff until it holds or the budget runs out. Timeout
// is a normal outcome (false), never an error.
package wait

import (
	"context"
	"regexp"
	"strings"
	"time"

	"tavily-register/internal/engine/locator"
)

type Options struct {
	MinInterval time.Duration
	MaxInterval time.Duration
	Factor      float64
	Timeout     time.Duration
}

func (o Options) withDefaults() Options {
	if o.MinInterval <= 0 {
		o.MinInterval = 100 * time.Millisecond
	}
	if o.MaxInterval <= 0 {
		o.MaxInterval = 2 * time.Second
	}
	if o.MaxInterval < o.MinInterval {
		o.MaxInterval = o.MinInterval
	}
	if o.Factor < 1 {
		o.Factor = 2
	}
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
	return o
}

type Predicate func(ctx context.Context) bool

// Until polls pred until it returns true or the timeout elapses. The
// poll interval starts at MinInterval and doubles (Factor) up to
// MaxInterval. Context cancellation is observed at every poll boundary
// and short-circuits to false without waiting out the timeout.
func Until(ctx context.Context, opts Options, pred Predicate) bool {
	opts = opts.withDefaults()
	deadline := time.Now().Add(opts.Timeout)
	interval := opts.MinInterval

	for {
		if ctx.Err() != nil {
			return false
		}
		if pred(ctx) {
			return true
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return false
		}
		sleep := interval
		if sleep > remaining {
			sleep = remaining
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(sleep):
		}
		interval = time.Duration(float64(interval) * opts.Factor)
		if interval > opts.MaxInterval {
			interval = opts.MaxInterval
		}
	}
}

// DocumentFunc supplies a fresh snapshot of the live document for each
// poll iteration.
type DocumentFunc func(ctx context.Context) (locator.Document, error)

// ElementLocated is true once the locator resolves the intent in the
// current document.
func ElementLocated(doc DocumentFunc, intent locator.Intent) Predicate {
	return func(ctx context.Context) bool {
		d, err := doc(ctx)
		if err != nil {
			return false
		}
		_, ok := locator.Locate(d, intent)
		return ok
	}
}

// TextPresent is true once the page's rendered text contains want
// (case-insensitive).
func TextPresent(text func(ctx context.Context) (string, error), want string) Predicate {
	want = strings.ToLower(want)
	return func(ctx context.Context) bool {
		s, err := text(ctx)
		if err != nil {
			return false
		}
		return strings.Contains(strings.ToLower(s), want)
	}
}

// URLMatches is true once the current URL matches the pattern.
func URLMatches(url func() string, pattern *regexp.Regexp) Predicate {
	return func(context.Context) bool {
		return pattern.MatchString(url())
	}
}

// Any combines predicates; the wait completes when any of them holds.
func Any(preds ...Predicate) Predicate {
	return func(ctx context.Context) bool {
		for _, p := range preds {
			if p(ctx) {
				return true
			}
		}
		return false
	}
}
