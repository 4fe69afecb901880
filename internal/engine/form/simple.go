package form

import (
	"context"
	"fmt"
	"time"

	"tavily-register/internal/engine/locator"
)

var _ Interactor = (*Simple)(nil)

// Simple is the fixed-wait debugging baseline: sleep, locate once, act,
// sleep. No read-back, no backoff, no retries. It exists so the state
// machine can be exercised against both interaction styles; it is not
// meant for production runs.
type Simple struct {
	page  Page
	delay time.Duration
}

func NewSimple(page Page, delay time.Duration) *Simple {
	if delay <= 0 {
		delay = 2 * time.Second
	}
	return &Simple{page: page, delay: delay}
}

func (s *Simple) Fill(ctx context.Context, intent locator.Intent, value string) error {
	ctrl, err := s.locateOnce(ctx, intent)
	if err != nil {
		return err
	}
	if err := ctrl.Input(ctx, value); err != nil {
		return fmt.Errorf("write %s: %w", intent, err)
	}
	return s.sleep(ctx)
}

func (s *Simple) Activate(ctx context.Context, intent locator.Intent) error {
	ctrl, err := s.locateOnce(ctx, intent)
	if err != nil {
		return err
	}
	if err := ctrl.Click(ctx); err != nil {
		return fmt.Errorf("click %s: %w", intent, err)
	}
	return s.sleep(ctx)
}

func (s *Simple) locateOnce(ctx context.Context, intent locator.Intent) (Control, error) {
	if err := s.sleep(ctx); err != nil {
		return nil, err
	}
	doc, err := s.page.Document(ctx)
	if err != nil {
		return nil, err
	}
	cand, ok := locator.Locate(doc, intent)
	if !ok {
		return nil, fmt.Errorf("%s: %w", intent, ErrNotLocated)
	}
	ctrl, ok := cand.Element.(Control)
	if !ok {
		return nil, fmt.Errorf("%s: %w", intent, ErrNotInteractable)
	}
	return ctrl, nil
}

func (s *Simple) sleep(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.delay):
		return nil
	}
}
