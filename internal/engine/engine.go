// Package engine drives one signup session through its phases:
// Init -> Registering -> AwaitingVerification -> LoggingIn ->
// ExtractingToken -> Persisting -> Done, with Failed as the terminal
// error state. Phases run strictly sequentially; each carries its own
// retry budget and success criterion. The browser context acquired at
// Init is released on every exit path.
package engine

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.uber.org/zap"

	"tavily-register/internal/application/port/output"
	"tavily-register/internal/config"
	"tavily-register/internal/domain/entity"
	"tavily-register/internal/engine/form"
)

// InteractorFactory builds the form layer for a page. Swapping it is how
// the fixed-wait baseline replaces the adaptive implementation without
// the state machine noticing.
type InteractorFactory func(page form.Page) form.Interactor

type Engine struct {
	cfg     config.Settings
	browser output.BrowserPort
	mailbox output.MailboxPort
	store   output.ResultStorePort
	diags   output.DiagnosticsPort
	log     *zap.Logger

	newInteractor InteractorFactory

	postSignupRe *regexp.Regexp
	verifiedRe   *regexp.Regexp
	tokenRe      *regexp.Regexp
}

// Result is everything a run produced. A failed session reports the
// phase it died in plus the last diagnostic; a successful one carries
// the record. StoreErr is set when the token was obtained but could not
// be persisted; the token is never rolled back.
type Result struct {
	Session  *entity.Session
	Record   *entity.Record
	Token    string
	FailedAt entity.Phase
	LastDiag *entity.Diagnostic
	StoreErr error
}

func (r *Result) Succeeded() bool { return r.Record != nil }

func New(
	cfg config.Settings,
	browser output.BrowserPort,
	mailbox output.MailboxPort,
	store output.ResultStorePort,
	diags output.DiagnosticsPort,
	log *zap.Logger,
) (*Engine, error) {
	if log == nil {
		log = zap.NewNop()
	}

	postSignupRe, err := regexp.Compile(cfg.PostSignupPattern)
	if err != nil {
		return nil, fmt.Errorf("post-signup pattern: %w", err)
	}
	verifiedRe, err := regexp.Compile(cfg.VerifiedPattern)
	if err != nil {
		return nil, fmt.Errorf("verified pattern: %w", err)
	}
	tokenRe, err := regexp.Compile(cfg.TokenPattern)
	if err != nil {
		return nil, fmt.Errorf("token pattern: %w", err)
	}

	e := &Engine{
		cfg:          cfg,
		browser:      browser,
		mailbox:      mailbox,
		store:        store,
		diags:        diags,
		log:          log,
		postSignupRe: postSignupRe,
		verifiedRe:   verifiedRe,
		tokenRe:      tokenRe,
	}
	e.newInteractor = e.defaultInteractor
	return e, nil
}

// SetInteractorFactory overrides the form layer construction; used for
// the fixed-wait baseline and by tests.
func (e *Engine) SetInteractorFactory(f InteractorFactory) {
	if f != nil {
		e.newInteractor = f
	}
}

func (e *Engine) defaultInteractor(page form.Page) form.Interactor {
	if e.cfg.UseSimpleInteractor {
		return form.NewSimple(page, e.cfg.SimpleDelay)
	}
	return form.NewRobust(page, form.Config{
		FillAttempts: e.cfg.FillAttempts,
	}, e.log)
}

// Run executes one complete session. A browser start failure is returned
// as an error before any identity is allocated; every other failure mode
// is reported through the Result. ErrMailSessionExpired is additionally
// returned as the error so callers can trigger re-authentication instead
// of retrying blindly.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	page, err := e.browser.NewPage(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire browser context: %w", err)
	}
	defer page.Close()

	identity := entity.NewIdentity(e.cfg.EmailPrefix, e.cfg.EmailDomain, e.cfg.Password)
	sess := entity.NewSession(identity)
	res := &Result{Session: sess}
	ia := e.newInteractor(page)
	log := e.log.With(zap.String("session", sess.ID), zap.String("address", identity.Address))

	log.Info("session started")

	// Registering.
	last, ok := e.runPhase(ctx, res, page, entity.PhaseRegistering, e.cfg.PhaseAttempts,
		func(ctx context.Context) entity.PhaseResult {
			return e.register(ctx, page, ia, identity)
		})
	if !ok {
		return e.fail(res, last, log), nil
	}

	// AwaitingVerification: one shot against the external mailbox; a
	// miss fails the session rather than retrying in place.
	last, ok = e.runPhase(ctx, res, page, entity.PhaseAwaitingVerification, 1,
		func(ctx context.Context) entity.PhaseResult {
			return e.awaitVerification(ctx, sess)
		})
	if !ok {
		e.fail(res, last, log)
		if sess.LastErr != nil && errors.Is(sess.LastErr, output.ErrMailSessionExpired) {
			return res, output.ErrMailSessionExpired
		}
		return res, nil
	}
	link := last.Value
	if link == "" {
		// Guard, never expected: the verification phase only succeeds
		// with a non-empty link.
		e.fail(res, entity.PhaseResult{
			Phase:      entity.PhaseAwaitingVerification,
			Outcome:    entity.OutcomeFatal,
			Diagnostic: &entity.Diagnostic{Reason: "empty verification link"},
		}, log)
		return res, nil
	}

	// LoggingIn.
	last, ok = e.runPhase(ctx, res, page, entity.PhaseLoggingIn, e.cfg.PhaseAttempts,
		func(ctx context.Context) entity.PhaseResult {
			return e.login(ctx, page, ia, identity, link)
		})
	if !ok {
		return e.fail(res, last, log), nil
	}

	// ExtractingToken.
	last, ok = e.runPhase(ctx, res, page, entity.PhaseExtractingToken, e.cfg.PhaseAttempts,
		func(ctx context.Context) entity.PhaseResult {
			return e.extractToken(ctx, page)
		})
	if !ok {
		return e.fail(res, last, log), nil
	}
	res.Token = last.Value

	// Persisting. A store failure is surfaced next to the token, never
	// instead of it.
	sess.Phase = entity.PhasePersisting
	record := entity.Record{
		Address:     identity.Address,
		Secret:      identity.Secret,
		Token:       res.Token,
		CompletedAt: time.Now().UTC(),
	}
	if err := e.store.Append(record); err != nil {
		res.StoreErr = err
		log.Error("record not persisted; token retained", zap.Error(err))
	}
	res.Record = &record
	sess.Phase = entity.PhaseDone
	log.Info("session completed", zap.Duration("elapsed", time.Since(sess.StartedAt)))
	return res, nil
}

type phaseFunc func(ctx context.Context) entity.PhaseResult

// runPhase applies the per-phase retry policy: retry outcomes burn an
// attempt and reload the page before the next one; fatal outcomes and
// exhausted budgets end the session. Diagnostics are captured for every
// retry and fatal result.
func (e *Engine) runPhase(ctx context.Context, res *Result, page output.PagePort, phase entity.Phase, budget int, fn phaseFunc) (entity.PhaseResult, bool) {
	res.Session.Phase = phase
	log := e.log.With(zap.String("session", res.Session.ID), zap.String("phase", string(phase)))

	if budget <= 0 {
		budget = 1
	}

	var last entity.PhaseResult
	for attempt := 1; attempt <= budget; attempt++ {
		if err := ctx.Err(); err != nil {
			last = entity.PhaseResult{
				Phase:      phase,
				Outcome:    entity.OutcomeFatal,
				Diagnostic: &entity.Diagnostic{Reason: "cancelled"},
			}
			res.Session.LastErr = err
			e.capture(ctx, res, page, last)
			return last, false
		}

		phaseCtx := ctx
		var cancel context.CancelFunc
		if e.cfg.PhaseTimeout > 0 && phase != entity.PhaseAwaitingVerification {
			// The verification wait has its own deadline; per-phase
			// budgets never bleed into it.
			phaseCtx, cancel = context.WithTimeout(ctx, e.cfg.PhaseTimeout)
		}
		last = fn(phaseCtx)
		if cancel != nil {
			cancel()
		}
		last.Phase = phase

		switch last.Outcome {
		case entity.OutcomeSuccess:
			log.Info("phase succeeded", zap.Int("attempt", attempt))
			return last, true
		case entity.OutcomeFatal:
			log.Error("phase failed", zap.Int("attempt", attempt), zap.String("reason", diagReason(last)))
			e.capture(ctx, res, page, last)
			return last, false
		case entity.OutcomeRetry:
			log.Warn("phase attempt failed", zap.Int("attempt", attempt), zap.String("reason", diagReason(last)))
			e.capture(ctx, res, page, last)
			if attempt < budget {
				if err := page.Reload(ctx); err != nil {
					log.Warn("page reload between attempts failed", zap.Error(err))
				}
			}
		}
	}
	log.Error("phase retry budget exhausted", zap.Int("budget", budget))
	return last, false
}

// capture fills in a best-effort snapshot when the handler did not
// attach one, then hands the diagnostic to the sink. Sink failures are
// logged and swallowed.
func (e *Engine) capture(ctx context.Context, res *Result, page output.PagePort, pr entity.PhaseResult) {
	diag := pr.Diagnostic
	if diag == nil {
		diag = &entity.Diagnostic{Reason: pr.Outcome.String()}
	}
	if diag.HTML == "" && page != nil {
		if html, err := page.HTML(ctx); err == nil {
			diag.HTML = html
		}
	}
	if diag.Screenshot == nil && page != nil {
		if shot, err := page.Screenshot(ctx); err == nil {
			diag.Screenshot = shot
		}
	}
	res.LastDiag = diag
	if e.diags == nil {
		return
	}
	if err := e.diags.Capture(res.Session.ID, pr.Phase, diag); err != nil {
		e.log.Warn("diagnostic capture failed",
			zap.String("session", res.Session.ID),
			zap.String("phase", string(pr.Phase)),
			zap.Error(err))
	}
}

func (e *Engine) fail(res *Result, last entity.PhaseResult, log *zap.Logger) *Result {
	res.FailedAt = last.Phase
	res.Session.Phase = entity.PhaseFailed
	if res.Session.LastErr == nil {
		res.Session.LastErr = fmt.Errorf("phase %s: %s", last.Phase, diagReason(last))
	}
	log.Error("session failed", zap.String("failed_at", string(last.Phase)))
	return res
}

func diagReason(pr entity.PhaseResult) string {
	if pr.Diagnostic != nil && pr.Diagnostic.Reason != "" {
		return pr.Diagnostic.Reason
	}
	return pr.Outcome.String()
}
