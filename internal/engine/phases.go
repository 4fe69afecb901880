package engine

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"tavily-register/internal/application/port/output"
	"tavily-register/internal/domain/entity"
	"tavily-register/internal/engine/form"
	"tavily-register/internal/engine/locator"
	"tavily-register/internal/engine/wait"
)

func retryResult(reason string) entity.PhaseResult {
	return entity.PhaseResult{
		Outcome:    entity.OutcomeRetry,
		Diagnostic: &entity.Diagnostic{Reason: reason},
	}
}

func fatalResult(reason string) entity.PhaseResult {
	return entity.PhaseResult{
		Outcome:    entity.OutcomeFatal,
		Diagnostic: &entity.Diagnostic{Reason: reason},
	}
}

// register drives the signup form: land on the home page, reach the
// signup form (via the signup link or the direct URL as fallback), fill
// the address, continue, fill the password, submit. Success is the page
// moving past signup, judged by URL pattern.
func (e *Engine) register(ctx context.Context, page output.PagePort, ia form.Interactor, identity entity.Identity) entity.PhaseResult {
	if err := page.Navigate(ctx, e.cfg.HomeURL); err != nil {
		return retryResult("navigate home: " + err.Error())
	}

	if err := ia.Activate(ctx, locator.IntentSignupLink); err != nil {
		// The home page sometimes lands straight on the auth widget;
		// the dedicated signup URL is the fallback, same as before.
		if err := page.Navigate(ctx, e.cfg.SignupURL); err != nil {
			return retryResult("navigate signup: " + err.Error())
		}
	}

	if err := ia.Fill(ctx, locator.IntentEmailField, identity.Address); err != nil {
		return retryResult("fill email: " + err.Error())
	}
	if err := ia.Activate(ctx, locator.IntentSubmitButton); err != nil {
		return retryResult("submit email: " + err.Error())
	}

	if err := ia.Fill(ctx, locator.IntentPasswordField, identity.Secret); err != nil {
		return retryResult("fill password: " + err.Error())
	}
	if err := ia.Activate(ctx, locator.IntentSubmitButton); err != nil {
		return retryResult("submit password: " + err.Error())
	}

	ok := wait.Until(ctx, wait.Options{Timeout: e.waitBudget()}, wait.Any(
		wait.URLMatches(page.URL, e.postSignupRe),
		wait.TextPresent(page.Text, "verify your email"),
	))
	if !ok {
		return retryResult("no post-signup confirmation")
	}
	return entity.PhaseResult{Outcome: entity.OutcomeSuccess}
}

// awaitVerification blocks on the external mailbox until it yields a
// verification link or the deadline passes. This phase is never retried
// in place; a new session with a fresh identity is the recovery path.
func (e *Engine) awaitVerification(ctx context.Context, sess *entity.Session) entity.PhaseResult {
	authed, err := e.mailbox.Authenticate(ctx)
	if err != nil {
		sess.LastErr = err
		return fatalResult("mailbox authentication: " + err.Error())
	}
	if !authed {
		sess.LastErr = output.ErrMailSessionExpired
		return fatalResult(output.ErrMailSessionExpired.Error())
	}

	deadline := time.Now().Add(e.cfg.MailDeadline)
	link, err := e.mailbox.FindVerificationLink(ctx, sess.Identity.Address, deadline)
	if err != nil {
		sess.LastErr = err
		if errors.Is(err, output.ErrNoVerificationMail) {
			return fatalResult(err.Error())
		}
		return fatalResult("mailbox poll: " + err.Error())
	}
	return entity.PhaseResult{Outcome: entity.OutcomeSuccess, Value: link}
}

// login follows the verification link. When the link lands directly on a
// verified dashboard the phase is done; when it lands on a login prompt
// the identity's credentials are submitted first.
func (e *Engine) login(ctx context.Context, page output.PagePort, ia form.Interactor, identity entity.Identity, link string) entity.PhaseResult {
	if err := page.Navigate(ctx, link); err != nil {
		return retryResult("navigate verification link: " + err.Error())
	}

	// The link lands either on a verified dashboard or on a login
	// prompt; wait for whichever shows first instead of burning the
	// whole budget on one of them.
	landed := wait.Until(ctx, wait.Options{Timeout: e.waitBudget()}, wait.Any(
		wait.URLMatches(page.URL, e.verifiedRe),
		wait.ElementLocated(page.Document, locator.IntentPasswordField),
	))
	if !landed {
		return retryResult("neither verified state nor login prompt")
	}
	if e.verifiedRe.MatchString(page.URL()) {
		return entity.PhaseResult{Outcome: entity.OutcomeSuccess}
	}

	// Email may already be prefilled on the prompt; a failed fill there
	// is not a failed login.
	if err := ia.Fill(ctx, locator.IntentEmailField, identity.Address); err != nil {
		e.log.Debug("email fill skipped on login prompt", zap.Error(err))
	}
	if err := ia.Fill(ctx, locator.IntentPasswordField, identity.Secret); err != nil {
		return retryResult("fill login password: " + err.Error())
	}
	if err := ia.Activate(ctx, locator.IntentSubmitButton); err != nil {
		return retryResult("submit login: " + err.Error())
	}

	if !e.verified(ctx, page) {
		return retryResult("login did not reach verified state")
	}
	return entity.PhaseResult{Outcome: entity.OutcomeSuccess}
}

// extractToken reads the generated credential off the dashboard and
// validates its shape. Malformed or missing tokens are retryable: the
// phase re-navigates to the dashboard on the next attempt.
func (e *Engine) extractToken(ctx context.Context, page output.PagePort) entity.PhaseResult {
	if !e.verifiedRe.MatchString(page.URL()) {
		if err := page.Navigate(ctx, e.cfg.DashboardURL); err != nil {
			return retryResult("navigate dashboard: " + err.Error())
		}
	}

	located := wait.Until(ctx, wait.Options{Timeout: e.waitBudget()},
		wait.ElementLocated(page.Document, locator.IntentTokenDisplay))
	if !located {
		return retryResult("token display not located")
	}

	doc, err := page.Document(ctx)
	if err != nil {
		return retryResult("document snapshot: " + err.Error())
	}
	cand, ok := locator.Locate(doc, locator.IntentTokenDisplay)
	if !ok {
		return retryResult("token display vanished")
	}

	token := strings.TrimSpace(cand.Element.Text())
	if token == "" {
		token = strings.TrimSpace(cand.Element.Attr("value"))
	}
	if token == "" || !e.tokenRe.MatchString(token) {
		return retryResult("extracted token is malformed")
	}
	return entity.PhaseResult{Outcome: entity.OutcomeSuccess, Value: token}
}

// verified blocks until the page shows a logged-in / verified state or
// the wait budget passes.
func (e *Engine) verified(ctx context.Context, page output.PagePort) bool {
	return wait.Until(ctx, wait.Options{Timeout: e.waitBudget()},
		wait.URLMatches(page.URL, e.verifiedRe))
}

// waitBudget is the success-criterion wait used inside phases, kept
// well under the phase timeout so a retry still fits in the budget.
func (e *Engine) waitBudget() time.Duration {
	if e.cfg.PhaseTimeout > 0 {
		return e.cfg.PhaseTimeout / 4
	}
	return 30 * time.Second
}
