// Package locator resolves semantic intents ("email field", "submit
// button") to concrete elements in a rendered document. It never relies
// on a single fixed selector: a ranked pipeline of heuristics is tried in
// order and the first strategy that yields candidates wins. The package
// is pure (it only reads the Document it is given), so it works the same
// over a live browser snapshot and over statically parsed HTML.
package locator

import "strings"

// Intent is a semantic label for a UI role. The set is closed; callers
// pick from the constants below.
type Intent string

const (
	IntentEmailField       Intent = "email-field"
	IntentPasswordField    Intent = "password-field"
	IntentConfirmField     Intent = "confirm-field"
	IntentSubmitButton     Intent = "submit-button"
	IntentSignupLink       Intent = "signup-link"
	IntentVerificationLink Intent = "verification-link"
	IntentTokenDisplay     Intent = "token-display"
)

// Element is the read-only view of a document node the strategies score.
type Element interface {
	Tag() string
	Attr(name string) string
	Text() string
	Visible() bool
	Enabled() bool
}

// Document exposes elements in document order. Order matters: it is the
// tie-breaker when two candidates score the same.
type Document interface {
	Elements() []Element
}

// Candidate is a scored match. It is transient: produced here, consumed
// immediately by the form layer, never persisted.
type Candidate struct {
	Element    Element
	Intent     Intent
	Confidence float64
	Strategy   string
}

type strategy struct {
	name  string
	match func(doc Document, intent Intent) []Candidate
}

// The pipeline is ordered strongest-first. Each tier scores within a
// disjoint confidence band so a weaker strategy can never outrank a
// stronger one.
var pipeline = []strategy{
	{name: "attribute", match: matchByAttribute},
	{name: "label", match: matchByLabel},
	{name: "structural", match: matchByStructure},
	{name: "text", match: matchByText},
}

// Locate runs the pipeline and returns the highest-confidence candidate
// from the first strategy that matched anything. Ties go to the earlier
// element in document order. A miss is a normal outcome, not an error;
// callers decide whether it is retryable.
func Locate(doc Document, intent Intent) (Candidate, bool) {
	for _, s := range pipeline {
		candidates := s.match(doc, intent)
		if len(candidates) == 0 {
			continue
		}
		best := candidates[0]
		for _, c := range candidates[1:] {
			if c.Confidence > best.Confidence {
				best = c
			}
		}
		return best, true
	}
	return Candidate{}, false
}

// interactable filters out elements the user could not act on: hidden,
// disabled, or parked behind an aria-hidden overlay.
func interactable(el Element) bool {
	if !el.Visible() || !el.Enabled() {
		return false
	}
	if el.Attr("aria-hidden") == "true" {
		return false
	}
	if el.Tag() == "input" && el.Attr("type") == "hidden" {
		return false
	}
	return true
}

func containsAny(s string, keywords []string) bool {
	s = strings.ToLower(s)
	for _, kw := range keywords {
		if kw != "" && strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

func normalizeText(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
