package locator

import (
	"regexp"
	"strings"
)

// profile describes what each intent looks like to the four strategies.
// Keyword lists come from the markup the target sites actually serve;
// they are deliberately generic enough to survive selector drift.
type profile struct {
	// attribute strategy
	inputTypes   []string // exact input type matches, strongest signal
	attrKeywords []string // substring match on name/id/autocomplete/placeholder/href/data-testid
	fieldLike    bool     // restrict to input/textarea/select
	actionLike   bool     // restrict to button/a/[role=button]/input[type=submit]

	// label strategy
	labelKeywords []string

	// structural strategy
	structural func(doc Document) []Element

	// text strategy
	textPhrases []string
}

var profiles = map[Intent]profile{
	IntentEmailField: {
		fieldLike:     true,
		inputTypes:    []string{"email"},
		attrKeywords:  []string{"email", "e-mail", "username"},
		labelKeywords: []string{"email"},
		structural:    firstFieldOfType("text", "email"),
	},
	IntentPasswordField: {
		fieldLike:     true,
		inputTypes:    []string{"password"},
		attrKeywords:  []string{"password", "passwd"},
		labelKeywords: []string{"password"},
		structural:    nthFieldOfType(0, "password"),
	},
	IntentConfirmField: {
		fieldLike:     true,
		attrKeywords:  []string{"confirm", "repeat", "verification"},
		labelKeywords: []string{"confirm password", "repeat password", "confirm"},
		structural:    nthFieldOfType(1, "password"),
	},
	IntentSubmitButton: {
		actionLike:   true,
		attrKeywords: []string{"submit", "signup", "sign-up", "continue", "login", "action"},
		textPhrases:  []string{"sign up", "continue", "submit", "create account", "log in", "login", "next"},
		structural:   firstSubmitControl,
	},
	IntentSignupLink: {
		actionLike:   true,
		attrKeywords: []string{"signup", "sign-up", "register"},
		textPhrases:  []string{"sign up", "create account", "register", "get started"},
	},
	IntentVerificationLink: {
		actionLike:   true,
		attrKeywords: []string{"verify", "verification", "confirm"},
		textPhrases:  []string{"verify", "verify email", "confirm your email", "confirm email"},
	},
	IntentTokenDisplay: {
		attrKeywords:  []string{"api-key", "apikey", "api_key", "token"},
		labelKeywords: []string{"api key", "token"},
		structural:    tokenShapedText,
	},
}

// Attribute strategy: exact type matches and keyword hits on the
// attributes authors change least often. Scores in [0.85, 1.0].
func matchByAttribute(doc Document, intent Intent) []Candidate {
	p := profiles[intent]
	var out []Candidate
	for _, el := range doc.Elements() {
		if !interactable(el) || !shapeFits(el, p) {
			continue
		}
		score := 0.0
		if len(p.inputTypes) > 0 {
			for _, t := range p.inputTypes {
				if el.Attr("type") == t {
					score = 1.0
				}
			}
		}
		if score == 0 && len(p.attrKeywords) > 0 {
			switch {
			case containsAny(el.Attr("name"), p.attrKeywords),
				containsAny(el.Attr("id"), p.attrKeywords):
				score = 0.95
			case containsAny(el.Attr("autocomplete"), p.attrKeywords),
				containsAny(el.Attr("href"), p.attrKeywords),
				containsAny(el.Attr("data-testid"), p.attrKeywords),
				containsAny(el.Attr("data-test-id"), p.attrKeywords):
				score = 0.9
			case containsAny(el.Attr("placeholder"), p.attrKeywords),
				containsAny(el.Attr("aria-label"), p.attrKeywords):
				score = 0.85
			}
		}
		if score > 0 {
			out = append(out, Candidate{Element: el, Intent: intent, Confidence: score, Strategy: "attribute"})
		}
	}
	return out
}

// Label strategy: a <label for=...> whose text names the intent points at
// the element carrying that id. Fixed score 0.8.
func matchByLabel(doc Document, intent Intent) []Candidate {
	p := profiles[intent]
	if len(p.labelKeywords) == 0 {
		return nil
	}
	elements := doc.Elements()

	byID := make(map[string]Element, len(elements))
	for _, el := range elements {
		if id := el.Attr("id"); id != "" {
			byID[id] = el
		}
	}

	var out []Candidate
	for _, el := range elements {
		if el.Tag() != "label" {
			continue
		}
		if !containsAny(normalizeText(el.Text()), p.labelKeywords) {
			continue
		}
		target, ok := byID[el.Attr("for")]
		if !ok || !interactable(target) || !shapeFits(target, p) {
			continue
		}
		out = append(out, Candidate{Element: target, Intent: intent, Confidence: 0.8, Strategy: "label"})
	}
	return out
}

// Structural strategy: positional heuristics like "the first password
// input" or "the first submit control". Fixed score 0.6.
func matchByStructure(doc Document, intent Intent) []Candidate {
	p := profiles[intent]
	if p.structural == nil {
		return nil
	}
	var out []Candidate
	for _, el := range p.structural(doc) {
		if !interactable(el) {
			continue
		}
		out = append(out, Candidate{Element: el, Intent: intent, Confidence: 0.6, Strategy: "structural"})
	}
	return out
}

// Text strategy: visible text on links and buttons. Weakest tier:
// exact phrase 0.5, substring 0.4.
func matchByText(doc Document, intent Intent) []Candidate {
	p := profiles[intent]
	if len(p.textPhrases) == 0 {
		return nil
	}
	var out []Candidate
	for _, el := range doc.Elements() {
		if !interactable(el) || !isAction(el) {
			continue
		}
		text := normalizeText(el.Text())
		if text == "" {
			continue
		}
		score := 0.0
		for _, phrase := range p.textPhrases {
			if text == phrase {
				score = 0.5
				break
			}
			if strings.Contains(text, phrase) {
				score = 0.4
			}
		}
		if score > 0 {
			out = append(out, Candidate{Element: el, Intent: intent, Confidence: score, Strategy: "text"})
		}
	}
	return out
}

func shapeFits(el Element, p profile) bool {
	if p.fieldLike && !isField(el) {
		return false
	}
	if p.actionLike && !isAction(el) {
		return false
	}
	return true
}

func isField(el Element) bool {
	switch el.Tag() {
	case "input", "textarea", "select":
		return true
	}
	return false
}

func isAction(el Element) bool {
	switch el.Tag() {
	case "button", "a":
		return true
	case "input":
		t := el.Attr("type")
		return t == "submit" || t == "button"
	}
	return el.Attr("role") == "button"
}

func firstFieldOfType(types ...string) func(Document) []Element {
	return func(doc Document) []Element {
		for _, el := range doc.Elements() {
			if !isField(el) || !interactable(el) {
				continue
			}
			t := el.Attr("type")
			if t == "" {
				t = "text"
			}
			for _, want := range types {
				if t == want {
					return []Element{el}
				}
			}
		}
		return nil
	}
}

func nthFieldOfType(n int, typ string) func(Document) []Element {
	return func(doc Document) []Element {
		seen := 0
		for _, el := range doc.Elements() {
			if !isField(el) || !interactable(el) || el.Attr("type") != typ {
				continue
			}
			if seen == n {
				return []Element{el}
			}
			seen++
		}
		return nil
	}
}

func firstSubmitControl(doc Document) []Element {
	for _, el := range doc.Elements() {
		if !interactable(el) {
			continue
		}
		tag := el.Tag()
		if (tag == "button" || tag == "input") && el.Attr("type") == "submit" {
			return []Element{el}
		}
	}
	// Buttons default to type=submit inside forms; fall back to the
	// first plain button when nothing is explicitly marked.
	for _, el := range doc.Elements() {
		if el.Tag() == "button" && interactable(el) {
			return []Element{el}
		}
	}
	return nil
}

// tokenShapedText finds display elements whose text already looks like a
// generated credential, e.g. tvly-dev-a1b2c3... or any long dashed
// base62 blob inside code/pre/span.
var tokenTextRe = regexp.MustCompile(`^[A-Za-z0-9]{2,12}-[A-Za-z0-9_-]{12,}$`)

func tokenShapedText(doc Document) []Element {
	var out []Element
	for _, el := range doc.Elements() {
		switch el.Tag() {
		case "code", "pre", "span", "div", "td", "input":
		default:
			continue
		}
		text := strings.TrimSpace(el.Text())
		if text == "" && el.Tag() == "input" {
			text = strings.TrimSpace(el.Attr("value"))
		}
		if tokenTextRe.MatchString(text) {
			out = append(out, el)
		}
	}
	return out
}
