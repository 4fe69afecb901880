package mailbox

import (
	"regexp"

	"tavily-register/internal/engine/locator"
	"tavily-register/internal/engine/locator/htmldoc"
)

// ExtractVerificationLink pulls the confirmation URL out of a message
// body. Anchor elements scored by the locator win; a raw pattern scan
// over the HTML is the fallback for clients that flatten links to text.
func ExtractVerificationLink(html string, linkRe *regexp.Regexp) (string, bool) {
	doc, err := htmldoc.Parse(html)
	if err == nil {
		if cand, ok := locator.Locate(doc, locator.IntentVerificationLink); ok {
			if href := cand.Element.Attr("href"); href != "" {
				return href, true
			}
		}
	}

	if linkRe != nil {
		if m := linkRe.FindString(html); m != "" {
			return m, true
		}
	}
	return "", false
}
