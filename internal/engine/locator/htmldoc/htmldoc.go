// Package htmldoc adapts statically parsed HTML to the locator's
// Document interface. The mailbox adapter runs the locator pipeline over
// message bodies through it, and the engine's tests use it as a
// browser-free document source.
package htmldoc

import (
	"context"
	"strings"

	"golang.org/x/net/html"

	"tavily-register/internal/engine/locator"
)

var _ locator.Document = (*Document)(nil)
var _ locator.Element = (*Element)(nil)

type Document struct {
	elements []locator.Element
}

type Element struct {
	tag    string
	attrs  map[string]string
	text   string
	value  string
	hidden bool
	clicks int
}

// Parse builds a Document from raw HTML. Elements inherit hiddenness
// from their ancestors, so a field inside an aria-hidden overlay is
// reported as not visible.
func Parse(src string) (*Document, error) {
	root, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return nil, err
	}
	doc := &Document{}
	collect(root, false, doc)
	return doc, nil
}

func collect(n *html.Node, hidden bool, doc *Document) {
	if n.Type == html.ElementNode {
		attrs := make(map[string]string, len(n.Attr))
		for _, a := range n.Attr {
			attrs[strings.ToLower(a.Key)] = a.Val
		}
		hidden = hidden || nodeHidden(attrs)

		switch n.Data {
		case "script", "style", "head", "template":
			return
		case "input", "textarea", "select", "button", "a", "label",
			"code", "pre", "span", "div", "td":
			doc.elements = append(doc.elements, &Element{
				tag:    n.Data,
				attrs:  attrs,
				text:   innerText(n),
				value:  attrs["value"],
				hidden: hidden,
			})
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collect(c, hidden, doc)
	}
}

func nodeHidden(attrs map[string]string) bool {
	if _, ok := attrs["hidden"]; ok {
		return true
	}
	if attrs["aria-hidden"] == "true" {
		return true
	}
	style := strings.ReplaceAll(attrs["style"], " ", "")
	return strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden")
}

func innerText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			b.WriteString(node.Data)
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}

func (d *Document) Elements() []locator.Element { return d.elements }

func (e *Element) Tag() string           { return e.tag }
func (e *Element) Attr(name string) string { return e.attrs[name] }
func (e *Element) Text() string          { return e.text }
func (e *Element) Visible() bool         { return !e.hidden }

func (e *Element) Enabled() bool {
	_, disabled := e.attrs["disabled"]
	return !disabled
}

// The mutating methods below make Element usable as a form control in
// tests; parsed documents are otherwise read-only.

func (e *Element) Input(_ context.Context, value string) error {
	e.value = value
	return nil
}

func (e *Element) Value(_ context.Context) (string, error) {
	return e.value, nil
}

func (e *Element) Click(_ context.Context) error {
	e.clicks++
	return nil
}

// Clicks reports how many times Click was called, for assertions.
func (e *Element) Clicks() int { return e.clicks }
