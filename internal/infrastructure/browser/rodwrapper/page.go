package rodwrapper

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/ysmood/gson"

	"tavily-register/internal/application/port/output"
	"tavily-register/internal/engine/locator"
)

var _ output.PagePort = (*Page)(nil)

// snapshotSelector covers every element kind the locator's strategies
// can score: fields, actions, labels and token display surfaces.
const snapshotSelector = "input, textarea, select, button, a, label, " +
	"[role='button'], [data-testid], [data-test-id], code, pre"

type Page struct {
	page    *rod.Page
	timeout time.Duration
}

func newPage(rodPage *rod.Page, timeout time.Duration) *Page {
	return &Page{page: rodPage, timeout: timeout}
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	pg := p.page.Context(ctx)
	if err := pg.Navigate(url); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	if err := pg.WaitLoad(); err != nil {
		return fmt.Errorf("wait load %s: %w", url, err)
	}
	_ = pg.WaitIdle(5 * time.Second)
	return nil
}

func (p *Page) Reload(ctx context.Context) error {
	pg := p.page.Context(ctx)
	if err := pg.Reload(); err != nil {
		return fmt.Errorf("reload: %w", err)
	}
	if err := pg.WaitLoad(); err != nil {
		return fmt.Errorf("wait load after reload: %w", err)
	}
	_ = pg.WaitIdle(5 * time.Second)
	return nil
}

func (p *Page) URL() string {
	info, err := p.page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

func (p *Page) HTML(ctx context.Context) (string, error) {
	html, err := p.page.Context(ctx).HTML()
	if err != nil {
		return "", fmt.Errorf("page html: %w", err)
	}
	return html, nil
}

func (p *Page) Text(ctx context.Context) (string, error) {
	body, err := p.page.Context(ctx).Timeout(p.timeout).Element("body")
	if err != nil {
		return "", fmt.Errorf("body not found: %w", err)
	}
	text, err := body.Text()
	if err != nil {
		return "", fmt.Errorf("body text: %w", err)
	}
	return text, nil
}

func (p *Page) Screenshot(ctx context.Context) ([]byte, error) {
	img, err := p.page.Context(ctx).Screenshot(false, &proto.PageCaptureScreenshot{
		Format:  proto.PageCaptureScreenshotFormatJpeg,
		Quality: gson.Int(80),
	})
	if err != nil {
		return nil, fmt.Errorf("screenshot: %w", err)
	}
	return img, nil
}

func (p *Page) WaitIdle(ctx context.Context, timeout time.Duration) error {
	return p.page.Context(ctx).WaitIdle(timeout)
}

// Document snapshots the interactive surface of the current page. Each
// element's tag, attributes, text and visibility are read once; the live
// rod handle is retained so the form layer can act on the winner.
func (p *Page) Document(ctx context.Context) (locator.Document, error) {
	els, err := p.page.Context(ctx).Elements(snapshotSelector)
	if err != nil {
		return nil, fmt.Errorf("snapshot elements: %w", err)
	}

	doc := &document{}
	for _, el := range els {
		node, err := snapshotElement(ctx, el)
		if err != nil {
			// Elements can detach between the query and the reads;
			// skip them rather than fail the whole snapshot.
			continue
		}
		doc.elements = append(doc.elements, node)
	}
	return doc, nil
}

func (p *Page) Close() error {
	return p.page.Close()
}

type document struct {
	elements []locator.Element
}

func (d *document) Elements() []locator.Element { return d.elements }

type element struct {
	el      *rod.Element
	tag     string
	attrs   map[string]string
	text    string
	visible bool
}

func snapshotElement(ctx context.Context, el *rod.Element) (*element, error) {
	el = el.Context(ctx)

	res, err := el.Eval(`() => {
		const attrs = {};
		for (const a of this.attributes) attrs[a.name] = a.value;
		return { tag: this.tagName.toLowerCase(), attrs: attrs };
	}`)
	if err != nil {
		return nil, err
	}
	tag := res.Value.Get("tag").Str()
	attrs := map[string]string{}
	for name, val := range res.Value.Get("attrs").Map() {
		attrs[strings.ToLower(name)] = val.Str()
	}

	visible, err := el.Visible()
	if err != nil {
		return nil, err
	}

	text, _ := el.Text()

	return &element{
		el:      el,
		tag:     tag,
		attrs:   attrs,
		text:    strings.TrimSpace(text),
		visible: visible,
	}, nil
}

func (e *element) Tag() string             { return e.tag }
func (e *element) Attr(name string) string { return e.attrs[name] }
func (e *element) Text() string            { return e.text }
func (e *element) Visible() bool           { return e.visible }

func (e *element) Enabled() bool {
	_, disabled := e.attrs["disabled"]
	return !disabled
}

// Input replaces the field's content: select everything, overwrite.
func (e *element) Input(ctx context.Context, value string) error {
	el := e.el.Context(ctx)
	if err := el.SelectAllText(); err == nil {
		_ = el.Input("")
	}
	if err := el.Input(value); err != nil {
		return fmt.Errorf("input: %w", err)
	}
	return nil
}

func (e *element) Value(ctx context.Context) (string, error) {
	prop, err := e.el.Context(ctx).Property("value")
	if err != nil {
		return "", fmt.Errorf("read value: %w", err)
	}
	return prop.String(), nil
}

func (e *element) Click(ctx context.Context) error {
	if err := e.el.Context(ctx).Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("click: %w", err)
	}
	return nil
}
