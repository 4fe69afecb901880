package form_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tavily-register/internal/engine/form"
	"tavily-register/internal/engine/locator"
)

// fakeControl is a scriptable form control. onInput may corrupt the
// stored value to simulate a framework eating keystrokes; onClick runs
// page-level side effects.
type fakeControl struct {
	mu      sync.Mutex
	tag     string
	attrs   map[string]string
	text    string
	value   string
	enabled bool
	inputs  int
	clicks  int
	onInput func(n int, value string) string
	onClick func(n int)
}

func newField(name, typ string) *fakeControl {
	return &fakeControl{
		tag:     "input",
		attrs:   map[string]string{"name": name, "type": typ},
		enabled: true,
	}
}

func newButton(text string) *fakeControl {
	return &fakeControl{
		tag:     "button",
		attrs:   map[string]string{"type": "submit"},
		text:    text,
		enabled: true,
	}
}

func (c *fakeControl) Tag() string             { return c.tag }
func (c *fakeControl) Attr(name string) string { return c.attrs[name] }
func (c *fakeControl) Text() string            { return c.text }
func (c *fakeControl) Visible() bool           { return true }

func (c *fakeControl) Enabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled
}

func (c *fakeControl) Input(_ context.Context, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inputs++
	if c.onInput != nil {
		value = c.onInput(c.inputs, value)
	}
	c.value = value
	return nil
}

func (c *fakeControl) Value(context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value, nil
}

func (c *fakeControl) Click(context.Context) error {
	c.mu.Lock()
	c.clicks++
	n := c.clicks
	hook := c.onClick
	c.mu.Unlock()
	if hook != nil {
		hook(n)
	}
	return nil
}

type fakeDoc struct {
	elements []locator.Element
}

func (d *fakeDoc) Elements() []locator.Element { return d.elements }

// fakePage serves a mutable element set and URL.
type fakePage struct {
	mu       sync.Mutex
	url      string
	elements []locator.Element
}

func (p *fakePage) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

func (p *fakePage) setURL(u string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.url = u
}

func (p *fakePage) HTML(context.Context) (string, error) { return "", nil }

func (p *fakePage) Document(context.Context) (locator.Document, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return &fakeDoc{elements: append([]locator.Element(nil), p.elements...)}, nil
}

func (p *fakePage) WaitIdle(context.Context, time.Duration) error { return nil }

func fastConfig() form.Config {
	return form.Config{
		FillAttempts:  3,
		LocateTimeout: 100 * time.Millisecond,
		PollMin:       time.Millisecond,
		PollMax:       5 * time.Millisecond,
		GracePeriod:   30 * time.Millisecond,
	}
}

func TestRobustFill(t *testing.T) {
	field := newField("email", "email")
	page := &fakePage{elements: []locator.Element{field}}
	r := form.NewRobust(page, fastConfig(), nil)

	require.NoError(t, r.Fill(context.Background(), locator.IntentEmailField, "a@b.com"))
	got, _ := field.Value(context.Background())
	assert.Equal(t, "a@b.com", got)
	assert.Equal(t, 1, field.inputs)
}

func TestRobustFillRoundTrip(t *testing.T) {
	// Read-after-write returns exactly the written value, including the
	// empty string and long inputs.
	values := []string{"", "a", "a@b.com", strings.Repeat("x", 4096)}
	for _, want := range values {
		field := newField("email", "email")
		page := &fakePage{elements: []locator.Element{field}}
		r := form.NewRobust(page, fastConfig(), nil)

		require.NoError(t, r.Fill(context.Background(), locator.IntentEmailField, want))
		got, err := field.Value(context.Background())
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestRobustFillRetriesOnMismatch(t *testing.T) {
	field := newField("email", "email")
	// First write gets truncated, second lands intact.
	field.onInput = func(n int, value string) string {
		if n == 1 {
			return value[:3]
		}
		return value
	}
	page := &fakePage{elements: []locator.Element{field}}
	r := form.NewRobust(page, fastConfig(), nil)

	require.NoError(t, r.Fill(context.Background(), locator.IntentEmailField, "a@b.com"))
	assert.Equal(t, 2, field.inputs)
}

func TestRobustFillExhaustsAttempts(t *testing.T) {
	field := newField("email", "email")
	field.onInput = func(_ int, value string) string { return "garbage" }
	page := &fakePage{elements: []locator.Element{field}}
	r := form.NewRobust(page, fastConfig(), nil)

	err := r.Fill(context.Background(), locator.IntentEmailField, "a@b.com")
	require.Error(t, err)
	assert.ErrorIs(t, err, form.ErrFillVerification)
	assert.Equal(t, 3, field.inputs)
}

func TestRobustFillNotLocated(t *testing.T) {
	page := &fakePage{}
	r := form.NewRobust(page, fastConfig(), nil)

	err := r.Fill(context.Background(), locator.IntentEmailField, "a@b.com")
	require.Error(t, err)
	assert.ErrorIs(t, err, form.ErrNotLocated)
}

// bareElement satisfies the locator but offers no input, value or click
// methods, like a decorative node matched by a loose strategy.
type bareElement struct {
	tag   string
	attrs map[string]string
}

func (e *bareElement) Tag() string             { return e.tag }
func (e *bareElement) Attr(name string) string { return e.attrs[name] }
func (e *bareElement) Text() string            { return "" }
func (e *bareElement) Visible() bool           { return true }
func (e *bareElement) Enabled() bool           { return true }

func TestRobustFillNotInteractable(t *testing.T) {
	el := &bareElement{
		tag:   "input",
		attrs: map[string]string{"name": "email", "type": "email"},
	}
	page := &fakePage{elements: []locator.Element{el}}
	r := form.NewRobust(page, fastConfig(), nil)

	err := r.Fill(context.Background(), locator.IntentEmailField, "a@b.com")
	require.Error(t, err)
	assert.ErrorIs(t, err, form.ErrNotInteractable)
	assert.NotErrorIs(t, err, form.ErrNotLocated)
}

func TestRobustFillCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	page := &fakePage{elements: []locator.Element{newField("email", "email")}}
	r := form.NewRobust(page, fastConfig(), nil)

	err := r.Fill(ctx, locator.IntentEmailField, "a@b.com")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRobustActivateByURLChange(t *testing.T) {
	page := &fakePage{url: "https://site/form"}
	button := newButton("Sign up")
	button.onClick = func(int) { page.setURL("https://site/next") }
	page.elements = []locator.Element{button}
	r := form.NewRobust(page, fastConfig(), nil)

	require.NoError(t, r.Activate(context.Background(), locator.IntentSubmitButton))
	assert.Equal(t, 1, button.clicks)
}

func TestRobustActivateByControlDisabled(t *testing.T) {
	page := &fakePage{url: "https://site/form"}
	button := newButton("Sign up")
	button.onClick = func(int) {
		button.mu.Lock()
		button.enabled = false
		button.mu.Unlock()
	}
	page.elements = []locator.Element{button}
	r := form.NewRobust(page, fastConfig(), nil)

	require.NoError(t, r.Activate(context.Background(), locator.IntentSubmitButton))
}

func TestRobustActivateRetriesDudClick(t *testing.T) {
	page := &fakePage{url: "https://site/form"}
	button := newButton("Sign up")
	// First click is swallowed; second one navigates.
	button.onClick = func(n int) {
		if n == 2 {
			page.setURL("https://site/next")
		}
	}
	page.elements = []locator.Element{button}
	r := form.NewRobust(page, fastConfig(), nil)

	require.NoError(t, r.Activate(context.Background(), locator.IntentSubmitButton))
	assert.Equal(t, 2, button.clicks)
}

func TestRobustActivateNoEffect(t *testing.T) {
	page := &fakePage{url: "https://site/form"}
	button := newButton("Sign up")
	page.elements = []locator.Element{button}
	r := form.NewRobust(page, fastConfig(), nil)

	err := r.Activate(context.Background(), locator.IntentSubmitButton)
	require.Error(t, err)
	assert.ErrorIs(t, err, form.ErrNoEffect)
	assert.Equal(t, 2, button.clicks)
}

func TestSimpleInteractor(t *testing.T) {
	field := newField("email", "email")
	button := newButton("Sign up")
	page := &fakePage{elements: []locator.Element{field, button}}
	s := form.NewSimple(page, time.Millisecond)

	ctx := context.Background()
	require.NoError(t, s.Fill(ctx, locator.IntentEmailField, "a@b.com"))
	got, _ := field.Value(ctx)
	assert.Equal(t, "a@b.com", got)

	require.NoError(t, s.Activate(ctx, locator.IntentSubmitButton))
	assert.Equal(t, 1, button.clicks)

	err := s.Fill(ctx, locator.IntentTokenDisplay, "x")
	assert.ErrorIs(t, err, form.ErrNotLocated)
}
