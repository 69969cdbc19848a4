package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
)

const (
	setValueJS = `(function(sel, val) {
  const el = document.querySelector(sel);
  if (!el) return false;
  el.focus();
  const desc = Object.getOwnPropertyDescriptor(Object.getPrototypeOf(el), 'value');
  if (desc && desc.set) { desc.set.call(el, val); } else { el.value = val; }
  el.dispatchEvent(new Event('input', { bubbles: true }));
  el.dispatchEvent(new Event('change', { bubbles: true }));
  return true;
})`

	clickJS = `(function(sel) {
  const el = document.querySelector(sel);
  if (!el) return false;
  el.scrollIntoView({ block: 'center' });
  el.click();
  return true;
})`

	renderedJS = `(function(sel) {
  const el = document.querySelector(sel);
  return !!el && el.offsetParent !== null && el.innerText.trim().length > 0;
})`

	innerTextJS = `(function(sel) {
  const el = document.querySelector(sel);
  if (!el) return { found: false, text: '' };
  return { found: true, text: el.innerText.trim() };
})`
)

// Tab drives the page of a chromedp tab context. Every ctx passed to its
// methods must derive from that tab context.
type Tab struct {
	ActionTimeout time.Duration
}

func NewTab(actionTimeout time.Duration) *Tab {
	return &Tab{ActionTimeout: actionTimeout}
}

func (t *Tab) run(ctx context.Context, actions ...chromedp.Action) error {
	if t.ActionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.ActionTimeout)
		defer cancel()
	}
	return chromedp.Run(ctx, actions...)
}

func (t *Tab) Location(ctx context.Context) (string, error) {
	var u string
	if err := t.run(ctx, chromedp.Location(&u)); err != nil {
		return "", err
	}
	return u, nil
}

func (t *Tab) SetValue(ctx context.Context, selector, value string) (bool, error) {
	return t.evalBool(ctx, setValueJS, selector, value)
}

func (t *Tab) Click(ctx context.Context, selector string) (bool, error) {
	return t.evalBool(ctx, clickJS, selector)
}

func (t *Tab) Rendered(ctx context.Context, selector string) (bool, error) {
	return t.evalBool(ctx, renderedJS, selector)
}

func (t *Tab) InnerText(ctx context.Context, selector string) (string, bool, error) {
	expr, err := call(innerTextJS, selector)
	if err != nil {
		return "", false, err
	}
	var res struct {
		Found bool   `json:"found"`
		Text  string `json:"text"`
	}
	if err := t.run(ctx, chromedp.Evaluate(expr, &res)); err != nil {
		return "", false, err
	}
	return res.Text, res.Found, nil
}

func (t *Tab) evalBool(ctx context.Context, fn string, args ...any) (bool, error) {
	expr, err := call(fn, args...)
	if err != nil {
		return false, err
	}
	var ok bool
	if err := t.run(ctx, chromedp.Evaluate(expr, &ok)); err != nil {
		return false, err
	}
	return ok, nil
}

// call renders fn(args...) with JSON-encoded arguments.
func call(fn string, args ...any) (string, error) {
	parts := make([]string, 0, len(args))
	for _, a := range args {
		b, err := json.Marshal(a)
		if err != nil {
			return "", fmt.Errorf("encode js arg: %w", err)
		}
		parts = append(parts, string(b))
	}
	return fn + "(" + strings.Join(parts, ", ") + ")", nil
}
