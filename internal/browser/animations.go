package browser

import (
	"context"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// DisableAnimationsCSS force-disables CSS animations and transitions so the
// output section is laid out as soon as it is shown.
const DisableAnimationsCSS = `
(function() {
  const style = document.createElement('style');
  style.setAttribute('data-smoketab', 'no-animations');
  style.textContent = '*, *::before, *::after { animation: none !important; animation-duration: 0s !important; transition: none !important; transition-duration: 0s !important; scroll-behavior: auto !important; }';
  (document.head || document.documentElement).appendChild(style);
})();
`

// injectNoAnimations registers DisableAnimationsCSS for every document the
// tab loads and asks for reduced motion.
func injectNoAnimations(ctx context.Context) error {
	return chromedp.Run(ctx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(DisableAnimationsCSS).Do(ctx)
			return err
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			return emulation.SetEmulatedMedia().
				WithFeatures([]*emulation.MediaFeature{
					{Name: "prefers-reduced-motion", Value: "reduce"},
				}).Do(ctx)
		}),
	)
}

// DisableAnimationsOnce applies the CSS to the current document only. Used for
// attached tabs whose page is already loaded.
func DisableAnimationsOnce(ctx context.Context) error {
	return chromedp.Run(ctx, chromedp.Evaluate(DisableAnimationsCSS, nil))
}
