//go:build integration

package browser_test

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/pinchtab/smoketab/internal/apicheck"
	"github.com/pinchtab/smoketab/internal/browser"
	"github.com/pinchtab/smoketab/internal/config"
	"github.com/pinchtab/smoketab/internal/fixture"
	"github.com/pinchtab/smoketab/internal/poll"
	"github.com/pinchtab/smoketab/internal/smoke"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.RuntimeConfig {
	return &config.RuntimeConfig{
		Headless:         true,
		ChromeBinary:     os.Getenv("CHROME_BINARY"),
		ChromeExtraFlags: "--no-sandbox",
		NoAnimations:     true,
		Timezone:         "Europe/Berlin",
		ChromeVersion:    "144.0.7559.133",
		ActionTimeout:    10 * time.Second,
		NavigateTimeout:  20 * time.Second,
	}
}

// openFixture starts the fixture and a headless tab already on the text-box page.
func openFixture(t *testing.T) (context.Context, smoke.Scenario) {
	t.Helper()

	fx, err := fixture.Start()
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = fx.Close(ctx)
	})
	sc := smoke.FixtureScenario(fx.URL())

	cfg := testConfig()
	allocCtx, allocCancel, err := browser.NewAllocator(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(allocCancel)

	tabCtx, release, err := browser.Open(allocCtx, cfg, sc.ExpectedURL)
	require.NoError(t, err)
	t.Cleanup(release)

	ctx, cancel := context.WithTimeout(tabCtx, 60*time.Second)
	t.Cleanup(cancel)
	return ctx, sc
}

func TestSelfTestPasses(t *testing.T) {
	ctx, sc := openFixture(t)

	var out bytes.Buffer
	r := &smoke.Runner{
		Doc:   browser.NewTab(10 * time.Second),
		API:   apicheck.NewClient(nil),
		Clock: poll.RealClock{},
		Out:   &out,
	}
	require.NoError(t, r.Run(ctx, sc))
	assert.Equal(t, smoke.SuccessMarker+"\n", out.String())
}

func TestTabReportsMissingElements(t *testing.T) {
	ctx, sc := openFixture(t)
	tab := browser.NewTab(10 * time.Second)

	loc, err := tab.Location(ctx)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(loc, sc.ExpectedURL))

	found, err := tab.SetValue(ctx, "#doesNotExist", "x")
	require.NoError(t, err)
	assert.False(t, found)

	found, err = tab.Click(ctx, "#doesNotExist")
	require.NoError(t, err)
	assert.False(t, found)

	_, found, err = tab.InnerText(ctx, "#doesNotExist")
	require.NoError(t, err)
	assert.False(t, found)

	rendered, err := tab.Rendered(ctx, "#output")
	require.NoError(t, err)
	assert.False(t, rendered, "output is hidden until submit")
}

func TestOutputEchoesTypedValue(t *testing.T) {
	ctx, sc := openFixture(t)
	tab := browser.NewTab(10 * time.Second)

	found, err := tab.SetValue(ctx, sc.Selectors.NameInput, "Ada Lovelace")
	require.NoError(t, err)
	require.True(t, found)
	found, err = tab.Click(ctx, sc.Selectors.Submit)
	require.NoError(t, err)
	require.True(t, found)

	require.NoError(t, poll.Until(ctx, func(ctx context.Context) (bool, error) {
		return tab.Rendered(ctx, sc.Selectors.Output)
	}, poll.WithTimeout(5*time.Second)))

	text, found, err := tab.InnerText(ctx, sc.Selectors.NameResult)
	require.NoError(t, err)
	require.True(t, found)
	assert.Contains(t, text, "Ada Lovelace")
}

const countEventsJS = `(function(sels) {
  window.__counts = {};
  sels.forEach(function(sel) {
    const c = { input: 0, change: 0 };
    window.__counts[sel] = c;
    const el = document.querySelector(sel);
    el.addEventListener('input', function() { c.input++; });
    el.addEventListener('change', function() { c.change++; });
  });
  return true;
})`

type eventCount struct {
	Input  int `json:"input"`
	Change int `json:"change"`
}

func TestSetValueFiresEachEventOnce(t *testing.T) {
	ctx, sc := openFixture(t)
	tab := browser.NewTab(10 * time.Second)

	fields := map[string]string{
		sc.Selectors.NameInput:             sc.Form.Name,
		sc.Selectors.EmailInput:            sc.Form.Email,
		sc.Selectors.CurrentAddressInput:   sc.Form.CurrentAddress,
		sc.Selectors.PermanentAddressInput: sc.Form.PermanentAddress,
	}
	sels := make([]string, 0, len(fields))
	for sel := range fields {
		sels = append(sels, sel)
	}
	arg, err := json.Marshal(sels)
	require.NoError(t, err)

	var installed bool
	require.NoError(t, chromedp.Run(ctx, chromedp.Evaluate(countEventsJS+"("+string(arg)+")", &installed)))
	require.True(t, installed)

	for sel, val := range fields {
		found, err := tab.SetValue(ctx, sel, val)
		require.NoError(t, err, sel)
		require.True(t, found, sel)
	}

	var counts map[string]eventCount
	require.NoError(t, chromedp.Run(ctx, chromedp.Evaluate(`window.__counts`, &counts)))
	for sel, val := range fields {
		assert.Equal(t, eventCount{Input: 1, Change: 1}, counts[sel], sel)

		var got string
		require.NoError(t, chromedp.Run(ctx, chromedp.Value(sel, &got, chromedp.ByQuery)))
		assert.Equal(t, val, got, sel)
	}
}
