package browser

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/gobwas/ws"
)

const probeTimeout = 5 * time.Second

// isBrowserWebSocket reports whether u is a full ws(s)://…/devtools/browser/…
// endpoint. Bare host:port URLs are resolved by chromedp via /json/version.
func isBrowserWebSocket(u string) bool {
	p, err := url.Parse(u)
	if err != nil {
		return false
	}
	if p.Scheme != "ws" && p.Scheme != "wss" {
		return false
	}
	return strings.HasPrefix(p.Path, "/devtools/browser/") && len(p.Path) > len("/devtools/browser/")
}

// ProbeCDP performs a bare WebSocket handshake against a remote DevTools
// endpoint so an unreachable browser fails fast with a clear error instead of
// surfacing later as a chromedp allocation timeout.
func ProbeCDP(ctx context.Context, cdpURL string) error {
	if !isBrowserWebSocket(cdpURL) {
		slog.Debug("cdp probe skipped", "url", cdpURL)
		return nil
	}

	pctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	conn, _, _, err := ws.Dial(pctx, cdpURL)
	if err != nil {
		return fmt.Errorf("cdp endpoint %s unreachable: %w", cdpURL, err)
	}
	_ = conn.Close()
	slog.Debug("cdp probe ok", "url", cdpURL)
	return nil
}
