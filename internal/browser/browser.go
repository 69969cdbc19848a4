// Package browser acquires a Chrome tab over CDP, either by launching a
// local browser or by connecting to a remote one, and exposes it as the
// document the smoke run works on.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/pinchtab/smoketab/internal/config"
)

const (
	TargetTypePage     = "page"
	chromeStartTimeout = 15 * time.Second
)

var ErrNoPageTarget = errors.New("no page target to attach to")

// NewAllocator returns a remote allocator when CdpURL is set and an exec
// allocator launching a local Chrome otherwise.
func NewAllocator(ctx context.Context, cfg *config.RuntimeConfig) (context.Context, context.CancelFunc, error) {
	if cfg.CdpURL != "" {
		if err := ProbeCDP(ctx, cfg.CdpURL); err != nil {
			return nil, nil, err
		}
		slog.Info("connecting to Chrome", "url", cfg.CdpURL)
		allocCtx, cancel := chromedp.NewRemoteAllocator(ctx, cfg.CdpURL)
		return allocCtx, cancel, nil
	}
	if cfg.Attach {
		return nil, nil, fmt.Errorf("attach mode requires CDP_URL")
	}

	if cfg.ProfileDir != "" {
		if err := os.MkdirAll(cfg.ProfileDir, 0755); err != nil {
			return nil, nil, fmt.Errorf("create profile dir: %w", err)
		}
		for _, lockName := range []string{"SingletonLock", "SingletonSocket", "SingletonCookie"} {
			if err := os.Remove(filepath.Join(cfg.ProfileDir, lockName)); err == nil {
				slog.Warn("removed stale lock", "file", lockName)
			}
		}
	}

	slog.Info("launching Chrome", "headless", cfg.Headless, "profile", cfg.ProfileDir, "binary", cfg.ChromeBinary)
	allocCtx, cancel := chromedp.NewExecAllocator(ctx, BuildChromeOpts(cfg)...)
	return allocCtx, cancel, nil
}

func BuildChromeOpts(cfg *config.RuntimeConfig) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("disable-session-crashed-bubble", true),
		chromedp.Flag("hide-crash-restore-bubble", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.WindowSize(1366, 768),
	)

	if cfg.ProfileDir != "" {
		opts = append(opts, chromedp.UserDataDir(cfg.ProfileDir))
	}
	if cfg.ChromeBinary != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ChromeBinary))
	}
	for _, f := range strings.Fields(cfg.ChromeExtraFlags) {
		if k, v, ok := strings.Cut(f, "="); ok {
			opts = append(opts, chromedp.Flag(strings.TrimLeft(k, "-"), v))
		} else {
			opts = append(opts, chromedp.Flag(strings.TrimLeft(f, "-"), true))
		}
	}

	if cfg.Headless {
		opts = append(opts, chromedp.Headless)
	} else {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	return opts
}

func chromedpLogging() []chromedp.ContextOption {
	return []chromedp.ContextOption{
		chromedp.WithLogf(func(format string, args ...any) {
			slog.Debug("chromedp", "msg", fmt.Sprintf(format, args...))
		}),
		chromedp.WithErrorf(func(format string, args ...any) {
			slog.Debug("chromedp error", "msg", fmt.Sprintf(format, args...))
		}),
	}
}

// Start opens a fresh tab and applies the configured emulation.
func Start(allocCtx context.Context, cfg *config.RuntimeConfig) (context.Context, context.CancelFunc, error) {
	tabCtx, tabCancel := chromedp.NewContext(allocCtx, chromedpLogging()...)

	startCtx, startDone := context.WithTimeout(context.Background(), chromeStartTimeout)
	defer startDone()

	errCh := make(chan error, 1)
	go func() {
		errCh <- chromedp.Run(tabCtx)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			tabCancel()
			return nil, nil, fmt.Errorf("start chrome: %w", err)
		}
	case <-startCtx.Done():
		tabCancel()
		return nil, nil, fmt.Errorf("start chrome: timed out after %s", chromeStartTimeout)
	}

	setupTab(tabCtx, cfg)
	if cfg.NoAnimations {
		if err := injectNoAnimations(tabCtx); err != nil {
			slog.Warn("no-animations injection failed", "err", err)
		}
	}
	return tabCtx, tabCancel, nil
}

// Attach binds to an existing page of a remote browser, preferring one whose
// URL starts with preferURL. The tab belongs to the user: the returned
// context is never cancelled, so the tab stays open after the run.
func Attach(allocCtx context.Context, cfg *config.RuntimeConfig, preferURL string) (context.Context, error) {
	// Cancelling either chromedp context closes the user's tab, so both
	// cancel funcs are held but never called.
	browserCtx, closeBrowser := chromedp.NewContext(context.WithoutCancel(allocCtx), chromedpLogging()...)
	_ = closeBrowser

	targets, err := chromedp.Targets(browserCtx)
	if err != nil {
		return nil, fmt.Errorf("list targets: %w", err)
	}
	pick := pickTarget(targets, preferURL)
	if pick == nil {
		return nil, ErrNoPageTarget
	}
	slog.Info("attaching to tab", "id", string(pick.TargetID), "url", pick.URL)

	tabCtx, closeTab := chromedp.NewContext(browserCtx, chromedp.WithTargetID(pick.TargetID))
	_ = closeTab
	if err := chromedp.Run(tabCtx); err != nil {
		return nil, fmt.Errorf("attach %s: %w", pick.TargetID, err)
	}

	setupTab(tabCtx, cfg)
	if cfg.NoAnimations {
		if onExpectedPage(pick, preferURL) {
			if err := DisableAnimationsOnce(tabCtx); err != nil {
				slog.Warn("no-animations injection failed", "err", err)
			}
		} else {
			slog.Debug("no-animations skipped on unexpected page", "url", pick.URL)
		}
	}
	return tabCtx, nil
}

// onExpectedPage reports whether t is already on preferURL. The page of any
// other tab must stay untouched until the location check has run.
func onExpectedPage(t *target.Info, preferURL string) bool {
	return t != nil && preferURL != "" && strings.HasPrefix(t.URL, preferURL)
}

func pickTarget(targets []*target.Info, preferURL string) *target.Info {
	var first *target.Info
	for _, t := range targets {
		if t.Type != TargetTypePage {
			continue
		}
		if onExpectedPage(t, preferURL) {
			return t
		}
		if first == nil {
			first = t
		}
	}
	return first
}

// setupTab applies UA and timezone overrides. Failures only degrade
// fidelity, so they are logged and the run continues.
func setupTab(ctx context.Context, cfg *config.RuntimeConfig) {
	if override := userAgentOverride(cfg.UserAgent, cfg.ChromeVersion); override != nil {
		if err := chromedp.Run(ctx, override); err != nil {
			slog.Warn("ua override failed on tab setup", "err", err)
		}
	}
	if cfg.Timezone != "" {
		if err := chromedp.Run(ctx, emulation.SetTimezoneOverride(cfg.Timezone)); err != nil {
			slog.Warn("timezone override failed", "tz", cfg.Timezone, "err", err)
		} else {
			slog.Info("timezone override", "tz", cfg.Timezone)
		}
	}
}

// Open yields the tab the run works on. In attach mode the user's page is
// used as found; otherwise a new tab is navigated to targetURL. release is
// always safe to call.
func Open(allocCtx context.Context, cfg *config.RuntimeConfig, targetURL string) (tabCtx context.Context, release func(), err error) {
	if cfg.Attach {
		tabCtx, err = Attach(allocCtx, cfg, targetURL)
		if err != nil {
			return nil, nil, err
		}
		return tabCtx, func() {}, nil
	}

	tabCtx, cancel, err := Start(allocCtx, cfg)
	if err != nil {
		return nil, nil, err
	}

	navCtx, navCancel := context.WithTimeout(tabCtx, cfg.NavigateTimeout)
	defer navCancel()
	slog.Info("navigating", "url", targetURL)
	if err := NavigatePage(navCtx, targetURL); err != nil {
		cancel()
		return nil, nil, fmt.Errorf("navigate: %w", err)
	}
	return tabCtx, cancel, nil
}
