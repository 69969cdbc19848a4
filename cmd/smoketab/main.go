package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pinchtab/smoketab/internal/apicheck"
	"github.com/pinchtab/smoketab/internal/browser"
	"github.com/pinchtab/smoketab/internal/config"
	"github.com/pinchtab/smoketab/internal/fixture"
	"github.com/pinchtab/smoketab/internal/poll"
	"github.com/pinchtab/smoketab/internal/smoke"
)

var version = "dev"

const usage = `usage: smoketab [selftest | config init [--force] | config show | --version]`

type command int

const (
	cmdRun command = iota
	cmdSelfTest
	cmdConfig
	cmdVersion
	cmdUnknown
)

func parseCommand(args []string) (command, []string) {
	if len(args) == 0 {
		return cmdRun, nil
	}
	switch args[0] {
	case "--version", "-v":
		return cmdVersion, nil
	case "selftest":
		return cmdSelfTest, args[1:]
	case "config":
		return cmdConfig, args[1:]
	}
	return cmdUnknown, args
}

func newLogger(level, format string, w io.Writer) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func main() {
	cfg := config.Load()
	slog.SetDefault(newLogger(cfg.LogLevel, cfg.LogFormat, os.Stderr))

	cmd, rest := parseCommand(os.Args[1:])
	switch cmd {
	case cmdVersion:
		fmt.Printf("smoketab %s\n", version)
		os.Exit(0)
	case cmdConfig:
		if err := config.HandleConfigCommand(cfg, rest, os.Stdout); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		os.Exit(0)
	case cmdUnknown:
		fmt.Fprintf(os.Stderr, "unknown command %q\n%s\n", rest[0], usage)
		os.Exit(2)
	}

	os.Exit(run(cfg, cmd == cmdSelfTest))
}

func run(cfg *config.RuntimeConfig, selftest bool) int {
	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sc := smoke.DefaultScenario()
	if selftest {
		fx, err := fixture.Start()
		if err != nil {
			slog.Error("fixture start failed", "err", err)
			return 1
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := fx.Close(ctx); err != nil {
				slog.Warn("fixture close", "err", err)
			}
		}()
		sc = smoke.FixtureScenario(fx.URL())
	}

	allocCtx, allocCancel, err := browser.NewAllocator(sigCtx, cfg)
	if err != nil {
		slog.Error("browser setup failed", "err", err)
		return 1
	}
	defer allocCancel()

	tabCtx, release, err := browser.Open(allocCtx, cfg, sc.ExpectedURL)
	if err != nil {
		slog.Error("browser setup failed", "err", err)
		return 1
	}
	defer release()

	// Attached tabs are not cancelled by the signal context, so the run
	// context listens for it separately.
	runCtx, runCancel := context.WithTimeout(tabCtx, cfg.RunTimeout)
	defer runCancel()
	stopAfter := context.AfterFunc(sigCtx, runCancel)
	defer stopAfter()

	r := &smoke.Runner{
		Doc:   browser.NewTab(cfg.ActionTimeout),
		API:   apicheck.NewClient(&http.Client{Timeout: cfg.HTTPTimeout}),
		Clock: poll.RealClock{},
		Out:   os.Stdout,
	}
	if err := r.Run(runCtx, sc); err != nil {
		slog.Error("smoke test failed", "step", smoke.StepOf(err), "err", err)
		return 1
	}
	return 0
}
