// Package smoke runs the text-box form smoke test: precondition, populate,
// submit, verify, then the JSON API check. The first failure ends the run.
package smoke

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/pinchtab/smoketab/internal/apicheck"
	"github.com/pinchtab/smoketab/internal/poll"
)

const (
	StepPrecondition = "precondition"
	StepPopulate     = "populate"
	StepSubmit       = "submit"
	StepVerify       = "verify"
	StepAPI          = "api"
)

// Document is the slice of a live page the run touches. Implementations
// report a missing element with found=false rather than an error.
type Document interface {
	Location(ctx context.Context) (string, error)
	// SetValue focuses the element, assigns value and fires one bubbling
	// input and one bubbling change event.
	SetValue(ctx context.Context, selector, value string) (found bool, err error)
	// Click scrolls the element to the vertical center and activates it.
	Click(ctx context.Context, selector string) (found bool, err error)
	// Rendered reports whether the element is laid out and has non-blank text.
	Rendered(ctx context.Context, selector string) (bool, error)
	// InnerText returns the element's trimmed rendered text.
	InnerText(ctx context.Context, selector string) (text string, found bool, err error)
}

// APIChecker runs the external JSON check.
type APIChecker interface {
	Verify(ctx context.Context, c apicheck.Check) error
}

// AssertionError is the single failure kind of a run.
type AssertionError struct {
	Step string
	Msg  string
}

func (e *AssertionError) Error() string { return e.Msg }

func fail(step, format string, args ...any) error {
	return &AssertionError{Step: step, Msg: fmt.Sprintf(format, args...)}
}

// StepOf returns the step an error was raised in, or "" for non-assertion errors.
func StepOf(err error) string {
	var ae *AssertionError
	if errors.As(err, &ae) {
		return ae.Step
	}
	return ""
}

type Runner struct {
	Doc    Document
	API    APIChecker
	Clock  poll.Clock
	Out    io.Writer
	Logger *slog.Logger
}

func (r *Runner) log() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

func (r *Runner) out() io.Writer {
	if r.Out != nil {
		return r.Out
	}
	return os.Stdout
}

// Run executes the scenario once, forward only.
func (r *Runner) Run(ctx context.Context, sc Scenario) error {
	if err := sc.Form.Validate(); err != nil {
		return err
	}
	start := time.Now()

	steps := []struct {
		name string
		fn   func(context.Context, Scenario) error
	}{
		{StepPrecondition, r.checkLocation},
		{StepPopulate, r.populate},
		{StepSubmit, r.submit},
		{StepVerify, r.verify},
		{StepAPI, r.checkAPI},
	}
	for _, s := range steps {
		t0 := time.Now()
		if err := s.fn(ctx, sc); err != nil {
			return err
		}
		r.log().Debug("step passed", "step", s.name, "dur", time.Since(t0))
	}

	r.log().Info("smoke test passed", "url", sc.ExpectedURL, "api", sc.API.URL, "dur", time.Since(start))
	_, _ = fmt.Fprintln(r.out(), SuccessMarker)
	return nil
}

func (r *Runner) checkLocation(ctx context.Context, sc Scenario) error {
	loc, err := r.Doc.Location(ctx)
	if err != nil {
		return fmt.Errorf("read location: %w", err)
	}
	if !strings.HasPrefix(loc, sc.ExpectedURL) {
		r.log().Warn("unexpected page", "location", loc, "expected", sc.ExpectedURL)
		return fail(StepPrecondition, "Open %s and run this script in the DevTools console.", sc.ExpectedURL)
	}
	return nil
}

func (r *Runner) populate(ctx context.Context, sc Scenario) error {
	fields := []struct {
		selector string
		value    string
	}{
		{sc.Selectors.NameInput, sc.Form.Name},
		{sc.Selectors.EmailInput, sc.Form.Email},
		{sc.Selectors.CurrentAddressInput, sc.Form.CurrentAddress},
		{sc.Selectors.PermanentAddressInput, sc.Form.PermanentAddress},
	}
	for _, f := range fields {
		found, err := r.Doc.SetValue(ctx, f.selector, f.value)
		if err != nil {
			return fmt.Errorf("set %s: %w", f.selector, err)
		}
		if !found {
			return fail(StepPopulate, "Element not found: %s", f.selector)
		}
	}
	return nil
}

func (r *Runner) submit(ctx context.Context, sc Scenario) error {
	found, err := r.Doc.Click(ctx, sc.Selectors.Submit)
	if err != nil {
		return fmt.Errorf("click %s: %w", sc.Selectors.Submit, err)
	}
	if !found {
		return fail(StepSubmit, "Element not found: %s", sc.Selectors.Submit)
	}

	err = poll.Until(ctx,
		func(ctx context.Context) (bool, error) {
			return r.Doc.Rendered(ctx, sc.Selectors.Output)
		},
		poll.WithInterval(sc.Wait.Interval),
		poll.WithTimeout(sc.Wait.Timeout),
		poll.WithMessage(outputTimeoutMessage),
		poll.WithClock(r.Clock),
	)
	var te *poll.TimeoutError
	if errors.As(err, &te) {
		r.log().Debug("output wait expired", "attempts", te.Attempts, "elapsed", te.Elapsed, "lastErr", te.LastErr)
		return fail(StepSubmit, "%s", te.Msg)
	}
	return err
}

func (r *Runner) verify(ctx context.Context, sc Scenario) error {
	checks := []struct {
		selector string
		want     string
		label    string
	}{
		{sc.Selectors.NameResult, sc.Form.Name, "name"},
		{sc.Selectors.EmailResult, sc.Form.Email, "email"},
		{sc.Selectors.CurrentAddressResult, sc.Form.CurrentAddress, "current address"},
		{sc.Selectors.PermanentAddressResult, sc.Form.PermanentAddress, "permanent address"},
	}

	// Read every result before asserting so a missing element fails ahead of
	// any content mismatch.
	texts := make([]string, len(checks))
	for i, c := range checks {
		text, found, err := r.Doc.InnerText(ctx, c.selector)
		if err != nil {
			return fmt.Errorf("read %s: %w", c.selector, err)
		}
		if !found {
			return fail(StepVerify, "Element not found: %s", c.selector)
		}
		texts[i] = text
	}

	for i, c := range checks {
		if !strings.Contains(texts[i], c.want) {
			return fail(StepVerify, "Output %s mismatch. Got: \"%s\"", c.label, texts[i])
		}
	}
	return nil
}

func (r *Runner) checkAPI(ctx context.Context, sc Scenario) error {
	if r.API == nil {
		return errors.New("no API checker configured")
	}
	err := r.API.Verify(ctx, sc.API)
	var me *apicheck.MismatchError
	if errors.As(err, &me) {
		return fail(StepAPI, "%s", me.Msg)
	}
	return err
}
