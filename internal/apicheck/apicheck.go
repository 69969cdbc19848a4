// Package apicheck fetches a JSON resource and asserts its shape and a few
// integer field values.
package apicheck

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

const (
	DefaultURL     = "https://jsonplaceholder.typicode.com/posts/1"
	maxBodySize    = 1 << 20
	defaultTimeout = 10 * time.Second
)

// DefaultRequiredKeys are checked in order; the first missing one is reported.
var DefaultRequiredKeys = []string{"userId", "id", "title", "body"}

// IntField pins a top-level key to an integer value.
type IntField struct {
	Key   string
	Value int64
}

// Check describes one GET-and-assert round.
type Check struct {
	URL          string
	RequiredKeys []string
	Ints         []IntField
}

// Default returns the posts/1 check.
func Default() Check {
	return Check{
		URL:          DefaultURL,
		RequiredKeys: append([]string(nil), DefaultRequiredKeys...),
		Ints:         []IntField{{Key: "id", Value: 1}},
	}
}

// MismatchError is an assertion failure on the response.
type MismatchError struct {
	Msg string
}

func (e *MismatchError) Error() string { return e.Msg }

func mismatch(format string, args ...any) error {
	return &MismatchError{Msg: fmt.Sprintf(format, args...)}
}

type Client struct {
	HTTP *http.Client
}

func NewClient(hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{HTTP: hc}
}

// Verify performs the GET and runs every assertion of c, stopping at the
// first failure. The status is checked before the body is read.
func (cl *Client) Verify(ctx context.Context, c Check) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := cl.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", c.URL, err)
	}
	defer resp.Body.Close()

	slog.Debug("api response", "url", c.URL, "status", resp.StatusCode)
	if resp.StatusCode != http.StatusOK {
		return mismatch("Expected status 200, got %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	return c.Assert(body)
}

// Assert runs the shape and value checks against a raw JSON body.
func (c Check) Assert(body []byte) error {
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return fmt.Errorf("decode JSON response: %w", err)
	}

	schema, err := c.schema()
	if err != nil {
		return err
	}
	if verr := schema.Validate(doc); verr != nil {
		return describe(doc, c.RequiredKeys, verr)
	}

	obj := doc.(map[string]any)
	for _, f := range c.Ints {
		got, present := obj[f.Key]
		if !present {
			return mismatch("Expected %s=%d, got undefined", f.Key, f.Value)
		}
		if !intEquals(got, f.Value) {
			return mismatch("Expected %s=%d, got %s", f.Key, f.Value, render(got))
		}
	}
	return nil
}

func (c Check) schema() (*jsonschema.Schema, error) {
	required := make([]any, 0, len(c.RequiredKeys))
	for _, k := range c.RequiredKeys {
		required = append(required, k)
	}
	doc := map[string]any{
		"$schema":  "https://json-schema.org/draft/2020-12/schema",
		"type":     "object",
		"required": required,
	}

	const loc = "mem://apicheck/response.json"
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(loc, doc); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile(loc)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}

// describe turns a schema failure into the first human-facing reason.
// Arrays and scalars have no own keys, so they report the first required
// key as missing. Only null, or a non-object with nothing required, is
// reported as not an object.
func describe(doc any, required []string, verr error) error {
	if doc == nil {
		return mismatch("JSON response is not an object")
	}
	obj, _ := doc.(map[string]any)
	for _, k := range required {
		if _, ok := obj[k]; !ok {
			return mismatch("Missing key %q in JSON response", k)
		}
	}
	if obj == nil {
		return mismatch("JSON response is not an object")
	}
	return fmt.Errorf("JSON response failed validation: %w", verr)
}

func intEquals(v any, want int64) bool {
	f, ok := v.(float64)
	if !ok || math.Trunc(f) != f {
		return false
	}
	return int64(f) == want
}

func render(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return x
	case float64:
		return fmt.Sprintf("%v", x)
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprintf("%v", x)
		}
		return string(b)
	}
}
