package scenario

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/wondertwin-ai/twin-paypal/internal/client"
)

// StepResult records the outcome of a single step.
type StepResult struct {
	Name     string
	Passed   bool
	Status   int
	Duration time.Duration
	Error    string // empty when passed
}

// Result records the outcome of an entire scenario.
type Result struct {
	ScenarioName string
	Passed       bool
	Steps        []StepResult
	Vars         map[string]string
	Duration     time.Duration
}

// Runner executes scenarios against a twin listening at baseURL.
type Runner struct {
	baseURL string
	admin   *client.AdminClient
	http    *http.Client
}

// NewRunner creates a Runner for the twin at baseURL.
func NewRunner(baseURL string) *Runner {
	baseURL = strings.TrimRight(baseURL, "/")
	return &Runner{
		baseURL: baseURL,
		admin:   client.New(baseURL),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Run executes s. Step failures are reported in the Result; a setup failure
// aborts the run and is returned as an error.
func (r *Runner) Run(ctx context.Context, s *Scenario) (*Result, error) {
	start := time.Now()
	result := &Result{
		ScenarioName: s.Name,
		Passed:       true,
		Vars:         map[string]string{"base_url": r.baseURL},
	}
	for k, v := range s.Variables {
		result.Vars[k] = v
	}

	if err := r.runSetup(ctx, &s.Setup, result.Vars); err != nil {
		return nil, fmt.Errorf("setup failed: %w", err)
	}

	for i := range s.Steps {
		sr := r.runStep(ctx, &s.Steps[i], result.Vars)
		result.Steps = append(result.Steps, sr)
		if !sr.Passed {
			result.Passed = false
			// Later steps usually depend on captures from this one.
			break
		}
	}

	result.Duration = time.Since(start)
	return result, nil
}

func (r *Runner) runSetup(ctx context.Context, setup *Setup, vars map[string]string) error {
	if setup.Reset {
		if _, err := r.admin.Reset(ctx); err != nil {
			return err
		}
	}
	if setup.Seed != "" {
		if _, err := r.admin.Seed(ctx, setup.Seed); err != nil {
			return err
		}
	}
	for _, id := range setup.Approve {
		id, err := Expand(id, vars)
		if err != nil {
			return err
		}
		if _, err := r.admin.ApproveSubscription(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) runStep(ctx context.Context, step *Step, vars map[string]string) StepResult {
	start := time.Now()
	sr := StepResult{Name: step.Name}
	fail := func(format string, args ...any) StepResult {
		sr.Error = fmt.Sprintf(format, args...)
		sr.Duration = time.Since(start)
		return sr
	}

	path, err := Expand(step.Request.Path, vars)
	if err != nil {
		return fail("path: %v", err)
	}
	body, err := requestBody(step.Request.Body, vars)
	if err != nil {
		return fail("body: %v", err)
	}

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, strings.ToUpper(step.Request.Method), r.baseURL+path, reader)
	if err != nil {
		return fail("building request: %v", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range step.Request.Headers {
		v, err := Expand(v, vars)
		if err != nil {
			return fail("header %s: %v", k, err)
		}
		req.Header.Set(k, v)
	}

	resp, err := r.http.Do(req)
	if err != nil {
		return fail("request failed: %v", err)
	}
	defer resp.Body.Close()
	sr.Status = resp.StatusCode

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fail("reading response body: %v", err)
	}

	if step.Assert.Status != 0 && resp.StatusCode != step.Assert.Status {
		return fail("expected status %d, got %d: %s", step.Assert.Status, resp.StatusCode, bytes.TrimSpace(respBody))
	}
	if want := step.Assert.BodyContains; want != "" {
		want, err := Expand(want, vars)
		if err != nil {
			return fail("body_contains: %v", err)
		}
		if !strings.Contains(string(respBody), want) {
			return fail("body does not contain %q", want)
		}
	}
	for k, want := range step.Assert.Headers {
		want, err := Expand(want, vars)
		if err != nil {
			return fail("header %s: %v", k, err)
		}
		if got := resp.Header.Get(k); got != want {
			return fail("header %s: expected %q, got %q", k, want, got)
		}
	}

	if len(step.Assert.Body) == 0 && len(step.Capture) == 0 {
		sr.Passed = true
		sr.Duration = time.Since(start)
		return sr
	}

	var doc any
	if err := json.Unmarshal(respBody, &doc); err != nil {
		return fail("response body is not valid JSON: %v", err)
	}
	for path, expected := range step.Assert.Body {
		want, err := Expand(scalarString(expected), vars)
		if err != nil {
			return fail("body %s: %v", path, err)
		}
		actual, ok := lookup(doc, path)
		if !ok {
			return fail("body: %q not found in response", path)
		}
		if got := scalarString(actual); got != want {
			return fail("body %s: expected %q, got %q", path, want, got)
		}
	}
	for name, path := range step.Capture {
		v, ok := lookup(doc, path)
		if !ok {
			return fail("capture %s: %q not found in response", name, path)
		}
		vars[name] = scalarString(v)
	}

	sr.Passed = true
	sr.Duration = time.Since(start)
	return sr
}

// requestBody renders a step body to a string and expands templates in it.
func requestBody(body any, vars map[string]string) (string, error) {
	var raw string
	switch b := body.(type) {
	case nil:
		return "", nil
	case string:
		raw = b
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return "", err
		}
		raw = string(data)
	}
	return Expand(raw, vars)
}
