package scenario

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadScenarioYAML(t *testing.T) {
	path := writeFile(t, t.TempDir(), "catalog.yaml", `
name: "Create product"
setup:
  reset: true
steps:
  - name: "create"
    request:
      method: POST
      path: /v1/catalogs/products
      headers:
        Authorization: "Bearer {{token}}"
      body:
        name: Video Streaming
        type: SERVICE
    capture:
      product_id: id
    assert:
      status: 201
      body:
        type: SERVICE
`)

	s, err := LoadScenario(path)
	if err != nil {
		t.Fatalf("LoadScenario() error: %v", err)
	}
	if s.Name != "Create product" {
		t.Errorf("expected name 'Create product', got %q", s.Name)
	}
	if !s.Setup.Reset {
		t.Error("expected setup.reset to be true")
	}
	step := s.Steps[0]
	if step.Request.Path != "/v1/catalogs/products" {
		t.Errorf("unexpected path %q", step.Request.Path)
	}
	body, ok := step.Request.Body.(map[string]any)
	if !ok || body["name"] != "Video Streaming" {
		t.Errorf("expected a map body, got %#v", step.Request.Body)
	}
	if step.Capture["product_id"] != "id" {
		t.Errorf("unexpected capture %v", step.Capture)
	}
	if step.Assert.Status != 201 {
		t.Errorf("expected status 201, got %d", step.Assert.Status)
	}
}

func TestLoadScenarioJSON(t *testing.T) {
	path := writeFile(t, t.TempDir(), "list.json",
		`{"name": "list", "steps": [{"name": "s", "request": {"method": "GET", "path": "/v1/billing/plans"}, "assert": {"status": 200}}]}`)

	s, err := LoadScenario(path)
	if err != nil {
		t.Fatalf("LoadScenario() error: %v", err)
	}
	if s.Steps[0].Request.Method != "GET" {
		t.Errorf("expected GET, got %q", s.Steps[0].Request.Method)
	}
}

func TestLoadScenarioErrors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		file    string
		content string
		want    string
	}{
		{"unsupported format", "s.toml", "", "unsupported scenario format"},
		{"missing name", "a.yaml", "steps:\n  - request: {method: GET, path: /}\n", "name is required"},
		{"no steps", "b.yaml", "name: empty\n", "at least one step"},
		{"step without path", "c.yaml", "name: x\nsteps:\n  - request: {method: GET}\n", "step 1 needs a method and a path"},
		{"bad yaml", "d.yaml", "name: [\n", "parsing scenario"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadScenario(writeFile(t, dir, tt.file, tt.content))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}

	if _, err := LoadScenario(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadDirAndLoad(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.yml", "name: second\nsteps:\n  - request: {method: GET, path: /b}\n")
	writeFile(t, dir, "a.json", `{"name": "first", "steps": [{"request": {"method": "GET", "path": "/a"}}]}`)
	writeFile(t, dir, "notes.txt", "ignored")

	scenarios, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(scenarios) != 2 {
		t.Fatalf("expected 2 scenarios, got %d", len(scenarios))
	}
	if scenarios[0].Name != "first" || scenarios[1].Name != "second" {
		t.Errorf("expected name order, got %q, %q", scenarios[0].Name, scenarios[1].Name)
	}

	single, err := Load(filepath.Join(dir, "b.yml"))
	if err != nil || len(single) != 1 {
		t.Fatalf("Load(file) = %v, %v", single, err)
	}

	if _, err := LoadDir(t.TempDir()); err == nil {
		t.Error("expected error for empty directory")
	}
}

func TestExpand(t *testing.T) {
	t.Setenv("TWIN_SCENARIO_TOKEN", "tok")
	vars := map[string]string{"product_id": "PROD-1", "base_url": "http://twin"}

	got, err := Expand("{{base_url}}/v1/catalogs/products/{{ product_id }}?t={{env.TWIN_SCENARIO_TOKEN}}", vars)
	if err != nil {
		t.Fatalf("Expand() error: %v", err)
	}
	if want := "http://twin/v1/catalogs/products/PROD-1?t=tok"; got != want {
		t.Errorf("Expand() = %q, want %q", got, want)
	}

	if _, err := Expand("{{unknown}}", vars); err == nil {
		t.Error("expected error for unknown variable")
	}
	if _, err := Expand("{{product_id", vars); err == nil {
		t.Error("expected error for unterminated expression")
	}
	if got, _ := Expand("plain", nil); got != "plain" {
		t.Errorf("Expand(plain) = %q", got)
	}
}

func TestLookup(t *testing.T) {
	doc := map[string]any{
		"id":       "P-1",
		"quantity": float64(2),
		"billing_cycles": []any{
			map[string]any{"frequency": map[string]any{"interval_unit": "MONTH"}},
		},
		"matrix": []any{[]any{"a", "b"}},
	}

	tests := []struct {
		path string
		want string
		ok   bool
	}{
		{"id", "P-1", true},
		{"quantity", "2", true},
		{"billing_cycles[0].frequency.interval_unit", "MONTH", true},
		{"matrix[0][1]", "b", true},
		{"billing_cycles[3]", "", false},
		{"id.nested", "", false},
		{"missing", "", false},
		{"billing_cycles[x]", "", false},
	}
	for _, tt := range tests {
		v, ok := lookup(doc, tt.path)
		if ok != tt.ok {
			t.Errorf("lookup(%q) ok = %v, want %v", tt.path, ok, tt.ok)
			continue
		}
		if ok && scalarString(v) != tt.want {
			t.Errorf("lookup(%q) = %q, want %q", tt.path, scalarString(v), tt.want)
		}
	}
}
