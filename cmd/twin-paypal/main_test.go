package main

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigFlagsOverrideEnv(t *testing.T) {
	t.Setenv("TWIN_PAYPAL_PORT", "9000")
	t.Setenv("TWIN_PAYPAL_LATENCY", "1s")
	t.Setenv("TWIN_PAYPAL_CLIENT_ID", "env-client")

	var f serveFlags
	cmd := &cobra.Command{}
	addServeFlags(cmd, &f)
	require.NoError(t, cmd.ParseFlags([]string{
		"--env-file", filepath.Join(t.TempDir(), "none.env"),
		"--port", "9100",
		"--hostname", "api.sandbox.paypal.com",
		"--sequential-ids",
	}))

	cfg, err := loadConfig(cmd, &f)
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Port)
	assert.Equal(t, time.Second, cfg.Latency, "unset flags keep the environment value")
	assert.Equal(t, "env-client", cfg.ClientID)
	assert.Equal(t, "api.sandbox.paypal.com", cfg.APIHostname)
	assert.True(t, cfg.SequentialIDs())
}

func TestLoadConfigValidatesFlags(t *testing.T) {
	var f serveFlags
	cmd := &cobra.Command{}
	addServeFlags(cmd, &f)
	require.NoError(t, cmd.ParseFlags([]string{
		"--env-file", filepath.Join(t.TempDir(), "none.env"),
		"--fail-rate", "3",
	}))

	_, err := loadConfig(cmd, &f)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FailRate")
}

func TestAdminCommands(t *testing.T) {
	var got []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got = append(got, r.Method+" "+r.URL.Path+" "+string(body))
		if strings.HasSuffix(r.URL.Path, "/I-DONE/approve") {
			w.WriteHeader(http.StatusConflict)
		}
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	run := func(args ...string) (string, error) {
		root := newRootCmd()
		var out bytes.Buffer
		root.SetOut(&out)
		root.SetArgs(append([]string{"admin", "--url", srv.URL}, args...))
		err := root.Execute()
		return out.String(), err
	}

	out, err := run("health")
	require.NoError(t, err)
	assert.Contains(t, out, `"status":"ok"`)

	_, err = run("approve", "I-1")
	require.NoError(t, err)
	_, err = run("respond", "503", "down")
	require.NoError(t, err)
	_, err = run("advance", "24h")
	require.NoError(t, err)

	require.Len(t, got, 4)
	assert.Equal(t, "POST /admin/subscriptions/I-1/approve ", got[1])
	assert.Equal(t, `POST /admin/response {"body":"down","status_code":503}`, got[2])
	assert.Equal(t, `POST /admin/time/advance {"duration":"24h0m0s"}`, got[3])

	_, err = run("approve", "I-DONE")
	assert.Error(t, err)
	_, err = run("respond", "abc")
	assert.Error(t, err)
	_, err = run("advance", "soon")
	assert.Error(t, err)
}

func TestScenarioCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/catalogs/products" {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"products":[{"id":"PROD-1"}]}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	dir := t.TempDir()
	path := filepath.Join(dir, "list.yaml")
	content := "name: list\nsteps:\n  - name: products\n    request: {method: GET, path: /v1/catalogs/products}\n    assert:\n      status: 200\n      body:\n        products[0].id: PROD-1\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	run := func(file string) (string, error) {
		root := newRootCmd()
		var out bytes.Buffer
		root.SetOut(&out)
		root.SetArgs([]string{"scenario", "--url", srv.URL, file})
		err := root.Execute()
		return out.String(), err
	}

	out, err := run(path)
	require.NoError(t, err)
	assert.Contains(t, out, "PASS products")
	assert.Contains(t, out, "1 scenarios passed")

	failing := filepath.Join(dir, "missing.yaml")
	require.NoError(t, os.WriteFile(failing, []byte("name: missing\nsteps:\n  - name: gone\n    request: {method: GET, path: /nope}\n    assert: {status: 200}\n"), 0o644))
	out, err = run(failing)
	require.Error(t, err)
	assert.Contains(t, out, "FAIL gone: expected status 200, got 404")
}
