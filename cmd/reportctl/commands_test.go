package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleRequest = `{
	"businessName": "Acme Bakery",
	"reportDate": "2026-03-01T00:00:00Z",
	"sections": [
		{
			"title": "Automate Ordering",
			"mainContent": "Customers order online.\n\n- Fewer calls\n- Faster pickup",
			"statistic": {"value": "30%", "description": "less phone time"},
			"keyTakeaways": ["Start with the website"]
		}
	]
}`

func run(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeRequest(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "request.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestRender_VectorToFile(t *testing.T) {
	out := filepath.Join(t.TempDir(), "report.pdf")
	missingConfig := filepath.Join(t.TempDir(), "none.json")

	_, stderr, err := run(t, "", "render", "--config", missingConfig,
		"--input", writeRequest(t, sampleRequest), "--backend", "vector", "--out", out)

	require.NoError(t, err)
	assert.Contains(t, stderr, "wrote "+out)

	pdf, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-", string(pdf[:5]))
}

func TestRender_StdinToStdout(t *testing.T) {
	stdout, _, err := run(t, sampleRequest, "render", "--input", "-", "--out", "-",
		"--config", filepath.Join(t.TempDir(), "none.json"))

	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stdout, "%PDF-"))
}

func TestRender_InvalidRequest(t *testing.T) {
	_, _, err := run(t, "", "render", "--input", writeRequest(t, `{"sections": [{"title": 3}]}`),
		"--config", filepath.Join(t.TempDir(), "none.json"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "businessName")
	assert.Contains(t, err.Error(), "sections[0].title")
}

func TestRender_UnknownBackend(t *testing.T) {
	_, _, err := run(t, "", "render", "--input", writeRequest(t, sampleRequest), "--backend", "fax",
		"--config", filepath.Join(t.TempDir(), "none.json"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "backend")
}

func TestRender_RequiresInput(t *testing.T) {
	_, _, err := run(t, "", "render")
	assert.ErrorContains(t, err, "input")
}

func TestHTML_BusinessOverride(t *testing.T) {
	stdout, _, err := run(t, "", "html", "--input", writeRequest(t, sampleRequest),
		"--business", "Zed Tools", "--config", filepath.Join(t.TempDir(), "none.json"))

	require.NoError(t, err)
	assert.Contains(t, stdout, "Zed Tools")
	assert.Contains(t, stdout, "Automate Ordering")
	assert.NotContains(t, stdout, "Acme Bakery")
}

func TestSanitize(t *testing.T) {
	stdout, _, err := run(t, "Growth “doubled” [3] 🚀", "sanitize")

	require.NoError(t, err)
	assert.Equal(t, "Growth \"doubled\"\n", stdout)
}
