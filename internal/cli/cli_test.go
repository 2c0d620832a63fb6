package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// cleanEnv isolates a test from the developer's environment.
func cleanEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"DB_DRIVER", "DB_URL", "REDIS_ADDR", "OPENAI_API_KEY", "OPENAI_BASE_URL", "SCORER_CATEGORIES_FILE", "OCR_ENABLED"} {
		t.Setenv(k, "")
	}
	t.Setenv("ORACLE_RPS", "0")
	t.Setenv("ORACLE_BACKOFF", "1ms")
	t.Setenv("LOG_LEVEL", "error")
}

func execute(t *testing.T, args ...string) (string, string, int) {
	t.Helper()
	var out, errb bytes.Buffer
	code := Execute(context.Background(), args, &out, &errb)
	return out.String(), errb.String(), code
}

func dbArgs(t *testing.T) []string {
	t.Helper()
	return []string{"--db-driver", "sqlite", "--db-url", filepath.Join(t.TempDir(), "cli.db")}
}

func with(db []string, args ...string) []string {
	return append(append([]string{}, db...), args...)
}

func writeText(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "report.txt")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func fakeOpenAI(t *testing.T, content string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		b, _ := json.Marshal(map[string]any{
			"choices": []map[string]any{{"message": map[string]any{"role": "assistant", "content": content}}},
		})
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(b)
	}))
	t.Cleanup(srv.Close)
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("OPENAI_BASE_URL", srv.URL+"/v1")
	return srv, &calls
}

func TestRoot_HasCommands(t *testing.T) {
	root, _ := newRoot()
	names := []string{}
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"migrate", "health", "project", "document", "acquire", "select", "extract", "run", "export", "serve"} {
		assert.Contains(t, names, want)
	}
}

func TestStoreCommands_RequireDatabaseURL(t *testing.T) {
	cleanEnv(t)
	_, errOut, code := execute(t, "project", "list")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "DB_URL")
}

func TestProjectAndDocumentCommands(t *testing.T) {
	cleanEnv(t)
	db := dbArgs(t)

	out, _, code := execute(t, with(db, "migrate")...)
	require.Equal(t, 0, code)
	assert.Contains(t, out, "migrated")

	out, _, code = execute(t, with(db, "project", "add", "p-1", "--name", "Copper Flat", "--company", "Themac")...)
	require.Equal(t, 0, code)
	assert.Contains(t, out, "project p-1 (Copper Flat)")

	out, _, code = execute(t, with(db, "document", "add", "p-1", "https://example.com/pea.pdf", "--title", "PEA", "--filed-at", "2023-02-01")...)
	require.Equal(t, 0, code)
	assert.Contains(t, out, "registered for p-1")

	_, errOut, code := execute(t, with(db, "document", "add", "p-1", "x.pdf", "--filed-at", "Feb 2023")...)
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "YYYY-MM-DD")

	out, _, code = execute(t, with(db, "document", "list", "p-1")...)
	require.Equal(t, 0, code)
	assert.Contains(t, out, "https://example.com/pea.pdf")
	assert.Contains(t, out, "Filed: 2023-02-01")
	assert.Contains(t, out, "Total: 1 documents")

	out, _, code = execute(t, with(db, "project", "list")...)
	require.Equal(t, 0, code)
	assert.Contains(t, out, "Copper Flat")
	assert.Contains(t, out, "Total: 1 projects")

	out, _, code = execute(t, with(db, "health")...)
	require.Equal(t, 0, code)
	assert.Contains(t, out, "database: OK")

	_, errOut, code = execute(t, with(db, "project", "show", "nope")...)
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "not found")
}

func TestDocumentImport(t *testing.T) {
	cleanEnv(t)
	db := dbArgs(t)
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "p-9"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "p-9", "annual.html"), []byte("<p>x</p>"), 0o644))

	_, _, code := execute(t, with(db, "migrate")...)
	require.Equal(t, 0, code)
	out, _, code := execute(t, with(db, "document", "import", root)...)
	require.Equal(t, 0, code)
	assert.Contains(t, out, "registered=1 failed=0")

	out, _, code = execute(t, with(db, "document", "list", "p-9")...)
	require.Equal(t, 0, code)
	assert.Contains(t, out, "Title: annual")
}

func TestAcquireAndSelect(t *testing.T) {
	cleanEnv(t)
	path := writeText(t, "Executive Summary\nThe project NPV is US$120M.")

	out, _, code := execute(t, "acquire", path)
	require.Equal(t, 0, code)
	assert.Contains(t, out, "format=TEXT")

	out, _, code = execute(t, "acquire", path, "--print")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "NPV is US$120M")

	out, _, code = execute(t, "select", path, "--stats")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "windows=1")
	assert.Contains(t, out, "fallback=true")

	_, errOut, code := execute(t, "acquire", filepath.Join(t.TempDir(), "missing.pdf"))
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "ACQUISITION_ERROR")
}

func TestExtract_PrintsReportWithoutStore(t *testing.T) {
	cleanEnv(t)
	_, calls := fakeOpenAI(t, `{"npv": "$1.2 billion", "irr": "18.5%", "stage": "PFS"}`)
	path := writeText(t, "Pre-feasibility study results")

	out, _, code := execute(t, "extract", path, "--project-name", "Copper Flat")
	require.Equal(t, 0, code, out)

	var rep struct {
		Status string         `json:"status"`
		Result map[string]any `json:"result"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	assert.Equal(t, "OK", rep.Status)
	assert.Equal(t, 1200.0, rep.Result["npv"])
	assert.Equal(t, 18.5, rep.Result["irr"])
	assert.Equal(t, "Pre-Feasibility", rep.Result["stage"])
	assert.Equal(t, int32(1), calls.Load())
}

func TestExtract_RequiresAPIKey(t *testing.T) {
	cleanEnv(t)
	_, errOut, code := execute(t, "extract", writeText(t, "x"))
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "OPENAI_API_KEY")
}

func TestRun_EnrichesAndIsIdempotent(t *testing.T) {
	cleanEnv(t)
	_, calls := fakeOpenAI(t, `{"npv": 250, "commodities": ["Au", "silver"], "location": "Nevada, USA"}`)
	db := dbArgs(t)
	path := writeText(t, "Technical report with an NPV of 250 million")

	for _, args := range [][]string{
		{"migrate"},
		{"project", "add", "p-1", "--name", "Copper Flat"},
		{"document", "add", "p-1", path},
	} {
		_, errOut, code := execute(t, with(db, args...)...)
		require.Equal(t, 0, code, errOut)
	}

	out, errOut, code := execute(t, with(db, "run")...)
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "p-1: documents=1 ok=1")
	assert.Contains(t, out, "changed=true")
	assert.Contains(t, out, "npv=250")
	assert.Contains(t, out, "commodities=Gold|Silver")

	out, _, code = execute(t, with(db, "run", "--project", "p-1")...)
	require.Equal(t, 0, code)
	assert.Contains(t, out, "changed=false")
	assert.Equal(t, int32(2), calls.Load())

	out, _, code = execute(t, with(db, "project", "show", "p-1", "--jobs", "5")...)
	require.Equal(t, 0, code)
	var shown struct {
		Project struct {
			NPV         float64  `json:"npv"`
			Commodities []string `json:"commodities"`
			Location    string   `json:"location"`
		} `json:"project"`
		Jobs []struct {
			Status    string `json:"status"`
			ModelName string `json:"model_name"`
		} `json:"jobs"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &shown))
	assert.Equal(t, 250.0, shown.Project.NPV)
	assert.Equal(t, []string{"Gold", "Silver"}, shown.Project.Commodities)
	assert.Equal(t, "Nevada, USA", shown.Project.Location)
	require.Len(t, shown.Jobs, 2)
	assert.Equal(t, "OK", shown.Jobs[0].Status)
	assert.Equal(t, "gpt-4o-mini", shown.Jobs[0].ModelName)

	xlsx := filepath.Join(t.TempDir(), "out.xlsx")
	out, _, code = execute(t, with(db, "export", "-o", xlsx)...)
	require.Equal(t, 0, code)
	assert.Contains(t, out, fmt.Sprintf("wrote %s", xlsx))
	info, err := os.Stat(xlsx)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestRun_NoProjects(t *testing.T) {
	cleanEnv(t)
	fakeOpenAI(t, `{}`)
	out, errOut, code := execute(t, "--inmem", "run")
	require.Equal(t, 0, code, errOut)
	assert.True(t, strings.Contains(out, "No projects with documents"))
}
