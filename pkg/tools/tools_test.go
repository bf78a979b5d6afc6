// Tests for the tool registry and built-in tools.
package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/openai/openai-go"
)

// toolResponseTest is a minimal response shape for assertions.
type toolResponseTest struct {
	OK   bool            `json:"ok"`
	Tool string          `json:"tool"`
	Data json.RawMessage `json:"data"`
	Err  string          `json:"error"`
}

func decodeResponse(t *testing.T, raw string) toolResponseTest {
	t.Helper()
	var resp toolResponseTest
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	return resp
}

func callFor(name, args string) openai.ChatCompletionMessageToolCall {
	return openai.ChatCompletionMessageToolCall{
		ID:       "call_1",
		Function: openai.ChatCompletionMessageToolCallFunction{Name: name, Arguments: args},
	}
}

func TestRegistryEnableState(t *testing.T) {
	r := New(Context{Ctx: context.Background()})

	if len(r.Definitions()) != 0 {
		t.Fatalf("expected no definitions while all tools are disabled")
	}
	if len(r.Available()) != 4 {
		t.Fatalf("expected 4 tools, got %d", len(r.Available()))
	}

	on, err := r.Toggle("url_context")
	if err != nil || !on {
		t.Fatalf("Toggle = %v, %v", on, err)
	}
	if names := r.EnabledNames(); len(names) != 1 || names[0] != "URL Context" {
		t.Fatalf("unexpected enabled names %v", names)
	}

	if err := r.Enable([]string{"web_search", "code_execution"}); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	ids := r.EnabledIDs()
	if strings.Join(ids, ",") != "web_search,code_execution" {
		t.Fatalf("unexpected enabled ids %v", ids)
	}
	if len(r.Definitions()) != 2 {
		t.Fatalf("expected 2 definitions, got %d", len(r.Definitions()))
	}

	if err := r.Enable([]string{"google_drive"}); err == nil {
		t.Fatal("expected unknown tool error")
	}
	if _, err := r.Toggle("google_drive"); err == nil {
		t.Fatal("expected unknown tool error")
	}

	r.Reset()
	if len(r.EnabledIDs()) != 0 {
		t.Fatalf("expected reset to disable every tool")
	}
}

func TestExecuteRejectsDisabledAndUnknownTools(t *testing.T) {
	r := New(Context{Ctx: context.Background()})

	out, err := r.Execute(callFor("read_file", `{"path":"x"}`))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if resp := decodeResponse(t, out); resp.OK || !strings.Contains(resp.Err, "disabled") {
		t.Fatalf("expected disabled error, got %+v", resp)
	}

	out, _ = r.Execute(callFor("nope", `{}`))
	if resp := decodeResponse(t, out); resp.OK || !strings.Contains(resp.Err, "unknown tool") {
		t.Fatalf("expected unknown tool error, got %+v", resp)
	}
}

func TestReadFileConfinedToAllowedDirs(t *testing.T) {
	dir := t.TempDir()
	filePath := filepath.Join(dir, "note.txt")
	if err := os.WriteFile(filePath, []byte("hello"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	r := New(Context{Ctx: context.Background(), AllowedDirs: []string{dir}})
	if err := r.Enable([]string{"read_file"}); err != nil {
		t.Fatalf("Enable: %v", err)
	}

	out, _ := r.Execute(callFor("read_file", `{"path":"`+filePath+`","max_bytes":3}`))
	resp := decodeResponse(t, out)
	if !resp.OK {
		t.Fatalf("read failed: %s", resp.Err)
	}
	var data struct {
		Content   string `json:"content"`
		Truncated bool   `json:"truncated"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
	if data.Content != "hel" || !data.Truncated {
		t.Fatalf("unexpected read data: %+v", data)
	}

	out, _ = r.Execute(callFor("read_file", `{"path":"/etc/hosts"}`))
	if resp := decodeResponse(t, out); resp.OK {
		t.Fatal("expected path outside allowed dirs to be rejected")
	}
}

func TestURLContextExtractsReadableText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><head><title> Release  notes </title><script>var x = 1;</script></head>
<body><nav>menu</nav><h1>Version 2</h1><p>Adds   streaming.</p><style>p{}</style></body></html>`))
	}))
	defer server.Close()

	r := New(Context{Ctx: context.Background(), HTTPClient: server.Client()})
	if err := r.Enable([]string{"url_context"}); err != nil {
		t.Fatalf("Enable: %v", err)
	}

	out, _ := r.Execute(callFor("url_context", `{"urls":["`+server.URL+`","ftp://example.com/file"]}`))
	resp := decodeResponse(t, out)
	if !resp.OK {
		t.Fatalf("url_context failed: %s", resp.Err)
	}
	var pages []pageContent
	if err := json.Unmarshal(resp.Data, &pages); err != nil {
		t.Fatalf("unmarshal pages: %v", err)
	}
	if len(pages) != 2 {
		t.Fatalf("expected 2 pages, got %d", len(pages))
	}
	if pages[0].Title != "Release notes" || pages[0].Text != "Version 2 Adds streaming." {
		t.Fatalf("unexpected page %+v", pages[0])
	}
	if pages[1].Error == "" {
		t.Fatalf("expected per-url error for ftp scheme, got %+v", pages[1])
	}
}

func TestURLContextLimit(t *testing.T) {
	urls := make([]string, MaxURLs+1)
	for i := range urls {
		urls[i] = "https://example.com"
	}
	args, _ := json.Marshal(map[string]any{"urls": urls})
	tool := &urlContextTool{ctx: Context{MaxPageChars: DefaultMaxPageChars}}
	out, _ := tool.execute(string(args))
	if resp := decodeResponse(t, out); resp.OK {
		t.Fatal("expected limit error")
	}
}

func TestWebSearchParsesResults(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		_, _ = w.Write([]byte(`<html><body>
<div class="result"><a class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fgo.dev%2Fdoc">Go docs</a>
<a class="result__snippet">The Go   documentation.</a></div>
<div class="result"><a class="result__a" href="https://pkg.go.dev">Packages</a></div>
</body></html>`))
	}))
	defer server.Close()

	r := New(Context{Ctx: context.Background(), HTTPClient: server.Client(), SearchURL: server.URL + "/html/"})
	if err := r.Enable([]string{"web_search"}); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	out, _ := r.Execute(callFor("web_search", `{"query":"golang docs"}`))
	resp := decodeResponse(t, out)
	if !resp.OK {
		t.Fatalf("web_search failed: %s", resp.Err)
	}
	var results []searchResult
	if err := json.Unmarshal(resp.Data, &results); err != nil {
		t.Fatalf("unmarshal results: %v", err)
	}
	if gotQuery != "golang docs" {
		t.Fatalf("unexpected query %q", gotQuery)
	}
	if len(results) != 2 || results[0].URL != "https://go.dev/doc" || results[0].Snippet != "The Go documentation." {
		t.Fatalf("unexpected results %+v", results)
	}
	if results[1].URL != "https://pkg.go.dev" {
		t.Fatalf("unexpected second result %+v", results[1])
	}
}

func TestCodeExecution(t *testing.T) {
	if _, err := exec.LookPath("python3"); err != nil {
		if _, err := exec.LookPath("python"); err != nil {
			t.Skip("python not available")
		}
	}
	r := New(Context{Ctx: context.Background()})
	if err := r.Enable([]string{"code_execution"}); err != nil {
		t.Fatalf("Enable: %v", err)
	}

	out, _ := r.Execute(callFor("code_execution", `{"code":"print(6*7)"}`))
	resp := decodeResponse(t, out)
	if !resp.OK {
		t.Fatalf("code_execution failed: %s", resp.Err)
	}
	var result executionResult
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if result.ExitCode != 0 || strings.TrimSpace(result.Output) != "42" {
		t.Fatalf("unexpected result %+v", result)
	}

	out, _ = r.Execute(callFor("code_execution", `{"code":"import sys\nsys.exit(3)"}`))
	resp = decodeResponse(t, out)
	if !resp.OK {
		t.Fatalf("non-zero exit should still be a result: %s", resp.Err)
	}
	result = executionResult{}
	if err := json.Unmarshal(resp.Data, &result); err != nil || result.ExitCode != 3 {
		t.Fatalf("expected exit code 3, got %+v (%v)", result, err)
	}

	out, _ = r.Execute(callFor("code_execution", `{"code":"  "}`))
	if resp := decodeResponse(t, out); resp.OK {
		t.Fatal("expected empty code to be rejected")
	}
}

func TestSnippetEnvFiltersVariables(t *testing.T) {
	got := snippetEnv([]string{"PATH=/bin", "LC_ALL=C", "GEMINI_API_KEY=secret", "HOMEBREW=x", "broken"})
	if strings.Join(got, ";") != "PATH=/bin;LC_ALL=C" {
		t.Fatalf("unexpected env %v", got)
	}
}
