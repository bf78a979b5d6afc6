package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/minhyannv/ai-cli/pkg/agent"
	configpkg "github.com/minhyannv/ai-cli/pkg/config"
	"github.com/minhyannv/ai-cli/pkg/llm"
	loggerpkg "github.com/minhyannv/ai-cli/pkg/logger"
	"github.com/minhyannv/ai-cli/pkg/store"
	"github.com/minhyannv/ai-cli/pkg/token"
	"github.com/minhyannv/ai-cli/pkg/ui"
)

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type scriptedPrompter struct {
	inputs   []string
	confirms []bool
}

func (p *scriptedPrompter) Input(string) (string, error) {
	if len(p.inputs) == 0 {
		return "", ui.ErrCancelled
	}
	next := p.inputs[0]
	p.inputs = p.inputs[1:]
	return next, nil
}

func (p *scriptedPrompter) Confirm(string, bool) (bool, error) {
	if len(p.confirms) == 0 {
		return false, ui.ErrCancelled
	}
	next := p.confirms[0]
	p.confirms = p.confirms[1:]
	return next, nil
}

type fakeMenu struct {
	choice   string
	selected []string
}

func (m *fakeMenu) Select(string, []ui.Option) (string, error) { return m.choice, nil }

func (m *fakeMenu) MultiSelect(string, []ui.Option) ([]string, error) { return m.selected, nil }

type fakeModel struct {
	reply   string
	streams [][]llm.Message
}

func (f *fakeModel) Stream(_ context.Context, messages []llm.Message, onChunk func(string), _ llm.StreamOptions) (llm.Result, error) {
	f.streams = append(f.streams, messages)
	onChunk(f.reply)
	return llm.Result{Content: f.reply, FinishReason: "stop"}, nil
}

func (f *fakeModel) GenerateObject(_ context.Context, _ []llm.Message, _ llm.Schema, out any) error {
	app := out.(*agent.Application)
	app.FolderName = "hello"
	app.Files = []agent.File{{Path: "main.go", Content: "package main\n"}}
	return nil
}

// authServer fakes the device flow and session endpoints.
type authServer struct {
	*httptest.Server
	mu       sync.Mutex
	polls    int
	pending  int
	response string
}

func newAuthServer(t *testing.T, pending int, response string) *authServer {
	t.Helper()
	s := &authServer{pending: pending, response: response}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/device/code", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil || r.PostForm.Get("client_id") != "cli-test" {
			http.Error(w, `{"error":"invalid_client"}`, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"device_code":      "ABC123",
			"user_code":        "WXYZ-1234",
			"verification_uri": s.URL + "/device",
			"expires_in":       1800,
			"interval":         1,
		})
	})
	mux.HandleFunc("/api/auth/device/token", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		s.mu.Lock()
		s.polls++
		polls := s.polls
		s.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		if r.PostForm.Get("device_code") != "ABC123" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		if polls <= s.pending {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"authorization_pending"}`))
			return
		}
		_, _ = w.Write([]byte(s.response))
	})
	mux.HandleFunc("/api/auth/get-session", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok_1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"user":{"id":"user-1","name":"Ada Lovelace","email":"ada@example.com"}}`))
	})
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

type testApp struct {
	*App
	out      *lockedBuffer
	errOut   *lockedBuffer
	prompter *scriptedPrompter
	menu     *fakeMenu
	model    *fakeModel
	opened   []string
	sleeps   int
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, key := range []string{"AI_CLI_SERVER_URL", "GITHUB_CLIENT_ID", "AI_CLI_CLIENT_ID", "AI_CLI_TOKEN_FILE", "AI_CLI_DB_PATH", "OPENAI_API_KEY", "GEMINI_API_KEY", "AI_MODEL"} {
		t.Setenv(key, "")
	}

	ta := &testApp{
		out:      &lockedBuffer{},
		errOut:   &lockedBuffer{},
		prompter: &scriptedPrompter{},
		menu:     &fakeMenu{},
		model:    &fakeModel{reply: "Hello from the model"},
	}
	app := newApp(strings.NewReader(""), ta.out, ta.errOut)
	app.prompter = ta.prompter
	app.menu = ta.menu
	app.openBrowser = func(url string) error {
		ta.opened = append(ta.opened, url)
		return nil
	}
	app.sleep = func(ctx context.Context, _ time.Duration) error {
		ta.sleeps++
		return ctx.Err()
	}
	app.newModel = func(configpkg.Config, loggerpkg.Logger) (model, error) { return ta.model, nil }
	workdir := t.TempDir()
	app.getwd = func() (string, error) { return workdir, nil }
	ta.App = app
	return ta
}

func (ta *testApp) run(args ...string) int {
	return execute(context.Background(), ta.App, args)
}

func (ta *testApp) tokenPath(t *testing.T) string {
	t.Helper()
	home, _ := os.UserHomeDir()
	return filepath.Join(home, configpkg.DirName, "token.json")
}

func (ta *testApp) saveToken(t *testing.T, access string, expiresIn time.Duration) {
	t.Helper()
	if _, err := token.NewStore(ta.tokenPath(t)).Save(token.AuthToken{AccessToken: access, TokenType: "Bearer"}, expiresIn); err != nil {
		t.Fatalf("save token: %v", err)
	}
}

func TestLoginStoresToken(t *testing.T) {
	server := newAuthServer(t, 2, `{"access_token":"tok_1","token_type":"Bearer","expires_in":3600}`)
	ta := newTestApp(t)
	ta.prompter.confirms = []bool{true}

	before := time.Now()
	if code := ta.run("login", "--server-url", server.URL, "--client-id", "cli-test"); code != 0 {
		t.Fatalf("login exit code %d, stderr:\n%s", code, ta.errOut.String())
	}

	if ta.sleeps != 3 || server.polls != 3 {
		t.Fatalf("expected 3 polls, got sleeps=%d polls=%d", ta.sleeps, server.polls)
	}
	if len(ta.opened) != 1 || ta.opened[0] != server.URL+"/device" {
		t.Fatalf("unexpected browser calls %v", ta.opened)
	}
	tok, err := token.NewStore(ta.tokenPath(t)).Load()
	if err != nil || tok == nil {
		t.Fatalf("load token: %v, %v", tok, err)
	}
	if tok.AccessToken != "tok_1" || tok.ExpiresAt == nil {
		t.Fatalf("unexpected token %+v", tok)
	}
	want := before.Add(time.Hour)
	if d := tok.ExpiresAt.Sub(want); d < -time.Minute || d > time.Minute {
		t.Fatalf("expires_at %v not close to %v", tok.ExpiresAt, want)
	}
	if tok.Expired(time.Now()) {
		t.Fatal("fresh token reported as expired")
	}
	out := ta.out.String()
	for _, want := range []string{"WXYZ-1234", "Polling for authorization...", "Welcome Ada Lovelace"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestLoginAccessDenied(t *testing.T) {
	server := newAuthServer(t, 1, `{"error":"access_denied"}`)
	ta := newTestApp(t)
	ta.prompter.confirms = []bool{false}

	if code := ta.run("login", "--server-url", server.URL, "--client-id", "cli-test"); code != 1 {
		t.Fatalf("expected exit code 1, got %d", code)
	}
	if !strings.Contains(ta.errOut.String(), "access was denied") {
		t.Fatalf("unexpected stderr:\n%s", ta.errOut.String())
	}
	if _, err := os.Stat(ta.tokenPath(t)); !os.IsNotExist(err) {
		t.Fatalf("token file should not exist, stat err %v", err)
	}
}

func TestLoginRequiresClientID(t *testing.T) {
	ta := newTestApp(t)
	if code := ta.run("login"); code != 1 {
		t.Fatalf("expected exit code 1, got %d", code)
	}
	if !strings.Contains(ta.errOut.String(), "client id") {
		t.Fatalf("unexpected stderr:\n%s", ta.errOut.String())
	}
}

func TestLoginKeepsValidTokenWhenDeclined(t *testing.T) {
	server := newAuthServer(t, 0, `{"access_token":"tok_2","expires_in":3600}`)
	ta := newTestApp(t)
	ta.saveToken(t, "tok_1", time.Hour)
	ta.prompter.confirms = []bool{false}

	if code := ta.run("login", "--server-url", server.URL, "--client-id", "cli-test"); code != 0 {
		t.Fatalf("login exit code %d", code)
	}
	if server.polls != 0 {
		t.Fatalf("expected no device flow, got %d polls", server.polls)
	}
	tok, _ := token.NewStore(ta.tokenPath(t)).Load()
	if tok == nil || tok.AccessToken != "tok_1" {
		t.Fatalf("token replaced: %+v", tok)
	}
}

func TestLogoutClearsToken(t *testing.T) {
	ta := newTestApp(t)
	ta.saveToken(t, "tok_1", time.Hour)
	ta.prompter.confirms = []bool{true}

	if code := ta.run("logout"); code != 0 {
		t.Fatalf("logout exit code %d", code)
	}
	if _, err := os.Stat(ta.tokenPath(t)); !os.IsNotExist(err) {
		t.Fatalf("token file should be removed, stat err %v", err)
	}
}

func TestWhoamiUnauthenticated(t *testing.T) {
	ta := newTestApp(t)
	if code := ta.run("whoami"); code != 1 {
		t.Fatalf("expected exit code 1, got %d", code)
	}
	if !strings.Contains(ta.errOut.String(), "login") {
		t.Fatalf("expected a login hint:\n%s", ta.errOut.String())
	}
}

func TestWhoamiPrintsUser(t *testing.T) {
	server := newAuthServer(t, 0, "")
	ta := newTestApp(t)
	ta.saveToken(t, "tok_1", time.Hour)

	if code := ta.run("whoami", "--server-url", server.URL); code != 0 {
		t.Fatalf("whoami exit code %d, stderr:\n%s", code, ta.errOut.String())
	}
	if !strings.Contains(ta.out.String(), "ada@example.com") {
		t.Fatalf("unexpected output:\n%s", ta.out.String())
	}
}

func TestWakeupChatModeSavesConversation(t *testing.T) {
	server := newAuthServer(t, 0, "")
	ta := newTestApp(t)
	ta.saveToken(t, "tok_1", time.Hour)
	t.Setenv("GEMINI_API_KEY", "test-key")
	ta.menu.choice = "chat"
	ta.prompter.inputs = []string{"What is a goroutine?", "exit"}

	if code := ta.run("wakeup", "--server-url", server.URL); code != 0 {
		t.Fatalf("wakeup exit code %d, stderr:\n%s", code, ta.errOut.String())
	}
	if len(ta.model.streams) != 1 {
		t.Fatalf("expected one model call, got %d", len(ta.model.streams))
	}

	repo, err := store.NewSQLite(ta.cfg.DBPath)
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	defer func() { _ = repo.Close() }()
	convs, err := repo.ListConversations(context.Background(), "user-1", 10)
	if err != nil || len(convs) != 1 {
		t.Fatalf("expected one conversation, got %v, %v", convs, err)
	}
	if convs[0].Title != "What is a goroutine?" || convs[0].LastMessage == nil || convs[0].LastMessage.Content != "Hello from the model" {
		t.Fatalf("unexpected conversation %+v", convs[0])
	}

	ta.out = &lockedBuffer{}
	ta.App.out = ta.out
	if code := ta.run("conversations", "list", "--server-url", server.URL); code != 0 {
		t.Fatalf("list exit code %d", code)
	}
	if !strings.Contains(ta.out.String(), convs[0].ID) {
		t.Fatalf("conversation missing from list:\n%s", ta.out.String())
	}
}

func TestWakeupAgentModeGeneratesFiles(t *testing.T) {
	server := newAuthServer(t, 0, "")
	ta := newTestApp(t)
	ta.saveToken(t, "tok_1", time.Hour)
	t.Setenv("GEMINI_API_KEY", "test-key")
	ta.prompter.confirms = []bool{true, false}
	ta.prompter.inputs = []string{"a hello world program in go"}

	if code := ta.run("wakeup", "--mode", "agent", "--server-url", server.URL); code != 0 {
		t.Fatalf("wakeup exit code %d, stderr:\n%s", code, ta.errOut.String())
	}
	cwd, _ := ta.getwd()
	if _, err := os.Stat(filepath.Join(cwd, "hello", "main.go")); err != nil {
		t.Fatalf("expected generated file: %v", err)
	}
}

func TestWakeupRejectsUnknownMode(t *testing.T) {
	server := newAuthServer(t, 0, "")
	ta := newTestApp(t)
	ta.saveToken(t, "tok_1", time.Hour)
	if code := ta.run("wakeup", "--mode", "poetry", "--server-url", server.URL); code != 1 {
		t.Fatalf("expected exit code 1, got %d", code)
	}
}

func TestConversationsDeleteUnknown(t *testing.T) {
	server := newAuthServer(t, 0, "")
	ta := newTestApp(t)
	ta.saveToken(t, "tok_1", time.Hour)
	if code := ta.run("conversations", "delete", "missing", "--yes", "--server-url", server.URL); code != 1 {
		t.Fatalf("expected exit code 1, got %d", code)
	}
	if !strings.Contains(ta.errOut.String(), "not found") {
		t.Fatalf("unexpected stderr:\n%s", ta.errOut.String())
	}
}

func TestStringSliceFlagSetRejectsComma(t *testing.T) {
	var f stringSliceFlag
	if err := f.Set("web_search,read_file"); err == nil {
		t.Fatal("expected comma-separated value to be rejected")
	}
}

func TestStringSliceFlagSetAcceptsSingleValue(t *testing.T) {
	var f stringSliceFlag
	if err := f.Set("read_file"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f) != 1 || f[0] != "read_file" {
		t.Fatalf("unexpected flag values: %#v", f)
	}
}
