package handlers_test

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fluxorio/todo-service/pkg/core"
	"github.com/fluxorio/todo-service/pkg/handlers"
	"github.com/fluxorio/todo-service/pkg/telemetry"
	"github.com/fluxorio/todo-service/pkg/todo"
	"github.com/fluxorio/todo-service/pkg/web"
	"github.com/valyala/fasthttp/fasthttputil"
)

type apiResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Count   *int            `json:"count"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
}

type testAPI struct {
	t      *testing.T
	client *http.Client
	store  *todo.Store
}

func startAPI(t *testing.T, staticDir string) *testAPI {
	t.Helper()

	store := todo.NewSeededStore(time.Now().UTC())
	service := todo.NewService(store)
	reporter := telemetry.NewReporter(store, "test")

	system := handlers.NewSystemHandler(reporter)
	system.ServeStatic(staticDir)

	router := web.NewFastRouter(core.NopLogger())
	handlers.Register(router, handlers.NewTodoHandler(service), system)

	server := web.NewFastHTTPServer(web.DefaultFastHTTPServerConfig("inmemory"), router.Handler(), core.NopLogger())
	ln := fasthttputil.NewInmemoryListener()
	go func() {
		_ = server.Serve(ln)
	}()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Stop(ctx)
		_ = ln.Close()
	})

	return &testAPI{
		t:     t,
		store: store,
		client: &http.Client{
			Transport: &http.Transport{
				Dial: func(network, addr string) (net.Conn, error) {
					return ln.Dial()
				},
			},
		},
	}
}

func (a *testAPI) raw(method, path, body string) (*http.Response, []byte) {
	a.t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, "http://todo.test"+path, reader)
	if err != nil {
		a.t.Fatalf("NewRequest: %v", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := a.client.Do(req)
	if err != nil {
		a.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		a.t.Fatalf("read body: %v", err)
	}
	return resp, data
}

func (a *testAPI) do(method, path, body string) (int, apiResponse) {
	a.t.Helper()
	resp, data := a.raw(method, path, body)
	var out apiResponse
	if err := json.Unmarshal(data, &out); err != nil {
		a.t.Fatalf("%s %s: decode %q: %v", method, path, data, err)
	}
	return resp.StatusCode, out
}

func decodeTodo(t *testing.T, raw json.RawMessage) todo.Todo {
	t.Helper()
	var td todo.Todo
	if err := json.Unmarshal(raw, &td); err != nil {
		t.Fatalf("decode todo %s: %v", raw, err)
	}
	return td
}

func TestAPI_ListSeeded(t *testing.T) {
	api := startAPI(t, "")

	status, resp := api.do("GET", "/api/todos", "")
	if status != 200 || !resp.Success {
		t.Fatalf("GET /api/todos = %d %+v", status, resp)
	}
	var todos []todo.Todo
	if err := json.Unmarshal(resp.Data, &todos); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if resp.Count == nil || *resp.Count != 3 || len(todos) != 3 {
		t.Fatalf("count = %v, len = %d, want 3", resp.Count, len(todos))
	}
	for i, td := range todos {
		if td.ID != i+1 || td.Text != todo.SeedTexts[i] || td.Completed {
			t.Errorf("todo %d = %+v", i, td)
		}
	}
}

func TestAPI_CreateThenGet(t *testing.T) {
	api := startAPI(t, "")

	status, resp := api.do("POST", "/api/todos", `{"text":"  Buy milk  "}`)
	if status != 201 {
		t.Fatalf("POST status = %d, want 201 (%+v)", status, resp)
	}
	if resp.Message != handlers.MsgCreated {
		t.Errorf("message = %q, want %q", resp.Message, handlers.MsgCreated)
	}
	created := decodeTodo(t, resp.Data)
	if created.ID != 4 || created.Text != "Buy milk" || created.Completed {
		t.Errorf("created = %+v", created)
	}
	if created.UpdatedAt != nil {
		t.Error("new todo should not carry updatedAt")
	}

	status, resp = api.do("GET", "/api/todos/4", "")
	if status != 200 {
		t.Fatalf("GET status = %d, want 200", status)
	}
	if got := decodeTodo(t, resp.Data); got.Text != "Buy milk" {
		t.Errorf("GET text = %q, want Buy milk", got.Text)
	}
}

func TestAPI_CreateInvalid(t *testing.T) {
	api := startAPI(t, "")

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantError  string
	}{
		{"empty text", `{"text":""}`, 400, handlers.MsgInvalidText},
		{"whitespace", `{"text":"   "}`, 400, handlers.MsgInvalidText},
		{"number", `{"text":42}`, 400, handlers.MsgInvalidText},
		{"missing", `{}`, 400, handlers.MsgInvalidText},
		{"no body", "", 400, handlers.MsgInvalidText},
		{"malformed", `{"text":"x"`, 400, handlers.MsgInvalidJSON},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, resp := api.do("POST", "/api/todos", tt.body)
			if status != tt.wantStatus || resp.Success || resp.Error != tt.wantError {
				t.Errorf("POST %s = %d %+v, want %d %q", tt.body, status, resp, tt.wantStatus, tt.wantError)
			}
		})
	}
	if api.store.Len() != 3 {
		t.Errorf("store length = %d, want 3 after rejected creates", api.store.Len())
	}
}

func TestAPI_Update(t *testing.T) {
	api := startAPI(t, "")

	status, resp := api.do("PUT", "/api/todos/99999", `{"completed":true}`)
	if status != 404 || resp.Error != handlers.MsgTodoNotFound {
		t.Errorf("PUT missing = %d %+v, want 404", status, resp)
	}

	status, resp = api.do("PUT", "/api/todos/1", `{"completed":true}`)
	if status != 200 || resp.Message != handlers.MsgUpdated {
		t.Fatalf("PUT = %d %+v", status, resp)
	}

	_, resp = api.do("GET", "/api/todos/1", "")
	got := decodeTodo(t, resp.Data)
	if !got.Completed || got.UpdatedAt == nil {
		t.Errorf("after update = %+v, want completed with updatedAt", got)
	}
	if got.Text != todo.SeedTexts[0] {
		t.Errorf("text changed to %q", got.Text)
	}

	status, resp = api.do("PUT", "/api/todos/1", `{"text":"","completed":false}`)
	if status != 400 || resp.Error != handlers.MsgInvalidText {
		t.Errorf("PUT empty text = %d %+v, want 400", status, resp)
	}
	_, resp = api.do("GET", "/api/todos/1", "")
	if !decodeTodo(t, resp.Data).Completed {
		t.Error("rejected update must not change completed")
	}

	status, resp = api.do("PUT", "/api/todos/2", "")
	if status != 200 || decodeTodo(t, resp.Data).UpdatedAt == nil {
		t.Errorf("empty PUT = %d %+v, want 200 with updatedAt", status, resp)
	}
}

func TestAPI_DeleteThenGet(t *testing.T) {
	api := startAPI(t, "")

	status, resp := api.do("DELETE", "/api/todos/2", "")
	if status != 200 || resp.Message != handlers.MsgDeleted {
		t.Fatalf("DELETE = %d %+v", status, resp)
	}
	if decodeTodo(t, resp.Data).ID != 2 {
		t.Errorf("deleted = %s, want id 2", resp.Data)
	}

	for _, method := range []string{"GET", "DELETE"} {
		status, resp = api.do(method, "/api/todos/2", "")
		if status != 404 || resp.Error != handlers.MsgTodoNotFound {
			t.Errorf("%s after delete = %d %+v, want 404", method, status, resp)
		}
	}
}

func TestAPI_IDParsing(t *testing.T) {
	api := startAPI(t, "")

	status, resp := api.do("GET", "/api/todos/2abc", "")
	if status != 200 || decodeTodo(t, resp.Data).ID != 2 {
		t.Errorf("GET 2abc = %d %+v, want todo 2", status, resp)
	}
	status, resp = api.do("GET", "/api/todos/abc", "")
	if status != 404 || resp.Error != handlers.MsgTodoNotFound {
		t.Errorf("GET abc = %d %+v, want 404 Todo not found", status, resp)
	}
}

func TestAPI_Stats(t *testing.T) {
	api := startAPI(t, "")
	api.do("PUT", "/api/todos/1", `{"completed":true}`)

	status, resp := api.do("GET", "/api/stats", "")
	if status != 200 {
		t.Fatalf("GET /api/stats = %d", status)
	}
	var stats todo.Stats
	if err := json.Unmarshal(resp.Data, &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	want := todo.Stats{Total: 3, Completed: 1, Pending: 2, CompletionRate: 33.33}
	if stats != want {
		t.Errorf("stats = %+v, want %+v", stats, want)
	}
	if !strings.Contains(string(resp.Data), `"completion_rate":33.33`) {
		t.Errorf("stats JSON = %s", resp.Data)
	}
}

func TestAPI_HealthAndMetrics(t *testing.T) {
	api := startAPI(t, "")

	resp, body := api.raw("GET", "/health", "")
	if resp.StatusCode != 200 {
		t.Fatalf("GET /health = %d", resp.StatusCode)
	}
	var health map[string]interface{}
	if err := json.Unmarshal(body, &health); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if health["status"] != "healthy" || health["environment"] != "test" || health["todos_count"] != float64(3) {
		t.Errorf("health = %v", health)
	}
	if _, ok := health["uptime"].(float64); !ok {
		t.Errorf("uptime = %v, want a number", health["uptime"])
	}

	resp, body = api.raw("GET", "/metrics", "")
	if resp.StatusCode != 200 {
		t.Fatalf("GET /metrics = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("Content-Type = %q, want text/plain", ct)
	}
	for _, line := range []string{"todos_total 3", "todos_completed 0", "todos_pending 3", "# HELP app_uptime_seconds"} {
		if !strings.Contains(string(body), line) {
			t.Errorf("metrics missing %q:\n%s", line, body)
		}
	}
}

func TestAPI_RouteNotFound(t *testing.T) {
	api := startAPI(t, "")

	for _, tc := range []struct{ method, path string }{
		{"GET", "/nope"},
		{"POST", "/api/nope"},
		{"PATCH", "/api/todos/1"},
		{"GET", "/"},
	} {
		status, resp := api.do(tc.method, tc.path, "")
		if status != 404 || resp.Success || resp.Error != handlers.MsgRouteNotFound {
			t.Errorf("%s %s = %d %+v, want 404 Route not found", tc.method, tc.path, status, resp)
		}
	}
}

func TestAPI_StaticFallback(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>todos</h1>"), 0600); err != nil {
		t.Fatalf("write index: %v", err)
	}
	api := startAPI(t, dir)

	resp, body := api.raw("GET", "/", "")
	if resp.StatusCode != 200 || string(body) != "<h1>todos</h1>" {
		t.Errorf("GET / = %d %q, want index.html", resp.StatusCode, body)
	}

	status, apiResp := api.do("GET", "/missing.js", "")
	if status != 404 || apiResp.Error != handlers.MsgRouteNotFound {
		t.Errorf("GET /missing.js = %d %+v, want JSON 404", status, apiResp)
	}

	status, apiResp = api.do("GET", "/api/unknown", "")
	if status != 404 || apiResp.Error != handlers.MsgRouteNotFound {
		t.Errorf("GET /api/unknown = %d %+v, want JSON 404", status, apiResp)
	}
}
