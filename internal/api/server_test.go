package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/vietddude/toolgate/internal/core/failure"
	"github.com/vietddude/toolgate/internal/infra/storage/memory"
	"github.com/vietddude/toolgate/internal/infra/vendor"
)

type stubProvider struct {
	apps       []vendor.App
	executeErr error
	keyErr     error
	lastTool   string
	lastInput  map[string]any
}

func (s *stubProvider) ListApps(ctx context.Context) ([]vendor.App, error) {
	return s.apps, nil
}

func (s *stubProvider) ListTools(ctx context.Context, app string) ([]vendor.Tool, error) {
	return []vendor.Tool{{Name: strings.ToUpper(app) + "_TOOL", AppName: app}}, nil
}

func (s *stubProvider) ExecuteTool(ctx context.Context, tool string, req vendor.ExecuteRequest) (*vendor.ExecuteResult, error) {
	s.lastTool = tool
	s.lastInput = req.Input
	if s.executeErr != nil {
		return nil, s.executeErr
	}
	return &vendor.ExecuteResult{Successful: true, Data: json.RawMessage(`{"ok":true}`)}, nil
}

func (s *stubProvider) GetConnection(ctx context.Context, id string) (*vendor.Connection, error) {
	return nil, failure.NewStatusError("/connectedAccounts/"+id, http.StatusNotFound, []byte(`{"error":{"code":"TOOL_NOT_FOUND","message":"no such account"}}`), 0)
}

func (s *stubProvider) ValidateKey(ctx context.Context, apiKey string) (*vendor.KeyInfo, error) {
	if s.keyErr != nil {
		return nil, s.keyErr
	}
	return &vendor.KeyInfo{Valid: true, ProjectID: "p1"}, nil
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Kind            failure.Kind `json:"kind"`
		Message         string       `json:"message"`
		SuggestedAction string       `json:"suggested_action"`
		Retryable       bool         `json:"retryable"`
		ErrorCode       string       `json:"error_code"`
	} `json:"error"`
}

type testEnv struct {
	provider *stubProvider
	failures *memory.FailureLogRepo
	dead     *memory.DeadLetterRepo
	handler  http.Handler
}

func newTestEnv() *testEnv {
	store := memory.NewMemoryStorage()
	env := &testEnv{
		provider: &stubProvider{apps: []vendor.App{{Key: "github", Name: "GitHub"}}},
		failures: memory.NewFailureLogRepo(store),
		dead:     memory.NewDeadLetterRepo(store),
	}
	env.handler = NewServer(Config{EnableCORS: true}, env.provider, env.failures, env.dead).Handler()
	return env
}

func (e *testEnv) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)

	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("failed to decode response %q: %v", rec.Body.String(), err)
	}
	return rec, env
}

func TestListApps(t *testing.T) {
	env := newTestEnv()
	rec, body := env.do(t, http.MethodGet, "/api/apps", "")

	if rec.Code != http.StatusOK || !body.Success {
		t.Fatalf("unexpected response %d: %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get(RequestIDHeader) == "" {
		t.Error("expected a request id header")
	}
	var apps []vendor.App
	if err := json.Unmarshal(body.Data, &apps); err != nil || len(apps) != 1 || apps[0].Key != "github" {
		t.Errorf("unexpected apps: %s", body.Data)
	}
}

func TestListTools_PassesAppFilter(t *testing.T) {
	env := newTestEnv()
	_, body := env.do(t, http.MethodGet, "/api/tools?app=slack", "")

	var tools []vendor.Tool
	if err := json.Unmarshal(body.Data, &tools); err != nil || len(tools) != 1 || tools[0].AppName != "slack" {
		t.Errorf("unexpected tools: %s", body.Data)
	}
}

func TestExecuteTool_Success(t *testing.T) {
	env := newTestEnv()
	rec, body := env.do(t, http.MethodPost, "/api/tools/GITHUB_STAR_REPO/execute",
		`{"connected_account_id":"ca_1","input":{"repo":"toolgate"}}`)

	if rec.Code != http.StatusOK || !body.Success {
		t.Fatalf("unexpected response %d: %s", rec.Code, rec.Body.String())
	}
	if env.provider.lastTool != "GITHUB_STAR_REPO" || env.provider.lastInput["repo"] != "toolgate" {
		t.Errorf("provider called with %s %v", env.provider.lastTool, env.provider.lastInput)
	}
}

func TestExecuteTool_FailureResponses(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantKind   failure.Kind
		wantDead   int
	}{
		{
			name:       "retryable exhausted",
			err:        failure.NewStatusError("/actions/X/execute", http.StatusServiceUnavailable, nil, 0),
			wantStatus: http.StatusServiceUnavailable,
			wantKind:   failure.KindServerError,
			wantDead:   1,
		},
		{
			name:       "permission",
			err:        failure.NewStatusError("/actions/X/execute", http.StatusForbidden, []byte(`{"error":{"code":"APP_NOT_CONNECTED"}}`), 0),
			wantStatus: http.StatusForbidden,
			wantKind:   failure.KindPermission,
			wantDead:   0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv()
			env.provider.executeErr = tt.err

			rec, body := env.do(t, http.MethodPost, "/api/tools/X/execute", `{"input":{}}`)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if body.Success || body.Error == nil || body.Error.Kind != tt.wantKind {
				t.Fatalf("unexpected body: %s", rec.Body.String())
			}
			if body.Error.Retryable != tt.wantKind.Retryable() {
				t.Errorf("retryable = %v", body.Error.Retryable)
			}
			if body.Error.SuggestedAction == "" {
				t.Error("expected a suggested action")
			}

			n, _ := env.dead.Count(context.Background())
			if n != tt.wantDead {
				t.Errorf("dead letters = %d, want %d", n, tt.wantDead)
			}
			recent, _ := env.failures.Recent(context.Background(), 10)
			if len(recent) != 1 || recent[0].Operation != vendor.OpExecuteTool {
				t.Errorf("expected one failure record, got %+v", recent)
			}
			if recent[0].RequestID != rec.Header().Get(RequestIDHeader) {
				t.Error("failure record should carry the request id")
			}
		})
	}
}

func TestExecuteTool_InvalidBody(t *testing.T) {
	env := newTestEnv()
	rec, body := env.do(t, http.MethodPost, "/api/tools/X/execute", `{not json`)

	if rec.Code != http.StatusBadRequest || body.Error == nil || body.Error.Kind != failure.KindValidation {
		t.Errorf("unexpected response %d: %s", rec.Code, rec.Body.String())
	}
	if env.provider.lastTool != "" {
		t.Error("provider should not be called")
	}
}

func TestGetConnection_NotFound(t *testing.T) {
	env := newTestEnv()
	rec, body := env.do(t, http.MethodGet, "/api/connections/ca_9", "")

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	if body.Error == nil || body.Error.Message != "no such account" || body.Error.ErrorCode != "TOOL_NOT_FOUND" {
		t.Errorf("unexpected error: %s", rec.Body.String())
	}
}

func TestValidateKey(t *testing.T) {
	env := newTestEnv()
	rec, body := env.do(t, http.MethodPost, "/api/keys/validate", `{"api_key":"k"}`)
	if rec.Code != http.StatusOK || !body.Success {
		t.Fatalf("unexpected response %d: %s", rec.Code, rec.Body.String())
	}

	env.provider.keyErr = failure.NewStatusError("/client/auth/client_info", http.StatusUnauthorized, []byte(`{"error":{"code":"INVALID_API_KEY"}}`), 0)
	rec, body = env.do(t, http.MethodPost, "/api/keys/validate", `{"api_key":"bad"}`)
	if rec.Code != http.StatusUnauthorized || body.Error.Kind != failure.KindAuth || body.Error.Retryable {
		t.Errorf("unexpected response %d: %s", rec.Code, rec.Body.String())
	}
}

func TestRequestID_KeepsCallerValue(t *testing.T) {
	env := newTestEnv()
	req := httptest.NewRequest(http.MethodGet, "/api/apps", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	if got := rec.Header().Get(RequestIDHeader); got != "req-123" {
		t.Errorf("request id = %q", got)
	}
}

func TestListDeadLettersAndFailures(t *testing.T) {
	env := newTestEnv()
	env.provider.executeErr = failure.NewStatusError("/actions/X/execute", http.StatusBadGateway, nil, 0)
	env.do(t, http.MethodPost, "/api/tools/X/execute", `{"input":{"a":1}}`)

	_, body := env.do(t, http.MethodGet, "/api/dead-letters", "")
	var letters []map[string]any
	if err := json.Unmarshal(body.Data, &letters); err != nil || len(letters) != 1 || letters[0]["tool"] != "X" {
		t.Errorf("unexpected dead letters: %s", body.Data)
	}

	_, body = env.do(t, http.MethodGet, "/api/failures?limit=5", "")
	var summary struct {
		Records []map[string]any     `json:"records"`
		Totals  map[failure.Kind]int `json:"totals"`
	}
	if err := json.Unmarshal(body.Data, &summary); err != nil || len(summary.Records) != 1 {
		t.Errorf("unexpected failures: %s", body.Data)
	}
	if summary.Totals[failure.KindServerError] != 1 {
		t.Errorf("expected one server_error in totals, got %v", summary.Totals)
	}
}

func TestRecentFailures_TotalsCoverEveryKind(t *testing.T) {
	env := newTestEnv()
	env.do(t, http.MethodGet, "/api/connections/ca_1", "")
	env.do(t, http.MethodGet, "/api/connections/ca_2", "")

	_, body := env.do(t, http.MethodGet, "/api/failures", "")
	var summary struct {
		Records []map[string]any     `json:"records"`
		Totals  map[failure.Kind]int `json:"totals"`
	}
	if err := json.Unmarshal(body.Data, &summary); err != nil {
		t.Fatalf("failed to decode summary %s: %v", body.Data, err)
	}
	if len(summary.Records) != 2 {
		t.Errorf("expected 2 records, got %d", len(summary.Records))
	}
	if len(summary.Totals) != len(failure.Kinds()) {
		t.Errorf("expected a total for every kind, got %v", summary.Totals)
	}
	for _, k := range failure.Kinds() {
		if _, ok := summary.Totals[k]; !ok {
			t.Errorf("missing total for %s", k)
		}
	}
	if summary.Totals[failure.KindToolNotFound] != 2 {
		t.Errorf("tool_not_found total = %d, want 2", summary.Totals[failure.KindToolNotFound])
	}
}
