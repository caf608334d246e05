package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/seoinsight/seoinsight/internal/apperrors"
	"github.com/seoinsight/seoinsight/internal/handler"
	"github.com/seoinsight/seoinsight/internal/middleware"
	"github.com/seoinsight/seoinsight/internal/models"
	"github.com/seoinsight/seoinsight/internal/pipeline"
)

type fakeService struct {
	resp    *models.ChatResponse
	err     error
	gotAsk  pipeline.AskInput
	gotSave pipeline.SaveCredentialInput
	calls   int
}

func (f *fakeService) Ask(_ context.Context, in pipeline.AskInput) (*models.ChatResponse, error) {
	f.calls++
	f.gotAsk = in
	return f.resp, f.err
}

func (f *fakeService) SaveCredential(_ context.Context, in pipeline.SaveCredentialInput) (pipeline.SaveCredentialResult, error) {
	f.calls++
	f.gotSave = in
	if f.err != nil {
		return pipeline.SaveCredentialResult{}, f.err
	}
	return pipeline.SaveCredentialResult{Provider: "anthropic", Model: "claude-3-5-haiku-latest"}, nil
}

func postJSON(h http.HandlerFunc, path, body string, mutate ...func(*http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for _, m := range mutate {
		m(req)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode body %q: %v", rr.Body.String(), err)
	}
	return out
}

// ─── Chat ─────────────────────────────────────────────────────────────────────

func TestChatSuccess(t *testing.T) {
	sql := "SELECT 1"
	svc := &fakeService{resp: &models.ChatResponse{
		Summary:   "Traffic is up.",
		Data:      []map[string]any{{"country": "US"}},
		ChartType: "bar",
		SQL:       &sql,
		RowCount:  1,
		SessionID: "s1",
	}}
	h := handler.NewChatHandler(svc)

	rr := postJSON(h.Chat, "/api/v1/chat", `{"message":" Show me traffic by country this month ","userId":"u1"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body)
	}
	if svc.gotAsk.Question != "Show me traffic by country this month" || svc.gotAsk.TenantID != "u1" {
		t.Errorf("Ask input = %+v", svc.gotAsk)
	}
	body := decode(t, rr)
	if body["chartType"] != "bar" || body["rowCount"] != float64(1) || body["sql"] != "SELECT 1" {
		t.Errorf("body = %v", body)
	}
}

func TestChatValidation(t *testing.T) {
	tests := map[string]string{
		"bad json":        `{"message":`,
		"missing message": `{"userId":"u1"}`,
		"missing user":    `{"message":"hi"}`,
	}
	for name, body := range tests {
		svc := &fakeService{}
		rr := postJSON(handler.NewChatHandler(svc).Chat, "/api/v1/chat", body)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d", name, rr.Code)
		}
		if svc.calls != 0 {
			t.Errorf("%s: pipeline should not run", name)
		}
	}
}

func TestChatErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		want   string
	}{
		{"credential missing", apperrors.New(apperrors.KindCredentialMissing, "none", nil), 400, "AI provider not configured"},
		{"decryption", apperrors.Decryption("authentication failed", nil), 400, "re-enter your API key"},
		{"provider", apperrors.LLMProvider("groq", "rate limited or quota exceeded", nil), 502, "groq"},
		{"guard", apperrors.SQLValidation("DROP statements are not allowed"), 400, "DROP statements are not allowed"},
		{"execution", apperrors.Execution(`relation "foo" does not exist`, nil), 422, `relation "foo"`},
		{"configuration", apperrors.Configuration("encryption key is not set", nil), 500, "server configuration error"},
		{"unclassified", errors.New("dial tcp 10.0.0.5:5432: refused"), 500, "internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := handler.NewChatHandler(&fakeService{err: tt.err})
			rr := postJSON(h.Chat, "/api/v1/chat", `{"message":"hi","userId":"u1"}`)
			if rr.Code != tt.status {
				t.Errorf("status = %d, want %d", rr.Code, tt.status)
			}
			msg, _ := decode(t, rr)["error"].(string)
			if !strings.Contains(msg, tt.want) {
				t.Errorf("error = %q, want it to contain %q", msg, tt.want)
			}
			if strings.Contains(msg, "10.0.0.5") || strings.Contains(msg, "encryption key") {
				t.Errorf("error leaks internals: %q", msg)
			}
		})
	}
}

func TestChatSubjectMustMatchUser(t *testing.T) {
	const secret = "super-secret-jwt-token-with-at-least-32-characters"
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "u1", "exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(secret))
	if err != nil {
		t.Fatal(err)
	}

	svc := &fakeService{resp: &models.ChatResponse{ChartType: "none"}}
	h := middleware.Auth(middleware.AuthConfig{JWTSecret: secret})(http.HandlerFunc(handler.NewChatHandler(svc).Chat))
	withToken := func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+tok) }

	rr := postJSON(h.ServeHTTP, "/api/v1/chat", `{"message":"hi","userId":"u2"}`, withToken)
	if rr.Code != http.StatusForbidden {
		t.Errorf("other tenant: status = %d, want 403", rr.Code)
	}
	if svc.calls != 0 {
		t.Error("pipeline ran for a mismatched user")
	}

	rr = postJSON(h.ServeHTTP, "/api/v1/chat", `{"message":"hi","userId":"u1"}`, withToken)
	if rr.Code != http.StatusOK {
		t.Errorf("own tenant: status = %d, want 200", rr.Code)
	}
}

// ─── Settings ─────────────────────────────────────────────────────────────────

func TestSaveSettings(t *testing.T) {
	svc := &fakeService{}
	h := handler.NewSettingsHandler(svc)

	rr := postJSON(h.SaveAI, "/api/v1/settings/ai", `{"userId":"u1","provider":"Anthropic","apiKey":"sk-ant-123"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body)
	}
	if strings.Contains(rr.Body.String(), "sk-ant-123") {
		t.Error("response must not echo the API key")
	}
	body := decode(t, rr)
	if body["success"] != true || body["provider"] != "anthropic" {
		t.Errorf("body = %v", body)
	}
	if svc.gotSave.Provider != "anthropic" || svc.gotSave.APIKey != "sk-ant-123" {
		t.Errorf("SaveCredential input = %+v", svc.gotSave)
	}
}

func TestSaveSettingsValidation(t *testing.T) {
	svc := &fakeService{}
	h := handler.NewSettingsHandler(svc)
	for _, body := range []string{`{"provider":"openai","apiKey":"k"}`, `{"userId":"u1","provider":"openai"}`} {
		if rr := postJSON(h.SaveAI, "/api/v1/settings/ai", body); rr.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d", body, rr.Code)
		}
	}

	svc.err = apperrors.InvalidInput(`unsupported provider "cohere"`)
	rr := postJSON(h.SaveAI, "/api/v1/settings/ai", `{"userId":"u1","provider":"cohere","apiKey":"k"}`)
	if rr.Code != http.StatusBadRequest || !strings.Contains(rr.Body.String(), "cohere") {
		t.Errorf("status = %d, body = %s", rr.Code, rr.Body)
	}
}

// ─── Health ───────────────────────────────────────────────────────────────────

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func TestHealth(t *testing.T) {
	h := handler.NewHealthHandler(map[string]handler.Pinger{
		"database":      pinger{},
		"elasticsearch": nil,
	})
	rr := httptest.NewRecorder()
	h.Health(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	checks := decode(t, rr)["checks"].(map[string]any)
	if checks["database"] != "ok" || checks["elasticsearch"] != "disabled" {
		t.Errorf("checks = %v", checks)
	}
}

func TestHealthDegraded(t *testing.T) {
	h := handler.NewHealthHandler(map[string]handler.Pinger{
		"database": pinger{err: errors.New("connection refused")},
	})
	rr := httptest.NewRecorder()
	h.Health(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rr.Code)
	}
	if decode(t, rr)["status"] != "degraded" {
		t.Errorf("body = %s", rr.Body)
	}
}
