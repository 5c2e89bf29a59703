package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/gin-gonic/gin"

	"skychat/internal/config"
	"skychat/internal/history"
	"skychat/internal/models"
	"skychat/internal/service/ai"
	"skychat/internal/service/chat"
	"skychat/internal/storage"
	"skychat/internal/weather"
)

func TestRootLiveness(t *testing.T) {
	router := newTestServer(t, &mockModel{}, history.Disabled())

	rec := doJSONRequest(t, router, http.MethodGet, "/", nil, nil)
	assertStatus(t, rec, http.StatusOK)
	var body map[string]string
	decodeJSON(t, rec.Body.Bytes(), &body)
	if body["message"] != "Backend is running" {
		t.Fatalf("unexpected body %v", body)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatalf("expected generated request id")
	}
}

func TestRequestIDIsEchoed(t *testing.T) {
	router := newTestServer(t, &mockModel{}, history.Disabled())
	rec := doJSONRequest(t, router, http.MethodGet, "/", nil, map[string]string{"X-Request-ID": "abc-123"})
	if got := rec.Header().Get("X-Request-ID"); got != "abc-123" {
		t.Fatalf("want echoed request id, got %q", got)
	}
}

func TestHandlersEndToEndFlow(t *testing.T) {
	m := &mockModel{replies: []*schema.Message{
		{
			Role: schema.Assistant,
			ToolCalls: []schema.ToolCall{{
				ID:       "call-1",
				Function: schema.FunctionCall{Name: ai.WeatherToolName, Arguments: `{"location":"Paris"}`},
			}},
		},
		schema.AssistantMessage("It's 18.2°C with clear sky in Paris.", nil),
	}}
	router := newTestServer(t, m, openSQLiteStore(t))

	chatResp := doJSONRequest(t, router, http.MethodPost, "/chat", map[string]string{
		"userId":  "u1",
		"message": "What's the weather in Paris?",
	}, nil)
	assertStatus(t, chatResp, http.StatusOK)
	var chatBody struct {
		Response string `json:"response"`
	}
	decodeJSON(t, chatResp.Body.Bytes(), &chatBody)
	if chatBody.Response != "It's 18.2°C with clear sky in Paris." {
		t.Fatalf("unexpected response %q", chatBody.Response)
	}

	histResp := doJSONRequest(t, router, http.MethodGet, "/history/u1", nil, nil)
	assertStatus(t, histResp, http.StatusOK)
	var histBody struct {
		History []models.Message `json:"history"`
	}
	decodeJSON(t, histResp.Body.Bytes(), &histBody)
	if len(histBody.History) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(histBody.History))
	}
	first, second := histBody.History[0], histBody.History[1]
	if first.Sender != models.SenderUser || first.Text != "What's the weather in Paris?" {
		t.Fatalf("unexpected first entry %+v", first)
	}
	if second.Sender != models.SenderBot || second.Text != chatBody.Response {
		t.Fatalf("unexpected second entry %+v", second)
	}
	if first.UserID != "u1" || !(first.Timestamp < second.Timestamp) {
		t.Fatalf("history must be ascending for u1: %+v", histBody.History)
	}

	// field names follow the stored item layout
	raw := histResp.Body.String()
	for _, key := range []string{`"UserID"`, `"Timestamp"`, `"Sender"`, `"Message"`} {
		if !strings.Contains(raw, key) {
			t.Fatalf("history json missing %s: %s", key, raw)
		}
	}
}

func TestChatValidation(t *testing.T) {
	store := openSQLiteStore(t)
	m := &mockModel{}
	router := newTestServer(t, m, store)

	cases := []struct {
		name string
		body any
	}{
		{"empty message", map[string]string{"userId": "u1", "message": ""}},
		{"missing user", map[string]string{"message": "hello"}},
		{"empty object", map[string]string{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doJSONRequest(t, router, http.MethodPost, "/chat", tc.body, nil)
			assertStatus(t, rec, http.StatusBadRequest)
			var body map[string]string
			decodeJSON(t, rec.Body.Bytes(), &body)
			if body["error"] != "userId and message cannot be empty" {
				t.Fatalf("unexpected error body %v", body)
			}
		})
	}

	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assertStatus(t, rec, http.StatusBadRequest)

	if calls := m.callCount(); calls != 0 {
		t.Fatalf("model must not be called, got %d calls", calls)
	}
	msgs, err := store.Query(context.Background(), "u1", 10)
	if err != nil || len(msgs) != 0 {
		t.Fatalf("nothing should be stored, got %v %v", msgs, err)
	}
}

func TestChatModelFailure(t *testing.T) {
	store := openSQLiteStore(t)
	router := newTestServer(t, &mockModel{err: errors.New("quota exceeded")}, store)

	rec := doJSONRequest(t, router, http.MethodPost, "/chat", map[string]string{"userId": "u1", "message": "hi"}, nil)
	assertStatus(t, rec, http.StatusInternalServerError)
	var body map[string]string
	decodeJSON(t, rec.Body.Bytes(), &body)
	if !strings.Contains(body["error"], "quota exceeded") {
		t.Fatalf("unexpected error body %v", body)
	}

	msgs, err := store.Query(context.Background(), "u1", 10)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Sender != models.SenderUser {
		t.Fatalf("only the user message should be stored, got %+v", msgs)
	}
}

func TestDegradedStoreStillChats(t *testing.T) {
	m := &mockModel{replies: []*schema.Message{schema.AssistantMessage("hello!", nil)}}
	router := newTestServer(t, m, history.Disabled())

	rec := doJSONRequest(t, router, http.MethodPost, "/chat", map[string]string{"userId": "u1", "message": "hi"}, nil)
	assertStatus(t, rec, http.StatusOK)

	histResp := doJSONRequest(t, router, http.MethodGet, "/history/u1", nil, nil)
	assertStatus(t, histResp, http.StatusOK)
	if got := strings.TrimSpace(histResp.Body.String()); got != `{"history":[]}` {
		t.Fatalf("expected empty history, got %s", got)
	}
}

func TestHistoryUnknownUserIsEmpty(t *testing.T) {
	router := newTestServer(t, &mockModel{}, openSQLiteStore(t))
	rec := doJSONRequest(t, router, http.MethodGet, "/history/nobody", nil, nil)
	assertStatus(t, rec, http.StatusOK)
	if got := strings.TrimSpace(rec.Body.String()); got != `{"history":[]}` {
		t.Fatalf("expected empty history, got %s", got)
	}
}

func TestHistoryStoreFailure(t *testing.T) {
	router := newTestServer(t, &mockModel{}, failingStore{})
	rec := doJSONRequest(t, router, http.MethodGet, "/history/u1", nil, nil)
	assertStatus(t, rec, http.StatusInternalServerError)
	var body map[string]string
	decodeJSON(t, rec.Body.Bytes(), &body)
	if body["error"] == "" {
		t.Fatalf("expected error message")
	}
}

func TestCORSPreflight(t *testing.T) {
	router := newTestServer(t, &mockModel{}, history.Disabled())

	req := httptest.NewRequest(http.MethodOptions, "/chat", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Content-Type")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK && rec.Code != http.StatusNoContent {
		t.Fatalf("unexpected preflight status %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://example.com" {
		t.Fatalf("unexpected allow-origin %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Fatalf("credentials should be allowed, got %q", got)
	}
}

func TestCORSSimpleRequest(t *testing.T) {
	router := newTestServer(t, &mockModel{}, history.Disabled())
	rec := doJSONRequest(t, router, http.MethodGet, "/", nil, map[string]string{"Origin": "https://app.example.org"})
	assertStatus(t, rec, http.StatusOK)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.org" {
		t.Fatalf("unexpected allow-origin %q", got)
	}
}

// mockModel replays scripted replies, or fails every call when err is set.
type mockModel struct {
	mu      sync.Mutex
	replies []*schema.Message
	err     error
	calls   int
}

func (m *mockModel) Generate(context.Context, []*schema.Message, ...model.Option) (*schema.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if len(m.replies) == 0 {
		return schema.AssistantMessage("ok", nil), nil
	}
	next := m.replies[0]
	m.replies = m.replies[1:]
	return next, nil
}

func (m *mockModel) Stream(context.Context, []*schema.Message, ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("stream not supported")
}

func (m *mockModel) WithTools([]*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	return m, nil
}

func (m *mockModel) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type stubWeather struct{}

func (stubWeather) Lookup(_ context.Context, location string, unit weather.Unit) weather.Result {
	return weather.Result{Report: &weather.Report{
		Location: location, Temperature: 18.2, Unit: unit, Conditions: "clear sky",
	}}
}

type failingStore struct{}

func (failingStore) Put(context.Context, models.Message) error { return errors.New("table not found") }
func (failingStore) Query(context.Context, string, int) ([]models.Message, error) {
	return nil, errors.New("table not found")
}
func (failingStore) Close() error { return nil }

func newTestServer(t *testing.T, m model.ToolCallingChatModel, store history.Store) http.Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)

	aiSvc, err := ai.NewServiceWithModel(context.Background(), m, ai.NewWeatherTool(stubWeather{}))
	if err != nil {
		t.Fatalf("ai service: %v", err)
	}
	chatSvc := chat.NewService(aiSvc, history.NewRecorder(store), chat.Options{})
	return NewRouter(NewHandler(chatSvc))
}

func openSQLiteStore(t *testing.T) history.Store {
	t.Helper()
	cfg := &config.Config{Databases: map[string]config.DatabaseConfig{
		"sqlite3": {DSN: ":memory:"},
	}}
	db, err := storage.Open("sqlite3", cfg)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := storage.Migrate(db, "sqlite3"); err != nil {
		t.Fatalf("migrate db: %v", err)
	}
	store := history.NewSQLStore(db, "sqlite3")
	t.Cleanup(func() { store.Close() })
	return store
}

func doJSONRequest(t *testing.T, router http.Handler, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, data []byte, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(data, v); err != nil {
		t.Fatalf("decode json: %v", err)
	}
}

func assertStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("unexpected status %d, body: %s", rec.Code, rec.Body.String())
	}
}
