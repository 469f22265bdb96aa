package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samanhappy/selectly/pkg/config"
	"github.com/samanhappy/selectly/pkg/model"
	"github.com/samanhappy/selectly/pkg/storage"
)

type memKV struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemKV() *memKV {
	return &memKV{data: make(map[string][]byte)}
}

func (m *memKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	value, ok := m.data[key]
	return value, ok, nil
}

func (m *memKV) Set(ctx context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), value...)
	return nil
}

type testEnv struct {
	api     *httptest.Server
	configs *config.Store
	records *storage.Store
	router  *model.Router
}

func newTestEnv(t *testing.T, upstream string) *testEnv {
	t.Helper()

	configs := config.NewStore(newMemKV(), config.StoreOptions{
		Language:         "en",
		DebounceInterval: time.Millisecond,
	})
	configs.Load(context.Background())

	if upstream != "" {
		configs.Save(context.Background(), &config.Partial{
			LLM: &config.PartialLLM{
				DefaultModel: "test/test-model",
				Providers: map[string]config.Provider{
					"test": {ID: "test", Name: "Test", BaseURL: upstream, APIKey: "sk-x", Enabled: true},
				},
			},
		})
	}

	records, err := storage.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = records.Close() })

	router := model.NewRouter(model.RouterOptions{CloudBaseURL: "http://127.0.0.1:1"})
	router.Configure(configs.Current(context.Background()).LLM)

	srv := NewServer(Config{Version: "test"}, configs, records, router, nil)
	api := httptest.NewServer(srv.Routes())
	t.Cleanup(api.Close)

	return &testEnv{api: api, configs: configs, records: records, router: router}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, e.api.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t, "")

	resp := env.do(t, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	decodeBody(t, resp, &body)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "test", body["version"])
}

func TestConfigRoundTrip(t *testing.T) {
	env := newTestEnv(t, "")

	resp := env.do(t, http.MethodGet, "/api/config", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var cfg config.UserConfig
	decodeBody(t, resp, &cfg)
	assert.Equal(t, "en", cfg.General.Language)

	resp = env.do(t, http.MethodPut, "/api/config", map[string]any{
		"general": map[string]any{"language": "zh-CN"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &cfg)
	assert.Equal(t, "zh-CN", cfg.General.Language)

	resp = env.do(t, http.MethodGet, "/api/config", nil)
	decodeBody(t, resp, &cfg)
	assert.Equal(t, "zh-CN", cfg.General.Language, "save persists into subsequent reads")
}

func TestConfigExportImport(t *testing.T) {
	env := newTestEnv(t, "")

	env.do(t, http.MethodPut, "/api/config", map[string]any{
		"general": map[string]any{"language": "zh-CN"},
	})

	resp := env.do(t, http.MethodGet, "/api/config/export", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "selectly-config-")

	var backup bytes.Buffer
	_, err := backup.ReadFrom(resp.Body)
	require.NoError(t, err)

	// Reset language, then import the backup.
	env.do(t, http.MethodPut, "/api/config", map[string]any{
		"general": map[string]any{"language": "en"},
	})

	req, err := http.NewRequest(http.MethodPost, env.api.URL+"/api/config/import", &backup)
	require.NoError(t, err)
	importResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer importResp.Body.Close()
	require.Equal(t, http.StatusOK, importResp.StatusCode)

	var cfg config.UserConfig
	decodeBody(t, importResp, &cfg)
	assert.Equal(t, "zh-CN", cfg.General.Language, "import restores the exported configuration")
}

func TestProviderEndpoints(t *testing.T) {
	env := newTestEnv(t, "")

	resp := env.do(t, http.MethodPut, "/api/providers/my_ollama", config.Provider{
		Name: "Ollama", BaseURL: "http://localhost:11434/v1", APIKey: "x", Enabled: true,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var listed struct {
		Providers []config.Provider `json:"providers"`
	}
	resp = env.do(t, http.MethodGet, "/api/providers", nil)
	decodeBody(t, resp, &listed)
	require.NotEmpty(t, listed.Providers)
	assert.Equal(t, config.CloudProviderID, listed.Providers[0].ID, "cloud provider is always listed first")

	found := false
	for _, p := range listed.Providers {
		if p.ID == "my_ollama" {
			found = true
		}
	}
	assert.True(t, found, "custom provider appears in the list")

	// Built-in providers cannot be removed.
	resp = env.do(t, http.MethodDelete, "/api/providers/openai", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = env.do(t, http.MethodDelete, "/api/providers/my_ollama", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestChatEndpoint(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"pong"}}]}`)
	}))
	defer upstream.Close()

	env := newTestEnv(t, upstream.URL)

	resp := env.do(t, http.MethodPost, "/api/chat", map[string]any{"prompt": "ping"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	decodeBody(t, resp, &body)
	assert.Equal(t, "pong", body["content"])
}

func TestChatEndpointMessagesOnly(t *testing.T) {
	var gotContents []string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		for _, m := range req.Messages {
			gotContents = append(gotContents, m.Content)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"pong"}}]}`)
	}))
	defer upstream.Close()

	env := newTestEnv(t, upstream.URL)

	// A messages-only body must dispatch the messages, not an empty prompt.
	resp := env.do(t, http.MethodPost, "/api/chat", map[string]any{
		"messages": []map[string]string{
			{"role": "system", "content": "be brief"},
			{"role": "user", "content": "ping"},
		},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	decodeBody(t, resp, &body)
	assert.Equal(t, "pong", body["content"])
	assert.Equal(t, []string{"be brief", "ping"}, gotContents)
}

func TestChatEndpointValidation(t *testing.T) {
	env := newTestEnv(t, "")
	resp := env.do(t, http.MethodPost, "/api/chat", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestChatEndpointProviderNotConfigured(t *testing.T) {
	env := newTestEnv(t, "")
	resp := env.do(t, http.MethodPost, "/api/chat", map[string]any{
		"prompt": "hi", "model": "openai/gpt-5-mini",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestChatStreamSSE(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"model\":\"test-model\",\"choices\":[{\"delta\":{\"content\":\"He\"}}]}\n\n")
		fmt.Fprint(w, "data: {\"model\":\"test-model\",\"choices\":[{\"delta\":{\"content\":\"llo\"}}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer upstream.Close()

	env := newTestEnv(t, upstream.URL)

	resp := env.do(t, http.MethodPost, "/api/chat/stream", map[string]any{"prompt": "hi"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	var deltas []string
	var sawDone bool
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "event: done" {
			sawDone = true
			continue
		}
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var frame struct {
			Delta string `json:"delta"`
		}
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &frame); err == nil && frame.Delta != "" {
			deltas = append(deltas, frame.Delta)
		}
	}
	assert.Equal(t, []string{"He", "llo"}, deltas, "deltas relayed in order")
	assert.True(t, sawDone, "stream ends with a done event")
}

func TestRecordEndpoints(t *testing.T) {
	env := newTestEnv(t, "")

	resp := env.do(t, http.MethodPost, "/api/records", map[string]any{
		"content": "collected text", "sourceUrl": "https://example.com",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var rec storage.CollectionRecord
	decodeBody(t, resp, &rec)
	require.NotEmpty(t, rec.ID)

	// Same content again conflicts.
	resp = env.do(t, http.MethodPost, "/api/records", map[string]any{"content": "collected text"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = env.do(t, http.MethodPut, "/api/records/"+rec.ID+"/note", map[string]any{"note": "keep"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var listed struct {
		Records []storage.CollectionRecord `json:"records"`
	}
	resp = env.do(t, http.MethodGet, "/api/records", nil)
	decodeBody(t, resp, &listed)
	require.Len(t, listed.Records, 1)
	assert.Equal(t, "keep", listed.Records[0].Note)

	resp = env.do(t, http.MethodGet, "/api/records/export?format=csv", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/csv")

	var csvBody bytes.Buffer
	_, err := csvBody.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, csvBody.String(), "collected text")

	resp = env.do(t, http.MethodDelete, "/api/records/"+rec.ID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t, "")

	req, err := http.NewRequest(http.MethodOptions, env.api.URL+"/api/config", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "chrome-extension://abcdefg")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "chrome-extension://abcdefg", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestSecurityHeaders(t *testing.T) {
	env := newTestEnv(t, "")
	resp := env.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", resp.Header.Get("X-Frame-Options"))
}
