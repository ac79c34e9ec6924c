package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/WessleyAI/polidossier/engine/domain"
	"github.com/WessleyAI/polidossier/pkg/metrics"
	"github.com/WessleyAI/polidossier/pkg/resilience"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestDecodeJSON(t *testing.T) {
	type reply struct {
		Name string `json:"name"`
	}
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{`{"name":"Jane Doe"}`, "Jane Doe", false},
		{"  {\"name\":\"Jane\"}\n", "Jane", false},
		{"```json\n{\"name\":\"Fenced\"}\n```", "Fenced", false},
		{"```\n{\"name\":\"Bare\"}\n```", "Bare", false},
		{`["not","an","object"]`, "", true},
		{`Sorry, I cannot help with that.`, "", true},
		{`{"name":`, "", true},
		{``, "", true},
	}
	for _, c := range cases {
		got, err := DecodeJSON[reply](c.in)
		if c.wantErr {
			if !errors.Is(err, domain.ErrMalformedUpstream) {
				t.Errorf("%q: expected ErrMalformedUpstream, got %v", c.in, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("%q: unexpected error %v", c.in, err)
			continue
		}
		if got.Name != c.want {
			t.Errorf("%q: got %q, want %q", c.in, got.Name, c.want)
		}
	}
}

func TestNewUnknownProvider(t *testing.T) {
	if _, err := New(context.Background(), Config{Provider: "carrier-pigeon"}); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestNewRequiresKeys(t *testing.T) {
	if _, err := New(context.Background(), Config{Provider: ProviderOpenAI}); err == nil {
		t.Fatal("expected error without OpenAI key")
	}
	if _, err := New(context.Background(), Config{Provider: ProviderGemini}); err == nil {
		t.Fatal("expected error without Gemini key")
	}
	gw, err := New(context.Background(), Config{Provider: "OLLAMA"})
	if err != nil {
		t.Fatal(err)
	}
	if o, ok := gw.(*Ollama); !ok || o.baseURL != DefaultOllamaURL || o.model != DefaultOllamaModel {
		t.Fatalf("unexpected gateway %#v", gw)
	}
}

func openAIServer(t *testing.T, content string, seen *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("unexpected auth header %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		if seen != nil {
			_ = json.Unmarshal(body, seen)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": time.Now().Unix(),
			"model":   "gpt-4o-mini",
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": content},
				"finish_reason": "stop",
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAIComplete(t *testing.T) {
	var seen map[string]any
	srv := openAIServer(t, `{"name":"Jane Doe"}`, &seen)

	gw, err := NewOpenAI("sk-test", "", srv.URL+"/v1", srv.Client())
	if err != nil {
		t.Fatal(err)
	}
	out, err := gw.Complete(context.Background(), "system text", "user text", true)
	if err != nil {
		t.Fatal(err)
	}
	if out != `{"name":"Jane Doe"}` {
		t.Fatalf("unexpected completion %q", out)
	}
	if seen["model"] != DefaultOpenAIModel {
		t.Fatalf("expected default model, got %v", seen["model"])
	}
	rf, _ := seen["response_format"].(map[string]any)
	if rf["type"] != "json_object" {
		t.Fatalf("expected json_object response format, got %v", seen["response_format"])
	}
	msgs, _ := seen["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("expected system and user messages, got %v", msgs)
	}
	first, _ := msgs[0].(map[string]any)
	if first["role"] != "system" || first["content"] != "system text" {
		t.Fatalf("unexpected system message %v", first)
	}
}

func TestOpenAIPlainText(t *testing.T) {
	var seen map[string]any
	srv := openAIServer(t, "https://example.org/jane.jpg", &seen)

	gw, _ := NewOpenAI("sk-test", "gpt-4o", srv.URL+"/v1", srv.Client())
	out, err := gw.Complete(context.Background(), "s", "u", false)
	if err != nil {
		t.Fatal(err)
	}
	if out != "https://example.org/jane.jpg" {
		t.Fatalf("unexpected completion %q", out)
	}
	if _, ok := seen["response_format"]; ok {
		t.Fatal("plain text request must not set response_format")
	}
	if seen["model"] != "gpt-4o" {
		t.Fatalf("expected configured model, got %v", seen["model"])
	}
}

func TestOpenAIUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	gw, _ := NewOpenAI("sk-test", "", srv.URL+"/v1", srv.Client())
	_, err := gw.Complete(context.Background(), "s", "u", true)
	if !errors.Is(err, domain.ErrUpstreamUnavailable) {
		t.Fatalf("expected ErrUpstreamUnavailable, got %v", err)
	}
}

func TestOllamaComplete(t *testing.T) {
	var got ollamaChatReq
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/chat" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(ollamaChatResp{
			Message: ollamaMessage{Role: "assistant", Content: `{"success":false}`},
			Done:    true,
		})
	}))
	defer srv.Close()

	gw := NewOllama(srv.URL+"/", "llama3", srv.Client())
	out, err := gw.Complete(context.Background(), "sys", "usr", true)
	if err != nil {
		t.Fatal(err)
	}
	if out != `{"success":false}` {
		t.Fatalf("unexpected completion %q", out)
	}
	if got.Model != "llama3" || got.Stream || got.Format != "json" || len(got.Messages) != 2 {
		t.Fatalf("unexpected request %+v", got)
	}
}

func TestOllamaErrors(t *testing.T) {
	badGateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer badGateway.Close()
	garbage := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer garbage.Close()

	for name, url := range map[string]string{"502": badGateway.URL, "bad body": garbage.URL} {
		_, err := NewOllama(url, "", nil).Complete(context.Background(), "s", "u", false)
		if !errors.Is(err, domain.ErrUpstreamUnavailable) {
			t.Errorf("%s: expected ErrUpstreamUnavailable, got %v", name, err)
		}
	}

	closed := httptest.NewServer(http.NotFoundHandler())
	closed.Close()
	if _, err := NewOllama(closed.URL, "", nil).Complete(context.Background(), "s", "u", false); !errors.Is(err, domain.ErrUpstreamUnavailable) {
		t.Fatalf("expected ErrUpstreamUnavailable on refused connection, got %v", err)
	}
}

func TestGuardedOpensAfterFailures(t *testing.T) {
	var calls atomic.Int32
	failing := GatewayFunc(func(context.Context, string, string, bool) (string, error) {
		calls.Add(1)
		return "", domain.ErrUpstreamUnavailable
	})
	b := resilience.NewBreaker(resilience.BreakerOpts{FailThreshold: 2, Timeout: time.Hour})
	gw := Guarded(failing, b)

	for i := 0; i < 2; i++ {
		if _, err := gw.Complete(context.Background(), "s", "u", true); !errors.Is(err, domain.ErrUpstreamUnavailable) {
			t.Fatalf("call %d: unexpected error %v", i, err)
		}
	}
	_, err := gw.Complete(context.Background(), "s", "u", true)
	if !errors.Is(err, domain.ErrUpstreamUnavailable) || !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Fatalf("expected open breaker to surface as upstream unavailable, got %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected open breaker to skip provider, got %d calls", calls.Load())
	}
}

func TestGuardedPassesThrough(t *testing.T) {
	ok := GatewayFunc(func(_ context.Context, system, user string, expectJSON bool) (string, error) {
		if !expectJSON {
			t.Error("expectJSON lost")
		}
		return system + "|" + user, nil
	})
	out, err := Guarded(ok, resilience.NewBreaker(resilience.DefaultBreakerOpts)).Complete(context.Background(), "a", "b", true)
	if err != nil || out != "a|b" {
		t.Fatalf("got %q, %v", out, err)
	}
}

func TestInstrumentedRecordsCalls(t *testing.T) {
	m := metrics.New()
	fail := true
	gw := Instrumented(GatewayFunc(func(context.Context, string, string, bool) (string, error) {
		if fail {
			return "", domain.ErrUpstreamUnavailable
		}
		return "{}", nil
	}), ProviderOpenAI, m)

	_, _ = gw.Complete(context.Background(), "s", "u", true)
	fail = false
	_, _ = gw.Complete(context.Background(), "s", "u", true)
	_, _ = gw.Complete(context.Background(), "s", "u", true)

	if got := testutil.ToFloat64(m.OracleCalls.WithLabelValues(ProviderOpenAI, "error")); got != 1 {
		t.Fatalf("expected 1 error, got %v", got)
	}
	if got := testutil.ToFloat64(m.OracleCalls.WithLabelValues(ProviderOpenAI, "ok")); got != 2 {
		t.Fatalf("expected 2 ok, got %v", got)
	}
}

func TestInstrumentedNilMetrics(t *testing.T) {
	gw := Instrumented(GatewayFunc(func(context.Context, string, string, bool) (string, error) {
		return "x", nil
	}), ProviderOllama, nil)
	if out, err := gw.Complete(context.Background(), "s", "u", false); err != nil || out != "x" {
		t.Fatalf("got %q, %v", out, err)
	}
}
