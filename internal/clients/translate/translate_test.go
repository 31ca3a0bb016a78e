package translate

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestMockIsDeterministic(t *testing.T) {
	m := NewMock()
	a, err := m.Translate(context.Background(), "Hello there.", "en", "es")
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if a != "[es] Hello there." {
		t.Fatalf("got %q", a)
	}
	b, _ := m.Translate(context.Background(), "Hello there.", "en", "es")
	if a != b {
		t.Fatalf("mock not deterministic: %q vs %q", a, b)
	}
}

func TestMockFail(t *testing.T) {
	m := &Mock{Fail: errors.New("down")}
	if _, err := m.Translate(context.Background(), "x", "en", "es"); err == nil {
		t.Fatalf("expected configured failure")
	}
}

func TestHTTPClientTranslate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/translate" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var req struct {
			Text       string `json:"text"`
			SourceLang string `json:"source_lang"`
			TargetLang string `json:"target_lang"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.SourceLang != "en" || req.TargetLang != "zh" {
			t.Errorf("languages = %q/%q", req.SourceLang, req.TargetLang)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"translation": "你好。"})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, time.Second, nil)
	got, err := c.Translate(context.Background(), "Hello.", "en", "zh")
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if got != "你好。" {
		t.Fatalf("got %q", got)
	}
}

func TestHTTPClientNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, time.Second, nil)
	if _, err := c.Translate(context.Background(), "Hello.", "en", "zh"); err == nil {
		t.Fatalf("expected error on 502")
	}
}

func TestHTTPClientEmptyTranslation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"translation": "   "})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, time.Second, nil)
	if _, err := c.Translate(context.Background(), "Hello.", "en", "zh"); err == nil {
		t.Fatalf("expected error on blank translation")
	}
}
