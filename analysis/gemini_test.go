package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func geminiReply(text string) string {
	payload := map[string]any{
		"candidates": []map[string]any{{
			"content": map[string]any{
				"parts": []map[string]string{{"text": text}},
			},
			"finishReason": "STOP",
		}},
	}
	b, _ := json.Marshal(payload)
	return string(b)
}

func newTestProvider(t *testing.T, handler http.HandlerFunc, opts ...GeminiOption) *GeminiProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	opts = append([]GeminiOption{WithBaseURL(srv.URL), WithTimeout(2 * time.Second)}, opts...)
	return NewGeminiProvider("test-key", "gemini-test", opts...)
}

func TestGeminiAnalyzeSuccess(t *testing.T) {
	var gotPath, gotKey string
	var gotReq geminiRequest
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-goog-api-key")
		_ = json.NewDecoder(r.Body).Decode(&gotReq)
		_, _ = w.Write([]byte(geminiReply(wellFormedAnalysis)))
	})

	res, err := p.Analyze(context.Background(), Request{Code: "print(1)", Filename: "main.py", Language: "python"})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if gotPath != "/v1beta/models/gemini-test:generateContent" {
		t.Errorf("path = %q", gotPath)
	}
	if gotKey != "test-key" {
		t.Errorf("api key header = %q", gotKey)
	}
	if gotReq.GenerationConfig.ResponseMIMEType != "application/json" {
		t.Errorf("responseMimeType = %q", gotReq.GenerationConfig.ResponseMIMEType)
	}
	if gotReq.SystemInstruction == nil {
		t.Error("system_instruction missing")
	}
	if res.SourceCode != "print(1)" {
		t.Errorf("SourceCode = %q", res.SourceCode)
	}
	if res.Timestamp == "" {
		t.Error("Timestamp not set")
	}
}

func TestGeminiAnalyzeUnavailableWithoutKey(t *testing.T) {
	p := NewGeminiProvider("", "gemini-test")
	if p.Available() {
		t.Error("Available = true without key")
	}
	if _, err := p.Analyze(context.Background(), Request{Code: "x"}); !errors.Is(err, ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
}

func TestGeminiAnalyzeRetriesTransientFailures(t *testing.T) {
	// O relógio do backoff não é injetável: este teste espera os 1s+2s reais
	// entre as tentativas.
	if testing.Short() {
		t.Skip("retry backoff sleeps for real")
	}

	calls := 0
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(geminiReply(wellFormedAnalysis)))
	})

	if _, err := p.Analyze(context.Background(), Request{Code: "x"}); err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestGeminiAnalyzeDoesNotRetryCallerErrors(t *testing.T) {
	calls := 0
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "bad api key", http.StatusForbidden)
	})

	_, err := p.Analyze(context.Background(), Request{Code: "x"})
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("err = %v, want ErrUpstream", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (403 is not transient)", calls)
	}
}

func TestGeminiAnalyzeDoesNotRetryBadOutput(t *testing.T) {
	calls := 0
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		_, _ = w.Write([]byte(geminiReply("this is not json")))
	})

	_, err := p.Analyze(context.Background(), Request{Code: "x"})
	if !errors.Is(err, ErrBadModelOutput) {
		t.Fatalf("err = %v, want ErrBadModelOutput", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestGeminiAnalyzeEmptyCandidatesIsBadOutput(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates": []}`))
	})

	if _, err := p.Analyze(context.Background(), Request{Code: "x"}); !errors.Is(err, ErrBadModelOutput) {
		t.Errorf("err = %v, want ErrBadModelOutput", err)
	}
}

func TestGeminiAnalyzeTimeout(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		// Drain the body so the server's background read can observe the
		// client disconnect and cancel the request context; otherwise the
		// handler blocks forever and srv.Close deadlocks in t.Cleanup.
		_, _ = io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}, WithTimeout(50*time.Millisecond), WithAttempts(1))

	_, err := p.Analyze(context.Background(), Request{Code: "x"})
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("err = %v, want ErrTimeout", err)
	}
}

func TestGeminiAnalyzeOversizedResultRejected(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(geminiReply(wellFormedAnalysis)))
	}, WithMaxAnalysisSize(64))

	if _, err := p.Analyze(context.Background(), Request{Code: "x"}); !errors.Is(err, ErrBadModelOutput) {
		t.Errorf("err = %v, want ErrBadModelOutput", err)
	}
}
