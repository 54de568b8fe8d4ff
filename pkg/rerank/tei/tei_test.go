package tei

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/wayfind-ai/go-wayfind/pkg/retrieval"
)

func newServer(t *testing.T, handler http.HandlerFunc) *Reranker {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	r, err := New(&Config{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return r
}

func TestScore(t *testing.T) {
	t.Parallel()

	r := newServer(t, func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path != "/rerank" {
			t.Errorf("Expected /rerank, got %s", req.URL.Path)
		}
		var body rerankRequest
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			t.Errorf("Failed to decode request: %v", err)
		}
		if body.Query != "street food" || len(body.Texts) != 3 {
			t.Errorf("Unexpected request: %+v", body)
		}

		// TEI responds sorted by score descending, not in input order
		json.NewEncoder(w).Encode([]rerankResult{
			{Index: 2, Score: 0.9},
			{Index: 0, Score: 0.4},
			{Index: 1, Score: 0.1},
		})
	})

	scores, err := r.Score(context.Background(), "street food", []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}
	want := []float64{0.4, 0.1, 0.9}
	for i, w := range want {
		if scores[i] != w {
			t.Errorf("Score %d: expected %f, got %f", i, w, scores[i])
		}
	}
}

func TestScoreEmptyTexts(t *testing.T) {
	t.Parallel()

	r := newServer(t, func(http.ResponseWriter, *http.Request) {
		t.Error("Server should not be called for empty input")
	})

	_, err := r.Score(context.Background(), "query", nil)
	if !retrieval.IsInputError(err) {
		t.Errorf("Expected input error, got %v", err)
	}
}

func TestScoreServerError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		status        int
		wantTransient bool
	}{
		{name: "internal error is transient", status: http.StatusInternalServerError, wantTransient: true},
		{name: "rate limit is transient", status: http.StatusTooManyRequests, wantTransient: true},
		{name: "bad request is not transient", status: http.StatusBadRequest, wantTransient: false},
		{name: "payload too large is not transient", status: http.StatusRequestEntityTooLarge, wantTransient: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := newServer(t, func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "nope", tt.status)
			})

			_, err := r.Score(context.Background(), "q", []string{"a"})
			if err == nil {
				t.Fatal("Expected error")
			}
			if retrieval.IsTransient(err) != tt.wantTransient {
				t.Errorf("Transient = %v, want %v for status %d", !tt.wantTransient, tt.wantTransient, tt.status)
			}
		})
	}
}

func TestScoreConnectionRefused(t *testing.T) {
	t.Parallel()

	r, err := New(&Config{BaseURL: "http://127.0.0.1:1"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	_, err = r.Score(context.Background(), "q", []string{"a"})
	if !retrieval.IsTransient(err) {
		t.Errorf("Expected connection failure to be transient, got %v", err)
	}
}

func TestScoreCountMismatch(t *testing.T) {
	t.Parallel()

	r := newServer(t, func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode([]rerankResult{{Index: 0, Score: 0.5}})
	})

	_, err := r.Score(context.Background(), "q", []string{"a", "b"})
	if err == nil {
		t.Fatal("Expected error for score count mismatch")
	}
}

func TestModelDefault(t *testing.T) {
	t.Parallel()

	r, err := New(&Config{BaseURL: "http://localhost:8080"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if r.Model() != DefaultModel {
		t.Errorf("Expected default model %q, got %q", DefaultModel, r.Model())
	}
}
