package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alanyoungcy/settleoracle/internal/domain"
)

// chatRequest is the subset of the request body the tests inspect.
type chatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func TestClient_Ask(t *testing.T) {
	tests := []struct {
		name         string
		serverStatus int
		serverBody   string
		want         string
		wantErr      bool
	}{
		{
			name:         "trims answer",
			serverStatus: http.StatusOK,
			serverBody:   `{"choices":[{"index":0,"message":{"role":"assistant","content":"  Yes \n"}}]}`,
			want:         "Yes",
		},
		{
			name:         "sentinel passes through",
			serverStatus: http.StatusOK,
			serverBody:   `{"choices":[{"message":{"role":"assistant","content":"Unsure"}}]}`,
			want:         Unsure,
		},
		{
			name:         "no choices",
			serverStatus: http.StatusOK,
			serverBody:   `{"choices":[]}`,
			wantErr:      true,
		},
		{
			name:         "api error",
			serverStatus: http.StatusUnauthorized,
			serverBody:   `{"error":{"message":"bad key","type":"invalid_request_error"}}`,
			wantErr:      true,
		},
		{
			name:         "server error is not retried",
			serverStatus: http.StatusInternalServerError,
			serverBody:   `{"error":{"message":"overloaded","type":"server_error"}}`,
			wantErr:      true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got chatRequest
			requests := 0
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				requests++
				if r.URL.Path != "/chat/completions" {
					t.Errorf("path = %s", r.URL.Path)
				}
				if auth := r.Header.Get("Authorization"); auth != "Bearer sk-test" {
					t.Errorf("Authorization = %q", auth)
				}
				_ = json.NewDecoder(r.Body).Decode(&got)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.serverStatus)
				_, _ = w.Write([]byte(tt.serverBody))
			}))
			defer srv.Close()

			c := NewClient(ClientConfig{APIKey: "sk-test", BaseURL: srv.URL, Model: "test-model"})
			answer, err := c.Ask(context.Background(), "Will it rain?", []string{"Rain", "Dry"})
			if (err != nil) != tt.wantErr {
				t.Fatalf("Ask() error = %v, wantErr %v", err, tt.wantErr)
			}
			if requests != 1 {
				t.Errorf("requests = %d, want exactly one", requests)
			}
			if err != nil {
				if !errors.Is(err, domain.ErrUnavailable) {
					t.Errorf("error %v does not wrap ErrUnavailable", err)
				}
				return
			}
			if answer != tt.want {
				t.Errorf("Ask() = %q, want %q", answer, tt.want)
			}
			if got.Model != "test-model" || len(got.Messages) != 2 {
				t.Fatalf("unexpected request %+v", got)
			}
			if !strings.Contains(got.Messages[0].Content, "'Rain', 'Dry'") {
				t.Errorf("system prompt does not list outcomes: %q", got.Messages[0].Content)
			}
			if !strings.Contains(got.Messages[1].Content, "Will it rain?") {
				t.Errorf("user prompt does not carry question: %q", got.Messages[1].Content)
			}
		})
	}
}

func TestClient_NoKeySkipsNetwork(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL})
	_, err := c.Ask(context.Background(), "q", []string{"Yes", "No"})
	if !errors.Is(err, domain.ErrUnavailable) {
		t.Fatalf("Ask() error = %v, want ErrUnavailable", err)
	}
	if called {
		t.Error("no request expected without an api key")
	}
}

func TestClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{APIKey: "k", BaseURL: srv.URL, Timeout: 50 * time.Millisecond})
	_, err := c.Ask(context.Background(), "q", []string{"Yes", "No"})
	if !errors.Is(err, domain.ErrUnavailable) {
		t.Fatalf("Ask() error = %v, want ErrUnavailable", err)
	}
}
