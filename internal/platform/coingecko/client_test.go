package coingecko

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alanyoungcy/settleoracle/internal/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(ClientConfig{
		BaseURL:         srv.URL,
		Timeout:         time.Second,
		RateLimitPerMin: 60_000,
	})
}

func TestClient_GetPrice(t *testing.T) {
	tests := []struct {
		name           string
		symbol         string
		serverResponse string
		serverStatus   int
		wantPrice      float64
		wantErr        bool
	}{
		{
			name:           "btc alias",
			symbol:         "BTC",
			serverResponse: `{"bitcoin":{"usd":61234.5}}`,
			serverStatus:   http.StatusOK,
			wantPrice:      61234.5,
		},
		{
			name:           "eth alias lower case",
			symbol:         "eth",
			serverResponse: `{"ethereum":{"usd":3100}}`,
			serverStatus:   http.StatusOK,
			wantPrice:      3100,
		},
		{
			name:           "missing usd field",
			symbol:         "btc",
			serverResponse: `{"bitcoin":{}}`,
			serverStatus:   http.StatusOK,
			wantErr:        true,
		},
		{
			name:           "coin missing from response",
			symbol:         "btc",
			serverResponse: `{}`,
			serverStatus:   http.StatusOK,
			wantErr:        true,
		},
		{
			name:           "rate limited",
			symbol:         "btc",
			serverResponse: `{"status":{"error_code":429,"error_message":"slow down"}}`,
			serverStatus:   http.StatusTooManyRequests,
			wantErr:        true,
		},
		{
			name:           "server error",
			symbol:         "mon",
			serverResponse: `oops`,
			serverStatus:   http.StatusBadGateway,
			wantErr:        true,
		},
		{
			name:           "malformed json",
			symbol:         "btc",
			serverResponse: `{"bitcoin":`,
			serverStatus:   http.StatusOK,
			wantErr:        true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/simple/price" {
					t.Errorf("unexpected path %s", r.URL.Path)
				}
				if got := r.URL.Query().Get("vs_currencies"); got != "usd" {
					t.Errorf("vs_currencies = %q, want usd", got)
				}
				w.WriteHeader(tt.serverStatus)
				_, _ = w.Write([]byte(tt.serverResponse))
			})

			got, err := client.GetPrice(context.Background(), tt.symbol)
			if (err != nil) != tt.wantErr {
				t.Fatalf("GetPrice() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				if !errors.Is(err, domain.ErrUnavailable) {
					t.Errorf("error %v does not wrap ErrUnavailable", err)
				}
				return
			}
			if got != tt.wantPrice {
				t.Errorf("GetPrice() = %v, want %v", got, tt.wantPrice)
			}
		})
	}
}

func TestClient_UnknownSymbolSkipsNetwork(t *testing.T) {
	called := false
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	_, err := client.GetPrice(context.Background(), "DOGE")
	if !errors.Is(err, domain.ErrUnavailable) {
		t.Fatalf("GetPrice() error = %v, want ErrUnavailable", err)
	}
	if called {
		t.Error("unknown symbol should not hit the API")
	}
}

func TestClient_APIKeyHeader(t *testing.T) {
	var header string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header = r.Header.Get("x-cg-demo-api-key")
		_, _ = w.Write([]byte(`{"bitcoin":{"usd":1}}`))
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{BaseURL: srv.URL, APIKey: "demo-key", RateLimitPerMin: 60_000})
	if _, err := client.GetPrice(context.Background(), "btc"); err != nil {
		t.Fatalf("GetPrice() error = %v", err)
	}
	if header != "demo-key" {
		t.Errorf("x-cg-demo-api-key = %q, want demo-key", header)
	}
}

func TestClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{BaseURL: srv.URL, Timeout: 50 * time.Millisecond, RateLimitPerMin: 60_000})
	start := time.Now()
	_, err := client.GetPrice(context.Background(), "btc")
	if !errors.Is(err, domain.ErrUnavailable) {
		t.Fatalf("GetPrice() error = %v, want ErrUnavailable", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("request took %v, timeout not applied", elapsed)
	}
}

func TestClient_CoinID(t *testing.T) {
	client := NewClient(ClientConfig{Symbols: map[string]string{"SOL": "solana"}})
	if id, ok := client.CoinID("sol"); !ok || id != "solana" {
		t.Errorf("CoinID(sol) = %q, %v", id, ok)
	}
	if _, ok := client.CoinID("btc"); ok {
		t.Error("custom symbol map should replace defaults")
	}
}
