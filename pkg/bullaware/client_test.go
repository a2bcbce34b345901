package bullaware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGetInvestorDecodesProfile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/investors/JeppeKirkBonde" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("X-API-Key") != "test-key" {
			t.Errorf("missing api key header")
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"username":"JeppeKirkBonde","riskScore":4,"copiers":24000}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", nil)
	investor, err := client.GetInvestor(context.Background(), "JeppeKirkBonde")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if investor.Username != "JeppeKirkBonde" {
		t.Fatalf("unexpected username: %q", investor.Username)
	}
	if investor.RiskScore == nil || *investor.RiskScore != 4 {
		t.Fatalf("unexpected risk score: %v", investor.RiskScore)
	}
	if investor.Copiers == nil || *investor.Copiers != 24000 {
		t.Fatalf("unexpected copiers: %v", investor.Copiers)
	}
}

func TestGetPortfolioDecodesPositions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/investors/Wesl3y/portfolio" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"positions":[{"symbol":"NVDA","direction":"BUY","investedPct":12.5}]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "", nil)
	positions, err := client.GetPortfolio(context.Background(), "Wesl3y")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(positions) != 1 || positions[0].Symbol != "NVDA" || positions[0].InvestedPct != 12.5 {
		t.Fatalf("unexpected positions: %#v", positions)
	}
}

func TestUpstreamRateLimitSurfacesAsSentinel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewClient(server.URL, "", nil)
	if _, err := client.GetInvestor(context.Background(), "anyone"); !errors.Is(err, ErrUpstreamRateLimited) {
		t.Fatalf("expected ErrUpstreamRateLimited, got %v", err)
	}
}
