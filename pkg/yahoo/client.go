package yahoo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

const defaultBaseURL = "https://query1.finance.yahoo.com"

// ErrSymbolNotFound reports that none of the candidate symbols returned a
// quote.
var ErrSymbolNotFound = errors.New("yahoo: symbol not found")

// Quote is the subset of the Yahoo quote payload the dashboard stores.
type Quote struct {
	Symbol       string   `json:"symbol"`
	ShortName    *string  `json:"shortName,omitempty"`
	RegularPrice *float64 `json:"regularMarketPrice,omitempty"`
	Currency     *string  `json:"currency,omitempty"`
	Sector       *string  `json:"sector,omitempty"`
	Industry     *string  `json:"industry,omitempty"`
}

// Client queries the Yahoo Finance quote and quoteSummary endpoints.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient constructs a Client. A nil httpClient gets a 10 second timeout.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = os.Getenv("YAHOO_BASE_URL")
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), client: httpClient}
}

// ResolveQuote tries each candidate symbol for an eToro ticker until one
// returns a quote. Returns ErrSymbolNotFound when every candidate misses;
// transport errors propagate immediately.
func (c *Client) ResolveQuote(ctx context.Context, etoroSymbol string) (*Quote, error) {
	candidates := SymbolCandidates(etoroSymbol)
	if len(candidates) == 0 {
		return nil, errors.New("yahoo: symbol is required")
	}

	for _, candidate := range candidates {
		quote, err := c.fetchQuote(ctx, candidate)
		if err != nil {
			return nil, err
		}
		if quote != nil {
			return quote, nil
		}
	}
	return nil, ErrSymbolNotFound
}

// FetchProfile fetches sector/industry for a resolved symbol via the
// quoteSummary assetProfile module.
func (c *Client) FetchProfile(ctx context.Context, symbol string) (sector, industry *string, err error) {
	endpoint := fmt.Sprintf("%s/v10/finance/quoteSummary/%s?modules=assetProfile",
		c.baseURL, url.PathEscape(symbol))

	var decoded struct {
		QuoteSummary struct {
			Result []struct {
				AssetProfile struct {
					Sector   string `json:"sector"`
					Industry string `json:"industry"`
				} `json:"assetProfile"`
			} `json:"result"`
		} `json:"quoteSummary"`
	}
	if err := c.getJSON(ctx, endpoint, &decoded); err != nil {
		return nil, nil, err
	}
	if len(decoded.QuoteSummary.Result) == 0 {
		return nil, nil, nil
	}

	profile := decoded.QuoteSummary.Result[0].AssetProfile
	if profile.Sector != "" {
		sector = &profile.Sector
	}
	if profile.Industry != "" {
		industry = &profile.Industry
	}
	return sector, industry, nil
}

// fetchQuote returns nil (no error) when the symbol simply has no result.
func (c *Client) fetchQuote(ctx context.Context, symbol string) (*Quote, error) {
	endpoint := fmt.Sprintf("%s/v7/finance/quote?symbols=%s", c.baseURL, url.QueryEscape(symbol))

	var decoded struct {
		QuoteResponse struct {
			Result []struct {
				Symbol             string   `json:"symbol"`
				ShortName          *string  `json:"shortName"`
				RegularMarketPrice *float64 `json:"regularMarketPrice"`
				Currency           *string  `json:"currency"`
			} `json:"result"`
		} `json:"quoteResponse"`
	}
	if err := c.getJSON(ctx, endpoint, &decoded); err != nil {
		return nil, err
	}
	if len(decoded.QuoteResponse.Result) == 0 {
		return nil, nil
	}

	r := decoded.QuoteResponse.Result[0]
	if r.RegularMarketPrice == nil {
		return nil, nil
	}
	return &Quote{
		Symbol:       r.Symbol,
		ShortName:    r.ShortName,
		RegularPrice: r.RegularMarketPrice,
		Currency:     r.Currency,
	}, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; MarketCompass/1.0)")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// Yahoo answers 404 for unknown symbols on some endpoints; treat it the
	// same as an empty result set.
	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("yahoo api error: status %d body %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode yahoo response: %w", err)
	}
	return nil
}
