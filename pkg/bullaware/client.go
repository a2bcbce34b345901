package bullaware

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

const defaultBaseURL = "https://api.bullaware.com/v1"

// Investor is the profile payload for one eToro copy trader.
type Investor struct {
	Username           string   `json:"username"`
	DisplayName        *string  `json:"displayName,omitempty"`
	AvatarURL          *string  `json:"avatarUrl,omitempty"`
	RiskScore          *int     `json:"riskScore,omitempty"`
	Copiers            *int     `json:"copiers,omitempty"`
	GainYTD            *float64 `json:"gainYtd,omitempty"`
	Gain12M            *float64 `json:"gain12m,omitempty"`
	WinRatio           *float64 `json:"winRatio,omitempty"`
	ProfitableWeeksPct *float64 `json:"profitableWeeksPct,omitempty"`
}

// PortfolioPosition is one holding in an investor's copied portfolio.
type PortfolioPosition struct {
	Symbol      string   `json:"symbol"`
	Direction   string   `json:"direction"`
	InvestedPct float64  `json:"investedPct"`
	AvgOpenRate *float64 `json:"avgOpenRate,omitempty"`
	ProfitPct   *float64 `json:"profitPct,omitempty"`
}

// Client talks to the BullAware investor API. The API budget is roughly ten
// requests a minute; callers go through services.RateLimiter before each
// request.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewClient constructs a Client. A nil httpClient gets a 15 second timeout.
// Base URL and key come from BULLAWARE_BASE_URL / BULLAWARE_API_KEY when the
// arguments are empty.
func NewClient(baseURL, apiKey string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = os.Getenv("BULLAWARE_BASE_URL")
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if apiKey == "" {
		apiKey = os.Getenv("BULLAWARE_API_KEY")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  httpClient,
	}
}

// GetInvestor fetches the profile for one username.
func (c *Client) GetInvestor(ctx context.Context, username string) (*Investor, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, errors.New("username is required")
	}

	var investor Investor
	if err := c.getJSON(ctx, fmt.Sprintf("/investors/%s", url.PathEscape(username)), &investor); err != nil {
		return nil, err
	}
	if investor.Username == "" {
		investor.Username = username
	}
	return &investor, nil
}

// GetPortfolio fetches the current portfolio for one username.
func (c *Client) GetPortfolio(ctx context.Context, username string) ([]PortfolioPosition, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, errors.New("username is required")
	}

	var decoded struct {
		Positions []PortfolioPosition `json:"positions"`
	}
	if err := c.getJSON(ctx, fmt.Sprintf("/investors/%s/portfolio", url.PathEscape(username)), &decoded); err != nil {
		return nil, err
	}
	return decoded.Positions, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return ErrUpstreamRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("bullaware api error: status %d body %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode bullaware response: %w", err)
	}
	return nil
}

// ErrUpstreamRateLimited reports a 429 from the BullAware API itself, as
// opposed to the local budget being exhausted.
var ErrUpstreamRateLimited = errors.New("bullaware api rate limited")
