package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sasidharan-s/marketmind/pkg/models"
)

// Index symbols quoted on every refresh.
const (
	symbolNifty  = "^NSEI"
	symbolSensex = "^BSESN"
)

// AlphaVantage fetches quotes from the Alpha Vantage REST API.
type AlphaVantage struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// AlphaVantageOption configures the client.
type AlphaVantageOption func(*AlphaVantage)

// WithBaseURL overrides the API endpoint. Used by tests.
func WithBaseURL(u string) AlphaVantageOption {
	return func(a *AlphaVantage) { a.baseURL = u }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) AlphaVantageOption {
	return func(a *AlphaVantage) { a.client = c }
}

// NewAlphaVantage creates a quote client. timeout bounds each upstream call.
func NewAlphaVantage(apiKey string, timeout time.Duration, opts ...AlphaVantageOption) *AlphaVantage {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	a := &AlphaVantage{
		apiKey:  apiKey,
		baseURL: "https://www.alphavantage.co",
		client:  &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// globalQuote mirrors Alpha Vantage's GLOBAL_QUOTE response. Field keys carry
// the API's numeric prefixes.
type globalQuote struct {
	Quote struct {
		Price         string `json:"05. price"`
		Change        string `json:"09. change"`
		ChangePercent string `json:"10. change percent"`
	} `json:"Global Quote"`
}

func (a *AlphaVantage) fetchQuote(ctx context.Context, symbol, name string) (*models.IndexQuote, error) {
	q := url.Values{}
	q.Set("function", "GLOBAL_QUOTE")
	q.Set("symbol", symbol)
	q.Set("apikey", a.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/query?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("marketdata: quote %s: %w", symbol, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("marketdata: quote %s: HTTP %d", symbol, resp.StatusCode)
	}

	var gq globalQuote
	if err := json.NewDecoder(resp.Body).Decode(&gq); err != nil {
		return nil, fmt.Errorf("marketdata: decode quote %s: %w", symbol, err)
	}
	if gq.Quote.Price == "" {
		return nil, fmt.Errorf("marketdata: empty quote for %s", symbol)
	}

	price, err := strconv.ParseFloat(gq.Quote.Price, 64)
	if err != nil {
		return nil, fmt.Errorf("marketdata: parse price for %s: %w", symbol, err)
	}
	change, _ := strconv.ParseFloat(gq.Quote.Change, 64)
	pct, _ := strconv.ParseFloat(strings.TrimSuffix(gq.Quote.ChangePercent, "%"), 64)

	return &models.IndexQuote{
		Name:          name,
		Price:         price,
		Change:        change,
		ChangePercent: pct,
	}, nil
}

// Fetch assembles a full market payload. Index quotes are fetched in
// parallel; a single failed index degrades to a partial payload rather than
// failing the whole fetch, but when nothing at all was retrieved the fetch
// errors so the cache layer can fall back.
func (a *AlphaVantage) Fetch(ctx context.Context) (*models.MarketData, error) {
	if a.apiKey == "" {
		return nil, fmt.Errorf("marketdata: API key not configured")
	}

	targets := []struct {
		symbol string
		name   string
	}{
		{symbolNifty, "NIFTY 50"},
		{symbolSensex, "SENSEX"},
	}

	quotes := make([]*models.IndexQuote, len(targets))
	errs := make([]error, len(targets))
	var g errgroup.Group
	for i, t := range targets {
		g.Go(func() error {
			quotes[i], errs[i] = a.fetchQuote(ctx, t.symbol, t.name)
			return nil
		})
	}
	g.Wait()

	var indices []models.IndexQuote
	for _, q := range quotes {
		if q != nil {
			indices = append(indices, *q)
		}
	}
	if len(indices) == 0 {
		for _, err := range errs {
			if err != nil {
				return nil, err
			}
		}
		return nil, fmt.Errorf("marketdata: no index quotes returned")
	}

	gainers, losers := a.fetchMovers()
	return &models.MarketData{
		Indices:     indices,
		Gainers:     gainers,
		Losers:      losers,
		Sectors:     a.fetchSectors(),
		LastUpdated: time.Now().UTC(),
		Source:      "live_api",
	}, nil
}

// fetchMovers returns the top gainers and losers. Alpha Vantage has no NSE
// movers endpoint on the free tier, so this is a static board until a real
// movers feed is wired.
func (a *AlphaVantage) fetchMovers() (gainers, losers []models.MoverEntry) {
	gainers = []models.MoverEntry{
		{Ticker: "LT", Name: "Larsen & Toubro", Price: 3500.00, ChangePercent: 5.2},
		{Ticker: "M&M", Name: "Mahindra & Mahindra", Price: 2900.00, ChangePercent: 4.8},
		{Ticker: "RELIANCE", Name: "Reliance Industries", Price: 2450.00, ChangePercent: 3.5},
		{Ticker: "TCS", Name: "Tata Consultancy", Price: 3200.00, ChangePercent: 2.8},
		{Ticker: "HDFCBANK", Name: "HDFC Bank", Price: 1650.00, ChangePercent: 2.1},
	}
	losers = []models.MoverEntry{
		{Ticker: "INFY", Name: "Infosys", Price: 1500.00, ChangePercent: -1.8},
		{Ticker: "WIPRO", Name: "Wipro", Price: 420.00, ChangePercent: -1.5},
		{Ticker: "ONGC", Name: "Oil & Natural Gas", Price: 245.00, ChangePercent: -1.2},
		{Ticker: "NTPC", Name: "NTPC", Price: 265.00, ChangePercent: -0.9},
		{Ticker: "COALINDIA", Name: "Coal India", Price: 385.00, ChangePercent: -0.7},
	}
	return gainers, losers
}

// fetchSectors returns the sector board. Same free-tier limitation as movers.
func (a *AlphaVantage) fetchSectors() []models.SectorPerformance {
	return []models.SectorPerformance{
		{Name: "IT", ChangePercent: 1.2},
		{Name: "Banking", ChangePercent: -0.5},
		{Name: "Auto", ChangePercent: 1.8},
		{Name: "Pharma", ChangePercent: 0.3},
		{Name: "FMCG", ChangePercent: -0.2},
		{Name: "Energy", ChangePercent: 0.8},
		{Name: "Metals", ChangePercent: -0.4},
		{Name: "Real Estate", ChangePercent: 0.6},
	}
}
