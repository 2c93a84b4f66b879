package datafetcher

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"market_scanner_backend/models"
	"market_scanner_backend/services/marketcache"
	"market_scanner_backend/services/universe"
)

// QuoteAPIResponse represents the quote API response structure
type QuoteAPIResponse struct {
	Data []QuoteAPIRecord `json:"data"`
}

// QuoteAPIRecord represents one quote record from the API
type QuoteAPIRecord struct {
	Symbol        string  `json:"symbol"`
	Price         float64 `json:"price"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"change_percent"`
	Volume        float64 `json:"volume"`
	AvgVolume     float64 `json:"avg_volume"`
	High          float64 `json:"high"`
	Low           float64 `json:"low"`
	Open          float64 `json:"open"`
	PrevClose     float64 `json:"prev_close"`
}

// QuoteClient fetches quotes from the upstream market data API and
// records every fresh payload in the cache. It tracks connectivity
// transitions and drives the cache's reconnect bookkeeping.
type QuoteClient struct {
	baseURL    string
	httpClient *http.Client
	cache      *marketcache.Cache

	mu        sync.Mutex
	connected bool
}

// NewQuoteClient creates a new quote API client
func NewQuoteClient(baseURL string, cache *marketcache.Cache) *QuoteClient {
	return &QuoteClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		cache: cache,
	}
}

// GetQuote fetches a single quote. A nil quote with nil error means the
// upstream had no data for the symbol.
func (qc *QuoteClient) GetQuote(symbol string) (*models.Quote, error) {
	quotes, err := qc.GetQuotesBatch([]string{symbol})
	if err != nil {
		return nil, err
	}
	return quotes[universe.NormalizeSymbol(symbol)], nil
}

// GetQuotesBatch fetches quotes for a list of symbols in one request.
// Partial results are normal; missing symbols are simply absent from
// the returned map.
func (qc *QuoteClient) GetQuotesBatch(symbols []string) (map[string]*models.Quote, error) {
	if len(symbols) == 0 {
		return map[string]*models.Quote{}, nil
	}
	if qc.baseURL == "" {
		return nil, fmt.Errorf("quote API not configured")
	}

	endpoint := fmt.Sprintf("%s?symbols=%s", qc.baseURL, url.QueryEscape(strings.Join(symbols, ",")))

	req, err := http.NewRequest("GET", endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	req.Header.Set("Accept", "application/json")

	resp, err := qc.httpClient.Do(req)
	if err != nil {
		qc.markDisconnected()
		return nil, fmt.Errorf("failed to fetch quotes: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		qc.markDisconnected()
		return nil, fmt.Errorf("quote API error (status %d): %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		qc.markDisconnected()
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var response QuoteAPIResponse
	if err := json.Unmarshal(body, &response); err != nil {
		// Some deployments return the records as a bare array
		var records []QuoteAPIRecord
		if err2 := json.Unmarshal(body, &records); err2 != nil {
			return nil, fmt.Errorf("failed to parse quote response: %w", err)
		}
		response.Data = records
	}

	qc.markConnected()

	quotes := make(map[string]*models.Quote, len(response.Data))
	now := time.Now()
	for _, rec := range response.Data {
		sym := universe.NormalizeSymbol(rec.Symbol)
		if sym == "" {
			continue
		}
		quote := &models.Quote{
			Symbol:        sym,
			Price:         rec.Price,
			Change:        rec.Change,
			ChangePercent: rec.ChangePercent,
			Volume:        rec.Volume,
			AvgVolume:     rec.AvgVolume,
			High:          rec.High,
			Low:           rec.Low,
			Open:          rec.Open,
			PrevClose:     rec.PrevClose,
			Timestamp:     now,
		}
		quotes[sym] = quote
		if qc.cache != nil {
			qc.cache.Put(marketcache.KindQuote, sym, quote)
		}
	}
	return quotes, nil
}

// markConnected flips the connectivity state on a successful round trip
// and notifies the cache on the disconnected-to-connected transition
func (qc *QuoteClient) markConnected() {
	qc.mu.Lock()
	wasConnected := qc.connected
	qc.connected = true
	qc.mu.Unlock()

	if !wasConnected && qc.cache != nil {
		qc.cache.OnConnected()
	}
}

func (qc *QuoteClient) markDisconnected() {
	qc.mu.Lock()
	wasConnected := qc.connected
	qc.connected = false
	qc.mu.Unlock()

	if wasConnected && qc.cache != nil {
		qc.cache.OnDisconnected()
	}
}

// Connected reports whether the last quote round trip succeeded
func (qc *QuoteClient) Connected() bool {
	qc.mu.Lock()
	defer qc.mu.Unlock()
	return qc.connected
}
