package services

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"market_scanner_backend/services/universe"
)

// IndexListFile is the local fallback file for index constituent lists
const IndexListFile = "data/index_lists.json"

// IndexListService loads the named index constituent lists that seed
// the universe manager. Resolution order: remote API, local file,
// MongoDB, built-in static lists. Every hop degrades to the next; the
// scanner always gets some universe.
type IndexListService struct {
	baseURL    string
	httpClient *http.Client
	mongo      *MongoDBClient
}

// NewIndexListService creates an index list service. baseURL and mongo
// are both optional.
func NewIndexListService(baseURL string, mongo *MongoDBClient) *IndexListService {
	return &IndexListService{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		mongo:      mongo,
	}
}

// indexListResponse is the remote API payload
type indexListResponse struct {
	Indices []universe.Index `json:"indices"`
}

// FetchIndexLists resolves the current constituent lists, falling back
// through local file, Mongo, and the built-in static lists
func (s *IndexListService) FetchIndexLists() []universe.Index {
	if s.baseURL != "" {
		indices, err := s.fetchRemote()
		if err == nil {
			// Persist for future offline use
			go s.SaveToFile(indices)
			if s.mongo != nil && s.mongo.IsConfigured() {
				go func() {
					if err := s.mongo.SaveIndexLists(indices); err != nil {
						log.Printf("Index list Mongo save failed: %v", err)
					}
				}()
			}
			return indices
		}
		log.Printf("Index API error: %v, trying local file...", err)
	}

	if indices, err := s.LoadFromFile(); err == nil {
		return indices
	} else {
		log.Printf("Index list file unavailable: %v, trying MongoDB...", err)
	}

	if s.mongo != nil && s.mongo.IsConfigured() {
		if indices, err := s.mongo.LoadIndexLists(); err == nil {
			return indices
		} else {
			log.Printf("Index list Mongo load failed: %v, using built-in lists", err)
		}
	}

	log.Printf("Using built-in fallback index lists")
	return FallbackIndexLists()
}

func (s *IndexListService) fetchRemote() ([]universe.Index, error) {
	req, err := http.NewRequest("GET", s.baseURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch index lists: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("index API error (status %d): %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var response indexListResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to parse index list response: %w", err)
	}
	if len(response.Indices) == 0 {
		return nil, fmt.Errorf("index API returned no lists")
	}

	log.Printf("Index API fetched %d lists", len(response.Indices))
	return response.Indices, nil
}

// SaveToFile persists index lists to the local JSON file
func (s *IndexListService) SaveToFile(indices []universe.Index) error {
	dir := filepath.Dir(IndexListFile)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	data, err := json.MarshalIndent(indexListResponse{Indices: indices}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal index lists: %w", err)
	}
	if err := os.WriteFile(IndexListFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write index list file: %w", err)
	}

	log.Printf("Saved %d index lists to %s", len(indices), IndexListFile)
	return nil
}

// LoadFromFile loads index lists from the local JSON file
func (s *IndexListService) LoadFromFile() ([]universe.Index, error) {
	data, err := os.ReadFile(IndexListFile)
	if err != nil {
		return nil, fmt.Errorf("index list file not found: %w", err)
	}

	var response indexListResponse
	if err := json.Unmarshal(data, &response); err != nil {
		return nil, fmt.Errorf("failed to parse index list file: %w", err)
	}
	if len(response.Indices) == 0 {
		return nil, fmt.Errorf("index list file is empty")
	}

	log.Printf("Loaded %d index lists from file: %s", len(response.Indices), IndexListFile)
	return response.Indices, nil
}

// FallbackIndexLists returns the built-in constituent lists used when
// no external source is reachable. A representative subset is enough to
// keep the scanner covering a real universe offline.
func FallbackIndexLists() []universe.Index {
	now := time.Now()
	return []universe.Index{
		{Kind: universe.IndexETF, LastUpdated: now, Symbols: []string{
			"SPY", "QQQ", "IWM", "DIA", "XLF", "XLK", "XLE", "XLV", "XLI", "XLY",
			"XLP", "XLU", "GLD", "SLV", "TLT", "HYG", "EEM", "VXX",
		}},
		{Kind: universe.IndexMostLiquid, LastUpdated: now, Symbols: []string{
			"AAPL", "MSFT", "NVDA", "TSLA", "AMZN", "META", "GOOGL", "AMD", "NFLX", "AVGO",
			"JPM", "BAC", "XOM", "INTC", "PLTR", "SOFI", "F", "NIO", "MARA", "RIOT",
		}},
		{Kind: universe.IndexBroadMarket, LastUpdated: now, Symbols: []string{
			// Technology
			"AAPL", "MSFT", "GOOGL", "GOOG", "AMZN", "NVDA", "META", "TSLA", "AVGO", "ORCL",
			"CRM", "ADBE", "AMD", "ACN", "CSCO", "INTC", "IBM", "TXN", "QCOM", "AMAT",
			// Financials
			"BRK.B", "JPM", "V", "MA", "BAC", "WFC", "GS", "MS", "BLK", "SPGI",
			"AXP", "C", "SCHW", "CB", "MMC", "PGR", "AON", "ICE", "CME", "MCO",
			// Healthcare
			"UNH", "JNJ", "LLY", "PFE", "ABBV", "MRK", "TMO", "ABT", "DHR", "BMY",
			"AMGN", "MDT", "ISRG", "GILD", "CVS", "ELV", "SYK", "REGN", "VRTX", "ZTS",
			// Consumer
			"WMT", "PG", "KO", "PEP", "COST", "MCD", "NKE", "SBUX", "TGT", "LOW",
			"HD", "TJX", "BKNG", "MAR", "ORLY", "AZO", "ROST", "DG", "DLTR", "CMG",
			// Industrials and energy
			"XOM", "CVX", "COP", "SLB", "EOG", "CAT", "DE", "UNP", "UPS", "HON",
			"BA", "LMT", "RTX", "GE", "MMM", "EMR", "ETN", "ITW", "CSX", "NSC",
		}},
		{Kind: universe.IndexTechHeavy, LastUpdated: now, Symbols: []string{
			"AAPL", "ABNB", "ADBE", "ADI", "ADP", "ADSK", "AEP", "AMAT", "AMD", "AMGN",
			"AMZN", "ANSS", "ARM", "ASML", "AVGO", "AZN", "BIIB", "BKNG", "CDNS", "CEG",
			"CHTR", "CMCSA", "COST", "CPRT", "CRWD", "CSCO", "CSX", "CTAS", "CTSH", "DDOG",
			"DXCM", "EA", "EXC", "FANG", "FAST", "FTNT", "GEHC", "GILD", "GOOG", "GOOGL",
			"HON", "IDXX", "INTC", "INTU", "ISRG", "KLAC", "LIN", "LRCX", "LULU", "MAR",
			"MCHP", "MDB", "MDLZ", "MELI", "META", "MNST", "MRVL", "MSFT", "MU", "NFLX",
			"NVDA", "NXPI", "ODFL", "ON", "ORLY", "PANW", "PAYX", "PCAR", "PDD", "PEP",
			"PYPL", "QCOM", "REGN", "ROP", "ROST", "SBUX", "SNPS", "TEAM", "TMUS", "TSLA",
			"TTD", "TTWO", "TXN", "VRSK", "VRTX", "WBD", "WDAY", "XEL", "ZS",
		}},
		{Kind: universe.IndexSmallCap, LastUpdated: now, Symbols: []string{
			"SMCI", "IONQ", "RKLB", "ACHR", "LUNR", "OKLO", "ASTS", "RDW", "UPST", "AFRM",
			"HOOD", "RUN", "FUBO", "JOBY", "SPCE", "CHPT", "BBAI", "SOUN", "LAZR", "OPEN",
			"CLSK", "CIFR", "WULF", "IREN", "CORZ", "APLD", "VRT", "CELH", "ELF", "DUOL",
			"TMDX", "CAVA", "WING", "TOST", "GTLB", "IOT", "S", "ESTC", "PATH", "U",
		}},
	}
}
