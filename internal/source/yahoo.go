// Package source provides market data provider implementations.
package source

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"portfolio-lab/internal/config"
	apperrors "portfolio-lab/internal/errors"
	"portfolio-lab/internal/models"
)

const userAgent = "Mozilla/5.0 (X11; Linux x86_64) portfolio-lab/0.1"

// YahooClient implements DataSource against the Yahoo Finance JSON API.
type YahooClient struct {
	httpClient *http.Client
	chartURL   string
	searchURL  string
	logger     zerolog.Logger
}

// NewYahooClient creates a new Yahoo Finance client.
func NewYahooClient(cfg config.SourceConfig, logger zerolog.Logger) *YahooClient {
	return &YahooClient{
		httpClient: &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		chartURL:   cfg.ChartURL,
		searchURL:  cfg.SearchURL,
		logger:     logger,
	}
}

// chartResponse matches the v8 chart API payload. Null prices decode to nil.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Currency       string `json:"currency"`
				Symbol         string `json:"symbol"`
				ExchangeName   string `json:"exchangeName"`
				InstrumentType string `json:"instrumentType"`
				ShortName      string `json:"shortName"`
				LongName       string `json:"longName"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
				AdjClose []struct {
					AdjClose []*float64 `json:"adjclose"`
				} `json:"adjclose"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// searchResponse matches the v1 search API payload.
type searchResponse struct {
	Quotes []struct {
		Symbol    string `json:"symbol"`
		ShortName string `json:"shortname"`
		LongName  string `json:"longname"`
		QuoteType string `json:"quoteType"`
		Exchange  string `json:"exchange"`
		Sector    string `json:"sector"`
	} `json:"quotes"`
}

// FetchRange fetches OHLCV rows for the inclusive date range [start, end].
// Rows with missing required prices are returned with NaN values; validating
// and dropping them is the caller's concern.
func (c *YahooClient) FetchRange(ctx context.Context, symbol string, start, end time.Time, interval models.Interval) ([]models.PricePoint, error) {
	start = models.Day(start)
	end = models.Day(end)
	if start.After(end) {
		return nil, fmt.Errorf("%s after %s: %w",
			start.Format("2006-01-02"), end.Format("2006-01-02"), apperrors.ErrInvalidRange)
	}

	params := url.Values{}
	params.Set("period1", fmt.Sprintf("%d", start.Unix()))
	// period2 is exclusive; push it past the end day so end is included.
	params.Set("period2", fmt.Sprintf("%d", end.Add(24*time.Hour).Unix()))
	params.Set("interval", string(interval))
	params.Set("includeAdjustedClose", "true")

	addr := fmt.Sprintf("%s/%s?%s", c.chartURL, url.PathEscape(symbol), params.Encode())

	var payload chartResponse
	if err := c.getJSON(ctx, addr, &payload); err != nil {
		return nil, apperrors.NewSourceError(symbol, "fetch_range", err)
	}
	if payload.Chart.Error != nil {
		return nil, apperrors.NewSourceError(symbol, "fetch_range",
			fmt.Errorf("%s: %s", payload.Chart.Error.Code, payload.Chart.Error.Description))
	}
	if len(payload.Chart.Result) == 0 {
		return nil, nil
	}

	result := payload.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return nil, nil
	}
	quote := result.Indicators.Quote[0]

	var adjClose []*float64
	if len(result.Indicators.AdjClose) > 0 {
		adjClose = result.Indicators.AdjClose[0].AdjClose
	}

	points := make([]models.PricePoint, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		date := models.Day(time.Unix(ts, 0))
		if date.Before(start) || date.After(end) {
			continue
		}
		p := models.PricePoint{
			Date:  date,
			Open:  deref(at(quote.Open, i)),
			High:  deref(at(quote.High, i)),
			Low:   deref(at(quote.Low, i)),
			Close: deref(at(quote.Close, i)),
		}
		if v := at(quote.Volume, i); v != nil {
			p.Volume = v
		}
		if v := at(adjClose, i); v != nil {
			p.AdjClose = v
		}
		points = append(points, p)
	}

	c.logger.Debug().
		Str("symbol", symbol).
		Str("start", start.Format("2006-01-02")).
		Str("end", end.Format("2006-01-02")).
		Int("rows", len(points)).
		Msg("Fetched price range")

	return points, nil
}

// FetchMetadata fetches provider metadata via the chart endpoint's meta block.
func (c *YahooClient) FetchMetadata(ctx context.Context, symbol string) (*models.AssetMeta, error) {
	params := url.Values{}
	params.Set("range", "1d")
	params.Set("interval", "1d")
	addr := fmt.Sprintf("%s/%s?%s", c.chartURL, url.PathEscape(symbol), params.Encode())

	var payload chartResponse
	if err := c.getJSON(ctx, addr, &payload); err != nil {
		return nil, fmt.Errorf("%s: %w", symbol, apperrors.ErrNoData)
	}
	if payload.Chart.Error != nil || len(payload.Chart.Result) == 0 {
		return nil, fmt.Errorf("%s: %w", symbol, apperrors.ErrNoData)
	}

	meta := payload.Chart.Result[0].Meta
	name := meta.LongName
	if name == "" {
		name = meta.ShortName
	}
	if name == "" {
		name = symbol
	}

	return &models.AssetMeta{
		Symbol:   models.NormalizeTicker(meta.Symbol),
		Name:     name,
		Category: categoryFromQuoteType(meta.InstrumentType),
		Currency: meta.Currency,
		Exchange: meta.ExchangeName,
	}, nil
}

// Search queries the provider's symbol search endpoint.
func (c *YahooClient) Search(ctx context.Context, query string) ([]models.SearchMatch, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("quotesCount", "10")
	params.Set("newsCount", "0")
	addr := fmt.Sprintf("%s?%s", c.searchURL, params.Encode())

	var payload searchResponse
	if err := c.getJSON(ctx, addr, &payload); err != nil {
		// An unreachable search endpoint is "no results", not a failure.
		c.logger.Warn().Err(err).Str("query", query).Msg("Search request failed")
		return nil, nil
	}

	matches := make([]models.SearchMatch, 0, len(payload.Quotes))
	for _, q := range payload.Quotes {
		if q.Symbol == "" {
			continue
		}
		name := q.LongName
		if name == "" {
			name = q.ShortName
		}
		matches = append(matches, models.SearchMatch{
			Symbol:   models.NormalizeTicker(q.Symbol),
			Name:     name,
			Category: categoryFromQuoteType(q.QuoteType),
			Exchange: q.Exchange,
		})
	}
	return matches, nil
}

func (c *YahooClient) getJSON(ctx context.Context, addr string, target interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, addr, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%v: %w", err, apperrors.ErrSourceUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s: %w", resp.Status, apperrors.ErrSourceUnavailable)
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func categoryFromQuoteType(quoteType string) models.Category {
	switch quoteType {
	case "EQUITY", "ETF", "MUTUALFUND":
		return models.CategoryStock
	case "CRYPTOCURRENCY":
		return models.CategoryCrypto
	case "INDEX":
		return models.CategoryIndex
	case "FUTURE", "COMMODITY", "CURRENCY":
		return models.CategoryCommodity
	default:
		return models.CategoryCustom
	}
}

func at(vals []*float64, i int) *float64 {
	if i < 0 || i >= len(vals) {
		return nil
	}
	return vals[i]
}

func deref(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}
