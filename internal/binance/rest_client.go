package binance

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"position-ledger-go/internal/config"
	"position-ledger-go/internal/recon"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	baseURL           = "https://api.binance.com/api/v3"
	testnetBaseURL    = "https://testnet.binance.vision/api/v3"
	futuresURL        = "https://fapi.binance.com/fapi/v1"
	testnetFuturesURL = "https://testnet.binancefuture.com/fapi/v1"
	recvWindow        = "5000" // How long a request is valid in milliseconds
	pageLimit         = 1000   // Max records per page on both endpoints
)

// RestClientInterface defines the interface for the Binance REST API client.
type RestClientInterface interface {
	GetServerTime() (int64, error)
	GetFills(ctx context.Context, symbol string, startTime int64) ([]recon.RawFill, error)
	GetFundingIncome(ctx context.Context, startTime int64) ([]recon.RawFunding, error)
}

// RestClient is a client for the Binance REST API.
// It implements the RestClientInterface.
type RestClient struct {
	client     *resty.Client
	futuresURL string
	apiKey     string
	secretKey  string
	logger     *zap.Logger
	limiter    *rate.Limiter
}

// ensure RestClient implements the interface
var _ RestClientInterface = (*RestClient)(nil)

// NewRestClient creates a new Binance REST API client.
func NewRestClient(cfg *config.Binance, logger *zap.Logger) *RestClient {
	var spot, futures string
	if cfg.Testnet {
		spot = testnetBaseURL
		futures = testnetFuturesURL
		logger.Warn("Using Binance Testnet")
	} else {
		spot = baseURL
		futures = futuresURL
		logger.Info("Using Binance Production API")
	}

	client := resty.New().SetBaseURL(spot)

	// Initialize the rate limiter
	// rate.Limit is requests per second.
	limiter := rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimitBurst)

	return &RestClient{
		client:     client,
		futuresURL: futures,
		apiKey:     cfg.ApiKey,
		secretKey:  cfg.SecretKey,
		logger:     logger,
		limiter:    limiter,
	}
}

// sign creates a HMAC-SHA256 signature for the request.
func (c *RestClient) sign(data string) string {
	h := hmac.New(sha256.New, []byte(c.secretKey))
	h.Write([]byte(data))
	return hex.EncodeToString(h.Sum(nil))
}

// signedQuery appends timestamp, recvWindow and signature to the params.
func (c *RestClient) signedQuery(params url.Values) string {
	params.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
	params.Set("recvWindow", recvWindow)
	queryString := params.Encode()
	params.Set("signature", c.sign(queryString))
	return params.Encode()
}

// GetServerTime fetches the current server time from Binance.
// This is a good endpoint to test connectivity.
func (c *RestClient) GetServerTime() (int64, error) {
	type ServerTimeResponse struct {
		ServerTime int64 `json:"serverTime"`
	}

	req := c.client.R().
		SetResult(&ServerTimeResponse{})
	ctx := context.Background()

	resp, err := c.doRequest(ctx, "GET", "/time", req)
	if err != nil {
		c.logger.Error("Failed to get server time", zap.Error(err))
		return 0, fmt.Errorf("failed to get server time: %w", err)
	}

	result := resp.Result().(*ServerTimeResponse)
	return result.ServerTime, nil
}

// doRequest handles the actual request execution with rate limiting and retry logic.
func (c *RestClient) doRequest(ctx context.Context, method, url string, req *resty.Request) (*resty.Response, error) {
	var resp *resty.Response
	var err error
	const maxRetries = 3

	for i := 0; i < maxRetries; i++ {
		// Wait for the rate limiter
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait failed: %w", err)
		}

		c.logger.Debug("Executing request", zap.String("method", method), zap.String("url", url))
		resp, err = req.Execute(method, url)

		if err == nil && !resp.IsError() {
			return resp, nil // Success
		}

		// Analyze error and decide whether to retry
		shouldRetry := false
		var retryAfter time.Duration

		if resp != nil {
			statusCode := resp.StatusCode()
			if statusCode == http.StatusTooManyRequests || statusCode == 418 { // HTTP 429 or 418
				shouldRetry = true
				retryAfterHeader := resp.Header().Get("Retry-After")
				if seconds, err := strconv.Atoi(retryAfterHeader); err == nil {
					retryAfter = time.Duration(seconds) * time.Second
				}
			} else if statusCode >= 500 { // Server errors
				shouldRetry = true
			}
		} else { // Network or other client-side errors
			shouldRetry = true
		}

		if !shouldRetry {
			return nil, fmt.Errorf("request failed with status %s: %s", resp.Status(), resp.String())
		}

		// If we should retry, calculate wait time
		if retryAfter == 0 {
			// Exponential backoff: 1s, 2s, 4s
			retryAfter = time.Duration(math.Pow(2, float64(i))) * time.Second
		}

		c.logger.Warn("Request failed, retrying...",
			zap.Int("attempt", i+1),
			zap.Duration("retry_after", retryAfter),
			zap.Error(err),
		)

		select {
		case <-time.After(retryAfter):
			continue
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("request failed after %d attempts: %w", maxRetries, err)
}

// myTrade is a single execution from GET /myTrades.
type myTrade struct {
	Symbol          string `json:"symbol"`
	ID              int64  `json:"id"`
	Price           string `json:"price"`
	Quantity        string `json:"qty"`
	QuoteQuantity   string `json:"quoteQty"`
	Commission      string `json:"commission"`
	CommissionAsset string `json:"commissionAsset"`
	Time            int64  `json:"time"`
	IsBuyer         bool   `json:"isBuyer"`
}

// GetFills fetches the account's trade executions for one symbol from
// startTime onward, following the fromId cursor until the last page.
func (c *RestClient) GetFills(ctx context.Context, symbol string, startTime int64) ([]recon.RawFill, error) {
	var fills []recon.RawFill
	fromID := int64(-1)

	for {
		params := url.Values{}
		params.Set("symbol", symbol)
		params.Set("limit", strconv.Itoa(pageLimit))
		if fromID >= 0 {
			params.Set("fromId", strconv.FormatInt(fromID, 10))
		} else if startTime > 0 {
			params.Set("startTime", strconv.FormatInt(startTime, 10))
		}

		var page []myTrade
		req := c.client.R().
			SetHeader("X-MBX-APIKEY", c.apiKey).
			SetQueryString(c.signedQuery(params)).
			SetResult(&page)

		if _, err := c.doRequest(ctx, "GET", "/myTrades", req); err != nil {
			return nil, fmt.Errorf("failed to get trades for %s: %w", symbol, err)
		}

		for _, t := range page {
			side := recon.SideSell
			if t.IsBuyer {
				side = recon.SideBuy
			}
			fills = append(fills, recon.RawFill{
				Symbol:          t.Symbol,
				Side:            side,
				Quantity:        t.Quantity,
				Price:           t.Price,
				QuoteQuantity:   t.QuoteQuantity,
				Commission:      t.Commission,
				CommissionAsset: t.CommissionAsset,
				Time:            t.Time,
			})
		}

		if len(page) < pageLimit {
			break
		}
		fromID = page[len(page)-1].ID + 1
	}

	c.logger.Debug("Fetched fills", zap.String("symbol", symbol), zap.Int("count", len(fills)))
	return fills, nil
}

// incomeRecord is a single row from the futures GET /income endpoint.
type incomeRecord struct {
	Symbol     string `json:"symbol"`
	IncomeType string `json:"incomeType"`
	Income     string `json:"income"`
	Time       int64  `json:"time"`
}

// GetFundingIncome fetches funding-fee payments for the whole account from
// startTime onward, advancing the startTime cursor past each full page.
func (c *RestClient) GetFundingIncome(ctx context.Context, startTime int64) ([]recon.RawFunding, error) {
	var funding []recon.RawFunding
	cursor := startTime

	for {
		params := url.Values{}
		params.Set("incomeType", "FUNDING_FEE")
		params.Set("limit", strconv.Itoa(pageLimit))
		if cursor > 0 {
			params.Set("startTime", strconv.FormatInt(cursor, 10))
		}

		var page []incomeRecord
		req := c.client.R().
			SetHeader("X-MBX-APIKEY", c.apiKey).
			SetQueryString(c.signedQuery(params)).
			SetResult(&page)

		if _, err := c.doRequest(ctx, "GET", c.futuresURL+"/income", req); err != nil {
			return nil, fmt.Errorf("failed to get funding income: %w", err)
		}

		for _, rec := range page {
			funding = append(funding, recon.RawFunding{
				Symbol: rec.Symbol,
				Income: rec.Income,
				Time:   rec.Time,
			})
		}

		if len(page) < pageLimit {
			break
		}
		cursor = page[len(page)-1].Time + 1
	}

	c.logger.Debug("Fetched funding income", zap.Int("count", len(funding)))
	return funding, nil
}
