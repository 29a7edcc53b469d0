package yahoo

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"RiskLab/internal/domain/models"
	"RiskLab/internal/service/source"
	xhttp "RiskLab/pkg/http"
	"RiskLab/pkg/util"
)

const DefaultBaseURL = "https://query1.finance.yahoo.com"

// Columns are the raw columns produced for every market series.
var Columns = []string{"timestamp", "open", "high", "low", "close", "adjclose", "volume"}

type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *chartError   `json:"error"`
	} `json:"chart"`
}

type chartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type chartResult struct {
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
}

// Option configures Client.
type Option func(*Client)

// Client fetches daily bars from the Yahoo chart API.
type Client struct {
	http    *xhttp.Client
	baseURL string
}

// New creates a market-proxy adapter.
func New(opts ...Option) *Client {
	c := &Client{baseURL: DefaultBaseURL}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = xhttp.NewClient()
	}
	return c
}

// WithBaseURL overrides the API root.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithHTTPClient sets the outbound client.
func WithHTTPClient(h *xhttp.Client) Option {
	return func(c *Client) { c.http = h }
}

// Fetch returns daily bars of symbol covering the calendar dates [start, end].
func (c *Client) Fetch(ctx context.Context, symbol string, start, end time.Time) (*models.RawTable, error) {
	var resp chartResponse
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    c.baseURL + "/v8/finance/chart/" + url.PathEscape(symbol),
		QueryParams: map[string][]string{
			"period1":  {strconv.FormatInt(util.TruncateDate(start).Unix(), 10)},
			"period2":  {strconv.FormatInt(util.TruncateDate(end).AddDate(0, 0, 1).Unix(), 10)},
			"interval": {"1d"},
			"events":   {"history"},
		},
	}, &resp)
	if err != nil {
		return nil, source.ClassifyError(models.ProviderMarket, symbol, err)
	}
	if e := resp.Chart.Error; e != nil {
		return nil, source.Permanent(models.ProviderMarket, symbol, fmt.Errorf("chart error %s: %s", e.Code, e.Description))
	}

	out := &models.RawTable{Provider: models.ProviderMarket, SeriesID: symbol, Columns: Columns}
	if len(resp.Chart.Result) == 0 {
		return out, nil
	}
	res := resp.Chart.Result[0]
	if len(res.Indicators.Quote) == 0 {
		return nil, source.Permanent(models.ProviderMarket, symbol, fmt.Errorf("chart result without quotes"))
	}
	q := res.Indicators.Quote[0]
	var adj []*float64
	if len(res.Indicators.AdjClose) > 0 {
		adj = res.Indicators.AdjClose[0].AdjClose
	}

	out.Rows = make([][]string, 0, len(res.Timestamp))
	for i, ts := range res.Timestamp {
		out.Rows = append(out.Rows, []string{
			strconv.FormatInt(ts, 10),
			cell(q.Open, i),
			cell(q.High, i),
			cell(q.Low, i),
			cell(q.Close, i),
			cell(adj, i),
			cell(q.Volume, i),
		})
	}
	return out, nil
}

// cell renders vals[i]; null or out-of-range becomes "".
func cell(vals []*float64, i int) string {
	if i >= len(vals) || vals[i] == nil {
		return ""
	}
	return strconv.FormatFloat(*vals[i], 'f', -1, 64)
}
