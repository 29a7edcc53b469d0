package fred

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"RiskLab/internal/domain/models"
	"RiskLab/internal/service/source"
	xhttp "RiskLab/pkg/http"
	"RiskLab/pkg/util"
)

const (
	DefaultBaseURL  = "https://api.stlouisfed.org/fred"
	defaultPageSize = 100000
)

// Columns are the raw columns produced for every FRED series.
var Columns = []string{"realtime_start", "realtime_end", "date", "value"}

type observationsResponse struct {
	Count        int           `json:"count"`
	Offset       int           `json:"offset"`
	Limit        int           `json:"limit"`
	Observations []observation `json:"observations"`
	ErrorCode    int           `json:"error_code"`
	ErrorMessage string        `json:"error_message"`
}

type observation struct {
	RealtimeStart string `json:"realtime_start"`
	RealtimeEnd   string `json:"realtime_end"`
	Date          string `json:"date"`
	Value         string `json:"value"`
}

// Option configures Client.
type Option func(*Client)

// Client fetches series observations from the FRED API.
type Client struct {
	http     *xhttp.Client
	baseURL  string
	apiKey   string
	pageSize int
}

// New creates a FRED adapter.
func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:  DefaultBaseURL,
		apiKey:   apiKey,
		pageSize: defaultPageSize,
	}
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

// WithPageSize sets the observations page size.
func WithPageSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// Fetch returns the observations of seriesID in [start, end], paging through the result.
func (c *Client) Fetch(ctx context.Context, seriesID string, start, end time.Time) (*models.RawTable, error) {
	out := &models.RawTable{Provider: models.ProviderFRED, SeriesID: seriesID, Columns: Columns}

	for offset := 0; ; {
		var resp observationsResponse
		err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
			Method: xhttp.MethodGet,
			URL:    c.baseURL + "/series/observations",
			QueryParams: map[string][]string{
				"series_id":         {seriesID},
				"api_key":           {c.apiKey},
				"file_type":         {"json"},
				"observation_start": {util.FormatDate(start)},
				"observation_end":   {util.FormatDate(end)},
				"sort_order":        {"asc"},
				"limit":             {strconv.Itoa(c.pageSize)},
				"offset":            {strconv.Itoa(offset)},
			},
		}, &resp)
		if err != nil {
			return nil, source.ClassifyError(models.ProviderFRED, seriesID, err)
		}
		if resp.ErrorCode != 0 {
			return nil, source.Permanent(models.ProviderFRED, seriesID,
				fmt.Errorf("fred error %d: %s", resp.ErrorCode, resp.ErrorMessage))
		}

		for _, o := range resp.Observations {
			out.Rows = append(out.Rows, []string{o.RealtimeStart, o.RealtimeEnd, o.Date, o.Value})
		}

		offset += len(resp.Observations)
		if len(resp.Observations) == 0 || offset >= resp.Count {
			return out, nil
		}
	}
}
