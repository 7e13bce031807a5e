package usgs

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/couchcryptid/streamflow-sync/internal/adapter/upstream"
	"github.com/couchcryptid/streamflow-sync/internal/domain"
)

const (
	// dischargeParameter is the USGS parameter code for discharge in ft3/s.
	dischargeParameter = "00060"
	responseFormat     = "json,1.1"
)

// Client fetches instantaneous-value reports from the USGS water service.
type Client struct {
	api     *upstream.Client
	baseURL string
	period  string
	logger  *slog.Logger
}

// NewClient creates an observation client. period is the ISO-8601 lookback
// sent with every request (for example P1D).
func NewClient(baseURL, period string, api *upstream.Client, logger *slog.Logger) *Client {
	return &Client{
		api:     api,
		baseURL: baseURL,
		period:  period,
		logger:  logger,
	}
}

// GetReport fetches discharge for all siteCodes in one request.
func (c *Client) GetReport(ctx context.Context, siteCodes []string) (domain.WaterReport, error) {
	u, err := c.reportURL(siteCodes)
	if err != nil {
		return domain.WaterReport{}, err
	}

	body, err := c.api.Get(ctx, u)
	if err != nil {
		return domain.WaterReport{}, err
	}

	report, err := domain.ParseWaterReport(body)
	if err != nil {
		return domain.WaterReport{}, fmt.Errorf("usgs report for %d sites: %w", len(siteCodes), err)
	}
	c.logger.Debug("usgs report fetched",
		"site_codes", siteCodes,
		"series", len(report.Value.TimeSeries),
	)
	return report, nil
}

func (c *Client) reportURL(siteCodes []string) (string, error) {
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse usgs url: %w", err)
	}
	q := base.Query()
	q.Set("format", responseFormat)
	q.Set("sites", strings.Join(siteCodes, ","))
	q.Set("period", c.period)
	q.Set("parameterCd", dischargeParameter)
	// The service expects literal commas in format and sites.
	base.RawQuery = strings.ReplaceAll(q.Encode(), "%2C", ",")
	return base.String(), nil
}
