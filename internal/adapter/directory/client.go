package directory

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/couchcryptid/streamflow-sync/internal/adapter/upstream"
	"github.com/couchcryptid/streamflow-sync/internal/domain"
)

const riversPath = "/api/v1/rivers"

// Directory looks up rivers known to the river directory service.
type Directory interface {
	GetRiver(ctx context.Context, id string) (domain.River, error)
	ListRivers(ctx context.Context) ([]domain.River, error)
}

// Client implements Directory over the service's REST API.
type Client struct {
	api     *upstream.Client
	baseURL string
	logger  *slog.Logger
}

// NewClient creates a directory client rooted at baseURL (SERVICE_BASEURL).
func NewClient(baseURL string, api *upstream.Client, logger *slog.Logger) *Client {
	return &Client{
		api:     api,
		baseURL: baseURL,
		logger:  logger,
	}
}

// GetRiver fetches a single river by identifier.
func (c *Client) GetRiver(ctx context.Context, id string) (domain.River, error) {
	u := fmt.Sprintf("%s%s/%s", c.baseURL, riversPath, url.PathEscape(id))
	body, err := c.api.Get(ctx, u)
	if err != nil {
		return domain.River{}, fmt.Errorf("get river %s: %w", id, err)
	}

	river, err := domain.ParseRiver(body)
	if err != nil {
		return domain.River{}, fmt.Errorf("get river %s: %w", id, err)
	}
	if river.ID == "" {
		river.ID = id
	}
	return river, nil
}

// ListRivers fetches every river in the directory.
func (c *Client) ListRivers(ctx context.Context) ([]domain.River, error) {
	body, err := c.api.Get(ctx, c.baseURL+riversPath)
	if err != nil {
		return nil, fmt.Errorf("list rivers: %w", err)
	}

	rivers, err := domain.ParseRivers(body)
	if err != nil {
		return nil, fmt.Errorf("list rivers: %w", err)
	}
	c.logger.Debug("directory listing fetched", "rivers", len(rivers))
	return rivers, nil
}
