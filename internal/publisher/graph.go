package publisher

import (
	"context"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"postflow/internal/queue"
	"postflow/internal/services"
	"postflow/internal/services/graph"
)

// Graph publishes through the Instagram Graph API. The API fetches the image
// itself, so rendered assets must be reachable under assetBaseURL.
type Graph struct {
	client       *graph.Client
	assetBaseURL *url.URL
}

// NewGraph constructs a Graph backend.
func NewGraph(client *graph.Client, assetBaseURL string) (*Graph, error) {
	assetBaseURL = strings.TrimSpace(assetBaseURL)
	if assetBaseURL == "" {
		return nil, services.Wrap(services.ErrConfiguration, StageName, "init", "publisher.asset_base_url is required for the graph backend", nil)
	}
	base, err := url.Parse(assetBaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, services.Wrap(services.ErrConfiguration, StageName, "init", "publisher.asset_base_url must be an absolute URL", err)
	}
	return &Graph{client: client, assetBaseURL: base}, nil
}

// Name implements Backend.
func (g *Graph) Name() string { return "graph" }

// ImageURL maps an asset reference to its public URL.
func (g *Graph) ImageURL(assetRef string) string {
	u := *g.assetBaseURL
	u.Path = path.Join("/", u.Path, filepath.Base(assetRef))
	return u.String()
}

// Publish creates and publishes a media container for item.
func (g *Graph) Publish(ctx context.Context, item *queue.Item) (string, error) {
	return g.client.Publish(ctx, g.ImageURL(item.AssetRef), FullCaption(item))
}

// HealthCheck verifies the access token.
func (g *Graph) HealthCheck(ctx context.Context) error {
	return g.client.VerifyToken(ctx)
}
