package remoteconfig

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/gurkanfikretgunak/bio/internal/cache"
	"github.com/gurkanfikretgunak/bio/internal/metrics"
)

// DefaultFirebaseURL is the Firebase Remote Config REST endpoint.
const DefaultFirebaseURL = "https://firebaseremoteconfig.googleapis.com"

const sdkVersion = "bio-go/1"

type fetchRequest struct {
	AppInstanceID string `json:"appInstanceId"`
	AppID         string `json:"appId"`
	SDKVersion    string `json:"sdkVersion"`
	LanguageCode  string `json:"languageCode"`
}

type fetchResponse struct {
	Entries         map[string]string `json:"entries"`
	State           string            `json:"state"`
	TemplateVersion string            `json:"templateVersion"`
}

// FirebaseClient fetches parameters through the Remote Config REST API.
// Successful fetches are served from memory until the minimum fetch
// interval elapses; failed fetches are never cached.
type FirebaseClient struct {
	conn       ConnectionConfig
	baseURL    string
	instanceID string
	httpClient *http.Client
	values     *cache.Cache[Values]
	group      singleflight.Group
}

// NewFirebaseClient creates a client for conn. An empty baseURL selects
// DefaultFirebaseURL.
func NewFirebaseClient(conn ConnectionConfig, settings Settings, baseURL string) (*FirebaseClient, error) {
	if conn.ProjectID == "" {
		return nil, fmt.Errorf("firebase: project id is required")
	}
	if conn.APIKey == "" {
		return nil, fmt.Errorf("firebase: api key is required")
	}
	if baseURL == "" {
		baseURL = DefaultFirebaseURL
	}

	return &FirebaseClient{
		conn:       conn,
		baseURL:    baseURL,
		instanceID: uuid.NewString(),
		httpClient: &http.Client{
			Timeout: settings.FetchTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		values: cache.NewCache[Values](settings.MinimumFetchInterval),
	}, nil
}

// Fetch returns the latest activated values. Concurrent callers share one
// request; each caller still honours its own context. A caller that gives
// up detaches the shared request, so the next Fetch sends a fresh one.
func (c *FirebaseClient) Fetch(ctx context.Context) (Values, error) {
	if v, ok := c.values.Get(); ok {
		metrics.StoreRequests.WithLabelValues("firebase", "cached").Inc()
		return maps.Clone(*v), nil
	}

	ch := c.group.DoChan("fetch", func() (any, error) {
		return c.fetch(context.WithoutCancel(ctx))
	})

	select {
	case <-ctx.Done():
		// Later callers start a new request instead of waiting on this one.
		c.group.Forget("fetch")
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return maps.Clone(res.Val.(Values)), nil
	}
}

func (c *FirebaseClient) fetch(ctx context.Context) (Values, error) {
	version := c.values.Version()
	body, err := json.Marshal(fetchRequest{
		AppInstanceID: c.instanceID,
		AppID:         c.conn.AppID,
		SDKVersion:    sdkVersion,
		LanguageCode:  "en-US",
	})
	if err != nil {
		return nil, fmt.Errorf("marshal fetch request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/projects/%s/namespaces/firebase:fetch?key=%s",
		c.baseURL, url.PathEscape(c.conn.ProjectID), url.QueryEscape(c.conn.APIKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create fetch request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.StoreRequests.WithLabelValues("firebase", "error").Inc()
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.StoreRequests.WithLabelValues("firebase", "error").Inc()
		return nil, fmt.Errorf("%w: read response: %w", ErrUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		metrics.StoreRequests.WithLabelValues("firebase", "error").Inc()
		return nil, &StatusError{Status: resp.StatusCode, Body: truncate(string(data), 256)}
	}

	var out fetchResponse
	if err := json.Unmarshal(data, &out); err != nil {
		metrics.StoreRequests.WithLabelValues("firebase", "error").Inc()
		return nil, fmt.Errorf("%w: decode response: %w", ErrUnavailable, err)
	}

	values := Values(out.Entries)
	if values == nil {
		values = Values{}
	}

	slog.Debug("Fetched remote config",
		slog.String("state", out.State),
		slog.String("template_version", out.TemplateVersion),
		slog.Int("entries", len(values)),
	)

	metrics.StoreRequests.WithLabelValues("firebase", "ok").Inc()
	c.values.SetIfVersion(values, version)
	return values, nil
}

// LastFetch reports when values were last fetched successfully.
func (c *FirebaseClient) LastFetch() time.Time {
	return c.values.FetchedAt()
}

func (c *FirebaseClient) Close() error {
	c.httpClient.CloseIdleConnections()
	c.values.Invalidate()
	return nil
}

// StatusError is returned when the store answers with a non-200 status.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("remote config: unexpected status %d", e.Status)
	}
	return fmt.Sprintf("remote config: unexpected status %d: %s", e.Status, e.Body)
}

func (e *StatusError) Unwrap() error {
	return ErrUnavailable
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
