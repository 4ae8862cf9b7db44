package trackersync

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// ErrNotFound marks a 404 from the tracker. Callers distinguish it from
// other failures: during an upsert it means "create instead of update",
// everywhere else it is an ordinary error.
var ErrNotFound = errors.New("tracker resource not found")

type Client struct {
	baseURL   string
	apiKey    string
	apiKeyHdr string
	http      *http.Client
	limiter   <-chan time.Time
}

func NewClient(apiKey string) (*Client, error) {
	baseURL := strings.TrimSpace(os.Getenv("TRACKER_API_BASE_URL"))
	if baseURL == "" {
		return nil, errors.New("TRACKER_API_BASE_URL is not set")
	}
	apiKeyHeader := strings.TrimSpace(os.Getenv("TRACKER_API_KEY_HEADER"))
	if apiKeyHeader == "" {
		apiKeyHeader = "X-API-Key"
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("tracker api key is empty")
	}

	// External calls are bounded so a stalled tracker cannot stall a sweep.
	timeoutSeconds := int64(12)
	if v := strings.TrimSpace(os.Getenv("TRACKER_API_TIMEOUT_SECONDS")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			timeoutSeconds = n
		}
	}

	rateLimitPerMin := int64(120)
	if v := strings.TrimSpace(os.Getenv("TRACKER_RATE_LIMIT_PER_MIN")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			rateLimitPerMin = n
		}
	}
	interval := time.Minute / time.Duration(rateLimitPerMin)

	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		apiKeyHdr: apiKeyHeader,
		http:      &http.Client{Timeout: time.Duration(timeoutSeconds) * time.Second},
		limiter:   time.Tick(interval),
	}, nil
}

type trackerProject struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status struct {
		Key  string `json:"key"`
		Name string `json:"name"`
	} `json:"status"`
}

type trackerFieldValue struct {
	ID    string `json:"id"`
	Field string `json:"field"`
	Value string `json:"value"`
}

type trackerFieldValueList struct {
	Data []trackerFieldValue `json:"data"`
}

func (c *Client) do(ctx context.Context, method string, path string, params url.Values, payload interface{}, out interface{}) error {
	<-c.limiter

	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint = endpoint + "?" + params.Encode()
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	req.Header.Set(c.apiKeyHdr, c.apiKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s %s: %w", method, path, ErrNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("tracker api error %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("tracker api returned malformed payload: %w", err)
	}
	return nil
}

// GetProject fetches the tracker's own view of a project, including its
// status key (e.g. "live").
func (c *Client) GetProject(ctx context.Context, projectId string) (*trackerProject, error) {
	var project trackerProject
	err := c.do(ctx, http.MethodGet, "/api/v1/projects/"+url.PathEscape(projectId), nil, nil, &project)
	if err != nil {
		return nil, err
	}
	return &project, nil
}

// ListFieldValues returns the custom field values recorded for (project, field).
// A well-behaved tracker holds at most one, but the wire contract is a list.
func (c *Client) ListFieldValues(ctx context.Context, projectId string, field string) ([]trackerFieldValue, error) {
	params := url.Values{}
	params.Set("field", field)

	var list trackerFieldValueList
	err := c.do(ctx, http.MethodGet, "/api/v1/projects/"+url.PathEscape(projectId)+"/field-values", params, nil, &list)
	if err != nil {
		return nil, err
	}
	return list.Data, nil
}

func (c *Client) CreateFieldValue(ctx context.Context, projectId string, field string, value string) (*trackerFieldValue, error) {
	payload := map[string]string{"field": field, "value": value}

	var created trackerFieldValue
	err := c.do(ctx, http.MethodPost, "/api/v1/projects/"+url.PathEscape(projectId)+"/field-values", nil, payload, &created)
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *Client) UpdateFieldValue(ctx context.Context, valueId string, value string) (*trackerFieldValue, error) {
	payload := map[string]string{"value": value}

	var updated trackerFieldValue
	err := c.do(ctx, http.MethodPut, "/api/v1/field-values/"+url.PathEscape(valueId), nil, payload, &updated)
	if err != nil {
		return nil, err
	}
	return &updated, nil
}
