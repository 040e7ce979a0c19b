package syncclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-blocksync/internal/logging"
	"github.com/goliatone/go-blocksync/internal/syncerr"
	"github.com/goliatone/go-blocksync/pkg/interfaces"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

const (
	// RequestIDHeader carries the save attempt id to the backend.
	RequestIDHeader = "X-Request-ID"

	defaultBasePath = "/api"
	maxBodyBytes    = 4 << 20
)

var ErrBaseURLRequired = errors.New("syncclient: base url is required")

// Client implements interfaces.SyncClient over the block JSON API.
type Client struct {
	base    *url.URL
	http    *http.Client
	logger  interfaces.Logger
	now     func() time.Time
	headers http.Header
	dialer  dialer
}

var _ interfaces.SyncClient = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces http.DefaultClient.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(logger interfaces.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClock overrides the clock stamping clientUpdatedAt.
func WithClock(clock func() time.Time) Option {
	return func(c *Client) {
		if clock != nil {
			c.now = clock
		}
	}
}

// WithHeader adds a header to every request, for example Authorization.
func WithHeader(key, value string) Option {
	return func(c *Client) {
		c.headers.Set(key, value)
	}
}

// New returns a client for the API rooted at baseURL. A baseURL without a
// path gets the default /api prefix.
func New(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, ErrBaseURLRequired
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("syncclient: parse base url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("syncclient: base url %q must be absolute", baseURL)
	}
	if parsed.Path == "" || parsed.Path == "/" {
		parsed.Path = defaultBasePath
	}
	parsed.Path = strings.TrimRight(parsed.Path, "/")

	c := &Client{
		base:    parsed,
		http:    http.DefaultClient,
		logger:  logging.NoOp(),
		now:     time.Now,
		headers: http.Header{},
		dialer:  defaultDialer(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

type saveRequest struct {
	ID              uuid.UUID      `json:"id"`
	Content         map[string]any `json:"content"`
	ClientUpdatedAt time.Time      `json:"clientUpdatedAt"`
}

type reorderRequest struct {
	Reorder bool                       `json:"reorder"`
	Blocks  []interfaces.BlockPosition `json:"blocks"`
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Save implements interfaces.SyncClient.
func (c *Client) Save(ctx context.Context, blockID uuid.UUID, content map[string]any) (*interfaces.Block, error) {
	if content == nil {
		content = map[string]any{}
	}
	data, err := c.do(ctx, http.MethodPut, "/blocks", saveRequest{
		ID:              blockID,
		Content:         content,
		ClientUpdatedAt: c.now().UTC(),
	}, "save")
	if err != nil {
		return nil, err
	}

	block := &interfaces.Block{ID: blockID}
	if isEmptyData(data) {
		return block, nil
	}
	if err := decode(data, block); err != nil {
		return nil, syncerr.MalformedResponse(err, "save")
	}
	if block.ID == uuid.Nil {
		block.ID = blockID
	}
	return block, nil
}

// Reorder implements interfaces.SyncClient.
func (c *Client) Reorder(ctx context.Context, positions []interfaces.BlockPosition) error {
	_, err := c.do(ctx, http.MethodPut, "/blocks", reorderRequest{Reorder: true, Blocks: positions}, "reorder")
	return err
}

// FetchPage implements interfaces.SyncClient.
func (c *Client) FetchPage(ctx context.Context, pageID uuid.UUID) (*interfaces.Page, error) {
	data, err := c.do(ctx, http.MethodGet, "/pages/"+pageID.String(), nil, "fetch page")
	if err != nil {
		return nil, err
	}
	page := &interfaces.Page{}
	if isEmptyData(data) {
		return nil, syncerr.MalformedResponse(nil, "fetch page")
	}
	if err := decode(data, page); err != nil {
		return nil, syncerr.MalformedResponse(err, "fetch page")
	}
	if page.ID == uuid.Nil {
		page.ID = pageID
	}
	return page, nil
}

// CreateBlock registers a new block. It is used to seed pages.
func (c *Client) CreateBlock(ctx context.Context, block *interfaces.Block) (*interfaces.Block, error) {
	data, err := c.do(ctx, http.MethodPost, "/blocks", block, "create")
	if err != nil {
		return nil, err
	}
	created := &interfaces.Block{}
	if err := decode(data, created); err != nil {
		return nil, syncerr.MalformedResponse(err, "create")
	}
	return created, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, op string) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("syncclient: encode %s request: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), reader)
	if err != nil {
		return nil, fmt.Errorf("syncclient: build %s request: %w", op, err)
	}
	for key, values := range c.headers {
		req.Header[key] = append([]string(nil), values...)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	requestID := interfaces.AttemptIDFromContext(ctx)
	if requestID == "" {
		requestID = ulid.Make().String()
	}
	req.Header.Set(RequestIDHeader, requestID)

	logger := c.logger.WithContext(ctx)
	started := c.now()
	resp, err := c.http.Do(req)
	if err != nil {
		logger.Warn("sync.request.failed", "op", op, "request_id", requestID, "error", err)
		return nil, syncerr.NetworkFailure(err, op)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		if success(resp.StatusCode) {
			return nil, syncerr.MalformedResponse(err, op)
		}
		return nil, syncerr.NetworkFailure(err, op)
	}
	logger.Debug("sync.request.completed", "op", op, "request_id", requestID, "status", resp.StatusCode, "duration", c.now().Sub(started))

	var env envelope
	decodeErr := decode(raw, &env)
	if !success(resp.StatusCode) {
		reason := env.Error
		if decodeErr != nil || reason == "" {
			reason = strings.TrimSpace(string(raw))
		}
		return nil, syncerr.ServerRejection(op, resp.StatusCode, reason)
	}
	if decodeErr != nil {
		return nil, syncerr.MalformedResponse(decodeErr, op)
	}
	if !env.Success {
		return nil, syncerr.ServerRejection(op, resp.StatusCode, env.Error)
	}
	return env.Data, nil
}

func (c *Client) endpoint(path string) string {
	u := *c.base
	u.Path = c.base.Path + path
	return u.String()
}

func success(status int) bool {
	return status >= 200 && status < 300
}

func isEmptyData(data json.RawMessage) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// decode keeps numbers as json.Number so content round-trips without float
// rounding.
func decode(data []byte, target any) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return io.ErrUnexpectedEOF
	}
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	return decoder.Decode(target)
}
