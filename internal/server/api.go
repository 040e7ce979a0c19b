package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-blocksync/internal/blocks"
	"github.com/goliatone/go-blocksync/internal/logging"
	"github.com/goliatone/go-blocksync/pkg/interfaces"
)

// RequestIDHeader identifies one client save attempt.
const RequestIDHeader = "X-Request-ID"

// API registers the block sync endpoints.
type API struct {
	basePath string
	blocks   blocks.Service
	hub      *Hub
	logger   interfaces.Logger
	now      func() time.Time
}

// Option mutates the API configuration.
type Option func(*API)

// NewAPI constructs an API instance.
func NewAPI(service blocks.Service, opts ...Option) *API {
	api := &API{
		basePath: "/api",
		blocks:   service,
		logger:   logging.NoOp(),
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(api)
		}
	}
	if api.hub == nil {
		api.hub = NewHub(api.logger)
	}
	return api
}

// WithBasePath overrides the base API path (defaults to "/api").
func WithBasePath(path string) Option {
	return func(api *API) {
		if trimmed := strings.TrimSpace(path); trimmed != "" {
			api.basePath = trimmed
		}
	}
}

// WithHub shares an event hub between APIs.
func WithHub(hub *Hub) Option {
	return func(api *API) {
		if hub != nil {
			api.hub = hub
		}
	}
}

// WithLogger sets the request logger.
func WithLogger(logger interfaces.Logger) Option {
	return func(api *API) {
		if logger != nil {
			api.logger = logger
		}
	}
}

// WithClock overrides the clock stamping published events.
func WithClock(clock func() time.Time) Option {
	return func(api *API) {
		if clock != nil {
			api.now = clock
		}
	}
}

// Hub returns the event hub fed by successful writes.
func (api *API) Hub() *Hub {
	return api.hub
}

// Register attaches the endpoints to the provided mux.
func (api *API) Register(mux *http.ServeMux) error {
	if mux == nil {
		return fmt.Errorf("server: mux is required")
	}
	if api == nil || api.blocks == nil {
		return fmt.Errorf("server: block service is required")
	}

	base := joinPath(api.basePath, "")
	api.registerBlockRoutes(mux, base)
	api.registerPageRoutes(mux, base)
	api.registerDefinitionRoutes(mux, base)
	return nil
}

// Handler returns a mux serving the API.
func (api *API) Handler() (http.Handler, error) {
	mux := http.NewServeMux()
	if err := api.Register(mux); err != nil {
		return nil, err
	}
	return mux, nil
}

func (api *API) requestLogger(r *http.Request) interfaces.Logger {
	logger := api.logger.WithContext(r.Context())
	if id := strings.TrimSpace(r.Header.Get(RequestIDHeader)); id != "" {
		logger = logging.WithFields(logger, map[string]any{"attempt_id": id})
	}
	return logger
}
