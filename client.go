package shipwreck

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"

	"github.com/stephenwright/shipwreck/lib/event"
	"github.com/stephenwright/shipwreck/lib/session"
	"github.com/stephenwright/shipwreck/lib/siren"
	"github.com/stephenwright/shipwreck/lib/store"
)

// Event names re-raised by the client. These are the store's events;
// the client adds nothing of its own to the stream, it only forwards so
// the rendering layer has a single place to listen.
const (
	EventFetch    = store.EventFetch
	EventInflight = store.EventInflight
	EventError    = store.EventError
	EventComplete = store.EventComplete
	EventUpdate   = store.EventUpdate
)

// Client is the orchestration boundary of the browser: it owns the base
// URI and auth token (persisting both across sessions), resolves paths,
// delegates all network traffic to the entity store, and tracks the
// current entity. Entities received from the client are read-only;
// the next fetch replaces them wholesale.
type Client struct {
	store   *store.Store
	storage session.Storage
	log     *slog.Logger
	events  *event.Emitter[store.Event]

	mu     sync.Mutex
	base   *url.URL
	token  string
	entity *siren.Entity
}

// Option configures a Client.
type Option func(*config)

type config struct {
	storage    session.Storage
	store      *store.Store
	log        *slog.Logger
	httpClient *http.Client
}

// WithStorage sets the session persistence backend. Defaults to
// in-memory storage.
func WithStorage(s session.Storage) Option {
	return func(c *config) { c.storage = s }
}

// WithStore replaces the entity store. Mostly useful in tests.
func WithStore(s *store.Store) Option {
	return func(c *config) { c.store = s }
}

// WithLogger sets the logger passed through to the store.
func WithLogger(log *slog.Logger) Option {
	return func(c *config) { c.log = log }
}

// WithHTTPClient sets the underlying HTTP transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *config) { c.httpClient = hc }
}

// New creates a Client, restoring any persisted base URI and token from
// storage.
func New(opts ...Option) *Client {
	cfg := config{log: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.storage == nil {
		cfg.storage = session.NewMemory()
	}
	if cfg.store == nil {
		storeOpts := []store.Option{store.WithLogger(cfg.log)}
		if cfg.httpClient != nil {
			storeOpts = append(storeOpts, store.WithHTTPClient(cfg.httpClient))
		}
		cfg.store = store.New(storeOpts...)
	}

	c := &Client{
		store:   cfg.store,
		storage: cfg.storage,
		log:     cfg.log,
		events:  event.New[store.Event](),
	}

	if base, err := cfg.storage.Get(session.KeyBaseURI); err == nil && base != "" {
		if u, err := url.Parse(base); err == nil && u.IsAbs() {
			c.base = u
			c.store.SetBaseHost(u.Hostname())
		}
	}
	if token, err := cfg.storage.Get(session.KeyToken); err == nil {
		c.token = token
	}

	// Forward the store's stream so observers only listen in one place.
	for _, name := range []string{EventFetch, EventInflight, EventError, EventComplete, EventUpdate} {
		name := name
		c.store.On(name, func(ev store.Event) { c.events.Emit(name, ev) })
	}
	return c
}

// On registers a listener for a client event.
func (c *Client) On(name string, h func(store.Event)) event.Subscription {
	return c.events.On(name, h)
}

// Off removes a listener.
func (c *Client) Off(sub event.Subscription) {
	c.events.Off(sub)
}

// Store exposes the underlying entity store (for Watch, AddTarget and
// friends).
func (c *Client) Store() *store.Store { return c.store }

// BaseURI returns the configured API root, or "".
func (c *Client) BaseURI() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.base == nil {
		return ""
	}
	return c.base.String()
}

// SetBaseURI changes the API root. The value is persisted (or removed,
// when empty), bearer-token scoping follows the new host, and the cache
// is flushed since targets changed.
func (c *Client) SetBaseURI(uri string) error {
	c.mu.Lock()
	current := ""
	if c.base != nil {
		current = c.base.String()
	}
	if uri == current {
		c.mu.Unlock()
		return nil
	}
	if uri == "" {
		c.base = nil
		c.mu.Unlock()
		if err := c.storage.Remove(session.KeyBaseURI); err != nil {
			return err
		}
		c.store.SetBaseHost("")
		c.store.ClearCache()
		return nil
	}
	u, err := url.Parse(uri)
	if err != nil || !u.IsAbs() {
		c.mu.Unlock()
		return fmt.Errorf("%w: base uri %q", ErrInvalidHref, uri)
	}
	c.base = u
	c.mu.Unlock()
	if err := c.storage.Set(session.KeyBaseURI, uri); err != nil {
		return err
	}
	c.store.SetBaseHost(u.Hostname())
	c.store.ClearCache()
	return nil
}

// Token returns the active auth token, or "".
func (c *Client) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// SetToken changes the auth token. The value is persisted (or removed,
// when empty) and the cache is flushed so nothing fetched under the old
// token is served in the new scope.
func (c *Client) SetToken(token string) error {
	c.mu.Lock()
	if token == c.token {
		c.mu.Unlock()
		return nil
	}
	c.token = token
	c.mu.Unlock()
	if err := c.storage.Set(session.KeyToken, token); err != nil {
		return err
	}
	c.store.ClearCache()
	return nil
}

// Entity returns the current resource, or nil before the first
// successful fetch.
func (c *Client) Entity() *siren.Entity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entity
}

// Fetch resolves path against the base URI (absolute URLs pass through)
// and gets it from the store. On success the current entity is
// replaced.
func (c *Client) Fetch(ctx context.Context, path string) (store.Result, error) {
	href, err := c.resolve(path)
	if err != nil {
		return store.Result{}, err
	}
	res, err := c.store.Get(ctx, store.GetRequest{Href: href, Token: c.Token()})
	c.settle(res)
	return res, err
}

// Submit performs an action against the API, merging values over the
// action's declared fields. Relative action hrefs are resolved against
// the base URI; the given action is not mutated.
func (c *Client) Submit(ctx context.Context, action *siren.Action, values map[string]any) (store.Result, error) {
	if action == nil {
		return store.Result{}, ErrNoAction
	}
	href, err := c.resolve(action.Href)
	if err != nil {
		return store.Result{}, err
	}
	resolved := *action
	resolved.Href = href
	res, err := c.store.Submit(ctx, store.SubmitRequest{
		Action: &resolved,
		Token:  c.Token(),
		Values: values,
	})
	c.settle(res)
	return res, err
}

// settle applies the outcome of a request: adopt the entity as current,
// and drop a token the API no longer accepts.
func (c *Client) settle(res store.Result) {
	if res.Entity != nil {
		c.mu.Lock()
		c.entity = res.Entity
		c.mu.Unlock()
	}
	if res.Response != nil && res.Response.StatusCode == http.StatusUnauthorized && c.Token() != "" {
		c.log.Info("clearing rejected auth token")
		if err := c.SetToken(""); err != nil {
			c.log.Warn("clearing auth token", "error", err)
		}
		c.events.Emit(EventError, store.Event{Message: "auth token is no longer valid"})
	}
}

// resolve turns a path into an absolute href.
func (c *Client) resolve(path string) (string, error) {
	if path == "" {
		return "", ErrInvalidHref
	}
	u, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidHref, path)
	}
	if u.IsAbs() {
		return path, nil
	}
	c.mu.Lock()
	base := c.base
	c.mu.Unlock()
	if base == nil {
		return "", fmt.Errorf("%w: relative path %q with no base uri", ErrInvalidHref, path)
	}
	return base.ResolveReference(u).String(), nil
}
