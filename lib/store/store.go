// Package store is the single chokepoint for outbound hypermedia
// requests. It coalesces identical in-flight requests, caches responses
// with cache-control aware expiry, and keeps observers in sync through
// an event stream.
//
// Events:
//   - fetch: a request is starting
//   - inflight: the count of outstanding requests changed
//   - error: a request failed (transport error or non-2xx status)
//   - complete: a request settled, success or failure
//   - update / update:<href>: a cached entity changed
//
// The inflight counter is incremented before dispatch and decremented
// when the request settles regardless of outcome, so inflight events
// always pair up.
package store

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/stephenwright/shipwreck/lib/codec"
	"github.com/stephenwright/shipwreck/lib/event"
	"github.com/stephenwright/shipwreck/lib/siren"
)

// Event names emitted by the store.
const (
	EventFetch    = "fetch"
	EventInflight = "inflight"
	EventError    = "error"
	EventComplete = "complete"
	EventUpdate   = "update"
)

// Event is the payload delivered to store listeners. Only the attributes
// relevant to the event name are populated; an update event with no
// entity and no response is the cache-flush signal.
type Event struct {
	RequestID string
	Href      string
	Count     int
	Message   string
	Entity    *siren.Entity
	Response  *Response
	Err       error
}

// Result is what a resolved request yields. Entity is nil when the
// response was not a parseable hypermedia document (error status or
// opaque content type); Response is always present after a completed
// exchange.
type Result struct {
	Entity   *siren.Entity
	Response *Response
}

// GetRequest names a resource to fetch.
type GetRequest struct {
	Href    string
	Token   string
	NoCache bool
}

// SubmitRequest names an action to perform, with optional programmatic
// field values merged over the action's declared fields.
type SubmitRequest struct {
	Action *siren.Action
	Token  string
	Values map[string]any
}

// cache and in-flight dedup are both scoped by (token, href) so one
// token context never observes another's private resources.
type requestKey struct {
	token string
	href  string
}

type cacheEntry struct {
	result  Result
	expires time.Time
}

type call struct {
	done   chan struct{}
	result Result
	err    error
}

type target struct {
	prefix string
	header http.Header
}

// Store deduplicates, caches and observes hypermedia requests. The
// cache and the in-flight request map are owned exclusively by the
// Store; entities handed out must be treated as read-only.
type Store struct {
	client *http.Client
	log    *slog.Logger
	now    func() time.Time
	fresh  time.Duration

	mu       sync.Mutex
	baseHost string
	cache    map[requestKey]cacheEntry
	requests map[requestKey]*call
	targets  []target
	watched  map[string]int
	inflight int

	// emitMu serializes inflight count changes with their event delivery
	// so listeners see counts in the order they occurred. It is separate
	// from mu so handlers may call back into the store.
	emitMu sync.Mutex

	events *event.Emitter[Event]
}

// Option configures a Store.
type Option func(*Store)

// WithHTTPClient replaces the transport used for requests.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Store) { s.client = c }
}

// WithLogger sets the logger for request lifecycle logging.
func WithLogger(log *slog.Logger) Option {
	return func(s *Store) { s.log = log }
}

// WithFreshness sets the default freshness window applied when a
// response carries no positive max-age directive.
func WithFreshness(d time.Duration) Option {
	return func(s *Store) { s.fresh = d }
}

// WithClock replaces the time source. Used by tests to control expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates a Store with a five second default freshness window.
func New(opts ...Option) *Store {
	s := &Store{
		client:   http.DefaultClient,
		log:      slog.Default(),
		now:      time.Now,
		fresh:    5 * time.Second,
		cache:    make(map[requestKey]cacheEntry),
		requests: make(map[requestKey]*call),
		watched:  make(map[string]int),
		events:   event.New[Event](),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// On registers a listener for the named event.
func (s *Store) On(name string, h func(Event)) event.Subscription {
	return s.events.On(name, h)
}

// Off removes a listener.
func (s *Store) Off(sub event.Subscription) {
	s.events.Off(sub)
}

// Watch registers a listener for update events of a single href and
// marks the href as watched, which includes it in Reload and in
// cache-flush notifications.
func (s *Store) Watch(href string, h func(Event)) event.Subscription {
	s.mu.Lock()
	s.watched[href]++
	s.mu.Unlock()
	return s.events.On(updateName(href), h)
}

// Unwatch removes a listener registered with Watch.
func (s *Store) Unwatch(href string, sub event.Subscription) {
	s.events.Off(sub)
	s.mu.Lock()
	if s.watched[href] > 0 {
		s.watched[href]--
	}
	if s.watched[href] == 0 {
		delete(s.watched, href)
	}
	s.mu.Unlock()
}

func updateName(href string) string { return EventUpdate + ":" + href }

// SetBaseHost scopes bearer tokens: they are attached only to requests
// whose target host equals or is a subdomain of the base host.
func (s *Store) SetBaseHost(host string) {
	s.mu.Lock()
	s.baseHost = host
	s.mu.Unlock()
}

// AddTarget associates request headers with a URL prefix; they apply to
// every future request whose href starts with the prefix. Changing
// targets invalidates the entire cache and signals watched hrefs with an
// empty update payload.
func (s *Store) AddTarget(prefix string, header http.Header) {
	s.mu.Lock()
	replaced := false
	for i := range s.targets {
		if s.targets[i].prefix == prefix {
			s.targets[i].header = header
			replaced = true
			break
		}
	}
	if !replaced {
		s.targets = append(s.targets, target{prefix: prefix, header: header})
	}
	s.cache = make(map[requestKey]cacheEntry)
	hrefs := s.watchedHrefs()
	s.mu.Unlock()

	for _, href := range hrefs {
		s.events.Emit(updateName(href), Event{Href: href})
	}
}

// ClearCache drops every cached entity.
func (s *Store) ClearCache() {
	s.mu.Lock()
	s.cache = make(map[requestKey]cacheEntry)
	s.mu.Unlock()
}

// ClearExpired drops cache entries whose freshness window has passed.
func (s *Store) ClearExpired() {
	s.mu.Lock()
	now := s.now()
	for key, entry := range s.cache {
		if entry.expires.Before(now) {
			delete(s.cache, key)
		}
	}
	s.mu.Unlock()
}

// Inflight returns the count of outstanding network requests.
func (s *Store) Inflight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inflight
}

// emitInflight applies delta to the inflight counter and delivers the
// matching event. Requests settle on their own goroutines; emitMu keeps
// each count paired with its emission so the last event a listener
// receives carries the final count.
func (s *Store) emitInflight(id string, delta int) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	s.mu.Lock()
	s.inflight += delta
	count := s.inflight
	s.mu.Unlock()
	s.events.Emit(EventInflight, Event{RequestID: id, Count: count})
}

// Reload refetches every watched href, bypassing the cache.
func (s *Store) Reload(ctx context.Context, token string) {
	s.mu.Lock()
	hrefs := s.watchedHrefs()
	s.mu.Unlock()
	for _, href := range hrefs {
		// Errors surface through the event stream.
		_, _ = s.Get(ctx, GetRequest{Href: href, Token: token, NoCache: true})
	}
}

// watchedHrefs must be called with mu held.
func (s *Store) watchedHrefs() []string {
	hrefs := make([]string, 0, len(s.watched))
	for href := range s.watched {
		hrefs = append(hrefs, href)
	}
	sort.Strings(hrefs)
	return hrefs
}

// Get resolves an href to an entity. A fresh cache entry for the same
// (token, href) scope is returned without network access unless NoCache
// is set. Otherwise the fetch joins any identical in-flight request, and
// on success the cache is updated and update listeners are notified.
//
// HTTP-level failures do not return a Go error: they surface as error
// events and a Result with no entity. The error return is reserved for
// programmer mistakes (invalid href) and transport failures.
func (s *Store) Get(ctx context.Context, req GetRequest) (Result, error) {
	if req.Href == "" {
		return Result{}, codec.ErrInvalidHref
	}
	key := requestKey{token: req.Token, href: req.Href}

	s.mu.Lock()
	if !req.NoCache {
		if entry, ok := s.cache[key]; ok {
			if s.now().Before(entry.expires) {
				s.mu.Unlock()
				return entry.result, nil
			}
			delete(s.cache, key)
		}
	}
	if c, ok := s.requests[key]; ok {
		s.mu.Unlock()
		return s.join(ctx, c)
	}
	c := &call{done: make(chan struct{})}
	s.requests[key] = c
	s.mu.Unlock()

	c.result, c.err = s.do(ctx, siren.NewAction(req.Href), req.Token, nil)

	s.mu.Lock()
	delete(s.requests, key)
	cached := c.err == nil && c.result.Entity != nil
	if cached {
		s.cache[key] = cacheEntry{result: c.result, expires: s.expiry(c.result.Response)}
	}
	s.mu.Unlock()
	close(c.done)

	if cached {
		ev := Event{Href: req.Href, Entity: c.result.Entity, Response: c.result.Response}
		s.events.Emit(EventUpdate, ev)
		s.events.Emit(updateName(req.Href), ev)
	}
	return c.result, c.err
}

// Submit performs an action. Actions are not idempotent, so the cache is
// never consulted and never updated, but submissions share the in-flight
// dedup with gets so identical pending requests resolve together.
func (s *Store) Submit(ctx context.Context, req SubmitRequest) (Result, error) {
	if req.Action == nil {
		return Result{}, codec.ErrNoAction
	}
	key := requestKey{token: req.Token, href: req.Action.Href}

	s.mu.Lock()
	if c, ok := s.requests[key]; ok {
		s.mu.Unlock()
		return s.join(ctx, c)
	}
	c := &call{done: make(chan struct{})}
	s.requests[key] = c
	s.mu.Unlock()

	c.result, c.err = s.do(ctx, req.Action, req.Token, req.Values)

	s.mu.Lock()
	delete(s.requests, key)
	s.mu.Unlock()
	close(c.done)

	return c.result, c.err
}

// join waits for a coalesced in-flight request. Cancelling the joining
// context detaches the caller without cancelling the shared request.
func (s *Store) join(ctx context.Context, c *call) (Result, error) {
	select {
	case <-c.done:
		return c.result, c.err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// expiry computes the freshness deadline from the response's max-age
// directive, falling back to the short default window.
func (s *Store) expiry(resp *Response) time.Time {
	if resp != nil {
		if age, ok := resp.MaxAge(); ok && age > 0 {
			return s.now().Add(age)
		}
	}
	return s.now().Add(s.fresh)
}

// do performs one network exchange with the full event discipline:
// fetch and inflight before dispatch, error on any failure, inflight and
// complete on settle.
func (s *Store) do(ctx context.Context, action *siren.Action, token string, values map[string]any) (Result, error) {
	id := uuid.NewString()

	s.mu.Lock()
	baseHost := s.baseHost
	header := s.headerFor(action.Href)
	s.mu.Unlock()

	s.events.Emit(EventFetch, Event{RequestID: id, Href: action.Href})
	s.emitInflight(id, 1)

	defer func() {
		s.emitInflight(id, -1)
		s.events.Emit(EventComplete, Event{RequestID: id, Href: action.Href})
	}()

	wire, err := codec.Build(action, codec.Options{
		Token:    token,
		BaseHost: baseHost,
		Values:   values,
		Header:   header,
	})
	if err != nil {
		s.events.Emit(EventError, Event{RequestID: id, Href: action.Href, Message: err.Error(), Err: err})
		return Result{}, err
	}

	s.log.Debug("request starting",
		"id", id, "method", wire.Method, "url", wire.URL.String())

	httpReq, err := wire.HTTPRequest(ctx)
	if err != nil {
		s.events.Emit(EventError, Event{RequestID: id, Href: action.Href, Message: err.Error(), Err: err})
		return Result{}, err
	}
	httpResp, err := s.client.Do(httpReq)
	if err != nil {
		s.log.Warn("request failed", "id", id, "url", wire.URL.String(), "error", err)
		s.events.Emit(EventError, Event{RequestID: id, Href: action.Href, Message: err.Error(), Err: err})
		return Result{}, fmt.Errorf("store: request failed: %w", err)
	}
	body, err := io.ReadAll(httpResp.Body)
	httpResp.Body.Close()
	if err != nil {
		s.events.Emit(EventError, Event{RequestID: id, Href: action.Href, Message: err.Error(), Err: err})
		return Result{}, fmt.Errorf("store: reading response: %w", err)
	}

	resp := &Response{
		StatusCode: httpResp.StatusCode,
		Status:     httpResp.Status,
		Header:     httpResp.Header,
		Body:       body,
	}
	s.log.Debug("request settled", "id", id, "status", resp.StatusCode)

	if !resp.OK() {
		msg := fmt.Sprintf("request failed, status: %d (%s)",
			resp.StatusCode, http.StatusText(resp.StatusCode))
		s.events.Emit(EventError, Event{RequestID: id, Href: action.Href, Message: msg, Response: resp})
		return Result{Response: resp}, nil
	}
	if resp.StatusCode == http.StatusNoContent || !resp.IsSiren() {
		return Result{Response: resp}, nil
	}

	entity, err := siren.Parse(body)
	if err != nil {
		msg := fmt.Sprintf("invalid hypermedia response: %v", err)
		s.events.Emit(EventError, Event{RequestID: id, Href: action.Href, Message: msg, Response: resp})
		return Result{Response: resp}, nil
	}
	return Result{Entity: entity, Response: resp}, nil
}

// headerFor merges the headers of every target whose prefix matches the
// href, in registration order. Must be called with mu held.
func (s *Store) headerFor(href string) http.Header {
	var merged http.Header
	for _, t := range s.targets {
		if t.prefix == "" || !strings.HasPrefix(href, t.prefix) {
			continue
		}
		if merged == nil {
			merged = http.Header{}
		}
		for key, values := range t.header {
			merged.Del(key)
			for _, v := range values {
				merged.Add(key, v)
			}
		}
	}
	return merged
}
