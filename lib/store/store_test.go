package store

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/stephenwright/shipwreck/lib/codec"
	"github.com/stephenwright/shipwreck/lib/siren"
)

const testDoc = `{"class":["box"],"properties":{"label":"stuff"},"links":[{"rel":["self"],"href":"http://api.example.com/boxes/1"}]}`

// sirenHandler serves a fixed document and counts hits.
func sirenHandler(hits *atomic.Int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/vnd.siren+json")
		w.Write([]byte(testDoc))
	}
}

func TestGetParsesEntity(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(sirenHandler(&hits))
	defer srv.Close()

	s := New()
	res, err := s.Get(context.Background(), GetRequest{Href: srv.URL})
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if res.Entity == nil {
		t.Fatal("Get() entity = nil")
	}
	if got, want := res.Entity.Class, []string{"box"}; !cmp.Equal(got, want) {
		t.Errorf("Class = %v, want %v", got, want)
	}
	if res.Response == nil || res.Response.StatusCode != http.StatusOK {
		t.Errorf("Response = %+v", res.Response)
	}
}

func TestGetRejectsEmptyHref(t *testing.T) {
	s := New()
	if _, err := s.Get(context.Background(), GetRequest{}); !errors.Is(err, codec.ErrInvalidHref) {
		t.Errorf("Get() error = %v, want ErrInvalidHref", err)
	}
}

func TestGetServesFromCache(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(sirenHandler(&hits))
	defer srv.Close()

	s := New()
	first, err := s.Get(context.Background(), GetRequest{Href: srv.URL})
	if err != nil {
		t.Fatalf("first Get() error = %v", err)
	}
	second, err := s.Get(context.Background(), GetRequest{Href: srv.URL})
	if err != nil {
		t.Fatalf("second Get() error = %v", err)
	}

	if hits.Load() != 1 {
		t.Errorf("server hits = %d, want 1", hits.Load())
	}
	opts := cmpopts.IgnoreUnexported(siren.Entity{})
	if diff := cmp.Diff(first, second, opts); diff != "" {
		t.Errorf("cached result mismatch (-first +second):\n%s", diff)
	}
}

func TestGetNoCacheBypassesCache(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(sirenHandler(&hits))
	defer srv.Close()

	s := New()
	if _, err := s.Get(context.Background(), GetRequest{Href: srv.URL}); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if _, err := s.Get(context.Background(), GetRequest{Href: srv.URL, NoCache: true}); err != nil {
		t.Fatalf("Get(NoCache) error = %v", err)
	}
	if hits.Load() != 2 {
		t.Errorf("server hits = %d, want 2", hits.Load())
	}
}

func TestGetCacheExpiry(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(sirenHandler(&hits))
	defer srv.Close()

	var mu sync.Mutex
	now := time.Unix(1000, 0)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	advance := func(d time.Duration) {
		mu.Lock()
		now = now.Add(d)
		mu.Unlock()
	}

	s := New(WithClock(clock), WithFreshness(10*time.Second))
	ctx := context.Background()

	s.Get(ctx, GetRequest{Href: srv.URL})
	advance(5 * time.Second)
	s.Get(ctx, GetRequest{Href: srv.URL})
	if hits.Load() != 1 {
		t.Fatalf("hits after 5s = %d, want 1", hits.Load())
	}

	advance(6 * time.Second)
	s.Get(ctx, GetRequest{Href: srv.URL})
	if hits.Load() != 2 {
		t.Errorf("hits after 11s = %d, want 2", hits.Load())
	}
}

func TestGetHonorsMaxAge(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Cache-Control", "max-age=60")
		w.Header().Set("Content-Type", "application/vnd.siren+json")
		w.Write([]byte(testDoc))
	}))
	defer srv.Close()

	var mu sync.Mutex
	now := time.Unix(1000, 0)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}

	s := New(WithClock(clock), WithFreshness(time.Second))
	ctx := context.Background()

	s.Get(ctx, GetRequest{Href: srv.URL})
	mu.Lock()
	now = now.Add(30 * time.Second)
	mu.Unlock()
	s.Get(ctx, GetRequest{Href: srv.URL})

	if hits.Load() != 1 {
		t.Errorf("hits = %d, want 1 while within max-age", hits.Load())
	}
}

func TestGetCoalescesIdenticalRequests(t *testing.T) {
	var hits atomic.Int64
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		<-release
		w.Header().Set("Content-Type", "application/vnd.siren+json")
		w.Write([]byte(testDoc))
	}))
	defer srv.Close()

	s := New()
	ctx := context.Background()

	const callers = 4
	results := make([]Result, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = s.Get(ctx, GetRequest{Href: srv.URL})
		}(i)
	}

	// Let the first caller reach the server, then release everyone.
	for s.Inflight() == 0 {
		time.Sleep(time.Millisecond)
	}
	close(release)
	wg.Wait()

	if hits.Load() != 1 {
		t.Errorf("server hits = %d, want 1 for %d coalesced callers", hits.Load(), callers)
	}
	opts := cmpopts.IgnoreUnexported(siren.Entity{})
	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d error = %v", i, errs[i])
		}
		if diff := cmp.Diff(results[0], results[i], opts); diff != "" {
			t.Errorf("caller %d result mismatch:\n%s", i, diff)
		}
	}
}

func TestJoinDetachesOnContextCancel(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(testDoc))
	}))
	defer srv.Close()

	s := New()
	done := make(chan Result, 1)
	go func() {
		res, _ := s.Get(context.Background(), GetRequest{Href: srv.URL})
		done <- res
	}()
	for s.Inflight() == 0 {
		time.Sleep(time.Millisecond)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Get(ctx, GetRequest{Href: srv.URL})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("joining Get() error = %v, want context.Canceled", err)
	}

	// The shared request was not cancelled with the joiner.
	close(release)
	if res := <-done; res.Entity == nil {
		t.Error("original request failed after joiner detached")
	}
}

func TestCacheScopedByToken(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(sirenHandler(&hits))
	defer srv.Close()

	s := New()
	ctx := context.Background()
	s.Get(ctx, GetRequest{Href: srv.URL, Token: "alice"})
	s.Get(ctx, GetRequest{Href: srv.URL, Token: "bob"})

	if hits.Load() != 2 {
		t.Errorf("server hits = %d, want one per token scope", hits.Load())
	}
}

func TestGetEmitsLifecycleEvents(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(sirenHandler(&hits))
	defer srv.Close()

	s := New()
	var names []string
	var counts []int
	for _, name := range []string{EventFetch, EventInflight, EventComplete, EventUpdate} {
		name := name
		s.On(name, func(ev Event) {
			names = append(names, name)
			if name == EventInflight {
				counts = append(counts, ev.Count)
			}
		})
	}

	if _, err := s.Get(context.Background(), GetRequest{Href: srv.URL}); err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	want := []string{EventFetch, EventInflight, EventInflight, EventComplete, EventUpdate}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("event order mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{1, 0}, counts); diff != "" {
		t.Errorf("inflight counts mismatch (-want +got):\n%s", diff)
	}
}

func TestConcurrentGetsTrackInflightCount(t *testing.T) {
	const n = 32

	var arrived atomic.Int64
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if arrived.Add(1) == n {
			close(release)
		}
		<-release
		w.Header().Set("Content-Type", "application/vnd.siren+json")
		w.Write([]byte(testDoc))
	}))
	defer srv.Close()

	s := New()
	var mu sync.Mutex
	var counts []int
	s.On(EventInflight, func(ev Event) {
		mu.Lock()
		counts = append(counts, ev.Count)
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			href := fmt.Sprintf("%s/boxes/%d", srv.URL, i)
			if _, err := s.Get(context.Background(), GetRequest{Href: href}); err != nil {
				t.Errorf("Get(%s) error = %v", href, err)
			}
		}(i)
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(counts) != 2*n {
		t.Fatalf("inflight events = %d, want %d", len(counts), 2*n)
	}
	peak := 0
	for _, c := range counts {
		if c < 0 {
			t.Fatalf("inflight count = %d, want >= 0", c)
		}
		if c > peak {
			peak = c
		}
	}
	if peak != n {
		t.Errorf("peak inflight count = %d, want %d", peak, n)
	}
	if last := counts[len(counts)-1]; last != 0 {
		t.Errorf("final inflight count = %d, want 0", last)
	}
	if got := s.Inflight(); got != 0 {
		t.Errorf("Inflight() = %d, want 0", got)
	}
}

func TestGetEmitsScopedUpdate(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(sirenHandler(&hits))
	defer srv.Close()

	s := New()
	var got []Event
	sub := s.Watch(srv.URL, func(ev Event) { got = append(got, ev) })
	defer s.Unwatch(srv.URL, sub)

	if _, err := s.Get(context.Background(), GetRequest{Href: srv.URL}); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(got) != 1 || got[0].Entity == nil || got[0].Href != srv.URL {
		t.Errorf("watched events = %+v, want one update with entity", got)
	}
}

func TestErrorStatusEmitsErrorEvent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := New()
	var events []Event
	s.On(EventError, func(ev Event) { events = append(events, ev) })

	res, err := s.Get(context.Background(), GetRequest{Href: srv.URL})

	// HTTP-level failure is not a Go error.
	if err != nil {
		t.Fatalf("Get() error = %v, want nil", err)
	}
	if res.Entity != nil {
		t.Error("entity should be nil on error status")
	}
	if res.Response == nil || res.Response.StatusCode != http.StatusInternalServerError {
		t.Fatalf("Response = %+v", res.Response)
	}
	if len(events) != 1 {
		t.Fatalf("error events = %d, want 1", len(events))
	}
	if want := "request failed, status: 500"; !strings.Contains(events[0].Message, want) {
		t.Errorf("Message = %q, want containing %q", events[0].Message, want)
	}
}

func TestTransportErrorReturnsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	s := New()
	var events []Event
	s.On(EventError, func(ev Event) { events = append(events, ev) })

	_, err := s.Get(context.Background(), GetRequest{Href: srv.URL})
	if err == nil {
		t.Fatal("Get() error = nil, want transport error")
	}
	if len(events) != 1 || events[0].Err == nil {
		t.Errorf("error events = %+v, want one with Err set", events)
	}
}

func TestNoContentYieldsNoEntity(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	s := New()
	var errCount int
	s.On(EventError, func(Event) { errCount++ })

	res, err := s.Get(context.Background(), GetRequest{Href: srv.URL})
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if res.Entity != nil {
		t.Error("entity should be nil for 204")
	}
	if errCount != 0 {
		t.Errorf("error events = %d, want 0", errCount)
	}
}

func TestNonSirenContentIsOpaque(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html></html>"))
	}))
	defer srv.Close()

	s := New()
	res, err := s.Get(context.Background(), GetRequest{Href: srv.URL})
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if res.Entity != nil {
		t.Error("entity should be nil for non-hypermedia content")
	}
	if string(res.Response.Body) != "<html></html>" {
		t.Errorf("Body = %q", res.Response.Body)
	}
}

func TestUnparseableSirenEmitsErrorEvent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"class": [`))
	}))
	defer srv.Close()

	s := New()
	var events []Event
	s.On(EventError, func(ev Event) { events = append(events, ev) })

	res, err := s.Get(context.Background(), GetRequest{Href: srv.URL})
	if err != nil {
		t.Fatalf("Get() error = %v, want nil", err)
	}
	if res.Entity != nil {
		t.Error("entity should be nil for malformed document")
	}
	if len(events) != 1 {
		t.Errorf("error events = %d, want 1", len(events))
	}
}

func TestSubmitAlwaysHitsNetwork(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(sirenHandler(&hits))
	defer srv.Close()

	s := New()
	ctx := context.Background()
	action := &siren.Action{Name: "update", Href: srv.URL, Method: "POST", Type: siren.DefaultActionType}

	for i := 0; i < 2; i++ {
		if _, err := s.Submit(ctx, SubmitRequest{Action: action}); err != nil {
			t.Fatalf("Submit() error = %v", err)
		}
	}
	if hits.Load() != 2 {
		t.Errorf("server hits = %d, want 2", hits.Load())
	}
}

func TestSubmitRejectsNilAction(t *testing.T) {
	s := New()
	if _, err := s.Submit(context.Background(), SubmitRequest{}); !errors.Is(err, codec.ErrNoAction) {
		t.Errorf("Submit() error = %v, want ErrNoAction", err)
	}
}

func TestSubmitSendsValues(t *testing.T) {
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		gotBody = r.PostForm.Encode()
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(testDoc))
	}))
	defer srv.Close()

	s := New()
	action := &siren.Action{
		Name:   "update",
		Href:   srv.URL,
		Method: "POST",
		Type:   siren.DefaultActionType,
		Fields: []siren.Field{{Name: "label", Value: "old"}},
	}
	if _, err := s.Submit(context.Background(), SubmitRequest{Action: action, Values: map[string]any{"label": "new"}}); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if gotBody != "label=new" {
		t.Errorf("form body = %q, want %q", gotBody, "label=new")
	}
}

func TestTokenAttachedWithinBaseHost(t *testing.T) {
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(testDoc))
	}))
	defer srv.Close()

	s := New()
	if _, err := s.Get(context.Background(), GetRequest{Href: srv.URL, Token: "tok"}); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if auth != "Bearer tok" {
		t.Errorf("Authorization = %q, want %q", auth, "Bearer tok")
	}

	// Scoping to an unrelated base host withholds the token.
	auth = ""
	s.SetBaseHost("example.com")
	if _, err := s.Get(context.Background(), GetRequest{Href: srv.URL, Token: "tok", NoCache: true}); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if auth != "" {
		t.Errorf("Authorization = %q, want none for out-of-scope host", auth)
	}
}

func TestAddTargetHeadersAndFlush(t *testing.T) {
	var hits atomic.Int64
	var apiKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		apiKey = r.Header.Get("X-Api-Key")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(testDoc))
	}))
	defer srv.Close()

	s := New()
	ctx := context.Background()
	s.Get(ctx, GetRequest{Href: srv.URL})

	var flushes []Event
	sub := s.Watch(srv.URL, func(ev Event) { flushes = append(flushes, ev) })
	defer s.Unwatch(srv.URL, sub)

	s.AddTarget(srv.URL, http.Header{"X-Api-Key": {"secret"}})

	// The flush signal carries no entity.
	if len(flushes) != 1 || flushes[0].Entity != nil || flushes[0].Href != srv.URL {
		t.Fatalf("flush events = %+v, want one empty update", flushes)
	}

	// Cache was invalidated, and the new request carries the header.
	s.Get(ctx, GetRequest{Href: srv.URL})
	if hits.Load() != 2 {
		t.Errorf("server hits = %d, want 2 after target change", hits.Load())
	}
	if apiKey != "secret" {
		t.Errorf("X-Api-Key = %q, want %q", apiKey, "secret")
	}
}

func TestReloadRefetchesWatchedHrefs(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(sirenHandler(&hits))
	defer srv.Close()

	s := New()
	ctx := context.Background()
	var updates int
	sub := s.Watch(srv.URL, func(Event) { updates++ })
	defer s.Unwatch(srv.URL, sub)

	s.Get(ctx, GetRequest{Href: srv.URL})
	s.Reload(ctx, "")

	if hits.Load() != 2 {
		t.Errorf("server hits = %d, want 2", hits.Load())
	}
	if updates != 2 {
		t.Errorf("watched updates = %d, want 2", updates)
	}
}

func TestClearExpired(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(sirenHandler(&hits))
	defer srv.Close()

	var mu sync.Mutex
	now := time.Unix(1000, 0)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}

	s := New(WithClock(clock), WithFreshness(10*time.Second))
	ctx := context.Background()
	s.Get(ctx, GetRequest{Href: srv.URL})

	mu.Lock()
	now = now.Add(time.Minute)
	mu.Unlock()
	s.ClearExpired()

	s.Get(ctx, GetRequest{Href: srv.URL})
	if hits.Load() != 2 {
		t.Errorf("server hits = %d, want 2 after expiry sweep", hits.Load())
	}
}
