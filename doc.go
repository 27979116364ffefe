// Package shipwreck is a client for browsing Siren hypermedia APIs.
//
// A Siren API describes itself: every response is a JSON document
// carrying the resource's properties, links to related resources, and
// the actions that may be performed against it. shipwreck fetches those
// documents, parses them into typed entities, and turns user choices
// (follow a link, submit an action form) back into HTTP requests.
//
// # Quick start
//
//	ship := shipwreck.New()
//	if err := ship.SetBaseURI("https://api.example.com"); err != nil {
//	    log.Fatal(err)
//	}
//	ship.On(shipwreck.EventError, func(ev store.Event) {
//	    fmt.Println("banner:", ev.Message)
//	})
//
//	res, err := ship.Fetch(ctx, "/boxes/1")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	res.Entity.Property("label")
//
// # Structure
//
// The heavy lifting lives in the lib packages:
//   - lib/siren: the entity model (parsing, validation, serialization)
//   - lib/codec: action submission encoding (URL, method, headers, body)
//   - lib/store: request coalescing, caching, and the event stream
//   - lib/event: the pub/sub primitive the store and client share
//   - lib/session: persistence of the base URI and auth token
//
// The Client in this package is thin orchestration: it owns the base
// URI and token (persisting both across sessions), resolves relative
// paths, scopes the cache to the active token, and re-raises store
// events for the rendering layer. EntityView and friends render a
// fetched entity as HTML; they consume only the public entity model and
// carry no client logic.
//
// # Error contract
//
// HTTP-level failures never surface as Go errors: Fetch and Submit
// return a Result whose Entity is nil and raise an error event carrying
// a human-readable message and the raw response. Go errors are reserved
// for programmer mistakes (ErrInvalidHref, ErrNoAction) and transport
// failures.
package shipwreck
