// Package codec turns a Siren action plus supplied field values into the
// wire-level parts of an HTTP request: target URL, method, headers and
// encoded body.
//
// The encoding follows the action's method and media type. GET and HEAD
// carry all field values in the query string and never produce a body;
// JSON media types collapse fields into a flat object body; urlencoded
// types produce a form body; anything else (multipart) encodes fields and
// attached files as multipart form data.
package codec

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"github.com/stephenwright/shipwreck/lib/siren"
)

// Sentinel errors for malformed submissions. These signal programmer
// mistakes and are returned before any request is attempted.
var (
	ErrNoAction    = errors.New("codec: no action given")
	ErrInvalidHref = errors.New("codec: invalid href")
)

// Request is the wire-level form of an action submission, ready to be
// turned into an *http.Request.
type Request struct {
	Method string
	URL    *url.URL
	Header http.Header
	Body   []byte
}

// Options carries the request-independent context for building a
// request.
type Options struct {
	// Token is attached as a bearer Authorization header, but only when
	// the target host is in scope (see BaseHost).
	Token string

	// BaseHost scopes the token: it is attached only to hosts equal to
	// or subdomains of BaseHost. Empty means unrestricted.
	BaseHost string

	// Values are programmatic field overrides, merged over the action's
	// declared fields after bracket-notation flattening.
	Values map[string]any

	// Header lists extra headers (e.g. per-target options) applied after
	// encoding. Values here override encoded defaults.
	Header http.Header
}

// Build encodes the action into a Request. The action's href must be an
// absolute URL; relative hrefs are resolved by the caller beforehand.
func Build(action *siren.Action, opts Options) (*Request, error) {
	if action == nil {
		return nil, ErrNoAction
	}
	if action.Href == "" {
		return nil, ErrInvalidHref
	}
	u, err := url.Parse(action.Href)
	if err != nil || !u.IsAbs() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidHref, action.Href)
	}

	method := strings.ToUpper(action.Method)
	if method == "" {
		method = siren.DefaultMethod
	}

	fields := action.Fields
	if len(opts.Values) > 0 {
		fields = MergeFields(fields, FieldsFromValues(opts.Values))
	}

	req := &Request{Method: method, URL: u, Header: http.Header{}}
	if err := encode(req, action.Type, fields); err != nil {
		return nil, err
	}

	if opts.Token != "" && hostInScope(u.Hostname(), opts.BaseHost) {
		req.Header.Set("Authorization", "Bearer "+opts.Token)
	}
	for key, values := range opts.Header {
		req.Header.Del(key)
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	return req, nil
}

// encode applies the media-type rules to the field list. Repeated field
// names are preserved everywhere except the JSON object form, where the
// last occurrence wins.
func encode(req *Request, mediaType string, fields []siren.Field) error {
	if req.Method == http.MethodGet || req.Method == http.MethodHead {
		if len(fields) > 0 {
			req.URL.RawQuery = appendQuery(req.URL.RawQuery, fields)
		}
		return nil
	}
	if len(fields) == 0 {
		return nil
	}
	switch {
	case strings.Contains(mediaType, "json"):
		body := make(map[string]any, len(fields))
		for _, f := range fields {
			body[f.Name] = f.Value
		}
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		req.Body = data
		req.Header.Set("Content-Type", mediaType)
	case strings.Contains(mediaType, "application/x-www-form-urlencoded"):
		req.Body = []byte(formEncode(fields))
		req.Header.Set("Content-Type", mediaType)
	default:
		// Multipart. The boundary comes from the multipart writer, so the
		// action's declared type is never copied into the header.
		var buf bytes.Buffer
		w := multipart.NewWriter(&buf)
		for _, f := range fields {
			if len(f.Files) > 0 {
				for _, file := range f.Files {
					part, err := w.CreateFormFile(f.Name, file.Name)
					if err != nil {
						return err
					}
					if _, err := part.Write(file.Content); err != nil {
						return err
					}
				}
				continue
			}
			if err := w.WriteField(f.Name, stringValue(f.Value)); err != nil {
				return err
			}
		}
		if err := w.Close(); err != nil {
			return err
		}
		req.Body = buf.Bytes()
		req.Header.Set("Content-Type", w.FormDataContentType())
	}
	return nil
}

// HTTPRequest converts the built request into an *http.Request bound to
// ctx.
func (r *Request) HTTPRequest(ctx context.Context) (*http.Request, error) {
	var body io.Reader
	if r.Body != nil {
		body = bytes.NewReader(r.Body)
	}
	req, err := http.NewRequestWithContext(ctx, r.Method, r.URL.String(), body)
	if err != nil {
		return nil, err
	}
	for key, values := range r.Header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	return req, nil
}

// appendQuery adds each field to the query string in order, preserving
// any query already present on the href.
func appendQuery(existing string, fields []siren.Field) string {
	var sb strings.Builder
	sb.WriteString(existing)
	for _, f := range fields {
		if sb.Len() > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(escape(f.Name))
		sb.WriteByte('=')
		sb.WriteString(escape(stringValue(f.Value)))
	}
	return sb.String()
}

// formEncode serializes fields as an urlencoded body, preserving order
// and every occurrence of repeated names.
func formEncode(fields []siren.Field) string {
	var sb strings.Builder
	for i, f := range fields {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(escape(f.Name))
		sb.WriteByte('=')
		sb.WriteString(escape(stringValue(f.Value)))
	}
	return sb.String()
}

// escape percent-encodes a query component, using %20 for spaces.
func escape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// stringValue renders a field value for form transport.
func stringValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	default:
		return fmt.Sprintf("%v", val)
	}
}

// hostInScope reports whether the token may be sent to host: it must
// equal base or be one of its subdomains. An empty base places no
// restriction.
func hostInScope(host, base string) bool {
	if base == "" {
		return true
	}
	host = strings.ToLower(host)
	base = strings.ToLower(base)
	return host == base || strings.HasSuffix(host, "."+base)
}
