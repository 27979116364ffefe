package store

import (
	"net/http"
	"regexp"
	"strconv"
	"time"
)

// Response captures the relevant parts of an HTTP exchange after the
// body has been drained. It is retained alongside cached entities so
// observers can inspect status and headers of the originating request.
type Response struct {
	StatusCode int
	Status     string
	Header     http.Header
	Body       []byte
}

// OK reports whether the status is in the 2xx range.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// ContentType returns the content-type header, if any.
func (r *Response) ContentType() string {
	return r.Header.Get("Content-Type")
}

// Media types that parse as Siren documents: application/json and the
// vendor subtype.
var sirenType = regexp.MustCompile(`application/(vnd\.siren\+)?json`)

// IsSiren reports whether the response body should be parsed as a
// hypermedia document. Anything else is opaque response content.
func (r *Response) IsSiren() bool {
	return sirenType.MatchString(r.ContentType())
}

var maxAgePattern = regexp.MustCompile(`max-age=(\d+)`)

// MaxAge extracts the cache-control max-age directive. The second
// return is false when the directive is absent or malformed.
func (r *Response) MaxAge() (time.Duration, bool) {
	m := maxAgePattern.FindStringSubmatch(r.Header.Get("Cache-Control"))
	if m == nil {
		return 0, false
	}
	secs, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return time.Duration(secs) * time.Second, true
}
