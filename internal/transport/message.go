package transport

import (
	"mime"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
)

// Request is one fully addressed HTTP exchange bound to a single account.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

func (r *Response) ContentType() string {
	if r == nil || r.Header == nil {
		return ""
	}

	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return strings.ToLower(strings.TrimSpace(r.Header.Get("Content-Type")))
	}
	return mediaType
}

// IsJSON reports whether the body is a JSON document. A declared non-JSON content type wins.
func (r *Response) IsJSON() bool {
	if r == nil || len(r.Body) == 0 {
		return false
	}

	contentType := r.ContentType()
	if contentType != "" && !strings.Contains(contentType, "json") {
		return false
	}

	return json.Valid(r.Body)
}

func (r *Response) IsHTML() bool {
	return r != nil && r.ContentType() == "text/html"
}

func (r *Response) Text() string {
	if r == nil {
		return ""
	}
	return string(r.Body)
}

func (r *Response) DecodeJSON(v any) error {
	return json.Unmarshal(r.Body, v)
}

func (r *Response) Success() bool {
	return r != nil && r.StatusCode >= http.StatusOK && r.StatusCode < http.StatusMultipleChoices
}
