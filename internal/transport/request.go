package transport

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/GoWebProd/obsidian-jira-master/internal/domain"
	"github.com/GoWebProd/obsidian-jira-master/internal/version"
	"github.com/goccy/go-json"
)

// BuildURL joins host, API base path and resource path without doubling separators.
func BuildURL(host string, basePath string, path string, query url.Values) string {
	segments := make([]string, 0, 2)
	for _, segment := range []string{basePath, path} {
		trimmed := strings.Trim(segment, "/")
		if trimmed != "" {
			segments = append(segments, trimmed)
		}
	}

	endpoint := strings.TrimRight(strings.TrimSpace(host), "/")
	if len(segments) > 0 {
		endpoint += "/" + strings.Join(segments, "/")
	}

	return withQuery(endpoint, query)
}

func withQuery(endpoint string, query url.Values) string {
	if len(query) == 0 {
		return endpoint
	}

	separator := "?"
	if strings.Contains(endpoint, "?") {
		separator = "&"
	}
	return endpoint + separator + query.Encode()
}

// Headers returns the headers every request to the account carries.
func Headers(account domain.Account) http.Header {
	header := http.Header{}
	header.Set("User-Agent", version.Product())
	header.Set("Accept", "application/json")
	if value := account.Auth.HeaderValue(); value != "" {
		header.Set("Authorization", value)
	}
	return header
}

// NewRequest binds a logical request to an account. Credentials are only attached to
// absolute URLs on the account's own host.
func NewRequest(account domain.Account, logical domain.Request) (*Request, error) {
	method := logical.Method
	if method == "" {
		method = http.MethodGet
	}

	endpoint := logical.URL
	if endpoint != "" {
		endpoint = withQuery(endpoint, logical.Query)
	} else {
		path := account.ResourcePath(logical.Path, logical.AlternatePath)
		endpoint = BuildURL(account.Host, account.BasePath(), path, logical.Query)
	}

	header := Headers(account)
	if logical.URL != "" && !account.HostsURL(logical.URL) {
		header.Del("Authorization")
	}
	if logical.Expect == domain.ExpectBinary {
		header.Set("Accept", "*/*")
	}
	var body []byte
	if logical.Body != nil {
		encoded, err := json.Marshal(logical.Body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		body = encoded
		header.Set("Content-Type", "application/json")
	}

	return &Request{
		Method: method,
		URL:    endpoint,
		Header: header,
		Body:   body,
	}, nil
}
