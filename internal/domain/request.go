package domain

import "net/url"

// Expect selects how a 2xx response is judged successful.
type Expect int

const (
	ExpectJSON Expect = iota
	ExpectBinary
)

// Request is a logical API call; it is bound to an account only when dispatched.
type Request struct {
	Method string
	// Path is relative to the account's API base path.
	Path string
	// AlternatePath replaces Path for accounts using the v3 API.
	AlternatePath string
	// URL is an absolute address used instead of Path, e.g. for attachments.
	URL     string
	Query   url.Values
	Body    any
	Account AccountAlias
	Expect  Expect
}

func (r Request) AnyAccount() bool {
	return r.Account == ""
}
