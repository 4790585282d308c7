package domain

import (
	"encoding/base64"
	"fmt"
	"strings"
)

type AuthKind string

const (
	AuthKindNone   AuthKind = "none"
	AuthKindBasic  AuthKind = "basic"
	AuthKindCloud  AuthKind = "cloud"
	AuthKindBearer AuthKind = "bearer"
)

type Auth struct {
	Kind     AuthKind
	Username string
	// Password holds the password for basic auth and the API token for cloud auth.
	Password string
	Token    string
}

func ParseAuthKind(raw string) (AuthKind, error) {
	switch kind := AuthKind(strings.ToLower(strings.TrimSpace(raw))); kind {
	case "", AuthKindNone:
		return AuthKindNone, nil
	case AuthKindBasic, AuthKindCloud, AuthKindBearer:
		return kind, nil
	default:
		return "", fmt.Errorf("unsupported auth kind %q", raw)
	}
}

func (a Auth) Validate() error {
	switch a.Kind {
	case "", AuthKindNone:
		return nil
	case AuthKindBasic, AuthKindCloud:
		if strings.TrimSpace(a.Username) == "" {
			return fmt.Errorf("%s auth requires a username", a.Kind)
		}
		return nil
	case AuthKindBearer:
		if strings.TrimSpace(a.Token) == "" {
			return fmt.Errorf("bearer auth requires a token")
		}
		return nil
	default:
		return fmt.Errorf("unsupported auth kind %q", a.Kind)
	}
}

// HeaderValue returns the Authorization header value, or "" when no header is sent.
func (a Auth) HeaderValue() string {
	switch a.Kind {
	case AuthKindBasic, AuthKindCloud:
		return "Basic " + base64.StdEncoding.EncodeToString([]byte(a.Username+":"+a.Password))
	case AuthKindBearer:
		return "Bearer " + a.Token
	default:
		return ""
	}
}
