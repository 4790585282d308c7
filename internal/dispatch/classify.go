package dispatch

import (
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strings"

	"github.com/GoWebProd/obsidian-jira-master/internal/domain"
	"github.com/GoWebProd/obsidian-jira-master/internal/transport"
)

// Outcome tags one attempt against one account.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	// OutcomeTryNext means this account cannot serve the resource; another one may.
	OutcomeTryNext
	OutcomeFatal
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeTryNext:
		return "try-next"
	default:
		return "fatal"
	}
}

// Classify decides whether an attempt succeeded, should fall through to the next account, or ends the walk.
// Only 4xx falls through; 5xx and transport failures stop the walk.
func Classify(resp *transport.Response, err error, expect domain.Expect) Outcome {
	if err != nil || resp == nil {
		return OutcomeFatal
	}

	switch expect {
	case domain.ExpectBinary:
		if resp.Success() {
			return OutcomeSuccess
		}
	default:
		if resp.StatusCode == http.StatusOK && resp.IsJSON() {
			return OutcomeSuccess
		}
		if resp.StatusCode == http.StatusNoContent {
			return OutcomeSuccess
		}
	}

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return OutcomeTryNext
	}

	return OutcomeFatal
}

const maxServerMessageLen = 300

// loginPagePattern matches the login form or a login title, not any "Log In" link.
var loginPagePattern = regexp.MustCompile(`(?is)(id=["']login-form["']|<title>[^<]*(log\s?in|sign\s?in)[^<]*</title>)`)

// ClassifyError turns a non-success response into a typed error carrying a display message.
func ClassifyError(alias domain.AccountAlias, resp *transport.Response) *domain.APIError {
	if isLoginPage(resp) {
		return &domain.APIError{
			Kind:       domain.ErrLoginRequired,
			StatusCode: resp.StatusCode,
			Account:    alias,
			Message:    "Login required: the server answered with a login page, check the account credentials",
		}
	}

	var label string
	switch resp.StatusCode {
	case http.StatusBadRequest:
		label = "Bad Request: The query is not valid"
	case http.StatusUnauthorized:
		label = "Unauthorized: Please check your authentication credentials"
	case http.StatusForbidden:
		label = "Forbidden: You don't have permission to access this resource"
	case http.StatusNotFound:
		label = "Not Found: The resource does not exist"
	case http.StatusGone:
		label = "API version not available: check the account API version setting"
	case http.StatusTooManyRequests:
		label = fmt.Sprintf("Too Many Requests: still rate limited after %d retries", transport.MaxRetries)
	default:
		if resp.Success() {
			label = "Unexpected response: the server did not answer with JSON"
			break
		}
		text := http.StatusText(resp.StatusCode)
		if text == "" {
			text = "Unexpected response"
		}
		label = fmt.Sprintf("HTTP %d: %s", resp.StatusCode, text)
	}

	message := label
	if detail := serverMessage(resp); detail != "" {
		message = label + " - " + detail
	}

	return &domain.APIError{
		Kind:       domain.KindForStatus(resp.StatusCode),
		StatusCode: resp.StatusCode,
		Account:    alias,
		Message:    message,
	}
}

// isLoginPage reports a login redirect. Only 2xx, 401 and 403 answers qualify, so an HTML
// 404 page with a "Log In" link stays a 404.
func isLoginPage(resp *transport.Response) bool {
	switch {
	case resp.Success(), resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
	default:
		return false
	}

	if resp.Header.Get("X-Seraph-LoginReason") != "" {
		return true
	}
	if !resp.IsHTML() {
		return false
	}
	return strings.EqualFold(resp.Header.Get("X-AUSERNAME"), "anonymous") || loginPagePattern.Match(resp.Body)
}

type jiraErrorBody struct {
	ErrorMessages []string          `json:"errorMessages"`
	Errors        map[string]string `json:"errors"`
	Message       string            `json:"message"`
}

func serverMessage(resp *transport.Response) string {
	if resp.IsJSON() {
		var body jiraErrorBody
		if err := resp.DecodeJSON(&body); err != nil {
			return ""
		}

		parts := make([]string, 0, len(body.ErrorMessages)+len(body.Errors)+1)
		for _, msg := range body.ErrorMessages {
			if msg = strings.TrimSpace(msg); msg != "" {
				parts = append(parts, msg)
			}
		}
		for _, field := range sortedKeys(body.Errors) {
			parts = append(parts, field+": "+body.Errors[field])
		}
		if msg := strings.TrimSpace(body.Message); msg != "" {
			parts = append(parts, msg)
		}
		return strings.Join(parts, "; ")
	}

	if resp.IsHTML() {
		return ""
	}

	text := strings.TrimSpace(resp.Text())
	if len(text) > maxServerMessageLen {
		text = text[:maxServerMessageLen] + "..."
	}
	return text
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
