package engine

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/go-github/v81/github"
)

// FetchError reports a failed organization listing. It is always fatal: the
// run stops before any repository is touched.
type FetchError struct {
	Org  string
	Page int
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to list repositories for %s (page %d): %s", e.Org, e.Page, presentFetchError(e.Err))
}

func (e *FetchError) Unwrap() error { return e.Err }

// presentFetchError renders GitHub API errors without the full request URL.
func presentFetchError(err error) string {
	if err == nil {
		return "unknown error"
	}

	var rl *github.RateLimitError
	if errors.As(err, &rl) {
		return fmt.Sprintf("GitHub API rate limit exceeded (resets at %s)", rl.Rate.Reset.UTC().Format("15:04:05 MST"))
	}

	var er *github.ErrorResponse
	if errors.As(err, &er) {
		msg := strings.TrimSpace(er.Message)
		if msg == "" {
			msg = "GitHub API request failed"
		}
		if er.Response != nil {
			return fmt.Sprintf("GitHub API request failed (%d %s): %s", er.Response.StatusCode, http.StatusText(er.Response.StatusCode), msg)
		}
		return fmt.Sprintf("GitHub API request failed: %s", msg)
	}

	s := strings.TrimSpace(err.Error())
	if scrubbed := scrubGitHubRequestFromErrorString(s); scrubbed != "" {
		return scrubbed
	}
	return s
}

func scrubGitHubRequestFromErrorString(s string) string {
	// Typical go-github error format:
	//   GET https://api.github.com/...: 403 Some message. [..]
	// We want to drop the leading "GET https://...: " part.
	methods := []string{"GET ", "POST ", "PUT ", "PATCH ", "DELETE "}
	for _, m := range methods {
		if strings.HasPrefix(s, m) {
			for _, scheme := range []string{"https://", "http://"} {
				if i := strings.Index(s, scheme); i >= 0 {
					if j := strings.Index(s[i:], ": "); j >= 0 {
						return strings.TrimSpace(s[i+j+2:])
					}
				}
			}
			if j := strings.Index(s, ": "); j >= 0 {
				return strings.TrimSpace(s[j+2:])
			}
			break
		}
	}
	return ""
}
