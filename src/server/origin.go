package server

import (
	"net/http"
	"path"
	"strings"
)

// OriginChecker accepts requests whose Origin matches one of the glob
// patterns, such as "chrome-extension://*" or "http://localhost:*".
// Requests without an Origin header come from non-browser clients and are
// accepted.
func OriginChecker(allowed []string) func(r *http.Request) bool {
	patterns := make([]string, 0, len(allowed))
	for _, p := range allowed {
		if p = strings.TrimSpace(p); p != "" {
			patterns = append(patterns, strings.ToLower(p))
		}
	}
	return func(r *http.Request) bool {
		origin := strings.ToLower(r.Header.Get("Origin"))
		if origin == "" {
			return true
		}
		for _, p := range patterns {
			if p == "*" || p == origin {
				return true
			}
			if ok, err := path.Match(p, origin); err == nil && ok {
				return true
			}
		}
		return false
	}
}
