// Package navigation provides helpers for safe URL navigation and redirects.
package navigation

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/dalemusser/waffle/pantry/query"
	"github.com/dalemusser/waffle/pantry/urlutil"
)

// ReturnParam is the query/form field carrying the page to go back to.
const ReturnParam = "return"

// excluded are paths a return URL may not point at; landing on them after
// sign-in would loop or sign the user straight out again.
var excluded = []string{"/start", "/logout"}

// ReturnURL extracts and validates a return URL from the request.
//
// It checks the query parameter first, then the posted form value. Only
// local paths survive urlutil.SafeReturn, so a crafted value cannot turn
// sign-in into an open redirect. Anything rejected yields fallback.
func ReturnURL(r *http.Request, fallback string) string {
	if ret := Clean(query.Get(r, ReturnParam)); ret != "" {
		return ret
	}
	if ret := Clean(r.PostFormValue(ReturnParam)); ret != "" {
		return ret
	}
	return fallback
}

// Clean returns raw if it is a safe local return target, or "".
func Clean(raw string) string {
	ret := urlutil.SafeReturn(strings.TrimSpace(raw), "", "")
	if ret == "" {
		return ""
	}
	for _, p := range excluded {
		if ret == p || strings.HasPrefix(ret, p+"/") || strings.HasPrefix(ret, p+"?") {
			return ""
		}
	}
	return ret
}

// WithReturn appends ret to target as the return parameter. An empty ret
// leaves target unchanged.
func WithReturn(target, ret string) string {
	if ret == "" {
		return target
	}
	sep := "?"
	if strings.Contains(target, "?") {
		sep = "&"
	}
	return target + sep + ReturnParam + "=" + url.QueryEscape(ret)
}
