// Package keys derives stable cache keys from request identity.
package keys

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
)

// ForRequest derives the cache key for an endpoint from its path and the
// unordered set of query parameters. The key is a pure function of both:
// parameter order and client encoding do not matter, and the xxhash suffix is
// stable across processes so keys survive restarts and are shared across
// horizontally scaled instances.
func ForRequest(path string, params url.Values) string {
	canon := canonicalParams(params)
	safe := sanitizeForKey(canon)

	const maxParamTextLen = 160
	if len(safe) > maxParamTextLen {
		safe = safe[:maxParamTextLen]
	}

	sum := xxhash.Sum64String(path + "?" + canon)

	return fmt.Sprintf("%s:q=%s:h=%016x", sanitizePath(path), safe, sum)
}

// canonicalParams encodes params as sorted k=v pairs joined by '&'. Values
// within a repeated name are sorted too, so {a:[1,2]} and {a:[2,1]} agree.
// Names and values are percent-encoded so the encoding is injective: a '&'
// or '=' inside a value cannot masquerade as pair structure.
func canonicalParams(params url.Values) string {
	if len(params) == 0 {
		return ""
	}
	names := make([]string, 0, len(params))
	for k := range params {
		names = append(names, k)
	}
	sort.Strings(names)

	var b strings.Builder
	first := true
	for _, k := range names {
		vals := append([]string(nil), params[k]...)
		sort.Strings(vals)
		for _, v := range vals {
			if !first {
				b.WriteByte('&')
			}
			first = false
			b.WriteString(url.QueryEscape(k))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(v))
		}
	}
	return b.String()
}

func sanitizeForKey(s string) string {
	if s == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(s))

	var prev rune
	for _, r := range s {
		out := rune(0)
		switch {
		case r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f':
			out = '_'
		case isAlphaNum(r) || r == ':' || r == '_' || r == '-' || r == '=' || r == '&':
			out = r
		default:
			// Any other rune (including non-ASCII) becomes '-'
			out = '-'
		}
		if (out == '_' || out == '-') && out == prev {
			continue
		}
		b.WriteRune(out)
		prev = out
	}
	return b.String()
}

func sanitizePath(s string) string {
	s = strings.Trim(strings.TrimSpace(s), "/")
	if s == "" {
		return "root"
	}
	var b strings.Builder
	b.Grow(len(s))
	var prev rune
	for _, r := range s {
		out := rune(0)
		switch {
		case r == '/':
			out = ':'
		case isAlphaNum(r) || r == '_' || r == '-':
			out = r
		default:
			out = '-'
		}
		if (out == '_' || out == '-') && out == prev {
			continue
		}
		b.WriteRune(out)
		prev = out
	}
	return b.String()
}

func isAlphaNum(r rune) bool {
	return (r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		unicode.IsDigit(r)
}
