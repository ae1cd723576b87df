// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package rewrite replaces redirected URLs inside stored content. It holds
// the URL guard that keeps ordinary words out of the replacement set and the
// rewriter that applies an ordered old->new mapping to a content string.
package rewrite

import "strings"

// IsURLLike reports whether s looks like a URL we are allowed to replace:
// a root-relative path or an http(s) URL. Anything else (bare words, file
// names without a leading slash, prose) is rejected.
func IsURLLike(s string) bool {
	return strings.HasPrefix(s, "/") ||
		strings.HasPrefix(s, "http://") ||
		strings.HasPrefix(s, "https://")
}

// IsRelative reports whether url is a root-relative path. Protocol-relative
// URLs ("//host/path") are not relative.
func IsRelative(url string) bool {
	return strings.HasPrefix(url, "/") && !strings.HasPrefix(url, "//")
}

// isSingleURL reports whether value is one URL-like token with no
// surrounding markup or whitespace.
func isSingleURL(value string) bool {
	if !IsURLLike(value) {
		return false
	}
	return !strings.ContainsAny(value, " \t\r\n<>\"'")
}
