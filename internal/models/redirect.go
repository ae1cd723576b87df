// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import "time"

// Redirect is a stored redirection rule. Enabled rules, ordered by
// Position, form the URL mapping used by cleanup jobs.
type Redirect struct {
	ID         int64     `json:"id"`
	SourceURL  string    `json:"source_url"`
	TargetURL  string    `json:"target_url"`
	StatusCode int       `json:"status_code"`
	Enabled    bool      `json:"enabled"`
	Position   int       `json:"position"`
	CreatedAt  time.Time `json:"created_at"`
}

// ValidRedirectStatus reports whether code is a redirect status we store.
func ValidRedirectStatus(code int) bool {
	switch code {
	case 301, 302, 307, 308:
		return true
	}
	return false
}
