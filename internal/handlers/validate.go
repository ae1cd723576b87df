package handlers

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"redirclean/internal/rewrite"
)

// Input limits for API requests.
const (
	maxEmailLen       = 254
	maxPasswordLen    = 72 // bcrypt ignores anything longer
	maxPreviewLen     = 1_000_000
	maxMappingEntries = 10_000
	maxListLimit      = 200
)

// validateLogin checks sign-in fields and returns the first problem found.
func validateLogin(email, password string) string {
	email = strings.TrimSpace(email)
	switch {
	case email == "" || password == "":
		return "Email and password are required."
	case utf8.RuneCountInString(email) > maxEmailLen:
		return "Email is too long."
	case len(password) > maxPasswordLen:
		return "Password is too long."
	}
	return ""
}

// validateTOTPCode checks that code looks like a six digit TOTP code.
func validateTOTPCode(code string) string {
	if len(code) != 6 {
		return "Code must be 6 digits."
	}
	for _, c := range code {
		if c < '0' || c > '9' {
			return "Code must be 6 digits."
		}
	}
	return ""
}

// validateMapping checks the size of a caller-supplied mapping.
func validateMapping(m rewrite.Mapping) string {
	if len(m) > maxMappingEntries {
		return fmt.Sprintf("Mapping has too many entries (max %d).", maxMappingEntries)
	}
	return ""
}

// validatePreview checks preview content and mapping.
func validatePreview(content string, m rewrite.Mapping) string {
	if utf8.RuneCountInString(content) > maxPreviewLen {
		return "Content is too long (max 1,000,000 characters)."
	}
	if len(m) == 0 {
		return "Mapping is required."
	}
	return validateMapping(m)
}

// parseLimit reads a list limit query value. Empty means def; values are
// clamped to [1, maxListLimit].
func parseLimit(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("limit must be a number")
	}
	if n < 1 {
		n = 1
	}
	if n > maxListLimit {
		n = maxListLimit
	}
	return n, nil
}
