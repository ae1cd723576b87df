package handlers

import (
	"strings"
	"testing"

	"redirclean/internal/rewrite"
)

func TestValidateLogin(t *testing.T) {
	tests := []struct {
		name      string
		email     string
		password  string
		wantError bool
	}{
		{"valid", "ops@example.com", "secret", false},
		{"empty email", "", "secret", true},
		{"whitespace email", "   ", "secret", true},
		{"empty password", "ops@example.com", "", true},
		{"email too long", strings.Repeat("a", 250) + "@x.io", "secret", true},
		{"password too long", "ops@example.com", strings.Repeat("p", 73), true},
		{"password at bcrypt limit", "ops@example.com", strings.Repeat("p", 72), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := validateLogin(tt.email, tt.password)
			if tt.wantError && got == "" {
				t.Error("expected an error, got none")
			}
			if !tt.wantError && got != "" {
				t.Errorf("unexpected error: %s", got)
			}
		})
	}
}

func TestValidateTOTPCode(t *testing.T) {
	for code, ok := range map[string]bool{
		"123456":  true,
		"000000":  true,
		"12345":   false,
		"1234567": false,
		"12a456":  false,
		"":        false,
	} {
		if got := validateTOTPCode(code) == ""; got != ok {
			t.Errorf("validateTOTPCode(%q) valid = %v, want %v", code, got, ok)
		}
	}
}

func TestValidatePreview(t *testing.T) {
	m := rewrite.Mapping{{Old: "/a", New: "/b"}}
	big := make(rewrite.Mapping, maxMappingEntries+1)

	tests := []struct {
		name      string
		content   string
		mapping   rewrite.Mapping
		wantError bool
	}{
		{"valid", "<a href=\"/a\">x</a>", m, false},
		{"empty content allowed", "", m, false},
		{"no mapping", "x", nil, true},
		{"content too long", strings.Repeat("x", maxPreviewLen+1), m, true},
		{"mapping too large", "x", big, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := validatePreview(tt.content, tt.mapping)
			if tt.wantError != (got != "") {
				t.Errorf("validatePreview = %q, wantError %v", got, tt.wantError)
			}
		})
	}
}

func TestParseLimit(t *testing.T) {
	tests := []struct {
		raw     string
		want    int
		wantErr bool
	}{
		{"", 20, false},
		{"5", 5, false},
		{"0", 1, false},
		{"-3", 1, false},
		{"1000", maxListLimit, false},
		{"ten", 0, true},
	}

	for _, tt := range tests {
		got, err := parseLimit(tt.raw, 20)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseLimit(%q) err = %v", tt.raw, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parseLimit(%q) = %d, want %d", tt.raw, got, tt.want)
		}
	}
}
