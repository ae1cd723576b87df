package models

import "testing"

// TestOperatorNeeds2FASetup verifies 2FA setup detection based on
// TOTPEnabled and TOTPSecret fields.
func TestOperatorNeeds2FASetup(t *testing.T) {
	secret := "JBSWY3DPEHPK3PXP"

	tests := []struct {
		name        string
		totpSecret  *string
		totpEnabled bool
		want        bool
	}{
		{name: "no secret and not enabled", totpSecret: nil, totpEnabled: false, want: true},
		{name: "secret set but not enabled", totpSecret: &secret, totpEnabled: false, want: true},
		{name: "secret set and enabled", totpSecret: &secret, totpEnabled: true, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := &Operator{TOTPSecret: tt.totpSecret, TOTPEnabled: tt.totpEnabled}
			if got := o.Needs2FASetup(); got != tt.want {
				t.Errorf("Needs2FASetup() = %v, want %v", got, tt.want)
			}
		})
	}
}
