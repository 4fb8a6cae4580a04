package domain

import "testing"

func TestNormalizeEmail(t *testing.T) {
	tests := map[string]string{
		"  Admin@Sales.Local ": "admin@sales.local",
		"user@example.com":     "user@example.com",
		"   ":                  "",
	}

	for in, want := range tests {
		if got := NormalizeEmail(in); got != want {
			t.Errorf("NormalizeEmail(%q) = %q, want %q", in, got, want)
		}
	}
}
