package credential

import "testing"

func TestIdentityKey(t *testing.T) {
	cases := []struct {
		name string
		c    Credential
		want string
	}{
		{"email", Credential{Email: "a@example.com"}, "a@example.com"},
		{"token", Credential{UserID: "123"}, "123"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.c.IdentityKey(); got != tc.want {
				t.Fatalf("IdentityKey() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestIsTokenAuth(t *testing.T) {
	if (&Credential{Email: "a@example.com"}).IsTokenAuth() {
		t.Fatalf("email credential should not be token auth")
	}
	if !(&Credential{UserID: "1", UserKey: "k"}).IsTokenAuth() {
		t.Fatalf("user id/key credential should be token auth")
	}
}

func TestIsAvailable(t *testing.T) {
	cases := []struct {
		name string
		c    Credential
		want bool
	}{
		{"disabled", Credential{Enabled: false, Status: StatusValid, DownloadsLeft: 5}, false},
		{"invalid", Credential{Enabled: true, Status: StatusInvalid, DownloadsLeft: 5}, false},
		{"exhausted status", Credential{Enabled: true, Status: StatusExhausted, DownloadsLeft: 5}, false},
		{"no downloads left", Credential{Enabled: true, Status: StatusValid, DownloadsLeft: 0}, false},
		{"unknown but untested", Credential{Enabled: true, Status: StatusUnknown, DownloadsLeft: -1}, true},
		{"valid with quota", Credential{Enabled: true, Status: StatusValid, DownloadsLeft: 3}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.c.IsAvailable(); got != tc.want {
				t.Fatalf("IsAvailable() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestParseStatus(t *testing.T) {
	cases := map[string]Status{
		"valid":     StatusValid,
		"invalid":   StatusInvalid,
		"exhausted": StatusExhausted,
		"unknown":   StatusUnknown,
		"garbage":   StatusUnknown,
	}
	for wire, want := range cases {
		if got := ParseStatus(wire); got != want {
			t.Fatalf("ParseStatus(%q) = %v, want %v", wire, got, want)
		}
	}
}
