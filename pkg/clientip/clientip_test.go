package clientip

import (
	"net/http"
	"testing"
)

func TestFromRequest(t *testing.T) {
	cases := []struct {
		remoteAddr, want string
	}{
		{"203.0.113.7:49152", "203.0.113.7"},
		{"[2001:db8::1]:443", "2001:db8::1"},
		{"203.0.113.7", "203.0.113.7"},
		{" 203.0.113.7 ", "203.0.113.7"},
	}
	for _, tc := range cases {
		r := &http.Request{RemoteAddr: tc.remoteAddr}
		if got := FromRequest(r); got != tc.want {
			t.Fatalf("FromRequest(%q) = %q, want %q", tc.remoteAddr, got, tc.want)
		}
	}
}
