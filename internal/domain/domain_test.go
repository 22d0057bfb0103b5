package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidator_Resolve(t *testing.T) {
	t.Parallel()

	v := New()

	tests := []struct {
		name   string
		in     string
		want   string
		wantOK bool
	}{
		{name: "plain domain", in: "https://example.com", want: "example.com", wantOK: true},
		{name: "subdomain collapses", in: "https://www.example.com/path?q=1", want: "example.com", wantOK: true},
		{name: "deep subdomain", in: "https://a.b.example.co.uk", want: "example.co.uk", wantOK: true},
		{name: "uppercase host", in: "https://WWW.Example.COM", want: "example.com", wantOK: true},
		{name: "ipv4 rejected", in: "http://192.168.1.1/admin", wantOK: false},
		{name: "ipv6 rejected", in: "http://[::1]:8080/", wantOK: false},
		{name: "no suffix", in: "http://localhost/", wantOK: false},
		{name: "invalid suffix", in: "http://foo.notarealtld12345/", wantOK: false},
		{name: "malformed", in: "http://exa mple.com/%zz", wantOK: false},
		{name: "empty host", in: "mailto:nobody@example.com", wantOK: false},
		{name: "relative url", in: "/just/a/path", wantOK: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, ok := v.Resolve(tc.in)
			require.Equal(t, tc.wantOK, ok)
			if tc.wantOK {
				assert.Equal(t, tc.want, got)
			}
		})
	}
}

func TestValidator_SameRegistrable(t *testing.T) {
	t.Parallel()

	v := New()

	assert.True(t, v.SameRegistrable("example.com", "example.com"))
	assert.True(t, v.SameRegistrable("www.example.com", "example.com"))
	assert.True(t, v.SameRegistrable("cdn.assets.example.com", "example.com"))
	assert.False(t, v.SameRegistrable("example.org", "example.com"))
	assert.False(t, v.SameRegistrable("", "example.com"))
	assert.False(t, v.SameRegistrable("example.com", ""))
}
