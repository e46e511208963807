package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainOf(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://www.Alpha.com/pricing", "alpha.com"},
		{"https://blog.acme.co.uk/post?id=1", "acme.co.uk"},
		{"beta.com", "beta.com"},
		{"shop.beta.com/cart", "beta.com"},
		{"beta.com:8443", "beta.com"},
		{"http://127.0.0.1:8080/a", "127.0.0.1"},
		{"", ""},
		{"   ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, DomainOf(tt.in))
		})
	}
}

func TestCanonicalURL(t *testing.T) {
	assert.Equal(t, "https://alpha.com/a", CanonicalURL("https://Alpha.com/a/#top"))
	assert.Equal(t, "https://alpha.com", CanonicalURL("https://alpha.com/"))
	assert.Equal(t, "https://alpha.com/a?x=1", CanonicalURL("https://alpha.com/a?x=1"))
	assert.Equal(t, "not a url", CanonicalURL(" not a url "))
}
