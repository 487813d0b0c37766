package urlnorm_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"contentpulse/internal/urlnorm"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"strip utm source", "https://youtube.com/watch?v=abc&utm_source=x", "https://youtube.com/watch?v=abc"},
		{"strip all trackers", "https://example.com/p?utm_source=a&utm_medium=b&utm_campaign=c&utm_content=d&utm_term=e&feature=share", "https://example.com/p"},
		{"keep order of remainder", "https://example.com/p?z=1&utm_term=x&a=2&m=3", "https://example.com/p?z=1&a=2&m=3"},
		{"remove fragment", "https://example.com/post#comments", "https://example.com/post"},
		{"fragment and tracker", "https://youtu.be/abc?feature=shared#t=10", "https://youtu.be/abc"},
		{"path stays case sensitive", "https://Example.COM/Watch?V=AbC", "https://example.com/Watch?V=AbC"},
		{"empty path gets slash", "https://example.com?id=1", "https://example.com/?id=1"},
		{"keeps encoded values", "https://example.com/s?q=a%20b&utm_source=x", "https://example.com/s?q=a%20b"},
		{"duplicate keys kept", "https://example.com/s?tag=a&tag=b", "https://example.com/s?tag=a&tag=b"},
		{"lowercase scheme", "HTTPS://example.com/a", "https://example.com/a"},
		{"drop default https port", "HTTPS://EXAMPLE.COM:443", "https://example.com/"},
		{"drop default http port", "http://example.com:80/x", "http://example.com/x"},
		{"keep explicit port", "https://example.com:8443/x", "https://example.com:8443/x"},
		{"keep http port on https", "https://example.com:80/x", "https://example.com:80/x"},
		{"already clean", "https://www.linkedin.com/posts/jane_activity-7123-abcd", "https://www.linkedin.com/posts/jane_activity-7123-abcd"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, urlnorm.Normalize(tt.input))
		})
	}
}

func TestNormalize_FailOpen(t *testing.T) {
	for _, in := range []string{"", "not a url", "example.com/path", "https://", "://broken", "%zz"} {
		assert.Equal(t, in, urlnorm.Normalize(in), in)
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	for _, in := range []string{
		"https://youtube.com/watch?v=abc&utm_source=x&feature=y#frag",
		"https://example.com",
		"https://example.com/a?b=c&&d=e",
		"https://example.com/s?q=a+b&utm_medium=m",
		"http://EXAMPLE.com/Path/?x=%2F",
		"not a url",
	} {
		once := urlnorm.Normalize(in)
		assert.Equal(t, once, urlnorm.Normalize(once), in)
	}
}

func TestEqual(t *testing.T) {
	assert.True(t, urlnorm.Equal("https://youtube.com/watch?v=abc&utm_source=x", "https://youtube.com/watch?v=abc"))
	assert.False(t, urlnorm.Equal("https://youtube.com/watch?v=abc", "https://youtube.com/watch?v=ABC"))
}
