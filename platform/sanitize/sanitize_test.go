package sanitize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestText(t *testing.T) {
	cases := []struct{ in, want string }{
		{"plain", "plain"},
		{"<b>Leaking</b> pipe", "Leaking pipe"},
		{"&lt;script&gt;alert(1)&lt;/script&gt;ok", "alert(1)ok"},
		{"  New\n\trequest  in   Berlin ", "New request in Berlin"},
		{"Tom &amp; Jerry", "Tom & Jerry"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Text(tc.in), tc.in)
	}
}
