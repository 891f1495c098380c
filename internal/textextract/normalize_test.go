package textextract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"whitespace only", "   \n\t \n ", ""},
		{"crlf to lf", "one\r\ntwo\rthree", "one\ntwo\nthree"},
		{"collapse spaces", "a   b\t\tc", "a b c"},
		{"strip control chars", "a\x00b\x07c", "abc"},
		{"trim line edges", "  hello  \n  world  ", "hello\nworld"},
		{"collapse blank lines", "a\n\n\n\n\nb", "a\n\nb"},
		{"leading and trailing blanks trimmed", "\n\n a \n\n", "a"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	in := "Jane Doe\r\n\r\n\r\nSenior   Engineer\tGo\x08lang\n   10 years  "
	once := Normalize(in)
	assert.Equal(t, once, Normalize(once))
}
