package display

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAccountLabel(t *testing.T) {
	assert.Equal(t, "example", AccountLabel("user@example.com"))
	assert.Equal(t, "acme", AccountLabel("sales@acme.co.uk"))
	assert.Equal(t, "localhost", AccountLabel("root@localhost"))
	assert.Equal(t, "plain", AccountLabel("plain"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "lengthy...", Truncate("lengthy string", 10))
	assert.Equal(t, "len", Truncate("lengthy", 3))
	assert.Equal(t, strings.Repeat("x", 40), Truncate(strings.Repeat("x", 40), 40))
}
