package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBypass_ExactAndSuffixAndWildcard(t *testing.T) {
	b := ParseBypass("internal.example.com, .corp.example.com, 10.0.0.0/8, *")
	assert.True(t, b.Bypasses("anything.at.all"))
}

func TestBypass_WithoutWildcard(t *testing.T) {
	b := ParseBypass("internal.example.com,.corp.example.com,10.0.0.0/8,192.168.1.5")

	assert.True(t, b.Bypasses("internal.example.com"))
	assert.True(t, b.Bypasses("INTERNAL.EXAMPLE.COM"))
	assert.True(t, b.Bypasses("foo.corp.example.com"))
	assert.True(t, b.Bypasses("corp.example.com"))
	assert.True(t, b.Bypasses("10.1.2.3"))
	assert.True(t, b.Bypasses("192.168.1.5"))

	assert.False(t, b.Bypasses("example.com"))
	assert.False(t, b.Bypasses("192.168.1.6"))
}

func TestBypass_Nil(t *testing.T) {
	var b *Bypass
	assert.False(t, b.Bypasses("anything"))
}
