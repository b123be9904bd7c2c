package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/glaciaos/frost-doh/internal/dohclient"
)

func TestSelect_DefaultsToGoogle(t *testing.T) {
	a := Select("anything-else", dohclient.New())
	_, ok := a.(googleAdapter)
	assert.True(t, ok)
}

func TestSelect_Cloudflare(t *testing.T) {
	a := Select(Cloudflare, dohclient.New())
	_, ok := a.(cloudflareAdapter)
	assert.True(t, ok)
}
