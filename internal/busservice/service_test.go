package busservice

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/glaciaos/frost-doh/internal/dnsreply"
	"github.com/glaciaos/frost-doh/internal/dohcommon"
)

func TestToWireHost(t *testing.T) {
	h := dnsreply.Host{
		Name: "example.com",
		V4:   []net.IP{net.ParseIP("93.184.216.34")},
	}
	wire := toWireHost(h)
	assert.Equal(t, "example.com", wire.Name)
	assert.NotNil(t, wire.Aliases)
	assert.Empty(t, wire.Aliases)
	assert.Len(t, wire.AddressV4, 1)
	assert.Empty(t, wire.AddressV6)
}

func TestToBusFault_CarriesKindName(t *testing.T) {
	err := dohcommon.New(dohcommon.KindUpstreamError, nil)
	fault := toBusFault(err)
	assert.Equal(t, "org.freedesktop.DBus.Error.Failed", fault.Name)
	assert.Equal(t, []any{"UpstreamError"}, fault.Body)
}
