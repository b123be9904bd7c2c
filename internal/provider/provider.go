// Package provider declares the two upstream DoH adapters the resolver
// engine chooses between. Each adapter is purely declarative: it composes
// a request and delegates to internal/dohclient.
package provider

import (
	"context"

	"github.com/glaciaos/frost-doh/internal/dnsreply"
	"github.com/glaciaos/frost-doh/internal/dohclient"
)

// Name identifies an upstream provider.
type Name string

const (
	Google     Name = "google"
	Cloudflare Name = "cloudflare"
)

// Adapter resolves a wire-encoded hostname against one upstream.
type Adapter interface {
	Resolve(ctx context.Context, wireName string, rt dnsreply.RecordType) (*dnsreply.Reply, error)
}

// Select returns the adapter for name, defaulting to Google for anything
// other than "cloudflare" per the resolver.provider config key.
func Select(name Name, c *dohclient.Client) Adapter {
	if name == Cloudflare {
		return cloudflareAdapter{client: c}
	}
	return googleAdapter{client: c}
}

type googleAdapter struct{ client *dohclient.Client }

func (a googleAdapter) Resolve(ctx context.Context, wireName string, rt dnsreply.RecordType) (*dnsreply.Reply, error) {
	var reply dnsreply.Reply
	err := a.client.Get(ctx, "https://dns.google/resolve", "8.8.4.4", nil, []dohclient.Param{
		{Key: "name", Value: wireName},
		{Key: "type", Value: rt.String()},
	}, &reply)
	if err != nil {
		return nil, err
	}
	return &reply, nil
}

type cloudflareAdapter struct{ client *dohclient.Client }

func (a cloudflareAdapter) Resolve(ctx context.Context, wireName string, rt dnsreply.RecordType) (*dnsreply.Reply, error) {
	var reply dnsreply.Reply
	err := a.client.Get(ctx, "https://cloudflare-dns.com/dns-query", "104.16.248.249",
		[]dohclient.Param{{Key: "Accept", Value: "application/dns-json"}},
		[]dohclient.Param{
			{Key: "name", Value: wireName},
			{Key: "type", Value: rt.String()},
		}, &reply)
	if err != nil {
		return nil, err
	}
	return &reply, nil
}
