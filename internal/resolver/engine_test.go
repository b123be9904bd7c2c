package resolver

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glaciaos/frost-doh/internal/dnsreply"
	"github.com/glaciaos/frost-doh/internal/dohcommon"
	"github.com/glaciaos/frost-doh/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// fakeAdapter answers canned replies by hostname, counting calls.
type fakeAdapter struct {
	replies map[string]*dnsreply.Reply
	errs    map[string]error
	calls   int
}

func (f *fakeAdapter) Resolve(_ context.Context, wireName string, _ dnsreply.RecordType) (*dnsreply.Reply, error) {
	f.calls++
	if err, ok := f.errs[wireName]; ok {
		return nil, err
	}
	if r, ok := f.replies[wireName]; ok {
		return r, nil
	}
	return &dnsreply.Reply{Status: 2}, nil
}

func TestResolve_FreshLookupHitsUpstream(t *testing.T) {
	s := newTestStore(t)
	adapter := &fakeAdapter{replies: map[string]*dnsreply.Reply{
		"example.com": {
			Status:   0,
			Question: []dnsreply.Question{{Name: "example.com", Type: dnsreply.TypeA}},
			Answer:   []dnsreply.Answer{{Type: dnsreply.TypeA, TTL: 60, Data: "93.184.216.34"}},
		},
	}}
	e := New(s, adapter, TTLUpstream, 0, testLogger())

	host, err := e.Resolve(context.Background(), 100, "example.com", dnsreply.FamilyV4)
	require.NoError(t, err)
	assert.Equal(t, "example.com", host.Name)
	require.Len(t, host.V4, 1)
	assert.Equal(t, "93.184.216.34", host.V4[0].String())

	e.Shutdown(context.Background())

	_, ok, err := s.GetDNSAnswer("example.com", int(dnsreply.FamilyV4))
	require.NoError(t, err)
	assert.True(t, ok, "cache write-back should have landed after shutdown drain")

	rows, err := s.GetDNSAudit(0)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestResolve_CacheHitBypassesUpstream(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().Unix()
	require.NoError(t, s.CreateDNSAnswer("github.com", int(dnsreply.FamilyV4), `{"Status":0,"Question":[{"name":"github.com","type":1}],"Answer":[{"name":"github.com","type":1,"TTL":60,"data":"140.82.121.4"}]}`, now+60))

	adapter := &fakeAdapter{errs: map[string]error{"github.com": dohcommon.New(dohcommon.KindUpstreamError, nil)}}
	e := New(s, adapter, TTLUpstream, 0, testLogger())

	host, err := e.Resolve(context.Background(), 100, "github.com", dnsreply.FamilyV4)
	require.NoError(t, err)
	assert.Equal(t, "140.82.121.4", host.V4[0].String())
	assert.Equal(t, 0, adapter.calls)
}

func TestResolve_BlacklistShortCircuits(t *testing.T) {
	s := newTestStore(t)
	_, err := s.CreateHostBlocked("ads.example")
	require.NoError(t, err)

	adapter := &fakeAdapter{}
	e := New(s, adapter, TTLUpstream, 0, testLogger())

	_, err = e.Resolve(context.Background(), 100, "ADS.example", dnsreply.FamilyV4)
	require.Error(t, err)
	assert.Equal(t, dohcommon.KindEmptyReply, dohcommon.KindOf(err))
	assert.Equal(t, 0, adapter.calls)
}

func TestResolve_CNAMEFollow(t *testing.T) {
	s := newTestStore(t)
	adapter := &fakeAdapter{replies: map[string]*dnsreply.Reply{
		"www.example.org": {
			Status: 0,
			Answer: []dnsreply.Answer{{Type: dnsreply.TypeCNAME, Data: "example.org"}},
		},
		"example.org": {
			Status:   0,
			Question: []dnsreply.Question{{Name: "example.org", Type: dnsreply.TypeA}},
			Answer:   []dnsreply.Answer{{Type: dnsreply.TypeA, TTL: 60, Data: "203.0.113.5"}},
		},
	}}
	e := New(s, adapter, TTLUpstream, 0, testLogger())

	host, err := e.Resolve(context.Background(), 100, "www.example.org", dnsreply.FamilyV4)
	require.NoError(t, err)
	assert.Equal(t, "203.0.113.5", host.V4[0].String())
	assert.Equal(t, 2, adapter.calls)
}

func TestResolve_UpstreamFailure(t *testing.T) {
	s := newTestStore(t)
	adapter := &fakeAdapter{errs: map[string]error{"foo.test": dohcommon.New(dohcommon.KindUpstreamError, nil)}}
	e := New(s, adapter, TTLUpstream, 0, testLogger())

	_, err := e.Resolve(context.Background(), 100, "foo.test", dnsreply.FamilyV4)
	require.Error(t, err)
	assert.Equal(t, dohcommon.KindUpstreamError, dohcommon.KindOf(err))
}

func TestBlacklistRoundTrip(t *testing.T) {
	s := newTestStore(t)
	e := New(s, &fakeAdapter{}, TTLUpstream, 0, testLogger())

	inserted, err := e.AddToBlacklist("example.com")
	require.NoError(t, err)
	assert.True(t, inserted)

	removed, err := e.RemoveFromBlacklist("example.com")
	require.NoError(t, err)
	assert.True(t, removed)
}
