// Package resolver implements the state machine that orchestrates the
// store, the upstream adapters, and the DNS reply model into a single
// resolve(pid, name, family) -> Host operation.
package resolver

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/glaciaos/frost-doh/internal/dnsreply"
	"github.com/glaciaos/frost-doh/internal/dohcommon"
	"github.com/glaciaos/frost-doh/internal/provider"
	"github.com/glaciaos/frost-doh/internal/store"
	"github.com/glaciaos/frost-doh/internal/sysinfo"
)

// maxCNAMEDepth caps CNAME recursion; the upstream data model has no
// built-in bound, so this is mandatory hardening rather than a behavior
// change (see DESIGN.md's "CNAME recursion depth" entry).
const maxCNAMEDepth = 16

// TTLMode selects how a fresh cache row's expiration is computed.
type TTLMode int

const (
	// TTLUpstream uses the reply's own max TTL, falling back to 60s.
	TTLUpstream TTLMode = iota
	// TTLFixed uses a configured fixed number of seconds regardless of
	// what the upstream reply says.
	TTLFixed
)

// Engine is the resolver state machine. One Engine is shared by every
// lookup; the store and adapter it wraps are themselves already safe for
// concurrent use.
type Engine struct {
	store    *store.Store
	adapter  provider.Adapter
	ttlMode  TTLMode
	fixedTTL int64
	pool     *taskPool
	log      *slog.Logger
}

// New builds an Engine. fixedTTL is only consulted when ttlMode is
// TTLFixed.
func New(s *store.Store, adapter provider.Adapter, ttlMode TTLMode, fixedTTL int64, log *slog.Logger) *Engine {
	return &Engine{
		store:    s,
		adapter:  adapter,
		ttlMode:  ttlMode,
		fixedTTL: fixedTTL,
		pool:     newTaskPool(),
		log:      log.With("component", "resolver"),
	}
}

// Shutdown drains the engine's background audit/cache-write tasks.
func (e *Engine) Shutdown(ctx context.Context) {
	e.pool.Shutdown(ctx)
}

// Resolve answers one (pid, name, family) lookup. See spec §4.5 for the
// full algorithm this implements.
func (e *Engine) Resolve(ctx context.Context, pid uint32, name string, family dnsreply.Family) (dnsreply.Host, error) {
	normalized := dnsreply.Normalize(name)

	e.spawnAudit(pid, normalized, family)

	reply, err := e.resolveRecursive(ctx, normalized, family, 0)
	if err != nil {
		return dnsreply.Host{}, err
	}

	host, ok := reply.ResolvedHost(family)
	if !ok {
		return dnsreply.Host{}, dohcommon.New(dohcommon.KindEmptyReply, nil)
	}

	e.spawnCacheWrite(normalized, family, reply)

	return host, nil
}

// resolveRecursive is step 2 of spec §4.5: blacklist, cache, upstream
// call, CNAME recursion.
func (e *Engine) resolveRecursive(ctx context.Context, normalizedName string, family dnsreply.Family, depth int) (*dnsreply.Reply, error) {
	if depth > maxCNAMEDepth {
		return nil, dohcommon.Wrapf(dohcommon.KindDNSErrorReply, "CNAME recursion exceeded depth %d", maxCNAMEDepth)
	}

	// A store error while checking blacklist or cache is treated as "not
	// blocked" / "miss" so resolution stays available under store
	// failure — matching the behavior this spec was distilled from; see
	// DESIGN.md's Open Question entry.
	if blocked, err := e.store.IsHostBlocked(normalizedName); err == nil && blocked {
		return nil, dohcommon.New(dohcommon.KindEmptyReply, nil)
	} else if err != nil {
		e.log.Warn("blacklist check failed, proceeding as not blocked", "host", normalizedName, "error", err)
	}

	if cached, ok, err := e.store.GetDNSAnswer(normalizedName, int(family)); err == nil && ok {
		var reply dnsreply.Reply
		jsonErr := json.Unmarshal([]byte(cached), &reply)
		if jsonErr == nil {
			return e.followCNAME(ctx, &reply, family, depth)
		}
		e.log.Warn("cached answer failed to decode, falling through to upstream", "host", normalizedName, "error", jsonErr)
	} else if err != nil {
		e.log.Warn("cache check failed, proceeding as miss", "host", normalizedName, "error", err)
	}

	wireName := dnsreply.ToWireName(normalizedName)
	reply, err := e.adapter.Resolve(ctx, wireName, family.RecordType())
	if err != nil {
		return nil, err
	}
	if !reply.OK() {
		return nil, dohcommon.New(dohcommon.KindDNSErrorReply, nil)
	}
	if reply.NoAnswers() {
		return nil, dohcommon.New(dohcommon.KindEmptyReply, nil)
	}

	return e.followCNAME(ctx, reply, family, depth)
}

func (e *Engine) followCNAME(ctx context.Context, reply *dnsreply.Reply, family dnsreply.Family, depth int) (*dnsreply.Reply, error) {
	if !reply.IsCNAMEAnswer() {
		return reply, nil
	}
	target, ok := reply.CNAME()
	if !ok {
		return reply, nil
	}
	return e.resolveRecursive(ctx, dnsreply.Normalize(target), family, depth+1)
}

// expirationFor computes the absolute Unix expiry for a freshly fetched
// reply, per the configured TTL mode.
func (e *Engine) expirationFor(reply *dnsreply.Reply) int64 {
	now := time.Now().Unix()
	if e.ttlMode == TTLFixed {
		return now + e.fixedTTL
	}
	if ttl, ok := reply.Expiration(); ok {
		return now + ttl
	}
	return now + 60
}

func (e *Engine) spawnAudit(pid uint32, normalizedName string, family dnsreply.Family) {
	e.pool.Submit(func() {
		name, err := sysinfo.ProcessName(pid)
		if err != nil {
			name = "unknown"
		}
		if err := e.store.CreateDNSAudit(dnsreply.Normalize(name), normalizedName, int(family)); err != nil {
			e.log.Warn("audit write failed", "host", normalizedName, "error", err)
		}
	})
}

func (e *Engine) spawnCacheWrite(normalizedName string, family dnsreply.Family, reply *dnsreply.Reply) {
	e.pool.Submit(func() {
		encoded, err := json.Marshal(reply)
		if err != nil {
			e.log.Warn("cache write failed to encode reply", "host", normalizedName, "error", err)
			return
		}
		if err := e.store.CreateDNSAnswer(normalizedName, int(family), string(encoded), e.expirationFor(reply)); err != nil {
			e.log.Warn("cache write failed", "host", normalizedName, "error", err)
		}
	})
}

// AddToBlacklist delegates to the store.
func (e *Engine) AddToBlacklist(host string) (bool, error) {
	inserted, err := e.store.CreateHostBlocked(dnsreply.Normalize(host))
	if err != nil {
		return false, dohcommon.New(dohcommon.KindDatabaseError, err)
	}
	return inserted, nil
}

// RemoveFromBlacklist delegates to the store.
func (e *Engine) RemoveFromBlacklist(host string) (bool, error) {
	removed, err := e.store.DeleteHostBlocked(dnsreply.Normalize(host))
	if err != nil {
		return false, dohcommon.New(dohcommon.KindDatabaseError, err)
	}
	return removed, nil
}

// Query is one page entry returned by GetQueries.
type Query struct {
	ProcessName string
	Host        string
	Created     int64
}

// GetQueries delegates to the store's paged audit read.
func (e *Engine) GetQueries(page uint64) ([]Query, error) {
	rows, err := e.store.GetDNSAudit(page)
	if err != nil {
		return nil, dohcommon.New(dohcommon.KindDatabaseError, err)
	}
	out := make([]Query, 0, len(rows))
	for _, r := range rows {
		out = append(out, Query{ProcessName: r.ProcessName, Host: r.DNSName, Created: r.Created})
	}
	return out, nil
}
