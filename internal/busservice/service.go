// Package busservice exports the resolver engine as a D-Bus object on the
// session bus, translating engine calls and errors into the RPC shape the
// NSS shim speaks.
package busservice

import (
	"context"
	"log/slog"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"

	"github.com/glaciaos/frost-doh/internal/dnsreply"
	"github.com/glaciaos/frost-doh/internal/dohcommon"
	"github.com/glaciaos/frost-doh/internal/resolver"
)

const (
	busName  = "com.glaciaos.NameResolver"
	busPath  = dbus.ObjectPath("/com/glaciaos/NameResolver")
	ifaceDef = busName
)

// Host is the wire shape of a resolved host, matching what the NSS shim
// deserializes: canonical name, an always-empty alias list, and an
// address list tagged V4 or V6.
type Host struct {
	Name      string
	Aliases   []string
	AddressV4 [][]byte
	AddressV6 [][]byte
}

// AuditEntry is one row of a marshalled audit page.
type AuditEntry struct {
	ProcessName string
	Host        string
	Created     int64
}

// AuditPage is the paged audit query result carried over the bus.
type AuditPage struct {
	CurrentPage uint64
	Results     []AuditEntry
}

// Service is the exported D-Bus object. Its methods are the bus-facing
// surface; each delegates to the engine and converts its result/error to
// the marshalled shapes above.
type Service struct {
	engine *resolver.Engine
	log    *slog.Logger
}

// New wraps engine for export on the bus.
func New(engine *resolver.Engine, log *slog.Logger) *Service {
	return &Service{engine: engine, log: log.With("component", "busservice")}
}

// ResolveName implements the `resolve_name` method.
func (s *Service) ResolveName(pid uint32, name string, family uint32) (Host, *dbus.Error) {
	host, err := s.engine.Resolve(context.Background(), pid, name, dnsreply.Family(family))
	if err != nil {
		return Host{}, toBusFault(err)
	}
	return toWireHost(host), nil
}

// BlockHost implements the `block_host` method.
func (s *Service) BlockHost(name string) (bool, *dbus.Error) {
	inserted, err := s.engine.AddToBlacklist(name)
	if err != nil {
		return false, toBusFault(err)
	}
	return inserted, nil
}

// UnblockHost implements the `unblock_host` method.
func (s *Service) UnblockHost(name string) (bool, *dbus.Error) {
	removed, err := s.engine.RemoveFromBlacklist(name)
	if err != nil {
		return false, toBusFault(err)
	}
	return removed, nil
}

// GetLastQueries implements the `get_last_queries` method.
func (s *Service) GetLastQueries(page uint64) (AuditPage, *dbus.Error) {
	queries, err := s.engine.GetQueries(page)
	if err != nil {
		return AuditPage{}, toBusFault(err)
	}
	results := make([]AuditEntry, 0, len(queries))
	for _, q := range queries {
		results = append(results, AuditEntry{ProcessName: q.ProcessName, Host: q.Host, Created: q.Created})
	}
	return AuditPage{CurrentPage: page, Results: results}, nil
}

// toBusFault surfaces any engine error as a generic "Failed" fault whose
// string payload is the error kind's bus name (e.g. "UpstreamError"); the
// shim decodes the kind from that string (see dohcommon.ToNSSOutcome).
func toBusFault(err error) *dbus.Error {
	kind := dohcommon.KindOf(err)
	return dbus.NewError("org.freedesktop.DBus.Error.Failed", []any{kind.BusName()})
}

func toWireHost(h dnsreply.Host) Host {
	wire := Host{Name: h.Name, Aliases: h.Aliases}
	if wire.Aliases == nil {
		wire.Aliases = []string{}
	}
	for _, ip := range h.V4 {
		wire.AddressV4 = append(wire.AddressV4, []byte(ip.To4()))
	}
	for _, ip := range h.V6 {
		wire.AddressV6 = append(wire.AddressV6, []byte(ip.To16()))
	}
	return wire
}

// Serve connects to the session bus, exports svc at the well-known name
// and path, and blocks until ctx is cancelled.
func Serve(ctx context.Context, svc *Service) error {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return dohcommon.New(dohcommon.KindDatabaseError, err)
	}
	defer conn.Close()

	// godbus does not snake-case Go method names on export, so the bus
	// method names are bound explicitly to match resolve_name/block_host/
	// unblock_host/get_last_queries rather than the Go method identifiers.
	methods := map[string]interface{}{
		"resolve_name":     svc.ResolveName,
		"block_host":       svc.BlockHost,
		"unblock_host":     svc.UnblockHost,
		"get_last_queries": svc.GetLastQueries,
	}
	if err := conn.ExportMethodTable(methods, busPath, ifaceDef); err != nil {
		return dohcommon.New(dohcommon.KindDatabaseError, err)
	}
	node := &introspect.Node{
		Name: string(busPath),
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			{
				Name: ifaceDef,
				Methods: []introspect.Method{
					{Name: "resolve_name"},
					{Name: "block_host"},
					{Name: "unblock_host"},
					{Name: "get_last_queries"},
				},
			},
		},
	}
	if err := conn.Export(introspect.NewIntrospectable(node), busPath, "org.freedesktop.DBus.Introspectable"); err != nil {
		return dohcommon.New(dohcommon.KindDatabaseError, err)
	}

	reply, err := conn.RequestName(busName, dbus.NameFlagDoNotQueue)
	if err != nil {
		return dohcommon.New(dohcommon.KindDatabaseError, err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		svc.log.Error("bus name already taken", "name", busName)
		return dohcommon.Wrapf(dohcommon.KindDatabaseError, "name %s already owned on session bus", busName)
	}

	svc.log.Info("exported bus service", "name", busName, "path", string(busPath))
	<-ctx.Done()
	return nil
}
