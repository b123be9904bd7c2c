// Package dohcommon holds the error taxonomy shared by every resolution
// component: the DoH client, the store, the resolver engine, and the
// bus/diagnostics surfaces that report failures outward.
package dohcommon

import "fmt"

// Kind is one of the four error kinds the resolution pipeline can fail
// with. Nothing downstream of the resolver engine needs a finer grain than
// this, so the taxonomy is intentionally closed.
type Kind string

const (
	// KindDNSErrorReply means the upstream returned a non-zero status, or
	// CNAME recursion exceeded its depth cap.
	KindDNSErrorReply Kind = "dns-error-reply"
	// KindEmptyReply means the name is blacklisted, the upstream reply
	// carried no usable answers, or Host projection yielded no addresses.
	KindEmptyReply Kind = "empty-reply"
	// KindUpstreamError means a transport, TLS, timeout, parse, or I/O
	// failure occurred while contacting the upstream.
	KindUpstreamError Kind = "upstream-error"
	// KindDatabaseError means the persistent store failed, including
	// clock errors during TTL arithmetic.
	KindDatabaseError Kind = "database-error"
)

// BusName returns the kind in the form the bus fault payload and the NSS
// shim decoding it actually use: the original error taxonomy's Display
// form, not this package's internal kebab-case constant.
func (k Kind) BusName() string {
	switch k {
	case KindDNSErrorReply:
		return "DNSErrorReply"
	case KindEmptyReply:
		return "EmptyDNSReply"
	case KindUpstreamError:
		return "UpstreamError"
	default:
		return "DatabaseError"
	}
}

// Error pairs a Kind with the cause that produced it. Only the Kind ever
// crosses a process boundary (the bus, NSS); the cause is for local logs.
type Error struct {
	Kind  Kind
	Cause error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// New wraps cause under kind. cause may be nil.
func New(kind Kind, cause error) *Error {
	return &Error{Kind: kind, Cause: cause}
}

// Wrapf is New with a formatted cause, for call sites that don't already
// have an error value.
func Wrapf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Cause: fmt.Errorf(format, args...)}
}

// KindOf extracts the Kind from err, defaulting to KindDatabaseError (the
// most conservative "Unavail" outcome) when err was never classified.
func KindOf(err error) Kind {
	var e *Error
	if ok := asError(err, &e); ok {
		return e.Kind
	}
	return KindDatabaseError
}

func asError(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// NSSOutcome is the vocabulary the out-of-scope NSS shim maps bus faults
// to. Only documented here; nothing in this module emits it directly.
type NSSOutcome string

const (
	NSSNotFound NSSOutcome = "NotFound"
	NSSTryAgain NSSOutcome = "TryAgain"
	NSSUnavail  NSSOutcome = "Unavail"
)

// ToNSSOutcome implements the mapping table from the RPC endpoint's error
// kind to the NSS shim's response vocabulary.
func ToNSSOutcome(kind Kind) NSSOutcome {
	switch kind {
	case KindEmptyReply:
		return NSSNotFound
	case KindUpstreamError:
		return NSSTryAgain
	default:
		return NSSUnavail
	}
}
