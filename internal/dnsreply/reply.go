// Package dnsreply owns the upstream DoH JSON shape and the small set of
// predicates the resolver engine drives its state machine with.
package dnsreply

import (
	"net"
	"strings"

	"golang.org/x/net/idna"
)

// RecordType is a DNS record type as carried in a DoH JSON reply.
type RecordType int

const (
	TypeA     RecordType = 1
	TypeCNAME RecordType = 5
	TypeSOA   RecordType = 6
	TypeAAAA  RecordType = 28
)

// String renders the textual name upstream query strings expect.
func (t RecordType) String() string {
	switch t {
	case TypeA:
		return "A"
	case TypeAAAA:
		return "AAAA"
	case TypeCNAME:
		return "CNAME"
	case TypeSOA:
		return "SOA"
	default:
		return "A"
	}
}

// Family is the small {IPv4, IPv6} enumeration the resolver operates on.
type Family int

const (
	FamilyV4 Family = iota
	FamilyV6
)

// RecordType maps a Family bijectively onto its DNS record type.
func (f Family) RecordType() RecordType {
	if f == FamilyV6 {
		return TypeAAAA
	}
	return TypeA
}

// Question is one entry of the DoH "Question" array.
type Question struct {
	Name string     `json:"name"`
	Type RecordType `json:"type"`
}

// Answer is one entry of the DoH "Answer"/"Authority" array.
type Answer struct {
	Name string     `json:"name"`
	Type RecordType `json:"type"`
	TTL  int64      `json:"TTL"`
	Data string     `json:"data"`
}

// Reply is the parsed form of an upstream JSON reply. Field names and
// capitalization mirror the upstream wire shape; Answer/Authority default
// to empty when the upstream omits them entirely.
type Reply struct {
	Status    int        `json:"Status"`
	TC        bool       `json:"TC"`
	RD        bool       `json:"RD"`
	RA        bool       `json:"RA"`
	AD        bool       `json:"AD"`
	CD        bool       `json:"CD"`
	Question  []Question `json:"Question"`
	Answer    []Answer   `json:"Answer"`
	Authority []Answer   `json:"Authority"`
}

// OK reports whether the upstream status was NOERROR.
func (r *Reply) OK() bool { return r.Status == 0 }

// NoAnswers reports whether the reply carries no answer records.
func (r *Reply) NoAnswers() bool { return len(r.Answer) == 0 }

// IsCNAMEAnswer reports whether every answer is a CNAME. The emptiness
// check is explicit rather than folded into the loop below: a vacuous
// "every element satisfies P" over an empty slice is trivially true, and
// callers must never reach this predicate with an empty Answer list in
// the first place (NoAnswers is checked first in the resolve pipeline).
func (r *Reply) IsCNAMEAnswer() bool {
	if len(r.Answer) == 0 {
		return false
	}
	for _, a := range r.Answer {
		if a.Type != TypeCNAME {
			return false
		}
	}
	return true
}

// CNAME returns the first CNAME answer's target, if any.
func (r *Reply) CNAME() (string, bool) {
	for _, a := range r.Answer {
		if a.Type == TypeCNAME {
			return a.Data, true
		}
	}
	return "", false
}

// Expiration returns the maximum TTL across answers, or false if there
// are none.
func (r *Reply) Expiration() (int64, bool) {
	if len(r.Answer) == 0 {
		return 0, false
	}
	var max int64
	for _, a := range r.Answer {
		if a.TTL > max {
			max = a.TTL
		}
	}
	return max, true
}

// Host is the value returned to the RPC caller.
type Host struct {
	Name      string
	Aliases   []string
	V4        []net.IP
	V6        []net.IP
}

// ResolvedHost projects the reply to a Host for the given family. A reply
// only projects when both Question and Answer are non-empty; addresses
// come from answers whose type matches family, with CNAME answers
// filtered out. Returns false when projection yields nothing.
func (r *Reply) ResolvedHost(family Family) (Host, bool) {
	if len(r.Question) == 0 || len(r.Answer) == 0 {
		return Host{}, false
	}
	want := family.RecordType()
	host := Host{Name: r.Question[0].Name, Aliases: []string{}}
	for _, a := range r.Answer {
		if a.Type != want {
			continue
		}
		ip := net.ParseIP(a.Data)
		if ip == nil {
			continue
		}
		if family == FamilyV6 {
			host.V6 = append(host.V6, ip)
		} else {
			host.V4 = append(host.V4, ip)
		}
	}
	if len(host.V4) == 0 && len(host.V6) == 0 {
		return Host{}, false
	}
	return host, true
}

// ToWireName encodes name for the upstream query string: ASCII verbatim,
// non-ASCII punycode-encoded, falling back to the original on encoding
// failure.
func ToWireName(name string) string {
	for i := 0; i < len(name); i++ {
		if name[i] > 0x7f {
			if encoded, err := idna.ToASCII(name); err == nil {
				return encoded
			}
			return name
		}
	}
	return name
}

// Normalize folds a hostname to the storage/cache/blacklist key form:
// trimmed and lowercased.
func Normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
