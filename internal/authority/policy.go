// Package authority is a static stand-in for the external Authority. It
// answers authorization requests from a fixed DID to controller policy and
// backs both the in-process dispatcher and cmd/mock-authority.
package authority

import (
	"fmt"
	"sort"
	"strings"

	id "vcregistry/pkg/domain"
)

// Policy maps each DID to the callers allowed to act on it.
type Policy struct {
	controllers map[id.DID]map[id.Address]struct{}
}

func NewPolicy() *Policy {
	return &Policy{controllers: make(map[id.DID]map[id.Address]struct{})}
}

// Allow adds caller to the controllers of did.
func (p *Policy) Allow(did id.DID, caller id.Address) {
	set, ok := p.controllers[did]
	if !ok {
		set = make(map[id.Address]struct{})
		p.controllers[did] = set
	}
	set[caller] = struct{}{}
}

// Allows reports whether caller controls did.
func (p *Policy) Allows(did id.DID, caller id.Address) bool {
	_, ok := p.controllers[did][caller]
	return ok
}

// DIDs returns the DIDs that have at least one controller, sorted.
func (p *Policy) DIDs() []id.DID {
	out := make([]id.DID, 0, len(p.controllers))
	for did := range p.controllers {
		out = append(out, did)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ParsePolicy reads the LOCAL_AUTHORITY_POLICY format:
//
//	did:x:1=0xabc...|0xdef...;did:x:2=0x123...
//
// Entries are separated by ';', controllers by '|'. Whitespace around
// tokens is ignored. An empty string yields an empty policy.
func ParsePolicy(raw string) (*Policy, error) {
	p := NewPolicy()
	for _, entry := range strings.Split(raw, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		// DIDs contain ':' but never '=', so split on the last '='.
		eq := strings.LastIndex(entry, "=")
		if eq <= 0 {
			return nil, fmt.Errorf("policy entry %q: expected did=controller[|controller]", entry)
		}
		did, err := id.ParseDID(strings.TrimSpace(entry[:eq]))
		if err != nil {
			return nil, fmt.Errorf("policy entry %q: %w", entry, err)
		}
		controllers := strings.Split(entry[eq+1:], "|")
		added := 0
		for _, c := range controllers {
			c = strings.TrimSpace(c)
			if c == "" {
				continue
			}
			addr, err := id.ParseAddress(c)
			if err != nil {
				return nil, fmt.Errorf("policy entry %q: controller %q: %w", entry, c, err)
			}
			p.Allow(did, addr)
			added++
		}
		if added == 0 {
			return nil, fmt.Errorf("policy entry %q: no controllers", entry)
		}
	}
	return p, nil
}
