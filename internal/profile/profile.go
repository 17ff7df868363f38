// Package profile implements the host and client profile facades of
// spec.md §4.5: observable profile lists, enable/disable semantics, and
// Added/Removed/Enabled/Disabled report handling.
package profile

import "midici/internal/message"

// Profile is one entry of an Observable Profile List, uniquely keyed by
// (ID, Group, Address) within that list.
type Profile struct {
	ID          message.ProfileID
	Group       byte
	Address     byte
	Enabled     bool
	NumChannels uint16
}

type key struct {
	id      message.ProfileID
	group   byte
	address byte
}

func (p Profile) key() key { return key{p.ID, p.Group, p.Address} }

// List is a mutex-free, ordered observable profile list; callers
// (HostFacade/ClientFacade) supply their own locking, matching the
// teacher's pattern of one owning mutex per facade rather than a nested
// lock per collection.
type List struct {
	order   []key
	entries map[key]Profile
}

func newList() *List {
	return &List{entries: make(map[key]Profile)}
}

func (l *List) upsert(p Profile) {
	k := p.key()
	if _, ok := l.entries[k]; !ok {
		l.order = append(l.order, k)
	}
	l.entries[k] = p
}

func (l *List) remove(id message.ProfileID, group, address byte) (Profile, bool) {
	k := key{id, group, address}
	p, ok := l.entries[k]
	if !ok {
		return Profile{}, false
	}
	delete(l.entries, k)
	for i, ok2 := range l.order {
		if ok2 == k {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}
	return p, true
}

func (l *List) get(id message.ProfileID, group, address byte) (Profile, bool) {
	p, ok := l.entries[key{id, group, address}]
	return p, ok
}

// Snapshot returns all entries in insertion order.
func (l *List) Snapshot() []Profile {
	out := make([]Profile, 0, len(l.order))
	for _, k := range l.order {
		out = append(out, l.entries[k])
	}
	return out
}

// MatchingProfiles returns every profile at address with the given
// enabled state, or every address if address == FunctionBlockAddress.
func (l *List) MatchingProfiles(address byte, enabled bool, wholeDevice byte) []Profile {
	var out []Profile
	for _, k := range l.order {
		p := l.entries[k]
		if p.Enabled != enabled {
			continue
		}
		if address != wholeDevice && p.Address != address {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Addresses returns the distinct addresses with at least one profile,
// used to build one Profile Reply per populated address when queried at
// the whole-device address.
func (l *List) Addresses() []byte {
	seen := map[byte]bool{}
	var out []byte
	for _, k := range l.order {
		if !seen[k.address] {
			seen[k.address] = true
			out = append(out, k.address)
		}
	}
	return out
}
