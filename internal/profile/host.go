package profile

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"midici/internal/ciconst"
	"midici/internal/message"
)

// ErrDuplicateProfile is returned by HostFacade.AddProfile when the
// (id, group, address) triple is already present.
var ErrDuplicateProfile = errors.New("profile: duplicate (id, group, address)")

// Sender is the narrow slice of *device.Device the facades need: the
// local MUID and the ability to emit one already-built message.
type Sender interface {
	MUID() uint32
	Send(group byte, data []byte, label fmt.Stringer) error
}

type changeListener struct {
	token Token
	fn    func()
}

type profileSetListener struct {
	token Token
	fn    func(group, address byte, id message.ProfileID, enabled bool, numChannels uint16)
}

// Token is an opaque listener handle, minted fresh per registration (see
// device.Token; spec.md §9's redesign note applies here too).
type Token = uuid.UUID

// HostFacade owns the local device's Observable Profile List: the set of
// profiles this device can enable on its own addresses.
type HostFacade struct {
	mu       sync.Mutex
	list     *List
	sender   Sender
	group    byte
	changeLs []changeListener
	setLs    []profileSetListener
}

// NewHostFacade returns an empty host facade bound to sender, sending
// broadcasts on the given default group.
func NewHostFacade(sender Sender, group byte) *HostFacade {
	return &HostFacade{list: newList(), sender: sender, group: group}
}

func (h *HostFacade) token() Token {
	return uuid.New()
}

// AddProfile inserts a new profile entry, disabled by default.
func (h *HostFacade) AddProfile(id message.ProfileID, group, address byte) error {
	h.mu.Lock()
	if _, ok := h.list.get(id, group, address); ok {
		h.mu.Unlock()
		return ErrDuplicateProfile
	}
	h.list.upsert(Profile{ID: id, Group: group, Address: address})
	listeners := append([]changeListener(nil), h.changeLs...)
	h.mu.Unlock()

	fireChange(listeners)
	return nil
}

// RemoveProfile deletes a profile entry and fires change listeners if it
// existed.
func (h *HostFacade) RemoveProfile(id message.ProfileID, group, address byte) bool {
	h.mu.Lock()
	_, ok := h.list.remove(id, group, address)
	listeners := append([]changeListener(nil), h.changeLs...)
	h.mu.Unlock()

	if ok {
		fireChange(listeners)
	}
	return ok
}

// EnableProfile marks a profile enabled, broadcasts an Enabled Report,
// and notifies both the change listeners and the profile-set listener
// chain.
func (h *HostFacade) EnableProfile(id message.ProfileID, group, address byte, numChannels uint16) error {
	return h.setProfile(id, group, address, true, numChannels)
}

// DisableProfile is the mirror of EnableProfile.
func (h *HostFacade) DisableProfile(id message.ProfileID, group, address byte, numChannels uint16) error {
	return h.setProfile(id, group, address, false, numChannels)
}

func (h *HostFacade) setProfile(id message.ProfileID, group, address byte, enabled bool, numChannels uint16) error {
	numChannels = message.DefaultNumChannels(address, numChannels, numChannels != 0)

	h.mu.Lock()
	p, ok := h.list.get(id, group, address)
	if !ok {
		p = Profile{ID: id, Group: group, Address: address}
	}
	p.Enabled = enabled
	p.NumChannels = numChannels
	h.list.upsert(p)
	changeLs := append([]changeListener(nil), h.changeLs...)
	setLs := append([]profileSetListener(nil), h.setLs...)
	h.mu.Unlock()

	fireChange(changeLs)
	for _, l := range setLs {
		l.fn(group, address, id, enabled, numChannels)
	}

	if enabled {
		m := message.ProfileEnabledReport{Address: address, Source: h.sender.MUID(), Dest: ciconst.BroadcastMUID, ProfileID: id, NumChannels: numChannels}
		return h.sender.Send(group, m.Build(0x02), m)
	}
	m := message.ProfileDisabledReport{Address: address, Source: h.sender.MUID(), Dest: ciconst.BroadcastMUID, ProfileID: id, NumChannels: numChannels}
	return h.sender.Send(group, m.Build(0x02), m)
}

// GetMatchingProfiles returns profiles at address (or every address, at
// the whole-device address) with the given enabled state, for building a
// Profile Inquiry reply.
func (h *HostFacade) GetMatchingProfiles(address byte, enabled bool) []Profile {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.list.MatchingProfiles(address, enabled, ciconst.FunctionBlockAddress)
}

// Addresses returns the distinct addresses carrying at least one profile.
func (h *HostFacade) Addresses() []byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.list.Addresses()
}

// Snapshot returns every profile in insertion order.
func (h *HostFacade) Snapshot() []Profile {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.list.Snapshot()
}

// AddChangeListener registers fn, invoked after any add/remove/enable/
// disable, and returns a removal token.
func (h *HostFacade) AddChangeListener(fn func()) Token {
	h.mu.Lock()
	defer h.mu.Unlock()
	tok := h.token()
	h.changeLs = append(h.changeLs, changeListener{token: tok, fn: fn})
	return tok
}

// RemoveChangeListener removes the listener registered under tok.
func (h *HostFacade) RemoveChangeListener(tok Token) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, l := range h.changeLs {
		if l.token == tok {
			h.changeLs = append(h.changeLs[:i], h.changeLs[i+1:]...)
			return
		}
	}
}

// AddProfileSetListener registers fn, invoked on every enable/disable
// with the resolved numChannels, in addition to the plain change
// listeners (spec.md §4.5: "additionally notifies an on profile set
// listener chain").
func (h *HostFacade) AddProfileSetListener(fn func(group, address byte, id message.ProfileID, enabled bool, numChannels uint16)) Token {
	h.mu.Lock()
	defer h.mu.Unlock()
	tok := h.token()
	h.setLs = append(h.setLs, profileSetListener{token: tok, fn: fn})
	return tok
}

func fireChange(listeners []changeListener) {
	for _, l := range listeners {
		l.fn()
	}
}
