package profile

import (
	"sync"

	"github.com/google/uuid"

	"midici/internal/message"
)

// ClientFacade mirrors one peer's profile set, kept in sync by Profile
// Reply/Added/Removed/Enabled/Disabled reports, and can request the peer
// change a profile's enabled state.
type ClientFacade struct {
	mu         sync.Mutex
	list       *List
	sender     Sender
	targetMUID uint32
	changeLs   []changeListener
}

// NewClientFacade returns an empty client facade for the peer identified
// by targetMUID.
func NewClientFacade(sender Sender, targetMUID uint32) *ClientFacade {
	return &ClientFacade{list: newList(), sender: sender, targetMUID: targetMUID}
}

func (c *ClientFacade) token() Token {
	return uuid.New()
}

// Snapshot returns every known peer profile in insertion order.
func (c *ClientFacade) Snapshot() []Profile {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.list.Snapshot()
}

// HandleProfileReply records the enabled/disabled lists a Profile Reply
// carries for reply.Address, adding or updating each listed profile;
// profiles already known at that address but absent from the reply are
// kept.
func (c *ClientFacade) HandleProfileReply(group byte, reply message.ProfileReply) {
	c.mu.Lock()
	for _, id := range reply.Enabled {
		c.list.upsert(Profile{ID: id, Group: group, Address: reply.Address, Enabled: true,
			NumChannels: message.DefaultNumChannels(reply.Address, 0, false)})
	}
	for _, id := range reply.Disabled {
		c.list.upsert(Profile{ID: id, Group: group, Address: reply.Address, Enabled: false})
	}
	listeners := append([]changeListener(nil), c.changeLs...)
	c.mu.Unlock()
	fireChange(listeners)
}

// HandleAdded records a newly advertised profile, disabled by default.
func (c *ClientFacade) HandleAdded(group byte, m message.ProfileAdded) {
	c.mu.Lock()
	c.list.upsert(Profile{ID: m.ProfileID, Group: group, Address: m.Address})
	listeners := append([]changeListener(nil), c.changeLs...)
	c.mu.Unlock()
	fireChange(listeners)
}

// HandleRemoved drops a profile the peer no longer advertises.
func (c *ClientFacade) HandleRemoved(group byte, m message.ProfileRemoved) {
	c.mu.Lock()
	c.list.remove(m.ProfileID, group, m.Address)
	listeners := append([]changeListener(nil), c.changeLs...)
	c.mu.Unlock()
	fireChange(listeners)
}

// HandleEnabledReport updates the peer's list to reflect a profile it
// just enabled, applying the channel-count defaulting rule.
func (c *ClientFacade) HandleEnabledReport(group byte, m message.ProfileEnabledReport) {
	c.setEnabled(group, m.Address, m.ProfileID, true, m.NumChannels)
}

// HandleDisabledReport is the mirror of HandleEnabledReport.
func (c *ClientFacade) HandleDisabledReport(group byte, m message.ProfileDisabledReport) {
	c.setEnabled(group, m.Address, m.ProfileID, false, m.NumChannels)
}

func (c *ClientFacade) setEnabled(group, address byte, id message.ProfileID, enabled bool, numChannels uint16) {
	numChannels = message.DefaultNumChannels(address, numChannels, numChannels != 0)

	c.mu.Lock()
	p, ok := c.list.get(id, group, address)
	if !ok {
		p = Profile{ID: id, Group: group, Address: address}
	}
	p.Enabled = enabled
	p.NumChannels = numChannels
	c.list.upsert(p)
	listeners := append([]changeListener(nil), c.changeLs...)
	c.mu.Unlock()
	fireChange(listeners)
}

// SetProfile requests the peer enable or disable a profile, sending
// Set-Profile-On or Set-Profile-Off.
func (c *ClientFacade) SetProfile(group, address byte, id message.ProfileID, enabled bool, numChannelsRequested uint16) error {
	if enabled {
		m := message.ProfileSetOn{Address: address, Source: c.sender.MUID(), Dest: c.targetMUID, ProfileID: id, NumChannels: numChannelsRequested}
		return c.sender.Send(group, m.Build(0x02), m)
	}
	m := message.ProfileSetOff{Address: address, Source: c.sender.MUID(), Dest: c.targetMUID, ProfileID: id, NumChannels: numChannelsRequested}
	return c.sender.Send(group, m.Build(0x02), m)
}

// AddChangeListener registers fn, invoked after any list mutation, and
// returns a removal token.
func (c *ClientFacade) AddChangeListener(fn func()) Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	tok := c.token()
	c.changeLs = append(c.changeLs, changeListener{token: tok, fn: fn})
	return tok
}

// RemoveChangeListener removes the listener registered under tok.
func (c *ClientFacade) RemoveChangeListener(tok Token) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, l := range c.changeLs {
		if l.token == tok {
			c.changeLs = append(c.changeLs[:i], c.changeLs[i+1:]...)
			return
		}
	}
}
