package property

import (
	"sync"

	"github.com/google/uuid"

	"midici/internal/ciconst"
	"midici/internal/message"
)

// SubscriptionState is the client-side subscription state machine of
// spec.md §4.10: Subscribing -> Subscribed -> Unsubscribing ->
// Unsubscribed.
type SubscriptionState int

const (
	StateSubscribing SubscriptionState = iota
	StateSubscribed
	StateUnsubscribing
	StateUnsubscribed
)

func (s SubscriptionState) String() string {
	switch s {
	case StateSubscribing:
		return "subscribing"
	case StateSubscribed:
		return "subscribed"
	case StateUnsubscribing:
		return "unsubscribing"
	case StateUnsubscribed:
		return "unsubscribed"
	default:
		return "unknown"
	}
}

// ClientSubscription tracks one outstanding or active subscription to a
// remote property.
type ClientSubscription struct {
	PropertyID  string
	ResID       string
	SubscribeID string
	Encoding    string
	State       SubscriptionState
}

// GetCallback receives the outcome of a GetPropertyData request.
type GetCallback func(status int, msg string, body []byte, totalCount *int)

// SetCallback receives the outcome of a SetPropertyData request.
type SetCallback func(status int, msg string)

type pendingGet struct {
	req RequestHeader
	cb  GetCallback
}

type pendingSet struct {
	cb SetCallback
}

type pendingSubscribe struct {
	propertyID, resID, encoding string
	cb                          func(sub *ClientSubscription, status int, msg string)
}

// NotifyListener is invoked whenever a subscribed property's value
// changes, with the already-decoded body.
type NotifyListener func(sub ClientSubscription, body []byte)

// ClientFacade is one peer's property client: it tracks in-flight
// requests by request ID, correlating them with replies the messenger
// routes in (spec.md §4.7/§4.10's "structural correlation by
// (source, dest, request_id)").
type ClientFacade struct {
	mu sync.Mutex

	sender     Sender
	targetMUID uint32

	pendingGets       map[byte]pendingGet
	pendingSets       map[byte]pendingSet
	pendingSubscribes map[byte]pendingSubscribe

	subscriptions map[string]*ClientSubscription // keyed by subscribeID

	notifyListeners []notifyListenerEntry

	maxChunkBody int
}

type notifyListenerEntry struct {
	token Token
	fn    NotifyListener
}

// NewClientFacade returns an empty client facade for the peer identified
// by targetMUID.
func NewClientFacade(sender Sender, targetMUID uint32, maxChunkBody int) *ClientFacade {
	return &ClientFacade{
		sender:            sender,
		targetMUID:        targetMUID,
		pendingGets:       make(map[byte]pendingGet),
		pendingSets:       make(map[byte]pendingSet),
		pendingSubscribes: make(map[byte]pendingSubscribe),
		subscriptions:     make(map[string]*ClientSubscription),
		maxChunkBody:      maxChunkBody,
	}
}

// GetPropertyData sends a GetPropertyData Inquiry and registers cb to be
// invoked when the matching reply arrives; a NAK does not invoke cb.
func (c *ClientFacade) GetPropertyData(resource, resID, encoding string, offset, limit *int, cb GetCallback) error {
	req := RequestHeader{Resource: resource, ResID: resID, MutualEncoding: encoding, Offset: offset, Limit: limit}
	reqID := c.sender.NextRequestID()

	c.mu.Lock()
	c.pendingGets[reqID] = pendingGet{req: req, cb: cb}
	c.mu.Unlock()

	header := EncodeRequestHeader(req)
	return c.sendChunks(ciconst.SubIDPropertyGetDataInquiry, reqID, header, nil)
}

// SetPropertyData sends a SetPropertyData Inquiry with body encoded per
// encoding, registering cb for the reply.
func (c *ClientFacade) SetPropertyData(resource, resID, encoding string, body []byte, isPartial bool, cb SetCallback) error {
	encoded, err := EncodeBody(body, encoding)
	if err != nil {
		return err
	}
	req := RequestHeader{Resource: resource, ResID: resID, MutualEncoding: encoding, SetPartial: isPartial}
	reqID := c.sender.NextRequestID()

	c.mu.Lock()
	c.pendingSets[reqID] = pendingSet{cb: cb}
	c.mu.Unlock()

	header := EncodeRequestHeader(req)
	return c.sendChunks(ciconst.SubIDPropertySetDataInquiry, reqID, header, encoded)
}

// SubscribeProperty sends a SubscribeProperty Inquiry with command
// "start", registering cb for the reply that carries the assigned
// subscribe ID.
func (c *ClientFacade) SubscribeProperty(resource, resID, encoding string, cb func(sub *ClientSubscription, status int, msg string)) error {
	req := RequestHeader{Resource: resource, ResID: resID, MutualEncoding: encoding, Command: CommandStart}
	reqID := c.sender.NextRequestID()

	c.mu.Lock()
	c.pendingSubscribes[reqID] = pendingSubscribe{propertyID: resource, resID: resID, encoding: EncodingOrDefault(encoding), cb: cb}
	c.mu.Unlock()

	header := EncodeRequestHeader(req)
	return c.sendChunks(ciconst.SubIDPropertySubscribeInquiry, reqID, header, nil)
}

// UnsubscribeProperty sends command "end" for an active subscription.
func (c *ClientFacade) UnsubscribeProperty(subscribeID string) error {
	c.mu.Lock()
	sub, ok := c.subscriptions[subscribeID]
	if ok {
		sub.State = StateUnsubscribing
	}
	c.mu.Unlock()
	if !ok {
		return nil
	}

	req := RequestHeader{Command: CommandEnd, SubscribeID: subscribeID, Resource: sub.PropertyID}
	reqID := c.sender.NextRequestID()
	header := EncodeRequestHeader(req)
	return c.sendChunks(ciconst.SubIDPropertySubscribeInquiry, reqID, header, nil)
}

func (c *ClientFacade) sendChunks(subID2 byte, reqID byte, header, body []byte) error {
	chunkSize := effectiveChunkSize(c.sender, c.targetMUID, c.maxChunkBody)
	frames := message.SerializeProperty(subID2, ciconst.FunctionBlockAddress, 0x02, c.sender.MUID(), c.targetMUID, reqID, header, body, chunkSize)
	for _, f := range frames {
		parsedHeader, payload, err := message.ParseFrame(f)
		if err != nil {
			return err
		}
		chunk, err := message.ParsePropertyChunk(parsedHeader, payload)
		if err != nil {
			return err
		}
		if err := c.sender.Send(0, f, chunk); err != nil {
			return err
		}
	}
	return nil
}

// HandleGetReply dispatches a reassembled GetPropertyData Reply.
func (c *ClientFacade) HandleGetReply(reqID byte, header, body []byte) {
	c.mu.Lock()
	pg, ok := c.pendingGets[reqID]
	if ok {
		delete(c.pendingGets, reqID)
	}
	c.mu.Unlock()
	if !ok {
		return
	}

	reply, err := DecodeReplyHeader(header)
	if err != nil {
		pg.cb(ciconst.StatusInternalError, ciconst.MalformedMessage, nil, nil)
		return
	}
	decoded, err := DecodeBody(body, reply.MutualEncoding)
	if err != nil {
		pg.cb(ciconst.StatusInternalError, err.Error(), nil, nil)
		return
	}
	pg.cb(reply.Status, reply.Message, decoded, reply.TotalCount)
}

// HandleSetReply dispatches a reassembled SetPropertyData Reply.
func (c *ClientFacade) HandleSetReply(reqID byte, header []byte) {
	c.mu.Lock()
	ps, ok := c.pendingSets[reqID]
	if ok {
		delete(c.pendingSets, reqID)
	}
	c.mu.Unlock()
	if !ok {
		return
	}
	reply, err := DecodeReplyHeader(header)
	if err != nil {
		ps.cb(ciconst.StatusInternalError, ciconst.MalformedMessage)
		return
	}
	ps.cb(reply.Status, reply.Message)
}

// HandleSubscribeReply dispatches the reply to a "start" (or "end")
// SubscribeProperty Inquiry, registering the new ClientSubscription on a
// successful start and removing the unsubscribing one on a successful end.
func (c *ClientFacade) HandleSubscribeReply(reqID byte, header []byte) {
	c.mu.Lock()
	ps, ok := c.pendingSubscribes[reqID]
	if ok {
		delete(c.pendingSubscribes, reqID)
	}
	c.mu.Unlock()
	if !ok {
		if reply, err := DecodeReplyHeader(header); err == nil && reply.Status == ciconst.StatusOK {
			c.mu.Lock()
			if sub, found := c.subscriptions[reply.SubscribeID]; found && sub.State == StateUnsubscribing {
				sub.State = StateUnsubscribed
				delete(c.subscriptions, reply.SubscribeID)
			}
			c.mu.Unlock()
		}
		return
	}

	reply, err := DecodeReplyHeader(header)
	if err != nil {
		ps.cb(nil, ciconst.StatusInternalError, ciconst.MalformedMessage)
		return
	}
	if reply.Status != ciconst.StatusOK || reply.SubscribeID == "" {
		ps.cb(nil, reply.Status, reply.Message)
		return
	}

	sub := &ClientSubscription{
		PropertyID:  ps.propertyID,
		ResID:       ps.resID,
		SubscribeID: reply.SubscribeID,
		Encoding:    ps.encoding,
		State:       StateSubscribed,
	}
	c.mu.Lock()
	c.subscriptions[sub.SubscribeID] = sub
	c.mu.Unlock()
	ps.cb(sub, reply.Status, reply.Message)
}

// HandleNotify dispatches an incoming SubscribeProperty Notify chunk: a
// command of "full" or "partial" carries the new value directly; a bare
// "notify" with no body is a pull signal (original_source supplement)
// that triggers a fresh GetPropertyData; "end" tears the subscription
// down.
func (c *ClientFacade) HandleNotify(header, body []byte) error {
	h, err := DecodeRequestHeader(header)
	if err != nil {
		return err
	}

	c.mu.Lock()
	sub, ok := c.subscriptions[h.SubscribeID]
	c.mu.Unlock()
	if !ok {
		return nil
	}

	switch h.Command {
	case CommandEnd:
		c.mu.Lock()
		sub.State = StateUnsubscribed
		delete(c.subscriptions, h.SubscribeID)
		c.mu.Unlock()
		c.fireNotify(*sub, nil)
		return nil
	case CommandNotify:
		if len(body) == 0 {
			return c.GetPropertyData(sub.PropertyID, sub.ResID, sub.Encoding, nil, nil, func(status int, msg string, body []byte, totalCount *int) {
				if status == ciconst.StatusOK {
					c.fireNotify(*sub, body)
				}
			})
		}
		fallthrough
	default:
		decoded, err := DecodeBody(body, EncodingOrDefault(h.MutualEncoding))
		if err != nil {
			return err
		}
		c.fireNotify(*sub, decoded)
		return nil
	}
}

func (c *ClientFacade) fireNotify(sub ClientSubscription, body []byte) {
	c.mu.Lock()
	listeners := append([]notifyListenerEntry{}, c.notifyListeners...)
	c.mu.Unlock()
	for _, l := range listeners {
		l.fn(sub, body)
	}
}

// AddNotifyListener registers fn, invoked on every subscription value
// change or termination, and returns a removal token.
func (c *ClientFacade) AddNotifyListener(fn NotifyListener) Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	tok := uuid.New()
	c.notifyListeners = append(c.notifyListeners, notifyListenerEntry{token: tok, fn: fn})
	return tok
}

// RemoveNotifyListener removes the listener registered under tok.
func (c *ClientFacade) RemoveNotifyListener(tok Token) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, l := range c.notifyListeners {
		if l.token == tok {
			c.notifyListeners = append(c.notifyListeners[:i], c.notifyListeners[i+1:]...)
			return
		}
	}
}

// Subscriptions returns a snapshot of active subscriptions.
func (c *ClientFacade) Subscriptions() []ClientSubscription {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ClientSubscription, 0, len(c.subscriptions))
	for _, s := range c.subscriptions {
		out = append(out, *s)
	}
	return out
}
