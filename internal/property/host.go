package property

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"

	"github.com/google/uuid"

	"midici/internal/ciconst"
	"midici/internal/codec"
	"midici/internal/message"
)

// Token is an opaque listener-registration handle, minted fresh per
// registration (spec.md §9 redesign note: every add_*_listener returns a
// token that remove_* takes back).
type Token = uuid.UUID

// listenerEntry pairs a removal token with the plain callback, the same
// shape device.Device and internal/profile use for their listener lists.
type listenerEntry struct {
	token Token
	fn    func()
}

// ErrReservedPropertyID is returned by AddMetadata for an id that collides
// with a built-in property (Open Question decision, see DESIGN.md);
// ErrDuplicateProperty for an id already in the catalog.
var ErrReservedPropertyID = errors.New("property: id collides with a built-in property")
var ErrDuplicateProperty = errors.New("property: duplicate property_id")
var ErrUnknownProperty = errors.New("property: unknown property_id")

// Sender is the narrow slice of *device.Device the facade needs.
type Sender interface {
	MUID() uint32
	Send(group byte, data []byte, label fmt.Stringer) error
	NextRequestID() byte
	// RemoteMaxSysExSize reports the learned SysEx size limit for a
	// connected peer, if any (spec.md §4.4's per-destination chunk-size
	// cap).
	RemoteMaxSysExSize(muid uint32) (uint32, bool)
}

// effectiveChunkSize caps configured to the destination's learned
// remote_max_sysex_size, when smaller and known.
func effectiveChunkSize(sender Sender, dest uint32, configured int) int {
	remote, ok := sender.RemoteMaxSysExSize(dest)
	if ok && int(remote) < configured {
		return int(remote)
	}
	return configured
}

// HostSubscription is one peer's live subscription to a property, per
// spec.md §3.
type HostSubscription struct {
	SubscriberMUID uint32
	PropertyID     string
	ResID          string
	SubscribeID    string
	Encoding       string
}

// notifyLabel is the fmt.Stringer log label for a subscription-end
// notify frame, which sendUnsubscribeEnd sends without parsing it back
// into a PropertyChunk.
type notifyLabel struct {
	propertyID string
}

func (n notifyLabel) String() string { return fmt.Sprintf("SubscribeProperty{notify %s}", n.propertyID) }

// BinaryGetter resolves a user property's stored bytes; the default
// looks up the value store, mirroring original_source's
// propertyBinaryGetter indirection (SPEC_FULL.md §12).
type BinaryGetter func(propertyID, resID string) ([]byte, bool)

// BinarySetter stores a user property's bytes; the default writes to the
// value store via SetPropertyValue.
type BinarySetter func(propertyID, resID string, data []byte, isPartial bool) error

// HostFacade owns the local catalog, value store, and subscriber list.
type HostFacade struct {
	mu sync.Mutex

	sender Sender
	group  byte

	metaOrder []string
	metadata  map[string]Metadata
	values    map[valueKey][]byte

	linkedResources map[string][]byte

	subscriptions []HostSubscription

	binaryGetter BinaryGetter
	binarySetter BinarySetter

	catalogListeners      []listenerEntry
	subscriptionListeners []listenerEntry

	deviceInfo   func() codec.Value
	channelList  func() codec.Value
	jsonSchema   func() string

	maxChunkBody int
}

type valueKey struct {
	propertyID string
	resID      string
}

// NewHostFacade returns a facade seeded with the three always-present
// built-in properties (ResourceList is synthesized on demand, not
// stored).
func NewHostFacade(sender Sender, group byte, deviceInfo, channelList func() codec.Value, jsonSchema func() string, maxChunkBody int) *HostFacade {
	h := &HostFacade{
		sender:          sender,
		group:           group,
		metadata:        make(map[string]Metadata),
		values:          make(map[valueKey][]byte),
		linkedResources: make(map[string][]byte),
		deviceInfo:      deviceInfo,
		channelList:     channelList,
		jsonSchema:      jsonSchema,
		maxChunkBody:    maxChunkBody,
	}
	for _, id := range []string{ciconst.PropertyDeviceInfo, ciconst.PropertyChannelList, ciconst.PropertyJSONSchema} {
		h.metadata[id] = builtinMetadata(id)
		h.metaOrder = append(h.metaOrder, id)
	}
	h.binaryGetter = h.defaultGetter
	h.binarySetter = func(id, resID string, data []byte, isPartial bool) error {
		return h.SetPropertyValue(id, resID, data, isPartial)
	}
	return h
}

func (h *HostFacade) defaultGetter(propertyID, resID string) ([]byte, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if resID != "" {
		if b, ok := h.linkedResources[resID]; ok {
			return b, true
		}
	}
	b, ok := h.values[valueKey{propertyID, resID}]
	return b, ok
}

// SetBinaryGetter overrides the GET resolution hook for user properties.
func (h *HostFacade) SetBinaryGetter(fn BinaryGetter) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.binaryGetter = fn
}

// SetBinarySetter overrides the SET resolution hook for user properties.
func (h *HostFacade) SetBinarySetter(fn BinarySetter) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.binarySetter = fn
}

// AddMetadata inserts meta, rejecting a duplicate or built-in-colliding
// property_id.
func (h *HostFacade) AddMetadata(meta Metadata) error {
	if IsBuiltin(meta.PropertyID) {
		return ErrReservedPropertyID
	}
	h.mu.Lock()
	if _, ok := h.metadata[meta.PropertyID]; ok {
		h.mu.Unlock()
		return ErrDuplicateProperty
	}
	meta.Originator = ciconst.OriginatorUser
	h.metadata[meta.PropertyID] = meta
	h.metaOrder = append(h.metaOrder, meta.PropertyID)
	listeners := append([]listenerEntry{}, h.catalogListeners...)
	h.mu.Unlock()

	fireAll(listeners)
	return nil
}

// RemoveProperty removes metadata, the stored value, and every
// subscription for id, notifying subscription-changed listeners.
func (h *HostFacade) RemoveProperty(id string) error {
	h.mu.Lock()
	if _, ok := h.metadata[id]; !ok {
		h.mu.Unlock()
		return ErrUnknownProperty
	}
	delete(h.metadata, id)
	for i, pid := range h.metaOrder {
		if pid == id {
			h.metaOrder = append(h.metaOrder[:i], h.metaOrder[i+1:]...)
			break
		}
	}
	for k := range h.values {
		if k.propertyID == id {
			delete(h.values, k)
		}
	}
	var kept []HostSubscription
	var removed []HostSubscription
	for _, s := range h.subscriptions {
		if s.PropertyID == id {
			removed = append(removed, s)
		} else {
			kept = append(kept, s)
		}
	}
	h.subscriptions = kept
	catalogLs := append([]listenerEntry{}, h.catalogListeners...)
	subLs := append([]listenerEntry{}, h.subscriptionListeners...)
	h.mu.Unlock()

	for _, s := range removed {
		h.sendUnsubscribeEnd(s)
	}
	fireAll(catalogLs)
	fireAll(subLs)
	return nil
}

// UpdatePropertyMetadata replaces oldID's metadata with newMeta,
// preserving any stored value bytes under the new id.
func (h *HostFacade) UpdatePropertyMetadata(oldID string, newMeta Metadata) error {
	h.mu.Lock()
	if _, ok := h.metadata[oldID]; !ok {
		h.mu.Unlock()
		return ErrUnknownProperty
	}
	delete(h.metadata, oldID)
	newMeta.Originator = ciconst.OriginatorUser
	h.metadata[newMeta.PropertyID] = newMeta
	for i, pid := range h.metaOrder {
		if pid == oldID {
			h.metaOrder[i] = newMeta.PropertyID
			break
		}
	}
	if oldID != newMeta.PropertyID {
		for k, v := range h.values {
			if k.propertyID == oldID {
				delete(h.values, k)
				h.values[valueKey{newMeta.PropertyID, k.resID}] = v
			}
		}
	}
	listeners := append([]listenerEntry{}, h.catalogListeners...)
	h.mu.Unlock()

	fireAll(listeners)
	return nil
}

// SetPropertyValue writes data for (id, resID), honoring the one-value-
// per-pair invariant, and fans the change out to subscribers.
func (h *HostFacade) SetPropertyValue(id, resID string, data []byte, isPartial bool) error {
	h.mu.Lock()
	h.values[valueKey{id, resID}] = data
	subs := make([]HostSubscription, 0, len(h.subscriptions))
	for _, s := range h.subscriptions {
		if s.PropertyID == id {
			subs = append(subs, s)
		}
	}
	h.mu.Unlock()

	return h.fanOut(id, resID, data, isPartial, subs)
}

func (h *HostFacade) fanOut(id, resID string, data []byte, isPartial bool, subs []HostSubscription) error {
	encoded := make(map[string][]byte)
	for _, s := range subs {
		body, ok := encoded[s.Encoding]
		if !ok {
			var err error
			body, err = EncodeBody(data, s.Encoding)
			if err != nil {
				return err
			}
			encoded[s.Encoding] = body
		}
		header := EncodeRequestHeader(RequestHeader{
			SubscribeID:    s.SubscribeID,
			SetPartial:     isPartial,
			MutualEncoding: s.Encoding,
		})
		reqID := h.sender.NextRequestID()
		chunkSize := effectiveChunkSize(h.sender, s.SubscriberMUID, h.maxChunkBody)
		frames := message.SerializeProperty(
			ciconst.SubIDPropertyNotify, ciconst.FunctionBlockAddress, 0x02,
			h.sender.MUID(), s.SubscriberMUID, reqID, header, body, chunkSize,
		)
		for _, f := range frames {
			parsedHeader, payload, _ := message.ParseFrame(f)
			chunk, _ := message.ParsePropertyChunk(parsedHeader, payload)
			if err := h.sender.Send(h.group, f, chunk); err != nil {
				return err
			}
		}
	}
	return nil
}

// ShutdownSubscription removes a single subscription and tells the
// subscriber to stop.
func (h *HostFacade) ShutdownSubscription(destMUID uint32, propertyID, resID string) error {
	h.mu.Lock()
	var found *HostSubscription
	kept := h.subscriptions[:0:0]
	for _, s := range h.subscriptions {
		if s.SubscriberMUID == destMUID && s.PropertyID == propertyID && s.ResID == resID {
			f := s
			found = &f
			continue
		}
		kept = append(kept, s)
	}
	h.subscriptions = kept
	h.mu.Unlock()

	if found == nil {
		return nil
	}
	return h.sendUnsubscribeEnd(*found)
}

// TerminateSubscriptionsToAllSubscribers sends "end" to every subscriber
// and clears the subscription list, for device shutdown.
func (h *HostFacade) TerminateSubscriptionsToAllSubscribers(group byte) error {
	h.mu.Lock()
	all := append([]HostSubscription(nil), h.subscriptions...)
	h.subscriptions = nil
	h.mu.Unlock()

	for _, s := range all {
		if err := h.sendUnsubscribeEnd(s); err != nil {
			return err
		}
	}
	return nil
}

func (h *HostFacade) sendUnsubscribeEnd(s HostSubscription) error {
	header := EncodeRequestHeader(RequestHeader{Command: CommandEnd, SubscribeID: s.SubscribeID, Resource: s.PropertyID})
	reqID := h.sender.NextRequestID()
	chunkSize := effectiveChunkSize(h.sender, s.SubscriberMUID, h.maxChunkBody)
	frames := message.SerializeProperty(ciconst.SubIDPropertyNotify, ciconst.FunctionBlockAddress, 0x02,
		h.sender.MUID(), s.SubscriberMUID, reqID, header, nil, chunkSize)
	for _, f := range frames {
		if err := h.sender.Send(h.group, f, notifyLabel{propertyID: s.PropertyID}); err != nil {
			return err
		}
	}
	return nil
}

// HandleGet resolves a GetPropertyData request into a status, body, and
// totalCount (nil unless the body is a paginated array).
func (h *HostFacade) HandleGet(req RequestHeader) (status int, msg string, body []byte, totalCount *int) {
	var bodyValue codec.Value
	switch req.Resource {
	case ciconst.PropertyDeviceInfo:
		bodyValue = h.deviceInfo()
	case ciconst.PropertyChannelList:
		bodyValue = h.channelList()
	case ciconst.PropertyJSONSchema:
		return ciconst.StatusOK, "", []byte(h.jsonSchema()), nil
	case ciconst.PropertyResourceList:
		bodyValue = h.resourceListValue()
	default:
		h.mu.Lock()
		_, known := h.metadata[req.Resource]
		h.mu.Unlock()
		if !known {
			return ciconst.StatusResourceUnavailableOrError, fmt.Sprintf("unknown resource %q", req.Resource), nil, nil
		}
		raw, ok := h.binaryGetter(req.Resource, req.ResID)
		if !ok {
			return ciconst.StatusResourceUnavailableOrError, "no value set", nil, nil
		}
		bodyValue = codec.ParseOrNull(string(raw))
		if bodyValue.IsNull() && len(raw) > 0 {
			return ciconst.StatusOK, "", raw, nil
		}
	}

	sliced, total := PaginateArray(bodyValue, req.Offset, req.Limit)
	return ciconst.StatusOK, "", []byte(codec.Serialize(sliced)), total
}

func (h *HostFacade) resourceListValue() codec.Value {
	h.mu.Lock()
	defer h.mu.Unlock()
	arr := make([]codec.Value, 0, len(h.metaOrder))
	for _, id := range h.metaOrder {
		m := h.metadata[id]
		entry := codec.Object()
		entry.Set("resource", codec.String(m.PropertyID))
		entry.Set("originator", codec.String(m.Originator.String()))
		arr = append(arr, entry)
	}
	return codec.Array(arr...)
}

// HandleSet resolves a SetPropertyData request into a status and
// diagnostic message.
func (h *HostFacade) HandleSet(req RequestHeader, body []byte) (status int, msg string) {
	if IsBuiltin(req.Resource) {
		return ciconst.StatusInternalError, ciconst.ReadOnlyMessage
	}
	if err := h.binarySetter(req.Resource, req.ResID, body, req.SetPartial); err != nil {
		return ciconst.StatusInternalError, err.Error()
	}
	return ciconst.StatusOK, ""
}

// HandleSubscribeStart creates a HostSubscription for subscriberMUID and
// returns the newly assigned subscribe ID.
func (h *HostFacade) HandleSubscribeStart(subscriberMUID uint32, req RequestHeader) (status int, subscribeID string) {
	id := generateSubscribeID()
	h.mu.Lock()
	h.subscriptions = append(h.subscriptions, HostSubscription{
		SubscriberMUID: subscriberMUID,
		PropertyID:     req.Resource,
		ResID:          req.ResID,
		SubscribeID:    id,
		Encoding:       EncodingOrDefault(req.MutualEncoding),
	})
	h.mu.Unlock()
	return ciconst.StatusOK, id
}

// HandleSubscribeEnd removes a subscription by subscribe ID or by
// resource name. A stale end with no matching subscription is a no-op
// success (Open Question decision, see DESIGN.md).
func (h *HostFacade) HandleSubscribeEnd(subscriberMUID uint32, req RequestHeader) int {
	h.mu.Lock()
	kept := h.subscriptions[:0:0]
	for _, s := range h.subscriptions {
		match := s.SubscriberMUID == subscriberMUID && (s.SubscribeID == req.SubscribeID || s.PropertyID == req.Resource)
		if !match {
			kept = append(kept, s)
		}
	}
	h.subscriptions = kept
	h.mu.Unlock()
	return ciconst.StatusOK
}

func generateSubscribeID() string {
	return fmt.Sprintf("%08d", rand.Intn(100000000))
}

// AddCatalogUpdatedListener registers fn, invoked after any catalog
// mutation (add/remove/update metadata), and returns a removal token.
func (h *HostFacade) AddCatalogUpdatedListener(fn func()) Token {
	h.mu.Lock()
	defer h.mu.Unlock()
	tok := uuid.New()
	h.catalogListeners = append(h.catalogListeners, listenerEntry{token: tok, fn: fn})
	return tok
}

// RemoveCatalogUpdatedListener removes the listener registered under tok.
func (h *HostFacade) RemoveCatalogUpdatedListener(tok Token) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.catalogListeners = removeListener(h.catalogListeners, tok)
}

// AddSubscriptionsUpdatedListener registers fn, invoked by RemoveProperty
// after it drops a property's subscriptions — kept distinct from catalog
// updates per original_source (SPEC_FULL.md §12) — and returns a removal
// token. Subscribe start and end requests, ShutdownSubscription and
// TerminateSubscriptionsToAllSubscribers do not invoke it.
func (h *HostFacade) AddSubscriptionsUpdatedListener(fn func()) Token {
	h.mu.Lock()
	defer h.mu.Unlock()
	tok := uuid.New()
	h.subscriptionListeners = append(h.subscriptionListeners, listenerEntry{token: tok, fn: fn})
	return tok
}

// RemoveSubscriptionsUpdatedListener removes the listener registered under tok.
func (h *HostFacade) RemoveSubscriptionsUpdatedListener(tok Token) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subscriptionListeners = removeListener(h.subscriptionListeners, tok)
}

func removeListener(entries []listenerEntry, tok Token) []listenerEntry {
	for i, e := range entries {
		if e.token == tok {
			return append(entries[:i], entries[i+1:]...)
		}
	}
	return entries
}

// SetLinkedResource stores bytes for a multi-instance resource addressed
// by resID, bypassing the main value store (original_source supplement).
func (h *HostFacade) SetLinkedResource(resID string, data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.linkedResources[resID] = data
}

// CatalogSnapshot returns a snapshot of the catalog in insertion order.
func (h *HostFacade) CatalogSnapshot() []Metadata {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Metadata, 0, len(h.metaOrder))
	for _, id := range h.metaOrder {
		out = append(out, h.metadata[id])
	}
	return out
}

func fireAll(entries []listenerEntry) {
	for _, e := range entries {
		e.fn()
	}
}
