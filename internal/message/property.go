package message

import (
	"fmt"

	"midici/internal/ciconst"
	"midici/internal/codec"
)

// PropertyCapabilities carries the "how many property requests can be
// outstanding" negotiation used by Get Capabilities / Reply.
type PropertyCapabilities struct {
	Address              byte
	Source               uint32
	Dest                 uint32
	MaxSimultaneousRequests byte
	IsReply              bool
}

func (m PropertyCapabilities) String() string {
	kind := "Inquiry"
	if m.IsReply {
		kind = "Reply"
	}
	return fmt.Sprintf("PropertyGetCapabilities%s{max=%d}", kind, m.MaxSimultaneousRequests)
}

func (m PropertyCapabilities) Build(version byte) []byte {
	subID2 := ciconst.SubIDPropertyGetCapabilities
	if m.IsReply {
		subID2 = ciconst.SubIDPropertyCapabilitiesReply
	}
	return BuildFrame(m.Address, subID2, version, m.Source, m.Dest, []byte{m.MaxSimultaneousRequests})
}

func ParsePropertyCapabilities(h Header, payload []byte, isReply bool) (PropertyCapabilities, error) {
	if len(payload) < 1 {
		return PropertyCapabilities{}, ErrTruncated
	}
	return PropertyCapabilities{
		Address:                 h.Address,
		Source:                  h.Source,
		Dest:                    h.Dest,
		MaxSimultaneousRequests: payload[0],
		IsReply:                 isReply,
	}, nil
}

// PropertyChunk is one wire chunk of a (possibly multi-chunk) property
// message: Get/Set Data Inquiry or Reply, Subscribe Inquiry or Reply, or
// Notify. The header is only meaningful on ChunkIndex == 1; later chunks
// carry an empty header and rely on the chunk manager having kept the
// first one.
type PropertyChunk struct {
	Address    byte
	Source     uint32
	Dest       uint32
	SubID2     byte
	RequestID  byte
	Header     []byte
	NumChunks  uint16
	ChunkIndex uint16
	Body       []byte
}

func (m PropertyChunk) String() string {
	return fmt.Sprintf("PropertyChunk{subid2=%02X req=%d chunk=%d/%d hlen=%d blen=%d}",
		m.SubID2, m.RequestID, m.ChunkIndex, m.NumChunks, len(m.Header), len(m.Body))
}

func (m PropertyChunk) build(version byte) []byte {
	hlen := codec.PutUint7x2(uint16(len(m.Header)))
	nchunks := codec.PutUint7x2(m.NumChunks)
	cidx := codec.PutUint7x2(m.ChunkIndex)
	blen := codec.PutUint7x2(uint16(len(m.Body)))

	payload := make([]byte, 0, 1+2+len(m.Header)+2+2+2+len(m.Body))
	payload = append(payload, m.RequestID)
	payload = append(payload, hlen[:]...)
	payload = append(payload, m.Header...)
	payload = append(payload, nchunks[:]...)
	payload = append(payload, cidx[:]...)
	payload = append(payload, blen[:]...)
	payload = append(payload, m.Body...)
	return BuildFrame(m.Address, m.SubID2, version, m.Source, m.Dest, payload)
}

// ParsePropertyChunk extracts fields from a payload for any of the
// chunked property sub-ID2 kinds.
func ParsePropertyChunk(h Header, payload []byte) (PropertyChunk, error) {
	if len(payload) < 1+2 {
		return PropertyChunk{}, ErrTruncated
	}
	reqID := payload[0]
	hlen, err := codec.Uint7x2(payload[1:3])
	if err != nil {
		return PropertyChunk{}, err
	}
	off := 3
	if len(payload) < off+int(hlen) {
		return PropertyChunk{}, ErrTruncated
	}
	header := payload[off : off+int(hlen)]
	off += int(hlen)

	if len(payload) < off+6 {
		return PropertyChunk{}, ErrTruncated
	}
	nchunks, err := codec.Uint7x2(payload[off : off+2])
	if err != nil {
		return PropertyChunk{}, err
	}
	off += 2
	cidx, err := codec.Uint7x2(payload[off : off+2])
	if err != nil {
		return PropertyChunk{}, err
	}
	off += 2
	blen, err := codec.Uint7x2(payload[off : off+2])
	if err != nil {
		return PropertyChunk{}, err
	}
	off += 2
	if len(payload) < off+int(blen) {
		return PropertyChunk{}, ErrTruncated
	}
	body := payload[off : off+int(blen)]

	return PropertyChunk{
		Address:    h.Address,
		Source:     h.Source,
		Dest:       h.Dest,
		SubID2:     h.SubID2,
		RequestID:  reqID,
		Header:     header,
		NumChunks:  nchunks,
		ChunkIndex: cidx,
		Body:       body,
	}, nil
}

// SerializeProperty splits header+body across one or more PropertyChunks
// respecting maxBodyPerChunk (0 or negative means "no limit, one
// chunk"), and builds the wire bytes for each. Only the first chunk
// carries the header.
func SerializeProperty(subID2, address, version byte, src, dst uint32, requestID byte, header, body []byte, maxBodyPerChunk int) [][]byte {
	if maxBodyPerChunk <= 0 {
		maxBodyPerChunk = len(body)
		if maxBodyPerChunk == 0 {
			maxBodyPerChunk = 1
		}
	}
	numChunks := (len(body) + maxBodyPerChunk - 1) / maxBodyPerChunk
	if numChunks == 0 {
		numChunks = 1
	}

	out := make([][]byte, 0, numChunks)
	for i := 0; i < numChunks; i++ {
		start := i * maxBodyPerChunk
		end := start + maxBodyPerChunk
		if end > len(body) {
			end = len(body)
		}
		chunkHeader := []byte(nil)
		if i == 0 {
			chunkHeader = header
		}
		chunk := PropertyChunk{
			Address:    address,
			Source:     src,
			Dest:       dst,
			SubID2:     subID2,
			RequestID:  requestID,
			Header:     chunkHeader,
			NumChunks:  uint16(numChunks),
			ChunkIndex: uint16(i + 1),
			Body:       body[start:end],
		}
		out = append(out, chunk.build(version))
	}
	return out
}
