package property

import (
	"midici/internal/codec"
)

// EncodingASCII, EncodingMcoded7, EncodingZlibMcoded7 are the legal
// values of the mutualEncoding header field (spec.md §4.9).
const (
	EncodingASCII       = "ASCII"
	EncodingMcoded7     = "Mcoded7"
	EncodingZlibMcoded7 = "zlib+Mcoded7"
)

// Subscribe command values.
const (
	CommandStart   = "start"
	CommandFull    = "full"
	CommandPartial = "partial"
	CommandNotify  = "notify"
	CommandEnd     = "end"
)

// RequestHeader is the decoded form of a GetPropertyData/SetPropertyData
// /SubscribeProperty request header.
type RequestHeader struct {
	Resource       string
	ResID          string
	MutualEncoding string
	MediaType      string
	Offset         *int
	Limit          *int
	SetPartial     bool
	Command        string
	SubscribeID    string
}

// ReplyHeader is the decoded form of the corresponding reply header.
type ReplyHeader struct {
	Status         int
	Message        string
	MutualEncoding string
	MediaType      string
	SubscribeID    string
	Command        string
	CacheTime      string
	TotalCount     *int
}

// EncodingOrDefault returns enc, defaulting to ASCII when empty.
func EncodingOrDefault(enc string) string {
	if enc == "" {
		return EncodingASCII
	}
	return enc
}

// EncodeRequestHeader serializes h to the canonical JSON header bytes.
func EncodeRequestHeader(h RequestHeader) []byte {
	v := codec.Object()
	if h.Resource != "" {
		v.Set("resource", codec.String(h.Resource))
	}
	if h.ResID != "" {
		v.Set("resId", codec.String(h.ResID))
	}
	if h.MutualEncoding != "" && h.MutualEncoding != EncodingASCII {
		v.Set("mutualEncoding", codec.String(h.MutualEncoding))
	}
	if h.MediaType != "" {
		v.Set("mediaType", codec.String(h.MediaType))
	}
	if h.Offset != nil {
		v.Set("offset", codec.MustNumber(*h.Offset))
	}
	if h.Limit != nil {
		v.Set("limit", codec.MustNumber(*h.Limit))
	}
	if h.SetPartial {
		v.Set("setPartial", codec.Bool(true))
	}
	if h.Command != "" {
		v.Set("command", codec.String(h.Command))
	}
	if h.SubscribeID != "" {
		v.Set("subscribeId", codec.String(h.SubscribeID))
	}
	return []byte(codec.Serialize(v))
}

// DecodeRequestHeader parses header bytes into a RequestHeader. Malformed
// JSON is surfaced as codec.ErrInvalidJSON so the caller can reply NAK.
func DecodeRequestHeader(b []byte) (RequestHeader, error) {
	v, err := codec.Parse(string(b))
	if err != nil {
		return RequestHeader{}, err
	}
	h := RequestHeader{}
	if r, ok := v.Get("resource"); ok {
		h.Resource = r.Str
	}
	if r, ok := v.Get("resId"); ok {
		h.ResID = r.Str
	}
	if r, ok := v.Get("mutualEncoding"); ok {
		h.MutualEncoding = r.Str
	}
	if r, ok := v.Get("mediaType"); ok {
		h.MediaType = r.Str
	}
	if r, ok := v.Get("offset"); ok {
		n := int(r.Num)
		h.Offset = &n
	}
	if r, ok := v.Get("limit"); ok {
		n := int(r.Num)
		h.Limit = &n
	}
	if r, ok := v.Get("setPartial"); ok {
		h.SetPartial = r.Bool
	}
	if r, ok := v.Get("command"); ok {
		h.Command = r.Str
	}
	if r, ok := v.Get("subscribeId"); ok {
		h.SubscribeID = r.Str
	}
	return h, nil
}

// EncodeReplyHeader serializes h to the canonical JSON header bytes.
func EncodeReplyHeader(h ReplyHeader) []byte {
	v := codec.Object()
	v.Set("status", codec.MustNumber(h.Status))
	if h.Message != "" {
		v.Set("message", codec.String(h.Message))
	}
	if h.MutualEncoding != "" && h.MutualEncoding != EncodingASCII {
		v.Set("mutualEncoding", codec.String(h.MutualEncoding))
	}
	if h.MediaType != "" {
		v.Set("mediaType", codec.String(h.MediaType))
	}
	if h.SubscribeID != "" {
		v.Set("subscribeId", codec.String(h.SubscribeID))
	}
	if h.Command != "" {
		v.Set("command", codec.String(h.Command))
	}
	if h.CacheTime != "" {
		v.Set("cacheTime", codec.String(h.CacheTime))
	}
	if h.TotalCount != nil {
		v.Set("totalCount", codec.MustNumber(*h.TotalCount))
	}
	return []byte(codec.Serialize(v))
}

// DecodeReplyHeader parses header bytes into a ReplyHeader.
func DecodeReplyHeader(b []byte) (ReplyHeader, error) {
	v, err := codec.Parse(string(b))
	if err != nil {
		return ReplyHeader{}, err
	}
	h := ReplyHeader{}
	if r, ok := v.Get("status"); ok {
		h.Status = int(r.Num)
	}
	if r, ok := v.Get("message"); ok {
		h.Message = r.Str
	}
	if r, ok := v.Get("mutualEncoding"); ok {
		h.MutualEncoding = r.Str
	}
	if r, ok := v.Get("mediaType"); ok {
		h.MediaType = r.Str
	}
	if r, ok := v.Get("subscribeId"); ok {
		h.SubscribeID = r.Str
	}
	if r, ok := v.Get("command"); ok {
		h.Command = r.Str
	}
	if r, ok := v.Get("cacheTime"); ok {
		h.CacheTime = r.Str
	}
	if r, ok := v.Get("totalCount"); ok {
		n := int(r.Num)
		h.TotalCount = &n
	}
	return h, nil
}

// EncodeBody applies the requested mutualEncoding to raw body bytes.
func EncodeBody(body []byte, encoding string) ([]byte, error) {
	switch EncodingOrDefault(encoding) {
	case EncodingMcoded7:
		return codec.EncodeMcoded7(body), nil
	case EncodingZlibMcoded7:
		return codec.EncodeZlibMcoded7(body)
	default:
		return body, nil
	}
}

// DecodeBody reverses EncodeBody.
func DecodeBody(body []byte, encoding string) ([]byte, error) {
	switch EncodingOrDefault(encoding) {
	case EncodingMcoded7:
		return codec.DecodeMcoded7(body)
	case EncodingZlibMcoded7:
		return codec.DecodeZlibMcoded7(body)
	default:
		return body, nil
	}
}

// PaginateArray slices a JSON array value per offset/limit, returning the
// sliced value and the original length for totalCount. Non-array bodies
// are passed through unmodified (Open Question decision, see DESIGN.md).
func PaginateArray(v codec.Value, offset, limit *int) (codec.Value, *int) {
	if v.Kind != codec.KindArray {
		return v, nil
	}
	total := len(v.Arr)
	start := 0
	if offset != nil && *offset > 0 {
		start = *offset
	}
	if start > total {
		start = total
	}
	end := total
	if limit != nil && *limit >= 0 && start+*limit < end {
		end = start + *limit
	}
	sliced := codec.Array(v.Arr[start:end]...)
	return sliced, &total
}
