// Package ciconst holds the wire constants shared by every other package:
// sub-ID2 values, the universal SysEx framing bytes, and the reserved MUID.
package ciconst

const (
	// UniversalNonRealTime is the first framing byte after F0.
	UniversalNonRealTime byte = 0x7E
	// CISubID1 is the second framing byte, identifying MIDI-CI as the
	// universal sub-ID 1.
	CISubID1 byte = 0x0D

	SysExStart byte = 0xF0
	SysExEnd   byte = 0xF7
)

// BroadcastMUID is the reserved 28-bit MUID meaning "every device".
const BroadcastMUID uint32 = 0x0FFFFFFF

// FunctionBlockAddress (0x7F) addresses the whole device rather than a
// single channel or group.
const FunctionBlockAddress byte = 0x7F

// Sub-ID2 values, grouped by message family.
const (
	SubIDDiscoveryInquiry byte = 0x70
	SubIDDiscoveryReply   byte = 0x71
	SubIDEndpointInquiry  byte = 0x72
	SubIDEndpointReply    byte = 0x73
	SubIDACK              byte = 0x7D
	SubIDInvalidateMUID   byte = 0x7E
	SubIDNAK              byte = 0x7F

	SubIDProfileInquiry        byte = 0x20
	SubIDProfileReply          byte = 0x21
	SubIDProfileSetOn          byte = 0x22
	SubIDProfileSetOff         byte = 0x23
	SubIDProfileEnabledReport  byte = 0x24
	SubIDProfileDisabledReport byte = 0x25
	SubIDProfileAdded          byte = 0x26
	SubIDProfileRemoved        byte = 0x27
	SubIDProfileDetailsInquiry byte = 0x28
	SubIDProfileDetailsReply   byte = 0x29
	SubIDProfileSpecificData   byte = 0x2F

	SubIDPropertyGetCapabilities byte = 0x30
	SubIDPropertyCapabilitiesReply byte = 0x31
	SubIDPropertyGetDataInquiry    byte = 0x34
	SubIDPropertyGetDataReply      byte = 0x35
	SubIDPropertySetDataInquiry    byte = 0x36
	SubIDPropertySetDataReply      byte = 0x37
	SubIDPropertySubscribeInquiry  byte = 0x38
	SubIDPropertySubscribeReply    byte = 0x39
	SubIDPropertyNotify            byte = 0x3F

	SubIDProcessInquiryCapabilities byte = 0x40
	SubIDProcessInquiryReply        byte = 0x41
	SubIDMIDIMessageReport          byte = 0x42
	SubIDMIDIMessageReportReply     byte = 0x43
	SubIDEndOfReport                byte = 0x44
)

// NAK status/diagnostic strings, and Common Rules status codes.
const (
	StatusOK                       = 200
	StatusBadRequest                = 400
	StatusResourceUnavailableOrError = 404
	StatusInternalError             = 500
)

// MalformedMessage is the diagnostic text attached to a NAK produced for
// an unparsable or structurally invalid Common Rules header.
const MalformedMessage = "malformed message"

// ReadOnlyMessage is the diagnostic attached to a SET rejected because the
// target resource is a built-in, read-only property.
const ReadOnlyMessage = "Resource is readonly"

// Built-in property IDs, always present in the host catalog.
const (
	PropertyDeviceInfo  = "DeviceInfo"
	PropertyChannelList = "ChannelList"
	PropertyJSONSchema  = "JSONSchema"
	PropertyResourceList = "ResourceList"
)

// ChannelAddressMax is the highest address value still considered a
// per-channel address for profile channel-count defaulting purposes.
const ChannelAddressMax byte = 0x0F

// GroupOrBlockAddressMin is the lowest address value considered a
// group/function-block address (channel count forced to 0 for reports).
const GroupOrBlockAddressMin byte = 0x7E

// Originator distinguishes built-in (System) from user-added (User)
// property metadata in the ResourceList catalog.
type Originator int

const (
	OriginatorSystem Originator = iota
	OriginatorUser
)

func (o Originator) String() string {
	if o == OriginatorSystem {
		return "System"
	}
	return "User"
}
