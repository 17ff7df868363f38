package message

import (
	"fmt"

	"midici/internal/ciconst"
	"midici/internal/codec"
)

// DeviceDetails is the manufacturer/family/model/revision tuple carried
// by Discovery Inquiry and Reply.
type DeviceDetails struct {
	ManufacturerID   uint32 // 21-bit
	FamilyID         uint16 // 14-bit
	ModelID          uint16 // 14-bit
	SoftwareRevision uint32 // 28-bit
}

// DiscoveryInquiry is sent (usually to the broadcast MUID) to announce a
// local device and learn its peers.
type DiscoveryInquiry struct {
	Address              byte
	Source               uint32
	Details              DeviceDetails
	CICategorySupported  byte
	ReceivableMaxSysEx    uint32 // 28-bit
	OutputPathID         byte   // supplemental, original_source-only field
}

func (m DiscoveryInquiry) String() string {
	return fmt.Sprintf("DiscoveryInquiry{src=%08X mfr=%05X fam=%04X model=%04X}",
		m.Source, m.Details.ManufacturerID, m.Details.FamilyID, m.Details.ModelID)
}

func (m DiscoveryInquiry) Build(version byte) []byte {
	payload := deviceDetailsPayload(m.Details)
	payload = append(payload, m.CICategorySupported)
	maxSysEx := codec.PutUint7x4(m.ReceivableMaxSysEx)
	payload = append(payload, maxSysEx[:]...)
	payload = append(payload, m.OutputPathID)
	return BuildFrame(m.Address, ciconst.SubIDDiscoveryInquiry, version, m.Source, ciconst.BroadcastMUID, payload)
}

// ParseDiscoveryInquiry extracts fields from a payload already split by
// ParseFrame for sub_id2 == SubIDDiscoveryInquiry.
func ParseDiscoveryInquiry(h Header, payload []byte) (DiscoveryInquiry, error) {
	details, rest, err := parseDeviceDetails(payload)
	if err != nil {
		return DiscoveryInquiry{}, err
	}
	if len(rest) < 1+4 {
		return DiscoveryInquiry{}, ErrTruncated
	}
	cat := rest[0]
	maxSysEx, err := codec.Uint7x4(rest[1:5])
	if err != nil {
		return DiscoveryInquiry{}, err
	}
	var outputPath byte
	if len(rest) > 5 {
		outputPath = rest[5]
	}
	return DiscoveryInquiry{
		Address:             h.Address,
		Source:              h.Source,
		Details:             details,
		CICategorySupported: cat,
		ReceivableMaxSysEx:  maxSysEx,
		OutputPathID:        outputPath,
	}, nil
}

// DiscoveryReply answers a DiscoveryInquiry, carrying the replying
// device's own details back to the inquirer.
type DiscoveryReply struct {
	Address              byte
	Source               uint32
	Dest                 uint32
	Details              DeviceDetails
	CICategorySupported  byte
	ReceivableMaxSysEx    uint32
	OutputPathID         byte
	FunctionBlock        byte // supplemental, original_source-only field
}

func (m DiscoveryReply) String() string {
	return fmt.Sprintf("DiscoveryReply{src=%08X dst=%08X}", m.Source, m.Dest)
}

func (m DiscoveryReply) Build(version byte) []byte {
	payload := deviceDetailsPayload(m.Details)
	payload = append(payload, m.CICategorySupported)
	maxSysEx := codec.PutUint7x4(m.ReceivableMaxSysEx)
	payload = append(payload, maxSysEx[:]...)
	payload = append(payload, m.OutputPathID, m.FunctionBlock)
	return BuildFrame(m.Address, ciconst.SubIDDiscoveryReply, version, m.Source, m.Dest, payload)
}

func ParseDiscoveryReply(h Header, payload []byte) (DiscoveryReply, error) {
	details, rest, err := parseDeviceDetails(payload)
	if err != nil {
		return DiscoveryReply{}, err
	}
	if len(rest) < 1+4 {
		return DiscoveryReply{}, ErrTruncated
	}
	cat := rest[0]
	maxSysEx, err := codec.Uint7x4(rest[1:5])
	if err != nil {
		return DiscoveryReply{}, err
	}
	var outputPath, fb byte
	if len(rest) > 5 {
		outputPath = rest[5]
	}
	if len(rest) > 6 {
		fb = rest[6]
	}
	return DiscoveryReply{
		Address:             h.Address,
		Source:              h.Source,
		Dest:                h.Dest,
		Details:             details,
		CICategorySupported: cat,
		ReceivableMaxSysEx:  maxSysEx,
		OutputPathID:        outputPath,
		FunctionBlock:       fb,
	}, nil
}

func deviceDetailsPayload(d DeviceDetails) []byte {
	mfr := codec.PutUint7x3(d.ManufacturerID)
	fam := codec.PutUint7x2(d.FamilyID)
	model := codec.PutUint7x2(d.ModelID)
	rev := codec.PutUint7x4(d.SoftwareRevision)
	out := make([]byte, 0, 3+2+2+4)
	out = append(out, mfr[:]...)
	out = append(out, fam[:]...)
	out = append(out, model[:]...)
	out = append(out, rev[:]...)
	return out
}

func parseDeviceDetails(b []byte) (DeviceDetails, []byte, error) {
	if len(b) < 3+2+2+4 {
		return DeviceDetails{}, nil, ErrTruncated
	}
	mfr, err := codec.Uint7x3(b[0:3])
	if err != nil {
		return DeviceDetails{}, nil, err
	}
	fam, err := codec.Uint7x2(b[3:5])
	if err != nil {
		return DeviceDetails{}, nil, err
	}
	model, err := codec.Uint7x2(b[5:7])
	if err != nil {
		return DeviceDetails{}, nil, err
	}
	rev, err := codec.Uint7x4(b[7:11])
	if err != nil {
		return DeviceDetails{}, nil, err
	}
	return DeviceDetails{
		ManufacturerID:   mfr,
		FamilyID:         fam,
		ModelID:          model,
		SoftwareRevision: rev,
	}, b[11:], nil
}

// EndpointInquiry asks the peer for one piece of endpoint information,
// identified by StatusField (0 == product instance ID).
type EndpointInquiry struct {
	Address     byte
	Source      uint32
	Dest        uint32
	StatusField byte
}

func (m EndpointInquiry) String() string { return fmt.Sprintf("EndpointInquiry{dst=%08X}", m.Dest) }

func (m EndpointInquiry) Build(version byte) []byte {
	return BuildFrame(m.Address, ciconst.SubIDEndpointInquiry, version, m.Source, m.Dest, []byte{m.StatusField})
}

func ParseEndpointInquiry(h Header, payload []byte) (EndpointInquiry, error) {
	if len(payload) < 1 {
		return EndpointInquiry{}, ErrTruncated
	}
	return EndpointInquiry{Address: h.Address, Source: h.Source, Dest: h.Dest, StatusField: payload[0]}, nil
}

// EndpointReply answers an EndpointInquiry with status 0 and a data
// payload (the product instance ID string, as raw bytes, when requested).
type EndpointReply struct {
	Address     byte
	Source      uint32
	Dest        uint32
	StatusField byte
	Data        []byte
}

func (m EndpointReply) String() string {
	return fmt.Sprintf("EndpointReply{dst=%08X len=%d}", m.Dest, len(m.Data))
}

func (m EndpointReply) Build(version byte) []byte {
	length := codec.PutUint7x2(uint16(len(m.Data)))
	payload := make([]byte, 0, 3+len(m.Data))
	payload = append(payload, m.StatusField)
	payload = append(payload, length[:]...)
	payload = append(payload, m.Data...)
	return BuildFrame(m.Address, ciconst.SubIDEndpointReply, version, m.Source, m.Dest, payload)
}

func ParseEndpointReply(h Header, payload []byte) (EndpointReply, error) {
	if len(payload) < 3 {
		return EndpointReply{}, ErrTruncated
	}
	n, err := codec.Uint7x2(payload[1:3])
	if err != nil {
		return EndpointReply{}, err
	}
	if len(payload) < 3+int(n) {
		return EndpointReply{}, ErrTruncated
	}
	return EndpointReply{
		Address:     h.Address,
		Source:      h.Source,
		Dest:        h.Dest,
		StatusField: payload[0],
		Data:        payload[3 : 3+int(n)],
	}, nil
}

// InvalidateMUID tells every peer to forget TargetMUID.
type InvalidateMUID struct {
	Address    byte
	Source     uint32
	TargetMUID uint32
}

func (m InvalidateMUID) String() string { return fmt.Sprintf("InvalidateMUID{target=%08X}", m.TargetMUID) }

func (m InvalidateMUID) Build(version byte) []byte {
	target := codec.PutUint7x4(m.TargetMUID)
	return BuildFrame(m.Address, ciconst.SubIDInvalidateMUID, version, m.Source, ciconst.BroadcastMUID, target[:])
}

func ParseInvalidateMUID(h Header, payload []byte) (InvalidateMUID, error) {
	if len(payload) < 4 {
		return InvalidateMUID{}, ErrTruncated
	}
	target, err := codec.Uint7x4(payload[0:4])
	if err != nil {
		return InvalidateMUID{}, err
	}
	return InvalidateMUID{Address: h.Address, Source: h.Source, TargetMUID: target}, nil
}

// ACK and NAK carry the sub-id2 of the message they respond to, a status
// byte, and an optional human-readable message.
type ackOrNak struct {
	Address        byte
	Source         uint32
	Dest           uint32
	OriginalSubID2 byte
	Status         byte
	Message        string
}

type ACK ackOrNak
type NAK ackOrNak

func (m ACK) String() string { return fmt.Sprintf("ACK{orig=%02X status=%d}", m.OriginalSubID2, m.Status) }
func (m NAK) String() string {
	return fmt.Sprintf("NAK{orig=%02X status=%d msg=%q}", m.OriginalSubID2, m.Status, m.Message)
}

func (m ACK) Build(version byte) []byte {
	return buildAckNak(ciconst.SubIDACK, ackOrNak(m), version)
}

func (m NAK) Build(version byte) []byte {
	return buildAckNak(ciconst.SubIDNAK, ackOrNak(m), version)
}

func buildAckNak(subID2 byte, m ackOrNak, version byte) []byte {
	msgBytes := []byte(codec.EscapeASCII(m.Message))
	length := codec.PutUint7x2(uint16(len(msgBytes)))
	payload := make([]byte, 0, 2+2+len(msgBytes))
	payload = append(payload, m.OriginalSubID2, m.Status)
	payload = append(payload, length[:]...)
	payload = append(payload, msgBytes...)
	return BuildFrame(m.Address, subID2, version, m.Source, m.Dest, payload)
}

func ParseACK(h Header, payload []byte) (ACK, error) {
	a, err := parseAckNak(h, payload)
	return ACK(a), err
}

func ParseNAK(h Header, payload []byte) (NAK, error) {
	a, err := parseAckNak(h, payload)
	return NAK(a), err
}

func parseAckNak(h Header, payload []byte) (ackOrNak, error) {
	if len(payload) < 4 {
		return ackOrNak{}, ErrTruncated
	}
	n, err := codec.Uint7x2(payload[2:4])
	if err != nil {
		return ackOrNak{}, err
	}
	if len(payload) < 4+int(n) {
		return ackOrNak{}, ErrTruncated
	}
	return ackOrNak{
		Address:        h.Address,
		Source:         h.Source,
		Dest:           h.Dest,
		OriginalSubID2: payload[0],
		Status:         payload[1],
		Message:        codec.UnescapeASCII(string(payload[4 : 4+int(n)])),
	}, nil
}
