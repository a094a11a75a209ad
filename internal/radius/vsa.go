package radius

import (
	"encoding/binary"
	"fmt"

	"layeh.com/radius"
)

// Vendor IDs for the vendor-specific attributes this server understands
const (
	VendorMicrosoft uint32 = 311
	VendorMikrotik  uint32 = 14988
)

// Microsoft vendor attribute types (RFC 2548)
const (
	MSCHAPResponse  byte = 1
	MSCHAPError     byte = 2
	MSCHAPChallenge byte = 11
	MSCHAP2Response byte = 25
	MSCHAP2Success  byte = 26
)

// MikroTik vendor attribute types
const (
	MikrotikGroup     byte = 3
	MikrotikRateLimit byte = 8
)

const vendorSpecificType radius.Type = 26

// attributeNames maps the standard attribute codes this server handles to
// their dictionary names, for logs and diagnostics.
var attributeNames = map[radius.Type]string{
	1:  "User-Name",
	2:  "User-Password",
	3:  "CHAP-Password",
	4:  "NAS-IP-Address",
	5:  "NAS-Port",
	6:  "Service-Type",
	7:  "Framed-Protocol",
	8:  "Framed-IP-Address",
	11: "Filter-Id",
	26: "Vendor-Specific",
	27: "Session-Timeout",
	28: "Idle-Timeout",
	30: "Called-Station-Id",
	31: "Calling-Station-Id",
	32: "NAS-Identifier",
	40: "Acct-Status-Type",
	42: "Acct-Input-Octets",
	43: "Acct-Output-Octets",
	44: "Acct-Session-Id",
	46: "Acct-Session-Time",
	49: "Acct-Terminate-Cause",
	52: "Acct-Input-Gigawords",
	53: "Acct-Output-Gigawords",
	60: "CHAP-Challenge",
}

var vendorNames = map[uint32]string{
	VendorMicrosoft: "Microsoft",
	VendorMikrotik:  "Mikrotik",
}

// AttributeName returns the dictionary name for an attribute code, or the
// numeric code for attributes outside the dictionary.
func AttributeName(t radius.Type) string {
	if name, ok := attributeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Attr-%d", t)
}

// VendorName returns the dictionary name for a vendor ID
func VendorName(id uint32) string {
	if name, ok := vendorNames[id]; ok {
		return name
	}
	return fmt.Sprintf("Vendor-%d", id)
}

// GetVSA extracts the first vendor-specific attribute matching
// (vendorID, vsaType) from a packet. Bad framing and zero-length values
// are skipped, not treated as errors: a NAS that emits a mangled VSA
// should not have its whole packet dropped at this stage.
func GetVSA(p *radius.Packet, vendorID uint32, vsaType byte) []byte {
	for _, attr := range p.Attributes {
		if attr.Type != vendorSpecificType {
			continue
		}
		raw := attr.Attribute
		if len(raw) < 6 {
			continue
		}
		if binary.BigEndian.Uint32(raw[0:4]) != vendorID {
			continue
		}

		// One Vendor-Specific attribute may carry several sub-attributes
		data := raw[4:]
		for len(data) >= 2 {
			subType := data[0]
			subLen := int(data[1])
			if subLen < 2 || subLen > len(data) {
				break // bad framing, give up on this attribute
			}
			value := data[2:subLen]
			if subType == vsaType && len(value) > 0 {
				return value
			}
			data = data[subLen:]
		}
	}
	return nil
}

// NewVSA builds a vendor-specific attribute payload:
// vendor_id(4) || type(1) || length(1) || value
func NewVSA(vendorID uint32, vsaType byte, value []byte) radius.Attribute {
	if len(value) > 247 { // 253 attribute limit minus VSA framing
		value = value[:247]
	}
	vsa := make([]byte, 6+len(value))
	binary.BigEndian.PutUint32(vsa[0:4], vendorID)
	vsa[4] = vsaType
	vsa[5] = byte(len(value) + 2)
	copy(vsa[6:], value)
	return vsa
}

// AddVSA appends a vendor-specific attribute to a packet
func AddVSA(p *radius.Packet, vendorID uint32, vsaType byte, value []byte) {
	p.Add(vendorSpecificType, NewVSA(vendorID, vsaType, value))
}
