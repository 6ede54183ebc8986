package types

import (
	"encoding/json"
	"fmt"
)

// ProtocolVersion selects the covenant's hash-fold behavior and the
// unlocking-bytecode ABI a shard input must satisfy.
type ProtocolVersion uint8

// Known protocol versions. VersionV11 is the current default.
const (
	VersionV0 ProtocolVersion = iota
	VersionV1
	VersionV11
)

// String returns the protocol tag ("v0", "v1", "v1.1").
func (v ProtocolVersion) String() string {
	switch v {
	case VersionV0:
		return "v0"
	case VersionV1:
		return "v1"
	case VersionV11:
		return "v1.1"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(v))
	}
}

// ParseProtocolVersion converts a protocol tag to a ProtocolVersion.
func ParseProtocolVersion(s string) (ProtocolVersion, error) {
	switch s {
	case "v0":
		return VersionV0, nil
	case "v1":
		return VersionV1, nil
	case "v1.1":
		return VersionV11, nil
	default:
		return 0, fmt.Errorf("unknown protocol version %q", s)
	}
}

// MarshalJSON encodes the version as its protocol tag.
func (v ProtocolVersion) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.String())
}

// UnmarshalJSON decodes a protocol tag.
func (v *ProtocolVersion) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseProtocolVersion(s)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
