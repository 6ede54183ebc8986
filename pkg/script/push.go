package script

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrNonPushOpcode is returned in strict mode when a script contains an
// opcode that is not a data push.
var ErrNonPushOpcode = errors.New("non-push opcode in push-only script")

// ParsePushes decodes a script into its ordered list of pushed elements.
// Direct pushes (0x01-0x4b), OP_0 (the empty push) and OP_PUSHDATA1/2/4
// are supported. In strict mode any other opcode is a hard failure; in
// non-strict mode parsing stops at the first non-push opcode and returns
// the pushes seen so far.
func ParsePushes(scriptBytes []byte, strict bool) ([][]byte, error) {
	var pushes [][]byte
	i := 0
	for i < len(scriptBytes) {
		op := scriptBytes[i]
		i++

		var n int
		switch {
		case op == OP_0:
			pushes = append(pushes, []byte{})
			continue
		case op >= 0x01 && op <= maxDirectPush:
			n = int(op)
		case op == OP_PUSHDATA1:
			if i+1 > len(scriptBytes) {
				return nil, fmt.Errorf("truncated PUSHDATA1 length at offset %d", i-1)
			}
			n = int(scriptBytes[i])
			i++
		case op == OP_PUSHDATA2:
			if i+2 > len(scriptBytes) {
				return nil, fmt.Errorf("truncated PUSHDATA2 length at offset %d", i-1)
			}
			n = int(binary.LittleEndian.Uint16(scriptBytes[i : i+2]))
			i += 2
		case op == OP_PUSHDATA4:
			if i+4 > len(scriptBytes) {
				return nil, fmt.Errorf("truncated PUSHDATA4 length at offset %d", i-1)
			}
			n = int(binary.LittleEndian.Uint32(scriptBytes[i : i+4]))
			i += 4
		default:
			if strict {
				return nil, fmt.Errorf("%w: 0x%02x at offset %d", ErrNonPushOpcode, op, i-1)
			}
			return pushes, nil
		}

		if i+n > len(scriptBytes) {
			return nil, fmt.Errorf("push of %d bytes overruns script at offset %d", n, i-1)
		}
		data := make([]byte, n)
		copy(data, scriptBytes[i:i+n])
		pushes = append(pushes, data)
		i += n
	}
	return pushes, nil
}

// BuildPushes encodes an ordered list of elements as a push-only script,
// choosing the minimal push encoding for each element. An empty element
// encodes as OP_0. BuildPushes(ParsePushes(s)) == s holds for every
// minimally-encoded push-only script s.
func BuildPushes(elements [][]byte) []byte {
	var out []byte
	for _, e := range elements {
		out = AppendPush(out, e)
	}
	return out
}

// AppendPush appends the minimal push encoding of data to the script.
func AppendPush(scriptBytes, data []byte) []byte {
	n := len(data)
	switch {
	case n == 0:
		return append(scriptBytes, OP_0)
	case n <= maxDirectPush:
		scriptBytes = append(scriptBytes, byte(n))
	case n <= 0xff:
		scriptBytes = append(scriptBytes, OP_PUSHDATA1, byte(n))
	case n <= 0xffff:
		scriptBytes = append(scriptBytes, OP_PUSHDATA2)
		scriptBytes = binary.LittleEndian.AppendUint16(scriptBytes, uint16(n))
	default:
		scriptBytes = append(scriptBytes, OP_PUSHDATA4)
		scriptBytes = binary.LittleEndian.AppendUint32(scriptBytes, uint32(n))
	}
	return append(scriptBytes, data...)
}

// EncodeNum returns the minimal script-number encoding of v: little-endian
// magnitude with the sign carried in the top bit of the final byte, and
// no redundant trailing bytes. Zero encodes as the empty byte string.
func EncodeNum(v int64) []byte {
	if v == 0 {
		return []byte{}
	}

	neg := v < 0
	mag := uint64(v)
	if neg {
		mag = uint64(-v)
	}

	var out []byte
	for mag > 0 {
		out = append(out, byte(mag&0xff))
		mag >>= 8
	}

	// If the most significant byte already has the high bit set, a padding
	// byte carries the sign; otherwise the sign bit goes into it directly.
	if out[len(out)-1]&0x80 != 0 {
		if neg {
			out = append(out, 0x80)
		} else {
			out = append(out, 0x00)
		}
	} else if neg {
		out[len(out)-1] |= 0x80
	}
	return out
}
