package script

import (
	"bytes"
	"errors"
	"testing"
)

func TestPushRoundtrip(t *testing.T) {
	tests := []struct {
		name     string
		elements [][]byte
	}{
		{
			name:     "empty element",
			elements: [][]byte{{}},
		},
		{
			name:     "single small",
			elements: [][]byte{{0x01, 0x02, 0x03}},
		},
		{
			name:     "direct push boundary",
			elements: [][]byte{bytes.Repeat([]byte{0xaa}, maxDirectPush)},
		},
		{
			name:     "pushdata1",
			elements: [][]byte{bytes.Repeat([]byte{0xbb}, maxDirectPush+1)},
		},
		{
			name:     "pushdata2",
			elements: [][]byte{bytes.Repeat([]byte{0xcc}, 300)},
		},
		{
			name: "mixed",
			elements: [][]byte{
				{},
				{0x51},
				bytes.Repeat([]byte{0x11}, 32),
				bytes.Repeat([]byte{0x22}, 80),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded := BuildPushes(tt.elements)
			decoded, err := ParsePushes(encoded, true)
			if err != nil {
				t.Fatalf("ParsePushes() error: %v", err)
			}
			if len(decoded) != len(tt.elements) {
				t.Fatalf("got %d pushes, want %d", len(decoded), len(tt.elements))
			}
			for i := range decoded {
				if !bytes.Equal(decoded[i], tt.elements[i]) {
					t.Errorf("push %d = %x, want %x", i, decoded[i], tt.elements[i])
				}
			}
			// Re-encoding must reproduce the input byte for byte.
			if !bytes.Equal(BuildPushes(decoded), encoded) {
				t.Error("re-encoding should be byte identical")
			}
		})
	}
}

func TestParsePushesStrict(t *testing.T) {
	// OP_DUP after a push.
	s := append(BuildPushes([][]byte{{0x01}}), OP_DUP)

	if _, err := ParsePushes(s, true); !errors.Is(err, ErrNonPushOpcode) {
		t.Errorf("strict parse error = %v, want ErrNonPushOpcode", err)
	}

	pushes, err := ParsePushes(s, false)
	if err != nil {
		t.Fatalf("non-strict parse error: %v", err)
	}
	if len(pushes) != 1 {
		t.Errorf("non-strict parse should stop with 1 push, got %d", len(pushes))
	}
}

func TestParsePushesTruncated(t *testing.T) {
	tests := []struct {
		name   string
		script []byte
	}{
		{name: "overrunning direct push", script: []byte{0x05, 0x01}},
		{name: "pushdata1 missing length", script: []byte{OP_PUSHDATA1}},
		{name: "pushdata2 missing length", script: []byte{OP_PUSHDATA2, 0x01}},
		{name: "pushdata1 overrun", script: []byte{OP_PUSHDATA1, 0x10, 0x00}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParsePushes(tt.script, true); err == nil {
				t.Error("expected parse error")
			}
		})
	}
}

func TestEncodeNum(t *testing.T) {
	tests := []struct {
		v    int64
		want []byte
	}{
		{v: 0, want: []byte{}},
		{v: 1, want: []byte{0x01}},
		{v: -1, want: []byte{0x81}},
		{v: 127, want: []byte{0x7f}},
		{v: 128, want: []byte{0x80, 0x00}},
		{v: -128, want: []byte{0x80, 0x80}},
		{v: 255, want: []byte{0xff, 0x00}},
		{v: 256, want: []byte{0x00, 0x01}},
		{v: 520, want: []byte{0x08, 0x02}},
		{v: -255, want: []byte{0xff, 0x80}},
	}

	for _, tt := range tests {
		got := EncodeNum(tt.v)
		if !bytes.Equal(got, tt.want) {
			t.Errorf("EncodeNum(%d) = %x, want %x", tt.v, got, tt.want)
		}
	}
}
