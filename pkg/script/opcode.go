// Package script implements the byte-exact script codecs of the
// stealth-pool covenant: push-only parsing and building, the CashToken
// output prefix, standard locking templates, and the version-specific
// unlocking-bytecode ABI.
package script

// Script opcodes used by the codec and the locking templates.
const (
	OP_0           = 0x00
	OP_PUSHDATA1   = 0x4c
	OP_PUSHDATA2   = 0x4d
	OP_PUSHDATA4   = 0x4e
	OP_DUP         = 0x76
	OP_EQUAL       = 0x87
	OP_EQUALVERIFY = 0x88
	OP_HASH160     = 0xa9
	OP_CHECKSIG    = 0xac
)

// maxDirectPush is the largest length encodable as a direct push opcode.
const maxDirectPush = 0x4b

// TokenPrefixByte marks the start of a CashToken prefix in an output's
// serialized script encapsulation.
const TokenPrefixByte = 0xef
