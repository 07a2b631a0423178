// Package sigverify is the trust kernel for meta-transaction authorization.
// Every registry that accepts a signature instead of a direct caller routes
// the proof through this package.
package sigverify

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/sha3"

	id "portrait/pkg/domain"
)

// SigData is the ephemeral authorization payload. It is never stored: it is
// rendered to the canonical message, hashed, verified once, and discarded.
//
// Params folds every action-specific argument (including current-state
// snapshot values) into one digest, so the message shape stays constant
// across call sites while each signature stays bound to exactly one state
// transition. Action, Target, TargetType, and Version prevent a signature
// produced for one operation, registry, or protocol version from validating
// against another.
type SigData struct {
	Action         string
	Target         string
	TargetType     string
	Version        uint64
	Params         id.Hash
	ExpirationTime uint64
}

// messageIntro is the fixed opening sentence of every authorization message.
// Clients reproduce the full message bit-exactly before signing, so this
// string is part of the wire contract and must never change within a version.
const messageIntro = "Portrait wants you to authorize the following action with your account."

// Message renders the canonical human-readable authorization message.
// Integers are decimal ASCII with no leading zeros; the params digest is
// 0x-prefixed lowercase hex of fixed 32-byte width.
func (d SigData) Message() string {
	return fmt.Sprintf(
		"%s\n\nAction: %s\nTarget: %s\nTarget Type: %s\nVersion: %d\nData: %s\nExpiration Time: %d",
		messageIntro,
		d.Action,
		d.Target,
		d.TargetType,
		d.Version,
		d.Params.String(),
		d.ExpirationTime,
	)
}

// Digest returns the signed-message digest of the canonical message: the
// standard personal-message prefix with the decimal message length, then
// keccak256 over the whole string.
func (d SigData) Digest() id.Hash {
	msg := d.Message()
	prefixed := fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(msg), msg)
	return Keccak256([]byte(prefixed))
}

// Keccak256 hashes data with the legacy Keccak-256 permutation used by
// account addresses and signed messages.
func Keccak256(data []byte) id.Hash {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	var out id.Hash
	copy(out[:], h.Sum(nil))
	return out
}

// Params builds the packed argument digest for one action. Each value
// occupies a full 32-byte word: addresses are left-padded, unsigned integers
// are big-endian, bools are one word of 0 or 1, hashes pass through. The
// fixed word width keeps the encoding unambiguous without a length prefix.
type Params struct {
	buf []byte
}

// NewParams starts an empty packed argument list.
func NewParams() *Params {
	return &Params{buf: make([]byte, 0, 128)}
}

// Address appends an account address as one 32-byte word.
func (p *Params) Address(a id.Address) *Params {
	var word [32]byte
	copy(word[12:], a[:])
	p.buf = append(p.buf, word[:]...)
	return p
}

// Uint64 appends an unsigned integer as one big-endian 32-byte word.
func (p *Params) Uint64(n uint64) *Params {
	var word [32]byte
	binary.BigEndian.PutUint64(word[24:], n)
	p.buf = append(p.buf, word[:]...)
	return p
}

// PortraitID appends a portrait ID as one big-endian 32-byte word.
func (p *Params) PortraitID(pid id.PortraitID) *Params {
	return p.Uint64(uint64(pid))
}

// Bool appends a boolean as one 32-byte word of 0 or 1.
func (p *Params) Bool(b bool) *Params {
	var word [32]byte
	if b {
		word[31] = 1
	}
	p.buf = append(p.buf, word[:]...)
	return p
}

// Hash appends a 32-byte digest verbatim.
func (p *Params) Hash(h id.Hash) *Params {
	p.buf = append(p.buf, h[:]...)
	return p
}

// Sum returns the keccak256 digest of the packed words.
func (p *Params) Sum() id.Hash {
	return Keccak256(p.buf)
}
