package ledger

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"strings"
)

// RoutingTagSize is the width of an encoded routing tag: one 256-bit word.
const RoutingTagSize = 32

// MaxAccountID is the largest id a store can allocate (BIGSERIAL and
// AUTOINCREMENT are signed 64-bit).
const MaxAccountID = math.MaxInt64

// EncodeRoutingTag returns the routing tag a sender attaches to a transfer
// to credit account id.
func EncodeRoutingTag(id uint64) []byte {
	tag := make([]byte, RoutingTagSize)
	binary.BigEndian.PutUint64(tag[RoutingTagSize-8:], id)
	return tag
}

// DecodeRoutingTag reads an account id from a big-endian routing tag of at
// most 32 bytes. Tags that cannot name an allocated account fail with
// ErrAccountNotFound.
func DecodeRoutingTag(tag []byte) (uint64, error) {
	if len(tag) == 0 || len(tag) > RoutingTagSize {
		return 0, fmt.Errorf("routing tag of %d bytes: %w", len(tag), ErrAccountNotFound)
	}
	split := max(len(tag)-8, 0)
	for _, b := range tag[:split] {
		if b != 0 {
			return 0, fmt.Errorf("routing tag %x exceeds any account id: %w", tag, ErrAccountNotFound)
		}
	}

	var word [8]byte
	low := tag[split:]
	copy(word[8-len(low):], low)
	id := binary.BigEndian.Uint64(word[:])
	if id == 0 || id > MaxAccountID {
		return 0, fmt.Errorf("routing tag %x: %w", tag, ErrAccountNotFound)
	}
	return id, nil
}

// FormatRoutingTag renders the routing tag for id as 0x-prefixed hex.
func FormatRoutingTag(id uint64) string {
	return "0x" + hex.EncodeToString(EncodeRoutingTag(id))
}

// ParseRoutingTag decodes hex text, with or without a 0x prefix.
func ParseRoutingTag(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(s)%2 == 1 {
		s = "0" + s
	}
	tag, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("parse routing tag: %w", err)
	}
	return tag, nil
}
