// Package xorname implements the 256-bit address space used to place peers
// and sections: names, XOR distance, and bit-prefixes.
package xorname

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"golang.org/x/crypto/sha3"
)

// Len is the length in bytes of a Name (256 bits).
const Len = 32

// Name is a 256-bit identifier in the overlay address space.
type Name [Len]byte

// Hash derives a Name from arbitrary bytes (SHA3-256).
func Hash(data []byte) Name {
	return Name(sha3.Sum256(data))
}

// Xor returns the bitwise XOR of n and other.
func (n Name) Xor(other Name) Name {
	var out Name
	for i := range out {
		out[i] = n[i] ^ other[i]
	}
	return out
}

// Equal reports whether n and other are the same name.
func (n Name) Equal(other Name) bool {
	return n == other
}

// Bit returns the value (0 or 1) of the i-th most-significant bit.
func (n Name) Bit(i uint) int {
	byteIdx := i / 8
	bitIdx := 7 - (i % 8)
	if byteIdx >= Len {
		return 0
	}
	return int((n[byteIdx] >> bitIdx) & 1)
}

// CmpDistance orders lhs and rhs by their XOR distance to n: a negative
// result means lhs is closer to n than rhs.
func (n Name) CmpDistance(lhs, rhs Name) int {
	dl := n.Xor(lhs)
	dr := n.Xor(rhs)
	return bytes.Compare(dl[:], dr[:])
}

// String returns the lowercase hex encoding of the name.
func (n Name) String() string {
	return hex.EncodeToString(n[:])
}

// MarshalJSON encodes the name as a hex string, rather than the default
// array-of-32-ints encoding a plain [32]byte would otherwise get.
func (n Name) MarshalJSON() ([]byte, error) {
	return json.Marshal(n.String())
}

// UnmarshalJSON decodes a name encoded by MarshalJSON.
func (n *Name) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("xorname: invalid name hex: %w", err)
	}
	if len(b) != Len {
		return fmt.Errorf("xorname: name must be %d bytes, got %d", Len, len(b))
	}
	copy(n[:], b)
	return nil
}
