package permission

import "math/bits"

// Mask128 is a permission set with one bit per registered permission.
// The zero value is the empty set.
type Mask128 struct {
	A uint64 // bits 0-63
	B uint64 // bits 64-127
}

// word returns the half holding bit and the bit's offset in it.
func (m *Mask128) word(bit int) (*uint64, uint) {
	if bit < 64 {
		return &m.A, uint(bit)
	}
	return &m.B, uint(bit - 64)
}

func inRange(bit int) bool {
	return bit >= 0 && bit < MaxPermissions
}

// Has reports whether bit is set. Out-of-range bits are never set.
func (m Mask128) Has(bit int) bool {
	if !inRange(bit) {
		return false
	}
	w, off := m.word(bit)
	return *w&(1<<off) != 0
}

// Set sets bit. Out-of-range bits are ignored.
func (m *Mask128) Set(bit int) {
	if !inRange(bit) {
		return
	}
	w, off := m.word(bit)
	*w |= 1 << off
}

// Clear clears bit. Out-of-range bits are ignored.
func (m *Mask128) Clear(bit int) {
	if !inRange(bit) {
		return
	}
	w, off := m.word(bit)
	*w &^= 1 << off
}

// Union returns the bitwise OR of m and other.
func (m Mask128) Union(other Mask128) Mask128 {
	return Mask128{A: m.A | other.A, B: m.B | other.B}
}

// Len returns the number of set bits.
func (m Mask128) Len() int {
	return bits.OnesCount64(m.A) + bits.OnesCount64(m.B)
}

// IsZero reports whether no bit is set.
func (m Mask128) IsZero() bool {
	return m == Mask128{}
}
