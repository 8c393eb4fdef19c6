package permission

import "fmt"

// MaxPermissions is the number of distinct permissions a [Catalog] can hold.
const MaxPermissions = 128

// bitTable assigns permission names to bit positions in registration order.
// It is not safe for concurrent use; the owning Catalog holds the lock.
type bitTable struct {
	bits  map[string]int
	names []string
}

func newBitTable() bitTable {
	return bitTable{bits: make(map[string]int)}
}

func (t *bitTable) assign(name string) (int, error) {
	if name == "" {
		return -1, fmt.Errorf("%w: empty permission name", ErrInvalidDefinition)
	}
	if _, exists := t.bits[name]; exists {
		return -1, fmt.Errorf("%w: permission %q", ErrDuplicate, name)
	}
	if len(t.names) == MaxPermissions {
		return -1, fmt.Errorf("%w: more than %d permissions", ErrInvalidDefinition, MaxPermissions)
	}

	bit := len(t.names)
	t.bits[name] = bit
	t.names = append(t.names, name)
	return bit, nil
}

func (t *bitTable) bit(name string) (int, bool) {
	bit, ok := t.bits[name]
	return bit, ok
}

func (t *bitTable) name(bit int) string {
	if bit < 0 || bit >= len(t.names) {
		return ""
	}
	return t.names[bit]
}

func (t *bitTable) len() int {
	return len(t.names)
}
