package store

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
)

// IDGenerator produces identifiers for stored records.
type IDGenerator interface {
	NewID() string
}

// Sequence generates deterministic IDs of the form "{prefix}{counter}",
// e.g. "PROD-000001". Reset restarts the counter.
type Sequence struct {
	prefix  string
	counter atomic.Uint64
}

// NewSequence creates a deterministic generator with the given prefix.
func NewSequence(prefix string) *Sequence {
	return &Sequence{prefix: prefix}
}

// NewID implements IDGenerator.
func (s *Sequence) NewID() string {
	return fmt.Sprintf("%s%06d", s.prefix, s.counter.Add(1))
}

// Reset restarts the counter at zero.
func (s *Sequence) Reset() {
	s.counter.Store(0)
}

// HexID generates random IDs of the form "{prefix}{n upper-case hex chars}"
// drawn from version 4 UUIDs.
type HexID struct {
	prefix string
	n      int
}

// NewHexID creates a random generator emitting n hex characters after prefix.
func NewHexID(prefix string, n int) *HexID {
	return &HexID{prefix: prefix, n: n}
}

// NewID implements IDGenerator.
func (h *HexID) NewID() string {
	return h.prefix + RandomHex(h.n)
}

// RandomHex returns n upper-case hex characters.
func RandomHex(n int) string {
	var b strings.Builder
	for b.Len() < n {
		u := uuid.New()
		b.WriteString(strings.ToUpper(strings.ReplaceAll(u.String(), "-", "")))
	}
	return b.String()[:n]
}
