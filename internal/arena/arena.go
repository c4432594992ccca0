// Package arena provides append-only, content-addressed storage for the
// immutable entities threaded through Watson's core: categories, rules,
// fragments and presentations are all handles into some Arena.
//
// Arenas never delete: an entity, once interned, keeps its Handle for the
// lifetime of the run and is released wholesale when the run ends.
package arena

import (
	"encoding/binary"
	"sync"

	"golang.org/x/crypto/blake2b"
)

// Handle is an index into an Arena. The zero Handle never denotes a valid
// entry; arenas reserve index 0.
type Handle int

// Invalid is the handle returned on lookup failure.
const Invalid Handle = -1

// Fingerprint is a content digest used to bucket candidates for interning.
type Fingerprint [32]byte

// Sum computes the arena's content fingerprint for a byte encoding of an
// entity. Callers build a stable encoding of their entity (see Encoder)
// before calling Sum; Arena itself is agnostic to what T is.
func Sum(b []byte) Fingerprint {
	return blake2b.Sum256(b)
}

// Encoder accumulates a stable byte encoding of a value for fingerprinting.
// It is intentionally tiny: Watson's entities are small, flat records over
// Handles and short strings, not arbitrary trees needing a real codec.
type Encoder struct {
	buf []byte
}

// NewEncoder returns an empty Encoder.
func NewEncoder() *Encoder { return &Encoder{} }

// Byte appends a tag byte, used to distinguish entity kinds sharing a bucket.
func (e *Encoder) Byte(b byte) *Encoder { e.buf = append(e.buf, b); return e }

// Int appends a varint-free fixed 8-byte int encoding.
func (e *Encoder) Int(n int) *Encoder {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(n))
	e.buf = append(e.buf, b[:]...)
	return e
}

// Handle appends a Handle's int value.
func (e *Encoder) Handle(h Handle) *Encoder { return e.Int(int(h)) }

// String appends a length-prefixed string.
func (e *Encoder) String(s string) *Encoder {
	e.Int(len(s))
	e.buf = append(e.buf, s...)
	return e
}

// Bytes returns the accumulated encoding.
func (e *Encoder) Bytes() []byte { return e.buf }

// Arena is a generic append-only, interning store for T. T values must be
// comparable with Eq, the caller-supplied structural equality, so that
// fingerprint collisions are resolved correctly.
type Arena[T any] struct {
	mu      sync.Mutex
	entries []T
	buckets map[Fingerprint][]Handle
	eq      func(a, b T) bool
}

// New creates an Arena using eq for structural equality within a
// fingerprint bucket. Index 0 is reserved so the zero Handle is never valid.
func New[T any](eq func(a, b T) bool) *Arena[T] {
	var zero T
	a := &Arena[T]{buckets: make(map[Fingerprint][]Handle), eq: eq}
	a.entries = append(a.entries, zero)
	return a
}

// Intern returns the handle for value, reusing an existing entry whose
// fingerprint and structural content match, or appending a new one.
// Testable property 1 (interning) holds by construction: equal content
// under eq always lands in the same bucket and returns the same Handle.
func (a *Arena[T]) Intern(fp Fingerprint, value T) Handle {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, h := range a.buckets[fp] {
		if a.eq(a.entries[h], value) {
			return h
		}
	}
	h := Handle(len(a.entries))
	a.entries = append(a.entries, value)
	a.buckets[fp] = append(a.buckets[fp], h)
	return h
}

// Get dereferences a handle. It panics on an out-of-range handle: arena
// handles are only ever produced by Intern or Append on the same arena, so
// an invalid handle here is a programming error, not recoverable input.
func (a *Arena[T]) Get(h Handle) T {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.entries[h]
}

// Append adds value unconditionally (no interning) and returns its handle.
// Used for entities with no useful structural-equality notion, such as
// Sources or per-module Rule records that are never deduplicated.
func (a *Arena[T]) Append(value T) Handle {
	a.mu.Lock()
	defer a.mu.Unlock()
	h := Handle(len(a.entries))
	a.entries = append(a.entries, value)
	return h
}

// Len returns the number of live entries, including the reserved slot 0.
func (a *Arena[T]) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.entries)
}
