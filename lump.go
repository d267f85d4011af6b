package device

import (
	"fmt"
)

// LumpId is a 128-bit unsigned integer identifying a stored blob. IDs form
// a closed, totally ordered universe over which range operations ([start,
// end)) are defined.
type LumpId struct {
	hi, lo uint64
}

// NewLumpId builds a LumpId from a 128-bit value given as (high, low) words.
func NewLumpId(hi, lo uint64) LumpId {
	return LumpId{hi: hi, lo: lo}
}

// LumpIdFromUint64 builds a LumpId from a plain 64-bit value.
func LumpIdFromUint64(v uint64) LumpId {
	return LumpId{lo: v}
}

// Compare returns -1, 0 or 1 as id sorts before, equal to, or after other.
func (id LumpId) Compare(other LumpId) int {
	if id.hi != other.hi {
		if id.hi < other.hi {
			return -1
		}
		return 1
	}
	switch {
	case id.lo < other.lo:
		return -1
	case id.lo > other.lo:
		return 1
	default:
		return 0
	}
}

// Less reports whether id sorts before other.
func (id LumpId) Less(other LumpId) bool { return id.Compare(other) < 0 }

// Words exposes the raw (high, low) 64-bit halves, for storage engines
// that need to hash or shard an id without depending on its string form.
func (id LumpId) Words() (hi, lo uint64) { return id.hi, id.lo }

func (id LumpId) String() string {
	if id.hi == 0 {
		return fmt.Sprintf("%d", id.lo)
	}
	return fmt.Sprintf("%d%020d", id.hi, id.lo)
}

// lumpDataKind distinguishes how a LumpData's backing buffer was allocated.
type lumpDataKind int

const (
	lumpDataPlain lumpDataKind = iota
	lumpDataAligned
	lumpDataEmbedded
)

// LumpData is an opaque byte buffer, optionally aligned to a storage
// block size so that a subsequent Put avoids an extra copy, or flagged as
// "embedded" for small values that a journal can hold inline.
type LumpData struct {
	bytes     []byte
	kind      lumpDataKind
	blockSize int // 0 unless kind == lumpDataAligned
}

// NewLumpData wraps an arbitrary byte slice with no alignment guarantee.
func NewLumpData(b []byte) LumpData {
	return LumpData{bytes: b, kind: lumpDataPlain}
}

// NewEmbeddedLumpData marks data small enough to live entirely inside a
// journal entry. It carries no alignment requirement.
func NewEmbeddedLumpData(b []byte) LumpData {
	return LumpData{bytes: b, kind: lumpDataEmbedded}
}

// NewAlignedLumpData allocates size bytes with capacity rounded up to a
// multiple of blockSize, so a storage engine can write it without copying.
func NewAlignedLumpData(size int, blockSize int) (LumpData, error) {
	if blockSize <= 0 {
		return LumpData{}, fmt.Errorf("lump: invalid block size %d", blockSize)
	}
	capacity := roundUpToBlock(size, blockSize)
	buf := make([]byte, size, capacity)
	return LumpData{bytes: buf, kind: lumpDataAligned, blockSize: blockSize}, nil
}

func roundUpToBlock(size, blockSize int) int {
	if size%blockSize == 0 {
		return size
	}
	return (size/blockSize + 1) * blockSize
}

// Bytes returns the underlying data. Callers must not retain it past the
// lifetime of the operation it was passed to.
func (d LumpData) Bytes() []byte { return d.bytes }

// Len reports the number of bytes held.
func (d LumpData) Len() int { return len(d.bytes) }

// Aligned reports whether the buffer's capacity is a multiple of a block
// size, and if so, which.
func (d LumpData) Aligned() (blockSize int, ok bool) {
	return d.blockSize, d.kind == lumpDataAligned
}

// Embedded reports whether this value was constructed as journal-embeddable.
func (d LumpData) Embedded() bool { return d.kind == lumpDataEmbedded }

// BlockSize reports the alignment of a storage engine's writes.
type BlockSize uint32

// AlignUp rounds n up to the next multiple of the block size.
func (b BlockSize) AlignUp(n uint64) uint64 {
	bs := uint64(b)
	if bs == 0 || n%bs == 0 {
		return n
	}
	return (n/bs + 1) * bs
}
