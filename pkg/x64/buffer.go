// Package x64 encodes x86-64 machine instructions into byte buffers and
// links the symbolic function/block references they leave behind into
// resolved addresses (spec.md §3.5-§3.6, §4.1-§4.5).
package x64

import (
	"fmt"
	"math"
)

// BoundsError reports an out-of-range byte-buffer access (spec.md §4.1).
type BoundsError struct{ msg string }

func (e *BoundsError) Error() string { return "x64: bounds: " + e.msg }

// CodeBuffer is a bounds-checked view into a byte region, addressed by an
// absolute base so a Linker can compute relative offsets between two views
// taken from the same underlying program image. Buffer is the real,
// backing-array-bound implementation; DummyBuffer is a "price but don't
// emit" stand-in used during the size-only encoding pass (spec.md §4.1).
type CodeBuffer interface {
	// Base returns the absolute address of index 0 of this view.
	Base() int64
	// Len returns the number of addressable bytes in this view.
	Len() int64
	Get(index int64) (byte, error)
	Set(index int64, value byte) error
	// View returns the sub-view starting at start and running to the end
	// of this view.
	View(start int64) (CodeBuffer, error)
	// ViewRange returns the sub-view [start, end).
	ViewRange(start, end int64) (CodeBuffer, error)
}

// Buffer is a CodeBuffer backed by a real byte slice.
type Buffer struct {
	base int64
	data []byte
}

// NewBuffer wraps data as a Buffer whose base address is 0. Sub-views taken
// from it (via View/ViewRange) carry bases relative to that origin, which is
// all the Linker needs: it only ever computes differences between two
// addresses drawn from the same Buffer.
func NewBuffer(data []byte) *Buffer {
	return &Buffer{data: data}
}

func (b *Buffer) Base() int64 { return b.base }
func (b *Buffer) Len() int64  { return int64(len(b.data)) }

func (b *Buffer) Get(index int64) (byte, error) {
	if index < 0 || index >= int64(len(b.data)) {
		return 0, &BoundsError{msg: fmt.Sprintf("index %d out of range [0,%d)", index, len(b.data))}
	}
	return b.data[index], nil
}

func (b *Buffer) Set(index int64, value byte) error {
	if index < 0 || index >= int64(len(b.data)) {
		return &BoundsError{msg: fmt.Sprintf("index %d out of range [0,%d)", index, len(b.data))}
	}
	b.data[index] = value
	return nil
}

// Bytes returns the backing byte slice directly, for a caller (a JIT
// driver) that needs the raw encoded image rather than bounds-checked
// byte-at-a-time access.
func (b *Buffer) Bytes() []byte { return b.data }

func (b *Buffer) View(start int64) (CodeBuffer, error) {
	return b.ViewRange(start, int64(len(b.data)))
}

func (b *Buffer) ViewRange(start, end int64) (CodeBuffer, error) {
	if start < 0 || end > int64(len(b.data)) || start > end {
		return nil, &BoundsError{msg: fmt.Sprintf("view [%d,%d) out of range [0,%d)", start, end, len(b.data))}
	}
	return &Buffer{base: b.base + start, data: b.data[start:end]}, nil
}

// DummyBuffer maps every index to one scratch byte and every view to
// itself, so an encoder can be driven to completion to learn an
// instruction's size without ever emitting real bytes (spec.md §4.1).
type DummyBuffer struct {
	scratch byte
}

func NewDummyBuffer() *DummyBuffer { return &DummyBuffer{} }

func (d *DummyBuffer) Base() int64 { return 0 }
func (d *DummyBuffer) Len() int64  { return math.MaxInt64 }

func (d *DummyBuffer) Get(int64) (byte, error) { return d.scratch, nil }
func (d *DummyBuffer) Set(_ int64, value byte) error {
	d.scratch = value
	return nil
}
func (d *DummyBuffer) View(int64) (CodeBuffer, error)            { return d, nil }
func (d *DummyBuffer) ViewRange(int64, int64) (CodeBuffer, error) { return d, nil }
