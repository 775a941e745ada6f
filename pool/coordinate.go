// Package pool provides sync.Pool wrappers for reducing GC pressure.
package pool

import (
	"strconv"
	"sync"
)

// CoordinateBuilder builds HL7 coordinate names such as "PID-3",
// "PID-3.1" and "PID-3.1.2" in a reusable byte buffer.
type CoordinateBuilder struct {
	buf []byte
}

// coordinatePool holds reusable CoordinateBuilder instances.
var coordinatePool = sync.Pool{
	New: func() any {
		return &CoordinateBuilder{
			buf: make([]byte, 0, 32),
		}
	},
}

// AcquireCoordinateBuilder gets a CoordinateBuilder from the pool.
// Call Release() when done to return it to the pool.
func AcquireCoordinateBuilder() *CoordinateBuilder {
	b := coordinatePool.Get().(*CoordinateBuilder)
	b.Reset()
	return b
}

// Release returns the CoordinateBuilder to the pool.
func (b *CoordinateBuilder) Release() {
	if b == nil {
		return
	}
	// Don't return oversized buffers to the pool
	if cap(b.buf) <= 1024 {
		coordinatePool.Put(b)
	}
}

// Reset clears the buffer without deallocating.
func (b *CoordinateBuilder) Reset() {
	b.buf = b.buf[:0]
}

// Len returns the current length of the coordinate.
func (b *CoordinateBuilder) Len() int {
	return len(b.buf)
}

// WriteString appends s.
func (b *CoordinateBuilder) WriteString(s string) {
	b.buf = append(b.buf, s...)
}

// AppendField appends "-n", the field position of a segment code.
func (b *CoordinateBuilder) AppendField(n int) {
	b.buf = append(b.buf, '-')
	b.buf = strconv.AppendInt(b.buf, int64(n), 10)
}

// AppendPosition appends ".n", a component or sub-component position.
func (b *CoordinateBuilder) AppendPosition(n int) {
	b.buf = append(b.buf, '.')
	b.buf = strconv.AppendInt(b.buf, int64(n), 10)
}

// String returns the built coordinate.
func (b *CoordinateBuilder) String() string {
	return string(b.buf)
}

// FieldCoordinate returns the coordinate of field n of segment, e.g. "PID-3".
func FieldCoordinate(segment string, n int) string {
	b := AcquireCoordinateBuilder()
	defer b.Release()
	b.WriteString(segment)
	b.AppendField(n)
	return b.String()
}

// ChildCoordinate returns the coordinate of position n below parent,
// e.g. "PID-3.1" for parent "PID-3".
func ChildCoordinate(parent string, n int) string {
	b := AcquireCoordinateBuilder()
	defer b.Release()
	b.WriteString(parent)
	b.AppendPosition(n)
	return b.String()
}
