// SPDX-FileCopyrightText: 2023 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package ship

// Buffer is an owned or borrowed byte slice (C1, Message Buffer). Borrowed
// buffers have a nil Release and releasing them is a no-op; owned buffers
// invoke the caller-supplied Release exactly once. Buffer is not safe for
// concurrent use - it is owned by whichever component currently holds it.
type Buffer struct {
	data    []byte
	release func()
}

// BorrowBuffer wraps a byte slice the caller retains ownership of. Release is
// a no-op.
func BorrowBuffer(b []byte) Buffer {
	return Buffer{data: b}
}

// OwnedBuffer wraps a byte slice together with a release callback invoked by
// Release. A nil release is treated the same as a borrowed buffer.
func OwnedBuffer(b []byte, release func()) Buffer {
	return Buffer{data: b, release: release}
}

// Bytes returns the underlying data. It is valid until Release is called.
func (b Buffer) Bytes() []byte {
	return b.data
}

// Len returns the number of bytes currently held.
func (b Buffer) Len() int {
	return len(b.data)
}

// Release invokes the owning release callback, if any, and clears the
// buffer. Calling Release more than once is safe; only the first call has an
// effect.
func (b *Buffer) Release() {
	if b.release != nil {
		b.release()
	}
	b.data = nil
	b.release = nil
}
