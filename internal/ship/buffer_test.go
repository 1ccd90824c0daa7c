// SPDX-FileCopyrightText: 2023 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package ship

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBorrowBuffer(t *testing.T) {
	assert := assert.New(t)

	b := BorrowBuffer([]byte("hello"))
	assert.Equal(5, b.Len())
	assert.Equal([]byte("hello"), b.Bytes())

	b.Release()
	assert.Nil(b.Bytes())
	assert.Equal(0, b.Len())
}

func TestOwnedBuffer(t *testing.T) {
	assert := assert.New(t)

	released := 0
	b := OwnedBuffer([]byte("data"), func() { released++ })
	assert.Equal(4, b.Len())

	b.Release()
	assert.Equal(1, released)

	// second Release is a no-op.
	b.Release()
	assert.Equal(1, released)
}

func TestOwnedBufferNilRelease(t *testing.T) {
	assert := assert.New(t)

	b := OwnedBuffer([]byte("x"), nil)
	assert.NotPanics(func() { b.Release() })
}
