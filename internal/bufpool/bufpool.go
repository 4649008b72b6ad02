// Package bufpool pools the byte buffers the connection orchestrator and
// response builder churn through on every request: response serialization
// buffers (growable, handed to bytebufferpool) and fixed-size read/file-
// stream buffers (size-classed, adapted from shockwave's BufferPool).
package bufpool

import (
	"sync"

	"github.com/valyala/bytebufferpool"
)

// Get returns a pooled, empty *bytebufferpool.ByteBuffer suitable for
// assembling a response's status line and headers.
func Get() *bytebufferpool.ByteBuffer {
	return bytebufferpool.Get()
}

// Put returns buf to the pool. buf must not be used afterward.
func Put(buf *bytebufferpool.ByteBuffer) {
	bytebufferpool.Put(buf)
}

// Size classes for the fixed-size pool, matching the read-chunk and
// sendfile slice sizes the event loop and CGI pipe drain use.
const (
	Size4KB  = 4 * 1024
	Size8KB  = 8 * 1024
	Size16KB = 16 * 1024
	Size32KB = 32 * 1024
	Size64KB = 64 * 1024
)

var sizeClasses = [...]int{Size4KB, Size8KB, Size16KB, Size32KB, Size64KB}

var fixedPools = func() [len(sizeClasses)]*sync.Pool {
	var pools [len(sizeClasses)]*sync.Pool
	for i, size := range sizeClasses {
		size := size
		pools[i] = &sync.Pool{New: func() interface{} {
			buf := make([]byte, size)
			return &buf
		}}
	}
	return pools
}()

func classFor(n int) int {
	for i, size := range sizeClasses {
		if n <= size {
			return i
		}
	}
	return -1
}

// GetFixed returns a buffer of at least n bytes, reused from a size-classed
// pool when n fits within the largest class (64 KiB); otherwise it
// allocates directly rather than pooling an oversize buffer.
func GetFixed(n int) []byte {
	i := classFor(n)
	if i < 0 {
		return make([]byte, n)
	}
	bufPtr := fixedPools[i].Get().(*[]byte)
	return (*bufPtr)[:sizeClasses[i]]
}

// PutFixed returns buf to its size class's pool. Buffers whose capacity
// doesn't match a class exactly are dropped rather than pooled.
func PutFixed(buf []byte) {
	if buf == nil {
		return
	}
	c := cap(buf)
	for i, size := range sizeClasses {
		if c == size {
			b := buf[:size]
			fixedPools[i].Put(&b)
			return
		}
	}
}
