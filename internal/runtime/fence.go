package runtime

import "sync/atomic"

var fenceWord int32

// MemoryFence backs sync/lwsync/eieio/isync (§5 "emitted as no-ops on
// strongly ordered hosts and as full fences on weakly ordered hosts"):
// an atomic read-modify-write is a full fence under Go's memory model
// on every architecture, so it is correct everywhere, merely redundant
// on a strongly ordered host.
func MemoryFence() {
	atomic.AddInt32(&fenceWord, 0)
}
