package runtime

import "testing"

func TestMemoryFenceDoesNotPanic(t *testing.T) {
	MemoryFence()
	MemoryFence()
}
